package scanner

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(time.Duration) {}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestDiscoverMissingRoot(t *testing.T) {
	s := NewScanner(filepath.Join(t.TempDir(), "does-not-exist"), &fakeClock{now: time.Now()})
	files, err := s.Discover()
	assert.NoError(t, err)
	assert.Nil(t, files)
}

func TestDiscoverFindsProjectLogs(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "-Users-alice-myapp", "session-1.jsonl"), "{}\n")
	writeFile(t, filepath.Join(root, "-Users-alice-myapp", "session-2.jsonl"), "{}\n")
	writeFile(t, filepath.Join(root, "plain-project", "session-3.JSONL"), "{}\n")
	// Non-log files are ignored.
	writeFile(t, filepath.Join(root, "plain-project", "notes.txt"), "ignored")

	s := NewScanner(root, &fakeClock{now: time.Now()})
	files, err := s.Discover()
	require.NoError(t, err)
	require.Len(t, files, 3)

	byID := make(map[string]FileMetadata, len(files))
	for _, f := range files {
		byID[f.SessionID] = f
		assert.NotZero(t, f.ModTime)
		assert.Positive(t, f.Size)
		assert.NotZero(t, f.Inode)
		assert.Equal(t, f.ModTime, f.Timestamp)
	}

	require.Contains(t, byID, "session-1")
	assert.Equal(t, filepath.FromSlash("/Users/alice/myapp"), byID["session-1"].Project)
	assert.Equal(t, "-Users-alice-myapp", byID["session-1"].ProjectDir)

	require.Contains(t, byID, "session-3")
	assert.Equal(t, "plain-project", byID["session-3"].Project)
}

func TestDiscoverSkipsForeignDirectories(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".hidden", "a.jsonl"), "{}\n")
	writeFile(t, filepath.Join(root, "node_modules", "b.jsonl"), "{}\n")
	writeFile(t, filepath.Join(root, "__pycache__", "c.jsonl"), "{}\n")
	writeFile(t, filepath.Join(root, "-tmp-scratch", "d.jsonl"), "{}\n")
	writeFile(t, filepath.Join(root, "-private-var-folders-xy", "e.jsonl"), "{}\n")
	writeFile(t, filepath.Join(root, "real-project", "keep.jsonl"), "{}\n")
	// Top-level files are not project data.
	writeFile(t, filepath.Join(root, "stray.jsonl"), "{}\n")

	s := NewScanner(root, &fakeClock{now: time.Now()})
	files, err := s.Discover()
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "keep", files[0].SessionID)
}

func TestDiscoverSortsByTimestamp(t *testing.T) {
	root := t.TempDir()
	old := filepath.Join(root, "proj", "old.jsonl")
	mid := filepath.Join(root, "proj", "mid.jsonl")
	fresh := filepath.Join(root, "proj", "new.jsonl")
	for _, p := range []string{fresh, old, mid} {
		writeFile(t, p, "{}\n")
	}

	base := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(old, base, base))
	require.NoError(t, os.Chtimes(mid, base.Add(time.Hour), base.Add(time.Hour)))
	require.NoError(t, os.Chtimes(fresh, base.Add(2*time.Hour), base.Add(2*time.Hour)))

	s := NewScanner(root, &fakeClock{now: time.Now()})
	files, err := s.Discover()
	require.NoError(t, err)
	require.Len(t, files, 3)
	assert.Equal(t, "old", files[0].SessionID)
	assert.Equal(t, "mid", files[1].SessionID)
	assert.Equal(t, "new", files[2].SessionID)
}

func TestMetadataCacheReusesUntouchedFiles(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "proj", "s.jsonl")
	writeFile(t, path, "{}\n")

	// Backdate the file to yesterday so the cache trust rule applies.
	yesterday := time.Now().Add(-24 * time.Hour).Truncate(time.Second)
	require.NoError(t, os.Chtimes(path, yesterday, yesterday))

	s := NewScanner(root, &fakeClock{now: time.Now()})

	first, err := s.Discover()
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := s.Discover()
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, first[0], second[0])

	// Touching the file invalidates the cached metadata.
	writeFile(t, path, "{}\n{}\n")
	now := time.Now().Truncate(time.Second)
	require.NoError(t, os.Chtimes(path, now, now))

	third, err := s.Discover()
	require.NoError(t, err)
	require.Len(t, third, 1)
	assert.True(t, third[0].ModTime.After(first[0].ModTime))
	assert.Greater(t, third[0].Size, first[0].Size)
}

func TestInvalidateMetadata(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "proj", "s.jsonl")
	writeFile(t, path, "{}\n")

	yesterday := time.Now().Add(-24 * time.Hour).Truncate(time.Second)
	require.NoError(t, os.Chtimes(path, yesterday, yesterday))

	s := NewScanner(root, &fakeClock{now: time.Now()})
	_, err := s.Discover()
	require.NoError(t, err)

	s.InvalidateMetadata(path)

	files, err := s.Discover()
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, path, files[0].Path)
}

func TestDecodeProjectDir(t *testing.T) {
	tests := []struct {
		name     string
		encoded  string
		expected string
	}{
		{"encoded absolute path", "-Users-alice-projects-myapp", filepath.FromSlash("/Users/alice/projects/myapp")},
		{"plain name untouched", "myproject", "myproject"},
		{"single dash prefix", "-home", filepath.FromSlash("/home")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DecodeProjectDir(tt.encoded))
		})
	}
}
