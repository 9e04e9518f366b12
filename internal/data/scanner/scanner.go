package scanner

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/penwyp/go-claude-usage/internal/util"
)

// FileMetadata describes one discovered JSONL log file.
type FileMetadata struct {
	Path       string
	Project    string // decoded project path
	ProjectDir string // raw encoded directory name
	SessionID  string
	Timestamp  time.Time // representative timestamp, mirrors ModTime
	ModTime    time.Time
	Size       int64
	Inode      uint64
}

// Scanner enumerates project directories under the Claude projects root
// and maintains a metadata cache so files untouched since yesterday are
// not re-stated into fresh metadata on every pass.
type Scanner struct {
	root  string
	clock util.Clock

	mu        sync.Mutex
	metaCache map[string]FileMetadata
}

// NewScanner creates a Scanner for the given projects root.
func NewScanner(root string, clock util.Clock) *Scanner {
	return &Scanner{
		root:      root,
		clock:     clock,
		metaCache: make(map[string]FileMetadata),
	}
}

// Discover enumerates all project log files, sorted by representative
// timestamp ascending. A missing root is "no data yet", not an error.
// Unreadable subdirectories are skipped; one bad directory never fails
// the scan.
func (s *Scanner) Discover() ([]FileMetadata, error) {
	start := s.clock.Now()
	dirs, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			util.LogDebugf("Projects root does not exist yet: %s", s.root)
			return nil, nil
		}
		return nil, fmt.Errorf("reading projects root %s: %w", s.root, err)
	}

	startOfDay := util.StartOfDay(start, util.GetTimeProvider().Location())

	var files []FileMetadata
	for _, dir := range dirs {
		if !dir.IsDir() || skipDir(dir.Name()) {
			continue
		}

		dirPath := filepath.Join(s.root, dir.Name())
		children, err := os.ReadDir(dirPath)
		if err != nil {
			util.LogDebugf("Skip unreadable project directory: %s - %v", dirPath, err)
			continue
		}

		project := DecodeProjectDir(dir.Name())
		for _, child := range children {
			if child.IsDir() || !strings.HasSuffix(strings.ToLower(child.Name()), ".jsonl") {
				continue
			}

			path := filepath.Join(dirPath, child.Name())
			info, err := util.GetFileInfo(path)
			if err != nil {
				util.LogDebugf("Skip file (stat failed): %s - %v", path, err)
				continue
			}

			files = append(files, s.resolveMetadata(path, dir.Name(), project, child.Name(), info, startOfDay))
		}
	}

	sort.Slice(files, func(i, j int) bool {
		if files[i].Timestamp.Equal(files[j].Timestamp) {
			return files[i].Path < files[j].Path
		}
		return files[i].Timestamp.Before(files[j].Timestamp)
	})

	util.LogDebugf("Discovery completed: %d files in %v", len(files), s.clock.Now().Sub(start))
	return files, nil
}

// resolveMetadata reuses the cached metadata when the cached modification
// time is before the start of the current day and the on-disk mtime and
// inode still match. A file untouched since yesterday cannot have gained
// lines; the inode check catches rotation onto the same path. This trusts
// clock/filesystem agreement and assumes no back-dating; it is a
// heuristic, not a guarantee.
func (s *Scanner) resolveMetadata(path, projectDir, project, fileName string, info *util.FileInfo, startOfDay time.Time) FileMetadata {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cached, ok := s.metaCache[path]; ok {
		if cached.ModTime.Before(startOfDay) && cached.ModTime.Equal(info.ModTime) && cached.Inode == info.Inode {
			return cached
		}
	}

	meta := FileMetadata{
		Path:       path,
		Project:    project,
		ProjectDir: projectDir,
		SessionID:  strings.TrimSuffix(fileName, filepath.Ext(fileName)),
		Timestamp:  info.ModTime,
		ModTime:    info.ModTime,
		Size:       info.Size,
		Inode:      info.Inode,
	}
	s.metaCache[path] = meta
	return meta
}

// InvalidateMetadata drops the cached metadata for a path, forcing a
// fresh stat on the next discovery.
func (s *Scanner) InvalidateMetadata(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.metaCache, path)
}

// foreign-tool and scratch directories that appear under the projects
// root but never hold Claude Code session logs.
var foreignDirs = map[string]struct{}{
	"node_modules": {},
	"__pycache__":  {},
}

func skipDir(name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	if _, ok := foreignDirs[name]; ok {
		return true
	}
	// Encoded temp paths (e.g. -tmp-..., -private-var-folders-...) are
	// scratch sessions, not project data.
	lower := strings.ToLower(name)
	if strings.HasPrefix(lower, "-tmp-") || strings.Contains(lower, "-var-folders-") {
		return true
	}
	return false
}

// DecodeProjectDir reverses the path encoding Claude Code applies to
// project directory names: an absolute path has every separator replaced
// with '-', so a leading '-' marks an encoded absolute path.
//
//	"-Users-alice-projects-myapp" -> "/Users/alice/projects/myapp"
func DecodeProjectDir(name string) string {
	if !strings.HasPrefix(name, "-") {
		return name
	}
	return strings.ReplaceAll(name, "-", string(filepath.Separator))
}
