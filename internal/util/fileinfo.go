package util

import (
	"fmt"
	"os"
	"syscall"
	"time"
)

// FileInfo carries the file attributes the metadata cache keys on.
type FileInfo struct {
	ModTime time.Time
	Size    int64
	Inode   uint64 // unique file identifier on Unix-like systems
}

// GetFileInfo retrieves modification time, size, and inode for a file.
// Supported on Linux and macOS.
func GetFileInfo(path string) (*FileInfo, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	sysStat, ok := stat.Sys().(*syscall.Stat_t)
	if !ok {
		return nil, fmt.Errorf("failed to get file system information: %s", path)
	}

	return &FileInfo{
		ModTime: stat.ModTime(),
		Size:    stat.Size(),
		Inode:   sysStat.Ino,
	}, nil
}
