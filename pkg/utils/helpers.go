package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

// SafeGo executes a function in a goroutine with panic recovery
func SafeGo(logger *zap.Logger, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("Panic recovered in goroutine",
					zap.Any("panic", r),
					zap.Stack("stack"))
			}
		}()
		fn()
	}()
}

// FileHelper provides safe file operations
type FileHelper struct {
	mu sync.Mutex
}

// WriteFileSafely writes data to a file atomically
func (f *FileHelper) WriteFileSafely(filename string, data []byte, perm os.FileMode) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(filename), 0700); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	tmpfile := filename + ".tmp"
	if err := os.WriteFile(tmpfile, data, perm); err != nil {
		return fmt.Errorf("writing temporary file: %w", err)
	}

	if err := os.Rename(tmpfile, filename); err != nil {
		os.Remove(tmpfile)
		return fmt.Errorf("renaming temporary file: %w", err)
	}

	return nil
}

// ReadFileIfExists returns nil data and no error when filename is absent
func (f *FileHelper) ReadFileIfExists(filename string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(filename)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return data, nil
}
