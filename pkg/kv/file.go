package kv

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

const (
	fileExtension = ".dat"
	dirPerm       = 0o750
)

// File stores each key in its own file under a directory. Writes go to a
// temporary file that is renamed over the target, so readers never observe a
// partially written value.
type File struct {
	dir string
}

// NewFile creates a file-backed store rooted at dir, creating it if needed.
func NewFile(dir string) (*File, error) {
	if dir == "" {
		dir = "."
	}

	err := os.MkdirAll(dir, dirPerm)
	if err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}

	return &File{dir: dir}, nil
}

// Dir returns the storage directory.
func (f *File) Dir() string {
	return f.dir
}

func (f *File) path(key string) string {
	return filepath.Join(f.dir, key+fileExtension)
}

// Get implements Store.
func (f *File) Get(ctx context.Context, key string) ([]byte, error) {
	err := checkKey(key)
	if err != nil {
		return nil, err
	}

	err = ctx.Err()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(f.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}

	return data, nil
}

// Set implements Store.
func (f *File) Set(ctx context.Context, key string, value []byte) error {
	err := checkKey(key)
	if err != nil {
		return err
	}

	err = ctx.Err()
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(f.dir, key+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	tmpName := tmp.Name()

	_, err = tmp.Write(value)
	if err == nil {
		err = tmp.Sync()
	}

	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}

	if err != nil {
		_ = os.Remove(tmpName)

		return fmt.Errorf("write %s: %w", key, err)
	}

	err = os.Rename(tmpName, f.path(key))
	if err != nil {
		_ = os.Remove(tmpName)

		return fmt.Errorf("commit %s: %w", key, err)
	}

	return nil
}

// Delete implements Store. Deleting a missing key is not an error.
func (f *File) Delete(_ context.Context, key string) error {
	err := checkKey(key)
	if err != nil {
		return err
	}

	err = os.Remove(f.path(key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete %s: %w", key, err)
	}

	return nil
}

// Close implements Store.
func (f *File) Close() error {
	return nil
}
