package localstorage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
)

// File stores each key as its own file under dir.
type File struct {
	dir string
}

func NewFile(dir string) (*File, error) {
	if dir == "" {
		return nil, errors.New("localstorage: file backend requires a directory")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("localstorage: mkdir: %w", err)
	}
	return &File{dir: dir}, nil
}

func (f *File) path(key string) string {
	return filepath.Join(f.dir, url.PathEscape(key)+".json")
}

func (f *File) GetItem(_ context.Context, key string) (string, bool, error) {
	data, err := os.ReadFile(f.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("localstorage: read %q: %w", key, err)
	}
	return string(data), true, nil
}

// SetItem writes the value through a pending file so a crash never leaves a torn blob.
func (f *File) SetItem(_ context.Context, key, value string) error {
	if err := renameio.WriteFile(f.path(key), []byte(value), 0o600); err != nil {
		return fmt.Errorf("localstorage: write %q: %w", key, err)
	}
	return nil
}

func (f *File) RemoveItem(_ context.Context, key string) error {
	err := os.Remove(f.path(key))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("localstorage: remove %q: %w", key, err)
	}
	return nil
}
