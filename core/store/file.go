package store

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"

	"github.com/darren8c/biblica-paratext-translator-plugin/core/errors"
)

// FileStore keeps each value in its own file, <dir>/<project>/<key>.json.
// Writes replace the file atomically, so a reader sees either the old or
// the new value.
type FileStore struct {
	dir string
}

// NewFileStore returns a store rooted at dir, creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.NewIO("create", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(project, key string) string {
	// PathEscape keeps separators and dots out of the file names.
	escape := func(p string) string {
		p = url.PathEscape(p)
		return strings.ReplaceAll(p, ".", "%2E")
	}
	return filepath.Join(s.dir, escape(project), escape(key)+".json")
}

func (s *FileStore) Get(_ context.Context, project, key string) (string, bool, error) {
	if err := checkKey(project, key); err != nil {
		return "", false, err
	}
	path := s.path(project, key)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, errors.NewIO("read", path, err)
	}
	return string(data), true, nil
}

func (s *FileStore) Put(_ context.Context, project, key, value string) error {
	if err := checkKey(project, key); err != nil {
		return err
	}
	path := s.path(project, key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.NewIO("create", filepath.Dir(path), err)
	}
	if err := atomic.WriteFile(path, strings.NewReader(value)); err != nil {
		return errors.NewIO("write", path, err)
	}
	return nil
}
