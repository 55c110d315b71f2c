package kv

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// FSStore keeps each key in its own file at {dir}/{namespace}/{key}.
type FSStore struct {
	logger *zap.Logger
	lock   *sync.RWMutex
	fsPath string
}

func NewFSStore(logger *zap.Logger, fsPath string) *FSStore {
	return &FSStore{
		logger: logger.Named("fs-store"),
		lock:   new(sync.RWMutex),
		fsPath: fsPath,
	}
}

func (s *FSStore) Start(ctx context.Context, g *errgroup.Group) error {
	if err := os.MkdirAll(s.fsPath, 0755); err != nil {
		return fmt.Errorf("cannot create store directory: %w", err)
	}
	s.logger.Info("using file store", zap.String("dir", s.fsPath))
	return nil
}

func (s *FSStore) path(ns Namespace, key string) string {
	return filepath.Join(s.fsPath, string(ns), key)
}

func (s *FSStore) Get(ctx context.Context, ns Namespace, key string) (string, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	b, err := os.ReadFile(s.path(ns, key))
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Set replaces the file atomically: readers observe either the previous or
// the new content, never a partial write.
func (s *FSStore) Set(ctx context.Context, ns Namespace, key string, value string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	fpath := s.path(ns, key)
	dir := filepath.Dir(fpath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(fpath)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(value); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), fpath)
}
