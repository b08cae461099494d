// Package file persists indexes as gob files under a root directory.
package file

import (
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"paperpal/internal/domain"
	"paperpal/internal/vectorstore"
)

const indexFile = "index.gob"

// Storage writes <dir>/<location>/index.gob.
type Storage struct {
	dir string
}

func NewStorage(dir string) *Storage {
	if dir == "" {
		dir = "."
	}
	return &Storage{dir: dir}
}

func (s *Storage) path(location string) string {
	return filepath.Join(s.dir, location, indexFile)
}

// Save encodes to a temp file in the target directory and renames it into
// place, so readers see the old or the new index and never a partial one.
func (s *Storage) Save(ctx context.Context, location string, ix *vectorstore.Index) (err error) {
	if err := vectorstore.ValidateLocation(location); err != nil {
		return err
	}
	if err := ix.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	target := s.path(location)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(target), indexFile+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp index: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()
	if err = gob.NewEncoder(tmp).Encode(ix); err != nil {
		return fmt.Errorf("encode index: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync index: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close index: %w", err)
	}
	if err = os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("replace index: %w", err)
	}
	return nil
}

func (s *Storage) Load(ctx context.Context, location string) (*vectorstore.Index, error) {
	if err := vectorstore.ValidateLocation(location); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.path(location))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, domain.ErrIndexNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	defer f.Close()
	var ix vectorstore.Index
	if err := gob.NewDecoder(f).Decode(&ix); err != nil {
		return nil, fmt.Errorf("decode index %s: %w", location, err)
	}
	if err := ix.Validate(); err != nil {
		return nil, fmt.Errorf("corrupt index %s: %w", location, err)
	}
	return &ix, nil
}

func (s *Storage) Exists(ctx context.Context, location string) (bool, error) {
	if err := vectorstore.ValidateLocation(location); err != nil {
		return false, err
	}
	_, err := os.Stat(s.path(location))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
