package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/dmitrijs2005/weavekeeper/internal/common"
	"github.com/spf13/afero"
)

// FSStore keeps blobs as files under a base directory.
type FSStore struct {
	fs afero.Fs
}

// NewFSStore roots the store at dir inside fsys, creating the directory.
func NewFSStore(fsys afero.Fs, dir string) (*FSStore, error) {
	if err := fsys.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create blob dir: %w", err)
	}
	return &FSStore{fs: afero.NewBasePathFs(fsys, dir)}, nil
}

// Put writes to a temporary name first and renames, so a crash never leaves
// a truncated blob under the final key.
func (s *FSStore) Put(_ context.Context, key string, data []byte) error {
	if err := checkKey(key); err != nil {
		return err
	}
	tmp := key + ".part"
	if err := afero.WriteFile(s.fs, tmp, data, 0o600); err != nil {
		return fmt.Errorf("write blob: %w", err)
	}
	if err := s.fs.Rename(tmp, key); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("rename blob: %w", err)
	}
	return nil
}

func (s *FSStore) Get(_ context.Context, key string) ([]byte, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(s.fs, key)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: blob %s", common.ErrContentUnavailable, key)
	}
	if err != nil {
		return nil, fmt.Errorf("read blob: %w", err)
	}
	return data, nil
}

// Delete is idempotent.
func (s *FSStore) Delete(_ context.Context, key string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	if err := s.fs.Remove(key); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete blob: %w", err)
	}
	return nil
}
