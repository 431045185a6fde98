package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"

	"github.com/lborres/shopfront/core"
)

var validKey = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// Adapter stores each key as one file under a state directory. Writes go to
// a temporary file that is renamed over the target, so a reader sees either
// the previous or the new value.
type Adapter struct {
	dir string
}

var _ core.Storage = (*Adapter)(nil)

func New(dir string) (*Adapter, error) {
	if dir == "" {
		return nil, core.ErrStorageRequired
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	return &Adapter{dir: dir}, nil
}

func (a *Adapter) path(key string) (string, error) {
	if !validKey.MatchString(key) {
		return "", fmt.Errorf("%w: %q", core.ErrInvalidStateKey, key)
	}
	return filepath.Join(a.dir, key), nil
}

func (a *Adapter) Get(_ context.Context, key string) ([]byte, error) {
	p, err := a.path(key)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, core.ErrStorageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return data, nil
}

func (a *Adapter) Set(_ context.Context, key string, value []byte) error {
	p, err := a.path(key)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(a.dir, "."+key+"-*")
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}

	if err := os.Rename(tmp.Name(), p); err != nil {
		return fmt.Errorf("failed to replace %s: %w", key, err)
	}
	return nil
}

func (a *Adapter) Delete(_ context.Context, key string) error {
	p, err := a.path(key)
	if err != nil {
		return err
	}

	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}
