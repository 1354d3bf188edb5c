package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

const suffix = ".rec"

// Persist implements the pathtree.Persist interface for storing and
// loading records as files, one per record.
type Persist struct {
	basepath string
}

func (p Persist) path(name string) string {
	return filepath.Join(p.basepath, url.PathEscape(name)+suffix)
}

// Load loads the bytes persisted for the named record. A missing
// record gives an error wrapping fs.ErrNotExist.
func (p Persist) Load(ctx context.Context, name string) ([]byte, error) {
	return os.ReadFile(p.path(name))
}

// Store persists the given bytes for the named record, replacing any
// previous version. The file is written next to its final name and
// renamed into place.
func (p Persist) Store(ctx context.Context, name string, bytes []byte) error {
	tmp, err := os.CreateTemp(p.basepath, ".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(bytes); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), p.path(name))
}

// Delete removes the named record's file, if there is one.
func (p Persist) Delete(ctx context.Context, name string) error {
	err := os.Remove(p.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// List calls f with the name of every record in the directory.
func (p Persist) List(ctx context.Context, f func(name string) error) error {
	entries, err := os.ReadDir(p.basepath)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), suffix) || strings.HasPrefix(entry.Name(), ".tmp-") {
			continue
		}
		name, err := url.PathUnescape(strings.TrimSuffix(entry.Name(), suffix))
		if err != nil {
			return fmt.Errorf("file %s: %w", entry.Name(), err)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := f(name); err != nil {
			return err
		}
	}
	return nil
}

// NewPersistForPath returns a Persist that loads and stores records as
// files in the directory at the given path, which must exist.
//
//	p := NewPersistForPath("/var/db/categories")
//	store := pathtree.NewStore(p, nil)
func NewPersistForPath(path string) Persist {
	return Persist{path}
}
