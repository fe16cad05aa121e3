package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/JonMunkholm/qbank/internal/core"
)

// Dir reads .csv files from one local directory, not recursing.
type Dir struct {
	path string
}

// NewDir creates a directory source.
func NewDir(path string) *Dir {
	return &Dir{path: path}
}

// Location returns the directory path.
func (d *Dir) Location() string {
	return d.path
}

// List returns the .csv files of the directory sorted by name.
func (d *Dir) List(_ context.Context) ([]core.SourceFile, error) {
	entries, err := os.ReadDir(d.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", core.ErrSourceNotFound, d.path)
		}
		return nil, fmt.Errorf("read directory %s: %w", d.path, err)
	}

	var files []core.SourceFile
	for _, entry := range entries {
		if entry.IsDir() || !isCSV(entry.Name()) {
			continue
		}
		f := core.SourceFile{Name: entry.Name()}
		if info, err := entry.Info(); err == nil {
			f.Size = info.Size()
		}
		files = append(files, f)
	}

	return files, nil
}

// Open opens one file of the directory. name must be a bare file name.
func (d *Dir) Open(_ context.Context, name string) (io.ReadCloser, error) {
	if filepath.Base(name) != name {
		return nil, fmt.Errorf("invalid filename: %q", name)
	}
	return os.Open(filepath.Join(d.path, name))
}

// Close is a no-op.
func (d *Dir) Close() error {
	return nil
}
