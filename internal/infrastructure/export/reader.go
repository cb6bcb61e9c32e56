// Package export reads the artifacts of a previous stack export, either from
// a local directory or from S3-compatible object storage.
package export

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/contentstack/cli-sub008/internal/domain/migration"
)

// Reader reads export artifacts by slash-separated relative path
type Reader interface {
	// Exists reports whether an artifact is present
	Exists(ctx context.Context, path string) bool

	// ReadJSON returns the artifact contents. ok is false when the artifact
	// is missing; err is set when it exists but cannot be read.
	ReadJSON(ctx context.Context, path string) (data []byte, ok bool, err error)
}

var (
	// ErrUnreadable is returned when an artifact exists but cannot be read
	ErrUnreadable = errors.New("export artifact unreadable")
	// ErrOutsideRoot is returned for paths that leave the export root
	ErrOutsideRoot = errors.New("export path outside root")
)

// cleanPath returns path without a leading slash, rejecting ".." elements
// and other paths that fs.ValidPath refuses.
func cleanPath(path string) (string, error) {
	clean := strings.TrimPrefix(path, "/")
	if !fs.ValidPath(clean) {
		return "", fmt.Errorf("%w: %q", ErrOutsideRoot, path)
	}
	return clean, nil
}

// KindPath returns the main artifact path of an entity kind,
// e.g. "marketplace_apps/marketplace_apps.json"
func KindPath(kind migration.EntityKind) string {
	dir := kind.DirName()
	return dir + "/" + dir + ".json"
}

// ReadRecords reads and decodes a record collection. A missing artifact
// yields no records and no error.
func ReadRecords(ctx context.Context, r Reader, path string) ([]migration.Record, error) {
	data, ok, err := r.ReadJSON(ctx, path)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	records, err := migration.DecodeRecords(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnreadable, path, err)
	}
	return records, nil
}

// LocalReader reads artifacts from a directory
type LocalReader struct {
	root string
}

var _ Reader = (*LocalReader)(nil)

// NewLocalReader creates a reader rooted at dir
func NewLocalReader(dir string) *LocalReader {
	return &LocalReader{root: dir}
}

// Root returns the export directory
func (r *LocalReader) Root() string {
	return r.root
}

// Exists implements Reader
func (r *LocalReader) Exists(_ context.Context, path string) bool {
	file, err := r.resolve(path)
	if err != nil {
		return false
	}
	info, err := os.Stat(file)
	return err == nil && !info.IsDir()
}

// ReadJSON implements Reader
func (r *LocalReader) ReadJSON(_ context.Context, path string) ([]byte, bool, error) {
	file, err := r.resolve(path)
	if err != nil {
		return nil, false, err
	}
	data, err := os.ReadFile(file)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, true, fmt.Errorf("%w: %s: %v", ErrUnreadable, path, err)
	}
	return data, true, nil
}

func (r *LocalReader) resolve(path string) (string, error) {
	clean, err := cleanPath(path)
	if err != nil {
		return "", err
	}
	return filepath.Join(r.root, filepath.FromSlash(clean)), nil
}
