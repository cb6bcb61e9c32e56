package mapper

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/contentstack/cli-sub008/internal/domain/migration"
)

const (
	mapperDir       = "mapper"
	uidMappingFile  = "uid-mapping.json"
	successFile     = "success.json"
	failsFile       = "fails.json"
	defaultDirPerms = 0o755
)

// Layout locates the mapper files of one entity kind under a run base path:
//
//	<base>/mapper/<entity>/uid-mapping.json
//	<base>/mapper/<entity>/success.json
//	<base>/mapper/<entity>/fails.json
type Layout struct {
	base string
	kind migration.EntityKind
}

// NewLayout returns the layout for kind under base
func NewLayout(base string, kind migration.EntityKind) Layout {
	return Layout{base: base, kind: kind}
}

// Kind returns the entity kind
func (l Layout) Kind() migration.EntityKind {
	return l.kind
}

// Dir returns the entity's mapper directory
func (l Layout) Dir() string {
	return filepath.Join(l.base, mapperDir, l.kind.DirName())
}

// UIDMappingPath returns the identifier map file
func (l Layout) UIDMappingPath() string {
	return filepath.Join(l.Dir(), uidMappingFile)
}

// SuccessPath returns the success ledger file
func (l Layout) SuccessPath() string {
	return filepath.Join(l.Dir(), successFile)
}

// FailsPath returns the failure ledger file
func (l Layout) FailsPath() string {
	return filepath.Join(l.Dir(), failsFile)
}

// Sub returns the layout of a nested ledger group, e.g. "terms"
func (l Layout) Sub(name string) SubLayout {
	return SubLayout{dir: filepath.Join(l.Dir(), name)}
}

// EnsureDir creates the mapper directory
func (l Layout) EnsureDir() error {
	return os.MkdirAll(l.Dir(), defaultDirPerms)
}

// Exists reports whether the mapper directory exists
func (l Layout) Exists() bool {
	info, err := os.Stat(l.Dir())
	if errors.Is(err, fs.ErrNotExist) {
		return false
	}
	return err == nil && info.IsDir()
}

// SubLayout holds ledger paths for a nested group
type SubLayout struct {
	dir string
}

// UIDMappingPath returns the nested identifier map file
func (s SubLayout) UIDMappingPath() string {
	return filepath.Join(s.dir, uidMappingFile)
}

// SuccessPath returns the nested success ledger file
func (s SubLayout) SuccessPath() string {
	return filepath.Join(s.dir, successFile)
}

// FailsPath returns the nested failure ledger file
func (s SubLayout) FailsPath() string {
	return filepath.Join(s.dir, failsFile)
}
