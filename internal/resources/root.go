// SPDX-License-Identifier: MPL-2.0

package resources

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
)

const (
	// DefinitionSuffix marks machine and extruder definition files.
	DefinitionSuffix = ".def.json"
	// InstanceSuffix marks installed instance containers.
	InstanceSuffix = ".inst.cfg"

	// KindDefinition is a *.def.json file.
	KindDefinition Kind = "definition"
	// KindInstance is a *.inst.cfg file.
	KindInstance Kind = "instance"

	filePattern = "**/*{" + DefinitionSuffix + "," + InstanceSuffix + "}"
)

// searchDirs are the subdirectories the engine searches for definitions.
var searchDirs = []string{"definitions", "extruders", "variants"}

type (
	// Kind distinguishes the two external file kinds a container reference may name.
	Kind string

	// File is one external container file.
	File struct {
		Path string
		Kind Kind
	}

	// Root is an acquired resource tree. Close releases whatever was needed to
	// make it available; it is safe to call more than once.
	Root struct {
		path    string
		release func() error

		closeOnce sync.Once
		closeErr  error

		indexOnce sync.Once
		index     map[string][]File
		indexErr  error
	}
)

// NewRoot wraps an already available directory. release may be nil.
func NewRoot(path string, release func() error) *Root {
	return &Root{path: path, release: release}
}

// Path returns the directory holding the resource tree.
func (r *Root) Path() string { return r.path }

// Close releases the root.
func (r *Root) Close() error {
	r.closeOnce.Do(func() {
		if r.release != nil {
			r.closeErr = r.release()
		}
	})
	return r.closeErr
}

// SearchDirs returns the engine search directories that exist below the root.
func (r *Root) SearchDirs() []string {
	var out []string
	for _, d := range searchDirs {
		p := filepath.Join(r.path, d)
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			out = append(out, p)
		}
	}
	return out
}

// Lookup returns every definition or instance file whose stem is stem, in path
// order. The stem index is built on first use.
func (r *Root) Lookup(stem string) ([]File, error) {
	r.indexOnce.Do(func() {
		r.index, r.indexErr = buildStemIndex(r.path)
	})
	if r.indexErr != nil {
		return nil, r.indexErr
	}
	files := r.index[stem]
	out := make([]File, len(files))
	copy(out, files)
	return out, nil
}

func buildStemIndex(root string) (map[string][]File, error) {
	index := make(map[string][]File)
	if _, err := os.Stat(root); errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("resource root %s: %w", root, err)
	}

	matches, err := doublestar.Glob(os.DirFS(root), filePattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("scan resources in %s: %w", root, err)
	}
	slices.Sort(matches)
	for _, rel := range matches {
		base := path.Base(rel)
		f := File{Path: filepath.Join(root, filepath.FromSlash(rel))}
		var stem string
		switch {
		case strings.HasSuffix(base, DefinitionSuffix):
			stem, f.Kind = strings.TrimSuffix(base, DefinitionSuffix), KindDefinition
		case strings.HasSuffix(base, InstanceSuffix):
			stem, f.Kind = strings.TrimSuffix(base, InstanceSuffix), KindInstance
		default:
			continue
		}
		index[stem] = append(index[stem], f)
	}

	slog.Debug("indexed resource files", "root", root, "files", len(matches), "stems", len(index))
	return index, nil
}
