// SPDX-License-Identifier: MPL-2.0

package material

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
)

type (
	// Library maps material ids to parsed materials. It is filled once by
	// LoadDir and Merge and only read afterward.
	Library struct {
		byID    map[string]*Material
		order   []string
		skipped []Skipped
	}

	// Skipped records a document LoadDir could not parse.
	Skipped struct {
		Path string
		Err  error
	}
)

// NewLibrary returns an empty Library.
func NewLibrary() *Library {
	return &Library{byID: make(map[string]*Material)}
}

// LoadDir parses every material document below dir. A missing dir yields an
// empty library. Malformed documents are skipped and listed by Skipped; only
// scan failures and cancellation return an error.
func LoadDir(ctx context.Context, dir string) (*Library, error) {
	lib := NewLibrary()
	if dir == "" {
		return lib, nil
	}
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		slog.Debug("material directory does not exist", "dir", dir)
		return lib, nil
	}

	matches, err := doublestar.Glob(os.DirFS(dir), "**/*"+FileSuffix, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("scan materials in %s: %w", dir, err)
	}

	for _, rel := range matches {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("load materials canceled: %w", err)
		}
		path := filepath.Join(dir, filepath.FromSlash(rel))
		m, err := ParseFile(path)
		if err != nil {
			slog.Warn("skipping material", "path", path, "error", err)
			lib.skipped = append(lib.skipped, Skipped{Path: path, Err: err})
			continue
		}
		lib.Add(m)
	}

	slog.Debug("loaded materials", "dir", dir, "count", lib.Len(), "skipped", len(lib.skipped))
	return lib, nil
}

// Add registers m, replacing any material with the same id.
func (l *Library) Add(m *Material) {
	if prev, ok := l.byID[m.ID]; ok {
		slog.Warn("material shadowed", "id", m.ID, "path", m.Path, "previous", prev.Path)
	} else {
		l.order = append(l.order, m.ID)
	}
	l.byID[m.ID] = m
}

// Merge adds every material of other; materials of other win.
func (l *Library) Merge(other *Library) {
	if other == nil {
		return
	}
	l.skipped = append(l.skipped, other.skipped...)
	for _, id := range other.order {
		l.Add(other.byID[id])
	}
}

// Get returns the material with the given id.
func (l *Library) Get(id string) (*Material, bool) {
	if l == nil {
		return nil, false
	}
	m, ok := l.byID[id]
	return m, ok
}

// IDs returns material ids in load order.
func (l *Library) IDs() []string {
	if l == nil {
		return nil
	}
	out := make([]string, len(l.order))
	copy(out, l.order)
	return out
}

// Len returns the number of materials.
func (l *Library) Len() int {
	if l == nil {
		return 0
	}
	return len(l.order)
}

// Skipped returns the documents that could not be parsed, in scan order.
func (l *Library) Skipped() []Skipped {
	if l == nil {
		return nil
	}
	out := make([]Skipped, len(l.skipped))
	copy(out, l.skipped)
	return out
}
