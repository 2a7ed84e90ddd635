// SPDX-License-Identifier: MPL-2.0

package index

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/plater3d/plater/internal/profile"
)

// ProfilePattern selects profile files below the data directory.
const ProfilePattern = "**/*.cfg"

// ErrIntegrity is the sentinel error wrapped by IntegrityError.
var ErrIntegrity = errors.New("profile integrity violation")

type (
	// IntegrityError reports two profile files that map to the same stable id.
	IntegrityError struct {
		ID     string
		First  string
		Second string
	}

	// Index holds the profiles found below one data directory.
	Index struct {
		root        string
		paths       map[string]string
		profiles    map[string]*profile.Profile
		order       []string
		names       map[string][]string
		diagnostics []Diagnostic
	}
)

// Error implements the error interface for IntegrityError.
func (e *IntegrityError) Error() string {
	return fmt.Sprintf("duplicate profile id %q: %s and %s", e.ID, e.First, e.Second)
}

// Unwrap returns ErrIntegrity for errors.Is() compatibility.
func (e *IntegrityError) Unwrap() error { return ErrIntegrity }

// Build scans root for profile files. Every scanned file claims its stable id;
// a second file claiming the same id aborts the build with *IntegrityError.
// Files that fail to parse or carry an unsupported setting version are skipped
// and reported as diagnostics. A missing root yields an empty index.
func Build(ctx context.Context, root string) (*Index, error) {
	idx := &Index{
		root:     root,
		paths:    make(map[string]string),
		profiles: make(map[string]*profile.Profile),
		names:    make(map[string][]string),
	}

	if _, err := os.Stat(root); errors.Is(err, fs.ErrNotExist) {
		idx.report(Diagnostic{
			Severity: SeverityInfo,
			Code:     CodeRootMissing,
			Message:  "profile directory does not exist",
			Path:     root,
		})
		return idx, nil
	}

	matches, err := doublestar.Glob(os.DirFS(root), ProfilePattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("scan profiles in %s: %w", root, err)
	}

	for _, rel := range matches {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("build index canceled: %w", err)
		}
		path := filepath.Join(root, filepath.FromSlash(rel))

		id := profile.StemID(path)
		if prev, ok := idx.paths[id]; ok {
			return nil, &IntegrityError{ID: id, First: prev, Second: path}
		}
		idx.paths[id] = path

		p, err := profile.ParseFile(path)
		if err != nil {
			idx.report(Diagnostic{
				Severity: SeverityError,
				Code:     CodeProfileParseSkipped,
				Message:  "profile could not be parsed",
				Path:     path,
				Cause:    err,
			})
			continue
		}
		if !p.Supported() {
			idx.report(Diagnostic{
				Severity: SeverityWarning,
				Code:     CodeUnsupportedSettingVersion,
				Message:  fmt.Sprintf("unsupported setting version %q", p.SettingVersion),
				Path:     path,
			})
			continue
		}

		idx.profiles[id] = p
		idx.order = append(idx.order, id)
		idx.registerName(p)
	}

	slog.Debug("built profile index", "root", root, "files", len(idx.paths), "profiles", len(idx.order))
	return idx, nil
}

// registerName applies the name collision policy. The first profile to use a
// name wins silently. A colliding quality_changes profile is dropped if it is
// a draft; otherwise draft entries already registered are dropped and the new
// id is appended. Any other collision replaces the registration.
func (idx *Index) registerName(p *profile.Profile) {
	existing, ok := idx.names[p.Name]
	if !ok {
		idx.names[p.Name] = []string{p.ID}
		return
	}

	if p.Type != profile.TypeQualityChanges {
		idx.report(Diagnostic{
			Severity: SeverityWarning,
			Code:     CodeNameOverwritten,
			Message:  fmt.Sprintf("duplicate name %q, overwriting %v", p.Name, idx.pathsFor(existing)),
			Path:     p.Path,
		})
		idx.names[p.Name] = []string{p.ID}
		return
	}

	if p.IsDraft() {
		idx.reportDraft(p.Name, p.Path)
		return
	}

	kept := make([]string, 0, len(existing)+1)
	for _, id := range existing {
		if old := idx.profiles[id]; old.IsDraft() {
			idx.reportDraft(p.Name, old.Path)
			continue
		}
		kept = append(kept, id)
	}
	idx.names[p.Name] = append(kept, p.ID)
}

func (idx *Index) reportDraft(name, path string) {
	idx.report(Diagnostic{
		Severity: SeverityWarning,
		Code:     CodeDraftQualityIgnored,
		Message:  fmt.Sprintf("ignoring draft quality %q", name),
		Path:     path,
	})
}

func (idx *Index) report(d Diagnostic) {
	slog.Debug(d.Message, "code", d.Code, "path", d.Path)
	idx.diagnostics = append(idx.diagnostics, d)
}

func (idx *Index) pathsFor(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, idx.paths[id])
	}
	return out
}
