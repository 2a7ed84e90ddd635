// SPDX-License-Identifier: MPL-2.0

package stack

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/tidwall/jsonc"

	"github.com/plater3d/plater/internal/profile"
	"github.com/plater3d/plater/internal/settings"
)

// ErrDefinitionFormat is the sentinel for a malformed definition file.
var ErrDefinitionFormat = errors.New("malformed definition file")

type (
	// DefinitionFormatError is returned when a *.def.json layer is not valid
	// JSON once comments are stripped.
	DefinitionFormatError struct {
		Path string
		Err  error
	}

	// Merged is the result of folding a Resolution's layers.
	Merged struct {
		// Settings holds every value, later layers overriding earlier ones while
		// keys keep the position of their first appearance.
		Settings *settings.Map
		// Definitions lists definition files to pass to the engine, in layer order.
		Definitions []string
		Unresolved  []Unresolved
	}
)

func (e *DefinitionFormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: malformed definition: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("%s: malformed definition", e.Path)
}

func (e *DefinitionFormatError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrDefinitionFormat}
	}
	return []error{ErrDefinitionFormat, e.Err}
}

// Merge folds the layers of res in order into a fresh settings map.
// Installed profiles are parsed when they are reached; definitions are only
// checked for well-formedness and collected.
func (c *Context) Merge(ctx context.Context, res *Resolution) (*Merged, error) {
	out := &Merged{
		Settings:   settings.NewMap(),
		Unresolved: append([]Unresolved(nil), res.Unresolved...),
	}
	for _, l := range res.Layers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		switch l.Kind {
		case LayerProfile:
			out.Settings.Merge(l.Profile.Values)
		case LayerMaterial:
			out.Settings.Merge(l.Material.Values)
		case LayerInstance:
			p, err := profile.ParseFile(l.Path)
			if err != nil {
				return nil, err
			}
			out.Settings.Merge(p.Values)
		case LayerDefinition:
			if err := CheckDefinition(l.Path); err != nil {
				return nil, err
			}
			out.Definitions = append(out.Definitions, l.Path)
		default:
			_, errs := l.Kind.IsValid()
			return nil, errors.Join(errs...)
		}
	}
	return out, nil
}

// Machine resolves and merges the machine profile called name.
func (c *Context) Machine(ctx context.Context, name string) (*Merged, error) {
	res, err := c.ResolveMachine(ctx, name)
	if err != nil {
		return nil, err
	}
	return c.Merge(ctx, res)
}

// Extruder resolves and merges the extruder profile called name.
func (c *Context) Extruder(ctx context.Context, name string) (*Merged, error) {
	res, err := c.ResolveExtruder(ctx, name)
	if err != nil {
		return nil, err
	}
	return c.Merge(ctx, res)
}

// Apply folds overrides on top of the merged settings.
func (m *Merged) Apply(overrides *settings.Map) {
	m.Settings.Merge(overrides)
}

// CheckDefinition reports whether the definition file at path is valid JSON
// with comments.
func CheckDefinition(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return &DefinitionFormatError{Path: path, Err: err}
	}
	var doc map[string]any
	if err := json.Unmarshal(jsonc.ToJSON(data), &doc); err != nil {
		return &DefinitionFormatError{Path: path, Err: err}
	}
	return nil
}
