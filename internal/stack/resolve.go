// SPDX-License-Identifier: MPL-2.0

package stack

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/plater3d/plater/internal/material"
	"github.com/plater3d/plater/internal/profile"
	"github.com/plater3d/plater/internal/resources"
)

const (
	// EmptyMarker is the reserved container reference meaning "no layer".
	EmptyMarker = "empty"

	// LayerProfile is a profile from the user data index.
	LayerProfile LayerKind = "profile"
	// LayerMaterial is a material document.
	LayerMaterial LayerKind = "material"
	// LayerDefinition is an installed *.def.json definition.
	LayerDefinition LayerKind = "definition"
	// LayerInstance is an installed *.inst.cfg profile.
	LayerInstance LayerKind = "instance"
)

var (
	// ErrNotFound is returned when a machine or extruder name is not indexed.
	ErrNotFound = errors.New("profile not found")

	// ErrInvalidLayerKind is the sentinel for an unknown LayerKind.
	ErrInvalidLayerKind = errors.New("invalid layer kind")
)

type (
	// LayerKind identifies where a resolved layer came from.
	LayerKind string

	// InvalidLayerKindError is returned when a LayerKind is not one of the known kinds.
	InvalidLayerKindError struct {
		Value LayerKind
	}

	// Layer is one resolved container. Exactly one of Profile and Material is
	// set for index and material layers; external layers carry only a Path.
	Layer struct {
		Kind LayerKind
		// Ref is the container reference this layer was resolved from.
		Ref      string
		ID       string
		Path     string
		Profile  *profile.Profile
		Material *material.Material
	}

	// Unresolved records a reference no source could satisfy.
	Unresolved struct {
		Owner string
		Ref   string
	}

	// Resolution is the ordered list of layers for one owner profile.
	Resolution struct {
		Owner      string
		Layers     []Layer
		Unresolved []Unresolved
	}

	// NotFoundError is returned by ResolveMachine and ResolveExtruder.
	NotFoundError struct {
		Type profile.Type
		Name string
	}
)

func (e *InvalidLayerKindError) Error() string {
	return fmt.Sprintf("invalid layer kind %q (valid: profile, material, definition, instance)", e.Value)
}

func (e *InvalidLayerKindError) Unwrap() error { return ErrInvalidLayerKind }

// IsValid returns whether k is a known layer kind.
func (k LayerKind) IsValid() (bool, []error) {
	switch k {
	case LayerProfile, LayerMaterial, LayerDefinition, LayerInstance:
		return true, nil
	default:
		return false, []error{&InvalidLayerKindError{Value: k}}
	}
}

func (k LayerKind) String() string { return string(k) }

func (e *NotFoundError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("no profile named %q", e.Name)
	}
	return fmt.Sprintf("no %s profile named %q", e.Type, e.Name)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

func (u Unresolved) String() string {
	return fmt.Sprintf("%s: %s", u.Owner, u.Ref)
}

// IsEmptyMarker reports whether ref is the reserved empty marker or one of
// its prefixed variants such as "empty_quality".
func IsEmptyMarker(ref string) bool {
	return ref == EmptyMarker || strings.HasPrefix(ref, EmptyMarker+"_")
}

// Definitions returns the paths of the definition layers in order.
func (r *Resolution) Definitions() []string {
	var out []string
	for _, l := range r.Layers {
		if l.Kind == LayerDefinition {
			out = append(out, l.Path)
		}
	}
	return out
}

// Resolve turns the container references of owner into layers. Each reference
// is tried as a logical name, the empty marker, a profile id, a material id
// and finally a file stem in the installed resource tree. References nothing
// matches are recorded and logged but do not fail the resolution.
func (c *Context) Resolve(ctx context.Context, owner string, refs []string) (*Resolution, error) {
	res := &Resolution{Owner: owner}
	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ok, err := c.resolveRef(ctx, res, ref)
		if err != nil {
			return nil, err
		}
		if !ok {
			res.Unresolved = append(res.Unresolved, Unresolved{Owner: owner, Ref: ref})
			slog.Warn("container reference not found", "owner", owner, "ref", ref)
		}
	}
	return res, nil
}

func (c *Context) resolveRef(ctx context.Context, res *Resolution, ref string) (bool, error) {
	if ids := c.Index.ByName(ref); len(ids) > 0 {
		for _, id := range ids {
			p, _ := c.Index.ByID(id)
			res.Layers = append(res.Layers, Layer{Kind: LayerProfile, Ref: ref, ID: id, Path: p.Path, Profile: p})
		}
		return true, nil
	}
	if IsEmptyMarker(ref) {
		return true, nil
	}
	if p, ok := c.Index.ByID(ref); ok {
		res.Layers = append(res.Layers, Layer{Kind: LayerProfile, Ref: ref, ID: ref, Path: p.Path, Profile: p})
		return true, nil
	}

	m, ok, err := c.Material(ctx, ref)
	if err != nil {
		return false, err
	}
	if ok {
		res.Layers = append(res.Layers, Layer{Kind: LayerMaterial, Ref: ref, ID: ref, Path: m.Path, Material: m})
		return true, nil
	}

	root, err := c.Root(ctx)
	if err != nil {
		return false, err
	}
	if root == nil {
		return false, nil
	}
	files, err := root.Lookup(ref)
	if err != nil {
		return false, err
	}
	for _, f := range files {
		kind := LayerInstance
		if f.Kind == resources.KindDefinition {
			kind = LayerDefinition
		}
		res.Layers = append(res.Layers, Layer{Kind: kind, Ref: ref, ID: ref, Path: f.Path})
	}
	return len(files) > 0, nil
}

// ResolveMachine resolves the containers of the machine profile called name.
func (c *Context) ResolveMachine(ctx context.Context, name string) (*Resolution, error) {
	p, ok := c.Index.MachineByName(name)
	if !ok {
		return nil, &NotFoundError{Type: profile.TypeMachine, Name: name}
	}
	return c.Resolve(ctx, p.ID, p.Containers)
}

// ResolveExtruder resolves the containers of the extruder profile called name.
func (c *Context) ResolveExtruder(ctx context.Context, name string) (*Resolution, error) {
	p, ok := c.Index.ExtruderByName(name)
	if !ok {
		return nil, &NotFoundError{Type: profile.TypeExtruderTrain, Name: name}
	}
	return c.Resolve(ctx, p.ID, p.Containers)
}
