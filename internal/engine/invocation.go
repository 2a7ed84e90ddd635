// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"mvdan.cc/sh/v3/syntax"

	"github.com/plater3d/plater/internal/settings"
	"github.com/plater3d/plater/internal/stack"
	"github.com/plater3d/plater/internal/xform"
)

const (
	// SliceCommand is the engine subcommand every invocation uses.
	SliceCommand = "slice"
	// SearchPathEnv tells the engine where to find definition files.
	SearchPathEnv = "CURA_ENGINE_SEARCH_PATH"

	// Engine flags.
	FlagDefinition = "-j"
	FlagSetting    = "-s"
	FlagLoad       = "-l"
	FlagOutput     = "-o"
	FlagVerbose    = "-v"
	FlagGroup      = "-g"
	FlagNextGroup  = "--next"
	FlagExtruder   = "-e"
	FlagProgress   = "-p"
)

var (
	// ErrInvalidRequest is returned by Build for a request it cannot render.
	ErrInvalidRequest = errors.New("invalid invocation request")
	// ErrUnrenderable is returned by CommandLine for tokens the log grammar
	// cannot express.
	ErrUnrenderable = errors.New("token cannot be rendered")
)

type (
	// Object is one mesh to load.
	Object struct {
		Path string
		// Position places the mesh; nil centers it on the bed.
		Position *[3]float64
		// Rotation is applied before loading; nil leaves the mesh as is.
		Rotation *xform.Rotation
	}

	// Request describes one slicing run.
	Request struct {
		Binary string
		// Machine and Extruder are the merged stacks; machine settings come
		// first and extruder settings win on duplicate keys.
		Machine  *stack.Merged
		Extruder *stack.Merged
		// ExtruderCount is the number of extruders the machine has.
		ExtruderCount int
		// ExtruderIndex selects the extruder used for adhesion.
		ExtruderIndex int
		// Overrides are folded over the general settings in order.
		Overrides []*settings.Map
		Objects   []Object
		Output    string
		// SearchPath lists definition directories exported to the engine.
		SearchPath []string
	}

	// Invocation is a fully rendered engine command.
	Invocation struct {
		Binary string
		// Args are the arguments after Binary.
		Args []string
		// Env holds KEY=value entries added to the engine's environment.
		Env []string
	}
)

// Build renders req into an Invocation. Token order: the slice subcommand,
// definition files (machine, then extruder), topology settings, general
// settings, per object rotation, load and placement, then output and -v.
func Build(req *Request) (*Invocation, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	args := []string{SliceCommand}
	for _, m := range []*stack.Merged{req.Machine, req.Extruder} {
		if m == nil {
			continue
		}
		for _, def := range m.Definitions {
			args = append(args, FlagDefinition, def)
		}
	}

	args = appendSetting(args, "machine_extruder_count", strconv.Itoa(req.ExtruderCount))
	args = appendSetting(args, "adhesion_extruder_nr", strconv.Itoa(req.ExtruderIndex))

	for k, v := range GeneralSettings(req).All() {
		args = appendSetting(args, k, v)
	}

	for _, obj := range req.Objects {
		if obj.Rotation != nil {
			args = appendSetting(args, "mesh_rotation_matrix", obj.Rotation.Matrix().String())
		}
		args = append(args, FlagLoad, obj.Path)
		if obj.Position == nil {
			args = appendSetting(args, "center_object", "true")
			continue
		}
		for i, axis := range []string{"x", "y", "z"} {
			args = appendSetting(args, "mesh_position_"+axis, xform.FormatFloat(obj.Position[i]))
		}
	}

	args = append(args, FlagOutput, req.Output, FlagVerbose)

	inv := &Invocation{Binary: req.Binary, Args: args}
	if len(req.SearchPath) > 0 {
		inv.Env = []string{SearchPathEnv + "=" + strings.Join(req.SearchPath, ":")}
	}
	return inv, nil
}

// GeneralSettings folds the machine settings, the extruder settings and the
// overrides in that order. Keys keep the position of their first appearance.
func GeneralSettings(req *Request) *settings.Map {
	out := settings.NewMap()
	if req.Machine != nil {
		out.Merge(req.Machine.Settings)
	}
	if req.Extruder != nil {
		out.Merge(req.Extruder.Settings)
	}
	for _, o := range req.Overrides {
		out.Merge(o)
	}
	return out
}

func appendSetting(args []string, key, value string) []string {
	return append(args, FlagSetting, key+"="+value)
}

func validate(req *Request) error {
	switch {
	case req == nil:
		return fmt.Errorf("%w: nil request", ErrInvalidRequest)
	case req.Binary == "":
		return fmt.Errorf("%w: engine binary is required", ErrInvalidRequest)
	case req.Output == "":
		return fmt.Errorf("%w: output path is required", ErrInvalidRequest)
	case req.ExtruderCount < 1:
		return fmt.Errorf("%w: machine has no extruders", ErrInvalidRequest)
	case req.ExtruderIndex < 0 || req.ExtruderIndex >= req.ExtruderCount:
		return fmt.Errorf("%w: extruder index %d out of range [0, %d)", ErrInvalidRequest, req.ExtruderIndex, req.ExtruderCount)
	case len(req.Objects) == 0:
		return fmt.Errorf("%w: at least one object is required", ErrInvalidRequest)
	}
	for i, obj := range req.Objects {
		if obj.Path == "" {
			return fmt.Errorf("%w: object %d has no path", ErrInvalidRequest, i)
		}
	}
	for k := range GeneralSettings(req).All() {
		if k == "" || strings.ContainsAny(k, " =\"\n") {
			return fmt.Errorf("%w: invalid setting key %q", ErrInvalidRequest, k)
		}
	}
	return nil
}

// Tokens returns the binary followed by its arguments.
func (inv *Invocation) Tokens() []string {
	return append([]string{inv.Binary}, inv.Args...)
}

// CommandLine renders the invocation the way the engine logs it: settings as
// key="value" with newlines escaped, and paths containing spaces quoted.
func (inv *Invocation) CommandLine() (string, error) {
	tokens := inv.Tokens()
	out := make([]string, 0, len(tokens))
	for i, tok := range tokens {
		if strings.Contains(tok, `"`) {
			return "", fmt.Errorf("%w: %q contains a double quote", ErrUnrenderable, tok)
		}
		if i > 0 && tokens[i-1] == FlagSetting {
			key, value, _ := strings.Cut(tok, "=")
			out = append(out, key+`="`+settings.Escape(value)+`"`)
			continue
		}
		if strings.ContainsAny(tok, " \n") {
			tok = `"` + settings.Escape(tok) + `"`
		}
		out = append(out, tok)
	}
	return strings.Join(out, " "), nil
}

// ShellLine renders the invocation as a command that can be pasted into
// bash, environment assignments first.
func (inv *Invocation) ShellLine() (string, error) {
	var parts []string
	for _, kv := range inv.Env {
		k, v, _ := strings.Cut(kv, "=")
		q, err := syntax.Quote(v, syntax.LangBash)
		if err != nil {
			return "", fmt.Errorf("quote %s: %w", k, err)
		}
		parts = append(parts, k+"="+q)
	}
	for _, tok := range inv.Tokens() {
		q, err := syntax.Quote(tok, syntax.LangBash)
		if err != nil {
			return "", fmt.Errorf("quote %q: %w", tok, err)
		}
		parts = append(parts, q)
	}
	return strings.Join(parts, " "), nil
}
