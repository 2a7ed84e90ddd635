// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/plater3d/plater/internal/config"
	"github.com/plater3d/plater/internal/engine"
	"github.com/plater3d/plater/internal/issue"
	"github.com/plater3d/plater/internal/settings"
	"github.com/plater3d/plater/internal/stack"
	"github.com/plater3d/plater/internal/xform"
)

// DefaultEngineBinary is run when slicer.binary is not configured.
const DefaultEngineBinary = "CuraEngine"

type sliceOptions struct {
	output        string
	objects       []string
	settingsFiles []string
	set           []string
	extruderIndex int
	dryRun        bool
	logPath       string
}

func newSliceCommand(app *App) *cobra.Command {
	opts := sliceOptions{extruderIndex: -1}
	cmd := &cobra.Command{
		Use:   "slice [machine] [extruder] -o <output> --object <spec>...",
		Short: "Slice objects with the resolved profile stack",
		Long: `Resolve the machine and extruder stacks, build the CuraEngine command line
and run it. Engine output goes to the invoke log.

An object is given as path[;pos=x,y,z][;rot=x,y,z]. Without pos the object
is centered on the bed; rot is in degrees and applied X, then Y, then Z.`,
		Example: `  plater slice Ender "Ender extruder" -o cube.gcode --object cube.stl
  plater slice -o plate.gcode --object "a.stl;pos=60,60,0" --object "b.stl;pos=120,60,0;rot=0,0,90"
  plater slice -o cube.gcode --object cube.stl --settings tweaks.txt --dry-run`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.slice(cmd.Context(), args, opts)
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&opts.output, "output", "o", "", "G-code output file")
	flags.StringArrayVar(&opts.objects, "object", nil, "object to load: path[;pos=x,y,z][;rot=x,y,z] (repeatable)")
	flags.StringArrayVar(&opts.settingsFiles, "settings", nil, "settings file with key=\"value\" lines applied over the stack (repeatable)")
	flags.StringArrayVarP(&opts.set, "set", "s", nil, "single key=value override (repeatable)")
	flags.IntVarP(&opts.extruderIndex, "extruder-index", "e", -1, "extruder used for adhesion (default printer.extruder_index)")
	flags.BoolVar(&opts.dryRun, "dry-run", false, "print the command line without running the engine")
	flags.StringVar(&opts.logPath, "log", "", "file receiving engine output (default invoke_log, - for stdout)")
	_ = cmd.MarkFlagRequired("output")
	_ = cmd.MarkFlagRequired("object")
	return cmd
}

func (a *App) slice(ctx context.Context, args []string, opts sliceOptions) error {
	machine, extruder, err := a.printerNames(ctx, args)
	if err != nil {
		return err
	}
	cfg, err := a.loadConfig(ctx)
	if err != nil {
		return err
	}

	objects := make([]engine.Object, 0, len(opts.objects))
	for _, spec := range opts.objects {
		obj, err := parseObjectSpec(spec)
		if err != nil {
			return err
		}
		objects = append(objects, obj)
	}
	overrides, err := loadOverrides(opts.settingsFiles, opts.set)
	if err != nil {
		return err
	}

	sc, err := a.openStack(ctx)
	if err != nil {
		return err
	}
	defer closeStack(sc)

	req := &engine.Request{
		Binary:        firstNonEmpty(string(cfg.Slicer.Binary), DefaultEngineBinary),
		ExtruderCount: sc.ExtruderCount(machine),
		ExtruderIndex: int(cfg.Printer.ExtruderIndex),
		Overrides:     overrides,
		Objects:       objects,
		Output:        opts.output,
	}
	if opts.extruderIndex >= 0 {
		req.ExtruderIndex = opts.extruderIndex
	}
	if req.Machine, err = sc.Machine(ctx, machine); err != nil {
		return resolveError(machine, issue.MachineNotFoundId, err)
	}
	if req.Extruder, err = sc.Extruder(ctx, extruder); err != nil {
		return resolveError(extruder, issue.ExtruderNotFoundId, err)
	}
	for _, m := range []*stack.Merged{req.Machine, req.Extruder} {
		for _, u := range m.Unresolved {
			slog.Warn("unresolved container", "owner", u.Owner, "ref", u.Ref)
		}
	}
	root, err := sc.Root(ctx)
	if err != nil {
		return issue.NewErrorContext().
			WithOperation("open slicer resources").
			WithIssue(issue.ResourcesNotFoundId).
			Wrap(err).
			BuildError()
	}
	if root != nil {
		req.SearchPath = root.SearchDirs()
	}

	inv, err := engine.Build(req)
	if err != nil {
		return err
	}
	line, err := inv.ShellLine()
	if err != nil {
		return err
	}
	if opts.dryRun {
		fmt.Fprintln(a.stdout, line)
		return nil
	}
	slog.Info("running engine", "command", line)
	return a.runEngine(ctx, cfg, inv, opts)
}

func (a *App) runEngine(ctx context.Context, cfg *config.Config, inv *engine.Invocation, opts sliceOptions) error {
	logPath := firstNonEmpty(opts.logPath, string(cfg.InvokeLog))
	var out io.Writer = a.stdout
	if logPath != "-" {
		f, err := os.Create(logPath)
		if err != nil {
			return fmt.Errorf("create invoke log: %w", err)
		}
		defer f.Close()
		out = f
	}

	start := time.Now()
	if err := a.Engine.Run(ctx, inv, out); err != nil {
		ec := issue.NewErrorContext().
			WithOperation("run slicing engine").
			WithResource(inv.Binary).
			WithIssue(issue.EngineFailedId).
			Wrap(err)
		if logPath != "-" {
			ec.WithSuggestion("See " + logPath + " for the full engine output")
		}
		var invErr *engine.InvocationError
		if errors.As(err, &invErr) && invErr.ExitCode > 0 {
			return &ExitError{Code: invErr.ExitCode, Err: ec.BuildError()}
		}
		return ec.BuildError()
	}

	size := ""
	if info, err := os.Stat(opts.output); err == nil {
		size = " (" + humanize.Bytes(uint64(info.Size())) + ")"
	}
	fmt.Fprintf(a.stdout, "%s Sliced %s%s in %s\n",
		SuccessStyle.Render("✓"), opts.output, size, time.Since(start).Round(time.Millisecond))
	return nil
}

// parseObjectSpec reads path[;pos=x,y,z][;rot=x,y,z].
func parseObjectSpec(spec string) (engine.Object, error) {
	parts := strings.Split(spec, ";")
	obj := engine.Object{Path: strings.TrimSpace(parts[0])}
	if obj.Path == "" {
		return obj, fmt.Errorf("object %q: missing path", spec)
	}
	for _, part := range parts[1:] {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			return obj, fmt.Errorf("object %q: %q is not key=value", spec, part)
		}
		switch key {
		case "pos":
			v, err := xform.ParseVector(value)
			if err != nil {
				return obj, fmt.Errorf("object %q: %w", spec, err)
			}
			obj.Position = &v
		case "rot":
			r, err := xform.ParseRotation(value)
			if err != nil {
				return obj, fmt.Errorf("object %q: %w", spec, err)
			}
			if !r.IsZero() {
				obj.Rotation = &r
			}
		default:
			return obj, fmt.Errorf("object %q: unknown attribute %q", spec, key)
		}
	}
	return obj, nil
}

// loadOverrides reads settings files in order, then the single overrides as
// one final layer.
func loadOverrides(files, set []string) ([]*settings.Map, error) {
	var out []*settings.Map
	for _, path := range files {
		m, err := settings.LoadFile(path)
		if err != nil {
			return nil, issue.NewErrorContext().
				WithOperation("read settings file").
				WithResource(path).
				WithIssue(issue.SettingsFileInvalidId).
				Wrap(err).
				BuildError()
		}
		out = append(out, m)
	}
	if len(set) == 0 {
		return out, nil
	}
	m := settings.NewMap()
	for _, kv := range set {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("--set %q: want key=value", kv)
		}
		m.Set(key, value)
	}
	return append(out, m), nil
}
