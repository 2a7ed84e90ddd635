// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/plater3d/plater/internal/issue"
	"github.com/plater3d/plater/internal/resources"
	"github.com/plater3d/plater/internal/settings"
	"github.com/plater3d/plater/internal/stack"
	"github.com/plater3d/plater/internal/watch"
)

// Output formats accepted by --format.
const (
	formatText = "text"
	formatJSON = "json"
	formatTOML = "toml"
	formatYAML = "yaml"
)

var outputFormats = []string{formatText, formatJSON, formatTOML, formatYAML}

type (
	// resolvedDocument is what `plater resolve` prints: the layers of both
	// stacks and the merged general settings.
	resolvedDocument struct {
		Machine     string          `json:"machine" yaml:"machine"`
		Extruder    string          `json:"extruder" yaml:"extruder"`
		Layers      []layerDocument `json:"layers" yaml:"layers"`
		Definitions []string        `json:"definitions,omitempty" yaml:"definitions,omitempty"`
		Unresolved  []string        `json:"unresolved,omitempty" yaml:"unresolved,omitempty"`
		Settings    *settings.Map   `json:"settings" yaml:"settings"`
	}

	layerDocument struct {
		Owner string `json:"owner" yaml:"owner" toml:"owner"`
		Kind  string `json:"kind" yaml:"kind" toml:"kind"`
		Ref   string `json:"ref" yaml:"ref" toml:"ref"`
		Path  string `json:"path,omitempty" yaml:"path,omitempty" toml:"path,omitempty"`
	}

	// tomlDocument mirrors resolvedDocument with a plain settings table;
	// TOML tables have no key order.
	tomlDocument struct {
		Machine     string            `toml:"machine"`
		Extruder    string            `toml:"extruder"`
		Definitions []string          `toml:"definitions,omitempty"`
		Unresolved  []string          `toml:"unresolved,omitempty"`
		Layers      []layerDocument   `toml:"layers"`
		Settings    map[string]string `toml:"settings"`
	}
)

func newResolveCommand(app *App) *cobra.Command {
	var (
		format  string
		watchFS bool
	)
	cmd := &cobra.Command{
		Use:   "resolve [machine] [extruder]",
		Short: "Print the merged settings of a machine and extruder",
		Long: `Resolve the container stacks of a machine and one of its extruders and
print every layer together with the merged settings. Extruder settings win
over machine settings. Names default to printer.machine and printer.extruder
from the configuration.

With --watch the result is printed again whenever a profile, material or
definition file changes.`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(outputFormats, format) {
				return fmt.Errorf("unknown format %q (want one of %v)", format, outputFormats)
			}
			machine, extruder, err := app.printerNames(cmd.Context(), args)
			if err != nil {
				return err
			}
			if watchFS {
				return app.watchResolve(cmd.Context(), machine, extruder, format)
			}
			return app.resolveOnce(cmd.Context(), machine, extruder, format)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", formatText, "output format (text, json, toml, yaml)")
	cmd.Flags().BoolVarP(&watchFS, "watch", "w", false, "re-resolve when profile files change")
	return cmd
}

// printerNames takes machine and extruder from args, falling back to the
// configured printer.
func (a *App) printerNames(ctx context.Context, args []string) (string, string, error) {
	cfg, err := a.loadConfig(ctx)
	if err != nil {
		return "", "", err
	}
	machine, extruder := cfg.Printer.Machine, cfg.Printer.Extruder
	if len(args) > 0 {
		machine = args[0]
	}
	if len(args) > 1 {
		extruder = args[1]
	}
	if machine == "" || extruder == "" {
		return "", "", errors.New("machine and extruder are required (pass them or set printer.machine and printer.extruder)")
	}
	return machine, extruder, nil
}

func (a *App) resolveOnce(ctx context.Context, machine, extruder, format string) error {
	sc, err := a.openStack(ctx)
	if err != nil {
		return err
	}
	defer closeStack(sc)

	doc, err := resolveDocument(ctx, sc, machine, extruder)
	if err != nil {
		return err
	}
	return writeResolved(a.stdout, format, doc)
}

// watchResolve prints the resolution and repeats it after every change. Each
// round opens a fresh stack.
func (a *App) watchResolve(ctx context.Context, machine, extruder, format string) error {
	if err := a.resolveOnce(ctx, machine, extruder, format); err != nil {
		slog.Error("resolve failed", "error", err)
	}

	cfg, err := a.loadConfig(ctx)
	if err != nil {
		return err
	}
	dataDir, err := a.dataDir(cfg)
	if err != nil {
		return err
	}
	roots := []string{dataDir}
	if dir, ok := a.locator(cfg).(resources.Dir); ok {
		roots = append(roots, string(dir))
	}

	w, err := watch.New(watch.Config{
		Roots: roots,
		OnChange: func(ctx context.Context, changed []string) error {
			fmt.Fprintln(a.stderr, SubtitleStyle.Render(fmt.Sprintf("%d file(s) changed, resolving again", len(changed))))
			return a.resolveOnce(ctx, machine, extruder, format)
		},
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(a.stderr, SubtitleStyle.Render("watching "+fmt.Sprint(w.Roots())+", press Ctrl+C to stop"))
	return w.Run(ctx)
}

func resolveDocument(ctx context.Context, sc *stack.Context, machine, extruder string) (*resolvedDocument, error) {
	doc := &resolvedDocument{Machine: machine, Extruder: extruder, Settings: settings.NewMap()}

	steps := []struct {
		name    string
		resolve func(context.Context, string) (*stack.Resolution, error)
		issue   issue.Id
	}{
		{machine, sc.ResolveMachine, issue.MachineNotFoundId},
		{extruder, sc.ResolveExtruder, issue.ExtruderNotFoundId},
	}
	for _, step := range steps {
		res, err := step.resolve(ctx, step.name)
		if err != nil {
			return nil, resolveError(step.name, step.issue, err)
		}
		merged, err := sc.Merge(ctx, res)
		if err != nil {
			return nil, resolveError(step.name, issue.ProfileParseFailedId, err)
		}
		for _, l := range res.Layers {
			doc.Layers = append(doc.Layers, layerDocument{Owner: res.Owner, Kind: l.Kind.String(), Ref: l.Ref, Path: l.Path})
		}
		for _, u := range merged.Unresolved {
			doc.Unresolved = append(doc.Unresolved, u.String())
		}
		doc.Definitions = append(doc.Definitions, merged.Definitions...)
		doc.Settings.Merge(merged.Settings)
	}
	return doc, nil
}

func resolveError(name string, id issue.Id, err error) error {
	ec := issue.NewErrorContext().
		WithOperation("resolve profile").
		WithResource(name).
		WithIssue(id).
		Wrap(err)
	if errors.Is(err, stack.ErrNotFound) {
		ec.WithSuggestion("Run 'plater profiles list' to see the available names")
	}
	return ec.BuildError()
}

func writeResolved(w io.Writer, format string, doc *resolvedDocument) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	case formatTOML:
		return toml.NewEncoder(w).Encode(tomlDocument{
			Machine:     doc.Machine,
			Extruder:    doc.Extruder,
			Definitions: doc.Definitions,
			Unresolved:  doc.Unresolved,
			Layers:      doc.Layers,
			Settings:    doc.Settings.ToMap(),
		})
	default:
		return writeResolvedText(w, doc)
	}
}

func writeResolvedText(w io.Writer, doc *resolvedDocument) error {
	fmt.Fprintln(w, TitleStyle.Render(doc.Machine+" / "+doc.Extruder))
	fmt.Fprintln(w)
	owner := ""
	for _, l := range doc.Layers {
		if l.Owner != owner {
			owner = l.Owner
			fmt.Fprintln(w, KeyStyle.Render(owner+":"))
		}
		line := "  " + layerKindStyle.Render(l.Kind) + l.Ref
		if l.Path != "" {
			line += "  " + SubtitleStyle.Render(l.Path)
		}
		fmt.Fprintln(w, line)
	}
	for _, u := range doc.Unresolved {
		fmt.Fprintln(w, WarningStyle.Render("  unresolved "+u))
	}
	fmt.Fprintln(w)
	return settings.WritePairs(w, doc.Settings.Pairs())
}

func closeStack(sc *stack.Context) {
	if err := sc.Close(); err != nil {
		slog.Warn("release resources", "error", err)
	}
}
