// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"

	"github.com/plater3d/plater/internal/config"
	"github.com/plater3d/plater/internal/engine"
	"github.com/plater3d/plater/internal/index"
	"github.com/plater3d/plater/internal/issue"
	"github.com/plater3d/plater/internal/resources"
	"github.com/plater3d/plater/internal/stack"
)

type (
	// App wires the services every command handler uses. Handlers never reach
	// for globals; tests build an App with their own Dependencies.
	App struct {
		Config config.Provider
		Stacks StackLoader
		Engine EngineRunner

		stdout io.Writer
		stderr io.Writer
		flags  rootFlags
		cfg    *config.Config
	}

	// Dependencies are the injection points for NewApp. Nil fields get
	// production defaults.
	Dependencies struct {
		Config config.Provider
		Stacks StackLoader
		Engine EngineRunner
		Stdout io.Writer
		Stderr io.Writer
	}

	// StackLoader opens a resolution context over a data directory.
	StackLoader interface {
		Load(ctx context.Context, opts stack.Options) (*stack.Context, error)
	}

	// EngineRunner executes a prepared engine invocation.
	EngineRunner interface {
		Run(ctx context.Context, inv *engine.Invocation, out io.Writer) error
	}

	// StackLoaderFunc adapts a function to StackLoader.
	StackLoaderFunc func(ctx context.Context, opts stack.Options) (*stack.Context, error)

	rootFlags struct {
		verbose      bool
		configPath   string
		dataDir      string
		resourcesDir string
	}
)

// Load calls f.
func (f StackLoaderFunc) Load(ctx context.Context, opts stack.Options) (*stack.Context, error) {
	return f(ctx, opts)
}

// NewApp creates an App with defaults for omitted dependencies.
func NewApp(deps Dependencies) *App {
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}
	if deps.Stacks == nil {
		deps.Stacks = StackLoaderFunc(stack.Load)
	}
	if deps.Engine == nil {
		deps.Engine = engine.NewRunner()
	}
	return &App{
		Config: deps.Config,
		Stacks: deps.Stacks,
		Engine: deps.Engine,
		stdout: deps.Stdout,
		stderr: deps.Stderr,
	}
}

// loadConfig loads the configuration once per process and installs the logger it
// asks for.
func (a *App) loadConfig(ctx context.Context) (*config.Config, error) {
	if a.cfg != nil {
		return a.cfg, nil
	}
	cfg, err := a.Config.Load(ctx, config.LoadOptions{ConfigFilePath: a.flags.configPath})
	if err != nil {
		return nil, err
	}
	if cfg.UI.Verbose {
		a.flags.verbose = true
	}
	slog.SetDefault(newLogger(a.stderr, a.flags.verbose, cfg.UI.LogFormat))
	a.cfg = cfg
	return cfg, nil
}

// openStack loads the profile index and materials for the configured data
// directory. The caller closes the returned Context.
func (a *App) openStack(ctx context.Context) (*stack.Context, error) {
	cfg, err := a.loadConfig(ctx)
	if err != nil {
		return nil, err
	}

	dataDir, err := a.dataDir(cfg)
	if err != nil {
		return nil, err
	}

	sc, err := a.Stacks.Load(ctx, stack.Options{
		DataDir: dataDir,
		Locator: a.locator(cfg),
	})
	if err != nil {
		var integrity *index.IntegrityError
		if errors.As(err, &integrity) {
			return nil, issue.NewErrorContext().
				WithOperation("index profiles").
				WithResource(dataDir).
				WithSuggestion("Rename or remove one of the two files").
				WithIssue(issue.DuplicateProfileId).
				Wrap(err).
				BuildError()
		}
		return nil, issue.NewErrorContext().
			WithOperation("load profiles").
			WithResource(dataDir).
			WithIssue(issue.ProfileParseFailedId).
			Wrap(err).
			BuildError()
	}

	for _, d := range sc.Index.Diagnostics() {
		a.logDiagnostic(d)
	}
	return sc, nil
}

// dataDir is the --data-dir flag, the configured directory or Cura's default.
func (a *App) dataDir(cfg *config.Config) (string, error) {
	if dir := firstNonEmpty(a.flags.dataDir, string(cfg.Slicer.DataDir)); dir != "" {
		return dir, nil
	}
	dir, err := resources.DefaultDataDir()
	if err != nil {
		return "", issue.NewErrorContext().
			WithOperation("locate data directory").
			WithSuggestion("Pass --data-dir or set slicer.data_dir").
			WithIssue(issue.DataDirNotFoundId).
			Wrap(err).
			BuildError()
	}
	return dir, nil
}

// locator picks the installed resource tree: an explicit directory, a mounted
// AppImage, or the tree shipped next to the engine binary.
func (a *App) locator(cfg *config.Config) resources.Locator {
	if dir := firstNonEmpty(a.flags.resourcesDir, string(cfg.Slicer.ResourcesDir)); dir != "" {
		return resources.Dir(dir)
	}
	if cfg.Slicer.Binary == "" {
		return nil
	}
	if cfg.Slicer.AppImage {
		return resources.NewAppImage(string(cfg.Slicer.Binary))
	}
	dir, err := resources.InstalledDir(string(cfg.Slicer.Binary))
	if err != nil {
		slog.Debug("no installed resources", "binary", cfg.Slicer.Binary, "error", err)
		return nil
	}
	return dir
}

func (a *App) logDiagnostic(d index.Diagnostic) {
	attrs := []any{"code", d.Code}
	if d.Path != "" {
		attrs = append(attrs, "path", d.Path)
	}
	if d.Cause != nil {
		attrs = append(attrs, "error", d.Cause)
	}
	switch d.Severity {
	case index.SeverityError:
		slog.Error(d.Message, attrs...)
	case index.SeverityWarning:
		slog.Warn(d.Message, attrs...)
	default:
		slog.Debug(d.Message, attrs...)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
