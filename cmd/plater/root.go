// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/plater3d/plater/internal/config"
	"github.com/plater3d/plater/internal/issue"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// NewRootCommand builds the command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:   "plater",
		Short: "Resolve slicer profiles and drive CuraEngine",
		Long: TitleStyle.Render("plater") + SubtitleStyle.Render(" - resolve slicer profiles and drive CuraEngine") + `

plater reads the machine, extruder, quality and material profiles of a Cura
data directory, merges them the way Cura does, and turns the result into a
CuraEngine command line. It can also read such a command line back from an
engine log so two runs can be compared.

` + SubtitleStyle.Render("Examples:") + `
  plater profiles list                      List machines and extruders
  plater resolve "Ender" "Ender extruder"   Print merged settings
  plater slice "Ender" "Ender extruder" -o part.gcode --object part.stl
  plater parse-cli cura.log settings.txt    Extract settings from a Cura log`,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			cmd.SetOut(app.stdout)
			cmd.SetErr(app.stderr)
			slog.SetDefault(newLogger(app.stderr, app.flags.verbose, config.LogFormatText))
		},
	}
	root.SetOut(app.stdout)
	root.SetErr(app.stderr)

	flags := root.PersistentFlags()
	flags.BoolVarP(&app.flags.verbose, "verbose", "v", false, "enable verbose output")
	flags.StringVar(&app.flags.configPath, "config", "", "config file (default is $XDG_CONFIG_HOME/plater/config.cue)")
	flags.StringVar(&app.flags.dataDir, "data-dir", "", "Cura user data directory")
	flags.StringVar(&app.flags.resourcesDir, "resources-dir", "", "installed Cura resources directory")

	root.AddCommand(
		newProfilesCommand(app),
		newResolveCommand(app),
		newSliceCommand(app),
		newParseCLICommand(app),
		newDiffCommand(app),
		newMaterialsCommand(app),
		newConfigCommand(app),
	)
	return root
}

func versionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the command tree with os.Args and exits the process.
func Execute() {
	os.Exit(Run(context.Background(), NewApp(Dependencies{})))
}

// Run executes the command tree for app and returns the process exit code.
func Run(ctx context.Context, app *App) int {
	err := fang.Execute(
		ctx,
		NewRootCommand(app),
		fang.WithVersion(versionString()),
		fang.WithNotifySignal(os.Interrupt),
		fang.WithErrorHandler(func(w io.Writer, styles fang.Styles, err error) {
			app.renderError(w, styles, err)
		}),
	)
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return 1
}

// renderError prints actionable errors with their suggestions and catalog
// guidance. Other errors go to fang's default handler.
func (a *App) renderError(w io.Writer, styles fang.Styles, err error) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Err == nil {
		return
	}

	var ae *issue.ActionableError
	if !errors.As(err, &ae) {
		fang.DefaultErrorHandler(w, styles, err)
		return
	}

	fmt.Fprintln(w, ErrorStyle.Render("Error: ")+ae.Format(a.flags.verbose))
	if ae.Issue == 0 {
		return
	}
	if rendered, renderErr := issue.Get(ae.Issue).Render(a.glamourStyle()); renderErr == nil {
		fmt.Fprint(w, rendered)
	}
}

func (a *App) glamourStyle() string {
	if a.cfg != nil && a.cfg.UI.ColorScheme == config.ColorSchemeLight {
		return "light"
	}
	if os.Getenv("NO_COLOR") != "" {
		return "notty"
	}
	return "dark"
}
