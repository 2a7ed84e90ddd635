// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/plater3d/plater/internal/engine"
	"github.com/plater3d/plater/internal/issue"
	"github.com/plater3d/plater/internal/settings"
)

func newParseCLICommand(app *App) *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "parse-cli <logfile> [output]",
		Short: "Extract the settings CuraEngine was run with from its log",
		Long: `Find the last engine command line in a CuraEngine (or Cura) log, parse it
into scoped settings and write them as a settings file. Repeated keys are
kept as #duplicate comments; day and time are written as #disabled.

With --raw the input is a bare command line rather than a log. Without an
output file the settings are written to stdout.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readCommandLine(app, args[0], raw)
			if err != nil {
				return err
			}
			triples, err := engine.ParseCommandLine(text)
			if err != nil {
				return issue.NewErrorContext().
					WithOperation("parse command line").
					WithResource(args[0]).
					WithIssue(issue.CommandLineParseFailedId).
					Wrap(err).
					BuildError()
			}
			entries := settings.Clean(triples)

			if len(args) < 2 {
				return settings.Write(app.stdout, entries)
			}
			f, err := os.Create(args[1])
			if err != nil {
				return err
			}
			if err := settings.Write(f, entries); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(app.stderr, "%s Wrote %d settings to %s\n", SuccessStyle.Render("✓"), len(settings.Effective(entries)), args[1])
			return nil
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "input is a command line, not a log")
	return cmd
}

func readCommandLine(app *App, path string, raw bool) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if raw {
		data, err := io.ReadAll(f)
		return string(data), err
	}

	blocks, err := engine.ScanLogSettings(f)
	if err != nil {
		return "", issue.NewErrorContext().
			WithOperation("scan engine log").
			WithResource(path).
			WithIssue(issue.CommandLineParseFailedId).
			Wrap(err).
			BuildError()
	}
	if len(blocks) == 0 {
		return "", issue.NewErrorContext().
			WithOperation("scan engine log").
			WithResource(path).
			WithSuggestion("Pass --raw if the file holds a bare command line").
			WithIssue(issue.CommandLineParseFailedId).
			Wrap(engine.ErrNoLogSettings).
			BuildError()
	}
	fmt.Fprintf(app.stderr, "Found %d command line(s), using the last one\n", len(blocks))
	return blocks[len(blocks)-1], nil
}
