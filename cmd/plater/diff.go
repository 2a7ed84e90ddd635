// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/plater3d/plater/internal/issue"
	"github.com/plater3d/plater/internal/settings"
)

func newDiffCommand(app *App) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "diff <file1> <file2>",
		Short: "Compare two settings files",
		Long: `Compare two settings files key by key. Only the last value of a repeated
key counts; booleans compare case-insensitively and numbers by value.

With -o the keys of file1 that are missing from or different in file2 are
written as a settings file, ready to be passed to 'plater slice --settings'.
The exit status is 1 when the files differ.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := readSettingsFile(args[0])
			if err != nil {
				return err
			}
			b, err := readSettingsFile(args[1])
			if err != nil {
				return err
			}
			d := settings.Diff(a, b)
			writeDifference(app.stdout, d, args[0], args[1])

			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				if err := settings.WritePairs(f, d.ASide()); err != nil {
					f.Close()
					return err
				}
				if err := f.Close(); err != nil {
					return err
				}
			}
			if !d.Empty() {
				return &ExitError{Code: 1}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write file1's differing settings here")
	return cmd
}

func readSettingsFile(path string) ([]settings.Pair, error) {
	pairs, err := settings.ReadFile(path)
	if err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("read settings file").
			WithResource(path).
			WithIssue(issue.SettingsFileInvalidId).
			Wrap(err).
			BuildError()
	}
	return pairs, nil
}

func writeDifference(w io.Writer, d settings.Difference, aName, bName string) {
	if d.Empty() {
		fmt.Fprintln(w, SuccessStyle.Render("settings are equivalent"))
		return
	}
	if len(d.OnlyInA) > 0 {
		fmt.Fprintln(w, TitleStyle.Render("Only in "+aName))
		for _, p := range d.OnlyInA {
			fmt.Fprintf(w, "  %s=%s\n", KeyStyle.Render(p.Key), p.Value)
		}
	}
	if len(d.OnlyInB) > 0 {
		fmt.Fprintln(w, TitleStyle.Render("Only in "+bName))
		for _, p := range d.OnlyInB {
			fmt.Fprintf(w, "  %s=%s\n", KeyStyle.Render(p.Key), p.Value)
		}
	}
	if len(d.Changed) > 0 {
		fmt.Fprintln(w, TitleStyle.Render("Different"))
		for _, c := range d.Changed {
			fmt.Fprintf(w, "  %s: %s -> %s\n", KeyStyle.Render(c.Key), c.A, c.B)
		}
	}
}
