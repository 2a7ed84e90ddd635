// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newMaterialsCommand(app *App) *cobra.Command {
	materialsCmd := &cobra.Command{
		Use:   "materials",
		Short: "Inspect material profiles",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	var installed bool
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List user materials, and installed ones with --installed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sc, err := app.openStack(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStack(sc)

			lib := sc.Materials
			if installed {
				if lib, err = sc.AllMaterials(cmd.Context()); err != nil {
					return err
				}
			}
			if lib.Len() == 0 && len(lib.Skipped()) == 0 {
				fmt.Fprintln(app.stdout, SubtitleStyle.Render("no materials found"))
				return nil
			}
			for _, id := range lib.IDs() {
				m, _ := lib.Get(id)
				label := m.Metadata.Brand + " " + m.Metadata.Material
				if m.Metadata.Color != "" {
					label += " (" + m.Metadata.Color + ")"
				}
				fmt.Fprintf(app.stdout, "%s  %s  %s\n", KeyStyle.Render(id), label, SubtitleStyle.Render(fmt.Sprintf("%d settings", m.Values.Len())))
			}
			for _, sk := range lib.Skipped() {
				fmt.Fprintln(app.stdout, WarningStyle.Render("skipped "+sk.Path+": "+sk.Err.Error()))
			}
			return nil
		},
	}
	listCmd.Flags().BoolVar(&installed, "installed", false, "include materials from the installed resources")
	materialsCmd.AddCommand(listCmd)
	return materialsCmd
}
