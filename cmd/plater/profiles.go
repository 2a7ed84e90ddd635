// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/plater3d/plater/internal/index"
	"github.com/plater3d/plater/internal/issue"
	"github.com/plater3d/plater/internal/profile"
	"github.com/plater3d/plater/internal/settings"
	"github.com/plater3d/plater/internal/stack"
)

func newProfilesCommand(app *App) *cobra.Command {
	profilesCmd := &cobra.Command{
		Use:   "profiles",
		Short: "Inspect the profiles of the data directory",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	var typeFilter string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List machines with their extruders, or all profiles of one type",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sc, err := app.openStack(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStack(sc)

			if typeFilter != "" {
				listProfilesOfType(app.stdout, sc.Index, profile.Type(typeFilter))
			} else {
				listMachines(app.stdout, sc.Index)
			}
			renderDiagnostics(app.stdout, sc.Index.Diagnostics())
			return nil
		},
	}
	listCmd.Flags().StringVarP(&typeFilter, "type", "t", "", "list profiles with this metadata type (machine, extruder_train, quality, quality_changes, variant)")
	profilesCmd.AddCommand(listCmd)

	profilesCmd.AddCommand(&cobra.Command{
		Use:   "show <name>",
		Short: "Show every profile registered under a name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := app.openStack(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStack(sc)
			return showProfiles(cmd.Context(), app.stdout, sc, args[0])
		},
	})

	return profilesCmd
}

func listMachines(w io.Writer, idx *index.Index) {
	machines := idx.Machines()
	if len(machines) == 0 {
		fmt.Fprintln(w, SubtitleStyle.Render("no machines found in "+idx.Root()))
		return
	}
	fmt.Fprintln(w, TitleStyle.Render("Machines"))
	for _, m := range machines {
		fmt.Fprintf(w, "  %s\n", KeyStyle.Render(m))
		for _, e := range idx.ExtrudersForMachine(m) {
			fmt.Fprintf(w, "    %s\n", e)
		}
	}
}

func listProfilesOfType(w io.Writer, idx *index.Index, t profile.Type) {
	profiles := idx.OfType(t)
	if len(profiles) == 0 {
		fmt.Fprintln(w, SubtitleStyle.Render("no "+t.String()+" profiles"))
		return
	}
	fmt.Fprintln(w, TitleStyle.Render(t.String()))
	for _, p := range profiles {
		fmt.Fprintf(w, "  %s  %s\n", KeyStyle.Render(p.Name), SubtitleStyle.Render(p.ID))
	}
}

func renderDiagnostics(w io.Writer, diags []index.Diagnostic) {
	var shown []index.Diagnostic
	for _, d := range diags {
		if d.Severity != index.SeverityInfo {
			shown = append(shown, d)
		}
	}
	if len(shown) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, WarningStyle.Render(fmt.Sprintf("%d diagnostic(s):", len(shown))))
	for _, d := range shown {
		line := fmt.Sprintf("  [%s] %s", d.Code, d.Message)
		if d.Path != "" {
			line += " " + SubtitleStyle.Render(d.Path)
		}
		fmt.Fprintln(w, line)
	}
}

func showProfiles(ctx context.Context, w io.Writer, sc *stack.Context, name string) error {
	ids := sc.Index.ByName(name)
	if len(ids) == 0 {
		return issue.NewErrorContext().
			WithOperation("show profile").
			WithResource(name).
			WithSuggestion("Run 'plater profiles list' to see the available names").
			Wrap(&stack.NotFoundError{Name: name}).
			BuildError()
	}

	for i, id := range ids {
		p, ok := sc.Index.ByID(id)
		if !ok {
			continue
		}
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintln(w, TitleStyle.Render(p.Name)+" "+SubtitleStyle.Render("("+p.Type.String()+")"))
		fmt.Fprintf(w, "%s: %s\n", KeyStyle.Render("id"), p.ID)
		fmt.Fprintf(w, "%s: %s\n", KeyStyle.Render("path"), p.Path)
		if p.QualityType != "" {
			fmt.Fprintf(w, "%s: %s\n", KeyStyle.Render("quality_type"), p.QualityType)
		}
		if p.Machine != "" {
			fmt.Fprintf(w, "%s: %s\n", KeyStyle.Render("machine"), p.Machine)
		}

		if len(p.Containers) > 0 {
			res, err := sc.Resolve(ctx, p.ID, p.Containers)
			if err != nil {
				return err
			}
			fmt.Fprintln(w, KeyStyle.Render("containers:"))
			for _, l := range res.Layers {
				fmt.Fprintf(w, "  %s%s\n", layerKindStyle.Render(l.Kind.String()), l.Ref)
			}
			for _, u := range res.Unresolved {
				fmt.Fprintln(w, WarningStyle.Render("  unresolved "+u.Ref))
			}
		}
		if p.Values.Len() > 0 {
			fmt.Fprintln(w, KeyStyle.Render("values:"))
			if err := settings.WritePairs(w, p.Values.Pairs()); err != nil {
				return err
			}
		}
	}
	return nil
}
