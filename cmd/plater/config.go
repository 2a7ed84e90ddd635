// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/plater3d/plater/internal/config"
)

// newConfigCommand creates the `plater config` command tree.
func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage plater configuration",
		Long: `Manage plater configuration.

Configuration is stored in:
  - Linux: ~/.config/plater/config.cue
  - macOS: ~/Library/Application Support/plater/config.cue
  - Windows: %APPDATA%\plater\config.cue

Every value can be overridden with a PLATER_* environment variable, for
example PLATER_SLICER_BINARY or PLATER_UI_VERBOSE.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.loadConfig(cmd.Context())
			if err != nil {
				return err
			}
			showConfig(app.stdout, cfg)
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir, err := config.ConfigDir()
			if err != nil {
				return err
			}
			path, created, err := config.CreateDefaultConfig(dir)
			if err != nil {
				return err
			}
			if created {
				fmt.Fprintf(app.stdout, "%s Created default configuration at %s\n", SuccessStyle.Render("✓"), path)
			} else {
				fmt.Fprintf(app.stdout, "Configuration already exists at %s\n", path)
			}
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir, err := config.ConfigDir()
			if err != nil {
				return err
			}
			fmt.Fprintf(app.stdout, "Config directory: %s\n", dir)
			fmt.Fprintf(app.stdout, "Config file: %s\n", config.FilePathIn(dir))
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "dump",
		Short: "Output the effective configuration as CUE",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.loadConfig(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprint(app.stdout, config.GenerateCUE(cfg))
			return nil
		},
	})

	return cfgCmd
}

func showConfig(w io.Writer, cfg *config.Config) {
	fmt.Fprintln(w, TitleStyle.Render("Current Configuration"))
	fmt.Fprintln(w)

	source := SubtitleStyle.Render("(using defaults)")
	if cfg.Source != "" {
		source = cfg.Source
	}
	fmt.Fprintf(w, "%s: %s\n\n", KeyStyle.Render("Config file"), source)

	section := func(name string, kv ...any) {
		fmt.Fprintf(w, "%s:\n", KeyStyle.Render(name))
		for i := 0; i+1 < len(kv); i += 2 {
			value := fmt.Sprint(kv[i+1])
			if value == "" {
				value = SubtitleStyle.Render("(unset)")
			}
			fmt.Fprintf(w, "  %s: %s\n", kv[i], value)
		}
		fmt.Fprintln(w)
	}
	section("slicer",
		"binary", cfg.Slicer.Binary,
		"appimage", cfg.Slicer.AppImage,
		"resources_dir", cfg.Slicer.ResourcesDir,
		"data_dir", cfg.Slicer.DataDir)
	section("printer",
		"machine", cfg.Printer.Machine,
		"extruder", cfg.Printer.Extruder,
		"extruder_index", cfg.Printer.ExtruderIndex)
	section("ui",
		"color_scheme", cfg.UI.ColorScheme,
		"verbose", cfg.UI.Verbose,
		"log_format", cfg.UI.LogFormat)
	fmt.Fprintf(w, "%s: %s\n", KeyStyle.Render("invoke_log"), cfg.InvokeLog)
}
