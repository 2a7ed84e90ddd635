// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	"errors"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/plater3d/plater/internal/issue"
	"github.com/plater3d/plater/internal/testutil"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	if cfg.UI.ColorScheme != ColorSchemeAuto {
		t.Errorf("default color scheme = %s, want auto", cfg.UI.ColorScheme)
	}
	if cfg.UI.LogFormat != LogFormatText {
		t.Errorf("default log format = %s, want text", cfg.UI.LogFormat)
	}
	if cfg.InvokeLog != DefaultInvokeLog {
		t.Errorf("default invoke log = %s, want %s", cfg.InvokeLog, DefaultInvokeLog)
	}
	if cfg.Slicer.AppImage {
		t.Error("AppImage should default to false")
	}
	if valid, errs := cfg.IsValid(); !valid {
		t.Errorf("DefaultConfig().IsValid() = false: %v", errs)
	}
}

func TestConfigDir(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("XDG layout is Linux only")
	}

	testutil.MustSetenv(t, "XDG_CONFIG_HOME", "/tmp/test-xdg-config")
	dir, err := ConfigDir()
	if err != nil {
		t.Fatalf("ConfigDir() error = %v", err)
	}
	if want := filepath.Join("/tmp/test-xdg-config", AppName); dir != want {
		t.Errorf("ConfigDir() = %s, want %s", dir, want)
	}

	home := t.TempDir()
	testutil.SetHomeDir(t, home)
	testutil.MustUnsetenv(t, "XDG_CONFIG_HOME")
	dir, err = ConfigDir()
	if err != nil {
		t.Fatalf("ConfigDir() error = %v", err)
	}
	if want := filepath.Join(home, ".config", AppName); dir != want {
		t.Errorf("ConfigDir() = %s, want %s", dir, want)
	}
}

func TestConfigDir_Override(t *testing.T) {
	SetConfigDirOverride("/custom/plater")
	t.Cleanup(Reset)

	dir, err := ConfigDir()
	if err != nil || dir != "/custom/plater" {
		t.Errorf("ConfigDir() = %q, %v, want /custom/plater", dir, err)
	}
}

func TestLoad_DefaultsWhenNoConfigFile(t *testing.T) {
	testutil.MustChdir(t, t.TempDir())

	cfg, err := NewProvider().Load(context.Background(), LoadOptions{ConfigDirPath: t.TempDir()})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Source != "" {
		t.Errorf("Source = %q, want empty", cfg.Source)
	}
	if cfg.InvokeLog != DefaultInvokeLog || cfg.UI.LogFormat != LogFormatText {
		t.Errorf("Load() = %+v, want defaults", cfg)
	}
}

func TestLoad_FromConfigDir(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteFile(t, dir, "config.cue", `
slicer: {
	binary: "/opt/cura/UltiMaker-Cura.AppImage"
	appimage: true
}
printer: {
	machine: "Creality Ender-3"
	extruder_index: 1
}
ui: log_format: "json"
`)

	cfg, err := NewProvider().Load(context.Background(), LoadOptions{ConfigDirPath: dir})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Source != path {
		t.Errorf("Source = %q, want %q", cfg.Source, path)
	}
	if cfg.Slicer.Binary != "/opt/cura/UltiMaker-Cura.AppImage" || !cfg.Slicer.AppImage {
		t.Errorf("Slicer = %+v", cfg.Slicer)
	}
	if cfg.Printer.Machine != "Creality Ender-3" || cfg.Printer.ExtruderIndex != 1 {
		t.Errorf("Printer = %+v", cfg.Printer)
	}
	if cfg.UI.LogFormat != LogFormatJSON {
		t.Errorf("LogFormat = %s, want json", cfg.UI.LogFormat)
	}
	if cfg.UI.ColorScheme != ColorSchemeAuto {
		t.Errorf("ColorScheme = %s, want default auto", cfg.UI.ColorScheme)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "config.cue", `printer: machine: "from file"`)
	testutil.MustSetenv(t, "PLATER_PRINTER_MACHINE", "from env")
	testutil.MustSetenv(t, "PLATER_UI_VERBOSE", "true")

	cfg, err := NewProvider().Load(context.Background(), LoadOptions{ConfigDirPath: dir})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Printer.Machine != "from env" {
		t.Errorf("Machine = %q, want from env", cfg.Printer.Machine)
	}
	if !cfg.UI.Verbose {
		t.Error("Verbose = false, want true from env")
	}
}

func TestLoad_SchemaViolation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		want    string
	}{
		{name: "bad enum", content: `ui: color_scheme: "neon"`, want: "ui.color_scheme"},
		{name: "negative index", content: `printer: extruder_index: -1`, want: "printer.extruder_index"},
		{name: "unknown field", content: `bogus: true`, want: "bogus"},
		{name: "syntax", content: `slicer: {`, want: "config.cue"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			path := testutil.WriteFile(t, t.TempDir(), "config.cue", tt.content)
			_, err := NewProvider().Load(context.Background(), LoadOptions{ConfigFilePath: path})
			if err == nil {
				t.Fatal("Load() error = nil, want schema error")
			}
			var ae *issue.ActionableError
			if !errors.As(err, &ae) {
				t.Fatalf("Load() error = %T, want *issue.ActionableError", err)
			}
			if !ae.HasSuggestions() {
				t.Error("ActionableError has no suggestions")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestLoad_AppImageNeedsBinary(t *testing.T) {
	t.Parallel()

	path := testutil.WriteFile(t, t.TempDir(), "config.cue", `slicer: appimage: true`)
	_, err := NewProvider().Load(context.Background(), LoadOptions{ConfigFilePath: path})
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("Load() error = %v, want ErrInvalidConfig", err)
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	t.Parallel()

	_, err := NewProvider().Load(context.Background(), LoadOptions{ConfigFilePath: "/nonexistent/config.cue"})
	if err == nil || !strings.Contains(err.Error(), "/nonexistent/config.cue") {
		t.Fatalf("Load() error = %v, want missing file error", err)
	}
}

func TestLoad_Canceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewProvider().Load(ctx, LoadOptions{}); !errors.Is(err, context.Canceled) {
		t.Errorf("Load() error = %v, want context.Canceled", err)
	}
}

func TestCreateDefaultConfig_RoundTrip(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), AppName)
	path, created, err := CreateDefaultConfig(dir)
	if err != nil || !created {
		t.Fatalf("CreateDefaultConfig() = %q, %v, %v", path, created, err)
	}
	if _, created, err := CreateDefaultConfig(dir); err != nil || created {
		t.Errorf("second CreateDefaultConfig() created = %v, err = %v; want existing file kept", created, err)
	}

	cfg, err := NewProvider().Load(context.Background(), LoadOptions{ConfigFilePath: path})
	if err != nil {
		t.Fatalf("Load() of generated config error = %v", err)
	}
	want := DefaultConfig()
	want.Source = path
	if *cfg != *want {
		t.Errorf("Load() = %+v, want %+v", cfg, want)
	}
}

func TestGenerateCUE(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Slicer.Binary = "/usr/bin/CuraEngine"
	cfg.Printer.Machine = "Ender"
	got := GenerateCUE(cfg)

	for _, want := range []string{
		`binary: "/usr/bin/CuraEngine"`,
		`machine: "Ender"`,
		`log_format: "text"`,
		`invoke_log: "invoke.log"`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("GenerateCUE() missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "resources_dir") {
		t.Errorf("GenerateCUE() should omit empty resources_dir:\n%s", got)
	}
}
