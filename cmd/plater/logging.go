// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"io"
	"log/slog"

	"github.com/charmbracelet/log"

	"github.com/plater3d/plater/internal/config"
)

// newLogger returns a slog logger backed by charmbracelet/log. Verbose mode
// lowers the level to debug.
func newLogger(w io.Writer, verbose bool, format config.LogFormat) *slog.Logger {
	level := log.WarnLevel
	if verbose {
		level = log.DebugLevel
	}

	formatter := log.TextFormatter
	switch format {
	case config.LogFormatJSON:
		formatter = log.JSONFormatter
	case config.LogFormatLogfmt:
		formatter = log.LogfmtFormatter
	}

	handler := log.NewWithOptions(w, log.Options{
		Prefix:          config.AppName,
		Level:           level,
		ReportTimestamp: verbose,
		Formatter:       formatter,
	})
	return slog.New(handler)
}
