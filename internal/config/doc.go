// SPDX-License-Identifier: MPL-2.0

// Package config handles application configuration using Viper with CUE as the file format.
//
// Configuration is loaded from ~/.config/plater/config.cue (or the XDG equivalent on Linux,
// ~/Library/Application Support/plater/config.cue on macOS, %APPDATA%\plater\config.cue
// on Windows), validated against the embedded CUE schema (config_schema.cue), and
// overridden by PLATER_* environment variables.
package config
