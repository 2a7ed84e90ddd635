// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// ColorSchemeAuto detects the terminal color scheme automatically.
	ColorSchemeAuto ColorScheme = "auto"
	// ColorSchemeDark forces dark color scheme.
	ColorSchemeDark ColorScheme = "dark"
	// ColorSchemeLight forces light color scheme.
	ColorSchemeLight ColorScheme = "light"

	// LogFormatText is the human readable log format.
	LogFormatText LogFormat = "text"
	// LogFormatJSON emits one JSON object per log record.
	LogFormatJSON LogFormat = "json"
	// LogFormatLogfmt emits key=value log records.
	LogFormatLogfmt LogFormat = "logfmt"

	// DefaultInvokeLog is where engine output goes when nothing else is configured.
	DefaultInvokeLog FilePath = "invoke.log"
)

var (
	// ErrInvalidColorScheme is returned when a ColorScheme value is not recognized.
	ErrInvalidColorScheme = errors.New("invalid color scheme")
	// ErrInvalidLogFormat is returned when a LogFormat value is not recognized.
	ErrInvalidLogFormat = errors.New("invalid log format")
	// ErrInvalidFilePath is returned when a FilePath value is whitespace-only.
	ErrInvalidFilePath = errors.New("invalid file path")
	// ErrInvalidExtruderIndex is returned for a negative extruder index.
	ErrInvalidExtruderIndex = errors.New("invalid extruder index")
	// ErrInvalidSlicerConfig is the sentinel error wrapped by InvalidSlicerConfigError.
	ErrInvalidSlicerConfig = errors.New("invalid slicer config")
	// ErrInvalidPrinterConfig is the sentinel error wrapped by InvalidPrinterConfigError.
	ErrInvalidPrinterConfig = errors.New("invalid printer config")
	// ErrInvalidUIConfig is the sentinel error wrapped by InvalidUIConfigError.
	ErrInvalidUIConfig = errors.New("invalid UI config")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// ColorScheme specifies the terminal color scheme preference.
	ColorScheme string

	// InvalidColorSchemeError is returned when a ColorScheme value is not recognized.
	// It wraps ErrInvalidColorScheme for errors.Is() compatibility.
	InvalidColorSchemeError struct {
		Value ColorScheme
	}

	// LogFormat selects the formatter of the diagnostic logger.
	LogFormat string

	// InvalidLogFormatError is returned when a LogFormat value is not recognized.
	InvalidLogFormatError struct {
		Value LogFormat
	}

	// FilePath is a filesystem path to a file or directory. The zero value is
	// valid and means "use the default"; other values must not be whitespace-only.
	FilePath string

	// InvalidFilePathError is returned when a FilePath is non-empty but blank.
	InvalidFilePathError struct {
		Field string
		Value FilePath
	}

	// ExtruderIndex selects one extruder of a machine, counting from zero.
	ExtruderIndex int

	// InvalidExtruderIndexError is returned for a negative ExtruderIndex.
	InvalidExtruderIndexError struct {
		Value ExtruderIndex
	}

	// InvalidSlicerConfigError collects SlicerConfig field errors.
	InvalidSlicerConfigError struct {
		FieldErrors []error
	}

	// InvalidPrinterConfigError collects PrinterConfig field errors.
	InvalidPrinterConfigError struct {
		FieldErrors []error
	}

	// InvalidUIConfigError collects UIConfig field errors.
	InvalidUIConfigError struct {
		FieldErrors []error
	}

	// InvalidConfigError is returned when a Config has invalid fields.
	// It wraps ErrInvalidConfig for errors.Is() compatibility and collects
	// field-level validation errors from all sub-components.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config holds the application configuration.
	Config struct {
		// Slicer locates the engine and its resources.
		Slicer SlicerConfig `json:"slicer" mapstructure:"slicer"`
		// Printer names the default machine and extruder.
		Printer PrinterConfig `json:"printer" mapstructure:"printer"`
		// UI configures the user interface
		UI UIConfig `json:"ui" mapstructure:"ui"`
		// InvokeLog is the file engine output is written to.
		InvokeLog FilePath `json:"invoke_log" mapstructure:"invoke_log"`

		// Source is the config file the values were read from, if any.
		Source string `json:"-" mapstructure:"-"`
	}

	// SlicerConfig locates the engine binary, its installed resources and the
	// user data directory.
	SlicerConfig struct {
		// Binary is the engine executable or AppImage.
		Binary FilePath `json:"binary" mapstructure:"binary"`
		// AppImage mounts Binary to find the installed resources.
		AppImage bool `json:"appimage" mapstructure:"appimage"`
		// ResourcesDir overrides the installed resource tree.
		ResourcesDir FilePath `json:"resources_dir" mapstructure:"resources_dir"`
		// DataDir overrides the user data directory holding profiles and materials.
		DataDir FilePath `json:"data_dir" mapstructure:"data_dir"`
	}

	// PrinterConfig holds the defaults for machine and extruder arguments.
	PrinterConfig struct {
		Machine       string        `json:"machine" mapstructure:"machine"`
		Extruder      string        `json:"extruder" mapstructure:"extruder"`
		ExtruderIndex ExtruderIndex `json:"extruder_index" mapstructure:"extruder_index"`
	}

	// UIConfig configures the user interface.
	UIConfig struct {
		// ColorScheme sets the color scheme
		ColorScheme ColorScheme `json:"color_scheme" mapstructure:"color_scheme"`
		// Verbose enables verbose output
		Verbose bool `json:"verbose" mapstructure:"verbose"`
		// LogFormat selects the log formatter
		LogFormat LogFormat `json:"log_format" mapstructure:"log_format"`
	}
)

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		UI: UIConfig{
			ColorScheme: ColorSchemeAuto,
			LogFormat:   LogFormatText,
		},
		InvokeLog: DefaultInvokeLog,
	}
}

// IsValid returns whether the Config has valid fields.
func (c Config) IsValid() (bool, []error) {
	var errs []error
	if valid, fieldErrs := c.Slicer.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.Printer.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.UI.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.InvokeLog.validate("invoke_log"); !valid {
		errs = append(errs, fieldErrs...)
	}
	if len(errs) > 0 {
		return false, []error{&InvalidConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface for InvalidConfigError.
func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid config: %s", joinFieldErrors(e.FieldErrors))
}

// Unwrap returns ErrInvalidConfig for errors.Is() compatibility.
func (e *InvalidConfigError) Unwrap() error { return ErrInvalidConfig }

// IsValid returns whether the SlicerConfig has valid fields. Mounting an
// AppImage needs a binary.
func (c SlicerConfig) IsValid() (bool, []error) {
	var errs []error
	fields := []struct {
		name string
		path FilePath
	}{
		{"slicer.binary", c.Binary},
		{"slicer.resources_dir", c.ResourcesDir},
		{"slicer.data_dir", c.DataDir},
	}
	for _, f := range fields {
		if valid, fieldErrs := f.path.validate(f.name); !valid {
			errs = append(errs, fieldErrs...)
		}
	}
	if c.AppImage && c.Binary == "" {
		errs = append(errs, &InvalidFilePathError{Field: "slicer.binary", Value: c.Binary})
	}
	if len(errs) > 0 {
		return false, []error{&InvalidSlicerConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface for InvalidSlicerConfigError.
func (e *InvalidSlicerConfigError) Error() string {
	return fmt.Sprintf("invalid slicer config: %s", joinFieldErrors(e.FieldErrors))
}

// Unwrap returns ErrInvalidSlicerConfig for errors.Is() compatibility.
func (e *InvalidSlicerConfigError) Unwrap() error { return ErrInvalidSlicerConfig }

// IsValid returns whether the PrinterConfig has valid fields.
func (c PrinterConfig) IsValid() (bool, []error) {
	if valid, fieldErrs := c.ExtruderIndex.IsValid(); !valid {
		return false, []error{&InvalidPrinterConfigError{FieldErrors: fieldErrs}}
	}
	return true, nil
}

// Error implements the error interface for InvalidPrinterConfigError.
func (e *InvalidPrinterConfigError) Error() string {
	return fmt.Sprintf("invalid printer config: %s", joinFieldErrors(e.FieldErrors))
}

// Unwrap returns ErrInvalidPrinterConfig for errors.Is() compatibility.
func (e *InvalidPrinterConfigError) Unwrap() error { return ErrInvalidPrinterConfig }

// IsValid returns whether the UIConfig has valid fields.
func (c UIConfig) IsValid() (bool, []error) {
	var errs []error
	if valid, fieldErrs := c.ColorScheme.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.LogFormat.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if len(errs) > 0 {
		return false, []error{&InvalidUIConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface for InvalidUIConfigError.
func (e *InvalidUIConfigError) Error() string {
	return fmt.Sprintf("invalid UI config: %s", joinFieldErrors(e.FieldErrors))
}

// Unwrap returns ErrInvalidUIConfig for errors.Is() compatibility.
func (e *InvalidUIConfigError) Unwrap() error { return ErrInvalidUIConfig }

// String returns the string representation of the ColorScheme.
func (cs ColorScheme) String() string { return string(cs) }

// IsValid returns whether the ColorScheme is one of the defined color schemes,
// and a list of validation errors if it is not.
func (cs ColorScheme) IsValid() (bool, []error) {
	switch cs {
	case ColorSchemeAuto, ColorSchemeDark, ColorSchemeLight:
		return true, nil
	default:
		return false, []error{&InvalidColorSchemeError{Value: cs}}
	}
}

// Error implements the error interface for InvalidColorSchemeError.
func (e *InvalidColorSchemeError) Error() string {
	return fmt.Sprintf("invalid color scheme %q (valid: auto, dark, light)", e.Value)
}

// Unwrap returns the sentinel error for errors.Is() compatibility.
func (e *InvalidColorSchemeError) Unwrap() error { return ErrInvalidColorScheme }

// String returns the string representation of the LogFormat.
func (f LogFormat) String() string { return string(f) }

// IsValid returns whether the LogFormat is one of the defined formats.
func (f LogFormat) IsValid() (bool, []error) {
	switch f {
	case LogFormatText, LogFormatJSON, LogFormatLogfmt:
		return true, nil
	default:
		return false, []error{&InvalidLogFormatError{Value: f}}
	}
}

// Error implements the error interface for InvalidLogFormatError.
func (e *InvalidLogFormatError) Error() string {
	return fmt.Sprintf("invalid log format %q (valid: text, json, logfmt)", e.Value)
}

// Unwrap returns ErrInvalidLogFormat for errors.Is() compatibility.
func (e *InvalidLogFormatError) Unwrap() error { return ErrInvalidLogFormat }

// String returns the string representation of the FilePath.
func (p FilePath) String() string { return string(p) }

// IsValid returns whether the FilePath is valid.
func (p FilePath) IsValid() (bool, []error) {
	return p.validate("")
}

func (p FilePath) validate(field string) (bool, []error) {
	if p != "" && strings.TrimSpace(string(p)) == "" {
		return false, []error{&InvalidFilePathError{Field: field, Value: p}}
	}
	return true, nil
}

// Error implements the error interface for InvalidFilePathError.
func (e *InvalidFilePathError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("%s: a path is required", e.Field)
	}
	if e.Field == "" {
		return fmt.Sprintf("invalid file path %q: must not be whitespace-only", e.Value)
	}
	return fmt.Sprintf("%s: invalid file path %q: must not be whitespace-only", e.Field, e.Value)
}

// Unwrap returns ErrInvalidFilePath for errors.Is() compatibility.
func (e *InvalidFilePathError) Unwrap() error { return ErrInvalidFilePath }

// Int returns the index as an int.
func (i ExtruderIndex) Int() int { return int(i) }

// IsValid returns whether the ExtruderIndex is non-negative.
func (i ExtruderIndex) IsValid() (bool, []error) {
	if i < 0 {
		return false, []error{&InvalidExtruderIndexError{Value: i}}
	}
	return true, nil
}

// Error implements the error interface for InvalidExtruderIndexError.
func (e *InvalidExtruderIndexError) Error() string {
	return fmt.Sprintf("invalid extruder index %d: must be >= 0", e.Value)
}

// Unwrap returns ErrInvalidExtruderIndex for errors.Is() compatibility.
func (e *InvalidExtruderIndexError) Unwrap() error { return ErrInvalidExtruderIndex }

func joinFieldErrors(errs []error) string {
	msgs := make([]string, len(errs))
	for i, err := range errs {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}
