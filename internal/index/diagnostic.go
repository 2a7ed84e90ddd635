// SPDX-License-Identifier: MPL-2.0

package index

const (
	// SeverityInfo marks purely informational diagnostics.
	SeverityInfo Severity = "info"
	// SeverityWarning indicates a recoverable problem; the build continued.
	SeverityWarning Severity = "warning"
	// SeverityError indicates a file that was skipped entirely.
	SeverityError Severity = "error"

	// CodeRootMissing reports a data directory that does not exist.
	CodeRootMissing Code = "root_missing"
	// CodeProfileParseSkipped reports a profile file that could not be parsed.
	CodeProfileParseSkipped Code = "profile_parse_skipped"
	// CodeUnsupportedSettingVersion reports a profile with an unsupported setting_version.
	CodeUnsupportedSettingVersion Code = "unsupported_setting_version"
	// CodeDraftQualityIgnored reports a draft quality_changes profile dropped on a name collision.
	CodeDraftQualityIgnored Code = "draft_quality_ignored"
	// CodeNameOverwritten reports a name registration replaced by a later profile.
	CodeNameOverwritten Code = "name_overwritten"
)

type (
	// Severity represents diagnostic severity.
	Severity string

	// Code is a machine-readable diagnostic identifier.
	Code string

	// Diagnostic is a non-fatal issue found while building an index. Diagnostics
	// are returned to the caller rather than printed so the CLI controls rendering.
	Diagnostic struct {
		Severity Severity
		Code     Code
		Message  string
		// Path is the profile file involved (optional).
		Path string
		// Cause is the underlying error (optional).
		Cause error
	}
)

// String returns the string representation of the Severity.
func (s Severity) String() string { return string(s) }

// String returns the string representation of the Code.
func (c Code) String() string { return string(c) }
