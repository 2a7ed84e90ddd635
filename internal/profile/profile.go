// SPDX-License-Identifier: MPL-2.0

package profile

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/plater3d/plater/internal/settings"

	"gopkg.in/ini.v1"
)

const (
	// SupportedSettingVersion is the only metadata.setting_version that is loaded.
	SupportedSettingVersion = "20"

	// DraftQuality is the quality_type tier dropped on quality_changes name collisions.
	DraftQuality = "draft"

	// TypeMachine describes a printer.
	TypeMachine Type = "machine"
	// TypeExtruderTrain describes one extruder of a printer.
	TypeExtruderTrain Type = "extruder_train"
	// TypeQuality is a stock quality preset.
	TypeQuality Type = "quality"
	// TypeQualityChanges is a user-modified quality preset.
	TypeQualityChanges Type = "quality_changes"
	// TypeVariant describes a nozzle or build plate variant.
	TypeVariant Type = "variant"
	// TypeUnknown is any other metadata.type; the raw tag is kept in Profile.RawType.
	TypeUnknown Type = "unknown"

	sectionGeneral    = "general"
	sectionMetadata   = "metadata"
	sectionContainers = "containers"
	sectionValues     = "values"
)

// ErrFormat is the sentinel error wrapped by FormatError.
var ErrFormat = errors.New("malformed profile")

// loadOptions mirror the dialect profiles are written in: '=' delimited keys,
// indented continuation lines and no inline comments.
var loadOptions = ini.LoadOptions{
	AllowPythonMultilineValues: true,
	KeyValueDelimiters:         "=",
	IgnoreInlineComment:        true,
	PreserveSurroundedQuote:    true,
}

type (
	// Type is the metadata.type tag of a profile.
	Type string

	// Profile is one parsed profile file.
	Profile struct {
		// ID is the stable identity derived from the file name (see StemID).
		ID string
		// Path is the file the profile was read from.
		Path string
		// Name is the logical name from [general]; it may collide across files.
		Name string
		Type Type
		// RawType is metadata.type verbatim.
		RawType        string
		QualityType    string
		Machine        string
		SettingVersion string
		// Values holds [values] in file order.
		Values *settings.Map
		// Containers holds the [containers] references in file order.
		Containers []string
	}

	// FormatError reports a profile file that cannot be parsed.
	FormatError struct {
		Path   string
		Reason string
		Err    error
	}
)

// Error implements the error interface for FormatError.
func (e *FormatError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Path, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns ErrFormat and the underlying parse error.
func (e *FormatError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrFormat}
	}
	return []error{ErrFormat, e.Err}
}

// ParseType maps a raw metadata.type tag to a Type.
func ParseType(raw string) Type {
	switch t := Type(raw); t {
	case TypeMachine, TypeExtruderTrain, TypeQuality, TypeQualityChanges, TypeVariant:
		return t
	default:
		return TypeUnknown
	}
}

// String returns the string representation of the Type.
func (t Type) String() string { return string(t) }

// IsDraft reports whether the profile belongs to the draft quality tier.
func (p *Profile) IsDraft() bool {
	return p.QualityType == DraftQuality
}

// Supported reports whether the profile's setting version is loaded.
func (p *Profile) Supported() bool {
	return p.SettingVersion == SupportedSettingVersion
}

// StemID derives a stable id from a file name by dropping its last two
// dot-separated suffixes and percent-decoding the rest
// ("my%20printer.global.cfg" becomes "my printer").
func StemID(name string) string {
	stem := filepath.Base(name)
	for range 2 {
		i := strings.LastIndexByte(stem, '.')
		if i < 0 {
			break
		}
		stem = stem[:i]
	}
	if decoded, err := url.QueryUnescape(stem); err == nil {
		return decoded
	}
	return strings.ReplaceAll(stem, "+", " ")
}

// ParseFile reads and parses the profile at path.
func ParseFile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}
	return Parse(data, path)
}

// Parse parses profile data; path names the source and determines the ID.
// metadata.setting_version is always required. For supported versions
// general.name and metadata.type are required as well.
func Parse(data []byte, path string) (*Profile, error) {
	f, err := ini.LoadSources(loadOptions, data)
	if err != nil {
		return nil, &FormatError{Path: path, Reason: "invalid syntax", Err: err}
	}

	p := &Profile{
		ID:     StemID(path),
		Path:   path,
		Values: settings.NewMap(),
	}

	meta, err := f.GetSection(sectionMetadata)
	if err != nil || !meta.HasKey("setting_version") {
		return nil, &FormatError{Path: path, Reason: "missing metadata.setting_version"}
	}
	p.SettingVersion = meta.Key("setting_version").String()
	p.RawType = meta.Key("type").String()
	p.Type = ParseType(p.RawType)
	p.QualityType = meta.Key("quality_type").String()
	p.Machine = meta.Key("machine").String()

	if general, err := f.GetSection(sectionGeneral); err == nil {
		p.Name = general.Key("name").String()
	}

	if p.Supported() {
		if p.Name == "" {
			return nil, &FormatError{Path: path, Reason: "missing general.name"}
		}
		if p.RawType == "" {
			return nil, &FormatError{Path: path, Reason: "missing metadata.type"}
		}
	}

	if containers, err := f.GetSection(sectionContainers); err == nil {
		for _, k := range containers.Keys() {
			p.Containers = append(p.Containers, k.Value())
		}
	}
	if values, err := f.GetSection(sectionValues); err == nil {
		for _, k := range values.Keys() {
			p.Values.Set(k.Name(), k.Value())
		}
	}

	return p, nil
}
