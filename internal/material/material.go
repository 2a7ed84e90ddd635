// SPDX-License-Identifier: MPL-2.0

package material

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/plater3d/plater/internal/profile"
	"github.com/plater3d/plater/internal/settings"
)

const (
	// Namespace is the XML namespace of material documents.
	Namespace = "http://www.ultimaker.com/material"
	// RootElement is the expected document element.
	RootElement = "fdmmaterial"
	// FileSuffix is the file name suffix of material documents.
	FileSuffix = ".xml.fdm_material"
)

// translations is closed: a label missing here fails the whole document.
var translations = map[string]string{
	"print temperature":        "material_print_temperature",
	"heated bed temperature":   "material_bed_temperature",
	"standby temperature":      "material_standby_temperature",
	"adhesion tendency":        "material_adhesion_tendency",
	"surface energy":           "material_surface_energy",
	"build volume temperature": "build_volume_temperature",
	"retraction amount":        "retraction_amount",
	"retraction speed":         "retraction_speed",
	"print cooling":            "cool_fan_speed",
}

// ErrFormat is the sentinel error wrapped by FormatError and UnknownSettingError.
var ErrFormat = errors.New("malformed material")

type (
	// Metadata is the subset of the metadata section that is kept.
	Metadata struct {
		Brand    string
		Material string
		Color    string
		Label    string
		Version  string
	}

	// Material is one parsed material document.
	Material struct {
		// ID is the percent-decoded file stem.
		ID       string
		Path     string
		Metadata Metadata
		// Values holds translated settings in document order.
		Values *settings.Map
	}

	// FormatError reports a document that is not a material profile.
	FormatError struct {
		Path   string
		Reason string
		Err    error
	}

	// UnknownSettingError reports a setting label outside the translation table.
	UnknownSettingError struct {
		Path  string
		Label string
	}

	document struct {
		XMLName  xml.Name       `xml:"http://www.ultimaker.com/material fdmmaterial"`
		Metadata documentMeta   `xml:"metadata"`
		Settings []settingEntry `xml:"settings>setting"`
	}

	documentMeta struct {
		Name    *documentName `xml:"name"`
		Version *string       `xml:"version"`
	}

	documentName struct {
		Brand    string `xml:"brand"`
		Material string `xml:"material"`
		Color    string `xml:"color"`
		Label    string `xml:"label"`
	}

	settingEntry struct {
		Key   string `xml:"key,attr"`
		Value string `xml:",chardata"`
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

// Unwrap returns ErrFormat and the underlying decode error.
func (e *FormatError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrFormat}
	}
	return []error{ErrFormat, e.Err}
}

// Error implements the error interface for UnknownSettingError.
func (e *UnknownSettingError) Error() string {
	return fmt.Sprintf("%s: unknown material setting %q", e.Path, e.Label)
}

// Unwrap returns ErrFormat for errors.Is() compatibility.
func (e *UnknownSettingError) Unwrap() error { return ErrFormat }

// Translate returns the engine key for a material setting label.
func Translate(label string) (string, bool) {
	key, ok := translations[label]
	return key, ok
}

// ParseFile reads and parses the material document at path.
func ParseFile(path string) (*Material, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read material: %w", err)
	}
	return Parse(data, path)
}

// Parse parses a material document; path names the source and determines the ID.
func Parse(data []byte, path string) (*Material, error) {
	if err := checkRoot(data, path); err != nil {
		return nil, err
	}

	var doc document
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, &FormatError{Path: path, Reason: "invalid document", Err: err}
	}

	name, version := doc.Metadata.Name, doc.Metadata.Version
	switch {
	case name == nil:
		return nil, &FormatError{Path: path, Reason: "metadata has no name block"}
	case version == nil:
		return nil, &FormatError{Path: path, Reason: "metadata has no version"}
	}

	m := &Material{
		ID:   profile.StemID(path),
		Path: path,
		Metadata: Metadata{
			Brand:    name.Brand,
			Material: name.Material,
			Color:    name.Color,
			Label:    name.Label,
			Version:  *version,
		},
		Values: settings.NewMap(),
	}

	for _, s := range doc.Settings {
		key, ok := Translate(s.Key)
		if !ok {
			return nil, &UnknownSettingError{Path: path, Label: s.Key}
		}
		m.Values.Set(key, strings.TrimSpace(s.Value))
	}

	return m, nil
}

// checkRoot verifies the document element before decoding so a foreign
// document is reported as such rather than as an empty material.
func checkRoot(data []byte, path string) error {
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err != nil {
			return &FormatError{Path: path, Reason: "no document element", Err: err}
		}
		if se, ok := tok.(xml.StartElement); ok {
			if se.Name.Space != Namespace || se.Name.Local != RootElement {
				return &FormatError{
					Path:   path,
					Reason: fmt.Sprintf("unexpected root element {%s}%s", se.Name.Space, se.Name.Local),
				}
			}
			return nil
		}
	}
}
