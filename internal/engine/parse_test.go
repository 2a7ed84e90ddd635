// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/plater3d/plater/internal/settings"
)

func TestParseCommandLine(t *testing.T) {
	t.Parallel()

	general := settings.General
	tests := []struct {
		name  string
		input string
		want  []settings.Triple
	}{
		{
			name:  "scopes",
			input: `-s a="1" -e0 -s b="2" -g -s c="3"`,
			want: []settings.Triple{
				{Scope: general, Key: "a", Value: "1"},
				{Scope: settings.Scope{Kind: settings.ScopeExtruder, Index: 0}, Key: "b", Value: "2"},
				{Scope: settings.Scope{Kind: settings.ScopeGroup, Index: 0}, Key: "c", Value: "3"},
			},
		},
		{
			name:  "next reselects last opened group",
			input: `-g -s a="1" -g -s b="2" -e0 -s x="0" --next -s c="3"`,
			want: []settings.Triple{
				{Scope: settings.Scope{Kind: settings.ScopeGroup, Index: 0}, Key: "a", Value: "1"},
				{Scope: settings.Scope{Kind: settings.ScopeGroup, Index: 1}, Key: "b", Value: "2"},
				{Scope: settings.Scope{Kind: settings.ScopeExtruder, Index: 0}, Key: "x", Value: "0"},
				{Scope: settings.Scope{Kind: settings.ScopeGroup, Index: 1}, Key: "c", Value: "3"},
			},
		},
		{
			name:  "next before any group",
			input: `--next -s a="1" -g -s b="2"`,
			want: []settings.Triple{
				{Scope: settings.Scope{Kind: settings.ScopeGroup, Index: 0}, Key: "a", Value: "1"},
				{Scope: settings.Scope{Kind: settings.ScopeGroup, Index: 0}, Key: "b", Value: "2"},
			},
		},
		{
			name:  "escaped backslash",
			input: `-s end_gcode="M117 C:\\new\nM84"`,
			want: []settings.Triple{
				{Scope: general, Key: "end_gcode", Value: "M117 C:\\new\nM84"},
			},
		},
		{
			name:  "objects and ignored flags",
			input: "slice -v -p -mfoo -j def.json -l one.stl -s a=\"1\" -l two.stl -s b=\"2\" -o out.gcode",
			want: []settings.Triple{
				{Scope: settings.Scope{Kind: settings.ScopeObject, Index: 0}, Key: "a", Value: "1"},
				{Scope: settings.Scope{Kind: settings.ScopeObject, Index: 1}, Key: "b", Value: "2"},
			},
		},
		{
			name:  "binary prefix and quoted values",
			input: `CuraEngine slice -s start_gcode="G28 ;home\nG1  Z5" -s empty=""`,
			want: []settings.Triple{
				{Scope: general, Key: "start_gcode", Value: "G28 ;home\nG1  Z5"},
				{Scope: general, Key: "empty", Value: ""},
			},
		},
		{
			name:  "newlines are separators",
			input: "-s a=\"1\"\n-s b=\"two words\"\n",
			want: []settings.Triple{
				{Scope: general, Key: "a", Value: "1"},
				{Scope: general, Key: "b", Value: "two words"},
			},
		},
		{
			name:  "empty input",
			input: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseCommandLine(tt.input)
			if err != nil {
				t.Fatalf("ParseCommandLine() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParseCommandLine() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseCommandLine_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		reason string
	}{
		{name: "unterminated string", input: `-s a="one two`, reason: "unterminated string"},
		{name: "unsupported option", input: `-s a="1" --frobnicate`, reason: "unsupported option"},
		{name: "bad setting", input: `-s a=1`, reason: `setting is not key="value"`},
		{name: "missing setting", input: `-s`, reason: "missing argument"},
		{name: "missing load path", input: `-l`, reason: "missing argument"},
		{name: "bad extruder", input: `-ex -s a="1"`, reason: "invalid extruder number"},
		{name: "negative extruder", input: `-e-1 -s a="1"`, reason: "invalid extruder number"},
		{name: "odd quotes stay open", input: `-s a="x"y" -s b="2"`, reason: "unterminated string"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := ParseCommandLine(tt.input)
			var perr *ParseError
			if !errors.As(err, &perr) || !errors.Is(err, ErrParse) {
				t.Fatalf("ParseCommandLine() error = %v, want ParseError", err)
			}
			if perr.Reason != tt.reason {
				t.Errorf("Reason = %q, want %q", perr.Reason, tt.reason)
			}
		})
	}
}

func TestSplitCommandLine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "quoted spaces",
			input: `-l "/my models/a.stl" -s k="a  b" x`,
			want:  []string{"-l", `"/my models/a.stl"`, "-s", `k="a  b"`, "x"},
		},
		{
			name:  "three quotes open a string",
			input: `-s k="a"b c" x`,
			want:  []string{"-s", `k="a"b c"`, "x"},
		},
		{
			name:  "three quotes close a string",
			input: `-s k="a b"c"d" x`,
			want:  []string{"-s", `k="a b"c"d"`, "x"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := SplitCommandLine(tt.input)
			if err != nil {
				t.Fatalf("SplitCommandLine() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("SplitCommandLine() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

const engineLog = `[2024-01-02 10:00:00.000] [info] Loading model
[2024-01-02 10:00:00.001] [WARNING]  -s day="Mon" -s layer_height="0.3"
[2024-01-02 10:00:01.000] [info] Slicing took 1.0s
[2024-01-02 10:01:00.001] [WARNING]  -s layer_height="0.2" -s start_gcode="G28
[2024-01-02 10:01:00.001] [WARNING]  G1 Z5
[2024-01-02 10:01:00.001] [WARNING]  M117 go" -e0 -s material_print_temperature="210"
[2024-01-02 10:01:02.000] [info] Slicing took 2.0s
`

func TestScanLogSettings(t *testing.T) {
	t.Parallel()

	blocks, err := ScanLogSettings(strings.NewReader(engineLog))
	if err != nil {
		t.Fatalf("ScanLogSettings() error = %v", err)
	}
	want := []string{
		`-s day="Mon" -s layer_height="0.3"`,
		`-s layer_height="0.2" -s start_gcode="G28\nG1 Z5\nM117 go" -e0 -s material_print_temperature="210"`,
	}
	if diff := cmp.Diff(want, blocks); diff != "" {
		t.Errorf("ScanLogSettings() mismatch (-want +got):\n%s", diff)
	}

	last, err := ExtractLogSettings(strings.NewReader(engineLog))
	if err != nil {
		t.Fatalf("ExtractLogSettings() error = %v", err)
	}
	triples, err := ParseCommandLine(last)
	if err != nil {
		t.Fatalf("ParseCommandLine() error = %v", err)
	}
	if len(triples) != 3 || triples[1].Value != "G28\nG1 Z5\nM117 go" {
		t.Errorf("parsed log settings = %+v", triples)
	}
}

func TestExtractLogSettings_None(t *testing.T) {
	t.Parallel()

	_, err := ExtractLogSettings(strings.NewReader("[info] nothing here\n"))
	if !errors.Is(err, ErrNoLogSettings) {
		t.Errorf("ExtractLogSettings() error = %v, want ErrNoLogSettings", err)
	}
}

func TestScanLogSettings_RunsIntoSliceEnd(t *testing.T) {
	t.Parallel()

	log := "[t] [WARNING]  -s a=\"open\n[t] [info] Slicing took 1s\n"
	_, err := ScanLogSettings(strings.NewReader(log))
	if !errors.Is(err, ErrParse) {
		t.Errorf("ScanLogSettings() error = %v, want ErrParse", err)
	}
}
