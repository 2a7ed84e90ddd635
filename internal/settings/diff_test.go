// SPDX-License-Identifier: MPL-2.0

package settings

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestValuesEqual(t *testing.T) {
	t.Parallel()

	tests := []struct {
		a, b string
		want bool
	}{
		{"True", "true", true},
		{"false", "FALSE", true},
		{"true", "1", false},
		{"0.20", "0.2", true},
		{"5", "5.0", true},
		{"5", "abc", false},
		{"-1", "-1.0", false},
		{"[[1,0],[0,1]]", "[[1,0],[0,1]]", true},
		{"abc", "ABC", false},
	}

	for _, tt := range tests {
		t.Run(tt.a+"_"+tt.b, func(t *testing.T) {
			t.Parallel()
			if got := ValuesEqual(tt.a, tt.b); got != tt.want {
				t.Errorf("ValuesEqual(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestDiff(t *testing.T) {
	t.Parallel()

	a := []Pair{{"x", "1"}, {"y", "true"}, {"z", "0.1"}, {"x", "2"}, {"only_a", "v"}}
	b := []Pair{{"x", "2.0"}, {"y", "False"}, {"z", "0.10"}, {"only_b", "w"}}

	got := Diff(a, b)
	want := Difference{
		OnlyInA: []Pair{{"only_a", "v"}},
		OnlyInB: []Pair{{"only_b", "w"}},
		Changed: []Change{{Key: "y", A: "true", B: "False"}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Diff() mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]Pair{{"only_a", "v"}, {"y", "true"}}, got.ASide()); diff != "" {
		t.Errorf("ASide() mismatch (-want +got):\n%s", diff)
	}
	if got.Empty() {
		t.Error("Empty() = true, want false")
	}
	if !Diff(a, a).Empty() {
		t.Error("Diff(a, a) should be empty")
	}
}
