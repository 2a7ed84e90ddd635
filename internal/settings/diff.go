// SPDX-License-Identifier: MPL-2.0

package settings

import (
	"regexp"
	"strconv"
	"strings"
)

var numberRe = regexp.MustCompile(`^[0-9]+(\.[0-9]*)?$`)

type (
	// Change is a key present on both sides with values that differ.
	Change struct {
		Key string
		A   string
		B   string
	}

	// Difference is the result of comparing two settings files. Only the last
	// value of a repeated key takes part in the comparison.
	Difference struct {
		OnlyInA []Pair
		OnlyInB []Pair
		Changed []Change
	}
)

// Diff compares a against b. Keys are reported in the order they first appear
// on their own side.
func Diff(a, b []Pair) Difference {
	aKeys, aLast := lastValues(a)
	bKeys, bLast := lastValues(b)

	var d Difference
	for _, k := range aKeys {
		bv, ok := bLast[k]
		switch {
		case !ok:
			d.OnlyInA = append(d.OnlyInA, Pair{Key: k, Value: aLast[k]})
		case !ValuesEqual(aLast[k], bv):
			d.Changed = append(d.Changed, Change{Key: k, A: aLast[k], B: bv})
		}
	}
	for _, k := range bKeys {
		if _, ok := aLast[k]; !ok {
			d.OnlyInB = append(d.OnlyInB, Pair{Key: k, Value: bLast[k]})
		}
	}
	return d
}

// Empty reports whether the two sides agree.
func (d Difference) Empty() bool {
	return len(d.OnlyInA) == 0 && len(d.OnlyInB) == 0 && len(d.Changed) == 0
}

// ASide returns the a-side values that b lacks or disagrees with: keys only in a
// first, then changed keys. Writing them to a settings file and passing it to a
// slice run reproduces a's behavior on top of b.
func (d Difference) ASide() []Pair {
	out := make([]Pair, 0, len(d.OnlyInA)+len(d.Changed))
	out = append(out, d.OnlyInA...)
	for _, c := range d.Changed {
		out = append(out, Pair{Key: c.Key, Value: c.A})
	}
	return out
}

// ValuesEqual compares two setting values loosely: booleans ignore case and
// decimal numbers compare by value.
func ValuesEqual(a, b string) bool {
	switch {
	case a == "true" || a == "True" || a == "false" || a == "False":
		return strings.EqualFold(a, b)
	case numberRe.MatchString(a):
		af, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return a == b
		}
		bf, err := strconv.ParseFloat(b, 64)
		if err != nil {
			return false
		}
		return af == bf
	default:
		return a == b
	}
}

func lastValues(pairs []Pair) ([]string, map[string]string) {
	var keys []string
	last := make(map[string]string, len(pairs))
	for _, p := range pairs {
		if _, ok := last[p.Key]; !ok {
			keys = append(keys, p.Key)
		}
		last[p.Key] = p.Value
	}
	return keys, last
}
