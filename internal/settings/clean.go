// SPDX-License-Identifier: MPL-2.0

package settings

const (
	// ActionOK marks the effective value of a (scope, key) pair.
	ActionOK Action = "ok"
	// ActionDuplicate marks a value overridden later in the same scope.
	ActionDuplicate Action = "duplicate"
	// ActionDisabled marks a key that only reflects the environment of one run.
	ActionDisabled Action = "disabled"
)

// disabledKeys vary between otherwise identical runs and are never compared.
var disabledKeys = map[string]struct{}{
	"day":  {},
	"time": {},
}

type (
	// Action is the verdict Clean assigns to a triple.
	Action string

	// Entry is a triple together with its cleaning verdict.
	Entry struct {
		Action Action
		Triple
	}
)

// Clean marks every triple with an Action while preserving input order.
// Scanning from the end, the first triple seen for a (scope, key) pair is ok and
// every earlier one is a duplicate. Keys on the deny-list are always disabled.
func Clean(triples []Triple) []Entry {
	type scopedKey struct {
		scope Scope
		key   string
	}

	out := make([]Entry, len(triples))
	seen := make(map[scopedKey]struct{}, len(triples))
	for i := len(triples) - 1; i >= 0; i-- {
		t := triples[i]
		action := ActionOK
		sk := scopedKey{scope: t.Scope, key: t.Key}
		switch {
		case isDisabled(t.Key):
			action = ActionDisabled
		case hasKey(seen, sk):
			action = ActionDuplicate
		default:
			seen[sk] = struct{}{}
		}
		out[i] = Entry{Action: action, Triple: t}
	}
	return out
}

// Effective returns the triples marked ok, in input order.
func Effective(entries []Entry) []Triple {
	var out []Triple
	for _, e := range entries {
		if e.Action == ActionOK {
			out = append(out, e.Triple)
		}
	}
	return out
}

func isDisabled(key string) bool {
	_, ok := disabledKeys[key]
	return ok
}

func hasKey[K comparable](m map[K]struct{}, k K) bool {
	_, ok := m[k]
	return ok
}
