// SPDX-License-Identifier: MPL-2.0

package settings

import (
	"errors"
	"fmt"
)

const (
	// ScopeGeneral holds settings given before any scope-changing flag.
	ScopeGeneral ScopeKind = "general"
	// ScopeGroup holds settings following a mesh group flag.
	ScopeGroup ScopeKind = "group"
	// ScopeObject holds settings following an object load flag.
	ScopeObject ScopeKind = "object"
	// ScopeExtruder holds settings following an extruder select flag.
	ScopeExtruder ScopeKind = "extruder"
)

// ErrInvalidScopeKind is returned when a ScopeKind value is not recognized.
var ErrInvalidScopeKind = errors.New("invalid scope kind")

type (
	// ScopeKind partitions parsed settings by the flag that introduced them.
	ScopeKind string

	// InvalidScopeKindError is returned when a ScopeKind value is not recognized.
	// It wraps ErrInvalidScopeKind for errors.Is() compatibility.
	InvalidScopeKindError struct {
		Value ScopeKind
	}

	// Scope is a (kind, index) pair. Indexes count groups and objects in the
	// order they were opened; extruder scopes carry the extruder number.
	Scope struct {
		Kind  ScopeKind
		Index int
	}

	// Triple is one setting as it appeared on an engine command line.
	Triple struct {
		Scope Scope
		Key   string
		Value string
	}
)

// General is the scope every command line starts in.
var General = Scope{Kind: ScopeGeneral}

// String returns the string representation of the ScopeKind.
func (k ScopeKind) String() string { return string(k) }

// IsValid returns whether the ScopeKind is one of the defined kinds.
func (k ScopeKind) IsValid() (bool, []error) {
	switch k {
	case ScopeGeneral, ScopeGroup, ScopeObject, ScopeExtruder:
		return true, nil
	default:
		return false, []error{&InvalidScopeKindError{Value: k}}
	}
}

// Error implements the error interface for InvalidScopeKindError.
func (e *InvalidScopeKindError) Error() string {
	return fmt.Sprintf("invalid scope kind %q (valid: general, group, object, extruder)", e.Value)
}

// Unwrap returns ErrInvalidScopeKind for errors.Is() compatibility.
func (e *InvalidScopeKindError) Unwrap() error { return ErrInvalidScopeKind }

// String renders the scope as "(kind, index)".
func (s Scope) String() string {
	return fmt.Sprintf("(%s, %d)", s.Kind, s.Index)
}
