// SPDX-License-Identifier: MPL-2.0

package index

import (
	"github.com/plater3d/plater/internal/profile"
)

// Root returns the directory the index was built from.
func (idx *Index) Root() string { return idx.root }

// ByName returns the ids registered under a logical name, in registration order.
func (idx *Index) ByName(name string) []string {
	ids := idx.names[name]
	if ids == nil {
		return nil
	}
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}

// HasName reports whether any profile is registered under name.
func (idx *Index) HasName(name string) bool {
	_, ok := idx.names[name]
	return ok
}

// ByID returns the loaded profile with the given stable id.
func (idx *Index) ByID(id string) (*profile.Profile, bool) {
	p, ok := idx.profiles[id]
	return p, ok
}

// PathForID returns the file that claimed id, including files that were
// skipped because of their setting version.
func (idx *Index) PathForID(id string) (string, bool) {
	p, ok := idx.paths[id]
	return p, ok
}

// Profiles returns all loaded profiles in discovery order.
func (idx *Index) Profiles() []*profile.Profile {
	out := make([]*profile.Profile, 0, len(idx.order))
	for _, id := range idx.order {
		out = append(out, idx.profiles[id])
	}
	return out
}

// OfType returns the loaded profiles of type t in discovery order.
func (idx *Index) OfType(t profile.Type) []*profile.Profile {
	var out []*profile.Profile
	for _, id := range idx.order {
		if p := idx.profiles[id]; p.Type == t {
			out = append(out, p)
		}
	}
	return out
}

// Machines returns the names of all machine profiles in discovery order.
func (idx *Index) Machines() []string {
	return uniqueNames(idx.OfType(profile.TypeMachine))
}

// MachineByName returns the machine profile with the given logical name. When
// several share the name the last one discovered wins.
func (idx *Index) MachineByName(name string) (*profile.Profile, bool) {
	return lastNamed(idx.OfType(profile.TypeMachine), name)
}

// ExtruderByName returns the extruder profile with the given logical name. When
// several share the name the last one discovered wins.
func (idx *Index) ExtruderByName(name string) (*profile.Profile, bool) {
	return lastNamed(idx.OfType(profile.TypeExtruderTrain), name)
}

// ExtrudersForMachine returns the names of the extruder profiles that belong to
// machine, in discovery order.
func (idx *Index) ExtrudersForMachine(machine string) []string {
	var owned []*profile.Profile
	for _, p := range idx.OfType(profile.TypeExtruderTrain) {
		if p.Machine == machine {
			owned = append(owned, p)
		}
	}
	return uniqueNames(owned)
}

// Diagnostics returns the issues collected during Build.
func (idx *Index) Diagnostics() []Diagnostic {
	out := make([]Diagnostic, len(idx.diagnostics))
	copy(out, idx.diagnostics)
	return out
}

func uniqueNames(profiles []*profile.Profile) []string {
	var out []string
	seen := make(map[string]struct{}, len(profiles))
	for _, p := range profiles {
		if _, ok := seen[p.Name]; ok {
			continue
		}
		seen[p.Name] = struct{}{}
		out = append(out, p.Name)
	}
	return out
}

func lastNamed(profiles []*profile.Profile, name string) (*profile.Profile, bool) {
	var found *profile.Profile
	for _, p := range profiles {
		if p.Name == name {
			found = p
		}
	}
	return found, found != nil
}
