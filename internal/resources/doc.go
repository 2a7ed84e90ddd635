// SPDX-License-Identifier: MPL-2.0

// Package resources locates the slicer's installed resource tree (definitions,
// extruders, variants, quality presets). The tree is either a plain directory or
// lives inside an AppImage that has to be mounted for as long as it is used, so
// access is modeled as an acquired Root that must be closed.
package resources
