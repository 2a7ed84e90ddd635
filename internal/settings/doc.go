// SPDX-License-Identifier: MPL-2.0

// Package settings holds the value types shared by profile resolution and engine
// invocation: an insertion-ordered string map, scoped setting triples produced by
// parsing an engine command line, and the plain-text settings file format
// (key="value" lines) used for auditing and diffing.
package settings
