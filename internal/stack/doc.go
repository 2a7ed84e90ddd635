// SPDX-License-Identifier: MPL-2.0

// Package stack resolves a profile's container references into concrete layers
// and folds those layers into one ordered settings map. A Context owns the
// profile index, the material library and the lazily acquired resource root;
// callers create it once and Close it when done.
package stack
