// SPDX-License-Identifier: MPL-2.0

// Package index scans a slicer data directory for profile files and builds the
// id and name lookups used to resolve container stacks. An Index is built once
// and is read-only afterward.
package index
