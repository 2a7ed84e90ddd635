// SPDX-License-Identifier: MPL-2.0

// Package profile parses slicer profile files: INI documents with the sections
// general (name), metadata (type, setting_version, quality_type, machine),
// containers (ordered references to other profiles) and values (settings).
package profile
