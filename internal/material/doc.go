// SPDX-License-Identifier: MPL-2.0

// Package material loads vendor material profiles (*.xml.fdm_material) and
// translates their human-readable setting labels into engine setting keys.
package material
