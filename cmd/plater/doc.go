// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the plater command tree.
package cmd
