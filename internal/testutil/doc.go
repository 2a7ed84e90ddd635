// SPDX-License-Identifier: MPL-2.0

// Package testutil provides helpers for tests that build profile trees on disk
// and adjust the process environment, failing the test on any setup error.
package testutil
