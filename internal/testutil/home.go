// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"runtime"
	"testing"
)

// SetHomeDir points the platform's home variable (USERPROFILE on Windows,
// HOME elsewhere) at dir for the rest of the test.
func SetHomeDir(t testing.TB, dir string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		MustSetenv(t, "USERPROFILE", dir)
		return
	}
	MustSetenv(t, "HOME", dir)
}
