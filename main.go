// SPDX-License-Identifier: MPL-2.0

package main

import "github.com/plater3d/plater/cmd/plater"

func main() {
	cmd.Execute()
}
