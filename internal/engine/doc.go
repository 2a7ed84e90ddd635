// SPDX-License-Identifier: MPL-2.0

// Package engine turns merged settings into a CuraEngine command line, runs
// it, and parses engine command lines back into scoped settings.
//
// Build and ParseCommandLine share one grammar: rendering an Invocation with
// CommandLine and parsing the result yields the same settings in the same
// scopes.
package engine
