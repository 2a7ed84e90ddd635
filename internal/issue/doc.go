// SPDX-License-Identifier: MPL-2.0

// Package issue provides actionable error handling with user-friendly messages.
//
// ActionableError carries the failed operation, the resource involved and
// suggestions; Issue is a catalog of Markdown guidance rendered with glamour
// for the failures users hit most.
package issue
