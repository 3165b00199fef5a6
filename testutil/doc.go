/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Package testutil contains assertion helpers for tests of the cache and its supporting packages.
package testutil

type tHelper interface {
	Helper()
}
