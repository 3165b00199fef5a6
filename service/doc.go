/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Package service provides primitives for running background work: workers that are run periodically
// with panic recovery, and units that can be started and stopped gracefully.
package service
