/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package service

// Unit is a component with its own lifecycle, e.g. the background sweeper of a cache.
//
// Start may block for the whole lifetime of the unit. A unit that started successfully never writes
// to fatalErr. Stop may be called even if Start failed or was never called; with gracefully=true
// it waits for the iteration in progress to complete.
type Unit interface {
	Start(fatalErr chan<- error)
	Stop(gracefully bool) error
}

// MetricsRegisterer is implemented by units and collectors that own Prometheus metrics.
type MetricsRegisterer interface {
	MustRegisterMetrics()
	UnregisterMetrics()
}
