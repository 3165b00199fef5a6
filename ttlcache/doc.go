/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Package ttlcache provides generic in-memory cache where every entry has its own time-to-live.
//
// Expired entries are removed lazily: a background sweeper scans the cache once per check interval,
// and Contains and RemoveExpired force a scan on demand. Get never evaluates expiration itself,
// so it may return an entry whose TTL has elapsed but which was not swept yet.
// The cache also provides Prometheus metrics and may be configured via the config package.
package ttlcache
