// Package metrics exposes prometheus counters for streaming API requests, retries, batch writes and runs.
//
// Metrics register on the default registry via promauto and are served by [Handler].
// Callers record through the Record* functions rather than touching the collectors.
package metrics
