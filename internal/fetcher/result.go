package fetcher

import "marketpulse/internal/model"

// Result represents the outcome of a fetch for one symbol.
// It's produced by worker goroutines and collected by the coordinator,
// which writes successes back to the cache.
type Result struct {
	// Symbol is the key the fetch was requested for
	Symbol string

	// Snapshot is the fetched payload
	Snapshot model.Snapshot

	// Error contains any error that occurred during the fetch operation.
	// If Error is not nil, Snapshot should be considered invalid.
	Error error
}
