package snapshot

import "context"

// Noop discards snapshots. Used when no snapshot storage is configured.
type Noop struct{}

// Put discards the data and returns an empty URI.
func (Noop) Put(context.Context, string, []byte) (string, error) { return "", nil }
