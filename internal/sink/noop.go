package sink

import (
	"context"

	"github.com/ashh-m/ytkeywordsearchtool/internal/harvest"
)

// Noop discards every batch. Used when no persistence is configured, for
// dry runs that only exercise extraction.
type Noop struct{}

// AppendBatch discards the batch.
func (Noop) AppendBatch(context.Context, []harvest.UnifiedRecord) error { return nil }

// Close is a no-op.
func (Noop) Close() error { return nil }
