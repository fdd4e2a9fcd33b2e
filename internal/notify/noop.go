package notify

import "context"

// Noop drops every event. Used when no event topic is configured.
type Noop struct{}

// Publish discards the event.
func (Noop) Publish(context.Context, map[string]any) error { return nil }

// Close is a no-op.
func (Noop) Close() error { return nil }
