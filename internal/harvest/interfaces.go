package harvest

import (
	"context"
	"time"
)

// Page is the rendering collaborator: one browsing session's visible page.
// All calls are best-effort; implementations must bound every operation and
// surface absence ("selector not found") as a value, not an error, where the
// signature allows it.
type Page interface {
	// Navigate loads url and waits for the DOM to be parsed.
	Navigate(ctx context.Context, url string) error
	// Evaluate runs a script and unmarshals its JSON result into out.
	// Pass nil to discard the result.
	Evaluate(ctx context.Context, js string, out any) error
	// QueryText returns the visible text of the first node matching
	// selector, or ok=false when no node appears within the timeout.
	QueryText(ctx context.Context, selector string, timeout time.Duration) (string, bool)
	// WaitFunc polls a script expression until it is truthy or the
	// timeout elapses.
	WaitFunc(ctx context.Context, js string, timeout time.Duration) error
	// WaitVisible blocks until selector matches a visible node.
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error
	// ScrollBy scrolls the page viewport.
	ScrollBy(ctx context.Context, dx, dy int) error
	// Content returns the current page markup.
	Content(ctx context.Context) (string, error)
	// Location returns the page's current URL.
	Location(ctx context.Context) (string, error)
	// Screenshot captures the current viewport as PNG bytes.
	Screenshot(ctx context.Context) ([]byte, error)
}

// VideoAPI is the structured-data collaborator. Both lookups return
// (nil, nil) when the item is absent or no credential is configured;
// "unavailable" is not an error.
type VideoAPI interface {
	Enabled() bool
	Video(ctx context.Context, id string) (*ResolvedMetadata, error)
	Channel(ctx context.Context, id string) (*ChannelInfo, error)
}

// Sink receives batches of unified records.
type Sink interface {
	AppendBatch(ctx context.Context, records []UnifiedRecord) error
	Close() error
}

// SnapshotStore persists diagnostic screenshots and returns a URI.
type SnapshotStore interface {
	Put(ctx context.Context, key string, data []byte) (string, error)
}

// Publisher pushes run and target completion events.
type Publisher interface {
	Publish(ctx context.Context, event map[string]any) error
	Close() error
}

// Clock returns the current time (injectable for tests).
type Clock interface {
	Now() time.Time
}

// SystemClock is the default Clock backed by time.Now.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time { return time.Now().UTC() }
