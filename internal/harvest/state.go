package harvest

import (
	"sync"
	"sync/atomic"
)

// StopSignal is the process-wide cooperative cancellation flag. Once set it
// never clears; loops check it at every iteration boundary and never start a
// new navigation afterwards.
type StopSignal struct {
	flag atomic.Bool
}

// NewStopSignal returns an unset stop signal.
func NewStopSignal() *StopSignal { return &StopSignal{} }

// Set marks the signal. Safe to call from signal handlers and any goroutine.
func (s *StopSignal) Set() { s.flag.Store(true) }

// Stopped reports whether the signal has been set.
func (s *StopSignal) Stopped() bool { return s.flag.Load() }

// DedupSet tracks identifiers already handled in this run. Membership grows
// monotonically; the test-and-set is atomic so two workers resolving the
// same identifier cannot both claim it.
type DedupSet struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewDedupSet returns an empty set.
func NewDedupSet() *DedupSet {
	return &DedupSet{seen: make(map[string]struct{})}
}

// MarkIfNew records id and reports true only for the first caller.
func (d *DedupSet) MarkIfNew(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.seen[id]; ok {
		return false
	}
	d.seen[id] = struct{}{}
	return true
}

// Contains reports whether id has been marked.
func (d *DedupSet) Contains(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.seen[id]
	return ok
}

// Len returns the number of marked identifiers.
func (d *DedupSet) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
