package harvest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// evalRule answers Evaluate calls whose script contains match. The first
// matching rule wins; value is delivered through a JSON round-trip so tests
// can use plain maps and structs interchangeably.
type evalRule struct {
	match string
	value any
	err   error
}

// fakePage is an in-memory Page for pipeline tests.
type fakePage struct {
	mu sync.Mutex

	navs   []string
	navErr error

	rules    []evalRule
	waitFunc func(js string) error
	visible  map[string]bool
	texts    map[string]string

	content    string
	contentErr error
	location   string
	scrolls    int
	scrollErr  error
	shot       []byte
}

func (p *fakePage) Navigate(_ context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.navs = append(p.navs, url)
	p.location = url
	return p.navErr
}

func (p *fakePage) Evaluate(_ context.Context, js string, out any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, rule := range p.rules {
		if strings.Contains(js, rule.match) {
			if rule.err != nil {
				return rule.err
			}
			if out == nil {
				return nil
			}
			data, err := json.Marshal(rule.value)
			if err != nil {
				return fmt.Errorf("marshal rule value: %w", err)
			}
			if err := json.Unmarshal(data, out); err != nil {
				return fmt.Errorf("unmarshal rule value: %w", err)
			}
			return nil
		}
	}
	return nil
}

func (p *fakePage) QueryText(_ context.Context, selector string, _ time.Duration) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if v, ok := p.texts[selector]; ok {
		return v, true
	}
	return "", false
}

func (p *fakePage) WaitFunc(_ context.Context, js string, _ time.Duration) error {
	if p.waitFunc != nil {
		return p.waitFunc(js)
	}
	return errors.New("condition not met")
}

func (p *fakePage) WaitVisible(_ context.Context, selector string, _ time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.visible[selector] {
		return nil
	}
	return errors.New("selector not visible")
}

func (p *fakePage) ScrollBy(_ context.Context, _, _ int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scrolls++
	return p.scrollErr
}

func (p *fakePage) Content(_ context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.content, p.contentErr
}

func (p *fakePage) Location(_ context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.location, nil
}

func (p *fakePage) Screenshot(_ context.Context) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.shot == nil {
		return []byte("png"), nil
	}
	return p.shot, nil
}

func (p *fakePage) navigations() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.navs...)
}

func (p *fakePage) scrollCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.scrolls
}

// fakeAPI is an in-memory VideoAPI.
type fakeAPI struct {
	mu           sync.Mutex
	enabled      bool
	videos       map[string]*ResolvedMetadata
	channels     map[string]*ChannelInfo
	videoCalls   int
	channelCalls int
	err          error
}

func (a *fakeAPI) Enabled() bool { return a.enabled }

func (a *fakeAPI) Video(_ context.Context, id string) (*ResolvedMetadata, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.videoCalls++
	if a.err != nil {
		return nil, a.err
	}
	return a.videos[id], nil
}

func (a *fakeAPI) Channel(_ context.Context, id string) (*ChannelInfo, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.channelCalls++
	if a.err != nil {
		return nil, a.err
	}
	return a.channels[id], nil
}

// fakeSink records appended batches.
type fakeSink struct {
	mu      sync.Mutex
	batches [][]UnifiedRecord
	err     error
	closed  bool
}

func (s *fakeSink) AppendBatch(_ context.Context, records []UnifiedRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	batch := append([]UnifiedRecord(nil), records...)
	s.batches = append(s.batches, batch)
	return nil
}

func (s *fakeSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSink) records() []UnifiedRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []UnifiedRecord
	for _, b := range s.batches {
		out = append(out, b...)
	}
	return out
}

// fakePublisher records published events.
type fakePublisher struct {
	mu     sync.Mutex
	events []map[string]any
}

func (p *fakePublisher) Publish(_ context.Context, event map[string]any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

func (p *fakePublisher) byEvent(name string) []map[string]any {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []map[string]any
	for _, e := range p.events {
		if e["event"] == name {
			out = append(out, e)
		}
	}
	return out
}

// readyRules returns the evaluate rules a page needs to pass the readiness
// cascade cleanly: consent declined, no unavailability marker.
func readyRules() []evalRule {
	return []evalRule{
		{match: "introAgreeButton", value: false},
		{match: "ytd-page-not-found-renderer", value: false},
	}
}

func waitAlwaysReady(string) error { return nil }
