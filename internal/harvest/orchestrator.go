package harvest

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Search result filter codes, appended as the sp query parameter.
var searchFilters = map[Category]string{
	CategoryVideo:    "EgIQAQ%253D%253D",
	CategoryChannel:  "EgIQAg%253D%253D",
	CategoryPlaylist: "EgIQAw%253D%253D",
	CategoryMovie:    "EgIQBA%253D%253D",
	CategoryLive:     "EgJAAQ%253D%253D",
}

// CategorySearchURL builds the filtered results URL for a keyword. Shorts
// have no server-side filter; their candidates are picked out of the
// unfiltered results by link shape.
func CategorySearchURL(keyword string, cat Category) string {
	base := SearchURL(keyword)
	if code, ok := searchFilters[cat]; ok {
		return base + "&sp=" + code
	}
	return base
}

func channelTabURL(channelURL string, cat Category) string {
	switch cat {
	case CategoryShorts:
		return channelURL + "/shorts"
	default:
		return channelURL + "/videos"
	}
}

// MakeTargets classifies raw start inputs into targets: channel URLs, direct
// item URLs, and everything else as a search keyword.
func MakeTargets(inputs []string) []Target {
	out := make([]Target, 0, len(inputs))
	for _, in := range inputs {
		switch {
		case in == "":
		case IsChannelURL(in):
			out = append(out, Target{Kind: TargetChannel, Value: in})
		case IsItemURL(in):
			out = append(out, Target{Kind: TargetDirectItem, Value: in})
		default:
			out = append(out, Target{Kind: TargetSearch, Value: in})
		}
	}
	return out
}

// Orchestrator drives a full run: it walks the target list sequentially on
// one browsing session, harvests candidates per category, resolves them, and
// funnels everything through the emitter. One target failing never aborts
// the run.
type Orchestrator struct {
	page      Page
	resolver  *Resolver
	harvester *Harvester
	emitter   *Emitter
	api       VideoAPI
	publisher Publisher
	stop      *StopSignal
	clock     Clock
	logger    *zap.Logger

	caps       Caps
	categories []Category

	chanMu    sync.Mutex
	chanCache map[string]*ChannelInfo

	emitMu  sync.Mutex
	emitted int
}

// OrchestratorDeps wires an orchestrator.
type OrchestratorDeps struct {
	Page      Page
	Resolver  *Resolver
	Harvester *Harvester
	Emitter   *Emitter
	API       VideoAPI
	Publisher Publisher
	Stop      *StopSignal
	Clock     Clock
	Logger    *zap.Logger
}

// NewOrchestrator builds an orchestrator for one run.
func NewOrchestrator(deps OrchestratorDeps, caps Caps, categories []Category) *Orchestrator {
	if deps.Clock == nil {
		deps.Clock = SystemClock{}
	}
	return &Orchestrator{
		page:       deps.Page,
		resolver:   deps.Resolver,
		harvester:  deps.Harvester,
		emitter:    deps.Emitter,
		api:        deps.API,
		publisher:  deps.Publisher,
		stop:       deps.Stop,
		clock:      deps.Clock,
		logger:     deps.Logger,
		caps:       caps,
		categories: categories,
		chanCache:  make(map[string]*ChannelInfo),
	}
}

// Run processes every target in order and returns the run summary. The error
// is reserved for failures of the run itself (flushing the emitter); target
// failures are reported in the summary.
func (o *Orchestrator) Run(ctx context.Context, targets []Target) (RunSummary, error) {
	summary := RunSummary{RunID: uuid.NewString(), Started: o.clock.Now()}
	o.logger.Info("run started",
		zap.String("run_id", summary.RunID), zap.Int("targets", len(targets)))

	for _, target := range targets {
		result := TargetResult{Target: target, Status: TargetInProgress}
		switch {
		case o.stop.Stopped() || ctx.Err() != nil:
			result.Status = TargetSkipped
			result.Err = "run stopped"
		case o.globalCapReached():
			result.Status = TargetSkipped
			result.Err = "global cap reached"
		default:
			result = o.runTarget(ctx, target)
		}
		summary.Targets = append(summary.Targets, result)
		o.publish(ctx, map[string]any{
			"event":   "target_completed",
			"runId":   summary.RunID,
			"kind":    string(target.Kind),
			"value":   target.Value,
			"status":  string(result.Status),
			"emitted": result.Emitted,
		})
	}

	flushErr := o.emitter.Flush(ctx)
	summary.Finished = o.clock.Now()
	summary.Emitted = o.emittedCount()
	o.publish(ctx, map[string]any{
		"event":      "run_completed",
		"runId":      summary.RunID,
		"emitted":    summary.Emitted,
		"targets":    len(summary.Targets),
		"durationMs": summary.Finished.Sub(summary.Started).Milliseconds(),
	})
	o.logger.Info("run finished",
		zap.String("run_id", summary.RunID),
		zap.Int("emitted", summary.Emitted),
		zap.Duration("elapsed", summary.Finished.Sub(summary.Started)))
	if flushErr != nil {
		return summary, fmt.Errorf("final flush: %w", flushErr)
	}
	return summary, nil
}

// runTarget dispatches one target and absorbs panics from deep inside the
// extraction stack so a malformed page cannot end the run.
func (o *Orchestrator) runTarget(ctx context.Context, target Target) (result TargetResult) {
	result = TargetResult{Target: target, Status: TargetInProgress}
	defer func() {
		if rec := recover(); rec != nil {
			o.logger.Error("target panicked",
				zap.String("value", target.Value), zap.Any("panic", rec))
			result.Status = TargetFailed
			result.Err = fmt.Sprintf("panic: %v", rec)
		}
	}()

	var emitted int
	var err error
	switch target.Kind {
	case TargetDirectItem:
		emitted, err = o.runDirectItem(ctx, target.Value)
	case TargetChannel:
		emitted, err = o.runChannel(ctx, target.Value)
	case TargetSearch:
		emitted, err = o.runSearch(ctx, target.Value)
	default:
		err = fmt.Errorf("unknown target kind %q", target.Kind)
	}

	result.Emitted = emitted
	if err != nil {
		result.Status = TargetFailed
		result.Err = err.Error()
		o.logger.Warn("target failed",
			zap.String("kind", string(target.Kind)),
			zap.String("value", target.Value), zap.Error(err))
		return result
	}
	result.Status = TargetCompleted
	return result
}

func (o *Orchestrator) runDirectItem(ctx context.Context, url string) (int, error) {
	if o.resolveAndEmit(ctx, url) {
		return 1, nil
	}
	return 0, nil
}

func (o *Orchestrator) runChannel(ctx context.Context, channelURL string) (int, error) {
	emitted := 0
	for _, cat := range o.categories {
		if cat != CategoryVideo && cat != CategoryShorts {
			continue
		}
		if o.stop.Stopped() || o.globalCapReached() {
			break
		}
		candidates, err := o.harvester.Collect(ctx, o.page,
			channelTabURL(CanonicalURL(channelURL), cat), cat, o.caps.For(cat), o.emitter.dedup)
		if err != nil {
			return emitted, fmt.Errorf("harvest channel %s tab %s: %w", channelURL, cat, err)
		}
		emitted += o.resolveCandidates(ctx, candidates)
	}
	return emitted, nil
}

func (o *Orchestrator) runSearch(ctx context.Context, keyword string) (int, error) {
	emitted := 0
	for _, cat := range o.categories {
		if o.stop.Stopped() || o.globalCapReached() {
			break
		}
		candidates, err := o.harvester.Collect(ctx, o.page,
			CategorySearchURL(keyword, cat), cat, o.caps.For(cat), o.emitter.dedup)
		if err != nil {
			return emitted, fmt.Errorf("harvest search %q category %s: %w", keyword, cat, err)
		}
		switch cat {
		case CategoryChannel, CategoryPlaylist:
			// Listing-type results are surveyed, not expanded: resolving
			// every channel or playlist found by a keyword would multiply
			// the run beyond its caps.
			o.logger.Info("collected listing candidates",
				zap.String("keyword", keyword), zap.String("category", string(cat)),
				zap.Int("count", len(candidates)))
		default:
			emitted += o.resolveCandidates(ctx, candidates)
		}
	}
	return emitted, nil
}

func (o *Orchestrator) resolveCandidates(ctx context.Context, candidates []Candidate) int {
	emitted := 0
	for _, cand := range candidates {
		if o.stop.Stopped() || ctx.Err() != nil || o.globalCapReached() {
			break
		}
		if o.resolveAndEmit(ctx, cand.URL) {
			emitted++
		}
	}
	return emitted
}

func (o *Orchestrator) resolveAndEmit(ctx context.Context, url string) bool {
	meta, ok := o.resolver.Resolve(ctx, o.page, url)
	if !ok {
		return false
	}
	var info *ChannelInfo
	if meta.ChannelID != nil {
		info = o.channelInfo(ctx, *meta.ChannelID)
	}
	accepted, err := o.emitter.Add(ctx, Unify(meta, info))
	if err != nil {
		o.logger.Error("emit failed", zap.String("id", meta.ID), zap.Error(err))
	}
	if accepted {
		o.emitMu.Lock()
		o.emitted++
		o.emitMu.Unlock()
	}
	return accepted
}

// channelInfo returns cached channel enrichment, fetching at most once per
// channel per run. The fetch runs outside the lock; a racing duplicate fetch
// is harmless and the first stored value wins.
func (o *Orchestrator) channelInfo(ctx context.Context, channelID string) *ChannelInfo {
	o.chanMu.Lock()
	if info, ok := o.chanCache[channelID]; ok {
		o.chanMu.Unlock()
		return info
	}
	o.chanMu.Unlock()

	var info *ChannelInfo
	if o.api != nil && o.api.Enabled() {
		fetched, err := o.api.Channel(ctx, channelID)
		if err != nil {
			o.logger.Warn("channel lookup failed", zap.String("channel_id", channelID), zap.Error(err))
		} else {
			info = fetched
		}
	}

	o.chanMu.Lock()
	defer o.chanMu.Unlock()
	if existing, ok := o.chanCache[channelID]; ok {
		return existing
	}
	o.chanCache[channelID] = info
	return info
}

func (o *Orchestrator) globalCapReached() bool {
	if o.caps.Global <= 0 {
		return false
	}
	return o.emittedCount() >= o.caps.Global
}

func (o *Orchestrator) emittedCount() int {
	o.emitMu.Lock()
	defer o.emitMu.Unlock()
	return o.emitted
}

func (o *Orchestrator) publish(ctx context.Context, event map[string]any) {
	if o.publisher == nil {
		return
	}
	if err := o.publisher.Publish(ctx, event); err != nil {
		o.logger.Debug("event publish failed", zap.Error(err))
	}
}
