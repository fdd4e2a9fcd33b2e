package harvest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Outcome is the result of preparing a page for extraction.
type Outcome string

// Readiness outcomes. DegradedReady is not an error: extraction proceeds
// best-effort against raw markup. Stopped is non-retryable.
const (
	OutcomeReady       Outcome = "ready"
	OutcomeDegraded    Outcome = "degraded"
	OutcomeUnavailable Outcome = "unavailable"
	OutcomeStopped     Outcome = "stopped"
)

const initDataJS = `Boolean(window.ytInitialPlayerResponse) || Boolean(window.ytInitialData)`

var consentDismissJS = fmt.Sprintf(`(() => {
	const sels = [%s];
	const tryDoc = (doc) => {
		for (const s of sels) {
			const el = doc.querySelector(s);
			if (el) { el.click(); return true; }
		}
		return false;
	};
	if (tryDoc(document)) return true;
	for (const frame of document.querySelectorAll('iframe')) {
		try {
			if (frame.contentDocument && tryDoc(frame.contentDocument)) return true;
		} catch (e) {}
	}
	return false;
})()`, `'button[aria-label*="Accept"]', 'button[aria-label*="Agree"]', 'button#introAgreeButton', 'tp-yt-paper-button[aria-label*="Accept"]'`)

var unavailablePhrases = []string{
	"this page isn't available",
	"sorry about that",
	"channel is not available",
	"page not found",
	"channel unavailable",
	"video unavailable",
}

var baseStructureSelectors = []string{
	"ytd-browse",
	"ytd-rich-grid-renderer",
	"ytd-rich-item-renderer",
	"ytd-channel-name",
	"ytd-section-list-renderer",
}

var categoryStructureSelectors = map[Category][]string{
	CategoryVideo:    {"ytd-watch-flexy", "#contents ytd-rich-item-renderer"},
	CategoryShorts:   {"ytd-reel-video-renderer", "ytd-shorts", "ytd-reel-shelf-renderer"},
	CategoryChannel:  {"ytd-channel-renderer", "#items ytd-grid-video-renderer"},
	CategoryPlaylist: {"ytd-playlist-renderer"},
	CategoryLive:     {"ytd-watch-flexy"},
	CategoryMovie:    {"ytd-watch-flexy"},
}

var categoryMarkupHints = []string{"/shorts/", "watch?v=", "ytd-rich-grid-renderer"}

// ReadinessConfig bounds each step of the preparation cascade.
type ReadinessConfig struct {
	InitDataWait time.Duration
	SelectorWait time.Duration
	BodyTextWait time.Duration
}

func (c *ReadinessConfig) applyDefaults() {
	if c.InitDataWait <= 0 {
		c.InitDataWait = 20 * time.Second
	}
	if c.SelectorWait <= 0 {
		c.SelectorWait = 3 * time.Second
	}
	if c.BodyTextWait <= 0 {
		c.BodyTextWait = 2 * time.Second
	}
}

// Controller decides whether a navigated page has produced enough renderable
// state to be read. The target platform renders asynchronously and
// inconsistently, so a single wait condition is not enough: the controller
// walks an ordered cascade of progressively cheaper checks and degrades
// rather than failing the item.
type Controller struct {
	stop      *StopSignal
	snapshots SnapshotStore
	logger    *zap.Logger
	cfg       ReadinessConfig
}

// NewController builds a readiness controller. snapshots may be nil.
func NewController(stop *StopSignal, snapshots SnapshotStore, logger *zap.Logger, cfg ReadinessConfig) *Controller {
	cfg.applyDefaults()
	return &Controller{stop: stop, snapshots: snapshots, logger: logger, cfg: cfg}
}

// Prepare navigates to url and walks the readiness cascade. Navigation
// failures are logged, not fatal; the only hard exits are the stop signal
// and an explicit unavailability marker.
func (c *Controller) Prepare(ctx context.Context, page Page, url string, cat Category) Outcome {
	c.logger.Info("navigating", zap.String("url", url), zap.String("category", string(cat)))
	if err := page.Navigate(ctx, url); err != nil {
		c.logger.Warn("navigation failed, continuing with current state",
			zap.String("url", url), zap.Error(err))
	}

	if c.stop.Stopped() {
		return OutcomeStopped
	}

	c.dismissConsent(ctx, page)

	if c.unavailable(ctx, page) {
		c.logger.Warn("page reports content unavailable", zap.String("url", url))
		PagesUnavailable.Inc()
		c.capture(ctx, page, "unavailable")
		return OutcomeUnavailable
	}

	if err := page.WaitFunc(ctx, initDataJS, c.cfg.InitDataWait); err == nil {
		c.logger.Debug("init data present", zap.String("url", url))
		return OutcomeReady
	}
	c.logger.Debug("init data wait timed out, probing structure", zap.String("url", url))

	for _, sel := range structureSelectors(cat) {
		if err := page.WaitVisible(ctx, sel, c.cfg.SelectorWait); err == nil {
			c.logger.Debug("structural selector visible",
				zap.String("url", url), zap.String("selector", sel))
			return OutcomeReady
		}
	}

	if c.documentSettled(ctx, page) {
		return OutcomeReady
	}

	if c.markupHintsPresent(ctx, page) {
		c.logger.Info("proceeding on markup hints without init data", zap.String("url", url))
		PagesDegraded.Inc()
		return OutcomeDegraded
	}

	// State may have changed while the fallbacks ran.
	if c.unavailable(ctx, page) {
		c.logger.Warn("page became unavailable during readiness probing", zap.String("url", url))
		PagesUnavailable.Inc()
		c.capture(ctx, page, "unavailable")
		return OutcomeUnavailable
	}

	c.logger.Warn("no readiness signal detected, extracting best-effort", zap.String("url", url))
	PagesDegraded.Inc()
	c.capture(ctx, page, "no_init_data")
	return OutcomeDegraded
}

func (c *Controller) dismissConsent(ctx context.Context, page Page) {
	var clicked bool
	if err := page.Evaluate(ctx, consentDismissJS, &clicked); err != nil {
		c.logger.Debug("consent dismissal failed", zap.Error(err))
		return
	}
	if clicked {
		c.logger.Info("dismissed consent overlay")
	}
}

func (c *Controller) unavailable(ctx context.Context, page Page) bool {
	var hasMarker bool
	if err := page.Evaluate(ctx, `Boolean(document.querySelector('ytd-page-not-found-renderer'))`, &hasMarker); err == nil && hasMarker {
		return true
	}
	if body, ok := page.QueryText(ctx, "body", c.cfg.BodyTextWait); ok {
		lowered := strings.ToLower(body)
		for _, phrase := range unavailablePhrases[:3] {
			if strings.Contains(lowered, phrase) {
				return true
			}
		}
	}
	markup, err := page.Content(ctx)
	if err != nil {
		return false
	}
	lowered := strings.ToLower(markup)
	for _, phrase := range unavailablePhrases[3:] {
		if strings.Contains(lowered, phrase) {
			return true
		}
	}
	return false
}

func (c *Controller) documentSettled(ctx context.Context, page Page) bool {
	var state string
	if err := page.Evaluate(ctx, `document.readyState`, &state); err != nil {
		return false
	}
	switch strings.ToLower(state) {
	case "complete", "interactive":
	default:
		return false
	}
	var hasInit bool
	if err := page.Evaluate(ctx, initDataJS, &hasInit); err != nil {
		return false
	}
	return hasInit
}

func (c *Controller) markupHintsPresent(ctx context.Context, page Page) bool {
	markup, err := page.Content(ctx)
	if err != nil {
		return false
	}
	for _, hint := range categoryMarkupHints {
		if strings.Contains(markup, hint) {
			return true
		}
	}
	return false
}

func (c *Controller) capture(ctx context.Context, page Page, reason string) {
	if c.snapshots == nil {
		return
	}
	png, err := page.Screenshot(ctx)
	if err != nil {
		c.logger.Debug("screenshot capture failed", zap.Error(err))
		return
	}
	key := fmt.Sprintf("%s_%s.png", reason, uuid.NewString())
	uri, err := c.snapshots.Put(ctx, key, png)
	if err != nil {
		c.logger.Debug("snapshot store failed", zap.Error(err))
		return
	}
	Snapshots.Inc()
	c.logger.Info("captured diagnostic snapshot", zap.String("uri", uri))
}

func structureSelectors(cat Category) []string {
	extra := categoryStructureSelectors[cat]
	out := make([]string, 0, len(extra)+len(baseStructureSelectors))
	out = append(out, extra...)
	out = append(out, baseStructureSelectors...)
	return out
}
