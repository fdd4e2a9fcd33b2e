package harvest

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
)

const anchorsScriptTmpl = `Array.from(document.querySelectorAll('%s')).map(a => a.href).filter(Boolean)`

// collector describes how to pull one category of candidate links out of a
// rendered listing. identify returns ("", "") for hrefs that do not belong
// to the category.
type collector struct {
	selector string
	fallback *regexp.Regexp
	identify func(href string) (id, canonical string)
}

var collectors = map[Category]collector{
	CategoryVideo: {
		selector: `a#video-title, a#video-title-link, ytd-compact-video-renderer a.yt-simple-endpoint`,
		fallback: watchMarkupRe,
		identify: identifyWatch,
	},
	CategoryShorts: {
		selector: `a[href*="/shorts/"]`,
		fallback: shortsPathRe,
		identify: func(href string) (string, string) {
			if !IsShortsURL(href) {
				return "", ""
			}
			id := ExtractItemID(href)
			if id == "" {
				return "", ""
			}
			return id, fmt.Sprintf("%s/shorts/%s", siteBase, id)
		},
	},
	CategoryChannel: {
		selector: `ytd-channel-renderer a#main-link, a.channel-link`,
		fallback: handleRe,
		identify: func(href string) (string, string) {
			handle, channelID := ExtractChannelRef(href)
			if handle == "" && channelID == "" {
				return "", ""
			}
			ref := handle
			if ref == "" {
				ref = channelID
			}
			return ref, ChannelURL(handle, channelID)
		},
	},
	CategoryPlaylist: {
		selector: `a[href*="list="]`,
		fallback: playlistParamRe,
		identify: func(href string) (string, string) {
			id := ExtractPlaylistID(href)
			if id == "" {
				return "", ""
			}
			return id, siteBase + "/playlist?list=" + id
		},
	},
	CategoryLive: {
		selector: `a#video-title, a#video-title-link`,
		fallback: watchMarkupRe,
		identify: identifyWatch,
	},
	CategoryMovie: {
		selector: `a#video-title, a#video-title-link`,
		fallback: watchMarkupRe,
		identify: identifyWatch,
	},
}

func identifyWatch(href string) (string, string) {
	if IsShortsURL(href) {
		return "", ""
	}
	id := ExtractItemID(href)
	if id == "" {
		return "", ""
	}
	return id, fmt.Sprintf("%s/watch?v=%s", siteBase, id)
}

// HarvesterConfig bounds the scroll loop.
type HarvesterConfig struct {
	MaxScrollRounds int
	StaleRounds     int
	ScrollStep      int
	ScrollPause     time.Duration
}

func (c *HarvesterConfig) applyDefaults() {
	if c.MaxScrollRounds <= 0 {
		c.MaxScrollRounds = 60
	}
	if c.StaleRounds <= 0 {
		c.StaleRounds = 3
	}
	if c.ScrollStep <= 0 {
		c.ScrollStep = 2500
	}
	if c.ScrollPause <= 0 {
		c.ScrollPause = 1500 * time.Millisecond
	}
}

// Harvester walks a listing page by repeated scrolling, accumulating unique
// candidate links for one category until the cap, a stale streak, the round
// limit, or the stop signal ends the loop.
type Harvester struct {
	readiness *Controller
	stop      *StopSignal
	logger    *zap.Logger
	cfg       HarvesterConfig
}

// NewHarvester builds a harvester sharing the controller's stop signal.
func NewHarvester(readiness *Controller, stop *StopSignal, logger *zap.Logger, cfg HarvesterConfig) *Harvester {
	cfg.applyDefaults()
	return &Harvester{readiness: readiness, stop: stop, logger: logger, cfg: cfg}
}

// Collect harvests up to limit candidates of category cat from listURL.
// Candidates already present in seen are skipped but not marked; claiming an
// identifier is the emitter's job. A non-positive limit yields nil without
// navigation: a zeroed cap switches its category off.
func (h *Harvester) Collect(ctx context.Context, page Page, listURL string, cat Category, limit int, seen *DedupSet) ([]Candidate, error) {
	if limit <= 0 {
		return nil, nil
	}
	col, ok := collectors[cat]
	if !ok {
		return nil, fmt.Errorf("no collector for category %q", cat)
	}

	switch h.readiness.Prepare(ctx, page, listURL, cat) {
	case OutcomeStopped:
		return nil, nil
	case OutcomeUnavailable:
		h.logger.Warn("listing unavailable", zap.String("url", listURL))
		return nil, nil
	}

	local := make(map[string]struct{})
	var out []Candidate
	stale := 0

	for round := 0; round < h.cfg.MaxScrollRounds; round++ {
		if h.stop.Stopped() || ctx.Err() != nil {
			break
		}
		added := 0
		for _, href := range h.readHrefs(ctx, page, col) {
			id, canonical := col.identify(href)
			if id == "" {
				continue
			}
			if _, dup := local[id]; dup {
				continue
			}
			local[id] = struct{}{}
			if seen != nil && seen.Contains(id) {
				continue
			}
			out = append(out, Candidate{URL: canonical, ID: id, Category: cat})
			added++
			if len(out) >= limit {
				break
			}
		}
		h.logger.Debug("scroll round complete",
			zap.String("url", listURL), zap.String("category", string(cat)),
			zap.Int("round", round+1), zap.Int("new", added), zap.Int("total", len(out)))
		ScrollRounds.Inc()

		if len(out) >= limit {
			break
		}
		if added == 0 {
			stale++
			if stale >= h.cfg.StaleRounds {
				h.logger.Info("listing exhausted",
					zap.String("url", listURL), zap.Int("collected", len(out)))
				break
			}
		} else {
			stale = 0
		}

		if err := page.ScrollBy(ctx, 0, h.cfg.ScrollStep); err != nil {
			h.logger.Warn("scroll failed, ending harvest", zap.Error(err))
			break
		}
		select {
		case <-ctx.Done():
			return out, ctx.Err()
		case <-time.After(h.cfg.ScrollPause):
		}
	}

	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// readHrefs prefers live DOM anchors and falls back to a regex scan of the
// raw markup when script evaluation is unavailable.
func (h *Harvester) readHrefs(ctx context.Context, page Page, col collector) []string {
	var hrefs []string
	if err := page.Evaluate(ctx, fmt.Sprintf(anchorsScriptTmpl, col.selector), &hrefs); err == nil && len(hrefs) > 0 {
		return hrefs
	}
	markup, err := page.Content(ctx)
	if err != nil {
		return nil
	}
	var out []string
	for _, m := range col.fallback.FindAllString(markup, -1) {
		// Matches come in three shapes: rooted paths (/shorts/…, /@…),
		// bare query tails (?list=…, &list=…), and path-relative forms
		// (watch?v=…). Join each onto the site base accordingly.
		switch {
		case strings.HasPrefix(m, "/"):
			out = append(out, siteBase+m)
		case strings.HasPrefix(m, "?"), strings.HasPrefix(m, "&"):
			out = append(out, siteBase+"/playlist?"+strings.TrimLeft(m, "?&"))
		default:
			out = append(out, siteBase+"/"+m)
		}
	}
	return out
}
