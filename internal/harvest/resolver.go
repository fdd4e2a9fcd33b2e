package harvest

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

const playerJSONScript = `(() => {
	const pr = window.ytInitialPlayerResponse;
	if (!pr || !pr.videoDetails) return null;
	const vd = pr.videoDetails;
	const mf = (pr.microformat && pr.microformat.playerMicroformatRenderer) || {};
	const thumbs = (vd.thumbnail && vd.thumbnail.thumbnails) || [];
	return {
		title: vd.title || null,
		description: vd.shortDescription || null,
		viewCount: vd.viewCount || null,
		durationSeconds: vd.lengthSeconds || null,
		channelId: vd.channelId || null,
		channelName: vd.author || null,
		uploadDate: mf.uploadDate || mf.publishDate || null,
		thumbnailUrl: thumbs.length ? thumbs[thumbs.length - 1].url : null
	};
})()`

// Walks ytInitialData for the handful of engagement fields that never appear
// in the player response. Key paths shift between page builds, so this scans
// for well-known renderer keys instead of hardcoding one path.
const initialDataScript = `(() => {
	const d = window.ytInitialData;
	if (!d) return null;
	const out = { likeText: null, commentText: null, subscriberText: null, channelHandle: null };
	const seen = new Set();
	const walk = (node, depth) => {
		if (!node || typeof node !== 'object' || depth > 24 || seen.has(node)) return;
		seen.add(node);
		if (!out.likeText && node.likeCountIfLikedNumber) out.likeText = String(node.likeCountIfLikedNumber);
		if (!out.likeText && node.toggleButtonRenderer && node.toggleButtonRenderer.defaultText &&
			node.toggleButtonRenderer.defaultText.accessibility) {
			const label = node.toggleButtonRenderer.defaultText.accessibility.accessibilityData.label || '';
			if (label.toLowerCase().includes('like')) out.likeText = label;
		}
		if (!out.commentText && node.commentCount && node.commentCount.simpleText) out.commentText = node.commentCount.simpleText;
		if (!out.subscriberText && node.subscriberCountText) {
			out.subscriberText = node.subscriberCountText.simpleText ||
				(node.subscriberCountText.runs || []).map(r => r.text).join('');
		}
		if (!out.channelHandle && node.canonicalBaseUrl && node.canonicalBaseUrl.startsWith('/@')) {
			out.channelHandle = node.canonicalBaseUrl.slice(2);
		}
		for (const k in node) walk(node[k], depth + 1);
	};
	walk(d, 0);
	return out;
})()`

const linkedDataScript = `Array.from(document.querySelectorAll('script[type="application/ld+json"]')).map(s => s.textContent)`

const metaTagsScript = `(() => {
	const attr = (sel, name) => { const el = document.querySelector(sel); return el ? el.getAttribute(name) : null; };
	return {
		title: attr('meta[property="og:title"]', 'content') || attr('meta[name="title"]', 'content'),
		description: attr('meta[property="og:description"]', 'content') || attr('meta[name="description"]', 'content'),
		uploadDate: attr('meta[itemprop="uploadDate"]', 'content') || attr('meta[itemprop="datePublished"]', 'content'),
		channelName: attr('meta[name="author"]', 'content')
	};
})()`

const ownerLinkScript = `(() => {
	const a = document.querySelector('#owner ytd-channel-name a, ytd-video-owner-renderer a');
	return a ? a.href : null;
})()`

const transcriptSegmentsScript = `Array.from(document.querySelectorAll('ytd-transcript-segment-renderer')).map(seg => ({
	timestamp: (seg.querySelector('.segment-timestamp') || {}).innerText || '',
	text: (seg.querySelector('.segment-text') || {}).innerText || ''
})).map(s => ({ timestamp: s.timestamp.trim(), text: s.text.trim() }))`

const shortsOverlayScript = `(() => {
	const reel = document.querySelector('ytd-reel-video-renderer[is-active], ytd-reel-video-renderer');
	const root = reel || document;
	const pick = (sel) => { const el = root.querySelector(sel); return el ? el.innerText.trim() : null; };
	return {
		title: pick('h2.title, .title yt-formatted-string, yt-shorts-video-title-view-model'),
		channel: pick('ytd-channel-name a, .ytReelChannelBarViewModelChannelName'),
		likeText: pick('#like-button .yt-spec-button-shape-with-label__label, ytd-toggle-button-renderer #text'),
		commentText: pick('#comments-button .yt-spec-button-shape-with-label__label')
	};
})()`

// ResolverConfig tunes navigation-adjacent waits and optional extraction.
type ResolverConfig struct {
	CollectSubtitles bool
	ShortsInitWait   time.Duration
	ShortsReelWait   time.Duration
	ShortsProbeWait  time.Duration
	TranscriptWait   time.Duration
}

func (c *ResolverConfig) applyDefaults() {
	if c.ShortsInitWait <= 0 {
		c.ShortsInitWait = 12 * time.Second
	}
	if c.ShortsReelWait <= 0 {
		c.ShortsReelWait = 8 * time.Second
	}
	if c.ShortsProbeWait <= 0 {
		c.ShortsProbeWait = 5 * time.Second
	}
	if c.TranscriptWait <= 0 {
		c.TranscriptWait = 6 * time.Second
	}
}

// Resolver produces the fullest metadata it can for a single content item by
// trying sources in order of fidelity: structured API, embedded player JSON,
// linked-data blocks, and finally rendered DOM probes. Later sources only
// fill fields earlier ones left unknown.
type Resolver struct {
	readiness *Controller
	api       VideoAPI
	stop      *StopSignal
	logger    *zap.Logger
	cfg       ResolverConfig
}

// NewResolver builds a resolver. api may be a disabled implementation.
func NewResolver(readiness *Controller, api VideoAPI, stop *StopSignal, logger *zap.Logger, cfg ResolverConfig) *Resolver {
	cfg.applyDefaults()
	return &Resolver{readiness: readiness, api: api, stop: stop, logger: logger, cfg: cfg}
}

// Resolve extracts metadata for the item addressed by rawURL. The second
// return is false only when the item cannot be attempted at all: the stop
// signal is set, or the URL carries no item identifier. Every other path
// yields a record, tagged with the source that produced it.
func (r *Resolver) Resolve(ctx context.Context, page Page, rawURL string) (ResolvedMetadata, bool) {
	if r.stop.Stopped() {
		return ResolvedMetadata{}, false
	}
	canonical := CanonicalURL(rawURL)
	id := ExtractItemID(canonical)
	if id == "" {
		r.logger.Warn("url carries no item identifier, skipping", zap.String("url", rawURL))
		return ResolvedMetadata{}, false
	}

	cat := DetectCategory(canonical)
	meta := ResolvedMetadata{ID: id, URL: canonical, Category: cat}

	// The API never needs a navigation, so every category tries it first.
	// A miss falls through to the rendered page.
	if r.api.Enabled() {
		apiMeta, err := r.api.Video(ctx, id)
		if err != nil {
			r.logger.Warn("api lookup failed, falling back to page",
				zap.String("id", id), zap.Error(err))
		} else if apiMeta != nil {
			merge(&meta, apiMeta)
			meta.DataSource = SourceAPI
			r.finalize(&meta)
			ItemsResolved.WithLabelValues(meta.DataSource).Inc()
			return meta, true
		}
	}

	outcome := r.readiness.Prepare(ctx, page, canonical, cat)
	switch outcome {
	case OutcomeStopped:
		return ResolvedMetadata{}, false
	case OutcomeUnavailable:
		meta.DataSource = SourceUnavailable
		ItemsResolved.WithLabelValues(meta.DataSource).Inc()
		return meta, true
	}

	if cat == CategoryShorts {
		r.settleShorts(ctx, page)
	}

	failures := 0
	playerHit, err := r.fromPlayerJSON(ctx, page, &meta)
	if err != nil {
		failures++
		r.logger.Debug("player json extraction failed", zap.String("id", id), zap.Error(err))
	}
	if err := r.fromInitialData(ctx, page, &meta); err != nil {
		failures++
		r.logger.Debug("initial data extraction failed", zap.String("id", id), zap.Error(err))
	}
	if err := r.fromLinkedData(ctx, page, &meta, outcome); err != nil {
		failures++
		r.logger.Debug("linked data extraction failed", zap.String("id", id), zap.Error(err))
	}
	r.fromMetaTags(ctx, page, &meta, outcome)
	if cat == CategoryShorts {
		r.fromShortsOverlay(ctx, page, &meta)
	} else {
		r.fromWatchDOM(ctx, page, &meta)
	}

	switch {
	case meta.Title == nil && failures >= 3:
		meta.DataSource = SourceError
	case cat == CategoryShorts:
		meta.DataSource = SourceShortsPage
	case playerHit:
		meta.DataSource = SourcePlayer
	default:
		meta.DataSource = SourcePage
	}

	if r.cfg.CollectSubtitles && cat != CategoryShorts &&
		(meta.DataSource == SourcePage || meta.DataSource == SourcePlayer) {
		meta.Subtitles = r.collectTranscript(ctx, page, id)
	}

	r.finalize(&meta)
	ItemsResolved.WithLabelValues(meta.DataSource).Inc()
	return meta, true
}

// settleShorts waits out the reel player's staged render. Each wait is
// tolerated failing; the overlay probe below copes with partial state.
func (r *Resolver) settleShorts(ctx context.Context, page Page) {
	if err := page.WaitFunc(ctx, `Boolean(window.ytInitialPlayerResponse) || Boolean(window.ytInitialData)`, r.cfg.ShortsInitWait); err != nil {
		r.logger.Debug("shorts init data wait elapsed", zap.Error(err))
	}
	if err := page.WaitVisible(ctx, "ytd-reel-video-renderer", r.cfg.ShortsReelWait); err != nil {
		r.logger.Debug("shorts reel renderer wait elapsed", zap.Error(err))
	}
	if err := page.WaitVisible(ctx, "ytd-reel-video-renderer ytd-channel-name a", r.cfg.ShortsProbeWait); err != nil {
		r.logger.Debug("shorts overlay anchor wait elapsed", zap.Error(err))
	}
}

type playerJSONResult struct {
	Title           *string `json:"title"`
	Description     *string `json:"description"`
	ViewCount       *string `json:"viewCount"`
	DurationSeconds *string `json:"durationSeconds"`
	ChannelID       *string `json:"channelId"`
	ChannelName     *string `json:"channelName"`
	UploadDate      *string `json:"uploadDate"`
	ThumbnailURL    *string `json:"thumbnailUrl"`
}

func (r *Resolver) fromPlayerJSON(ctx context.Context, page Page, meta *ResolvedMetadata) (bool, error) {
	var res *playerJSONResult
	if err := page.Evaluate(ctx, playerJSONScript, &res); err != nil {
		return false, err
	}
	if res == nil {
		return false, nil
	}
	patch := ResolvedMetadata{
		Title:        res.Title,
		Description:  res.Description,
		ChannelID:    res.ChannelID,
		ChannelName:  res.ChannelName,
		UploadDate:   res.UploadDate,
		ThumbnailURL: res.ThumbnailURL,
	}
	if res.ViewCount != nil {
		if n, err := strconv.ParseInt(*res.ViewCount, 10, 64); err == nil {
			patch.ViewCount = &n
		}
	}
	if res.DurationSeconds != nil {
		if n, err := strconv.ParseInt(*res.DurationSeconds, 10, 64); err == nil {
			patch.DurationSeconds = &n
		}
	}
	merge(meta, &patch)
	return true, nil
}

type initialDataResult struct {
	LikeText       *string `json:"likeText"`
	CommentText    *string `json:"commentText"`
	SubscriberText *string `json:"subscriberText"`
	ChannelHandle  *string `json:"channelHandle"`
}

func (r *Resolver) fromInitialData(ctx context.Context, page Page, meta *ResolvedMetadata) error {
	var res *initialDataResult
	if err := page.Evaluate(ctx, initialDataScript, &res); err != nil {
		return err
	}
	if res == nil {
		return nil
	}
	patch := ResolvedMetadata{ChannelHandle: res.ChannelHandle}
	if res.LikeText != nil {
		patch.LikeCount = ParseCount(*res.LikeText)
	}
	if res.CommentText != nil {
		patch.CommentCount = ParseCount(*res.CommentText)
	}
	if res.SubscriberText != nil {
		patch.SubscriberCount = ParseCount(*res.SubscriberText)
	}
	merge(meta, &patch)
	return nil
}

type linkedDataBlock struct {
	Type             string `json:"@type"`
	Name             string `json:"name"`
	Description      string `json:"description"`
	UploadDate       string `json:"uploadDate"`
	Duration         string `json:"duration"`
	ThumbnailURL     any    `json:"thumbnailUrl"`
	InteractionCount string `json:"interactionCount"`
	Author           string `json:"author"`
}

func (r *Resolver) fromLinkedData(ctx context.Context, page Page, meta *ResolvedMetadata, outcome Outcome) error {
	var blocks []string
	if outcome == OutcomeReady {
		if err := page.Evaluate(ctx, linkedDataScript, &blocks); err != nil {
			return err
		}
	} else {
		// Degraded pages may not execute scripts reliably; read the raw
		// markup instead.
		markup, err := page.Content(ctx)
		if err != nil {
			return err
		}
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
		if err != nil {
			return err
		}
		doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
			blocks = append(blocks, s.Text())
		})
	}
	for _, raw := range blocks {
		block, ok := decodeLinkedData(raw)
		if !ok || !strings.EqualFold(block.Type, "VideoObject") {
			continue
		}
		patch := ResolvedMetadata{}
		if block.Name != "" {
			patch.Title = &block.Name
		}
		if block.Description != "" {
			patch.Description = &block.Description
		}
		if block.UploadDate != "" {
			patch.UploadDate = &block.UploadDate
		}
		if block.Author != "" {
			patch.ChannelName = &block.Author
		}
		patch.DurationSeconds = ParseDuration(block.Duration)
		if block.InteractionCount != "" {
			patch.ViewCount = ParseCount(block.InteractionCount)
		}
		if thumb := firstThumbnail(block.ThumbnailURL); thumb != "" {
			patch.ThumbnailURL = &thumb
		}
		merge(meta, &patch)
	}
	return nil
}

func decodeLinkedData(raw string) (linkedDataBlock, bool) {
	raw = strings.TrimSpace(raw)
	var block linkedDataBlock
	if err := json.Unmarshal([]byte(raw), &block); err == nil {
		return block, true
	}
	// Some builds emit an array of blocks.
	var blocks []linkedDataBlock
	if err := json.Unmarshal([]byte(raw), &blocks); err == nil {
		for _, b := range blocks {
			if strings.EqualFold(b.Type, "VideoObject") {
				return b, true
			}
		}
		if len(blocks) > 0 {
			return blocks[0], true
		}
	}
	return linkedDataBlock{}, false
}

func firstThumbnail(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok {
				return s
			}
		}
	}
	return ""
}

type metaTagsResult struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	UploadDate  *string `json:"uploadDate"`
	ChannelName *string `json:"channelName"`
}

// fromMetaTags reads the document's meta tags, a last structured tier before
// raw DOM probes. Best-effort; misses are silent.
func (r *Resolver) fromMetaTags(ctx context.Context, page Page, meta *ResolvedMetadata, outcome Outcome) {
	var res *metaTagsResult
	if outcome == OutcomeReady {
		if err := page.Evaluate(ctx, metaTagsScript, &res); err != nil || res == nil {
			return
		}
	} else {
		markup, err := page.Content(ctx)
		if err != nil {
			return
		}
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
		if err != nil {
			return
		}
		first := func(sels ...string) *string {
			for _, sel := range sels {
				if v, ok := doc.Find(sel).Attr("content"); ok && v != "" {
					return &v
				}
			}
			return nil
		}
		res = &metaTagsResult{
			Title:       first(`meta[property="og:title"]`, `meta[name="title"]`),
			Description: first(`meta[property="og:description"]`, `meta[name="description"]`),
			UploadDate:  first(`meta[itemprop="uploadDate"]`, `meta[itemprop="datePublished"]`),
			ChannelName: first(`meta[name="author"]`),
		}
	}
	merge(meta, &ResolvedMetadata{
		Title:       res.Title,
		Description: res.Description,
		UploadDate:  res.UploadDate,
		ChannelName: res.ChannelName,
	})
}

func (r *Resolver) fromWatchDOM(ctx context.Context, page Page, meta *ResolvedMetadata) {
	probe := func(sel string) *string {
		if text, ok := page.QueryText(ctx, sel, 2*time.Second); ok {
			trimmed := strings.TrimSpace(text)
			if trimmed != "" {
				return &trimmed
			}
		}
		return nil
	}
	patch := ResolvedMetadata{
		Title:       probe("h1.ytd-watch-metadata yt-formatted-string"),
		ChannelName: probe("#owner ytd-channel-name a"),
		UploadDate:  probe("#info-strings yt-formatted-string"),
	}
	if t := probe(".ytp-time-duration"); t != nil {
		patch.DurationSeconds = ParseDuration(*t)
	}
	if t := probe("#info span.view-count, ytd-watch-info-text #view-count"); t != nil {
		patch.ViewCount = ParseCount(*t)
	}
	if t := probe("like-button-view-model .yt-spec-button-shape-with-label__label, #segmented-like-button button"); t != nil {
		patch.LikeCount = ParseCount(*t)
	}
	if t := probe("#owner-sub-count"); t != nil {
		patch.SubscriberCount = ParseCount(*t)
	}
	if t := probe("ytd-comments-header-renderer #count"); t != nil {
		patch.CommentCount = ParseCount(*t)
	}
	if _, off := page.QueryText(ctx, "ytd-message-renderer #message", time.Second); off {
		v := true
		patch.CommentsOff = &v
	}
	// The owner anchor can carry a handle, a channel id, or a legacy
	// /c/ or /user/ path. Keep the raw href so legacy owners still get
	// a channel URL in the output.
	var owner *string
	if err := page.Evaluate(ctx, ownerLinkScript, &owner); err == nil && owner != nil && *owner != "" {
		patch.ChannelURL = owner
		handle, channelID := ExtractChannelRef(*owner)
		if handle != "" {
			patch.ChannelHandle = &handle
		}
		if channelID != "" {
			patch.ChannelID = &channelID
		}
	}
	merge(meta, &patch)
}

type shortsOverlayResult struct {
	Title       *string `json:"title"`
	Channel     *string `json:"channel"`
	LikeText    *string `json:"likeText"`
	CommentText *string `json:"commentText"`
}

func (r *Resolver) fromShortsOverlay(ctx context.Context, page Page, meta *ResolvedMetadata) {
	var res *shortsOverlayResult
	if err := page.Evaluate(ctx, shortsOverlayScript, &res); err != nil || res == nil {
		if err != nil {
			r.logger.Debug("shorts overlay probe failed", zap.Error(err))
		}
		return
	}
	patch := ResolvedMetadata{Title: res.Title, ChannelName: res.Channel}
	if res.LikeText != nil {
		patch.LikeCount = ParseCount(*res.LikeText)
	}
	if res.CommentText != nil {
		patch.CommentCount = ParseCount(*res.CommentText)
	}
	if patch.ChannelName != nil {
		handle := strings.TrimPrefix(strings.TrimSpace(*patch.ChannelName), "@")
		if handle != "" && handle != *patch.ChannelName {
			patch.ChannelHandle = &handle
		}
	}
	merge(meta, &patch)
}

// collectTranscript expands the description, opens the transcript panel, and
// reads the rendered segments. Any miss along the way just means no
// subtitles; the item itself is unaffected.
func (r *Resolver) collectTranscript(ctx context.Context, page Page, id string) []SubtitleSegment {
	var clicked bool
	expand := `(() => { const el = document.querySelector('tp-yt-paper-button#expand, #expand'); if (el) { el.click(); return true; } return false; })()`
	if err := page.Evaluate(ctx, expand, &clicked); err != nil || !clicked {
		return nil
	}
	open := `(() => {
		const btns = document.querySelectorAll('button[aria-label="Show transcript"], ytd-video-description-transcript-section-renderer button');
		if (!btns.length) return false;
		btns[0].click();
		return true;
	})()`
	if err := page.Evaluate(ctx, open, &clicked); err != nil || !clicked {
		return nil
	}
	if err := page.WaitVisible(ctx, "ytd-transcript-segment-renderer", r.cfg.TranscriptWait); err != nil {
		r.logger.Debug("transcript panel did not render", zap.String("id", id))
		return nil
	}
	var segments []SubtitleSegment
	if err := page.Evaluate(ctx, transcriptSegmentsScript, &segments); err != nil {
		r.logger.Debug("transcript read failed", zap.String("id", id), zap.Error(err))
		return nil
	}
	out := segments[:0]
	for _, s := range segments {
		if s.Text != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// finalize fills derivable defaults after all sources have been merged.
func (r *Resolver) finalize(meta *ResolvedMetadata) {
	if meta.ThumbnailURL == nil && meta.ID != "" {
		thumb := ThumbnailURL(meta.ID)
		meta.ThumbnailURL = &thumb
	}
	if len(meta.Hashtags) == 0 {
		text := ""
		if meta.Title != nil {
			text = *meta.Title
		}
		if meta.Description != nil {
			text += "\n" + *meta.Description
		}
		meta.Hashtags = ExtractHashtags(text)
	}
}

// merge copies every field src knows into fields dst does not.
func merge(dst, src *ResolvedMetadata) {
	if dst.Title == nil {
		dst.Title = src.Title
	}
	if dst.Description == nil {
		dst.Description = src.Description
	}
	if dst.ViewCount == nil {
		dst.ViewCount = src.ViewCount
	}
	if dst.LikeCount == nil {
		dst.LikeCount = src.LikeCount
	}
	if dst.CommentCount == nil {
		dst.CommentCount = src.CommentCount
	}
	if dst.DurationSeconds == nil {
		dst.DurationSeconds = src.DurationSeconds
	}
	if dst.UploadDate == nil {
		dst.UploadDate = src.UploadDate
	}
	if dst.ThumbnailURL == nil {
		dst.ThumbnailURL = src.ThumbnailURL
	}
	if dst.ChannelID == nil {
		dst.ChannelID = src.ChannelID
	}
	if dst.ChannelName == nil {
		dst.ChannelName = src.ChannelName
	}
	if dst.ChannelHandle == nil {
		dst.ChannelHandle = src.ChannelHandle
	}
	if dst.ChannelURL == nil {
		dst.ChannelURL = src.ChannelURL
	}
	if dst.SubscriberCount == nil {
		dst.SubscriberCount = src.SubscriberCount
	}
	if dst.CommentsOff == nil {
		dst.CommentsOff = src.CommentsOff
	}
	if len(dst.Hashtags) == 0 {
		dst.Hashtags = src.Hashtags
	}
	if len(dst.Subtitles) == 0 {
		dst.Subtitles = src.Subtitles
	}
}
