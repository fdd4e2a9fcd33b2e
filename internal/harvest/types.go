// Package harvest implements the content harvesting pipeline: readiness
// detection for rendered pages, multi-source metadata resolution, capped
// incremental link harvesting, and unification of the results into one
// output schema.
package harvest

import "time"

// Category classifies a content item by the listing surface it came from.
type Category string

// Content categories understood by the harvester and resolver.
const (
	CategoryVideo    Category = "video"
	CategoryShorts   Category = "shorts"
	CategoryChannel  Category = "channel"
	CategoryPlaylist Category = "playlist"
	CategoryLive     Category = "live"
	CategoryMovie    Category = "movie"
)

// TargetKind tags how a harvesting target should be dispatched.
type TargetKind string

// Target kinds.
const (
	TargetDirectItem TargetKind = "direct_item"
	TargetChannel    TargetKind = "channel"
	TargetSearch     TargetKind = "search"
)

// TargetStatus is the lifecycle state of one target within a run.
type TargetStatus string

// Target status values reported in the run summary.
const (
	TargetPending    TargetStatus = "pending"
	TargetInProgress TargetStatus = "in_progress"
	TargetCompleted  TargetStatus = "completed"
	TargetSkipped    TargetStatus = "skipped"
	TargetFailed     TargetStatus = "failed"
)

// Target is one harvesting request: a direct item URL, a channel URL, or a
// free-text search keyword. Immutable once enqueued.
type Target struct {
	Kind  TargetKind
	Value string
}

// Candidate is a canonicalized reference to one discovered content item.
type Candidate struct {
	URL      string
	ID       string
	Category Category
}

// Data source tags recorded on resolved metadata.
const (
	SourceAPI         = "api"
	SourcePlayer      = "player_json"
	SourcePage        = "page"
	SourceShortsPage  = "page_shorts"
	SourceUnavailable = "unavailable"
	SourceError       = "error"
)

// ResolvedMetadata is the output of the resolver. Every field except the
// identifier, URL and category may be unknown; unknown is a terminal value,
// not an error.
type ResolvedMetadata struct {
	ID       string
	URL      string
	Category Category

	Title           *string
	Description     *string
	ViewCount       *int64
	LikeCount       *int64
	CommentCount    *int64
	DurationSeconds *int64
	UploadDate      *string
	ThumbnailURL    *string
	ChannelID       *string
	ChannelName     *string
	ChannelHandle   *string
	ChannelURL      *string
	SubscriberCount *int64
	CommentsOff     *bool
	Hashtags        []string
	Subtitles       []SubtitleSegment

	DataSource string
}

// SubtitleSegment is one transcript line with its display timestamp.
type SubtitleSegment struct {
	Timestamp string `json:"timestamp"`
	Text      string `json:"text"`
}

// ChannelInfo enriches a resolved item with channel-level data. Cached per
// run keyed by channel identifier; read-mostly after first resolution.
type ChannelInfo struct {
	ID              string
	Title           *string
	Handle          *string
	SubscriberCount *int64
	IsMonetized     *bool
}

// DescriptionLink is one outbound link extracted from a description.
type DescriptionLink struct {
	URL  string `json:"url"`
	Text string `json:"text"`
}

// UnifiedRecord is the final output schema. Field names and nullability are
// part of the contract with downstream consumers and must not change.
type UnifiedRecord struct {
	Title               *string           `json:"title"`
	TranslatedTitle     *string           `json:"translatedTitle"`
	Type                string            `json:"type"`
	ID                  string            `json:"id"`
	URL                 string            `json:"url"`
	ThumbnailURL        *string           `json:"thumbnailUrl"`
	ViewCount           *int64            `json:"viewCount"`
	Date                *string           `json:"date"`
	Likes               *int64            `json:"likes"`
	Location            *string           `json:"location"`
	ChannelName         *string           `json:"channelName"`
	ChannelURL          *string           `json:"channelUrl"`
	ChannelUsername     *string           `json:"channelUsername"`
	Collaborators       *string           `json:"collaborators"`
	ChannelID           *string           `json:"channelId"`
	NumberOfSubscribers *int64            `json:"numberOfSubscribers"`
	Duration            *string           `json:"duration"`
	CommentsCount       *int64            `json:"commentsCount"`
	Text                string            `json:"text"`
	TranslatedText      *string           `json:"translatedText"`
	DescriptionLinks    []DescriptionLink `json:"descriptionLinks"`
	Hashtags            []string          `json:"hashtags"`
	Subtitles           []SubtitleSegment `json:"subtitles"`
	IsMonetized         *bool             `json:"isMonetized"`
	CommentsTurnedOff   *bool             `json:"commentsTurnedOff"`
	DataSource          string            `json:"dataSource"`
}

// TargetResult reports how one target ended.
type TargetResult struct {
	Target  Target
	Status  TargetStatus
	Emitted int
	Err     string
}

// RunSummary aggregates the outcome of one orchestrator run.
type RunSummary struct {
	RunID    string
	Started  time.Time
	Finished time.Time
	Emitted  int
	Targets  []TargetResult
}

// Caps holds per-category and global result limits. A zero per-category cap
// excludes that category outright; categories without an explicit entry fall
// back to the global cap.
type Caps struct {
	PerCategory map[Category]int
	Global      int
}

// For returns the effective cap for a category.
func (c Caps) For(cat Category) int {
	if v, ok := c.PerCategory[cat]; ok {
		return v
	}
	return c.Global
}
