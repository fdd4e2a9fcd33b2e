package harvest

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Unify flattens resolved metadata, plus optional channel-level enrichment,
// into the output schema. Unknown fields stay null; the translated and
// location fields are always null here and exist for schema compatibility.
func Unify(meta ResolvedMetadata, channel *ChannelInfo) UnifiedRecord {
	rec := UnifiedRecord{
		Type:          "video",
		ID:            meta.ID,
		URL:           meta.URL,
		Title:         meta.Title,
		ThumbnailURL:  meta.ThumbnailURL,
		ViewCount:     meta.ViewCount,
		Date:          meta.UploadDate,
		Likes:         meta.LikeCount,
		ChannelName:   meta.ChannelName,
		ChannelID:     meta.ChannelID,
		CommentsCount: meta.CommentCount,
		Duration:      FormatClock(meta.DurationSeconds),
		Hashtags:      meta.Hashtags,
		Subtitles:     meta.Subtitles,

		NumberOfSubscribers: meta.SubscriberCount,
		CommentsTurnedOff:   meta.CommentsOff,
		DataSource:          meta.DataSource,
	}
	if meta.Category == CategoryShorts {
		rec.Type = "short"
	}
	if meta.Description != nil {
		rec.Text = *meta.Description
		rec.DescriptionLinks = ExtractLinks(*meta.Description)
	}

	handle := ""
	if meta.ChannelHandle != nil {
		handle = *meta.ChannelHandle
	}
	channelID := ""
	if meta.ChannelID != nil {
		channelID = *meta.ChannelID
	}
	if channel != nil {
		if rec.ChannelName == nil {
			rec.ChannelName = channel.Title
		}
		if rec.NumberOfSubscribers == nil {
			rec.NumberOfSubscribers = channel.SubscriberCount
		}
		rec.IsMonetized = channel.IsMonetized
		if handle == "" && channel.Handle != nil {
			handle = *channel.Handle
		}
		if channelID == "" {
			channelID = channel.ID
			rec.ChannelID = &channel.ID
		}
	}
	if handle != "" {
		rec.ChannelUsername = &handle
	}
	if u := ChannelURL(handle, channelID); u != "" {
		rec.ChannelURL = &u
	} else {
		rec.ChannelURL = meta.ChannelURL
	}
	return rec
}

// Emitter is the single funnel between resolution and persistence. It claims
// each identifier exactly once, buffers accepted records, and diverts failed
// primary batches to the fallback sink so a storage outage never loses data.
type Emitter struct {
	primary   Sink
	fallback  Sink
	dedup     *DedupSet
	batchSize int
	logger    *zap.Logger

	mu  sync.Mutex
	buf []UnifiedRecord
}

// NewEmitter builds an emitter. fallback may be nil when no local spill
// target is configured.
func NewEmitter(primary, fallback Sink, dedup *DedupSet, batchSize int, logger *zap.Logger) *Emitter {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Emitter{primary: primary, fallback: fallback, dedup: dedup, batchSize: batchSize, logger: logger}
}

// Add offers one record. It reports true only when the record was newly
// accepted; records without an identifier and per-run duplicates are dropped.
// Re-offering an already emitted record is a no-op, never an error.
func (e *Emitter) Add(ctx context.Context, rec UnifiedRecord) (bool, error) {
	if rec.ID == "" {
		e.logger.Warn("dropping record without identifier", zap.String("url", rec.URL))
		return false, nil
	}
	if !e.dedup.MarkIfNew(rec.ID) {
		DedupeDropped.Inc()
		return false, nil
	}
	e.mu.Lock()
	e.buf = append(e.buf, rec)
	full := len(e.buf) >= e.batchSize
	e.mu.Unlock()

	ItemsEmitted.Inc()
	if full {
		return true, e.Flush(ctx)
	}
	return true, nil
}

// Flush pushes buffered records to the primary sink, spilling to the
// fallback when the push fails. It errors only when both sinks reject the
// batch.
func (e *Emitter) Flush(ctx context.Context) error {
	e.mu.Lock()
	batch := e.buf
	e.buf = nil
	e.mu.Unlock()
	if len(batch) == 0 {
		return nil
	}

	err := e.primary.AppendBatch(ctx, batch)
	if err == nil {
		return nil
	}
	SinkFailures.Inc()
	e.logger.Error("primary sink rejected batch, spilling to fallback",
		zap.Int("records", len(batch)), zap.Error(err))
	if e.fallback == nil {
		return fmt.Errorf("append batch of %d: %w", len(batch), err)
	}
	if ferr := e.fallback.AppendBatch(ctx, batch); ferr != nil {
		return fmt.Errorf("append batch of %d: primary %v, fallback %w", len(batch), err, ferr)
	}
	return nil
}

// Close flushes and closes both sinks.
func (e *Emitter) Close(ctx context.Context) error {
	flushErr := e.Flush(ctx)
	if err := e.primary.Close(); err != nil && flushErr == nil {
		flushErr = err
	}
	if e.fallback != nil {
		if err := e.fallback.Close(); err != nil && flushErr == nil {
			flushErr = err
		}
	}
	return flushErr
}
