package harvest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func strPtr(s string) *string { return &s }
func i64Ptr(n int64) *int64   { return &n }
func boolPtr(b bool) *bool    { return &b }

func TestUnifyMapsFields(t *testing.T) {
	t.Parallel()

	meta := ResolvedMetadata{
		ID:              "dQw4w9WgXcQ",
		URL:             "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		Category:        CategoryVideo,
		Title:           strPtr("A title"),
		Description:     strPtr("desc with https://a.example and #tag"),
		ViewCount:       i64Ptr(1000),
		LikeCount:       i64Ptr(10),
		CommentCount:    i64Ptr(3),
		DurationSeconds: i64Ptr(3723),
		UploadDate:      strPtr("2024-01-02"),
		ChannelID:       strPtr("UCchan"),
		ChannelName:     strPtr("Chan"),
		ChannelHandle:   strPtr("chan"),
		SubscriberCount: i64Ptr(500),
		CommentsOff:     boolPtr(false),
		Hashtags:        []string{"tag"},
		DataSource:      SourcePage,
	}

	rec := Unify(meta, nil)
	require.Equal(t, "video", rec.Type)
	require.Equal(t, "dQw4w9WgXcQ", rec.ID)
	require.Equal(t, "A title", *rec.Title)
	require.Equal(t, int64(1000), *rec.ViewCount)
	require.Equal(t, int64(10), *rec.Likes)
	require.Equal(t, int64(3), *rec.CommentsCount)
	require.Equal(t, "01:02:03", *rec.Duration)
	require.Equal(t, "2024-01-02", *rec.Date)
	require.Equal(t, "desc with https://a.example and #tag", rec.Text)
	require.Len(t, rec.DescriptionLinks, 1)
	require.Equal(t, "chan", *rec.ChannelUsername)
	require.Equal(t, "https://www.youtube.com/@chan", *rec.ChannelURL)
	require.Equal(t, int64(500), *rec.NumberOfSubscribers)
	require.False(t, *rec.CommentsTurnedOff)
	require.Equal(t, SourcePage, rec.DataSource)
	require.Nil(t, rec.TranslatedTitle)
	require.Nil(t, rec.Location)
	require.Nil(t, rec.Collaborators)
}

func TestUnifyShortsType(t *testing.T) {
	t.Parallel()

	rec := Unify(ResolvedMetadata{ID: "abcDEF12345", Category: CategoryShorts}, nil)
	require.Equal(t, "short", rec.Type)
}

func TestUnifyChannelEnrichment(t *testing.T) {
	t.Parallel()

	meta := ResolvedMetadata{
		ID:        "dQw4w9WgXcQ",
		Category:  CategoryVideo,
		ChannelID: strPtr("UCchan"),
	}
	info := &ChannelInfo{
		ID:              "UCchan",
		Title:           strPtr("Chan"),
		Handle:          strPtr("chan"),
		SubscriberCount: i64Ptr(9000),
		IsMonetized:     boolPtr(true),
	}

	rec := Unify(meta, info)
	require.Equal(t, "Chan", *rec.ChannelName)
	require.Equal(t, int64(9000), *rec.NumberOfSubscribers)
	require.True(t, *rec.IsMonetized)
	require.Equal(t, "https://www.youtube.com/@chan", *rec.ChannelURL)
}

func TestUnifyChannelURLFallsBackToID(t *testing.T) {
	t.Parallel()

	rec := Unify(ResolvedMetadata{ID: "dQw4w9WgXcQ", ChannelID: strPtr("UCchan")}, nil)
	require.Equal(t, "https://www.youtube.com/channel/UCchan", *rec.ChannelURL)
	require.Nil(t, rec.ChannelUsername)
}

func TestUnifyChannelURLKeepsScrapedURL(t *testing.T) {
	t.Parallel()

	// No handle, no channel id: the owner URL scraped off the page is the
	// last resort.
	legacy := "https://www.youtube.com/c/LegacyChan"
	rec := Unify(ResolvedMetadata{ID: "dQw4w9WgXcQ", ChannelURL: &legacy}, nil)
	require.Equal(t, legacy, *rec.ChannelURL)
	require.Nil(t, rec.ChannelUsername)

	// A known handle still wins over the scraped URL.
	rec = Unify(ResolvedMetadata{ID: "dQw4w9WgXcQ", ChannelHandle: strPtr("chan"), ChannelURL: &legacy}, nil)
	require.Equal(t, "https://www.youtube.com/@chan", *rec.ChannelURL)
}

func TestEmitterDropsDuplicates(t *testing.T) {
	t.Parallel()

	primary := &fakeSink{}
	e := NewEmitter(primary, nil, NewDedupSet(), 10, zap.NewNop())

	accepted, err := e.Add(context.Background(), UnifiedRecord{ID: "a"})
	require.NoError(t, err)
	require.True(t, accepted)

	accepted, err = e.Add(context.Background(), UnifiedRecord{ID: "a"})
	require.NoError(t, err)
	require.False(t, accepted)

	require.NoError(t, e.Flush(context.Background()))
	require.Len(t, primary.records(), 1)
}

func TestEmitterDropsEmptyID(t *testing.T) {
	t.Parallel()

	e := NewEmitter(&fakeSink{}, nil, NewDedupSet(), 10, zap.NewNop())
	accepted, err := e.Add(context.Background(), UnifiedRecord{URL: "https://x"})
	require.NoError(t, err)
	require.False(t, accepted)
}

func TestEmitterFlushesFullBatches(t *testing.T) {
	t.Parallel()

	primary := &fakeSink{}
	e := NewEmitter(primary, nil, NewDedupSet(), 2, zap.NewNop())

	for _, id := range []string{"a", "b", "c"} {
		_, err := e.Add(context.Background(), UnifiedRecord{ID: id})
		require.NoError(t, err)
	}
	require.Len(t, primary.batches, 1, "full batch flushes eagerly")
	require.NoError(t, e.Flush(context.Background()))
	require.Len(t, primary.records(), 3)
}

func TestEmitterSpillsToFallback(t *testing.T) {
	t.Parallel()

	primary := &fakeSink{err: errors.New("db down")}
	fallback := &fakeSink{}
	e := NewEmitter(primary, fallback, NewDedupSet(), 10, zap.NewNop())

	_, err := e.Add(context.Background(), UnifiedRecord{ID: "a"})
	require.NoError(t, err)
	require.NoError(t, e.Flush(context.Background()))
	require.Len(t, fallback.records(), 1)
}

func TestEmitterErrorsWhenBothSinksFail(t *testing.T) {
	t.Parallel()

	primary := &fakeSink{err: errors.New("db down")}
	fallback := &fakeSink{err: errors.New("disk full")}
	e := NewEmitter(primary, fallback, NewDedupSet(), 10, zap.NewNop())

	_, err := e.Add(context.Background(), UnifiedRecord{ID: "a"})
	require.NoError(t, err)
	err = e.Flush(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "disk full")
}

func TestEmitterCloseFlushesAndClosesSinks(t *testing.T) {
	t.Parallel()

	primary := &fakeSink{}
	fallback := &fakeSink{}
	e := NewEmitter(primary, fallback, NewDedupSet(), 10, zap.NewNop())

	_, err := e.Add(context.Background(), UnifiedRecord{ID: "a"})
	require.NoError(t, err)
	require.NoError(t, e.Close(context.Background()))
	require.Len(t, primary.records(), 1)
	require.True(t, primary.closed)
	require.True(t, fallback.closed)
}
