package harvest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestHarvester(stop *StopSignal) *Harvester {
	ctrl := newTestController(stop, nil)
	return NewHarvester(ctrl, stop, zap.NewNop(), HarvesterConfig{
		MaxScrollRounds: 10,
		StaleRounds:     3,
		ScrollPause:     1,
	})
}

func watchAnchorsRule(hrefs ...string) evalRule {
	return evalRule{match: "video-title", value: hrefs}
}

func TestCollectStopsAtCap(t *testing.T) {
	t.Parallel()

	page := &fakePage{
		rules: append(readyRules(), watchAnchorsRule(
			"https://www.youtube.com/watch?v=AAAAAAAAAAA",
			"https://www.youtube.com/watch?v=BBBBBBBBBBB",
			"https://www.youtube.com/watch?v=AAAAAAAAAAA",
			"https://www.youtube.com/shorts/SSSSSSSSSSS",
			"https://www.youtube.com/watch?v=CCCCCCCCCCC",
		)),
		waitFunc: waitAlwaysReady,
	}
	h := newTestHarvester(NewStopSignal())

	got, err := h.Collect(context.Background(), page, "https://www.youtube.com/results?search_query=x", CategoryVideo, 2, nil)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "AAAAAAAAAAA", got[0].ID)
	require.Equal(t, "BBBBBBBBBBB", got[1].ID)
	require.Equal(t, CategoryVideo, got[0].Category)
	require.Zero(t, page.scrollCount())
}

func TestCollectTerminatesOnStaleRounds(t *testing.T) {
	t.Parallel()

	page := &fakePage{
		rules: append(readyRules(), watchAnchorsRule(
			"https://www.youtube.com/watch?v=AAAAAAAAAAA",
			"https://www.youtube.com/watch?v=BBBBBBBBBBB",
		)),
		waitFunc: waitAlwaysReady,
	}
	h := newTestHarvester(NewStopSignal())

	got, err := h.Collect(context.Background(), page, "https://www.youtube.com/results?search_query=x", CategoryVideo, 10, nil)
	require.NoError(t, err)
	require.Len(t, got, 2)
	// One scroll after the productive round, then one per stale round
	// until the streak ends the loop.
	require.Equal(t, 3, page.scrollCount())
}

func TestCollectSkipsAlreadySeen(t *testing.T) {
	t.Parallel()

	page := &fakePage{
		rules: append(readyRules(), watchAnchorsRule(
			"https://www.youtube.com/watch?v=AAAAAAAAAAA",
			"https://www.youtube.com/watch?v=BBBBBBBBBBB",
		)),
		waitFunc: waitAlwaysReady,
	}
	seen := NewDedupSet()
	seen.MarkIfNew("AAAAAAAAAAA")
	h := newTestHarvester(NewStopSignal())

	got, err := h.Collect(context.Background(), page, "https://www.youtube.com/results?search_query=x", CategoryVideo, 10, seen)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "BBBBBBBBBBB", got[0].ID)
	// Skipped candidates must not be claimed here.
	require.False(t, seen.Contains("BBBBBBBBBBB"))
}

func TestCollectZeroLimitSkipsNavigation(t *testing.T) {
	t.Parallel()

	page := &fakePage{rules: readyRules(), waitFunc: waitAlwaysReady}
	h := newTestHarvester(NewStopSignal())

	got, err := h.Collect(context.Background(), page, "https://www.youtube.com/results?search_query=x", CategoryVideo, 0, nil)
	require.NoError(t, err)
	require.Nil(t, got)
	require.Empty(t, page.navigations())
}

func TestCollectShortsOnlyTakesShortLinks(t *testing.T) {
	t.Parallel()

	page := &fakePage{
		rules: append(readyRules(), evalRule{
			match: `/shorts/`,
			value: []string{
				"https://www.youtube.com/shorts/SSSSSSSSSSS",
				"https://www.youtube.com/watch?v=AAAAAAAAAAA",
				"https://www.youtube.com/shorts/TTTTTTTTTTT",
			},
		}),
		waitFunc: waitAlwaysReady,
	}
	h := newTestHarvester(NewStopSignal())

	got, err := h.Collect(context.Background(), page, "https://www.youtube.com/results?search_query=x", CategoryShorts, 10, nil)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "https://www.youtube.com/shorts/SSSSSSSSSSS", got[0].URL)
	require.Equal(t, CategoryShorts, got[0].Category)
}

func TestCollectFallsBackToMarkupScan(t *testing.T) {
	t.Parallel()

	page := &fakePage{
		rules:    readyRules(),
		waitFunc: waitAlwaysReady,
		content:  `<a href="/watch?v=AAAAAAAAAAA">one</a><a href="/watch?v=BBBBBBBBBBB">two</a>`,
	}
	h := newTestHarvester(NewStopSignal())

	got, err := h.Collect(context.Background(), page, "https://www.youtube.com/results?search_query=x", CategoryVideo, 10, nil)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "https://www.youtube.com/watch?v=AAAAAAAAAAA", got[0].URL)
}

func TestReadHrefsJoinsMarkupMatchesBySuffixShape(t *testing.T) {
	t.Parallel()

	h := newTestHarvester(NewStopSignal())

	page := &fakePage{content: `<a href="/shorts/SSSSSSSSSSS">s</a>`}
	require.Equal(t,
		[]string{"https://www.youtube.com/shorts/SSSSSSSSSSS"},
		h.readHrefs(context.Background(), page, collectors[CategoryShorts]))

	page = &fakePage{content: `<a href="/watch?v=AAAAAAAAAAA&list=PL123abc">p</a>`}
	require.Equal(t,
		[]string{"https://www.youtube.com/playlist?list=PL123abc"},
		h.readHrefs(context.Background(), page, collectors[CategoryPlaylist]))

	page = &fakePage{content: `watch?v=AAAAAAAAAAA`}
	require.Equal(t,
		[]string{"https://www.youtube.com/watch?v=AAAAAAAAAAA"},
		h.readHrefs(context.Background(), page, collectors[CategoryVideo]))
}

func TestCollectStopSignalEndsLoop(t *testing.T) {
	t.Parallel()

	stop := NewStopSignal()
	page := &fakePage{
		rules: append(readyRules(), watchAnchorsRule(
			"https://www.youtube.com/watch?v=AAAAAAAAAAA",
		)),
		waitFunc: waitAlwaysReady,
	}
	ctrl := newTestController(stop, nil)
	h := NewHarvester(ctrl, stop, zap.NewNop(), HarvesterConfig{MaxScrollRounds: 10, StaleRounds: 3, ScrollPause: 1})

	stop.Set()
	got, err := h.Collect(context.Background(), page, "https://www.youtube.com/results?search_query=x", CategoryVideo, 10, nil)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestCollectUnknownCategory(t *testing.T) {
	t.Parallel()

	page := &fakePage{rules: readyRules(), waitFunc: waitAlwaysReady}
	h := newTestHarvester(NewStopSignal())

	_, err := h.Collect(context.Background(), page, "https://www.youtube.com/results?search_query=x", Category("mixtape"), 5, nil)
	require.Error(t, err)
}
