package harvest

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDedupSetMarkIfNew(t *testing.T) {
	t.Parallel()

	set := NewDedupSet()
	require.True(t, set.MarkIfNew("a"))
	require.False(t, set.MarkIfNew("a"))
	require.True(t, set.Contains("a"))
	require.False(t, set.Contains("b"))
	require.Equal(t, 1, set.Len())
}

func TestDedupSetConcurrentClaims(t *testing.T) {
	t.Parallel()

	set := NewDedupSet()
	const workers = 32
	wins := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if set.MarkIfNew("contested") {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)
	require.Len(t, wins, 1)
}

func TestStopSignal(t *testing.T) {
	t.Parallel()

	stop := NewStopSignal()
	require.False(t, stop.Stopped())
	stop.Set()
	require.True(t, stop.Stopped())
	stop.Set()
	require.True(t, stop.Stopped())
}
