package search

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/limudai/limud/internal/debounce/debouncetest"
	"github.com/limudai/limud/internal/models"
)

type searchCall struct {
	query string
	opts  models.SearchOptions
}

type listener struct {
	mu    sync.Mutex
	calls [][]*models.SearchResult
}

func (l *listener) onResults(r []*models.SearchResult) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, r)
}

func (l *listener) snapshot() [][]*models.SearchResult {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([][]*models.SearchResult(nil), l.calls...)
}

func TestController_DebounceRunsOnceAfterLastChange(t *testing.T) {
	clock := debouncetest.NewFakeClock()
	calls := make(chan searchCall, 10)
	search := func(ctx context.Context, q string, o models.SearchOptions) ([]*models.SearchResult, error) {
		calls <- searchCall{q, o}
		return []*models.SearchResult{resultWith(q, 1)}, nil
	}
	l := &listener{}
	c := NewController(search, WithScheduler(clock.AfterFunc), WithResultsListener(l.onResults))
	defer c.Close()

	c.SetQuery("c")
	clock.Advance(40 * time.Millisecond)
	c.SetQuery("ca")
	clock.Advance(40 * time.Millisecond)
	c.SetOptions(models.SearchOptions{CaseSensitive: true})
	assert.Equal(t, PhaseDebouncing, c.Phase())

	clock.Advance(299 * time.Millisecond)
	assert.Empty(t, calls, "search ran before the quiet period elapsed")

	clock.Advance(time.Millisecond)
	select {
	case call := <-calls:
		assert.Equal(t, "ca", call.query)
		assert.True(t, call.opts.CaseSensitive)
	case <-time.After(2 * time.Second):
		t.Fatal("search never ran")
	}

	require.Eventually(t, func() bool { return c.Phase() == PhaseIdle }, 2*time.Second, 5*time.Millisecond)
	clock.Advance(time.Second)
	assert.Empty(t, calls, "expected exactly one search")

	got := l.snapshot()
	require.Len(t, got, 1)
	require.Len(t, got[0], 1)
	assert.Equal(t, "ca", got[0][0].Document.ID)
}

func TestController_ClearIsImmediate(t *testing.T) {
	clock := debouncetest.NewFakeClock()
	search := func(ctx context.Context, q string, o models.SearchOptions) ([]*models.SearchResult, error) {
		return []*models.SearchResult{resultWith("doc", 2)}, nil
	}
	l := &listener{}
	c := NewController(search, WithScheduler(clock.AfterFunc), WithResultsListener(l.onResults))
	defer c.Close()

	c.SetQuery("cat")
	clock.Advance(DefaultDebounce)
	require.Eventually(t, func() bool { return len(c.State().Results) == 1 }, 2*time.Second, 5*time.Millisecond)

	c.SetQuery("dog")
	c.Clear()

	st := c.State()
	assert.Empty(t, st.Results)
	assert.Equal(t, PhaseIdle, st.Phase())
	assert.Zero(t, clock.Pending(), "clearing must disarm the debounce timer")

	got := l.snapshot()
	require.Len(t, got, 2)
	assert.NotNil(t, got[1])
	assert.Empty(t, got[1])
}

func TestController_ClearDropsSearchStillRunning(t *testing.T) {
	clock := debouncetest.NewFakeClock()
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	search := func(ctx context.Context, q string, o models.SearchOptions) ([]*models.SearchResult, error) {
		started <- struct{}{}
		<-release
		return []*models.SearchResult{resultWith(q, 1)}, nil
	}
	l := &listener{}
	c := NewController(search, WithScheduler(clock.AfterFunc), WithResultsListener(l.onResults))
	defer c.Close()

	c.SetQuery("a")
	clock.Advance(DefaultDebounce)
	<-started
	c.Clear()
	close(release)

	require.Eventually(t, func() bool { return c.Phase() == PhaseIdle }, 2*time.Second, 5*time.Millisecond)
	st := c.State()
	assert.Empty(t, st.Results)
	assert.Empty(t, st.Intent.Query)

	got := l.snapshot()
	require.Len(t, got, 1, "only the clear should reach the listener")
	assert.Empty(t, got[0])
}

func TestController_LastCompletedSearchWins(t *testing.T) {
	clock := debouncetest.NewFakeClock()
	release := map[string]chan struct{}{"first": make(chan struct{}), "second": make(chan struct{})}
	started := make(chan string, 2)
	search := func(ctx context.Context, q string, o models.SearchOptions) ([]*models.SearchResult, error) {
		started <- q
		<-release[q]
		return []*models.SearchResult{resultWith(q, 1)}, nil
	}
	c := NewController(search, WithScheduler(clock.AfterFunc))
	defer c.Close()

	c.SetQuery("first")
	clock.Advance(DefaultDebounce)
	require.Equal(t, "first", <-started)
	c.SetQuery("second")
	clock.Advance(DefaultDebounce)
	require.Equal(t, "second", <-started)
	assert.Equal(t, PhaseSearching, c.Phase())

	close(release["second"])
	require.Eventually(t, func() bool { return len(c.State().Results) == 1 }, 2*time.Second, 5*time.Millisecond)
	close(release["first"])
	require.Eventually(t, func() bool { return c.Phase() == PhaseIdle }, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, "first", c.State().Results[0].Document.ID)
}

func TestController_SupersedeCancelsOlderSearch(t *testing.T) {
	clock := debouncetest.NewFakeClock()
	cancelled := make(chan string, 2)
	release := make(chan struct{})
	started := make(chan string, 2)
	search := func(ctx context.Context, q string, o models.SearchOptions) ([]*models.SearchResult, error) {
		started <- q
		select {
		case <-ctx.Done():
			cancelled <- q
			return nil, ctx.Err()
		case <-release:
			return []*models.SearchResult{resultWith(q, 1)}, nil
		}
	}
	c := NewController(search, WithScheduler(clock.AfterFunc), WithSupersede(true))
	defer c.Close()

	c.SetQuery("first")
	clock.Advance(DefaultDebounce)
	<-started
	c.SetQuery("second")
	clock.Advance(DefaultDebounce)
	<-started

	select {
	case q := <-cancelled:
		assert.Equal(t, "first", q)
	case <-time.After(2 * time.Second):
		t.Fatal("older search was not cancelled")
	}
	close(release)
	require.Eventually(t, func() bool { return c.Phase() == PhaseIdle }, 2*time.Second, 5*time.Millisecond)
	st := c.State()
	require.Len(t, st.Results, 1)
	assert.Equal(t, "second", st.Results[0].Document.ID)
	assert.NoError(t, st.Err)
}

func TestController_RealTimer(t *testing.T) {
	done := make(chan []*models.SearchResult, 1)
	search := func(ctx context.Context, q string, o models.SearchOptions) ([]*models.SearchResult, error) {
		return []*models.SearchResult{resultWith(q, 3)}, nil
	}
	c := NewController(search,
		WithDebounce(20*time.Millisecond),
		WithResultsListener(func(r []*models.SearchResult) { done <- r }),
	)
	defer c.Close()

	c.SetIntent(Intent{Query: "שיעור", Options: models.SearchOptions{WholeWords: true}})
	select {
	case r := <-done:
		require.Len(t, r, 1)
		assert.Equal(t, "שיעור", r[0].Document.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("no results delivered")
	}
}
