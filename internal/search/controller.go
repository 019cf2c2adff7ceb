package search

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/limudai/limud/internal/debounce"
	"github.com/limudai/limud/internal/models"
	"go.uber.org/zap"
)

// DefaultDebounce is the quiet period between the last intent change and the search.
const DefaultDebounce = 300 * time.Millisecond

// SearchFunc runs one search pass. Engine.Search has this shape.
type SearchFunc func(ctx context.Context, query string, opts models.SearchOptions) ([]*models.SearchResult, error)

// Controller turns a stream of query and option changes into debounced search
// passes. State transitions are computed by Reduce; the controller only
// performs the resulting timer, search and notification effects.
type Controller struct {
	search    SearchFunc
	debouncer *debounce.Debouncer
	onResults func([]*models.SearchResult)
	supersede bool
	logger    *zap.Logger

	delay     time.Duration
	afterFunc debounce.AfterFunc

	mu             sync.Mutex
	state          State
	baseCtx        context.Context
	cancelBase     context.CancelFunc
	cancelInFlight []context.CancelFunc
	emitSeq        uint64

	emitMu    sync.Mutex
	delivered uint64
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithDebounce sets the quiet period (default 300ms).
func WithDebounce(d time.Duration) ControllerOption {
	return func(c *Controller) { c.delay = d }
}

// WithScheduler replaces the timer implementation, e.g. with debouncetest.FakeClock.AfterFunc.
func WithScheduler(fn debounce.AfterFunc) ControllerOption {
	return func(c *Controller) { c.afterFunc = fn }
}

// WithResultsListener registers the callback invoked with every new result list,
// including the empty list produced by clearing the query. The callback runs on
// the goroutine that produced the results; it must not block and must not call
// the Controller's setters synchronously.
func WithResultsListener(fn func([]*models.SearchResult)) ControllerOption {
	return func(c *Controller) { c.onResults = fn }
}

// WithSupersede makes a newer search cancel older in-flight ones and drop their results.
func WithSupersede(on bool) ControllerOption {
	return func(c *Controller) { c.supersede = on }
}

// WithControllerLogger sets the logger.
func WithControllerLogger(l *zap.Logger) ControllerOption {
	return func(c *Controller) { c.logger = l }
}

// NewController creates a controller that runs search after each debounced intent change.
func NewController(search SearchFunc, opts ...ControllerOption) *Controller {
	c := &Controller{
		search:    search,
		delay:     DefaultDebounce,
		afterFunc: debounce.StdAfterFunc,
		logger:    zap.NewNop(),
		state:     State{Results: []*models.SearchResult{}},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.debouncer = debounce.New(c.delay, debounce.WithAfterFunc(c.afterFunc))
	c.baseCtx, c.cancelBase = context.WithCancel(context.Background())
	return c
}

// SetQuery changes the query text. A blank query clears results immediately.
func (c *Controller) SetQuery(q string) {
	c.dispatch(QueryChanged{Query: q})
}

// SetOptions changes the case and whole-word toggles.
func (c *Controller) SetOptions(o models.SearchOptions) {
	c.dispatch(OptionsChanged{Options: o})
}

// SetIntent changes query and options together.
func (c *Controller) SetIntent(i Intent) {
	c.dispatch(IntentChanged{Intent: i})
}

// Clear empties the query without waiting for the debounce delay.
func (c *Controller) Clear() {
	c.SetQuery("")
}

// State returns a copy of the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.state
	s.Results = append([]*models.SearchResult(nil), c.state.Results...)
	return s
}

// Phase returns the current phase.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Phase()
}

// Close disarms the timer and cancels any running searches.
func (c *Controller) Close() {
	c.debouncer.Cancel()
	c.cancelBase()
}

func (c *Controller) dispatch(ev Event) {
	c.mu.Lock()
	prev := c.state.Phase()
	next, effects := Reduce(c.state, ev, c.supersede)
	c.state = next
	var (
		emit    []*models.SearchResult
		emitSeq uint64
		doEmit  bool
	)
	for _, eff := range effects {
		if e, ok := eff.(EmitResults); ok {
			c.emitSeq++
			emit, emitSeq, doEmit = e.Results, c.emitSeq, true
			continue
		}
		c.perform(eff)
	}
	if phase := next.Phase(); phase != prev {
		c.logger.Debug("search phase changed", zap.Stringer("from", prev), zap.Stringer("to", phase))
	}
	c.mu.Unlock()

	if doEmit {
		c.deliver(emitSeq, emit)
	}
}

// perform runs a non-notification effect. Called with c.mu held; nothing here blocks.
func (c *Controller) perform(eff Effect) {
	switch e := eff.(type) {
	case ScheduleSearch:
		version := e.Version
		c.debouncer.Trigger(func() { c.dispatch(TimerFired{Version: version}) })
	case CancelTimer:
		c.debouncer.Cancel()
	case CancelInFlight:
		for _, cancel := range c.cancelInFlight {
			cancel()
		}
		c.cancelInFlight = nil
	case StartSearch:
		ctx, cancel := context.WithCancel(c.baseCtx)
		if c.supersede {
			// Only the newest search may still be running in supersede mode.
			for _, older := range c.cancelInFlight {
				older()
			}
			c.cancelInFlight = []context.CancelFunc{cancel}
		}
		c.logger.Debug("search started", zap.String("query", e.Intent.Query), zap.Uint64("generation", e.Generation))
		go c.run(ctx, cancel, e)
	}
}

func (c *Controller) run(ctx context.Context, cancel context.CancelFunc, e StartSearch) {
	defer cancel()
	results, err := c.search(ctx, e.Intent.Query, e.Intent.Options)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			c.logger.Debug("search cancelled", zap.Uint64("generation", e.Generation))
		} else {
			c.logger.Warn("search failed", zap.String("query", e.Intent.Query), zap.Error(err))
		}
	}
	c.dispatch(SearchFinished{Generation: e.Generation, Results: results, Err: err})
}

// deliver invokes the listener unless a newer result list was already delivered.
func (c *Controller) deliver(seq uint64, results []*models.SearchResult) {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()
	if seq <= c.delivered {
		return
	}
	c.delivered = seq
	if c.onResults != nil {
		c.onResults(results)
	}
}
