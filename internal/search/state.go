package search

import (
	"strings"

	"github.com/limudai/limud/internal/models"
)

// Phase is the externally visible state of a Controller.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseDebouncing
	PhaseSearching
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseDebouncing:
		return "debouncing"
	case PhaseSearching:
		return "searching"
	default:
		return "unknown"
	}
}

// Intent is the query text plus option toggles that together determine one search.
type Intent struct {
	Query   string
	Options models.SearchOptions
}

// Blank reports whether the intent clears the search.
func (i Intent) Blank() bool {
	return strings.TrimSpace(i.Query) == ""
}

// State is the controller's complete state. It is only changed by Reduce.
type State struct {
	Intent Intent
	// Version increases on every intent change; timer events for older versions are ignored.
	Version uint64
	// Pending is true while a debounce timer is armed.
	Pending bool
	// InFlight counts searches started and not yet finished.
	InFlight int
	// Generation increases on every search start and on every clear.
	Generation uint64
	// Applied is the generation whose results are held in Results.
	Applied uint64
	// ClearedAt is the generation of the last clear; searches started before it are dropped.
	ClearedAt uint64
	Results   []*models.SearchResult
	Err       error
}

// Phase derives the visible phase. A pending timer wins over in-flight searches.
func (s State) Phase() Phase {
	switch {
	case s.Pending:
		return PhaseDebouncing
	case s.InFlight > 0:
		return PhaseSearching
	default:
		return PhaseIdle
	}
}

// Event is an input to Reduce.
type Event interface{ event() }

// QueryChanged replaces the query text and keeps the options.
type QueryChanged struct{ Query string }

// OptionsChanged replaces the options and keeps the query text.
type OptionsChanged struct{ Options models.SearchOptions }

// IntentChanged replaces query and options at once.
type IntentChanged struct{ Intent Intent }

// TimerFired reports that the debounce delay for Version elapsed.
type TimerFired struct{ Version uint64 }

// SearchFinished reports a completed search pass.
type SearchFinished struct {
	Generation uint64
	Results    []*models.SearchResult
	Err        error
}

func (QueryChanged) event()   {}
func (OptionsChanged) event() {}
func (IntentChanged) event()  {}
func (TimerFired) event()     {}
func (SearchFinished) event() {}

// Effect is an instruction produced by Reduce for the I/O layer.
type Effect interface{ effect() }

// ScheduleSearch (re)arms the debounce timer for Version.
type ScheduleSearch struct{ Version uint64 }

// CancelTimer disarms the debounce timer.
type CancelTimer struct{}

// StartSearch runs a search pass for Intent, tagged with Generation.
type StartSearch struct {
	Generation uint64
	Intent     Intent
}

// CancelInFlight cancels searches that have not finished yet.
type CancelInFlight struct{}

// EmitResults notifies the results listener.
type EmitResults struct{ Results []*models.SearchResult }

func (ScheduleSearch) effect() {}
func (CancelTimer) effect()    {}
func (StartSearch) effect()    {}
func (CancelInFlight) effect() {}
func (EmitResults) effect()    {}

// Reduce computes the next state and the effects to perform. It never does I/O.
//
// With supersede=false, concurrent searches race and whichever finishes last
// sets the results. With supersede=true, starting a search or clearing cancels
// older searches and their completions are dropped. In both modes a search
// started before the last clear never repopulates the cleared results.
func Reduce(s State, ev Event, supersede bool) (State, []Effect) {
	switch ev := ev.(type) {
	case QueryChanged:
		return changeIntent(s, Intent{Query: ev.Query, Options: s.Intent.Options}, supersede)
	case OptionsChanged:
		return changeIntent(s, Intent{Query: s.Intent.Query, Options: ev.Options}, supersede)
	case IntentChanged:
		return changeIntent(s, ev.Intent, supersede)

	case TimerFired:
		if !s.Pending || ev.Version != s.Version {
			return s, nil
		}
		s.Pending = false
		var effects []Effect
		if supersede && s.InFlight > 0 {
			effects = append(effects, CancelInFlight{})
		}
		s.Generation++
		s.InFlight++
		effects = append(effects, StartSearch{Generation: s.Generation, Intent: s.Intent})
		return s, effects

	case SearchFinished:
		if s.InFlight > 0 {
			s.InFlight--
		}
		if ev.Generation <= s.ClearedAt {
			return s, nil
		}
		if supersede && ev.Generation != s.Generation {
			return s, nil
		}
		if ev.Err != nil {
			s.Err = ev.Err
			return s, nil
		}
		results := ev.Results
		if results == nil {
			results = []*models.SearchResult{}
		}
		s.Results = results
		s.Applied = ev.Generation
		s.Err = nil
		return s, []Effect{EmitResults{Results: results}}
	}
	return s, nil
}

func changeIntent(s State, next Intent, supersede bool) (State, []Effect) {
	if next == s.Intent {
		return s, nil
	}
	s.Intent = next
	s.Version++

	if next.Blank() {
		var effects []Effect
		if s.Pending {
			effects = append(effects, CancelTimer{})
			s.Pending = false
		}
		if supersede && s.InFlight > 0 {
			effects = append(effects, CancelInFlight{})
		}
		s.Generation++
		s.Applied = s.Generation
		s.ClearedAt = s.Generation
		s.Results = []*models.SearchResult{}
		s.Err = nil
		return s, append(effects, EmitResults{Results: s.Results})
	}

	s.Pending = true
	return s, []Effect{ScheduleSearch{Version: s.Version}}
}
