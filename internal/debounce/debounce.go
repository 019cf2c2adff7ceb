// Package debounce provides a cancellable timer that only fires for the last
// trigger within a quiet period.
package debounce

import (
	"sync"
	"time"
)

// Timer is the handle returned by an AfterFunc.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f to run after d. time.AfterFunc satisfies it via StdAfterFunc.
type AfterFunc func(d time.Duration, f func()) Timer

// StdAfterFunc schedules with the runtime timer.
func StdAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Debouncer holds at most one pending timer. Each Trigger stops the pending
// timer, if any, and schedules a new one.
type Debouncer struct {
	delay     time.Duration
	afterFunc AfterFunc

	mu    sync.Mutex
	timer Timer
	seq   uint64
}

// Option configures a Debouncer.
type Option func(*Debouncer)

// WithAfterFunc replaces the scheduler, typically with a fake clock in tests.
func WithAfterFunc(fn AfterFunc) Option {
	return func(d *Debouncer) { d.afterFunc = fn }
}

// New creates a debouncer with the given quiet period.
func New(delay time.Duration, opts ...Option) *Debouncer {
	d := &Debouncer{delay: delay, afterFunc: StdAfterFunc}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Delay returns the quiet period.
func (d *Debouncer) Delay() time.Duration {
	return d.delay
}

// Trigger cancels any pending call and schedules f after the quiet period.
// A timer that already fired but lost the race against a newer Trigger does not run f.
func (d *Debouncer) Trigger(f func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.seq++
	seq := d.seq
	d.timer = d.afterFunc(d.delay, func() {
		d.mu.Lock()
		if d.seq != seq {
			d.mu.Unlock()
			return
		}
		d.timer = nil
		d.mu.Unlock()
		f()
	})
}

// Cancel stops the pending call. It reports whether one was pending.
func (d *Debouncer) Cancel() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer == nil {
		return false
	}
	d.timer.Stop()
	d.timer = nil
	d.seq++
	return true
}

// Pending reports whether a call is scheduled.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

// Group debounces independently per key, e.g. per file path.
type Group struct {
	delay     time.Duration
	afterFunc AfterFunc

	mu    sync.Mutex
	byKey map[string]*Debouncer
}

// NewGroup creates a keyed debouncer group.
func NewGroup(delay time.Duration, opts ...Option) *Group {
	proto := New(delay, opts...)
	return &Group{delay: delay, afterFunc: proto.afterFunc, byKey: make(map[string]*Debouncer)}
}

// Trigger debounces f under key. The key is forgotten once f has run.
func (g *Group) Trigger(key string, f func()) {
	g.mu.Lock()
	d, ok := g.byKey[key]
	if !ok {
		d = New(g.delay, WithAfterFunc(g.afterFunc))
		g.byKey[key] = d
	}
	g.mu.Unlock()
	d.Trigger(func() {
		g.mu.Lock()
		if g.byKey[key] == d && !d.Pending() {
			delete(g.byKey, key)
		}
		g.mu.Unlock()
		f()
	})
}

// Cancel stops the pending call for key.
func (g *Group) Cancel(key string) bool {
	g.mu.Lock()
	d, ok := g.byKey[key]
	delete(g.byKey, key)
	g.mu.Unlock()
	if !ok {
		return false
	}
	return d.Cancel()
}

// CancelAll stops every pending call.
func (g *Group) CancelAll() {
	g.mu.Lock()
	all := g.byKey
	g.byKey = make(map[string]*Debouncer)
	g.mu.Unlock()
	for _, d := range all {
		d.Cancel()
	}
}

// Len returns the number of keys with a pending call.
func (g *Group) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.byKey)
}
