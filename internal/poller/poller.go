// Package poller watches the processing status of a transcription or OCR job.
package poller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/limudai/limud/internal/models"
	"go.uber.org/zap"
)

// DefaultInterval is the delay between two status polls.
const DefaultInterval = 5 * time.Second

// JobSource reports job status and accepts retry submissions.
type JobSource interface {
	JobStatus(ctx context.Context, jobID string) (*models.JobStatus, error)
	RetryJob(ctx context.Context, jobID string) error
}

// ErrNoJob is returned by Retry when no job is being watched.
var ErrNoJob = errors.New("no job is being watched")

// Poller polls one job at a time. Watching a new job stops the previous loop.
type Poller struct {
	source     JobSource
	interval   time.Duration
	logger     *zap.Logger
	onChange   func(View)
	onComplete func(jobID, transcript string)

	mu     sync.Mutex
	view   View
	cancel context.CancelFunc
	done   chan struct{}
	// notifying is the done channel of the loop currently running a callback.
	notifying chan struct{}
}

// Option configures a Poller.
type Option func(*Poller)

// WithInterval sets the poll interval (default 5s).
func WithInterval(d time.Duration) Option {
	return func(p *Poller) { p.interval = d }
}

// WithLogger sets the logger used for swallowed poll failures.
func WithLogger(l *zap.Logger) Option {
	return func(p *Poller) { p.logger = l }
}

// OnChange registers an observer called with the view after every update.
func OnChange(fn func(View)) Option {
	return func(p *Poller) { p.onChange = fn }
}

// OnComplete registers the callback fired once per transition into completed
// with a transcript.
func OnComplete(fn func(jobID, transcript string)) Option {
	return func(p *Poller) { p.onComplete = fn }
}

// New creates a poller over source.
func New(source JobSource, opts ...Option) *Poller {
	p := &Poller{source: source, interval: DefaultInterval, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Watch starts polling jobID immediately and then on every interval until ctx
// is done, Stop is called, or Watch is called again.
func (p *Poller) Watch(ctx context.Context, jobID string) {
	p.Stop()
	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	p.mu.Lock()
	p.view = View{JobID: jobID, Status: models.JobStatus{State: models.JobNotStarted}}
	p.cancel = cancel
	p.done = done
	p.mu.Unlock()
	go p.run(loopCtx, jobID, done)
}

// Stop cancels the polling loop and waits for it to exit. Called from an
// OnChange or OnComplete callback it only cancels, since the loop cannot exit
// before the callback returns; no further callbacks fire for that loop.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	inCallback := done != nil && p.notifying == done
	p.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	if !inCallback {
		<-done
	}
}

// Done returns a channel closed when the current loop exits, or nil when idle.
func (p *Poller) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

// View returns the current view.
func (p *Poller) View() View {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.view
}

// Retry re-submits the watched job. On success the local state is reset to
// pending; on failure the error is kept in View.RetryError and returned.
// Polling continues in both cases.
func (p *Poller) Retry(ctx context.Context) error {
	p.mu.Lock()
	jobID := p.view.JobID
	p.mu.Unlock()
	if jobID == "" {
		return ErrNoJob
	}
	if err := p.source.RetryJob(ctx, jobID); err != nil {
		if v, ok := p.update(jobID, func(v View) View {
			v.RetryError = err.Error()
			return v
		}); ok && p.onChange != nil {
			p.onChange(v)
		}
		return fmt.Errorf("retry job %s: %w", jobID, err)
	}
	p.logger.Info("job retry submitted", zap.String("job_id", jobID))
	if v, ok := p.update(jobID, Retried); ok && p.onChange != nil {
		p.onChange(v)
	}
	return nil
}

func (p *Poller) run(ctx context.Context, jobID string, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	p.poll(ctx, jobID, done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll(ctx, jobID, done)
		}
	}
}

func (p *Poller) poll(ctx context.Context, jobID string, done chan struct{}) {
	status, err := p.source.JobStatus(ctx, jobID)
	if err != nil {
		if ctx.Err() == nil {
			p.logger.Warn("job status poll failed", zap.String("job_id", jobID), zap.Error(err))
		}
		return
	}
	if status == nil {
		p.logger.Warn("job status poll returned nothing", zap.String("job_id", jobID))
		return
	}

	var fire bool
	var transcript string
	v, changed := p.update(jobID, func(v View) View {
		prev := v.Status.State
		v, fire = Apply(v, *status)
		if prev != v.Status.State {
			p.logger.Debug("job state changed", zap.String("job_id", jobID),
				zap.String("from", string(prev)), zap.String("to", string(v.Status.State)))
		}
		transcript = v.Status.Transcript
		return v
	})
	if !changed {
		return
	}

	p.mu.Lock()
	p.notifying = done
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		if p.notifying == done {
			p.notifying = nil
		}
		p.mu.Unlock()
	}()
	if p.onChange != nil {
		p.onChange(v)
	}
	if fire && p.onComplete != nil && ctx.Err() == nil {
		p.onComplete(jobID, transcript)
	}
}

// update applies fn to the view if jobID is still the watched job.
func (p *Poller) update(jobID string, fn func(View) View) (View, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.view.JobID != jobID {
		return View{}, false
	}
	p.view = fn(p.view)
	return p.view, true
}
