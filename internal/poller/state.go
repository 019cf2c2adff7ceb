package poller

import "github.com/limudai/limud/internal/models"

// View is the locally held picture of a polled job.
type View struct {
	JobID  string
	Status models.JobStatus
	// Notified is true once the completion callback fired for the current completed stretch.
	Notified bool
	// RetryError is the message of the last failed retry submission.
	RetryError string
	// Polls counts successful status fetches.
	Polls int
}

// Failed reports whether the job failed and a retry can be offered.
func (v View) Failed() bool {
	return v.Status.State == models.JobFailed
}

// Apply folds one observed status into the view. It reports whether the
// completion callback must fire: the first observation of completed with a
// non-empty transcript since the job was last in any other state.
func Apply(v View, observed models.JobStatus) (View, bool) {
	v.Status = observed
	v.Polls++
	if observed.State != models.JobCompleted {
		v.Notified = false
		return v, false
	}
	if v.Notified || observed.Transcript == "" {
		return v, false
	}
	v.Notified = true
	return v, true
}

// Retried returns the view after a successful retry submission.
func Retried(v View) View {
	v.Status = models.JobStatus{State: models.JobPending}
	v.Notified = false
	v.RetryError = ""
	return v
}
