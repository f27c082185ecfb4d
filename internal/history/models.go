package history

import "time"

// Status represents the lifecycle state of a run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Run is one invocation of a stage.
type Run struct {
	ID           string
	Stage        string
	Status       Status
	StartedAt    time.Time
	FinishedAt   *time.Time
	Summary      string
	ErrorMessage string
	ItemCount    int
}

// Duration returns how long the run took, or zero while it is running.
func (r Run) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Item is the outcome of one video, frame directory or batch within a run.
type Item struct {
	RunID      string
	Key        string
	Outcome    string
	Detail     string
	Count      int
	RecordedAt time.Time
}
