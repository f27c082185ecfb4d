package history

import (
	"context"
	"errors"
	"log/slog"

	"signprep/internal/logging"
	"signprep/internal/services"
)

// Recorder writes one run's history without ever failing the stage it
// observes. A Recorder built over a nil Store does nothing.
type Recorder struct {
	store  *Store
	logger *slog.Logger
	run    *Run
}

// StartRecorder opens a run for stage. When the run cannot be created the
// failure is logged and the returned Recorder does nothing.
func StartRecorder(ctx context.Context, store *Store, stage string, logger *slog.Logger) *Recorder {
	rec := &Recorder{store: store, logger: logging.NewComponentLogger(logger, "history")}
	if store == nil {
		return rec
	}
	run, err := store.Begin(ctx, stage)
	if err != nil {
		rec.logger.Warn("run history unavailable",
			logging.Event("history_begin_failed"),
			logging.String(logging.FieldStage, stage),
			logging.Error(err),
		)
		return rec
	}
	rec.run = run
	return rec
}

// RunID returns the id of the recorded run, or "" when nothing is recorded.
func (r *Recorder) RunID() string {
	if r == nil || r.run == nil {
		return ""
	}
	return r.run.ID
}

// Item records an item outcome derived from err.
func (r *Recorder) Item(ctx context.Context, key string, err error, count int) {
	detail := ""
	if err != nil {
		detail = err.Error()
	}
	r.Outcome(ctx, key, services.Outcome(err), detail, count)
}

// Outcome records an item with an explicit outcome label such as "skipped".
func (r *Recorder) Outcome(ctx context.Context, key, outcome, detail string, count int) {
	if r == nil || r.run == nil {
		return
	}
	if err := r.store.RecordItem(context.WithoutCancel(ctx), r.run.ID, key, outcome, detail, count); err != nil {
		r.logger.Warn("failed to record run item",
			logging.Event("history_item_failed"),
			logging.String(logging.FieldItem, key),
			logging.Error(err),
		)
	}
}

// Finish closes the run. The status follows runErr: nil succeeds, a
// cancellation is recorded as cancelled, anything else fails.
func (r *Recorder) Finish(ctx context.Context, summary string, runErr error) {
	if r == nil || r.run == nil {
		return
	}
	status := StatusSucceeded
	switch {
	case runErr == nil:
	case errors.Is(runErr, context.Canceled):
		status = StatusCancelled
	default:
		status = StatusFailed
	}
	if err := r.store.Finish(context.WithoutCancel(ctx), r.run.ID, status, summary, runErr); err != nil {
		r.logger.Warn("failed to finish run history",
			logging.Event("history_finish_failed"),
			logging.Error(err),
		)
	}
}
