package jobs

import (
	"context"
	"fmt"
	"time"

	"busticket/internal/logger"
)

// Handler performs the booking side of each job type.
type Handler interface {
	ExpireHold(ctx context.Context, ticketID int64) error
	RemindPayment(ctx context.Context, ticketID int64) error
}

type Worker struct {
	Queue    *Queue
	Handler  Handler
	Interval time.Duration
	Batch    int64
	Logger   *logger.Logger
}

func NewWorker(q *Queue, h Handler, interval time.Duration, log *logger.Logger) *Worker {
	if interval <= 0 {
		interval = time.Second
	}
	return &Worker{Queue: q, Handler: h, Interval: interval, Batch: 50, Logger: log}
}

// Run polls the queue until ctx is done.
func (w *Worker) Run(ctx context.Context) {
	w.Logger.Info("JOBS", fmt.Sprintf("Delayed job worker polling every %s", w.Interval))
	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.Logger.Info("JOBS", "Delayed job worker stopped")
			return
		case <-ticker.C:
			w.Tick(ctx, time.Now())
		}
	}
}

// Tick runs every job due at now and returns how many were processed.
func (w *Worker) Tick(ctx context.Context, now time.Time) int {
	jobs, err := w.Queue.Due(ctx, now, w.Batch)
	if err != nil {
		w.Logger.Error("JOBS", err.Error())
	}
	for _, job := range jobs {
		w.dispatch(ctx, job)
	}
	return len(jobs)
}

func (w *Worker) dispatch(ctx context.Context, job Job) {
	var err error
	switch job.Type {
	case TypeHoldExpire:
		err = w.Handler.ExpireHold(ctx, job.TicketID)
	case TypePaymentReminder:
		err = w.Handler.RemindPayment(ctx, job.TicketID)
	default:
		w.Logger.Warn("JOBS", fmt.Sprintf("Unknown job type %q for ticket %d", job.Type, job.TicketID))
		return
	}
	if err != nil {
		w.Logger.LogJob(job.Type, job.TicketID, fmt.Sprintf("failed: %v", err))
		return
	}
	w.Logger.LogJob(job.Type, job.TicketID, "done")
}

// StatusUpdater moves schedules through their time-driven states.
type StatusUpdater interface {
	UpdateStatuses(ctx context.Context, now time.Time) (ongoing, completed int, err error)
}

type StatusRunner struct {
	Updater  StatusUpdater
	Interval time.Duration
	Logger   *logger.Logger
}

func NewStatusRunner(u StatusUpdater, interval time.Duration, log *logger.Logger) *StatusRunner {
	if interval <= 0 {
		interval = 20 * time.Minute
	}
	return &StatusRunner{Updater: u, Interval: interval, Logger: log}
}

// Run updates once immediately, then every Interval.
func (s *StatusRunner) Run(ctx context.Context) {
	s.runOnce(ctx)
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *StatusRunner) runOnce(ctx context.Context) {
	ongoing, completed, err := s.Updater.UpdateStatuses(ctx, time.Now())
	if err != nil {
		s.Logger.Error("SCHEDULE_STATUS", fmt.Sprintf("Status update failed: %v", err))
		return
	}
	s.Logger.Info("SCHEDULE_STATUS", fmt.Sprintf("%d trips departed, %d trips completed", ongoing, completed))
}
