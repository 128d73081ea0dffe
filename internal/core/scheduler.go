package core

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Scheduler drives the periodic tracking cycle from an explicit tick
// channel, so tests can feed ticks directly instead of sleeping. One
// scheduler per deployment.
type Scheduler struct {
	tracker      *Tracker
	orchestrator *Orchestrator
	ticks        <-chan time.Time
	log          zerolog.Logger
}

// NewScheduler builds a scheduler over the given tick source. Callers
// typically pass time.Tick(interval); tests pass their own channel.
func NewScheduler(tracker *Tracker, orchestrator *Orchestrator, ticks <-chan time.Time, log zerolog.Logger) *Scheduler {
	return &Scheduler{tracker: tracker, orchestrator: orchestrator, ticks: ticks, log: log}
}

// Run loops until the context is canceled, executing one cycle per tick.
// Cycle errors are logged and do not stop the loop.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now, ok := <-s.ticks:
			if !ok {
				return nil
			}
			if err := s.Cycle(ctx, now); err != nil {
				s.log.Error().Err(err).Msg("tracking cycle failed")
			}
		}
	}
}

// Cycle runs one pass of the tracking pipeline: ingest approvals, capture
// due outcomes, generate rewards, expire stale feedback requests, drop
// records past retention, then let the orchestrator decide on retraining.
func (s *Scheduler) Cycle(ctx context.Context, now time.Time) error {
	started, err := s.tracker.CheckApprovedTasks(ctx, now)
	if err != nil {
		return err
	}
	captured, err := s.tracker.CaptureOutcomes(ctx, now)
	if err != nil {
		return err
	}
	rewards, err := s.tracker.GenerateRewards(ctx, now)
	if err != nil {
		return err
	}
	expired, err := s.tracker.ExpireFeedbackRequests(ctx, now)
	if err != nil {
		return err
	}
	if _, err := s.tracker.Cleanup(ctx, now, RetentionDays); err != nil {
		return err
	}
	s.log.Info().
		Int("tracking_started", started).
		Int("outcomes_captured", captured).
		Int("rewards_generated", rewards).
		Int("feedback_expired", expired).
		Msg("tracking cycle complete")

	_, err = s.orchestrator.RunPeriodicRetraining(ctx)
	return err
}
