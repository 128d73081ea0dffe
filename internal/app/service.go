package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"coo-agent/internal/ai"
	"coo-agent/internal/core"
)

// TaskStore extends the tracking store with approval ingestion, which both
// store implementations provide.
type TaskStore interface {
	core.Store
	AddApprovedTask(ctx context.Context, task core.ApprovedTask) error
}

// RecommendResult bundles the ranked recommendation with its supporting
// analysis.
type RecommendResult struct {
	Recommendation core.Recommendation `json:"recommendation"`
	ROI            *core.ROIResult     `json:"roi,omitempty"`
	Note           ai.AdvisorNote      `json:"note"`
	Episodes       int                 `json:"episodes"`
	OutcomesScored int                 `json:"outcomes_scored"`
}

// StatusResult is the agent's operational snapshot.
type StatusResult struct {
	Summary         core.TrainingSummary `json:"summary"`
	TrackingCount   int                  `json:"tracking_count"`
	PendingFeedback int                  `json:"pending_feedback"`
	LastTraining    *core.TrainingRun    `json:"last_training,omitempty"`
}

// Service composes the simulator, calculator, tracker, orchestrator and
// advisor behind one facade the CLI talks to.
type Service struct {
	store        TaskStore
	catalog      []core.Product
	optimizer    core.PolicyOptimizer
	tracker      *core.Tracker
	orchestrator *core.Orchestrator
	advisor      *ai.Advisor
	log          zerolog.Logger
}

// NewService wires the facade.
func NewService(store TaskStore, catalog []core.Product, optimizer core.PolicyOptimizer, tracker *core.Tracker, orchestrator *core.Orchestrator, advisor *ai.Advisor, log zerolog.Logger) *Service {
	return &Service{
		store:        store,
		catalog:      catalog,
		optimizer:    optimizer,
		tracker:      tracker,
		orchestrator: orchestrator,
		advisor:      advisor,
		log:          log,
	}
}

// Recommend runs parallel policy rollouts, ranks every projected action and
// annotates the winner. Each rollout owns its own simulator, so episodes
// scale across cores safely.
func (s *Service) Recommend(ctx context.Context, episodes int) (RecommendResult, error) {
	if episodes <= 0 {
		episodes = 4
	}
	logs := make([][]core.ActionOutcome, episodes)

	g, ctx := errgroup.WithContext(ctx)
	for ep := 0; ep < episodes; ep++ {
		ep := ep
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			sim := core.NewSimulator(core.SimulatorConfig{Catalog: s.catalog})
			obs, _ := sim.Reset(time.Now().UnixNano() + int64(ep))
			for {
				next, _, terminated, truncated, _ := sim.Step(s.optimizer.Predict(obs))
				if terminated || truncated {
					break
				}
				obs = next
			}
			logs[ep] = sim.Log()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return RecommendResult{}, fmt.Errorf("recommend rollouts: %w", err)
	}

	var combined []core.ActionOutcome
	for _, l := range logs {
		combined = append(combined, l...)
	}
	now := time.Now()
	rec := core.Rank(combined, now)

	var roi *core.ROIResult
	if rec.Action == core.ActionRestock && rec.ProductID != "" {
		if r, err := s.CalculateROI(rec.ProductID, rec.Quantity, core.DefaultTrackingDays); err == nil {
			roi = &r
		} else {
			s.log.Warn().Err(err).Str("product_id", rec.ProductID).Msg("roi breakdown unavailable")
		}
	}

	summary, err := s.tracker.TrainingSummary(ctx)
	if err != nil {
		return RecommendResult{}, fmt.Errorf("recommend: %w", err)
	}
	note, err := s.advisor.Annotate(ctx, rec, roi, summary)
	if err != nil {
		// The advisor is decoration; a failed LLM call never blocks the
		// recommendation itself.
		s.log.Warn().Err(err).Msg("advisor annotation failed, using template")
		note = ai.AdvisorNote{Reasoning: rec.Reasoning, Confidence: rec.ConfidenceLabel}
	}

	return RecommendResult{
		Recommendation: rec,
		ROI:            roi,
		Note:           note,
		Episodes:       episodes,
		OutcomesScored: len(combined),
	}, nil
}

// CalculateROI exposes the calculator for ad-hoc what-if queries. Metrics
// are seeded from the catalog until a live sales feed refreshes them.
func (s *Service) CalculateROI(productID string, qty, windowDays int) (core.ROIResult, error) {
	now := time.Now()
	metrics := make([]core.ProductMetrics, 0, len(s.catalog))
	for _, p := range s.catalog {
		metrics = append(metrics, core.MetricsFromProduct(p, now))
	}
	calc := core.NewCalculator(metrics, core.Normal, core.SeasonOf(now), now, now.UnixNano())
	return calc.CalculateROI(productID, qty, windowDays)
}

// ProcessApprovedTask records an approval and opens outcome tracking for it
// immediately.
func (s *Service) ProcessApprovedTask(ctx context.Context, rec core.Recommendation) (core.OutcomeRecord, error) {
	predictedProfit, _ := rec.PredictedProfit.Float64()
	predictedCost, _ := rec.PredictedCost.Float64()
	task := core.ApprovedTask{
		TaskID:           uuid.NewString(),
		RecommendationID: rec.ID,
		Kind:             rec.Action,
		ApprovedAt:       time.Now(),
		Payload: map[string]any{
			"product_id":       rec.ProductID,
			"product_name":     rec.ProductName,
			"quantity":         float64(rec.Quantity),
			"predicted_roi":    rec.ExpectedROI,
			"predicted_profit": predictedProfit,
			"restock_cost":     predictedCost,
		},
	}
	if err := s.store.AddApprovedTask(ctx, task); err != nil {
		return core.OutcomeRecord{}, fmt.Errorf("process approved task: %w", err)
	}
	return s.tracker.StartTracking(ctx, task, time.Now())
}

// SubmitFeedback attaches user feedback to a tracked task.
func (s *Service) SubmitFeedback(ctx context.Context, taskID, feedback string, satisfaction int) error {
	return s.tracker.CollectFeedback(ctx, taskID, feedback, satisfaction)
}

// RunCycle executes one tracking cycle immediately.
func (s *Service) RunCycle(ctx context.Context, now time.Time) error {
	sched := core.NewScheduler(s.tracker, s.orchestrator, nil, s.log)
	return sched.Cycle(ctx, now)
}

// Serve runs the scheduler loop until the context is canceled.
func (s *Service) Serve(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	sched := core.NewScheduler(s.tracker, s.orchestrator, ticker.C, s.log)
	s.log.Info().Dur("interval", interval).Msg("scheduler started")
	return sched.Run(ctx)
}

// Retrain forces a retraining evaluation now.
func (s *Service) Retrain(ctx context.Context) (core.TrainingRun, error) {
	return s.orchestrator.RunPeriodicRetraining(ctx)
}

// TrainCurriculum runs staged training over the default curriculum.
func (s *Service) TrainCurriculum(ctx context.Context, totalTimesteps int) error {
	stages := core.DefaultCurriculum(totalTimesteps)
	return s.orchestrator.TrainCurriculum(ctx, stages, totalTimesteps)
}

// Status reports the agent's current tracking and training state.
func (s *Service) Status(ctx context.Context) (StatusResult, error) {
	var (
		result StatusResult
		mu     sync.Mutex
	)
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		summary, err := s.tracker.TrainingSummary(ctx)
		if err != nil {
			return err
		}
		mu.Lock()
		result.Summary = summary
		mu.Unlock()
		return nil
	})
	g.Go(func() error {
		records, err := s.store.ListOutcomes(ctx)
		if err != nil {
			return err
		}
		var tracking int
		for _, rec := range records {
			if rec.Status == core.StatusTracking {
				tracking++
			}
		}
		mu.Lock()
		result.TrackingCount = tracking
		mu.Unlock()
		return nil
	})
	g.Go(func() error {
		requests, err := s.store.ListFeedbackRequests(ctx)
		if err != nil {
			return err
		}
		var pending int
		for _, fr := range requests {
			if fr.Status == core.FeedbackPending {
				pending++
			}
		}
		mu.Lock()
		result.PendingFeedback = pending
		mu.Unlock()
		return nil
	})
	g.Go(func() error {
		runs, err := s.store.ListTrainingRuns(ctx)
		if err != nil {
			return err
		}
		mu.Lock()
		for i := range runs {
			if runs[i].Performed {
				run := runs[i]
				result.LastTraining = &run
			}
		}
		mu.Unlock()
		return nil
	})

	if err := g.Wait(); err != nil {
		return StatusResult{}, fmt.Errorf("status: %w", err)
	}
	return result, nil
}
