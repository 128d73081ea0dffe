package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Retraining decision thresholds.
const (
	MinOutcomesForRetraining = 10
	AccuracyFloor            = 0.6
	SatisfactionFloor        = 3.0
	LossFloor                = -1000
	RetrainingInterval       = 7 * 24 * time.Hour
	RetrainingTimesteps      = 50000
	EvalEpisodes             = 10
)

// Retraining trigger reasons, in evaluation order.
const (
	ReasonInsufficientOutcomes = "insufficient_outcomes"
	ReasonPoorAccuracy         = "poor_accuracy"
	ReasonPoorSatisfaction     = "poor_user_satisfaction"
	ReasonSignificantLosses    = "significant_losses"
	ReasonScheduled            = "scheduled_retraining"
	ReasonNotNeeded            = "no_retraining_needed"
)

// Orchestrator decides when the policy needs retraining and runs the
// retraining passes. A mutex serializes runs so overlapping triggers cannot
// train concurrently.
type Orchestrator struct {
	store     Store
	tracker   *Tracker
	optimizer PolicyOptimizer
	catalog   []Product
	modelPath string
	log       zerolog.Logger

	mu sync.Mutex
}

// NewOrchestrator wires the orchestrator. modelPath is where policy
// checkpoints land.
func NewOrchestrator(store Store, tracker *Tracker, optimizer PolicyOptimizer, catalog []Product, modelPath string, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		store:     store,
		tracker:   tracker,
		optimizer: optimizer,
		catalog:   catalog,
		modelPath: modelPath,
		log:       log,
	}
}

// ShouldRetrain evaluates the retraining conditions in priority order and
// short-circuits on the first that fires. With fewer than the minimum
// completed outcomes the answer is always no.
func (o *Orchestrator) ShouldRetrain(ctx context.Context, now time.Time) (bool, string, error) {
	summary, err := o.tracker.TrainingSummary(ctx)
	if err != nil {
		return false, "", fmt.Errorf("should retrain: %w", err)
	}
	if summary.CompletedCount < MinOutcomesForRetraining {
		return false, ReasonInsufficientOutcomes, nil
	}
	if summary.MeanROIAccuracy < AccuracyFloor {
		return true, ReasonPoorAccuracy, nil
	}
	if summary.SatisfactionCount > 0 && summary.MeanSatisfaction < SatisfactionFloor {
		return true, ReasonPoorSatisfaction, nil
	}
	if summary.TotalActualProfit.LessThan(decimal.NewFromInt(LossFloor)) {
		return true, ReasonSignificantLosses, nil
	}
	last, err := o.lastTrainingTime(ctx)
	if err != nil {
		return false, "", fmt.Errorf("should retrain: %w", err)
	}
	if last.IsZero() || now.Sub(last) > RetrainingInterval {
		return true, ReasonScheduled, nil
	}
	return false, ReasonNotNeeded, nil
}

func (o *Orchestrator) lastTrainingTime(ctx context.Context) (time.Time, error) {
	runs, err := o.store.ListTrainingRuns(ctx)
	if err != nil {
		return time.Time{}, err
	}
	var last time.Time
	for _, r := range runs {
		if r.Performed && r.StartedAt.After(last) {
			last = r.StartedAt
		}
	}
	return last, nil
}

// RunPeriodicRetraining retrains when warranted, blending stored enhanced
// rewards into the simulator's signal, then evaluates the refreshed policy
// over held-out episodes. Optimizer failure is recorded on the run, logged
// and swallowed; a broken retrain must never take the agent down.
func (o *Orchestrator) RunPeriodicRetraining(ctx context.Context) (TrainingRun, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	now := time.Now()
	run := TrainingRun{
		ID:        uuid.NewString(),
		StartedAt: now,
		Timesteps: RetrainingTimesteps,
	}

	needed, reason, err := o.ShouldRetrain(ctx, now)
	if err != nil {
		return run, err
	}
	run.Trigger = reason
	if !needed {
		o.log.Debug().Str("reason", reason).Msg("retraining not needed")
		return run, nil
	}

	summary, err := o.tracker.TrainingSummary(ctx)
	if err != nil {
		return run, fmt.Errorf("run retraining: %w", err)
	}
	lookup, err := o.tracker.RewardLookup(ctx)
	if err != nil {
		return run, fmt.Errorf("run retraining: %w", err)
	}

	sim := NewSimulator(SimulatorConfig{
		Catalog: o.catalog,
		Reward:  NewBlendedWithOutcomes(lookup),
	})

	o.log.Info().Str("reason", reason).Int("timesteps", run.Timesteps).Msg("retraining policy")
	if err := o.optimizer.Train(ctx, sim, run.Timesteps); err != nil {
		run.Error = err.Error()
		o.log.Error().Err(err).Str("reason", reason).Msg("retraining failed")
		if saveErr := o.store.AppendTrainingRun(ctx, run); saveErr != nil {
			return run, fmt.Errorf("record failed retraining: %w", saveErr)
		}
		return run, nil
	}

	run.MeanReward = o.evaluate()
	run.MeanActualROI = summary.MeanActualROI
	run.ROIAccuracy = summary.MeanROIAccuracy
	run.MeanSatisfaction = summary.MeanSatisfaction
	run.TotalActualProfit = summary.TotalActualProfit
	run.Duration = time.Since(now)
	run.Performed = true

	if o.modelPath != "" {
		if err := o.optimizer.Save(o.modelPath); err != nil {
			o.log.Error().Err(err).Str("path", o.modelPath).Msg("policy checkpoint failed")
		}
	}
	if err := o.store.AppendTrainingRun(ctx, run); err != nil {
		return run, fmt.Errorf("record retraining: %w", err)
	}
	o.log.Info().
		Float64("mean_reward", run.MeanReward).
		Dur("duration", run.Duration).
		Msg("retraining complete")
	return run, nil
}

// evaluate runs the policy over held-out episodes with purely simulated
// rewards and returns the mean episode reward.
func (o *Orchestrator) evaluate() float64 {
	sim := NewSimulator(SimulatorConfig{Catalog: o.catalog})
	var total float64
	for ep := 0; ep < EvalEpisodes; ep++ {
		total += runEpisode(sim, o.optimizer, int64(1000+ep))
	}
	return total / EvalEpisodes
}

// TrainCurriculum validates the stage sequence, then trains stage by stage
// with each stage's dials applied, checkpointing after every stage.
func (o *Orchestrator) TrainCurriculum(ctx context.Context, stages []CurriculumStage, budget int) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := ValidateCurriculum(stages, budget); err != nil {
		return fmt.Errorf("train curriculum: %w", err)
	}
	for i := range stages {
		stage := stages[i]
		o.log.Info().Str("stage", stage.Name).Int("timesteps", stage.Timesteps).Msg("curriculum stage starting")
		sim := NewSimulator(SimulatorConfig{Catalog: o.catalog, Stage: &stage})
		if err := o.optimizer.Train(ctx, sim, stage.Timesteps); err != nil {
			return fmt.Errorf("train curriculum: stage %q: %w", stage.Name, err)
		}
		if o.modelPath != "" {
			checkpoint := fmt.Sprintf("%s.stage%d", o.modelPath, i+1)
			if err := o.optimizer.Save(checkpoint); err != nil {
				return fmt.Errorf("train curriculum: checkpoint stage %q: %w", stage.Name, err)
			}
		}
	}
	return nil
}
