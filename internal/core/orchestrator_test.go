package core_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"coo-agent/internal/core"
)

func newTestOrchestrator(st core.Store, optimizer core.PolicyOptimizer) *core.Orchestrator {
	tracker := newTestTracker(st)
	catalog := core.DefaultCatalog()
	if optimizer == nil {
		optimizer = core.NewHeuristicPolicy(catalog)
	}
	return core.NewOrchestrator(st, tracker, optimizer, catalog, "", zerolog.Nop())
}

// accurateRecord is a completed outcome that triggers no quality condition.
func accurateRecord(taskID string) core.OutcomeRecord {
	return completedRecord(taskID, 20, 20, 100, 0.8, nil)
}

func TestShouldRetrain_Order(t *testing.T) {
	now := time.Now()
	two := 2

	manyAccurate := func() []core.OutcomeRecord {
		var recs []core.OutcomeRecord
		for i := 0; i < 10; i++ {
			recs = append(recs, accurateRecord(string(rune('a'+i))))
		}
		return recs
	}

	tests := []struct {
		name       string
		setup      func(*memStore)
		wantNeeded bool
		wantReason string
	}{
		{
			name:       "empty store",
			setup:      func(*memStore) {},
			wantNeeded: false,
			wantReason: core.ReasonInsufficientOutcomes,
		},
		{
			name: "nine outcomes is still insufficient",
			setup: func(st *memStore) {
				for i := 0; i < 9; i++ {
					st.outcomes = append(st.outcomes, accurateRecord(string(rune('a'+i))))
				}
			},
			wantNeeded: false,
			wantReason: core.ReasonInsufficientOutcomes,
		},
		{
			name: "poor accuracy fires first",
			setup: func(st *memStore) {
				for i := 0; i < 10; i++ {
					// Wildly wrong predictions, and unhappy users too; the
					// accuracy check wins because it is evaluated first.
					rec := completedRecord(string(rune('a'+i)), 80, 5, -500, 0.2, &two)
					st.outcomes = append(st.outcomes, rec)
				}
			},
			wantNeeded: true,
			wantReason: core.ReasonPoorAccuracy,
		},
		{
			name: "poor satisfaction",
			setup: func(st *memStore) {
				for i := 0; i < 10; i++ {
					rec := accurateRecord(string(rune('a' + i)))
					rec.UserSatisfaction = &two
					st.outcomes = append(st.outcomes, rec)
				}
			},
			wantNeeded: true,
			wantReason: core.ReasonPoorSatisfaction,
		},
		{
			name: "significant losses",
			setup: func(st *memStore) {
				for i := 0; i < 10; i++ {
					rec := accurateRecord(string(rune('a' + i)))
					rec.ActualProfit = decimal.NewFromInt(-200)
					st.outcomes = append(st.outcomes, rec)
				}
			},
			wantNeeded: true,
			wantReason: core.ReasonSignificantLosses,
		},
		{
			name: "never trained means scheduled",
			setup: func(st *memStore) {
				st.outcomes = manyAccurate()
			},
			wantNeeded: true,
			wantReason: core.ReasonScheduled,
		},
		{
			name: "stale training means scheduled",
			setup: func(st *memStore) {
				st.outcomes = manyAccurate()
				st.runs = []core.TrainingRun{{ID: "r1", Performed: true, StartedAt: now.AddDate(0, 0, -8)}}
			},
			wantNeeded: true,
			wantReason: core.ReasonScheduled,
		},
		{
			name: "recent training means no retraining",
			setup: func(st *memStore) {
				st.outcomes = manyAccurate()
				st.runs = []core.TrainingRun{{ID: "r1", Performed: true, StartedAt: now.AddDate(0, 0, -2)}}
			},
			wantNeeded: false,
			wantReason: core.ReasonNotNeeded,
		},
		{
			name: "failed runs do not count as training",
			setup: func(st *memStore) {
				st.outcomes = manyAccurate()
				st.runs = []core.TrainingRun{{ID: "r1", Performed: false, StartedAt: now.AddDate(0, 0, -1)}}
			},
			wantNeeded: true,
			wantReason: core.ReasonScheduled,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := &memStore{}
			tt.setup(st)
			orch := newTestOrchestrator(st, nil)

			needed, reason, err := orch.ShouldRetrain(context.Background(), now)
			if err != nil {
				t.Fatal(err)
			}
			if needed != tt.wantNeeded || reason != tt.wantReason {
				t.Fatalf("ShouldRetrain = (%v, %q), want (%v, %q)", needed, reason, tt.wantNeeded, tt.wantReason)
			}
		})
	}
}

type failingOptimizer struct{}

func (failingOptimizer) Train(context.Context, *core.Simulator, int) error {
	return errors.New("optimizer backend unavailable")
}
func (failingOptimizer) Predict(core.Observation) core.Action { return core.Monitor() }
func (failingOptimizer) Save(string) error                    { return nil }
func (failingOptimizer) Load(string) error                    { return nil }

func TestRunPeriodicRetraining_FailureIsCaught(t *testing.T) {
	st := &memStore{}
	for i := 0; i < 10; i++ {
		rec := completedRecord(string(rune('a'+i)), 80, 5, -500, 0.2, nil)
		st.outcomes = append(st.outcomes, rec)
	}
	orch := newTestOrchestrator(st, failingOptimizer{})

	run, err := orch.RunPeriodicRetraining(context.Background())
	if err != nil {
		t.Fatalf("optimizer failure must not surface as an error, got %v", err)
	}
	if run.Performed {
		t.Fatal("run marked performed despite failure")
	}
	if run.Error == "" {
		t.Fatal("run error not recorded")
	}
	if run.Trigger != core.ReasonPoorAccuracy {
		t.Fatalf("trigger = %q, want %q", run.Trigger, core.ReasonPoorAccuracy)
	}

	runs, _ := st.ListTrainingRuns(context.Background())
	if len(runs) != 1 {
		t.Fatalf("training runs persisted = %d, want 1", len(runs))
	}
}

func TestRunPeriodicRetraining_NotNeededSkips(t *testing.T) {
	st := &memStore{}
	orch := newTestOrchestrator(st, nil)

	run, err := orch.RunPeriodicRetraining(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if run.Performed {
		t.Fatal("retraining performed with insufficient outcomes")
	}
	if run.Trigger != core.ReasonInsufficientOutcomes {
		t.Fatalf("trigger = %q, want %q", run.Trigger, core.ReasonInsufficientOutcomes)
	}
	runs, _ := st.ListTrainingRuns(context.Background())
	if len(runs) != 0 {
		t.Fatalf("skipped evaluation persisted %d runs", len(runs))
	}
}

func TestRunPeriodicRetraining_Performs(t *testing.T) {
	st := &memStore{}
	for i := 0; i < 10; i++ {
		st.outcomes = append(st.outcomes, accurateRecord(string(rune('a'+i))))
	}
	orch := newTestOrchestrator(st, nil)

	run, err := orch.RunPeriodicRetraining(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !run.Performed {
		t.Fatalf("retraining not performed: trigger=%q err=%q", run.Trigger, run.Error)
	}
	if run.Trigger != core.ReasonScheduled {
		t.Fatalf("trigger = %q, want %q", run.Trigger, core.ReasonScheduled)
	}
	runs, _ := st.ListTrainingRuns(context.Background())
	if len(runs) != 1 {
		t.Fatalf("training runs = %d, want 1", len(runs))
	}
}

func TestTrainCurriculum_RejectsInvalidStages(t *testing.T) {
	orch := newTestOrchestrator(&memStore{}, nil)

	stages := core.DefaultCurriculum(4000)
	stages[2].MarketVolatility = 0.1 // regression against stage 1

	if err := orch.TrainCurriculum(context.Background(), stages, 4000); err == nil {
		t.Fatal("expected validation error")
	}
}
