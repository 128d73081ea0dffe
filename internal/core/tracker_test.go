package core_test

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"coo-agent/internal/core"
)

// memStore is an in-memory core.Store for tests.
type memStore struct {
	mu       sync.Mutex
	outcomes []core.OutcomeRecord
	rewards  []core.EnhancedReward
	tasks    []core.ApprovedTask
	feedback []core.FeedbackRequest
	runs     []core.TrainingRun
}

func (m *memStore) ListOutcomes(context.Context) ([]core.OutcomeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]core.OutcomeRecord(nil), m.outcomes...), nil
}

func (m *memStore) SaveOutcome(_ context.Context, rec core.OutcomeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.outcomes {
		if m.outcomes[i].TaskID == rec.TaskID {
			m.outcomes[i] = rec
			return nil
		}
	}
	m.outcomes = append(m.outcomes, rec)
	return nil
}

func (m *memStore) DeleteOutcomesBefore(_ context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.outcomes[:0]
	for _, rec := range m.outcomes {
		if rec.Status == core.StatusCompleted && rec.TrackingEnd.Before(cutoff) {
			continue
		}
		kept = append(kept, rec)
	}
	deleted := len(m.outcomes) - len(kept)
	m.outcomes = kept
	return deleted, nil
}

func (m *memStore) ListRewards(context.Context) ([]core.EnhancedReward, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]core.EnhancedReward(nil), m.rewards...), nil
}

func (m *memStore) AppendReward(_ context.Context, r core.EnhancedReward) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rewards = append(m.rewards, r)
	return nil
}

func (m *memStore) ListApprovedTasks(context.Context) ([]core.ApprovedTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]core.ApprovedTask(nil), m.tasks...), nil
}

func (m *memStore) AddApprovedTask(_ context.Context, t core.ApprovedTask) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks = append(m.tasks, t)
	return nil
}

func (m *memStore) ListFeedbackRequests(context.Context) ([]core.FeedbackRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]core.FeedbackRequest(nil), m.feedback...), nil
}

func (m *memStore) SaveFeedbackRequest(_ context.Context, fr core.FeedbackRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.feedback {
		if m.feedback[i].TaskID == fr.TaskID {
			m.feedback[i] = fr
			return nil
		}
	}
	m.feedback = append(m.feedback, fr)
	return nil
}

func (m *memStore) ListTrainingRuns(context.Context) ([]core.TrainingRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]core.TrainingRun(nil), m.runs...), nil
}

func (m *memStore) AppendTrainingRun(_ context.Context, tr core.TrainingRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, tr)
	return nil
}

func newTestTracker(st core.Store) *core.Tracker {
	return core.NewTracker(st, core.NewSimulatedSource(1), 30, zerolog.Nop())
}

func TestStartTracking_PayloadFallbacks(t *testing.T) {
	st := &memStore{}
	tracker := newTestTracker(st)
	now := time.Now()

	tests := []struct {
		name        string
		payload     map[string]any
		wantProduct string
		wantQty     int
	}{
		{
			name: "full payload",
			payload: map[string]any{
				"product_id":    "PROD-001",
				"product_name":  "Tech Pro Wireless Mouse",
				"quantity":      float64(100),
				"predicted_roi": 25.0,
			},
			wantProduct: "Tech Pro Wireless Mouse",
			wantQty:     100,
		},
		{
			name:        "empty payload falls back",
			payload:     map[string]any{},
			wantProduct: "Default Product",
			wantQty:     0,
		},
		{
			name:        "nil payload falls back",
			payload:     nil,
			wantProduct: "Default Product",
			wantQty:     0,
		},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := core.ApprovedTask{
				TaskID:     string(rune('a' + i)),
				Kind:       core.ActionRestock,
				ApprovedAt: now,
				Payload:    tt.payload,
			}
			rec, err := tracker.StartTracking(context.Background(), task, now)
			if err != nil {
				t.Fatal(err)
			}
			if rec.ProductName != tt.wantProduct {
				t.Fatalf("product name = %q, want %q", rec.ProductName, tt.wantProduct)
			}
			if rec.RestockQuantity != tt.wantQty {
				t.Fatalf("quantity = %d, want %d", rec.RestockQuantity, tt.wantQty)
			}
			if rec.Status != core.StatusTracking {
				t.Fatalf("status = %q, want %q", rec.Status, core.StatusTracking)
			}
			if got := rec.TrackingEnd.Sub(rec.TrackingStart); got != 30*24*time.Hour {
				t.Fatalf("tracking window = %v, want 30 days", got)
			}
		})
	}
}

func TestCheckApprovedTasks_SkipsExecutedAndTracked(t *testing.T) {
	st := &memStore{
		tasks: []core.ApprovedTask{
			{TaskID: "new", ApprovedAt: time.Now()},
			{TaskID: "done", Executed: true},
			{TaskID: "seen", ApprovedAt: time.Now()},
		},
		outcomes: []core.OutcomeRecord{
			{TaskID: "seen", Status: core.StatusTracking},
		},
	}
	tracker := newTestTracker(st)

	started, err := tracker.CheckApprovedTasks(context.Background(), time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if started != 1 {
		t.Fatalf("started = %d, want 1", started)
	}

	// Second pass finds nothing new.
	started, err = tracker.CheckApprovedTasks(context.Background(), time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if started != 0 {
		t.Fatalf("second pass started = %d, want 0", started)
	}
}

func TestCaptureOutcomes_Idempotent(t *testing.T) {
	now := time.Now()
	st := &memStore{
		outcomes: []core.OutcomeRecord{
			{
				TaskID:          "due",
				ProductName:     "Widget",
				PredictedROI:    25,
				PredictedProfit: decimal.NewFromInt(500),
				RestockQuantity: 100,
				RestockCost:     decimal.NewFromInt(2500),
				TrackingStart:   now.AddDate(0, 0, -31),
				TrackingEnd:     now.AddDate(0, 0, -1),
				Status:          core.StatusTracking,
			},
			{
				TaskID:        "not-due",
				TrackingStart: now,
				TrackingEnd:   now.AddDate(0, 0, 30),
				Status:        core.StatusTracking,
			},
		},
	}
	tracker := newTestTracker(st)

	captured, err := tracker.CaptureOutcomes(context.Background(), now)
	if err != nil {
		t.Fatal(err)
	}
	if captured != 1 {
		t.Fatalf("captured = %d, want 1", captured)
	}

	records, _ := st.ListOutcomes(context.Background())
	var done core.OutcomeRecord
	for _, rec := range records {
		if rec.TaskID == "due" {
			done = rec
		}
	}
	if done.Status != core.StatusCompleted {
		t.Fatalf("status = %q, want completed", done.Status)
	}
	if done.OutcomeCapturedAt == nil {
		t.Fatal("captured timestamp not set")
	}
	if done.SellThroughRate < 0 || done.SellThroughRate > 1 {
		t.Fatalf("sell-through %v outside [0,1]", done.SellThroughRate)
	}

	// A feedback request opens alongside the capture.
	requests, _ := st.ListFeedbackRequests(context.Background())
	if len(requests) != 1 || requests[0].TaskID != "due" {
		t.Fatalf("feedback requests = %+v, want one for task due", requests)
	}

	// Re-running captures nothing and leaves the record untouched.
	captured, err = tracker.CaptureOutcomes(context.Background(), now)
	if err != nil {
		t.Fatal(err)
	}
	if captured != 0 {
		t.Fatalf("second capture = %d, want 0", captured)
	}
}

func completedRecord(taskID string, predROI, actROI, actualProfit float64, sellThrough float64, sat *int) core.OutcomeRecord {
	now := time.Now()
	return core.OutcomeRecord{
		TaskID:           taskID,
		ProductName:      "Widget",
		PredictedROI:     predROI,
		ActualROI:        actROI,
		ActualProfit:     decimal.NewFromFloat(actualProfit),
		SellThroughRate:  sellThrough,
		UserSatisfaction: sat,
		TrackingStart:    now.AddDate(0, 0, -31),
		TrackingEnd:      now.AddDate(0, 0, -1),
		Status:           core.StatusCompleted,
	}
}

func TestGenerateRewards_Formulas(t *testing.T) {
	five := 5
	one := 1

	tests := []struct {
		name           string
		rec            core.OutcomeRecord
		wantBase       float64
		wantROIReward  float64
		wantBonus      float64
		wantPenalty    float64
		wantConfidence float64
	}{
		{
			name:           "perfect prediction, happy user",
			rec:            completedRecord("t1", 25, 25, 250, 0.8, &five),
			wantBase:       2.5,
			wantROIReward:  0.25, // (25/100) * accuracy 1.0
			wantBonus:      0.2,  // (5-3)/2 * 0.2
			wantPenalty:    0,
			wantConfidence: 1.0, // accuracy 1, sell-through tier 1, sat 1, profitable 1
		},
		{
			name:          "wild miss, unhappy user",
			rec:           completedRecord("t2", 25, 5, -100, 0.3, &one),
			wantBase:      -1,
			wantROIReward: 5.0 / 100 * 0.2, // accuracy 1-20/25
			wantBonus:     -0.2,            // (1-3)/2 * 0.2
			wantPenalty:   -0.2,            // -min(20/100, 0.5)
			// accuracy 0.2, sell-through tier 0.3, sat 0, loss 0
			wantConfidence: (0.2 + 0.3 + 0 + 0) / 4,
		},
		{
			name:          "no feedback",
			rec:           completedRecord("t3", 10, 40, 400, 0.5, nil),
			wantBase:      4,
			wantROIReward: 40.0 / 100 * 0.25, // accuracy 1-30/40
			wantBonus:     0,
			wantPenalty:   -0.3,
			// accuracy 0.25, sell-through tier 0.7, profitable 1
			wantConfidence: (0.25 + 0.7 + 1) / 3,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := &memStore{outcomes: []core.OutcomeRecord{tt.rec}}
			tracker := newTestTracker(st)

			n, err := tracker.GenerateRewards(context.Background(), time.Now())
			if err != nil {
				t.Fatal(err)
			}
			if n != 1 {
				t.Fatalf("generated = %d, want 1", n)
			}
			rewards, _ := st.ListRewards(context.Background())
			r := rewards[0]

			check := func(label string, got, want float64) {
				t.Helper()
				if math.Abs(got-want) > 1e-9 {
					t.Fatalf("%s = %v, want %v", label, got, want)
				}
			}
			check("base", r.BaseReward, tt.wantBase)
			check("roi reward", r.ActualROIReward, tt.wantROIReward)
			check("feedback bonus", r.UserFeedbackBonus, tt.wantBonus)
			check("penalty", r.AccuracyPenalty, tt.wantPenalty)
			check("total", r.TotalReward, tt.wantBase+tt.wantROIReward+tt.wantBonus+tt.wantPenalty)
			check("confidence", r.Confidence, tt.wantConfidence)
		})
	}
}

func TestGenerateRewards_OncePerTask(t *testing.T) {
	five := 5
	st := &memStore{outcomes: []core.OutcomeRecord{completedRecord("t1", 25, 25, 250, 0.8, &five)}}
	tracker := newTestTracker(st)

	for pass := 0; pass < 2; pass++ {
		if _, err := tracker.GenerateRewards(context.Background(), time.Now()); err != nil {
			t.Fatal(err)
		}
	}
	rewards, _ := st.ListRewards(context.Background())
	if len(rewards) != 1 {
		t.Fatalf("rewards = %d, want 1", len(rewards))
	}
}

func TestCollectFeedback(t *testing.T) {
	st := &memStore{
		outcomes: []core.OutcomeRecord{completedRecord("t1", 25, 25, 250, 0.8, nil)},
		feedback: []core.FeedbackRequest{{TaskID: "t1", Status: core.FeedbackPending, ExpiresAt: time.Now().Add(time.Hour)}},
	}
	tracker := newTestTracker(st)

	if err := tracker.CollectFeedback(context.Background(), "t1", "worked great", 4); err != nil {
		t.Fatal(err)
	}
	records, _ := st.ListOutcomes(context.Background())
	if records[0].UserSatisfaction == nil || *records[0].UserSatisfaction != 4 {
		t.Fatalf("satisfaction not recorded: %+v", records[0].UserSatisfaction)
	}
	requests, _ := st.ListFeedbackRequests(context.Background())
	if requests[0].Status != core.FeedbackCollected {
		t.Fatalf("request status = %q, want collected", requests[0].Status)
	}

	if err := tracker.CollectFeedback(context.Background(), "t1", "again", 9); err == nil {
		t.Fatal("expected error for out-of-range satisfaction")
	}
	if err := tracker.CollectFeedback(context.Background(), "ghost", "hi", 3); err == nil {
		t.Fatal("expected error for unknown task")
	}
}

func TestExpireFeedbackRequests(t *testing.T) {
	now := time.Now()
	st := &memStore{
		feedback: []core.FeedbackRequest{
			{TaskID: "old", Status: core.FeedbackPending, ExpiresAt: now.Add(-time.Hour)},
			{TaskID: "fresh", Status: core.FeedbackPending, ExpiresAt: now.Add(time.Hour)},
			{TaskID: "done", Status: core.FeedbackCollected, ExpiresAt: now.Add(-time.Hour)},
		},
	}
	tracker := newTestTracker(st)

	expired, err := tracker.ExpireFeedbackRequests(context.Background(), now)
	if err != nil {
		t.Fatal(err)
	}
	if expired != 1 {
		t.Fatalf("expired = %d, want 1", expired)
	}
	requests, _ := st.ListFeedbackRequests(context.Background())
	for _, fr := range requests {
		switch fr.TaskID {
		case "old":
			if fr.Status != core.FeedbackExpired {
				t.Fatalf("old request status = %q", fr.Status)
			}
		case "fresh":
			if fr.Status != core.FeedbackPending {
				t.Fatalf("fresh request status = %q", fr.Status)
			}
		case "done":
			if fr.Status != core.FeedbackCollected {
				t.Fatalf("collected request status = %q", fr.Status)
			}
		}
	}
}

func TestTrainingSummary(t *testing.T) {
	five := 5
	st := &memStore{
		outcomes: []core.OutcomeRecord{
			completedRecord("t1", 25, 25, 250, 0.8, &five),
			completedRecord("t2", 10, 40, -50, 0.5, nil),
			{TaskID: "t3", Status: core.StatusTracking},
		},
	}
	tracker := newTestTracker(st)

	s, err := tracker.TrainingSummary(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if s.CompletedCount != 2 {
		t.Fatalf("completed = %d, want 2", s.CompletedCount)
	}
	if s.ProfitableCount != 1 {
		t.Fatalf("profitable = %d, want 1", s.ProfitableCount)
	}
	if s.SatisfactionCount != 1 || s.MeanSatisfaction != 5 {
		t.Fatalf("satisfaction = %v over %d, want 5 over 1", s.MeanSatisfaction, s.SatisfactionCount)
	}
	wantProfit := decimal.NewFromInt(200)
	if !s.TotalActualProfit.Equal(wantProfit) {
		t.Fatalf("total profit = %s, want %s", s.TotalActualProfit, wantProfit)
	}
	wantAccuracy := (1.0 + 0.25) / 2
	if math.Abs(s.MeanROIAccuracy-wantAccuracy) > 1e-9 {
		t.Fatalf("mean accuracy = %v, want %v", s.MeanROIAccuracy, wantAccuracy)
	}
}

func TestCleanup(t *testing.T) {
	now := time.Now()
	old := completedRecord("old", 25, 25, 250, 0.8, nil)
	old.TrackingEnd = now.AddDate(0, 0, -120)
	fresh := completedRecord("fresh", 25, 25, 250, 0.8, nil)

	st := &memStore{outcomes: []core.OutcomeRecord{old, fresh}}
	tracker := newTestTracker(st)

	deleted, err := tracker.Cleanup(context.Background(), now, 90)
	if err != nil {
		t.Fatal(err)
	}
	if deleted != 1 {
		t.Fatalf("deleted = %d, want 1", deleted)
	}
	records, _ := st.ListOutcomes(context.Background())
	if len(records) != 1 || records[0].TaskID != "fresh" {
		t.Fatalf("remaining records = %+v", records)
	}
}
