package core

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// DefaultTrackingDays is the measurement window for a tracked action.
const DefaultTrackingDays = 30

// RetentionDays is how long completed outcome records are kept.
const RetentionDays = 90

// Store is the persistence surface the tracker and orchestrator need.
// Implemented by store.FileStore and store.PGStore.
type Store interface {
	ListOutcomes(ctx context.Context) ([]OutcomeRecord, error)
	SaveOutcome(ctx context.Context, rec OutcomeRecord) error
	DeleteOutcomesBefore(ctx context.Context, cutoff time.Time) (int, error)

	ListRewards(ctx context.Context) ([]EnhancedReward, error)
	AppendReward(ctx context.Context, r EnhancedReward) error

	ListApprovedTasks(ctx context.Context) ([]ApprovedTask, error)

	ListFeedbackRequests(ctx context.Context) ([]FeedbackRequest, error)
	SaveFeedbackRequest(ctx context.Context, fr FeedbackRequest) error

	ListTrainingRuns(ctx context.Context) ([]TrainingRun, error)
	AppendTrainingRun(ctx context.Context, tr TrainingRun) error
}

// TrainingSummary aggregates completed outcomes for retraining decisions.
type TrainingSummary struct {
	CompletedCount    int             `json:"completed_count"`
	MeanROIAccuracy   float64         `json:"mean_roi_accuracy"`
	MeanActualROI     float64         `json:"mean_actual_roi"`
	MeanSatisfaction  float64         `json:"mean_satisfaction"`
	SatisfactionCount int             `json:"satisfaction_count"`
	ProfitableCount   int             `json:"profitable_count"`
	TotalActualProfit decimal.Decimal `json:"total_actual_profit"`
}

// Tracker reconciles approved recommendations with measured reality. It
// ingests approvals, captures actuals once the tracking window closes, and
// converts completed outcomes into enhanced rewards.
type Tracker struct {
	store        Store
	source       OutcomeSource
	trackingDays int
	log          zerolog.Logger
}

// NewTracker wires a tracker over the given store and outcome source.
// trackingDays <= 0 selects the 30-day default.
func NewTracker(store Store, source OutcomeSource, trackingDays int, log zerolog.Logger) *Tracker {
	if trackingDays <= 0 {
		trackingDays = DefaultTrackingDays
	}
	return &Tracker{store: store, source: source, trackingDays: trackingDays, log: log}
}

// StartTracking opens an outcome record for an approved task. Approval
// payloads come from outside the system, so missing fields degrade to
// defaults instead of failing the ingest.
func (t *Tracker) StartTracking(ctx context.Context, task ApprovedTask, now time.Time) (OutcomeRecord, error) {
	rec := OutcomeRecord{
		TaskID:           task.TaskID,
		RecommendationID: task.RecommendationID,
		ApprovedAt:       task.ApprovedAt,
		ProductID:        payloadString(task.Payload, "product_id", ""),
		ProductName:      payloadString(task.Payload, "product_name", "Default Product"),
		PredictedROI:     payloadFloat(task.Payload, "predicted_roi"),
		PredictedProfit:  decimal.NewFromFloat(payloadFloat(task.Payload, "predicted_profit")),
		RestockQuantity:  int(payloadFloat(task.Payload, "quantity")),
		RestockCost:      decimal.NewFromFloat(payloadFloat(task.Payload, "restock_cost")),
		TrackingStart:    now,
		TrackingEnd:      now.AddDate(0, 0, t.trackingDays),
		Status:           StatusTracking,
	}
	if err := t.store.SaveOutcome(ctx, rec); err != nil {
		return OutcomeRecord{}, fmt.Errorf("start tracking %s: %w", task.TaskID, err)
	}
	t.log.Info().
		Str("task_id", rec.TaskID).
		Str("product", rec.ProductName).
		Time("tracking_end", rec.TrackingEnd).
		Msg("outcome tracking started")
	return rec, nil
}

// CheckApprovedTasks ingests approved, not-yet-executed tasks that are not
// already tracked. Returns how many new records it opened.
func (t *Tracker) CheckApprovedTasks(ctx context.Context, now time.Time) (int, error) {
	tasks, err := t.store.ListApprovedTasks(ctx)
	if err != nil {
		return 0, fmt.Errorf("check approved tasks: %w", err)
	}
	existing, err := t.store.ListOutcomes(ctx)
	if err != nil {
		return 0, fmt.Errorf("check approved tasks: %w", err)
	}
	tracked := make(map[string]bool, len(existing))
	for _, rec := range existing {
		tracked[rec.TaskID] = true
	}

	var started int
	for _, task := range tasks {
		if task.Executed || tracked[task.TaskID] {
			continue
		}
		if _, err := t.StartTracking(ctx, task, now); err != nil {
			return started, err
		}
		started++
	}
	return started, nil
}

// CaptureOutcomes completes every tracking record whose window has closed,
// filling actuals from the outcome source. Completed records are never
// recaptured, so the call is idempotent.
func (t *Tracker) CaptureOutcomes(ctx context.Context, now time.Time) (int, error) {
	records, err := t.store.ListOutcomes(ctx)
	if err != nil {
		return 0, fmt.Errorf("capture outcomes: %w", err)
	}

	var captured int
	for _, rec := range records {
		if rec.Status != StatusTracking || now.Before(rec.TrackingEnd) {
			continue
		}
		actuals, err := t.source.Capture(ctx, rec)
		if err != nil {
			return captured, fmt.Errorf("capture outcomes: task %s: %w", rec.TaskID, err)
		}

		rec.ActualSalesBefore = actuals.SalesBefore
		rec.ActualSalesAfter = actuals.SalesAfter
		rec.ActualCost = actuals.Cost
		rec.ActualProfit = actuals.Revenue.Sub(actuals.Cost)
		if cost, _ := actuals.Cost.Float64(); cost > 0 {
			profit, _ := rec.ActualProfit.Float64()
			rec.ActualROI = profit / cost * 100
		}
		if rec.RestockQuantity > 0 {
			rec.SellThroughRate = clampFloat(float64(actuals.UnitsSold)/float64(rec.RestockQuantity), 0, 1)
		}
		capturedAt := now
		rec.OutcomeCapturedAt = &capturedAt
		rec.Status = StatusCompleted

		if err := t.store.SaveOutcome(ctx, rec); err != nil {
			return captured, fmt.Errorf("capture outcomes: task %s: %w", rec.TaskID, err)
		}
		if err := t.requestFeedback(ctx, rec, now); err != nil {
			return captured, err
		}
		captured++
		t.log.Info().
			Str("task_id", rec.TaskID).
			Float64("actual_roi", rec.ActualROI).
			Float64("predicted_roi", rec.PredictedROI).
			Msg("outcome captured")
	}
	return captured, nil
}

func (t *Tracker) requestFeedback(ctx context.Context, rec OutcomeRecord, now time.Time) error {
	fr := FeedbackRequest{
		TaskID:      rec.TaskID,
		ProductName: rec.ProductName,
		RequestedAt: now,
		ExpiresAt:   now.Add(FeedbackWindow),
		Status:      FeedbackPending,
	}
	if err := t.store.SaveFeedbackRequest(ctx, fr); err != nil {
		return fmt.Errorf("request feedback for %s: %w", rec.TaskID, err)
	}
	return nil
}

// CollectFeedback attaches user feedback to a tracked task. Accepted at any
// point in the record's life; satisfaction must be 1..5.
func (t *Tracker) CollectFeedback(ctx context.Context, taskID, feedback string, satisfaction int) error {
	if satisfaction < 1 || satisfaction > 5 {
		return fmt.Errorf("collect feedback: satisfaction %d out of 1..5", satisfaction)
	}
	records, err := t.store.ListOutcomes(ctx)
	if err != nil {
		return fmt.Errorf("collect feedback: %w", err)
	}
	for _, rec := range records {
		if rec.TaskID != taskID {
			continue
		}
		now := time.Now()
		rec.UserFeedback = feedback
		rec.UserSatisfaction = &satisfaction
		rec.FeedbackCollectedAt = &now
		if err := t.store.SaveOutcome(ctx, rec); err != nil {
			return fmt.Errorf("collect feedback: %w", err)
		}
		return t.closeFeedbackRequest(ctx, taskID)
	}
	return fmt.Errorf("collect feedback: no tracked task %q", taskID)
}

func (t *Tracker) closeFeedbackRequest(ctx context.Context, taskID string) error {
	requests, err := t.store.ListFeedbackRequests(ctx)
	if err != nil {
		return fmt.Errorf("close feedback request: %w", err)
	}
	for _, fr := range requests {
		if fr.TaskID == taskID && fr.Status == FeedbackPending {
			fr.Status = FeedbackCollected
			if err := t.store.SaveFeedbackRequest(ctx, fr); err != nil {
				return fmt.Errorf("close feedback request: %w", err)
			}
		}
	}
	return nil
}

// ExpireFeedbackRequests marks pending requests past their deadline expired.
func (t *Tracker) ExpireFeedbackRequests(ctx context.Context, now time.Time) (int, error) {
	requests, err := t.store.ListFeedbackRequests(ctx)
	if err != nil {
		return 0, fmt.Errorf("expire feedback requests: %w", err)
	}
	var expired int
	for _, fr := range requests {
		if fr.Status != FeedbackPending || now.Before(fr.ExpiresAt) {
			continue
		}
		fr.Status = FeedbackExpired
		if err := t.store.SaveFeedbackRequest(ctx, fr); err != nil {
			return expired, fmt.Errorf("expire feedback requests: %w", err)
		}
		expired++
	}
	return expired, nil
}

// GenerateRewards creates one enhanced reward per completed outcome that
// lacks one. Reward components follow the reconciliation formulas; the
// penalty term caps so one wild prediction cannot dominate the signal.
func (t *Tracker) GenerateRewards(ctx context.Context, now time.Time) (int, error) {
	records, err := t.store.ListOutcomes(ctx)
	if err != nil {
		return 0, fmt.Errorf("generate rewards: %w", err)
	}
	rewards, err := t.store.ListRewards(ctx)
	if err != nil {
		return 0, fmt.Errorf("generate rewards: %w", err)
	}
	rewarded := make(map[string]bool, len(rewards))
	for _, r := range rewards {
		rewarded[r.TaskID] = true
	}

	var generated int
	for _, rec := range records {
		if rec.Status != StatusCompleted || rewarded[rec.TaskID] {
			continue
		}
		reward := buildReward(rec, now)
		if err := t.store.AppendReward(ctx, reward); err != nil {
			return generated, fmt.Errorf("generate rewards: task %s: %w", rec.TaskID, err)
		}
		generated++
		t.log.Info().
			Str("task_id", rec.TaskID).
			Float64("total_reward", reward.TotalReward).
			Float64("confidence", reward.Confidence).
			Msg("enhanced reward generated")
	}
	return generated, nil
}

func buildReward(rec OutcomeRecord, now time.Time) EnhancedReward {
	actualProfit, _ := rec.ActualProfit.Float64()
	base := actualProfit / 100

	accuracy := roiAccuracy(rec.PredictedROI, rec.ActualROI)
	roiReward := rec.ActualROI / 100 * accuracy

	var feedbackBonus float64
	if rec.UserSatisfaction != nil {
		feedbackBonus = (float64(*rec.UserSatisfaction) - 3) / 2 * 0.2
	}
	penalty := -math.Min(math.Abs(rec.PredictedROI-rec.ActualROI)/100, 0.5)

	return EnhancedReward{
		TaskID:            rec.TaskID,
		BaseReward:        base,
		ActualROIReward:   roiReward,
		UserFeedbackBonus: feedbackBonus,
		AccuracyPenalty:   penalty,
		TotalReward:       base + roiReward + feedbackBonus + penalty,
		Confidence:        rewardConfidence(rec, accuracy, actualProfit),
		CreatedAt:         now,
	}
}

// roiAccuracy is 1 at a perfect prediction, decaying with relative error.
// The 10-point denominator floor keeps tiny ROIs from zeroing the score.
func roiAccuracy(predicted, actual float64) float64 {
	denom := math.Max(math.Max(math.Abs(predicted), math.Abs(actual)), 10)
	return math.Max(0, 1-math.Abs(predicted-actual)/denom)
}

func rewardConfidence(rec OutcomeRecord, accuracy, actualProfit float64) float64 {
	factors := []float64{accuracy}

	switch {
	case rec.SellThroughRate >= 0.7:
		factors = append(factors, 1.0)
	case rec.SellThroughRate >= 0.4:
		factors = append(factors, 0.7)
	default:
		factors = append(factors, 0.3)
	}

	if rec.UserSatisfaction != nil {
		factors = append(factors, (float64(*rec.UserSatisfaction)-1)/4)
	}

	switch {
	case actualProfit > 0:
		factors = append(factors, 1.0)
	case actualProfit == 0:
		factors = append(factors, 0.5)
	default:
		factors = append(factors, 0.0)
	}

	var sum float64
	for _, f := range factors {
		sum += f
	}
	return sum / float64(len(factors))
}

// TrainingSummary aggregates completed outcomes for the orchestrator.
func (t *Tracker) TrainingSummary(ctx context.Context) (TrainingSummary, error) {
	records, err := t.store.ListOutcomes(ctx)
	if err != nil {
		return TrainingSummary{}, fmt.Errorf("training summary: %w", err)
	}

	var s TrainingSummary
	var accuracySum, roiSum, satSum float64
	for _, rec := range records {
		if rec.Status != StatusCompleted {
			continue
		}
		s.CompletedCount++
		accuracySum += roiAccuracy(rec.PredictedROI, rec.ActualROI)
		roiSum += rec.ActualROI
		if rec.UserSatisfaction != nil {
			satSum += float64(*rec.UserSatisfaction)
			s.SatisfactionCount++
		}
		if rec.ActualProfit.IsPositive() {
			s.ProfitableCount++
		}
		s.TotalActualProfit = s.TotalActualProfit.Add(rec.ActualProfit)
	}
	if s.CompletedCount > 0 {
		s.MeanROIAccuracy = accuracySum / float64(s.CompletedCount)
		s.MeanActualROI = roiSum / float64(s.CompletedCount)
	}
	if s.SatisfactionCount > 0 {
		s.MeanSatisfaction = satSum / float64(s.SatisfactionCount)
	}
	return s, nil
}

// RewardLookup shapes the stored rewards for blended simulation, keyed by
// task id.
func (t *Tracker) RewardLookup(ctx context.Context) (map[string]RewardSignal, error) {
	rewards, err := t.store.ListRewards(ctx)
	if err != nil {
		return nil, fmt.Errorf("reward lookup: %w", err)
	}
	lookup := make(map[string]RewardSignal, len(rewards))
	for _, r := range rewards {
		lookup[r.TaskID] = RewardSignal{Total: r.TotalReward, Confidence: r.Confidence}
	}
	return lookup, nil
}

// Cleanup drops completed records older than keepDays.
func (t *Tracker) Cleanup(ctx context.Context, now time.Time, keepDays int) (int, error) {
	n, err := t.store.DeleteOutcomesBefore(ctx, now.AddDate(0, 0, -keepDays))
	if err != nil {
		return 0, fmt.Errorf("cleanup outcomes: %w", err)
	}
	if n > 0 {
		t.log.Info().Int("deleted", n).Int("keep_days", keepDays).Msg("outcome retention cleanup")
	}
	return n, nil
}

func payloadString(payload map[string]any, key, fallback string) string {
	if v, ok := payload[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

func payloadFloat(payload map[string]any, key string) float64 {
	switch v := payload[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case json.Number:
		f, _ := v.Float64()
		return f
	}
	return 0
}
