package core

import (
	"context"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"
)

// Outcome record lifecycle. Records only move forward.
const (
	StatusTracking  = "tracking"
	StatusCompleted = "completed"
)

// Feedback request lifecycle.
const (
	FeedbackPending   = "pending"
	FeedbackCollected = "collected"
	FeedbackExpired   = "expired"
)

// FeedbackWindow is how long a feedback request stays open.
const FeedbackWindow = 48 * time.Hour

// ApprovedTask is a recommendation the user approved for execution. Payload
// carries the recommendation details as loosely-typed JSON; the tracker reads
// it defensively since upstream producers vary.
type ApprovedTask struct {
	TaskID           string         `json:"task_id"`
	RecommendationID string         `json:"recommendation_id"`
	Kind             ActionKind     `json:"kind"`
	ApprovedAt       time.Time      `json:"approved_at"`
	Executed         bool           `json:"executed"`
	Payload          map[string]any `json:"payload"`
}

// OutcomeRecord tracks one approved action from prediction through measured
// reality. Monetary fields are decimals since they feed financial reporting.
type OutcomeRecord struct {
	TaskID           string          `json:"task_id"`
	RecommendationID string          `json:"recommendation_id"`
	ApprovedAt       time.Time       `json:"approved_at"`
	ProductID        string          `json:"product_id"`
	ProductName      string          `json:"product_name"`
	PredictedROI     float64         `json:"predicted_roi"`
	PredictedProfit  decimal.Decimal `json:"predicted_profit"`
	RestockQuantity  int             `json:"restock_quantity"`
	RestockCost      decimal.Decimal `json:"restock_cost"`

	ActualSalesBefore float64         `json:"actual_sales_before"`
	ActualSalesAfter  float64         `json:"actual_sales_after"`
	ActualCost        decimal.Decimal `json:"actual_cost"`
	ActualProfit      decimal.Decimal `json:"actual_profit"`
	ActualROI         float64         `json:"actual_roi"`
	SellThroughRate   float64         `json:"sell_through_rate"`

	TrackingStart     time.Time  `json:"tracking_start"`
	TrackingEnd       time.Time  `json:"tracking_end"`
	OutcomeCapturedAt *time.Time `json:"outcome_captured_at,omitempty"`

	UserFeedback        string     `json:"user_feedback,omitempty"`
	UserSatisfaction    *int       `json:"user_satisfaction,omitempty"` // 1..5
	FeedbackCollectedAt *time.Time `json:"feedback_collected_at,omitempty"`

	Status string `json:"status"`
}

// EnhancedReward is the reconciled training signal derived from one completed
// outcome. Append-only; one per task.
type EnhancedReward struct {
	TaskID            string    `json:"task_id"`
	BaseReward        float64   `json:"base_reward"`
	ActualROIReward   float64   `json:"actual_roi_reward"`
	UserFeedbackBonus float64   `json:"user_feedback_bonus"`
	AccuracyPenalty   float64   `json:"accuracy_penalty"`
	TotalReward       float64   `json:"total_reward"`
	Confidence        float64   `json:"confidence"`
	CreatedAt         time.Time `json:"created_at"`
}

// FeedbackRequest asks the user to rate a completed action. Expires after
// FeedbackWindow if unanswered.
type FeedbackRequest struct {
	TaskID      string    `json:"task_id"`
	ProductName string    `json:"product_name"`
	RequestedAt time.Time `json:"requested_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	Status      string    `json:"status"`
}

// TrainingRun records one retraining attempt, successful or not.
type TrainingRun struct {
	ID                string          `json:"id"`
	Trigger           string          `json:"trigger"`
	StartedAt         time.Time       `json:"started_at"`
	Duration          time.Duration   `json:"duration"`
	Timesteps         int             `json:"timesteps"`
	MeanReward        float64         `json:"mean_reward"`
	MeanActualROI     float64         `json:"mean_actual_roi"`
	ROIAccuracy       float64         `json:"roi_accuracy"`
	MeanSatisfaction  float64         `json:"mean_satisfaction"`
	TotalActualProfit decimal.Decimal `json:"total_actual_profit"`
	Performed         bool            `json:"performed"`
	Error             string          `json:"error,omitempty"`
}

// Actuals is what an outcome source measured for one tracked action over its
// window.
type Actuals struct {
	SalesBefore float64
	SalesAfter  float64
	UnitsSold   int
	Cost        decimal.Decimal
	Revenue     decimal.Decimal
}

// OutcomeSource measures what actually happened after an action executed.
// Production deployments back this with the accounting or e-commerce system;
// SimulatedSource stands in everywhere else.
type OutcomeSource interface {
	Capture(ctx context.Context, rec OutcomeRecord) (Actuals, error)
}

// SimulatedSource fabricates plausible actuals: realized performance hovers
// around 70% of the prediction with ±15% noise, clamped to [0.2, 1.0].
type SimulatedSource struct {
	rng *rand.Rand
}

// NewSimulatedSource returns a deterministic source for the given seed.
func NewSimulatedSource(seed int64) *SimulatedSource {
	return &SimulatedSource{rng: rand.New(rand.NewSource(seed))}
}

func (s *SimulatedSource) Capture(_ context.Context, rec OutcomeRecord) (Actuals, error) {
	accuracy := clampFloat(0.7+s.rng.NormFloat64()*0.15, 0.2, 1.0)

	units := int(float64(rec.RestockQuantity)*accuracy + 0.5)
	projRevenue := rec.RestockCost.Add(rec.PredictedProfit)
	revenue := projRevenue.Mul(decimal.NewFromFloat(accuracy))

	var before float64
	if rec.RestockQuantity > 0 {
		before = float64(rec.RestockQuantity) / 30
	}
	return Actuals{
		SalesBefore: before,
		SalesAfter:  before * (0.8 + 0.4*accuracy),
		UnitsSold:   units,
		Cost:        rec.RestockCost,
		Revenue:     revenue,
	}, nil
}
