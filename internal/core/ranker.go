package core

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Confidence labels on recommendations.
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// Scoring weights: projected ROI, model confidence, absolute profit.
const (
	weightROI        = 0.4
	weightConfidence = 0.3
	weightProfit     = 0.3
)

// Alternative is a runner-up action kept on the recommendation so the user
// sees what else was considered.
type Alternative struct {
	Action      ActionKind      `json:"action"`
	ProductName string          `json:"product_name,omitempty"`
	Quantity    int             `json:"quantity,omitempty"`
	ExpectedROI float64         `json:"expected_roi"`
	Profit      decimal.Decimal `json:"predicted_profit_usd"`
	Score       float64         `json:"score"`
	Description string          `json:"description"`
}

// Recommendation is the primary output surface: the top-scored action from a
// batch of simulated projections, with runners-up and an auditable score.
type Recommendation struct {
	ID              string          `json:"id"`
	Action          ActionKind      `json:"action"`
	ProductID       string          `json:"product_id,omitempty"`
	ProductName     string          `json:"product_name,omitempty"`
	Quantity        int             `json:"quantity,omitempty"`
	ExpectedROI     float64         `json:"expected_roi"`
	PredictedProfit decimal.Decimal `json:"predicted_profit_usd"`
	PredictedCost   decimal.Decimal `json:"predicted_cost_usd"`
	Confidence      float64         `json:"confidence"`
	ConfidenceLabel string          `json:"confidence_label"`
	Score           float64         `json:"score"`
	Reasoning       string          `json:"reasoning"`
	Alternatives    []Alternative   `json:"alternatives"`
	GeneratedAt     time.Time       `json:"generated_at"`
}

// Score combines projected ROI, confidence and capped absolute profit into
// one ranking number.
func Score(o ActionOutcome) float64 {
	profit := o.RevenueImpact - o.Cost
	return weightROI*(o.ExpectedROI/100) +
		weightConfidence*o.Confidence +
		weightProfit*math.Min(1, profit/1000)
}

// ConfidenceLabel buckets a confidence value for display.
func ConfidenceLabel(c float64) string {
	switch {
	case c >= 0.8:
		return ConfidenceHigh
	case c >= 0.6:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// Rank scores every projected outcome and returns the best as the primary
// recommendation with up to three runners-up. An empty log produces an
// explicit monitor recommendation rather than nothing.
func Rank(log []ActionOutcome, now time.Time) Recommendation {
	if len(log) == 0 {
		return Recommendation{
			ID:              uuid.NewString(),
			Action:          ActionMonitor,
			ConfidenceLabel: ConfidenceHigh,
			Confidence:      0.9,
			Reasoning:       "No action currently projects a positive return; continue monitoring.",
			GeneratedAt:     now,
		}
	}

	sorted := append([]ActionOutcome(nil), log...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return Score(sorted[i]) > Score(sorted[j])
	})

	top := sorted[0]
	profit := top.RevenueImpact - top.Cost
	rec := Recommendation{
		ID:              uuid.NewString(),
		Action:          top.Kind,
		ProductID:       top.ProductID,
		ProductName:     top.ProductName,
		Quantity:        top.Quantity,
		ExpectedROI:     top.ExpectedROI,
		PredictedProfit: decimal.NewFromFloat(profit).Round(2),
		PredictedCost:   decimal.NewFromFloat(top.Cost).Round(2),
		Confidence:      top.Confidence,
		ConfidenceLabel: ConfidenceLabel(top.Confidence),
		Score:           Score(top),
		Reasoning: fmt.Sprintf("%s: %.1f%% projected ROI at %s confidence, $%.2f expected profit.",
			top.Description, top.ExpectedROI, ConfidenceLabel(top.Confidence), profit),
		GeneratedAt: now,
	}

	limit := 3
	if len(sorted)-1 < limit {
		limit = len(sorted) - 1
	}
	for _, o := range sorted[1 : 1+limit] {
		rec.Alternatives = append(rec.Alternatives, Alternative{
			Action:      o.Kind,
			ProductName: o.ProductName,
			Quantity:    o.Quantity,
			ExpectedROI: o.ExpectedROI,
			Profit:      decimal.NewFromFloat(o.RevenueImpact - o.Cost).Round(2),
			Score:       Score(o),
			Description: o.Description,
		})
	}
	return rec
}
