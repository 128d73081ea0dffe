package core

import (
	"fmt"
	"math/rand"
)

// ScenarioKind enumerates the stress scenarios the generator can produce.
type ScenarioKind string

const (
	ScenarioMarketVolatility    ScenarioKind = "market_volatility"
	ScenarioSupplyDisruption    ScenarioKind = "supply_disruption"
	ScenarioDemandSurge         ScenarioKind = "demand_surge"
	ScenarioCashFlowCrisis      ScenarioKind = "cash_flow_crisis"
	ScenarioSeasonalCycle       ScenarioKind = "seasonal_cycle"
	ScenarioCompetitivePressure ScenarioKind = "competitive_pressure"
)

// Impact keys the simulator understands. Values are multipliers.
const (
	ImpactDemand   = "demand"
	ImpactLeadTime = "lead_time"
	ImpactCost     = "cost"
)

// Event is one timed disturbance inside a scenario. Day is the first
// simulated day the event is active; the simulator folds Impact multipliers
// into its demand, lead-time and cost math for Duration days.
type Event struct {
	Day         int                `json:"day"`
	Type        string             `json:"type"`
	Description string             `json:"description"`
	Impact      map[string]float64 `json:"impact"`
	Duration    int                `json:"duration_days"`
	Severity    float64            `json:"severity"`
}

// Scenario is a named training situation: a timeline of events plus the
// metrics a competent policy should hold under it.
type Scenario struct {
	Name          string             `json:"name"`
	Description   string             `json:"description"`
	Kind          ScenarioKind       `json:"kind"`
	DurationDays  int                `json:"duration_days"`
	Events        []Event            `json:"events"`
	TargetMetrics map[string]float64 `json:"target_metrics"`
	Difficulty    float64            `json:"difficulty"`
	Objectives    []string           `json:"objectives"`
}

// Generator produces training scenarios parameterized by difficulty.
// Difficulty scales event severity and gates the harsher events in.
type Generator struct {
	rng *rand.Rand
}

// NewGenerator returns a generator with a deterministic event layout for a
// given seed.
func NewGenerator(seed int64) *Generator {
	return &Generator{rng: rand.New(rand.NewSource(seed))}
}

// Generate builds one scenario of the given kind at difficulty d in [0,1].
func (g *Generator) Generate(kind ScenarioKind, d float64) Scenario {
	d = clampFloat(d, 0, 1)
	switch kind {
	case ScenarioMarketVolatility:
		return g.marketVolatility(d)
	case ScenarioSupplyDisruption:
		return g.supplyDisruption(d)
	case ScenarioDemandSurge:
		return g.demandSurge(d)
	case ScenarioCashFlowCrisis:
		return g.cashFlowCrisis(d)
	case ScenarioSeasonalCycle:
		return g.seasonalCycle(d)
	case ScenarioCompetitivePressure:
		return g.competitivePressure(d)
	}
	return g.marketVolatility(d)
}

// ScenarioSet produces n scenarios with difficulties spread linearly over
// [0.2, 0.9]. When balanced, kinds rotate round-robin; otherwise kinds are
// drawn at random.
func (g *Generator) ScenarioSet(n int, balanced bool) []Scenario {
	kinds := []ScenarioKind{
		ScenarioMarketVolatility,
		ScenarioSupplyDisruption,
		ScenarioDemandSurge,
		ScenarioCashFlowCrisis,
		ScenarioSeasonalCycle,
		ScenarioCompetitivePressure,
	}
	out := make([]Scenario, 0, n)
	for i := 0; i < n; i++ {
		d := 0.2
		if n > 1 {
			d = 0.2 + 0.7*float64(i)/float64(n-1)
		}
		kind := kinds[i%len(kinds)]
		if !balanced {
			kind = kinds[g.rng.Intn(len(kinds))]
		}
		out = append(out, g.Generate(kind, d))
	}
	return out
}

func (g *Generator) marketVolatility(d float64) Scenario {
	events := []Event{
		{
			Day:         5,
			Type:        "market_shift",
			Description: "Consumer confidence dips sharply",
			Impact:      map[string]float64{ImpactDemand: 1 - 0.3*d},
			Duration:    10,
			Severity:    d,
		},
		{
			Day:         25,
			Type:        "market_rebound",
			Description: "Pent-up demand returns",
			Impact:      map[string]float64{ImpactDemand: 1 + 0.4*d},
			Duration:    8,
			Severity:    d,
		},
	}
	if d > 0.6 {
		events = append(events, Event{
			Day:         45,
			Type:        "flash_crash",
			Description: "Sector-wide selloff cuts discretionary spending",
			Impact:      map[string]float64{ImpactDemand: 0.5},
			Duration:    5,
			Severity:    d,
		})
	}
	return Scenario{
		Name:         fmt.Sprintf("Market Volatility (%.0f%%)", d*100),
		Description:  "Demand swings on shifting market sentiment",
		Kind:         ScenarioMarketVolatility,
		DurationDays: 60,
		Events:       events,
		TargetMetrics: map[string]float64{
			"min_customer_satisfaction": 0.6,
			"min_cash_flow":             0,
		},
		Difficulty: d,
		Objectives: []string{"Hold satisfaction through demand swings", "Avoid overstock on the dip"},
	}
}

func (g *Generator) supplyDisruption(d float64) Scenario {
	events := []Event{
		{
			Day:         8,
			Type:        "supplier_warning",
			Description: "Key supplier flags capacity problems",
			Impact:      map[string]float64{ImpactLeadTime: 1 + 0.5*d},
			Duration:    7,
			Severity:    d * 0.5,
		},
		{
			Day:         15,
			Type:        "supply_halt",
			Description: "Shipments delayed at origin",
			Impact:      map[string]float64{ImpactLeadTime: 1 + 1.5*d, ImpactCost: 1 + 0.2*d},
			Duration:    14,
			Severity:    d,
		},
		{
			Day:         29,
			Type:        "recovery",
			Description: "Alternate supplier onboarded, lead times normalize",
			Impact:      map[string]float64{ImpactLeadTime: 1 + 0.3*d},
			Duration:    10,
			Severity:    d * 0.3,
		},
	}
	return Scenario{
		Name:         fmt.Sprintf("Supply Disruption (%.0f%%)", d*100),
		Description:  "Lead times stretch through a supplier outage",
		Kind:         ScenarioSupplyDisruption,
		DurationDays: 45,
		Events:       events,
		TargetMetrics: map[string]float64{
			"max_stockout_days": 10 - 5*d,
		},
		Difficulty: d,
		Objectives: []string{"Pre-position inventory before the halt", "Keep stockout days down"},
	}
}

func (g *Generator) demandSurge(d float64) Scenario {
	events := []Event{
		{
			Day:         10,
			Type:        "viral_moment",
			Description: "Product featured by a major channel",
			Impact:      map[string]float64{ImpactDemand: 1 + 1.2*d},
			Duration:    12,
			Severity:    d,
		},
		{
			Day:         22,
			Type:        "surge_decay",
			Description: "Attention fades, demand settles above baseline",
			Impact:      map[string]float64{ImpactDemand: 1 + 0.3*d},
			Duration:    15,
			Severity:    d * 0.4,
		},
	}
	return Scenario{
		Name:         fmt.Sprintf("Demand Surge (%.0f%%)", d*100),
		Description:  "A sudden demand spike tests restock timing",
		Kind:         ScenarioDemandSurge,
		DurationDays: 45,
		Events:       events,
		TargetMetrics: map[string]float64{
			"min_fulfillment_rate": 0.85 - 0.2*d,
		},
		Difficulty: d,
		Objectives: []string{"Capture the surge without stocking out", "Unwind excess stock after decay"},
	}
}

func (g *Generator) cashFlowCrisis(d float64) Scenario {
	events := []Event{
		{
			Day:         5,
			Type:        "payment_delays",
			Description: "Large customers stretch payment terms",
			Impact:      map[string]float64{ImpactDemand: 1 - 0.1*d},
			Duration:    20,
			Severity:    d * 0.6,
		},
		{
			Day:         12,
			Type:        "cost_spike",
			Description: "Input costs jump on currency moves",
			Impact:      map[string]float64{ImpactCost: 1 + 0.4*d},
			Duration:    18,
			Severity:    d,
		},
	}
	if d > 0.5 {
		events = append(events, Event{
			Day:         20,
			Type:        "credit_tightening",
			Description: "Supplier credit line cut, upfront payment required",
			Impact:      map[string]float64{ImpactCost: 1.15},
			Duration:    15,
			Severity:    d,
		})
	}
	return Scenario{
		Name:         fmt.Sprintf("Cash Flow Crisis (%.0f%%)", d*100),
		Description:  "Working capital tightens from both directions",
		Kind:         ScenarioCashFlowCrisis,
		DurationDays: 40,
		Events:       events,
		TargetMetrics: map[string]float64{
			"min_cash_flow": -10000 * d,
		},
		Difficulty: d,
		Objectives: []string{"Stay above the bankruptcy floor", "Prioritize high-margin restocks"},
	}
}

func (g *Generator) seasonalCycle(d float64) Scenario {
	return Scenario{
		Name:         fmt.Sprintf("Seasonal Cycle (%.0f%%)", d*100),
		Description:  "A full season transition with shoulder-period softness",
		Kind:         ScenarioSeasonalCycle,
		DurationDays: 90,
		Events: []Event{
			{
				Day:         20,
				Type:        "season_shoulder",
				Description: "Between-season lull",
				Impact:      map[string]float64{ImpactDemand: 1 - 0.25*d},
				Duration:    15,
				Severity:    d * 0.5,
			},
			{
				Day:         50,
				Type:        "season_peak",
				Description: "Peak-season demand arrives",
				Impact:      map[string]float64{ImpactDemand: 1 + 0.6*d},
				Duration:    20,
				Severity:    d,
			},
		},
		TargetMetrics: map[string]float64{
			"min_inventory_turnover": 0.5,
		},
		Difficulty: d,
		Objectives: []string{"Run lean through the lull", "Build stock ahead of the peak"},
	}
}

func (g *Generator) competitivePressure(d float64) Scenario {
	events := []Event{
		{
			Day:         7,
			Type:        "competitor_entry",
			Description: "Discount competitor enters the category",
			Impact:      map[string]float64{ImpactDemand: 1 - 0.35*d},
			Duration:    25,
			Severity:    d,
		},
		{
			Day:         32,
			Type:        "differentiation",
			Description: "Brand positioning recovers share",
			Impact:      map[string]float64{ImpactDemand: 1 - 0.1*d},
			Duration:    15,
			Severity:    d * 0.4,
		},
	}
	return Scenario{
		Name:         fmt.Sprintf("Competitive Pressure (%.0f%%)", d*100),
		Description:  "A price-led competitor erodes baseline demand",
		Kind:         ScenarioCompetitivePressure,
		DurationDays: 50,
		Events:       events,
		TargetMetrics: map[string]float64{
			"min_total_profit": -2000 * d,
		},
		Difficulty: d,
		Objectives: []string{"Defend margin instead of chasing price", "Trim slow stock early"},
	}
}
