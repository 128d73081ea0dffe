package core

// DailyResults summarizes one simulated day of operations.
type DailyResults struct {
	Revenue         float64
	Costs           float64
	Profit          float64
	UnitsSold       int
	Stockouts       int
	FulfillmentRate float64
}

// RewardStrategy computes the per-step learning signal. The simulator calls
// it after daily operations settle; actionID identifies the step's action in
// the episode log so blended strategies can look up reconciled real-world
// rewards.
type RewardStrategy interface {
	Reward(state *BusinessState, catalog []Product, daily DailyResults, restockCosts float64, actionID string) float64
}

// SimulatedOnly scores a step purely from simulated business metrics: daily
// profit, revenue efficiency against inventory value, customer satisfaction,
// cash health, turnover speed, and inventory excess/stockout penalties.
type SimulatedOnly struct{}

func (SimulatedOnly) Reward(state *BusinessState, catalog []Product, daily DailyResults, restockCosts float64, _ string) float64 {
	profitReward := daily.Profit / 1000

	var revenueEfficiency float64
	if v := state.InventoryValue(catalog); v > 0 {
		revenueEfficiency = daily.Revenue / v
	}

	var inventoryPenalty float64
	for i := range catalog {
		if state.Inventory[i] > 300 {
			inventoryPenalty += float64(state.Inventory[i]-300) * 0.1
		}
		if state.Inventory[i] == 0 {
			inventoryPenalty += 50
		}
	}

	satisfactionBonus := (state.CustomerSat - 0.5) * 100

	var cashReward float64
	switch {
	case state.CashFlow > 10000:
		cashReward = 10
	case state.CashFlow < 0:
		cashReward = -50
	}

	var turnoverBonus float64
	for i := range catalog {
		if state.DaysSinceRestock[i] < 20 {
			turnoverBonus += 5
		}
	}

	return profitReward +
		revenueEfficiency*50 +
		satisfactionBonus +
		cashReward +
		turnoverBonus -
		inventoryPenalty -
		restockCosts/1000
}

// RewardSignal is the reconciled real-world reward for one tracked action.
type RewardSignal struct {
	Total      float64
	Confidence float64
}

// BlendedWithOutcomes wraps a base strategy and, for steps whose action has a
// reconciled outcome, mixes the real reward in at a fixed blend factor
// (weighted by the outcome's confidence). Steps without real data fall
// through to the base strategy unchanged.
type BlendedWithOutcomes struct {
	Base        RewardStrategy
	BlendFactor float64 // fraction of the signal taken from real outcomes
	Lookup      map[string]RewardSignal
}

// NewBlendedWithOutcomes builds the blended strategy at the canonical
// 30% real / 70% simulated split.
func NewBlendedWithOutcomes(lookup map[string]RewardSignal) *BlendedWithOutcomes {
	return &BlendedWithOutcomes{Base: SimulatedOnly{}, BlendFactor: 0.3, Lookup: lookup}
}

func (b *BlendedWithOutcomes) Reward(state *BusinessState, catalog []Product, daily DailyResults, restockCosts float64, actionID string) float64 {
	base := b.Base.Reward(state, catalog, daily, restockCosts, actionID)
	signal, ok := b.Lookup[actionID]
	if !ok {
		return base
	}
	real := signal.Total * signal.Confidence
	return (1-b.BlendFactor)*base + b.BlendFactor*real
}
