package core_test

import (
	"math"
	"testing"

	"coo-agent/internal/core"
)

func flatState(inventory []int, cash, sat float64) *core.BusinessState {
	n := len(inventory)
	s := &core.BusinessState{
		Inventory:        inventory,
		DaysSinceRestock: make([]int, n),
		Pending:          make([][]core.PendingOrder, n),
		DemandTrend:      make([]float64, n),
		StockoutDays:     make([]int, n),
		CashFlow:         cash,
		CustomerSat:      sat,
	}
	for i := range s.DemandTrend {
		s.DemandTrend[i] = 1
	}
	return s
}

func TestSimulatedOnly_Components(t *testing.T) {
	catalog := core.DefaultCatalog()

	tests := []struct {
		name        string
		state       *core.BusinessState
		daily       core.DailyResults
		restockCost float64
		want        float64
	}{
		{
			name:  "neutral day",
			state: flatState([]int{100, 100, 100, 100, 100}, 5000, 0.5),
			daily: core.DailyResults{},
			// satisfaction bonus 0, cash 0, turnover +5 for each of 5
			// products with days-since-restock 0
			want: 25,
		},
		{
			name:        "profit and cash bonus",
			state:       flatState([]int{100, 100, 100, 100, 100}, 15000, 0.5),
			daily:       core.DailyResults{Profit: 2000},
			restockCost: 1000,
			// profit 2 + cash 10 + turnover 25 - restock 1
			want: 36,
		},
		{
			name:  "negative cash penalty",
			state: flatState([]int{100, 100, 100, 100, 100}, -500, 0.5),
			daily: core.DailyResults{},
			want:  -50 + 25,
		},
		{
			name:  "zero inventory penalty",
			state: flatState([]int{0, 100, 100, 100, 100}, 5000, 0.5),
			daily: core.DailyResults{},
			want:  25 - 50,
		},
		{
			name:  "overstock penalty",
			state: flatState([]int{400, 100, 100, 100, 100}, 5000, 0.5),
			daily: core.DailyResults{},
			// (400-300)*0.1 = 10 penalty
			want: 25 - 10,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := core.SimulatedOnly{}.Reward(tt.state, catalog, tt.daily, tt.restockCost, "")
			if math.Abs(got-tt.want) > 1e-9 {
				t.Fatalf("reward = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSimulatedOnly_RevenueEfficiency(t *testing.T) {
	catalog := core.DefaultCatalog()
	state := flatState([]int{100, 100, 100, 100, 100}, 5000, 0.5)

	base := core.SimulatedOnly{}.Reward(state, catalog, core.DailyResults{}, 0, "")
	withRevenue := core.SimulatedOnly{}.Reward(state, catalog, core.DailyResults{Revenue: 1000}, 0, "")

	wantDelta := 1000 / state.InventoryValue(catalog) * 50
	if math.Abs((withRevenue-base)-wantDelta) > 1e-9 {
		t.Fatalf("revenue efficiency delta = %v, want %v", withRevenue-base, wantDelta)
	}
}

type fixedReward float64

func (f fixedReward) Reward(*core.BusinessState, []core.Product, core.DailyResults, float64, string) float64 {
	return float64(f)
}

func TestBlendedWithOutcomes(t *testing.T) {
	catalog := core.DefaultCatalog()
	state := flatState([]int{100, 100, 100, 100, 100}, 5000, 0.5)

	blended := &core.BlendedWithOutcomes{
		Base:        fixedReward(10),
		BlendFactor: 0.3,
		Lookup: map[string]core.RewardSignal{
			"task-1": {Total: 4, Confidence: 0.5},
		},
	}

	tests := []struct {
		name     string
		actionID string
		want     float64
	}{
		{"unknown action falls through", "nope", 10},
		{"known action blends", "task-1", 0.7*10 + 0.3*4*0.5},
		{"empty id falls through", "", 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := blended.Reward(state, catalog, core.DailyResults{}, 0, tt.actionID)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Fatalf("reward = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewBlendedWithOutcomes_Defaults(t *testing.T) {
	b := core.NewBlendedWithOutcomes(nil)
	if b.BlendFactor != 0.3 {
		t.Fatalf("blend factor = %v, want 0.3", b.BlendFactor)
	}
	if _, ok := b.Base.(core.SimulatedOnly); !ok {
		t.Fatalf("base strategy = %T, want SimulatedOnly", b.Base)
	}
}
