package core

import "math/rand"

// PendingOrder is a restock in transit. Owned by BusinessState; merged into
// inventory and dropped once DaysRemaining reaches zero.
type PendingOrder struct {
	Quantity      int     `json:"quantity"`
	Cost          float64 `json:"cost"`
	DaysRemaining int     `json:"days_remaining"`
}

// BusinessState is the mutable per-episode simulation state. Per-product
// quantities live in parallel slices indexed by the catalog position, so a
// product index resolves every per-product series without map lookups.
// Mutation happens only inside Simulator.Step; callers observe through
// Snapshot.
type BusinessState struct {
	Inventory          []int
	DaysSinceRestock   []int
	Pending            [][]PendingOrder
	DemandTrend        []float64
	StockoutDays       []int
	CashFlow           float64
	AccountsReceivable float64
	AccountsPayable    float64
	CustomerSat        float64
	Market             MarketCondition
	Season             Season
	MonthlyRevenue     float64
	MonthlyCosts       float64
	InventoryTurnover  float64
	TotalProfit        float64
}

func newBusinessState(catalog []Product, rng *rand.Rand) *BusinessState {
	n := len(catalog)
	s := &BusinessState{
		Inventory:          make([]int, n),
		DaysSinceRestock:   make([]int, n),
		Pending:            make([][]PendingOrder, n),
		DemandTrend:        make([]float64, n),
		StockoutDays:       make([]int, n),
		CashFlow:           20000 + rng.Float64()*30000,
		AccountsReceivable: 15000 + rng.Float64()*20000,
		AccountsPayable:    8000 + rng.Float64()*12000,
		CustomerSat:        0.7 + rng.Float64()*0.2,
		Market:             MarketCondition(rng.Intn(int(Boom) + 1)),
		Season:             Season(rng.Intn(4)),
	}
	for i := range catalog {
		s.Inventory[i] = 50 + rng.Intn(151)
		s.DaysSinceRestock[i] = rng.Intn(11)
		s.DemandTrend[i] = 0.8 + rng.Float64()*0.4
	}
	return s
}

// InventoryValue is the total cost basis of on-hand stock.
func (s *BusinessState) InventoryValue(catalog []Product) float64 {
	var total float64
	for i, p := range catalog {
		total += float64(s.Inventory[i]) * p.UnitCost
	}
	return total
}

// Snapshot returns a deep copy safe to hold across steps.
func (s *BusinessState) Snapshot() *BusinessState {
	cp := *s
	cp.Inventory = append([]int(nil), s.Inventory...)
	cp.DaysSinceRestock = append([]int(nil), s.DaysSinceRestock...)
	cp.DemandTrend = append([]float64(nil), s.DemandTrend...)
	cp.StockoutDays = append([]int(nil), s.StockoutDays...)
	cp.Pending = make([][]PendingOrder, len(s.Pending))
	for i, orders := range s.Pending {
		cp.Pending[i] = append([]PendingOrder(nil), orders...)
	}
	return &cp
}

// Observation is the fixed-width numeric state vector handed to the policy.
// Layout: inventory[n], daysSinceRestock[n], cash, daysRemaining, market
// code, season code, customer satisfaction, demandTrend[n], monthly revenue,
// inventory turnover.
type Observation []float64

// ObservationWidth returns the vector length for a catalog of n products.
func ObservationWidth(n int) int { return 3*n + 7 }

func (s *BusinessState) observe(daysRemaining int) Observation {
	n := len(s.Inventory)
	obs := make(Observation, 0, ObservationWidth(n))
	for _, inv := range s.Inventory {
		obs = append(obs, float64(inv))
	}
	for _, d := range s.DaysSinceRestock {
		obs = append(obs, float64(d))
	}
	obs = append(obs,
		s.CashFlow,
		float64(daysRemaining),
		float64(s.Market),
		float64(s.Season),
		s.CustomerSat,
	)
	obs = append(obs, s.DemandTrend...)
	obs = append(obs, s.MonthlyRevenue, s.InventoryTurnover)
	return obs
}
