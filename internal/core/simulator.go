package core

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/google/uuid"
)

// Episode defaults. The simple variant runs a 30-day horizon.
const (
	DefaultHorizon = 90
	SimpleHorizon  = 30

	bankruptcyFloor = -50000
)

// Fixed costs of the auxiliary (non-restock) actions.
const (
	adSpendCost        = 1000
	adPremiumCost      = 2500
	invoiceReminderFee = 50
	perInvoiceFee      = 25
	costReviewFee      = 200
	priceOptFee        = 300
	expenseAuditFee    = 150
	supplierReviewFee  = 100
)

// SimulatorConfig configures one simulator instance. Zero values pick the
// default catalog, the 90-day horizon and purely simulated rewards.
type SimulatorConfig struct {
	Catalog  []Product
	Horizon  int
	Reward   RewardStrategy
	Stage    *CurriculumStage
	Scenario *Scenario
}

// StepInfo is the diagnostic payload returned alongside each observation.
type StepInfo struct {
	Day         int
	Daily       DailyResults
	CashFlow    float64
	CustomerSat float64
	TotalProfit float64
	Market      MarketCondition
	Season      Season
}

// Simulator runs day-granular episodes of a small product business. One
// instance owns its RNG and state, so concurrent rollouts each get their own
// simulator. Not safe for concurrent use of a single instance.
type Simulator struct {
	catalog  []Product
	horizon  int
	reward   RewardStrategy
	stage    *CurriculumStage
	scenario *Scenario

	rng   *rand.Rand
	state *BusinessState
	day   int
	done  bool
	log   []ActionOutcome

	// curriculum-derived dials, recomputed on Reset
	active          int     // products with live demand
	demandSigma     float64 // std dev of the daily demand noise
	marketShiftProb float64
	reliabilityDial float64 // multiplier on supplier reliability

	// episode-scoped effects of auxiliary actions
	priceFactor      float64
	storageFactor    float64
	reliabilityBonus float64
	discountDaysLeft int
}

// NewSimulator builds a simulator from cfg, filling unset fields with
// defaults. Call Reset before Step.
func NewSimulator(cfg SimulatorConfig) *Simulator {
	if cfg.Catalog == nil {
		cfg.Catalog = DefaultCatalog()
	}
	if cfg.Horizon <= 0 {
		cfg.Horizon = DefaultHorizon
	}
	if cfg.Reward == nil {
		cfg.Reward = SimulatedOnly{}
	}
	return &Simulator{
		catalog:  cfg.Catalog,
		horizon:  cfg.Horizon,
		reward:   cfg.Reward,
		stage:    cfg.Stage,
		scenario: cfg.Scenario,
	}
}

// Catalog returns the simulator's product reference data.
func (s *Simulator) Catalog() []Product { return s.catalog }

// Horizon returns the episode length in days.
func (s *Simulator) Horizon() int { return s.horizon }

// Log returns the episode's executed-action projections, the ranker's input.
func (s *Simulator) Log() []ActionOutcome { return s.log }

// State returns an immutable snapshot of the current business state.
func (s *Simulator) State() *BusinessState { return s.state.Snapshot() }

// Reset starts a new episode seeded deterministically and returns the
// initial observation. Curriculum stage dials, when configured, shape the
// starting cash, demand noise and supplier behavior for the whole episode.
func (s *Simulator) Reset(seed int64) (Observation, StepInfo) {
	s.rng = rand.New(rand.NewSource(seed))
	s.state = newBusinessState(s.catalog, s.rng)
	s.day = 0
	s.done = false
	s.log = s.log[:0]

	s.active = len(s.catalog)
	s.demandSigma = 0.15
	s.marketShiftProb = 0.02
	s.reliabilityDial = 1.0
	s.priceFactor = 1.0
	s.storageFactor = 1.0
	s.reliabilityBonus = 0
	s.discountDaysLeft = 0

	if st := s.stage; st != nil {
		n := int(math.Ceil(float64(len(s.catalog)) * st.BusinessComplexity))
		if n < 2 {
			n = 2
		}
		if n < s.active {
			s.active = n
		}
		s.demandSigma = 0.1 + 0.2*st.DemandUncertainty
		s.marketShiftProb = 0.02 + 0.1*st.MarketVolatility
		s.reliabilityDial = st.SupplierReliability
		s.state.CashFlow *= 1 - 0.5*st.CashFlowPressure
	}
	return s.state.observe(s.horizon), s.currentInfo(DailyResults{})
}

// Step executes one simulated day: pending orders advance, the action is
// applied, demand realizes, and the injected reward strategy scores the
// result. Terminated reports the horizon being reached; truncated reports
// bankruptcy (cash below the floor), a normal outcome rather than an error.
func (s *Simulator) Step(a Action) (Observation, float64, bool, bool, StepInfo) {
	if s.state == nil || s.done {
		panic("core: Step called on unreset or finished simulator")
	}
	s.day++
	st := s.state

	s.advancePending()
	restockCost, auxCost, actionID := s.applyAction(a)
	daily := s.simulateDay(auxCost)
	s.driftMarket()

	reward := s.reward.Reward(st, s.catalog, daily, restockCost, actionID)

	terminated := s.day >= s.horizon
	truncated := st.CashFlow < bankruptcyFloor
	s.done = terminated || truncated
	return st.observe(s.horizon - s.day), reward, terminated, truncated, s.currentInfo(daily)
}

func (s *Simulator) currentInfo(daily DailyResults) StepInfo {
	return StepInfo{
		Day:         s.day,
		Daily:       daily,
		CashFlow:    s.state.CashFlow,
		CustomerSat: s.state.CustomerSat,
		TotalProfit: s.state.TotalProfit,
		Market:      s.state.Market,
		Season:      s.state.Season,
	}
}

func (s *Simulator) advancePending() {
	st := s.state
	for i := range st.Pending {
		kept := st.Pending[i][:0]
		for _, o := range st.Pending[i] {
			o.DaysRemaining--
			if o.DaysRemaining <= 0 {
				st.Inventory[i] += o.Quantity
			} else {
				kept = append(kept, o)
			}
		}
		st.Pending[i] = kept
	}
}

// applyAction mutates state for the chosen action and logs its projection.
// Returns the restock spend and auxiliary spend separately; rewards treat
// restock cost as an investment rather than an expense.
func (s *Simulator) applyAction(a Action) (restockCost, auxCost float64, actionID string) {
	if a.Kind == ActionMonitor {
		return 0, 0, ""
	}
	actionID = uuid.NewString()

	if a.Kind == ActionRestock {
		return s.applyRestock(a, actionID), 0, actionID
	}
	return 0, s.applyAuxiliary(a, actionID), actionID
}

func (s *Simulator) applyRestock(a Action, actionID string) float64 {
	st := s.state
	if a.Product < 0 || a.Product >= s.active {
		return 0
	}
	p := s.catalog[a.Product]
	unitCost := p.UnitCost * s.costMultiplier()
	qty := TierQuantity(a.Tier)
	cost := float64(qty) * unitCost

	// Cap the order to available cash instead of rejecting it.
	if cost > st.CashFlow {
		qty = int(st.CashFlow / unitCost)
		cost = float64(qty) * unitCost
	}
	if qty <= 0 {
		return 0
	}

	st.CashFlow -= cost
	lead := int(math.Round(float64(p.LeadTimeDays) * s.leadTimeMultiplier()))
	if lead < 1 {
		lead = 1
	}
	reliability := clampFloat(p.SupplierReliability*s.reliabilityDial+s.reliabilityBonus, 0, 0.99)
	if s.rng.Float64() > reliability {
		lead += 1 + s.rng.Intn(3)
	}
	st.Pending[a.Product] = append(st.Pending[a.Product], PendingOrder{Quantity: qty, Cost: cost, DaysRemaining: lead})
	st.DaysSinceRestock[a.Product] = 0

	// Project the order at a conservative 70% sell-through and keep the ROI
	// inside the 8-35% band restocks historically land in.
	projRevenue := float64(qty) * p.UnitPrice * 0.7
	roi := clampFloat((projRevenue-cost)/cost*100, 8, 35)
	s.log = append(s.log, ActionOutcome{
		Day:           s.day,
		ActionID:      actionID,
		Kind:          ActionRestock,
		ProductID:     p.ID,
		ProductName:   p.Name,
		Quantity:      qty,
		Cost:          cost,
		RevenueImpact: projRevenue,
		ExpectedROI:   roi,
		Confidence:    reliability,
		ImpactScore:   roi / 100 * reliability,
		Description:   fmt.Sprintf("Restock %d units of %s", qty, p.Name),
		Details: map[string]any{
			"tier":           a.Tier,
			"lead_time_days": lead,
			"unit_cost":      unitCost,
		},
	})
	return cost
}

// applyAuxiliary executes the non-inventory actions. Each has a fixed cost
// and a deterministic effect; unaffordable actions are skipped silently.
func (s *Simulator) applyAuxiliary(a Action, actionID string) float64 {
	st := s.state
	var (
		cost     float64
		revenue  float64
		roi      float64
		conf     = 0.6
		describe string
	)

	switch a.Kind {
	case ActionAdSpend:
		cost, describe = adSpendCost, "Increase ad spend across the catalog"
		boost := 1.05
		if a.Direction == AdPremium {
			cost, describe = adPremiumCost, "Launch premium ad placement"
			boost = 1.12
		}
		if cost > st.CashFlow {
			return 0
		}
		st.CashFlow -= cost
		for i := 0; i < s.active; i++ {
			st.DemandTrend[i] = clampFloat(st.DemandTrend[i]*boost, 0.5, 1.5)
		}
		revenue = cost * 1.2
		roi = 20

	case ActionCampaignPause:
		describe = "Pause underperforming ad campaigns"
		st.CashFlow += 300 // reclaimed committed spend
		for i := 0; i < s.active; i++ {
			st.DemandTrend[i] = clampFloat(st.DemandTrend[i]*0.97, 0.5, 1.5)
		}
		revenue, roi, conf = 300, 15, 0.8

	case ActionInvoiceReminder:
		cost, describe = invoiceReminderFee, "Send payment reminders for overdue invoices"
		if cost > st.CashFlow {
			return 0
		}
		collected := st.AccountsReceivable * 0.10
		st.CashFlow += collected - cost
		st.AccountsReceivable -= collected
		revenue, roi, conf = collected, clampFloat(collected/cost*10, 5, 60), 0.75

	case ActionBatchInvoice:
		invoices := int(st.AccountsReceivable / 1500)
		if invoices < 1 {
			invoices = 1
		}
		cost = float64(invoices) * perInvoiceFee
		describe = fmt.Sprintf("Batch-send %d outstanding invoices", invoices)
		if cost > st.CashFlow {
			return 0
		}
		collected := st.AccountsReceivable * 0.20
		st.CashFlow += collected - cost
		st.AccountsReceivable -= collected
		revenue, roi, conf = collected, clampFloat(collected/cost*10, 5, 60), 0.75

	case ActionCostReview:
		cost, describe = costReviewFee, "Review recurring operating costs"
		if cost > st.CashFlow {
			return 0
		}
		st.CashFlow -= cost
		s.storageFactor *= 0.98
		revenue, roi, conf = cost*1.5, 12, 0.65

	case ActionDiscount:
		describe = "Run a 7-day 10% discount"
		s.discountDaysLeft = 7
		revenue, roi, conf = 0, 10, 0.55

	case ActionPriceOptimization:
		cost, describe = priceOptFee, "Optimize prices toward the margin sweet spot"
		if cost > st.CashFlow {
			return 0
		}
		st.CashFlow -= cost
		s.priceFactor = clampFloat(s.priceFactor*1.02, 0.9, 1.1)
		revenue, roi, conf = cost*1.3, 14, 0.6

	case ActionExpenseAudit:
		cost, describe = expenseAuditFee, "Audit expenses for billing errors"
		if cost > st.CashFlow {
			return 0
		}
		st.CashFlow -= cost
		st.CashFlow += 250 // recovered overbillings
		s.storageFactor *= 0.99
		revenue, roi, conf = 250, 18, 0.7

	case ActionSupplierReview:
		cost, describe = supplierReviewFee, "Review supplier terms and lead times"
		if cost > st.CashFlow {
			return 0
		}
		st.CashFlow -= cost
		s.reliabilityBonus = clampFloat(s.reliabilityBonus+0.02, 0, 0.1)
		revenue, roi, conf = cost*1.2, 10, 0.65

	default:
		return 0
	}

	s.log = append(s.log, ActionOutcome{
		Day:           s.day,
		ActionID:      actionID,
		Kind:          a.Kind,
		Cost:          cost,
		RevenueImpact: revenue,
		ExpectedROI:   roi,
		Confidence:    conf,
		ImpactScore:   roi / 100 * conf,
		Description:   describe,
	})
	return cost
}

// simulateDay realizes demand, moves stock, charges storage and updates the
// running satisfaction, turnover and monthly aggregates.
func (s *Simulator) simulateDay(auxCost float64) DailyResults {
	st := s.state
	var daily DailyResults
	demandMult := s.demandMultiplier()
	priceMult := s.priceFactor
	if s.discountDaysLeft > 0 {
		s.discountDaysLeft--
		priceMult *= 0.9
	}

	var totalDemand int
	for i := 0; i < s.active; i++ {
		p := s.catalog[i]
		demand := p.BaseDailyDemand *
			p.Seasonality[st.Season] *
			st.Market.DemandFactor() *
			st.DemandTrend[i] *
			demandMult
		if priceMult < 1 {
			demand *= 1 + (1-priceMult)*p.DemandElasticity
		}
		demand *= 1 + s.rng.NormFloat64()*s.demandSigma
		units := int(demand)
		if units < 0 {
			units = 0
		}
		totalDemand += units

		sold := units
		if sold > st.Inventory[i] {
			sold = st.Inventory[i]
		}
		st.Inventory[i] -= sold
		daily.UnitsSold += sold
		daily.Revenue += float64(sold) * p.UnitPrice * priceMult
		daily.Costs += float64(st.Inventory[i]) * p.StorageCostPerUnit * s.storageFactor

		if sold < units && st.Inventory[i] == 0 {
			st.StockoutDays[i]++
			daily.Stockouts++
		}
		st.DaysSinceRestock[i]++

		// Demand trend drifts as a bounded random walk.
		st.DemandTrend[i] = clampFloat(st.DemandTrend[i]*(0.98+s.rng.Float64()*0.04), 0.5, 1.5)
	}
	daily.Costs += auxCost

	if totalDemand > 0 {
		daily.FulfillmentRate = float64(daily.UnitsSold) / float64(totalDemand)
	} else {
		daily.FulfillmentRate = 1
	}
	if daily.Stockouts > 0 {
		st.CustomerSat *= 0.98
	} else {
		st.CustomerSat = math.Min(1.0, st.CustomerSat*1.001)
	}

	daily.Profit = daily.Revenue - daily.Costs
	st.CashFlow += daily.Revenue - daily.Costs + auxCost // aux spend already deducted when applied
	st.TotalProfit += daily.Profit

	if (s.day-1)%30 == 0 {
		st.MonthlyRevenue, st.MonthlyCosts = 0, 0
	}
	st.MonthlyRevenue += daily.Revenue
	st.MonthlyCosts += daily.Costs
	if v := st.InventoryValue(s.catalog); v > 1 {
		st.InventoryTurnover = daily.Revenue * 30 / v
	}
	return daily
}

// driftMarket occasionally shifts the market condition one notch.
func (s *Simulator) driftMarket() {
	if s.rng.Float64() >= s.marketShiftProb {
		return
	}
	if s.rng.Float64() < 0.5 {
		if s.state.Market > Recession {
			s.state.Market--
		}
	} else if s.state.Market < Boom {
		s.state.Market++
	}
}

// Scenario events active on the current day fold into these multipliers.

func (s *Simulator) demandMultiplier() float64   { return s.eventMultiplier(ImpactDemand) }
func (s *Simulator) leadTimeMultiplier() float64 { return s.eventMultiplier(ImpactLeadTime) }
func (s *Simulator) costMultiplier() float64     { return s.eventMultiplier(ImpactCost) }

func (s *Simulator) eventMultiplier(key string) float64 {
	mult := 1.0
	if s.scenario == nil {
		return mult
	}
	for _, e := range s.scenario.Events {
		if s.day < e.Day || s.day >= e.Day+e.Duration {
			continue
		}
		if v, ok := e.Impact[key]; ok {
			mult *= v
		}
	}
	return mult
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
