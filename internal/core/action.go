package core

import "fmt"

// ActionKind discriminates the business actions the agent can take.
type ActionKind string

const (
	ActionMonitor           ActionKind = "monitor"
	ActionRestock           ActionKind = "inventory_restock"
	ActionAdSpend           ActionKind = "marketing_ad_spend"
	ActionCampaignPause     ActionKind = "marketing_campaign_pause"
	ActionInvoiceReminder   ActionKind = "financial_invoice_reminder"
	ActionBatchInvoice      ActionKind = "financial_batch_invoice"
	ActionCostReview        ActionKind = "financial_cost_review"
	ActionDiscount          ActionKind = "pricing_discount"
	ActionPriceOptimization ActionKind = "pricing_optimization"
	ActionExpenseAudit      ActionKind = "operational_expense_audit"
	ActionSupplierReview    ActionKind = "operational_supplier_review"
)

// Restock tiers and the quantity each orders.
const (
	TierSmall  = 1
	TierMedium = 2
	TierLarge  = 3
)

// TierQuantity maps a restock tier to its order quantity.
func TierQuantity(tier int) int {
	switch tier {
	case TierSmall:
		return 50
	case TierMedium:
		return 100
	case TierLarge:
		return 200
	}
	return 0
}

// AdDirection selects between increasing and decreasing marketing spend.
type AdDirection int

const (
	AdIncrease AdDirection = iota
	AdPremium
)

// Action is the discriminated union over the agent's decision space.
// Product and Tier are meaningful for restocks, Direction for ad spend;
// the remaining kinds carry no parameters.
type Action struct {
	Kind      ActionKind
	Product   int // catalog index, restock only
	Tier      int // restock only
	Direction AdDirection
}

// Monitor is the explicit no-op action.
func Monitor() Action { return Action{Kind: ActionMonitor} }

// Restock orders a tiered quantity of the given catalog product.
func Restock(product, tier int) Action {
	return Action{Kind: ActionRestock, Product: product, Tier: tier}
}

func (a Action) String() string {
	switch a.Kind {
	case ActionRestock:
		return fmt.Sprintf("restock(product=%d, tier=%d)", a.Product, a.Tier)
	case ActionAdSpend:
		if a.Direction == AdPremium {
			return "ad_spend(premium)"
		}
		return "ad_spend(increase)"
	default:
		return string(a.Kind)
	}
}

// Flat action-code layout at the policy-optimizer boundary. Restocks occupy
// one code per product/tier pair; the auxiliary kinds follow in a fixed
// order; code 0 is monitor.
const auxBase = 1 // offset of the first restock code

var auxKinds = []Action{
	{Kind: ActionAdSpend, Direction: AdIncrease},
	{Kind: ActionAdSpend, Direction: AdPremium},
	{Kind: ActionCampaignPause},
	{Kind: ActionInvoiceReminder},
	{Kind: ActionBatchInvoice},
	{Kind: ActionCostReview},
	{Kind: ActionDiscount},
	{Kind: ActionPriceOptimization},
	{Kind: ActionExpenseAudit},
	{Kind: ActionSupplierReview},
}

// ActionSpaceSize returns the number of valid action codes for a catalog of
// numProducts products.
func ActionSpaceSize(numProducts int) int {
	return auxBase + numProducts*3 + len(auxKinds)
}

// DecodeAction maps a flat policy-output code back to the action union.
// Out-of-range codes decode to monitor rather than failing: the policy
// boundary must never produce an unexecutable action.
func DecodeAction(code, numProducts int) Action {
	if code <= 0 || code >= ActionSpaceSize(numProducts) {
		return Monitor()
	}
	code -= auxBase
	if code < numProducts*3 {
		return Restock(code/3, code%3+1)
	}
	return auxKinds[code-numProducts*3]
}

// Code maps the action union to its flat policy-boundary index.
func (a Action) Code(numProducts int) int {
	switch a.Kind {
	case ActionMonitor:
		return 0
	case ActionRestock:
		if a.Product < 0 || a.Product >= numProducts || a.Tier < TierSmall || a.Tier > TierLarge {
			return 0
		}
		return auxBase + a.Product*3 + (a.Tier - 1)
	}
	for i, aux := range auxKinds {
		if aux.Kind == a.Kind && (a.Kind != ActionAdSpend || aux.Direction == a.Direction) {
			return auxBase + numProducts*3 + i
		}
	}
	return 0
}

// ActionOutcome is the simulator's projection for one executed action. It is
// the unit the recommendation ranker scores, and the shape mirrored into the
// human-facing recommendation output.
type ActionOutcome struct {
	Day           int            `json:"day"`
	ActionID      string         `json:"action_id"`
	Kind          ActionKind     `json:"action"`
	ProductID     string         `json:"product_id,omitempty"`
	ProductName   string         `json:"product_name,omitempty"`
	Quantity      int            `json:"quantity"`
	Cost          float64        `json:"cost"`
	RevenueImpact float64        `json:"revenue_impact"`
	ExpectedROI   float64        `json:"expected_roi"`
	Confidence    float64        `json:"confidence"`
	ImpactScore   float64        `json:"impact_score"`
	Description   string         `json:"description"`
	Details       map[string]any `json:"details,omitempty"`
}
