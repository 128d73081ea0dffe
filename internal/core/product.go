package core

import "time"

type Season int

const (
	Winter Season = iota
	Spring
	Summer
	Fall
)

func (s Season) String() string {
	switch s {
	case Winter:
		return "winter"
	case Spring:
		return "spring"
	case Summer:
		return "summer"
	case Fall:
		return "fall"
	}
	return "unknown"
}

// SeasonOf maps a calendar month to its season bucket.
func SeasonOf(t time.Time) Season {
	switch t.Month() {
	case time.March, time.April, time.May:
		return Spring
	case time.June, time.July, time.August:
		return Summer
	case time.September, time.October, time.November:
		return Fall
	default:
		return Winter
	}
}

type MarketCondition int

const (
	Recession MarketCondition = iota
	Slow
	Normal
	Growth
	Boom
)

func (m MarketCondition) String() string {
	switch m {
	case Recession:
		return "recession"
	case Slow:
		return "slow"
	case Normal:
		return "normal"
	case Growth:
		return "growth"
	case Boom:
		return "boom"
	}
	return "unknown"
}

// DemandFactor is the demand multiplier applied under this market condition.
func (m MarketCondition) DemandFactor() float64 {
	switch m {
	case Recession:
		return 0.6
	case Slow:
		return 0.8
	case Growth:
		return 1.2
	case Boom:
		return 1.5
	default:
		return 1.0
	}
}

// Product is immutable reference data describing per-product economics.
// Seasonality is indexed by Season.
type Product struct {
	ID                  string     `json:"id"`
	Name                string     `json:"name"`
	Category            string     `json:"category"`
	UnitCost            float64    `json:"unit_cost"`
	UnitPrice           float64    `json:"unit_price"`
	StorageCostPerUnit  float64    `json:"storage_cost_per_unit"`
	BaseDailyDemand     float64    `json:"base_daily_demand"`
	Seasonality         [4]float64 `json:"seasonality"`
	DemandElasticity    float64    `json:"demand_elasticity"`
	LeadTimeDays        int        `json:"lead_time_days"`
	SupplierReliability float64    `json:"supplier_reliability"`
}

// UnitMargin is the gross profit per unit sold.
func (p Product) UnitMargin() float64 { return p.UnitPrice - p.UnitCost }

// DefaultCatalog returns the reference catalog for a ~$200k/month SME.
func DefaultCatalog() []Product {
	return []Product{
		{
			ID:                  "PROD-001",
			Name:                "Tech Pro Wireless Mouse",
			Category:            "Electronics",
			UnitCost:            25.0,
			UnitPrice:           49.99,
			StorageCostPerUnit:  0.75,
			BaseDailyDemand:     45,
			Seasonality:         [4]float64{1.3, 1.0, 0.8, 1.1},
			DemandElasticity:    1.2,
			LeadTimeDays:        7,
			SupplierReliability: 0.95,
		},
		{
			ID:                  "PROD-002",
			Name:                "Organic Garden Fertilizer",
			Category:            "Home & Garden",
			UnitCost:            18.0,
			UnitPrice:           34.99,
			StorageCostPerUnit:  1.2,
			BaseDailyDemand:     30,
			Seasonality:         [4]float64{0.4, 1.8, 1.5, 0.8},
			DemandElasticity:    0.9,
			LeadTimeDays:        14,
			SupplierReliability: 0.88,
		},
		{
			ID:                  "PROD-003",
			Name:                "Premium Athletic Socks",
			Category:            "Fashion",
			UnitCost:            8.0,
			UnitPrice:           19.99,
			StorageCostPerUnit:  0.25,
			BaseDailyDemand:     60,
			Seasonality:         [4]float64{1.1, 1.2, 1.0, 0.9},
			DemandElasticity:    1.5,
			LeadTimeDays:        10,
			SupplierReliability: 0.92,
		},
		{
			ID:                  "PROD-004",
			Name:                "Protein Powder Vanilla",
			Category:            "Health & Fitness",
			UnitCost:            32.0,
			UnitPrice:           59.99,
			StorageCostPerUnit:  1.0,
			BaseDailyDemand:     25,
			Seasonality:         [4]float64{1.1, 1.3, 1.0, 0.8},
			DemandElasticity:    1.1,
			LeadTimeDays:        12,
			SupplierReliability: 0.90,
		},
		{
			ID:                  "PROD-005",
			Name:                "Ergonomic Desk Organizer",
			Category:            "Office",
			UnitCost:            22.0,
			UnitPrice:           42.99,
			StorageCostPerUnit:  0.8,
			BaseDailyDemand:     20,
			Seasonality:         [4]float64{0.8, 1.0, 0.9, 1.3},
			DemandElasticity:    1.0,
			LeadTimeDays:        8,
			SupplierReliability: 0.94,
		},
	}
}

// ProductMetrics carries the historical signals the ROI calculator works
// from. Unlike Product it is refreshed from live sales data; LastUpdated
// drives the data-freshness factor of the confidence score.
type ProductMetrics struct {
	ProductID             string     `json:"product_id"`
	ProductName           string     `json:"product_name"`
	Category              string     `json:"category"`
	CostPerUnit           float64    `json:"cost_per_unit"`
	SellingPrice          float64    `json:"selling_price"`
	AvgDailySales         float64    `json:"avg_daily_sales"`
	SalesVelocityTrend    float64    `json:"sales_velocity_trend"` // -1..1, declining to growing
	Seasonality           [4]float64 `json:"seasonality"`
	CurrentInventory      int        `json:"current_inventory"`
	ReorderPoint          int        `json:"reorder_point"`
	LeadTimeDays          int        `json:"lead_time_days"`
	HistoricalSellThrough float64    `json:"historical_sell_through"` // 0..1
	DemandVolatility      float64    `json:"demand_volatility"`       // std dev of daily demand, relative
	LastUpdated           time.Time  `json:"last_updated"`
}

// UnitMargin is the gross profit per unit sold.
func (m ProductMetrics) UnitMargin() float64 { return m.SellingPrice - m.CostPerUnit }

// MetricsFromProduct seeds metrics for a catalog product that has no sales
// history yet.
func MetricsFromProduct(p Product, now time.Time) ProductMetrics {
	return ProductMetrics{
		ProductID:             p.ID,
		ProductName:           p.Name,
		Category:              p.Category,
		CostPerUnit:           p.UnitCost,
		SellingPrice:          p.UnitPrice,
		AvgDailySales:         p.BaseDailyDemand,
		SalesVelocityTrend:    0,
		Seasonality:           p.Seasonality,
		CurrentInventory:      int(p.BaseDailyDemand * 7),
		ReorderPoint:          int(p.BaseDailyDemand * 7),
		LeadTimeDays:          p.LeadTimeDays,
		HistoricalSellThrough: 0.6,
		DemandVolatility:      0.2,
		LastUpdated:           now,
	}
}
