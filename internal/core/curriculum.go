package core

import "fmt"

// CurriculumStage is one phase of staged training. Dials are in [0,1];
// SupplierReliability is inverted (lower means a harder stage).
type CurriculumStage struct {
	Name                string  `json:"name"`
	Timesteps           int     `json:"timesteps"`
	BusinessComplexity  float64 `json:"business_complexity"`
	MarketVolatility    float64 `json:"market_volatility"`
	DemandUncertainty   float64 `json:"demand_uncertainty"`
	SupplierReliability float64 `json:"supplier_reliability"`
	CashFlowPressure    float64 `json:"cash_flow_pressure"`
	Description         string  `json:"description"`
}

// DefaultCurriculum splits totalTimesteps evenly over the four standard
// stages, easiest first. Any remainder lands on the final stage.
func DefaultCurriculum(totalTimesteps int) []CurriculumStage {
	per := totalTimesteps / 4
	stages := []CurriculumStage{
		{
			Name:                "Basic Operations",
			Timesteps:           per,
			BusinessComplexity:  0.3,
			MarketVolatility:    0.2,
			DemandUncertainty:   0.2,
			SupplierReliability: 0.9,
			CashFlowPressure:    0.2,
			Description:         "Few products, stable demand, reliable suppliers",
		},
		{
			Name:                "Market Dynamics",
			Timesteps:           per,
			BusinessComplexity:  0.5,
			MarketVolatility:    0.5,
			DemandUncertainty:   0.4,
			SupplierReliability: 0.8,
			CashFlowPressure:    0.4,
			Description:         "Shifting market conditions and noisier demand",
		},
		{
			Name:                "Supply Chain Challenges",
			Timesteps:           per,
			BusinessComplexity:  0.7,
			MarketVolatility:    0.6,
			DemandUncertainty:   0.6,
			SupplierReliability: 0.6,
			CashFlowPressure:    0.6,
			Description:         "Unreliable suppliers and stretched lead times",
		},
		{
			Name:                "Advanced Business Operations",
			Timesteps:           totalTimesteps - 3*per,
			BusinessComplexity:  1.0,
			MarketVolatility:    0.8,
			DemandUncertainty:   0.8,
			SupplierReliability: 0.5,
			CashFlowPressure:    0.8,
			Description:         "Full catalog under compounding pressure",
		},
	}
	return stages
}

// ValidateCurriculum checks the stage sequence: timesteps positive and
// summing to budget, every dial in range, difficulty dials non-decreasing
// across stages and supplier reliability non-increasing.
func ValidateCurriculum(stages []CurriculumStage, budget int) error {
	if len(stages) == 0 {
		return fmt.Errorf("curriculum: no stages")
	}
	var sum int
	for i, st := range stages {
		if st.Timesteps <= 0 {
			return fmt.Errorf("curriculum: stage %q has non-positive timesteps", st.Name)
		}
		sum += st.Timesteps
		for name, v := range map[string]float64{
			"business_complexity":  st.BusinessComplexity,
			"market_volatility":    st.MarketVolatility,
			"demand_uncertainty":   st.DemandUncertainty,
			"supplier_reliability": st.SupplierReliability,
			"cash_flow_pressure":   st.CashFlowPressure,
		} {
			if v < 0 || v > 1 {
				return fmt.Errorf("curriculum: stage %q %s out of range: %v", st.Name, name, v)
			}
		}
		if i == 0 {
			continue
		}
		prev := stages[i-1]
		switch {
		case st.BusinessComplexity < prev.BusinessComplexity:
			return fmt.Errorf("curriculum: stage %q lowers business complexity", st.Name)
		case st.MarketVolatility < prev.MarketVolatility:
			return fmt.Errorf("curriculum: stage %q lowers market volatility", st.Name)
		case st.DemandUncertainty < prev.DemandUncertainty:
			return fmt.Errorf("curriculum: stage %q lowers demand uncertainty", st.Name)
		case st.SupplierReliability > prev.SupplierReliability:
			return fmt.Errorf("curriculum: stage %q raises supplier reliability", st.Name)
		case st.CashFlowPressure < prev.CashFlowPressure:
			return fmt.Errorf("curriculum: stage %q lowers cash flow pressure", st.Name)
		}
	}
	if sum != budget {
		return fmt.Errorf("curriculum: timesteps sum %d does not match budget %d", sum, budget)
	}
	return nil
}
