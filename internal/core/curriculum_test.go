package core_test

import (
	"testing"

	"coo-agent/internal/core"
)

func TestDefaultCurriculum(t *testing.T) {
	tests := []struct {
		name   string
		budget int
	}{
		{"even split", 400000},
		{"remainder lands on last stage", 100003},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stages := core.DefaultCurriculum(tt.budget)
			if len(stages) != 4 {
				t.Fatalf("stages = %d, want 4", len(stages))
			}
			if err := core.ValidateCurriculum(stages, tt.budget); err != nil {
				t.Fatalf("default curriculum invalid: %v", err)
			}

			wantNames := []string{
				"Basic Operations",
				"Market Dynamics",
				"Supply Chain Challenges",
				"Advanced Business Operations",
			}
			for i, stage := range stages {
				if stage.Name != wantNames[i] {
					t.Fatalf("stage[%d] = %q, want %q", i, stage.Name, wantNames[i])
				}
			}
		})
	}
}

func TestValidateCurriculum(t *testing.T) {
	budget := 4000

	tests := []struct {
		name    string
		mutate  func([]core.CurriculumStage) []core.CurriculumStage
		wantErr bool
	}{
		{
			name:   "valid",
			mutate: func(s []core.CurriculumStage) []core.CurriculumStage { return s },
		},
		{
			name:    "empty",
			mutate:  func([]core.CurriculumStage) []core.CurriculumStage { return nil },
			wantErr: true,
		},
		{
			name: "timestep sum mismatch",
			mutate: func(s []core.CurriculumStage) []core.CurriculumStage {
				s[0].Timesteps += 5
				return s
			},
			wantErr: true,
		},
		{
			name: "zero timesteps",
			mutate: func(s []core.CurriculumStage) []core.CurriculumStage {
				s[1].Timesteps = 0
				s[0].Timesteps += 1000
				return s
			},
			wantErr: true,
		},
		{
			name: "complexity regression",
			mutate: func(s []core.CurriculumStage) []core.CurriculumStage {
				s[3].BusinessComplexity = 0.1
				return s
			},
			wantErr: true,
		},
		{
			name: "reliability increase",
			mutate: func(s []core.CurriculumStage) []core.CurriculumStage {
				s[3].SupplierReliability = 0.95
				return s
			},
			wantErr: true,
		},
		{
			name: "dial out of range",
			mutate: func(s []core.CurriculumStage) []core.CurriculumStage {
				s[2].CashFlowPressure = 1.4
				return s
			},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stages := tt.mutate(core.DefaultCurriculum(budget))
			err := core.ValidateCurriculum(stages, budget)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCurriculum_DialsMonotonic(t *testing.T) {
	stages := core.DefaultCurriculum(400000)
	for i := 1; i < len(stages); i++ {
		prev, cur := stages[i-1], stages[i]
		if cur.BusinessComplexity < prev.BusinessComplexity ||
			cur.MarketVolatility < prev.MarketVolatility ||
			cur.DemandUncertainty < prev.DemandUncertainty ||
			cur.CashFlowPressure < prev.CashFlowPressure {
			t.Fatalf("stage %q easier than %q", cur.Name, prev.Name)
		}
		if cur.SupplierReliability > prev.SupplierReliability {
			t.Fatalf("stage %q has more reliable suppliers than %q", cur.Name, prev.Name)
		}
	}
}
