package core_test

import (
	"math"
	"testing"

	"coo-agent/internal/core"
)

var allScenarioKinds = []core.ScenarioKind{
	core.ScenarioMarketVolatility,
	core.ScenarioSupplyDisruption,
	core.ScenarioDemandSurge,
	core.ScenarioCashFlowCrisis,
	core.ScenarioSeasonalCycle,
	core.ScenarioCompetitivePressure,
}

func TestGenerate_AllKinds(t *testing.T) {
	g := core.NewGenerator(1)
	for _, kind := range allScenarioKinds {
		for _, d := range []float64{0, 0.3, 0.8, 1} {
			s := g.Generate(kind, d)
			if s.Kind != kind {
				t.Fatalf("kind = %q, want %q", s.Kind, kind)
			}
			if s.Difficulty != d {
				t.Fatalf("%s: difficulty = %v, want %v", kind, s.Difficulty, d)
			}
			if len(s.Events) == 0 {
				t.Fatalf("%s: no events", kind)
			}
			if s.DurationDays <= 0 {
				t.Fatalf("%s: duration %d", kind, s.DurationDays)
			}
			for _, e := range s.Events {
				if e.Day < 0 || e.Day > s.DurationDays {
					t.Fatalf("%s: event day %d outside scenario duration %d", kind, e.Day, s.DurationDays)
				}
				if e.Duration <= 0 {
					t.Fatalf("%s: event %q has duration %d", kind, e.Type, e.Duration)
				}
				if len(e.Impact) == 0 {
					t.Fatalf("%s: event %q has no impact", kind, e.Type)
				}
			}
		}
	}
}

func TestGenerate_DifficultyGatesEvents(t *testing.T) {
	g := core.NewGenerator(1)

	easy := g.Generate(core.ScenarioMarketVolatility, 0.3)
	hard := g.Generate(core.ScenarioMarketVolatility, 0.9)
	if len(hard.Events) <= len(easy.Events) {
		t.Fatalf("high difficulty should add events: easy %d, hard %d", len(easy.Events), len(hard.Events))
	}

	easyCrisis := g.Generate(core.ScenarioCashFlowCrisis, 0.3)
	hardCrisis := g.Generate(core.ScenarioCashFlowCrisis, 0.9)
	if len(hardCrisis.Events) <= len(easyCrisis.Events) {
		t.Fatalf("crisis difficulty gating broken: easy %d, hard %d", len(easyCrisis.Events), len(hardCrisis.Events))
	}
}

func TestGenerate_DifficultyClamped(t *testing.T) {
	g := core.NewGenerator(1)
	s := g.Generate(core.ScenarioDemandSurge, 3.5)
	if s.Difficulty != 1 {
		t.Fatalf("difficulty = %v, want clamped to 1", s.Difficulty)
	}
}

func TestScenarioSet_LinearDifficulties(t *testing.T) {
	g := core.NewGenerator(1)
	set := g.ScenarioSet(8, true)
	if len(set) != 8 {
		t.Fatalf("set size = %d, want 8", len(set))
	}
	for i, s := range set {
		want := 0.2 + 0.7*float64(i)/7
		if math.Abs(s.Difficulty-want) > 1e-9 {
			t.Fatalf("difficulty[%d] = %v, want %v", i, s.Difficulty, want)
		}
	}
	// Balanced sets rotate kinds round-robin.
	for i, s := range set {
		if s.Kind != allScenarioKinds[i%len(allScenarioKinds)] {
			t.Fatalf("kind[%d] = %q, want %q", i, s.Kind, allScenarioKinds[i%len(allScenarioKinds)])
		}
	}
}

func TestSimulator_ScenarioDemandEvents(t *testing.T) {
	// A crushing demand-collapse event should sell fewer units than the
	// same seeded episode without it.
	scenario := &core.Scenario{
		Name:         "collapse",
		Kind:         core.ScenarioMarketVolatility,
		DurationDays: 30,
		Events: []core.Event{{
			Day:      1,
			Type:     "collapse",
			Impact:   map[string]float64{core.ImpactDemand: 0.05},
			Duration: 30,
			Severity: 1,
		}},
	}

	run := func(sc *core.Scenario) int {
		sim := core.NewSimulator(core.SimulatorConfig{Horizon: core.SimpleHorizon, Scenario: sc})
		sim.Reset(99)
		var sold int
		for {
			_, _, terminated, truncated, info := sim.Step(core.Monitor())
			sold += info.Daily.UnitsSold
			if terminated || truncated {
				return sold
			}
		}
	}

	if withEvent, without := run(scenario), run(nil); withEvent >= without {
		t.Fatalf("demand collapse sold %d units, baseline %d", withEvent, without)
	}
}
