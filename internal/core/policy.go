package core

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// PolicyOptimizer is the opaque decision-policy boundary. Implementations
// learn from simulator rollouts and map observations to actions; the rest of
// the system never looks inside.
type PolicyOptimizer interface {
	Train(ctx context.Context, sim *Simulator, timesteps int) error
	Predict(obs Observation) Action
	Save(path string) error
	Load(path string) error
}

// HeuristicPolicy is the in-tree optimizer: a reorder-point rule whose
// coverage target is tuned against simulated episodes. It keeps rollouts and
// retraining functional without an external learner.
type HeuristicPolicy struct {
	Catalog     []Product `json:"-"`
	ReorderDays float64   `json:"reorder_days"` // days of demand to keep on hand
}

// NewHeuristicPolicy returns a policy with the standard one-week coverage
// target.
func NewHeuristicPolicy(catalog []Product) *HeuristicPolicy {
	return &HeuristicPolicy{Catalog: catalog, ReorderDays: 7}
}

// Predict restocks the product furthest below its coverage target, sizing
// the tier to the gap. With all products covered it monitors.
func (h *HeuristicPolicy) Predict(obs Observation) Action {
	n := len(h.Catalog)
	if len(obs) < n {
		return Monitor()
	}
	worst, worstGap := -1, 0.0
	for i, p := range h.Catalog {
		target := p.BaseDailyDemand * h.ReorderDays
		if gap := target - obs[i]; gap > worstGap {
			worst, worstGap = i, gap
		}
	}
	if worst < 0 {
		return Monitor()
	}
	tier := TierSmall
	switch {
	case worstGap > 150:
		tier = TierLarge
	case worstGap > 75:
		tier = TierMedium
	}
	return Restock(worst, tier)
}

// Train grid-searches the coverage target over candidate values, keeping the
// one with the best mean episode reward. Timesteps bounds the total
// simulated days spent searching.
func (h *HeuristicPolicy) Train(ctx context.Context, sim *Simulator, timesteps int) error {
	candidates := []float64{5, 7, 10, 14}
	episodes := timesteps / sim.Horizon() / len(candidates)
	if episodes < 1 {
		episodes = 1
	}

	bestDays, bestReward := h.ReorderDays, -1e18
	for ci, days := range candidates {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("heuristic train: %w", err)
		}
		trial := &HeuristicPolicy{Catalog: h.Catalog, ReorderDays: days}
		var total float64
		for ep := 0; ep < episodes; ep++ {
			total += runEpisode(sim, trial, int64(ci*episodes+ep))
		}
		if mean := total / float64(episodes); mean > bestReward {
			bestDays, bestReward = days, mean
		}
	}
	h.ReorderDays = bestDays
	return nil
}

func runEpisode(sim *Simulator, policy PolicyOptimizer, seed int64) float64 {
	obs, _ := sim.Reset(seed)
	var total float64
	for {
		next, reward, terminated, truncated, _ := sim.Step(policy.Predict(obs))
		total += reward
		if terminated || truncated {
			return total
		}
		obs = next
	}
}

// Save writes the tuned parameters as JSON.
func (h *HeuristicPolicy) Save(path string) error {
	data, err := json.MarshalIndent(h, "", "  ")
	if err != nil {
		return fmt.Errorf("save policy: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("save policy: %w", err)
	}
	return nil
}

// Load restores tuned parameters; the catalog is not persisted and is kept
// from the receiver.
func (h *HeuristicPolicy) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("load policy: %w", err)
	}
	var loaded HeuristicPolicy
	if err := json.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("load policy: %w", err)
	}
	h.ReorderDays = loaded.ReorderDays
	return nil
}
