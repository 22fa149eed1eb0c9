package loop

import (
	"sync"

	"github.com/gamepilot/gamepilot/internal/types"
)

// Source proposes candidate actions for a captured state.
type Source interface {
	Name() string
	Propose(state *types.GameState) []*types.Action
}

// Observer is implemented by sources that learn from observed outcomes.
type Observer interface {
	Observe(stateKey string, action *types.Action, reward float32, success bool)
}

// RuleSource is the heuristic baseline: it taps the screen region indicated
// by the strongest feature, on the assumption that the perception stack
// encodes salient on-screen elements as feature activations.
type RuleSource struct {
	Width  float32
	Height float32
}

// Name implements Source.
func (r *RuleSource) Name() string { return "rules" }

// Propose implements Source.
func (r *RuleSource) Propose(state *types.GameState) []*types.Action {
	if !state.Valid() {
		return nil
	}

	best := 0
	for i, f := range state.Features {
		if f > state.Features[best] {
			best = i
		}
	}
	if state.Features[best] <= 0 {
		return nil
	}

	// Spread candidate taps across a grid keyed by feature index.
	n := len(state.Features)
	col := best % 3
	row := (best * 3) / n
	action := types.NewAction(types.ActionTap)
	action.Position = types.Point{
		X: r.Width * (0.25 + 0.25*float32(col)),
		Y: r.Height * (0.25 + 0.25*float32(row%3)),
	}
	action.Index = best % n
	action.Confidence = 0.3 * state.Features[best]
	action.ExpectedReward = action.Confidence
	action.Source = r.Name()
	return []*types.Action{action}
}

// PatternSource recommends the gesture kind that has historically worked
// best for a state key, learning from every observed outcome.
type PatternSource struct {
	mu       sync.Mutex
	patterns map[string]map[types.ActionKind]*patternStat
}

type patternStat struct {
	action    types.Action
	uses      int
	successes int
	avgReward float32
}

// NewPatternSource creates an empty pattern recommender.
func NewPatternSource() *PatternSource {
	return &PatternSource{patterns: make(map[string]map[types.ActionKind]*patternStat)}
}

// Name implements Source.
func (p *PatternSource) Name() string { return "patterns" }

// Propose implements Source: the best-performing pattern for the state key,
// if it has succeeded at least once.
func (p *PatternSource) Propose(state *types.GameState) []*types.Action {
	p.mu.Lock()
	defer p.mu.Unlock()

	kinds, ok := p.patterns[state.Key()]
	if !ok {
		return nil
	}

	var best *patternStat
	for _, stat := range kinds {
		if stat.successes == 0 {
			continue
		}
		if best == nil || stat.avgReward > best.avgReward {
			best = stat
		}
	}
	if best == nil {
		return nil
	}

	action := best.action
	action.ID = types.NewAction(action.Kind).ID
	action.Confidence = best.avgReward * float32(best.successes) / float32(best.uses)
	action.ExpectedReward = best.avgReward
	action.Source = p.Name()
	return []*types.Action{&action}
}

// Observe implements Observer.
func (p *PatternSource) Observe(stateKey string, action *types.Action, reward float32, success bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	kinds, ok := p.patterns[stateKey]
	if !ok {
		kinds = make(map[types.ActionKind]*patternStat)
		p.patterns[stateKey] = kinds
	}
	stat, ok := kinds[action.Kind]
	if !ok {
		stat = &patternStat{action: *action}
		kinds[action.Kind] = stat
	}
	stat.uses++
	if success {
		stat.successes++
	}
	stat.avgReward += (reward - stat.avgReward) / float32(stat.uses)
}
