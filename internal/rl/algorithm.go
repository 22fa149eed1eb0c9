// Package rl contains the reinforcement-learning algorithms behind action
// selection: DQN, PPO, SARSA and Q-Learning, all sharing one contract so the
// meta-learner and transfer manager can manipulate them uniformly.
package rl

import (
	"context"
	"fmt"
	"math"
	"sort"
)

// Type identifies an algorithm variant. The integer values are part of the
// persisted model file format, so they must not be renumbered.
type Type int32

const (
	TypeDQN       Type = 0
	TypePPO       Type = 1
	TypeSARSA     Type = 2
	TypeQLearning Type = 3
)

// String returns the lower-case variant name.
func (t Type) String() string {
	switch t {
	case TypeDQN:
		return "dqn"
	case TypePPO:
		return "ppo"
	case TypeSARSA:
		return "sarsa"
	case TypeQLearning:
		return "q-learning"
	default:
		return fmt.Sprintf("unknown(%d)", int32(t))
	}
}

// Types lists every supported variant.
func Types() []Type {
	return []Type{TypeDQN, TypePPO, TypeSARSA, TypeQLearning}
}

// RankedAction is one entry of a ChooseActions result: the action index with
// its estimated value and position in the ranking.
type RankedAction struct {
	Index int     `json:"index"`
	Score float32 `json:"score"`
	Rank  int     `json:"rank"`
}

// Environment is the minimal episodic environment Train runs against.
type Environment interface {
	// Reset starts a new episode and returns the initial state.
	Reset() []float32
	// Step applies an action and returns the next state, the reward, and
	// whether the episode terminated.
	Step(action int) ([]float32, float32, bool)
}

// Algorithm is the uniform contract over all variants. Implementations must
// never panic across this boundary: invalid inputs degrade to a random legal
// action and are logged.
type Algorithm interface {
	Type() Type

	// Initialize allocates weight storage for the declared dimensionality.
	// It is a one-time setup call; re-initializing discards learned data.
	Initialize(stateSize, actionSize int) error
	Initialized() bool
	StateSize() int
	ActionSize() int

	// ChooseAction picks one action with an epsilon-greedy (or, for PPO,
	// probability-sampled) policy. Every call decays the exploration rate
	// multiplicatively toward its floor.
	ChooseAction(state []float32) int

	// ChooseActions returns the top count actions strictly descending by
	// estimated value. If the action space is smaller, all are returned.
	ChooseActions(state []float32, count int) []RankedAction

	// Update records one transition and, when enough data has accumulated,
	// performs a training step.
	Update(state []float32, action int, nextState []float32, reward float32, done bool)

	// Train runs the full learning procedure for the episode budget and
	// returns the mean episodic reward.
	Train(ctx context.Context, env Environment, episodes, maxSteps int) (float32, error)

	// Reset clears learned weights and restores the initial exploration
	// rate, keeping the structural state/action sizes.
	Reset()

	Weights() []float32
	SetWeights(w []float32) error
	LearningRate() float32
	SetLearningRate(lr float32)
	DiscountFactor() float32
	SetDiscountFactor(gamma float32)
	ExplorationRate() float32
	SetExplorationRate(eps float32)
}

// New constructs a fresh, uninitialized algorithm of the given type.
func New(typ Type) (Algorithm, error) {
	switch typ {
	case TypeDQN:
		return NewDQN(), nil
	case TypePPO:
		return NewPPO(), nil
	case TypeSARSA:
		return NewSARSA(), nil
	case TypeQLearning:
		return NewQLearning(), nil
	default:
		return nil, fmt.Errorf("unsupported algorithm type %d", int32(typ))
	}
}

// rankActions sorts action indices by score, strictly descending, and
// truncates to count.
func rankActions(scores []float32, count int) []RankedAction {
	ranked := make([]RankedAction, len(scores))
	for i, s := range scores {
		ranked[i] = RankedAction{Index: i, Score: s}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	if count < len(ranked) {
		ranked = ranked[:count]
	}
	for i := range ranked {
		ranked[i].Rank = i
	}
	return ranked
}

func argmax(values []float32) int {
	best := 0
	for i := 1; i < len(values); i++ {
		if values[i] > values[best] {
			best = i
		}
	}
	return best
}

func allFinite(values []float32) bool {
	for _, v := range values {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}
