package rl

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// linearModel is a per-action linear value function: one weight row per
// action over the state features plus a bias term. Weights are kept as a
// single flat vector so they can be persisted and transferred wholesale.
type linearModel struct {
	stateSize  int
	actionSize int
	weights    []float32 // actionSize rows of (stateSize + 1), bias last
}

func newLinearModel(stateSize, actionSize int, rng *rand.Rand) *linearModel {
	m := &linearModel{
		stateSize:  stateSize,
		actionSize: actionSize,
		weights:    make([]float32, actionSize*(stateSize+1)),
	}
	for i := range m.weights {
		m.weights[i] = (rng.Float32() - 0.5) * 0.1
	}
	return m
}

func (m *linearModel) row(action int) []float32 {
	start := action * (m.stateSize + 1)
	return m.weights[start : start+m.stateSize+1]
}

// value computes the estimated value of one action for a state.
func (m *linearModel) value(state []float32, action int) float32 {
	row := m.row(action)
	v := row[m.stateSize] // bias
	for i := 0; i < m.stateSize; i++ {
		v += row[i] * state[i]
	}
	return v
}

// values computes the estimated value of every action for a state.
func (m *linearModel) values(state []float32) []float32 {
	out := make([]float32, m.actionSize)
	for a := 0; a < m.actionSize; a++ {
		out[a] = m.value(state, a)
	}
	return out
}

// adjust applies a gradient step of magnitude delta to one action's row.
func (m *linearModel) adjust(state []float32, action int, delta float32) {
	row := m.row(action)
	for i := 0; i < m.stateSize; i++ {
		row[i] += delta * state[i]
	}
	row[m.stateSize] += delta
}

func (m *linearModel) clone() *linearModel {
	w := make([]float32, len(m.weights))
	copy(w, m.weights)
	return &linearModel{stateSize: m.stateSize, actionSize: m.actionSize, weights: w}
}

func (m *linearModel) copyFrom(other *linearModel) {
	copy(m.weights, other.weights)
}

// base carries the state shared by every algorithm variant: dimensions,
// hyperparameters, the exploration-annealing bookkeeping, and the RNG. The
// embedding algorithm's mutex guards all of it.
type base struct {
	mu sync.Mutex

	stateSize  int
	actionSize int

	learningRate   float32
	discountFactor float32
	exploration    float32
	explorationMin float32
	decay          float32
	initialEps     float32

	rng *rand.Rand
	log zerolog.Logger
}

func newBase(name string, lr, gamma, eps, epsMin, decay float32) base {
	return base{
		learningRate:   lr,
		discountFactor: gamma,
		exploration:    eps,
		explorationMin: epsMin,
		decay:          decay,
		initialEps:     eps,
		rng:            rand.New(rand.NewSource(time.Now().UnixNano())),
		log:            log.With().Str("component", "rl").Str("algorithm", name).Logger(),
	}
}

func (b *base) initialized() bool {
	return b.stateSize > 0 && b.actionSize > 0
}

func (b *base) checkInit(stateSize, actionSize int) error {
	if stateSize <= 0 || actionSize <= 0 {
		return fmt.Errorf("invalid dimensions: state=%d action=%d", stateSize, actionSize)
	}
	return nil
}

// decayExploration applies the annealing invariant: multiplicative decay
// clamped at the floor. Called after every action selection.
func (b *base) decayExploration() {
	b.exploration *= b.decay
	if b.exploration < b.explorationMin {
		b.exploration = b.explorationMin
	}
}

// validState reports whether the state can be scored against the declared
// dimensionality. Invalid states are logged and answered with a random
// legal action by the caller.
func (b *base) validState(state []float32) bool {
	if !b.initialized() {
		b.log.Warn().Msg("algorithm not initialized")
		return false
	}
	if len(state) != b.stateSize {
		b.log.Warn().Int("got", len(state)).Int("want", b.stateSize).Msg("state dimension mismatch")
		return false
	}
	return true
}

func (b *base) randomAction() int {
	if b.actionSize <= 0 {
		return 0
	}
	return b.rng.Intn(b.actionSize)
}

// Accessor implementations shared by all variants.

func (b *base) StateSize() int  { b.mu.Lock(); defer b.mu.Unlock(); return b.stateSize }
func (b *base) ActionSize() int { b.mu.Lock(); defer b.mu.Unlock(); return b.actionSize }

func (b *base) Initialized() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.initialized()
}

func (b *base) LearningRate() float32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.learningRate
}

func (b *base) SetLearningRate(lr float32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.learningRate = lr
}

func (b *base) DiscountFactor() float32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.discountFactor
}

func (b *base) SetDiscountFactor(gamma float32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.discountFactor = gamma
}

func (b *base) ExplorationRate() float32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.exploration
}

func (b *base) SetExplorationRate(eps float32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.exploration = eps
}
