package rl

import (
	"context"
	"math"
)

// PPO defaults.
const (
	ppoHorizon   = 64
	ppoClipRange = 0.2
	ppoEpochs    = 4
)

// PPO is the policy-gradient variant: actions are sampled from a softmax
// policy over linear logits, and updates batch over whole trajectories using
// a clipped surrogate objective with a linear value baseline.
type PPO struct {
	base

	policy *linearModel
	value  *linearModel // single row: state baseline

	trajectory Trajectory
	horizon    int
	clipRange  float32
	epochs     int
}

// NewPPO creates an uninitialized PPO algorithm.
func NewPPO() *PPO {
	return &PPO{
		base:      newBase("ppo", 0.0003, 0.99, 1.0, 0.01, 0.995),
		horizon:   ppoHorizon,
		clipRange: ppoClipRange,
		epochs:    ppoEpochs,
	}
}

// Type implements Algorithm.
func (p *PPO) Type() Type { return TypePPO }

// Initialize implements Algorithm.
func (p *PPO) Initialize(stateSize, actionSize int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.checkInit(stateSize, actionSize); err != nil {
		return err
	}
	p.stateSize = stateSize
	p.actionSize = actionSize
	p.policy = newLinearModel(stateSize, actionSize, p.rng)
	p.value = newLinearModel(stateSize, 1, p.rng)
	p.trajectory.Reset()
	return nil
}

// probs computes the softmax action distribution for a state. Caller holds
// the lock.
func (p *PPO) probs(state []float32) []float32 {
	logits := p.policy.values(state)
	maxLogit := logits[argmax(logits)]
	sum := float32(0)
	out := make([]float32, len(logits))
	for i, l := range logits {
		e := float32(math.Exp(float64(l - maxLogit)))
		out[i] = e
		sum += e
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// ChooseAction implements Algorithm: sample from the learned distribution,
// with the shared epsilon-uniform exploration floor and annealing.
func (p *PPO) ChooseAction(state []float32) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	defer p.decayExploration()

	if !p.validState(state) {
		return p.randomAction()
	}
	if p.rng.Float32() < p.exploration {
		return p.randomAction()
	}

	probs := p.probs(state)
	r := p.rng.Float32()
	var cum float32
	for i, pr := range probs {
		cum += pr
		if r <= cum {
			return i
		}
	}
	return len(probs) - 1
}

// ChooseActions implements Algorithm, ranking by policy probability.
func (p *PPO) ChooseActions(state []float32, count int) []RankedAction {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.validState(state) {
		return nil
	}
	return rankActions(p.probs(state), count)
}

// Update implements Algorithm: append to the current trajectory and run a
// batched policy update at episode end or when the horizon fills.
func (p *PPO) Update(state []float32, action int, nextState []float32, reward float32, done bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.validState(state) || len(nextState) != p.stateSize {
		p.log.Warn().Msg("dropping transition with mismatched dimensions")
		return
	}
	if action < 0 || action >= p.actionSize {
		p.log.Warn().Int("action", action).Msg("dropping transition with out-of-range action")
		return
	}

	probs := p.probs(state)
	logProb := float32(math.Log(float64(probs[action]) + 1e-8))
	p.trajectory.Append(state, action, reward, done, logProb, p.value.value(state, 0))

	if done || p.trajectory.Len() >= p.horizon {
		p.trainTrajectory()
		p.trajectory.Reset()
	}
}

// trainTrajectory runs the clipped-surrogate update over the collected
// trajectory. A pass producing non-finite weights is rolled back wholesale.
// Caller holds the lock.
func (p *PPO) trainTrajectory() {
	n := p.trajectory.Len()
	if n == 0 {
		return
	}

	returns := p.trajectory.Returns(p.discountFactor)
	policySnapshot := p.policy.clone()
	valueSnapshot := p.value.clone()

	for epoch := 0; epoch < p.epochs; epoch++ {
		for i := 0; i < n; i++ {
			state := p.trajectory.States[i]
			action := p.trajectory.Actions[i]
			advantage := returns[i] - p.trajectory.Values[i]

			probs := p.probs(state)
			newLogProb := float32(math.Log(float64(probs[action]) + 1e-8))
			ratio := float32(math.Exp(float64(newLogProb - p.trajectory.LogProbs[i])))

			// Clipped surrogate: once the ratio leaves the trust region in
			// the direction the advantage is pushing, the gradient is zero.
			if (advantage > 0 && ratio > 1+p.clipRange) || (advantage < 0 && ratio < 1-p.clipRange) {
				continue
			}

			// d log pi(a|s) / d logit_k = 1{k==a} - pi(k|s)
			for a := 0; a < p.actionSize; a++ {
				grad := -probs[a]
				if a == action {
					grad += 1
				}
				p.policy.adjust(state, a, p.learningRate*advantage*grad)
			}

			// Value baseline regression toward the observed return.
			valueErr := returns[i] - p.value.value(state, 0)
			p.value.adjust(state, 0, p.learningRate*valueErr)
		}
	}

	if !allFinite(p.policy.weights) || !allFinite(p.value.weights) {
		p.log.Error().Msg("trajectory update produced non-finite weights, rolling back")
		p.policy.copyFrom(policySnapshot)
		p.value.copyFrom(valueSnapshot)
	}
}

// Train implements Algorithm.
func (p *PPO) Train(ctx context.Context, env Environment, episodes, maxSteps int) (float32, error) {
	return trainLoop(ctx, p, env, episodes, maxSteps)
}

// Reset implements Algorithm.
func (p *PPO) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.initialized() {
		p.policy = newLinearModel(p.stateSize, p.actionSize, p.rng)
		p.value = newLinearModel(p.stateSize, 1, p.rng)
	}
	p.trajectory.Reset()
	p.exploration = p.initialEps
}

// Weights implements Algorithm; policy and value weights are concatenated
// into one flat vector for storage and transfer.
func (p *PPO) Weights() []float32 {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.policy == nil {
		return nil
	}
	out := make([]float32, 0, len(p.policy.weights)+len(p.value.weights))
	out = append(out, p.policy.weights...)
	out = append(out, p.value.weights...)
	return out
}

// SetWeights implements Algorithm.
func (p *PPO) SetWeights(w []float32) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.policy == nil {
		return errNotInitialized
	}
	want := len(p.policy.weights) + len(p.value.weights)
	if len(w) != want {
		return dimensionError(len(w), want)
	}
	copy(p.policy.weights, w[:len(p.policy.weights)])
	copy(p.value.weights, w[len(p.policy.weights):])
	return nil
}
