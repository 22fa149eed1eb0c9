package rl

import "context"

// QLearning is the off-policy TD variant: the update target maximizes over
// next-state values regardless of the action the policy would pick. Updates
// are applied per transition with no replay buffer.
type QLearning struct {
	base
	model *linearModel
}

// NewQLearning creates an uninitialized Q-Learning algorithm.
func NewQLearning() *QLearning {
	return &QLearning{base: newBase("q-learning", 0.1, 0.95, 1.0, 0.01, 0.995)}
}

// Type implements Algorithm.
func (q *QLearning) Type() Type { return TypeQLearning }

// Initialize implements Algorithm.
func (q *QLearning) Initialize(stateSize, actionSize int) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := q.checkInit(stateSize, actionSize); err != nil {
		return err
	}
	q.stateSize = stateSize
	q.actionSize = actionSize
	q.model = newLinearModel(stateSize, actionSize, q.rng)
	return nil
}

// ChooseAction implements Algorithm.
func (q *QLearning) ChooseAction(state []float32) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	defer q.decayExploration()

	if !q.validState(state) {
		return q.randomAction()
	}
	if q.rng.Float32() < q.exploration {
		return q.randomAction()
	}
	return argmax(q.model.values(state))
}

// ChooseActions implements Algorithm.
func (q *QLearning) ChooseActions(state []float32, count int) []RankedAction {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.validState(state) {
		return nil
	}
	return rankActions(q.model.values(state), count)
}

// Update implements Algorithm with the standard Q-Learning rule:
// Q(s,a) += lr * (r + gamma * max_a' Q(s',a') - Q(s,a)).
func (q *QLearning) Update(state []float32, action int, nextState []float32, reward float32, done bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.validState(state) || len(nextState) != q.stateSize {
		q.log.Warn().Msg("dropping transition with mismatched dimensions")
		return
	}
	if action < 0 || action >= q.actionSize {
		q.log.Warn().Int("action", action).Msg("dropping transition with out-of-range action")
		return
	}

	target := reward
	if !done {
		nextValues := q.model.values(nextState)
		target += q.discountFactor * nextValues[argmax(nextValues)]
	}
	tdError := target - q.model.value(state, action)

	snapshot := q.model.clone()
	q.model.adjust(state, action, q.learningRate*tdError)
	if !allFinite(q.model.weights) {
		q.log.Error().Msg("update produced non-finite weights, rolling back")
		q.model.copyFrom(snapshot)
	}
}

// Train implements Algorithm.
func (q *QLearning) Train(ctx context.Context, env Environment, episodes, maxSteps int) (float32, error) {
	return trainLoop(ctx, q, env, episodes, maxSteps)
}

// Reset implements Algorithm.
func (q *QLearning) Reset() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.initialized() {
		q.model = newLinearModel(q.stateSize, q.actionSize, q.rng)
	}
	q.exploration = q.initialEps
}

// Weights implements Algorithm.
func (q *QLearning) Weights() []float32 {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.model == nil {
		return nil
	}
	return append([]float32(nil), q.model.weights...)
}

// SetWeights implements Algorithm.
func (q *QLearning) SetWeights(w []float32) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.model == nil {
		return errNotInitialized
	}
	if len(w) != len(q.model.weights) {
		return dimensionError(len(w), len(q.model.weights))
	}
	copy(q.model.weights, w)
	return nil
}
