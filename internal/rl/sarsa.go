package rl

import "context"

// SARSA is the on-policy TD variant: the update target uses the action the
// current policy would actually take in the next state, exploration
// included, rather than the greedy maximum.
type SARSA struct {
	base
	model *linearModel
}

// NewSARSA creates an uninitialized SARSA algorithm.
func NewSARSA() *SARSA {
	return &SARSA{base: newBase("sarsa", 0.1, 0.95, 1.0, 0.01, 0.995)}
}

// Type implements Algorithm.
func (s *SARSA) Type() Type { return TypeSARSA }

// Initialize implements Algorithm.
func (s *SARSA) Initialize(stateSize, actionSize int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkInit(stateSize, actionSize); err != nil {
		return err
	}
	s.stateSize = stateSize
	s.actionSize = actionSize
	s.model = newLinearModel(stateSize, actionSize, s.rng)
	return nil
}

// ChooseAction implements Algorithm.
func (s *SARSA) ChooseAction(state []float32) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.decayExploration()

	if !s.validState(state) {
		return s.randomAction()
	}
	return s.policyAction(state)
}

// policyAction is epsilon-greedy selection without annealing, used both for
// acting and for the on-policy update target. Caller holds the lock.
func (s *SARSA) policyAction(state []float32) int {
	if s.rng.Float32() < s.exploration {
		return s.randomAction()
	}
	return argmax(s.model.values(state))
}

// ChooseActions implements Algorithm.
func (s *SARSA) ChooseActions(state []float32, count int) []RankedAction {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.validState(state) {
		return nil
	}
	return rankActions(s.model.values(state), count)
}

// Update implements Algorithm with the SARSA rule:
// Q(s,a) += lr * (r + gamma * Q(s',a') - Q(s,a)) where a' follows the policy.
func (s *SARSA) Update(state []float32, action int, nextState []float32, reward float32, done bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.validState(state) || len(nextState) != s.stateSize {
		s.log.Warn().Msg("dropping transition with mismatched dimensions")
		return
	}
	if action < 0 || action >= s.actionSize {
		s.log.Warn().Int("action", action).Msg("dropping transition with out-of-range action")
		return
	}

	target := reward
	if !done {
		nextAction := s.policyAction(nextState)
		target += s.discountFactor * s.model.value(nextState, nextAction)
	}
	tdError := target - s.model.value(state, action)

	snapshot := s.model.clone()
	s.model.adjust(state, action, s.learningRate*tdError)
	if !allFinite(s.model.weights) {
		s.log.Error().Msg("update produced non-finite weights, rolling back")
		s.model.copyFrom(snapshot)
	}
}

// Train implements Algorithm.
func (s *SARSA) Train(ctx context.Context, env Environment, episodes, maxSteps int) (float32, error) {
	return trainLoop(ctx, s, env, episodes, maxSteps)
}

// Reset implements Algorithm.
func (s *SARSA) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized() {
		s.model = newLinearModel(s.stateSize, s.actionSize, s.rng)
	}
	s.exploration = s.initialEps
}

// Weights implements Algorithm.
func (s *SARSA) Weights() []float32 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.model == nil {
		return nil
	}
	return append([]float32(nil), s.model.weights...)
}

// SetWeights implements Algorithm.
func (s *SARSA) SetWeights(w []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.model == nil {
		return errNotInitialized
	}
	if len(w) != len(s.model.weights) {
		return dimensionError(len(w), len(s.model.weights))
	}
	copy(s.model.weights, w)
	return nil
}
