package rl

import (
	"context"

	"github.com/gamepilot/gamepilot/internal/replay"
)

// DQN defaults.
const (
	dqnBatchSize      = 32
	dqnReplayCapacity = 10000
	dqnTargetSyncFreq = 10
)

// DQN is the value-based, off-policy variant: epsilon-greedy selection over a
// linear Q model, experience replay, and a periodically synced target model
// for stable TD targets.
type DQN struct {
	base

	online *linearModel
	target *linearModel
	buffer *replay.Buffer

	batchSize  int
	syncFreq   int
	trainSteps int
}

// NewDQN creates an uninitialized DQN with the default hyperparameters.
func NewDQN() *DQN {
	return &DQN{
		base:      newBase("dqn", 0.001, 0.95, 1.0, 0.01, 0.995),
		buffer:    replay.New(dqnReplayCapacity),
		batchSize: dqnBatchSize,
		syncFreq:  dqnTargetSyncFreq,
	}
}

// Type implements Algorithm.
func (d *DQN) Type() Type { return TypeDQN }

// Initialize implements Algorithm.
func (d *DQN) Initialize(stateSize, actionSize int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.checkInit(stateSize, actionSize); err != nil {
		return err
	}
	d.stateSize = stateSize
	d.actionSize = actionSize
	d.online = newLinearModel(stateSize, actionSize, d.rng)
	d.target = d.online.clone()
	d.trainSteps = 0
	return nil
}

// ChooseAction implements Algorithm.
func (d *DQN) ChooseAction(state []float32) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	defer d.decayExploration()

	if !d.validState(state) {
		return d.randomAction()
	}
	if d.rng.Float32() < d.exploration {
		return d.randomAction()
	}
	return argmax(d.online.values(state))
}

// ChooseActions implements Algorithm.
func (d *DQN) ChooseActions(state []float32, count int) []RankedAction {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.validState(state) {
		return nil
	}
	return rankActions(d.online.values(state), count)
}

// Update implements Algorithm: store the transition and train on a sampled
// batch once enough experience has accumulated.
func (d *DQN) Update(state []float32, action int, nextState []float32, reward float32, done bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.validState(state) || len(nextState) != d.stateSize {
		d.log.Warn().Msg("dropping transition with mismatched dimensions")
		return
	}
	if action < 0 || action >= d.actionSize {
		d.log.Warn().Int("action", action).Msg("dropping transition with out-of-range action")
		return
	}

	d.buffer.Store(replay.Experience{
		State:     append([]float32(nil), state...),
		Action:    action,
		Reward:    reward,
		NextState: append([]float32(nil), nextState...),
		Done:      done,
	})

	if d.buffer.Len() >= d.batchSize {
		d.trainBatch()
	}
}

// trainBatch performs one gradient step over a sampled batch. A step that
// produces non-finite weights is rolled back. Caller holds the lock.
func (d *DQN) trainBatch() {
	batch := d.buffer.SampleBatch(d.batchSize)
	if len(batch) == 0 {
		return
	}

	snapshot := d.online.clone()
	for _, exp := range batch {
		target := exp.Reward
		if !exp.Done {
			nextValues := d.target.values(exp.NextState)
			target += d.discountFactor * nextValues[argmax(nextValues)]
		}
		tdError := target - d.online.value(exp.State, exp.Action)
		d.online.adjust(exp.State, exp.Action, d.learningRate*tdError)
	}

	if !allFinite(d.online.weights) {
		d.log.Error().Msg("training step produced non-finite weights, rolling back")
		d.online.copyFrom(snapshot)
		return
	}

	d.trainSteps++
	if d.trainSteps%d.syncFreq == 0 {
		d.target.copyFrom(d.online)
	}
}

// Train implements Algorithm.
func (d *DQN) Train(ctx context.Context, env Environment, episodes, maxSteps int) (float32, error) {
	return trainLoop(ctx, d, env, episodes, maxSteps)
}

// Reset implements Algorithm.
func (d *DQN) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.initialized() {
		d.online = newLinearModel(d.stateSize, d.actionSize, d.rng)
		d.target = d.online.clone()
	}
	d.buffer.Clear()
	d.exploration = d.initialEps
	d.trainSteps = 0
}

// Weights implements Algorithm; only the online model is persisted, the
// target is rebuilt from it on load.
func (d *DQN) Weights() []float32 {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.online == nil {
		return nil
	}
	return append([]float32(nil), d.online.weights...)
}

// SetWeights implements Algorithm.
func (d *DQN) SetWeights(w []float32) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.online == nil {
		return errNotInitialized
	}
	if len(w) != len(d.online.weights) {
		return dimensionError(len(w), len(d.online.weights))
	}
	copy(d.online.weights, w)
	d.target.copyFrom(d.online)
	return nil
}

// SampleWithoutReplacement switches replay sampling to a no-duplicate draw.
func (d *DQN) SampleWithoutReplacement(enabled bool) {
	d.buffer.SetWithoutReplacement(enabled)
}

// BufferLen exposes the replay buffer size for tests and diagnostics.
func (d *DQN) BufferLen() int {
	return d.buffer.Len()
}

// TrainSteps reports how many batch training steps have run.
func (d *DQN) TrainSteps() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.trainSteps
}
