package rl

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func allVariants(t *testing.T) []Algorithm {
	t.Helper()
	var algos []Algorithm
	for _, typ := range Types() {
		algo, err := New(typ)
		require.NoError(t, err)
		algos = append(algos, algo)
	}
	return algos
}

func TestNew_UnsupportedType(t *testing.T) {
	_, err := New(Type(99))
	assert.Error(t, err)
}

func TestInitialize_RejectsInvalidDimensions(t *testing.T) {
	for _, algo := range allVariants(t) {
		assert.Error(t, algo.Initialize(0, 3), algo.Type().String())
		assert.Error(t, algo.Initialize(4, -1), algo.Type().String())
		assert.False(t, algo.Initialized())
	}
}

func TestChooseAction_EpsilonDecayMonotone(t *testing.T) {
	for _, algo := range allVariants(t) {
		require.NoError(t, algo.Initialize(4, 3))

		prev := algo.ExplorationRate()
		for i := 0; i < 2000; i++ {
			algo.ChooseAction([]float32{0.1, 0.2, 0.3, 0.4})
			eps := algo.ExplorationRate()
			assert.LessOrEqual(t, eps, prev, algo.Type().String())
			assert.GreaterOrEqual(t, eps, float32(0.01), algo.Type().String())
			prev = eps
		}
		// After enough selections the floor has been reached.
		assert.InDelta(t, 0.01, float64(algo.ExplorationRate()), 1e-6, algo.Type().String())
	}
}

func TestChooseAction_ReturnsLegalIndex(t *testing.T) {
	for _, algo := range allVariants(t) {
		require.NoError(t, algo.Initialize(4, 3))
		for i := 0; i < 100; i++ {
			action := algo.ChooseAction([]float32{0.5, 0.1, 0.9, 0.2})
			assert.GreaterOrEqual(t, action, 0)
			assert.Less(t, action, 3)
		}
	}
}

func TestChooseAction_InvalidStateFallsBack(t *testing.T) {
	for _, algo := range allVariants(t) {
		require.NoError(t, algo.Initialize(4, 3))

		// Wrong dimensionality degrades to a random legal action.
		action := algo.ChooseAction([]float32{1})
		assert.GreaterOrEqual(t, action, 0, algo.Type().String())
		assert.Less(t, action, 3, algo.Type().String())

		action = algo.ChooseAction(nil)
		assert.GreaterOrEqual(t, action, 0)
		assert.Less(t, action, 3)
	}
}

func TestChooseActions_StrictlyDescending(t *testing.T) {
	for _, algo := range allVariants(t) {
		require.NoError(t, algo.Initialize(4, 5))

		ranked := algo.ChooseActions([]float32{0.3, 0.7, 0.1, 0.9}, 3)
		require.Len(t, ranked, 3, algo.Type().String())
		for i := range ranked {
			assert.Equal(t, i, ranked[i].Rank)
			if i > 0 {
				assert.GreaterOrEqual(t, ranked[i-1].Score, ranked[i].Score)
			}
		}

		// Requesting more than the action space returns all of it.
		ranked = algo.ChooseActions([]float32{0.3, 0.7, 0.1, 0.9}, 10)
		assert.Len(t, ranked, 5)
	}
}

func TestReset_RestoresExploration(t *testing.T) {
	for _, algo := range allVariants(t) {
		require.NoError(t, algo.Initialize(4, 3))

		for i := 0; i < 500; i++ {
			algo.ChooseAction([]float32{0.1, 0.2, 0.3, 0.4})
		}
		require.Less(t, algo.ExplorationRate(), float32(1.0))

		algo.Reset()
		assert.Equal(t, float32(1.0), algo.ExplorationRate(), algo.Type().String())
		assert.True(t, algo.Initialized(), "reset keeps structural sizes")
		assert.Equal(t, 4, algo.StateSize())
		assert.Equal(t, 3, algo.ActionSize())
	}
}

func TestSetWeights_RoundTrip(t *testing.T) {
	for _, algo := range allVariants(t) {
		require.NoError(t, algo.Initialize(4, 3))

		weights := algo.Weights()
		require.NotEmpty(t, weights)

		rng := rand.New(rand.NewSource(11))
		for i := range weights {
			weights[i] = rng.Float32()
		}
		require.NoError(t, algo.SetWeights(weights))
		assert.Equal(t, weights, algo.Weights(), algo.Type().String())

		// Mismatched length is rejected and leaves weights unchanged.
		before := algo.Weights()
		assert.Error(t, algo.SetWeights(make([]float32, len(weights)+1)))
		assert.Equal(t, before, algo.Weights())
	}
}

func TestHyperparameterAccessors(t *testing.T) {
	for _, algo := range allVariants(t) {
		algo.SetLearningRate(0.123)
		algo.SetDiscountFactor(0.87)
		algo.SetExplorationRate(0.42)

		assert.Equal(t, float32(0.123), algo.LearningRate())
		assert.Equal(t, float32(0.87), algo.DiscountFactor())
		assert.Equal(t, float32(0.42), algo.ExplorationRate())
	}
}

// stepEnv is a tiny two-state environment used by training tests.
type stepEnv struct {
	steps int
}

func (e *stepEnv) Reset() []float32 {
	e.steps = 0
	return []float32{1, 0}
}

func (e *stepEnv) Step(action int) ([]float32, float32, bool) {
	e.steps++
	reward := float32(-0.1)
	if action == 0 {
		reward = 1.0
	}
	return []float32{0, 1}, reward, e.steps >= 5
}

func TestTrain_ReturnsMeanEpisodicReward(t *testing.T) {
	for _, algo := range allVariants(t) {
		require.NoError(t, algo.Initialize(2, 2))

		avg, err := algo.Train(context.Background(), &stepEnv{}, 10, 5)
		require.NoError(t, err, algo.Type().String())
		// Five steps per episode bound the possible episodic reward.
		assert.LessOrEqual(t, avg, float32(5.0))
		assert.GreaterOrEqual(t, avg, float32(-0.5))
	}
}

func TestTrain_RequiresInitialization(t *testing.T) {
	algo := NewDQN()
	_, err := algo.Train(context.Background(), &stepEnv{}, 1, 5)
	assert.Error(t, err)
}

func TestTrain_CancelledBeforeFirstEpisode(t *testing.T) {
	algo := NewQLearning()
	require.NoError(t, algo.Initialize(2, 2))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	avg, err := algo.Train(ctx, &stepEnv{}, 10, 5)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, avg)
}

func TestTrain_NilEnvironment(t *testing.T) {
	algo := NewQLearning()
	require.NoError(t, algo.Initialize(2, 2))
	_, err := algo.Train(context.Background(), nil, 1, 5)
	assert.Error(t, err)
}
