package transfer

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gamepilot/gamepilot/internal/modelstore"
	"github.com/gamepilot/gamepilot/internal/rl"
)

// fixedScorer returns canned scores keyed by unordered id pair.
type fixedScorer struct {
	scores map[string]float32
}

func (f fixedScorer) Score(a, b GameProfile) float32 {
	if s, ok := f.scores[a.ID+"|"+b.ID]; ok {
		return s
	}
	return f.scores[b.ID+"|"+a.ID]
}

func newStore(t *testing.T) *modelstore.Store {
	t.Helper()
	store, err := modelstore.New(t.TempDir())
	require.NoError(t, err)
	return store
}

func trainedAlgo(t *testing.T, typ rl.Type, seed int64) rl.Algorithm {
	t.Helper()
	algo, err := rl.New(typ)
	require.NoError(t, err)
	require.NoError(t, algo.Initialize(4, 3))
	w := algo.Weights()
	rng := rand.New(rand.NewSource(seed))
	for i := range w {
		w[i] = rng.Float32()
	}
	require.NoError(t, algo.SetWeights(w))
	return algo
}

func TestDefaultScorer(t *testing.T) {
	scorer := DefaultScorer{}

	same := GameProfile{ID: "a", Type: "puzzle", MechanicsTags: []string{"match3", "timer"}}
	other := GameProfile{ID: "b", Type: "puzzle", MechanicsTags: []string{"match3", "timer"}}
	assert.Equal(t, float32(1.0), scorer.Score(same, other))

	differentType := GameProfile{ID: "c", Type: "runner"}
	assert.Equal(t, float32(0), scorer.Score(same, differentType))

	// Type match alone gives 0.5; partial tag overlap adds Jaccard/2.
	partial := GameProfile{ID: "d", Type: "puzzle", MechanicsTags: []string{"match3", "lives"}}
	score := scorer.Score(same, partial)
	assert.InDelta(t, 0.5+0.5*(1.0/3.0), float64(score), 1e-6)
}

func TestSimilarity_SymmetricAndCached(t *testing.T) {
	m := NewManager(newStore(t), fixedScorer{scores: map[string]float32{"a|b": 0.7}})
	m.RegisterGame(GameProfile{ID: "a"})
	m.RegisterGame(GameProfile{ID: "b"})

	assert.Equal(t, float32(0.7), m.Similarity("a", "b"))
	assert.Equal(t, float32(0.7), m.Similarity("b", "a"))

	// Unknown games score zero.
	assert.Equal(t, float32(0), m.Similarity("a", "nope"))
}

func TestInitializeWithTransfer_LoadsExistingModel(t *testing.T) {
	store := newStore(t)
	m := NewManager(store, nil)
	m.RegisterGame(GameProfile{ID: "g"})

	saved := trainedAlgo(t, rl.TypeDQN, 1)
	saved.SetLearningRate(0.007)
	require.NoError(t, store.Save("g", saved))

	fresh, err := rl.New(rl.TypeDQN)
	require.NoError(t, err)
	require.NoError(t, m.InitializeWithTransfer("g", fresh, 4, 3, false))

	assert.Equal(t, saved.Weights(), fresh.Weights())
	assert.Equal(t, float32(0.007), fresh.LearningRate())
}

func TestInitializeWithTransfer_ForceNewSkipsExisting(t *testing.T) {
	store := newStore(t)
	m := NewManager(store, nil)
	m.RegisterGame(GameProfile{ID: "g"})

	saved := trainedAlgo(t, rl.TypeDQN, 1)
	require.NoError(t, store.Save("g", saved))

	fresh, err := rl.New(rl.TypeDQN)
	require.NoError(t, err)
	require.NoError(t, m.InitializeWithTransfer("g", fresh, 4, 3, true))

	assert.NotEqual(t, saved.Weights(), fresh.Weights())
}

func TestInitializeWithTransfer_SeedsFromSimilarGame(t *testing.T) {
	store := newStore(t)
	m := NewManager(store, fixedScorer{scores: map[string]float32{"new|src": 0.41}})
	m.RegisterGame(GameProfile{ID: "new"})
	m.RegisterGame(GameProfile{ID: "src"})

	source := trainedAlgo(t, rl.TypeQLearning, 2)
	source.SetLearningRate(0.1)
	source.SetDiscountFactor(0.9)
	source.SetExplorationRate(0.2)
	require.NoError(t, store.Save("src", source))

	algo, err := rl.New(rl.TypeQLearning)
	require.NoError(t, err)
	require.NoError(t, m.InitializeWithTransfer("new", algo, 4, 3, false))

	assert.Equal(t, source.Weights(), algo.Weights())
	assert.InDelta(t, 0.1*1.5, float64(algo.LearningRate()), 1e-6)
	assert.InDelta(t, 0.2*2, float64(algo.ExplorationRate()), 1e-6)
	assert.Equal(t, float32(0.9), algo.DiscountFactor())

	// The seeded model is persisted for the new game immediately.
	assert.True(t, store.Exists("new", rl.TypeQLearning))
}

func TestInitializeWithTransfer_ExplorationCap(t *testing.T) {
	store := newStore(t)
	m := NewManager(store, fixedScorer{scores: map[string]float32{"new|src": 0.9}})
	m.RegisterGame(GameProfile{ID: "new"})
	m.RegisterGame(GameProfile{ID: "src"})

	source := trainedAlgo(t, rl.TypeSARSA, 3)
	source.SetExplorationRate(0.4)
	require.NoError(t, store.Save("src", source))

	algo, err := rl.New(rl.TypeSARSA)
	require.NoError(t, err)
	require.NoError(t, m.InitializeWithTransfer("new", algo, 4, 3, false))

	// 0.4 x 2 would be 0.8, capped at 0.5.
	assert.Equal(t, float32(0.5), algo.ExplorationRate())
}

func TestInitializeWithTransfer_ThresholdIsStrict(t *testing.T) {
	store := newStore(t)
	m := NewManager(store, fixedScorer{scores: map[string]float32{"new|src": 0.4}})
	m.RegisterGame(GameProfile{ID: "new"})
	m.RegisterGame(GameProfile{ID: "src"})

	source := trainedAlgo(t, rl.TypeDQN, 4)
	require.NoError(t, store.Save("src", source))

	algo, err := rl.New(rl.TypeDQN)
	require.NoError(t, err)
	require.NoError(t, m.InitializeWithTransfer("new", algo, 4, 3, false))

	// Exactly at the threshold does not qualify.
	assert.NotEqual(t, source.Weights(), algo.Weights())
	assert.False(t, store.Exists("new", rl.TypeDQN))
}

func TestInitializeWithTransfer_PrefersCandidateWithModel(t *testing.T) {
	store := newStore(t)
	m := NewManager(store, fixedScorer{scores: map[string]float32{
		"new|close":   0.9, // very similar but never trained
		"new|distant": 0.5,
	}})
	m.RegisterGame(GameProfile{ID: "new"})
	m.RegisterGame(GameProfile{ID: "close"})
	m.RegisterGame(GameProfile{ID: "distant"})

	source := trainedAlgo(t, rl.TypeDQN, 5)
	require.NoError(t, store.Save("distant", source))

	algo, err := rl.New(rl.TypeDQN)
	require.NoError(t, err)
	require.NoError(t, m.InitializeWithTransfer("new", algo, 4, 3, false))

	assert.Equal(t, source.Weights(), algo.Weights())
}

func TestInitializeWithTransfer_NilAlgorithm(t *testing.T) {
	m := NewManager(newStore(t), nil)
	assert.Error(t, m.InitializeWithTransfer("g", nil, 4, 3, false))
}
