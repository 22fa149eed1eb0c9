// Package transfer seeds a new game's algorithm from the most similar game
// that already has a trained model.
package transfer

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gamepilot/gamepilot/internal/modelstore"
	"github.com/gamepilot/gamepilot/internal/rl"
)

// minSimilarity is the threshold a source game must strictly exceed to be
// considered a transfer candidate.
const minSimilarity = 0.4

// GameProfile describes a known game for similarity scoring.
type GameProfile struct {
	ID             string
	Type           string
	MechanicsTags  []string
	LayoutFeatures []float32
}

// Scorer computes a similarity score in [0,1] between two game profiles.
// Implementations must be symmetric.
type Scorer interface {
	Score(a, b GameProfile) float32
}

// DefaultScorer awards a flat 0.5 for an exact game-type match plus a
// contribution from mechanics-tag overlap. The weighting is policy, not
// contract; only the threshold gate is fixed.
type DefaultScorer struct{}

// Score implements Scorer.
func (DefaultScorer) Score(a, b GameProfile) float32 {
	var score float32
	if a.Type != "" && a.Type == b.Type {
		score += 0.5
	}
	if len(a.MechanicsTags) > 0 && len(b.MechanicsTags) > 0 {
		tags := make(map[string]bool, len(a.MechanicsTags))
		for _, t := range a.MechanicsTags {
			tags[t] = true
		}
		shared := 0
		for _, t := range b.MechanicsTags {
			if tags[t] {
				shared++
			}
		}
		union := len(a.MechanicsTags) + len(b.MechanicsTags) - shared
		if union > 0 {
			score += 0.5 * float32(shared) / float32(union)
		}
	}
	if score > 1 {
		score = 1
	}
	return score
}

// Manager performs transfer-aware algorithm initialization.
type Manager struct {
	mu       sync.Mutex
	store    *modelstore.Store
	scorer   Scorer
	games    map[string]GameProfile
	simCache map[string]float32
	log      zerolog.Logger
}

// NewManager creates a Manager using the given model store and scorer. A nil
// scorer falls back to DefaultScorer.
func NewManager(store *modelstore.Store, scorer Scorer) *Manager {
	if scorer == nil {
		scorer = DefaultScorer{}
	}
	return &Manager{
		store:    store,
		scorer:   scorer,
		games:    make(map[string]GameProfile),
		simCache: make(map[string]float32),
		log:      log.With().Str("component", "transfer").Logger(),
	}
}

// RegisterGame adds or replaces a game profile in the registry.
func (m *Manager) RegisterGame(profile GameProfile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.games[profile.ID] = profile
}

// Similarity returns the cached-or-computed symmetric similarity between two
// registered games. Unknown games score zero.
func (m *Manager) Similarity(aID, bID string) float32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.similarityLocked(aID, bID)
}

func (m *Manager) similarityLocked(aID, bID string) float32 {
	key := aID + "|" + bID
	if score, ok := m.simCache[key]; ok {
		return score
	}
	a, okA := m.games[aID]
	b, okB := m.games[bID]
	var score float32
	if okA && okB {
		score = m.scorer.Score(a, b)
	}
	m.simCache[key] = score
	m.simCache[bID+"|"+aID] = score
	return score
}

// InitializeWithTransfer prepares algo for gameID. Order of preference:
// an existing persisted model for the game itself (unless forceNew), then a
// seeded copy from the most similar game above the threshold that has a
// model of the same type, then a fresh structural initialization.
//
// A transferred model learns faster and explores more than its converged
// source: learning rate x1.5, exploration rate x2 capped at 0.5.
func (m *Manager) InitializeWithTransfer(gameID string, algo rl.Algorithm, stateSize, actionSize int, forceNew bool) error {
	if algo == nil {
		return fmt.Errorf("nil algorithm")
	}

	if err := algo.Initialize(stateSize, actionSize); err != nil {
		return fmt.Errorf("initialize %s: %w", algo.Type(), err)
	}

	if !forceNew && m.store.Exists(gameID, algo.Type()) {
		if err := m.store.Load(gameID, algo); err == nil {
			m.log.Info().Str("game_id", gameID).Str("algorithm", algo.Type().String()).
				Msg("loaded existing model")
			return nil
		}
		m.log.Warn().Str("game_id", gameID).Msg("existing model unreadable, falling back")
	}

	sourceID, similarity := m.findTransferSource(gameID, algo.Type())
	if sourceID == "" {
		m.log.Info().Str("game_id", gameID).Str("algorithm", algo.Type().String()).
			Msg("no transfer candidate, fresh initialization")
		return nil
	}

	source, err := rl.New(algo.Type())
	if err != nil {
		return err
	}
	if err := source.Initialize(stateSize, actionSize); err != nil {
		return err
	}
	if err := m.store.Load(sourceID, source); err != nil {
		m.log.Warn().Err(err).Str("source", sourceID).Msg("transfer source unreadable, fresh initialization")
		return nil
	}
	if err := algo.SetWeights(source.Weights()); err != nil {
		m.log.Warn().Err(err).Str("source", sourceID).Msg("transfer source incompatible, fresh initialization")
		return nil
	}

	algo.SetDiscountFactor(source.DiscountFactor())
	algo.SetLearningRate(source.LearningRate() * 1.5)
	eps := source.ExplorationRate() * 2
	if eps > 0.5 {
		eps = 0.5
	}
	algo.SetExplorationRate(eps)

	if err := m.store.Save(gameID, algo); err != nil {
		m.log.Error().Err(err).Str("game_id", gameID).Msg("failed to persist transferred model")
	}

	m.log.Info().
		Str("game_id", gameID).
		Str("source", sourceID).
		Float32("similarity", similarity).
		Str("algorithm", algo.Type().String()).
		Msg("seeded model via transfer")
	return nil
}

// findTransferSource returns the registered game with the highest similarity
// strictly above the threshold that has a persisted model of typ.
func (m *Manager) findTransferSource(gameID string, typ rl.Type) (string, float32) {
	m.mu.Lock()
	defer m.mu.Unlock()

	bestID := ""
	bestScore := float32(minSimilarity)
	for id := range m.games {
		if id == gameID {
			continue
		}
		if !m.store.Exists(id, typ) {
			continue
		}
		if score := m.similarityLocked(gameID, id); score > bestScore {
			bestScore = score
			bestID = id
		}
	}
	if bestID == "" {
		return "", 0
	}
	return bestID, bestScore
}
