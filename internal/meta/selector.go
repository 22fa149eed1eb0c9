// Package meta tracks per-algorithm performance, adapts hyperparameters on a
// trial cadence, and selects the best-performing algorithm.
package meta

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gamepilot/gamepilot/internal/rl"
)

const (
	adaptEvery    = 10
	minTrials     = 10
	highReward    = 0.8
	lowReward     = 0.3
	highSuccess   = 0.7
	lowSuccess    = 0.3
	lrFloor       = 0.0001
	lrCeiling     = 0.5
	epsFloor      = 0.01
	epsCeiling    = 0.9
	gammaCeiling  = 0.999
	gammaStepSize = 0.001
)

// record is the running performance state for one algorithm type.
type record struct {
	Trials    int     `json:"trials"`
	Successes int     `json:"successes"`
	AvgReward float32 `json:"avg_reward"`
}

// Selector owns the performance records and the adaptation rules. Algorithms
// are registered once and mutated only through their accessor contract.
type Selector struct {
	mu         sync.Mutex
	algorithms map[rl.Type]rl.Algorithm
	records    map[rl.Type]*record
	override   *rl.Type
	adaptive   bool
	log        zerolog.Logger
}

// NewSelector creates a selector with adaptation enabled.
func NewSelector() *Selector {
	return &Selector{
		algorithms: make(map[rl.Type]rl.Algorithm),
		records:    make(map[rl.Type]*record),
		adaptive:   true,
		log:        log.With().Str("component", "meta").Logger(),
	}
}

// Register makes an algorithm eligible for selection and adaptation.
func (s *Selector) Register(algo rl.Algorithm) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.algorithms[algo.Type()] = algo
	if _, ok := s.records[algo.Type()]; !ok {
		s.records[algo.Type()] = &record{}
	}
}

// Algorithm returns the registered instance for a type.
func (s *Selector) Algorithm(typ rl.Type) (rl.Algorithm, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.algorithms[typ]
	return a, ok
}

// SetAdaptive toggles hyperparameter adaptation.
func (s *Selector) SetAdaptive(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.adaptive = enabled
}

// ForceAlgorithm pins selection to one type, bypassing performance ranking.
func (s *Selector) ForceAlgorithm(typ rl.Type) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.override = &typ
}

// ClearForced restores performance-based selection.
func (s *Selector) ClearForced() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.override = nil
}

// RecordResult folds one completed decision into the algorithm's running
// mean reward and success rate, re-tuning hyperparameters every ten trials.
func (s *Selector) RecordResult(typ rl.Type, reward float32, success bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[typ]
	if !ok {
		rec = &record{}
		s.records[typ] = rec
	}
	rec.Trials++
	if success {
		rec.Successes++
	}
	// Incremental mean: newAvg = oldAvg + (reward - oldAvg) / trials.
	rec.AvgReward += (reward - rec.AvgReward) / float32(rec.Trials)

	if s.adaptive && rec.Trials%adaptEvery == 0 {
		s.adapt(typ, rec)
	}
}

// adapt applies the threshold rules to the registered algorithm's
// hyperparameters. Caller holds the lock.
func (s *Selector) adapt(typ rl.Type, rec *record) {
	algo, ok := s.algorithms[typ]
	if !ok || rec.Trials < minTrials {
		return
	}

	if rec.AvgReward > highReward {
		lr := algo.LearningRate() * 0.95
		if lr < lrFloor {
			lr = lrFloor
		}
		algo.SetLearningRate(lr)
		s.log.Debug().Str("algorithm", typ.String()).Float32("lr", lr).Msg("converged, lowering learning rate")
	} else if rec.AvgReward < lowReward {
		lr := algo.LearningRate() * 1.05
		if lr > lrCeiling {
			lr = lrCeiling
		}
		algo.SetLearningRate(lr)
		s.log.Debug().Str("algorithm", typ.String()).Float32("lr", lr).Msg("stuck, raising learning rate")
	}

	successRate := float32(rec.Successes) / float32(rec.Trials)
	if successRate > highSuccess {
		eps := algo.ExplorationRate() * 0.95
		if eps < epsFloor {
			eps = epsFloor
		}
		algo.SetExplorationRate(eps)
	} else if successRate < lowSuccess {
		eps := algo.ExplorationRate() * 1.05
		if eps > epsCeiling {
			eps = epsCeiling
		}
		algo.SetExplorationRate(eps)
	}

	// DQN and PPO benefit from longer-horizon credit assignment.
	if typ == rl.TypeDQN || typ == rl.TypePPO {
		gamma := algo.DiscountFactor() + gammaStepSize
		if gamma > gammaCeiling {
			gamma = gammaCeiling
		}
		algo.SetDiscountFactor(gamma)
	}
}

// Best returns the algorithm type with the highest mean reward among those
// with at least ten trials, honoring a forced override first. With no
// qualifying record it defaults to Q-Learning.
func (s *Selector) Best() rl.Type {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.override != nil {
		return *s.override
	}

	best := rl.TypeQLearning
	bestReward := float32(-1e38)
	for typ, rec := range s.records {
		if rec.Trials >= minTrials && rec.AvgReward > bestReward {
			bestReward = rec.AvgReward
			best = typ
		}
	}
	return best
}

// BestAlgorithm resolves Best() to the registered instance.
func (s *Selector) BestAlgorithm() (rl.Algorithm, bool) {
	typ := s.Best()
	return s.Algorithm(typ)
}

// Stats reports the running performance for one type.
func (s *Selector) Stats(typ rl.Type) (trials int, successRate, avgReward float32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[typ]
	if !ok || rec.Trials == 0 {
		return 0, 0, 0
	}
	return rec.Trials, float32(rec.Successes) / float32(rec.Trials), rec.AvgReward
}

// SaveState persists the performance records as JSON. Persistence across
// restarts is a configurable choice; callers that prefer a fresh session
// simply never save or load.
func (s *Selector) SaveState(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(s.records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal selector state: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write selector state: %w", err)
	}
	return nil
}

// LoadState restores previously saved performance records. A missing file is
// not an error; the selector starts empty.
func (s *Selector) LoadState(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read selector state: %w", err)
	}

	records := make(map[rl.Type]*record)
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("parse selector state: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for typ, rec := range records {
		s.records[typ] = rec
	}
	return nil
}
