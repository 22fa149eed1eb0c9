// Package sim provides a deterministic tap-target environment used by the
// offline train command and the end-to-end tests. It plays the role of the
// on-device perception and execution stack.
package sim

import (
	"context"
	"math/rand"
	"sync"

	"github.com/gamepilot/gamepilot/internal/types"
)

// TargetGame is an episodic game where exactly one of N screen regions is
// "hot" each step; acting on it scores, anything else costs a little.
type TargetGame struct {
	mu sync.Mutex

	gameID        string
	regions       int
	episodeLength int
	rng           *rand.Rand

	target int
	step   int
}

// NewTargetGame creates a game with the given number of tappable regions.
func NewTargetGame(gameID string, regions, episodeLength int, seed int64) *TargetGame {
	g := &TargetGame{
		gameID:        gameID,
		regions:       regions,
		episodeLength: episodeLength,
		rng:           rand.New(rand.NewSource(seed)),
	}
	g.target = g.rng.Intn(regions)
	return g
}

// features encodes the current board: 1.0 on the hot region, 0.1 elsewhere.
func (g *TargetGame) features() []float32 {
	fs := make([]float32, g.regions)
	for i := range fs {
		fs[i] = 0.1
	}
	fs[g.target] = 1.0
	return fs
}

// Reset implements rl.Environment.
func (g *TargetGame) Reset() []float32 {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.step = 0
	g.target = g.rng.Intn(g.regions)
	return g.features()
}

// Step implements rl.Environment.
func (g *TargetGame) Step(action int) ([]float32, float32, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	reward := float32(-0.1)
	if action == g.target {
		reward = 1.0
	}
	g.target = g.rng.Intn(g.regions)
	g.step++
	done := g.step >= g.episodeLength
	return g.features(), reward, done
}

// Capture implements loop.Perceptor.
func (g *TargetGame) Capture(ctx context.Context) (*types.GameState, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return types.NewGameState(g.gameID, g.features()), nil
}

// Execute implements loop.Executor: applying an action advances the game by
// one step using the action's index.
func (g *TargetGame) Execute(ctx context.Context, action *types.Action) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if action.Index == g.target {
		g.target = g.rng.Intn(g.regions)
	}
	g.step++
	return nil
}

// ActionCount implements loop.ActionMapper.
func (g *TargetGame) ActionCount() int {
	return g.regions
}

// Materialize implements loop.ActionMapper: region index i maps to a tap at
// the center of that region on a nominal 1080x1920 screen.
func (g *TargetGame) Materialize(state *types.GameState, index int) *types.Action {
	if index < 0 || index >= g.regions {
		return nil
	}
	cols := 3
	col := index % cols
	row := index / cols
	action := types.NewAction(types.ActionTap)
	action.Position = types.Point{
		X: 1080 / float32(cols) * (float32(col) + 0.5),
		Y: 1920 / float32((g.regions+cols-1)/cols) * (float32(row) + 0.5),
	}
	action.Index = index
	return action
}
