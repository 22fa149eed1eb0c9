// Package loop runs the capture -> decide -> execute/suggest cycle that ties
// perception, the RL algorithms, and the execution layer together.
package loop

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gamepilot/gamepilot/internal/events"
	"github.com/gamepilot/gamepilot/internal/knowledge"
	"github.com/gamepilot/gamepilot/internal/meta"
	"github.com/gamepilot/gamepilot/internal/metrics"
	"github.com/gamepilot/gamepilot/internal/modelstore"
	"github.com/gamepilot/gamepilot/internal/rl"
	"github.com/gamepilot/gamepilot/internal/types"
)

// Mode selects between autonomous execution and suggestion-only operation.
type Mode string

const (
	// ModeAuto executes the best candidate immediately when its expected
	// reward is strictly positive.
	ModeAuto Mode = "auto"
	// ModeCopilot surfaces ranked candidates and waits for explicit
	// feedback before anything is executed.
	ModeCopilot Mode = "copilot"
)

// Phase is the decision cycle state machine position.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseCapturing  Phase = "capturing"
	PhaseDeciding   Phase = "deciding"
	PhaseExecuting  Phase = "executing"
	PhaseSuggesting Phase = "suggesting"
)

// Perceptor supplies one GameState per capture. External collaborator.
type Perceptor interface {
	Capture(ctx context.Context) (*types.GameState, error)
}

// Executor performs an action on-device. External collaborator.
type Executor interface {
	Execute(ctx context.Context, action *types.Action) error
}

// ActionMapper translates an algorithm's action index into a concrete
// gesture for the current state.
type ActionMapper interface {
	ActionCount() int
	Materialize(state *types.GameState, index int) *types.Action
}

// Config holds the engine's timing and ranking parameters.
type Config struct {
	Mode              Mode
	GameID            string
	CycleInterval     time.Duration
	MinActionInterval time.Duration
	UserCooldown      time.Duration
	RepeatCooldown    time.Duration
	MaxSuggestions    int
	AutosaveInterval  time.Duration
}

// pending tracks a delivered suggestion awaiting its observed outcome.
type pending struct {
	action    *types.Action
	algorithm rl.Type
	state     *types.GameState
	stateKey  string
}

// Engine owns the decision loop. Cycles run serialized on a single
// background goroutine; feedback and status queries arrive from other
// goroutines and are guarded by the engine mutex.
type Engine struct {
	cfg       Config
	perceptor Perceptor
	executor  Executor
	mapper    ActionMapper
	sources   []Source
	selector  *meta.Selector
	store     *modelstore.Store
	knowledge *knowledge.Store
	publisher events.Publisher
	collector *metrics.Collector
	log       zerolog.Logger

	mu            sync.Mutex
	phase         Phase
	lastState     *types.GameState
	lastAction    *types.Action
	lastActionAt  time.Time
	lastUserInput time.Time
	suggestions   []*types.Suggestion
	pendings      map[string]pending
	pendingOrder  []string
	history       map[string][]historyEntry
	cycles        int64
	executed      int64
	skipped       int64
}

// maxPending bounds the feedback window: suggestions older than this many
// park/execute events can no longer receive feedback.
const maxPending = 256

// historyEntry is one previously-effective action for a state key.
type historyEntry struct {
	action    *types.Action
	avgReward float32
	uses      int
}

// New wires an engine from its collaborators. The selector must already
// hold initialized algorithms.
func New(cfg Config, perceptor Perceptor, executor Executor, mapper ActionMapper,
	selector *meta.Selector, store *modelstore.Store, kstore *knowledge.Store,
	publisher events.Publisher, collector *metrics.Collector) (*Engine, error) {

	if perceptor == nil || mapper == nil || selector == nil {
		return nil, errors.New("perceptor, mapper, and selector are required")
	}
	if cfg.Mode == ModeAuto && executor == nil {
		return nil, errors.New("auto mode requires an executor")
	}
	if cfg.MaxSuggestions <= 0 {
		cfg.MaxSuggestions = 5
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Engine{
		cfg:       cfg,
		perceptor: perceptor,
		executor:  executor,
		mapper:    mapper,
		selector:  selector,
		store:     store,
		knowledge: kstore,
		publisher: publisher,
		collector: collector,
		log:       log.With().Str("component", "loop").Str("mode", string(cfg.Mode)).Logger(),
		phase:     PhaseIdle,
		pendings:  make(map[string]pending),
		history:   make(map[string][]historyEntry),
	}, nil
}

// AddSource registers an additional candidate source.
func (e *Engine) AddSource(src Source) {
	e.sources = append(e.sources, src)
}

// Run drives cycles until the context is cancelled. Stopping only stops
// scheduling; a cycle already underway finishes.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.cfg.CycleInterval)
	defer ticker.Stop()

	var autosave <-chan time.Time
	if e.cfg.AutosaveInterval > 0 && e.store != nil {
		t := time.NewTicker(e.cfg.AutosaveInterval)
		defer t.Stop()
		autosave = t.C
	}

	e.log.Info().
		Dur("cycle_interval", e.cfg.CycleInterval).
		Str("game_id", e.cfg.GameID).
		Msg("decision loop started")

	for {
		select {
		case <-ctx.Done():
			e.log.Info().Msg("decision loop stopped")
			return ctx.Err()
		case <-autosave:
			e.saveModels()
		case <-ticker.C:
			e.runCycle(ctx)
		}
	}
}

// runCycle executes one pass of the state machine.
func (e *Engine) runCycle(ctx context.Context) {
	start := time.Now()
	outcome := e.cycle(ctx)

	e.mu.Lock()
	e.cycles++
	if outcome == "executed" {
		e.executed++
	} else if outcome == "skipped" {
		e.skipped++
	}
	e.phase = PhaseIdle
	e.mu.Unlock()

	if e.collector != nil {
		e.collector.CycleCompleted(string(e.cfg.Mode), outcome, time.Since(start))
	}
}

func (e *Engine) cycle(ctx context.Context) string {
	if reason := e.skipReason(); reason != "" {
		e.log.Debug().Str("reason", reason).Msg("cycle skipped")
		return "skipped"
	}

	e.setPhase(PhaseCapturing)
	state, err := e.perceptor.Capture(ctx)
	if err != nil || !state.Valid() {
		e.log.Warn().Err(err).Msg("capture failed, skipping cycle")
		return "skipped"
	}
	e.mu.Lock()
	e.lastState = state
	e.mu.Unlock()

	e.setPhase(PhaseDeciding)
	candidates, algoType := e.gatherCandidates(state)
	if len(candidates) == 0 {
		return "skipped"
	}

	top := candidates[0]
	if e.isRecentRepeat(top) {
		e.log.Debug().Str("kind", string(top.Kind)).Msg("near-duplicate of previous action, skipping")
		return "skipped"
	}

	cycleID := uuid.New().String()
	stateKey := state.Key()

	if e.cfg.Mode == ModeAuto {
		if top.ExpectedReward <= 0 {
			e.publishDecision(ctx, cycleID, state, "skipped", top, algoType)
			return "skipped"
		}
		e.setPhase(PhaseExecuting)
		if err := e.executor.Execute(ctx, top); err != nil {
			e.log.Error().Err(err).Msg("action execution failed")
			return "skipped"
		}
		e.recordExecution(top, algoType, state, stateKey)
		e.publishDecision(ctx, cycleID, state, "executed", top, algoType)
		if e.collector != nil {
			e.collector.ActionExecuted(state.GameID, string(top.Kind), top.Source, top.ExpectedReward)
		}
		return "executed"
	}

	e.setPhase(PhaseSuggesting)
	e.parkSuggestions(candidates, algoType, state, stateKey)
	e.publishDecision(ctx, cycleID, state, "suggested", top, algoType)
	return "suggested"
}

// skipReason checks the cooldown gates that cause a cycle to be skipped
// before capture.
func (e *Engine) skipReason() string {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := time.Now()
	if e.cfg.UserCooldown > 0 && !e.lastUserInput.IsZero() &&
		now.Sub(e.lastUserInput) < e.cfg.UserCooldown {
		return "user interaction cooldown"
	}
	if e.cfg.MinActionInterval > 0 && !e.lastActionAt.IsZero() &&
		now.Sub(e.lastActionAt) < e.cfg.MinActionInterval {
		return "minimum action interval"
	}
	return ""
}

// isRecentRepeat reports whether the candidate duplicates the immediately
// preceding action inside the repeat cooldown window.
func (e *Engine) isRecentRepeat(candidate *types.Action) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.lastAction == nil || e.cfg.RepeatCooldown <= 0 {
		return false
	}
	if time.Since(e.lastActionAt) >= e.cfg.RepeatCooldown {
		return false
	}
	return candidate.SameGesture(e.lastAction)
}

// gatherCandidates merges every source's proposals with the active
// algorithm's ranked actions into one list, descending by confidence, capped
// at MaxSuggestions.
func (e *Engine) gatherCandidates(state *types.GameState) ([]*types.Action, rl.Type) {
	var candidates []*types.Action

	for _, src := range e.sources {
		candidates = append(candidates, src.Propose(state)...)
	}

	algoType := e.selector.Best()
	if algo, ok := e.selector.Algorithm(algoType); ok && algo.Initialized() {
		ranked := algo.ChooseActions(state.Features, e.cfg.MaxSuggestions)
		for _, ra := range ranked {
			action := e.mapper.Materialize(state, ra.Index)
			if action == nil {
				continue
			}
			action.Index = ra.Index
			action.Confidence = ra.Score
			action.ExpectedReward = ra.Score
			action.Rank = ra.Rank
			action.Source = "rl:" + algoType.String()
			candidates = append(candidates, action)
		}
	}

	if e.cfg.Mode == ModeCopilot {
		candidates = append(candidates, e.historyCandidates(state)...)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Confidence > candidates[j].Confidence
	})
	if len(candidates) > e.cfg.MaxSuggestions {
		candidates = candidates[:e.cfg.MaxSuggestions]
	}
	for i, c := range candidates {
		c.Rank = i
	}
	return candidates, algoType
}

// historyCandidates proposes previously-effective actions for the current
// state key, weighted by the knowledge subsystem's domain confidence.
func (e *Engine) historyCandidates(state *types.GameState) []*types.Action {
	e.mu.Lock()
	entries := e.history[state.Key()]
	e.mu.Unlock()

	prior := float32(1.0)
	if e.knowledge != nil {
		if conf := e.knowledge.DomainConfidence(state.GameID); conf > 0 {
			prior = 0.5 + conf/2
		}
	}

	var out []*types.Action
	for _, entry := range entries {
		if entry.avgReward <= 0 {
			continue
		}
		action := *entry.action
		action.ID = uuid.New().String()
		action.Confidence = entry.avgReward * prior
		action.ExpectedReward = entry.avgReward
		action.Source = "history"
		out = append(out, &action)
	}
	return out
}

func (e *Engine) recordExecution(action *types.Action, algoType rl.Type, state *types.GameState, stateKey string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.lastAction = action
	e.lastActionAt = time.Now()
	e.addPending(action.ID, pending{
		action:    action,
		algorithm: algoType,
		state:     state,
		stateKey:  stateKey,
	})
}

// addPending inserts a feedback-awaiting entry, evicting the oldest once the
// window is full. Caller holds the lock.
func (e *Engine) addPending(id string, p pending) {
	if _, exists := e.pendings[id]; !exists {
		e.pendingOrder = append(e.pendingOrder, id)
	}
	e.pendings[id] = p
	for len(e.pendingOrder) > maxPending {
		evict := e.pendingOrder[0]
		e.pendingOrder = e.pendingOrder[1:]
		delete(e.pendings, evict)
	}
}

func (e *Engine) parkSuggestions(candidates []*types.Action, algoType rl.Type, state *types.GameState, stateKey string) {
	now := time.Now()
	suggestions := make([]*types.Suggestion, 0, len(candidates))
	for _, c := range candidates {
		suggestions = append(suggestions, &types.Suggestion{
			ID:        c.ID,
			StateKey:  stateKey,
			Action:    c,
			Algorithm: int(algoType),
			CreatedAt: now,
		})
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.suggestions = suggestions
	for _, c := range candidates {
		e.addPending(c.ID, pending{
			action:    c,
			algorithm: algoType,
			state:     state,
			stateKey:  stateKey,
		})
	}
}

func (e *Engine) publishDecision(ctx context.Context, cycleID string, state *types.GameState, outcome string, top *types.Action, algoType rl.Type) {
	event := events.DecisionEvent{
		CycleID:   cycleID,
		GameID:    state.GameID,
		StateKey:  state.Key(),
		Mode:      string(e.cfg.Mode),
		Outcome:   outcome,
		Algorithm: algoType.String(),
	}
	if top != nil {
		event.Source = top.Source
		event.Expected = top.ExpectedReward
	}
	if err := e.publisher.PublishDecision(ctx, event); err != nil {
		e.log.Error().Err(err).Msg("failed to publish decision event")
	}
}

// SubmitFeedback closes the loop for a delivered suggestion or executed
// action: the reward flows into the originating algorithm's Update, the
// meta-learner's tracker, and the per-state action history.
func (e *Engine) SubmitFeedback(ctx context.Context, fb types.Feedback) error {
	e.mu.Lock()
	p, ok := e.pendings[fb.SuggestionID]
	if ok {
		delete(e.pendings, fb.SuggestionID)
	}
	next := e.lastState
	e.mu.Unlock()

	if !ok {
		return fmt.Errorf("unknown suggestion %s", fb.SuggestionID)
	}

	if algo, found := e.selector.Algorithm(p.algorithm); found && algo.Initialized() {
		nextFeatures := p.state.Features
		if next != nil && len(next.Features) == len(p.state.Features) {
			nextFeatures = next.Features
		}
		algo.Update(p.state.Features, p.action.Index, nextFeatures, fb.Reward, false)
	}
	e.selector.RecordResult(p.algorithm, fb.Reward, fb.Success)

	e.recordHistory(p.stateKey, p.action, fb.Reward)
	for _, src := range e.sources {
		if obs, ok := src.(Observer); ok {
			obs.Observe(p.stateKey, p.action, fb.Reward, fb.Success)
		}
	}

	if e.collector != nil {
		e.collector.FeedbackRecorded(p.algorithm.String(), fb.Reward, fb.Success)
	}
	event := events.FeedbackEvent{
		SuggestionID: fb.SuggestionID,
		GameID:       p.state.GameID,
		Algorithm:    p.algorithm.String(),
		Reward:       fb.Reward,
		Success:      fb.Success,
	}
	if err := e.publisher.PublishFeedback(ctx, event); err != nil {
		e.log.Error().Err(err).Msg("failed to publish feedback event")
	}
	return nil
}

// recordHistory folds an observed reward into the state key's action
// history with an incremental mean.
func (e *Engine) recordHistory(stateKey string, action *types.Action, reward float32) {
	e.mu.Lock()
	defer e.mu.Unlock()

	entries := e.history[stateKey]
	for i := range entries {
		if entries[i].action.SameGesture(action) {
			entries[i].uses++
			entries[i].avgReward += (reward - entries[i].avgReward) / float32(entries[i].uses)
			return
		}
	}
	copied := *action
	e.history[stateKey] = append(entries, historyEntry{
		action:    &copied,
		avgReward: reward,
		uses:      1,
	})
}

// NotifyUserInteraction pauses the loop for the user cooldown window.
func (e *Engine) NotifyUserInteraction() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastUserInput = time.Now()
}

// Suggestions returns the current ranked Copilot suggestions.
func (e *Engine) Suggestions() []*types.Suggestion {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*types.Suggestion, len(e.suggestions))
	copy(out, e.suggestions)
	return out
}

// Status summarizes the engine's current state.
type Status struct {
	Mode      Mode   `json:"mode"`
	Phase     Phase  `json:"phase"`
	GameID    string `json:"game_id"`
	Cycles    int64  `json:"cycles"`
	Executed  int64  `json:"executed"`
	Skipped   int64  `json:"skipped"`
	Pending   int    `json:"pending_feedback"`
	Algorithm string `json:"algorithm"`
}

// CurrentStatus reports the loop's counters and active algorithm.
func (e *Engine) CurrentStatus() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Status{
		Mode:      e.cfg.Mode,
		Phase:     e.phase,
		GameID:    e.cfg.GameID,
		Cycles:    e.cycles,
		Executed:  e.executed,
		Skipped:   e.skipped,
		Pending:   len(e.pendings),
		Algorithm: e.selector.Best().String(),
	}
}

func (e *Engine) setPhase(p Phase) {
	e.mu.Lock()
	e.phase = p
	e.mu.Unlock()
}

// saveModels persists every initialized algorithm for the active game.
func (e *Engine) saveModels() {
	for _, typ := range rl.Types() {
		algo, ok := e.selector.Algorithm(typ)
		if !ok || !algo.Initialized() {
			continue
		}
		if err := e.store.Save(e.cfg.GameID, algo); err != nil {
			e.log.Error().Err(err).Str("algorithm", typ.String()).Msg("autosave failed")
			continue
		}
		if e.collector != nil {
			e.collector.ModelSaved(e.cfg.GameID, typ.String(), len(algo.Weights()))
		}
	}
}
