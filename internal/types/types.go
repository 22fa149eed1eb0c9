// Package types holds the value types shared across the decision core:
// observed game states, candidate actions, and feedback records.
package types

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ActionKind enumerates the input gestures the execution layer can perform.
type ActionKind string

const (
	ActionTap        ActionKind = "tap"
	ActionLongPress  ActionKind = "long_press"
	ActionSwipe      ActionKind = "swipe"
	ActionKeyPress   ActionKind = "key_press"
	ActionMultiTouch ActionKind = "multi_touch"
	ActionBack       ActionKind = "back"
	ActionHome       ActionKind = "home"
)

// Point is a screen coordinate in pixels.
type Point struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
}

// GameState is an immutable snapshot of the observed environment. It is
// produced once per perception cycle and consumed read-only by the core.
type GameState struct {
	GameID     string    `json:"game_id"`
	Features   []float32 `json:"features"`
	CapturedAt time.Time `json:"captured_at"`
}

// NewGameState copies the feature vector so later perception cycles cannot
// mutate a state already handed to the core.
func NewGameState(gameID string, features []float32) *GameState {
	fs := make([]float32, len(features))
	copy(fs, features)
	return &GameState{
		GameID:     gameID,
		Features:   fs,
		CapturedAt: time.Now(),
	}
}

// Key derives a lookup key from the game id and a coarse discretization of
// the feature vector, so near-identical captures index the same bucket.
func (s *GameState) Key() string {
	var b strings.Builder
	b.WriteString(s.GameID)
	for _, f := range s.Features {
		fmt.Fprintf(&b, ":%d", int(f*100))
	}
	return b.String()
}

// Valid reports whether the state carries a usable feature vector.
func (s *GameState) Valid() bool {
	return s != nil && len(s.Features) > 0
}

// Action is a single input gesture plus decision metadata. Actions are
// compared by ID when de-duplicating against recent history.
type Action struct {
	ID       string        `json:"id"`
	Kind     ActionKind    `json:"kind"`
	Position Point         `json:"position,omitempty"`
	EndPos   Point         `json:"end_pos,omitempty"`
	Touches  []Point       `json:"touches,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
	KeyCode  int           `json:"key_code,omitempty"`

	// Decision metadata.
	Index          int     `json:"index"`
	Confidence     float32 `json:"confidence"`
	ExpectedReward float32 `json:"expected_reward"`
	Source         string  `json:"source"`
	Rank           int     `json:"rank"`
}

// NewAction constructs an action of the given kind with a fresh identifier.
func NewAction(kind ActionKind) *Action {
	return &Action{ID: uuid.New().String(), Kind: kind}
}

// SameGesture reports whether two actions would produce effectively the same
// input: same kind and, for positional kinds, close coordinates.
func (a *Action) SameGesture(other *Action) bool {
	if a == nil || other == nil || a.Kind != other.Kind {
		return false
	}
	switch a.Kind {
	case ActionBack, ActionHome:
		return true
	case ActionKeyPress:
		return a.KeyCode == other.KeyCode
	default:
		dx := a.Position.X - other.Position.X
		dy := a.Position.Y - other.Position.Y
		return dx*dx+dy*dy < 25*25
	}
}

// Suggestion is a ranked candidate surfaced to the user in Copilot mode or
// executed directly in Auto mode.
type Suggestion struct {
	ID        string    `json:"id"`
	StateKey  string    `json:"state_key"`
	Action    *Action   `json:"action"`
	Algorithm int       `json:"algorithm,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Feedback closes the loop for a delivered suggestion or executed action.
type Feedback struct {
	SuggestionID string  `json:"suggestion_id"`
	Reward       float32 `json:"reward"`
	Success      bool    `json:"success"`
}
