package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGameState_CopiesFeatures(t *testing.T) {
	features := []float32{0.1, 0.2}
	state := NewGameState("g", features)

	features[0] = 9.9
	assert.Equal(t, float32(0.1), state.Features[0])
}

func TestGameState_KeyBucketsNearbyStates(t *testing.T) {
	a := NewGameState("g", []float32{0.501, 0.250})
	b := NewGameState("g", []float32{0.509, 0.251})
	c := NewGameState("g", []float32{0.52, 0.25})

	assert.Equal(t, a.Key(), b.Key(), "sub-centile differences collapse")
	assert.NotEqual(t, a.Key(), c.Key())

	other := NewGameState("other", []float32{0.501, 0.250})
	assert.NotEqual(t, a.Key(), other.Key(), "key includes the game id")
}

func TestGameState_Valid(t *testing.T) {
	assert.True(t, NewGameState("g", []float32{1}).Valid())
	assert.False(t, NewGameState("g", nil).Valid())
	assert.False(t, (*GameState)(nil).Valid())
}

func TestNewAction_FreshIdentifiers(t *testing.T) {
	a := NewAction(ActionTap)
	b := NewAction(ActionTap)
	require.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestSameGesture(t *testing.T) {
	tap := func(x, y float32) *Action {
		a := NewAction(ActionTap)
		a.Position = Point{X: x, Y: y}
		return a
	}

	assert.True(t, tap(100, 100).SameGesture(tap(110, 115)), "within the 25px radius")
	assert.False(t, tap(100, 100).SameGesture(tap(100, 130)))

	swipe := NewAction(ActionSwipe)
	swipe.Position = Point{X: 100, Y: 100}
	assert.False(t, tap(100, 100).SameGesture(swipe), "different kinds never match")

	back1, back2 := NewAction(ActionBack), NewAction(ActionHome)
	assert.True(t, back1.SameGesture(NewAction(ActionBack)))
	assert.False(t, back1.SameGesture(back2))

	key1, key2 := NewAction(ActionKeyPress), NewAction(ActionKeyPress)
	key1.KeyCode, key2.KeyCode = 66, 66
	assert.True(t, key1.SameGesture(key2))
	key2.KeyCode = 4
	assert.False(t, key1.SameGesture(key2))

	assert.False(t, tap(0, 0).SameGesture(nil))
	assert.False(t, (*Action)(nil).SameGesture(tap(0, 0)))
}
