package rl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrajectory_ReturnsRecursion(t *testing.T) {
	var traj Trajectory
	traj.Append([]float32{0}, 0, 1.0, false, 0, 0)
	traj.Append([]float32{0}, 0, 2.0, false, 0, 0)
	traj.Append([]float32{0}, 0, 3.0, true, 0, 0)

	gamma := float32(0.9)
	returns := traj.Returns(gamma)
	require.Len(t, returns, 3)

	// G[2] = r2; G[1] = r1 + g*G[2]; G[0] = r0 + g*G[1].
	assert.InDelta(t, 3.0, returns[2], 1e-6)
	assert.InDelta(t, 2.0+0.9*3.0, returns[1], 1e-6)
	assert.InDelta(t, 1.0+0.9*(2.0+0.9*3.0), returns[0], 1e-6)
}

func TestTrajectory_TerminalZeroesCarry(t *testing.T) {
	// Two episodes in one trajectory: the terminal at index 1 must stop the
	// second episode's rewards from leaking into the first.
	var traj Trajectory
	traj.Append([]float32{0}, 0, 1.0, false, 0, 0)
	traj.Append([]float32{0}, 0, 5.0, true, 0, 0)
	traj.Append([]float32{0}, 0, 2.0, false, 0, 0)
	traj.Append([]float32{0}, 0, 4.0, true, 0, 0)

	gamma := float32(0.5)
	returns := traj.Returns(gamma)
	require.Len(t, returns, 4)

	assert.InDelta(t, 4.0, returns[3], 1e-6)
	assert.InDelta(t, 2.0+0.5*4.0, returns[2], 1e-6)
	assert.InDelta(t, 5.0, returns[1], 1e-6)
	assert.InDelta(t, 1.0+0.5*5.0, returns[0], 1e-6)
}

func TestTrajectory_Reset(t *testing.T) {
	var traj Trajectory
	traj.Append([]float32{1}, 0, 1.0, false, 0, 0)
	require.Equal(t, 1, traj.Len())

	traj.Reset()
	assert.Equal(t, 0, traj.Len())
	assert.Empty(t, traj.Returns(0.9))
}

func TestTrajectory_AppendCopiesState(t *testing.T) {
	state := []float32{1, 2}
	var traj Trajectory
	traj.Append(state, 0, 1.0, false, 0, 0)

	state[0] = 99
	assert.Equal(t, float32(1), traj.States[0][0])
}
