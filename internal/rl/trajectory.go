package rl

// Trajectory is an ordered sequence of transitions collected during one or
// more episodes, used by policy-gradient updates.
type Trajectory struct {
	States   [][]float32
	Actions  []int
	Rewards  []float32
	Dones    []bool
	LogProbs []float32
	Values   []float32
}

// Append records one step.
func (t *Trajectory) Append(state []float32, action int, reward float32, done bool, logProb, value float32) {
	s := make([]float32, len(state))
	copy(s, state)
	t.States = append(t.States, s)
	t.Actions = append(t.Actions, action)
	t.Rewards = append(t.Rewards, reward)
	t.Dones = append(t.Dones, done)
	t.LogProbs = append(t.LogProbs, logProb)
	t.Values = append(t.Values, value)
}

// Len returns the number of recorded steps.
func (t *Trajectory) Len() int {
	return len(t.Rewards)
}

// Reset discards all recorded steps.
func (t *Trajectory) Reset() {
	t.States = t.States[:0]
	t.Actions = t.Actions[:0]
	t.Rewards = t.Rewards[:0]
	t.Dones = t.Dones[:0]
	t.LogProbs = t.LogProbs[:0]
	t.Values = t.Values[:0]
}

// Returns computes the discounted reward-to-go for every step, backward from
// the end of the trajectory. A terminal step zeroes out the carried-forward
// return:
//
//	G[i] = r[i] + gamma * G[i+1] * (1 - done[i])
func (t *Trajectory) Returns(gamma float32) []float32 {
	n := t.Len()
	returns := make([]float32, n)
	var carry float32
	for i := n - 1; i >= 0; i-- {
		if t.Dones[i] {
			carry = 0
		}
		carry = t.Rewards[i] + gamma*carry
		returns[i] = carry
	}
	return returns
}
