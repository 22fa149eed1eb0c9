package rl

import (
	"context"
	"errors"
	"fmt"
)

var errNotInitialized = errors.New("algorithm not initialized")

func dimensionError(got, want int) error {
	return fmt.Errorf("weight vector length %d does not match expected %d", got, want)
}

// trainLoop is the shared offline learning procedure: run the episode budget
// against the environment, feeding every transition through Update, and
// return the mean episodic reward.
func trainLoop(ctx context.Context, algo Algorithm, env Environment, episodes, maxSteps int) (float32, error) {
	if env == nil {
		return 0, errors.New("nil environment")
	}
	if !algo.Initialized() {
		return 0, errNotInitialized
	}
	if episodes <= 0 {
		return 0, nil
	}

	var total float32
	for ep := 0; ep < episodes; ep++ {
		if err := ctx.Err(); err != nil {
			if ep == 0 {
				return 0, err
			}
			return total / float32(ep), err
		}

		state := env.Reset()
		var episodeReward float32
		for step := 0; step < maxSteps; step++ {
			action := algo.ChooseAction(state)
			next, reward, done := env.Step(action)
			algo.Update(state, action, next, reward, done)
			episodeReward += reward
			state = next
			if done {
				break
			}
		}
		total += episodeReward
	}
	return total / float32(episodes), nil
}
