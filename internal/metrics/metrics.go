// Package metrics emits structured measurement events for the decision loop.
package metrics

import (
	"time"

	"github.com/rs/zerolog"
)

// Collector records decision-core measurements as structured log events.
type Collector struct {
	logger zerolog.Logger
}

func NewCollector(logger zerolog.Logger) *Collector {
	return &Collector{
		logger: logger,
	}
}

// Track a completed decision cycle
func (c *Collector) CycleCompleted(mode, outcome string, duration time.Duration) {
	c.logger.Info().
		Str("metric", "cycle_completed").
		Str("mode", mode).
		Str("outcome", outcome).
		Dur("duration", duration).
		Msg("Decision cycle metric")
}

// Track an executed action
func (c *Collector) ActionExecuted(gameID, kind, source string, expectedReward float32) {
	c.logger.Info().
		Str("metric", "action_executed").
		Str("game_id", gameID).
		Str("kind", kind).
		Str("source", source).
		Float32("expected_reward", expectedReward).
		Msg("Action execution metric")
}

// Track a feedback observation
func (c *Collector) FeedbackRecorded(algorithm string, reward float32, success bool) {
	c.logger.Info().
		Str("metric", "feedback_recorded").
		Str("algorithm", algorithm).
		Float32("reward", reward).
		Bool("success", success).
		Msg("Feedback metric")
}

// Track model persistence I/O
func (c *Collector) ModelSaved(gameID, algorithm string, weightCount int) {
	c.logger.Info().
		Str("metric", "model_saved").
		Str("game_id", gameID).
		Str("algorithm", algorithm).
		Int("weight_count", weightCount).
		Msg("Model persistence metric")
}
