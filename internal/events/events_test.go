package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	name      string
	decisions []DecisionEvent
	feedbacks []FeedbackEvent
	order     *[]string
}

func (r *recorder) OnDecision(event DecisionEvent) {
	r.decisions = append(r.decisions, event)
	if r.order != nil {
		*r.order = append(*r.order, r.name)
	}
}

func (r *recorder) OnFeedback(event FeedbackEvent) {
	r.feedbacks = append(r.feedbacks, event)
}

func TestObserverPublisher_DeliversInRegistrationOrder(t *testing.T) {
	pub := NewObserverPublisher()
	var order []string
	first := &recorder{name: "first", order: &order}
	second := &recorder{name: "second", order: &order}
	pub.Subscribe(first)
	pub.Subscribe(second)

	event := DecisionEvent{CycleID: "c1", Outcome: "executed"}
	require.NoError(t, pub.PublishDecision(context.Background(), event))

	assert.Equal(t, []string{"first", "second"}, order)
	require.Len(t, first.decisions, 1)
	assert.Equal(t, event, first.decisions[0])
}

func TestObserverPublisher_Unsubscribe(t *testing.T) {
	pub := NewObserverPublisher()
	kept := &recorder{}
	dropped := &recorder{}
	pub.Subscribe(kept)
	pub.Subscribe(dropped)
	pub.Unsubscribe(dropped)

	require.NoError(t, pub.PublishFeedback(context.Background(), FeedbackEvent{SuggestionID: "s1"}))

	assert.Len(t, kept.feedbacks, 1)
	assert.Empty(t, dropped.feedbacks)
}

// selfRemover unsubscribes itself from inside its own callback.
type selfRemover struct {
	pub   *ObserverPublisher
	calls int
}

func (s *selfRemover) OnDecision(DecisionEvent) {
	s.calls++
	s.pub.Unsubscribe(s)
}

func (s *selfRemover) OnFeedback(FeedbackEvent) {}

func TestObserverPublisher_UnsubscribeDuringDelivery(t *testing.T) {
	pub := NewObserverPublisher()
	remover := &selfRemover{pub: pub}
	after := &recorder{}
	pub.Subscribe(remover)
	pub.Subscribe(after)

	require.NoError(t, pub.PublishDecision(context.Background(), DecisionEvent{CycleID: "c1"}))
	require.NoError(t, pub.PublishDecision(context.Background(), DecisionEvent{CycleID: "c2"}))

	assert.Equal(t, 1, remover.calls, "removed after its first delivery")
	assert.Len(t, after.decisions, 2, "remaining listeners unaffected")
}

func TestNopPublisher(t *testing.T) {
	var pub NopPublisher
	assert.NoError(t, pub.PublishDecision(context.Background(), DecisionEvent{}))
	assert.NoError(t, pub.PublishFeedback(context.Background(), FeedbackEvent{}))
}
