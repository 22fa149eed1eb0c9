package replay

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exp(reward float32) Experience {
	return Experience{
		State:     []float32{reward},
		Action:    0,
		Reward:    reward,
		NextState: []float32{reward + 1},
	}
}

func TestBuffer_CapacityInvariant(t *testing.T) {
	buf := New(3)

	for i := 0; i < 10; i++ {
		buf.Store(exp(float32(i)))
		assert.LessOrEqual(t, buf.Len(), 3)
	}

	// The retained entries are the most recently inserted ones.
	oldest, ok := buf.Oldest()
	require.True(t, ok)
	assert.Equal(t, float32(7), oldest.Reward)
}

func TestBuffer_FIFOEviction(t *testing.T) {
	buf := New(2)

	buf.Store(exp(1))
	buf.Store(exp(2))
	buf.Store(exp(3))

	oldest, ok := buf.Oldest()
	require.True(t, ok)
	assert.Equal(t, float32(2), oldest.Reward)
}

func TestBuffer_SampleBatch(t *testing.T) {
	buf := New(100, WithRand(rand.New(rand.NewSource(42))))

	for i := 0; i < 10; i++ {
		buf.Store(exp(float32(i)))
	}

	batch := buf.SampleBatch(5)
	assert.Len(t, batch, 5)

	// Requesting more than stored returns everything available.
	batch = buf.SampleBatch(50)
	assert.Len(t, batch, 10)

	// An empty buffer samples nothing.
	buf.Clear()
	assert.Nil(t, buf.SampleBatch(5))
}

func TestBuffer_SampleWithReplacementAllowsDuplicates(t *testing.T) {
	buf := New(10, WithRand(rand.New(rand.NewSource(7))))
	buf.Store(exp(1))
	buf.Store(exp(2))

	// With only two entries and many draws, duplicates are certain.
	batch := buf.SampleBatch(2)
	require.Len(t, batch, 2)

	seenDuplicate := false
	for i := 0; i < 50 && !seenDuplicate; i++ {
		b := buf.SampleBatch(2)
		seenDuplicate = b[0].Reward == b[1].Reward
	}
	assert.True(t, seenDuplicate)
}

func TestBuffer_SampleWithoutReplacement(t *testing.T) {
	buf := New(10, WithoutReplacement(), WithRand(rand.New(rand.NewSource(7))))
	for i := 0; i < 5; i++ {
		buf.Store(exp(float32(i)))
	}

	for trial := 0; trial < 20; trial++ {
		batch := buf.SampleBatch(5)
		require.Len(t, batch, 5)
		seen := map[float32]bool{}
		for _, e := range batch {
			assert.False(t, seen[e.Reward], "duplicate in without-replacement sample")
			seen[e.Reward] = true
		}
	}
}

func TestBuffer_ZeroCapacityClamped(t *testing.T) {
	buf := New(0)
	buf.Store(exp(1))
	assert.Equal(t, 1, buf.Len())
	assert.Equal(t, 1, buf.Capacity())
}
