// Package replay implements the bounded experience buffer that feeds
// batched training.
package replay

import (
	"math/rand"
	"sync"
	"time"
)

// Experience is one transition tuple. The buffer owns stored experiences;
// callers must not mutate them after Store.
type Experience struct {
	State     []float32
	Action    int
	Reward    float32
	NextState []float32
	Done      bool
}

// Buffer is a fixed-capacity FIFO store of experiences. Eviction is strictly
// oldest-first for reproducibility. Sampling is uniform with replacement by
// default; WithoutReplacement switches to a Fisher-Yates draw.
type Buffer struct {
	mu                 sync.Mutex
	entries            []Experience
	capacity           int
	rng                *rand.Rand
	withoutReplacement bool
}

// Option configures a Buffer.
type Option func(*Buffer)

// WithoutReplacement makes SampleBatch draw each entry at most once.
func WithoutReplacement() Option {
	return func(b *Buffer) { b.withoutReplacement = true }
}

// WithRand overrides the sampling source, used by tests for determinism.
func WithRand(rng *rand.Rand) Option {
	return func(b *Buffer) { b.rng = rng }
}

// New creates a buffer holding at most capacity experiences.
func New(capacity int, opts ...Option) *Buffer {
	if capacity <= 0 {
		capacity = 1
	}
	b := &Buffer{
		entries:  make([]Experience, 0, capacity),
		capacity: capacity,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Store appends an experience, evicting the oldest entry once the buffer
// exceeds capacity.
func (b *Buffer) Store(exp Experience) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries = append(b.entries, exp)
	if len(b.entries) > b.capacity {
		copy(b.entries, b.entries[1:])
		b.entries = b.entries[:len(b.entries)-1]
	}
}

// SampleBatch returns min(n, Len) experiences drawn uniformly at random.
func (b *Buffer) SampleBatch(n int) []Experience {
	b.mu.Lock()
	defer b.mu.Unlock()

	if n > len(b.entries) {
		n = len(b.entries)
	}
	if n <= 0 {
		return nil
	}

	batch := make([]Experience, n)
	if b.withoutReplacement {
		indices := b.rng.Perm(len(b.entries))
		for i := 0; i < n; i++ {
			batch[i] = b.entries[indices[i]]
		}
		return batch
	}
	for i := 0; i < n; i++ {
		batch[i] = b.entries[b.rng.Intn(len(b.entries))]
	}
	return batch
}

// SetWithoutReplacement switches the sampling mode at runtime.
func (b *Buffer) SetWithoutReplacement(enabled bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.withoutReplacement = enabled
}

// Len returns the number of stored experiences.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// Capacity returns the configured maximum size.
func (b *Buffer) Capacity() int {
	return b.capacity
}

// Clear discards all stored experiences.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = b.entries[:0]
}

// Oldest returns the oldest retained experience, used by tests to verify
// FIFO eviction order.
func (b *Buffer) Oldest() (Experience, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.entries) == 0 {
		return Experience{}, false
	}
	return b.entries[0], true
}
