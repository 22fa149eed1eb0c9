// Package knowledge is the adaptive memory subsystem: key-value items tagged
// by domain and source, with a confidence score derived from recency, usage
// and quantity. The decision loop consumes it read-only as a ranking prior.
package knowledge

import (
	"math"
	"sync"
	"time"
)

// Item is one memory entry.
type Item struct {
	Key        string    `json:"key"`
	Value      string    `json:"value"`
	Domain     string    `json:"domain"`
	Source     string    `json:"source"`
	Confidence float32   `json:"confidence"`
	UseCount   int       `json:"use_count"`
	CreatedAt  time.Time `json:"created_at"`
	LastUsedAt time.Time `json:"last_used_at"`
}

// Store holds knowledge items indexed by key.
type Store struct {
	mu    sync.RWMutex
	items map[string]*Item
	now   func() time.Time
}

// NewStore creates an empty knowledge store.
func NewStore() *Store {
	return &Store{
		items: make(map[string]*Item),
		now:   time.Now,
	}
}

// Put inserts or replaces an item, preserving usage history on replacement.
func (s *Store) Put(key, value, domain, source string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if existing, ok := s.items[key]; ok {
		existing.Value = value
		existing.Domain = domain
		existing.Source = source
		existing.LastUsedAt = now
		return
	}
	s.items[key] = &Item{
		Key:        key,
		Value:      value,
		Domain:     domain,
		Source:     source,
		Confidence: 0.5,
		CreatedAt:  now,
		LastUsedAt: now,
	}
}

// Get returns an item and records the access.
func (s *Store) Get(key string) (Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[key]
	if !ok {
		return Item{}, false
	}
	item.UseCount++
	item.LastUsedAt = s.now()
	return *item, true
}

// DomainConfidence returns the mean confidence across a domain's items,
// zero when the domain is empty.
func (s *Store) DomainConfidence(domain string) float32 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sum float32
	count := 0
	for _, item := range s.items {
		if item.Domain == domain {
			sum += item.Confidence
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return sum / float32(count)
}

// ByDomain returns copies of all items in a domain.
func (s *Store) ByDomain(domain string) []Item {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Item
	for _, item := range s.items {
		if item.Domain == domain {
			out = append(out, *item)
		}
	}
	return out
}

// Len returns the number of stored items.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Recalculate refreshes every item's confidence from recency of use, usage
// frequency, and how much corroborating knowledge the domain holds. Scores
// stay in [0,1]. Intended to be called periodically.
func (s *Store) Recalculate() {
	s.mu.Lock()
	defer s.mu.Unlock()

	domainCounts := make(map[string]int)
	for _, item := range s.items {
		domainCounts[item.Domain]++
	}

	now := s.now()
	for _, item := range s.items {
		age := now.Sub(item.LastUsedAt).Hours()
		recency := float32(math.Exp(-age / 168)) // one-week half-life scale

		usage := float32(item.UseCount) / float32(item.UseCount+5)

		quantity := float32(domainCounts[item.Domain]) / float32(domainCounts[item.Domain]+10)

		conf := 0.5*recency + 0.3*usage + 0.2*quantity
		if conf < 0 {
			conf = 0
		}
		if conf > 1 {
			conf = 1
		}
		item.Confidence = conf
	}
}
