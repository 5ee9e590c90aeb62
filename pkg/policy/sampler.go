package policy

import (
	"math/rand"
	"sync"

	"github.com/edgefleet/logship/pkg/logtypes"
)

// Sampler makes keep/drop decisions against the store's current policy.
type Sampler struct {
	store *Store

	mu  sync.Mutex
	rnd func() float64
}

// NewSampler creates a sampler reading from store. A nil draw function
// defaults to math/rand; tests inject a deterministic one.
func NewSampler(store *Store, draw func() float64) *Sampler {
	if draw == nil {
		src := rand.New(rand.NewSource(rand.Int63()))
		draw = src.Float64
	}
	return &Sampler{store: store, rnd: draw}
}

// ShouldKeep decides whether a record survives sampling. A resolved
// rate of 1.0 or higher keeps unconditionally, without consulting the
// random source, so keep-all levels are deterministic and immune to
// floating-point edge cases.
func (s *Sampler) ShouldKeep(level logtypes.Level, message string) bool {
	rate := s.store.Current().Rate(level, message)
	if rate >= 1.0 {
		return true
	}
	if rate <= 0 {
		return false
	}

	s.mu.Lock()
	draw := s.rnd()
	s.mu.Unlock()
	return draw <= rate
}
