package store

import (
	"errors"
	"sync"
	"time"

	"github.com/i474232898/caci-forecaster/internal/pipeline"
)

var (
	// ErrNotFound is returned when no run outcome matches.
	ErrNotFound = errors.New("no pipeline runs recorded")
)

// MemoryStore is a concurrency-safe, bounded, in-memory record of recent
// run outcomes. It is lost on restart.
type MemoryStore struct {
	mu sync.RWMutex

	// ordered by Started ascending
	runs []pipeline.Outcome

	// retention configuration
	maxHistory int           // max number of outcomes kept
	maxAge     time.Duration // optional max age for outcomes
	now        func() time.Time
}

// NewMemoryStore creates a new MemoryStore with optional limits.
// If maxHistory is <= 0, it is treated as unlimited.
func NewMemoryStore(maxHistory int, maxAge time.Duration) *MemoryStore {
	return &MemoryStore{
		maxHistory: maxHistory,
		maxAge:     maxAge,
		now:        time.Now,
	}
}

// Record appends an outcome and enforces retention. It implements pipeline.Recorder.
func (s *MemoryStore) Record(o pipeline.Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Overlapping runs can finish out of order; keep the slice sorted by start.
	i := len(s.runs)
	for i > 0 && s.runs[i-1].Started.After(o.Started) {
		i--
	}
	s.runs = append(s.runs, pipeline.Outcome{})
	copy(s.runs[i+1:], s.runs[i:])
	s.runs[i] = o

	// Enforce retention by count.
	if s.maxHistory > 0 && len(s.runs) > s.maxHistory {
		over := len(s.runs) - s.maxHistory
		s.runs = append([]pipeline.Outcome(nil), s.runs[over:]...)
	}

	// Enforce retention by age.
	if s.maxAge > 0 {
		cutoff := s.now().Add(-s.maxAge)
		drop := 0
		for ; drop < len(s.runs); drop++ {
			if !s.runs[drop].Started.Before(cutoff) {
				break
			}
		}
		if drop > 0 {
			s.runs = append([]pipeline.Outcome(nil), s.runs[drop:]...)
		}
	}
}

// GetLatest returns the most recently started run.
func (s *MemoryStore) GetLatest() (pipeline.Outcome, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.runs) == 0 {
		return pipeline.Outcome{}, ErrNotFound
	}
	return s.runs[len(s.runs)-1], nil
}

// GetLastPublished returns the most recent run whose forecast was published.
func (s *MemoryStore) GetLastPublished() (pipeline.Outcome, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := len(s.runs) - 1; i >= 0; i-- {
		if s.runs[i].OK() {
			return s.runs[i], nil
		}
	}
	return pipeline.Outcome{}, ErrNotFound
}

// GetRange returns all runs started between from and to (inclusive).
func (s *MemoryStore) GetRange(from, to time.Time) ([]pipeline.Outcome, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []pipeline.Outcome
	for _, run := range s.runs {
		if !run.Started.Before(from) && !run.Started.After(to) {
			result = append(result, run)
		}
	}

	if len(result) == 0 {
		return nil, ErrNotFound
	}
	return result, nil
}
