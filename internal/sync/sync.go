// Package sync pushes local state to the backend. Snapshot writes are
// debounced so a burst of edits lands as a single persisted record.
package sync

import (
	"sync"
	"time"

	"github.com/ekoc/coinfolio/internal/logger"
	"github.com/ekoc/coinfolio/internal/models"
)

// Backend is the slice of the API client the syncer needs.
type Backend interface {
	LatestSnapshot() (*models.Snapshot, error)
	SaveSnapshot(holdings []models.Holding, totalUSD float64) error
	SavePriceCache(prices map[string]float64) error
}

// Syncer owns the debounce timer for snapshot pushes. Each queued
// snapshot resets the timer; when it fires only the latest queued state
// is written.
type Syncer struct {
	backend Backend
	delay   time.Duration

	mu       sync.Mutex
	timer    *time.Timer
	holdings []models.Holding
	totalUSD float64
	pending  bool
}

// NewSyncer creates a syncer; a non-positive delay falls back to one
// second.
func NewSyncer(backend Backend, delay time.Duration) *Syncer {
	if delay <= 0 {
		delay = time.Second
	}
	return &Syncer{backend: backend, delay: delay}
}

// QueueSnapshot records the state to persist and arms the debounce
// timer. A later call before the timer fires supersedes this one.
func (s *Syncer) QueueSnapshot(holdings []models.Holding, totalUSD float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.holdings = append([]models.Holding(nil), holdings...)
	s.totalUSD = totalUSD
	s.pending = true

	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.delay, s.flush)
}

func (s *Syncer) flush() {
	s.mu.Lock()
	if !s.pending {
		s.mu.Unlock()
		return
	}
	holdings := s.holdings
	totalUSD := s.totalUSD
	s.pending = false
	s.mu.Unlock()

	if err := s.backend.SaveSnapshot(holdings, totalUSD); err != nil {
		logger.Warn("Snapshot push failed: %v", err)
	}
}

// Flush pushes any pending snapshot immediately. Used on shutdown so a
// just-made edit is not lost to the debounce window.
func (s *Syncer) Flush() {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.mu.Unlock()
	s.flush()
}

// Hydrate fetches the latest remote snapshot, nil when the history is
// empty.
func (s *Syncer) Hydrate() (*models.Snapshot, error) {
	return s.backend.LatestSnapshot()
}

// PushPriceCache writes the resolved price map to the backend so the
// next session hydrates without a blank-price window. Failures are
// advisory only.
func (s *Syncer) PushPriceCache(prices map[string]float64) {
	if err := s.backend.SavePriceCache(prices); err != nil {
		logger.Debug("Price cache push failed: %v", err)
	}
}
