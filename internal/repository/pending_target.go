package repository

import (
	"sync"
	"time"

	"github.com/CyberwizD/notification-ingest/internal/models"
)

// PendingTargetStore holds at most one unconsumed navigation target. Set overwrites,
// Consume reads and clears in one critical section.
type PendingTargetStore struct {
	mu         sync.Mutex
	target     *models.PendingTarget
	now        func() time.Time
	overwrites uint64
	onReplace  func(old, current models.PendingTarget)
}

// PendingOption configures a PendingTargetStore.
type PendingOption func(*PendingTargetStore)

// WithReplaceHook is called, outside the lock, whenever Set replaces an unconsumed target.
func WithReplaceHook(fn func(old, current models.PendingTarget)) PendingOption {
	return func(s *PendingTargetStore) { s.onReplace = fn }
}

// WithClock overrides the clock used to stamp SetAt.
func WithClock(now func() time.Time) PendingOption {
	return func(s *PendingTargetStore) { s.now = now }
}

func NewPendingTargetStore(opts ...PendingOption) *PendingTargetStore {
	s := &PendingTargetStore{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Set stores target, replacing whatever was there. An empty ResourceID is ignored.
func (s *PendingTargetStore) Set(target models.PendingTarget) {
	if target.ResourceID == "" {
		return
	}
	if target.SetAt.IsZero() {
		target.SetAt = s.now()
	}

	s.mu.Lock()
	old := s.target
	s.target = &target
	if old != nil {
		s.overwrites++
	}
	s.mu.Unlock()

	if old != nil && s.onReplace != nil {
		s.onReplace(*old, target)
	}
}

// Consume returns the held target and clears the slot. ok is false when empty.
func (s *PendingTargetStore) Consume() (models.PendingTarget, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.target == nil {
		return models.PendingTarget{}, false
	}
	t := *s.target
	s.target = nil
	return t, true
}

// Peek returns the held target without clearing it.
func (s *PendingTargetStore) Peek() (models.PendingTarget, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.target == nil {
		return models.PendingTarget{}, false
	}
	return *s.target, true
}

// Overwrites returns how many unconsumed targets were replaced.
func (s *PendingTargetStore) Overwrites() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.overwrites
}
