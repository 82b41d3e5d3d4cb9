package services

import (
	"context"
	"log/slog"
	"sync"

	"github.com/CyberwizD/notification-ingest/internal/models"
	"github.com/CyberwizD/notification-ingest/pkg/logger"
)

// Lifecycle tracks whether the app is in front of the user.
type Lifecycle struct {
	mu     sync.RWMutex
	state  models.AppState
	badge  *BadgeCoordinator
	logger *slog.Logger
}

func NewLifecycle(initial models.AppState, badge *BadgeCoordinator, l *slog.Logger) *Lifecycle {
	if initial == "" {
		initial = models.AppStateActive
	}
	return &Lifecycle{
		state:  initial,
		badge:  badge,
		logger: l.With(logger.Component("lifecycle")),
	}
}

// State returns the current state.
func (l *Lifecycle) State() models.AppState {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// Foreground reports whether a live push should take the foreground path.
func (l *Lifecycle) Foreground() bool {
	return l.State() == models.AppStateActive
}

// Set records a lifecycle edge. Coming back to the foreground clears the badge.
func (l *Lifecycle) Set(ctx context.Context, state models.AppState) {
	l.mu.Lock()
	prev := l.state
	l.state = state
	l.mu.Unlock()

	if prev == state {
		return
	}
	l.logger.InfoContext(ctx, "app state changed", slog.String("from", string(prev)), slog.String("to", string(state)))
	if state == models.AppStateActive && l.badge != nil {
		l.badge.ClearBadge(ctx)
	}
}
