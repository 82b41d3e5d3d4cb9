package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/CyberwizD/notification-ingest/internal/models"
	"github.com/CyberwizD/notification-ingest/internal/platform"
	"github.com/CyberwizD/notification-ingest/pkg/logger"
)

// Inbox records received notifications and their read state.
type Inbox interface {
	Record(ctx context.Context, n models.IncomingNotification) error
	MarkRead(ctx context.Context, id string) error
}

// BadgeCoordinator owns the badge counter and read state.
type BadgeCoordinator struct {
	notifier platform.Notifier
	inbox    Inbox
	reporter Reporter
	logger   *slog.Logger
	once     sync.Once
}

func NewBadgeCoordinator(notifier platform.Notifier, inbox Inbox, reporter Reporter, l *slog.Logger) *BadgeCoordinator {
	return &BadgeCoordinator{
		notifier: notifier,
		inbox:    inbox,
		reporter: reporter,
		logger:   l.With(logger.Component("badge_coordinator")),
	}
}

// ResetBadge zeroes the badge once per process. Later calls do nothing.
func (b *BadgeCoordinator) ResetBadge(ctx context.Context) {
	b.once.Do(func() {
		b.ClearBadge(ctx)
	})
}

// ClearBadge zeroes the badge unconditionally.
func (b *BadgeCoordinator) ClearBadge(ctx context.Context) bool {
	if err := b.notifier.SetBadgeCount(ctx, 0); err != nil {
		b.reporter.Report(ctx, "badge.reset", ErrPlatformCall, err)
		return false
	}
	return true
}

// MarkRead cancels the notification, zeroes the badge and flags the inbox record.
// A notification that is no longer displayed is not an error.
func (b *BadgeCoordinator) MarkRead(ctx context.Context, notificationID string) {
	if notificationID == "" {
		return
	}
	err := b.notifier.Cancel(ctx, notificationID)
	switch {
	case errors.Is(err, platform.ErrNotificationNotFound):
		b.logger.DebugContext(ctx, "notification already gone", logger.NotificationID(notificationID))
	case err != nil:
		b.reporter.Report(ctx, "badge.mark_read", ErrPlatformCall, err)
	}

	b.ClearBadge(ctx)

	if b.inbox != nil {
		if err := b.inbox.MarkRead(ctx, notificationID); err != nil {
			b.reporter.Report(ctx, "badge.mark_read", ErrStorage, err)
		}
	}
	b.logger.InfoContext(ctx, "notification marked read", logger.NotificationID(notificationID))
}
