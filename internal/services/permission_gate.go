package services

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/CyberwizD/notification-ingest/internal/platform"
	"github.com/CyberwizD/notification-ingest/pkg/logger"
)

// PermissionGate asks the OS for notification authorization. It fails closed.
type PermissionGate struct {
	perms    platform.Permissions
	reporter Reporter
	logger   *slog.Logger
	granted  atomic.Bool
}

func NewPermissionGate(perms platform.Permissions, reporter Reporter, l *slog.Logger) *PermissionGate {
	return &PermissionGate{
		perms:    perms,
		reporter: reporter,
		logger:   l.With(logger.Component("permission_gate")),
	}
}

// Request returns whether notifications are allowed. Denial is a normal outcome.
// SDK errors are reported and treated as denial.
func (g *PermissionGate) Request(ctx context.Context) bool {
	status, err := g.perms.RequestPermission(ctx)
	if err != nil {
		g.reporter.Report(ctx, "permission.request", ErrPermissionDenied, err)
		g.granted.Store(false)
		return false
	}

	allowed := status.Allowed()
	g.granted.Store(allowed)
	if !allowed {
		g.logger.WarnContext(ctx, "notifications not authorized", slog.String("status", status.String()))
		return false
	}
	g.logger.InfoContext(ctx, "notifications authorized", slog.String("status", status.String()))
	return true
}

// Granted returns the outcome of the last Request.
func (g *PermissionGate) Granted() bool {
	return g.granted.Load()
}
