package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/CyberwizD/notification-ingest/pkg/logger"
	"github.com/CyberwizD/notification-ingest/pkg/metrics"
)

// Reporter is the error-observability collaborator. Implementations must not block.
type Reporter interface {
	Report(ctx context.Context, op string, kind, err error)
}

// LogReporter reports through slog and counts failures.
type LogReporter struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewLogReporter(l *slog.Logger, m *metrics.Metrics) *LogReporter {
	return &LogReporter{
		logger:  l.With(logger.Component("reporter")),
		metrics: m,
	}
}

func (r *LogReporter) Report(ctx context.Context, op string, kind, err error) {
	opErr := &OpError{Op: op, Kind: kind, Err: err}
	name := KindName(kind)

	level := slog.LevelError
	if errors.Is(kind, ErrMalformedPayload) || errors.Is(kind, ErrTokenUnavailable) {
		level = slog.LevelWarn
	}
	r.logger.LogAttrs(ctx, level, "pipeline failure",
		logger.Op(op),
		slog.String("kind", name),
		logger.Error(opErr),
	)
	if r.metrics != nil {
		r.metrics.IncFailure(op, name)
	}
}
