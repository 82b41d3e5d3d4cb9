package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/CyberwizD/notification-ingest/internal/models"
	"github.com/CyberwizD/notification-ingest/internal/repository"
	"github.com/CyberwizD/notification-ingest/pkg/logger"
	"github.com/CyberwizD/notification-ingest/pkg/metrics"
)

// Attribution provider param keys.
const (
	ParamClickedLink     = "+clicked_branch_link"
	ParamNonAttributable = "+non_branch_link"
	ParamShareID         = "shareId"
	ParamDomain          = "domain"
)

// DeeplinkResolver turns attribution callbacks into pending targets.
type DeeplinkResolver struct {
	pending  *repository.PendingTargetStore
	reporter Reporter
	metrics  *metrics.Metrics
	logger   *slog.Logger

	mu   sync.Mutex
	last *models.DeeplinkAttribution
}

func NewDeeplinkResolver(pending *repository.PendingTargetStore, reporter Reporter, m *metrics.Metrics, l *slog.Logger) *DeeplinkResolver {
	return &DeeplinkResolver{
		pending:  pending,
		reporter: reporter,
		metrics:  m,
		logger:   l.With(logger.Component("deeplink_resolver")),
	}
}

// Handle resolves cb. ok is true only when a target was written.
func (r *DeeplinkResolver) Handle(ctx context.Context, cb models.AttributionCallback) (models.DeeplinkAttribution, bool) {
	if cb.Error != "" {
		r.reporter.Report(ctx, "deeplink.resolve", ErrAttributionError, errors.New(cb.Error))
		r.suppress(ctx, "error", cb)
		return models.DeeplinkAttribution{}, false
	}
	if _, ok := cb.Params[ParamNonAttributable]; ok {
		r.suppress(ctx, "non_attributable", cb)
		return models.DeeplinkAttribution{}, false
	}
	if !truthy(cb.Params[ParamClickedLink]) {
		r.suppress(ctx, "not_clicked", cb)
		return models.DeeplinkAttribution{}, false
	}

	attr := models.DeeplinkAttribution{
		ResourceID: stringParam(cb.Params[ParamShareID]),
		Domain:     stringParam(cb.Params[ParamDomain]),
	}
	if attr.ResourceID == "" || attr.Domain == "" {
		r.suppress(ctx, "incomplete", cb)
		return models.DeeplinkAttribution{}, false
	}
	kind, ok := attr.Kind()
	if !ok {
		r.suppress(ctx, "unknown_domain", cb)
		return models.DeeplinkAttribution{}, false
	}

	r.mu.Lock()
	if r.last != nil && *r.last == attr {
		r.mu.Unlock()
		r.suppress(ctx, "duplicate", cb)
		return models.DeeplinkAttribution{}, false
	}
	r.last = &attr
	r.pending.Set(models.PendingTarget{
		ResourceID: attr.ResourceID,
		Kind:       kind,
		Origin:     models.OriginAttribution,
	})
	r.mu.Unlock()

	r.metrics.IncRouted(string(models.OriginAttribution))
	r.logger.InfoContext(ctx, "pending target set from link",
		logger.ResourceID(attr.ResourceID),
		slog.String("domain", attr.Domain),
	)
	return attr, true
}

// Last returns the most recent resolved attribution.
func (r *DeeplinkResolver) Last() (models.DeeplinkAttribution, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.last == nil {
		return models.DeeplinkAttribution{}, false
	}
	return *r.last, true
}

func (r *DeeplinkResolver) suppress(ctx context.Context, reason string, cb models.AttributionCallback) {
	r.metrics.IncSuppressed(reason)
	r.logger.DebugContext(ctx, "attribution ignored", slog.String("reason", reason), slog.String("uri", cb.URI))
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(t))
		return err == nil && b
	case float64:
		return t != 0
	case json.Number:
		f, err := t.Float64()
		return err == nil && f != 0
	default:
		return false
	}
}

func stringParam(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	case fmt.Stringer:
		return strings.TrimSpace(t.String())
	default:
		return ""
	}
}
