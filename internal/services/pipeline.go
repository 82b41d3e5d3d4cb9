package services

import (
	"context"
	"log/slog"

	"github.com/CyberwizD/notification-ingest/internal/models"
	"github.com/CyberwizD/notification-ingest/internal/platform"
	"github.com/CyberwizD/notification-ingest/internal/repository"
	"github.com/CyberwizD/notification-ingest/pkg/logger"
	"github.com/CyberwizD/notification-ingest/pkg/metrics"
)

// Deps are the collaborators a Pipeline is built around. Inbox, Ledger and TokenSinks
// are optional.
type Deps struct {
	Bridge     platform.Bridge
	Inbox      Inbox
	Ledger     ColdStartLedger
	TokenSinks []TokenSink
	Reporter   Reporter
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
}

// Pipeline is the process-wide notification state. Build it once at startup and pass it
// to the transports.
type Pipeline struct {
	Pending     *repository.PendingTargetStore
	Permissions *PermissionGate
	Channels    *ChannelRegistrar
	Tokens      *TokenManager
	Normalizer  *Normalizer
	Deeplinks   *DeeplinkResolver
	Badge       *BadgeCoordinator
	Lifecycle   *Lifecycle

	cfg      NormalizerConfig
	reporter Reporter
	logger   *slog.Logger
}

// StartupReport summarizes what Start managed to set up.
type StartupReport struct {
	PermissionGranted bool
	ChannelReady      bool
	Token             string
	ColdStartRouted   bool
}

func NewPipeline(cfg NormalizerConfig, deps Deps) *Pipeline {
	cfg = cfg.withDefaults()
	l := deps.Logger
	if l == nil {
		l = slog.Default()
	}
	m := deps.Metrics
	if m == nil {
		m = metrics.New()
	}
	reporter := deps.Reporter
	if reporter == nil {
		reporter = NewLogReporter(l, m)
	}

	pending := repository.NewPendingTargetStore(repository.WithReplaceHook(func(old, current models.PendingTarget) {
		m.IncOverwrite()
		l.Debug("pending target replaced",
			slog.String("previous", old.ResourceID),
			logger.ResourceID(current.ResourceID),
		)
	}))

	// The normalizer records and the badge coordinator marks read through one queue.
	var inbox Inbox
	if deps.Inbox != nil {
		inbox = newOrderedInbox(deps.Inbox, reporter)
	}
	registrar := NewChannelRegistrar(deps.Bridge)
	badge := NewBadgeCoordinator(deps.Bridge, inbox, reporter, l)

	opts := []NormalizerOption{}
	if inbox != nil {
		opts = append(opts, WithInbox(inbox))
	}
	if deps.Ledger != nil {
		opts = append(opts, WithColdStartLedger(deps.Ledger))
	}

	return &Pipeline{
		Pending:     pending,
		Permissions: NewPermissionGate(deps.Bridge, reporter, l),
		Channels:    registrar,
		Tokens:      NewTokenManager(deps.Bridge, cfg.Platform, deps.TokenSinks, reporter, l),
		Normalizer:  NewNormalizer(cfg, deps.Bridge, deps.Bridge, registrar, badge, pending, reporter, m, l, opts...),
		Deeplinks:   NewDeeplinkResolver(pending, reporter, m, l),
		Badge:       badge,
		Lifecycle:   NewLifecycle(models.AppStateActive, badge, l),
		cfg:         cfg,
		reporter:    reporter,
		logger:      l.With(logger.Component("pipeline")),
	}
}

// Start runs the startup sequence. The default channel is created before Start returns,
// so transports started afterwards can display immediately. Nothing here is fatal.
func (p *Pipeline) Start(ctx context.Context) StartupReport {
	var report StartupReport

	p.Badge.ResetBadge(ctx)
	report.PermissionGranted = p.Permissions.Request(ctx)

	if _, err := p.Channels.Ensure(ctx, p.cfg.Channel.ID, p.cfg.Channel.Name); err != nil {
		p.reporter.Report(ctx, "pipeline.start", ErrChannelCreationFailed, err)
	} else {
		report.ChannelReady = true
	}

	report.Token, _ = p.Tokens.Register(ctx)
	_, report.ColdStartRouted = p.Normalizer.HandleColdStart(ctx)

	p.logger.InfoContext(ctx, "pipeline started",
		slog.Bool("permission", report.PermissionGranted),
		slog.Bool("channel_ready", report.ChannelReady),
		slog.Bool("token", report.Token != ""),
		slog.Bool("cold_start_routed", report.ColdStartRouted),
	)
	return report
}

// Reporter returns the failure reporter shared by every component.
func (p *Pipeline) Reporter() Reporter {
	return p.reporter
}

// Consume hands the pending target to the navigation layer exactly once.
func (p *Pipeline) Consume() (models.PendingTarget, bool) {
	return p.Pending.Consume()
}

// Close waits for in-flight display, cancel and inbox work, then stops any token
// handoff still retrying.
func (p *Pipeline) Close() {
	p.Normalizer.Wait()
	p.Tokens.Close()
}
