package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"github.com/CyberwizD/notification-ingest/internal/models"
	"github.com/CyberwizD/notification-ingest/internal/platform"
	"github.com/CyberwizD/notification-ingest/internal/repository"
	"github.com/CyberwizD/notification-ingest/pkg/logger"
	"github.com/CyberwizD/notification-ingest/pkg/metrics"
)

// Event is one notification event tagged with its provenance.
type Event interface {
	Source() models.Source
	Message() models.RemoteMessage
}

// ForegroundMessage is a live push received while the app is active.
type ForegroundMessage struct{ Msg models.RemoteMessage }

// BackgroundMessage is a live push received while the app is suspended or killed.
type BackgroundMessage struct{ Msg models.RemoteMessage }

// TapEvent is the user pressing a displayed notification while the app runs.
type TapEvent struct{ Msg models.RemoteMessage }

// ColdStartEvent is the notification that launched the process.
type ColdStartEvent struct{ Msg models.RemoteMessage }

func (e ForegroundMessage) Source() models.Source         { return models.SourceForeground }
func (e ForegroundMessage) Message() models.RemoteMessage { return e.Msg }
func (e BackgroundMessage) Source() models.Source         { return models.SourceBackground }
func (e BackgroundMessage) Message() models.RemoteMessage { return e.Msg }
func (e TapEvent) Source() models.Source                  { return models.SourceTap }
func (e TapEvent) Message() models.RemoteMessage          { return e.Msg }
func (e ColdStartEvent) Source() models.Source            { return models.SourceColdStart }
func (e ColdStartEvent) Message() models.RemoteMessage    { return e.Msg }

// ColdStartLedger remembers launch notifications that were already routed.
type ColdStartLedger interface {
	MarkColdStartHandled(ctx context.Context, messageID string) (bool, error)
}

const DefaultMarkReadAction = "mark-as-read"

// NormalizerConfig controls display policy and payload interpretation.
type NormalizerConfig struct {
	Platform       string
	Channel        models.NotificationChannel
	RoutingKeys    []string
	MarkReadAction string
}

func (c NormalizerConfig) withDefaults() NormalizerConfig {
	if c.Channel.ID == "" {
		c.Channel.ID = "default"
	}
	if c.Channel.Name == "" {
		c.Channel.Name = "Default Channel"
	}
	if len(c.RoutingKeys) == 0 {
		c.RoutingKeys = DefaultRoutingKeys
	}
	if c.MarkReadAction == "" {
		c.MarkReadAction = DefaultMarkReadAction
	}
	return c
}

// Normalizer folds every notification source into IncomingNotification and routes it.
// Routing happens before a Handle method returns; display, cancel and inbox writes run
// in the background and Wait blocks until they finish.
type Normalizer struct {
	cfg       NormalizerConfig
	messaging platform.Messaging
	notifier  platform.Notifier
	registrar *ChannelRegistrar
	badge     *BadgeCoordinator
	pending   *repository.PendingTargetStore
	inbox     *orderedInbox
	ledger    ColdStartLedger
	reporter  Reporter
	metrics   *metrics.Metrics
	logger    *slog.Logger
	now       func() time.Time

	seq      atomic.Uint64
	coldMu   sync.Mutex
	inflight sync.WaitGroup
}

// NormalizerOption configures optional collaborators.
type NormalizerOption func(*Normalizer)

// WithInbox records every normalized event. Writes are queued in event order.
func WithInbox(inbox Inbox) NormalizerOption {
	return func(n *Normalizer) { n.inbox = newOrderedInbox(inbox, n.reporter) }
}

func WithColdStartLedger(ledger ColdStartLedger) NormalizerOption {
	return func(n *Normalizer) { n.ledger = ledger }
}

func NewNormalizer(
	cfg NormalizerConfig,
	messaging platform.Messaging,
	notifier platform.Notifier,
	registrar *ChannelRegistrar,
	badge *BadgeCoordinator,
	pending *repository.PendingTargetStore,
	reporter Reporter,
	m *metrics.Metrics,
	l *slog.Logger,
	opts ...NormalizerOption,
) *Normalizer {
	n := &Normalizer{
		cfg:       cfg.withDefaults(),
		messaging: messaging,
		notifier:  notifier,
		registrar: registrar,
		badge:     badge,
		pending:   pending,
		reporter:  reporter,
		metrics:   m,
		logger:    l.With(logger.Component("normalizer")),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// HandleForeground routes msg and displays it locally. The OS shows nothing for pushes
// that arrive while the app is active, data-only ones included.
func (n *Normalizer) HandleForeground(ctx context.Context, msg models.RemoteMessage) models.IncomingNotification {
	inc := n.process(ctx, ForegroundMessage{Msg: msg})
	dctx := context.WithoutCancel(ctx)
	n.async(func() { n.display(dctx, inc) })
	return inc
}

// HandleBackground routes msg. The OS has already shown it.
func (n *Normalizer) HandleBackground(ctx context.Context, msg models.RemoteMessage) models.IncomingNotification {
	return n.process(ctx, BackgroundMessage{Msg: msg})
}

// HandleTap routes a notification the user pressed.
func (n *Normalizer) HandleTap(ctx context.Context, msg models.RemoteMessage) models.IncomingNotification {
	return n.process(ctx, TapEvent{Msg: msg})
}

// HandleColdStart routes the launch notification, if any, and clears its tray entry.
// ok is false when there was nothing to route.
func (n *Normalizer) HandleColdStart(ctx context.Context) (models.IncomingNotification, bool) {
	n.coldMu.Lock()
	defer n.coldMu.Unlock()

	msg, err := n.messaging.InitialNotification(ctx)
	if err != nil {
		n.reporter.Report(ctx, "normalizer.cold_start", ErrPlatformCall, err)
		return models.IncomingNotification{}, false
	}
	if msg == nil {
		return models.IncomingNotification{}, false
	}

	if msg.MessageID != "" && n.ledger != nil {
		first, err := n.ledger.MarkColdStartHandled(ctx, msg.MessageID)
		switch {
		case err != nil:
			n.reporter.Report(ctx, "normalizer.cold_start", ErrStorage, err)
		case !first:
			n.logger.InfoContext(ctx, "launch notification already routed", logger.NotificationID(msg.MessageID))
			n.clearLaunchEntry(ctx, msg.MessageID)
			return models.IncomingNotification{}, false
		}
	}

	inc := n.process(ctx, ColdStartEvent{Msg: *msg})
	if msg.MessageID != "" {
		n.clearLaunchEntry(ctx, msg.MessageID)
	}
	return inc, true
}

// HandleLocalEvent dispatches an interaction reported by the local-notification SDK.
func (n *Normalizer) HandleLocalEvent(ctx context.Context, ev models.LocalEvent) {
	notif := ev.Detail.Notification
	if notif == nil {
		n.reporter.Report(ctx, "normalizer.local_event", ErrMalformedPayload,
			fmt.Errorf("%s event without notification", ev.Type))
		return
	}

	switch ev.Type {
	case models.LocalEventActionPress:
		if ev.ActionID() == n.cfg.MarkReadAction {
			bctx := context.WithoutCancel(ctx)
			id := notif.ID
			n.async(func() { n.badge.MarkRead(bctx, id) })
			return
		}
		n.HandleTap(ctx, notif.AsRemoteMessage())
	case models.LocalEventPress:
		n.HandleTap(ctx, notif.AsRemoteMessage())
	case models.LocalEventDismissed:
		n.logger.DebugContext(ctx, "notification dismissed", logger.NotificationID(notif.ID))
	default:
		n.reporter.Report(ctx, "normalizer.local_event", ErrMalformedPayload,
			fmt.Errorf("unknown local event type %q", ev.Type))
	}
}

// Wait blocks until background display, cancel and inbox work has finished.
func (n *Normalizer) Wait() {
	n.inflight.Wait()
	if n.inbox != nil {
		n.inbox.Wait()
	}
}

// Normalize builds the canonical notification for ev without routing it.
func (n *Normalizer) Normalize(ev Event) models.IncomingNotification {
	msg := ev.Message()
	inc := models.IncomingNotification{
		ID:         msg.MessageID,
		Source:     ev.Source(),
		Payload:    maps.Clone(msg.Data),
		ReceivedAt: n.now(),
		Seq:        n.seq.Add(1),
	}
	if inc.ID == "" {
		inc.ID = models.NewNotificationID()
	}
	if msg.Notification != nil {
		inc.Title = msg.Notification.Title
		inc.Body = msg.Notification.Body
	}
	inc.ResourceID, _ = ExtractResourceID(inc.Payload, n.cfg.RoutingKeys)
	return inc
}

func (n *Normalizer) process(ctx context.Context, ev Event) models.IncomingNotification {
	inc := n.Normalize(ev)
	n.metrics.IncEvent(string(inc.Source))

	if inc.Routable() {
		n.pending.Set(models.PendingTarget{
			ResourceID: inc.ResourceID,
			Kind:       models.KindVideo,
			Origin:     models.OriginPush,
		})
		n.metrics.IncRouted(string(models.OriginPush))
		n.logger.InfoContext(ctx, "pending target set",
			logger.Source(string(inc.Source)),
			logger.NotificationID(inc.ID),
			logger.ResourceID(inc.ResourceID),
		)
	} else if _, present := ExtractResourceID(inc.Payload, n.cfg.RoutingKeys); present {
		n.reporter.Report(ctx, "normalizer.route", ErrMalformedPayload,
			fmt.Errorf("notification %s has an empty routing key", inc.ID))
	}

	if n.inbox != nil {
		_ = n.inbox.Record(ctx, inc)
	}
	return inc
}

func (n *Normalizer) display(ctx context.Context, inc models.IncomingNotification) {
	channelID, err := n.registrar.Ensure(ctx, n.cfg.Channel.ID, n.cfg.Channel.Name)
	if err != nil {
		n.reporter.Report(ctx, "normalizer.display", ErrChannelCreationFailed, err)
		return
	}

	id, err := n.notifier.Display(ctx, platform.DisplayRequest{
		ID:        inc.ID,
		ChannelID: channelID,
		Title:     RenderTemplate(inc.Title, inc.Payload),
		Body:      RenderTemplate(inc.Body, inc.Payload),
		Data:      inc.Payload,
	})
	if err != nil {
		n.reporter.Report(ctx, "normalizer.display", ErrDisplayFailed, err)
		return
	}
	n.metrics.IncDisplayed()
	n.logger.DebugContext(ctx, "notification displayed",
		logger.NotificationID(id),
		slog.Bool("data_only", !inc.HasAlert()),
	)

	// iOS stacks every foreground notification; keep only the newest one.
	if n.cfg.Platform == models.PlatformIOS {
		if err := n.notifier.ClearTray(ctx, id); err != nil {
			n.reporter.Report(ctx, "normalizer.clear_tray", ErrPlatformCall, err)
		}
	}
}

func (n *Normalizer) clearLaunchEntry(ctx context.Context, id string) {
	err := n.notifier.Cancel(ctx, id)
	if err != nil && !errors.Is(err, platform.ErrNotificationNotFound) {
		n.reporter.Report(ctx, "normalizer.cold_start", ErrPlatformCall, err)
	}
}

func (n *Normalizer) async(fn func()) {
	n.inflight.Add(1)
	go func() {
		defer n.inflight.Done()
		fn()
	}()
}
