package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/CyberwizD/notification-ingest/internal/models"
	"github.com/CyberwizD/notification-ingest/internal/platform"
	"github.com/CyberwizD/notification-ingest/pkg/logger"
)

// TokenSink receives the device token for server-side registration.
type TokenSink interface {
	StoreToken(ctx context.Context, token models.DeviceToken) error
}

// TokenManager registers the device for remote messages and hands the token off.
// A missing token only disables server registration. Handoff to sinks runs in the
// background, in the order tokens were obtained, so a slow session backend never
// holds up startup.
type TokenManager struct {
	messaging platform.Messaging
	platform  string
	sinks     []TokenSink
	reporter  Reporter
	logger    *slog.Logger
	now       func() time.Time

	mu      sync.RWMutex
	current string

	handoff    serialQueue
	handoffCtx context.Context
	stop       context.CancelFunc
}

func NewTokenManager(messaging platform.Messaging, platformName string, sinks []TokenSink, reporter Reporter, l *slog.Logger) *TokenManager {
	ctx, cancel := context.WithCancel(context.Background())
	return &TokenManager{
		messaging:  messaging,
		platform:   platformName,
		sinks:      sinks,
		reporter:   reporter,
		logger:     l.With(logger.Component("token_manager")),
		now:        time.Now,
		handoffCtx: ctx,
		stop:       cancel,
	}
}

// Register returns the current token. ok is false when none is available.
func (m *TokenManager) Register(ctx context.Context) (string, bool) {
	if err := m.messaging.RegisterDeviceForRemoteMessages(ctx); err != nil {
		m.reporter.Report(ctx, "token.register", ErrTokenUnavailable, err)
		return "", false
	}

	token, err := m.messaging.Token(ctx)
	if err != nil {
		m.reporter.Report(ctx, "token.fetch", ErrTokenUnavailable, err)
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" {
		m.reporter.Report(ctx, "token.fetch", ErrTokenUnavailable, errors.New("platform returned an empty token"))
		return "", false
	}

	m.accept(ctx, token)
	return token, true
}

// HandleRefresh takes a token the push SDK rotated on its own.
func (m *TokenManager) HandleRefresh(ctx context.Context, token string) bool {
	token = strings.TrimSpace(token)
	if token == "" {
		m.reporter.Report(ctx, "token.refresh", ErrTokenUnavailable, errors.New("refreshed token is empty"))
		return false
	}
	m.mu.RLock()
	same := token == m.current
	m.mu.RUnlock()
	if same {
		return true
	}
	m.accept(ctx, token)
	return true
}

// Current returns the last token obtained, or "".
func (m *TokenManager) Current() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Wait blocks until queued handoffs have finished.
func (m *TokenManager) Wait() {
	m.handoff.Wait()
}

// Close abandons handoffs still retrying and waits for them to return.
func (m *TokenManager) Close() {
	m.stop()
	m.handoff.Wait()
}

func (m *TokenManager) accept(ctx context.Context, token string) {
	m.mu.Lock()
	m.current = token
	m.mu.Unlock()
	m.logger.InfoContext(ctx, "push token obtained", slog.Int("sinks", len(m.sinks)))

	if len(m.sinks) == 0 {
		return
	}
	dt := models.DeviceToken{Token: token, Platform: m.platform, IssuedAt: m.now()}
	m.handoff.Go(func() {
		for _, sink := range m.sinks {
			if err := sink.StoreToken(m.handoffCtx, dt); err != nil {
				m.reporter.Report(m.handoffCtx, "token.handoff", ErrTokenUnavailable, err)
			}
		}
	})
}
