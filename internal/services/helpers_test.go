package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/CyberwizD/notification-ingest/internal/models"
	"github.com/CyberwizD/notification-ingest/internal/platform"
	"github.com/CyberwizD/notification-ingest/internal/repository"
	"github.com/CyberwizD/notification-ingest/pkg/logger"
	"github.com/CyberwizD/notification-ingest/pkg/metrics"
)

var (
	_ TokenSink       = (*repository.SessionStore)(nil)
	_ TokenSink       = (*TokenUploader)(nil)
	_ ColdStartLedger = (*repository.SessionStore)(nil)
	_ Inbox           = (*repository.InboxStore)(nil)
	_ Reporter        = (*LogReporter)(nil)
)

type report struct {
	op   string
	kind error
	err  error
}

type recordingReporter struct {
	mu      sync.Mutex
	reports []report
}

func (r *recordingReporter) Report(_ context.Context, op string, kind, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, report{op: op, kind: kind, err: err})
}

func (r *recordingReporter) all() []report {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]report(nil), r.reports...)
}

func (r *recordingReporter) has(kind error) bool {
	for _, rep := range r.all() {
		if errors.Is(rep.kind, kind) {
			return true
		}
	}
	return false
}

type fakeInbox struct {
	mu       sync.Mutex
	recorded []models.IncomingNotification
	read     []string
	err      error
}

func (f *fakeInbox) Record(_ context.Context, n models.IncomingNotification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.recorded = append(f.recorded, n)
	return nil
}

func (f *fakeInbox) MarkRead(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.read = append(f.read, id)
	return nil
}

func (f *fakeInbox) snapshot() ([]models.IncomingNotification, []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.IncomingNotification(nil), f.recorded...), append([]string(nil), f.read...)
}

type fakeLedger struct {
	mu   sync.Mutex
	seen map[string]bool
	err  error
}

func (f *fakeLedger) MarkColdStartHandled(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	if f.seen == nil {
		f.seen = make(map[string]bool)
	}
	if f.seen[id] {
		return false, nil
	}
	f.seen[id] = true
	return true, nil
}

type testEnv struct {
	device   *platform.MemoryDevice
	reporter *recordingReporter
	metrics  *metrics.Metrics
	inbox    *fakeInbox
	pipeline *Pipeline
}

func newTestEnv(t *testing.T, cfg NormalizerConfig, device *platform.MemoryDevice, ledger ColdStartLedger) *testEnv {
	t.Helper()
	if device == nil {
		device = platform.NewMemoryDevice(platform.WithMemoryLogger(logger.Discard()))
	}
	env := &testEnv{
		device:   device,
		reporter: &recordingReporter{},
		metrics:  metrics.New(),
		inbox:    &fakeInbox{},
	}
	env.pipeline = NewPipeline(cfg, Deps{
		Bridge:   device,
		Inbox:    env.inbox,
		Ledger:   ledger,
		Reporter: env.reporter,
		Metrics:  env.metrics,
		Logger:   logger.Discard(),
	})
	t.Cleanup(env.pipeline.Close)
	return env
}

func push(id string, data map[string]string) models.RemoteMessage {
	return models.RemoteMessage{
		MessageID:    id,
		Notification: &models.Alert{Title: "New upload", Body: "Tap to watch"},
		Data:         data,
	}
}
