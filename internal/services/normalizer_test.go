package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CyberwizD/notification-ingest/internal/models"
	"github.com/CyberwizD/notification-ingest/internal/platform"
	"github.com/CyberwizD/notification-ingest/pkg/logger"
)

func TestNormalizer_ForegroundDisplaysAndRoutes(t *testing.T) {
	env := newTestEnv(t, NormalizerConfig{Platform: models.PlatformAndroid}, nil, nil)
	n := env.pipeline.Normalizer

	inc := n.HandleForeground(context.Background(), models.RemoteMessage{
		MessageID: "m1",
		Data:      map[string]string{"video_id": "v1"},
	})
	n.Wait()

	assert.Equal(t, models.SourceForeground, inc.Source)
	assert.Equal(t, "v1", inc.ResourceID)

	displayed := env.device.Displayed()
	require.Len(t, displayed, 1)
	assert.Equal(t, "m1", displayed[0].ID)
	assert.Equal(t, "default", displayed[0].ChannelID)
	assert.Equal(t, "v1", displayed[0].Data["video_id"])

	target, ok := env.pipeline.Consume()
	require.True(t, ok)
	assert.Equal(t, "v1", target.ResourceID)
	assert.Equal(t, models.KindVideo, target.Kind)
	assert.Equal(t, models.OriginPush, target.Origin)
	assert.Empty(t, env.reporter.all())
}

func TestNormalizer_ForegroundRendersPlaceholders(t *testing.T) {
	env := newTestEnv(t, NormalizerConfig{}, nil, nil)

	env.pipeline.Normalizer.HandleForeground(context.Background(), models.RemoteMessage{
		MessageID:    "m1",
		Notification: &models.Alert{Title: "{{channel}} uploaded", Body: "Watch {{ title }} now"},
		Data:         map[string]string{"channel": "Kitchen Lab", "title": "Bread 101"},
	})
	env.pipeline.Normalizer.Wait()

	displayed := env.device.Displayed()
	require.Len(t, displayed, 1)
	assert.Equal(t, "Kitchen Lab uploaded", displayed[0].Title)
	assert.Equal(t, "Watch Bread 101 now", displayed[0].Body)
}

func TestNormalizer_BackgroundRoutesWithoutDisplay(t *testing.T) {
	env := newTestEnv(t, NormalizerConfig{}, nil, nil)

	env.pipeline.Normalizer.HandleBackground(context.Background(), push("m2", map[string]string{"video_id": "v2"}))
	env.pipeline.Normalizer.Wait()

	assert.Empty(t, env.device.Displayed())
	target, ok := env.pipeline.Consume()
	require.True(t, ok)
	assert.Equal(t, "v2", target.ResourceID)
}

func TestNormalizer_NonRoutableLeavesPendingAlone(t *testing.T) {
	env := newTestEnv(t, NormalizerConfig{}, nil, nil)
	n := env.pipeline.Normalizer

	n.HandleBackground(context.Background(), push("m1", map[string]string{"video_id": "v1"}))
	n.HandleBackground(context.Background(), push("m2", map[string]string{"promo": "spring"}))
	n.HandleTap(context.Background(), push("m3", nil))
	n.Wait()

	target, ok := env.pipeline.Consume()
	require.True(t, ok)
	assert.Equal(t, "v1", target.ResourceID)
	assert.Empty(t, env.reporter.all())
}

func TestNormalizer_BlankRoutingKeyIsMalformed(t *testing.T) {
	env := newTestEnv(t, NormalizerConfig{}, nil, nil)

	inc := env.pipeline.Normalizer.HandleBackground(context.Background(), push("m1", map[string]string{"video_id": "   "}))
	env.pipeline.Normalizer.Wait()

	assert.Empty(t, inc.ResourceID)
	_, ok := env.pipeline.Consume()
	assert.False(t, ok)
	assert.True(t, env.reporter.has(ErrMalformedPayload))

	recorded, _ := env.inbox.snapshot()
	require.Len(t, recorded, 1)
	assert.Equal(t, "m1", recorded[0].ID)
}

func TestNormalizer_CustomRoutingKeys(t *testing.T) {
	env := newTestEnv(t, NormalizerConfig{RoutingKeys: []string{"videoId", "video_id"}}, nil, nil)

	env.pipeline.Normalizer.HandleTap(context.Background(), push("m1", map[string]string{"video_id": "legacy"}))
	target, ok := env.pipeline.Consume()
	require.True(t, ok)
	assert.Equal(t, "legacy", target.ResourceID)

	env.pipeline.Normalizer.HandleTap(context.Background(), push("m2", map[string]string{"videoId": "new", "video_id": "legacy"}))
	target, ok = env.pipeline.Consume()
	require.True(t, ok)
	assert.Equal(t, "new", target.ResourceID)
}

func TestNormalizer_ColdStartRoutesOnce(t *testing.T) {
	device := platform.NewMemoryDevice(
		platform.WithMemoryLogger(logger.Discard()),
		platform.WithLaunchNotification(push("launch-1", map[string]string{"video_id": "v3"})),
	)
	env := newTestEnv(t, NormalizerConfig{}, device, nil)
	n := env.pipeline.Normalizer

	inc, ok := n.HandleColdStart(context.Background())
	require.True(t, ok)
	assert.Equal(t, models.SourceColdStart, inc.Source)
	assert.Equal(t, "v3", inc.ResourceID)
	assert.Empty(t, device.Tray())
	assert.Equal(t, []string{"launch-1"}, device.Cancelled())

	_, ok = n.HandleColdStart(context.Background())
	assert.False(t, ok)

	target, ok := env.pipeline.Pending.Peek()
	require.True(t, ok)
	assert.Equal(t, "v3", target.ResourceID)
	assert.Empty(t, env.reporter.all())
}

func TestNormalizer_ColdStartLedgerSkipsHandledLaunch(t *testing.T) {
	ledger := &fakeLedger{seen: map[string]bool{"launch-1": true}}
	device := platform.NewMemoryDevice(
		platform.WithMemoryLogger(logger.Discard()),
		platform.WithLaunchNotification(push("launch-1", map[string]string{"video_id": "v3"})),
	)
	env := newTestEnv(t, NormalizerConfig{}, device, ledger)

	_, ok := env.pipeline.Normalizer.HandleColdStart(context.Background())
	assert.False(t, ok)

	_, ok = env.pipeline.Pending.Peek()
	assert.False(t, ok)
	assert.Empty(t, device.Tray())
}

func TestNormalizer_ColdStartLedgerErrorStillRoutes(t *testing.T) {
	ledger := &fakeLedger{err: errors.New("redis: connection refused")}
	device := platform.NewMemoryDevice(
		platform.WithMemoryLogger(logger.Discard()),
		platform.WithLaunchNotification(push("launch-1", map[string]string{"video_id": "v3"})),
	)
	env := newTestEnv(t, NormalizerConfig{}, device, ledger)

	_, ok := env.pipeline.Normalizer.HandleColdStart(context.Background())
	require.True(t, ok)
	assert.True(t, env.reporter.has(ErrStorage))

	target, ok := env.pipeline.Consume()
	require.True(t, ok)
	assert.Equal(t, "v3", target.ResourceID)
}

func TestNormalizer_ColdStartWithoutLaunchNotification(t *testing.T) {
	env := newTestEnv(t, NormalizerConfig{}, nil, nil)

	_, ok := env.pipeline.Normalizer.HandleColdStart(context.Background())
	assert.False(t, ok)
	_, ok = env.pipeline.Pending.Peek()
	assert.False(t, ok)
}

func TestNormalizer_MarkReadAction(t *testing.T) {
	env := newTestEnv(t, NormalizerConfig{}, nil, nil)
	env.device.Post(platform.DisplayRequest{ID: "n1"})
	env.device.SetBadge(5)
	env.pipeline.Normalizer.HandleBackground(context.Background(), push("m0", map[string]string{"video_id": "v9"}))

	env.pipeline.Normalizer.HandleLocalEvent(context.Background(), models.LocalEvent{
		Type: models.LocalEventActionPress,
		Detail: models.LocalEventDetail{
			Notification: &models.DisplayedNotification{ID: "n1", Data: map[string]string{"video_id": "other"}},
			PressAction:  &models.PressAction{ID: "mark-as-read"},
		},
	})
	env.pipeline.Normalizer.Wait()

	assert.Equal(t, []string{"n1"}, env.device.Cancelled())
	badge, _ := env.device.Badge()
	assert.Equal(t, 0, badge)

	_, read := env.inbox.snapshot()
	assert.Equal(t, []string{"n1"}, read)

	target, ok := env.pipeline.Consume()
	require.True(t, ok)
	assert.Equal(t, "v9", target.ResourceID)
}

func TestNormalizer_PressRoutesLikeTap(t *testing.T) {
	env := newTestEnv(t, NormalizerConfig{}, nil, nil)

	for _, ev := range []models.LocalEvent{
		{
			Type:   models.LocalEventPress,
			Detail: models.LocalEventDetail{Notification: &models.DisplayedNotification{ID: "n1", Data: map[string]string{"video_id": "v1"}}},
		},
		{
			Type: models.LocalEventActionPress,
			Detail: models.LocalEventDetail{
				Notification: &models.DisplayedNotification{ID: "n2", Data: map[string]string{"video_id": "v2"}},
				PressAction:  &models.PressAction{ID: "open"},
			},
		},
	} {
		env.pipeline.Normalizer.HandleLocalEvent(context.Background(), ev)
		target, ok := env.pipeline.Consume()
		require.True(t, ok)
		assert.Equal(t, ev.Detail.Notification.Data["video_id"], target.ResourceID)
	}
}

func TestNormalizer_LocalEventEdgeCases(t *testing.T) {
	env := newTestEnv(t, NormalizerConfig{}, nil, nil)
	n := env.pipeline.Normalizer

	n.HandleLocalEvent(context.Background(), models.LocalEvent{
		Type:   models.LocalEventDismissed,
		Detail: models.LocalEventDetail{Notification: &models.DisplayedNotification{ID: "n1", Data: map[string]string{"video_id": "v1"}}},
	})
	_, ok := env.pipeline.Pending.Peek()
	assert.False(t, ok)
	assert.Empty(t, env.reporter.all())

	n.HandleLocalEvent(context.Background(), models.LocalEvent{Type: models.LocalEventPress})
	n.HandleLocalEvent(context.Background(), models.LocalEvent{
		Type:   "long-press",
		Detail: models.LocalEventDetail{Notification: &models.DisplayedNotification{ID: "n1"}},
	})

	reports := env.reporter.all()
	require.Len(t, reports, 2)
	for _, r := range reports {
		assert.ErrorIs(t, r.kind, ErrMalformedPayload)
	}
}

func TestNormalizer_ChannelFailureDoesNotBlockRouting(t *testing.T) {
	env := newTestEnv(t, NormalizerConfig{}, nil, nil)
	env.device.SetChannelError(errors.New("channel service down"))

	env.pipeline.Normalizer.HandleForeground(context.Background(), push("m1", map[string]string{"video_id": "v1"}))
	env.pipeline.Normalizer.Wait()

	assert.Empty(t, env.device.Displayed())
	assert.True(t, env.reporter.has(ErrChannelCreationFailed))

	env.pipeline.Normalizer.HandleTap(context.Background(), push("m2", map[string]string{"video_id": "v4"}))
	target, ok := env.pipeline.Consume()
	require.True(t, ok)
	assert.Equal(t, "v4", target.ResourceID)
}

func TestNormalizer_DisplayFailureIsReported(t *testing.T) {
	env := newTestEnv(t, NormalizerConfig{}, nil, nil)
	env.device.SetDisplayError(errors.New("display rejected"))

	env.pipeline.Normalizer.HandleForeground(context.Background(), push("m1", map[string]string{"video_id": "v1"}))
	env.pipeline.Normalizer.Wait()

	assert.True(t, env.reporter.has(ErrDisplayFailed))
	target, ok := env.pipeline.Consume()
	require.True(t, ok)
	assert.Equal(t, "v1", target.ResourceID)
}

func TestNormalizer_IOSKeepsOnlyNewestInTray(t *testing.T) {
	env := newTestEnv(t, NormalizerConfig{Platform: models.PlatformIOS}, nil, nil)
	env.device.Post(platform.DisplayRequest{ID: "old-1"})
	env.device.Post(platform.DisplayRequest{ID: "old-2"})

	env.pipeline.Normalizer.HandleForeground(context.Background(), push("m1", nil))
	env.pipeline.Normalizer.Wait()

	assert.Equal(t, []string{"m1"}, env.device.Tray())
	assert.Equal(t, 1, env.device.TrayClears())
}

func TestNormalizer_AndroidLeavesTrayAlone(t *testing.T) {
	env := newTestEnv(t, NormalizerConfig{Platform: models.PlatformAndroid}, nil, nil)
	env.device.Post(platform.DisplayRequest{ID: "old-1"})

	env.pipeline.Normalizer.HandleForeground(context.Background(), push("m1", nil))
	env.pipeline.Normalizer.Wait()

	assert.Equal(t, []string{"old-1", "m1"}, env.device.Tray())
	assert.Zero(t, env.device.TrayClears())
}

func TestNormalizer_RecordsInbox(t *testing.T) {
	env := newTestEnv(t, NormalizerConfig{}, nil, nil)
	n := env.pipeline.Normalizer

	n.HandleBackground(context.Background(), push("m1", map[string]string{"video_id": "v1"}))
	n.HandleTap(context.Background(), push("", nil))
	n.Wait()

	recorded, _ := env.inbox.snapshot()
	require.Len(t, recorded, 2)
	ids := []string{recorded[0].ID, recorded[1].ID}
	assert.Contains(t, ids, "m1")
	for _, r := range recorded {
		assert.NotEmpty(t, r.ID)
	}
}

func TestNormalizer_InboxFailureIsReported(t *testing.T) {
	env := newTestEnv(t, NormalizerConfig{}, nil, nil)
	env.inbox.err = errors.New("db down")

	env.pipeline.Normalizer.HandleBackground(context.Background(), push("m1", map[string]string{"video_id": "v1"}))
	env.pipeline.Normalizer.Wait()

	assert.True(t, env.reporter.has(ErrStorage))
	_, ok := env.pipeline.Consume()
	assert.True(t, ok)
}

func TestNormalizer_NormalizeAssignsOrder(t *testing.T) {
	env := newTestEnv(t, NormalizerConfig{}, nil, nil)
	n := env.pipeline.Normalizer
	fixed := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	n.now = func() time.Time { return fixed }

	data := map[string]string{"video_id": "v1"}
	first := n.Normalize(BackgroundMessage{Msg: models.RemoteMessage{Data: data}})
	second := n.Normalize(TapEvent{Msg: models.RemoteMessage{MessageID: "m2"}})

	assert.Less(t, first.Seq, second.Seq)
	assert.Equal(t, fixed, first.ReceivedAt)
	assert.NotEmpty(t, first.ID)
	assert.Equal(t, "m2", second.ID)

	data["video_id"] = "mutated"
	assert.Equal(t, "v1", first.Payload["video_id"])
}

func TestNormalizer_LatestRoutableWins(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for round := 0; round < 25; round++ {
		env := newTestEnv(t, NormalizerConfig{}, nil, nil)
		n := env.pipeline.Normalizer

		want := ""
		for i := 0; i < 12; i++ {
			var data map[string]string
			if r.Intn(3) > 0 {
				id := fmt.Sprintf("v%d-%d", round, i)
				data = map[string]string{"video_id": id}
				want = id
			}
			msg := push(fmt.Sprintf("m%d", i), data)
			switch r.Intn(3) {
			case 0:
				n.HandleForeground(context.Background(), msg)
			case 1:
				n.HandleBackground(context.Background(), msg)
			default:
				n.HandleTap(context.Background(), msg)
			}
		}
		n.Wait()

		target, ok := env.pipeline.Consume()
		if want == "" {
			assert.False(t, ok)
			continue
		}
		require.True(t, ok)
		assert.Equal(t, want, target.ResourceID)

		_, ok = env.pipeline.Consume()
		assert.False(t, ok)
	}
}

type gatedInbox struct {
	release chan struct{}
	mu      sync.Mutex
	ops     []string
}

func (g *gatedInbox) Record(_ context.Context, n models.IncomingNotification) error {
	<-g.release
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ops = append(g.ops, "record:"+n.ID)
	return nil
}

func (g *gatedInbox) MarkRead(_ context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ops = append(g.ops, "read:"+id)
	return nil
}

func TestNormalizer_MarkReadAppliedAfterSlowRecord(t *testing.T) {
	inbox := &gatedInbox{release: make(chan struct{})}
	device := platform.NewMemoryDevice(platform.WithMemoryLogger(logger.Discard()))
	p := NewPipeline(NormalizerConfig{}, Deps{
		Bridge:   device,
		Inbox:    inbox,
		Reporter: &recordingReporter{},
		Logger:   logger.Discard(),
	})
	t.Cleanup(p.Close)
	device.Post(platform.DisplayRequest{ID: "n1"})

	p.Normalizer.HandleBackground(context.Background(), push("n1", map[string]string{"video_id": "v1"}))
	p.Normalizer.HandleLocalEvent(context.Background(), models.LocalEvent{
		Type: models.LocalEventActionPress,
		Detail: models.LocalEventDetail{
			Notification: &models.DisplayedNotification{ID: "n1"},
			PressAction:  &models.PressAction{ID: DefaultMarkReadAction},
		},
	})

	// Give the mark-read goroutine time to reach the inbox while Record is held.
	time.Sleep(20 * time.Millisecond)
	close(inbox.release)
	p.Normalizer.Wait()

	inbox.mu.Lock()
	defer inbox.mu.Unlock()
	assert.Equal(t, []string{"record:n1", "read:n1"}, inbox.ops)
}
