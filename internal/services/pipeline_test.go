package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CyberwizD/notification-ingest/internal/models"
	"github.com/CyberwizD/notification-ingest/internal/platform"
	"github.com/CyberwizD/notification-ingest/pkg/logger"
)

func TestPipeline_Start(t *testing.T) {
	device := platform.NewMemoryDevice(
		platform.WithMemoryLogger(logger.Discard()),
		platform.WithToken("fcm-1"),
		platform.WithLaunchNotification(push("launch-1", map[string]string{"video_id": "v3"})),
	)
	env := newTestEnv(t, NormalizerConfig{Channel: models.NotificationChannel{ID: "uploads", Name: "Uploads"}}, device, nil)
	device.SetBadge(9)

	report := env.pipeline.Start(context.Background())

	assert.Equal(t, StartupReport{
		PermissionGranted: true,
		ChannelReady:      true,
		Token:             "fcm-1",
		ColdStartRouted:   true,
	}, report)
	assert.True(t, env.pipeline.Channels.Ready("uploads"))
	assert.Equal(t, 1, device.ChannelCalls())
	assert.Empty(t, device.Tray())
	count, _ := device.Badge()
	assert.Equal(t, 0, count)

	target, ok := env.pipeline.Consume()
	require.True(t, ok)
	assert.Equal(t, "v3", target.ResourceID)
	_, ok = env.pipeline.Consume()
	assert.False(t, ok)
}

func TestPipeline_StartDegrades(t *testing.T) {
	device := platform.NewMemoryDevice(
		platform.WithMemoryLogger(logger.Discard()),
		platform.WithAuthorization(platform.StatusDenied),
		platform.WithLaunchNotification(push("launch-1", map[string]string{"video_id": "v3"})),
	)
	device.SetChannelError(errors.New("no channel service"))
	env := newTestEnv(t, NormalizerConfig{}, device, nil)

	report := env.pipeline.Start(context.Background())

	assert.False(t, report.PermissionGranted)
	assert.False(t, report.ChannelReady)
	assert.Empty(t, report.Token)
	assert.True(t, report.ColdStartRouted)
	assert.True(t, env.reporter.has(ErrChannelCreationFailed))
	assert.True(t, env.reporter.has(ErrTokenUnavailable))

	target, ok := env.pipeline.Consume()
	require.True(t, ok)
	assert.Equal(t, "v3", target.ResourceID)
}

func TestPipeline_OverwritesAreCounted(t *testing.T) {
	env := newTestEnv(t, NormalizerConfig{}, nil, nil)

	env.pipeline.Normalizer.HandleBackground(context.Background(), push("m1", map[string]string{"video_id": "v1"}))
	_, ok := env.pipeline.Deeplinks.Handle(context.Background(), clicked("abc", models.DomainShareVideo))
	require.True(t, ok)

	assert.Equal(t, uint64(1), env.pipeline.Pending.Overwrites())
	target, ok := env.pipeline.Consume()
	require.True(t, ok)
	assert.Equal(t, models.OriginAttribution, target.Origin)
}

func TestNewPipeline_Defaults(t *testing.T) {
	device := platform.NewMemoryDevice(platform.WithMemoryLogger(logger.Discard()))
	p := NewPipeline(NormalizerConfig{}, Deps{Bridge: device, Logger: logger.Discard()})
	defer p.Close()

	report := p.Start(context.Background())
	assert.True(t, report.ChannelReady)
	assert.True(t, p.Channels.Ready("default"))
}

func TestPipeline_StartRoutesColdStartWhileTokenHandoffIsPending(t *testing.T) {
	device := platform.NewMemoryDevice(
		platform.WithMemoryLogger(logger.Discard()),
		platform.WithToken("fcm-1"),
		platform.WithLaunchNotification(push("launch-1", map[string]string{"video_id": "v1"})),
	)
	sink := &blockingSink{release: make(chan struct{}), stored: make(chan models.DeviceToken, 1)}
	p := NewPipeline(NormalizerConfig{}, Deps{
		Bridge:     device,
		TokenSinks: []TokenSink{sink},
		Reporter:   &recordingReporter{},
		Logger:     logger.Discard(),
	})
	t.Cleanup(p.Close)

	report := p.Start(context.Background())
	assert.Equal(t, "fcm-1", report.Token)
	assert.True(t, report.ColdStartRouted)
	assert.Empty(t, sink.stored)

	target, ok := p.Pending.Peek()
	require.True(t, ok)
	assert.Equal(t, "v1", target.ResourceID)

	close(sink.release)
	p.Tokens.Wait()
	assert.Equal(t, "fcm-1", (<-sink.stored).Token)
}
