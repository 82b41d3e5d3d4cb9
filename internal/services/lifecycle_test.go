package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/CyberwizD/notification-ingest/internal/models"
	"github.com/CyberwizD/notification-ingest/pkg/logger"
)

func TestLifecycle_Transitions(t *testing.T) {
	device, _, _, badge := newBadgeFixture()
	l := NewLifecycle("", badge, logger.Discard())

	assert.Equal(t, models.AppStateActive, l.State())
	assert.True(t, l.Foreground())

	l.Set(context.Background(), models.AppStateBackground)
	assert.False(t, l.Foreground())
	_, sets := device.Badge()
	assert.Zero(t, sets)

	device.SetBadge(6)
	l.Set(context.Background(), models.AppStateActive)
	count, sets := device.Badge()
	assert.Equal(t, 0, count)
	assert.Equal(t, 1, sets)

	l.Set(context.Background(), models.AppStateActive)
	_, sets = device.Badge()
	assert.Equal(t, 1, sets)
}
