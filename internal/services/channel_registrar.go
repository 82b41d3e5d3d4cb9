package services

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/CyberwizD/notification-ingest/internal/models"
	"github.com/CyberwizD/notification-ingest/internal/platform"
)

// ChannelRegistrar creates display channels at most once per process.
// Concurrent callers for the same id share a single creation; only successes are kept.
type ChannelRegistrar struct {
	notifier platform.Notifier
	group    singleflight.Group

	mu       sync.RWMutex
	channels map[string]string
}

func NewChannelRegistrar(notifier platform.Notifier) *ChannelRegistrar {
	return &ChannelRegistrar{
		notifier: notifier,
		channels: make(map[string]string),
	}
}

// Ensure returns the platform channel id for id, creating the channel if needed.
func (r *ChannelRegistrar) Ensure(ctx context.Context, id, name string) (string, error) {
	if channelID, ok := r.lookup(id); ok {
		return channelID, nil
	}

	ch := r.group.DoChan(id, func() (any, error) {
		// A creation that finished between lookup and DoChan has already been stored.
		if channelID, ok := r.lookup(id); ok {
			return channelID, nil
		}
		channelID, err := r.notifier.CreateChannel(ctx, models.NotificationChannel{ID: id, Name: name})
		if err != nil {
			return "", fmt.Errorf("%w: %s: %w", ErrChannelCreationFailed, id, err)
		}
		if channelID == "" {
			channelID = id
		}
		r.mu.Lock()
		r.channels[id] = channelID
		r.mu.Unlock()
		return channelID, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Ready reports whether id has been created.
func (r *ChannelRegistrar) Ready(id string) bool {
	_, ok := r.lookup(id)
	return ok
}

func (r *ChannelRegistrar) lookup(id string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	channelID, ok := r.channels[id]
	return channelID, ok
}
