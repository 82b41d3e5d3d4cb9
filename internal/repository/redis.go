package repository

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/CyberwizD/notification-ingest/internal/models"
)

const (
	pushTokenKey       = "session:push:token"
	pushPlatformKey    = "session:push:platform"
	coldStartKeyPrefix = "session:coldstart:handled:"
)

// SessionStore is the redis-backed key-value store shared with the session layer.
// It holds the current push token and remembers which launch notifications were routed.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &SessionStore{
		client: client,
		ttl:    ttl,
	}
}

func (s *SessionStore) Close() error {
	return s.client.Close()
}

// StoreToken saves the device token for the session layer to register server side.
// It implements services.TokenSink.
func (s *SessionStore) StoreToken(ctx context.Context, token models.DeviceToken) error {
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, pushTokenKey, token.Token, 0)
		p.Set(ctx, pushPlatformKey, token.Platform, 0)
		return nil
	})
	return err
}

// MarkColdStartHandled records messageID as routed. It returns false when the id was
// already recorded, in which case the caller must not route it again.
func (s *SessionStore) MarkColdStartHandled(ctx context.Context, messageID string) (bool, error) {
	return s.client.SetNX(ctx, coldStartKeyPrefix+messageID, "1", s.ttl).Result()
}
