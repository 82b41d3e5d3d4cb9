package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/CyberwizD/notification-ingest/internal/models"
)

// NotificationRecord is one received notification and its read state.
type NotificationRecord struct {
	ID         string `gorm:"primaryKey"`
	Source     string
	Title      string
	Body       string
	ResourceID string `gorm:"index"`
	ReceivedAt time.Time
	Read       bool
	ReadAt     *time.Time
}

// InboxStore persists received notifications so read state survives restarts.
type InboxStore struct {
	db        *gorm.DB
	tableName string
	now       func() time.Time
}

func NewInboxStore(db *gorm.DB, tableName string) *InboxStore {
	if tableName == "" {
		tableName = "notification_inbox"
	}
	return &InboxStore{
		db:        db,
		tableName: tableName,
		now:       time.Now,
	}
}

// Migrate creates or updates the inbox table.
func (s *InboxStore) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).Table(s.tableName).AutoMigrate(&NotificationRecord{})
}

// Record stores n. A notification seen twice (delivered, then tapped) keeps its first record.
func (s *InboxStore) Record(ctx context.Context, n models.IncomingNotification) error {
	rec := NotificationRecord{
		ID:         n.ID,
		Source:     string(n.Source),
		Title:      n.Title,
		Body:       n.Body,
		ResourceID: n.ResourceID,
		ReceivedAt: n.ReceivedAt,
	}
	return s.db.WithContext(ctx).Table(s.tableName).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoNothing: true,
		}).Create(&rec).Error
}

// MarkRead flags the notification as read. Unknown ids are not an error.
func (s *InboxStore) MarkRead(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Table(s.tableName).
		Where("id = ? AND read = ?", id, false).
		Updates(map[string]any{"read": true, "read_at": s.now()}).Error
}
