// Package platform describes the OS calls the pipeline makes through the native bridge.
// Every method may block on the bridge round trip.
package platform

import (
	"context"
	"errors"

	"github.com/CyberwizD/notification-ingest/internal/models"
)

// ErrNotificationNotFound is returned by Notifier.Cancel when the id is not in the tray.
var ErrNotificationNotFound = errors.New("platform: notification not found")

// AuthorizationStatus is the OS notification authorization.
type AuthorizationStatus int

const (
	StatusNotDetermined AuthorizationStatus = iota
	StatusDenied
	StatusAuthorized
	StatusProvisional
)

func (s AuthorizationStatus) String() string {
	switch s {
	case StatusDenied:
		return "denied"
	case StatusAuthorized:
		return "authorized"
	case StatusProvisional:
		return "provisional"
	default:
		return "not_determined"
	}
}

// Allowed reports whether notifications may be shown.
func (s AuthorizationStatus) Allowed() bool {
	return s == StatusAuthorized || s == StatusProvisional
}

// DisplayRequest is a local notification to post.
type DisplayRequest struct {
	ID        string
	ChannelID string
	Title     string
	Body      string
	Data      map[string]string
}

// Permissions requests or queries notification authorization.
type Permissions interface {
	RequestPermission(ctx context.Context) (AuthorizationStatus, error)
}

// Messaging is the remote push SDK.
type Messaging interface {
	RegisterDeviceForRemoteMessages(ctx context.Context) error
	Token(ctx context.Context) (string, error)
	// InitialNotification returns the message that launched the process, or nil.
	InitialNotification(ctx context.Context) (*models.RemoteMessage, error)
}

// Notifier is the local notification SDK.
type Notifier interface {
	CreateChannel(ctx context.Context, ch models.NotificationChannel) (string, error)
	Display(ctx context.Context, req DisplayRequest) (string, error)
	Cancel(ctx context.Context, id string) error
	// ClearTray removes every displayed notification except those in keep.
	ClearTray(ctx context.Context, keep ...string) error
	SetBadgeCount(ctx context.Context, count int) error
}

// Bridge is the full native surface.
type Bridge interface {
	Permissions
	Messaging
	Notifier
}
