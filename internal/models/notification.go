package models

import (
	"time"

	"github.com/google/uuid"
)

// Source is the provenance of a notification event.
type Source string

const (
	SourceForeground Source = "foreground"
	SourceBackground Source = "background"
	SourceTap        Source = "tap"
	SourceColdStart  Source = "cold-start"
)

// Alert is the optional display part of a remote message.
type Alert struct {
	Title string `json:"title,omitempty"`
	Body  string `json:"body,omitempty"`
}

// RemoteMessage is the raw object delivered by the push-messaging SDK.
type RemoteMessage struct {
	MessageID    string            `json:"message_id,omitempty"`
	Notification *Alert            `json:"notification,omitempty"`
	Data         map[string]string `json:"data,omitempty"`
	SentAt       time.Time         `json:"sent_at,omitempty"`
}

// IncomingNotification is the canonical record every event source is folded into.
// ResourceID is empty unless Payload carried a recognized routing key.
type IncomingNotification struct {
	ID         string            `json:"id"`
	Source     Source            `json:"source"`
	Title      string            `json:"title,omitempty"`
	Body       string            `json:"body,omitempty"`
	Payload    map[string]string `json:"payload,omitempty"`
	ResourceID string            `json:"resource_id,omitempty"`
	ReceivedAt time.Time         `json:"received_at"`
	Seq        uint64            `json:"seq"`
}

// HasAlert reports whether there is anything to show. Data-only pushes have no alert.
func (n IncomingNotification) HasAlert() bool {
	return n.Title != "" || n.Body != ""
}

// Routable reports whether the notification carries a target.
func (n IncomingNotification) Routable() bool {
	return n.ResourceID != ""
}

// NewNotificationID returns a fresh identifier for messages that arrive without one.
func NewNotificationID() string {
	return uuid.NewString()
}
