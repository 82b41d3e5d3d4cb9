package models

import (
	"strings"
	"time"
)

const (
	PlatformIOS     = "ios"
	PlatformAndroid = "android"
)

// DeviceToken is the push token this device was issued.
type DeviceToken struct {
	Token    string    `json:"token"`
	Platform string    `json:"platform"`
	IssuedAt time.Time `json:"issued_at"`
}

// NormalizePlatform maps a platform string to ios or android. ok is false otherwise.
func NormalizePlatform(platform string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(platform)) {
	case "ios", "iphone", "ipados":
		return PlatformIOS, true
	case "android":
		return PlatformAndroid, true
	default:
		return "", false
	}
}

// NotificationChannel is the platform display category notifications are posted to.
type NotificationChannel struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// AppState is the coarse application lifecycle state.
type AppState string

const (
	AppStateActive     AppState = "active"
	AppStateBackground AppState = "background"
)

// ParseAppState accepts the states the native shell reports.
func ParseAppState(raw string) (AppState, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "active", "foreground":
		return AppStateActive, true
	case "background", "inactive", "suspended":
		return AppStateBackground, true
	default:
		return "", false
	}
}
