package models

import "time"

// TargetKind is the kind of screen a target routes to.
type TargetKind string

const (
	KindVideo   TargetKind = "video"
	KindChannel TargetKind = "channel"
)

// Origin tells which pipeline path produced a target.
type Origin string

const (
	OriginPush        Origin = "push"
	OriginAttribution Origin = "attribution"
)

// PendingTarget is the single unconsumed navigation intent.
type PendingTarget struct {
	ResourceID string     `json:"resource_id"`
	Kind       TargetKind `json:"kind"`
	Origin     Origin     `json:"origin"`
	SetAt      time.Time  `json:"set_at"`
}

// Attribution domains reported by the link provider.
const (
	DomainShareVideo   = "share_video"
	DomainShareChannel = "share_channel"
)

// DeeplinkAttribution is a resolved shared link.
type DeeplinkAttribution struct {
	ResourceID string `json:"resource_id"`
	Domain     string `json:"domain"`
}

// Kind maps the attribution domain to a target kind. ok is false for unknown domains.
func (a DeeplinkAttribution) Kind() (TargetKind, bool) {
	switch a.Domain {
	case DomainShareVideo:
		return KindVideo, true
	case DomainShareChannel:
		return KindChannel, true
	default:
		return "", false
	}
}

// AttributionCallback is the raw callback payload from the attribution provider.
type AttributionCallback struct {
	Error  string         `json:"error,omitempty"`
	Params map[string]any `json:"params,omitempty"`
	URI    string         `json:"uri,omitempty"`
}
