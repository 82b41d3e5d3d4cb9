package services

import "strings"

// DefaultRoutingKeys are the payload keys that carry a content identifier.
var DefaultRoutingKeys = []string{"video_id"}

// ExtractResourceID returns the first non-blank value among keys. present reports whether
// any key appeared at all, so callers can tell a non-routable push from a broken one.
func ExtractResourceID(payload map[string]string, keys []string) (id string, present bool) {
	for _, key := range keys {
		v, ok := payload[key]
		if !ok {
			continue
		}
		present = true
		if v = strings.TrimSpace(v); v != "" {
			return v, true
		}
	}
	return "", present
}
