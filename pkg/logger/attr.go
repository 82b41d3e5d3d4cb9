package logger

import "log/slog"

// Error records err under "error". A nil error yields an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// Component records the component name under "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// Op records the originating operation under "op".
func Op(name string) slog.Attr {
	return slog.String("op", name)
}

// Source records the event provenance under "source".
func Source(source string) slog.Attr {
	return slog.String("source", source)
}

// NotificationID records the notification identifier under "notification_id".
func NotificationID(id string) slog.Attr {
	return slog.String("notification_id", id)
}

// ResourceID records the routed resource under "resource_id".
// An empty id yields an empty Attr.
func ResourceID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("resource_id", id)
}
