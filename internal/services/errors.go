package services

import (
	"errors"
	"fmt"
)

// Failure kinds. None of them is fatal to the process; each disables one path at most.
var (
	ErrPermissionDenied      = errors.New("notification permission denied")
	ErrTokenUnavailable      = errors.New("push token unavailable")
	ErrChannelCreationFailed = errors.New("notification channel creation failed")
	ErrMalformedPayload      = errors.New("malformed notification payload")
	ErrAttributionError      = errors.New("attribution callback reported an error")
	ErrDisplayFailed         = errors.New("notification display failed")
	ErrPlatformCall          = errors.New("native bridge call failed")
	ErrStorage               = errors.New("local store unavailable")
)

// OpError ties a caught failure to the operation that produced it.
type OpError struct {
	Op   string
	Kind error
	Err  error
}

func (e *OpError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *OpError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// KindName returns a short label for metrics and logs.
func KindName(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, ErrTokenUnavailable):
		return "token_unavailable"
	case errors.Is(err, ErrChannelCreationFailed):
		return "channel_creation_failed"
	case errors.Is(err, ErrMalformedPayload):
		return "malformed_payload"
	case errors.Is(err, ErrAttributionError):
		return "attribution_error"
	case errors.Is(err, ErrDisplayFailed):
		return "display_failed"
	case errors.Is(err, ErrPlatformCall):
		return "platform_call"
	case errors.Is(err, ErrStorage):
		return "storage"
	default:
		return "unknown"
	}
}
