package service

import "errors"

// Stable error kinds surfaced to API callers. Push failures are never
// errors: an unreachable peer just means no live notification.
var (
	ErrInvalidMessage   = errors.New("message content or file is required")
	ErrUnsupportedMedia = errors.New("unsupported media type")
	ErrForbidden        = errors.New("operation not allowed")
	ErrNotFound         = errors.New("not found")
)
