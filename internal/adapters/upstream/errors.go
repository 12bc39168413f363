package upstream

import "errors"

// ErrNotConfigured is returned when a provider is called without credentials.
var ErrNotConfigured = errors.New("provider not configured")
