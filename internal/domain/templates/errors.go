package templates

import "errors"

// ErrUnknownTemplate is returned for template IDs with no copy on a channel.
var ErrUnknownTemplate = errors.New("unknown template")
