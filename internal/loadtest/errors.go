package loadtest

import "errors"

// Error constants.
var (
	ErrUnhealthy    = errors.New("service is not healthy")
	ErrVerification = errors.New("responses did not match expected results")
	ErrNoLeads      = errors.New("number of leads must be positive")
)
