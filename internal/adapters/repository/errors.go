package repository

import "errors"

// Sentinel kinds for repository errors.
var (
	ErrNotFound     = errors.New("record not found")
	ErrNotClaimed   = errors.New("scheduled send is not in flight")
	ErrInvalidLimit = errors.New("invalid list limit")
	ErrInvalidSend  = errors.New("invalid scheduled send")
)
