package authevents

import "errors"

var (
	ErrHubClosed    = errors.New("authevents: hub is closed")
	ErrInvalidEvent = errors.New("authevents: invalid event kind")
	ErrNoSession    = errors.New("authevents: event requires a session")
)
