package coordinator

import "errors"

var (
	ErrTabNotFound       = errors.New("coordinator: tab not found")
	ErrTabNotOwned       = errors.New("coordinator: tab belongs to another browser")
	ErrTooManyTabs       = errors.New("coordinator: too many open tabs")
	ErrRegistryClosed    = errors.New("coordinator: registry is closed")
	ErrUnverifiedSession = errors.New("coordinator: session is not vouched for by a provider token")
	ErrInvalidURL        = errors.New("coordinator: invalid tab url")
)
