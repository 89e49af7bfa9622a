package profile

import "errors"

var (
	ErrNotFound       = errors.New("profile: not found")
	ErrNotOwned       = errors.New("profile: belongs to another principal")
	ErrEmptyPrincipal = errors.New("profile: empty principal id")
	ErrEmptyProfileID = errors.New("profile: empty profile id")
	ErrDuplicate      = errors.New("profile: already exists")
)
