package dataloader

import "errors"

var (
	ErrNotAuthenticated = errors.New("dataloader: session is not authenticated")
	ErrStale            = errors.New("dataloader: load finished after a state reset")
	ErrNoStartupFound   = errors.New("dataloader: no startup linked to profile")
)
