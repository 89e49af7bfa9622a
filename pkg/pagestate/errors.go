package pagestate

import "errors"

var (
	ErrInvalidView    = errors.New("pagestate: invalid view")
	ErrInvalidTrigger = errors.New("pagestate: trigger cannot be fired from the UI")
)
