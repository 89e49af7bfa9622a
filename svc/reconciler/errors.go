package reconciler

import "errors"

var (
	ErrEmailNotConfirmed = errors.New("reconciler: email address is not confirmed")
	ErrNotSignedIn       = errors.New("reconciler: no signed-in principal")
	ErrDebugDisabled     = errors.New("reconciler: debug controller is disabled")
)
