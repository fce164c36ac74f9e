package orchestrator

import "errors"

// ErrNotRegistered is returned when removing an animation that was never added.
var ErrNotRegistered = errors.New("orchestrator: animation not registered")
