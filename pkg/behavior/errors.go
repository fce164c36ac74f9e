package behavior

import "errors"

var (
	// ErrMissingAnimation is returned when a required animation is not registered.
	ErrMissingAnimation = errors.New("behavior: missing animation")

	// ErrIncompatibleAnimation is returned when a registered animation lacks
	// the capability its role needs, such as a library that cannot Start.
	ErrIncompatibleAnimation = errors.New("behavior: incompatible animation")

	// ErrMissingContext is returned when a required collaborator is nil.
	ErrMissingContext = errors.New("behavior: missing context")
)
