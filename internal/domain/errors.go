package domain

import "errors"

var (
	// ErrConnection means the bus connection could not be established or was lost.
	ErrConnection = errors.New("bus connection error")
	// ErrTransport means a method or property call failed on an open connection.
	ErrTransport = errors.New("bus call failed")
	// ErrNoPlayer means a control command had no player to target.
	ErrNoPlayer = errors.New("no player available")
	// ErrInvalidArgument is wrapped by InvalidArgumentError.
	ErrInvalidArgument = errors.New("invalid argument")
)

// InvalidArgumentError reports a rejected user supplied value.
type InvalidArgumentError struct {
	Field   string
	Message string
}

func (e *InvalidArgumentError) Error() string {
	if e.Field != "" {
		return e.Field + ": " + e.Message
	}
	return e.Message
}

func (e *InvalidArgumentError) Unwrap() error {
	return ErrInvalidArgument
}
