package session

import "errors"

// FatalError marks an error the session cannot recover from; the caller
// must end the session and start a new one.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string { return "fatal session error: " + e.Err.Error() }

func (e *FatalError) Unwrap() error { return e.Err }

// Fatal wraps err as unrecoverable.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &FatalError{Err: err}
}

// IsFatal reports whether err carries the unrecoverable marker.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}
