package relay

import "errors"

// ErrDuplicateDelivery is returned by handlers that detected an already
// processed event id. The coordinator acknowledges it without retrying.
var ErrDuplicateDelivery = errors.New("duplicate delivery of processed event")

// PermanentError wraps a handler failure that retrying cannot fix, such as a
// malformed email address. The coordinator dead-letters it immediately.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }

func (e *PermanentError) Unwrap() error { return e.Err }

func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}
