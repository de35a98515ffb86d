package errors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrInvalid     = errors.New("invalid")
	ErrTooMany     = errors.New("too many requests")
	ErrRemote      = errors.New("remote call failed")
	ErrUnavailable = errors.New("service unavailable")
)

// RemoteError marks a failure of a call into the warehouse or a hosted model.
// Stage names the step of the chat pipeline that failed.
type RemoteError struct {
	Stage string
	Err   error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

func (e *RemoteError) Is(target error) bool {
	return target == ErrRemote
}

func Remote(stage string, err error) error {
	if err == nil {
		return nil
	}
	var re *RemoteError
	if errors.As(err, &re) {
		return err
	}
	return &RemoteError{Stage: stage, Err: err}
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
