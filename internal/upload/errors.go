package upload

import (
	"errors"
	"fmt"
)

var (
	// ErrJobAlreadyInProgress rejects a start request while a job of the
	// same project is collecting or transferring.
	ErrJobAlreadyInProgress = errors.New("upload already in progress")
	// ErrConfigurationInvalid means no usable profile is active.
	ErrConfigurationInvalid = errors.New("no valid upload profile configured")
)

// ItemError is a failed transfer of a single item. The job goes on.
type ItemError struct {
	Path string
	Err  error
}

func (e *ItemError) Error() string { return fmt.Sprintf("%s: %v", e.Path, e.Err) }
func (e *ItemError) Unwrap() error { return e.Err }

// FatalError is a connection level failure: the job stops dispatching.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string { return fmt.Sprintf("fatal transfer error: %v", e.Err) }
func (e *FatalError) Unwrap() error { return e.Err }

// Fatal marks err as connection level. A nil err stays nil.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	var fe *FatalError
	if errors.As(err, &fe) {
		return err
	}
	return &FatalError{Err: err}
}

// IsFatal reports whether err, or anything it wraps, is a FatalError.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}
