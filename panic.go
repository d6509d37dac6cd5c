package jobpool

import (
	"fmt"
	"runtime/debug"
)

// PanicError is reported when a job panics. The worker that ran the job keeps
// serving the queue.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("job panicked: %v", e.Value)
}

// Unwrap exposes the panic value when it is an error, so errors.Is and
// errors.As see through panic(err).
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// safeRun calls fn and converts a panic into a *PanicError.
func safeRun(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return fn()
}
