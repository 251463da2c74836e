package bridge

import (
	"errors"
	"fmt"
	"log"
)

var (
	// ErrNotInitialized is returned when an operation needs an active core
	// and Initialize has not completed (or Deinit already ran).
	ErrNotInitialized = errors.New("bridge not initialized")

	// ErrAlreadyInitialized is returned by a second Initialize without an
	// intervening Deinit.
	ErrAlreadyInitialized = errors.New("bridge already initialized")

	// ErrLoadRejected is returned when the core declines a game image.
	ErrLoadRejected = errors.New("game image rejected")

	// ErrBufferOverflow marks a video frame larger than the frame buffer.
	ErrBufferOverflow = errors.New("video frame exceeds frame buffer capacity")

	// ErrInvalidArgument marks a malformed argument. SetInputState absorbs
	// it silently; Initialize returns it for a nil host.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrReentrantCall is returned when a host callback tries to drive the
	// session while a core entry point is still running.
	ErrReentrantCall = errors.New("lifecycle call from inside a core callback")

	// ErrCallbackOutsideCall marks a core callback that fired while no
	// entry point was running.
	ErrCallbackOutsideCall = errors.New("core callback outside an entry point")
)

// Fault is the panic value raised for broken bridge invariants. Continuing
// after one of these would risk writing outside the frame buffer, so they
// are never returned as ordinary errors.
type Fault struct {
	Err    error
	Detail string
}

func (f *Fault) Error() string {
	return fmt.Sprintf("%v: %s", f.Err, f.Detail)
}

func (f *Fault) Unwrap() error {
	return f.Err
}

// fault logs and panics with a *Fault.
func fault(err error, format string, args ...any) {
	f := &Fault{Err: err, Detail: fmt.Sprintf(format, args...)}
	log.Printf("Fatal: %v", f)
	panic(f)
}
