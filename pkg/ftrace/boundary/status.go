package boundary

import (
	"context"
	"errors"
	"fmt"

	"github.com/mingerfan/ftrace-dev/pkg/ftrace/logging"
)

// StatusCode is the integer result returned across the C ABI.
type StatusCode int32

// Status codes shared with include/ftrace.h.
const (
	RCSuccessCode StatusCode = 0
	RCErrorCode   StatusCode = -1
)

var (
	// ErrInvalidBuffer reports a null pointer with a positive length, or a
	// length that cannot be addressed.
	ErrInvalidBuffer = errors.New("boundary: invalid foreign buffer")

	// ErrWriteFailure reports that the output collaborator failed.
	ErrWriteFailure = errors.New("boundary: write failed")

	// ErrEncoding reports bytes rejected by PolicyReject.
	ErrEncoding = errors.New("boundary: invalid utf-8 text")

	// ErrPanic wraps a panic recovered by Guard.
	ErrPanic = errors.New("boundary: recovered panic")
)

// Status flattens err into a StatusCode.
func Status(err error) StatusCode {
	if err == nil {
		return RCSuccessCode
	}
	return RCErrorCode
}

// Guard runs fn and converts its outcome into a StatusCode. A panic raised by
// fn is recovered and reported as RCErrorCode. Failures are logged at warn
// level under op; logger may be nil.
func Guard(logger logging.Logger, op string, fn func() error) (code StatusCode) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("%w: %v", ErrPanic, r)
			if logger != nil {
				logger.Error(context.Background(), "boundary call panicked", "op", op, "error", err)
			}
			code = RCErrorCode
		}
	}()

	if err := fn(); err != nil {
		if logger != nil {
			logger.Warn(context.Background(), "boundary call failed", "op", op, "error", err)
		}
		return RCErrorCode
	}
	return RCSuccessCode
}
