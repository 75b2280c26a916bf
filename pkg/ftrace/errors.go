package ftrace

import (
	"errors"

	"github.com/mingerfan/ftrace-dev/pkg/ftrace/boundary"
	"github.com/mingerfan/ftrace-dev/pkg/ftrace/elfsym"
	"github.com/mingerfan/ftrace-dev/pkg/ftrace/tracefile"
	"github.com/mingerfan/ftrace-dev/pkg/ftrace/tracer"
)

var (
	// ErrNoBuilder indicates a builder operation before StartBuilder.
	ErrNoBuilder = errors.New("ftrace: no builder started")
	// ErrAlreadyBuilt indicates the tracer was already built for this process.
	ErrAlreadyBuilt = errors.New("ftrace: tracer already built")
	// ErrNotBuilt indicates an operation that needs a built tracer.
	ErrNotBuilt = errors.New("ftrace: tracer not built")
	// ErrInvalidConfig indicates a configuration value that cannot be applied.
	ErrInvalidConfig = errors.New("ftrace: invalid config")
)

// Errors surfaced by the lower layers, re-exported so callers only need this
// package for errors.Is checks.
var (
	ErrInvalidBuffer    = boundary.ErrInvalidBuffer
	ErrWriteFailure     = boundary.ErrWriteFailure
	ErrEncoding         = boundary.ErrEncoding
	ErrUnbalancedReturn = tracer.ErrUnbalancedReturn
	ErrNoSymbols        = elfsym.ErrNoSymbols
	ErrNoFunctions      = elfsym.ErrNoFunctions
	ErrTruncated        = tracefile.ErrTruncated
	ErrBadMagic         = tracefile.ErrBadMagic
)

var publicErrors = []error{
	ErrNoBuilder,
	ErrAlreadyBuilt,
	ErrNotBuilt,
	ErrInvalidConfig,
	ErrInvalidBuffer,
	ErrWriteFailure,
	ErrEncoding,
	ErrUnbalancedReturn,
	ErrNoSymbols,
	ErrNoFunctions,
	ErrTruncated,
	ErrBadMagic,
}

// RemapError reduces an error chain to the public sentinel it wraps, so the
// CLI and the C surface report stable values. Errors wrapping no sentinel
// are returned unchanged.
func RemapError(err error) error {
	if err == nil {
		return nil
	}
	for _, target := range publicErrors {
		if errors.Is(err, target) {
			return target
		}
	}
	return err
}
