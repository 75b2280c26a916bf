package tracer

import (
	"time"

	"github.com/mingerfan/ftrace-dev/pkg/ftrace/elfsym"
)

// NoImage marks a frame whose code lies outside every loaded image.
const NoImage = -1

// Frame is one function activation on the traced call stack.
type Frame struct {
	// Image is the index of the owning image (0 is main) or NoImage.
	Image int
	// FuncID is the function id inside Image; meaningless for anonymous frames.
	FuncID int
	// Kind is Local for named functions and External for anonymous code.
	Kind elfsym.Kind

	// lo/hi bound anonymous frames inside an image.
	lo, hi uint64

	// Args holds a0..a7 at entry when context capture is on.
	Args []uint64
	// Ret holds (a0, a1) at the last return from this frame when context
	// capture is on.
	Ret *[2]uint64

	Start time.Duration
	End   time.Duration
}

// Anonymous reports whether the frame has no symbol.
func (f *Frame) Anonymous() bool {
	return f.Kind == elfsym.External
}
