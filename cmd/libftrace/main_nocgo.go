//go:build !cgo || windows

package main

import (
	"fmt"
	"os"

	"github.com/mingerfan/ftrace-dev/internal/abi"
)

func main() {
	if !abi.Available {
		fmt.Fprintln(os.Stderr, "libftrace must be built with CGO_ENABLED=1 and -buildmode=c-shared")
		os.Exit(1)
	}
}
