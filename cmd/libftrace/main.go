//go:build cgo && !windows

// Command libftrace is built as the tracer's C shared library:
//
//	go build -buildmode=c-shared -o libftrace.so ./cmd/libftrace
//
// The entry points live in internal/abi; include/ftrace.h declares them.
package main

import "C"

import (
	_ "github.com/mingerfan/ftrace-dev/internal/abi"
)

func main() {}
