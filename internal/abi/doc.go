// Package abi holds the C entry points of the ftrace shared library.
//
// # Design Principles
//
//  1. Isolation: this is the only package that imports "C". Everything it
//     calls is plain Go in pkg/ftrace.
//
//  2. Borrowed memory: pointers received from C are wrapped in
//     boundary.ForeignBuffer for the duration of one call. Nothing is
//     retained or freed here.
//
//  3. Status codes: every entry point that can fail returns int32_t, 0 on
//     success and -1 on failure. Errors and panics are flattened by
//     boundary.Guard and logged to stderr.
//
//  4. Paths arrive as NUL-terminated strings and are scanned for at most
//     boundary.MaxPathLen bytes.
//
// # Threading
//
// Entry points may be called from any C thread. Tracer state lives in the
// process-wide ftrace.Host, which serialises access.
//
// The matching declarations are in include/ftrace.h. Builds without cgo,
// and Windows builds, export no entry points; they compile only the
// Available constant, set to false.
package abi
