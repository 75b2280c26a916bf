// Package boundary implements the checks and conversions every function
// exported to C callers goes through.
//
// # Buffers
//
// Memory handed over by a foreign caller is described by a ForeignBuffer: a
// pointer and a length. The buffer is borrowed for the duration of a single
// call. Bytes returns a view that aliases caller memory and must not escape
// the call; Copy is the only way to obtain an owned []byte.
//
// # Status codes
//
// Inside Go every operation returns a regular error. Only the exported
// function signature flattens it to a StatusCode:
//
//	RCSuccessCode =  0
//	RCErrorCode   = -1
//
// Guard performs that flattening and recovers panics so that no unwinding
// ever crosses into the foreign caller.
//
// # Text policy
//
// Print treats the bytes as text. Invalid UTF-8 is either rejected with
// ErrEncoding (PolicyReject, the default) or replaced with U+FFFD per invalid
// run (PolicyReplace).
package boundary
