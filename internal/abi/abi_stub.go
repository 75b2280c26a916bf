//go:build !cgo || windows

package abi

// Available reports whether the C entry points are compiled in.
const Available = false
