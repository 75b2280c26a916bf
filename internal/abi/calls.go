//go:build cgo && !windows

package abi

/*
#include <stdbool.h>
#include <stdint.h>
#include <stdlib.h>
*/
import "C"

import (
	"unsafe"

	"github.com/mingerfan/ftrace-dev/pkg/ftrace/riscv"
)

// The helpers below drive the entry points with C-allocated arguments, the
// way an emulator would. Test files cannot use cgo directly.

func cBytes(b []byte) (*C.char, func()) {
	if b == nil {
		return nil, func() {}
	}
	p := C.CBytes(b)
	return (*C.char)(p), func() { C.free(p) }
}

func cString(s string) (*C.char, func()) {
	p := C.CString(s)
	return p, func() { C.free(unsafe.Pointer(p)) }
}

// CallAdd invokes add.
func CallAdd(left, right uintptr) uintptr {
	return uintptr(add(C.uintptr_t(left), C.uintptr_t(right)))
}

// CallPrintString invokes print_string with a C copy of b. A nil b passes a
// null pointer with length n.
func CallPrintString(b []byte, n uintptr) int32 {
	p, free := cBytes(b)
	defer free()
	return int32(print_string(p, C.uintptr_t(n)))
}

// CallStartBuilder invokes start_builder.
func CallStartBuilder(path string) int32 {
	p, free := cString(path)
	defer free()
	return int32(start_builder(p))
}

// CallSetShowContext invokes set_show_context.
func CallSetShowContext(on bool) int32 {
	return int32(set_show_context(C.bool(on)))
}

// CallAddProgPath invokes add_prog_path.
func CallAddProgPath(path string) int32 {
	p, free := cString(path)
	defer free()
	return int32(add_prog_path(p))
}

// CallBuildBuilder invokes build_builder.
func CallBuildBuilder() int32 {
	return int32(build_builder())
}

// CallCheckInstruction invokes check_instruction with a C copy of regs. A
// nil regs passes a null pointer.
func CallCheckInstruction(pc uint64, inst uint32, regs *[riscv.NumRegs]uint64) int32 {
	if regs == nil {
		return int32(check_instruction(C.uint64_t(pc), C.uint32_t(inst), nil))
	}
	size := C.size_t(riscv.NumRegs * 8)
	p := C.malloc(size)
	defer C.free(p)
	copy(unsafe.Slice((*uint64)(p), riscv.NumRegs), regs[:])
	return int32(check_instruction(C.uint64_t(pc), C.uint32_t(inst), (*C.uint64_t)(p)))
}

// CallPrintStack invokes print_stack.
func CallPrintStack(path string) int32 {
	p, free := cString(path)
	defer free()
	return int32(print_stack(p))
}

// CallSetTextPolicy invokes set_text_policy.
func CallSetTextPolicy(policy int32) int32 {
	return int32(set_text_policy(C.int32_t(policy)))
}

// CallLoadConfig invokes load_config.
func CallLoadConfig(path string) int32 {
	p, free := cString(path)
	defer free()
	return int32(load_config(p))
}

// CallStopRecording invokes stop_recording.
func CallStopRecording() int32 {
	return int32(stop_recording())
}

// CallStartBuilderRaw invokes start_builder with raw as the path bytes. raw
// must contain a NUL or be longer than boundary.MaxPathLen.
func CallStartBuilderRaw(raw []byte) int32 {
	p, free := cBytes(raw)
	defer free()
	return int32(start_builder(p))
}
