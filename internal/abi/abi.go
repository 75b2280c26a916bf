//go:build cgo && !windows

package abi

/*
#include <stdbool.h>
#include <stdint.h>
*/
import "C"

import (
	"context"
	"fmt"
	"unsafe"

	"github.com/mingerfan/ftrace-dev/pkg/ftrace"
	"github.com/mingerfan/ftrace-dev/pkg/ftrace/boundary"
	"github.com/mingerfan/ftrace-dev/pkg/ftrace/riscv"
)

// host is swapped by tests.
var host = ftrace.Default

func init() {
	h := host()
	if err := ftrace.ApplyEnv(h); err != nil {
		h.Logger().Error(context.Background(), "apply config from environment failed",
			"env", ftrace.EnvConfig, "err", err)
	}
}

func guard(op string, fn func(h *ftrace.Host) error) C.int32_t {
	h := host()
	return C.int32_t(boundary.Guard(h.Logger(), op, func() error {
		return fn(h)
	}))
}

func goPath(p *C.char) (string, error) {
	s, err := boundary.GoString(unsafe.Pointer(p))
	if err != nil {
		return "", fmt.Errorf("path argument: %w", err)
	}
	if s == "" {
		return "", fmt.Errorf("path argument: %w: empty", boundary.ErrInvalidBuffer)
	}
	return s, nil
}

//export add
func add(left, right C.uintptr_t) C.uintptr_t {
	return C.uintptr_t(boundary.Add(uintptr(left), uintptr(right)))
}

//export print_string
func print_string(in_string *C.char, m_len C.uintptr_t) C.int32_t {
	return guard("print_string", func(h *ftrace.Host) error {
		return h.Print(boundary.NewForeignBuffer(unsafe.Pointer(in_string), uintptr(m_len)))
	})
}

//export start_builder
func start_builder(main_path *C.char) C.int32_t {
	return guard("start_builder", func(h *ftrace.Host) error {
		path, err := goPath(main_path)
		if err != nil {
			return err
		}
		return h.StartBuilder(path)
	})
}

//export set_show_context
func set_show_context(show_context C.bool) C.int32_t {
	return guard("set_show_context", func(h *ftrace.Host) error {
		return h.SetShowContext(bool(show_context))
	})
}

//export add_prog_path
func add_prog_path(path *C.char) C.int32_t {
	return guard("add_prog_path", func(h *ftrace.Host) error {
		p, err := goPath(path)
		if err != nil {
			return err
		}
		return h.AddProgPath(p)
	})
}

//export build_builder
func build_builder() C.int32_t {
	return guard("build_builder", func(h *ftrace.Host) error {
		return h.Build()
	})
}

//export check_instruction
func check_instruction(pc C.uint64_t, inst C.uint32_t, regs *C.uint64_t) C.int32_t {
	return guard("check_instruction", func(h *ftrace.Host) error {
		if regs == nil {
			return fmt.Errorf("register file: %w: null pointer", boundary.ErrInvalidBuffer)
		}
		var file [riscv.NumRegs]uint64
		copy(file[:], unsafe.Slice((*uint64)(unsafe.Pointer(regs)), riscv.NumRegs))
		return h.CheckInstruction(uint64(pc), uint32(inst), file)
	})
}

//export print_stack
func print_stack(path *C.char) C.int32_t {
	return guard("print_stack", func(h *ftrace.Host) error {
		p, err := goPath(path)
		if err != nil {
			return err
		}
		return h.DumpStack(p)
	})
}

//export set_text_policy
func set_text_policy(policy C.int32_t) C.int32_t {
	return guard("set_text_policy", func(h *ftrace.Host) error {
		return h.SetTextPolicy(boundary.TextPolicy(policy))
	})
}

//export load_config
func load_config(path *C.char) C.int32_t {
	return guard("load_config", func(h *ftrace.Host) error {
		p, err := goPath(path)
		if err != nil {
			return err
		}
		cfg, err := ftrace.LoadConfig(p)
		if err != nil {
			return err
		}
		return h.ApplyConfig(cfg)
	})
}

//export stop_recording
func stop_recording() C.int32_t {
	return guard("stop_recording", func(h *ftrace.Host) error {
		return h.StopRecording()
	})
}
