// Package ftrace is the Go side of a RISC-V function tracer that an emulator
// loads as a C shared library.
//
// The package owns the process-wide Host behind the exported C functions:
// the builder that collects ELF images, the call-stack manager fed by
// check_instruction, and the printer behind print_string. The host can be
// driven directly from Go (the ftrace CLI replays recorded traces this way)
// and is safe for concurrent use.
//
// Configuration comes from a TOML or YAML file, loaded explicitly or through
// the FTRACE_CONFIG environment variable when the shared library starts.
package ftrace
