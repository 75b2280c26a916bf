// Package internalcheck holds repository policy tests.
//
// The tests load the module's packages with golang.org/x/tools/go/packages
// and fail on code that breaks the layering of the shared library:
// cgo outside internal/abi, diagnostics written to standard output, and C
// entry points that bypass the panic guard.
//
// # Internal Use Only
//
// The package has no API and should not be imported.
package internalcheck
