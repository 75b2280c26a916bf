package internalcheck

import (
	"testing"

	"golang.org/x/tools/go/packages"
)

const modulePath = "github.com/mingerfan/ftrace-dev"

func load(t *testing.T, mode packages.LoadMode, patterns ...string) []*packages.Package {
	t.Helper()
	pkgs, err := packages.Load(&packages.Config{Mode: mode}, patterns...)
	if err != nil {
		t.Fatalf("load packages: %v", err)
	}
	for _, pkg := range pkgs {
		for _, perr := range pkg.Errors {
			t.Fatalf("load %s: %v", pkg.PkgPath, perr)
		}
	}
	if len(pkgs) == 0 {
		t.Fatalf("no packages matched %v", patterns)
	}
	return pkgs
}
