package internalcheck

import (
	"fmt"
	"go/ast"
	"go/types"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/tools/go/packages"
)

// Standard output carries print_string payloads only. The host's default
// printer is the single place allowed to name os.Stdout.
var stdoutAllowed = map[string]bool{
	"host.go": true,
}

func TestNoStdoutDiagnostics(t *testing.T) {
	mode := packages.NeedSyntax | packages.NeedTypes | packages.NeedTypesInfo | packages.NeedFiles | packages.NeedCompiledGoFiles | packages.NeedName
	pkgs := load(t, mode, modulePath+"/pkg/...", modulePath+"/internal/abi")

	var findings []string
	allowed := 0
	for _, pkg := range pkgs {
		for _, file := range pkg.Syntax {
			name := sourceName(pkg, file)
			if strings.HasSuffix(name, "_test.go") {
				continue
			}
			ast.Inspect(file, func(n ast.Node) bool {
				switch n := n.(type) {
				case *ast.CallExpr:
					if id, ok := n.Fun.(*ast.Ident); ok && (id.Name == "print" || id.Name == "println") {
						if _, builtin := pkg.TypesInfo.Uses[id].(*types.Builtin); builtin {
							findings = append(findings, fmt.Sprintf("%s: builtin %s writes to stderr unstructured", pkg.Fset.Position(n.Pos()), id.Name))
						}
					}
				case *ast.SelectorExpr:
					obj := pkg.TypesInfo.Uses[n.Sel]
					if obj == nil || obj.Pkg() == nil {
						return true
					}
					switch {
					case obj.Pkg().Path() == "fmt" && strings.HasPrefix(obj.Name(), "Print"):
						findings = append(findings, fmt.Sprintf("%s: fmt.%s writes to stdout", pkg.Fset.Position(n.Pos()), obj.Name()))
					case obj.Pkg().Path() == "log" && !strings.HasPrefix(pkg.PkgPath, modulePath+"/pkg/ftrace/logging"):
						findings = append(findings, fmt.Sprintf("%s: use pkg/ftrace/logging instead of log.%s", pkg.Fset.Position(n.Pos()), obj.Name()))
					case obj.Pkg().Path() == "os" && obj.Name() == "Stdout":
						if stdoutAllowed[name] {
							allowed++
							return true
						}
						findings = append(findings, fmt.Sprintf("%s: os.Stdout is reserved for print_string", pkg.Fset.Position(n.Pos())))
					}
				}
				return true
			})
		}
	}

	if len(findings) > 0 {
		t.Fatalf("stdout policy violation:\n%s", strings.Join(findings, "\n"))
	}
	if allowed == 0 {
		t.Fatalf("no os.Stdout use matched %v; file names are not resolving", stdoutAllowed)
	}
}

// sourceName returns the base name of the file a syntax tree was parsed from.
func sourceName(pkg *packages.Package, file *ast.File) string {
	tf := pkg.Fset.File(file.Pos())
	if tf == nil {
		return ""
	}
	return filepath.Base(tf.Name())
}
