package analyzer

import (
	"fmt"
	"go/ast"
	"strings"
)

// deniedImportRoots are import path roots that submissions may not use.
var deniedImportRoots = map[string]bool{
	"os":      true,
	"syscall": true,
	"net":     true,
	"unsafe":  true,
	"plugin":  true,
	"reflect": true,
}

// deniedCalls are qualified calls that are rejected outright.
var deniedCalls = map[string]bool{
	"os.Open":             true,
	"os.OpenFile":         true,
	"os.Remove":           true,
	"os.RemoveAll":        true,
	"exec.Command":        true,
	"exec.CommandContext": true,
	"plugin.Open":         true,
	"syscall.Exec":        true,
	"syscall.ForkExec":    true,
}

// scanSafety collects every deny-list violation in the file. It runs before
// feature extraction; a non-empty result means the unit is flagged and
// extraction is skipped.
func scanSafety(file *ast.File) []string {
	var violations []string

	for _, imp := range file.Imports {
		path := strings.Trim(imp.Path.Value, `"`)
		root := path
		if i := strings.Index(path, "/"); i >= 0 {
			root = path[:i]
		}
		if deniedImportRoots[root] {
			violations = append(violations, fmt.Sprintf("forbidden import: %s", path))
		}
	}

	ast.Inspect(file, func(n ast.Node) bool {
		call, ok := n.(*ast.CallExpr)
		if !ok {
			return true
		}
		sel, ok := call.Fun.(*ast.SelectorExpr)
		if !ok {
			return true
		}
		pkg, ok := sel.X.(*ast.Ident)
		if !ok {
			return true
		}
		name := pkg.Name + "." + sel.Sel.Name
		if deniedCalls[name] {
			violations = append(violations, fmt.Sprintf("unsafe call: %s()", name))
		}
		return true
	})

	return violations
}
