package analyzer

import (
	"fmt"
	"go/ast"
	"go/token"
	"strings"

	"github.com/gradelab/gograder/internal/models"
)

// memoKeywords mark assignment targets that suggest memoization tables.
var memoKeywords = []string{"dp", "memo", "cache", "table"}

// extractor walks the syntax tree once and accumulates the feature record.
// It implements ast.Visitor; ast.Walk calls Visit(nil) when it leaves a
// node, which is how loop depth is unwound.
type extractor struct {
	rec        *models.FeatureRecord
	complexity int
	loopDepth  int
	stack      []ast.Node
}

// extract runs a single pre-order walk over the parsed file and returns
// the feature record plus the cyclomatic complexity (1 + loops + conds).
func extract(file *ast.File) (*models.FeatureRecord, int) {
	x := &extractor{
		rec:        &models.FeatureRecord{},
		complexity: 1,
	}
	ast.Walk(x, file)
	return x.rec, x.complexity
}

// Visit implements ast.Visitor.
func (x *extractor) Visit(n ast.Node) ast.Visitor {
	if n == nil {
		popped := x.stack[len(x.stack)-1]
		x.stack = x.stack[:len(x.stack)-1]
		if isLoop(popped) {
			x.loopDepth--
		}
		return nil
	}
	x.stack = append(x.stack, n)
	x.record(n)

	switch t := n.(type) {
	case *ast.FuncDecl:
		x.rec.FuncCount++
		name := strings.ToLower(t.Name.Name)
		x.rec.FuncNames = append(x.rec.FuncNames, name)
		if callsSelf(t) {
			x.rec.Recursion = true
		}

	case *ast.TypeSpec:
		x.rec.TypeDefined = true
		x.rec.VarNames = append(x.rec.VarNames, strings.ToLower(t.Name.Name))

	case *ast.ForStmt:
		x.enterLoop()
		// while-shaped loops are scanned for the halving idiom that marks
		// binary search (x / 2 or x >> 1 somewhere in the loop).
		if t.Cond != nil && containsHalving(t) {
			x.rec.Hints.Halving = true
		}

	case *ast.RangeStmt:
		x.enterLoop()

	case *ast.IfStmt:
		x.rec.Conds++
		x.complexity++

	case *ast.CaseClause:
		if t.List != nil {
			x.rec.Conds++
			x.complexity++
		}

	case *ast.CommClause:
		if t.Comm != nil {
			x.rec.Conds++
			x.complexity++
		}

	case *ast.AssignStmt:
		// a, b = b, a style parallel assignment suggests a swap.
		if len(t.Lhs) == 2 && len(t.Rhs) == 2 {
			x.rec.Hints.Swap = true
		}
		for _, lhs := range t.Lhs {
			if ident, ok := lhs.(*ast.Ident); ok {
				x.noteMemoName(ident.Name)
			}
		}

	case *ast.ValueSpec:
		for _, name := range t.Names {
			x.noteMemoName(name.Name)
		}
		if t.Type != nil {
			x.noteDeclaredType(t.Type)
		}

	case *ast.Ident:
		x.rec.VarNames = append(x.rec.VarNames, strings.ToLower(t.Name))

	case *ast.IndexExpr:
		// x[i][j] means two-dimensional access.
		if _, ok := t.X.(*ast.IndexExpr); ok {
			x.rec.Hints.Matrix = true
		}

	case *ast.CompositeLit:
		x.noteCompositeType(t.Type)

	case *ast.CallExpr:
		// make(map[...]...) and make([]...) count as data-structure usage
		// even without a literal.
		if fn, ok := t.Fun.(*ast.Ident); ok && fn.Name == "make" && len(t.Args) > 0 {
			x.noteCompositeType(t.Args[0])
		}

	case *ast.ImportSpec:
		path := strings.Trim(t.Path.Value, `"`)
		if strings.HasPrefix(path, "container/") {
			x.rec.DS.Deque = true
		}
	}

	return x
}

// record appends the node-type token for fingerprinting. The file node
// itself and comments are markup, not structure.
func (x *extractor) record(n ast.Node) {
	switch n.(type) {
	case *ast.File, *ast.Comment, *ast.CommentGroup:
		return
	}
	x.rec.Tokens = append(x.rec.Tokens, nodeToken(n))
}

func (x *extractor) enterLoop() {
	x.rec.Loops++
	x.complexity++
	x.loopDepth++
	if x.loopDepth > x.rec.MaxLoopDepth {
		x.rec.MaxLoopDepth = x.loopDepth
	}
	if x.loopDepth > 1 {
		x.rec.NestedLoops = true
	}
}

func (x *extractor) noteMemoName(name string) {
	lower := strings.ToLower(name)
	for _, kw := range memoKeywords {
		if strings.Contains(lower, kw) {
			x.rec.Hints.Memo = true
			return
		}
	}
}

// noteDeclaredType flags data-structure usage from an explicit var type.
// Unlike literals, a bare named type here is just a scalar declaration.
func (x *extractor) noteDeclaredType(expr ast.Expr) {
	switch t := expr.(type) {
	case *ast.ArrayType:
		x.rec.DS.Slice = true
	case *ast.MapType:
		x.rec.DS.Map = true
		if isEmptyStruct(t.Value) {
			x.rec.DS.Set = true
		}
	case *ast.StructType:
		x.rec.DS.Struct = true
	}
}

// noteCompositeType flags data-structure usage from a literal or make type.
func (x *extractor) noteCompositeType(expr ast.Expr) {
	switch t := expr.(type) {
	case *ast.ArrayType:
		x.rec.DS.Slice = true
	case *ast.MapType:
		x.rec.DS.Map = true
		if isEmptyStruct(t.Value) {
			x.rec.DS.Set = true
		}
	case *ast.StructType:
		x.rec.DS.Struct = true
	case *ast.Ident, *ast.SelectorExpr:
		// Named type literal; counts as a record/struct usage.
		x.rec.DS.Struct = true
	}
}

func isEmptyStruct(expr ast.Expr) bool {
	st, ok := expr.(*ast.StructType)
	return ok && st.Fields != nil && len(st.Fields.List) == 0
}

func isLoop(n ast.Node) bool {
	switch n.(type) {
	case *ast.ForStmt, *ast.RangeStmt:
		return true
	}
	return false
}

// callsSelf reports whether the function body contains a direct, unaliased
// call to the function's own name.
func callsSelf(fn *ast.FuncDecl) bool {
	if fn.Body == nil {
		return false
	}
	found := false
	ast.Inspect(fn.Body, func(n ast.Node) bool {
		call, ok := n.(*ast.CallExpr)
		if !ok {
			return true
		}
		if ident, ok := call.Fun.(*ast.Ident); ok && ident.Name == fn.Name.Name {
			found = true
			return false
		}
		return true
	})
	return found
}

// containsHalving reports whether the subtree contains an integer division
// by two or a right shift by one.
func containsHalving(n ast.Node) bool {
	found := false
	ast.Inspect(n, func(node ast.Node) bool {
		bin, ok := node.(*ast.BinaryExpr)
		if !ok {
			return true
		}
		lit, ok := bin.Y.(*ast.BasicLit)
		if !ok || lit.Kind != token.INT {
			return true
		}
		if (bin.Op == token.QUO && lit.Value == "2") ||
			(bin.Op == token.SHR && lit.Value == "1") {
			found = true
			return false
		}
		return true
	})
	return found
}

// nodeToken returns the node-type name used in the fingerprint token
// sequence, e.g. "ForStmt" for *ast.ForStmt.
func nodeToken(n ast.Node) string {
	return strings.TrimPrefix(fmt.Sprintf("%T", n), "*ast.")
}
