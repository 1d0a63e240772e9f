package analyzer

import (
	"go/ast"
	"go/types"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/inspect"
	"golang.org/x/tools/go/ast/inspector"
)

var Analyzer = &analysis.Analyzer{
	Name:     "goreleasetasks",
	Doc:      "Checks for common errors when writing release tasks",
	Run:      run,
	Requires: []*analysis.Analyzer{inspect.Analyzer},
}

func run(pass *analysis.Pass) (interface{}, error) {
	inspector := pass.ResultOf[inspect.Analyzer].(*inspector.Inspector)

	nodeFilter := []ast.Node{(*ast.FuncDecl)(nil)}

	inspector.Preorder(nodeFilter, func(node ast.Node) {
		funcDecl := node.(*ast.FuncDecl)

		if !isTaskFunc(funcDecl) {
			return
		}

		// Check return types
		if funcDecl.Type.Results == nil || len(funcDecl.Type.Results.List) == 0 {
			pass.Reportf(funcDecl.Pos(), "task %q doesn't return anything. needs to return at least `error`", funcDecl.Name.Name)
		} else {
			if len(funcDecl.Type.Results.List) > 2 {
				pass.Reportf(funcDecl.Pos(), "task %q returns more than two values", funcDecl.Name.Name)
				return
			}

			lastResult := funcDecl.Type.Results.List[len(funcDecl.Type.Results.List)-1]
			if types.ExprString(lastResult.Type) != "error" {
				pass.Reportf(funcDecl.Pos(), "task %q doesn't return `error` as last return value", funcDecl.Name.Name)
			} else if len(funcDecl.Type.Results.List) == 2 {
				firstResult := funcDecl.Type.Results.List[0]
				if types.ExprString(firstResult.Type) != "*core.Context" {
					pass.Reportf(funcDecl.Pos(), "task %q doesn't return `*core.Context` as first return value", funcDecl.Name.Name)
				}
			}
		}

		// Check for various errors in the task body
		for _, stmt := range funcDecl.Body.List {
			switch stmt := stmt.(type) {
			// Check for map iterations
			case *ast.RangeStmt:
				{
					t := pass.TypesInfo.TypeOf(stmt.X)
					if t == nil {
						continue
					}

					if _, ok := t.(*types.Map); !ok {
						continue
					}

					pass.Reportf(stmt.Pos(), "iterating over a map is not deterministic and not allowed in tasks")
				}

			// Check for `go` statements
			case *ast.GoStmt:
				pass.Reportf(stmt.Pos(), "starting goroutines in tasks is not allowed")
			}
		}
	})

	return nil, nil
}

func isTaskFunc(funcDecl *ast.FuncDecl) bool {
	params := funcDecl.Type.Params.List

	// Need at least *core.Context
	if len(params) < 1 {
		return false
	}

	star, ok := params[0].Type.(*ast.StarExpr)
	if !ok {
		return false
	}

	sel, ok := star.X.(*ast.SelectorExpr)
	if !ok {
		return false
	}

	xname, ok := sel.X.(*ast.Ident)
	if !ok {
		return false
	}

	if xname.Name+"."+sel.Sel.Name != "core.Context" {
		return false
	}

	return true
}
