// Package autobox implements the Autobox collaborator spec.md §6 describes:
// Autobox.run(seq, repo, boxed, poly_ret) inserts implicit box/unbox around
// polymorphic param/return positions after Pass 3's generic-parameter
// promotion. Grounded in the teacher's internal/elaborate package's
// insert-coercion-nodes style (a tree rewrite pass that threads typed
// context through without changing control flow), generalized here from
// dictionary-passing coercions to ref-boxing coercions.
package autobox

import (
	"github.com/emberscript/emberc/internal/lang/ast"
	"github.com/emberscript/emberc/internal/lang/typer"
)

// ParamBoxing describes, per parameter position, whether that position was
// promoted to Var/Top by generic-parameter promotion (spec.md §4.5 step 4)
// and therefore needs an unbox at each reference.
type ParamBoxing struct {
	ParamNames []string // parallel to PolyFlags
	PolyFlags  []bool
	PolyReturn bool
}

// Run rewrites checked.Body in place: every Ident referencing a poly
// parameter is wrapped in UnboxExpr at its use sites, and every returned
// value is wrapped in BoxExpr when the function's return position was
// promoted.
func Run(checked *typer.Checked, boxing ParamBoxing) *typer.Checked {
	polyNames := make(map[string]bool, len(boxing.ParamNames))
	for i, name := range boxing.ParamNames {
		if i < len(boxing.PolyFlags) && boxing.PolyFlags[i] {
			polyNames[name] = true
		}
	}

	checked.Body = rewriteStmts(checked.Body, polyNames, boxing.PolyReturn)
	return checked
}

func rewriteStmts(stmts []ast.Stmt, polyNames map[string]bool, polyReturn bool) []ast.Stmt {
	for i, s := range stmts {
		stmts[i] = rewriteStmt(s, polyNames, polyReturn)
	}
	return stmts
}

func rewriteStmt(s ast.Stmt, polyNames map[string]bool, polyReturn bool) ast.Stmt {
	switch x := s.(type) {
	case *ast.LetStmt:
		if x.Init != nil {
			x.Init = rewriteExpr(x.Init, polyNames)
		}
	case *ast.AssignStmt:
		x.Target = rewriteExpr(x.Target, polyNames)
		x.Value = rewriteExpr(x.Value, polyNames)
	case *ast.ExprStmt:
		x.Value = rewriteExpr(x.Value, polyNames)
	case *ast.ReturnStmt:
		if x.Value != nil {
			x.Value = rewriteExpr(x.Value, polyNames)
			if polyReturn {
				x.Value = &ast.BoxExpr{Value: x.Value, Span: x.Value.ExprSpan()}
			}
		}
	case *ast.IfStmt:
		x.Cond = rewriteExpr(x.Cond, polyNames)
		x.Then = rewriteStmts(x.Then, polyNames, polyReturn)
		if x.Else != nil {
			x.Else = rewriteStmts(x.Else, polyNames, polyReturn)
		}
	case *ast.WhileStmt:
		x.Cond = rewriteExpr(x.Cond, polyNames)
		x.Body = rewriteStmts(x.Body, polyNames, polyReturn)
	}
	return s
}

func rewriteExpr(e ast.Expr, polyNames map[string]bool) ast.Expr {
	switch x := e.(type) {
	case *ast.Ident:
		if polyNames[x.Name] {
			return &ast.UnboxExpr{Value: x, Span: x.Span}
		}
		return x
	case *ast.BinaryExpr:
		x.Left = rewriteExpr(x.Left, polyNames)
		x.Right = rewriteExpr(x.Right, polyNames)
		return x
	case *ast.UnaryExpr:
		x.Expr = rewriteExpr(x.Expr, polyNames)
		return x
	case *ast.FieldAccessExpr:
		x.Receiver = rewriteExpr(x.Receiver, polyNames)
		return x
	case *ast.CallExpr:
		x.Callee = rewriteExpr(x.Callee, polyNames)
		for i, a := range x.Args {
			x.Args[i] = rewriteExpr(a, polyNames)
		}
		return x
	case *ast.NewExpr:
		for i, a := range x.Args {
			x.Args[i] = rewriteExpr(a, polyNames)
		}
		return x
	default:
		return e
	}
}
