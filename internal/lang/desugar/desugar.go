// Package desugar implements the Desugar collaborator spec.md §6 describes:
// Desugar.run(&mut seq) rewrites syntactic sugar in place and is total over
// well-formed input. Grounded in the teacher's internal/elaborate package,
// which performs a similar AST-to-AST lowering pass ahead of type checking;
// here the only sugar this language defines is compound assignment
// (`x += 1` -> `x = x + 1`), per SPEC_FULL.md's scope for the Desugar
// collaborator.
package desugar

import "github.com/emberscript/emberc/internal/lang/ast"

// Run returns a new, rewritten sequence; seq itself is not modified, though
// If/While statements are updated in place with their rewritten bodies. Every
// CompoundAssignStmt becomes an AssignStmt whose value is the expanded
// BinaryExpr; If/While bodies are recursed into so sugar anywhere in the
// tree is reached.
func Run(seq []ast.Stmt) []ast.Stmt {
	out := make([]ast.Stmt, len(seq))
	for i, s := range seq {
		out[i] = desugarStmt(s)
	}
	return out
}

func desugarStmt(s ast.Stmt) ast.Stmt {
	switch x := s.(type) {
	case *ast.CompoundAssignStmt:
		return &ast.AssignStmt{
			Target: x.Target,
			Value: &ast.BinaryExpr{
				Op:    x.Op,
				Left:  x.Target,
				Right: x.Value,
				Span:  x.Span,
			},
			Span: x.Span,
		}
	case *ast.IfStmt:
		x.Then = Run(x.Then)
		if x.Else != nil {
			x.Else = Run(x.Else)
		}
		return x
	case *ast.WhileStmt:
		x.Body = Run(x.Body)
		return x
	default:
		return s
	}
}
