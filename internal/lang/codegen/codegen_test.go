package codegen

import (
	"testing"

	"github.com/emberscript/emberc/internal/builders"
	"github.com/emberscript/emberc/internal/bytecode"
	"github.com/emberscript/emberc/internal/lang/ast"
	"github.com/emberscript/emberc/internal/lang/typer"
	"github.com/emberscript/emberc/internal/pool"
	"github.com/emberscript/emberc/internal/typerepo"
)

func newFixture() (*pool.Pool, *typerepo.TypeRepo, *builders.TypeCache) {
	tables := pool.NewTables()
	p := pool.New(tables.Names)
	repo := typerepo.New()
	cache := builders.NewTypeCache(p, tables.Names)
	return p, repo, cache
}

func span() ast.Span { return ast.Span{File: "t.script", StartLine: 1, StartCol: 1, EndLine: 1, EndCol: 1} }

func TestBuildEmitsReturnForSimpleBody(t *testing.T) {
	p, repo, cache := newFixture()
	checked := &typer.Checked{
		Body: []ast.Stmt{
			&ast.ReturnStmt{Value: &ast.IntLit{Value: 42, Span: span()}, Span: span()},
		},
		Types: map[ast.Expr]typerepo.Type{},
	}

	res := Build(checked, Slots{}, repo, p, cache, nil)
	instrs := bytecode.Walk(res.Code)
	if len(instrs) < 2 {
		t.Fatalf("expected at least const+return, got %d instructions", len(instrs))
	}
	if instrs[0].Op != bytecode.OpConstInt {
		t.Fatalf("expected first instruction to push the literal, got %v", instrs[0].Op)
	}
	if instrs[1].Op != bytecode.OpReturn {
		t.Fatalf("expected the literal to be followed by a value return, got %v", instrs[1].Op)
	}
}

func TestBuildCommitsDeclaredLocals(t *testing.T) {
	p, repo, cache := newFixture()
	checked := &typer.Checked{
		Body: []ast.Stmt{
			&ast.LetStmt{Name: "x", Init: &ast.IntLit{Value: 1, Span: span()}, Span: span()},
		},
		Types:  map[ast.Expr]typerepo.Type{},
		Locals: []typer.LocalInfo{{Name: "x", Type: typerepo.TPrim{P: typerepo.PrimInt32}}},
	}

	res := Build(checked, Slots{}, repo, p, cache, nil)
	if len(res.Locals) != 1 {
		t.Fatalf("expected exactly one committed local, got %d", len(res.Locals))
	}
	def := p.Definition(res.Locals[0])
	if _, ok := def.Value.(pool.Local); !ok {
		t.Fatalf("expected a Local definition, got %T", def.Value)
	}

	foundStore := false
	for _, instr := range bytecode.Walk(res.Code) {
		if instr.Op == bytecode.OpStoreLocal {
			foundStore = true
		}
	}
	if !foundStore {
		t.Fatalf("expected a store to the declared local in the emitted code")
	}
}

func TestBuildRoutesWrappedMethodToNextLink(t *testing.T) {
	p, repo, cache := newFixture()
	nextLink := p.Reserve(pool.KindFunction)
	checked := &typer.Checked{
		Body: []ast.Stmt{
			&ast.ExprStmt{
				Value: &ast.CallExpr{Callee: &ast.Ident{Name: "wrappedMethod", Span: span()}, Span: span()},
				Span:  span(),
			},
		},
		Types: map[ast.Expr]typerepo.Type{},
	}

	res := Build(checked, Slots{}, repo, p, cache, &nextLink)
	found := false
	for _, instr := range bytecode.Walk(res.Code) {
		if instr.Op == bytecode.OpCallWrapped {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a call to wrappedMethod() to lower to OpCallWrapped when a next link is supplied")
	}
}

func TestBuildEmitsConditionalJumpForIf(t *testing.T) {
	p, repo, cache := newFixture()
	checked := &typer.Checked{
		Body: []ast.Stmt{
			&ast.IfStmt{
				Cond: &ast.BoolLit{Value: true, Span: span()},
				Then: []ast.Stmt{&ast.ReturnStmt{Value: &ast.IntLit{Value: 1, Span: span()}, Span: span()}},
				Span: span(),
			},
		},
		Types: map[ast.Expr]typerepo.Type{},
	}

	res := Build(checked, Slots{}, repo, p, cache, nil)
	foundJump := false
	for _, instr := range bytecode.Walk(res.Code) {
		if instr.Op == bytecode.OpJumpIfFalse {
			foundJump = true
		}
	}
	if !foundJump {
		t.Fatalf("expected an if-statement to emit a conditional jump")
	}
}
