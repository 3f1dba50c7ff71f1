// Package codegen implements the CodeGen collaborator spec.md §6 describes:
// CodeGen.build_function(checked, locals, repo, db, wrapped?, pool, cache)
// lowers a checked tree to bytecode, returning the function's final locals
// and code. Grounded in the teacher's internal/eval package's tree-walking
// lowering style, adapted here to emit the bytecode package's instruction
// stream instead of directly interpreting.
package codegen

import (
	"github.com/emberscript/emberc/internal/builders"
	"github.com/emberscript/emberc/internal/bytecode"
	"github.com/emberscript/emberc/internal/lang/ast"
	"github.com/emberscript/emberc/internal/lang/typer"
	"github.com/emberscript/emberc/internal/pool"
	"github.com/emberscript/emberc/internal/typerepo"
)

// Slots resolves a surface name to its committed pool index: a parameter,
// a field on the receiver, or a free-function/method target. The
// orchestrator builds one of these per function body before calling Build.
type Slots struct {
	Params map[string]pool.Index
	Fields map[string]pool.Index
	Funcs  map[string]pool.Index
}

// Result is what CodeGen.build_function returns: the final locals list
// (in declaration order, already committed into the pool) and the opaque
// instruction stream.
type Result struct {
	Locals []pool.Index
	Code   []byte
}

// Build lowers checked into bytecode. wrapped, when non-nil, is the next
// link's raw function pool index in a wrapper chain (spec.md §4.6 step 5):
// a call to the surface name "wrappedMethod" emits OpCallWrapped against it
// instead of resolving through slots.
func Build(checked *typer.Checked, slots Slots, repo *typerepo.TypeRepo, p *pool.Pool, cache *builders.TypeCache, wrapped *pool.Index) Result {
	g := &gen{
		b:       bytecode.NewBuilder(),
		slots:   slots,
		repo:    repo,
		pool:    p,
		cache:   cache,
		wrapped: wrapped,
		locals:  make(map[string]pool.Index),
	}

	localIdxs := make([]pool.Index, 0, len(checked.Locals))
	for _, l := range checked.Locals {
		lb := &builders.LocalBuilder{Name: l.Name, Type: l.Type}
		idx := lb.Commit(repo, p, cache)
		g.locals[l.Name] = idx
		localIdxs = append(localIdxs, idx)
	}

	g.stmts(checked.Body)
	g.b.ReturnVoid()

	return Result{Locals: localIdxs, Code: g.b.Bytes()}
}

type gen struct {
	b       *bytecode.Builder
	slots   Slots
	repo    *typerepo.TypeRepo
	pool    *pool.Pool
	cache   *builders.TypeCache
	wrapped *pool.Index
	locals  map[string]pool.Index
}

func (g *gen) stmts(list []ast.Stmt) {
	for _, s := range list {
		g.stmt(s)
	}
}

func (g *gen) stmt(s ast.Stmt) {
	switch x := s.(type) {
	case *ast.LetStmt:
		if x.Init != nil {
			g.expr(x.Init)
		} else {
			g.b.ConstInt(0)
		}
		g.store(x.Name)
	case *ast.AssignStmt:
		g.expr(x.Value)
		g.storeTarget(x.Target)
	case *ast.ExprStmt:
		g.expr(x.Value)
		g.b.Pop()
	case *ast.ReturnStmt:
		if x.Value != nil {
			g.expr(x.Value)
			g.b.Return()
		} else {
			g.b.ReturnVoid()
		}
	case *ast.IfStmt:
		g.expr(x.Cond)
		elseJump := g.b.JumpIfFalse()
		g.stmts(x.Then)
		endJump := g.b.Jump()
		g.b.PatchJump(elseJump)
		if x.Else != nil {
			g.stmts(x.Else)
		}
		g.b.PatchJump(endJump)
	case *ast.WhileStmt:
		top := g.b.Len()
		g.expr(x.Cond)
		exit := g.b.JumpIfFalse()
		g.stmts(x.Body)
		back := g.b.Jump()
		// back-patch as a forward offset encoding a negative jump: PatchJump
		// always measures forward from the operand, so a loop's back-edge is
		// expressed as a jump to `top` via a negative relative value written
		// directly rather than through PatchJump's forward-only helper.
		g.patchBackEdge(back, top)
		g.b.PatchJump(exit)
	case *ast.CompoundAssignStmt:
		// Desugar.run always eliminates this node before CodeGen sees it
		// (spec.md §6); handled defensively so an un-desugared tree still
		// lowers instead of silently dropping the assignment.
		g.expr(x.Target)
		g.expr(x.Value)
		g.b.BinOp(x.Op)
		g.storeTarget(x.Target)
	}
}

func (g *gen) patchBackEdge(jumpOperandPos, target int) {
	// Jump's operand sits 4 bytes after jumpOperandPos-... PatchJump computes
	// relative-from-(pos+4); mirror that here for a backward target.
	g.b.PatchJumpTo(jumpOperandPos, target)
}

func (g *gen) storeTarget(target ast.Expr) {
	switch x := target.(type) {
	case *ast.Ident:
		g.store(x.Name)
	case *ast.FieldAccessExpr:
		g.expr(x.Receiver)
		if idx, ok := g.slots.Fields[x.Name]; ok {
			g.b.SetField(idx.Raw())
			return
		}
		g.b.SetField(0)
	default:
		g.b.Pop()
	}
}

func (g *gen) store(name string) {
	if idx, ok := g.locals[name]; ok {
		g.b.StoreLocal(idx.Raw())
		return
	}
	if idx, ok := g.slots.Params[name]; ok {
		// Parameters are not directly storable slots in this encoding; a
		// store to a parameter name rebinds it as if it were a local alias,
		// matching how the teacher's stack machine treats reassigned
		// parameters as locals once written.
		g.b.StoreLocal(idx.Raw())
		return
	}
	g.b.Pop()
}

func (g *gen) expr(e ast.Expr) {
	switch x := e.(type) {
	case *ast.IntLit:
		g.b.ConstInt(x.Value)
	case *ast.FloatLit:
		g.b.ConstFloat(x.Value)
	case *ast.BoolLit:
		g.b.ConstBool(x.Value)
	case *ast.StringLit:
		g.b.ConstString(x.Value)
	case *ast.ThisExpr:
		g.b.LoadThis()
	case *ast.Ident:
		g.load(x.Name)
	case *ast.UnaryExpr:
		g.expr(x.Expr)
		g.b.UnaryOp(x.Op)
	case *ast.BinaryExpr:
		g.expr(x.Left)
		g.expr(x.Right)
		g.b.BinOp(x.Op)
	case *ast.FieldAccessExpr:
		g.expr(x.Receiver)
		if idx, ok := g.slots.Fields[x.Name]; ok {
			g.b.GetField(idx.Raw())
			return
		}
		g.b.GetField(0)
	case *ast.CallExpr:
		g.call(x)
	case *ast.NewExpr:
		for _, a := range x.Args {
			g.expr(a)
		}
		classIdx := g.cache.Alloc(resolveNewType(g.repo, x), g.repo)
		g.b.New(classIdx.Raw(), uint8(len(x.Args)))
	case *ast.BoxExpr:
		g.expr(x.Value)
		g.b.Box()
	case *ast.UnboxExpr:
		g.expr(x.Value)
		g.b.Unbox()
	default:
		g.b.ConstInt(0)
	}
}

func (g *gen) call(x *ast.CallExpr) {
	callee, ok := x.Callee.(*ast.Ident)
	if !ok {
		// Dynamic callee (e.g. a field-accessed delegate): evaluate it and
		// every argument, emitting a call against index 0. The host runtime
		// resolves indirect calls by the value on the stack, not by operand.
		g.expr(x.Callee)
		for _, a := range x.Args {
			g.expr(a)
		}
		g.b.Call(0, uint8(len(x.Args)))
		return
	}

	for _, a := range x.Args {
		g.expr(a)
	}

	if callee.Name == "wrappedMethod" && g.wrapped != nil {
		g.b.CallWrapped(g.wrapped.Raw(), uint8(len(x.Args)))
		return
	}

	if idx, ok := g.slots.Funcs[callee.Name]; ok {
		g.b.Call(idx.Raw(), uint8(len(x.Args)))
		return
	}
	g.b.Call(0, uint8(len(x.Args)))
}

func (g *gen) load(name string) {
	if idx, ok := g.locals[name]; ok {
		g.b.LoadLocal(idx.Raw())
		return
	}
	if idx, ok := g.slots.Params[name]; ok {
		g.b.LoadParam(idx.Raw())
		return
	}
	if idx, ok := g.slots.Fields[name]; ok {
		g.b.LoadThis()
		g.b.GetField(idx.Raw())
		return
	}
	// Unbound names were already reported by the Typer; emit a stable
	// placeholder so the rest of the body still lowers.
	g.b.ConstInt(0)
}

func resolveNewType(repo *typerepo.TypeRepo, x *ast.NewExpr) typerepo.Type {
	var args []typerepo.Type
	for _, a := range x.Type.Args {
		args = append(args, typerepo.TData{ID: a.Name})
	}
	return typerepo.TData{ID: x.Type.Name, Args: args}
}
