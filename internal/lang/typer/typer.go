// Package typer implements the Typer collaborator spec.md §6 describes:
// Typer.run(repo, names, env, body, locals, ret, id_alloc, reporter) infers
// types and produces a checked tree; errors flow through the reporter
// rather than aborting. Grounded in the teacher's internal/types package
// (environment-threaded inference over an AST, errors returned alongside a
// partial result rather than panicking), generalized from AILANG's
// Hindley-Milner inference to this spec's nominal class-typed checking.
package typer

import (
	"fmt"

	"github.com/emberscript/emberc/internal/diag"
	"github.com/emberscript/emberc/internal/lang/ast"
	"github.com/emberscript/emberc/internal/scope"
	"github.com/emberscript/emberc/internal/typerepo"
)

// IDAlloc mints sequential synthetic names for locals the typer or codegen
// need to introduce beyond what the source declares (e.g. a boxing temp).
type IDAlloc struct {
	next int
}

// Fresh returns a new synthetic name, guaranteed distinct from every prior
// call on this allocator.
func (a *IDAlloc) Fresh(prefix string) string {
	a.next++
	return fmt.Sprintf("$%s%d", prefix, a.next)
}

// LocalInfo records one local variable the checked body introduced (via
// `let` or synthesized), in declaration order.
type LocalInfo struct {
	Name string
	Type typerepo.Type
}

// Checked is the typed form of a function body: the same statement tree,
// annotated via the Types side-table, plus the locals discovered while
// checking it.
type Checked struct {
	Body   []ast.Stmt
	Types  map[ast.Expr]typerepo.Type
	Locals []LocalInfo
}

// Run type-checks body against env (already seeded with `this` and
// parameters by the orchestrator), reporting every mismatch it finds
// through reporter without aborting — subsequent statements still get
// checked so a single pass surfaces every error in the body at once.
func Run(repo *typerepo.TypeRepo, env *scope.Stack[typerepo.Type], body []ast.Stmt, ret typerepo.Type, alloc *IDAlloc, reporter *diag.Reporter, file string) *Checked {
	c := &Checked{Types: make(map[ast.Expr]typerepo.Type)}
	checkStmts(repo, env, body, ret, alloc, reporter, file, c)
	c.Body = body
	return c
}

func checkStmts(repo *typerepo.TypeRepo, env *scope.Stack[typerepo.Type], stmts []ast.Stmt, ret typerepo.Type, alloc *IDAlloc, reporter *diag.Reporter, file string, c *Checked) {
	for _, s := range stmts {
		checkStmt(repo, env, s, ret, alloc, reporter, file, c)
	}
}

func checkStmt(repo *typerepo.TypeRepo, env *scope.Stack[typerepo.Type], s ast.Stmt, ret typerepo.Type, alloc *IDAlloc, reporter *diag.Reporter, file string, c *Checked) {
	switch x := s.(type) {
	case *ast.LetStmt:
		var declared typerepo.Type
		if x.Init != nil {
			declared = checkExpr(repo, env, x.Init, reporter, file, c)
		}
		if x.Type != nil {
			declared = resolveTypeExpr(repo, *x.Type)
		}
		if declared == nil {
			declared = typerepo.TTop{}
		}
		env.Bind(x.Name, declared)
		c.Locals = append(c.Locals, LocalInfo{Name: x.Name, Type: declared})
	case *ast.AssignStmt:
		targetType := checkExpr(repo, env, x.Target, reporter, file, c)
		valType := checkExpr(repo, env, x.Value, reporter, file, c)
		if targetType != nil && valType != nil && !assignable(valType, targetType) {
			reporter.Add(diag.New(diag.PhaseTypecheck, diag.CodeTypeMismatch,
				fmt.Sprintf("cannot assign %s to %s", valType, targetType)).
				WithSpan(toSpan(x.Span, file)))
		}
	case *ast.ExprStmt:
		checkExpr(repo, env, x.Value, reporter, file, c)
	case *ast.ReturnStmt:
		if x.Value != nil {
			valType := checkExpr(repo, env, x.Value, reporter, file, c)
			if valType != nil && !assignable(valType, ret) {
				reporter.Add(diag.New(diag.PhaseTypecheck, diag.CodeTypeMismatch,
					fmt.Sprintf("cannot return %s where %s is expected", valType, ret)).
					WithSpan(toSpan(x.Span, file)))
			}
		}
	case *ast.IfStmt:
		checkExpr(repo, env, x.Cond, reporter, file, c)
		inner := env.Push()
		checkStmts(repo, inner, x.Then, ret, alloc, reporter, file, c)
		if x.Else != nil {
			elseScope := env.Push()
			checkStmts(repo, elseScope, x.Else, ret, alloc, reporter, file, c)
		}
	case *ast.WhileStmt:
		checkExpr(repo, env, x.Cond, reporter, file, c)
		inner := env.Push()
		checkStmts(repo, inner, x.Body, ret, alloc, reporter, file, c)
	}
}

func assignable(from, to typerepo.Type) bool {
	switch to.(type) {
	case typerepo.TTop, typerepo.TVar:
		return true
	}
	return typerepo.Equal(from, to) || typerepo.SameShape(from, to)
}

func checkExpr(repo *typerepo.TypeRepo, env *scope.Stack[typerepo.Type], e ast.Expr, reporter *diag.Reporter, file string, c *Checked) typerepo.Type {
	var t typerepo.Type
	switch x := e.(type) {
	case *ast.IntLit:
		t = typerepo.TPrim{P: typerepo.PrimInt32}
	case *ast.FloatLit:
		t = typerepo.TPrim{P: typerepo.PrimFloat64}
	case *ast.BoolLit:
		t = typerepo.TPrim{P: typerepo.PrimBool}
	case *ast.StringLit:
		t = typerepo.TPrim{P: typerepo.PrimString}
	case *ast.ThisExpr:
		if v, ok := env.Lookup("this"); ok {
			t = v
		} else {
			t = typerepo.Scriptable
		}
	case *ast.Ident:
		if v, ok := env.Lookup(x.Name); ok {
			t = v
		} else {
			reporter.Add(diag.New(diag.PhaseTypecheck, diag.CodeUnboundName,
				fmt.Sprintf("unbound name %q", x.Name)).WithSpan(toSpan(x.Span, file)))
			t = typerepo.TTop{}
		}
	case *ast.UnaryExpr:
		t = checkExpr(repo, env, x.Expr, reporter, file, c)
	case *ast.BinaryExpr:
		lt := checkExpr(repo, env, x.Left, reporter, file, c)
		checkExpr(repo, env, x.Right, reporter, file, c)
		switch x.Op {
		case "==", "!=", "<", ">", "<=", ">=", "&&", "||":
			t = typerepo.TPrim{P: typerepo.PrimBool}
		default:
			t = lt
		}
	case *ast.FieldAccessExpr:
		checkExpr(repo, env, x.Receiver, reporter, file, c)
		t = typerepo.TTop{} // field types are resolved by the class builder, not the body typer
	case *ast.CallExpr:
		checkExpr(repo, env, x.Callee, reporter, file, c)
		for _, a := range x.Args {
			checkExpr(repo, env, a, reporter, file, c)
		}
		t = typerepo.TTop{} // the call's return type is resolved against the target overload elsewhere
	case *ast.NewExpr:
		for _, a := range x.Args {
			checkExpr(repo, env, a, reporter, file, c)
		}
		t = resolveTypeExpr(repo, x.Type)
	default:
		t = typerepo.TTop{}
	}
	if t != nil {
		c.Types[e] = t
	}
	return t
}

func resolveTypeExpr(repo *typerepo.TypeRepo, te ast.TypeExpr) typerepo.Type {
	switch te.Name {
	case "Bool":
		return typerepo.TPrim{P: typerepo.PrimBool}
	case "Int8":
		return typerepo.TPrim{P: typerepo.PrimInt8}
	case "Int16":
		return typerepo.TPrim{P: typerepo.PrimInt16}
	case "Int32":
		return typerepo.TPrim{P: typerepo.PrimInt32}
	case "Int64":
		return typerepo.TPrim{P: typerepo.PrimInt64}
	case "Uint8":
		return typerepo.TPrim{P: typerepo.PrimUint8}
	case "Uint16":
		return typerepo.TPrim{P: typerepo.PrimUint16}
	case "Uint32":
		return typerepo.TPrim{P: typerepo.PrimUint32}
	case "Uint64":
		return typerepo.TPrim{P: typerepo.PrimUint64}
	case "Float":
		return typerepo.TPrim{P: typerepo.PrimFloat32}
	case "Double":
		return typerepo.TPrim{P: typerepo.PrimFloat64}
	case "String":
		return typerepo.TPrim{P: typerepo.PrimString}
	case "void", "Void", "Unit":
		return typerepo.TPrim{P: typerepo.PrimVoid}
	case typerepo.IDRef:
		return typerepo.Ref(resolveTypeArg(repo, te))
	case typerepo.IDWeakRef:
		return typerepo.WeakRef(resolveTypeArg(repo, te))
	case typerepo.IDArray:
		return typerepo.Array(resolveTypeArg(repo, te))
	case typerepo.IDScriptRef:
		return typerepo.ScriptRef(resolveTypeArg(repo, te))
	default:
		var args []typerepo.Type
		for _, a := range te.Args {
			args = append(args, resolveTypeExpr(repo, a))
		}
		return typerepo.TData{ID: te.Name, Args: args}
	}
}

func resolveTypeArg(repo *typerepo.TypeRepo, te ast.TypeExpr) typerepo.Type {
	if len(te.Args) == 0 {
		return typerepo.Scriptable
	}
	return resolveTypeExpr(repo, te.Args[0])
}

func toSpan(s ast.Span, file string) diag.Span {
	if s.File == "" {
		s.File = file
	}
	return diag.Span{File: s.File, StartLine: s.StartLine, StartCol: s.StartCol, EndLine: s.EndLine, EndCol: s.EndCol}
}
