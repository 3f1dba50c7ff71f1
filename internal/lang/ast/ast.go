// Package ast is the surface syntax tree this compiler's parser produces,
// consumed by Pass 0-4 of the orchestrator. Shape is grounded in the teacher
// corpus's internal/ast package (node kinds discriminated by an embedded
// NodeBase holding a Span, a File/File-relative position scheme) but
// generalized from AILANG's functional let/match surface to this spec's
// class-based source model (spec.md §6: SourceModule, SourceEntry,
// Import).
package ast

// Span is an absolute, file-relative source location.
type Span struct {
	File      string
	StartLine int
	StartCol  int
	EndLine   int
	EndCol    int
}

// SourceModule is one parsed file (spec.md §6).
type SourceModule struct {
	Path    []string
	Imports []Import
	Entries []SourceEntry
	Span    Span
}

// ImportKind discriminates an Import's shape.
type ImportKind int

const (
	ImportExact ImportKind = iota
	ImportSelected
	ImportAll
)

// Import is one `import` statement (spec.md §6: Exact(path) |
// Selected(path, [name]) | All(path)).
type Import struct {
	Kind  ImportKind
	Path  []string
	Names []string // only meaningful when Kind == ImportSelected
	Span  Span
}

// SourceEntry is the tagged union of top-level declarations a module can
// contain.
type SourceEntry interface {
	isSourceEntry()
	EntrySpan() Span
}

// Annotation is a `@name(args)` decoration on a free function or global let.
type Annotation struct {
	Name string
	Args []string
	Span Span
}

// Param is a function parameter's surface syntax.
type Param struct {
	Name   string
	Type   TypeExpr
	IsOut  bool
	Span   Span
}

// TypeExpr is the surface syntax for a type reference (resolved to
// typerepo.Type by Pass 2/3).
type TypeExpr struct {
	Name string // e.g. "Int32", "ref", "array"
	Args []TypeExpr
}

// ClassDecl is a `class`/`struct` declaration.
type ClassDecl struct {
	Name       string
	IsStruct   bool
	IsNative   bool
	IsAbstract bool
	IsFinal    bool
	TypeParams []string
	Extends    *TypeExpr
	Fields     []FieldDecl
	Methods    []FunctionDecl
	Span       Span
}

func (*ClassDecl) isSourceEntry()     {}
func (c *ClassDecl) EntrySpan() Span  { return c.Span }

// FieldDecl is a class field declaration.
type FieldDecl struct {
	Name     string
	Type     TypeExpr
	Static   bool
	Native   bool
	Persist  bool
	Default  []Stmt // nil if no initializer
	Span     Span
}

// EnumDecl is an `enum` declaration.
type EnumDecl struct {
	Name    string
	IsFlags bool
	Members []EnumMemberDecl
	Span    Span
}

func (*EnumDecl) isSourceEntry()    {}
func (e *EnumDecl) EntrySpan() Span { return e.Span }

// EnumMemberDecl is one `Name = value` enum member.
type EnumMemberDecl struct {
	Name  string
	Value int64
	Span  Span
}

// FunctionDecl is a free function or a method body inside a ClassDecl.
type FunctionDecl struct {
	Name        string
	Params      []Param
	ReturnType  *TypeExpr // nil means Unit
	Body        []Stmt    // nil means no body (native/abstract)
	IsStatic    bool
	IsNative    bool
	IsFinal     bool
	IsCallback  bool
	IsQuest     bool
	Annotations []Annotation
	Span        Span
}

func (*FunctionDecl) isSourceEntry()     {}
func (f *FunctionDecl) EntrySpan() Span  { return f.Span }

// GlobalLetDecl is a top-level `let` binding, only legal with an
// `@addField(T)` annotation (spec.md §4.5 Pass 2).
type GlobalLetDecl struct {
	Name        string
	Type        TypeExpr
	Init        []Stmt
	Annotations []Annotation
	Span        Span
}

func (*GlobalLetDecl) isSourceEntry()    {}
func (g *GlobalLetDecl) EntrySpan() Span { return g.Span }

// Stmt is the tagged union of statement forms a function body contains.
type Stmt interface {
	isStmt()
	StmtSpan() Span
}

// LetStmt declares a local variable.
type LetStmt struct {
	Name string
	Type *TypeExpr // nil means inferred
	Init Expr
	Span Span
}

func (*LetStmt) isStmt()        {}
func (s *LetStmt) StmtSpan() Span { return s.Span }

// AssignStmt assigns to an lvalue expression.
type AssignStmt struct {
	Target Expr
	Value  Expr
	Span   Span
}

func (*AssignStmt) isStmt()        {}
func (s *AssignStmt) StmtSpan() Span { return s.Span }

// ExprStmt evaluates an expression for its side effects.
type ExprStmt struct {
	Value Expr
	Span  Span
}

func (*ExprStmt) isStmt()        {}
func (s *ExprStmt) StmtSpan() Span { return s.Span }

// ReturnStmt returns from the enclosing function.
type ReturnStmt struct {
	Value Expr // nil for a bare `return`
	Span  Span
}

func (*ReturnStmt) isStmt()        {}
func (s *ReturnStmt) StmtSpan() Span { return s.Span }

// IfStmt is a conditional.
type IfStmt struct {
	Cond Expr
	Then []Stmt
	Else []Stmt // nil if no else branch
	Span Span
}

func (*IfStmt) isStmt()        {}
func (s *IfStmt) StmtSpan() Span { return s.Span }

// WhileStmt is a condition-checked loop.
type WhileStmt struct {
	Cond Expr
	Body []Stmt
	Span Span
}

func (*WhileStmt) isStmt()        {}
func (s *WhileStmt) StmtSpan() Span { return s.Span }

// CompoundAssignStmt is `target op= value` sugar, rewritten by Desugar.run
// into an AssignStmt with an expanded BinaryExpr (spec.md §6 Desugar.run:
// "rewrites syntactic sugar in place").
type CompoundAssignStmt struct {
	Target Expr
	Op     string // "+", "-", "*", "/"
	Value  Expr
	Span   Span
}

func (*CompoundAssignStmt) isStmt()        {}
func (s *CompoundAssignStmt) StmtSpan() Span { return s.Span }

// Expr is the tagged union of expression forms.
type Expr interface {
	isExpr()
	ExprSpan() Span
}

// IntLit is an integer literal.
type IntLit struct {
	Value int64
	Span  Span
}

func (*IntLit) isExpr()        {}
func (e *IntLit) ExprSpan() Span { return e.Span }

// FloatLit is a floating-point literal.
type FloatLit struct {
	Value float64
	Span  Span
}

func (*FloatLit) isExpr()        {}
func (e *FloatLit) ExprSpan() Span { return e.Span }

// BoolLit is a boolean literal.
type BoolLit struct {
	Value bool
	Span  Span
}

func (*BoolLit) isExpr()        {}
func (e *BoolLit) ExprSpan() Span { return e.Span }

// StringLit is a string literal.
type StringLit struct {
	Value string
	Span  Span
}

func (*StringLit) isExpr()        {}
func (e *StringLit) ExprSpan() Span { return e.Span }

// Ident references a local, parameter, field, or global by name.
type Ident struct {
	Name string
	Span Span
}

func (*Ident) isExpr()        {}
func (e *Ident) ExprSpan() Span { return e.Span }

// ThisExpr references the implicit receiver of a non-static method.
type ThisExpr struct {
	Span Span
}

func (*ThisExpr) isExpr()        {}
func (e *ThisExpr) ExprSpan() Span { return e.Span }

// BinaryExpr is a binary operator application.
type BinaryExpr struct {
	Op    string
	Left  Expr
	Right Expr
	Span  Span
}

func (*BinaryExpr) isExpr()        {}
func (e *BinaryExpr) ExprSpan() Span { return e.Span }

// UnaryExpr is a prefix operator application.
type UnaryExpr struct {
	Op   string
	Expr Expr
	Span Span
}

func (*UnaryExpr) isExpr()        {}
func (e *UnaryExpr) ExprSpan() Span { return e.Span }

// FieldAccessExpr is `receiver.name`.
type FieldAccessExpr struct {
	Receiver Expr
	Name     string
	Span     Span
}

func (*FieldAccessExpr) isExpr()        {}
func (e *FieldAccessExpr) ExprSpan() Span { return e.Span }

// CallExpr is `callee(args...)`.
type CallExpr struct {
	Callee Expr
	Args   []Expr
	Span   Span
}

func (*CallExpr) isExpr()        {}
func (e *CallExpr) ExprSpan() Span { return e.Span }

// NewExpr is `new T(args...)`.
type NewExpr struct {
	Type TypeExpr
	Args []Expr
	Span Span
}

func (*NewExpr) isExpr()        {}
func (e *NewExpr) ExprSpan() Span { return e.Span }

// BoxExpr wraps a value at a polymorphic boundary after generic-parameter
// promotion (spec.md §4.5 step 4, Autobox.run). Introduced by the Autobox
// pass, never by the parser.
type BoxExpr struct {
	Value Expr
	Span  Span
}

func (*BoxExpr) isExpr()        {}
func (e *BoxExpr) ExprSpan() Span { return e.Span }

// UnboxExpr is the dual of BoxExpr, inserted where a polymorphic parameter
// is consumed at its concrete type.
type UnboxExpr struct {
	Value Expr
	Span  Span
}

func (*UnboxExpr) isExpr()        {}
func (e *UnboxExpr) ExprSpan() Span { return e.Span }
