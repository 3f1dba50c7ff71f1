// Package orchestrator drives the five-pass pipeline spec.md §4.5
// describes — Parse, Populate, Preprocess, Inherit, Typecheck & emit — over
// a set of source files, producing a committed pool.Pool. Grounded in the
// teacher's internal/pipeline package (a staged driver threading a shared
// mutable context through named phases, each appending to a shared
// diagnostics sink rather than stopping the whole run on a single file's
// failure).
package orchestrator

import (
	"sort"
	"strconv"
	"strings"

	"github.com/emberscript/emberc/internal/builders"
	"github.com/emberscript/emberc/internal/diag"
	"github.com/emberscript/emberc/internal/lang/ast"
	"github.com/emberscript/emberc/internal/lang/autobox"
	"github.com/emberscript/emberc/internal/lang/codegen"
	"github.com/emberscript/emberc/internal/lang/desugar"
	"github.com/emberscript/emberc/internal/lang/parser"
	"github.com/emberscript/emberc/internal/lang/typer"
	"github.com/emberscript/emberc/internal/modulemap"
	"github.com/emberscript/emberc/internal/pool"
	"github.com/emberscript/emberc/internal/scope"
	"github.com/emberscript/emberc/internal/typerepo"
)

// SourceFile is one file handed to the compiler: its discovered path and
// raw bytes (SPEC_FULL.md §3, grounded in internal/discover.Files).
type SourceFile struct {
	Path string
	Src  []byte
}

// Output is everything a successful (or partially successful) compile
// produces: the committed pool, its string tables, and every diagnostic
// raised across all five passes.
type Output struct {
	Pool      *pool.Pool
	Tables    *pool.Tables
	Repo      *typerepo.TypeRepo
	Reporter  *diag.Reporter
}

// Compiler holds the shared, mutable state threaded through every pass.
type Compiler struct {
	tables   *pool.Tables
	pool     *pool.Pool
	repo     *typerepo.TypeRepo
	cache    *builders.TypeCache
	mmap     *modulemap.Map
	reporter *diag.Reporter

	modules []*parsedModule

	classes map[string]*classWork
	order   []string // class id declaration order, for deterministic emission

	freeFuncs []*funcWork
	globalLets []*letWork

	methodPatches      []*methodPatch
	globalReplacements []*ast.FunctionDecl
}

type parsedModule struct {
	path       string // dotted module path ("" if file had no module header)
	file       string
	mod        *ast.SourceModule
	srcFileIdx pool.Index // SourceFile Definition committed for this module (SPEC_FULL.md §3)
}

type classWork struct {
	id        string
	decl      *ast.ClassDecl
	classIdx  pool.Index
	fields    []*fieldWork
	fieldByName map[string]pool.Index
	methods   []*funcWork
	statics   []*funcWork
	baseID    string // resolved superclass id, set by passInherit
	base      pool.Index

	// typeVars is the set of this class's own declared type parameters
	// (e.g. {"T"} for `class A<T>`), so a bare reference to one inside a
	// field/method signature resolves to typerepo.TVar instead of an
	// unbound TData id (spec.md §4.5 step 4 needs Var-typed root signatures
	// to detect generic-parameter promotion).
	typeVars map[string]bool

	// wrappers maps a wrapped method's short name to the @wrapMethod shims
	// targeting it, in declaration order (spec.md §4.6 step 3-4).
	wrappers map[string][]*funcWork
}

// patchKind discriminates an annotated free function's effect on a target
// class (spec.md §4.5 Pass 2: @replaceMethod/@wrapMethod/@addMethod).
type patchKind int

const (
	patchReplace patchKind = iota
	patchWrap
	patchAdd
)

// methodPatch is a deferred annotation effect, resolved once every class in
// the program has been populated (so a patch can target a class declared in
// a different file than the annotated function).
type methodPatch struct {
	kind   patchKind
	target string // resolved target class id, "" if unresolved
	decl   *ast.FunctionDecl
}

type fieldWork struct {
	decl *ast.FieldDecl
	idx  pool.Index
}

type funcWork struct {
	decl      *ast.FunctionDecl
	qualifier string // owning class id, or "" for free functions
	fnIdx     pool.Index
	paramIdxs []pool.Index
}

type letWork struct {
	decl *ast.GlobalLetDecl
}

// New creates an empty Compiler.
func New() *Compiler {
	tables := pool.NewTables()
	p := pool.New(tables.Names)
	repo := typerepo.New()
	return &Compiler{
		tables:   tables,
		pool:     p,
		repo:     repo,
		cache:    builders.NewTypeCache(p, tables.Names),
		mmap:     modulemap.New(),
		reporter: diag.NewReporter(),
		classes:  make(map[string]*classWork),
	}
}

// Compile runs all five passes over files and returns the final Output.
// No single file's parse failure aborts the run: it is recorded in the
// Reporter and the remaining files still compile (spec.md §4.5).
func (c *Compiler) Compile(files []SourceFile) *Output {
	c.passParse(files)
	c.passPopulate()
	c.passPreprocess()
	c.passInherit()
	c.passEmit()

	return &Output{Pool: c.pool, Tables: c.tables, Repo: c.repo, Reporter: c.reporter}
}

// --- Pass 0: Parse ---------------------------------------------------

func (c *Compiler) passParse(files []SourceFile) {
	for _, f := range files {
		mod, err := parser.ParseFile(f.Src, f.Path)
		if err != nil {
			c.reporter.Add(diag.New(diag.PhaseParse, diag.CodeParseError, err.Error()))
			continue // fatal only to this file; later files still parse
		}
		sfb := &builders.SourceFileBuilder{Path: f.Path}
		c.modules = append(c.modules, &parsedModule{
			path:       strings.Join(mod.Path, "."),
			file:       f.Path,
			mod:        mod,
			srcFileIdx: sfb.Commit(c.pool, c.tables.Names),
		})
	}
}

// --- Pass 1: Populate --------------------------------------------------

func qualify(modPath, name string) string {
	if modPath == "" {
		return name
	}
	return modPath + "." + name
}

func (c *Compiler) passPopulate() {
	// Sub-pass 1: classes/enums first, so every @replaceMethod/@wrapMethod/
	// @addMethod/@replaceGlobal target below can resolve regardless of
	// which file declares the annotated function relative to its target.
	for _, pm := range c.modules {
		for _, entry := range pm.mod.Entries {
			switch x := entry.(type) {
			case *ast.ClassDecl:
				c.populateClass(pm, x)
			case *ast.EnumDecl:
				c.populateEnum(pm, x)
			}
		}
	}

	// Sub-pass 2: functions and global lets.
	for _, pm := range c.modules {
		for _, entry := range pm.mod.Entries {
			switch x := entry.(type) {
			case *ast.FunctionDecl:
				c.populateFreeFunction(pm, x)
			case *ast.GlobalLetDecl:
				c.globalLets = append(c.globalLets, &letWork{decl: x})
				c.mmap.Insert(qualify(pm.path, x.Name), modulemap.Item{Kind: modulemap.ItemType, Name: x.Name})
			}
		}
	}

	c.resolveMethodPatches()
	c.resolveGlobalReplacements()
}

// annotationTarget returns the single target-class argument of the named
// annotation on decl, if present (spec.md §4.5 Pass 2).
func annotationTarget(decl *ast.FunctionDecl, name string) (string, bool) {
	for _, a := range decl.Annotations {
		if a.Name == name && len(a.Args) == 1 {
			return a.Args[0], true
		}
	}
	return "", false
}

func hasAnnotation(decl *ast.FunctionDecl, name string) bool {
	for _, a := range decl.Annotations {
		if a.Name == name {
			return true
		}
	}
	return false
}

// resolveMethodPatches applies every deferred @replaceMethod/@wrapMethod/
// @addMethod effect now that all classes are populated.
func (c *Compiler) resolveMethodPatches() {
	for _, mp := range c.methodPatches {
		cw, ok := c.classes[mp.target]
		if !ok {
			c.reporter.Add(diag.New(diag.PhasePreprocess, diag.CodeUnresolvedAnnotationTarget,
				"cannot resolve annotation target for "+mp.decl.Name).WithSpan(spanOf(mp.decl.Span, "")))
			continue
		}
		if mp.kind != patchAdd {
			if dt, ok := c.repo.Lookup(cw.id); ok {
				if class, ok := dt.(typerepo.Class); ok && (len(class.Methods.ByName(mp.decl.Name)) > 1 || len(class.Statics.ByName(mp.decl.Name)) > 1) {
					c.reporter.Add(diag.New(diag.PhasePreprocess, diag.CodeUnresolvedAnnotationTarget,
						"cannot resolve "+mp.decl.Name+" on "+cw.id+": overloaded methods cannot be targeted").WithSpan(spanOf(mp.decl.Span, "")))
					continue
				}
			}
		}
		switch mp.kind {
		case patchAdd:
			fw := &funcWork{decl: mp.decl, qualifier: cw.id}
			if mp.decl.IsStatic {
				cw.statics = append(cw.statics, fw)
			} else {
				cw.methods = append(cw.methods, fw)
			}
		case patchReplace:
			if !replaceInPlace(cw.methods, mp.decl.Name, mp.decl) && !replaceInPlace(cw.statics, mp.decl.Name, mp.decl) {
				c.reporter.Add(diag.New(diag.PhasePreprocess, diag.CodeUnresolvedAnnotationTarget,
					"no method named "+mp.decl.Name+" found on "+cw.id+" to replace").WithSpan(spanOf(mp.decl.Span, "")))
			}
		case patchWrap:
			fw := &funcWork{decl: mp.decl, qualifier: cw.id}
			// Append the shim to whichever list its target actually lives
			// in, so a later same-name lookup still finds the real
			// original before any shim (static and instance methods share
			// no namespace, so a name collision across the two is moot).
			if target := findMethodOrStatic(cw, mp.decl.Name); target != nil && target.decl.IsStatic {
				cw.statics = append(cw.statics, fw)
			} else {
				cw.methods = append(cw.methods, fw)
			}
			cw.wrappers[mp.decl.Name] = append(cw.wrappers[mp.decl.Name], fw)
		}
	}
}

func replaceInPlace(fws []*funcWork, name string, decl *ast.FunctionDecl) bool {
	for _, fw := range fws {
		if fw.decl.Name == name {
			fw.decl = decl
			return true
		}
	}
	return false
}

// resolveGlobalReplacements applies every deferred @replaceGlobal effect.
func (c *Compiler) resolveGlobalReplacements() {
	for _, decl := range c.globalReplacements {
		replaced := false
		for _, fw := range c.freeFuncs {
			if fw.decl.Name == decl.Name {
				fw.decl = decl
				replaced = true
				break
			}
		}
		if !replaced {
			c.reporter.Add(diag.New(diag.PhasePreprocess, diag.CodeUnresolvedAnnotationTarget,
				"no global named "+decl.Name+" found to replace").WithSpan(spanOf(decl.Span, "")))
		}
	}
}

// findMethodOrStatic looks up a class's own method or static by short name.
func findMethodOrStatic(cw *classWork, name string) *funcWork {
	for _, fw := range cw.methods {
		if fw.decl.Name == name {
			return fw
		}
	}
	for _, fw := range cw.statics {
		if fw.decl.Name == name {
			return fw
		}
	}
	return nil
}

func (c *Compiler) populateClass(pm *parsedModule, decl *ast.ClassDecl) {
	id := qualify(pm.path, decl.Name)
	typeVars := make(map[string]bool, len(decl.TypeParams))
	for _, tp := range decl.TypeParams {
		typeVars[tp] = true
	}
	cw := &classWork{id: id, decl: decl, fieldByName: make(map[string]pool.Index), wrappers: make(map[string][]*funcWork), typeVars: typeVars}
	c.classes[id] = cw
	c.order = append(c.order, id)
	c.mmap.Insert(id, modulemap.Item{Kind: modulemap.ItemType, Name: id})

	fields := make(map[string]typerepo.Type, len(decl.Fields))
	for _, f := range decl.Fields {
		fields[f.Name] = resolveTypeExprRepoVars(f.Type, typeVars)
	}

	methods := typerepo.NewOverloadMap()
	statics := typerepo.NewOverloadMap()
	for _, m := range decl.Methods {
		entry := typerepo.FunctionEntry{
			Params: paramTypesVars(m.Params, typeVars),
			Return: returnTypeOfVars(m.ReturnType, typeVars),
			Flags: typerepo.FunctionFlags{
				IsNative: m.IsNative, IsCallback: m.IsCallback, IsFinal: m.IsFinal,
				IsStatic: m.IsStatic, IsQuest: m.IsQuest, HasBody: m.Body != nil,
			},
		}
		sig := c.cache.SignatureFor(entry.Params, entry.Return)
		target := methods
		if m.IsStatic {
			target = statics
		}
		target.Add(m.Name, sig, entry)
		if m.IsStatic {
			c.statics(cw, m)
		} else {
			c.methods(cw, m)
		}
	}

	c.repo.Define(id, typerepo.Class{
		TypeVars: decl.TypeParams,
		Fields:   fields,
		Methods:  methods,
		Statics:  statics,
		Flags: typerepo.ClassFlags{
			IsNative: decl.IsNative, IsAbstract: decl.IsAbstract,
			IsFinal: decl.IsFinal, IsStruct: decl.IsStruct,
		},
	})
}

func (c *Compiler) methods(cw *classWork, m *ast.FunctionDecl) {
	cw.methods = append(cw.methods, &funcWork{decl: m, qualifier: cw.id})
}

func (c *Compiler) statics(cw *classWork, m *ast.FunctionDecl) {
	cw.statics = append(cw.statics, &funcWork{decl: m, qualifier: cw.id})
}

func (c *Compiler) populateEnum(pm *parsedModule, decl *ast.EnumDecl) {
	id := qualify(pm.path, decl.Name)
	members := make([]typerepo.EnumMember, 0, len(decl.Members))
	for _, m := range decl.Members {
		members = append(members, typerepo.EnumMember{Name: m.Name, Value: m.Value})
	}
	c.repo.Define(id, typerepo.Enum{Members: members, IsFlags: decl.IsFlags})
	c.order = append(c.order, id)
	c.mmap.Insert(id, modulemap.Item{Kind: modulemap.ItemType, Name: id})
}

func (c *Compiler) populateFreeFunction(pm *parsedModule, decl *ast.FunctionDecl) {
	if target, ok := annotationTarget(decl, "wrapMethod"); ok {
		c.methodPatches = append(c.methodPatches, &methodPatch{kind: patchWrap, target: c.resolveBaseID(target), decl: decl})
		return
	}
	if target, ok := annotationTarget(decl, "replaceMethod"); ok {
		c.methodPatches = append(c.methodPatches, &methodPatch{kind: patchReplace, target: c.resolveBaseID(target), decl: decl})
		return
	}
	if target, ok := annotationTarget(decl, "addMethod"); ok {
		c.methodPatches = append(c.methodPatches, &methodPatch{kind: patchAdd, target: c.resolveBaseID(target), decl: decl})
		return
	}
	if hasAnnotation(decl, "replaceGlobal") {
		c.globalReplacements = append(c.globalReplacements, decl)
		return
	}

	id := qualify(pm.path, decl.Name)
	fw := &funcWork{decl: decl, qualifier: ""}
	c.freeFuncs = append(c.freeFuncs, fw)
	entry := typerepo.FunctionEntry{
		Params: paramTypes(decl.Params),
		Return: returnTypeOf(decl.ReturnType),
		Flags: typerepo.FunctionFlags{
			IsNative: decl.IsNative, IsCallback: decl.IsCallback, IsFinal: decl.IsFinal,
			IsStatic: true, IsQuest: decl.IsQuest, HasBody: decl.Body != nil,
		},
	}
	sig := c.cache.SignatureFor(entry.Params, entry.Return)
	c.repo.Globals().Add(decl.Name, sig, entry)
	c.mmap.Insert(id, modulemap.Item{Kind: modulemap.ItemFunc, Name: decl.Name})
}

func paramTypes(params []ast.Param) []typerepo.Type {
	return paramTypesVars(params, nil)
}

func paramTypesVars(params []ast.Param, vars map[string]bool) []typerepo.Type {
	out := make([]typerepo.Type, 0, len(params))
	for _, p := range params {
		out = append(out, resolveTypeExprRepoVars(p.Type, vars))
	}
	return out
}

func returnTypeOf(te *ast.TypeExpr) typerepo.Type {
	return returnTypeOfVars(te, nil)
}

func returnTypeOfVars(te *ast.TypeExpr, vars map[string]bool) typerepo.Type {
	if te == nil {
		return typerepo.TPrim{P: typerepo.PrimVoid}
	}
	return resolveTypeExprRepoVars(*te, vars)
}

// resolveTypeExprRepo is a standalone mirror of typer.resolveTypeExpr for
// use before any scope/reporter context exists (Populate runs before
// Typecheck). Kept intentionally small and duplicated rather than exported
// from typer, since typer's version is reporter-aware and this one never
// needs to report anything — Populate only records declared shapes.
func resolveTypeExprRepo(te ast.TypeExpr) typerepo.Type {
	return resolveTypeExprRepoVars(te, nil)
}

// resolveTypeExprRepoVars is resolveTypeExprRepo generalized with an
// enclosing class's own type-parameter set: a bare reference to one of
// those names resolves to typerepo.TVar instead of an unbound TData id, so
// Pass 3 can detect which signature positions are actually generic
// (spec.md §4.5 step 4).
func resolveTypeExprRepoVars(te ast.TypeExpr, vars map[string]bool) typerepo.Type {
	if vars[te.Name] && len(te.Args) == 0 {
		return typerepo.TVar{Name: te.Name}
	}
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
	case typerepo.IDRef, typerepo.IDWeakRef, typerepo.IDArray, typerepo.IDScriptRef:
		var arg typerepo.Type = typerepo.Scriptable
		if len(te.Args) > 0 {
			arg = resolveTypeExprRepoVars(te.Args[0], vars)
		}
		switch te.Name {
		case typerepo.IDRef:
			return typerepo.Ref(arg)
		case typerepo.IDWeakRef:
			return typerepo.WeakRef(arg)
		case typerepo.IDArray:
			return typerepo.Array(arg)
		default:
			return typerepo.ScriptRef(arg)
		}
	default:
		var args []typerepo.Type
		for _, a := range te.Args {
			args = append(args, resolveTypeExprRepoVars(a, vars))
		}
		return typerepo.TData{ID: te.Name, Args: args}
	}
}

// --- Pass 2: Preprocess -------------------------------------------------

var allowedAnnotations = map[string]bool{
	"replaceMethod": true, "wrapMethod": true, "addMethod": true,
	"replaceGlobal": true, "addField": true,
}

func (c *Compiler) passPreprocess() {
	for _, pm := range c.modules {
		for _, imp := range pm.mod.Imports {
			c.checkImport(imp)
		}
	}

	for _, cw := range c.classes {
		for _, f := range cw.decl.Fields {
			if f.Native && !cw.decl.IsNative {
				c.reporter.Add(diag.New(diag.PhasePreprocess, diag.CodeNativeOutsideNative,
					"native field declared outside a native class").WithSpan(spanOf(f.Span, cw.decl.Span.File)))
			}
		}
		for _, m := range cw.decl.Methods {
			if m.IsNative && !cw.decl.IsNative {
				c.reporter.Add(diag.New(diag.PhasePreprocess, diag.CodeNativeOutsideNative,
					"native method "+m.Name+" declared outside a native class").WithSpan(spanOf(m.Span, cw.decl.Span.File)))
			}
			c.checkFunctionDecl(m, cw.decl.IsNative)
		}
	}
	for _, fw := range c.freeFuncs {
		c.checkFunctionDecl(fw.decl, false)
	}
	for _, mp := range c.methodPatches {
		c.checkFunctionDecl(mp.decl, false)
	}
	for _, decl := range c.globalReplacements {
		c.checkFunctionDecl(decl, false)
	}
	for _, lw := range c.globalLets {
		hasAddField := false
		for _, a := range lw.decl.Annotations {
			if a.Name == "addField" {
				hasAddField = true
			}
			c.checkAnnotation(a)
		}
		if !hasAddField {
			c.reporter.Add(diag.New(diag.PhasePreprocess, diag.CodeAddFieldWithoutAnnotation,
				"global let requires @addField").WithSpan(spanOf(lw.decl.Span, "")))
		}
	}
}

func (c *Compiler) checkImport(imp ast.Import) {
	path := strings.Join(imp.Path, ".")
	switch imp.Kind {
	case ast.ImportAll:
		if len(c.mmap.GetDirectDescendants(path)) == 0 {
			c.reporter.Add(diag.New(diag.PhasePreprocess, diag.CodeUnresolvedImport,
				"no members found under "+path))
		}
	case ast.ImportSelected:
		for _, n := range imp.Names {
			if _, ok := c.mmap.Get(path + "." + n); !ok {
				c.reporter.Add(diag.New(diag.PhasePreprocess, diag.CodeUnresolvedImport,
					"unresolved import "+path+"."+n))
			}
		}
	default:
		if _, ok := c.mmap.Get(path); !ok {
			c.reporter.Add(diag.New(diag.PhasePreprocess, diag.CodeUnresolvedImport,
				"unresolved import "+path))
		}
	}
}

func (c *Compiler) checkFunctionDecl(m *ast.FunctionDecl, classIsNative bool) {
	if m.IsNative && m.Body != nil {
		c.reporter.Add(diag.New(diag.PhasePreprocess, diag.CodeBodyOnNative,
			"native function "+m.Name+" must not declare a body").WithSpan(spanOf(m.Span, "")))
	}
	if m.IsNative && !classIsNative && m.Name != "" {
		// a free native function is always legal; a native method outside a
		// native class is flagged by passPreprocess's class-member loop,
		// next to the native-field check.
	}
	if len(m.Annotations) > 0 && m.Body == nil && !m.IsNative {
		c.reporter.Add(diag.New(diag.PhasePreprocess, diag.CodeAnnotatedFuncNoBody,
			"annotated function "+m.Name+" has no body").WithSpan(spanOf(m.Span, "")))
	}
	for _, a := range m.Annotations {
		c.checkAnnotation(a)
	}
}

func (c *Compiler) checkAnnotation(a ast.Annotation) {
	if !allowedAnnotations[a.Name] {
		c.reporter.Add(diag.New(diag.PhasePreprocess, diag.CodeUnsupportedIfAnnotation,
			"unsupported annotation @"+a.Name).WithSpan(spanOf(a.Span, "")))
		return
	}
	if a.Name == "replaceMethod" || a.Name == "wrapMethod" || a.Name == "addMethod" {
		if len(a.Args) != 1 {
			c.reporter.Add(diag.New(diag.PhasePreprocess, diag.CodeInvalidAnnotation,
				"@"+a.Name+" requires exactly one target-class argument").WithSpan(spanOf(a.Span, "")))
		}
	}
}

func spanOf(s ast.Span, fallbackFile string) diag.Span {
	file := s.File
	if file == "" {
		file = fallbackFile
	}
	return diag.Span{File: file, StartLine: s.StartLine, StartCol: s.StartCol, EndLine: s.EndLine, EndCol: s.EndCol}
}

// --- Pass 3: Inherit -----------------------------------------------------

func (c *Compiler) passInherit() {
	ids := make([]string, len(c.order))
	copy(ids, c.order)
	// Sort by static AST depth, not typerepo.Class.Depth: the latter reads
	// the Extends field this very pass is about to populate, so at the
	// moment this sort runs every class's repo-recorded depth is still 0
	// (a no-op sort). resolveBaseLinks's root-signature walk needs an
	// ancestor's own BaseLink already recorded before a descendant three or
	// more levels down is processed, so ordering must come from the
	// declared `extends` chain itself.
	sort.Slice(ids, func(i, j int) bool { return c.staticDepth(ids[i]) < c.staticDepth(ids[j]) })

	for _, id := range ids {
		cw, ok := c.classes[id]
		if !ok || cw.decl.Extends == nil {
			continue
		}
		baseID := c.resolveBaseID(cw.decl.Extends.Name)
		if baseID == "" {
			continue // unresolved base is out of this compiler's scope (no stdlib predef loaded)
		}
		baseDT, ok := c.repo.Lookup(baseID)
		if !ok {
			continue
		}
		baseClass, ok := baseDT.(typerepo.Class)
		if !ok {
			continue
		}
		if baseClass.Flags.IsFinal {
			c.reporter.Add(diag.New(diag.PhaseInherit, diag.CodeExtendsFinalClass,
				cw.id+" extends final class "+baseID).WithSpan(spanOf(cw.decl.Span, "")))
		}

		cur, _ := c.repo.Lookup(cw.id)
		class := cur.(typerepo.Class)
		class.Extends = &typerepo.Parameterized{ID: baseID}
		c.repo.Define(cw.id, class)
		cw.baseID = baseID

		c.resolveBaseLinks(cw, baseClass)
	}

	c.checkUnimplementedMethods()
}

// checkUnimplementedMethods raises spec.md §7's UnimplementedMethod
// diagnostic: a non-abstract, non-native class whose ancestor chain
// declares an abstract method (a body-less method on an IsAbstract class)
// that no class between it and the concrete one overrides. Walking stops at
// the first predef-sourced ancestor without flagging anything beneath it:
// predef classes were already validated by whatever produced that bundle,
// so their own unimplemented sets are never re-derived here
// (SPEC_FULL.md §3 "Predef-only class detection").
func (c *Compiler) checkUnimplementedMethods() {
	for _, id := range c.order {
		cw, ok := c.classes[id]
		if !ok || cw.decl.IsAbstract || cw.decl.IsNative {
			continue
		}
		implemented := map[string]bool{}
		for _, m := range cw.methods {
			if m.decl.Body != nil {
				implemented[m.decl.Name] = true
			}
		}
		for cur := cw.baseID; cur != ""; {
			ancestorCW, ok := c.classes[cur]
			if !ok {
				break // a predef ancestor's own unimplemented set is out of scope
			}
			dt, _ := c.repo.Lookup(cur)
			if ancestorClass, ok := dt.(typerepo.Class); ok && ancestorClass.FromPredef {
				break
			}
			if ancestorCW.decl.IsAbstract {
				for _, m := range ancestorCW.decl.Methods {
					if m.Body == nil && !implemented[m.Name] {
						c.reporter.Add(diag.New(diag.PhaseInherit, diag.CodeUnimplementedMethod,
							cw.id+" does not implement "+m.Name+" from abstract class "+cur).WithSpan(spanOf(cw.decl.Span, "")))
					}
				}
			}
			for _, m := range ancestorCW.methods {
				if m.decl.Body != nil {
					implemented[m.decl.Name] = true
				}
			}
			cur = ancestorCW.baseID
		}
	}
}

// staticDepth counts steps along a class's declared `extends` chain,
// resolved purely from parsed ClassDecls (never from the TypeRepo, which
// Pass 3 mutates as it goes) so every ancestor sorts before its descendants
// regardless of iteration order.
func (c *Compiler) staticDepth(id string) int {
	depth := 0
	seen := map[string]bool{id: true}
	cur := id
	for {
		cw, ok := c.classes[cur]
		if !ok || cw.decl.Extends == nil {
			break
		}
		baseID := c.resolveBaseID(cw.decl.Extends.Name)
		if baseID == "" || seen[baseID] {
			break
		}
		seen[baseID] = true
		depth++
		cur = baseID
	}
	return depth
}

// resolveBaseID matches a bare extends-name against every populated class id
// by exact id or by trailing path component, a pragmatic stand-in for full
// import-qualified resolution (documented as an Open Question decision).
// Falls back to the TypeRepo itself so a class loaded from a predef bundle
// (spec.md §6 Compilation Resources), which has no classWork of its own,
// can still be resolved as a base or annotation target.
func (c *Compiler) resolveBaseID(name string) string {
	if _, ok := c.classes[name]; ok {
		return name
	}
	for id := range c.classes {
		if strings.HasSuffix(id, "."+name) {
			return id
		}
	}
	if dt, ok := c.repo.Lookup(name); ok {
		if _, isClass := dt.(typerepo.Class); isClass {
			return name
		}
	}
	for _, id := range c.repo.Ids() {
		if strings.HasSuffix(id, "."+name) {
			if dt, _ := c.repo.Lookup(id); isClassType(dt) {
				return id
			}
		}
	}
	return ""
}

func isClassType(dt typerepo.DataType) bool {
	_, ok := dt.(typerepo.Class)
	return ok
}

// resolveBaseLinks matches each of cw's methods against a same-named,
// same-arity method in the base class by structural shape, recording a
// BaseLink for the override (spec.md §4.5 step 4 "base-method matching via
// structural shape") and deriving generic-parameter promotion: walk the
// override chain up to its root R, and for every position where R's
// declared type is Var but this override's is concrete, mark that position
// poly.
func (c *Compiler) resolveBaseLinks(cw *classWork, base typerepo.Class) {
	for _, fw := range cw.methods {
		entries := base.Methods.ByName(fw.decl.Name)
		if len(entries) != 1 {
			continue // zero or ambiguous: no override link recorded
		}
		be := entries[0]
		if len(be.Function.Params) != len(fw.decl.Params) {
			continue
		}

		rootParams, rootReturn := be.Function.Params, be.Function.Return
		if be.Function.Base != nil {
			if rp, rr, ok := c.rootSignature(be.Function.Base); ok {
				rootParams, rootReturn = rp, rr
			}
		}

		ownParams := paramTypesVars(fw.decl.Params, cw.typeVars)
		ownReturn := returnTypeOfVars(fw.decl.ReturnType, cw.typeVars)

		link := &typerepo.BaseLink{ClassID: cw.baseID, Name: fw.decl.Name, OverloadIndex: be.Index}
		link.RetPoly = isVar(rootReturn) && !isVar(ownReturn)
		link.PolyParams = make([]bool, len(rootParams))
		for i, rp := range rootParams {
			if i < len(ownParams) {
				link.PolyParams[i] = isVar(rp) && !isVar(ownParams[i])
			}
		}

		cur, _ := c.repo.Lookup(cw.id)
		class := cur.(typerepo.Class)
		for _, e := range class.Methods.ByName(fw.decl.Name) {
			e.Function.Base = link
			e.Function.IsRetPoly = link.RetPoly
			for _, poly := range link.PolyParams {
				if poly {
					e.Function.IsPoly = true
					break
				}
			}
		}
		c.repo.Define(cw.id, class)
	}
}

// rootSignature walks an override chain upward from link (an already-
// resolved BaseLink) to find the topmost ancestor's declared signature for
// the overridden method — the R in spec.md §4.5 step 4's "walk B upward to
// the root of the override chain R".
func (c *Compiler) rootSignature(link *typerepo.BaseLink) ([]typerepo.Type, typerepo.Type, bool) {
	dt, ok := c.repo.Lookup(link.ClassID)
	if !ok {
		return nil, nil, false
	}
	class, ok := dt.(typerepo.Class)
	if !ok {
		return nil, nil, false
	}
	entries := class.Methods.ByName(link.Name)
	idx := int(link.OverloadIndex)
	if idx < 0 || idx >= len(entries) {
		return nil, nil, false
	}
	be := entries[idx]
	if be.Function.Base != nil {
		return c.rootSignature(be.Function.Base)
	}
	return be.Function.Params, be.Function.Return, true
}

func isVar(t typerepo.Type) bool {
	_, ok := t.(typerepo.TVar)
	return ok
}

// --- Pass 4: Typecheck & emit --------------------------------------------

func (c *Compiler) passEmit() {
	// Phase A: commit every class's fields first, so method bodies in the
	// same class can resolve field accesses against a real pool index.
	for _, id := range c.order {
		cw, ok := c.classes[id]
		if !ok {
			continue
		}
		cw.classIdx = c.pool.Reserve(pool.KindClass)
		for _, f := range cw.decl.Fields {
			fb := &builders.FieldBuilder{Name: f.Name, Type: resolveTypeExprRepoVars(f.Type, cw.typeVars), Native: f.Native, Persist: f.Persist}
			if len(f.Default) > 0 {
				fb.Default = c.lowerConstBytecode(f.Default, cw.decl.Span.File)
			}
			idx := fb.Commit(cw.classIdx, c.repo, c.pool, c.cache)
			cw.fields = append(cw.fields, &fieldWork{decl: f, idx: idx})
			cw.fieldByName[f.Name] = idx
		}
	}

	// Phase A.5: @addField global lets become new Field Definitions, each
	// appended after its target class's own declared fields (spec.md §6
	// "GlobalLet: permitted only with @addField(T) — adds a field to
	// existing class T"; S2 Add field).
	for _, lw := range c.globalLets {
		var target string
		for _, a := range lw.decl.Annotations {
			if a.Name == "addField" && len(a.Args) == 1 {
				target = a.Args[0]
			}
		}
		if target == "" {
			continue // missing/malformed annotation already diagnosed in passPreprocess
		}
		cw, ok := c.classes[c.resolveBaseID(target)]
		if !ok {
			c.reporter.Add(diag.New(diag.PhaseEmit, diag.CodeUnresolvedAnnotationTarget,
				"@addField target "+target+" not found").WithSpan(spanOf(lw.decl.Span, "")))
			continue
		}
		fb := &builders.FieldBuilder{Name: lw.decl.Name, Type: resolveTypeExprRepoVars(lw.decl.Type, nil)}
		if len(lw.decl.Init) > 0 {
			fb.Default = c.lowerConstBytecode(lw.decl.Init, lw.decl.Span.File)
		}
		idx := fb.Commit(cw.classIdx, c.repo, c.pool, c.cache)
		cw.fields = append(cw.fields, &fieldWork{idx: idx})
		cw.fieldByName[lw.decl.Name] = idx
	}

	// resolve each class's superclass pool index now that every class in
	// the program has a reserved classIdx, regardless of declaration order.
	// A base that isn't one of this compile's own classes is a predef class
	// (spec.md §6): its pool index already exists in the repo from the
	// Compilation Resources load, not from this pass's classIdx reservation.
	for _, cw := range c.classes {
		if cw.baseID == "" {
			continue
		}
		if baseCW, ok := c.classes[cw.baseID]; ok {
			cw.base = baseCW.classIdx
		} else if idx, ok := c.repo.ClassPoolIndex(cw.baseID); ok {
			cw.base = idx
		}
	}

	// Phase B: reserve every function/method skeleton (Code nil), so calls
	// anywhere in the program can resolve against a committed index
	// regardless of declaration order. Wrapper shims (spec.md §4.6 step 3)
	// are reserved here too but withheld from funcIdx, since they share
	// their target's short name and must not shadow it until the linkage
	// pass below decides which physical slot the public name resolves to.
	isWrapperShim := make(map[*funcWork]bool)
	for _, cw := range c.classes {
		for _, shims := range cw.wrappers {
			for _, fw := range shims {
				isWrapperShim[fw] = true
			}
		}
	}

	funcIdx := make(map[string]pool.Index) // short name -> fn index, last write wins (documented simplification)
	allFuncs := make([]*funcWork, 0)
	for _, id := range c.order {
		cw, ok := c.classes[id]
		if !ok {
			continue
		}
		for _, fw := range append(append([]*funcWork{}, cw.methods...), cw.statics...) {
			c.reserveFunc(fw, cw.classIdx)
			if !isWrapperShim[fw] {
				funcIdx[fw.decl.Name] = fw.fnIdx
			}
			allFuncs = append(allFuncs, fw)
		}
	}
	for _, fw := range c.freeFuncs {
		c.reserveFunc(fw, pool.Undefined)
		funcIdx[fw.decl.Name] = fw.fnIdx
		allFuncs = append(allFuncs, fw)
	}

	// Wrapper linkage pass (spec.md §4.6 step 4): now that every method and
	// wrapper shim has a reserved pool index, swap each wrapped method's
	// external identity with its outermost (last-declared) wrapper and wire
	// the forwarding chain codegen will thread wrappedMethod() calls through.
	wrapTargets := c.linkWrapperChains()

	// Phase C: lower every body now that every call target and field is
	// resolvable, then complete the function (locals + code).
	for _, fw := range allFuncs {
		var wrapped *pool.Index
		if idx, ok := wrapTargets[fw]; ok {
			idx := idx
			wrapped = &idx
		}
		c.emitBody(fw, funcIdx, wrapped)
	}

	// Phase D: write every class Definition now that fields/methods/statics
	// are fully committed (spec.md §4.4: "the Class Definition itself is
	// written last, once all child indices are known").
	for _, id := range c.order {
		cw, ok := c.classes[id]
		if !ok {
			continue
		}
		fieldIdxs := make([]pool.Index, 0, len(cw.fields))
		for _, f := range cw.fields {
			fieldIdxs = append(fieldIdxs, f.idx)
		}
		methodIdxs := make([]pool.Index, 0, len(cw.methods))
		for _, m := range cw.methods {
			methodIdxs = append(methodIdxs, m.fnIdx)
		}
		staticIdxs := make([]pool.Index, 0, len(cw.statics))
		for _, s := range cw.statics {
			staticIdxs = append(staticIdxs, s.fnIdx)
		}
		nameIdx := c.tables.Names.Add(cw.decl.Name)
		c.pool.Put(cw.classIdx, pool.Definition{
			Name:   nameIdx,
			Parent: pool.Undefined,
			Value: pool.Class{
				Flags: pool.ClassFlags{
					IsNative: cw.decl.IsNative, IsAbstract: cw.decl.IsAbstract,
					IsFinal: cw.decl.IsFinal, IsStruct: cw.decl.IsStruct,
				},
				Base:    cw.base,
				Fields:  fieldIdxs,
				Methods: methodIdxs,
				Statics: staticIdxs,
			},
		})
		c.repo.SetClassPoolIndex(cw.id, cw.classIdx)
	}

	// Enums have no bodies to lower; commit them directly.
	for _, id := range c.order {
		if _, isClass := c.classes[id]; isClass {
			continue
		}
		dt, ok := c.repo.Lookup(id)
		if !ok {
			continue
		}
		e, ok := dt.(typerepo.Enum)
		if !ok {
			continue
		}
		idx := c.pool.Reserve(pool.KindEnum)
		eb := &builders.EnumBuilder{Members: e.Members, IsFlags: e.IsFlags}
		eb.CommitAs(idx, c.tables.Names.Add(shortName(id)), c.pool, c.tables.Names)
		c.repo.SetEnumPoolIndex(id, idx)
	}
}

func shortName(id string) string {
	parts := strings.Split(id, ".")
	return parts[len(parts)-1]
}

// reserveFunc reserves fw's pool skeleton. A bare reference to the owning
// class's own type parameter (e.g. `T` on a method of `class A<T>`) must
// resolve to typerepo.TVar rather than an unresolvable TData id, so
// TypeCache.Alloc wire-encodes it as the root IScriptable class per spec.md
// §4.3, not as a lookup against a nonexistent class named "T".
func (c *Compiler) reserveFunc(fw *funcWork, parent pool.Index) {
	var typeVars map[string]bool
	if fw.qualifier != "" {
		if cw, ok := c.classes[fw.qualifier]; ok {
			typeVars = cw.typeVars
		}
	}
	fb := &builders.FunctionBuilder{
		Name: fw.decl.Name,
		Flags: pool.FunctionFlags{
			IsNative: fw.decl.IsNative, IsCallback: fw.decl.IsCallback, IsFinal: fw.decl.IsFinal,
			IsStatic: fw.decl.IsStatic, IsQuest: fw.decl.IsQuest, HasBody: fw.decl.Body != nil,
		},
		Params: paramSpecsVars(fw.decl.Params, typeVars),
	}
	if fw.decl.ReturnType != nil {
		rt := resolveTypeExprRepoVars(*fw.decl.ReturnType, typeVars)
		fb.ReturnType = &rt
	}
	fw.fnIdx = fb.Commit(parent, c.repo, c.pool, c.cache)
	def := c.pool.Definition(fw.fnIdx).Value.(pool.Function)
	fw.paramIdxs = def.Params
}

func paramSpecsVars(params []ast.Param, vars map[string]bool) []builders.ParamSpec {
	out := make([]builders.ParamSpec, 0, len(params))
	for _, p := range params {
		out = append(out, builders.ParamSpec{Name: p.Name, Type: resolveTypeExprRepoVars(p.Type, vars), IsOut: p.IsOut})
	}
	return out
}

// linkWrapperChains performs spec.md §4.6 step 4 for every wrapped method in
// the program: the outermost (last-declared) wrapper swaps physical pool
// slots with the true original so the method's public index/name keeps
// dispatching to the wrapped behavior, while the remaining wrappers chain by
// index through the returned wrap-target map (consumed by Phase C's codegen
// pass, step 5). Only the outer swap boundary's parameter names and callback
// flag are aligned, matching spec.md §4.6 step 4's literal single-hop
// description; a deeper per-link alignment is not attempted (documented in
// DESIGN.md).
func (c *Compiler) linkWrapperChains() map[*funcWork]pool.Index {
	wrapTargets := make(map[*funcWork]pool.Index)

	for _, cw := range c.classes {
		for name, wrappers := range cw.wrappers {
			n := len(wrappers)
			if n == 0 {
				continue
			}
			original := findOriginalOnly(cw, name)
			if original == nil {
				c.reporter.Add(diag.New(diag.PhaseEmit, diag.CodeUnresolvedAnnotationTarget,
					"no method named "+name+" found on "+cw.id+" to wrap").WithSpan(spanOf(cw.decl.Span, "")))
				continue
			}
			last := wrappers[n-1]

			origParamIdxs := append([]pool.Index(nil), original.paramIdxs...)
			origIsCallback := original.decl.IsCallback
			publicIdx := original.fnIdx
			innerIdx := last.fnIdx

			// Swap which physical slot each body completes into: the public
			// slot (the one the rest of the program calls by name) ends up
			// running the last wrapper's body; the original's own reserved
			// slot becomes the innermost link.
			original.fnIdx, last.fnIdx = last.fnIdx, original.fnIdx

			for i := range origParamIdxs {
				if i < len(last.decl.Params) {
					nameIdx := c.tables.Names.Add(last.decl.Params[i].Name)
					c.pool.Rename(origParamIdxs[i], nameIdx)
				}
			}
			if origIsCallback {
				setCallback(c.pool, publicIdx, true)
				setCallback(c.pool, innerIdx, false)
			}

			// Wire the forwarding chain, outer to inner: last -> w[n-2] ->
			// ... -> w[0] -> original's new (inner) home.
			if n > 1 {
				wrapTargets[last] = wrappers[n-2].fnIdx
			} else {
				wrapTargets[last] = innerIdx
			}
			for i := n - 2; i >= 1; i-- {
				wrapTargets[wrappers[i]] = wrappers[i-1].fnIdx
			}
			if n > 1 {
				wrapTargets[wrappers[0]] = innerIdx
			}

			// Every non-public slot in the chain was reserved under the
			// same surface name as the wrapped method (a @wrapMethod
			// re-declares the method it targets); give each a uniquified
			// name derived from the original name plus an ordinal (spec.md
			// §4.6 step 3) so pool tooling can tell the links apart.
			internalSlots := make([]pool.Index, 0, n)
			for i := 0; i < n-1; i++ {
				internalSlots = append(internalSlots, wrappers[i].fnIdx)
			}
			internalSlots = append(internalSlots, original.fnIdx)
			for i, idx := range internalSlots {
				slug := name + "$wrapped" + strconv.Itoa(i)
				c.pool.Rename(idx, c.tables.Names.Add(slug))
			}
		}
	}

	return wrapTargets
}

// findOriginalOnly returns the first method/static on cw with the given
// short name — the class's own declaration always appears before any
// @wrapMethod shim is appended to the same list, so the first match is the
// true original even though wrapper shims share its short name.
func findOriginalOnly(cw *classWork, name string) *funcWork {
	return findMethodOrStatic(cw, name)
}

func setCallback(p *pool.Pool, idx pool.Index, v bool) {
	def := p.Definition(idx)
	fn, ok := def.Value.(pool.Function)
	if !ok {
		return
	}
	fn.Flags.IsCallback = v
	def.Value = fn
	p.Put(idx, def)
}

// paramBoxingFor looks up fw's own BaseLink (set by resolveBaseLinks, if
// any) and translates its PolyParams/RetPoly into the autobox.ParamBoxing
// spec.md §4.5 step 4 / §6 Autobox.run consumes to insert box/unbox at the
// promoted positions.
func (c *Compiler) paramBoxingFor(fw *funcWork, paramNames []string) autobox.ParamBoxing {
	boxing := autobox.ParamBoxing{ParamNames: paramNames}
	if fw.qualifier == "" {
		return boxing
	}
	dt, ok := c.repo.Lookup(fw.qualifier)
	if !ok {
		return boxing
	}
	class, ok := dt.(typerepo.Class)
	if !ok {
		return boxing
	}
	entries := class.Methods.ByName(fw.decl.Name)
	var entry *typerepo.OverloadEntry
	for _, e := range entries {
		if len(e.Function.Params) == len(fw.decl.Params) {
			entry = e
			break
		}
	}
	if entry == nil || entry.Function.Base == nil {
		return boxing
	}
	link := entry.Function.Base
	boxing.PolyReturn = link.RetPoly
	boxing.PolyFlags = append([]bool(nil), link.PolyParams...)
	return boxing
}

// lowerConstBytecode lowers a field or @addField global's default-value
// initializer (SPEC_FULL.md §3 "@addField default-value support") against an
// empty scope: defaults run before any instance or call frame exists, so
// there is no `this`, no parameters, and no enclosing function to resolve
// names against.
func (c *Compiler) lowerConstBytecode(stmts []ast.Stmt, file string) []byte {
	env := scope.New[typerepo.Type]()
	alloc := &typer.IDAlloc{}
	body := desugar.Run(stmts)
	checked := typer.Run(c.repo, env, body, typerepo.Scriptable, alloc, c.reporter, file)
	checked = autobox.Run(checked, autobox.ParamBoxing{})
	res := codegen.Build(checked, codegen.Slots{}, c.repo, c.pool, c.cache, nil)
	return res.Code
}

func (c *Compiler) emitBody(fw *funcWork, funcIdx map[string]pool.Index, wrapped *pool.Index) {
	if fw.decl.Body == nil {
		return // native/abstract: no code to lower
	}

	var owner *classWork
	var typeVars map[string]bool
	if fw.qualifier != "" {
		owner = c.classes[fw.qualifier]
	}
	if owner != nil {
		typeVars = owner.typeVars
	}

	env := scope.New[typerepo.Type]()
	paramNames := make([]string, 0, len(fw.decl.Params))
	paramSlots := make(map[string]pool.Index, len(fw.decl.Params))
	for i, p := range fw.decl.Params {
		env.Bind(p.Name, resolveTypeExprRepoVars(p.Type, typeVars))
		paramNames = append(paramNames, p.Name)
		if i < len(fw.paramIdxs) {
			paramSlots[p.Name] = fw.paramIdxs[i]
		}
	}

	var fieldSlots map[string]pool.Index
	if owner != nil {
		fieldSlots = owner.fieldByName
		if !fw.decl.IsStatic {
			env.Bind("this", typerepo.TData{ID: owner.id})
		}
	}

	ret := returnTypeOfVars(fw.decl.ReturnType, typeVars)
	alloc := &typer.IDAlloc{}

	body := desugar.Run(fw.decl.Body)
	checked := typer.Run(c.repo, env, body, ret, alloc, c.reporter, fw.decl.Span.File)
	checked = autobox.Run(checked, c.paramBoxingFor(fw, paramNames))

	funcSlots := make(map[string]pool.Index, len(funcIdx))
	for k, v := range funcIdx {
		funcSlots[k] = v
	}

	res := codegen.Build(checked, codegen.Slots{Params: paramSlots, Fields: fieldSlots, Funcs: funcSlots}, c.repo, c.pool, c.cache, wrapped)
	c.pool.CompleteFunction(fw.fnIdx, res.Locals, res.Code)
}
