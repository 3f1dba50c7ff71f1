// Compilation Resources: loading a predef bundle as the starting pool a
// compile extends, per spec.md §6 ("Input bundle (predef)... On load, the
// Compilation Resources phase walks every definition"). Kept in its own
// file since it runs before any of the five passes, against a pool that
// already exists rather than one this compiler is building up.
package orchestrator

import (
	"fmt"

	"github.com/emberscript/emberc/internal/builders"
	"github.com/emberscript/emberc/internal/bundle"
	"github.com/emberscript/emberc/internal/diag"
	"github.com/emberscript/emberc/internal/modulemap"
	"github.com/emberscript/emberc/internal/pool"
	"github.com/emberscript/emberc/internal/typerepo"
)

// NewWithPredef decodes a predef script bundle and returns a Compiler whose
// pool and string tables start as that bundle's own, so every Reserve/Add
// call the five passes make afterward appends new definitions after the
// predef's, in the same index space (spec.md §6: the predef is read-only,
// but a compile's own class/function indices must still resolve against it
// — there is only one pool per compile, not two). The repo is populated
// from every root definition immediately, the Compilation Resources walk.
func NewWithPredef(data []byte) (*Compiler, error) {
	p, tables, err := bundle.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: decode predef bundle: %w", err)
	}

	c := &Compiler{
		tables:   tables,
		pool:     p,
		repo:     typerepo.New(),
		cache:    builders.NewTypeCache(p, tables.Names),
		mmap:     modulemap.New(),
		reporter: diag.NewReporter(),
		classes:  make(map[string]*classWork),
	}
	c.loadCompilationResources()
	return c, nil
}

// loadCompilationResources walks every root Definition already sitting in
// c.pool (because NewWithPredef handed it the decoded predef bundle) and
// populates the TypeCache and TypeRepo from it, per spec.md §6's four
// bullets: Type definitions seed the cache by mangled name; root classes
// and enums become repo entries tagged FromPredef; root functions register
// as globals.
func (c *Compiler) loadCompilationResources() {
	for _, idx := range c.pool.Roots() {
		def := c.pool.Definition(idx)
		switch v := def.Value.(type) {
		case pool.PoolType:
			c.cache.Seed(c.pool.DefName(idx), idx)
		case pool.Class:
			c.loadPredefClass(idx, v)
		case pool.Enum:
			c.loadPredefEnum(idx, v, false)
		case pool.BitField:
			c.loadPredefEnum(idx, pool.Enum{Members: v.Members}, true)
		case pool.Function:
			c.loadPredefOverload(c.repo.Globals(), idx)
		}
	}
}

func (c *Compiler) loadPredefClass(idx pool.Index, pc pool.Class) {
	name := c.pool.DefName(idx)
	class := typerepo.Class{
		Fields:  map[string]typerepo.Type{},
		Methods: typerepo.NewOverloadMap(),
		Statics: typerepo.NewOverloadMap(),
		Flags: typerepo.ClassFlags{
			IsNative:     pc.Flags.IsNative,
			IsImportOnly: pc.Flags.IsImportOnly,
			IsAbstract:   pc.Flags.IsAbstract,
			IsFinal:      pc.Flags.IsFinal,
			IsStruct:     pc.Flags.IsStruct,
		},
		FromPredef: true,
	}
	if !pc.Base.IsUndefined() {
		class.Extends = &typerepo.Parameterized{ID: c.pool.DefName(pc.Base)}
	}
	for i := 0; i < pc.TypeParams; i++ {
		class.TypeVars = append(class.TypeVars, fmt.Sprintf("T%d", i))
	}

	for _, fIdx := range pc.Fields {
		fdef := c.pool.Definition(fIdx)
		f, ok := fdef.Value.(pool.Field)
		if !ok {
			continue
		}
		class.Fields[c.pool.DefName(fIdx)] = typeFromPool(c.pool, f.Type.Type)
	}
	for _, mIdx := range pc.Methods {
		c.loadPredefOverload(class.Methods, mIdx)
	}
	for _, sIdx := range pc.Statics {
		c.loadPredefOverload(class.Statics, sIdx)
	}

	c.repo.Define(name, class)
	c.repo.SetClassPoolIndex(name, idx)
}

// loadPredefOverload reconstructs one predef Function's language-level
// signature and adds it to om. A predef bundle's own generics have already
// been box-erased to IScriptable by whatever produced it, so reconstructed
// params/return never carry a TVar — a predef base's own method can never
// be detected as the *root* of a generic-parameter promotion this
// compiler's resolveBaseLinks derives (an accepted limitation, since the
// source that would tell us the original Var position is gone once bytecode
// is emitted; see DESIGN.md).
func (c *Compiler) loadPredefOverload(om *typerepo.OverloadMap, fnIdx pool.Index) {
	fdef := c.pool.Definition(fnIdx)
	fn, ok := fdef.Value.(pool.Function)
	if !ok {
		return
	}
	name := c.pool.DefName(fnIdx)

	params := make([]typerepo.Type, 0, len(fn.Params))
	for _, pIdx := range fn.Params {
		pdef := c.pool.Definition(pIdx)
		if p, ok := pdef.Value.(pool.Parameter); ok {
			params = append(params, typeFromPool(c.pool, p.Type))
		}
	}
	var ret typerepo.Type = typerepo.TPrim{P: typerepo.PrimVoid}
	if !fn.ReturnType.IsUndefined() {
		ret = typeFromPool(c.pool, fn.ReturnType)
	}

	sig := c.cache.SignatureFor(params, ret)
	om.Add(name, sig, typerepo.FunctionEntry{
		Params: params,
		Return: ret,
		Flags: typerepo.FunctionFlags{
			IsNative:   fn.Flags.IsNative,
			IsCallback: fn.Flags.IsCallback,
			IsFinal:    fn.Flags.IsFinal,
			IsStatic:   fn.Flags.IsStatic,
			IsQuest:    fn.Flags.IsQuest,
			HasBody:    fn.Flags.HasBody,
		},
	})
}

func (c *Compiler) loadPredefEnum(idx pool.Index, pe pool.Enum, isFlags bool) {
	name := c.pool.DefName(idx)
	var members []typerepo.EnumMember
	for _, mIdx := range pe.Members {
		mdef := c.pool.Definition(mIdx)
		if ev, ok := mdef.Value.(pool.EnumValue); ok {
			members = append(members, typerepo.EnumMember{Name: c.pool.DefName(mIdx), Value: ev.Value})
		}
	}
	c.repo.Define(name, typerepo.Enum{Members: members, IsFlags: isFlags})
	c.repo.SetEnumPoolIndex(name, idx)
}

// typeFromPool reconstructs a language-level Type from a decoded, already
// wire-resolved PoolType — the inverse of builders.TypeCache.Alloc. A
// predef bundle stores only the resolved pool graph, never the original
// Type value, so loading one back into the repo has to walk it.
func typeFromPool(p *pool.Pool, idx pool.Index) typerepo.Type {
	if idx.IsUndefined() {
		return typerepo.Scriptable
	}
	pt, ok := p.Definition(idx).Value.(pool.PoolType)
	if !ok {
		return typerepo.Scriptable
	}
	switch pt.Tag {
	case pool.TypePrim:
		if prim, ok := typerepo.PrimFromString(pt.Prim); ok {
			return typerepo.TPrim{P: prim}
		}
		return typerepo.Scriptable
	case pool.TypeClass:
		if pt.Class.IsUndefined() {
			return typerepo.Scriptable
		}
		return typerepo.TData{ID: p.DefName(pt.Class)}
	case pool.TypeRef:
		return typerepo.Ref(typeFromPool(p, pt.Wrapped))
	case pool.TypeWeakRef:
		return typerepo.WeakRef(typeFromPool(p, pt.Wrapped))
	case pool.TypeArray:
		return typerepo.Array(typeFromPool(p, pt.Wrapped))
	case pool.TypeScriptRef:
		return typerepo.ScriptRef(typeFromPool(p, pt.Wrapped))
	default:
		return typerepo.Scriptable
	}
}
