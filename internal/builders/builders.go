// Package builders implements the typed pool constructors spec.md §4.4
// describes: ClassBuilder, EnumBuilder, FunctionBuilder, FieldBuilder,
// ParamBuilder, LocalBuilder, plus the SourceFileBuilder supplement from
// SPEC_FULL.md §3. Grounded in the teacher's internal/elaborate package,
// which similarly captures a pending declaration and commits it against a
// shared store in a fixed order so cross-references resolve.
package builders

import (
	"strconv"

	"github.com/emberscript/emberc/internal/mangle"
	"github.com/emberscript/emberc/internal/pool"
	"github.com/emberscript/emberc/internal/typerepo"
)

// TypeCache allocates and deduplicates pool-level PoolType entries for
// language-level Types, implementing spec.md §4.3's alloc_type.
type TypeCache struct {
	mangler *mangle.Cache
	byName  map[string]pool.Index
	names   *pool.StringTable
	pool    *pool.Pool
}

// NewTypeCache creates an empty type cache bound to p and its names table.
func NewTypeCache(p *pool.Pool, names *pool.StringTable) *TypeCache {
	return &TypeCache{
		mangler: mangle.New(),
		byName:  make(map[string]pool.Index),
		names:   names,
		pool:    p,
	}
}

// needsRefWrap reports whether T must be implicitly boxed behind ref<T>
// before allocation (spec.md §4.3: "if T is a non-struct class, or T is
// Var/Top/Bottom, replace by ref<T>").
func (c *TypeCache) needsRefWrap(t typerepo.Type, repo *typerepo.TypeRepo) bool {
	switch x := t.(type) {
	case typerepo.TVar, typerepo.TTop, typerepo.TBottom:
		return true
	case typerepo.TData:
		switch x.ID {
		case typerepo.IDRef, typerepo.IDWeakRef, typerepo.IDArray, typerepo.IDScriptRef, typerepo.IDScriptable:
			return false
		}
		dt, ok := repo.Lookup(x.ID)
		if !ok {
			return false
		}
		if cls, ok := dt.(typerepo.Class); ok {
			return !cls.Flags.IsStruct
		}
		return false
	default:
		return false
	}
}

// Alloc implements alloc_type(T): apply reference wrapping, then recurse,
// deduping by the canonical mangled name (spec.md §4.3, §8 property 3).
func (c *TypeCache) Alloc(t typerepo.Type, repo *typerepo.TypeRepo) pool.Index {
	if c.needsRefWrap(t, repo) {
		t = typerepo.Ref(t)
	}
	return c.alloc(t, repo, false)
}

func (c *TypeCache) alloc(t typerepo.Type, repo *typerepo.TypeRepo, wrapped bool) pool.Index {
	name := c.manglerName(t, wrapped)
	if idx, ok := c.byName[name]; ok {
		return idx
	}

	var pt pool.PoolType
	switch x := t.(type) {
	case typerepo.TPrim:
		pt = pool.PoolType{Tag: pool.TypePrim, Prim: x.P.String()}
	case typerepo.TVar, typerepo.TTop, typerepo.TBottom:
		classIdx, ok := repo.ClassPoolIndex(typerepo.IDScriptable)
		if !ok {
			classIdx = pool.Undefined
		}
		pt = pool.PoolType{Tag: pool.TypeClass, Class: classIdx}
	case typerepo.TData:
		switch x.ID {
		case typerepo.IDRef, typerepo.IDWeakRef:
			tag := pool.TypeRef
			if x.ID == typerepo.IDWeakRef {
				tag = pool.TypeWeakRef
			}
			inner := c.alloc(x.Args[0], repo, false)
			pt = pool.PoolType{Tag: tag, Wrapped: inner}
		case typerepo.IDArray, typerepo.IDScriptRef:
			tag := pool.TypeArray
			if x.ID == typerepo.IDScriptRef {
				tag = pool.TypeScriptRef
			}
			inner := c.alloc(x.Args[0], repo, true)
			pt = pool.PoolType{Tag: tag, Wrapped: inner}
		default:
			classIdx, ok := repo.ClassPoolIndex(x.ID)
			if !ok {
				classIdx = pool.Undefined
			}
			pt = pool.PoolType{Tag: pool.TypeClass, Class: classIdx}
		}
	}

	nameIdx := c.names.Add(name)
	idx := c.pool.Add(pool.Definition{Name: nameIdx, Parent: pool.Undefined, Value: pt})
	c.byName[name] = idx
	return idx
}

// Seed registers an already-committed Type Definition under its mangled
// name without allocating a new one, so a subsequent Alloc for the same
// structural type reuses idx instead of adding a duplicate (spec.md §6
// Compilation Resources: "Type definitions populate the TypeCache with
// mangled → pool index").
func (c *TypeCache) Seed(name string, idx pool.Index) {
	c.byName[name] = idx
}

// SignatureFor returns the mangled overload signature for a parameter/return
// shape, used by Populate to key OverloadMap entries (spec.md §3).
func (c *TypeCache) SignatureFor(params []typerepo.Type, ret typerepo.Type) string {
	return mangle.Signature(c.mangler, params, ret)
}

func (c *TypeCache) manglerName(t typerepo.Type, wrapped bool) string {
	if wrapped {
		return "w:" + c.mangler.Mangle(t)
	}
	return c.mangler.Mangle(t)
}

// ClassBuilder captures a pending class/struct declaration.
type ClassBuilder struct {
	Flags      pool.ClassFlags
	TypeParams int
	Fields     []FieldSpec
	Methods    []*FunctionBuilder
	Statics    []*FunctionBuilder
}

// FieldSpec is a pending field awaiting commit.
type FieldSpec struct {
	Name     string
	Type     typerepo.Type
	Native   bool
	Persist  bool
	Default  []byte
}

// CommitAs writes idx's class Definition, then commits every field and
// method/static beneath it in declaration order (spec.md §4.4
// ClassBuilder.commit_as). base is the already-resolved pool index of the
// superclass, or pool.Undefined.
func (b *ClassBuilder) CommitAs(idx pool.Index, nameIdx pool.Index, base pool.Index, repo *typerepo.TypeRepo, p *pool.Pool, cache *TypeCache) {
	fieldIdxs := make([]pool.Index, 0, len(b.Fields))
	for _, f := range b.Fields {
		fb := &FieldBuilder{Name: f.Name, Type: f.Type, Native: f.Native, Persist: f.Persist, Default: f.Default}
		fieldIdxs = append(fieldIdxs, fb.Commit(idx, repo, p, cache))
	}
	methodIdxs := make([]pool.Index, 0, len(b.Methods))
	for _, m := range b.Methods {
		methodIdxs = append(methodIdxs, m.Commit(idx, repo, p, cache))
	}
	staticIdxs := make([]pool.Index, 0, len(b.Statics))
	for _, s := range b.Statics {
		staticIdxs = append(staticIdxs, s.Commit(idx, repo, p, cache))
	}

	p.Put(idx, pool.Definition{
		Name:   nameIdx,
		Parent: pool.Undefined,
		Value: pool.Class{
			Flags:      b.Flags,
			Base:       base,
			Fields:     fieldIdxs,
			Methods:    methodIdxs,
			Statics:    staticIdxs,
			TypeParams: b.TypeParams,
		},
	})
}

// EnumBuilder captures a pending enum or @flags bit field.
type EnumBuilder struct {
	Members []typerepo.EnumMember
	IsFlags bool
}

// CommitAs writes idx's enum Definition and every member Definition beneath
// it (spec.md §4.4 EnumBuilder.commit_as).
func (b *EnumBuilder) CommitAs(idx pool.Index, nameIdx pool.Index, p *pool.Pool, names *pool.StringTable) {
	memberIdxs := make([]pool.Index, 0, len(b.Members))
	for _, m := range b.Members {
		mn := names.Add(m.Name)
		mi := p.Add(pool.Definition{Name: mn, Parent: idx, Value: pool.EnumValue{Value: m.Value}})
		memberIdxs = append(memberIdxs, mi)
	}

	var value pool.AnyDefinition
	if b.IsFlags {
		value = pool.BitField{Members: memberIdxs}
	} else {
		value = pool.Enum{Members: memberIdxs}
	}
	p.Put(idx, pool.Definition{Name: nameIdx, Parent: pool.Undefined, Value: value})
}

// ParamSpec is a pending function parameter.
type ParamSpec struct {
	Name  string
	Type  typerepo.Type
	IsOut bool
}

// FunctionBuilder captures a pending free function or method.
type FunctionBuilder struct {
	Name       string
	Flags      pool.FunctionFlags
	ReturnType *typerepo.Type // nil when the checked return type is Unit
	Params     []ParamSpec
	Code       []byte
	Base       pool.Index // Undefined if no override
	IsWrapper  bool
	// ClonedFirstParamName, when set, overrides Params[0].Name — used when
	// the function overrides a callback base method (spec.md §4.4: "its
	// first parameter's name is cloned from the base method's first
	// parameter").
	ClonedFirstParamName string
}

// Commit reserves the function's index first, so parameters can be parented
// to it immediately, then writes the Function Definition (spec.md §4.4
// FunctionBuilder.commit). Locals are committed separately via
// pool.Pool.CompleteFunction once the body has been lowered.
func (b *FunctionBuilder) Commit(parent pool.Index, repo *typerepo.TypeRepo, p *pool.Pool, cache *TypeCache) pool.Index {
	fnIdx := p.Reserve(pool.KindFunction)

	names := cache.names
	paramIdxs := make([]pool.Index, 0, len(b.Params))
	for i, param := range b.Params {
		name := param.Name
		if i == 0 && b.ClonedFirstParamName != "" {
			name = b.ClonedFirstParamName
		}
		pb := &ParamBuilder{Name: name, Type: param.Type, IsOut: param.IsOut}
		paramIdxs = append(paramIdxs, pb.Commit(fnIdx, repo, p, cache))
	}

	retIdx := pool.Undefined
	if b.ReturnType != nil {
		retIdx = cache.Alloc(*b.ReturnType, repo)
	}

	flags := b.Flags
	flags.IsCallback = flags.IsCallback && !b.IsWrapper

	nameIdx := names.Add(b.Name)
	p.Put(fnIdx, pool.Definition{
		Name:   nameIdx,
		Parent: parent,
		Value: pool.Function{
			Flags:      flags,
			ReturnType: retIdx,
			Params:     paramIdxs,
			Locals:     nil,
			Code:       b.Code,
			Base:       b.Base,
		},
	})
	return fnIdx
}

// FieldBuilder captures a pending class field.
type FieldBuilder struct {
	Name    string
	Type    typerepo.Type
	Native  bool
	Persist bool
	Default []byte
}

// Commit allocates the field's type via cache and writes its Definition.
func (b *FieldBuilder) Commit(parent pool.Index, repo *typerepo.TypeRepo, p *pool.Pool, cache *TypeCache) pool.Index {
	typeIdx := cache.Alloc(b.Type, repo)
	nameIdx := cache.names.Add(b.Name)
	return p.Add(pool.Definition{
		Name:   nameIdx,
		Parent: parent,
		Value: pool.Field{
			Type:         pool.FieldType{Type: typeIdx, Default: b.Default},
			IsNative:     b.Native,
			IsPersistent: b.Persist,
		},
	})
}

// ParamBuilder captures a pending function parameter.
type ParamBuilder struct {
	Name  string
	Type  typerepo.Type
	IsOut bool
}

// Commit allocates the parameter's type via cache and writes its
// Definition, parented to fn.
func (b *ParamBuilder) Commit(fn pool.Index, repo *typerepo.TypeRepo, p *pool.Pool, cache *TypeCache) pool.Index {
	typeIdx := cache.Alloc(b.Type, repo)
	nameIdx := cache.names.Add(b.Name)
	return p.Add(pool.Definition{
		Name:   nameIdx,
		Parent: fn,
		Value:  pool.Parameter{Type: typeIdx, IsOut: b.IsOut},
	})
}

// LocalBuilder captures a pending function-local variable.
type LocalBuilder struct {
	Name string
	Type typerepo.Type
}

// Commit inserts the local with an undefined parent; pool.Pool's
// CompleteFunction rewires it onto the owning function once the body
// finishes lowering (spec.md §4.4: "locals are inserted with an undefined
// parent and rewired later by Pool.complete_function").
func (b *LocalBuilder) Commit(repo *typerepo.TypeRepo, p *pool.Pool, cache *TypeCache) pool.Index {
	typeIdx := cache.Alloc(b.Type, repo)
	nameIdx := cache.names.Add(b.Name)
	return p.Add(pool.Definition{
		Name:   nameIdx,
		Parent: pool.Undefined,
		Value:  pool.Local{Type: typeIdx},
	})
}

// SourceFileBuilder commits one compiled module's attribution record
// (SPEC_FULL.md §3 "source-file pool entries").
type SourceFileBuilder struct {
	Path string
}

// Commit writes the SourceFile Definition, naming it by path.
func (b *SourceFileBuilder) Commit(p *pool.Pool, names *pool.StringTable) pool.Index {
	nameIdx := names.Add(b.Path)
	return p.Add(pool.Definition{Name: nameIdx, Parent: pool.Undefined, Value: pool.SourceFile{}})
}

// anonSuffix builds "<originalName>$wrapper<ordinal>". Nothing calls it: the
// orchestrator's wrapper-linkage pass names each internal chain slot
// "<name>$wrapped<i>" itself.
func anonSuffix(originalName string, ordinal int) string {
	return originalName + "$wrapper" + strconv.Itoa(ordinal)
}
