// Package mangle implements the Type Cache & Mangling component from
// spec.md §4.3: canonical string serialization of language-level Type
// values, used to key pool type dedup and to build overload signatures.
// Grounded in the teacher's internal/types/normalize.go NormalizeTypeName,
// which canonicalizes a recursive type value into one dedup key; here
// generalized to this spec's ref/array/script_ref wrapping rules.
package mangle

import (
	"strconv"
	"strings"
	"sync"

	"github.com/emberscript/emberc/internal/typerepo"
)

// Cache memoizes id(Type) -> mangled name, so repeated mangling of the same
// structural type returns the identical string without re-walking it
// (spec.md §8 property 3: mangling must be idempotent and referentially
// stable across calls for structurally-equal inputs).
type Cache struct {
	mu      sync.Mutex
	entries map[string]string
}

// New creates an empty mangling cache.
func New() *Cache {
	return &Cache{entries: make(map[string]string)}
}

// Mangle returns the canonical dedup-key string for t, consulting and
// populating the cache.
func (c *Cache) Mangle(t typerepo.Type) string {
	key := structuralKey(t)
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.entries[key]; ok {
		return s
	}
	s := mangleTop(t)
	c.entries[key] = s
	return s
}

// structuralKey is a cheap, order-sensitive serialization used only as a
// cache key (not the mangled name itself) — separated so the cache can be
// populated without recomputing wrapping rules on a hit.
func structuralKey(t typerepo.Type) string {
	var b strings.Builder
	writeStructuralKey(&b, t)
	return b.String()
}

func writeStructuralKey(b *strings.Builder, t typerepo.Type) {
	switch x := t.(type) {
	case typerepo.TPrim:
		b.WriteString("p:")
		b.WriteString(x.P.String())
	case typerepo.TData:
		b.WriteString("d:")
		b.WriteString(x.ID)
		b.WriteByte('<')
		for i, a := range x.Args {
			if i > 0 {
				b.WriteByte(',')
			}
			writeStructuralKey(b, a)
		}
		b.WriteByte('>')
	case typerepo.TVar:
		b.WriteString("v:")
		b.WriteString(x.Name)
	case typerepo.TBottom:
		b.WriteString("bot")
	case typerepo.TTop:
		b.WriteString("top")
	}
}

// mangleTop mangles t at top level, starting in unwrapped mode.
func mangleTop(t typerepo.Type) string {
	return mangle(t, false)
}

// mangle serializes t into its dedup-key string. Wrapper types render as
// name<element> (e.g. array<ref<Foo>>) and generic class applications as
// id:arg,arg, so array<ref<Foo>> and ref<array<Foo>> get distinct keys from
// their nesting alone. wrapped records whether this call sits inside an
// enclosing wrapper or argument list; the output does not depend on it: a
// class id is written bare in both modes (no ref: prefix), and Var/Top/
// Bottom always write IScriptable.
func mangle(t typerepo.Type, wrapped bool) string {
	switch x := t.(type) {
	case typerepo.TPrim:
		return x.P.String()
	case typerepo.TVar:
		// Var/Top/Bottom all erase to the root scriptable type for mangling
		// purposes (SPEC_FULL.md §3): a polymorphic position carries no
		// structural identity of its own once promoted.
		return typerepo.IDScriptable
	case typerepo.TTop:
		return typerepo.IDScriptable
	case typerepo.TBottom:
		return typerepo.IDScriptable
	case typerepo.TData:
		return mangleData(x, wrapped)
	default:
		return "?"
	}
}

func mangleData(x typerepo.TData, wrapped bool) string {
	switch x.ID {
	case typerepo.IDRef:
		return wrapName("ref", x.Args, wrapped)
	case typerepo.IDWeakRef:
		return wrapName("wref", x.Args, wrapped)
	case typerepo.IDArray:
		return wrapName("array", x.Args, wrapped)
	case typerepo.IDScriptRef:
		return wrapName("script_ref", x.Args, wrapped)
	default:
		// A bare struct/class/enum id. Generic arguments, if any, are
		// appended positionally — the pool itself only stores the bare id
		// plus any `Type...` argument list (spec.md §3 PoolType), so the
		// mangled name for a fully-applied generic simply lists its element
		// mangles rather than nesting wrapper syntax.
		if len(x.Args) == 0 {
			return x.ID
		}
		parts := make([]string, len(x.Args))
		for i, a := range x.Args {
			parts[i] = mangle(a, true)
		}
		return x.ID + ":" + strings.Join(parts, ",")
	}
}

// wrapName renders a one-argument wrapper type. Its element always mangles
// in "wrapped" mode, per the spec's nested-recursion rule.
func wrapName(name string, args []typerepo.Type, _ bool) string {
	if len(args) != 1 {
		return name
	}
	return name + "<" + mangle(args[0], true) + ">"
}

// Signature mangles a parameter list and return type into the overload-map
// signature key spec.md §3 requires to distinguish overloads by "distinctly
// signed" parameter lists.
func Signature(c *Cache, params []typerepo.Type, ret typerepo.Type) string {
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = c.Mangle(p)
	}
	return "(" + strings.Join(parts, ",") + ")->" + c.Mangle(ret)
}

// EnumValueName renders a signed 64-bit enum member value the way the pool
// string table stores it, used when the Type Cache needs to name an
// EnumValue definition rather than a Type (SPEC_FULL.md §3's enum
// bit-width-flag supplement reuses this for @flags members).
func EnumValueName(v int64) string {
	return strconv.FormatInt(v, 10)
}
