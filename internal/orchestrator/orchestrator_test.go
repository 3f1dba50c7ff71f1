package orchestrator

import (
	"testing"

	"github.com/emberscript/emberc/internal/builders"
	"github.com/emberscript/emberc/internal/bundle"
	"github.com/emberscript/emberc/internal/pool"
	"github.com/emberscript/emberc/internal/typerepo"
)

func TestCompileSimpleClassProducesCommittedPool(t *testing.T) {
	src := `
class Counter {
    value: Int32 = 0;

    func Bump() -> Int32 {
        let next = this.value + 1;
        return next;
    }
}
`
	c := New()
	out := c.Compile([]SourceFile{{Path: "counter.script", Src: []byte(src)}})

	for _, r := range out.Reporter.All() {
		t.Fatalf("unexpected diagnostic: %s: %s", r.Code, r.Message)
	}

	var found bool
	for _, root := range out.Pool.Roots() {
		if root.Kind() == pool.KindClass {
			def := out.Pool.Definition(root)
			name := out.Tables.Names.Get(def.Name)
			if name == "Counter" {
				found = true
				cls := def.Value.(pool.Class)
				if len(cls.Fields) != 1 {
					t.Fatalf("expected 1 committed field, got %d", len(cls.Fields))
				}
				if len(cls.Methods) != 1 {
					t.Fatalf("expected 1 committed method, got %d", len(cls.Methods))
				}
				fn := out.Pool.Definition(cls.Methods[0]).Value.(pool.Function)
				if len(fn.Code) == 0 {
					t.Fatalf("expected the method's body to lower to non-empty bytecode")
				}
				if len(fn.Locals) != 1 {
					t.Fatalf("expected 1 committed local for `next`, got %d", len(fn.Locals))
				}
			}
		}
	}
	if !found {
		t.Fatalf("expected a committed Counter class in the pool roots")
	}
}

func TestCompileReportsUnresolvedImport(t *testing.T) {
	src := `
import some.missing.Thing

func Foo() {
}
`
	c := New()
	out := c.Compile([]SourceFile{{Path: "foo.script", Src: []byte(src)}})

	found := false
	for _, r := range out.Reporter.All() {
		if string(r.Code) == "POP001" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected an unresolved-import diagnostic, got %v", out.Reporter.All())
	}
}

func TestCompileWrapsMethodChain(t *testing.T) {
	src := `
class Greeter {
    func Greet() -> String {
        return "hi";
    }
}

@wrapMethod(Greeter)
func Greet() -> String {
    return wrappedMethod() + "!";
}
`
	c := New()
	out := c.Compile([]SourceFile{{Path: "greeter.script", Src: []byte(src)}})

	for _, r := range out.Reporter.All() {
		t.Fatalf("unexpected diagnostic: %s: %s", r.Code, r.Message)
	}

	var cls *pool.Class
	for _, root := range out.Pool.Roots() {
		if root.Kind() == pool.KindClass {
			def := out.Pool.Definition(root)
			if out.Tables.Names.Get(def.Name) == "Greeter" {
				c := def.Value.(pool.Class)
				cls = &c
			}
		}
	}
	if cls == nil {
		t.Fatalf("expected a committed Greeter class")
	}
	if len(cls.Methods) != 2 {
		t.Fatalf("expected 2 committed method Definitions (original + 1 wrapper), got %d", len(cls.Methods))
	}

	// The class's own "Greet" pool slot must still be named "Greet" and now
	// carry the wrapper's body (the one calling wrappedMethod).
	var publicMethodIdx pool.Index
	for _, m := range cls.Methods {
		if out.Tables.Names.Get(out.Pool.Definition(m).Name) == "Greet" {
			publicMethodIdx = m
		}
	}
	if publicMethodIdx.IsUndefined() {
		t.Fatalf("expected one committed method still named Greet")
	}
	publicFn := out.Pool.Definition(publicMethodIdx).Value.(pool.Function)
	if len(publicFn.Code) == 0 {
		t.Fatalf("expected the public Greet slot to carry lowered bytecode")
	}

	foundInnerLink := false
	for _, m := range cls.Methods {
		if m.Eq(publicMethodIdx) {
			continue
		}
		fn := out.Pool.Definition(m).Value.(pool.Function)
		if len(fn.Code) > 0 {
			foundInnerLink = true
		}
	}
	if !foundInnerLink {
		t.Fatalf("expected the original body to have been lowered into the inner wrapper slot")
	}
}

func TestCompileWrapsMethodTwice(t *testing.T) {
	src := `
class Greeter {
    func Greet() -> String {
        return "hi";
    }
}

@wrapMethod(Greeter)
func Greet() -> String {
    return wrappedMethod() + "!";
}

@wrapMethod(Greeter)
func Greet() -> String {
    return "[" + wrappedMethod() + "]";
}
`
	c := New()
	out := c.Compile([]SourceFile{{Path: "greeter2.script", Src: []byte(src)}})

	for _, r := range out.Reporter.All() {
		t.Fatalf("unexpected diagnostic: %s: %s", r.Code, r.Message)
	}

	var cls *pool.Class
	for _, root := range out.Pool.Roots() {
		if root.Kind() == pool.KindClass {
			def := out.Pool.Definition(root)
			if out.Tables.Names.Get(def.Name) == "Greeter" {
				c := def.Value.(pool.Class)
				cls = &c
			}
		}
	}
	if cls == nil {
		t.Fatalf("expected a committed Greeter class")
	}
	if len(cls.Methods) != 3 {
		t.Fatalf("expected 3 committed method Definitions (original + 2 wrappers), got %d", len(cls.Methods))
	}

	var publicMethodIdx pool.Index
	namedGreetCount := 0
	for _, m := range cls.Methods {
		if out.Tables.Names.Get(out.Pool.Definition(m).Name) == "Greet" {
			publicMethodIdx = m
			namedGreetCount++
		}
	}
	if namedGreetCount != 1 {
		t.Fatalf("expected exactly 1 slot still named Greet, got %d", namedGreetCount)
	}
	publicFn := out.Pool.Definition(publicMethodIdx).Value.(pool.Function)
	if len(publicFn.Code) == 0 {
		t.Fatalf("expected the public Greet slot to carry lowered bytecode")
	}

	nonPublicWithCode := 0
	for _, m := range cls.Methods {
		if m.Eq(publicMethodIdx) {
			continue
		}
		fn := out.Pool.Definition(m).Value.(pool.Function)
		if len(fn.Code) > 0 {
			nonPublicWithCode++
		}
	}
	if nonPublicWithCode != 2 {
		t.Fatalf("expected both inner chain links to carry lowered bytecode, got %d", nonPublicWithCode)
	}
}

func TestCompileAddMethodAppendsNewMethod(t *testing.T) {
	src := `
class Box {
    value: Int32 = 0;
}

@addMethod(Box)
func Describe() -> String {
    return "a box";
}
`
	c := New()
	out := c.Compile([]SourceFile{{Path: "box.script", Src: []byte(src)}})

	for _, r := range out.Reporter.All() {
		t.Fatalf("unexpected diagnostic: %s: %s", r.Code, r.Message)
	}

	for _, root := range out.Pool.Roots() {
		if root.Kind() == pool.KindClass {
			def := out.Pool.Definition(root)
			if out.Tables.Names.Get(def.Name) == "Box" {
				cls := def.Value.(pool.Class)
				if len(cls.Methods) != 1 {
					t.Fatalf("expected 1 added method, got %d", len(cls.Methods))
				}
				if out.Tables.Names.Get(out.Pool.Definition(cls.Methods[0]).Name) != "Describe" {
					t.Fatalf("expected the added method to be named Describe")
				}
			}
		}
	}
}

func TestCompileReplaceMethodSubstitutesBody(t *testing.T) {
	src := `
class Switch {
    func IsOn() -> Bool {
        return false;
    }
}

@replaceMethod(Switch)
func IsOn() -> Bool {
    return true;
}
`
	c := New()
	out := c.Compile([]SourceFile{{Path: "switch.script", Src: []byte(src)}})

	for _, r := range out.Reporter.All() {
		t.Fatalf("unexpected diagnostic: %s: %s", r.Code, r.Message)
	}

	for _, root := range out.Pool.Roots() {
		if root.Kind() == pool.KindClass {
			def := out.Pool.Definition(root)
			if out.Tables.Names.Get(def.Name) == "Switch" {
				cls := def.Value.(pool.Class)
				if len(cls.Methods) != 1 {
					t.Fatalf("expected exactly 1 method (replace must not add a slot), got %d", len(cls.Methods))
				}
			}
		}
	}
}

func TestCompileInheritanceOverrideGenericPromotion(t *testing.T) {
	src := `
class A<T> {
    func get() -> T;
}

class B : A<Int32> {
    func get() -> Int32 {
        return 42;
    }
}
`
	c := New()
	out := c.Compile([]SourceFile{{Path: "generic.script", Src: []byte(src)}})

	for _, r := range out.Reporter.All() {
		t.Fatalf("unexpected diagnostic: %s: %s", r.Code, r.Message)
	}

	dt, ok := c.repo.Lookup("B")
	if !ok {
		t.Fatalf("expected class B in the type repo")
	}
	class := dt.(typerepo.Class)
	entries := class.Methods.ByName("get")
	if len(entries) != 1 {
		t.Fatalf("expected 1 get() overload on B, got %d", len(entries))
	}
	fn := entries[0].Function
	if fn.Base == nil {
		t.Fatalf("expected B.get to carry a BaseLink to A.get")
	}
	if fn.Base.ClassID != "A" || fn.Base.Name != "get" {
		t.Fatalf("expected BaseLink{ClassID: A, Name: get}, got %+v", fn.Base)
	}
	if !fn.Base.RetPoly {
		t.Fatalf("expected B.get's BaseLink.RetPoly to be true (A.get returns T, B.get returns Int32)")
	}
	if !fn.IsRetPoly {
		t.Fatalf("expected B.get's FunctionEntry.IsRetPoly to be true")
	}

	var methodIdx pool.Index
	for _, root := range out.Pool.Roots() {
		if root.Kind() != pool.KindClass {
			continue
		}
		def := out.Pool.Definition(root)
		if out.Tables.Names.Get(def.Name) == "B" {
			cls := def.Value.(pool.Class)
			if len(cls.Methods) != 1 {
				t.Fatalf("expected 1 committed method on B, got %d", len(cls.Methods))
			}
			methodIdx = cls.Methods[0]
		}
	}
	if methodIdx.IsUndefined() {
		t.Fatalf("expected a committed B.get method")
	}
	fnDef := out.Pool.Definition(methodIdx).Value.(pool.Function)
	if len(fnDef.Code) == 0 {
		t.Fatalf("expected B.get's body to lower to non-empty bytecode")
	}
}

func TestCompileInheritanceOverrideGenericPromotionThreeLevels(t *testing.T) {
	// C's root override chain runs C -> B -> A; B must be resolved (and
	// carry its own BaseLink back to A) before C is processed, or C's
	// root-signature walk would stop at B's already-concrete Int32 return
	// instead of reaching A's Var return.
	src := `
class A<T> {
    func get() -> T;
}

class B : A<Int32> {
    func get() -> Int32 {
        return 1;
    }
}

class C : B {
    func get() -> Int32 {
        return 2;
    }
}
`
	c := New()
	out := c.Compile([]SourceFile{{Path: "generic3.script", Src: []byte(src)}})

	for _, r := range out.Reporter.All() {
		t.Fatalf("unexpected diagnostic: %s: %s", r.Code, r.Message)
	}

	dt, ok := c.repo.Lookup("C")
	if !ok {
		t.Fatalf("expected class C in the type repo")
	}
	class := dt.(typerepo.Class)
	entries := class.Methods.ByName("get")
	if len(entries) != 1 {
		t.Fatalf("expected 1 get() overload on C, got %d", len(entries))
	}
	fn := entries[0].Function
	if fn.Base == nil {
		t.Fatalf("expected C.get to carry a BaseLink to B.get")
	}
	if !fn.Base.RetPoly {
		t.Fatalf("expected C.get's BaseLink.RetPoly to be true (root A.get returns T, C.get returns Int32)")
	}
}

func TestCompileReportsFinalClassExtension(t *testing.T) {
	src := `
final class Base {
}

class Derived : Base {
}
`
	c := New()
	out := c.Compile([]SourceFile{{Path: "inherit.script", Src: []byte(src)}})

	found := false
	for _, r := range out.Reporter.All() {
		if string(r.Code) == "INH003" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected an extends-final-class diagnostic, got %v", out.Reporter.All())
	}
}

func TestCompileAddFieldEmitsNewField(t *testing.T) {
	src := `
class Vehicle {
    speed: Int32 = 0;
}

@addField(Vehicle)
let fuel: Int32 = 100;
`
	c := New()
	out := c.Compile([]SourceFile{{Path: "vehicle.script", Src: []byte(src)}})

	for _, r := range out.Reporter.All() {
		t.Fatalf("unexpected diagnostic: %s: %s", r.Code, r.Message)
	}

	var found bool
	for _, root := range out.Pool.Roots() {
		if root.Kind() != pool.KindClass {
			continue
		}
		def := out.Pool.Definition(root)
		if out.Tables.Names.Get(def.Name) != "Vehicle" {
			continue
		}
		cls := def.Value.(pool.Class)
		if len(cls.Fields) != 2 {
			t.Fatalf("expected 2 fields (declared + @addField), got %d", len(cls.Fields))
		}
		lastField := out.Pool.Definition(cls.Fields[len(cls.Fields)-1])
		if out.Tables.Names.Get(lastField.Name) != "fuel" {
			t.Fatalf("expected the @addField field to be named fuel, got %q", out.Tables.Names.Get(lastField.Name))
		}
		fieldVal := lastField.Value.(pool.Field)
		if len(fieldVal.Type.Default) == 0 {
			t.Fatalf("expected the @addField default initializer to lower to non-empty bytecode")
		}
		found = true
	}
	if !found {
		t.Fatalf("expected a committed Vehicle class in the pool roots")
	}
}

func TestCompileFieldDefaultLowersToBytecode(t *testing.T) {
	src := `
class Counter {
    value: Int32 = 1 + 2;
}
`
	c := New()
	out := c.Compile([]SourceFile{{Path: "counter.script", Src: []byte(src)}})

	for _, r := range out.Reporter.All() {
		t.Fatalf("unexpected diagnostic: %s: %s", r.Code, r.Message)
	}

	for _, root := range out.Pool.Roots() {
		if root.Kind() != pool.KindClass {
			continue
		}
		def := out.Pool.Definition(root)
		if out.Tables.Names.Get(def.Name) != "Counter" {
			continue
		}
		cls := def.Value.(pool.Class)
		fieldVal := out.Pool.Definition(cls.Fields[0]).Value.(pool.Field)
		if len(fieldVal.Type.Default) == 0 {
			t.Fatalf("expected the field's default initializer to lower to non-empty bytecode")
		}
	}
}

func TestCompileCommitsOneSourceFilePerModule(t *testing.T) {
	c := New()
	out := c.Compile([]SourceFile{
		{Path: "a.script", Src: []byte("class A {}\n")},
		{Path: "b.script", Src: []byte("class B {}\n")},
	})

	for _, r := range out.Reporter.All() {
		t.Fatalf("unexpected diagnostic: %s: %s", r.Code, r.Message)
	}

	paths := map[string]bool{}
	for _, root := range out.Pool.Roots() {
		if root.Kind() == pool.KindSourceFile {
			paths[out.Tables.Names.Get(out.Pool.Definition(root).Name)] = true
		}
	}
	if !paths["a.script"] || !paths["b.script"] {
		t.Fatalf("expected a committed SourceFile per module, got paths %v", paths)
	}
}

func TestCompileFlagsUnimplementedAbstractMethod(t *testing.T) {
	src := `
abstract class Shape {
    func Area() -> Int32;
}

class Square : Shape {
}
`
	c := New()
	out := c.Compile([]SourceFile{{Path: "shape.script", Src: []byte(src)}})

	found := false
	for _, r := range out.Reporter.All() {
		if string(r.Code) == "INH002" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected an unimplemented-method diagnostic, got %v", out.Reporter.All())
	}
}

func TestCompileOverriddenAbstractMethodIsNotFlagged(t *testing.T) {
	src := `
abstract class Shape {
    func Area() -> Int32;
}

class Square : Shape {
    func Area() -> Int32 {
        return 4;
    }
}
`
	c := New()
	out := c.Compile([]SourceFile{{Path: "shape.script", Src: []byte(src)}})

	for _, r := range out.Reporter.All() {
		if string(r.Code) == "INH002" {
			t.Fatalf("did not expect an unimplemented-method diagnostic: %s", r.Message)
		}
	}
}

// buildPredefBundle hand-builds a tiny predef pool containing one abstract
// class (Animal) with one body-less method (Speak), the way a game's own
// base scripts.pool would carry an abstract base class a mod extends.
func buildPredefBundle(t *testing.T) []byte {
	t.Helper()
	tables := pool.NewTables()
	p := pool.New(tables.Names)
	repo := typerepo.New()
	cache := builders.NewTypeCache(p, tables.Names)

	idx := p.Reserve(pool.KindClass)
	nameIdx := tables.Names.Add("Animal")

	retType := typerepo.Type(typerepo.TPrim{P: typerepo.PrimInt32})
	cb := &builders.ClassBuilder{
		Flags: pool.ClassFlags{IsAbstract: true},
		Methods: []*builders.FunctionBuilder{
			{Name: "Speak", ReturnType: &retType, Flags: pool.FunctionFlags{}},
		},
	}
	cb.CommitAs(idx, nameIdx, pool.Undefined, repo, p, cache)

	data, err := bundle.Encode(p, tables)
	if err != nil {
		t.Fatalf("encode predef bundle: %v", err)
	}
	return data
}

func TestNewWithPredefSuppressesCheckForPredefAncestor(t *testing.T) {
	predefData := buildPredefBundle(t)

	c, err := NewWithPredef(predefData)
	if err != nil {
		t.Fatalf("NewWithPredef: %v", err)
	}

	dt, ok := c.repo.Lookup("Animal")
	if !ok {
		t.Fatalf("expected Animal to be loaded into the type repo from the predef bundle")
	}
	class, ok := dt.(typerepo.Class)
	if !ok || !class.FromPredef {
		t.Fatalf("expected Animal to be a Class tagged FromPredef")
	}

	src := `
class Dog : Animal {
}
`
	out := c.Compile([]SourceFile{{Path: "dog.script", Src: []byte(src)}})
	for _, r := range out.Reporter.All() {
		if string(r.Code) == "INH002" {
			t.Fatalf("did not expect an unimplemented-method diagnostic against a predef ancestor: %s", r.Message)
		}
	}

	var found bool
	for _, root := range out.Pool.Roots() {
		if root.Kind() == pool.KindClass && out.Tables.Names.Get(out.Pool.Definition(root).Name) == "Dog" {
			cls := out.Pool.Definition(root).Value.(pool.Class)
			if cls.Base.IsUndefined() {
				t.Fatalf("expected Dog's base to resolve to the predef Animal class")
			}
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a committed Dog class in the pool roots")
	}
}
