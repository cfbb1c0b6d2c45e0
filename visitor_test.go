package dynproxy

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/broady/dynproxy/typesys"
)

func body(v any) typesys.MemberOption {
	return typesys.Body(func(typesys.Receiver, []any) (any, error) { return v, nil })
}

func collect(t *testing.T, declaring *typesys.Type, ifaces ...*typesys.Type) *MemberSet {
	t.Helper()
	d, err := NewDescriptor(declaring, ifaces...)
	if err != nil {
		t.Fatalf("NewDescriptor: %v", err)
	}
	return CollectMembers(d, DefaultPolicy{})
}

func entry(t *testing.T, set *MemberSet, m *typesys.Member) *VisitedMember {
	t.Helper()
	e, ok := set.Lookup(m.ID())
	if !ok {
		t.Fatalf("no entry for %v", m.ID())
	}
	return e
}

func TestCollector_UniqueIdentities(t *testing.T) {
	a := typesys.NewInterface(fixturePkg, "A").Method("Do").Method("Do", typesys.Params(typesys.P("n", "int"))).Build()
	b := typesys.NewInterface(fixturePkg, "B").Implements(a).Method("Other").Build()
	base := typesys.NewClass(fixturePkg, "Base").Implements(a).
		Method("Do", body(1)).
		Method("Do", typesys.Params(typesys.P("n", "int")), body(2)).
		Build()
	mid := typesys.NewClass(fixturePkg, "Mid").Extends(base).Method("Do", typesys.Override(), body(3)).Build()
	leaf := typesys.NewClass(fixturePkg, "Leaf").Extends(mid).Implements(b).Method("Do", typesys.Override(), body(4)).Build()
	mustRegister(t, a, b, base, mid, leaf)

	set := collect(t, leaf, b)
	seen := make(map[typesys.MemberID]bool)
	for _, e := range set.Members {
		for _, id := range append([]typesys.MemberID{e.ID}, e.Aliases...) {
			if seen[id] {
				t.Errorf("identity %v appears twice", id)
			}
			seen[id] = true
		}
	}
	// Object (3) + Do() + Do(int) + Other
	if set.Len() != 6 {
		t.Errorf("Len() = %d, want 6: %v", set.Len(), ids(set.Members))
	}
}

func TestCollector_MostDerivedWins(t *testing.T) {
	base := typesys.NewClass(fixturePkg, "Base").
		Method("First", body("base-first")).
		Method("Run", body("base")).
		Build()
	mid := typesys.NewClass(fixturePkg, "Mid").Extends(base).Abstract().
		Method("Run", typesys.Override(), typesys.Abstract()).
		Build()
	leaf := typesys.NewClass(fixturePkg, "Leaf").Extends(mid).Abstract().
		Method("Run", typesys.Override(), body("leaf")).
		Build()
	skip := typesys.NewClass(fixturePkg, "Skip").Extends(leaf).Abstract().
		Method("Last", body("last")).
		Build()
	mustRegister(t, base, mid, leaf, skip)

	set := collect(t, skip)
	run := entry(t, set, base.Method("Run"))
	if run.Member != leaf.Method("Run") {
		t.Errorf("Member = %v, want Leaf.Run", run.Member.ID())
	}
	if run.Base != leaf.Method("Run") {
		t.Errorf("Base = %v, want Leaf.Run", run.Base)
	}
	if run.ID != base.Method("Run").ID() {
		t.Errorf("ID = %v, want the slot of Base.Run", run.ID)
	}

	// The override keeps the slot's insertion position.
	var names []string
	for _, e := range set.Members {
		names = append(names, e.Member.DeclaringType().Name+"."+e.Member.Name)
	}
	want := []string{"Object.Equals", "Object.HashCode", "Object.String", "Base.First", "Leaf.Run", "Skip.Last"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("member order mismatch (-want +got):\n%s", diff)
	}
}

func TestCollector_AbstractOverrideDropsBase(t *testing.T) {
	base := typesys.NewClass(fixturePkg, "Base").Method("Run", body("base")).Build()
	mid := typesys.NewClass(fixturePkg, "Mid").Extends(base).Abstract().
		Method("Run", typesys.Override(), typesys.Abstract()).
		Build()
	mustRegister(t, base, mid)

	run := entry(t, collect(t, mid), base.Method("Run"))
	if run.Member != mid.Method("Run") {
		t.Errorf("Member = %v, want Mid.Run", run.Member.ID())
	}
	if run.Base != nil {
		t.Errorf("abstract override kept base %v", run.Base.ID())
	}
}

func TestCollector_ObjectMembersOverridden(t *testing.T) {
	named := typesys.NewClass(fixturePkg, "Named").
		Method("String", typesys.Returns("string"), typesys.Override(), body("named")).
		Build()
	mustRegister(t, named)

	set := collect(t, named)
	e := entry(t, set, typesys.Object.Method("String"))
	if e.Member != named.Method("String") || e.Base != named.Method("String") {
		t.Errorf("String not superseded: member %v base %v", e.Member.ID(), e.Base.ID())
	}
	if set.Len() != 3 {
		t.Errorf("Len() = %d, want 3", set.Len())
	}
}

func TestCollector_DiamondVisitedOnce(t *testing.T) {
	root := typesys.NewInterface(fixturePkg, "Root").Method("Close").Build()
	left := typesys.NewInterface(fixturePkg, "Left").Implements(root).Method("L").Build()
	right := typesys.NewInterface(fixturePkg, "Right").Implements(root).Method("R").Build()
	bottom := typesys.NewInterface(fixturePkg, "Bottom").Implements(left, right).Build()
	mustRegister(t, root, left, right, bottom)

	set := collect(t, bottom, right, root)
	var names []string
	for _, e := range set.Members {
		names = append(names, e.Member.Name)
	}
	want := []string{"Close", "L", "R", "Equals", "HashCode", "String"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("member order mismatch (-want +got):\n%s", diff)
	}
	for _, e := range set.Members[:3] {
		if !e.FromInterface {
			t.Errorf("%s: FromInterface = false", e.Member.Name)
		}
		if e.Base != nil {
			t.Errorf("%s: interface member without body has base", e.Member.Name)
		}
	}
}

func TestCollector_ClassImplementationFoldsInterfaceMember(t *testing.T) {
	greeter := typesys.NewInterface(fixturePkg, "Greeter").Method("Greet", typesys.Returns("string")).Build()
	impl := typesys.NewClass(fixturePkg, "Impl").Implements(greeter).
		Method("Greet", typesys.Returns("string"), body("impl")).
		Build()
	mustRegister(t, greeter, impl)

	set := collect(t, impl)
	e := entry(t, set, greeter.Method("Greet"))
	if e.ID != impl.Method("Greet").ID() {
		t.Errorf("entry keyed by %v, want the class member", e.ID)
	}
	if diff := cmp.Diff([]typesys.MemberID{greeter.Method("Greet").ID()}, e.Aliases); diff != "" {
		t.Errorf("aliases mismatch (-want +got):\n%s", diff)
	}
	if len(set.ByName("Greet")) != 1 {
		t.Errorf("Greet generated %d times", len(set.ByName("Greet")))
	}
}

func TestCollector_SharedSignature(t *testing.T) {
	reader := typesys.NewInterface(fixturePkg, "Reader").Method("Close", typesys.Returns("error")).Build()
	writer := typesys.NewInterface(fixturePkg, "Writer").Method("Close", typesys.Returns("error")).Build()
	mustRegister(t, reader, writer)

	t.Run("independent interfaces", func(t *testing.T) {
		set := collect(t, reader, writer)
		closes := set.ByName("Close")
		if len(closes) != 2 {
			t.Fatalf("expected 2 Close entries, got %d", len(closes))
		}
		if closes[0].ID == closes[1].ID {
			t.Error("entries share an identity")
		}
	})

	t.Run("merged by one class member", func(t *testing.T) {
		file := typesys.NewClass(fixturePkg, "File").Implements(reader, writer).
			Method("Close", typesys.Returns("error"), body(nil)).
			Build()
		mustRegister(t, file)

		set := collect(t, file)
		closes := set.ByName("Close")
		if len(closes) != 1 {
			t.Fatalf("expected 1 Close entry, got %d", len(closes))
		}
		for _, im := range []*typesys.Member{reader.Method("Close"), writer.Method("Close")} {
			if e, ok := set.Lookup(im.ID()); !ok || e != closes[0] {
				t.Errorf("%v does not resolve to the merged entry", im.ID())
			}
		}
	})

	t.Run("extra interface stays separate", func(t *testing.T) {
		file := typesys.NewClass(fixturePkg, "ReadOnlyFile").Implements(reader).
			Method("Close", typesys.Returns("error"), body(nil)).
			Build()
		mustRegister(t, file)

		set := collect(t, file, writer)
		if got := len(set.ByName("Close")); got != 2 {
			t.Errorf("expected 2 Close entries, got %d", got)
		}
	})
}

func TestCollector_ClassWinsOverDefaultBody(t *testing.T) {
	greeter := typesys.NewInterface(fixturePkg, "Greeter").
		Method("Greet", typesys.Returns("string"), body("default")).
		Build()
	impl := typesys.NewClass(fixturePkg, "Impl").Implements(greeter).
		Method("Greet", typesys.Returns("string"), body("class")).
		Build()
	mustRegister(t, greeter, impl)

	e := entry(t, collect(t, impl), greeter.Method("Greet"))
	if e.Base != impl.Method("Greet") {
		t.Errorf("Base = %v, want the class member", e.Base)
	}
}

func TestCollector_DefaultBodyUsedWithoutClassMember(t *testing.T) {
	greeter := typesys.NewInterface(fixturePkg, "Greeter").
		Method("Greet", typesys.Returns("string"), body("default")).
		Build()
	mustRegister(t, greeter)

	e := entry(t, collect(t, greeter), greeter.Method("Greet"))
	if e.Base != greeter.Method("Greet") {
		t.Errorf("Base = %v, want the default body", e.Base)
	}
}

func TestCollector_Exclusions(t *testing.T) {
	base := typesys.NewClass(fixturePkg, "Base").
		Method("Virtual", body(1)).
		Method("Fixed", typesys.NonVirtual(), body(2)).
		Method("Factory", typesys.Static(), body(3)).
		Method("Quiet", typesys.NonIntercepted(), body(4)).
		Method("Locked", body(5)).
		Build()
	derived := typesys.NewClass(fixturePkg, "Derived").Extends(base).
		Method("Locked", typesys.Override(), typesys.Sealed(), body(6)).
		Build()
	mustRegister(t, base, derived)

	set := collect(t, derived)
	reasons := make(map[string]string)
	for _, x := range set.Excluded {
		reasons[x.Member.Name] = x.Reason
	}
	want := map[string]string{
		"Fixed":   ReasonNonVirtual,
		"Factory": ReasonStatic,
		"Quiet":   ReasonNonIntercepted,
		"Locked":  ReasonSealed,
	}
	if diff := cmp.Diff(want, reasons); diff != "" {
		t.Errorf("exclusions mismatch (-want +got):\n%s", diff)
	}
	if _, ok := set.Lookup(base.Method("Virtual").ID()); !ok {
		t.Error("Virtual was excluded")
	}
	for _, m := range []*typesys.Member{base.Method("Fixed"), base.Method("Quiet")} {
		if _, ok := set.Lookup(m.ID()); ok {
			t.Errorf("%s was included", m.Name)
		}
		if _, ok := set.LookupExcluded(m.ID()); !ok {
			t.Errorf("%s missing from exclusions", m.Name)
		}
	}
}

func TestCollector_CustomPolicy(t *testing.T) {
	calc := newCalculator(t)
	d, err := NewDescriptor(calc)
	if err != nil {
		t.Fatal(err)
	}
	onlyInterface := PolicyFunc(func(m, base *typesys.Member) Decision {
		if !m.DeclaringType().IsInterface() {
			return Decision{Reason: "object member"}
		}
		return DefaultPolicy{}.Decide(m, base)
	})
	set := CollectMembers(d, onlyInterface)
	if set.Len() != 1 || set.Members[0].Member.Name != "Add" {
		t.Errorf("Members = %v", ids(set.Members))
	}
	if len(set.Excluded) != 3 {
		t.Errorf("Excluded = %d, want 3", len(set.Excluded))
	}
}
