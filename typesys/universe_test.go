package typesys

import (
	"errors"
	"reflect"
	"testing"
)

func TestUniverse_RegisterErrors(t *testing.T) {
	sealed := NewClass(testPkg, "Final").Sealed().Build()
	iface := NewInterface(testPkg, "Shape").Method("Area", Returns("float64")).Build()
	NewUniverse().MustRegister(sealed, iface)

	tests := []struct {
		name  string
		types func() []*Type
		want  error
	}{
		{
			name:  "nil",
			types: func() []*Type { return []*Type{nil} },
			want:  ErrNilType,
		},
		{
			name: "duplicate path",
			types: func() []*Type {
				return []*Type{NewClass(testPkg, "Same").Build(), NewClass(testPkg, "Same").Build()}
			},
			want: ErrDuplicateType,
		},
		{
			name: "sealed parent",
			types: func() []*Type {
				return []*Type{NewClass(testPkg, "Child").Extends(sealed).Build()}
			},
			want: ErrInvalidType,
		},
		{
			name: "interface as parent",
			types: func() []*Type {
				return []*Type{NewClass(testPkg, "Child").Extends(iface).Build()}
			},
			want: ErrInvalidType,
		},
		{
			name: "unregistered parent",
			types: func() []*Type {
				return []*Type{NewClass(testPkg, "Child").Extends(NewClass(testPkg, "Ghost").Build()).Build()}
			},
			want: ErrInvalidType,
		},
		{
			name: "abstract member on concrete class",
			types: func() []*Type {
				return []*Type{NewClass(testPkg, "Concrete").Method("M", Abstract()).Build()}
			},
			want: ErrInvalidType,
		},
		{
			name: "override of nothing",
			types: func() []*Type {
				return []*Type{NewClass(testPkg, "Orphan").Method("Missing", Override()).Build()}
			},
			want: ErrInvalidType,
		},
		{
			name: "explicit implementation of foreign interface",
			types: func() []*Type {
				return []*Type{NewClass(testPkg, "Liar").Method("Area", ImplementsMember(iface.Method("Area"))).Build()}
			},
			want: ErrInvalidType,
		},
		{
			name: "interface constructor",
			types: func() []*Type {
				return []*Type{NewInterface(testPkg, "Made").Constructor(func([]any) (any, error) { return nil, nil }).Build()}
			},
			want: ErrInvalidType,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := NewUniverse()
			u.MustRegister(sealed, iface)
			before := len(u.Types())
			err := u.Register(tt.types()...)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Register() error = %v, want %v", err, tt.want)
			}
			if got := len(u.Types()); got != before {
				t.Errorf("failed registration changed the universe: %d types, want %d", got, before)
			}
		})
	}
}

func TestUniverse_SealedOverride(t *testing.T) {
	base := NewClass(testPkg, "Base").Method("Run").Build()
	mid := NewClass(testPkg, "Mid").Extends(base).Method("Run", Override(), Sealed()).Build()
	leaf := NewClass(testPkg, "Leaf").Extends(mid).Method("Run", Override()).Build()

	u := NewUniverse()
	u.MustRegister(base, mid)
	if err := u.Register(leaf); !errors.Is(err, ErrInvalidType) {
		t.Fatalf("override of sealed member: error = %v, want %v", err, ErrInvalidType)
	}
}

func TestUniverse_RegisterIdempotent(t *testing.T) {
	typ := NewInterface(testPkg, "Once").Method("M").Build()
	u := NewUniverse()
	u.MustRegister(typ)
	id := typ.Method("M").ID()
	u.MustRegister(typ)

	if got := typ.Method("M").ID(); got != id {
		t.Errorf("re-registration changed id: %v != %v", got, id)
	}
	want := []string{Object.Path(), "example.com/fixtures.Once"}
	if got := u.Paths(); !reflect.DeepEqual(got, want) {
		t.Errorf("Paths() = %v, want %v", got, want)
	}
}

func TestUniverse_BatchOrder(t *testing.T) {
	// Children listed before parents in one call.
	grand := NewClass(testPkg, "Grand").Method("M").Build()
	parent := NewClass(testPkg, "Parent").Extends(grand).Method("M", Override()).Build()
	child := NewClass(testPkg, "Child").Extends(parent).Method("M", Override()).Build()

	u := NewUniverse()
	if err := u.Register(child, parent, grand); err != nil {
		t.Fatal(err)
	}
	if got := child.Method("M").Slot(); got != grand.Method("M") {
		t.Errorf("Slot() = %v, want %v", got.ID(), grand.Method("M").ID())
	}
	if got, ok := u.Lookup("example.com/fixtures.Child"); !ok || got != child {
		t.Errorf("Lookup(Child) = %v, %v", got, ok)
	}
}

func TestType_ImplementationOf(t *testing.T) {
	shape := NewInterface(testPkg, "Shape").
		Method("Area", Returns("float64")).
		Method("Name", Returns("string")).
		Build()
	named := NewInterface(testPkg, "Named").Method("Name", Returns("string")).Build()
	base := NewClass(testPkg, "Polygon").
		Method("Area", Returns("float64")).
		Method("Name", Returns("string")).
		Build()
	square := NewClass(testPkg, "Square").
		Extends(base).
		Implements(shape, named).
		Method("Area", Returns("float64"), Override()).
		Method("NamedName", Returns("string"), ImplementsMember(named.Method("Name"))).
		Build()

	u := NewUniverse()
	if err := u.Register(shape, named, base, square); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		im   *Member
		want *Member
	}{
		{"most derived implicit", shape.Method("Area"), square.Method("Area")},
		{"inherited implicit", shape.Method("Name"), base.Method("Name")},
		{"explicit", named.Method("Name"), square.Method("NamedName")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := square.ImplementationOf(tt.im); got != tt.want {
				t.Errorf("ImplementationOf(%v) = %v, want %v", tt.im.ID(), got, tt.want)
			}
		})
	}
}

func TestType_AllInterfaces(t *testing.T) {
	a := NewInterface(testPkg, "A").Build()
	b := NewInterface(testPkg, "B").Implements(a).Build()
	c := NewInterface(testPkg, "C").Implements(a).Build()
	d := NewInterface(testPkg, "D").Implements(b, c).Build()
	NewUniverse().MustRegister(a, b, c, d)

	got := d.AllInterfaces()
	want := []*Type{a, b, c}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("AllInterfaces() = %v, want %v", got, want)
	}
	if !d.IsAssignableTo(a) || a.IsAssignableTo(d) {
		t.Error("IsAssignableTo does not follow embedding")
	}
}

func TestConstructor_Accepts(t *testing.T) {
	intType := reflect.TypeFor[int]()
	ptrType := reflect.TypeFor[*int]()
	tests := []struct {
		name   string
		params []Param
		args   []any
		want   bool
	}{
		{"no params", nil, nil, true},
		{"too many", nil, []any{1}, false},
		{"exact", []Param{{Type: "int", RType: intType}}, []any{1}, true},
		{"wrong type", []Param{{Type: "int", RType: intType}}, []any{"x"}, false},
		{"untyped param", []Param{{Type: "T"}}, []any{"x"}, true},
		{"nil pointer", []Param{{Type: "*int", RType: ptrType}}, []any{nil}, true},
		{"nil int", []Param{{Type: "int", RType: intType}}, []any{nil}, false},
		{"variadic empty", []Param{{Type: "int", RType: reflect.TypeFor[[]int](), Variadic: true}}, nil, true},
		{"variadic many", []Param{{Type: "int", RType: reflect.TypeFor[[]int](), Variadic: true}}, []any{1, 2, 3}, true},
		{"variadic wrong", []Param{{Type: "int", RType: reflect.TypeFor[[]int](), Variadic: true}}, []any{1, "2"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Constructor{Params: tt.params}
			if got := c.Accepts(tt.args); got != tt.want {
				t.Errorf("Accepts(%v) = %v, want %v", tt.args, got, tt.want)
			}
		})
	}
}

func TestUniverse_Serial(t *testing.T) {
	a := NewInterface(testPkg, "Svc").Method("Ping").Build()
	b := NewInterface(testPkg, "Svc").Method("Pong").Build()
	if a.Serial() != 0 {
		t.Errorf("unregistered type has serial %d", a.Serial())
	}
	NewUniverse().MustRegister(a)
	NewUniverse().MustRegister(b)

	if a.Path() != b.Path() {
		t.Fatalf("paths differ: %s, %s", a.Path(), b.Path())
	}
	if a.Serial() == 0 || b.Serial() == 0 || a.Serial() == b.Serial() {
		t.Errorf("serials %d and %d must be distinct and non-zero", a.Serial(), b.Serial())
	}

	// Adopting a registered type keeps its serial.
	before := a.Serial()
	NewUniverse().MustRegister(a)
	if a.Serial() != before {
		t.Errorf("serial changed from %d to %d", before, a.Serial())
	}
	if Object.Serial() == 0 {
		t.Error("Object has no serial")
	}
}
