package typesys

// TypeBuilder assembles a [Type] with a fluent API.
//
// Example:
//
//	calc := typesys.NewInterface("example.com/calc", "Calculator").
//	    Method("Add", typesys.Params(typesys.P("x", "int"), typesys.P("y", "int")), typesys.Returns("int")).
//	    Build()
type TypeBuilder struct {
	t *Type
}

// NewInterface starts an interface type.
func NewInterface(pkg, name string) *TypeBuilder {
	return &TypeBuilder{t: &Type{Package: pkg, Name: name, Kind: KindInterface}}
}

// NewClass starts a class type.
func NewClass(pkg, name string) *TypeBuilder {
	return &TypeBuilder{t: &Type{Package: pkg, Name: name, Kind: KindClass}}
}

// Extends sets the parent class.
func (b *TypeBuilder) Extends(parent *Type) *TypeBuilder {
	b.t.Parent = parent
	return b
}

// Implements adds implemented (class) or embedded (interface) interfaces.
func (b *TypeBuilder) Implements(ifaces ...*Type) *TypeBuilder {
	b.t.Interfaces = append(b.t.Interfaces, ifaces...)
	return b
}

// Sealed marks the class as not extensible.
func (b *TypeBuilder) Sealed() *TypeBuilder {
	b.t.Sealed = true
	return b
}

// Abstract marks the class as abstract.
func (b *TypeBuilder) Abstract() *TypeBuilder {
	b.t.Abstract = true
	return b
}

// Generic sets the generic arity of the type.
func (b *TypeBuilder) Generic(arity int) *TypeBuilder {
	b.t.TypeParams = arity
	return b
}

// NestedIn sets the enclosing type. The package is inherited from it.
func (b *TypeBuilder) NestedIn(outer *Type) *TypeBuilder {
	b.t.Enclosing = outer
	b.t.Package = outer.Package
	return b
}

// Method declares a method. Methods are virtual on classes unless
// [NonVirtual] or [Static] is given.
func (b *TypeBuilder) Method(name string, opts ...MemberOption) *TypeBuilder {
	return b.member(name, MemberMethod, opts)
}

// Getter declares the getter of a property of type typ.
func (b *TypeBuilder) Getter(name, typ string, opts ...MemberOption) *TypeBuilder {
	return b.member(name, MemberGetter, append([]MemberOption{Returns(typ)}, opts...))
}

// Setter declares the setter of a property of type typ.
func (b *TypeBuilder) Setter(name, typ string, opts ...MemberOption) *TypeBuilder {
	return b.member(name, MemberSetter, append([]MemberOption{Params(P("value", typ))}, opts...))
}

// Property declares a getter and a setter. Options apply to both accessors.
func (b *TypeBuilder) Property(name, typ string, opts ...MemberOption) *TypeBuilder {
	return b.Getter(name, typ, opts...).Setter(name, typ, opts...)
}

// Event declares add and remove accessors for an event whose handlers have
// type handlerType.
func (b *TypeBuilder) Event(name, handlerType string, opts ...MemberOption) *TypeBuilder {
	opts = append([]MemberOption{Params(P("handler", handlerType))}, opts...)
	b.member(name, MemberEventAdd, opts)
	return b.member(name, MemberEventRemove, opts)
}

// Constructor declares a constructor producing the base state.
func (b *TypeBuilder) Constructor(fn func(args []any) (any, error), params ...Param) *TypeBuilder {
	b.t.Constructors = append(b.t.Constructors, &Constructor{Params: params, New: fn})
	return b
}

// Build returns the type. The builder must not be used afterwards.
func (b *TypeBuilder) Build() *Type {
	return b.t
}

func (b *TypeBuilder) member(name string, kind MemberKind, opts []MemberOption) *TypeBuilder {
	m := &Member{
		Name:    name,
		Kind:    kind,
		Virtual: !b.t.IsInterface(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if b.t.IsInterface() && m.Impl == nil && !m.Static {
		m.Abstract = true
	}
	b.t.Members = append(b.t.Members, m)
	return b
}

// MemberOption configures a member declared through a [TypeBuilder].
type MemberOption func(*Member)

// Params sets the parameters.
func Params(ps ...Param) MemberOption {
	return func(m *Member) { m.Params = ps }
}

// Returns sets unnamed results of the given types.
func Returns(types ...string) MemberOption {
	return func(m *Member) {
		m.Results = m.Results[:0]
		for _, t := range types {
			m.Results = append(m.Results, R(t))
		}
	}
}

// Body sets the declared body.
func Body(impl Impl) MemberOption {
	return func(m *Member) {
		m.Impl = impl
		m.Abstract = false
	}
}

// Abstract marks the member as having no body.
func Abstract() MemberOption {
	return func(m *Member) {
		m.Abstract = true
		m.Impl = nil
	}
}

// NonVirtual marks a class member as not overridable.
func NonVirtual() MemberOption {
	return func(m *Member) { m.Virtual = false }
}

// Sealed marks an override as final.
func Sealed() MemberOption {
	return func(m *Member) { m.Sealed = true }
}

// Static marks the member as static.
func Static() MemberOption {
	return func(m *Member) {
		m.Static = true
		m.Virtual = false
		m.Abstract = false
	}
}

// NonIntercepted opts the member out of interception.
func NonIntercepted() MemberOption {
	return func(m *Member) { m.NonIntercepted = true }
}

// GenericArity sets the number of method type parameters.
func GenericArity(n int) MemberOption {
	return func(m *Member) { m.GenericArity = n }
}

// Override makes the member override the inherited member of the same name,
// kind and signature. The match is resolved at registration.
func Override() MemberOption {
	return func(m *Member) {
		m.overrideByName = true
		m.Virtual = true
	}
}

// Overrides makes the member override o.
func Overrides(o *Member) MemberOption {
	return func(m *Member) {
		m.Overrides = o
		m.Virtual = true
	}
}

// ImplementsMember declares explicit interface implementations.
func ImplementsMember(ims ...*Member) MemberOption {
	return func(m *Member) { m.Implements = append(m.Implements, ims...) }
}

// Bind sets how the member is called on a target instance.
func Bind(fn Binding) MemberOption {
	return func(m *Member) { m.Bind = fn }
}
