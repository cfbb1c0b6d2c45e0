// Package typesys is the explicit type-metadata model that proxies are built from.
//
// Types and their members are described as plain data: interfaces and classes,
// parent and embedded-interface edges, override and implements edges between
// members, and optional bodies that act as the base behaviour of a member.
// A [Universe] registers types and assigns every member a stable, structural
// [MemberID] exactly once.
package typesys

import (
	"context"
	"reflect"
	"strconv"
	"strings"
)

// Kind identifies the category of a type.
type Kind int

const (
	KindInterface Kind = iota // Contract only; members may carry default bodies
	KindClass                 // Concrete or abstract class that can be extended
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindInterface:
		return "Interface"
	case KindClass:
		return "Class"
	default:
		return "Unknown"
	}
}

// MemberKind identifies what a member is.
type MemberKind int

const (
	MemberMethod MemberKind = iota
	MemberGetter
	MemberSetter
	MemberEventAdd
	MemberEventRemove
	MemberConstructor
)

// String returns the string representation of the member kind.
func (k MemberKind) String() string {
	switch k {
	case MemberMethod:
		return "Method"
	case MemberGetter:
		return "Getter"
	case MemberSetter:
		return "Setter"
	case MemberEventAdd:
		return "EventAdd"
	case MemberEventRemove:
		return "EventRemove"
	case MemberConstructor:
		return "Constructor"
	default:
		return "Unknown"
	}
}

// Param describes a parameter or result.
type Param struct {
	// Name is the parameter name. May be empty for results.
	Name string

	// Type is the Go spelling of the type, e.g. "int", "[]string", "time.Duration".
	// It is part of the member signature and therefore of the member identity.
	Type string

	// RType is the runtime type when it is known. It enables argument
	// assignability checks during constructor matching.
	RType reflect.Type

	// Variadic marks the last parameter of a variadic member.
	Variadic bool
}

// P is shorthand for a named parameter.
func P(name, typ string) Param {
	return Param{Name: name, Type: typ}
}

// R is shorthand for an unnamed result.
func R(typ string) Param {
	return Param{Type: typ}
}

// Receiver is what a member body runs against.
type Receiver interface {
	// Self returns the proxy instance, so bodies can make virtual calls.
	Self() any

	// State returns the value produced by the constructor that created the
	// proxy. It is nil for interface proxies.
	State() any

	// Context returns the context of the call the body runs under.
	Context() context.Context
}

// Impl is the body of a member. It is the base behaviour a proxy falls back to
// when no interceptor supplies a result and no target is configured.
type Impl func(recv Receiver, args []any) (any, error)

// Binding calls the member on a real target instance.
type Binding func(target any, args []any) (any, error)

// Member is a method, property accessor or event accessor of a type.
type Member struct {
	Name    string
	Kind    MemberKind
	Params  []Param
	Results []Param

	Static         bool
	Virtual        bool
	Sealed         bool
	Abstract       bool
	NonIntercepted bool

	// GenericArity is the number of method type parameters.
	GenericArity int

	// Overrides is the member in an ancestor this member overrides.
	Overrides *Member

	// Implements lists interface members this member explicitly implements.
	// Implicit implementations (same name, kind and signature) are resolved
	// at registration and need not be listed.
	Implements []*Member

	// Impl is the declared body, nil for abstract members and interface
	// members without a default body.
	Impl Impl

	// Bind calls this member on a target. Nil means the dispatcher resolves
	// the target method by name.
	Bind Binding

	declaring *Type
	id        MemberID

	// overrideByName asks registration to resolve Overrides from the parent chain.
	overrideByName bool
}

// DeclaringType returns the type that declares m, or nil before registration.
func (m *Member) DeclaringType() *Type {
	return m.declaring
}

// ID returns the identity assigned at registration, even for members that
// cannot be proxied. Use [IdentityOf] to get the proxyable identity.
func (m *Member) ID() MemberID {
	return m.id
}

// HasBody reports whether m has a declared body.
func (m *Member) HasBody() bool {
	return m.Impl != nil && !m.Abstract
}

// Slot returns the root of m's override chain: the declaration that
// introduced the virtual slot m occupies.
func (m *Member) Slot() *Member {
	for m.Overrides != nil {
		m = m.Overrides
	}
	return m
}

// MethodName returns the Go method name used to reach m on a target.
func (m *Member) MethodName() string {
	switch m.Kind {
	case MemberSetter:
		return "Set" + m.Name
	case MemberEventAdd:
		return "Add" + m.Name
	case MemberEventRemove:
		return "Remove" + m.Name
	case MemberConstructor:
		return "New"
	default:
		return m.Name
	}
}

// Signature returns the parameter list that distinguishes overloads,
// e.g. "(int,int)" or "`1(T)" for a generic method.
func (m *Member) Signature() string {
	var b strings.Builder
	if m.GenericArity > 0 {
		b.WriteByte('`')
		b.WriteString(strconv.Itoa(m.GenericArity))
	}
	b.WriteByte('(')
	for i, p := range m.Params {
		if i > 0 {
			b.WriteByte(',')
		}
		if p.Variadic {
			b.WriteString("...")
		}
		b.WriteString(p.Type)
	}
	b.WriteByte(')')
	return b.String()
}

// sameShape reports whether a and b could occupy the same slot.
func sameShape(a, b *Member) bool {
	return a.Name == b.Name && a.Kind == b.Kind && a.Signature() == b.Signature()
}

// Constructor creates the base state of a class proxy.
type Constructor struct {
	Params []Param
	New    func(args []any) (any, error)
}

// Accepts reports whether args can be passed to c.
func (c *Constructor) Accepts(args []any) bool {
	n := len(c.Params)
	variadic := n > 0 && c.Params[n-1].Variadic
	if variadic {
		if len(args) < n-1 {
			return false
		}
	} else if len(args) != n {
		return false
	}
	for i, arg := range args {
		p := c.Params[min(i, n-1)]
		if !assignable(arg, p) {
			return false
		}
	}
	return true
}

func assignable(arg any, p Param) bool {
	t := p.RType
	if t == nil {
		return true
	}
	if p.Variadic && t.Kind() == reflect.Slice {
		t = t.Elem()
	}
	if arg == nil {
		switch t.Kind() {
		case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
			return true
		}
		return false
	}
	return reflect.TypeOf(arg).AssignableTo(t)
}

// Type is an interface or class.
type Type struct {
	Package  string
	Name     string
	Kind     Kind
	Sealed   bool
	Abstract bool

	// TypeParams is the generic arity of the type.
	TypeParams int

	// Enclosing is the type this one is nested in.
	Enclosing *Type

	// Parent is the base class. Nil means [Object]. Always nil for interfaces.
	Parent *Type

	// Interfaces are the directly implemented (class) or embedded (interface)
	// interfaces.
	Interfaces []*Type

	Members      []*Member
	Constructors []*Constructor

	// RType is the Go type backing this type, when a provider built it from one.
	RType reflect.Type

	registered bool
	serial     uint64
	impls      map[MemberID]*Member
}

// IsInterface reports whether t is an interface.
func (t *Type) IsInterface() bool {
	return t.Kind == KindInterface
}

// Registered reports whether t has been registered and its members carry ids.
func (t *Type) Registered() bool {
	return t.registered
}

// Serial returns the registration number of t, unique in the process. Two
// types with the same path registered in different universes have different
// serials. It is zero for unregistered types.
func (t *Type) Serial() uint64 {
	return t.serial
}

// Path returns the qualified name of t with generic arity markers,
// e.g. "example.com/pkg.Outer`1.Inner".
func (t *Type) Path() string {
	var b strings.Builder
	t.writePath(&b)
	return b.String()
}

func (t *Type) writePath(b *strings.Builder) {
	if t.Enclosing != nil {
		t.Enclosing.writePath(b)
	} else if t.Package != "" {
		b.WriteString(t.Package)
	}
	if b.Len() > 0 {
		b.WriteByte('.')
	}
	b.WriteString(t.Name)
	if t.TypeParams > 0 {
		b.WriteByte('`')
		b.WriteString(strconv.Itoa(t.TypeParams))
	}
}

// String returns the path of t.
func (t *Type) String() string {
	return t.Path()
}

// Lookup returns the members declared on t with the given name and kind.
func (t *Type) Lookup(name string, kind MemberKind) []*Member {
	var out []*Member
	for _, m := range t.Members {
		if m.Name == name && m.Kind == kind {
			out = append(out, m)
		}
	}
	return out
}

// Method returns the first declared method named name, or nil.
func (t *Type) Method(name string) *Member {
	return first(t.Lookup(name, MemberMethod))
}

// Getter returns the first declared getter of property name, or nil.
func (t *Type) Getter(name string) *Member {
	return first(t.Lookup(name, MemberGetter))
}

// Setter returns the first declared setter of property name, or nil.
func (t *Type) Setter(name string) *Member {
	return first(t.Lookup(name, MemberSetter))
}

func first(ms []*Member) *Member {
	if len(ms) == 0 {
		return nil
	}
	return ms[0]
}

// Chain returns the class hierarchy of t from [Object] to t. For interfaces it
// returns nil.
func (t *Type) Chain() []*Type {
	if t.IsInterface() {
		return nil
	}
	var rev []*Type
	for c := t; c != nil; c = c.Parent {
		rev = append(rev, c)
	}
	if rev[len(rev)-1] != Object {
		rev = append(rev, Object)
	}
	out := make([]*Type, len(rev))
	for i, c := range rev {
		out[len(rev)-1-i] = c
	}
	return out
}

// AllInterfaces returns every interface t implements or embeds, transitively,
// de-duplicated, bases before the interfaces that embed them.
func (t *Type) AllInterfaces() []*Type {
	seen := make(map[*Type]bool)
	var out []*Type
	var walk func(i *Type)
	walk = func(i *Type) {
		if seen[i] {
			return
		}
		seen[i] = true
		for _, e := range i.Interfaces {
			walk(e)
		}
		out = append(out, i)
	}
	if t.IsInterface() {
		seen[t] = true
		for _, e := range t.Interfaces {
			walk(e)
		}
		return out
	}
	for _, c := range t.Chain() {
		for _, i := range c.Interfaces {
			walk(i)
		}
	}
	return out
}

// IsAssignableTo reports whether a value of t can be used as u.
func (t *Type) IsAssignableTo(u *Type) bool {
	if t == u || u == Object {
		return true
	}
	if !u.IsInterface() {
		for _, c := range t.Chain() {
			if c == u {
				return true
			}
		}
		return false
	}
	for _, i := range t.AllInterfaces() {
		if i == u {
			return true
		}
	}
	return false
}

// ImplementationOf returns the class member that implements the interface
// member im, explicitly or by name and signature, or nil.
func (t *Type) ImplementationOf(im *Member) *Member {
	if t.impls == nil {
		return nil
	}
	return t.impls[im.id]
}
