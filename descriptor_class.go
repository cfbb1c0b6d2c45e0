package dynproxy

import (
	"github.com/broady/dynproxy/typesys"
)

// ClassDescriptor describes a proxy that derives from a non-sealed class and
// optionally implements additional interfaces.
type ClassDescriptor struct {
	*descriptor
}

// NewClassDescriptor describes a proxy deriving from the class declaring.
// Sealed classes and interfaces are rejected with [ErrInvalidConfiguration].
func NewClassDescriptor(declaring *typesys.Type, interfaces ...*typesys.Type) (*ClassDescriptor, error) {
	if declaring == nil {
		return nil, NewError(CodeInvalidConfiguration, "declaring type is nil")
	}
	if declaring.IsInterface() {
		return nil, Errorf(CodeInvalidConfiguration, "parent %s is an interface", declaring).
			WithDetail("type", declaring.Path())
	}
	if declaring.Sealed {
		return nil, Errorf(CodeInvalidConfiguration, "class %s is sealed", declaring).
			WithDetail("type", declaring.Path())
	}
	// Interfaces the class already implements add nothing to the proxy.
	var extra []*typesys.Type
	for _, i := range interfaces {
		if i != nil && i.IsInterface() && declaring.IsAssignableTo(i) {
			continue
		}
		extra = append(extra, i)
	}
	d, err := newDescriptor(declaring, declaring, extra)
	if err != nil {
		return nil, err
	}
	return &ClassDescriptor{d}, nil
}

// Accept visits the members of every class from [typesys.Object] down to the
// parent, then the interfaces: first those the parent implements, then the
// additional ones.
func (d *ClassDescriptor) Accept(v Visitor) {
	for _, c := range d.parent.Chain() {
		v.VisitMembers(c)
	}
	ifaces := d.parent.AllInterfaces()
	ifaces = append(ifaces, d.interfaces...)
	v.VisitInterfaces(ifaces)
}

// Cast returns instance as a value of to, which may be the parent, one of
// its ancestors or any implemented interface.
func (d *ClassDescriptor) Cast(instance any, to *typesys.Type) (any, error) {
	if to != nil && to.Sealed && !to.IsInterface() && to != d.parent {
		return nil, Errorf(CodeInvalidCast, "cannot cast to sealed class %s", to).
			WithDetail("type", to.Path())
	}
	return d.cast(instance, to)
}

// CreateInstance runs the first base constructor that accepts args and
// creates an instance holding the constructed state. A class that declares no
// constructors has an implicit parameterless one.
func (d *ClassDescriptor) CreateInstance(h TypeHandle, chain *Chain, args []any) (*Object, error) {
	ctors := d.parent.Constructors
	if len(ctors) == 0 {
		if len(args) > 0 {
			return nil, Errorf(CodeNoMatchingConstructor, "%s has no constructor taking %d arguments", d.parent, len(args))
		}
		return h.NewInstance(nil, chain), nil
	}
	for _, c := range ctors {
		if !c.Accepts(args) {
			continue
		}
		var state any
		if c.New != nil {
			var err error
			if state, err = c.New(args); err != nil {
				return nil, err
			}
		}
		return h.NewInstance(state, chain), nil
	}
	return nil, Errorf(CodeNoMatchingConstructor, "no constructor of %s accepts %d arguments", d.parent, len(args)).
		WithDetail("type", d.parent.Path())
}
