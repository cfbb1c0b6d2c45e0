package dynproxy

import (
	"github.com/broady/dynproxy/typesys"
)

// InterfaceDescriptor describes a proxy for an interface. The proxy derives
// from [typesys.Object] and implements the declaring interface plus any
// additional ones.
type InterfaceDescriptor struct {
	*descriptor
}

// NewInterfaceDescriptor describes a proxy of the interface declaring that also
// implements interfaces.
func NewInterfaceDescriptor(declaring *typesys.Type, interfaces ...*typesys.Type) (*InterfaceDescriptor, error) {
	if declaring == nil {
		return nil, NewError(CodeInvalidConfiguration, "declaring type is nil")
	}
	if !declaring.IsInterface() {
		return nil, Errorf(CodeInvalidConfiguration, "%s is not an interface", declaring).
			WithDetail("type", declaring.Path())
	}
	d, err := newDescriptor(declaring, typesys.Object, append([]*typesys.Type{declaring}, interfaces...))
	if err != nil {
		return nil, err
	}
	return &InterfaceDescriptor{d}, nil
}

// Accept visits the interfaces first, then the members of the parent.
func (d *InterfaceDescriptor) Accept(v Visitor) {
	v.VisitInterfaces(d.InterfaceTypes())
	v.VisitMembers(d.parent)
}

// Cast returns instance as an implementation of the interface to. It fails
// with [ErrInvalidCast] when instance is nil, to is not an interface or
// instance does not implement it.
func (d *InterfaceDescriptor) Cast(instance any, to *typesys.Type) (any, error) {
	if to != nil && !to.IsInterface() {
		return nil, Errorf(CodeInvalidCast, "%s is not an interface", to).
			WithDetail("type", to.Path())
	}
	return d.cast(instance, to)
}

// CreateInstance creates an instance with default construction. Interface
// proxies have no constructor parameters, so any argument fails with
// [ErrNoMatchingConstructor].
func (d *InterfaceDescriptor) CreateInstance(h TypeHandle, chain *Chain, args []any) (*Object, error) {
	if len(args) > 0 {
		return nil, Errorf(CodeNoMatchingConstructor, "interface proxy %s takes no constructor arguments, got %d", d.declaring, len(args))
	}
	return h.NewInstance(nil, chain), nil
}
