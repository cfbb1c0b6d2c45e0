package dynproxy

import (
	"context"
	"strings"

	"github.com/broady/dynproxy/typesys"
)

// EmitRequest is what a [Backend] generates a proxy type from.
type EmitRequest struct {
	// Name is the name of the proxy type, e.g. "ProxyCalculator".
	Name       string
	Descriptor ProxyDescriptor
	Members    *MemberSet
}

// Backend generates proxy types. Emit is all-or-nothing: on error no handle
// is returned and nothing is published.
type Backend interface {
	Emit(ctx context.Context, req EmitRequest) (TypeHandle, error)
}

// TypeHandle is a generated proxy type.
type TypeHandle interface {
	Name() string
	Descriptor() ProxyDescriptor
	Members() *MemberSet

	// NewInstance creates an instance with the given base state and chain.
	NewInstance(state any, chain *Chain) *Object
}

// ProxyType is the handle produced by [DispatchBackend]. Its jump table maps
// member identities to entries of the member set.
type ProxyType struct {
	name       string
	descriptor ProxyDescriptor
	members    *MemberSet
}

func (p *ProxyType) Name() string                { return p.name }
func (p *ProxyType) Descriptor() ProxyDescriptor { return p.descriptor }
func (p *ProxyType) Members() *MemberSet         { return p.members }

// NewInstance creates an instance. A nil chain means no interceptors and no
// target.
func (p *ProxyType) NewInstance(state any, chain *Chain) *Object {
	if chain == nil {
		chain = NewChain(nil)
	}
	return &Object{typ: p, state: state, chain: chain}
}

// DispatchBackend is the built-in backend. Proxy instances are [*Object]
// values that dispatch calls through a jump table keyed by member identity.
type DispatchBackend struct{}

func (DispatchBackend) Emit(ctx context.Context, req EmitRequest) (TypeHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	return &ProxyType{
		name:       req.Name,
		descriptor: req.Descriptor,
		members:    req.Members,
	}, nil
}

// validateRequest checks that every included member can be dispatched on.
func validateRequest(req EmitRequest) error {
	if req.Descriptor == nil || req.Members == nil {
		return NewError(CodeInvalidConfiguration, "emit request needs a descriptor and a member set")
	}
	if req.Name == "" {
		return NewError(CodeInvalidConfiguration, "emit request needs a type name")
	}
	for _, e := range req.Members.Members {
		if typesys.IdentityOf(e.Member).IsZero() {
			return Errorf(CodeUnsupportedMember, "%s cannot be proxied", typesys.FullName(e.Member)).
				WithDetail("member", e.ID.String())
		}
		if e.Base != nil && e.Base.Impl == nil {
			return Errorf(CodeUnsupportedMember, "base of %s has no body", typesys.FullName(e.Member)).
				WithDetail("member", e.ID.String())
		}
	}
	return nil
}

// TypeName derives the proxy type name for d, e.g. "ProxyCalculator" or
// "ProxyCalculator_Disposable" when extra interfaces are implemented.
func TypeName(prefix string, d ProxyDescriptor) string {
	var b strings.Builder
	b.WriteString(prefix)
	b.WriteString(d.DeclaringType().Name)
	for _, i := range d.InterfaceTypes() {
		if i == d.DeclaringType() {
			continue
		}
		b.WriteByte('_')
		b.WriteString(i.Name)
	}
	return b.String()
}
