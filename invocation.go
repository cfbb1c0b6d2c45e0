package dynproxy

import (
	"context"
	"reflect"

	"github.com/broady/dynproxy/typesys"
)

// Invocation is the per-call context handed to interceptors. A new Invocation
// is created for every call and is never shared between calls, so
// interceptors may modify Args freely.
type Invocation struct {
	ctx    context.Context
	entry  *VisitedMember
	member *typesys.Member
	proxy  *Object

	// Args are the call arguments. Interceptors may replace elements or the
	// whole slice before calling the next handler.
	Args []any

	// GenericArgs are the type arguments of a generic method call.
	GenericArgs []reflect.Type
}

type contextKey struct {
	name string
}

var invocationKey = &contextKey{"invocation"}

func newInvocation(ctx context.Context, proxy *Object, entry *VisitedMember, generic []reflect.Type, args []any) *Invocation {
	inv := &Invocation{
		entry:       entry,
		member:      entry.Member,
		proxy:       proxy,
		Args:        args,
		GenericArgs: generic,
	}
	inv.ctx = context.WithValue(ctx, invocationKey, inv)
	return inv
}

// InvocationFromContext returns the invocation a target or body is running
// under, when called through a proxy.
func InvocationFromContext(ctx context.Context) (*Invocation, bool) {
	inv, ok := ctx.Value(invocationKey).(*Invocation)
	return inv, ok
}

// Context returns the call context. It carries the invocation itself, see
// [InvocationFromContext].
func (inv *Invocation) Context() context.Context {
	return inv.ctx
}

// WithContext replaces the context passed on to the rest of the chain.
func (inv *Invocation) WithContext(ctx context.Context) {
	inv.ctx = context.WithValue(ctx, invocationKey, inv)
}

// Member returns the most-derived declaration of the called member.
func (inv *Invocation) Member() *typesys.Member {
	return inv.member
}

// ID returns the identity the proxy dispatched on.
func (inv *Invocation) ID() typesys.MemberID {
	return inv.entry.ID
}

// Proxy returns the proxy instance the call was made on.
func (inv *Invocation) Proxy() *Object {
	return inv.proxy
}

// Base returns the member whose body is the fallback implementation, or nil
// when the member has none.
func (inv *Invocation) Base() *typesys.Member {
	return inv.entry.Base
}

// Name returns the diagnostic full name of the member.
func (inv *Invocation) Name() string {
	return typesys.FullName(inv.member)
}
