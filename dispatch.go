package dynproxy

import (
	"context"
	"reflect"

	"github.com/broady/dynproxy/typesys"
)

// Object is a proxy instance. Every intercepted member call made through
// Invoke, InvokeGeneric or Call creates a new [Invocation] and runs it
// through the instance's [Chain].
//
// Members the policy excluded are not intercepted: calling them runs their
// body directly.
//
// An Object is safe for concurrent use as long as its base state is.
type Object struct {
	typ   *ProxyType
	state any
	chain *Chain
}

var (
	_ typesys.Receiver = (*Object)(nil)
	_ Dispatcher       = (*Object)(nil)
)

// Type returns the proxy type of o.
func (o *Object) Type() *ProxyType {
	return o.typ
}

// Self returns o.
func (o *Object) Self() any {
	return o
}

// State returns the base state produced by the constructor, nil for
// interface proxies.
func (o *Object) State() any {
	return o.state
}

// Context returns a background context. Bodies running under a call get the
// call's context from their receiver instead.
func (o *Object) Context() context.Context {
	return context.Background()
}

// Chain returns the interceptor chain of o.
func (o *Object) Chain() *Chain {
	return o.chain
}

// Implements reports whether o can be used as t.
func (o *Object) Implements(t *typesys.Type) bool {
	switch d := o.typ.descriptor.(type) {
	case *InterfaceDescriptor:
		return d.implements(t)
	case *ClassDescriptor:
		return d.implements(t)
	}
	return false
}

// Invoke calls the member identified by id with a background context.
func (o *Object) Invoke(id typesys.MemberID, args ...any) (any, error) {
	return o.InvokeContext(context.Background(), id, args...)
}

// InvokeContext calls the member identified by id. id may be the identity of
// the slot or of any interface member folded into it.
func (o *Object) InvokeContext(ctx context.Context, id typesys.MemberID, args ...any) (any, error) {
	return o.InvokeGeneric(ctx, id, nil, args...)
}

// InvokeGeneric calls a generic member with the given type arguments.
func (o *Object) InvokeGeneric(ctx context.Context, id typesys.MemberID, typeArgs []reflect.Type, args ...any) (any, error) {
	if e, ok := o.typ.members.Lookup(id); ok {
		return o.invoke(ctx, e, typeArgs, args)
	}
	if x, ok := o.typ.members.LookupExcluded(id); ok {
		return o.direct(ctx, x, args)
	}
	return nil, Errorf(CodeMemberNotFound, "%s has no member %s", o.typ.name, id).
		WithDetail("member", id.String())
}

// Call invokes the member reachable under the Go method name name, e.g.
// "Add", "SetCount" or "AddChanged". It fails with [ErrMemberNotFound] when no
// member or more than one member has that name.
func (o *Object) Call(name string, args ...any) (any, error) {
	return o.CallContext(context.Background(), name, args...)
}

// CallContext is like Call with a context.
func (o *Object) CallContext(ctx context.Context, name string, args ...any) (any, error) {
	matches := o.typ.members.ByName(name)
	switch len(matches) {
	case 1:
		return o.invoke(ctx, matches[0], nil, args)
	case 0:
		for _, x := range o.typ.members.Excluded {
			if x.Member.MethodName() == name {
				return o.direct(ctx, x, args)
			}
		}
		return nil, Errorf(CodeMemberNotFound, "%s has no member named %s", o.typ.name, name)
	default:
		ids := make([]string, len(matches))
		for i, m := range matches {
			ids[i] = m.ID.String()
		}
		return nil, Errorf(CodeMemberNotFound, "%s has %d members named %s; use Invoke", o.typ.name, len(matches), name).
			WithDetail("candidates", ids)
	}
}

// Resolve implements [Dispatcher], so o can be the target of another proxy.
// m is matched by identity, then by method name, kind and signature.
func (o *Object) Resolve(m *typesys.Member) (TargetFunc, bool) {
	e, ok := o.typ.members.Lookup(m.ID())
	if !ok {
		for _, c := range o.typ.members.Members {
			if c.Member.MethodName() == m.MethodName() && c.Member.Kind == m.Kind && c.Member.Signature() == m.Signature() {
				e, ok = c, true
				break
			}
		}
	}
	if !ok {
		return nil, false
	}
	return func(ctx context.Context, args []any) (any, error) {
		var generic []reflect.Type
		if inv, ok := InvocationFromContext(ctx); ok {
			generic = inv.GenericArgs
		}
		return o.invoke(ctx, e, generic, args)
	}, true
}

func (o *Object) invoke(ctx context.Context, e *VisitedMember, generic []reflect.Type, args []any) (any, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if n := e.Member.GenericArity; n != len(generic) {
		return nil, Errorf(CodeInvalidArgument, "%s takes %d type arguments, got %d", typesys.FullName(e.Member), n, len(generic))
	}
	inv := newInvocation(ctx, o, e, generic, args)
	return o.chain.Proceed(inv)
}

func (o *Object) direct(ctx context.Context, x *Exclusion, args []any) (any, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if x.Base == nil {
		return nil, Errorf(CodeNotImplemented, "%s has no implementation", typesys.FullName(x.Member)).
			WithDetail("reason", x.Reason)
	}
	return x.Base.Impl(bodyReceiver{o, ctx}, args)
}
