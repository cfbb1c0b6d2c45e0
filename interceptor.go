package dynproxy

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/broady/dynproxy/typesys"
)

// Handler represents the next stage of an interceptor chain. It is passed to
// [Interceptor] implementations to invoke the next interceptor or the final
// stage.
type Handler func(inv *Invocation) (any, error)

// Interceptor is a hook that wraps every intercepted member call of a proxy.
//
//	logging := dynproxy.InterceptorFunc(func(inv *dynproxy.Invocation, next dynproxy.Handler) (any, error) {
//	    start := time.Now()
//	    res, err := next(inv)
//	    log.Printf("%s took %v", inv.ID(), time.Since(start))
//	    return res, err
//	})
//
// The next parameter is the rest of the chain. Interceptors can:
//   - Inspect or replace inv.Args before calling next
//   - Inspect or replace the result and error after calling next
//   - Short-circuit by returning without calling next
//   - Call next more than once (retries)
type Interceptor interface {
	Intercept(inv *Invocation, next Handler) (any, error)
}

// InterceptorFunc adapts a function to the [Interceptor] interface.
type InterceptorFunc func(inv *Invocation, next Handler) (any, error)

// Intercept calls f(inv, next).
func (f InterceptorFunc) Intercept(inv *Invocation, next Handler) (any, error) {
	return f(inv, next)
}

// chainInterceptors combines interceptors around final.
// The first interceptor in the slice is the outer-most one (runs first).
func chainInterceptors(interceptors []Interceptor, final Handler) Handler {
	// Chain: i[0] -> i[1] -> ... -> final
	h := final
	for i := len(interceptors) - 1; i >= 0; i-- {
		current := interceptors[i]
		next := h
		h = func(inv *Invocation) (any, error) {
			return current.Intercept(inv, next)
		}
	}
	return h
}

// TargetFunc calls one member on a target instance.
type TargetFunc func(ctx context.Context, args []any) (any, error)

// Dispatcher is implemented by targets that resolve members themselves.
// [*Object] implements it, so a proxy can be the target of another proxy.
type Dispatcher interface {
	Resolve(m *typesys.Member) (TargetFunc, bool)
}

// Chain is the composed interceptor pipeline shared by every call of a proxy
// instance. It is immutable once created and safe for concurrent use.
//
// The final stage calls the target when one is configured and it can answer
// the member; otherwise the base implementation of the member; otherwise it
// fails with [ErrNotImplemented].
type Chain struct {
	interceptors []Interceptor
	target       any
	handler      Handler

	// resolved caches target lookups per member identity.
	resolved sync.Map // typesys.MemberID -> TargetFunc (nil when unresolvable)
}

// NewChain composes interceptors around the final stage. target may be nil.
func NewChain(target any, interceptors ...Interceptor) *Chain {
	c := &Chain{
		interceptors: append([]Interceptor(nil), interceptors...),
		target:       target,
	}
	c.handler = chainInterceptors(c.interceptors, c.complete)
	return c
}

// Proceed runs inv through the chain.
func (c *Chain) Proceed(inv *Invocation) (any, error) {
	return c.handler(inv)
}

// Target returns the configured target, or nil.
func (c *Chain) Target() any {
	return c.target
}

// Len returns the number of interceptors.
func (c *Chain) Len() int {
	return len(c.interceptors)
}

func (c *Chain) complete(inv *Invocation) (any, error) {
	if c.target != nil {
		if fn := c.resolve(inv.member); fn != nil {
			return fn(inv.Context(), inv.Args)
		}
	}
	if base := inv.Base(); base != nil {
		return base.Impl(bodyReceiver{inv.proxy, inv.Context()}, inv.Args)
	}
	return nil, Errorf(CodeNotImplemented, "%s has no implementation", typesys.FullName(inv.member)).
		WithDetail("member", inv.ID().String())
}

func (c *Chain) resolve(m *typesys.Member) TargetFunc {
	key := m.ID()
	if v, ok := c.resolved.Load(key); ok {
		return v.(TargetFunc)
	}
	fn := resolveTarget(c.target, m)
	c.resolved.Store(key, fn)
	return fn
}

// resolveTarget finds how to call m on target: the member's own binding,
// the target's Dispatcher, or a Go method with the member's method name.
func resolveTarget(target any, m *typesys.Member) TargetFunc {
	if m.Bind != nil {
		bind := m.Bind
		return func(_ context.Context, args []any) (any, error) {
			return bind(target, args)
		}
	}
	if d, ok := target.(Dispatcher); ok {
		if fn, ok := d.Resolve(m); ok {
			return fn
		}
		return nil
	}
	method := reflect.ValueOf(target).MethodByName(m.MethodName())
	if !method.IsValid() {
		return nil
	}
	name := typesys.FullName(m)
	return func(ctx context.Context, args []any) (any, error) {
		return callMethod(ctx, name, method, args)
	}
}

// bodyReceiver binds a proxy to the context of one call.
type bodyReceiver struct {
	*Object
	ctx context.Context
}

func (r bodyReceiver) Context() context.Context { return r.ctx }

// MethodImpl returns a member body that calls the Go method name on the
// proxy's base state. Providers use it to give members built from Go types a
// base implementation. A leading context.Context parameter receives the call
// context.
func MethodImpl(name string) typesys.Impl {
	return func(recv typesys.Receiver, args []any) (any, error) {
		state := recv.State()
		if state == nil {
			return nil, Errorf(CodeNotImplemented, "%s: proxy has no base state", name)
		}
		method := reflect.ValueOf(state).MethodByName(name)
		if !method.IsValid() {
			return nil, Errorf(CodeNotImplemented, "%T has no method %s", state, name)
		}
		return callMethod(recv.Context(), name, method, args)
	}
}

var (
	errorType   = reflect.TypeFor[error]()
	contextType = reflect.TypeFor[context.Context]()
)

// callMethod calls a Go method with dynamic arguments. A leading
// context.Context parameter receives ctx. A trailing error result becomes the
// returned error; a single remaining result is returned as is and several are
// returned as []any.
func callMethod(ctx context.Context, name string, fn reflect.Value, args []any) (any, error) {
	ft := fn.Type()
	in := make([]reflect.Value, 0, ft.NumIn())
	offset := 0
	if ft.NumIn() > 0 && ft.In(0) == contextType {
		in = append(in, reflect.ValueOf(ctx))
		offset = 1
	}

	fixed := ft.NumIn() - offset
	if ft.IsVariadic() {
		fixed--
		if len(args) < fixed {
			return nil, Errorf(CodeInvalidArgument, "%s: expected at least %d arguments, got %d", name, fixed, len(args))
		}
	} else if len(args) != fixed {
		return nil, Errorf(CodeInvalidArgument, "%s: expected %d arguments, got %d", name, fixed, len(args))
	}

	for i, arg := range args {
		var pt reflect.Type
		if ft.IsVariadic() && i >= fixed {
			pt = ft.In(ft.NumIn() - 1).Elem()
		} else {
			pt = ft.In(offset + i)
		}
		v, err := convertArg(arg, pt)
		if err != nil {
			return nil, Errorf(CodeInvalidArgument, "%s: argument %d: %v", name, i, err)
		}
		in = append(in, v)
	}

	out := fn.Call(in)
	return splitResults(out)
}

func convertArg(arg any, t reflect.Type) (reflect.Value, error) {
	if arg == nil {
		switch t.Kind() {
		case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
			return reflect.Zero(t), nil
		}
		return reflect.Value{}, fmt.Errorf("nil is not assignable to %s", t)
	}
	v := reflect.ValueOf(arg)
	if v.Type().AssignableTo(t) {
		return v, nil
	}
	if !v.Type().ConvertibleTo(t) {
		return reflect.Value{}, fmt.Errorf("%s is not assignable to %s", v.Type(), t)
	}
	switch {
	case v.Kind() == t.Kind() && !isNumeric(t.Kind()):
		// Named and unnamed types with the same underlying type.
		return v.Convert(t), nil
	case isNumeric(v.Kind()) && isNumeric(t.Kind()):
		c := v.Convert(t)
		if negative(v) != negative(c) || !sameNumber(c.Convert(v.Type()), v) {
			return reflect.Value{}, fmt.Errorf("%v (%s) does not fit in %s", arg, v.Type(), t)
		}
		return c, nil
	}
	return reflect.Value{}, fmt.Errorf("%s is not assignable to %s", v.Type(), t)
}

func isNumeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return true
	}
	return false
}

func negative(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int() < 0
	case reflect.Float32, reflect.Float64:
		return v.Float() < 0
	}
	return false
}

// sameNumber reports whether a and b, of the same type, hold the same value.
// NaN matches NaN.
func sameNumber(a, b reflect.Value) bool {
	switch a.Kind() {
	case reflect.Float32, reflect.Float64:
		x, y := a.Float(), b.Float()
		return x == y || (x != x && y != y)
	case reflect.Complex64, reflect.Complex128:
		x, y := a.Complex(), b.Complex()
		return x == y || (x != x && y != y)
	}
	return a.Equal(b)
}

func splitResults(out []reflect.Value) (any, error) {
	var err error
	if n := len(out); n > 0 && out[n-1].Type() == errorType {
		if e := out[n-1].Interface(); e != nil {
			err = e.(error)
		}
		out = out[:n-1]
	}
	switch len(out) {
	case 0:
		return nil, err
	case 1:
		return out[0].Interface(), err
	default:
		res := make([]any, len(out))
		for i, v := range out {
			res[i] = v.Interface()
		}
		return res, err
	}
}
