// Package dynproxy generates proxy types at run time and routes every member
// call of a proxy instance through a chain of interceptors.
//
// Types are described with the metadata model of package typesys, either by
// hand or through one of the providers in package provider. A proxy is
// requested with a fluent grammar:
//
//	calc, err := dynproxy.NewFactory().
//	    For(calculatorType).
//	    Implements(disposableType).
//	    Targets(realCalculator).
//	    Invokes(logging, retries).
//	    Build(ctx)
//
// The factory builds a [ProxyDescriptor], collects the de-duplicated members
// the proxy provides with a [MemberCollector], applies the [Policy] and asks a
// [Backend] for the proxy type. Generated types are cached by the structural
// key of their descriptor.
//
// Calls are made by member identity:
//
//	res, err := calc.Invoke(add.ID(), 2, 3)
//
// The chain runs the interceptors in the order they were added. The last
// stage calls the target, or the member's base implementation, or fails with
// [ErrNotImplemented].
package dynproxy
