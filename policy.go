package dynproxy

import (
	"github.com/broady/dynproxy/typesys"
)

// Decision is the outcome of a [Policy] for one member.
type Decision struct {
	// Include reports whether the proxy intercepts the member.
	Include bool

	// Base is the fallback implementation for included members, or nil.
	Base *typesys.Member

	// Reason explains an exclusion.
	Reason string
}

// Policy decides which members a proxy intercepts and what their fallback
// implementation is. m is the most-derived declaration of the member and base
// the most-derived declaration that has a body.
type Policy interface {
	Decide(m, base *typesys.Member) Decision
}

// PolicyFunc adapts a function to the [Policy] interface.
type PolicyFunc func(m, base *typesys.Member) Decision

// Decide calls f(m, base).
func (f PolicyFunc) Decide(m, base *typesys.Member) Decision {
	return f(m, base)
}

// Exclusion reasons reported by [DefaultPolicy].
const (
	ReasonNonIntercepted = "non-intercepted"
	ReasonConstructor    = "constructor"
	ReasonStatic         = "static"
	ReasonSealed         = "sealed"
	ReasonNonVirtual     = "non-virtual"
)

// DefaultPolicy intercepts every member that can be overridden.
//
//	non-intercepted marker                 excluded
//	constructor, static                    excluded
//	sealed or non-virtual class member     excluded
//	abstract                               included, no base
//	otherwise                              included, base = most-derived body
type DefaultPolicy struct{}

func (DefaultPolicy) Decide(m, base *typesys.Member) Decision {
	switch {
	case m.NonIntercepted:
		return Decision{Reason: ReasonNonIntercepted}
	case m.Kind == typesys.MemberConstructor:
		return Decision{Reason: ReasonConstructor}
	case m.Static:
		return Decision{Reason: ReasonStatic}
	case m.Sealed:
		return Decision{Reason: ReasonSealed}
	case !typesys.Proxyable(m):
		return Decision{Reason: ReasonNonVirtual}
	case m.Abstract:
		return Decision{Include: true}
	default:
		return Decision{Include: true, Base: base}
	}
}
