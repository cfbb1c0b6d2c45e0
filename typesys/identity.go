package typesys

import (
	"fmt"
	"strings"
)

// MemberID identifies one member of one declaring type. It is comparable and
// meant to be used as a map key.
//
// Ids are assigned once, when the declaring type is registered, from the
// declaring type path, the member kind and name, the parameter signature and
// the member's position among same-named members (the overload ordinal). Two
// ids are equal iff they denote the same member of the same declaring type.
type MemberID struct {
	Type      string
	Name      string
	Kind      MemberKind
	Signature string
	Ordinal   int
}

// NotProxyable is returned by [IdentityOf] for members that cannot be proxied.
var NotProxyable = MemberID{}

// IsZero reports whether id is the [NotProxyable] sentinel.
func (id MemberID) IsZero() bool {
	return id == NotProxyable
}

// String renders id for diagnostics, e.g. "pkg.Calculator.Add(int,int)".
func (id MemberID) String() string {
	if id.IsZero() {
		return "<not proxyable>"
	}
	var b strings.Builder
	b.WriteString(id.Type)
	b.WriteByte('.')
	if id.Kind != MemberMethod {
		b.WriteString(strings.ToLower(id.Kind.String()))
		b.WriteByte(':')
	}
	b.WriteString(id.Name)
	b.WriteString(id.Signature)
	if id.Ordinal > 0 {
		fmt.Fprintf(&b, "#%d", id.Ordinal)
	}
	return b.String()
}

// IdentityOf returns the identity of m, or [NotProxyable] when m is static, a
// constructor, a non-virtual class member, or not yet registered. The result
// for a given member never changes once its type is registered.
func IdentityOf(m *Member) MemberID {
	if m == nil || m.declaring == nil || !Proxyable(m) {
		return NotProxyable
	}
	return m.id
}

// Proxyable reports whether m can ever be overridden by a proxy.
func Proxyable(m *Member) bool {
	if m.Static || m.Kind == MemberConstructor {
		return false
	}
	if m.declaring != nil && m.declaring.IsInterface() {
		return true
	}
	return m.Virtual || m.Abstract
}

// FullName returns the dotted path of m including enclosing types and generic
// arity markers, e.g. "example.com/pkg.Nested.Generic`1.Method". It is meant
// for diagnostics only and is never used for identity.
func FullName(m *Member) string {
	if m.declaring == nil {
		return m.MethodName()
	}
	return m.declaring.Path() + "." + m.MethodName()
}

func assignIDs(t *Type) {
	ordinals := make(map[string]int)
	for _, m := range t.Members {
		m.declaring = t
		key := m.Kind.String() + ":" + m.Name
		m.id = MemberID{
			Type:      t.Path(),
			Name:      m.Name,
			Kind:      m.Kind,
			Signature: m.Signature(),
			Ordinal:   ordinals[key],
		}
		ordinals[key]++
	}
}
