package dynproxy

import (
	"github.com/broady/dynproxy/typesys"
)

// VisitedMember is one de-duplicated member of a proxy type.
type VisitedMember struct {
	// ID is the identity of the slot: the declaration that introduced the
	// member. Proxies dispatch on it.
	ID typesys.MemberID

	// Member is the most-derived declaration.
	Member *typesys.Member

	// Base is the fallback implementation, or nil.
	Base *typesys.Member

	// Aliases are identities of interface members folded into this entry
	// because a class member implements them.
	Aliases []typesys.MemberID

	// FromInterface reports whether the entry was introduced by an interface.
	FromInterface bool

	// Index is the position of the entry in [MemberSet.Members].
	Index int
}

// Exclusion is a member the proxy does not intercept.
type Exclusion struct {
	ID      typesys.MemberID
	Member  *typesys.Member
	Base    *typesys.Member
	Aliases []typesys.MemberID
	Reason  string
}

// MemberSet is the ordered, de-duplicated set of members a proxy type
// provides. No two entries share an identity or alias. A MemberSet is
// immutable.
type MemberSet struct {
	Members  []*VisitedMember
	Excluded []*Exclusion

	index    map[typesys.MemberID]*VisitedMember
	excluded map[typesys.MemberID]*Exclusion
}

// Len returns the number of intercepted members.
func (s *MemberSet) Len() int {
	return len(s.Members)
}

// Lookup returns the entry for id, which may be an entry id or an alias.
func (s *MemberSet) Lookup(id typesys.MemberID) (*VisitedMember, bool) {
	e, ok := s.index[id]
	return e, ok
}

// LookupExcluded returns the exclusion for id, which may be an entry id or
// an alias.
func (s *MemberSet) LookupExcluded(id typesys.MemberID) (*Exclusion, bool) {
	e, ok := s.excluded[id]
	return e, ok
}

// ByName returns the intercepted entries reachable under the Go method name
// name, e.g. "Add", "SetCount" or "AddChanged".
func (s *MemberSet) ByName(name string) []*VisitedMember {
	var out []*VisitedMember
	for _, e := range s.Members {
		if e.Member.MethodName() == name {
			out = append(out, e)
		}
	}
	return out
}

// CollectMembers runs a [MemberCollector] with policy p over d.
func CollectMembers(d ProxyDescriptor, p Policy) *MemberSet {
	c := NewMemberCollector(p)
	d.Accept(c)
	return c.Result()
}
