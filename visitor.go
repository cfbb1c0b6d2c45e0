package dynproxy

import (
	"slices"

	"github.com/broady/dynproxy/typesys"
)

// Visitor is driven by [ProxyDescriptor.Accept].
type Visitor interface {
	// VisitInterfaces is called with interfaces the proxy implements.
	// Embedded interfaces are not expanded by the caller.
	VisitInterfaces(ifaces []*typesys.Type)

	// VisitMembers is called for each class of the parent chain, from
	// [typesys.Object] to the most derived.
	VisitMembers(t *typesys.Type)
}

// MemberCollector is the [Visitor] that builds a [MemberSet].
//
// Members are keyed by their slot, the root of their override chain, so an
// override replaces the declaration it overrides while keeping its position.
// The base of an entry is the most-derived declaration with a body. Interface
// members implemented by a class member are folded into the class member's
// entry and kept as aliases; when both carry a body the class member wins.
type MemberCollector struct {
	policy  Policy
	entries []*VisitedMember
	index   map[typesys.MemberID]*VisitedMember
	visited map[*typesys.Type]bool
	class   *typesys.Type
}

// NewMemberCollector returns a collector applying p. A nil p means
// [DefaultPolicy].
func NewMemberCollector(p Policy) *MemberCollector {
	if p == nil {
		p = DefaultPolicy{}
	}
	return &MemberCollector{
		policy:  p,
		index:   make(map[typesys.MemberID]*VisitedMember),
		visited: make(map[*typesys.Type]bool),
	}
}

func (c *MemberCollector) VisitMembers(t *typesys.Type) {
	if c.visited[t] {
		return
	}
	c.visited[t] = true
	if !t.IsInterface() {
		c.class = t
	}
	for _, m := range t.Members {
		c.add(m, false)
	}
}

func (c *MemberCollector) VisitInterfaces(ifaces []*typesys.Type) {
	for _, i := range ifaces {
		c.visitInterface(i)
	}
}

func (c *MemberCollector) visitInterface(i *typesys.Type) {
	if c.visited[i] {
		return
	}
	c.visited[i] = true
	for _, e := range i.Interfaces {
		c.visitInterface(e)
	}
	for _, im := range i.Members {
		if c.class != nil {
			if cm := c.class.ImplementationOf(im); cm != nil {
				c.fold(cm, im)
				continue
			}
		}
		c.add(im, true)
	}
}

func (c *MemberCollector) add(m *typesys.Member, fromInterface bool) {
	key := m.Slot().ID()
	if e, ok := c.index[key]; ok {
		if e.ID != key {
			// Already folded into a class entry.
			return
		}
		if m.DeclaringType().IsAssignableTo(e.Member.DeclaringType()) {
			e.Member = m
			if m.HasBody() {
				e.Base = m
			}
		}
		return
	}
	e := &VisitedMember{ID: key, Member: m, FromInterface: fromInterface}
	if m.HasBody() {
		e.Base = m
	}
	c.entries = append(c.entries, e)
	c.index[key] = e
}

func (c *MemberCollector) fold(cm, im *typesys.Member) {
	key := cm.Slot().ID()
	e, ok := c.index[key]
	if !ok {
		c.add(cm, false)
		e = c.index[key]
	}
	for _, alias := range []typesys.MemberID{im.ID(), im.Slot().ID()} {
		if _, taken := c.index[alias]; taken {
			continue
		}
		e.Aliases = append(e.Aliases, alias)
		c.index[alias] = e
	}
}

// Result applies the policy to the final declaration of every entry and
// returns the member set. The collector can keep visiting afterwards.
func (c *MemberCollector) Result() *MemberSet {
	set := &MemberSet{
		index:    make(map[typesys.MemberID]*VisitedMember, len(c.entries)),
		excluded: make(map[typesys.MemberID]*Exclusion),
	}
	for _, e := range c.entries {
		d := c.policy.Decide(e.Member, e.Base)
		if !d.Include {
			x := &Exclusion{
				ID:      e.ID,
				Member:  e.Member,
				Base:    e.Base,
				Aliases: slices.Clone(e.Aliases),
				Reason:  d.Reason,
			}
			set.Excluded = append(set.Excluded, x)
			set.excluded[x.ID] = x
			for _, a := range x.Aliases {
				set.excluded[a] = x
			}
			continue
		}
		v := &VisitedMember{
			ID:            e.ID,
			Member:        e.Member,
			Base:          d.Base,
			Aliases:       slices.Clone(e.Aliases),
			FromInterface: e.FromInterface,
			Index:         len(set.Members),
		}
		set.Members = append(set.Members, v)
		set.index[v.ID] = v
		for _, a := range v.Aliases {
			set.index[a] = v
		}
	}
	return set
}
