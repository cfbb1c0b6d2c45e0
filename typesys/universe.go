package typesys

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
)

var (
	// ErrNilType is returned when a nil type is registered.
	ErrNilType = errors.New("typesys: nil type")
	// ErrDuplicateType is returned when a different type with the same path is
	// already registered.
	ErrDuplicateType = errors.New("typesys: duplicate type path")
	// ErrInvalidType is returned when a type violates the model's structural rules.
	ErrInvalidType = errors.New("typesys: invalid type")
)

var serials atomic.Uint64

// Universe is a registry of types. Registration validates types and assigns
// member identities; afterwards types are treated as immutable.
//
// A Universe is safe for concurrent use. Registration is serialized; lookups
// take a read lock.
type Universe struct {
	mu    sync.RWMutex
	types map[string]*Type
	order []*Type
}

// NewUniverse returns a universe that already contains [Object].
func NewUniverse() *Universe {
	u := &Universe{types: make(map[string]*Type)}
	u.types[Object.Path()] = Object
	u.order = append(u.order, Object)
	return u
}

// Register validates and registers types. Parents, embedded interfaces and
// enclosing types must either be registered already (in any universe) or be
// part of the same call. Registration is all-or-nothing: on error nothing is registered.
//
// Registering the same *Type twice is a no-op. A type already registered in
// another universe is added as is.
func (u *Universe) Register(types ...*Type) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	batch := make(map[*Type]bool, len(types))
	paths := make(map[string]*Type, len(types))
	var pending, adopted []*Type
	for _, t := range types {
		if t == nil {
			return ErrNilType
		}
		path := t.Path()
		if existing, ok := u.types[path]; ok {
			if existing == t {
				continue
			}
			return fmt.Errorf("%w: %s", ErrDuplicateType, path)
		}
		if other, ok := paths[path]; ok && other != t {
			return fmt.Errorf("%w: %s", ErrDuplicateType, path)
		}
		if batch[t] {
			continue
		}
		batch[t] = true
		paths[path] = t
		if t.registered {
			adopted = append(adopted, t)
			continue
		}
		pending = append(pending, t)
	}

	// Types registered in another universe are immutable and carry ids, so
	// they may be referenced too.
	known := func(t *Type) bool {
		return t == Object || batch[t] || t.registered
	}
	for _, t := range pending {
		if err := validate(t, known); err != nil {
			return err
		}
	}

	// Parents first so overrides and implementations can be resolved against
	// registered ancestors.
	sort.SliceStable(pending, func(i, j int) bool {
		return depth(pending[i]) < depth(pending[j])
	})
	for _, t := range pending {
		assignIDs(t)
	}
	for _, t := range pending {
		if err := validateEdges(t); err != nil {
			return err
		}
		if err := resolveOverrides(t); err != nil {
			return err
		}
	}
	for _, t := range pending {
		if !t.IsInterface() {
			t.impls = resolveImplementations(t)
		}
	}
	for _, t := range pending {
		t.serial = serials.Add(1)
		t.registered = true
	}
	for _, t := range append(adopted, pending...) {
		u.types[t.Path()] = t
		u.order = append(u.order, t)
	}
	return nil
}

// MustRegister is like Register but panics on error. It is meant for
// package-level fixtures.
func (u *Universe) MustRegister(types ...*Type) {
	if err := u.Register(types...); err != nil {
		panic(err)
	}
}

// Lookup returns the type registered under path.
func (u *Universe) Lookup(path string) (*Type, bool) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	t, ok := u.types[path]
	return t, ok
}

// Types returns the registered types in registration order.
func (u *Universe) Types() []*Type {
	u.mu.RLock()
	defer u.mu.RUnlock()
	out := make([]*Type, len(u.order))
	copy(out, u.order)
	return out
}

// Paths returns the registered type paths in registration order.
func (u *Universe) Paths() []string {
	types := u.Types()
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = t.Path()
	}
	return out
}

func depth(t *Type) int {
	d := 0
	for c := t.Parent; c != nil; c = c.Parent {
		d++
	}
	if t.IsInterface() {
		for _, i := range t.Interfaces {
			d = max(d, depth(i)+1)
		}
	}
	return d
}

func validate(t *Type, known func(*Type) bool) error {
	fail := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s: %s", ErrInvalidType, t.Path(), fmt.Sprintf(format, args...))
	}
	if t.Name == "" {
		return fail("empty type name")
	}
	if t.Enclosing != nil && !known(t.Enclosing) {
		return fail("enclosing type %s is not registered", t.Enclosing.Path())
	}
	if t.IsInterface() {
		if t.Parent != nil {
			return fail("interfaces cannot have a parent class")
		}
		if len(t.Constructors) > 0 {
			return fail("interfaces cannot have constructors")
		}
	} else if t.Parent != nil {
		if t.Parent.IsInterface() {
			return fail("parent %s is an interface", t.Parent.Path())
		}
		if t.Parent.Sealed {
			return fail("parent %s is sealed", t.Parent.Path())
		}
		if !known(t.Parent) {
			return fail("parent %s is not registered", t.Parent.Path())
		}
		for p := t.Parent; p != nil; p = p.Parent {
			if p == t {
				return fail("inheritance cycle")
			}
		}
	}
	for _, i := range t.Interfaces {
		if !i.IsInterface() {
			return fail("%s is not an interface", i.Path())
		}
		if !known(i) {
			return fail("interface %s is not registered", i.Path())
		}
	}
	for _, m := range t.Members {
		if m.Name == "" {
			return fail("member with empty name")
		}
		if m.Kind == MemberConstructor {
			return fail("constructor %s declared as member; use Constructors", m.Name)
		}
		if m.Abstract && m.Impl != nil {
			return fail("abstract member %s has a body", m.Name)
		}
		if m.Abstract && !t.IsInterface() && !t.Abstract {
			return fail("abstract member %s on non-abstract class", m.Name)
		}
	}
	return nil
}

func validateEdges(t *Type) error {
	for _, m := range t.Members {
		for _, im := range m.Implements {
			if im.declaring == nil || !im.declaring.IsInterface() {
				return fmt.Errorf("%w: %s: %s implements a non-interface member", ErrInvalidType, t.Path(), m.id)
			}
			if t.IsInterface() || !t.IsAssignableTo(im.declaring) {
				return fmt.Errorf("%w: %s: %s implements %s of an interface the type does not implement", ErrInvalidType, t.Path(), m.id, im.id)
			}
		}
		if m.Overrides != nil && m.Overrides.declaring == nil {
			return fmt.Errorf("%w: %s: %s overrides an unregistered member", ErrInvalidType, t.Path(), m.id)
		}
	}
	return nil
}

func resolveOverrides(t *Type) error {
	for _, m := range t.Members {
		if !m.overrideByName || m.Overrides != nil {
			continue
		}
		m.Overrides = findInherited(t, m)
		if m.Overrides == nil {
			return fmt.Errorf("%w: %s: %s overrides nothing", ErrInvalidType, t.Path(), m.id)
		}
	}
	for _, m := range t.Members {
		if o := m.Overrides; o != nil {
			if !sameShape(m, o) {
				return fmt.Errorf("%w: %s: %s does not match overridden %s", ErrInvalidType, t.Path(), m.id, o.id)
			}
			if o.Sealed || !Proxyable(o) {
				return fmt.Errorf("%w: %s: %s cannot override %s", ErrInvalidType, t.Path(), m.id, o.id)
			}
			m.Virtual = true
		}
	}
	return nil
}

// findInherited looks for the nearest member in t's ancestors (or embedded
// interfaces) with the same shape as m.
func findInherited(t *Type, m *Member) *Member {
	var candidates []*Type
	if t.IsInterface() {
		candidates = t.AllInterfaces()
		// nearest first
		for i, j := 0, len(candidates)-1; i < j; i, j = i+1, j-1 {
			candidates[i], candidates[j] = candidates[j], candidates[i]
		}
	} else {
		chain := t.Chain()
		for i := len(chain) - 2; i >= 0; i-- {
			candidates = append(candidates, chain[i])
		}
	}
	for _, c := range candidates {
		for _, o := range c.Members {
			if sameShape(m, o) {
				return o
			}
		}
	}
	return nil
}

// resolveImplementations maps every member of every interface t implements to
// the class member implementing it. Explicit Implements edges win; otherwise
// the most-derived member with the same name, kind and signature is used.
func resolveImplementations(t *Type) map[MemberID]*Member {
	chain := t.Chain()
	impls := make(map[MemberID]*Member)
	for i := len(chain) - 1; i >= 0; i-- {
		for _, m := range chain[i].Members {
			for _, im := range m.Implements {
				if _, ok := impls[im.id]; !ok {
					impls[im.id] = m
				}
			}
		}
	}
	for _, iface := range t.AllInterfaces() {
		for _, im := range iface.Members {
			if im.Static {
				continue
			}
			if _, ok := impls[im.id]; ok {
				continue
			}
		search:
			for i := len(chain) - 1; i >= 0; i-- {
				for _, m := range chain[i].Members {
					if !m.Static && sameShape(m, im) {
						impls[im.id] = m
						break search
					}
				}
			}
		}
	}
	return impls
}
