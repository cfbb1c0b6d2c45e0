package dynproxy

import (
	"encoding/hex"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/crypto/blake2b"

	"github.com/broady/dynproxy/typesys"
)

// ProxyDescriptor describes the proxy type to generate: the declaring type,
// the parent class and the interfaces the proxy answers to. Descriptors are
// immutable and safe for concurrent use.
//
// There are two variants. [InterfaceDescriptor] proxies an interface and
// derives from [typesys.Object]; [ClassDescriptor] derives from a class.
type ProxyDescriptor interface {
	// DeclaringType is the type the proxy was requested for.
	DeclaringType() *typesys.Type

	// ParentType is the class the proxy derives from. Never an interface.
	ParentType() *typesys.Type

	// InterfaceTypes are the additional interfaces, de-duplicated, in the
	// order they were requested. Interfaces embedded by another requested
	// interface are left out.
	InterfaceTypes() []*typesys.Type

	// Accept drives v over the members the proxy must provide.
	Accept(v Visitor)

	// Cast checks that instance can be used as to and returns it.
	Cast(instance any, to *typesys.Type) (any, error)

	// CreateInstance constructs a proxy instance of h, selecting a base
	// constructor from args.
	CreateInstance(h TypeHandle, chain *Chain, args []any) (*Object, error)

	// Key is the order-independent structural key of the descriptor.
	Key() Key
}

// Key is the structural identity of a descriptor: the parent path and the
// sorted set of interface paths. Two descriptors with equal keys generate the
// same proxy type.
type Key struct {
	Parent     string   `cbor:"1,keyasint"`
	Interfaces []string `cbor:"2,keyasint"`
}

// String renders k, e.g. "pkg.Base+[pkg.A pkg.B]".
func (k Key) String() string {
	return k.Parent + "+[" + strings.Join(k.Interfaces, " ") + "]"
}

// Equal reports whether k and o are the same key.
func (k Key) Equal(o Key) bool {
	return k.Parent == o.Parent && slices.Equal(k.Interfaces, o.Interfaces)
}

// Digest is the blake2b-256 hash of the canonical CBOR encoding of a [Key].
type Digest [blake2b.Size256]byte

// String returns the hex encoding of d.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

var keyEncMode = func() cbor.EncMode {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("dynproxy: cbor encoder: %v", err))
	}
	return em
}()

// Digest hashes k. Equal keys always produce equal digests.
func (k Key) Digest() Digest {
	data, err := keyEncMode.Marshal(k)
	if err != nil {
		// Key holds only strings; encoding cannot fail.
		panic(fmt.Sprintf("dynproxy: encoding descriptor key: %v", err))
	}
	return blake2b.Sum256(data)
}

// Equal reports whether a and b describe the same proxy type, regardless of
// the order interfaces were given in.
func Equal(a, b ProxyDescriptor) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Key().Equal(b.Key())
}

// NewDescriptor returns the descriptor variant for declaring: an
// [InterfaceDescriptor] for interfaces and a [ClassDescriptor] for classes.
func NewDescriptor(declaring *typesys.Type, interfaces ...*typesys.Type) (ProxyDescriptor, error) {
	if declaring == nil {
		return nil, NewError(CodeInvalidConfiguration, "declaring type is nil")
	}
	if declaring.IsInterface() {
		return NewInterfaceDescriptor(declaring, interfaces...)
	}
	return NewClassDescriptor(declaring, interfaces...)
}

// descriptor holds what both variants share.
type descriptor struct {
	declaring  *typesys.Type
	parent     *typesys.Type
	interfaces []*typesys.Type
	key        Key
}

func (d *descriptor) DeclaringType() *typesys.Type { return d.declaring }

func (d *descriptor) ParentType() *typesys.Type { return d.parent }

func (d *descriptor) InterfaceTypes() []*typesys.Type {
	return slices.Clone(d.interfaces)
}

func (d *descriptor) Key() Key {
	return Key{Parent: d.key.Parent, Interfaces: slices.Clone(d.key.Interfaces)}
}

func (d *descriptor) String() string {
	return d.key.String()
}

func newDescriptor(declaring, parent *typesys.Type, interfaces []*typesys.Type) (*descriptor, error) {
	if err := checkRegistered(parent); err != nil {
		return nil, err
	}
	seen := make(map[*typesys.Type]bool, len(interfaces))
	var ifaces []*typesys.Type
	for _, i := range interfaces {
		if i == nil {
			return nil, NewError(CodeInvalidConfiguration, "interface type is nil")
		}
		if !i.IsInterface() {
			return nil, Errorf(CodeInvalidConfiguration, "%s is not an interface", i).
				WithDetail("type", i.Path())
		}
		if err := checkRegistered(i); err != nil {
			return nil, err
		}
		if seen[i] {
			continue
		}
		seen[i] = true
		ifaces = append(ifaces, i)
	}

	// An interface another requested interface embeds adds nothing. The
	// declaring interface stays in the list but not in the key.
	kept := make([]*typesys.Type, 0, len(ifaces))
	paths := make([]string, 0, len(ifaces))
	for _, i := range ifaces {
		implied := impliedBy(i, ifaces)
		if i == declaring || !implied {
			kept = append(kept, i)
		}
		if !implied {
			paths = append(paths, i.Path())
		}
	}
	ifaces = kept
	slices.Sort(paths)

	return &descriptor{
		declaring:  declaring,
		parent:     parent,
		interfaces: ifaces,
		key:        Key{Parent: parent.Path(), Interfaces: paths},
	}, nil
}

// impliedBy reports whether another interface in set embeds i.
func impliedBy(i *typesys.Type, set []*typesys.Type) bool {
	for _, j := range set {
		if j != i && j.IsAssignableTo(i) {
			return true
		}
	}
	return false
}

func checkRegistered(t *typesys.Type) error {
	if !t.Registered() {
		return Errorf(CodeInvalidConfiguration, "type %s is not registered", t).
			WithDetail("type", t.Path())
	}
	return nil
}

// implements reports whether a proxy of d can be used as t.
func (d *descriptor) implements(t *typesys.Type) bool {
	if t == nil {
		return false
	}
	if d.parent.IsAssignableTo(t) {
		return true
	}
	for _, i := range d.interfaces {
		if i.IsAssignableTo(t) {
			return true
		}
	}
	return false
}

func (d *descriptor) cast(instance any, to *typesys.Type) (any, error) {
	if instance == nil {
		return nil, NewError(CodeInvalidCast, "instance is nil")
	}
	if to == nil {
		return nil, NewError(CodeInvalidCast, "target type is nil")
	}
	if obj, ok := instance.(*Object); ok {
		if obj == nil {
			return nil, NewError(CodeInvalidCast, "instance is nil")
		}
		if obj.Implements(to) {
			return obj, nil
		}
		return nil, Errorf(CodeInvalidCast, "proxy %s does not implement %s", obj.typ.Name(), to).
			WithDetail("type", to.Path())
	}
	if to.RType != nil && reflect.TypeOf(instance).AssignableTo(to.RType) {
		return instance, nil
	}
	return nil, Errorf(CodeInvalidCast, "%T cannot be used as %s", instance, to).
		WithDetail("type", to.Path())
}
