package typesys

import (
	"fmt"
	"reflect"
)

// ObjectPackage is the package path of the common root type.
const ObjectPackage = "github.com/broady/dynproxy/typesys"

// Object is the common root of every class and the parent of every interface
// proxy. Its virtual members are always candidates for interception.
var Object = &Type{
	Package: ObjectPackage,
	Name:    "Object",
	Kind:    KindClass,
	Members: []*Member{
		{
			Name:    "Equals",
			Kind:    MemberMethod,
			Params:  []Param{P("other", "any")},
			Results: []Param{R("bool")},
			Virtual: true,
			Impl:    objectEquals,
		},
		{
			Name:    "HashCode",
			Kind:    MemberMethod,
			Results: []Param{R("int")},
			Virtual: true,
			Impl:    objectHashCode,
		},
		{
			Name:    "String",
			Kind:    MemberMethod,
			Results: []Param{R("string")},
			Virtual: true,
			Impl:    objectString,
		},
	},
	Constructors: []*Constructor{{
		New: func([]any) (any, error) { return nil, nil },
	}},
}

func init() {
	assignIDs(Object)
	Object.serial = serials.Add(1)
	Object.registered = true
}

func objectEquals(recv Receiver, args []any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("Equals: expected 1 argument, got %d", len(args))
	}
	return args[0] != nil && args[0] == recv.Self(), nil
}

func objectHashCode(recv Receiver, _ []any) (any, error) {
	v := reflect.ValueOf(recv.Self())
	if v.Kind() != reflect.Pointer {
		return 0, nil
	}
	return int(v.Pointer()), nil
}

func objectString(recv Receiver, _ []any) (any, error) {
	if s, ok := recv.State().(fmt.Stringer); ok {
		return s.String(), nil
	}
	return fmt.Sprintf("%T", recv.Self()), nil
}
