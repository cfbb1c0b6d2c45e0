package provider

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/broady/dynproxy"
	"github.com/broady/dynproxy/typesys"
)

// ReflectionProvider builds types from runtime reflection.
//
// Go interfaces become interface types. Struct types become classes whose
// exported pointer methods are virtual members; their bodies call the method
// on the proxy's base state, which is a *T created by a constructor.
//
// Reflection flattens embedded interfaces. When one root interface's method
// set strictly contains another's, the smaller one is treated as embedded and
// its methods are attributed to it.
type ReflectionProvider struct{}

// ReflectionInputOptions configures reflection-based type extraction.
type ReflectionInputOptions struct {
	// RootTypes are interface, struct or pointer-to-struct types,
	// e.g. reflect.TypeFor[io.Reader]().
	RootTypes []reflect.Type

	// Constructors are functions returning *T, or (*T, error), for a root
	// struct T. A struct without constructors gets one returning new(T).
	Constructors []any
}

// BuildTypes converts the root types. Interfaces come first in the result so
// classes can implement them.
func (p *ReflectionProvider) BuildTypes(ctx context.Context, opts ReflectionInputOptions) (*Result, error) {
	if len(opts.RootTypes) == 0 {
		return nil, fmt.Errorf("no root types provided")
	}

	b := &reflectionBuilder{
		result: &Result{},
		types:  make(map[reflect.Type]*typesys.Type),
		ctors:  make(map[reflect.Type][]*typesys.Constructor),
	}

	var ifaces, structs []reflect.Type
	for _, t := range opts.RootTypes {
		for t.Kind() == reflect.Pointer {
			t = t.Elem()
		}
		switch t.Kind() {
		case reflect.Interface:
			ifaces = append(ifaces, t)
		case reflect.Struct:
			structs = append(structs, t)
		default:
			return nil, fmt.Errorf("unsupported root type %s: must be an interface or struct", t)
		}
	}

	for _, fn := range opts.Constructors {
		if err := b.addConstructor(fn); err != nil {
			return nil, err
		}
	}

	// Smaller method sets first, so candidates for embedding already exist.
	slices.SortStableFunc(ifaces, func(a, b reflect.Type) int { return a.NumMethod() - b.NumMethod() })
	for _, t := range ifaces {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		b.buildInterface(t, ifaces)
	}
	for _, t := range structs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		b.buildClass(t, ifaces)
	}
	return b.result, nil
}

type reflectionBuilder struct {
	result *Result
	types  map[reflect.Type]*typesys.Type
	ctors  map[reflect.Type][]*typesys.Constructor
}

func (b *reflectionBuilder) buildInterface(t reflect.Type, roots []reflect.Type) {
	if _, ok := b.types[t]; ok {
		return
	}
	name, arity := splitGenericName(t.Name())
	typ := &typesys.Type{
		Package:    t.PkgPath(),
		Name:       name,
		Kind:       typesys.KindInterface,
		TypeParams: arity,
		RType:      t,
	}

	inherited := make(map[string]bool)
	for _, o := range roots {
		if o == t || o.NumMethod() >= t.NumMethod() || !t.Implements(o) {
			continue
		}
		if embedded, ok := b.types[o]; ok {
			typ.Interfaces = append(typ.Interfaces, embedded)
			for i := range o.NumMethod() {
				inherited[o.Method(i).Name] = true
			}
		}
	}

	for i := range t.NumMethod() {
		m := t.Method(i)
		if inherited[m.Name] {
			continue
		}
		member := &typesys.Member{Name: m.Name, Kind: typesys.MemberMethod, Abstract: true}
		member.Params, member.Results = signatureOf(m.Type, 0)
		typ.Members = append(typ.Members, member)
	}
	if t.NumMethod() == 0 {
		b.result.AddWarning(Warning{
			Code:     "EMPTY_INTERFACE",
			Message:  fmt.Sprintf("interface %s has no methods", t),
			TypeName: name,
		})
	}

	b.types[t] = typ
	b.result.add(typ)
}

func (b *reflectionBuilder) buildClass(t reflect.Type, roots []reflect.Type) {
	if _, ok := b.types[t]; ok {
		return
	}
	name, arity := splitGenericName(t.Name())
	ptr := reflect.PointerTo(t)
	typ := &typesys.Type{
		Package:    t.PkgPath(),
		Name:       name,
		Kind:       typesys.KindClass,
		TypeParams: arity,
		RType:      t,
	}

	for _, i := range roots {
		if ptr.Implements(i) {
			typ.Interfaces = append(typ.Interfaces, b.types[i])
		}
	}

	for i := range ptr.NumMethod() {
		m := ptr.Method(i)
		member := &typesys.Member{
			Name:    m.Name,
			Kind:    typesys.MemberMethod,
			Virtual: true,
			Impl:    dynproxy.MethodImpl(m.Name),
		}
		// m.Type includes the receiver.
		member.Params, member.Results = signatureOf(m.Type, 1)
		if o := typesys.Object.Method(m.Name); o != nil && o.Signature() == member.Signature() {
			typesys.Override()(member)
		}
		typ.Members = append(typ.Members, member)
	}
	if ptr.NumMethod() == 0 {
		b.result.AddWarning(Warning{
			Code:     "NO_METHODS",
			Message:  fmt.Sprintf("struct %s has no exported methods", t),
			TypeName: name,
		})
	}

	typ.Constructors = b.ctors[t]
	if len(typ.Constructors) == 0 {
		typ.Constructors = []*typesys.Constructor{{
			New: func([]any) (any, error) { return reflect.New(t).Interface(), nil },
		}}
	}

	b.types[t] = typ
	b.result.add(typ)
}

// addConstructor records fn as a constructor of the struct its first result
// points to.
func (b *reflectionBuilder) addConstructor(fn any) error {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func {
		return fmt.Errorf("constructor %T is not a function", fn)
	}
	ft := v.Type()
	withErr := ft.NumOut() == 2 && ft.Out(1) == errorType
	if ft.NumOut() != 1 && !withErr {
		return fmt.Errorf("constructor %s must return *T or (*T, error)", ft)
	}
	out := ft.Out(0)
	if out.Kind() != reflect.Pointer || out.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("constructor %s must return a pointer to a struct", ft)
	}

	params := make([]typesys.Param, ft.NumIn())
	for i := range ft.NumIn() {
		in := ft.In(i)
		params[i] = typesys.Param{
			Name:  fmt.Sprintf("p%d", i),
			Type:  typeString(in),
			RType: in,
		}
	}
	if ft.IsVariadic() {
		markVariadic(params)
	}

	b.ctors[out.Elem()] = append(b.ctors[out.Elem()], &typesys.Constructor{
		Params: params,
		New: func(args []any) (any, error) {
			in := make([]reflect.Value, len(args))
			for i, arg := range args {
				pt := ft.In(min(i, ft.NumIn()-1))
				if ft.IsVariadic() && i >= ft.NumIn()-1 {
					pt = pt.Elem()
				}
				if arg == nil {
					in[i] = reflect.Zero(pt)
				} else {
					in[i] = reflect.ValueOf(arg)
				}
			}
			res := v.Call(in)
			if withErr && !res[1].IsNil() {
				return nil, res[1].Interface().(error)
			}
			return res[0].Interface(), nil
		},
	})
	return nil
}

var (
	errorType   = reflect.TypeFor[error]()
	contextType = reflect.TypeFor[context.Context]()
)

// signatureOf converts the parameters of ft from index skip on, dropping a
// leading context.Context, which callers never pass explicitly.
func signatureOf(ft reflect.Type, skip int) (params, results []typesys.Param) {
	if ft.NumIn() > skip && ft.In(skip) == contextType {
		skip++
	}
	for i := skip; i < ft.NumIn(); i++ {
		in := ft.In(i)
		params = append(params, typesys.Param{
			Name:  fmt.Sprintf("p%d", i-skip),
			Type:  typeString(in),
			RType: in,
		})
	}
	if ft.IsVariadic() && len(params) > 0 {
		markVariadic(params)
	}
	for i := range ft.NumOut() {
		results = append(results, typesys.Param{Type: typeString(ft.Out(i)), RType: ft.Out(i)})
	}
	return params, results
}

// markVariadic marks the last parameter variadic and spells it by its
// element type, as source does ("...int"). RType stays the slice type.
func markVariadic(params []typesys.Param) {
	last := &params[len(params)-1]
	last.Variadic = true
	last.Type = typeString(last.RType.Elem())
}

// typeString spells t the way Go source does, with package names rather
// than paths, e.g. "[]string" or "*time.Location".
func typeString(t reflect.Type) string {
	return t.String()
}

// splitGenericName splits an instantiated type name such as "Box[int,string]"
// into "Box" and its arity, 2.
func splitGenericName(name string) (string, int) {
	open := strings.IndexByte(name, '[')
	if open < 0 || !strings.HasSuffix(name, "]") {
		return name, 0
	}
	args := name[open+1 : len(name)-1]
	arity, depth := 1, 0
	for _, r := range args {
		switch r {
		case '[', '(', '{':
			depth++
		case ']', ')', '}':
			depth--
		case ',':
			if depth == 0 {
				arity++
			}
		}
	}
	return name[:open], arity
}
