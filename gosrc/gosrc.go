// Package gosrc renders typed Go facades for generated proxy types.
//
// A facade is a small struct wrapping a [*dynproxy.Object] with one method per
// intercepted member. Member ids are emitted as literals, so calls go straight
// to the proxy's dispatch table without name lookups:
//
//	calc := proxies.NewProxyCalculator(obj)
//	sum, err := calc.Add(ctx, 2, 3)
package gosrc

import (
	"bytes"
	"context"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"go/types"
	"log/slog"
	"strconv"

	"github.com/dave/jennifer/jen"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/broady/dynproxy"
	"github.com/broady/dynproxy/sink"
	"github.com/broady/dynproxy/typesys"
)

const (
	dynproxyPath = "github.com/broady/dynproxy"
	typesysPath  = "github.com/broady/dynproxy/typesys"
)

// DefaultPackage is the package name of rendered files when none is set.
const DefaultPackage = "proxies"

// Backend is a [dynproxy.Backend] that emits types with Next and renders a
// facade for each of them into Sink.
type Backend struct {
	// Next emits the runtime type. Nil means [dynproxy.DispatchBackend].
	Next dynproxy.Backend

	// Sink receives one file per type. Nil renders nothing.
	Sink sink.Sink

	// Package is the package name of rendered files.
	Package string

	// Logger receives debug logs about rendered files. Nil means slog.Default().
	Logger *slog.Logger
}

var _ dynproxy.Backend = (*Backend)(nil)

// Emit emits the type and writes its facade. A rendering or write failure
// fails the emission, so nothing is cached for the descriptor.
func (b *Backend) Emit(ctx context.Context, req dynproxy.EmitRequest) (dynproxy.TypeHandle, error) {
	next := b.Next
	if next == nil {
		next = dynproxy.DispatchBackend{}
	}
	h, err := next.Emit(ctx, req)
	if err != nil {
		return nil, err
	}
	if b.Sink == nil {
		return h, nil
	}

	src, err := Render(b.Package, h)
	if err != nil {
		return nil, dynproxy.Errorf(dynproxy.CodeInternal, "rendering %s: %v", h.Name(), err)
	}
	path := FileName(h.Name())
	if err := b.Sink.WriteFile(ctx, path, src); err != nil {
		return nil, err
	}

	logger := b.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.DebugContext(ctx, "proxy source rendered",
		slog.String("type", h.Name()),
		slog.String("path", path),
		slog.Int("bytes", len(src)))
	return h, nil
}

// FileName returns the file a facade for the type name is written to,
// e.g. "proxycalculator.go".
func FileName(typeName string) string {
	return cases.Lower(language.Und).String(typeName) + ".go"
}

// Render returns the formatted source of the facade for h.
func Render(pkg string, h dynproxy.TypeHandle) ([]byte, error) {
	if pkg == "" {
		pkg = DefaultPackage
	}
	r := &renderer{
		name:  h.Name(),
		set:   h.Members(),
		title: cases.Title(language.Und, cases.NoLower),
	}
	r.assignNames()

	f := jen.NewFile(pkg)
	f.HeaderComment("Code generated by dynproxy. DO NOT EDIT.")
	r.renderType(f, h.Descriptor())
	r.renderIDs(f)
	for i, e := range r.set.Members {
		r.renderMethod(f, i, e)
	}

	var buf bytes.Buffer
	if err := f.Render(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type renderer struct {
	name  string
	set   *dynproxy.MemberSet
	title cases.Caser
	names []string // facade method name per member
}

func (r *renderer) renderType(f *jen.File, d dynproxy.ProxyDescriptor) {
	f.Commentf("%s is a typed facade over a proxy of %s.", r.name, d.DeclaringType().Path())
	if ifaces := d.InterfaceTypes(); len(ifaces) > 0 {
		f.Comment("It implements:")
		for _, iface := range ifaces {
			f.Commentf("  - %s", iface.Path())
		}
	}
	if len(r.set.Excluded) > 0 {
		f.Comment("Members called without interception:")
		for _, x := range r.set.Excluded {
			f.Commentf("  - %s (%s)", typesys.FullName(x.Member), x.Reason)
		}
	}
	f.Type().Id(r.name).Struct(
		jen.Id("Object").Op("*").Qual(dynproxyPath, "Object"),
	)
	f.Line()
	f.Commentf("New%s wraps obj, which must be an instance of the %s proxy type.", r.name, r.name)
	f.Func().Id("New"+r.name).Params(jen.Id("obj").Op("*").Qual(dynproxyPath, "Object")).Id(r.name).Block(
		jen.Return(jen.Id(r.name).Values(jen.Dict{jen.Id("Object"): jen.Id("obj")})),
	)
}

func (r *renderer) idVar(i int) string {
	return "id" + r.name + strconv.Itoa(i)
}

func (r *renderer) renderIDs(f *jen.File) {
	defs := make([]jen.Code, len(r.set.Members))
	for i, e := range r.set.Members {
		id := e.ID
		defs[i] = jen.Id(r.idVar(i)).Op("=").Qual(typesysPath, "MemberID").Values(jen.Dict{
			jen.Id("Type"):      jen.Lit(id.Type),
			jen.Id("Name"):      jen.Lit(id.Name),
			jen.Id("Kind"):      jen.Qual(typesysPath, "Member"+id.Kind.String()),
			jen.Id("Signature"): jen.Lit(id.Signature),
			jen.Id("Ordinal"):   jen.Lit(id.Ordinal),
		})
	}
	f.Var().Defs(defs...)
}

// assignNames picks a unique exported facade method name for every member.
// The first member with a name keeps it; later overloads get the lowest free
// numeric suffix: Print, Print2. Names never collide with other members or
// with the Object field.
func (r *renderer) assignNames() {
	bases := make([]string, len(r.set.Members))
	owner := make(map[string]int)
	taken := map[string]bool{"Object": true}
	for i, e := range r.set.Members {
		bases[i] = r.title.String(e.Member.MethodName())
		if _, ok := owner[bases[i]]; !ok && !taken[bases[i]] {
			owner[bases[i]] = i
		}
	}
	for name := range owner {
		taken[name] = true
	}

	r.names = make([]string, len(bases))
	for i, base := range bases {
		if j, ok := owner[base]; ok && j == i {
			r.names[i] = base
			continue
		}
		for n := 2; ; n++ {
			if name := base + strconv.Itoa(n); !taken[name] {
				taken[name] = true
				r.names[i] = name
				break
			}
		}
	}
}

var reserved = map[string]bool{"p": true, "ctx": true, "args": true, "res": true, "err": true, "v": true, "typeArgs": true}

func (r *renderer) renderMethod(f *jen.File, i int, e *dynproxy.VisitedMember) {
	m := e.Member
	name := r.names[i]

	params := []jen.Code{jen.Id("ctx").Qual("context", "Context")}
	if m.GenericArity > 0 {
		params = append(params, jen.Id("typeArgs").Index().Qual("reflect", "Type"))
	}
	var fixed []jen.Code
	var variadic string
	for j, p := range m.Params {
		pname := p.Name
		if !token.IsIdentifier(pname) || reserved[pname] {
			pname = "arg" + strconv.Itoa(j)
		}
		if p.Variadic {
			variadic = pname
			params = append(params, jen.Id(pname).Op("...").Add(goType(p.Type)))
			continue
		}
		fixed = append(fixed, jen.Id(pname))
		params = append(params, jen.Id(pname).Add(goType(p.Type)))
	}

	result := resultType(m)
	var results []jen.Code
	if result != nil {
		results = append(results, result)
	}
	results = append(results, jen.Error())

	var body []jen.Code
	invoke := "InvokeContext"
	callArgs := []jen.Code{jen.Id("ctx"), jen.Id(r.idVar(i))}
	if m.GenericArity > 0 {
		invoke = "InvokeGeneric"
		callArgs = append(callArgs, jen.Id("typeArgs"))
	}
	if variadic != "" {
		body = append(body,
			jen.Id("args").Op(":=").Index().Id("any").Values(fixed...),
			jen.For(jen.List(jen.Id("_"), jen.Id("v")).Op(":=").Range().Id(variadic)).Block(
				jen.Id("args").Op("=").Append(jen.Id("args"), jen.Id("v")),
			),
		)
		callArgs = append(callArgs, jen.Id("args").Op("..."))
	} else {
		callArgs = append(callArgs, fixed...)
	}
	call := jen.Id("p").Dot("Object").Dot(invoke).Call(callArgs...)

	if result == nil {
		body = append(body,
			jen.List(jen.Id("_"), jen.Err()).Op(":=").Add(call),
			jen.Return(jen.Err()),
		)
	} else {
		body = append(body,
			jen.List(jen.Id("res"), jen.Err()).Op(":=").Add(call),
			jen.If(jen.Err().Op("!=").Nil()).Block(
				jen.Var().Id("zero").Add(result),
				jen.Return(jen.Id("zero"), jen.Err()),
			),
		)
		if isAny(m) {
			body = append(body, jen.Return(jen.Id("res"), jen.Nil()))
		} else {
			body = append(body,
				jen.List(jen.Id("v"), jen.Id("_")).Op(":=").Id("res").Assert(result),
				jen.Return(jen.Id("v"), jen.Nil()),
			)
		}
	}

	f.Commentf("%s calls %s.", name, typesys.FullName(m))
	f.Func().Params(jen.Id("p").Id(r.name)).Id(name).Params(params...).Params(results...).Block(body...)
}

// resultType returns the facade result type of m, or nil when m returns
// nothing but possibly an error. Several results are returned as any.
func resultType(m *typesys.Member) jen.Code {
	rs := m.Results
	if n := len(rs); n > 0 && rs[n-1].Type == "error" {
		rs = rs[:n-1]
	}
	switch len(rs) {
	case 0:
		return nil
	case 1:
		return goType(rs[0].Type)
	default:
		return jen.Id("any")
	}
}

func isAny(m *typesys.Member) bool {
	rs := m.Results
	if n := len(rs); n > 0 && rs[n-1].Type == "error" {
		rs = rs[:n-1]
	}
	return len(rs) > 1 || (len(rs) == 1 && !predeclared(rs[0].Type)) || (len(rs) == 1 && rs[0].Type == "any")
}

// goType returns the Go type for a type spelling. Spellings that only use
// predeclared identifiers are kept; anything referring to other packages or
// type parameters becomes any, since the facade cannot import them.
func goType(spelling string) jen.Code {
	if predeclared(spelling) {
		return jen.Id(spelling)
	}
	return jen.Id("any")
}

func predeclared(spelling string) bool {
	expr, err := parser.ParseExpr(spelling)
	if err != nil {
		return false
	}
	ok := true
	ast.Inspect(expr, func(n ast.Node) bool {
		switch n := n.(type) {
		case *ast.SelectorExpr:
			ok = false
		case *ast.Ident:
			if _, isType := types.Universe.Lookup(n.Name).(*types.TypeName); !isType {
				ok = false
			}
		case *ast.Field:
			// Parameter names in func types are identifiers too.
			if n.Type != nil {
				ast.Inspect(n.Type, func(inner ast.Node) bool {
					if id, isIdent := inner.(*ast.Ident); isIdent {
						if _, isType := types.Universe.Lookup(id.Name).(*types.TypeName); !isType {
							ok = false
						}
					}
					return true
				})
			}
			return false
		}
		return ok
	})
	return ok
}

// String returns a short description of a rendered file for logs and the CLI.
func String(h dynproxy.TypeHandle) string {
	return fmt.Sprintf("%s (%d members, %d excluded) -> %s", h.Name(), h.Members().Len(), len(h.Members().Excluded), FileName(h.Name()))
}
