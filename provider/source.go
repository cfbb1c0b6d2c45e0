package provider

import (
	"context"
	"fmt"
	"go/ast"
	"go/token"
	"go/types"

	"golang.org/x/tools/go/packages"

	"github.com/broady/dynproxy/internal/directive"
	"github.com/broady/dynproxy/typesys"
)

// SourceProvider builds types by analyzing Go source code.
//
// Named interfaces become interface types; embedded interfaces are kept as
// inherited interfaces. Named structs become abstract classes: the first
// embedded struct is the parent, methods declared on the struct are virtual
// members without bodies, so calls reach a target or fail with not
// implemented. A struct implements every converted interface its pointer
// type satisfies.
type SourceProvider struct{}

// SourceInputOptions configures source-based type extraction.
type SourceInputOptions struct {
	// Packages are the Go package patterns to analyze.
	Packages []string

	// RootTypes are the type names to extract (e.g., "Calculator").
	// If empty, all exported interfaces and structs are extracted.
	RootTypes []string

	// Dir is the directory packages are loaded from. Empty means the
	// current directory.
	Dir string
}

// BuildTypes loads the packages and converts the root types and every type
// they reference through embedding.
func (p *SourceProvider) BuildTypes(ctx context.Context, opts SourceInputOptions) (*Result, error) {
	if len(opts.Packages) == 0 {
		return nil, fmt.Errorf("no packages specified")
	}

	cfg := &packages.Config{
		Context: ctx,
		Dir:     opts.Dir,
		Mode: packages.NeedName |
			packages.NeedFiles |
			packages.NeedImports |
			packages.NeedTypes |
			packages.NeedSyntax |
			packages.NeedTypesInfo,
	}
	pkgs, err := packages.Load(cfg, opts.Packages...)
	if err != nil {
		return nil, fmt.Errorf("failed to load packages: %w", err)
	}
	if len(pkgs) == 0 {
		return nil, fmt.Errorf("no packages found")
	}
	for _, pkg := range pkgs {
		if len(pkg.Errors) > 0 {
			return nil, fmt.Errorf("package %s has errors: %v", pkg.PkgPath, pkg.Errors)
		}
	}

	b := &sourceBuilder{
		pkgs:   pkgs,
		result: &Result{},
		types:  make(map[*types.TypeName]*typesys.Type),
		docs:   make(map[token.Pos]*ast.CommentGroup),
	}
	b.indexDocs()

	if len(opts.RootTypes) > 0 {
		for _, name := range opts.RootTypes {
			if err := b.extractRootType(name); err != nil {
				return nil, fmt.Errorf("failed to extract root type %s: %w", name, err)
			}
		}
	} else if err := b.extractAllExportedTypes(); err != nil {
		return nil, fmt.Errorf("failed to extract exported types: %w", err)
	}
	b.linkImplementations()
	return b.result, nil
}

type sourceBuilder struct {
	pkgs   []*packages.Package
	result *Result
	types  map[*types.TypeName]*typesys.Type
	named  []*types.Named // converted types, in result order

	// docs maps the position of a declared name to its doc comment.
	docs map[token.Pos]*ast.CommentGroup
}

func (b *sourceBuilder) indexDocs() {
	for _, pkg := range b.pkgs {
		for _, file := range pkg.Syntax {
			ast.Inspect(file, func(n ast.Node) bool {
				switch decl := n.(type) {
				case *ast.GenDecl:
					for _, spec := range decl.Specs {
						if ts, ok := spec.(*ast.TypeSpec); ok {
							doc := ts.Doc
							if doc == nil {
								doc = decl.Doc
							}
							b.indexDoc(pkg, ts.Name, doc)
						}
					}
				case *ast.FuncDecl:
					b.indexDoc(pkg, decl.Name, decl.Doc)
				case *ast.InterfaceType:
					for _, field := range decl.Methods.List {
						for _, name := range field.Names {
							b.indexDoc(pkg, name, field.Doc)
						}
					}
				}
				return true
			})
		}
	}
}

func (b *sourceBuilder) indexDoc(pkg *packages.Package, name *ast.Ident, doc *ast.CommentGroup) {
	b.docs[name.Pos()] = doc
	if err := directive.Validate(directive.Parse(doc)); err != nil {
		b.result.AddWarning(Warning{
			Code:     "INVALID_DIRECTIVE",
			Message:  fmt.Sprintf("%s: %v", pkg.Fset.Position(doc.Pos()), err),
			TypeName: name.Name,
		})
	}
}

// hasDirective reports whether the doc comment of the object declared at pos
// carries a directive of kind k.
func (b *sourceBuilder) hasDirective(pos token.Pos, k directive.Kind) bool {
	return directive.Has(b.docs[pos], k)
}

func (b *sourceBuilder) extractRootType(name string) error {
	var candidates []string
	for _, pkg := range b.pkgs {
		scope := pkg.Types.Scope()
		if tn, ok := scope.Lookup(name).(*types.TypeName); ok {
			_, err := b.convert(tn)
			return err
		}
		for _, n := range scope.Names() {
			if _, ok := scope.Lookup(n).(*types.TypeName); ok {
				candidates = append(candidates, n)
			}
		}
	}
	return notFound(name, candidates)
}

func (b *sourceBuilder) extractAllExportedTypes() error {
	for _, pkg := range b.pkgs {
		scope := pkg.Types.Scope()
		for _, name := range scope.Names() {
			tn, ok := scope.Lookup(name).(*types.TypeName)
			if !ok || !tn.Exported() || tn.IsAlias() {
				continue
			}
			switch tn.Type().Underlying().(type) {
			case *types.Interface, *types.Struct:
				if _, err := b.convert(tn); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// convert converts a named interface or struct, and the types it embeds.
func (b *sourceBuilder) convert(tn *types.TypeName) (*typesys.Type, error) {
	if t, ok := b.types[tn]; ok {
		return t, nil
	}
	named, ok := types.Unalias(tn.Type()).(*types.Named)
	if !ok {
		return nil, fmt.Errorf("%s is not a named type", tn.Name())
	}
	tn = named.Obj()
	if t, ok := b.types[tn]; ok {
		return t, nil
	}

	typ := &typesys.Type{
		Package:    tn.Pkg().Path(),
		Name:       tn.Name(),
		TypeParams: named.TypeParams().Len(),
	}
	// Registered before recursing, so embedding cycles terminate.
	b.types[tn] = typ

	var err error
	switch u := named.Underlying().(type) {
	case *types.Interface:
		typ.Kind = typesys.KindInterface
		err = b.buildInterface(typ, u)
	case *types.Struct:
		typ.Kind = typesys.KindClass
		typ.Abstract = true
		typ.Sealed = b.hasDirective(tn.Pos(), directive.KindSealed)
		err = b.buildClass(typ, named, u)
	default:
		err = fmt.Errorf("type %s is not an interface or struct", tn.Name())
	}
	if err != nil {
		delete(b.types, tn)
		return nil, err
	}
	b.named = append(b.named, named)
	b.result.add(typ)
	return typ, nil
}

func (b *sourceBuilder) buildInterface(typ *typesys.Type, iface *types.Interface) error {
	for i := range iface.NumEmbeddeds() {
		e := types.Unalias(iface.EmbeddedType(i))
		n, ok := e.(*types.Named)
		if !ok || !types.IsInterface(n) {
			b.result.AddWarning(Warning{
				Code:     "UNSUPPORTED_EMBED",
				Message:  fmt.Sprintf("interface %s embeds %s, which is not a named interface", typ.Name, e),
				TypeName: typ.Name,
			})
			continue
		}
		dep, err := b.convert(n.Obj())
		if err != nil {
			return err
		}
		typ.Interfaces = append(typ.Interfaces, dep)
	}
	for i := range iface.NumExplicitMethods() {
		fn := iface.ExplicitMethod(i)
		if !fn.Exported() {
			continue
		}
		m := b.member(fn)
		m.Abstract = true
		typ.Members = append(typ.Members, m)
	}
	return nil
}

func (b *sourceBuilder) buildClass(typ *typesys.Type, named *types.Named, st *types.Struct) error {
	for i := range st.NumFields() {
		f := st.Field(i)
		if !f.Embedded() {
			continue
		}
		ft := types.Unalias(f.Type())
		if p, ok := ft.(*types.Pointer); ok {
			ft = types.Unalias(p.Elem())
		}
		n, ok := ft.(*types.Named)
		if !ok {
			continue
		}
		switch n.Underlying().(type) {
		case *types.Interface:
			dep, err := b.convert(n.Obj())
			if err != nil {
				return err
			}
			typ.Interfaces = append(typ.Interfaces, dep)
		case *types.Struct:
			if typ.Parent != nil {
				b.result.AddWarning(Warning{
					Code:     "MULTIPLE_EMBEDS",
					Message:  fmt.Sprintf("struct %s embeds more than one struct; only %s is used as parent", typ.Name, typ.Parent.Name),
					TypeName: typ.Name,
				})
				continue
			}
			parent, err := b.convert(n.Obj())
			if err != nil {
				return err
			}
			if parent.Sealed {
				return fmt.Errorf("struct %s embeds sealed %s", typ.Name, parent.Name)
			}
			typ.Parent = parent
		}
	}

	for i := range named.NumMethods() {
		fn := named.Method(i)
		if !fn.Exported() {
			continue
		}
		m := b.member(fn)
		m.Virtual = true
		m.Abstract = true
		if overridesInherited(typ, m) {
			typesys.Override()(m)
		}
		typ.Members = append(typ.Members, m)
	}
	return nil
}

// overridesInherited reports whether m has the shape of a member of one of
// typ's ancestors, Object included.
func overridesInherited(typ *typesys.Type, m *typesys.Member) bool {
	for p := typ.Parent; ; p = p.Parent {
		if p == nil {
			p = typesys.Object
		}
		for _, o := range p.Members {
			if o.Name == m.Name && o.Kind == m.Kind && o.Signature() == m.Signature() {
				return true
			}
		}
		if p == typesys.Object {
			return false
		}
	}
}

func (b *sourceBuilder) member(fn *types.Func) *typesys.Member {
	sig := fn.Type().(*types.Signature)
	m := &typesys.Member{
		Name:           fn.Name(),
		Kind:           typesys.MemberMethod,
		NonIntercepted: b.hasDirective(fn.Pos(), directive.KindNonIntercepted),
	}

	params := sig.Params()
	start := 0
	if params.Len() > 0 && isContext(params.At(0).Type()) {
		start = 1
	}
	for i := start; i < params.Len(); i++ {
		v := params.At(i)
		p := typesys.Param{Name: v.Name(), Type: b.typeString(v.Type())}
		if p.Name == "" || p.Name == "_" {
			p.Name = fmt.Sprintf("p%d", i-start)
		}
		if sig.Variadic() && i == params.Len()-1 {
			p.Variadic = true
			p.Type = b.typeString(v.Type().(*types.Slice).Elem())
		}
		m.Params = append(m.Params, p)
	}
	results := sig.Results()
	for i := range results.Len() {
		m.Results = append(m.Results, typesys.Param{Name: results.At(i).Name(), Type: b.typeString(results.At(i).Type())})
	}
	return m
}

// typeString qualifies types by package name, matching reflect's spelling.
func (b *sourceBuilder) typeString(t types.Type) string {
	return types.TypeString(t, func(p *types.Package) string { return p.Name() })
}

func isContext(t types.Type) bool {
	n, ok := types.Unalias(t).(*types.Named)
	return ok && n.Obj().Pkg() != nil && n.Obj().Pkg().Path() == "context" && n.Obj().Name() == "Context"
}

// linkImplementations adds implements edges from every converted struct to
// every converted interface its pointer type satisfies.
func (b *sourceBuilder) linkImplementations() {
	for _, cn := range b.named {
		class := b.types[cn.Obj()]
		if class.IsInterface() || cn.TypeParams().Len() > 0 {
			continue
		}
		ptr := types.NewPointer(cn)
		for _, in := range b.named {
			iface, ok := in.Underlying().(*types.Interface)
			if !ok || in.TypeParams().Len() > 0 || iface.NumMethods() == 0 {
				continue
			}
			t := b.types[in.Obj()]
			if !class.IsAssignableTo(t) && types.Implements(ptr, iface) {
				class.Interfaces = append(class.Interfaces, t)
			}
		}
	}
}
