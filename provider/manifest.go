package provider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-playground/validator/v10"
	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"

	"github.com/broady/dynproxy/typesys"
)

// ManifestMajor is the manifest format major version this package reads.
const ManifestMajor = "v1"

// Manifest describes types by hand, for code that is not available as Go
// source or runtime types.
//
//	version: v1.0.0
//	package: example.com/shop
//	types:
//	  - name: Repository
//	    kind: interface
//	    members:
//	      - name: Get
//	        params: [{name: id, type: string}]
//	        results: [string, error]
//	      - name: Count
//	        kind: property
//	        type: int
type Manifest struct {
	Version string          `yaml:"version" validate:"required,gosemver"`
	Package string          `yaml:"package" validate:"required"`
	Types   []*ManifestType `yaml:"types" validate:"required,min=1,dive"`
}

// ManifestType is one type of a [Manifest].
type ManifestType struct {
	Name       string            `yaml:"name" validate:"required,alphanum"`
	Kind       string            `yaml:"kind" validate:"required,oneof=interface class"`
	Sealed     bool              `yaml:"sealed"`
	Abstract   bool              `yaml:"abstract"`
	Generic    int               `yaml:"generic" validate:"gte=0"`
	Extends    string            `yaml:"extends"`
	Implements []string          `yaml:"implements"`
	Members    []*ManifestMember `yaml:"members" validate:"dive"`
}

// ManifestMember is one member of a [ManifestType]. Properties and events
// expand into their accessors.
type ManifestMember struct {
	Name           string          `yaml:"name" validate:"required,alphanum"`
	Kind           string          `yaml:"kind" validate:"omitempty,oneof=method property event"`
	Type           string          `yaml:"type"`
	Params         []ManifestParam `yaml:"params" validate:"dive"`
	Results        []string        `yaml:"results"`
	Generic        int             `yaml:"generic" validate:"gte=0"`
	Static         bool            `yaml:"static"`
	NonVirtual     bool            `yaml:"nonVirtual"`
	Sealed         bool            `yaml:"sealed"`
	Abstract       bool            `yaml:"abstract"`
	Override       bool            `yaml:"override"`
	NonIntercepted bool            `yaml:"nonIntercepted"`
}

// ManifestParam is a member parameter.
type ManifestParam struct {
	Name     string `yaml:"name" validate:"required"`
	Type     string `yaml:"type" validate:"required"`
	Variadic bool   `yaml:"variadic"`
}

var manifestValidate = validator.New()

func init() {
	// Go module style versions carry a "v" prefix, which validator's own
	// semver tag rejects.
	manifestValidate.RegisterValidation("gosemver", func(fl validator.FieldLevel) bool {
		return semver.IsValid(fl.Field().String())
	})
}

// ParseManifest decodes and validates a YAML manifest. Unknown fields are
// rejected.
func ParseManifest(r io.Reader) (*Manifest, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var m Manifest
	if err := dec.Decode(&m); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty manifest")
		}
		return nil, fmt.Errorf("decoding manifest: %w", err)
	}
	if err := manifestValidate.Struct(&m); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}
	if semver.Major(m.Version) != ManifestMajor {
		return nil, fmt.Errorf("unsupported manifest version %s: want %s.x.y", m.Version, ManifestMajor)
	}
	for _, t := range m.Types {
		for _, mm := range t.Members {
			if (mm.Kind == "property" || mm.Kind == "event") && mm.Type == "" {
				return nil, fmt.Errorf("invalid manifest: %s.%s: %s needs a type", t.Name, mm.Name, mm.Kind)
			}
		}
	}
	return &m, nil
}

// ManifestProvider builds types from a [Manifest].
type ManifestProvider struct{}

// ManifestInputOptions configures manifest-based type extraction.
type ManifestInputOptions struct {
	// Path is the manifest file. Ignored when Data is set.
	Path string

	// Data is the manifest content.
	Data []byte

	// Bodies attaches base implementations to members, keyed by
	// "Type.Member" (the Go method name, e.g. "Counter.SetCount").
	Bodies map[string]typesys.Impl
}

// BuildTypes reads the manifest and converts its types. Types may refer to
// each other in any order.
func (p *ManifestProvider) BuildTypes(ctx context.Context, opts ManifestInputOptions) (*Result, error) {
	data := opts.Data
	if data == nil {
		if opts.Path == "" {
			return nil, fmt.Errorf("no manifest specified")
		}
		var err error
		if data, err = os.ReadFile(opts.Path); err != nil {
			return nil, err
		}
	}
	m, err := ParseManifest(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &Result{}
	byName := make(map[string]*typesys.Type, len(m.Types))
	names := make([]string, 0, len(m.Types))
	for _, mt := range m.Types {
		if _, dup := byName[mt.Name]; dup {
			return nil, fmt.Errorf("type %s declared twice", mt.Name)
		}
		t := &typesys.Type{
			Package:    m.Package,
			Name:       mt.Name,
			Kind:       typesys.KindClass,
			Sealed:     mt.Sealed,
			Abstract:   mt.Abstract,
			TypeParams: mt.Generic,
		}
		if mt.Kind == "interface" {
			t.Kind = typesys.KindInterface
		}
		byName[mt.Name] = t
		names = append(names, mt.Name)
	}
	resolve := func(name string) (*typesys.Type, error) {
		if t, ok := byName[name]; ok {
			return t, nil
		}
		return nil, notFound(name, names)
	}

	used := make(map[string]bool)
	for _, mt := range m.Types {
		t := byName[mt.Name]
		if mt.Extends != "" {
			if t.Parent, err = resolve(mt.Extends); err != nil {
				return nil, fmt.Errorf("%s extends: %w", mt.Name, err)
			}
		}
		for _, name := range mt.Implements {
			i, err := resolve(name)
			if err != nil {
				return nil, fmt.Errorf("%s implements: %w", mt.Name, err)
			}
			t.Interfaces = append(t.Interfaces, i)
		}
		for _, mm := range mt.Members {
			for _, member := range expandMember(t, mm) {
				key := mt.Name + "." + member.MethodName()
				if body, ok := opts.Bodies[key]; ok {
					member.Impl = body
					member.Abstract = false
					used[key] = true
				}
				t.Members = append(t.Members, member)
			}
		}
		result.add(t)
	}
	for key := range opts.Bodies {
		if !used[key] {
			return nil, fmt.Errorf("body for %s matches no member", key)
		}
	}
	return result, nil
}

// expandMember converts mm into one member, or two accessors for properties
// and events.
func expandMember(t *typesys.Type, mm *ManifestMember) []*typesys.Member {
	base := func(kind typesys.MemberKind) *typesys.Member {
		m := &typesys.Member{
			Name:           mm.Name,
			Kind:           kind,
			Static:         mm.Static,
			Virtual:        !t.IsInterface() && !mm.Static && !mm.NonVirtual,
			Sealed:         mm.Sealed,
			NonIntercepted: mm.NonIntercepted,
			GenericArity:   mm.Generic,
		}
		// Without a body, interface members and abstract class members are
		// abstract.
		m.Abstract = !mm.Static && (t.IsInterface() || mm.Abstract)
		if mm.Override {
			typesys.Override()(m)
		}
		return m
	}

	switch mm.Kind {
	case "property":
		get, set := base(typesys.MemberGetter), base(typesys.MemberSetter)
		get.Results = []typesys.Param{typesys.R(mm.Type)}
		set.Params = []typesys.Param{typesys.P("value", mm.Type)}
		return []*typesys.Member{get, set}
	case "event":
		add, remove := base(typesys.MemberEventAdd), base(typesys.MemberEventRemove)
		add.Params = []typesys.Param{typesys.P("handler", mm.Type)}
		remove.Params = []typesys.Param{typesys.P("handler", mm.Type)}
		return []*typesys.Member{add, remove}
	default:
		m := base(typesys.MemberMethod)
		for _, p := range mm.Params {
			m.Params = append(m.Params, typesys.Param{Name: p.Name, Type: p.Type, Variadic: p.Variadic})
		}
		for _, r := range mm.Results {
			m.Results = append(m.Results, typesys.R(r))
		}
		return []*typesys.Member{m}
	}
}
