package provider

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/broady/dynproxy"
	"github.com/broady/dynproxy/typesys"
)

const testdataPkg = "github.com/broady/dynproxy/provider/testdata"

func buildSource(t *testing.T, roots ...string) (*Result, map[string]*typesys.Type) {
	t.Helper()
	provider := &SourceProvider{}
	result, err := provider.BuildTypes(context.Background(), SourceInputOptions{
		Packages:  []string{testdataPkg},
		RootTypes: roots,
	})
	if err != nil {
		t.Fatalf("BuildTypes failed: %v", err)
	}
	if err := result.Register(typesys.NewUniverse()); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	byName := make(map[string]*typesys.Type)
	for _, typ := range result.Types {
		byName[typ.Name] = typ
	}
	return result, byName
}

func TestSourceProvider_Interfaces(t *testing.T) {
	result, types := buildSource(t, "Solid")

	if len(result.Types) != 2 || result.Types[0] != types["Shape"] || result.Types[1] != types["Solid"] {
		t.Fatalf("expected [Shape Solid], got %v", result.Types)
	}

	shape := types["Shape"]
	if !shape.IsInterface() {
		t.Fatal("Shape should be an interface")
	}
	if shape.Method("Area").NonIntercepted {
		t.Error("Area should be intercepted")
	}
	if !shape.Method("Describe").NonIntercepted {
		t.Error("Describe carries the nonintercepted directive")
	}

	solid := types["Solid"]
	if len(solid.Interfaces) != 1 || solid.Interfaces[0] != shape {
		t.Errorf("Solid should embed Shape, got %v", solid.Interfaces)
	}
	volume := solid.Method("Volume")
	if volume == nil {
		t.Fatal("Volume not found")
	}
	want := []typesys.Param{{Name: "scale", Type: "float64", Variadic: true}}
	if diff := cmp.Diff(want, volume.Params); diff != "" {
		t.Errorf("Volume params mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]typesys.Param{{Type: "float64"}, {Type: "error"}}, volume.Results); diff != "" {
		t.Errorf("Volume results mismatch (-want +got):\n%s", diff)
	}
}

func TestSourceProvider_Classes(t *testing.T) {
	_, types := buildSource(t, "Square", "Shape", "Named")
	base, square := types["Base"], types["Square"]

	if square.Parent != base {
		t.Fatalf("Square parent = %v, want Base", square.Parent)
	}
	if !square.Abstract || square.IsInterface() {
		t.Error("Square should be an abstract class")
	}
	if base.Method("internal") != nil {
		t.Error("unexported methods should be skipped")
	}
	if square.Method("Area").Overrides != base.Method("Area") {
		t.Error("Square.Area should override Base.Area")
	}
	if square.Method("String").Overrides != typesys.Object.Method("String") {
		t.Error("Square.String should override Object.String")
	}

	if len(square.Interfaces) != 1 || square.Interfaces[0] != types["Shape"] {
		t.Errorf("Square interfaces = %v, want [Shape]", square.Interfaces)
	}
	if len(base.Interfaces) != 1 || base.Interfaces[0] != types["Named"] {
		t.Errorf("Base interfaces = %v, want [Named]", base.Interfaces)
	}
	if !square.IsAssignableTo(types["Named"]) {
		t.Error("Square should implement Named through Base")
	}
}

type squareTarget struct {
	side float64
}

func (s squareTarget) Area() float64 { return s.side * s.side }

func TestSourceProvider_Proxy(t *testing.T) {
	_, types := buildSource(t, "Square", "Shape")
	f := dynproxy.NewFactory()
	ctx := context.Background()

	shape, err := f.For(types["Shape"]).Targets(squareTarget{side: 2}).Build(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res, err := shape.Call("Area"); err != nil || res != 4.0 {
		t.Errorf("Area() = %v, %v; want 4", res, err)
	}
	// Describe is not intercepted and has no body.
	if _, err := shape.Call("Describe"); !errors.Is(err, dynproxy.ErrNotImplemented) {
		t.Errorf("expected not_implemented, got %v", err)
	}

	square, err := f.For(types["Square"]).Targets(squareTarget{side: 3}).Build(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res, err := square.Call("Area"); err != nil || res != 9.0 {
		t.Errorf("Area() = %v, %v; want 9", res, err)
	}
	if _, err := square.Call("Name"); !errors.Is(err, dynproxy.ErrNotImplemented) {
		t.Errorf("expected not_implemented for Name, got %v", err)
	}
}

func TestSourceProvider_SealedAndGeneric(t *testing.T) {
	_, types := buildSource(t, "Final", "Box")

	if !types["Final"].Sealed {
		t.Error("Final carries the sealed directive")
	}
	box := types["Box"]
	if box.TypeParams != 1 || box.Path() != testdataPkg+".Box`1" {
		t.Errorf("Box path = %s", box.Path())
	}
	if diff := cmp.Diff([]typesys.Param{{Name: "v", Type: "T"}}, box.Method("Set").Params); diff != "" {
		t.Errorf("Set params mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]typesys.Param{{Type: "T"}}, box.Method("Get").Results); diff != "" {
		t.Errorf("Get results mismatch (-want +got):\n%s", diff)
	}
}

func TestSourceProvider_AllExportedTypes(t *testing.T) {
	_, types := buildSource(t)

	for _, name := range []string{"Shape", "Named", "Solid", "Base", "Square", "Final", "Box"} {
		if types[name] == nil {
			t.Errorf("expected %s to be extracted", name)
		}
	}
	if types["Number"] != nil {
		t.Error("Number is neither an interface nor a struct")
	}
}

func TestSourceProvider_Errors(t *testing.T) {
	tests := []struct {
		name    string
		opts    SourceInputOptions
		wantErr string
	}{
		{"no packages", SourceInputOptions{}, "no packages specified"},
		{
			"unknown root with hint",
			SourceInputOptions{Packages: []string{testdataPkg}, RootTypes: []string{"Sqare"}},
			"did you mean Square?",
		},
		{
			"not a proxyable type",
			SourceInputOptions{Packages: []string{testdataPkg}, RootTypes: []string{"Number"}},
			"not an interface or struct",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := (&SourceProvider{}).BuildTypes(context.Background(), tt.opts)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestSourceProvider_InvalidDirective(t *testing.T) {
	result, _ := buildSource(t, "Shape")

	var found bool
	for _, w := range result.Warnings {
		if w.Code != "INVALID_DIRECTIVE" {
			continue
		}
		found = true
		if w.TypeName != "Reset" || !strings.Contains(w.Message, `unknown directive "//dynproxy:nointercept"`) {
			t.Errorf("unexpected warning %+v", w)
		}
	}
	if !found {
		t.Errorf("expected an INVALID_DIRECTIVE warning, got %+v", result.Warnings)
	}
}
