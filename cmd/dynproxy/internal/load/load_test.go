package load

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/broady/dynproxy"
)

func TestLoad_Manifest(t *testing.T) {
	s, err := Load(context.Background(), Flags{Manifest: "testdata/calc.yaml", Options: "cache_size=8"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if s.Options.CacheSize != 8 || s.Options.TypeNamePrefix != "Proxy" {
		t.Errorf("unexpected options %+v", s.Options)
	}

	types, err := s.Types([]string{"Calculator", "example.com/calc.Engine"})
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, typ := range types {
		names = append(names, typ.Name)
	}
	if diff := cmp.Diff([]string{"Calculator", "Engine"}, names); diff != "" {
		t.Errorf("resolved types mismatch (-want +got):\n%s", diff)
	}

	if _, err := s.Types([]string{"Calculater"}); err == nil || !strings.Contains(err.Error(), "did you mean Calculator?") {
		t.Errorf("expected a hint, got %v", err)
	}
}

func TestLoad_BadOptions(t *testing.T) {
	_, err := Load(context.Background(), Flags{Manifest: "testdata/calc.yaml", Options: "log_level=loud"}, nil)
	if !errors.Is(err, dynproxy.ErrInvalidConfiguration) {
		t.Errorf("expected invalid_configuration, got %v", err)
	}
}

func TestFlags_WatchDir(t *testing.T) {
	dir, err := Flags{Manifest: "testdata/calc.yaml"}.WatchDir()
	if err != nil || dir != "testdata" {
		t.Errorf("WatchDir = %q, %v", dir, err)
	}

	dir, err = Flags{Package: "testdata"}.WatchDir()
	if err != nil || !filepath.IsAbs(dir) || filepath.Base(dir) != "testdata" {
		t.Errorf("WatchDir = %q, %v", dir, err)
	}

	if _, err := (Flags{Package: "github.com/broady/dynproxy"}).WatchDir(); err == nil {
		t.Error("expected an error for an import path")
	}
}
