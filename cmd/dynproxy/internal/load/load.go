// Package load builds the type universe and factory the CLI commands share.
package load

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/broady/dynproxy"
	"github.com/broady/dynproxy/provider"
	"github.com/broady/dynproxy/typesys"
)

// Flags select where types come from and how the factory is configured.
type Flags struct {
	Package  string `help:"Go package to load types from." short:"p" default:"."`
	Manifest string `help:"YAML manifest to load types from instead of Go source." short:"m" type:"existingfile"`
	Options  string `help:"Factory options as a query string, e.g. log_level=debug." env:"DYNPROXY_OPTIONS"`
}

// Session is a loaded universe with a configured factory.
type Session struct {
	Result  *provider.Result
	Factory *dynproxy.Factory
	Options dynproxy.Options
	Logger  *slog.Logger
}

// Load parses the options, builds the types and registers them in a fresh
// universe. roots names the types needed from Go source; a manifest always
// contributes all of its types.
func Load(ctx context.Context, f Flags, roots []string) (*Session, error) {
	opts, err := dynproxy.ParseOptions(f.Options)
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: opts.Level()}))

	var result *provider.Result
	if f.Manifest != "" {
		result, err = (&provider.ManifestProvider{}).BuildTypes(ctx, provider.ManifestInputOptions{Path: f.Manifest})
	} else {
		result, err = (&provider.SourceProvider{}).BuildTypes(ctx, provider.SourceInputOptions{
			Packages:  []string{f.Package},
			RootTypes: roots,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("load types: %w", err)
	}
	for _, w := range result.Warnings {
		logger.WarnContext(ctx, w.Message, slog.String("code", w.Code), slog.String("type", w.TypeName))
	}
	if err := result.Register(typesys.NewUniverse()); err != nil {
		return nil, fmt.Errorf("register types: %w", err)
	}

	return &Session{
		Result:  result,
		Factory: dynproxy.NewFactory().WithOptions(opts).WithLogger(logger),
		Options: opts,
		Logger:  logger,
	}, nil
}

// Types resolves names against the loaded types.
func (s *Session) Types(names []string) ([]*typesys.Type, error) {
	out := make([]*typesys.Type, 0, len(names))
	for _, name := range names {
		t, err := s.Result.Type(name)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// WatchDir returns the directory whose changes affect the loaded types.
func (f Flags) WatchDir() (string, error) {
	if f.Manifest != "" {
		return filepath.Dir(f.Manifest), nil
	}
	dir, err := filepath.Abs(f.Package)
	if err != nil {
		return "", err
	}
	if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
		return "", fmt.Errorf("watching needs a package directory, got %q", f.Package)
	}
	return dir, nil
}
