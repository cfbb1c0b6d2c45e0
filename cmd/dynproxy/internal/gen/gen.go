package gen

import (
	"context"
	"fmt"
	"go/token"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/broady/dynproxy/cmd/dynproxy/internal/load"
	"github.com/broady/dynproxy/gosrc"
	"github.com/broady/dynproxy/sink"
)

type Cmd struct {
	Load        load.Flags    `embed:""`
	Out         string        `arg:"" help:"Output directory for generated facades."`
	Types       []string      `help:"Types to generate proxies for." short:"t" required:""`
	Implements  []string      `help:"Additional interfaces every proxy implements." short:"i"`
	PackageName string        `help:"Package name of generated files." name:"package-name" default:"proxies"`
	Watch       bool          `help:"Watch for changes and regenerate." short:"w"`
	Debounce    time.Duration `help:"Quiet period before regenerating in watch mode." default:"200ms"`
}

func (c *Cmd) Run(ctx context.Context) error {
	if err := c.Generate(ctx, os.Stdout); err != nil {
		return err
	}
	if !c.Watch {
		return nil
	}
	return c.watch(ctx, os.Stdout)
}

// Generate loads the types and writes one facade per requested type.
func (c *Cmd) Generate(ctx context.Context, w io.Writer) error {
	if !token.IsIdentifier(c.PackageName) {
		return fmt.Errorf("invalid package name %q", c.PackageName)
	}

	roots := append(append([]string(nil), c.Types...), c.Implements...)
	s, err := load.Load(ctx, c.Load, roots)
	if err != nil {
		return err
	}
	types, err := s.Types(c.Types)
	if err != nil {
		return err
	}
	extras, err := s.Types(c.Implements)
	if err != nil {
		return err
	}

	// Resolve output directory to absolute path
	outDir, err := filepath.Abs(c.Out)
	if err != nil {
		return fmt.Errorf("resolve output path: %w", err)
	}

	f := s.Factory.WithBackend(&gosrc.Backend{
		Sink:    sink.NewFilesystemSink(outDir),
		Package: c.PackageName,
		Logger:  s.Logger,
	})
	for _, t := range types {
		h, err := f.For(t).Implements(extras...).Type(ctx)
		if err != nil {
			return fmt.Errorf("%s: %w", t.Path(), err)
		}
		fmt.Fprintf(w, "✓ %s\n", gosrc.String(h))
	}
	return nil
}
