package check

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/broady/dynproxy/cmd/dynproxy/internal/inspect"
	"github.com/broady/dynproxy/cmd/dynproxy/internal/load"
)

type Cmd struct {
	Load  load.Flags `embed:""`
	Types []string   `arg:"" optional:"" help:"Types to check (default: all loaded types)."`
}

func (c *Cmd) Run(ctx context.Context) error {
	return c.Check(ctx, os.Stdout)
}

// Check loads the types and generates every proxy type without writing
// anything. It fails when a type cannot be proxied.
func (c *Cmd) Check(ctx context.Context, w io.Writer) error {
	s, err := load.Load(ctx, c.Load, c.Types)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "✓ Loaded %d types\n", len(s.Result.Types))

	report, err := inspect.BuildReport(ctx, s, c.Types, nil)
	if err != nil {
		return err
	}
	var members, excluded int
	for _, p := range report.Proxies {
		members += len(p.Members)
		excluded += len(p.Excluded)
	}
	for _, warn := range report.Warnings {
		fmt.Fprintf(w, "! %s: %s\n", warn.TypeName, warn.Message)
	}

	failed := report.Failed()
	for _, p := range failed {
		fmt.Fprintf(w, "✗ %s: %s\n", p.Type, p.Error)
	}
	fmt.Fprintf(w, "✓ %d proxy types, %d members, %d excluded\n", len(report.Proxies)-len(failed), members, excluded)
	if len(failed) > 0 {
		return fmt.Errorf("%d of %d types cannot be proxied", len(failed), len(report.Proxies))
	}
	return nil
}
