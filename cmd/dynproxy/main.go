package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/alecthomas/kong"

	"github.com/broady/dynproxy/cmd/dynproxy/internal/check"
	"github.com/broady/dynproxy/cmd/dynproxy/internal/gen"
	"github.com/broady/dynproxy/cmd/dynproxy/internal/inspect"
)

type CLI struct {
	Version VersionCmd  `cmd:"" help:"Print version information."`
	Gen     gen.Cmd     `cmd:"" help:"Generate typed Go facades for proxy types."`
	Inspect inspect.Cmd `cmd:"" help:"Print the member sets of proxy types."`
	Check   check.Cmd   `cmd:"" help:"Validate that types can be proxied without generating files."`
}

type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Println(Version())
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cli := &CLI{}
	kctx := kong.Parse(cli,
		kong.Name("dynproxy"),
		kong.Description("Generate and inspect dynamic proxy types."),
		kong.UsageOnError(),
		kong.BindTo(ctx, (*context.Context)(nil)),
	)
	err := kctx.Run()
	kctx.FatalIfErrorf(err)
}
