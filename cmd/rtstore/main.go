// Command rtstore creates and inspects R-tree page files.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kong"
	"go.uber.org/zap"

	"github.com/jobala/rtstore/index"
	"github.com/jobala/rtstore/logging"
	"github.com/jobala/rtstore/settings"
)

type CLI struct {
	Config string `name:"config" short:"c" required:"" help:"Config file" type:"path"`

	Create  CreateCmd  `cmd:"" help:"Create an empty index, replacing any existing page file"`
	Inspect InspectCmd `cmd:"" help:"Print every node reachable from the root"`
	Stat    StatCmd    `cmd:"" help:"Print page layout and tree statistics"`
}

type CreateCmd struct{}

func (c *CreateCmd) Run(a *app) error {
	p, err := index.Create(a.options())
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "created %s (fan-out %d, page %d bytes, leaf block %d bytes)\n",
		a.cfg.Index.Path, p.MaxEntries(), p.PageLen(), p.LeafBlockLen())
	return p.Close()
}

type InspectCmd struct{}

func (c *InspectCmd) Run(a *app) (err error) {
	p, err := index.Open(a.options())
	if err != nil {
		return err
	}
	defer closeIndex(p, &err)

	return index.Inspect(a.out, p)
}

type StatCmd struct{}

func (c *StatCmd) Run(a *app) (err error) {
	p, err := index.Open(a.options())
	if err != nil {
		return err
	}
	defer closeIndex(p, &err)

	s, err := index.Stat(p)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "path:           %s\n", a.cfg.Index.Path)
	fmt.Fprintf(a.out, "fan-out:        %d\n", s.MaxEntries)
	fmt.Fprintf(a.out, "page length:    %d\n", s.PageLen)
	fmt.Fprintf(a.out, "leaf block:     %d (record %d)\n", s.LeafBlockLen, s.RecordWidth)
	fmt.Fprintf(a.out, "file size:      %d\n", s.FileSize)
	fmt.Fprintf(a.out, "root offset:    %d\n", s.Root)
	fmt.Fprintf(a.out, "nodes:          %d internal, %d leaf\n", s.Internal, s.Leaves)
	fmt.Fprintf(a.out, "records:        %d\n", s.Records)
	fmt.Fprintf(a.out, "depth:          %d\n", s.Depth)
	return nil
}

// closeIndex closes p and reports its error unless the command already
// failed.
func closeIndex(p *index.Params, err *error) {
	if cerr := p.Close(); cerr != nil && *err == nil {
		*err = cerr
	}
}

func (a *app) options() index.Options {
	return index.OptionsFromConfig(a.cfg.Index, a.logger)
}

// run parses args and executes the selected command, writing its output to
// out.
func run(args []string, out io.Writer) error {
	var cli CLI
	parser, err := kong.New(&cli,
		kong.Name("rtstore"),
		kong.Description("Disk-backed R-tree page store"),
		kong.UsageOnError(),
		kong.Writers(out, out),
	)
	if err != nil {
		return err
	}

	ctx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	cfg, err := settings.Load(cli.Config)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logger)
	if err != nil {
		return err
	}
	defer logger.Sync()

	return ctx.Run(&app{cfg: cfg, logger: logger, out: out})
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "rtstore: %v\n", err)
		os.Exit(1)
	}
}

type app struct {
	cfg    *settings.Config
	logger *zap.Logger
	out    io.Writer
}
