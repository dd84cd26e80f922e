package main

import (
	"context"
	"os"

	"nikand.dev/go/cli"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"
	"tlog.app/go/tlog/ext/tlflag"

	"github.com/slowlang/isac/compiler"
	"github.com/slowlang/isac/compiler/format"
	"github.com/slowlang/isac/compiler/isa"
)

func main() {
	parseCmd := &cli.Command{
		Name:        "parse",
		Description: "parse source files and print them back",
		Action:      parseAct,
		Args:        cli.Args{},
	}

	compileCmd := &cli.Command{
		Name:        "compile",
		Description: "compile source files into assembly listing",
		Action:      compileAct,
		Args:        cli.Args{},
		Flags: []*cli.Flag{
			cli.NewFlag("isa", "", "isa dialect specification file"),
			cli.NewFlag("no-opt", false, "disable peephole optimizer"),
			cli.NewFlag("labels", true, "print all labels, only jump targets and function entries otherwise"),
			cli.NewFlag("header", true, "print header comment"),
		},
	}

	dialectCmd := &cli.Command{
		Name:        "dialect",
		Description: "parse isa dialect specifications and print the catalog",
		Action:      dialectAct,
		Args:        cli.Args{},
	}

	app := &cli.Command{
		Name:        "isac",
		Description: "isac compiles small programs for data-driven instruction sets",
		Before:      before,
		Flags: []*cli.Flag{
			cli.NewFlag("log", "stderr?dm", "log output file (or stderr)"),
			cli.NewFlag("verbosity,v", "", "logger verbosity topics"),
			cli.EnvfileFlag,
			cli.HelpFlag,
			cli.FlagfileFlag,
		},
		Commands: []*cli.Command{
			parseCmd,
			compileCmd,
			dialectCmd,
		},
	}

	cli.RunAndExit(app, os.Args, os.Environ())
}

func before(c *cli.Command) error {
	w, err := tlflag.OpenWriter(c.String("log"))
	if err != nil {
		return errors.Wrap(err, "open log file")
	}

	tlog.DefaultLogger = tlog.New(w)

	tlog.SetVerbosity(c.String("verbosity"))

	return nil
}

func parseAct(c *cli.Command) (err error) {
	ctx := context.Background()
	ctx = tlog.ContextWithSpan(ctx, tlog.Root())

	p, err := compiler.ParseFile(ctx, c.Args...)
	if err != nil {
		return errors.Wrap(err, "parse")
	}

	b, err := format.Format(ctx, nil, p)
	if err != nil {
		return errors.Wrap(err, "format")
	}

	_, err = os.Stdout.Write(b)

	return err
}

func compileAct(c *cli.Command) (err error) {
	ctx := context.Background()
	ctx = tlog.ContextWithSpan(ctx, tlog.Root())

	if c.String("isa") == "" {
		return errors.New("--isa is required")
	}

	d, err := isa.ParseFile(ctx, c.String("isa"))
	if err != nil {
		return errors.Wrap(err, "parse isa")
	}

	opts := compiler.DefaultOptions()
	opts.Optimize = !c.Bool("no-opt")
	opts.Header = c.Bool("header")

	if !c.Bool("labels") {
		opts.Labels = format.LabelsUsed
	}

	obj, err := compiler.CompileFile(ctx, d, opts, c.Args...)
	if err != nil {
		return errors.Wrap(err, "compile %v", c.Args)
	}

	_, err = os.Stdout.Write(obj)

	return err
}

func dialectAct(c *cli.Command) (err error) {
	ctx := context.Background()
	ctx = tlog.ContextWithSpan(ctx, tlog.Root())

	var b []byte

	for i, a := range c.Args {
		d, err := isa.ParseFile(ctx, a)
		if err != nil {
			return errors.Wrap(err, "parse %v", a)
		}

		if i != 0 {
			b = append(b, '\n')
		}

		b = format.Dialect(b, d)
	}

	_, err = os.Stdout.Write(b)

	return err
}
