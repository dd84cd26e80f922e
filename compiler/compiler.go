package compiler

import (
	"context"
	"os"

	"github.com/samber/lo"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/isac/compiler/asm"
	"github.com/slowlang/isac/compiler/ast"
	"github.com/slowlang/isac/compiler/back"
	"github.com/slowlang/isac/compiler/format"
	"github.com/slowlang/isac/compiler/front"
	"github.com/slowlang/isac/compiler/isa"
	"github.com/slowlang/isac/compiler/opt"
)

type Options struct {
	Optimize bool
	Labels   format.Labels
	Header   bool
}

func DefaultOptions() Options {
	return Options{
		Optimize: true,
		Labels:   format.LabelsAll,
		Header:   true,
	}
}

// CompileFile compiles source files together into one listing.
func CompileFile(ctx context.Context, d *isa.Dialect, opts Options, names ...string) (obj []byte, err error) {
	st := front.New()

	for _, name := range names {
		text, err := os.ReadFile(name)
		if err != nil {
			return nil, errors.Wrap(err, "read file")
		}

		tlog.SpanFromContext(ctx).Printw("read file", "size", len(text), "name", name)

		st.AddFile(ctx, name, text)
	}

	return compile(ctx, d, opts, st)
}

func Compile(ctx context.Context, d *isa.Dialect, opts Options, name string, text []byte) (obj []byte, err error) {
	st := front.New()

	st.AddFile(ctx, name, text)

	return compile(ctx, d, opts, st)
}

// ParseFile parses source files without compiling them.
func ParseFile(ctx context.Context, names ...string) (*ast.Program, error) {
	st := front.New()

	for _, name := range names {
		text, err := os.ReadFile(name)
		if err != nil {
			return nil, errors.Wrap(err, "read file")
		}

		st.AddFile(ctx, name, text)
	}

	p, err := st.Parse(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "parse text")
	}

	return p, nil
}

func compile(ctx context.Context, d *isa.Dialect, opts Options, st *front.State) (obj []byte, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "compiler: compile", "dialect", d.Name, "optimize", opts.Optimize)
	defer tr.Finish("err", &err)

	p, err := st.Parse(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "parse text")
	}

	code, err := back.New(d).CompileProgram(ctx, p)
	if err != nil {
		return nil, errors.Wrap(err, "lower")
	}

	entries := lo.Map(p.Funcs, func(f *ast.Func, _ int) asm.Label { return asm.Label(f.Name) })

	if opts.Optimize {
		var stats opt.Stats

		before := len(code)
		code, stats = opt.Optimize(ctx, d, code, entries...)

		tr.Printw("optimized", "before", before, "after", len(code), "stats", stats)
	}

	lopts := format.ListingOptions{
		Labels: opts.Labels,
		Keep:   entries,
	}

	if opts.Header {
		lopts.Header = "compiled for " + d.Name
	}

	obj, err = format.Listing(ctx, nil, d, code, lopts)
	if err != nil {
		return nil, errors.Wrap(err, "format")
	}

	return obj, nil
}
