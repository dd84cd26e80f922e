package format

import (
	"context"

	"github.com/samber/lo"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/isac/compiler/asm"
	"github.com/slowlang/isac/compiler/isa"
)

type (
	Labels int

	ListingOptions struct {
		Labels Labels
		Keep   []asm.Label // printed regardless of Labels, function entries usually

		Header string // comment line on top, without comment marker
	}
)

const (
	LabelsAll Labels = iota
	LabelsUsed
)

// Listing renders code as assembly text.
// Labels are flush left, instructions are indented with a tab.
func Listing(ctx context.Context, b []byte, d *isa.Dialect, code []asm.Elem, opts ListingOptions) (_ []byte, err error) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "format: listing", "elems", len(code), "dialect", d.Name)
	defer tr.Finish("err", &err)

	if opts.Header != "" && len(d.Settings.LineComments) != 0 {
		b = app(b, 0, "%s %s\n", d.Settings.LineComments[0], opts.Header)
	}

	var used map[asm.Label]struct{}

	if opts.Labels == LabelsUsed {
		used = referenced(code)
	}

	var skipped int

	for i, e := range code {
		switch e := e.(type) {
		case asm.Label:
			if used != nil && !lo.Contains(opts.Keep, e) {
				if _, ok := used[e]; !ok {
					skipped++
					continue
				}
			}

			b = e.AppendTo(b)
			b = append(b, '\n')
		case *asm.Instr:
			b = app(b, 1, "")
			b = e.AppendTo(b)
			b = append(b, '\n')
		default:
			return nil, errors.New("element %d: unsupported type: %T", i, e)
		}
	}

	if skipped != 0 {
		tr.V("labels").Printw("unused labels skipped", "skipped", skipped)
	}

	return b, nil
}

func referenced(code []asm.Elem) map[asm.Label]struct{} {
	m := make(map[asm.Label]struct{})

	for _, e := range code {
		x, ok := e.(*asm.Instr)
		if !ok {
			continue
		}

		for _, a := range x.Args {
			if l, ok := a.(asm.LabelRef); ok {
				m[asm.Label(l)] = struct{}{}
			}
		}
	}

	return m
}
