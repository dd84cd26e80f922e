package isa

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/samber/lo"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/isac/compiler/asm"
)

type (
	section int

	parser struct {
		lines []string
		i     int // next line

		sect section

		settings Settings
		fields   []*Field
		field    *Field
		defs     []*asm.Def

		prefs   map[string]string
		special map[string]string
	}
)

const (
	sectNone section = iota
	sectSettings
	sectFields
	sectRegisterPrefs
	sectSpecialRegisters
	sectInstructions
)

var sections = map[string]section{
	"[settings]":          sectSettings,
	"[fields]":            sectFields,
	"[register_prefs]":    sectRegisterPrefs,
	"[special_registers]": sectSpecialRegisters,
	"[instructions]":      sectInstructions,
}

func ParseFile(ctx context.Context, name string) (*Dialect, error) {
	text, err := os.ReadFile(name)
	if err != nil {
		return nil, errors.Wrap(err, "read file")
	}

	base := filepath.Base(name)
	base = strings.TrimSuffix(base, filepath.Ext(base))

	return Parse(ctx, base, text)
}

// Parse parses dialect specification text.
// Any malformed line fails the whole spec with SpecFormatError.
func Parse(ctx context.Context, name string, text []byte) (d *Dialect, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "isa: parse", "name", name, "size", len(text))
	defer tr.Finish("err", &err)

	p := &parser{
		lines:    strings.Split(string(text), "\n"),
		settings: DefaultSettings(),
		prefs:    make(map[string]string),
		special:  make(map[string]string),
	}

	for i := range p.lines {
		p.lines[i] = strings.TrimRight(p.lines[i], " \t\r")
	}

	err = p.parse(ctx)
	if err != nil {
		return nil, err
	}

	d = p.build(name)

	var imm string
	if d.immLoad != nil {
		imm = d.immLoad.Syntax
	}

	tr.Printw("dialect parsed", "dialect", d, "fields", len(d.Fields), "imm_load", imm)

	if tr.If("dump_dialect") {
		for _, m := range d.order {
			for _, def := range d.Instructions[m] {
				tr.Printw("instruction", "mnemonic", m, "syntax", def.Syntax, "bits", def.Bits, "desc", def.Desc)
			}
		}
	}

	return d, nil
}

func (p *parser) parse(ctx context.Context) (err error) {
	for p.i < len(p.lines) {
		lnum := p.i + 1
		line := strings.TrimSpace(p.lines[p.i])
		p.i++

		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}

		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			s, ok := sections[strings.ToLower(line)]
			if !ok {
				return &SpecFormatError{Line: lnum, Text: line, Reason: "unknown section"}
			}

			p.sect = s
			p.field = nil

			continue
		}

		switch p.sect {
		case sectSettings:
			err = p.parseSetting(lnum, line)
		case sectFields:
			err = p.parseField(lnum, line)
		case sectRegisterPrefs:
			err = p.parseKeyValue(lnum, line, p.prefs)
		case sectSpecialRegisters:
			err = p.parseKeyValue(lnum, line, p.special)
		case sectInstructions:
			err = p.parseInstruction(lnum, line)
		case sectNone:
			err = &SpecFormatError{Line: lnum, Text: line, Reason: "content before any section header"}
		default:
			panic(p.sect)
		}

		if err != nil {
			return err
		}
	}

	return nil
}

func (p *parser) parseSetting(lnum int, line string) error {
	key, val, err := keyValue(lnum, line)
	if err != nil {
		return err
	}

	s := &p.settings

	switch key {
	case "variant":
		s.Variant = unquote(val)
	case "endianness":
		// anything but little is big
		s.Endianness = BigEndian

		if strings.EqualFold(unquote(val), "little") {
			s.Endianness = LittleEndian
		}
	case "line_comments":
		s.LineComments = nil

		for _, c := range strings.Split(val, ",") {
			c = unquote(strings.TrimSpace(c))
			if c != "" {
				s.LineComments = append(s.LineComments, c)
			}
		}

		s.LineComments = lo.Uniq(s.LineComments)
	case "block_comments":
		s.BlockComments = nil

		val = strings.TrimSuffix(strings.TrimPrefix(val, "{"), "}")

		for _, c := range strings.Split(val, ",") {
			op, cl, ok := strings.Cut(strings.TrimSpace(c), ":")
			if !ok {
				continue
			}

			s.BlockComments = append(s.BlockComments, BlockComment{
				Open:  unquote(strings.TrimSpace(op)),
				Close: unquote(strings.TrimSpace(cl)),
			})
		}
	default:
		if s.Extra == nil {
			s.Extra = make(map[string]string)
		}

		s.Extra[key] = unquote(val)
	}

	return nil
}

func (p *parser) parseField(lnum int, line string) error {
	parts := strings.Fields(line)

	if len(parts) == 1 {
		p.field = &Field{Name: parts[0]}
		p.fields = append(p.fields, p.field)

		return nil
	}

	if p.field == nil {
		return &SpecFormatError{Line: lnum, Text: line, Reason: "field entry outside of a field"}
	}

	p.field.add(Entry{
		Symbol: parts[0],
		Bits:   strings.Join(parts[1:], ""),
	})

	return nil
}

func (p *parser) parseKeyValue(lnum int, line string, m map[string]string) error {
	key, val, err := keyValue(lnum, line)
	if err != nil {
		return err
	}

	m[key] = strings.ToLower(unquote(val))

	return nil
}

func (p *parser) parseInstruction(lnum int, syntax string) error {
	if p.i == len(p.lines) || strings.TrimSpace(p.lines[p.i]) == "" {
		return &SpecFormatError{Line: lnum, Text: syntax, Reason: "missing bit pattern"}
	}

	bits := strings.TrimSpace(p.lines[p.i])
	p.i++

	var desc string

	if p.i < len(p.lines) {
		if l := strings.TrimSpace(p.lines[p.i]); l != "" && !strings.HasPrefix(l, "[") {
			desc = l
			p.i++
		}
	}

	mnemonic, _, _ := strings.Cut(syntax, " ")
	mnemonic, _, _ = strings.Cut(mnemonic, "\t")

	def := &asm.Def{
		Mnemonic: strings.ToLower(mnemonic),
		Syntax:   syntax,
		Bits:     bits,
		Desc:     desc,
	}

	for _, ph := range asm.Placeholders(syntax) {
		if lo.ContainsBy(def.Operands, func(o asm.Operand) bool { return o.ID == ph.ID }) {
			continue
		}

		def.Operands = append(def.Operands, asm.Operand{
			ID:    ph.ID,
			Kinds: asm.ParseKinds(ph.Kinds),
		})
	}

	p.defs = append(p.defs, def)

	return nil
}

func (p *parser) build(name string) *Dialect {
	var catalog *Field

	for _, f := range p.fields {
		if strings.EqualFold(f.Name, "register") {
			catalog = f
		}
	}

	resolve := func(n string) asm.Reg {
		if catalog == nil || n == "" {
			return asm.Reg{}
		}

		e, ok := catalog.Entry(n)
		if !ok {
			return asm.Reg{}
		}

		return asm.Reg{Name: e.Symbol, Code: e.Bits}
	}

	prefs := RegisterPrefs{
		LHS:    resolve(p.prefs["lhs"]),
		RHS:    resolve(p.prefs["rhs"]),
		Result: resolve(p.prefs["result"]),
	}

	special := SpecialRegisters{
		Zero:      resolve(p.special["zr"]),
		SP:        resolve(p.special["sp"]),
		Flags:     resolve(p.special["flags"]),
		Immediate: resolve(p.special["immediate"]),
		In:        resolve(p.special["in"]),
		Out:       resolve(p.special["out"]),
	}

	for k, v := range p.special {
		switch k {
		case "zr", "sp", "flags", "immediate", "in", "out":
			continue
		}

		r := resolve(v)
		if !r.Valid() {
			continue
		}

		if special.Custom == nil {
			special.Custom = make(map[string]asm.Reg)
		}

		special.Custom[k] = r
	}

	return New(name, p.settings, p.fields, p.defs, prefs, special)
}

func keyValue(lnum int, line string) (key, val string, err error) {
	key, val, ok := strings.Cut(line, "=")
	key = strings.ToLower(strings.TrimSpace(key))

	if !ok || key == "" {
		return "", "", &SpecFormatError{Line: lnum, Text: line, Reason: "malformed key=value"}
	}

	return key, strings.TrimSpace(val), nil
}

func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}

	return s
}
