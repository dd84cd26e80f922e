package back

import (
	"tlog.app/go/tlog/tlwire"

	"github.com/slowlang/isac/compiler/asm"
	"github.com/slowlang/isac/compiler/set"
)

type (
	Symbol struct {
		Name    string
		Mutable bool
		Reg     asm.Reg
	}

	// RegPool is a LIFO stack of free registers.
	// No liveness, no spilling.
	RegPool struct {
		dialect string

		regs []asm.Reg // index is the bit in free
		idx  map[string]int

		stack []int
		free  set.Bitmap
	}

	// Symbols binds variables of one function to registers.
	Symbols struct {
		pool *RegPool

		vars  map[string]*Symbol
		order []*Symbol
	}
)

// NewRegPool seeds the pool with regs.
// The last of regs is acquired first.
func NewRegPool(dialect string, regs []asm.Reg) *RegPool {
	p := &RegPool{
		dialect: dialect,
		regs:    regs,
		idx:     make(map[string]int, len(regs)),
		stack:   make([]int, 0, len(regs)),
		free:    set.MakeBitmap(len(regs)),
	}

	for i, r := range regs {
		p.idx[r.Name] = i
		p.stack = append(p.stack, i)
		p.free.Set(i)
	}

	return p
}

func (p *RegPool) Acquire() (asm.Reg, error) {
	l := len(p.stack)
	if l == 0 {
		return asm.Reg{}, &ResourceExhaustionError{Dialect: p.dialect, Busy: len(p.regs)}
	}

	i := p.stack[l-1]
	p.stack = p.stack[:l-1]
	p.free.Clear(i)

	return p.regs[i], nil
}

// Release returns r to the pool.
// Releasing a free register or one the pool doesn't own is no-op.
func (p *RegPool) Release(r asm.Reg) {
	i, ok := p.idx[r.Name]
	if !ok || p.free.IsSet(i) {
		return
	}

	p.stack = append(p.stack, i)
	p.free.Set(i)
}

func (p *RegPool) Free() int { return p.free.Size() }

func (p *RegPool) IsFree(r asm.Reg) bool {
	i, ok := p.idx[r.Name]

	return ok && p.free.IsSet(i)
}

func (p *RegPool) TlogAppend(b []byte) []byte {
	var e tlwire.Encoder

	b = e.AppendMap(b, 2)

	b = e.AppendKeyInt(b, "size", len(p.regs))
	b = e.AppendKey(b, "free")
	b = p.free.TlogAppend(b)

	return b
}

func NewSymbols(pool *RegPool) *Symbols {
	return &Symbols{
		pool: pool,
		vars: make(map[string]*Symbol),
	}
}

// Declare binds a new variable to a register from the pool.
func (s *Symbols) Declare(name string, mutable bool) (*Symbol, error) {
	if _, ok := s.vars[name]; ok {
		return nil, &RedeclaredSymbolError{Name: name}
	}

	r, err := s.pool.Acquire()
	if err != nil {
		return nil, err
	}

	sym := &Symbol{
		Name:    name,
		Mutable: mutable,
		Reg:     r,
	}

	s.vars[name] = sym
	s.order = append(s.order, sym)

	return sym, nil
}

func (s *Symbols) Require(name string) (*Symbol, error) {
	sym, ok := s.vars[name]
	if !ok {
		return nil, &UnresolvedSymbolError{Name: name}
	}

	return sym, nil
}

// Acquire takes a temporary register.
func (s *Symbols) Acquire() (asm.Reg, error) { return s.pool.Acquire() }

func (s *Symbols) Release(r asm.Reg) { s.pool.Release(r) }

// Declared returns symbols in declaration order.
func (s *Symbols) Declared() []*Symbol { return s.order }

func (sym *Symbol) TlogAppend(b []byte) []byte {
	var e tlwire.Encoder

	b = e.AppendMap(b, 3)

	b = e.AppendKeyString(b, "name", sym.Name)
	b = e.AppendKeyValue(b, "mutable", sym.Mutable)
	b = e.AppendKeyString(b, "reg", sym.Reg.Name)

	return b
}
