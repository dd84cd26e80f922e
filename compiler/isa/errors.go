package isa

import (
	"fmt"
	"strings"

	"github.com/slowlang/isac/compiler/asm"
)

type (
	SpecFormatError struct {
		Line   int
		Text   string
		Reason string
	}

	InstructionOverloadError struct {
		Dialect  string
		Mnemonic string
		Args     []asm.Arg
		Unknown  bool
	}
)

func (e *SpecFormatError) Error() string {
	if e.Text == "" {
		return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
	}

	return fmt.Sprintf("line %d: %s: %q", e.Line, e.Reason, e.Text)
}

func (e *InstructionOverloadError) Error() string {
	if e.Unknown {
		return fmt.Sprintf("unknown mnemonic %q in dialect %q", e.Mnemonic, e.Dialect)
	}

	kinds := make([]string, len(e.Args))

	for i, a := range e.Args {
		kinds[i] = fmt.Sprintf("%v %v", a.Kind(), a)
	}

	return fmt.Sprintf("no matching overload of %q for (%s) in dialect %q", e.Mnemonic, strings.Join(kinds, ", "), e.Dialect)
}
