package back

import "fmt"

type (
	UnresolvedSymbolError struct {
		Name string
	}

	RedeclaredSymbolError struct {
		Name string
	}

	// UnsupportedConstructError is a statement, expression, operator or condition
	// the lowering or the dialect can't express.
	UnsupportedConstructError struct {
		What string
		Pos  int
	}

	ResourceExhaustionError struct {
		Dialect string
		Busy    int
	}

	LoopContextError struct {
		Pos int
	}
)

func (e *UnresolvedSymbolError) Error() string {
	return fmt.Sprintf("undefined variable %q", e.Name)
}

func (e *RedeclaredSymbolError) Error() string {
	return fmt.Sprintf("variable %q redeclared", e.Name)
}

func (e *UnsupportedConstructError) Error() string {
	return fmt.Sprintf("unsupported %s (pos %d)", e.What, e.Pos)
}

func (e *ResourceExhaustionError) Error() string {
	if e.Busy == 0 {
		return fmt.Sprintf("out of registers: dialect %q has no general-purpose registers", e.Dialect)
	}

	return fmt.Sprintf("out of registers: dialect %q, %d in use", e.Dialect, e.Busy)
}

func (e *LoopContextError) Error() string {
	return fmt.Sprintf("continue outside of loop (pos %d)", e.Pos)
}

func unsupported(pos int, f string, args ...any) error {
	return &UnsupportedConstructError{What: fmt.Sprintf(f, args...), Pos: pos}
}
