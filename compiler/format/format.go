package format

import (
	"context"

	"github.com/nikandfor/hacked/hfmt"
	"tlog.app/go/errors"

	"github.com/slowlang/isac/compiler/ast"
)

var symbols = map[ast.BinOp]string{
	ast.Add: "+",
	ast.Sub: "-",
	ast.Mul: "*",
}

// Format renders a source tree back to text.
func Format(ctx context.Context, b []byte, x any) ([]byte, error) {
	return format(ctx, b, x, 0)
}

func format(ctx context.Context, b []byte, x any, d int) ([]byte, error) {
	switch x := x.(type) {
	case *ast.Program:
		return formatProgram(ctx, b, x, d)
	case *ast.Func:
		return formatFunc(ctx, b, x, d)
	case ast.Stmt:
		return formatBlock(ctx, b, []ast.Stmt{x}, d)
	case ast.Expr:
		return formatExpr(ctx, b, x, d)
	default:
		return nil, errors.New("unsupported type: %T", x)
	}
}

func formatProgram(ctx context.Context, b []byte, x *ast.Program, d int) (_ []byte, err error) {
	for i, f := range x.Funcs {
		if i != 0 {
			b = append(b, '\n')
		}

		b, err = formatFunc(ctx, b, f, d)
		if err != nil {
			return nil, errors.Wrap(err, "func %v", f.Name)
		}
	}

	return b, nil
}

func formatFunc(ctx context.Context, b []byte, x *ast.Func, d int) ([]byte, error) {
	b = app(b, d, "fun %v() {\n", x.Name)

	b, err := formatBlock(ctx, b, x.Body, d+1)
	if err != nil {
		return nil, errors.Wrap(err, "body")
	}

	b = app(b, d, "}\n")

	return b, nil
}

func formatBlock(ctx context.Context, b []byte, list []ast.Stmt, d int) (_ []byte, err error) {
	for _, s := range list {
		switch s := s.(type) {
		case *ast.VarDecl:
			kw := "val"
			if s.Mutable {
				kw = "var"
			}

			b = app(b, d, "%v %v = ", kw, s.Name)

			b, err = formatExpr(ctx, b, s.Init, d)
			if err != nil {
				return nil, errors.Wrap(err, "init")
			}

			b = append(b, '\n')
		case *ast.Assign:
			b = app(b, d, "%v %v ", s.Name, s.Op)

			b, err = formatExpr(ctx, b, s.Value, d)
			if err != nil {
				return nil, errors.Wrap(err, "value")
			}

			b = append(b, '\n')
		case *ast.IncDec:
			op := "++"
			if s.Dec {
				op = "--"
			}

			b = app(b, d, "%v%v\n", s.Name, op)
		case *ast.Output:
			b = app(b, d, "")

			b, err = formatExpr(ctx, b, s, d)
			if err != nil {
				return nil, err
			}

			b = append(b, '\n')
		case *ast.Continue:
			b = app(b, d, "continue\n")
		case *ast.While:
			b, err = formatCond(ctx, app(b, d, "while "), s.Cond, d)
			if err != nil {
				return nil, errors.Wrap(err, "cond")
			}

			b, err = formatBody(ctx, b, s.Body, d)
			if err != nil {
				return nil, errors.Wrap(err, "while body")
			}

			b = append(b, '\n')
		case *ast.DoWhile:
			b = app(b, d, "do")

			b, err = formatBody(ctx, b, s.Body, d)
			if err != nil {
				return nil, errors.Wrap(err, "do body")
			}

			b, err = formatCond(ctx, append(b, " while "...), s.Cond, d)
			if err != nil {
				return nil, errors.Wrap(err, "cond")
			}

			b = append(b, '\n')
		case *ast.If:
			b, err = formatCond(ctx, app(b, d, "if "), s.Cond, d)
			if err != nil {
				return nil, errors.Wrap(err, "cond")
			}

			b, err = formatBody(ctx, b, s.Then, d)
			if err != nil {
				return nil, errors.Wrap(err, "then block")
			}

			if s.Else != nil {
				b, err = formatBody(ctx, append(b, " else"...), s.Else, d)
				if err != nil {
					return nil, errors.Wrap(err, "else block")
				}
			}

			b = append(b, '\n')
		default:
			return nil, errors.New("unsupported stmt: %T", s)
		}
	}

	return b, nil
}

func formatBody(ctx context.Context, b []byte, list []ast.Stmt, d int) (_ []byte, err error) {
	b = append(b, " {\n"...)

	b, err = formatBlock(ctx, b, list, d+1)
	if err != nil {
		return nil, err
	}

	return app(b, d, "}"), nil
}

func formatCond(ctx context.Context, b []byte, x ast.Expr, d int) (_ []byte, err error) {
	b = append(b, '(')

	b, err = formatExpr(ctx, b, x, d)
	if err != nil {
		return nil, err
	}

	return append(b, ')'), nil
}

func formatExpr(ctx context.Context, b []byte, x ast.Expr, d int) (_ []byte, err error) {
	switch x := x.(type) {
	case *ast.Ident:
		b = append(b, x.Name...)
	case *ast.Int:
		b = hfmt.Appendf(b, "%d", x.Value)
	case *ast.Bool:
		b = hfmt.Appendf(b, "%v", x.Value)
	case *ast.Input:
		b = append(b, "input()"...)
	case *ast.Output:
		b = append(b, "output("...)

		b, err = formatExpr(ctx, b, x.Value, d)
		if err != nil {
			return nil, errors.Wrap(err, "output")
		}

		b = append(b, ')')
	case *ast.Binary:
		op, ok := symbols[x.Op]
		if !ok {
			op = x.Op.String()
		}

		b, err = formatOperand(ctx, b, x.Left, d)
		if err != nil {
			return nil, errors.Wrap(err, "left")
		}

		b = hfmt.Appendf(b, " %s ", op)

		b, err = formatOperand(ctx, b, x.Right, d)
		if err != nil {
			return nil, errors.Wrap(err, "right")
		}
	case *ast.Rel:
		b, err = formatExpr(ctx, b, x.Left, d)
		if err != nil {
			return nil, errors.Wrap(err, "left")
		}

		b = hfmt.Appendf(b, " %v ", x.Op)

		b, err = formatExpr(ctx, b, x.Right, d)
		if err != nil {
			return nil, errors.Wrap(err, "right")
		}
	default:
		return nil, errors.New("unsupported expr: %T", x)
	}

	return b, nil
}

// formatOperand puts nested binary operations into parentheses.
func formatOperand(ctx context.Context, b []byte, x ast.Expr, d int) (_ []byte, err error) {
	if _, ok := x.(*ast.Binary); !ok {
		return formatExpr(ctx, b, x, d)
	}

	b = append(b, '(')

	b, err = formatExpr(ctx, b, x, d)
	if err != nil {
		return nil, err
	}

	return append(b, ')'), nil
}

func app(b []byte, d int, f string, args ...any) []byte {
	const tabs = "\t\t\t\t\t\t\t\t\t\t\t\t\t\t\t"
	b = append(b, tabs[:d]...)
	b = hfmt.Appendf(b, f, args...)
	return b
}
