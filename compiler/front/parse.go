package front

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"tlog.app/go/errors"
	"tlog.app/go/loc"
	"tlog.app/go/tlog"

	"github.com/slowlang/isac/compiler/ast"
)

type (
	State struct {
		b []byte // all files concatenated

		files []file
	}

	Token interface{}

	Char    byte
	Op      string
	Keyword string
	Ident   string
	Number  string

	file struct {
		Name string
		Base int
	}

	UnexpectedError struct {
		Token Token
		Want  []Token
	}
)

var keywords = map[string]struct{}{
	"fun":      {},
	"var":      {},
	"val":      {},
	"while":    {},
	"do":       {},
	"if":       {},
	"else":     {},
	"continue": {},
	"true":     {},
	"false":    {},
	"input":    {},
	"output":   {},
	"and":      {},
	"or":       {},
	"nor":      {},
	"nand":     {},
}

var binOps = map[string]ast.BinOp{
	"and":  ast.And,
	"&":    ast.And,
	"or":   ast.Or,
	"|":    ast.Or,
	"nor":  ast.Nor,
	"nand": ast.Nand,
	"+":    ast.Add,
	"-":    ast.Sub,
	"*":    ast.Mul,
}

var relOps = map[Op]ast.RelOp{
	"==": ast.Eq,
	"!=": ast.Ne,
	"<":  ast.Lt,
	"<=": ast.Le,
	">":  ast.Gt,
	">=": ast.Ge,
}

var assignOps = map[Op]ast.AssignOp{
	"=":  ast.AssignSet,
	"+=": ast.AssignAdd,
	"-=": ast.AssignSub,
	"*=": ast.AssignMul,
}

func New() *State {
	return &State{}
}

func (s *State) AddFile(ctx context.Context, name string, text []byte) {
	f := file{
		Name: name,
		Base: len(s.b),
	}

	s.b = append(s.b, text...)
	s.b = append(s.b, '\n')

	s.files = append(s.files, f)
}

// Parse parses all added files into one program.
func (s *State) Parse(ctx context.Context) (p *ast.Program, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "front: parse", "files", len(s.files), "size", len(s.b))
	defer tr.Finish("err", &err)

	p = &ast.Program{}

	i := 0

	for {
		tk, tst, _ := s.nextNL(ctx, i)
		if tk == nil {
			break
		}

		f, end, err := s.parseFunc(ctx, tst)
		if err != nil {
			return nil, errors.Wrap(err, "at %v", s.Pos(end))
		}

		tr.Printw("func", "name", f.Name, "stmts", len(f.Body))

		p.Funcs = append(p.Funcs, f)
		i = end
	}

	return p, nil
}

// Pos formats byte offset as file:line:col.
func (s *State) Pos(pos int) string {
	var f file

	for _, x := range s.files {
		if x.Base <= pos {
			f = x
		}
	}

	if pos > len(s.b) {
		pos = len(s.b)
	}

	line := 1 + bytes.Count(s.b[f.Base:pos], []byte{'\n'})
	col := pos - f.Base + 1

	if nl := bytes.LastIndexByte(s.b[f.Base:pos], '\n'); nl >= 0 {
		col = pos - (f.Base + nl)
	}

	return fmt.Sprintf("%s:%d:%d", f.Name, line, col)
}

func (s *State) parseFunc(ctx context.Context, st int) (f *ast.Func, i int, err error) {
	tk, tst, i := s.next(ctx, st)
	if tk != Keyword("fun") {
		return nil, tst, NewUnexpected(tk, Keyword("fun"))
	}

	tk, tst, i = s.next(ctx, i)
	name, ok := tk.(Ident)
	if !ok {
		return nil, tst, NewUnexpected(tk, Ident(""))
	}

	i, err = s.expect(ctx, i, Char('('), Char(')'))
	if err != nil {
		return
	}

	body, i, err := s.parseBlock(ctx, i)
	if err != nil {
		return
	}

	f = &ast.Func{
		Base: ast.Base{Pos: st, End: i},
		Name: string(name),
		Body: body,
	}

	return
}

func (s *State) parseBlock(ctx context.Context, st int) (b []ast.Stmt, i int, err error) {
	tk, tst, i := s.nextNL(ctx, st)
	if tk != Char('{') {
		return nil, tst, NewUnexpected(tk, Char('{'))
	}

	b = []ast.Stmt{}

loop:
	for {
		j := i
		tk, tst, i = s.next(ctx, i)
		switch tk {
		case Char('\n'), Char(';'):
			continue
		case Char('}'):
			break loop
		case nil:
			return nil, tst, NewUnexpected(tk, Char('}'))
		default:
			i = j
		}

		var x ast.Stmt
		x, i, err = s.parseStatement(ctx, i)
		if err != nil {
			return
		}

		b = append(b, x)
	}

	return
}

// parseBody parses a block or a single statement.
func (s *State) parseBody(ctx context.Context, st int) (b []ast.Stmt, i int, err error) {
	tk, tst, _ := s.nextNL(ctx, st)
	if tk == Char('{') {
		return s.parseBlock(ctx, tst)
	}

	x, i, err := s.parseStatement(ctx, tst)
	if err != nil {
		return nil, i, err
	}

	return []ast.Stmt{x}, i, nil
}

func (s *State) parseStatement(ctx context.Context, st int) (x ast.Stmt, i int, err error) {
	tk, tst, i := s.nextNL(ctx, st)

	switch tk := tk.(type) {
	case Ident:
		return s.parseAssignment(ctx, tst, string(tk), i)
	case Keyword:
		switch tk {
		case "var", "val":
			return s.parseVarDecl(ctx, tst, tk == "var", i)
		case "output":
			return s.parseOutput(ctx, tst, i)
		case "continue":
			return &ast.Continue{Base: ast.Base{Pos: tst, End: i}}, i, nil
		case "while":
			return s.parseWhile(ctx, tst, i)
		case "do":
			return s.parseDoWhile(ctx, tst, i)
		case "if":
			return s.parseIf(ctx, tst, i)
		default:
			return nil, tst, NewUnexpected(tk, Keyword("var"), Keyword("while"), Keyword("if"))
		}
	default:
		return nil, tst, NewUnexpected(tk, Ident(""), Keyword(""))
	}
}

func (s *State) parseVarDecl(ctx context.Context, st int, mutable bool, vst int) (x ast.Stmt, i int, err error) {
	tk, tst, i := s.next(ctx, vst)
	name, ok := tk.(Ident)
	if !ok {
		return nil, tst, NewUnexpected(tk, Ident(""))
	}

	i, err = s.expect(ctx, i, Op("="))
	if err != nil {
		return
	}

	val, i, err := s.parseExpr(ctx, i)
	if err != nil {
		return nil, i, errors.Wrap(err, "var %v", name)
	}

	return &ast.VarDecl{
		Base:    ast.Base{Pos: st, End: i},
		Name:    string(name),
		Mutable: mutable,
		Init:    val,
	}, i, nil
}

func (s *State) parseAssignment(ctx context.Context, st int, name string, ost int) (x ast.Stmt, i int, err error) {
	tk, tst, i := s.next(ctx, ost)
	op, ok := tk.(Op)
	if !ok {
		return nil, tst, NewUnexpected(tk, Op("="), Op("++"))
	}

	switch op {
	case "++", "--":
		return &ast.IncDec{
			Base: ast.Base{Pos: st, End: i},
			Name: name,
			Dec:  op == "--",
		}, i, nil
	}

	aop, ok := assignOps[op]
	if !ok {
		return nil, tst, NewUnexpected(tk, Op("="), Op("+="), Op("-="), Op("*="))
	}

	rhs, i, err := s.parseExpr(ctx, i)
	if err != nil {
		return x, i, errors.Wrap(err, "rhs")
	}

	tlog.SpanFromContext(ctx).V("parse").Printw("assignment", "lhs", name, "op", aop, "rhs", rhs)

	return &ast.Assign{
		Base:  ast.Base{Pos: st, End: i},
		Name:  name,
		Op:    aop,
		Value: rhs,
	}, i, nil
}

func (s *State) parseOutput(ctx context.Context, st, pst int) (x *ast.Output, i int, err error) {
	i, err = s.expect(ctx, pst, Char('('))
	if err != nil {
		return
	}

	v, i, err := s.parseExpr(ctx, i)
	if err != nil {
		return nil, i, errors.Wrap(err, "output")
	}

	i, err = s.expect(ctx, i, Char(')'))
	if err != nil {
		return
	}

	return &ast.Output{
		Base:  ast.Base{Pos: st, End: i},
		Value: v,
	}, i, nil
}

func (s *State) parseWhile(ctx context.Context, st, cst int) (x ast.Stmt, i int, err error) {
	c, i, err := s.parseParenCond(ctx, cst)
	if err != nil {
		return nil, i, errors.Wrap(err, "while")
	}

	body, i, err := s.parseBody(ctx, i)
	if err != nil {
		return
	}

	return &ast.While{
		Base: ast.Base{Pos: st, End: i},
		Cond: c,
		Body: body,
	}, i, nil
}

func (s *State) parseDoWhile(ctx context.Context, st, bst int) (x ast.Stmt, i int, err error) {
	body, i, err := s.parseBody(ctx, bst)
	if err != nil {
		return
	}

	tk, tst, i := s.nextNL(ctx, i)
	if tk != Keyword("while") {
		return nil, tst, NewUnexpected(tk, Keyword("while"))
	}

	c, i, err := s.parseParenCond(ctx, i)
	if err != nil {
		return nil, i, errors.Wrap(err, "do while")
	}

	return &ast.DoWhile{
		Base: ast.Base{Pos: st, End: i},
		Body: body,
		Cond: c,
	}, i, nil
}

func (s *State) parseIf(ctx context.Context, st, cst int) (x ast.Stmt, i int, err error) {
	c, i, err := s.parseParenCond(ctx, cst)
	if err != nil {
		return nil, i, errors.Wrap(err, "if")
	}

	then, i, err := s.parseBody(ctx, i)
	if err != nil {
		return
	}

	n := &ast.If{
		Cond: c,
		Then: then,
	}

	tk, _, e := s.nextNL(ctx, i)
	if tk == Keyword("else") {
		n.Else, i, err = s.parseBody(ctx, e)
		if err != nil {
			return
		}
	}

	n.Base = ast.Base{Pos: st, End: i}

	return n, i, nil
}

func (s *State) parseParenCond(ctx context.Context, st int) (c ast.Expr, i int, err error) {
	i, err = s.expect(ctx, st, Char('('))
	if err != nil {
		return
	}

	c, i, err = s.parseCond(ctx, i)
	if err != nil {
		return
	}

	i, err = s.expect(ctx, i, Char(')'))

	return c, i, err
}

func (s *State) parseCond(ctx context.Context, st int) (c ast.Expr, i int, err error) {
	tk, tst, i := s.nextNL(ctx, st)
	if tk == Keyword("true") || tk == Keyword("false") {
		return &ast.Bool{Base: ast.Base{Pos: tst, End: i}, Value: tk == Keyword("true")}, i, nil
	}

	l, i, err := s.parseExpr(ctx, st)
	if err != nil {
		return
	}

	tk, tst, i = s.nextNL(ctx, i)
	op, ok := relOps[asOp(tk)]
	if !ok {
		return nil, tst, NewUnexpected(tk, Op("=="), Op("!="), Op("<"), Op("<="), Op(">"), Op(">="))
	}

	r, i, err := s.parseExpr(ctx, i)
	if err != nil {
		return
	}

	return &ast.Rel{
		Base:  ast.Base{Pos: tst, End: i},
		Op:    op,
		Left:  l,
		Right: r,
	}, i, nil
}

func (s *State) parseExpr(ctx context.Context, st int) (_ ast.Expr, i int, err error) {
	return s.parseInfix(ctx, st)
}

// parseInfix parses named infix functions: lowest precedence.
func (s *State) parseInfix(ctx context.Context, st int) (_ ast.Expr, i int, err error) {
	return s.parseLevel(ctx, st, s.parseSum, "and", "or", "nor", "nand", "&", "|")
}

func (s *State) parseSum(ctx context.Context, st int) (_ ast.Expr, i int, err error) {
	return s.parseLevel(ctx, st, s.parseProd, "+", "-")
}

func (s *State) parseProd(ctx context.Context, st int) (_ ast.Expr, i int, err error) {
	return s.parseLevel(ctx, st, s.parseUnary, "*")
}

// parseLevel parses left-associative chain of operands separated by ops.
// Operators must be on the same line as the left operand.
func (s *State) parseLevel(ctx context.Context, st int, sub func(context.Context, int) (ast.Expr, int, error), ops ...string) (_ ast.Expr, i int, err error) {
	larg, i, err := sub(ctx, st)
	if err != nil {
		return
	}

	for {
		tk, tst, e := s.next(ctx, i)

		name := tokenText(tk)
		if !contains(ops, name) {
			break
		}

		var rarg ast.Expr
		rarg, i, err = sub(ctx, e)
		if err != nil {
			return
		}

		larg = &ast.Binary{
			Base:  ast.Base{Pos: tst, End: i},
			Op:    binOps[name],
			Left:  larg,
			Right: rarg,
		}
	}

	return larg, i, nil
}

func (s *State) parseUnary(ctx context.Context, st int) (_ ast.Expr, i int, err error) {
	tk, tst, i := s.nextNL(ctx, st)

	switch tk := tk.(type) {
	case Number:
		v, err := parseInt(string(tk), false)
		if err != nil {
			return nil, tst, errors.Wrap(err, "number %q", tk)
		}

		return &ast.Int{Base: ast.Base{Pos: tst, End: i}, Value: v}, i, nil
	case Ident:
		return &ast.Ident{Base: ast.Base{Pos: tst, End: i}, Name: string(tk)}, i, nil
	case Keyword:
		switch tk {
		case "input":
			i, err = s.expect(ctx, i, Char('('), Char(')'))
			if err != nil {
				return
			}

			return &ast.Input{Base: ast.Base{Pos: tst, End: i}}, i, nil
		case "output":
			return s.parseOutput(ctx, tst, i)
		}
	case Char:
		if tk != '(' {
			break
		}

		x, i, err := s.parseExpr(ctx, i)
		if err != nil {
			return nil, i, err
		}

		i, err = s.expect(ctx, i, Char(')'))

		return x, i, err
	case Op:
		if tk != "-" {
			break
		}

		ntk, _, e := s.next(ctx, i)
		if num, ok := ntk.(Number); ok {
			v, err := parseInt(string(num), true)
			if err != nil {
				return nil, tst, errors.Wrap(err, "number -%s", num)
			}

			return &ast.Int{Base: ast.Base{Pos: tst, End: e}, Value: v}, e, nil
		}

		x, i, err := s.parseUnary(ctx, i)
		if err != nil {
			return nil, i, err
		}

		return &ast.Binary{
			Base:  ast.Base{Pos: tst, End: i},
			Op:    ast.Sub,
			Left:  &ast.Int{Base: ast.Base{Pos: tst, End: tst}},
			Right: x,
		}, i, nil
	}

	return nil, tst, NewUnexpected(tk, Number(""), Ident(""), Keyword("input"), Char('('))
}

func (s *State) expect(ctx context.Context, st int, want ...Token) (i int, err error) {
	i = st

	for _, w := range want {
		var tk Token
		var tst int

		tk, tst, i = s.nextNL(ctx, i)
		if tk != w {
			return tst, NewUnexpected(tk, w)
		}
	}

	return i, nil
}

// nextNL is next skipping new lines.
func (s *State) nextNL(ctx context.Context, st int) (tk Token, tst int, i int) {
	i = st

	for {
		tk, tst, i = s.next(ctx, i)
		if tk != Char('\n') {
			return
		}
	}
}

func (s *State) next(ctx context.Context, st int) (tk Token, tst int, i int) {
	if tr := tlog.SpanFromContext(ctx); tr.If("next_token") {
		defer func(st int) {
			tr.Printw("next token", "st", st, "tk", tk, "tst", tst, "i", i, "from", loc.Caller(2))
		}(st)
	}

	st = skipSpaces(s.b, st)
	i = st

	if i == len(s.b) {
		return nil, st, i
	}

	c := s.b[i]

	switch c {
	case '{', '}', '(', ')', ';', '\n':
		return Char(c), st, i + 1
	case '+', '-', '*', '=', '!', '<', '>':
		if i+1 < len(s.b) && (s.b[i+1] == '=' || (c == '+' || c == '-') && s.b[i+1] == c) {
			return Op(s.b[i : i+2]), st, i + 2
		}

		return Op(s.b[i : i+1]), st, i + 1
	case '&', '|':
		return Op(s.b[i : i+1]), st, i + 1
	}

	switch {
	case c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_':
		e := skipIdent(s.b, i)

		if _, ok := keywords[string(s.b[i:e])]; ok {
			return Keyword(s.b[i:e]), st, e
		}

		return Ident(s.b[i:e]), st, e
	case c >= '0' && c <= '9':
		e := skipNum(s.b, i)
		return Number(s.b[i:e]), st, e
	default:
		return Char(c), st, i + 1
	}
}

func NewUnexpected(got Token, want ...Token) error {
	return UnexpectedError{
		Token: got,
		Want:  want,
	}
}

func (e UnexpectedError) Error() string {
	l := make([]string, len(e.Want))

	for i := range e.Want {
		l[i] = fmt.Sprintf("%T", e.Want[i])

		if t := tokenText(e.Want[i]); t != "" {
			l[i] += " " + strconv.Quote(t)
		}
	}

	if e.Token == nil {
		return fmt.Sprintf("unexpected end of input, want: %v", strings.Join(l, ", "))
	}

	return fmt.Sprintf("unexpected token: %q (%T) want: %v", tokenText(e.Token), e.Token, strings.Join(l, ", "))
}

func parseInt(s string, neg bool) (int32, error) {
	s = strings.ReplaceAll(s, "_", "")

	if neg {
		s = "-" + s
	}

	v, err := strconv.ParseInt(s, 0, 32)
	if err != nil {
		return 0, err
	}

	return int32(v), nil
}

func tokenText(tk Token) string {
	switch tk := tk.(type) {
	case Char:
		return string(tk)
	case Op:
		return string(tk)
	case Keyword:
		return string(tk)
	case Ident:
		return string(tk)
	case Number:
		return string(tk)
	default:
		return ""
	}
}

func asOp(tk Token) Op {
	op, _ := tk.(Op)
	return op
}

func contains(l []string, s string) bool {
	if s == "" {
		return false
	}

	for _, x := range l {
		if x == s {
			return true
		}
	}

	return false
}

func skipNum(b []byte, i int) int {
	for i < len(b) && (b[i] >= '0' && b[i] <= '9' || b[i] >= 'a' && b[i] <= 'z' || b[i] >= 'A' && b[i] <= 'Z' || b[i] == '_') {
		i++
	}

	return i
}

func skipIdent(b []byte, i int) int {
	for i < len(b) && (b[i] >= 'a' && b[i] <= 'z' || b[i] >= 'A' && b[i] <= 'Z' || b[i] >= '0' && b[i] <= '9' || b[i] == '_') {
		i++
	}

	return i
}

// skipSpaces skips spaces and comments, new lines are kept.
func skipSpaces(b []byte, i int) int {
	for i < len(b) {
		switch {
		case b[i] == ' ' || b[i] == '\t' || b[i] == '\r':
			i++
		case bytes.HasPrefix(b[i:], []byte("//")):
			for i < len(b) && b[i] != '\n' {
				i++
			}
		case bytes.HasPrefix(b[i:], []byte("/*")):
			end := bytes.Index(b[i+2:], []byte("*/"))
			if end < 0 {
				return len(b)
			}

			i += 2 + end + 2
		default:
			return i
		}
	}

	return i
}

func (c Char) String() string {
	return string(c)
}
