package ast

import "fmt"

type (
	Node interface {
	}

	Base struct {
		Pos int
		End int
	}

	Program struct {
		Funcs []*Func
	}

	Func struct {
		Base `tlog:",embed"`

		Name string
		Body []Stmt
	}

	// Stmt is one of VarDecl, Assign, IncDec, Output, Continue, While, DoWhile, If.
	Stmt interface {
		Node
		stmt()
	}

	// Expr is one of Int, Ident, Binary, Input, Output, Rel, Bool.
	// Rel and Bool are only valid as conditions.
	Expr interface {
		Node
		expr()
	}

	VarDecl struct {
		Base `tlog:",embed"`

		Name    string
		Mutable bool
		Init    Expr
	}

	// Assign is `Name = Value` if Op is AssignSet, `Name op= Value` otherwise.
	Assign struct {
		Base `tlog:",embed"`

		Name  string
		Op    AssignOp
		Value Expr
	}

	IncDec struct {
		Base `tlog:",embed"`

		Name string
		Dec  bool
	}

	Continue struct {
		Base `tlog:",embed"`
	}

	While struct {
		Base `tlog:",embed"`

		Cond Expr
		Body []Stmt
	}

	DoWhile struct {
		Base `tlog:",embed"`

		Body []Stmt
		Cond Expr
	}

	// If has no else branch if Else is nil.
	If struct {
		Base `tlog:",embed"`

		Cond Expr
		Then []Stmt
		Else []Stmt
	}

	Int struct {
		Base `tlog:",embed"`

		Value int32
	}

	Ident struct {
		Base `tlog:",embed"`

		Name string
	}

	Binary struct {
		Base `tlog:",embed"`

		Op    BinOp
		Left  Expr
		Right Expr
	}

	Input struct {
		Base `tlog:",embed"`
	}

	// Output is both a statement and an expression.
	// As an expression its value is the written value.
	Output struct {
		Base `tlog:",embed"`

		Value Expr
	}

	Rel struct {
		Base `tlog:",embed"`

		Op    RelOp
		Left  Expr
		Right Expr
	}

	Bool struct {
		Base `tlog:",embed"`

		Value bool
	}

	BinOp int
	RelOp int

	AssignOp int
)

const (
	Add BinOp = iota
	Sub
	Mul
	And
	Or
	Nor
	Nand
)

const (
	Eq RelOp = iota
	Ne
	Lt
	Le
	Gt
	Ge
)

const (
	AssignSet AssignOp = iota
	AssignAdd
	AssignSub
	AssignMul
)

var binOps = [...]string{
	Add:  "add",
	Sub:  "sub",
	Mul:  "mul",
	And:  "and",
	Or:   "or",
	Nor:  "nor",
	Nand: "nand",
}

var relOps = [...]string{
	Eq: "==",
	Ne: "!=",
	Lt: "<",
	Le: "<=",
	Gt: ">",
	Ge: ">=",
}

// Mnemonic is the conventional instruction name for the operation.
func (op BinOp) Mnemonic() string {
	if int(op) < len(binOps) {
		return binOps[op]
	}

	return fmt.Sprintf("binop(%d)", int(op))
}

func (op BinOp) String() string { return op.Mnemonic() }

func (op RelOp) String() string {
	if int(op) < len(relOps) {
		return relOps[op]
	}

	return fmt.Sprintf("relop(%d)", int(op))
}

// BinOp returns the binary operation of the augmented assignment.
func (op AssignOp) BinOp() (BinOp, bool) {
	switch op {
	case AssignAdd:
		return Add, true
	case AssignSub:
		return Sub, true
	case AssignMul:
		return Mul, true
	default:
		return 0, false
	}
}

func (op AssignOp) String() string {
	switch op {
	case AssignSet:
		return "="
	case AssignAdd:
		return "+="
	case AssignSub:
		return "-="
	case AssignMul:
		return "*="
	default:
		return fmt.Sprintf("assignop(%d)", int(op))
	}
}

func (b Base) Span() (pos, end int) { return b.Pos, b.End }

func (*VarDecl) stmt()  {}
func (*Assign) stmt()   {}
func (*IncDec) stmt()   {}
func (*Output) stmt()   {}
func (*Continue) stmt() {}
func (*While) stmt()    {}
func (*DoWhile) stmt()  {}
func (*If) stmt()       {}

func (*Int) expr()    {}
func (*Ident) expr()  {}
func (*Binary) expr() {}
func (*Input) expr()  {}
func (*Output) expr() {}
func (*Rel) expr()    {}
func (*Bool) expr()   {}
