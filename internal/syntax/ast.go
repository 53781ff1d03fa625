package syntax

// Position is a 1-based line and column.
type Position struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Range spans from Start to End inclusive of Start.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Node is implemented by every syntax tree node. The set of implementations is
// closed: only types in this package satisfy it.
type Node interface {
	Span() Range
	node()
}

type base struct {
	Rng Range
}

func (b *base) Span() Range { return b.Rng }
func (*base) node()         {}

// FuncKind distinguishes the syntactic forms of a function.
type FuncKind int

const (
	FuncDeclaration FuncKind = iota
	FuncExpression
	FuncArrow
	FuncMethod
)

// LitKind classifies a Literal.
type LitKind int

const (
	LitString LitKind = iota
	LitNumber
	LitTemplate
	LitRegex
	LitBool
	LitNull
	LitUndefined
)

// Statements

type Program struct {
	base
	Body []Node
}

type BlockStmt struct {
	base
	Body []Node
}

// VarDecl is a var, let or const declaration.
type VarDecl struct {
	base
	Kind  string
	Decls []*Declarator
}

type Declarator struct {
	base
	Target Node
	Init   Node
}

// Function covers declarations, expressions, arrows and methods. Synthetic is
// set on the wrapper introduced to legalize a top-level return.
type Function struct {
	base
	Kind      FuncKind
	Name      *Ident
	Params    []Node
	Body      Node
	Synthetic bool
}

type ClassDecl struct {
	base
	Name       *Ident
	SuperClass Node
	Members    []Node
	Expression bool
}

type ExprStmt struct {
	base
	X Node
}

type ReturnStmt struct {
	base
	Arg Node
}

type IfStmt struct {
	base
	Cond Node
	Then Node
	Else Node
}

type ForStmt struct {
	base
	Init   Node
	Cond   Node
	Update Node
	Body   Node
}

// ForInStmt is for-in, or for-of when Of is set.
type ForInStmt struct {
	base
	Left  Node
	Right Node
	Body  Node
	Of    bool
}

type WhileStmt struct {
	base
	Cond Node
	Body Node
}

type DoWhileStmt struct {
	base
	Body Node
	Cond Node
}

type SwitchStmt struct {
	base
	Disc  Node
	Cases []*SwitchCase
}

// SwitchCase is a case clause; Test is nil for default.
type SwitchCase struct {
	base
	Test Node
	Body []Node
}

type TryStmt struct {
	base
	Block     *BlockStmt
	Handler   *CatchClause
	Finalizer *BlockStmt
}

type CatchClause struct {
	base
	Param Node
	Body  *BlockStmt
}

type WithStmt struct {
	base
	Object Node
	Body   Node
}

type LabeledStmt struct {
	base
	Label string
	Body  Node
}

type DebuggerStmt struct {
	base
}

type ThrowStmt struct {
	base
	Arg Node
}

// BranchStmt is break or continue.
type BranchStmt struct {
	base
	Keyword string
	Label   string
}

type EmptyStmt struct {
	base
}

// Expressions

type Ident struct {
	base
	Name string
}

// Literal holds the source text in Raw and, for strings, the unquoted body in
// Value. Template literal substitutions are kept in Subs.
type Literal struct {
	base
	Kind  LitKind
	Raw   string
	Value string
	Subs  []Node
}

type CallExpr struct {
	base
	Callee Node
	Args   []Node
	New    bool
}

// MemberExpr is obj.prop or obj[prop]. When Computed is false Property is an *Ident.
type MemberExpr struct {
	base
	Object   Node
	Property Node
	Computed bool
}

type AssignExpr struct {
	base
	Op    string
	Left  Node
	Right Node
}

type BinaryExpr struct {
	base
	Op    string
	Left  Node
	Right Node
}

// UnaryExpr covers prefix/postfix operators and the await, yield and spread forms.
type UnaryExpr struct {
	base
	Op      string
	Arg     Node
	Postfix bool
}

type CondExpr struct {
	base
	Test Node
	Then Node
	Else Node
}

type ObjectExpr struct {
	base
	Props []Node
}

// Property is a key/value pair of an object literal or object pattern.
type Property struct {
	base
	Key       Node
	Value     Node
	Computed  bool
	Shorthand bool
}

type ArrayExpr struct {
	base
	Elems []Node
}

type SequenceExpr struct {
	base
	Exprs []Node
}

// ThisExpr is this or super.
type ThisExpr struct {
	base
	Super bool
}

// Patterns

type ObjectPattern struct {
	base
	Props []Node
}

type ArrayPattern struct {
	base
	Elems []Node
}

type AssignPattern struct {
	base
	Target  Node
	Default Node
}

type RestElement struct {
	base
	Arg Node
}

// Unknown stands in for constructs outside the modelled subset. Its children
// are still lowered so identifiers inside it are visible to analysis.
type Unknown struct {
	base
	Type     string
	Children []Node
}
