// Package syntax parses function-node JavaScript with tree-sitter and lowers the
// concrete tree into a closed set of typed nodes carrying 1-based positions.
package syntax

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
)

var (
	// ErrSyntax reports source the grammar cannot parse.
	ErrSyntax = errors.New("syntax error")
	// ErrIllegalReturn reports a return statement outside of any function.
	ErrIllegalReturn = errors.New("illegal return statement")
)

// WrapperName names the synthetic function used to legalize top-level returns.
const WrapperName = "__flowlint_unit__"

const wrapperPrefix = "function " + WrapperName + "() {\n"

// Tree is the result of parsing one code unit.
type Tree struct {
	Root *Program
	// Wrapped is set when the unit was reparsed inside the synthetic wrapper.
	Wrapped bool
	// LineOffset is the correction applied to every position, 0 or -1.
	LineOffset int
}

// Parse parses src as a standalone script. A top-level return is illegal in a
// standalone script but idiomatic in a function node, so on ErrIllegalReturn
// the source is wrapped in a synthetic function and parsed again, and every
// position is shifted back by the wrapper line. Any other failure is returned.
func Parse(ctx context.Context, src string) (*Tree, error) {
	root, err := parseUnit(ctx, []byte(src), 0, true)
	if err == nil {
		return &Tree{Root: root}, nil
	}
	if !errors.Is(err, ErrIllegalReturn) {
		return nil, err
	}

	wrapped := wrapperPrefix + src + "\n}"
	root, err = parseUnit(ctx, []byte(wrapped), -1, false)
	if err != nil {
		return nil, fmt.Errorf("reparse in wrapper: %w", err)
	}
	for _, stmt := range root.Body {
		if fn, ok := stmt.(*Function); ok && fn.Name != nil && fn.Name.Name == WrapperName {
			fn.Synthetic = true
			break
		}
	}
	return &Tree{Root: root, Wrapped: true, LineOffset: -1}, nil
}

func parseUnit(ctx context.Context, src []byte, offset int, strict bool) (*Program, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(javascript.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSyntax, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		if bad := firstError(root); bad != nil {
			return nil, fmt.Errorf("%w at line %d", ErrSyntax, int(bad.StartPoint().Row)+1+offset)
		}
		return nil, ErrSyntax
	}
	if strict {
		if ret := topLevelReturn(root); ret != nil {
			return nil, fmt.Errorf("%w at line %d", ErrIllegalReturn, int(ret.StartPoint().Row)+1)
		}
	}

	l := &lowering{src: src, offset: offset}
	return l.program(root), nil
}

func firstError(n *sitter.Node) *sitter.Node {
	if n.Type() == "ERROR" || n.IsMissing() {
		return n
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c == nil || !(c.HasError() || c.IsMissing()) {
			continue
		}
		if found := firstError(c); found != nil {
			return found
		}
	}
	return nil
}

var functionTypes = map[string]bool{
	"function_declaration":           true,
	"generator_function_declaration": true,
	"function":                       true,
	"function_expression":            true,
	"generator_function":             true,
	"arrow_function":                 true,
	"method_definition":              true,
}

func topLevelReturn(n *sitter.Node) *sitter.Node {
	if n.Type() == "return_statement" {
		return n
	}
	if functionTypes[n.Type()] {
		return nil
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if found := topLevelReturn(n.NamedChild(i)); found != nil {
			return found
		}
	}
	return nil
}

// lowering converts tree-sitter nodes into typed nodes.
type lowering struct {
	src    []byte
	offset int
}

func (l *lowering) rng(n *sitter.Node) Range {
	sp, ep := n.StartPoint(), n.EndPoint()
	return Range{
		Start: Position{Line: int(sp.Row) + 1 + l.offset, Column: int(sp.Column) + 1},
		End:   Position{Line: int(ep.Row) + 1 + l.offset, Column: int(ep.Column) + 1},
	}
}

func (l *lowering) text(n *sitter.Node) string {
	return n.Content(l.src)
}

// named returns the named children of n, comments excluded.
func named(n *sitter.Node) []*sitter.Node {
	if n == nil {
		return nil
	}
	out := make([]*sitter.Node, 0, n.NamedChildCount())
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c == nil || c.Type() == "comment" || c.Type() == "hash_bang_line" {
			continue
		}
		out = append(out, c)
	}
	return out
}

func firstNamed(n *sitter.Node) *sitter.Node {
	if kids := named(n); len(kids) > 0 {
		return kids[0]
	}
	return nil
}

func sameNode(a, b *sitter.Node) bool {
	return a != nil && b != nil && a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte() && a.Type() == b.Type()
}

func (l *lowering) program(n *sitter.Node) *Program {
	p := &Program{base: base{Rng: l.rng(n)}}
	for _, c := range named(n) {
		if s := l.lower(c); s != nil {
			p.Body = append(p.Body, s)
		}
	}
	return p
}

func (l *lowering) list(nodes []*sitter.Node) []Node {
	var out []Node
	for _, c := range nodes {
		if s := l.lower(c); s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (l *lowering) block(n *sitter.Node) *BlockStmt {
	if n == nil {
		return nil
	}
	return &BlockStmt{base: base{Rng: l.rng(n)}, Body: l.list(named(n))}
}

func (l *lowering) ident(n *sitter.Node) *Ident {
	if n == nil {
		return nil
	}
	return &Ident{base: base{Rng: l.rng(n)}, Name: l.text(n)}
}

// field lowers the child stored under name, or returns nil.
func (l *lowering) field(n *sitter.Node, name string) Node {
	c := n.ChildByFieldName(name)
	if c == nil {
		return nil
	}
	return l.lower(c)
}

// lower converts any statement or expression node. Nil input yields nil.
func (l *lowering) lower(n *sitter.Node) Node {
	if n == nil {
		return nil
	}
	b := base{Rng: l.rng(n)}

	switch n.Type() {
	case "comment", "hash_bang_line", "optional_chain":
		return nil

	case "statement_block", "class_static_block":
		return l.block(n)

	case "expression_statement":
		x := l.lower(firstNamed(n))
		if x == nil {
			return &EmptyStmt{base: b}
		}
		return &ExprStmt{base: b, X: x}

	case "lexical_declaration", "variable_declaration":
		return l.varDecl(n)

	case "function_declaration", "generator_function_declaration":
		return l.function(n, FuncDeclaration)

	case "function", "function_expression", "generator_function":
		return l.function(n, FuncExpression)

	case "arrow_function":
		return l.function(n, FuncArrow)

	case "class_declaration", "class":
		return l.class(n)

	case "return_statement":
		return &ReturnStmt{base: b, Arg: l.lower(firstNamed(n))}

	case "if_statement":
		s := &IfStmt{base: b, Cond: l.field(n, "condition"), Then: l.field(n, "consequence")}
		if alt := n.ChildByFieldName("alternative"); alt != nil {
			if alt.Type() == "else_clause" {
				s.Else = l.lower(firstNamed(alt))
			} else {
				s.Else = l.lower(alt)
			}
		}
		return s

	case "for_statement":
		return &ForStmt{
			base:   b,
			Init:   l.field(n, "initializer"),
			Cond:   l.field(n, "condition"),
			Update: l.field(n, "increment"),
			Body:   l.field(n, "body"),
		}

	case "for_in_statement":
		return l.forIn(n)

	case "while_statement":
		return &WhileStmt{base: b, Cond: l.field(n, "condition"), Body: l.field(n, "body")}

	case "do_statement":
		return &DoWhileStmt{base: b, Body: l.field(n, "body"), Cond: l.field(n, "condition")}

	case "switch_statement":
		return l.switchStmt(n)

	case "try_statement":
		s := &TryStmt{base: b, Block: l.block(n.ChildByFieldName("body"))}
		if h := n.ChildByFieldName("handler"); h != nil {
			s.Handler = &CatchClause{base: base{Rng: l.rng(h)}, Body: l.block(h.ChildByFieldName("body"))}
			if p := h.ChildByFieldName("parameter"); p != nil {
				s.Handler.Param = l.pattern(p)
			}
		}
		if f := n.ChildByFieldName("finalizer"); f != nil {
			s.Finalizer = l.block(f.ChildByFieldName("body"))
		}
		return s

	case "with_statement":
		return &WithStmt{base: b, Object: l.field(n, "object"), Body: l.field(n, "body")}

	case "labeled_statement":
		s := &LabeledStmt{base: b, Body: l.field(n, "body")}
		if label := n.ChildByFieldName("label"); label != nil {
			s.Label = l.text(label)
		}
		return s

	case "debugger_statement":
		return &DebuggerStmt{base: b}

	case "throw_statement":
		return &ThrowStmt{base: b, Arg: l.lower(firstNamed(n))}

	case "break_statement", "continue_statement":
		s := &BranchStmt{base: b, Keyword: strings.TrimSuffix(n.Type(), "_statement")}
		if label := n.ChildByFieldName("label"); label != nil {
			s.Label = l.text(label)
		}
		return s

	case "empty_statement":
		return &EmptyStmt{base: b}

	case "identifier", "property_identifier", "shorthand_property_identifier",
		"private_property_identifier", "statement_identifier":
		return l.ident(n)

	case "undefined":
		return &Literal{base: b, Kind: LitUndefined, Raw: l.text(n)}

	case "number":
		return &Literal{base: b, Kind: LitNumber, Raw: l.text(n), Value: l.text(n)}

	case "string":
		raw := l.text(n)
		return &Literal{base: b, Kind: LitString, Raw: raw, Value: unquote(raw)}

	case "template_string":
		lit := &Literal{base: b, Kind: LitTemplate, Raw: l.text(n)}
		for _, c := range named(n) {
			if c.Type() == "template_substitution" {
				lit.Subs = append(lit.Subs, l.list(named(c))...)
			}
		}
		return lit

	case "regex":
		return &Literal{base: b, Kind: LitRegex, Raw: l.text(n)}

	case "true", "false":
		return &Literal{base: b, Kind: LitBool, Raw: l.text(n), Value: l.text(n)}

	case "null":
		return &Literal{base: b, Kind: LitNull, Raw: l.text(n)}

	case "this":
		return &ThisExpr{base: b}

	case "super":
		return &ThisExpr{base: b, Super: true}

	case "call_expression":
		c := &CallExpr{base: b, Callee: l.field(n, "function")}
		if args := n.ChildByFieldName("arguments"); args != nil {
			if args.Type() == "arguments" {
				c.Args = l.list(named(args))
			} else {
				c.Args = []Node{l.lower(args)}
			}
		}
		return c

	case "new_expression":
		c := &CallExpr{base: b, Callee: l.field(n, "constructor"), New: true}
		if args := n.ChildByFieldName("arguments"); args != nil {
			c.Args = l.list(named(args))
		}
		return c

	case "member_expression":
		m := &MemberExpr{base: b, Object: l.field(n, "object")}
		if p := n.ChildByFieldName("property"); p != nil {
			m.Property = l.ident(p)
		}
		return m

	case "subscript_expression":
		return &MemberExpr{base: b, Object: l.field(n, "object"), Property: l.field(n, "index"), Computed: true}

	case "assignment_expression":
		return &AssignExpr{base: b, Op: "=", Left: l.assignTarget(n.ChildByFieldName("left")), Right: l.field(n, "right")}

	case "augmented_assignment_expression":
		return &AssignExpr{base: b, Op: l.operator(n), Left: l.lower(n.ChildByFieldName("left")), Right: l.field(n, "right")}

	case "binary_expression":
		return &BinaryExpr{base: b, Op: l.operator(n), Left: l.field(n, "left"), Right: l.field(n, "right")}

	case "unary_expression":
		return &UnaryExpr{base: b, Op: l.operator(n), Arg: l.field(n, "argument")}

	case "update_expression":
		u := &UnaryExpr{base: b, Op: l.operator(n), Arg: l.field(n, "argument")}
		if arg := n.ChildByFieldName("argument"); arg != nil && n.Child(0) != nil && sameNode(n.Child(0), arg) {
			u.Postfix = true
		}
		return u

	case "await_expression":
		return &UnaryExpr{base: b, Op: "await", Arg: l.lower(firstNamed(n))}

	case "yield_expression":
		return &UnaryExpr{base: b, Op: "yield", Arg: l.lower(firstNamed(n))}

	case "spread_element":
		return &UnaryExpr{base: b, Op: "...", Arg: l.lower(firstNamed(n))}

	case "ternary_expression":
		return &CondExpr{base: b, Test: l.field(n, "condition"), Then: l.field(n, "consequence"), Else: l.field(n, "alternative")}

	case "parenthesized_expression":
		return l.lower(firstNamed(n))

	case "sequence_expression":
		return &SequenceExpr{base: b, Exprs: l.list(l.flattenSequence(n, nil))}

	case "object":
		return &ObjectExpr{base: b, Props: l.properties(n)}

	case "array":
		return &ArrayExpr{base: b, Elems: l.list(named(n))}

	case "object_pattern", "array_pattern", "assignment_pattern", "rest_pattern":
		return l.pattern(n)
	}

	return &Unknown{base: b, Type: n.Type(), Children: l.list(named(n))}
}

func (l *lowering) operator(n *sitter.Node) string {
	if op := n.ChildByFieldName("operator"); op != nil {
		return l.text(op)
	}
	return ""
}

func (l *lowering) flattenSequence(n *sitter.Node, acc []*sitter.Node) []*sitter.Node {
	for _, c := range named(n) {
		if c.Type() == "sequence_expression" {
			acc = l.flattenSequence(c, acc)
			continue
		}
		acc = append(acc, c)
	}
	return acc
}

func (l *lowering) varDecl(n *sitter.Node) *VarDecl {
	d := &VarDecl{base: base{Rng: l.rng(n)}}
	if kw := n.Child(0); kw != nil {
		d.Kind = kw.Type()
	}
	for _, c := range named(n) {
		if c.Type() != "variable_declarator" {
			continue
		}
		decl := &Declarator{base: base{Rng: l.rng(c)}, Init: l.field(c, "value")}
		if name := c.ChildByFieldName("name"); name != nil {
			decl.Target = l.pattern(name)
		}
		d.Decls = append(d.Decls, decl)
	}
	return d
}

func (l *lowering) function(n *sitter.Node, kind FuncKind) *Function {
	fn := &Function{base: base{Rng: l.rng(n)}, Kind: kind, Body: l.field(n, "body")}
	if kind != FuncMethod {
		if name := n.ChildByFieldName("name"); name != nil {
			fn.Name = l.ident(name)
		}
	}
	if p := n.ChildByFieldName("parameter"); p != nil {
		fn.Params = append(fn.Params, l.pattern(p))
	}
	if ps := n.ChildByFieldName("parameters"); ps != nil {
		for _, p := range named(ps) {
			fn.Params = append(fn.Params, l.pattern(p))
		}
	}
	return fn
}

func (l *lowering) class(n *sitter.Node) *ClassDecl {
	c := &ClassDecl{base: base{Rng: l.rng(n)}, Expression: n.Type() == "class"}
	if name := n.ChildByFieldName("name"); name != nil {
		c.Name = l.ident(name)
	}
	for _, child := range named(n) {
		if child.Type() == "class_heritage" {
			c.SuperClass = l.lower(firstNamed(child))
		}
	}
	body := n.ChildByFieldName("body")
	for _, m := range named(body) {
		switch m.Type() {
		case "method_definition":
			c.Members = append(c.Members, l.method(m))
		case "field_definition":
			prop := &Property{base: base{Rng: l.rng(m)}, Value: l.field(m, "value")}
			if key := m.ChildByFieldName("property"); key != nil {
				prop.Key, prop.Computed = l.key(key)
			}
			c.Members = append(c.Members, prop)
		default:
			if s := l.lower(m); s != nil {
				c.Members = append(c.Members, s)
			}
		}
	}
	return c
}

func (l *lowering) method(n *sitter.Node) *Property {
	prop := &Property{base: base{Rng: l.rng(n)}, Value: l.function(n, FuncMethod)}
	if key := n.ChildByFieldName("name"); key != nil {
		prop.Key, prop.Computed = l.key(key)
	}
	return prop
}

// key lowers a property name and reports whether it is computed.
func (l *lowering) key(n *sitter.Node) (Node, bool) {
	switch n.Type() {
	case "computed_property_name":
		return l.lower(firstNamed(n)), true
	case "property_identifier", "identifier", "private_property_identifier",
		"shorthand_property_identifier", "shorthand_property_identifier_pattern":
		return l.ident(n), false
	}
	return l.lower(n), false
}

func (l *lowering) properties(n *sitter.Node) []Node {
	var props []Node
	for _, c := range named(n) {
		switch c.Type() {
		case "pair":
			prop := &Property{base: base{Rng: l.rng(c)}, Value: l.field(c, "value")}
			if key := c.ChildByFieldName("key"); key != nil {
				prop.Key, prop.Computed = l.key(key)
			}
			props = append(props, prop)
		case "shorthand_property_identifier":
			props = append(props, &Property{
				base:      base{Rng: l.rng(c)},
				Key:       l.ident(c),
				Value:     l.ident(c),
				Shorthand: true,
			})
		case "method_definition":
			props = append(props, l.method(c))
		default:
			if s := l.lower(c); s != nil {
				props = append(props, s)
			}
		}
	}
	return props
}

func (l *lowering) forIn(n *sitter.Node) *ForInStmt {
	s := &ForInStmt{base: base{Rng: l.rng(n)}, Right: l.field(n, "right"), Body: l.field(n, "body")}
	if op := n.ChildByFieldName("operator"); op != nil {
		s.Of = l.text(op) == "of"
	} else {
		for i := 0; i < int(n.ChildCount()); i++ {
			if c := n.Child(i); c != nil && !c.IsNamed() && c.Type() == "of" {
				s.Of = true
			}
		}
	}
	left := n.ChildByFieldName("left")
	if kind := n.ChildByFieldName("kind"); kind != nil && left != nil {
		s.Left = &VarDecl{
			base:  base{Rng: l.rng(left)},
			Kind:  l.text(kind),
			Decls: []*Declarator{{base: base{Rng: l.rng(left)}, Target: l.pattern(left)}},
		}
	} else if left != nil {
		if left.Type() == "lexical_declaration" || left.Type() == "variable_declaration" {
			s.Left = l.varDecl(left)
		} else {
			s.Left = l.assignTarget(left)
		}
	}
	return s
}

func (l *lowering) switchStmt(n *sitter.Node) *SwitchStmt {
	s := &SwitchStmt{base: base{Rng: l.rng(n)}, Disc: l.field(n, "value")}
	for _, c := range named(n.ChildByFieldName("body")) {
		if c.Type() != "switch_case" && c.Type() != "switch_default" {
			continue
		}
		sc := &SwitchCase{base: base{Rng: l.rng(c)}}
		value := c.ChildByFieldName("value")
		if value != nil {
			sc.Test = l.lower(value)
		}
		for _, stmt := range named(c) {
			if sameNode(stmt, value) {
				continue
			}
			if st := l.lower(stmt); st != nil {
				sc.Body = append(sc.Body, st)
			}
		}
		s.Cases = append(s.Cases, sc)
	}
	return s
}

// assignTarget lowers the left side of an assignment. Destructuring targets
// keep their pattern shape.
func (l *lowering) assignTarget(n *sitter.Node) Node {
	if n == nil {
		return nil
	}
	switch n.Type() {
	case "object_pattern", "array_pattern":
		return l.pattern(n)
	}
	return l.lower(n)
}

// pattern lowers a binding target: a declarator name, a parameter, or a
// destructuring pattern.
func (l *lowering) pattern(n *sitter.Node) Node {
	if n == nil {
		return nil
	}
	b := base{Rng: l.rng(n)}
	switch n.Type() {
	case "identifier", "shorthand_property_identifier_pattern", "undefined":
		return l.ident(n)

	case "object_pattern":
		p := &ObjectPattern{base: b}
		for _, c := range named(n) {
			switch c.Type() {
			case "pair_pattern":
				prop := &Property{base: base{Rng: l.rng(c)}}
				if key := c.ChildByFieldName("key"); key != nil {
					prop.Key, prop.Computed = l.key(key)
				}
				prop.Value = l.pattern(c.ChildByFieldName("value"))
				p.Props = append(p.Props, prop)
			case "shorthand_property_identifier_pattern":
				p.Props = append(p.Props, &Property{
					base:      base{Rng: l.rng(c)},
					Key:       l.ident(c),
					Value:     l.ident(c),
					Shorthand: true,
				})
			case "object_assignment_pattern":
				left := c.ChildByFieldName("left")
				p.Props = append(p.Props, &Property{
					base:      base{Rng: l.rng(c)},
					Key:       l.ident(left),
					Value:     &AssignPattern{base: base{Rng: l.rng(c)}, Target: l.pattern(left), Default: l.field(c, "right")},
					Shorthand: true,
				})
			default:
				if s := l.pattern(c); s != nil {
					p.Props = append(p.Props, s)
				}
			}
		}
		return p

	case "array_pattern":
		p := &ArrayPattern{base: b}
		for _, c := range named(n) {
			if s := l.pattern(c); s != nil {
				p.Elems = append(p.Elems, s)
			}
		}
		return p

	case "assignment_pattern":
		return &AssignPattern{base: b, Target: l.pattern(n.ChildByFieldName("left")), Default: l.field(n, "right")}

	case "rest_pattern":
		return &RestElement{base: b, Arg: l.pattern(firstNamed(n))}
	}
	return l.lower(n)
}

func unquote(raw string) string {
	if len(raw) >= 2 {
		return raw[1 : len(raw)-1]
	}
	return raw
}
