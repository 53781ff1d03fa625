// Package scope tracks declarations and references across nested lexical
// scopes and reports declarations that are never referenced.
package scope

import (
	"strings"

	"flowlint/internal/syntax"
)

// DeclKind identifies the binding form that introduced a name.
type DeclKind int

const (
	KindVariable DeclKind = iota
	KindFunction
	KindClass
	KindParam
	KindCatch
)

func (k DeclKind) String() string {
	switch k {
	case KindFunction:
		return "function"
	case KindClass:
		return "class"
	case KindParam:
		return "parameter"
	case KindCatch:
		return "catch parameter"
	default:
		return "variable"
	}
}

// Declaration is one binding site.
type Declaration struct {
	Name  string
	Ident *syntax.Ident
	Kind  DeclKind
	// FuncInit is set for variables initialized with a function or closure.
	FuncInit bool
}

// entry records usage per name, not per declaration: a name declared twice in
// one scope counts as used when either binding is referenced.
type entry struct {
	decls []Declaration
	uses  int
}

// Scope is one lexical scope: the program, a function, a block or a catch clause.
type Scope struct {
	Node   syntax.Node
	Parent *Scope

	names map[string]*entry
	order []string
}

func newScope(n syntax.Node, parent *Scope) *Scope {
	return &Scope{Node: n, Parent: parent, names: make(map[string]*entry)}
}

func (s *Scope) declare(d Declaration) {
	e, ok := s.names[d.Name]
	if !ok {
		e = &entry{}
		s.names[d.Name] = e
		s.order = append(s.order, d.Name)
	}
	e.decls = append(e.decls, d)
}

// Tracker finds unused declarations. Names in the exempt set are host-provided
// globals and are never reported.
type Tracker struct {
	exempt map[string]bool
}

// NewTracker returns a tracker that never reports the given global names.
func NewTracker(globals []string) *Tracker {
	t := &Tracker{exempt: make(map[string]bool, len(globals))}
	for _, g := range globals {
		t.exempt[g] = true
	}
	return t
}

// Unused walks root and returns unused declarations in scope-exit order,
// innermost scopes first and declaration order within a scope.
//
// A reference is resolved when it is visited, against the innermost open
// scope that already declares the name. References to names not declared at
// that point are dropped, so a use that precedes its declaration does not
// count.
func (t *Tracker) Unused(root syntax.Node) []Declaration {
	if root == nil {
		return nil
	}
	w := &walker{tracker: t}
	w.node(root)
	return w.unused
}

// Exempt reports whether d is excluded from unused reporting.
func (t *Tracker) Exempt(d Declaration) bool {
	switch {
	case strings.HasPrefix(d.Name, "_"):
		return true
	case t.exempt[d.Name]:
		return true
	case d.Kind != KindVariable:
		return true
	case d.FuncInit:
		return true
	}
	return false
}

type walker struct {
	tracker *Tracker
	cur     *Scope
	unused  []Declaration
}

func (w *walker) push(n syntax.Node) {
	w.cur = newScope(n, w.cur)
}

func (w *walker) pop() {
	s := w.cur
	for _, name := range s.order {
		e := s.names[name]
		if e.uses > 0 {
			continue
		}
		for _, d := range e.decls {
			if !w.tracker.Exempt(d) {
				w.unused = append(w.unused, d)
			}
		}
	}
	w.cur = s.Parent
}

func (w *walker) declare(id *syntax.Ident, kind DeclKind, funcInit bool) {
	if id == nil || w.cur == nil {
		return
	}
	w.cur.declare(Declaration{Name: id.Name, Ident: id, Kind: kind, FuncInit: funcInit})
}

func (w *walker) reference(id *syntax.Ident) {
	if id == nil || w.cur == nil {
		return
	}
	for s := w.cur; s != nil; s = s.Parent {
		if e, ok := s.names[id.Name]; ok {
			e.uses++
			return
		}
	}
}

func (w *walker) list(nodes []syntax.Node) {
	for _, n := range nodes {
		w.node(n)
	}
}

func (w *walker) node(n syntax.Node) {
	if n == nil {
		return
	}
	switch n := n.(type) {
	case *syntax.Program:
		w.push(n)
		w.list(n.Body)
		w.pop()

	case *syntax.BlockStmt:
		w.push(n)
		w.list(n.Body)
		w.pop()

	case *syntax.Function:
		w.function(n)

	case *syntax.ClassDecl:
		if !n.Expression && n.Name != nil {
			w.declare(n.Name, KindClass, false)
		}
		w.node(n.SuperClass)
		w.list(n.Members)

	case *syntax.VarDecl:
		for _, d := range n.Decls {
			w.declarator(d)
		}

	case *syntax.Declarator:
		w.declarator(n)

	case *syntax.CatchClause:
		w.push(n)
		w.bind(n.Param, KindCatch, false)
		if n.Body != nil {
			w.list(n.Body.Body)
		}
		w.pop()

	case *syntax.Ident:
		w.reference(n)

	case *syntax.MemberExpr:
		w.node(n.Object)
		if n.Computed {
			w.node(n.Property)
		}

	case *syntax.Property:
		if n.Computed {
			w.node(n.Key)
		}
		w.node(n.Value)

	default:
		w.list(syntax.Children(n))
	}
}

func (w *walker) function(fn *syntax.Function) {
	if fn.Kind == syntax.FuncDeclaration && fn.Name != nil {
		w.declare(fn.Name, KindFunction, false)
	}
	w.push(fn)
	if fn.Kind == syntax.FuncExpression && fn.Name != nil {
		w.declare(fn.Name, KindFunction, false)
	}
	for _, p := range fn.Params {
		w.bind(p, KindParam, false)
	}
	if body, ok := fn.Body.(*syntax.BlockStmt); ok && body != nil {
		w.list(body.Body)
	} else {
		w.node(fn.Body)
	}
	w.pop()
}

func (w *walker) declarator(d *syntax.Declarator) {
	if d == nil {
		return
	}
	_, funcInit := d.Init.(*syntax.Function)
	w.bind(d.Target, KindVariable, funcInit)
	w.node(d.Init)
}

// bind declares every name bound by a target and visits the expressions
// nested inside it: defaults and computed keys.
func (w *walker) bind(target syntax.Node, kind DeclKind, funcInit bool) {
	switch t := target.(type) {
	case nil:
	case *syntax.Ident:
		w.declare(t, kind, funcInit)
	case *syntax.ObjectPattern:
		for _, p := range t.Props {
			if prop, ok := p.(*syntax.Property); ok {
				if prop.Computed {
					w.node(prop.Key)
				}
				w.bind(prop.Value, kind, false)
				continue
			}
			w.bind(p, kind, false)
		}
	case *syntax.ArrayPattern:
		for _, e := range t.Elems {
			w.bind(e, kind, false)
		}
	case *syntax.AssignPattern:
		w.bind(t.Target, kind, false)
		w.node(t.Default)
	case *syntax.RestElement:
		w.bind(t.Arg, kind, false)
	default:
		w.node(target)
	}
}
