package syntax

// Children returns the direct children of n in source order. Nil children are omitted.
func Children(n Node) []Node {
	var out []Node
	add := func(nodes ...Node) {
		for _, c := range nodes {
			if c != nil && !isNilNode(c) {
				out = append(out, c)
			}
		}
	}

	switch n := n.(type) {
	case *Program:
		add(n.Body...)
	case *BlockStmt:
		add(n.Body...)
	case *VarDecl:
		for _, d := range n.Decls {
			add(d)
		}
	case *Declarator:
		add(n.Target, n.Init)
	case *Function:
		if n.Name != nil {
			add(n.Name)
		}
		add(n.Params...)
		add(n.Body)
	case *ClassDecl:
		if n.Name != nil {
			add(n.Name)
		}
		add(n.SuperClass)
		add(n.Members...)
	case *ExprStmt:
		add(n.X)
	case *ReturnStmt:
		add(n.Arg)
	case *IfStmt:
		add(n.Cond, n.Then, n.Else)
	case *ForStmt:
		add(n.Init, n.Cond, n.Update, n.Body)
	case *ForInStmt:
		add(n.Left, n.Right, n.Body)
	case *WhileStmt:
		add(n.Cond, n.Body)
	case *DoWhileStmt:
		add(n.Body, n.Cond)
	case *SwitchStmt:
		add(n.Disc)
		for _, c := range n.Cases {
			add(c)
		}
	case *SwitchCase:
		add(n.Test)
		add(n.Body...)
	case *TryStmt:
		if n.Block != nil {
			add(n.Block)
		}
		if n.Handler != nil {
			add(n.Handler)
		}
		if n.Finalizer != nil {
			add(n.Finalizer)
		}
	case *CatchClause:
		add(n.Param)
		if n.Body != nil {
			add(n.Body)
		}
	case *WithStmt:
		add(n.Object, n.Body)
	case *LabeledStmt:
		add(n.Body)
	case *ThrowStmt:
		add(n.Arg)
	case *Literal:
		add(n.Subs...)
	case *CallExpr:
		add(n.Callee)
		add(n.Args...)
	case *MemberExpr:
		add(n.Object, n.Property)
	case *AssignExpr:
		add(n.Left, n.Right)
	case *BinaryExpr:
		add(n.Left, n.Right)
	case *UnaryExpr:
		add(n.Arg)
	case *CondExpr:
		add(n.Test, n.Then, n.Else)
	case *ObjectExpr:
		add(n.Props...)
	case *Property:
		add(n.Key, n.Value)
	case *ArrayExpr:
		add(n.Elems...)
	case *SequenceExpr:
		add(n.Exprs...)
	case *ObjectPattern:
		add(n.Props...)
	case *ArrayPattern:
		add(n.Elems...)
	case *AssignPattern:
		add(n.Target, n.Default)
	case *RestElement:
		add(n.Arg)
	case *Unknown:
		add(n.Children...)
	case *DebuggerStmt, *BranchStmt, *EmptyStmt, *Ident, *ThisExpr:
	}
	return out
}

// isNilNode catches typed nil pointers stored in a Node interface.
func isNilNode(n Node) bool {
	switch v := n.(type) {
	case *Ident:
		return v == nil
	case *BlockStmt:
		return v == nil
	case *Function:
		return v == nil
	case *CatchClause:
		return v == nil
	case *Declarator:
		return v == nil
	case *SwitchCase:
		return v == nil
	}
	return false
}

// Inspect traverses the tree rooted at root depth-first. f is called with
// push=true before a node's children and push=false after them. stack holds
// the ancestors of n, outermost first, and excludes n itself. Returning false
// on push skips the children and the matching pop call.
func Inspect(root Node, f func(n Node, push bool, stack []Node) bool) {
	if root == nil {
		return
	}
	var stack []Node
	var visit func(Node)
	visit = func(n Node) {
		if !f(n, true, stack) {
			return
		}
		stack = append(stack, n)
		for _, c := range Children(n) {
			visit(c)
		}
		stack = stack[:len(stack)-1]
		f(n, false, stack)
	}
	visit(root)
}

// Preorder calls f for every node before its children.
func Preorder(root Node, f func(n Node, stack []Node)) {
	Inspect(root, func(n Node, push bool, stack []Node) bool {
		if push {
			f(n, stack)
		}
		return true
	})
}
