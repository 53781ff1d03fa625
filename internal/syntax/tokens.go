package syntax

import (
	"context"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
)

// branchTokens are the keyword and operator tokens counted as decision points.
var branchTokens = map[string]bool{
	"if":     true,
	"while":  true,
	"for":    true,
	"catch":  true,
	"switch": true,
	"case":   true,
	"&&":     true,
	"||":     true,
}

// TokenStats summarizes the token stream of a unit for complexity scoring.
type TokenStats struct {
	Branches       int
	MaxBraceDepth  int
	NamedFunctions int
}

// ScanTokens counts decision tokens, brace nesting and named functions.
// tree-sitter recovers from syntax errors, so partially invalid source still
// yields counts for the parts it understood. Tokens inside strings, templates
// and comments are never counted.
func ScanTokens(ctx context.Context, src string) TokenStats {
	var stats TokenStats
	if src == "" {
		return stats
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(javascript.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, []byte(src))
	if err != nil {
		return stats
	}
	defer tree.Close()

	depth := 0
	var visit func(n *sitter.Node, parentType string)
	visit = func(n *sitter.Node, parentType string) {
		typ := n.Type()
		switch {
		case typ == "{":
			depth++
			if depth > stats.MaxBraceDepth {
				stats.MaxBraceDepth = depth
			}
		case typ == "}":
			if depth > 0 {
				depth--
			}
		case branchTokens[typ] && !n.IsNamed():
			stats.Branches++
		case typ == "?" && parentType == "ternary_expression":
			stats.Branches++
		case isNamedFunction(n):
			stats.NamedFunctions++
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			if c := n.Child(i); c != nil {
				visit(c, typ)
			}
		}
	}
	visit(tree.RootNode(), "")
	return stats
}

func isNamedFunction(n *sitter.Node) bool {
	switch n.Type() {
	case "function_declaration", "generator_function_declaration",
		"function", "function_expression", "generator_function":
		return n.ChildByFieldName("name") != nil
	}
	return false
}
