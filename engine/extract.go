package engine

import (
	"strings"

	"github.com/gomarkdown/markdown/ast"
	"github.com/gomarkdown/markdown/parser"
)

// Fence tag for blocks the model wants executed. Anything else, including
// plain ```python, is illustrative and never runs.
const replTag = "repl"

// ExtractCodeBlocks pulls executable fenced blocks out of a model response in
// document order. No blocks is a normal outcome, never an error; the loop
// turns it into feedback.
func ExtractCodeBlocks(response string) []string {
	// Parser instances hold state and cannot be reused across parses.
	p := parser.NewWithExtensions(parser.FencedCode)
	doc := p.Parse([]byte(response))

	var blocks []string
	ast.WalkFunc(doc, func(node ast.Node, entering bool) ast.WalkStatus {
		if !entering {
			return ast.GoToNext
		}
		cb, ok := node.(*ast.CodeBlock)
		if !ok || !cb.IsFenced {
			return ast.GoToNext
		}
		if strings.TrimSpace(string(cb.Info)) != replTag {
			return ast.GoToNext
		}
		blocks = append(blocks, strings.TrimSuffix(string(cb.Literal), "\n"))
		return ast.GoToNext
	})
	return blocks
}
