// Package markdown turns note content into plain text for previews.
package markdown

import (
	"strings"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// DefaultSnippetLength is the preview length used by the notes API, in runes.
const DefaultSnippetLength = 200

var parser = goldmark.New().Parser()

// PlainText renders markdown content as a single line of text.
// Markup is dropped; the text of links, emphasis and code is kept.
func PlainText(content string) string {
	source := []byte(content)
	doc := parser.Parse(text.NewReader(source))

	var b strings.Builder
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if n.Type() == ast.TypeBlock {
				b.WriteByte(' ')
			}
			return ast.WalkContinue, nil
		}

		switch node := n.(type) {
		case *ast.Text:
			b.Write(node.Segment.Value(source))
			if node.SoftLineBreak() || node.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(node.Value)
		case *ast.AutoLink:
			b.Write(node.URL(source))
		case *ast.CodeBlock, *ast.FencedCodeBlock, *ast.HTMLBlock:
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				segment := lines.At(i)
				b.Write(segment.Value(source))
				b.WriteByte(' ')
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})

	return strings.Join(strings.Fields(b.String()), " ")
}

// Snippet returns at most maxRunes runes of the plain text, with "..." appended when truncated.
func Snippet(content string, maxRunes int) string {
	if maxRunes <= 0 {
		maxRunes = DefaultSnippetLength
	}
	plain := PlainText(content)
	if utf8.RuneCountInString(plain) <= maxRunes {
		return plain
	}
	runes := []rune(plain)
	return strings.TrimSpace(string(runes[:maxRunes])) + "..."
}
