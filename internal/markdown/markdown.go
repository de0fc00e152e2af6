// Package markdown reduces forum posts to the prose a language detector
// should look at.
package markdown

import (
	stdhtml "html"
	"regexp"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/ast"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

var reSpaces = regexp.MustCompile(`[ \t]+`)

// ToPlainText renders md and drops code blocks, inline code and markup,
// leaving only the text a reader would see as prose.
func ToPlainText(md []byte) string {
	p := parser.NewWithExtensions(parser.CommonExtensions)
	doc := p.Parse(md)

	// Code is language-neutral noise for detection.
	ast.WalkFunc(doc, func(node ast.Node, entering bool) ast.WalkStatus {
		switch n := node.(type) {
		case *ast.CodeBlock:
			n.Literal = nil
		case *ast.Code:
			n.Literal = nil
		}
		return ast.GoToNext
	})

	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags})
	text := StripHTMLTags(string(markdown.Render(doc, renderer)))
	text = stdhtml.UnescapeString(text)

	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(reSpaces.ReplaceAllString(line, " "))
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

func StripHTMLTags(htmlContent string) string {
	var sb strings.Builder
	inTag := false

	for _, ch := range htmlContent {
		switch {
		case ch == '<':
			inTag = true
		case ch == '>' && inTag:
			inTag = false
			sb.WriteByte(' ')
		case !inTag:
			sb.WriteRune(ch)
		}
	}

	return sb.String()
}
