package parser

import (
	"os"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// pageHeadingLevel is the deepest heading level that starts a new page.
const pageHeadingLevel = 2

// parseMarkdown splits a Markdown file into pages at level 1 and 2 headings.
// Block text is kept as written in the source, without the heading markers.
func parseMarkdown(filePath string) ([]string, error) {
	src, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	doc := md.Parser().Parse(text.NewReader(src))

	var (
		pages []string
		cur   strings.Builder
	)
	flush := func() {
		if page := strings.TrimSpace(cur.String()); page != "" {
			pages = append(pages, page)
		}
		cur.Reset()
	}

	err = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			switch n.Kind() {
			case extast.KindTableCell:
				cur.WriteString("\t")
			case extast.KindTableRow, extast.KindTableHeader:
				cur.WriteString("\n")
			}
			return ast.WalkContinue, nil
		}

		if h, ok := n.(*ast.Heading); ok && h.Level <= pageHeadingLevel {
			flush()
		}

		if t, ok := n.(*ast.Text); ok {
			cur.Write(t.Segment.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				cur.WriteString("\n")
			}
			return ast.WalkContinue, nil
		}

		if n.Type() != ast.TypeBlock {
			return ast.WalkContinue, nil
		}
		lines := n.Lines()
		if lines == nil || lines.Len() == 0 {
			return ast.WalkContinue, nil
		}
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			value := seg.Value(src)
			if n.Kind() == extast.KindTableCell {
				value = []byte(strings.TrimSpace(string(value)))
			}
			cur.Write(value)
		}
		if n.Kind() == extast.KindTableCell {
			return ast.WalkSkipChildren, nil
		}
		if !strings.HasSuffix(cur.String(), "\n") {
			cur.WriteString("\n")
		}
		cur.WriteString("\n")
		return ast.WalkSkipChildren, nil
	})
	if err != nil {
		return nil, err
	}
	flush()

	if len(pages) == 0 {
		pages = []string{""}
	}
	return pages, nil
}
