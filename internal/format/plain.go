// Package format converts model output and post files between the markdown
// the backends like to produce and the plain text social platforms accept.
package format

import (
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var md = goldmark.New()

// PlainText strips markdown syntax from s. Emphasis markers, heading marks
// and code fences disappear, list items keep a "- " or "N. " prefix and
// links render as "text (url)". Blocks are separated by one blank line.
func PlainText(s string) string {
	source := []byte(s)
	doc := md.Parser().Parse(text.NewReader(source))

	var b strings.Builder
	linkStart := -1

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch node := n.(type) {
		case *ast.Text:
			if entering {
				b.Write(node.Segment.Value(source))
				if node.SoftLineBreak() || node.HardLineBreak() {
					b.WriteByte('\n')
				}
			}
		case *ast.String:
			if entering {
				b.Write(node.Value)
			}
		case *ast.AutoLink:
			if entering {
				b.Write(node.URL(source))
			}
			return ast.WalkSkipChildren, nil
		case *ast.Link:
			if entering {
				linkStart = b.Len()
				return ast.WalkContinue, nil
			}
			label := b.String()[linkStart:]
			if dest := string(node.Destination); dest != "" && dest != label {
				fmt.Fprintf(&b, " (%s)", dest)
			}
			linkStart = -1
		case *ast.ListItem:
			if entering {
				b.WriteString(listMarker(node))
			}
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			if entering {
				lines := n.Lines()
				for i := 0; i < lines.Len(); i++ {
					seg := lines.At(i)
					b.Write(seg.Value(source))
				}
				return ast.WalkContinue, nil
			}
			b.WriteString("\n")
		case *ast.RawHTML, *ast.HTMLBlock:
			return ast.WalkSkipChildren, nil
		case *ast.Paragraph, *ast.Heading:
			if !entering {
				b.WriteString("\n\n")
			}
		case *ast.TextBlock:
			if !entering {
				b.WriteString("\n")
			}
		case *ast.List:
			if !entering && n.Parent() != nil && n.Parent().Kind() != ast.KindListItem {
				b.WriteString("\n")
			}
		}
		return ast.WalkContinue, nil
	})

	return tidy(b.String())
}

// listMarker returns the bullet or number of item, indented by nesting depth.
func listMarker(item *ast.ListItem) string {
	depth := 0
	for p := item.Parent(); p != nil; p = p.Parent() {
		if p.Kind() == ast.KindList {
			depth++
		}
	}
	indent := strings.Repeat("  ", max(depth-1, 0))

	list, ok := item.Parent().(*ast.List)
	if !ok || !list.IsOrdered() {
		return indent + "- "
	}

	index := 0
	for s := item.PreviousSibling(); s != nil; s = s.PreviousSibling() {
		index++
	}
	return fmt.Sprintf("%s%d. ", indent, list.Start+index)
}

// tidy trims trailing spaces and collapses runs of blank lines.
func tidy(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if line == "" {
			if blank {
				continue
			}
			blank = true
		} else {
			blank = false
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
