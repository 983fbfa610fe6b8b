// Package conv converts model output to the markup chat clients accept.
package conv

import (
	"fmt"
	"io"
	"slices"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/ast"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/microcosm-cc/bluemonday"
)

var (
	extensions = parser.CommonExtensions | parser.NoEmptyLineBeforeBlock
	htmlFlags  = html.CommonFlags | html.HrefTargetBlank
	tgPolicy   = bluemonday.NewPolicy()
)

func init() {
	// https://core.telegram.org/bots/api#html-style
	tgPolicy.AllowElements("b", "strong", "i", "em", "u", "ins", "s", "strike", "del", "code", "pre", "blockquote")
	tgPolicy.AllowAttrs("href").OnElements("a")
	tgPolicy.AllowAttrs("class").OnElements("code")
}

// MarkdownToTelegramHTML renders markdown into the HTML subset Telegram
// accepts. Headings become bold lines and lists become prefixed lines,
// since Telegram has no tags for either.
func MarkdownToTelegramHTML(md []byte) string {
	p := parser.NewWithExtensions(extensions)
	renderer := html.NewRenderer(html.RendererOptions{
		Flags:          htmlFlags,
		RenderNodeHook: telegramNode,
	})
	unsafeHTML := markdown.Render(p.Parse(md), renderer)

	return string(tgPolicy.SanitizeBytes(unsafeHTML))
}

func telegramNode(w io.Writer, node ast.Node, entering bool) (ast.WalkStatus, bool) {
	switch n := node.(type) {
	case *ast.Heading:
		if entering {
			io.WriteString(w, "<b>")
		} else {
			io.WriteString(w, "</b>\n")
		}
		return ast.GoToNext, true
	case *ast.List:
		return ast.GoToNext, true
	case *ast.ListItem:
		if entering {
			io.WriteString(w, listMarker(n))
		} else {
			io.WriteString(w, "\n")
		}
		return ast.GoToNext, true
	}
	return ast.GoToNext, false
}

func listMarker(item *ast.ListItem) string {
	list, ok := item.Parent.(*ast.List)
	if !ok || item.ListFlags&ast.ListTypeOrdered == 0 {
		return "• "
	}
	start := max(list.Start, 1)
	return fmt.Sprintf("%d. ", start+slices.Index(list.Children, ast.Node(item)))
}
