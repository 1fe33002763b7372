// Package preview renders post markdown to sanitized HTML for the editor's
// preview pane.
package preview

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"io"
	"regexp"
	"strings"
	"sync"

	"github.com/a-h/templ"
	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/ast"
	mdhtml "github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/microcosm-cc/bluemonday"
)

// DefaultTheme is the chroma style used when the blog's highlight theme is
// not one chroma knows.
const DefaultTheme = "monokai"

var chromaClass = regexp.MustCompile(`^[a-zA-Z0-9 _-]+$`)

// policy is safe for concurrent use once built.
var policy = sync.OnceValue(func() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("class").Matching(chromaClass).OnElements("div", "pre", "code", "span")
	p.AddTargetBlankToFullyQualifiedLinks(true)
	return p
})

func formatter() *chromahtml.Formatter {
	return chromahtml.New(
		chromahtml.WithClasses(true),
		chromahtml.TabWidth(4),
	)
}

// Render converts markdown to HTML with fenced code highlighted, then strips
// anything a post author could use to run script in the admin page.
func Render(md string) []byte {
	// Parsers keep state between calls, so each render gets its own.
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs | parser.NoEmptyLineBeforeBlock)
	r := mdhtml.NewRenderer(mdhtml.RendererOptions{
		Flags:          mdhtml.CommonFlags | mdhtml.HrefTargetBlank,
		RenderNodeHook: highlightHook,
	})
	out := markdown.ToHTML([]byte(md), p, r)
	return policy().SanitizeBytes(out)
}

func highlightHook(w io.Writer, node ast.Node, entering bool) (ast.WalkStatus, bool) {
	code, ok := node.(*ast.CodeBlock)
	if !ok || !entering {
		return ast.GoToNext, false
	}
	lang := strings.TrimSpace(string(code.Info))
	if err := highlight(w, string(code.Literal), lang); err != nil {
		return ast.GoToNext, false
	}
	return ast.GoToNext, true
}

func highlight(w io.Writer, src, lang string) error {
	lexer := lexers.Get(lang)
	if lexer == nil {
		lexer = lexers.Fallback
	}
	it, err := chroma.Coalesce(lexer).Tokenise(nil, src)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := formatter().Format(&buf, styles.Fallback, it); err != nil {
		return err
	}
	fmt.Fprintf(w, `<div class="highlight">%s</div>`, buf.Bytes())
	return nil
}

// StyleSheet returns the CSS for highlighted code in the named chroma theme.
func StyleSheet(theme string) template.CSS {
	style := styles.Get(theme)
	if style == styles.Fallback {
		style = styles.Get(DefaultTheme)
	}
	var buf strings.Builder
	if err := formatter().WriteCSS(&buf, style); err != nil {
		return ""
	}
	return template.CSS(buf.String())
}

// Component returns the rendered markdown as a templ component.
func Component(md string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := w.Write(Render(md))
		return err
	})
}
