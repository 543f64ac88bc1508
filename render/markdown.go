// Package render turns assistant markdown into HTML for the landing page and
// into styled text for the terminal widget.
package render

import (
	"bytes"

	"github.com/charmbracelet/glamour"
	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

// Classes applied to rendered elements.
const (
	CodeSpanClass    = "bg-gray-200 p-1 rounded"
	CodeBlockClass   = "bg-gray-200 p-2 rounded"
	BulletListClass  = "list-disc pl-4 space-y-1"
	OrderedListClass = "list-decimal pl-4 space-y-1"
	LinkClass        = "text-blue-500 hover:underline"
)

// DefaultTerminalStyle is the glamour style used when none is configured.
const DefaultTerminalStyle = "dark"

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithParserOptions(
		parser.WithASTTransformers(util.Prioritized(classTransformer{}, 100)),
	),
	goldmark.WithRendererOptions(
		renderer.WithNodeRenderers(util.Prioritized(codeBlockRenderer{}, 100)),
	),
)

// HTML renders markdown (GitHub flavored) to an HTML fragment. Raw HTML in
// the input is omitted.
func HTML(source string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(source), &buf); err != nil {
		return "", errors.Wrap(err, "failed to render markdown")
	}
	return buf.String(), nil
}

type classTransformer struct{}

func (classTransformer) Transform(doc *ast.Document, _ text.Reader, _ parser.Context) {
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.CodeSpan:
			node.SetAttributeString("class", []byte(CodeSpanClass))
		case *ast.List:
			if node.IsOrdered() {
				node.SetAttributeString("class", []byte(OrderedListClass))
			} else {
				node.SetAttributeString("class", []byte(BulletListClass))
			}
		case *ast.Link:
			node.SetAttributeString("class", []byte(LinkClass))
		case *ast.AutoLink:
			node.SetAttributeString("class", []byte(LinkClass))
		}
		return ast.WalkContinue, nil
	})
}

// codeBlockRenderer replaces the default code block output with a classed
// <pre> wrapper.
type codeBlockRenderer struct{}

func (r codeBlockRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(ast.KindFencedCodeBlock, r.renderCodeBlock)
	reg.Register(ast.KindCodeBlock, r.renderCodeBlock)
}

func (codeBlockRenderer) renderCodeBlock(w util.BufWriter, source []byte, n ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		_, _ = w.WriteString("</code></pre>\n")
		return ast.WalkContinue, nil
	}
	_, _ = w.WriteString(`<pre class="` + CodeBlockClass + `"><code>`)
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		_, _ = w.Write(util.EscapeHTML(line.Value(source)))
	}
	return ast.WalkContinue, nil
}

// TerminalRenderer styles markdown for a terminal of a given width.
type TerminalRenderer struct {
	tr *glamour.TermRenderer
}

// NewTerminalRenderer builds a glamour renderer. An empty style selects
// DefaultTerminalStyle; a non-positive width disables wrapping.
func NewTerminalRenderer(style string, width int) (*TerminalRenderer, error) {
	if style == "" {
		style = DefaultTerminalStyle
	}
	if width < 0 {
		width = 0
	}
	tr, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create terminal renderer with style %q", style)
	}
	return &TerminalRenderer{tr: tr}, nil
}

// Render styles source. On failure the raw markdown is returned with the error.
func (r *TerminalRenderer) Render(source string) (string, error) {
	out, err := r.tr.Render(source)
	if err != nil {
		return source, errors.Wrap(err, "failed to render terminal markdown")
	}
	return out, nil
}
