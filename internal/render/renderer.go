// Package render turns a post's Markdown body into an HTML document tree.
//
// Each goldmark node kind resolves to one Handler through an explicit
// dispatch table. The defaults classify links, give images fixed presentation
// attributes, slug and anchor headings, and route fenced code with a language
// through a Highlighter. Any entry can be replaced with WithHandler.
package render

import (
	"bytes"
	"log/slog"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
	"golang.org/x/net/html"

	"git.home.luguber.info/inful/blogbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/blogbuilder/internal/metrics"
)

// Handler renders node n and appends the result to parent. Handlers that
// want their node's children rendered call c.RenderChildren themselves.
type Handler func(c *Context, n ast.Node, parent *html.Node) error

// ImageDefaults are the presentation attributes every image starts with.
type ImageDefaults struct {
	Width  int
	Height int
	Class  string
}

// DefaultImageDefaults matches the blog's layout column.
var DefaultImageDefaults = ImageDefaults{Width: 800, Height: 400, Class: "rounded-lg"}

// DefaultInlineCodeStyle is applied to inline code spans.
const DefaultInlineCodeStyle = "font-family: 'Space Mono', monospace; padding: 0.125rem 0.375rem; " +
	"border: 1px solid #5588af; border-radius: 0.25rem; color: #80c8ff; background-color: #13222d;"

// HeadingAnchor records the slug given to one heading.
type HeadingAnchor struct {
	Level int    `json:"level"`
	Slug  string `json:"slug"`
}

// Document is the result of one render call.
type Document struct {
	Root     *html.Node
	Headings []HeadingAnchor
}

// HTML serializes the document tree.
func (d *Document) HTML() (string, error) {
	var b strings.Builder
	for c := d.Root.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&b, c); err != nil {
			return "", err
		}
	}
	return b.String(), nil
}

// Renderer converts Markdown bodies into Documents. It holds no per-render
// state and is safe for reuse across calls.
type Renderer struct {
	md              goldmark.Markdown
	handlers        map[ast.NodeKind]Handler
	highlighter     Highlighter
	images          ImageDefaults
	inlineCodeStyle string
	logger          *slog.Logger
	recorder        metrics.Recorder
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithHandler overrides the handler for one node kind.
func WithHandler(kind ast.NodeKind, h Handler) Option {
	return func(r *Renderer) { r.handlers[kind] = h }
}

func WithHighlighter(h Highlighter) Option {
	return func(r *Renderer) {
		if h != nil {
			r.highlighter = h
		}
	}
}

func WithImageDefaults(d ImageDefaults) Option {
	return func(r *Renderer) { r.images = d }
}

func WithInlineCodeStyle(style string) Option {
	return func(r *Renderer) { r.inlineCodeStyle = style }
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Renderer) {
		if l != nil {
			r.logger = l
		}
	}
}

func WithRecorder(rec metrics.Recorder) Option {
	return func(r *Renderer) {
		if rec != nil {
			r.recorder = rec
		}
	}
}

// New builds a Renderer with the default handler table and a chroma highlighter.
func New(opts ...Option) *Renderer {
	r := &Renderer{
		md:              goldmark.New(goldmark.WithExtensions(extension.GFM)),
		handlers:        defaultHandlers(),
		highlighter:     NewChromaHighlighter(DefaultCodeStyle),
		images:          DefaultImageDefaults,
		inlineCodeStyle: DefaultInlineCodeStyle,
		logger:          slog.Default(),
		recorder:        metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render parses source and builds its document tree. Highlighter errors are
// returned as render errors wrapping the highlighter's error.
func (r *Renderer) Render(source string) (*Document, error) {
	src := []byte(source)
	root := r.md.Parser().Parse(text.NewReader(src))

	doc := &Document{Root: &html.Node{Type: html.DocumentNode}}
	c := &Context{renderer: r, source: src, doc: doc}
	if err := c.Render(root, doc.Root); err != nil {
		return nil, err
	}
	return doc, nil
}

// Context carries the state of a single render call.
type Context struct {
	renderer *Renderer
	source   []byte
	doc      *Document
}

// Source returns the Markdown being rendered.
func (c *Context) Source() []byte { return c.source }

// Render dispatches n to its handler. Kinds without a handler render their
// children straight into parent.
func (c *Context) Render(n ast.Node, parent *html.Node) error {
	if h, ok := c.renderer.handlers[n.Kind()]; ok {
		return h(c, n, parent)
	}
	c.renderer.logger.Debug("No handler for markdown node", slog.String("kind", n.Kind().String()))
	return c.RenderChildren(n, parent)
}

// RenderChildren renders every child of n into parent.
func (c *Context) RenderChildren(n ast.Node, parent *html.Node) error {
	for child := n.FirstChild(); child != nil; child = child.NextSibling() {
		if err := c.Render(child, parent); err != nil {
			return err
		}
	}
	return nil
}

// PlainText returns the text content of n and its descendants, as it would
// read once rendered.
func (c *Context) PlainText(n ast.Node) string {
	var b bytes.Buffer
	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := node.(type) {
		case *ast.Text:
			b.Write(c.textValue(t))
			if t.SoftLineBreak() || t.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(stringValue(t))
		}
		return ast.WalkContinue, nil
	})
	return b.String()
}

// AddHeading records a heading anchor on the document being rendered.
func (c *Context) AddHeading(a HeadingAnchor) {
	c.doc.Headings = append(c.doc.Headings, a)
}

// textValue returns the text of t as it reads once rendered. Backslash
// escapes and character references are resolved unless the segment is raw,
// as it is inside code spans.
func (c *Context) textValue(t *ast.Text) []byte {
	v := t.Segment.Value(c.source)
	if t.IsRaw() {
		return v
	}
	return decodeText(v)
}

func stringValue(s *ast.String) []byte {
	if s.IsRaw() || s.IsCode() {
		return s.Value
	}
	return decodeText(s.Value)
}

func decodeText(v []byte) []byte {
	v = util.UnescapePunctuations(v)
	v = util.ResolveNumericReferences(v)
	return util.ResolveEntityNames(v)
}

func (c *Context) highlight(code, lang string) (string, error) {
	out, err := c.renderer.highlighter.Highlight(code, lang)
	if err != nil {
		return "", errors.WrapError(err, errors.CategoryRender, "highlight code block").
			WithContext("language", lang).
			Build()
	}
	c.renderer.recorder.IncHighlightedBlocks(lang)
	return out, nil
}

func (c *Context) lines(n ast.Node) string {
	var b bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(seg.Value(c.source))
	}
	return b.String()
}
