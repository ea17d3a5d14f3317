package render

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/yuin/goldmark/ast"
	east "github.com/yuin/goldmark/extension/ast"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// languageClass selects the highlighting path for code.
var languageClass = regexp.MustCompile(`language-(\w+)`)

func defaultHandlers() map[ast.NodeKind]Handler {
	return map[ast.NodeKind]Handler{
		ast.KindDocument:        renderChildren,
		ast.KindParagraph:       wrapIn("p"),
		ast.KindTextBlock:       renderChildren,
		ast.KindText:            renderText,
		ast.KindString:          renderString,
		ast.KindEmphasis:        renderEmphasis,
		ast.KindBlockquote:      wrapIn("blockquote"),
		ast.KindList:            renderList,
		ast.KindListItem:        wrapIn("li"),
		ast.KindThematicBreak:   renderThematicBreak,
		ast.KindHTMLBlock:       renderHTMLBlock,
		ast.KindRawHTML:         renderRawHTML,
		ast.KindHeading:         RenderHeading,
		ast.KindLink:            RenderLink,
		ast.KindAutoLink:        RenderAutoLink,
		ast.KindImage:           RenderImage,
		ast.KindCodeBlock:       RenderCodeBlock,
		ast.KindFencedCodeBlock: RenderCodeBlock,
		ast.KindCodeSpan:        RenderCodeSpan,
		east.KindStrikethrough:  wrapIn("del"),
		east.KindTable:          renderTable,
		east.KindTableHeader:    renderTableHeader,
		east.KindTableRow:       wrapIn("tr"),
		east.KindTableCell:      renderTableCell,
		east.KindTaskCheckBox:   renderTaskCheckBox,
	}
}

// RenderLink classifies the destination and decorates the anchor:
// internal links are marked for the client router, fragments stay bare, and
// external links open in a new browsing context without opener or referrer.
func RenderLink(c *Context, n ast.Node, parent *html.Node) error {
	link := n.(*ast.Link)
	a := linkElement(string(link.Destination))
	if len(link.Title) > 0 {
		setAttr(a, "title", string(decodeText(link.Title)))
	}
	parent.AppendChild(a)
	return c.RenderChildren(n, a)
}

// RenderAutoLink applies the link rules to <https://…> and bare URLs.
func RenderAutoLink(c *Context, n ast.Node, parent *html.Node) error {
	link := n.(*ast.AutoLink)
	url := string(link.URL(c.source))
	href := url
	switch {
	case link.AutoLinkType == ast.AutoLinkEmail && !strings.HasPrefix(strings.ToLower(url), "mailto:"):
		href = "mailto:" + url
	case strings.HasPrefix(url, "www."):
		href = "http://" + url
	}
	a := linkElement(href)
	a.AppendChild(textNode(string(link.Label(c.source))))
	parent.AppendChild(a)
	return nil
}

func linkElement(href string) *html.Node {
	a := element(atom.A, attr("href", href))
	switch ClassifyLink(href) {
	case LinkInternal:
		setAttr(a, "data-link", LinkInternal.String())
	case LinkFragment:
	case LinkExternal:
		setAttr(a, "target", "_blank")
		setAttr(a, "rel", "noopener noreferrer")
	}
	return a
}

// RenderImage emits an <img> with the configured width, height and class.
// Attributes set on the node itself win over the defaults. Markdown image
// syntax never produces node attributes; they come from a handler registered
// with WithHandler that sets them before delegating here.
func RenderImage(c *Context, n ast.Node, parent *html.Node) error {
	img := n.(*ast.Image)
	d := c.renderer.images
	el := element(atom.Img,
		attr("src", string(img.Destination)),
		attr("alt", c.PlainText(img)),
	)
	if d.Class != "" {
		setAttr(el, "class", d.Class)
	}
	if d.Width > 0 {
		setAttr(el, "width", strconv.Itoa(d.Width))
	}
	if d.Height > 0 {
		setAttr(el, "height", strconv.Itoa(d.Height))
	}
	if len(img.Title) > 0 {
		setAttr(el, "title", string(decodeText(img.Title)))
	}
	for _, a := range img.Attributes() {
		setAttr(el, string(a.Name), attrValue(a.Value))
	}
	parent.AppendChild(el)
	return nil
}

// RenderHeading slugs the heading text into the element id and prepends an
// empty self-referencing anchor before the heading's children.
func RenderHeading(c *Context, n ast.Node, parent *html.Node) error {
	heading := n.(*ast.Heading)
	slug := Slugify(c.PlainText(heading))
	c.AddHeading(HeadingAnchor{Level: heading.Level, Slug: slug})

	h := element(headingAtoms[heading.Level-1], attr("id", slug))
	h.AppendChild(element(atom.A,
		attr("href", "#"+slug),
		attr("class", "anchor"),
		attr("aria-hidden", "true"),
	))
	parent.AppendChild(h)
	return c.RenderChildren(n, h)
}

var headingAtoms = [6]atom.Atom{atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6}

// RenderCodeBlock renders fenced and indented code. A block whose class
// carries a language goes through the highlighter with one trailing newline
// stripped, and the returned markup is inserted unescaped.
func RenderCodeBlock(c *Context, n ast.Node, parent *html.Node) error {
	code := c.lines(n)
	pre := element(atom.Pre)
	el := element(atom.Code)
	pre.AppendChild(el)

	class := ""
	if fenced, ok := n.(*ast.FencedCodeBlock); ok {
		if lang := fenced.Language(c.source); len(lang) > 0 {
			class = "language-" + string(lang)
		}
	}

	m := languageClass.FindStringSubmatch(class)
	if m == nil {
		el.AppendChild(textNode(code))
		parent.AppendChild(pre)
		return nil
	}

	markup, err := c.highlight(strings.TrimSuffix(code, "\n"), m[1])
	if err != nil {
		return err
	}
	setAttr(el, "class", class)
	el.AppendChild(&html.Node{Type: html.RawNode, Data: markup})
	parent.AppendChild(pre)
	return nil
}

// RenderCodeSpan renders inline code with the fixed inline style. Its text is
// taken verbatim, with line endings turned into spaces, and never reaches the
// highlighter.
func RenderCodeSpan(c *Context, n ast.Node, parent *html.Node) error {
	el := element(atom.Code)
	if style := c.renderer.inlineCodeStyle; style != "" {
		setAttr(el, "style", style)
	}
	var b strings.Builder
	for child := n.FirstChild(); child != nil; child = child.NextSibling() {
		switch t := child.(type) {
		case *ast.Text:
			v := t.Segment.Value(c.source)
			if len(v) > 0 && v[len(v)-1] == '\n' {
				v = append(v[:len(v)-1:len(v)-1], ' ')
			}
			b.Write(v)
		case *ast.String:
			b.Write(t.Value)
		}
	}
	el.AppendChild(textNode(b.String()))
	parent.AppendChild(el)
	return nil
}

func renderChildren(c *Context, n ast.Node, parent *html.Node) error {
	return c.RenderChildren(n, parent)
}

func wrapIn(tag string) Handler {
	a := atom.Lookup([]byte(tag))
	return func(c *Context, n ast.Node, parent *html.Node) error {
		el := element(a)
		parent.AppendChild(el)
		return c.RenderChildren(n, el)
	}
}

func renderText(c *Context, n ast.Node, parent *html.Node) error {
	t := n.(*ast.Text)
	parent.AppendChild(textNode(string(c.textValue(t))))
	switch {
	case t.HardLineBreak():
		parent.AppendChild(element(atom.Br))
		parent.AppendChild(textNode("\n"))
	case t.SoftLineBreak():
		parent.AppendChild(textNode("\n"))
	}
	return nil
}

// renderString emits code strings unescaped; everything else is text.
func renderString(_ *Context, n ast.Node, parent *html.Node) error {
	s := n.(*ast.String)
	if s.IsCode() {
		parent.AppendChild(&html.Node{Type: html.RawNode, Data: string(s.Value)})
		return nil
	}
	parent.AppendChild(textNode(string(stringValue(s))))
	return nil
}

func renderEmphasis(c *Context, n ast.Node, parent *html.Node) error {
	tag := atom.Em
	if n.(*ast.Emphasis).Level == 2 {
		tag = atom.Strong
	}
	el := element(tag)
	parent.AppendChild(el)
	return c.RenderChildren(n, el)
}

func renderList(c *Context, n ast.Node, parent *html.Node) error {
	list := n.(*ast.List)
	el := element(atom.Ul)
	if list.IsOrdered() {
		el = element(atom.Ol)
		if list.Start != 1 {
			setAttr(el, "start", strconv.Itoa(list.Start))
		}
	}
	parent.AppendChild(el)
	return c.RenderChildren(n, el)
}

func renderThematicBreak(_ *Context, _ ast.Node, parent *html.Node) error {
	parent.AppendChild(element(atom.Hr))
	return nil
}

// Raw HTML in posts is trusted local content and passes through untouched.
func renderHTMLBlock(c *Context, n ast.Node, parent *html.Node) error {
	block := n.(*ast.HTMLBlock)
	raw := c.lines(block)
	if block.HasClosure() {
		raw += string(block.ClosureLine.Value(c.source))
	}
	parent.AppendChild(&html.Node{Type: html.RawNode, Data: raw})
	return nil
}

func renderRawHTML(c *Context, n ast.Node, parent *html.Node) error {
	raw := n.(*ast.RawHTML)
	var b strings.Builder
	for i := 0; i < raw.Segments.Len(); i++ {
		seg := raw.Segments.At(i)
		b.Write(seg.Value(c.source))
	}
	parent.AppendChild(&html.Node{Type: html.RawNode, Data: b.String()})
	return nil
}

func renderTable(c *Context, n ast.Node, parent *html.Node) error {
	table := element(atom.Table)
	parent.AppendChild(table)
	var body *html.Node
	for child := n.FirstChild(); child != nil; child = child.NextSibling() {
		if child.Kind() == east.KindTableHeader {
			if err := c.Render(child, table); err != nil {
				return err
			}
			continue
		}
		if body == nil {
			body = element(atom.Tbody)
			table.AppendChild(body)
		}
		if err := c.Render(child, body); err != nil {
			return err
		}
	}
	return nil
}

func renderTableHeader(c *Context, n ast.Node, parent *html.Node) error {
	thead := element(atom.Thead)
	tr := element(atom.Tr)
	thead.AppendChild(tr)
	parent.AppendChild(thead)
	return c.RenderChildren(n, tr)
}

func renderTableCell(c *Context, n ast.Node, parent *html.Node) error {
	cell := n.(*east.TableCell)
	tag := atom.Td
	if n.Parent() != nil && n.Parent().Kind() == east.KindTableHeader {
		tag = atom.Th
	}
	el := element(tag)
	if cell.Alignment != east.AlignNone {
		setAttr(el, "style", "text-align: "+cell.Alignment.String())
	}
	parent.AppendChild(el)
	return c.RenderChildren(n, el)
}

func renderTaskCheckBox(_ *Context, n ast.Node, parent *html.Node) error {
	el := element(atom.Input, attr("type", "checkbox"), attr("disabled", ""))
	if n.(*east.TaskCheckBox).IsChecked {
		setAttr(el, "checked", "")
	}
	parent.AppendChild(el)
	return nil
}

func element(a atom.Atom, attrs ...html.Attribute) *html.Node {
	return &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String(), Attr: attrs}
}

func textNode(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

func attr(key, val string) html.Attribute {
	return html.Attribute{Key: key, Val: val}
}

// setAttr replaces key's value or appends it.
func setAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, attr(key, val))
}

func attrValue(v any) string {
	switch vv := v.(type) {
	case []byte:
		return string(vv)
	case string:
		return vv
	default:
		return fmt.Sprint(vv)
	}
}
