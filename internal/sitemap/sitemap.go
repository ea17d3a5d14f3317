// Package sitemap derives the site's URL list from the post index.
package sitemap

import (
	"encoding/json"
	"encoding/xml"
	"io"
	"strings"
	"time"

	"git.home.luguber.info/inful/blogbuilder/internal/content"
)

// DefaultStaticRoutes are emitted before any post.
var DefaultStaticRoutes = []string{"", "/"}

// dateLayout is the ISO-8601 calendar date used for static routes.
const dateLayout = "2006-01-02"

// Entry is one sitemap URL.
type Entry struct {
	URL          string `json:"url"`
	LastModified string `json:"lastModified"`
}

// Generator builds sitemap entries for a base URL.
type Generator struct {
	BaseURL      string
	StaticRoutes []string
	// Now stamps static routes. It is called on every Generate.
	Now func() time.Time
}

// NewGenerator returns a generator with the default static routes.
// A trailing slash on baseURL is dropped.
func NewGenerator(baseURL string) *Generator {
	return &Generator{
		BaseURL:      strings.TrimSuffix(baseURL, "/"),
		StaticRoutes: DefaultStaticRoutes,
		Now:          time.Now,
	}
}

// Generate returns the static routes stamped with today's date, followed by
// one entry per post in input order stamped with its publishedAt.
func (g *Generator) Generate(posts []content.Post) []Entry {
	now := time.Now
	if g.Now != nil {
		now = g.Now
	}
	today := now().UTC().Format(dateLayout)

	entries := make([]Entry, 0, len(g.StaticRoutes)+len(posts))
	for _, route := range g.StaticRoutes {
		entries = append(entries, Entry{URL: g.BaseURL + route, LastModified: today})
	}
	for _, p := range posts {
		entries = append(entries, Entry{
			URL:          g.BaseURL + "/" + p.Slug,
			LastModified: p.Metadata.PublishedAt,
		})
	}
	return entries
}

type urlSet struct {
	XMLName xml.Name `xml:"urlset"`
	XMLNS   string   `xml:"xmlns,attr"`
	URLs    []urlXML `xml:"url"`
}

type urlXML struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

// WriteXML encodes entries in the sitemaps.org urlset format.
func WriteXML(w io.Writer, entries []Entry) error {
	set := urlSet{XMLNS: "http://www.sitemaps.org/schemas/sitemap/0.9"}
	for _, e := range entries {
		set.URLs = append(set.URLs, urlXML{Loc: e.URL, LastMod: e.LastModified})
	}
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(set); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// WriteJSON encodes entries as an indented JSON array.
func WriteJSON(w io.Writer, entries []Entry) error {
	if entries == nil {
		entries = []Entry{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(entries)
}
