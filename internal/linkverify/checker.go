package linkverify

import (
	"net/url"
	"path"
	"strings"
)

// BrokenLink is an internal link whose target is not a known route.
type BrokenLink struct {
	Page string `json:"page"`
	URL  string `json:"url"`
	Text string `json:"text,omitempty"`
}

// Checker resolves internal hrefs against known routes.
type Checker struct {
	routes map[string]bool
}

// NewChecker knows the site root, every static route and "/<slug>" for each slug.
func NewChecker(slugs, staticRoutes []string) *Checker {
	c := &Checker{routes: map[string]bool{"/": true}}
	for _, r := range staticRoutes {
		c.routes[normalize(r)] = true
	}
	for _, s := range slugs {
		c.routes["/"+s] = true
	}
	return c
}

// Resolves reports whether href points at a known route. Query strings and
// fragments are ignored. Paths whose last segment has a file extension are
// treated as static assets and always resolve.
func (c *Checker) Resolves(href string) bool {
	u, err := url.Parse(href)
	if err != nil {
		return false
	}
	p := normalize(u.Path)
	if c.routes[p] {
		return true
	}
	if path.Ext(p) != "" {
		return true
	}
	// Anything below a known route resolves to it.
	first := "/" + strings.SplitN(strings.TrimPrefix(p, "/"), "/", 2)[0]
	return first != p && c.routes[first]
}

// CheckPage extracts the internal links of one rendered page and returns
// those that do not resolve.
func (c *Checker) CheckPage(page, htmlPath string) ([]BrokenLink, error) {
	links, err := ExtractLinks(htmlPath)
	if err != nil {
		return nil, err
	}
	var broken []BrokenLink
	for _, l := range links {
		if !l.Internal || c.Resolves(l.URL) {
			continue
		}
		broken = append(broken, BrokenLink{Page: page, URL: l.URL, Text: l.Text})
	}
	return broken, nil
}

func normalize(p string) string {
	if p == "" {
		return "/"
	}
	p = path.Clean("/" + p)
	return p
}
