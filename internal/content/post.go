package content

import (
	"strings"

	"github.com/inful/mdfp"

	"git.home.luguber.info/inful/blogbuilder/internal/frontmatter"
)

// Post is one blog entry as stored in the index artifact.
type Post struct {
	Metadata frontmatter.Metadata `json:"metadata"`
	// Slug is the post directory name, used verbatim in URLs.
	Slug string `json:"slug"`
	// Content is the raw Markdown body with frontmatter removed.
	Content string `json:"content"`
}

// Fingerprint hashes the post's serialized metadata and body. Two posts with
// equal fingerprints render identically.
func Fingerprint(p Post) string {
	fm := strings.TrimSuffix(frontmatter.Serialize(p.Metadata), "\n")
	return mdfp.CalculateFingerprintFromParts(fm, p.Content)
}

// Fingerprints maps each post's slug to its fingerprint.
func Fingerprints(posts []Post) map[string]string {
	out := make(map[string]string, len(posts))
	for _, p := range posts {
		out[p.Slug] = Fingerprint(p)
	}
	return out
}

// Changed returns the slugs in next that are new or whose fingerprint differs
// from the one recorded for the same slug in prev. Order follows next.
func Changed(prev map[string]string, next []Post) []string {
	var changed []string
	for _, p := range next {
		if fp, ok := prev[p.Slug]; !ok || fp != Fingerprint(p) {
			changed = append(changed, p.Slug)
		}
	}
	return changed
}
