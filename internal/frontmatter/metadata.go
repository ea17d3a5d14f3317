package frontmatter

import "strings"

// Recognized metadata keys.
const (
	KeyTitle       = "title"
	KeyPublishedAt = "publishedAt"
	KeyDescription = "description"
	KeyImage       = "image"
)

// RecognizedKeys lists the metadata keys in canonical order.
var RecognizedKeys = []string{KeyTitle, KeyPublishedAt, KeyDescription, KeyImage}

// RequiredKeys lists the keys every post is expected to carry. Nothing
// enforces them; see Metadata.Missing.
var RequiredKeys = []string{KeyTitle, KeyPublishedAt, KeyDescription}

// Metadata is the decoded frontmatter of a post.
type Metadata struct {
	Title string `json:"title"`
	// PublishedAt is an ISO-8601 date kept verbatim.
	PublishedAt string `json:"publishedAt"`
	Description string `json:"description"`
	Image       string `json:"image,omitempty"`
}

// Get returns the value for a recognized key.
func (m Metadata) Get(key string) (string, bool) {
	switch key {
	case KeyTitle:
		return m.Title, true
	case KeyPublishedAt:
		return m.PublishedAt, true
	case KeyDescription:
		return m.Description, true
	case KeyImage:
		return m.Image, true
	}
	return "", false
}

func (m *Metadata) set(key, value string) bool {
	switch key {
	case KeyTitle:
		m.Title = value
	case KeyPublishedAt:
		m.PublishedAt = value
	case KeyDescription:
		m.Description = value
	case KeyImage:
		m.Image = value
	default:
		return false
	}
	return true
}

// Missing returns the required keys whose values are empty.
func (m Metadata) Missing() []string {
	var missing []string
	for _, k := range RequiredKeys {
		if v, _ := m.Get(k); v == "" {
			missing = append(missing, k)
		}
	}
	return missing
}

// Serialize renders md as a delimited metadata block. Empty fields are
// omitted and every value is double quoted, so Parse restores it exactly as
// long as the value fits on one line and has no outer whitespace.
func Serialize(md Metadata) string {
	var b strings.Builder
	b.WriteString(Delimiter + "\n")
	for _, k := range RecognizedKeys {
		v, _ := md.Get(k)
		if v == "" {
			continue
		}
		b.WriteString(k + keyValueSeparator + `"` + v + `"` + "\n")
	}
	b.WriteString(Delimiter + "\n")
	return b.String()
}
