package render

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	whitespaceRun = regexp.MustCompile(`[\s\p{Zs}]+`)
	nonSlugChars  = regexp.MustCompile(`[^\w-]+`)
	hyphenRun     = regexp.MustCompile(`-{2,}`)
)

// Slugify derives a heading anchor from its text.
//
// Steps, in order: lowercase, trim, whitespace runs to "-", "&" to "-and-",
// drop everything outside [A-Za-z0-9_-], collapse repeated hyphens.
// Slugify(Slugify(x)) == Slugify(x).
func Slugify(text string) string {
	s := cases.Lower(language.Und).String(text)
	s = strings.TrimSpace(s)
	s = whitespaceRun.ReplaceAllString(s, "-")
	s = strings.ReplaceAll(s, "&", "-and-")
	s = nonSlugChars.ReplaceAllString(s, "")
	return hyphenRun.ReplaceAllString(s, "-")
}
