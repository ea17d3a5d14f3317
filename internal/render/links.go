package render

import "strings"

// LinkKind classifies a link target.
type LinkKind int

const (
	// LinkInternal targets a site route and is left to the client router.
	LinkInternal LinkKind = iota
	// LinkFragment targets an anchor on the current page.
	LinkFragment
	// LinkExternal targets anything else and opens in a new browsing context.
	LinkExternal
)

func (k LinkKind) String() string {
	switch k {
	case LinkInternal:
		return "internal"
	case LinkFragment:
		return "fragment"
	default:
		return "external"
	}
}

// ClassifyLink matches href by literal prefix, in order: "/" is internal,
// "#" is a fragment, everything else is external. No scheme validation.
func ClassifyLink(href string) LinkKind {
	switch {
	case strings.HasPrefix(href, "/"):
		return LinkInternal
	case strings.HasPrefix(href, "#"):
		return LinkFragment
	default:
		return LinkExternal
	}
}
