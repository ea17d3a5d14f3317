// Package frontmatter splits post files into their `---` delimited metadata
// block and Markdown body, and decodes the block's `key: value` lines.
//
// The format is deliberately not YAML: each metadata line is split on the
// first ": ", values may be wrapped in one pair of matching straight quotes,
// and a value never spans more than one physical line.
package frontmatter

import (
	"errors"
	"strings"
)

// Delimiter opens and closes the metadata block.
const Delimiter = "---"

// keyValueSeparator splits a metadata line into key and value.
const keyValueSeparator = ": "

// ErrMissingFrontmatter indicates the document has no delimited metadata block
// at its start (either delimiter is missing).
var ErrMissingFrontmatter = errors.New("frontmatter delimiters not found")

// Result is a parsed post file.
type Result struct {
	Metadata Metadata
	// Content is the body with the metadata block removed and outer
	// whitespace trimmed.
	Content string
	// Ignored lists unrecognized keys in the order they appeared.
	Ignored []string
}

// Split locates the metadata block and returns its inner text and the body.
//
// Only whitespace may precede the opening delimiter. The block ends at the
// next occurrence of the delimiter; the body is everything after it, trimmed.
func Split(raw string) (block string, body string, err error) {
	raw = strings.TrimPrefix(raw, "\ufeff")
	start := strings.Index(raw, Delimiter)
	if start < 0 || strings.TrimSpace(raw[:start]) != "" {
		return "", "", ErrMissingFrontmatter
	}
	inner := raw[start+len(Delimiter):]
	end := strings.Index(inner, Delimiter)
	if end < 0 {
		return "", "", ErrMissingFrontmatter
	}
	return strings.TrimSpace(inner[:end]), strings.TrimSpace(inner[end+len(Delimiter):]), nil
}

// Parse splits raw and decodes its metadata lines.
func Parse(raw string) (Result, error) {
	block, body, err := Split(raw)
	if err != nil {
		return Result{}, err
	}
	md, ignored := ParseLines(block)
	return Result{Metadata: md, Content: body, Ignored: ignored}, nil
}

// ParseLines decodes the inner text of a metadata block.
//
// A line without the ": " separator is kept as a key with an empty value, so a
// malformed recognized line leaves its field empty instead of failing the file.
// Unrecognized keys are returned in ignored and otherwise dropped.
func ParseLines(block string) (md Metadata, ignored []string) {
	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		key, value := splitLine(line)
		if !md.set(key, value) {
			ignored = append(ignored, key)
		}
	}
	return md, ignored
}

func splitLine(line string) (key, value string) {
	k, v, found := strings.Cut(line, keyValueSeparator)
	if !found {
		return strings.TrimSpace(line), ""
	}
	return strings.TrimSpace(k), unquote(strings.TrimSpace(v))
}

// unquote strips a single pair of matching straight quotes.
func unquote(v string) string {
	if len(v) < 2 {
		return v
	}
	first, last := v[0], v[len(v)-1]
	if (first == '"' || first == '\'') && first == last {
		return v[1 : len(v)-1]
	}
	return v
}
