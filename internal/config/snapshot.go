package config

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// RenderSnapshot hashes the settings that change rendered page bytes. A
// build whose snapshot differs from the previous successful build re-renders
// every page. Site metadata, link verification and sitemap settings are left
// out since they never alter page HTML.
func (c *Config) RenderSnapshot() string {
	if c == nil {
		return ""
	}
	h := sha256.New()
	w := func(parts ...string) { h.Write([]byte(strings.Join(parts, "="))); h.Write([]byte{0}) }
	w("render.code_style", c.Render.CodeStyle)
	w("render.image_width", strconv.Itoa(c.Render.ImageWidth))
	w("render.image_height", strconv.Itoa(c.Render.ImageHeight))
	w("render.image_class", c.Render.ImageClass)
	w("render.inline_code_style", c.Render.InlineCodeStyle)
	return hex.EncodeToString(h.Sum(nil))
}
