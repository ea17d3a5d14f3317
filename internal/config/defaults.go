package config

import (
	"git.home.luguber.info/inful/blogbuilder/internal/render"
)

// DefaultApplier fills defaults for one configuration section.
type DefaultApplier interface {
	ApplyDefaults(cfg *Config) error
	Domain() string
}

type contentDefaults struct{}

func (contentDefaults) Domain() string { return "content" }

func (contentDefaults) ApplyDefaults(cfg *Config) error {
	if cfg.Content.IndexFile == "" {
		cfg.Content.IndexFile = "index.md"
	}
	return nil
}

type outputDefaults struct{}

func (outputDefaults) Domain() string { return "output" }

func (outputDefaults) ApplyDefaults(cfg *Config) error {
	if cfg.Output.Directory == "" {
		cfg.Output.Directory = "./public"
	}
	if cfg.Output.Index == "" {
		cfg.Output.Index = "posts.json"
	}
	return nil
}

type renderDefaults struct{}

func (renderDefaults) Domain() string { return "render" }

func (renderDefaults) ApplyDefaults(cfg *Config) error {
	if cfg.Render.CodeStyle == "" {
		cfg.Render.CodeStyle = render.DefaultCodeStyle
	}
	if cfg.Render.ImageWidth == 0 {
		cfg.Render.ImageWidth = render.DefaultImageDefaults.Width
	}
	if cfg.Render.ImageHeight == 0 {
		cfg.Render.ImageHeight = render.DefaultImageDefaults.Height
	}
	if cfg.Render.ImageClass == "" {
		cfg.Render.ImageClass = render.DefaultImageDefaults.Class
	}
	if cfg.Render.InlineCodeStyle == "" {
		cfg.Render.InlineCodeStyle = render.DefaultInlineCodeStyle
	}
	return nil
}

type sitemapDefaults struct{}

func (sitemapDefaults) Domain() string { return "sitemap" }

func (sitemapDefaults) ApplyDefaults(cfg *Config) error {
	if cfg.Sitemap.StaticRoutes == nil {
		cfg.Sitemap.StaticRoutes = []string{"", "/"}
	}
	return nil
}

type previewDefaults struct{}

func (previewDefaults) Domain() string { return "preview" }

func (previewDefaults) ApplyDefaults(cfg *Config) error {
	if cfg.Preview.Port == 0 {
		cfg.Preview.Port = 1316
	}
	return nil
}

var appliers = []DefaultApplier{
	contentDefaults{},
	outputDefaults{},
	renderDefaults{},
	sitemapDefaults{},
	previewDefaults{},
}

// ApplyDefaults fills unset fields section by section. content.root has no
// default.
func ApplyDefaults(cfg *Config) error {
	for _, a := range appliers {
		if err := a.ApplyDefaults(cfg); err != nil {
			return err
		}
	}
	return nil
}
