package commands

import (
	"bytes"
	"context"
	"os"

	"git.home.luguber.info/inful/blogbuilder/internal/build"
	"git.home.luguber.info/inful/blogbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/blogbuilder/internal/sitemap"
)

// SitemapCmd implements the 'sitemap' command.
type SitemapCmd struct {
	Format string `enum:"xml,json" default:"xml" help:"Output format (xml|json)"`
	Output string `short:"o" help:"Write to a file instead of stdout" type:"path"`
}

func (s *SitemapCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	if cfg.Site.BaseURL == "" {
		return errors.ConfigError("site.base_url is required for the sitemap").
			WithContext("field", "site.base_url").
			Build()
	}

	posts, err := build.NewBuilder(cfg, build.WithLogger(g.logger())).Indexer().Index(context.Background())
	if err != nil {
		return err
	}
	gen := sitemap.NewGenerator(cfg.Site.BaseURL)
	gen.StaticRoutes = cfg.Sitemap.StaticRoutes
	entries := gen.Generate(posts)

	var buf bytes.Buffer
	if s.Format == "json" {
		err = sitemap.WriteJSON(&buf, entries)
	} else {
		err = sitemap.WriteXML(&buf, entries)
	}
	if err != nil {
		return errors.WrapError(err, errors.CategoryInternal, "encode sitemap").Build()
	}

	if s.Output == "" {
		_, err = g.out().Write(buf.Bytes())
		return err
	}
	if err := os.WriteFile(s.Output, buf.Bytes(), 0o644); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "write sitemap").
			WithContext("path", s.Output).
			Build()
	}
	return nil
}
