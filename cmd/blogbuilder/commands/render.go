package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/blogbuilder/internal/build"
	"git.home.luguber.info/inful/blogbuilder/internal/content"
	"git.home.luguber.info/inful/blogbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/blogbuilder/internal/frontmatter"
)

// RenderCmd implements the 'render' command.
type RenderCmd struct {
	Target string `arg:"" help:"Post slug under the content root, or a path to a Markdown file"`
}

func (r *RenderCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}

	path, slug := r.Target, filepath.Base(filepath.Dir(r.Target))
	if info, statErr := os.Stat(path); statErr != nil || info.IsDir() {
		slug = r.Target
		path = filepath.Join(cfg.Content.Root, slug, cfg.Content.IndexFile)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.NotFoundError("post not found").
				WithContext("slug", slug).
				WithContext("path", path).
				Build()
		}
		return errors.WrapError(err, errors.CategoryFileSystem, "read post").WithContext("path", path).Build()
	}
	parsed, err := frontmatter.Parse(string(raw))
	if err != nil {
		return errors.WrapError(err, errors.CategoryContent, "parse frontmatter").
			Fatal().
			WithContext("path", path).
			Build()
	}

	renderer := build.NewRenderer(cfg, g.logger(), nil)
	out, err := build.RenderPost(renderer, content.Post{Metadata: parsed.Metadata, Slug: slug, Content: parsed.Content})
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(g.out(), out)
	return nil
}
