package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/blogbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/blogbuilder/internal/frontmatter"
	"git.home.luguber.info/inful/blogbuilder/internal/render"
)

// NewCmd implements the 'new' command.
type NewCmd struct {
	Title       string `arg:"" help:"Post title"`
	Slug        string `help:"Directory name for the post (default: slugified title)"`
	Description string `short:"d" help:"Post description"`
	Image       string `help:"Cover image URL"`
	Date        string `help:"publishedAt date (default: today, YYYY-MM-DD)"`
}

// timeNow stamps posts created without --date.
var timeNow = time.Now

func (n *NewCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}

	slug := n.Slug
	if slug == "" {
		slug = render.Slugify(n.Title)
	}
	if slug == "" {
		return errors.ValidationError("cannot derive a slug from the title; pass --slug").
			WithContext("title", n.Title).
			Build()
	}

	date := n.Date
	if date == "" {
		date = timeNow().Format("2006-01-02")
	}

	dir := filepath.Join(cfg.Content.Root, slug)
	path := filepath.Join(dir, cfg.Content.IndexFile)
	if _, err := os.Stat(path); err == nil {
		return errors.ValidationError("post already exists").
			WithContext("slug", slug).
			WithContext("path", path).
			Build()
	}

	md := frontmatter.Metadata{
		Title:       n.Title,
		PublishedAt: date,
		Description: n.Description,
		Image:       n.Image,
	}
	body := frontmatter.Serialize(md) + "\nWrite something here.\n"

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "create post directory").
			WithContext("path", dir).
			Build()
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "write post").
			WithContext("path", path).
			Build()
	}
	_, _ = fmt.Fprintf(g.out(), "Created %s\n", path)
	return nil
}
