package commands

import (
	"context"
	"fmt"

	"git.home.luguber.info/inful/blogbuilder/internal/build"
)

// IndexCmd implements the 'index' command.
type IndexCmd struct {
	Output string `short:"o" help:"Write the index here instead of output.index" type:"path"`
}

func (i *IndexCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	if i.Output != "" {
		cfg.Output.Index = i.Output
	}
	posts, err := build.NewBuilder(cfg, build.WithLogger(g.logger())).GenerateIndex(context.Background())
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(g.out(), "Generated %d blog posts\n", len(posts))
	return nil
}
