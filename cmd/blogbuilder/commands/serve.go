package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/blogbuilder/internal/preview"
)

// ServeCmd implements the 'serve' command.
type ServeCmd struct {
	Port    int  `short:"p" help:"Port to listen on (default: preview.port)"`
	Metrics bool `help:"Expose Prometheus metrics on /metrics"`
}

func (s *ServeCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	port := cfg.Preview.Port
	if s.Port != 0 {
		port = s.Port
	}

	opts := []preview.Option{preview.WithLogger(g.logger())}
	if s.Metrics || cfg.Preview.Metrics {
		opts = append(opts, preview.WithRegistry(prom.NewRegistry()))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	return preview.New(cfg, opts...).Run(ctx, fmt.Sprintf(":%d", port))
}
