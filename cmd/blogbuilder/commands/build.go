package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/blogbuilder/internal/build"
	"git.home.luguber.info/inful/blogbuilder/internal/logfields"
	"git.home.luguber.info/inful/blogbuilder/internal/metrics"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	Force           bool   `short:"f" help:"Re-render every page even when unchanged"`
	Clean           bool   `help:"Remove the output directory before building"`
	MetricsTextfile string `name:"metrics-textfile" help:"Write Prometheus metrics for this run to a textfile" type:"path"`
}

func (b *BuildCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	if b.Clean {
		cfg.Output.Clean = true
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	opts := []build.Option{build.WithLogger(g.logger()), build.WithForce(b.Force)}
	var reg *prom.Registry
	if b.MetricsTextfile != "" {
		reg = prom.NewRegistry()
		opts = append(opts, build.WithRecorder(metrics.NewPrometheusRecorder(reg)))
	}

	report, runErr := build.NewBuilder(cfg, opts...).Run(ctx)
	if reg != nil {
		if err := metrics.WriteTextfile(reg, b.MetricsTextfile); err != nil {
			g.logger().Warn("Failed to write metrics textfile", logfields.Path(b.MetricsTextfile), logfields.Error(err))
		}
	}
	if runErr != nil {
		return runErr
	}

	_, _ = fmt.Fprintf(g.out(), "Generated %d blog posts\n", report.Posts)
	_, _ = fmt.Fprintln(g.out(), report.Summary())
	return nil
}
