// Command debrisflow runs the NBM QPF debris-flow pipeline: converting raw
// NBM grids to GeoTIFFs, aggregating zonal statistics over burn-scar
// polygons, sweeping aged output, and publishing to the web hosts. Cron
// invokes `debrisflow run` hourly; the other subcommands run one stage for
// backfills and debugging.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	kafkaadapter "github.com/wrh-stid/debrisflow-etl/internal/adapter/kafka"
	"github.com/wrh-stid/debrisflow-etl/internal/aggregate"
	"github.com/wrh-stid/debrisflow-etl/internal/config"
	"github.com/wrh-stid/debrisflow-etl/internal/convert"
	"github.com/wrh-stid/debrisflow-etl/internal/domain"
	"github.com/wrh-stid/debrisflow-etl/internal/fires"
	"github.com/wrh-stid/debrisflow-etl/internal/observability"
	"github.com/wrh-stid/debrisflow-etl/internal/publish"
	"github.com/wrh-stid/debrisflow-etl/internal/retention"
)

type cli struct {
	Env string `help:"Optional .env file with pipeline settings." type:"path" default:".env"`

	Run     runCmd     `cmd:"" help:"Full pipeline: convert, aggregate, sweep, publish."`
	Convert convertCmd `cmd:"" help:"Convert raw NBM grids to per-lead-hour GeoTIFFs."`
	Stats   statsCmd   `cmd:"" help:"Aggregate zonal statistics into run documents."`
	Sweep   sweepCmd   `cmd:"" help:"Delete run documents older than the keep window."`
	Publish publishCmd `cmd:"" help:"Rsync output and imagery to the web hosts."`
}

// runArgs optionally pin the pipeline to an explicit initialization time.
// Without them the converter looks back from the current hour and the
// aggregator discovers the newest runs with rendered imagery.
type runArgs struct {
	Year  int `arg:"" optional:"" help:"Run initialization year (UTC)."`
	Month int `arg:"" optional:"" help:"Run initialization month."`
	Day   int `arg:"" optional:"" help:"Run initialization day."`
	Hour  int `arg:"" optional:"" help:"Run initialization hour."`
}

func (a runArgs) explicit() (domain.RunTime, bool) {
	if a.Year == 0 {
		return domain.RunTime{}, false
	}
	return domain.NewRunTime(a.Year, time.Month(a.Month), a.Day, a.Hour), true
}

// app carries the shared dependencies into the subcommands.
type app struct {
	ctx     context.Context
	cfg     *config.Config
	logger  *slog.Logger
	metrics *observability.Metrics
}

func main() {
	var c cli
	kctx := kong.Parse(&c,
		kong.Name("debrisflow"),
		kong.Description("NBM QPF debris-flow pipeline."),
	)

	// Settings come from the environment; an optional .env file fills in
	// anything not already set.
	if err := godotenv.Load(c.Env); err != nil && !os.IsNotExist(err) {
		slog.Error("failed to load env file", "path", c.Env, "error", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = kctx.Run(&app{ctx: ctx, cfg: cfg, logger: logger, metrics: metrics})

	if perr := metrics.Push(cfg.PushgatewayURL, cfg.MetricsJob); perr != nil {
		logger.Error("failed to push metrics", "error", perr)
	}
	if err != nil {
		logger.Error("pipeline failed", "error", err)
		os.Exit(1)
	}
}

type convertCmd struct {
	runArgs
}

func (c *convertCmd) Run(a *app) error {
	converter := convert.New(a.cfg, a.logger, a.metrics)
	for _, run := range c.selectRuns(a.cfg) {
		if err := converter.Run(run); err != nil {
			a.logger.Error("conversion failed", "run", run, "error", err)
		}
	}
	return nil
}

// selectRuns walks back from the explicit start, or from the previous hour
// when none was given. The newest run's grids are usually still arriving,
// which is why the implicit window starts one hour back.
func (c *convertCmd) selectRuns(cfg *config.Config) []domain.RunTime {
	if start, ok := c.explicit(); ok {
		return lookbackRuns(start, cfg.LookbackRuns)
	}
	return lookbackRuns(domain.RunTimeFrom(domain.Now()).Add(-1), cfg.LookbackRuns)
}

type statsCmd struct {
	runArgs
	Force bool `help:"Re-aggregate runs whose statistics are already complete."`
	Hours int  `help:"Override the active-population lead-hour count."`
}

func (c *statsCmd) Run(a *app) error {
	if c.Hours > 0 {
		a.cfg.ActiveForecastHours = c.Hours
	}
	runs, err := c.selectRuns(a.cfg)
	if err != nil {
		return err
	}
	_, err = aggregateRuns(a, runs, c.Force)
	return err
}

func (c *statsCmd) selectRuns(cfg *config.Config) ([]domain.RunTime, error) {
	if start, ok := c.explicit(); ok {
		return lookbackRuns(start, cfg.LookbackRuns), nil
	}
	return discoverRuns(cfg.ImagesDir, cfg.DiscoverRuns)
}

// aggregateRuns loads both fire populations once and aggregates each run,
// returning the results of runs that produced a document.
func aggregateRuns(a *app, runs []domain.RunTime, force bool) ([]aggregate.Result, error) {
	catalog, err := fires.NewCatalogSource(a.cfg.BufferDir, a.cfg.GeoJSONDir, a.logger).Load()
	if err != nil {
		return nil, err
	}
	active, err := fires.NewActiveSource(a.cfg.ActiveBufferDir, a.cfg.ActiveGeoJSONDir, a.logger).Load()
	if err != nil {
		return nil, err
	}
	a.logger.Info("loaded fire records", "catalog", len(catalog), "active", len(active))

	agg := aggregate.New(a.cfg, a.logger, a.metrics)
	var written []aggregate.Result
	for _, run := range runs {
		start := domain.Now()
		res, err := agg.Run(run, catalog, active, force)
		if err != nil {
			a.logger.Error("aggregation failed", "run", run, "error", err)
			continue
		}
		a.metrics.RunDuration.Observe(domain.Now().Sub(start).Seconds())
		if res.Written {
			written = append(written, res)
		}
	}
	return written, nil
}

type sweepCmd struct{}

func (c *sweepCmd) Run(a *app) error {
	return retention.New(a.cfg, a.logger, a.metrics).Sweep()
}

type publishCmd struct{}

func (c *publishCmd) Run(a *app) error {
	return publish.New(a.cfg, a.logger, a.metrics).Publish(a.ctx)
}

type runCmd struct {
	runArgs
	Force bool `help:"Re-aggregate runs whose statistics are already complete."`
	Hours int  `help:"Override the active-population lead-hour count."`
}

func (c *runCmd) Run(a *app) error {
	if c.Hours > 0 {
		a.cfg.ActiveForecastHours = c.Hours
	}
	started := domain.Now()
	a.logger.Info("pipeline started", "at", started.Format(time.RFC3339))

	conv := convertCmd{runArgs: c.runArgs}
	if err := conv.Run(a); err != nil {
		return err
	}

	stats := statsCmd{runArgs: c.runArgs, Force: c.Force, Hours: c.Hours}
	runs, err := stats.selectRuns(a.cfg)
	if err != nil {
		return err
	}
	written, err := aggregateRuns(a, runs, c.Force)
	if err != nil {
		return err
	}

	if err := retention.New(a.cfg, a.logger, a.metrics).Sweep(); err != nil {
		a.logger.Error("retention sweep failed", "error", err)
	}
	if err := publish.New(a.cfg, a.logger, a.metrics).Publish(a.ctx); err != nil {
		a.logger.Error("publish failed", "error", err)
	}

	if a.cfg.NotifyEnabled() && len(written) > 0 {
		notifier := kafkaadapter.NewNotifier(a.cfg, a.logger)
		defer notifier.Close()
		for _, res := range written {
			if err := notifier.NotifyRunComplete(a.ctx, res.Run, res.Document, res.Fires); err != nil {
				a.logger.Error("run completion notify failed", "document", res.Document, "error", err)
			}
		}
	}

	a.logger.Info("pipeline complete", "duration", domain.Now().Sub(started).Round(time.Second))
	return nil
}
