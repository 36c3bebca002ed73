package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/ctessum/geom"
	"github.com/joho/godotenv"

	"github.com/veerylabs/rangemap/internal/adapter/httpadapter"
	kafkaadapter "github.com/veerylabs/rangemap/internal/adapter/kafka"
	"github.com/veerylabs/rangemap/internal/config"
	"github.com/veerylabs/rangemap/internal/cube"
	"github.com/veerylabs/rangemap/internal/export"
	"github.com/veerylabs/rangemap/internal/observability"
	"github.com/veerylabs/rangemap/internal/pipeline"
	"github.com/veerylabs/rangemap/internal/regions"
	"github.com/veerylabs/rangemap/internal/season"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, metrics); err != nil {
		logger.Error("run failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) error {
	c, err := cube.Load(cfg.CubePath)
	if err != nil {
		return err
	}
	logger.Info("cube loaded", "path", cfg.CubePath, "nx", c.Ref.Nx, "ny", c.Ref.Ny)

	defs, err := season.LoadDefinitions(cfg.SeasonsPath, cfg.Species)
	if err != nil {
		return err
	}

	var regs []regions.Region
	if cfg.RegionsPath != "" {
		regs, err = regions.LoadShapefile(cfg.RegionsPath, cfg.RegionIDField, c.Ref.Proj4)
		if err != nil {
			return err
		}
		logger.Info("regions loaded", "path", cfg.RegionsPath, "count", len(regs))
	}

	var boundary geom.Polygonal
	if cfg.BoundaryPath != "" {
		boundary, err = regions.LoadBoundary(cfg.BoundaryPath, c.Ref.Proj4)
		if err != nil {
			return err
		}
	}

	p := pipeline.New(boundary, cfg.AggFactor, logger, metrics)
	srv := httpadapter.NewServer(cfg.HTTPAddr, p, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	res, runErr := p.Run(ctx, cfg.Species, c, defs, regs)
	if runErr == nil {
		runErr = exportResult(cfg, logger, metrics, res)
	}
	if runErr == nil && cfg.KafkaEnabled() {
		w := kafkaadapter.NewStatsWriter(cfg, logger)
		if len(res.Stats) > 0 {
			if err := w.PublishStats(ctx, res.Stats); err != nil {
				logger.Error("stats publish failed", "error", err)
			}
		}
		if err := w.PublishFlags(ctx, res.Flags); err != nil {
			logger.Error("flags publish failed", "error", err)
		}
		if err := w.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	return runErr
}

func exportResult(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics, res *pipeline.Result) error {
	if err := os.MkdirAll(cfg.ExportDir, 0o755); err != nil {
		return fmt.Errorf("creating export dir %s: %w", cfg.ExportDir, err)
	}
	out := func(suffix string) string {
		return filepath.Join(cfg.ExportDir, cfg.Species+suffix)
	}

	if err := export.WriteRangesGeoJSON(out("_ranges.geojson"), cfg.Species, res.Ranges); err != nil {
		return err
	}
	metrics.ExportedFiles.WithLabelValues("geojson").Inc()

	if err := export.WriteComposites(out("_composites.nc"), cfg.Species, res.Composites); err != nil {
		return err
	}
	metrics.ExportedFiles.WithLabelValues("netcdf").Inc()

	if len(res.Bins.Breaks) > 0 {
		if err := export.WriteBins(out("_bins.json"), cfg.Species, res.Bins); err != nil {
			return err
		}
		metrics.ExportedFiles.WithLabelValues("json").Inc()
	}

	if len(res.Stats) > 0 {
		if err := export.WriteStatsCSV(out("_stats.csv"), cfg.Species, res.Stats); err != nil {
			return err
		}
		metrics.ExportedFiles.WithLabelValues("csv").Inc()
	}

	logger.Info("export complete", "dir", cfg.ExportDir, "species", cfg.Species)
	return nil
}
