package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	flag "github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/raaihank/sparkify-lake/internal/config"
	"github.com/raaihank/sparkify-lake/internal/etl"
	"github.com/raaihank/sparkify-lake/internal/logger"
	"github.com/raaihank/sparkify-lake/internal/session"
)

var (
	version = "0.1.0"
	commit  = "dev"
	date    = "unknown"
)

func main() {
	var (
		configPath  = flag.String("config", "configs/default.yaml", "Configuration file path")
		inspect     = flag.Bool("inspect", false, "Show statistics for the committed output tables and exit")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s --config configs/default.yaml\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  SPARKIFY_PATHS_OUTPUT_DATA=./out %s\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --inspect\n", os.Args[0])
	}
	flag.Parse()

	if *showVersion {
		fmt.Printf("sparkify-etl %s (commit: %s, built: %s)\n", version, commit, date)
		return
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logCfg := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}
	if cfg.Logging.File.Enabled {
		logCfg.File = &logger.FileConfig{Enabled: true, Path: cfg.Logging.File.Path}
	}
	log, err := logger.New(logCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting Sparkify ETL",
		zap.String("version", version),
		zap.String("config", *configPath))

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("Received shutdown signal, cancelling operations...")
		cancel()
	}()

	sess, err := session.Acquire(ctx, cfg, log.WithComponent("session").Logger)
	if err != nil {
		log.Fatal("Failed to acquire session", zap.Error(err))
	}
	defer func() {
		if err := sess.Close(context.Background()); err != nil {
			log.Warn("Failed to close session", zap.Error(err))
		}
	}()

	pipeline := etl.NewPipeline(sess, &etl.Config{
		StartTimePrecision: etl.Precision(cfg.Transform.StartTimePrecision),
		Compression:        cfg.Output.Compression,
		MaxRowsPerFile:     cfg.Output.MaxRowsPerFile,
	}, log.WithComponent("etl").WithRunID(sess.RunID).Logger)

	if *inspect {
		if err := showTableStats(ctx, pipeline, sess, log); err != nil {
			log.Fatal("Failed to show table stats", zap.Error(err))
		}
		return
	}

	result, err := pipeline.Run(ctx)
	if err != nil {
		// Fatal skips deferred calls
		_ = sess.Close(context.Background())
		log.Fatal("ETL processing failed", zap.Error(err))
	}

	// Report results
	for _, stage := range result.Stages {
		for _, t := range stage.Tables {
			log.Info("Stage output",
				zap.String("stage", stage.Stage),
				zap.String("table", t.Name),
				zap.Int64("rows", t.Rows),
				zap.Int("partitions", t.Partitions),
				zap.Int("files", t.Files))
		}
	}
	log.Info("ETL pipeline completed successfully",
		zap.String("run_id", result.RunID),
		zap.Duration("total_duration", result.Duration))
}

// showTableStats prints the committed output tables
func showTableStats(ctx context.Context, pipeline *etl.Pipeline, sess *session.Session, log *logger.Logger) error {
	log.Info("Inspecting output tables...")

	results, err := pipeline.Inspect(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("\n=== Sparkify Output Tables (%s) ===\n", sess.Output.URL())
	fmt.Printf("%-12s %-28s %10s %11s %6s\n", "Table", "Path", "Rows", "Partitions", "Files")
	for _, r := range results {
		fmt.Printf("%-12s %-28s %10d %11d %6d\n", r.Name, r.Path, r.Rows, r.Partitions, r.Files)
	}
	return nil
}
