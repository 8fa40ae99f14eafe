package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/aluiziolira/go-catalog-harvester/config"
	"github.com/aluiziolira/go-catalog-harvester/models"
	"github.com/aluiziolira/go-catalog-harvester/monitor"
	"github.com/aluiziolira/go-catalog-harvester/pipeline"
	"github.com/aluiziolira/go-catalog-harvester/scraper"
)

func main() {
	defaults := config.DefaultConfig()

	configFile := flag.String("config", "", "Optional config file (yaml, json or toml)")
	categories := flag.String("categories", strings.Join(defaults.Categories, ","), "Comma-separated category slugs")
	maxPages := flag.Int("pages", defaults.MaxPages, "Maximum pages per category")
	pageSize := flag.Int("page-size", defaults.PageSize, "Items requested per page")
	parallelism := flag.Int("parallel", defaults.Parallelism, "Categories crawled concurrently")
	delay := flag.Duration("delay", defaults.Delay, "Minimum spacing between requests")
	randomDelay := flag.Duration("random-delay", defaults.RandomDelay, "Random jitter added to delay")
	maxRetries := flag.Int("max-retries", defaults.MaxRetries, "Consecutive failures tolerated per offset")
	runTimeout := flag.Duration("run-timeout", defaults.RunTimeout, "Overall run deadline (0 disables)")
	strictForbidden := flag.Bool("strict-forbidden", defaults.StrictForbidden, "Treat 403 as terminal instead of renewing the session")
	outputFile := flag.String("output", defaults.OutputFile, "Output file path")
	outputFormat := flag.String("format", defaults.OutputFormat, "Output sinks, comma-separated: csv, json, dual, redis, postgres, kafka")
	baseURL := flag.String("base-url", defaults.BaseURL, "Storefront base URL")
	location := flag.String("location", defaults.Location, "Delivery location code sent with API requests")
	metricsAddr := flag.String("metrics-addr", defaults.MetricsAddr, "Metrics and status listen address (e.g. :9090)")
	verbose := flag.Bool("v", false, "Enable verbose logging")

	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	// Flags given explicitly win over file and environment values.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "categories":
			cfg.Categories = splitList(*categories)
		case "pages":
			cfg.MaxPages = *maxPages
		case "page-size":
			cfg.PageSize = *pageSize
		case "parallel":
			cfg.Parallelism = *parallelism
		case "delay":
			cfg.Delay = *delay
		case "random-delay":
			cfg.RandomDelay = *randomDelay
		case "max-retries":
			cfg.MaxRetries = *maxRetries
		case "run-timeout":
			cfg.RunTimeout = *runTimeout
		case "strict-forbidden":
			cfg.StrictForbidden = *strictForbidden
		case "output":
			cfg.OutputFile = *outputFile
		case "format":
			cfg.OutputFormat = strings.ToLower(*outputFormat)
		case "base-url":
			cfg.BaseURL = *baseURL
		case "location":
			cfg.Location = *location
		case "metrics-addr":
			cfg.MetricsAddr = *metricsAddr
		case "v":
			cfg.Verbose = *verbose
		}
	})

	logger, level := newLogger(cfg.Verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	slog.Info("starting harvest",
		slog.String("base_url", cfg.BaseURL),
		slog.Any("categories", cfg.Categories),
		slog.Int("pages", cfg.MaxPages),
		slog.Int("parallel", cfg.Parallelism),
		slog.String("format", cfg.OutputFormat),
	)

	h, err := scraper.NewHarvester(cfg)
	if err != nil {
		slog.Error("initialising harvester", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received, waiting for in-flight work to finish")
	}()

	writer, err := createWriter(ctx, cfg)
	if err != nil {
		slog.Error("creating writer", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := writer.Close(); err != nil {
			slog.Error("close writer", slog.Any("error", err))
		}
	}()

	var statusServer *http.Server
	if cfg.MetricsAddr != "" {
		statusServer = &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           monitor.NewRouter(h.Metrics.Registry, h),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := statusServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("status server failed", slog.Any("error", err))
			}
		}()
		slog.Info("status server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	// The pipeline outlives the signal context so queued items still flush.
	p := pipeline.NewPipeline(context.Background(), writer, cfg)
	p.Start(cfg.Parallelism)
	if cfg.Verbose {
		p.StartMetricsReporting(10 * time.Second)
	}

	report, runErr := h.Run(ctx, cfg.Categories, p)

	if err := p.Close(); err != nil {
		slog.Error("pipeline shutdown failed", slog.Any("error", err))
		os.Exit(1)
	}

	if statusServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := statusServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("status server shutdown failed", slog.Any("error", err))
		}
		cancel()
	}

	if report != nil {
		printSummary(report, cfg, p.GetMetrics(), writer)
	}

	if runErr != nil {
		slog.Error("harvest failed", slog.Any("error", runErr))
		os.Exit(1)
	}
	if err := writer.Validate(); err != nil {
		slog.Warn("output validation failed", slog.Any("error", err))
	}
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func createWriter(ctx context.Context, cfg *config.Config) (pipeline.OutputWriter, error) {
	formats := cfg.OutputFormats()
	bothFiles := slices.Contains(formats, "csv") && slices.Contains(formats, "json")
	base := strings.TrimSuffix(strings.TrimSuffix(cfg.OutputFile, ".csv"), ".jsonl")

	var targets []pipeline.Target
	closeAll := func() {
		for _, t := range targets {
			t.Writer.Close()
		}
	}
	for _, format := range formats {
		path := cfg.OutputFile
		if bothFiles && format == "csv" {
			path = base + ".csv"
		} else if bothFiles && format == "json" {
			path = base + ".jsonl"
		}

		w, err := createSink(ctx, cfg, format, path)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("%s sink: %w", format, err)
		}
		targets = append(targets, pipeline.Target{Name: format, Writer: w})
	}

	if len(targets) == 1 {
		return targets[0].Writer, nil
	}
	return pipeline.NewFanoutWriter(targets...), nil
}

func createSink(ctx context.Context, cfg *config.Config, format, path string) (pipeline.OutputWriter, error) {
	switch format {
	case "json":
		return pipeline.NewJSONWriter(path)
	case "csv":
		return pipeline.NewCSVWriter(path)
	case "redis":
		return pipeline.NewRedisWriter(ctx, cfg.RedisAddr, cfg.RedisStream)
	case "postgres":
		return pipeline.NewPostgresWriter(ctx, cfg.PostgresURL)
	case "kafka":
		return pipeline.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic), nil
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

func printSummary(report *models.RunReport, cfg *config.Config, metrics map[string]interface{}, writer pipeline.OutputWriter) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Harvest complete")

	duration := report.EndTime.Sub(report.StartTime)
	written := int64(0)
	if processed, ok := metrics["processed_items"].(int64); ok {
		written = processed
	}
	itemsPerSec := 0.0
	if duration.Seconds() > 0 {
		itemsPerSec = float64(report.TotalItems()) / duration.Seconds()
	}

	fmt.Printf("  Items emitted: %d\n", report.TotalItems())
	fmt.Printf("  Items written: %d\n", written)
	if valErrors, ok := metrics["validation_errors"].(map[string]int); ok && len(valErrors) > 0 {
		fmt.Printf("  Validation:    %v\n", valErrors)
	}
	fmt.Printf("  Duration:      %v\n", duration.Round(time.Millisecond))
	fmt.Printf("  Items/sec:     %.2f\n", itemsPerSec)
	fmt.Printf("  Output:        %s (%s)\n", cfg.OutputFile, cfg.OutputFormat)
	if fanout, ok := writer.(*pipeline.FanoutWriter); ok {
		written, failed := fanout.Delivered()
		for _, format := range cfg.OutputFormats() {
			fmt.Printf("    %-10s written=%d failed=%d\n", format, written[format], failed[format])
		}
	}
	fmt.Println("  Categories:")
	for _, c := range report.Categories {
		line := fmt.Sprintf("    %-24s %-24s items=%d pages=%d retries=%d bootstraps=%d",
			c.Category, c.Outcome, c.Items, c.Pages, c.Retries, c.Bootstraps)
		if c.Err != "" {
			line += " error=" + c.Err
		}
		fmt.Println(line)
	}
	fmt.Println(separator)
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
