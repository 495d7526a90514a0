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
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/aluiziolira/go-scrape-products/config"
	"github.com/aluiziolira/go-scrape-products/models"
	"github.com/aluiziolira/go-scrape-products/pipeline"
	"github.com/aluiziolira/go-scrape-products/scraper"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const recentErrorsShown = 3

func main() {
	defaultCfg, err := envConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	targetURL := flag.String("url", "", "Product or listing page URL")
	mode := flag.String("mode", "page", "Scrape mode: single or page")
	outputFormat := flag.String("format", defaultCfg.OutputFormat, "Output format: csv, txt, json, marketplace or batch (comma separated for several)")
	outputFile := flag.String("output", defaultCfg.OutputFile, "Output file path (batch exports use it as a directory prefix)")
	batchSize := flag.Int("batch-size", defaultCfg.ProductsPerFile, "Products per file for batch export")
	proxy := flag.String("proxy", defaultCfg.Proxy, "Proxy URL for http and https requests")
	minInterval := flag.Duration("min-interval", defaultCfg.MinInterval, "Minimum pause between requests to the same host")
	maxInterval := flag.Duration("max-interval", defaultCfg.MaxInterval, "Maximum pause between requests to the same host")
	maxRetries := flag.Int("max-retries", defaultCfg.MaxRetries, "Attempts per URL")
	timeout := flag.Duration("timeout", defaultCfg.Timeout, "Per-request timeout")
	downloadImages := flag.Bool("download-images", defaultCfg.DownloadImages, "Download product images")
	imageFolder := flag.String("image-folder", defaultCfg.ImageFolder, "Directory for downloaded images")
	debug := flag.Bool("debug", defaultCfg.Debug, "Write the last fetched page to "+defaultCfg.DebugFile)
	metricsAddr := flag.String("metrics-addr", defaultCfg.MetricsAddr, "Prometheus metrics listen address (e.g. :9090)")
	verbose := flag.Bool("v", false, "Enable verbose logging")

	flag.Parse()

	logger, level := newLogger(*verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	cfg := defaultCfg.Clone()
	cfg.OutputFormat = strings.ToLower(*outputFormat)
	cfg.OutputFile = *outputFile
	cfg.ProductsPerFile = *batchSize
	cfg.Proxy = *proxy
	cfg.MinInterval = *minInterval
	cfg.MaxInterval = *maxInterval
	cfg.MaxRetries = *maxRetries
	cfg.Timeout = *timeout
	cfg.DownloadImages = *downloadImages
	cfg.ImageFolder = *imageFolder
	cfg.Debug = *debug
	cfg.MetricsAddr = *metricsAddr
	cfg.Verbose = *verbose

	settings, err := config.NewSettings(cfg)
	if err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	urls := flag.Args()
	if *targetURL != "" {
		urls = append([]string{*targetURL}, urls...)
	}
	if len(urls) == 0 {
		fmt.Fprintln(os.Stderr, "usage: scraper -url <product or listing URL> [flags] [more URLs...]")
		flag.PrintDefaults()
		os.Exit(2)
	}
	if *mode != "single" && *mode != "page" {
		slog.Error("invalid mode", slog.String("mode", *mode))
		os.Exit(2)
	}

	store := pipeline.NewStore()
	errlog := pipeline.NewErrorLog()
	s, err := scraper.New(settings, store, errlog)
	if err != nil {
		slog.Error("initialising scraper", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received, finishing the current request")
	}()

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" && s.Metrics != nil {
		metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(s.Metrics.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	status := models.StatusFunc(func(msg string) {
		slog.Info(msg)
	})
	progress := models.ProgressFunc(func(current, total int) {
		slog.Debug("progress", slog.Int("current", current+1), slog.Int("total", total))
	})

	slog.Info("starting scrape",
		slog.String("mode", *mode),
		slog.Int("urls", len(urls)),
		slog.String("format", cfg.OutputFormat),
	)

	startTime := time.Now()
	result := run(ctx, s, *mode, urls, status, progress)
	duration := time.Since(startTime)

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
		cancel()
	}

	outputs, exportErr := export(s, cfg)
	printSummary(result, store, duration, outputs)

	if exportErr != nil {
		slog.Error("export failed", slog.Any("error", exportErr))
		printRecentErrors(exportErr, errlog)
		os.Exit(1)
	}
}

// run dispatches to the scraper operations and folds their outcome into a
// ScrapeResult.
func run(ctx context.Context, s *scraper.Scraper, mode string, urls []string, status models.StatusFunc, progress models.ProgressFunc) *models.ScrapeResult {
	if mode == "page" && len(urls) > 1 {
		result, err := s.ScrapeAll(ctx, urls, status, progress)
		if err != nil {
			slog.Warn("scrape interrupted", slog.Any("error", err))
		}
		return result
	}

	result := &models.ScrapeResult{
		StartTime:    time.Now(),
		CountsByPage: make(map[string]int, len(urls)),
	}
	for _, u := range urls {
		if ctx.Err() != nil {
			break
		}
		result.PageCount++

		var (
			count int
			err   error
		)
		if mode == "single" {
			var p *models.Product
			if p, err = s.ScrapeSingle(ctx, u, status); p != nil {
				count = 1
			}
		} else {
			count, err = s.ScrapePage(ctx, u, status, progress)
		}

		result.TotalCount += count
		result.CountsByPage[u] += count
		if err != nil {
			result.ErrorCount++
			result.FailedURLs = append(result.FailedURLs, u)
			slog.Warn("scrape failed", slog.String("url", u), slog.Any("error", err))
		}
	}
	result.EndTime = time.Now()
	return result
}

// export writes the store in every configured format and returns the paths
// written.
func export(s *scraper.Scraper, cfg *config.Config) ([]string, error) {
	if s.Store().Len() == 0 {
		slog.Warn("nothing to export")
		return nil, nil
	}

	var (
		formats []pipeline.Format
		batch   bool
	)
	for _, name := range strings.Split(cfg.OutputFormat, ",") {
		name = strings.TrimSpace(name)
		if name == "batch" {
			batch = true
			continue
		}
		format, err := pipeline.ParseFormat(name)
		if err != nil {
			return nil, err
		}
		formats = append(formats, format)
	}

	var outputs []string
	switch len(formats) {
	case 0:
	case 1:
		if err := s.Export(formats[0], cfg.OutputFile); err != nil {
			return outputs, err
		}
		outputs = append(outputs, cfg.OutputFile)
	default:
		targets := make(map[pipeline.Format]string, len(formats))
		for _, f := range formats {
			targets[f] = outputPath(cfg.OutputFile, f)
			outputs = append(outputs, targets[f])
		}
		if err := s.ExportAll(targets); err != nil {
			return nil, err
		}
	}

	if batch {
		dir := strings.TrimSuffix(cfg.OutputFile, filepath.Ext(cfg.OutputFile)) + "_batches"
		paths, err := s.ExportBatches(dir, cfg.ProductsPerFile)
		if err != nil {
			return outputs, err
		}
		outputs = append(outputs, paths...)
	}
	return outputs, nil
}

// outputPath derives a per-format file name from the configured output path.
func outputPath(base string, format pipeline.Format) string {
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if format == pipeline.FormatMarketplace {
		return stem + "_marketplace.csv"
	}
	return stem + "." + string(format)
}

func envConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if value, ok := config.EnvString("SCRAPER_PROXY"); ok {
		cfg.Proxy = value
	}
	if value, ok := config.EnvString("SCRAPER_OUTPUT"); ok {
		cfg.OutputFile = value
	}
	if value, ok := config.EnvString("SCRAPER_FORMAT"); ok {
		cfg.OutputFormat = value
	}
	if value, ok := config.EnvString("SCRAPER_METRICS_ADDR"); ok {
		cfg.MetricsAddr = value
	}
	if value, ok := config.EnvString("SCRAPER_IMAGE_FOLDER"); ok {
		cfg.ImageFolder = value
	}
	if value, ok, err := config.EnvInt("SCRAPER_MAX_RETRIES"); err != nil {
		return nil, fmt.Errorf("invalid SCRAPER_MAX_RETRIES: %w", err)
	} else if ok {
		cfg.MaxRetries = value
	}
	if value, ok, err := config.EnvInt("SCRAPER_PARALLEL"); err != nil {
		return nil, fmt.Errorf("invalid SCRAPER_PARALLEL: %w", err)
	} else if ok {
		cfg.Parallelism = value
	}
	if value, ok, err := config.EnvInt("SCRAPER_BATCH_SIZE"); err != nil {
		return nil, fmt.Errorf("invalid SCRAPER_BATCH_SIZE: %w", err)
	} else if ok {
		cfg.ProductsPerFile = value
	}
	if value, ok, err := config.EnvDuration("SCRAPER_MIN_INTERVAL"); err != nil {
		return nil, fmt.Errorf("invalid SCRAPER_MIN_INTERVAL: %w", err)
	} else if ok {
		cfg.MinInterval = value
	}
	if value, ok, err := config.EnvDuration("SCRAPER_MAX_INTERVAL"); err != nil {
		return nil, fmt.Errorf("invalid SCRAPER_MAX_INTERVAL: %w", err)
	} else if ok {
		cfg.MaxInterval = value
	}
	if value, ok, err := config.EnvDuration("SCRAPER_TIMEOUT"); err != nil {
		return nil, fmt.Errorf("invalid SCRAPER_TIMEOUT: %w", err)
	} else if ok {
		cfg.Timeout = value
	}
	return cfg, nil
}

func printSummary(result *models.ScrapeResult, store *pipeline.Store, duration time.Duration, outputs []string) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Scrape complete")

	if result != nil {
		if result.RunID != "" {
			fmt.Printf("  Run ID:        %s\n", result.RunID)
		}
		fmt.Printf("  Pages:         %d\n", result.PageCount)
		fmt.Printf("  Products:      %d\n", result.TotalCount)
		fmt.Printf("  Errors:        %d\n", result.ErrorCount)
		fmt.Printf("  Failed URLs:   %d\n", len(result.FailedURLs))
	}
	stats := store.Stats()
	fmt.Printf("  Stored:        %d (%d partial)\n", stats["products"], stats["partial_products"])

	itemsPerSec := 0.0
	if duration.Seconds() > 0 {
		itemsPerSec = float64(stats["products"]) / duration.Seconds()
	}
	fmt.Printf("  Duration:      %v\n", duration)
	fmt.Printf("  Items/sec:     %.2f\n", itemsPerSec)
	for _, out := range outputs {
		fmt.Printf("  Output file:   %s\n", out)
	}
	fmt.Println(separator)
}

func printRecentErrors(err error, errlog *pipeline.ErrorLog) {
	recent := errlog.Recent(recentErrorsShown)
	var exportErr *pipeline.ExportError
	if errors.As(err, &exportErr) {
		recent = exportErr.Recent
	}
	if len(recent) == 0 {
		return
	}
	fmt.Println("Recent errors:")
	for _, entry := range recent {
		fmt.Printf("  - %s\n", entry)
	}
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
