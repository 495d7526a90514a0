// Package scraper runs product scrapes: it resolves a selector profile for each
// URL, fetches pages with retries and per-host pacing, extracts products and
// accumulates them in a store that can be exported on demand.
package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/aluiziolira/go-scrape-products/config"
	"github.com/aluiziolira/go-scrape-products/extract"
	"github.com/aluiziolira/go-scrape-products/links"
	"github.com/aluiziolira/go-scrape-products/models"
	"github.com/aluiziolira/go-scrape-products/pipeline"
	"github.com/aluiziolira/go-scrape-products/profile"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
)

const probedBodiesCache = 64

// Scraper is the operation surface. Configuration changes made through
// Settings apply to operations started after the change.
type Scraper struct {
	settings *config.Settings
	store    *pipeline.Store
	errlog   *pipeline.ErrorLog
	exporter *pipeline.Exporter
	Metrics  *Metrics

	resolver *profile.Resolver
	images   *imageDownloader

	// bodies fetched by the profile probe, handed to the first fetch of the
	// same URL
	probed *lru.Cache[string, []byte]

	transportOverride http.RoundTripper

	mu         sync.Mutex
	collectors map[collectorKey]*pacedCollector
	debugMu    sync.Mutex
}

// Option customises a Scraper.
type Option func(*Scraper)

// WithTransport routes every request through rt instead of a proxy-aware
// transport built from the configuration.
func WithTransport(rt http.RoundTripper) Option {
	return func(s *Scraper) {
		s.transportOverride = rt
	}
}

// WithMetrics replaces the scraper's metrics.
func WithMetrics(m *Metrics) Option {
	return func(s *Scraper) {
		s.Metrics = m
	}
}

// New builds a scraper. store and errlog are owned by the caller; nil values
// are replaced by fresh ones.
func New(settings *config.Settings, store *pipeline.Store, errlog *pipeline.ErrorLog, opts ...Option) (*Scraper, error) {
	if settings == nil {
		var err error
		settings, err = config.NewSettings(config.DefaultConfig())
		if err != nil {
			return nil, fmt.Errorf("default settings: %w", err)
		}
	}
	if store == nil {
		store = pipeline.NewStore()
	}
	if errlog == nil {
		errlog = pipeline.NewErrorLog()
	}

	probed, err := lru.New[string, []byte](probedBodiesCache)
	if err != nil {
		return nil, fmt.Errorf("probe cache: %w", err)
	}

	s := &Scraper{
		settings:   settings,
		store:      store,
		errlog:     errlog,
		exporter:   pipeline.NewExporter(store, errlog),
		Metrics:    NewMetrics(),
		probed:     probed,
		collectors: make(map[collectorKey]*pacedCollector),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.images = newImageDownloader(errlog, s.Metrics)
	s.resolver = profile.NewResolver(profile.ProberFunc(s.probe), 0)
	return s, nil
}

// Settings returns the live configuration.
func (s *Scraper) Settings() *config.Settings { return s.settings }

// Store returns the product store.
func (s *Scraper) Store() *pipeline.Store { return s.store }

// ErrorLog returns the error log.
func (s *Scraper) ErrorLog() *pipeline.ErrorLog { return s.errlog }

// operation carries the state of one scrape call: a configuration snapshot,
// the fetcher built from it and a run id for log correlation.
type operation struct {
	s       *Scraper
	cfg     *config.Config
	fetcher *Fetcher
	runID   string
	logger  *slog.Logger
}

func (s *Scraper) begin() (*operation, error) {
	cfg := s.settings.Snapshot()
	fetcher, err := s.fetcherFor(cfg)
	if err != nil {
		return nil, err
	}
	runID := uuid.NewString()
	return &operation{
		s:       s,
		cfg:     cfg,
		fetcher: fetcher,
		runID:   runID,
		logger:  slog.With(slog.String("run_id", runID)),
	}, nil
}

// fetcherFor returns a fetcher for cfg on the base collector shared by every
// operation with the same connection and pacing settings.
func (s *Scraper) fetcherFor(cfg *config.Config) (*Fetcher, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := keyFor(cfg)
	paced, ok := s.collectors[key]
	if !ok {
		transport := s.transportOverride
		if transport == nil {
			t, err := newTransport(cfg)
			if err != nil {
				return nil, err
			}
			transport = t
		}
		paced = newPacedCollector(cfg, transport)
		s.collectors[key] = paced
	}
	return newFetcher(cfg, paced, s.errlog, s.Metrics), nil
}

// probe fetches rawURL once for the profile resolver, paced like any other
// request. The body is kept for the fetch that follows.
func (s *Scraper) probe(ctx context.Context, rawURL string) (string, error) {
	f, err := s.fetcherFor(s.settings.Snapshot())
	if err != nil {
		return "", err
	}
	body, err := f.Probe(ctx, rawURL)
	if err != nil {
		return "", err
	}
	s.probed.Add(rawURL, body)
	return string(body), nil
}

// takeProbed returns and forgets the body probed for rawURL.
func (s *Scraper) takeProbed(rawURL string) ([]byte, bool) {
	body, ok := s.probed.Get(rawURL)
	if ok {
		s.probed.Remove(rawURL)
	}
	return body, ok
}

// ScrapeSingle fetches one product page and adds the product to the store.
func (s *Scraper) ScrapeSingle(ctx context.Context, rawURL string, status models.StatusFunc) (*models.Product, error) {
	op, err := s.begin()
	if err != nil {
		return nil, err
	}
	prof := op.resolve(ctx, rawURL)
	return op.scrapeProduct(ctx, rawURL, prof, status)
}

// ScrapePage scrapes every product linked from a listing page and returns how
// many products were added to the store. When ctx is cancelled between
// products the count so far is returned together with ctx's error.
func (s *Scraper) ScrapePage(ctx context.Context, rawURL string, status models.StatusFunc, progress models.ProgressFunc) (int, error) {
	op, err := s.begin()
	if err != nil {
		return 0, err
	}
	return op.scrapePage(ctx, rawURL, status, progress)
}

// ScrapeAll runs ScrapePage for each URL on a bounded worker pool. Requests to
// the same host stay paced; callbacks are serialised.
func (s *Scraper) ScrapeAll(ctx context.Context, urls []string, status models.StatusFunc, progress models.ProgressFunc) (*models.ScrapeResult, error) {
	op, err := s.begin()
	if err != nil {
		return nil, err
	}

	result := &models.ScrapeResult{
		RunID:        op.runID,
		StartTime:    time.Now(),
		CountsByPage: make(map[string]int, len(urls)),
	}

	var cbMu sync.Mutex
	syncStatus := models.StatusFunc(func(msg string) {
		cbMu.Lock()
		defer cbMu.Unlock()
		status.Notify(msg)
	})
	syncProgress := models.ProgressFunc(func(current, total int) {
		cbMu.Lock()
		defer cbMu.Unlock()
		progress.Report(current, total)
	})

	jobs := make(chan string)
	var (
		wg    sync.WaitGroup
		resMu sync.Mutex
	)
	workers := min(max(op.cfg.Parallelism, 1), max(len(urls), 1))
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for pageURL := range jobs {
				count, err := op.scrapePage(ctx, pageURL, syncStatus, syncProgress)

				resMu.Lock()
				result.PageCount++
				result.TotalCount += count
				result.CountsByPage[pageURL] += count
				if err != nil {
					result.ErrorCount++
					result.FailedURLs = append(result.FailedURLs, pageURL)
				}
				resMu.Unlock()
			}
		}()
	}

feed:
	for _, pageURL := range urls {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- pageURL:
		}
	}
	close(jobs)
	wg.Wait()

	result.EndTime = time.Now()
	op.logger.Info("scrape run complete",
		slog.Int("pages", result.PageCount),
		slog.Int("products", result.TotalCount),
		slog.Int("errors", result.ErrorCount),
		slog.String("duration", result.EndTime.Sub(result.StartTime).String()),
	)
	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

// Export writes the store to path in format.
func (s *Scraper) Export(format pipeline.Format, path string) error {
	return s.exporter.Export(format, path)
}

// ExportAll writes the store to several formats in one pass.
func (s *Scraper) ExportAll(targets map[pipeline.Format]string) error {
	return s.exporter.ExportAll(targets)
}

// ExportBatches writes the store as marketplace batch files into dir. A
// non-positive perFile uses the configured ProductsPerFile.
func (s *Scraper) ExportBatches(dir string, perFile int) ([]string, error) {
	if perFile <= 0 {
		perFile = s.settings.Snapshot().ProductsPerFile
	}
	return s.exporter.ExportBatches(dir, perFile)
}

// resolve picks the profile for rawURL. Unmatched URLs use the default
// profile with the configured selector overrides applied.
func (op *operation) resolve(ctx context.Context, rawURL string) profile.Profile {
	return op.resolveOr(ctx, rawURL, profile.Default().WithOverrides(op.cfg.Selectors))
}

// resolveOr picks the profile for rawURL, keeping prof when no rule matches.
func (op *operation) resolveOr(ctx context.Context, rawURL string, prof profile.Profile) profile.Profile {
	if matched, ok := op.s.resolver.Resolve(ctx, rawURL); ok {
		op.logger.Debug("profile resolved",
			slog.String("url", rawURL),
			slog.String("profile", matched.Name()),
		)
		return matched
	}
	return prof
}

// fetch returns the parsed page for rawURL, reusing a body the profile probe
// already downloaded.
func (op *operation) fetch(ctx context.Context, rawURL string, status models.StatusFunc) (*extract.Page, error) {
	var page *extract.Page
	if body, ok := op.s.takeProbed(rawURL); ok {
		if p, err := extract.NewPage(rawURL, body); err == nil {
			page = p
		}
	}
	if page == nil {
		p, err := op.fetcher.Fetch(ctx, rawURL, status)
		if err != nil {
			return nil, err
		}
		page = p
	}
	op.dumpDebug(page)
	return page, nil
}

func (op *operation) scrapeProduct(ctx context.Context, rawURL string, prof profile.Profile, status models.StatusFunc) (*models.Product, error) {
	status.Notify("fetching: " + rawURL)

	page, err := op.fetch(ctx, rawURL, status)
	if err != nil {
		op.s.Metrics.IncProducts(outcomeFailed)
		return nil, err
	}

	strategy := extract.For(prof.Strategy())
	p, err := extract.Run(strategy, page, prof)
	if err != nil {
		msg := fmt.Sprintf("parse product failed: %s - %v", rawURL, err)
		op.s.errlog.Append(msg)
		status.Notify(msg)
		op.s.Metrics.IncProducts(outcomeFailed)
		return nil, err
	}

	partial, err := strategy.Accept(p)
	if err != nil {
		msg := "invalid product data: " + rawURL
		op.s.errlog.Append(msg)
		status.Notify(msg)
		op.s.Metrics.IncProducts(outcomeInvalid)
		return nil, err
	}

	if op.cfg.DownloadImages {
		p.LocalImages = op.s.images.Download(ctx, op.fetcher, p, op.cfg.ImageFolder)
	}

	op.s.store.Add(p)
	if partial {
		op.s.Metrics.IncProducts(outcomePartial)
		status.Notify("scraped product: " + p.Name + " (partially filled)")
	} else {
		op.s.Metrics.IncProducts(outcomeAccepted)
		status.Notify("scraped product: " + p.Name)
	}
	op.logger.Debug("product scraped",
		slog.String("url", rawURL),
		slog.String("profile", prof.Name()),
		slog.Bool("partial", partial),
	)
	return p, nil
}

func (op *operation) scrapePage(ctx context.Context, rawURL string, status models.StatusFunc, progress models.ProgressFunc) (int, error) {
	status.Notify("fetching page: " + rawURL)
	prof := op.resolve(ctx, rawURL)

	if prof.Strategy() == profile.StrategyFallback {
		return op.scrapeFallbackPage(ctx, rawURL, prof, status, progress)
	}

	page, err := op.fetch(ctx, rawURL, status)
	if err != nil {
		return 0, err
	}
	found := links.Discover(page, prof.Selectors(profile.FieldProductLinks))
	if len(found) == 0 {
		msg := "no product links found, check selectors and URL: " + rawURL
		op.s.errlog.Append(msg)
		status.Notify(msg)
		return 0, nil
	}
	return op.scrapeLinks(ctx, found, prof, status, progress)
}

// scrapeFallbackPage handles sites whose listings lack conventional markup.
// Non-listing URLs are treated as a single product. If the listing cannot be
// fetched the URL is tried as a product, then the site home page is scanned
// with id probing.
func (op *operation) scrapeFallbackPage(ctx context.Context, rawURL string, prof profile.Profile, status models.StatusFunc, progress models.ProgressFunc) (int, error) {
	strategy := extract.For(prof.Strategy())
	if !strategy.IsListing(rawURL) {
		return op.scrapeOne(ctx, rawURL, prof, status)
	}

	page, err := op.fetch(ctx, rawURL, status)
	if err != nil {
		if ctx.Err() != nil {
			return 0, err
		}
		status.Notify("could not fetch product list, trying the page as a product")
		if n, perr := op.scrapeOne(ctx, rawURL, prof, status); n > 0 || ctx.Err() != nil {
			return n, perr
		}

		home := homeURL(rawURL)
		status.Notify("trying product links from the home page: " + home)
		homePage, herr := op.fetch(ctx, home, status)
		if herr != nil {
			return 0, herr
		}
		found := links.DiscoverFallback(homePage, op.cfg.ProbeIDMax)
		return op.scrapeLinks(ctx, found, prof, status, progress)
	}

	found := links.DiscoverFallback(page, 0)
	if len(found) == 0 {
		status.Notify("no product links found, treating the page as a product")
		found = []string{rawURL}
	}
	return op.scrapeLinks(ctx, found, prof, status, progress)
}

func (op *operation) scrapeOne(ctx context.Context, rawURL string, prof profile.Profile, status models.StatusFunc) (int, error) {
	p, err := op.scrapeProduct(ctx, rawURL, prof, status)
	if err != nil {
		return 0, err
	}
	status.Notify("scraped single product: " + p.Name)
	return 1, nil
}

// scrapeLinks scrapes each link in order. A link matching a known platform
// uses that platform's profile, other links keep prof. Failures of individual products are
// recorded and do not stop the loop; cancellation does.
func (op *operation) scrapeLinks(ctx context.Context, found []string, prof profile.Profile, status models.StatusFunc, progress models.ProgressFunc) (int, error) {
	total := len(found)
	status.Notify(fmt.Sprintf("found %d product links", total))
	if op.cfg.MaxInterval > 0 {
		status.Notify(fmt.Sprintf("waiting %.1f-%.1fs after each request to the same host...",
			op.cfg.MinInterval.Seconds(), op.cfg.MaxInterval.Seconds()))
	}

	count := 0
	for i, link := range found {
		if err := ctx.Err(); err != nil {
			op.logger.Info("page scrape cancelled",
				slog.Int("scraped", count),
				slog.Int("total", total),
			)
			return count, err
		}
		progress.Report(i, total)
		status.Notify(fmt.Sprintf("fetching (%d/%d): %s", i+1, total, link))

		if _, err := op.scrapeProduct(ctx, link, op.resolveOr(ctx, link, prof), status); err != nil {
			if ctx.Err() != nil {
				return count, ctx.Err()
			}
			op.logger.Debug("product skipped", slog.String("url", link), slog.Any("error", err))
			continue
		}
		count++
	}

	status.Notify(fmt.Sprintf("done! scraped %d/%d products", count, total))
	op.logger.Info("page scrape complete",
		slog.Int("scraped", count),
		slog.Int("total", total),
	)
	return count, nil
}

// homeURL returns the root of rawURL's site.
func homeURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	scheme := u.Scheme
	if scheme == "" {
		scheme = "https"
	}
	return scheme + "://" + u.Host + "/"
}

// dumpDebug writes the parsed page to the debug file when debug mode is on.
func (op *operation) dumpDebug(page *extract.Page) {
	if !op.cfg.Debug {
		return
	}
	op.s.debugMu.Lock()
	defer op.s.debugMu.Unlock()
	if err := os.WriteFile(op.cfg.DebugFile, []byte(page.HTML()), 0o644); err != nil {
		op.logger.Warn("write debug page failed",
			slog.String("path", op.cfg.DebugFile),
			slog.Any("error", err),
		)
	}
}
