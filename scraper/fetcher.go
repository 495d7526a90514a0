package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/aluiziolira/go-scrape-products/config"
	"github.com/aluiziolira/go-scrape-products/extract"
	"github.com/aluiziolira/go-scrape-products/models"
	"github.com/aluiziolira/go-scrape-products/pipeline"
	"github.com/gocolly/colly/v2"
)

const (
	acceptHeader = "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8"
	cacheControl = "max-age=0"
)

// Fetcher issues GET requests with browser-like headers, retrying failed
// attempts after a fixed pause. It is bound to one configuration snapshot;
// requests to one host are paced by the shared base collector.
type Fetcher struct {
	cfg     *config.Config
	paced   *pacedCollector
	log     *pipeline.ErrorLog
	metrics *Metrics
}

// NewFetcher builds a fetcher for cfg with its own base collector. transport
// may be nil, in which case one honouring cfg.Proxy is created.
func NewFetcher(cfg *config.Config, transport http.RoundTripper, log *pipeline.ErrorLog, metrics *Metrics) (*Fetcher, error) {
	if transport == nil {
		t, err := newTransport(cfg)
		if err != nil {
			return nil, err
		}
		transport = t
	}
	return newFetcher(cfg, newPacedCollector(cfg, transport), log, metrics), nil
}

func newFetcher(cfg *config.Config, paced *pacedCollector, log *pipeline.ErrorLog, metrics *Metrics) *Fetcher {
	if log == nil {
		log = pipeline.NewErrorLog()
	}
	return &Fetcher{cfg: cfg, paced: paced, log: log, metrics: metrics}
}

// newTransport returns an HTTP transport routed through cfg.Proxy for both http
// and https targets, or through the environment proxy when none is set.
func newTransport(cfg *config.Config) (*http.Transport, error) {
	proxy := http.ProxyFromEnvironment
	if cfg.Proxy != "" {
		proxyURL, err := url.Parse(cfg.Proxy)
		if err != nil {
			return nil, fmt.Errorf("parse proxy url: %w", err)
		}
		proxy = http.ProxyURL(proxyURL)
	}
	return &http.Transport{
		Proxy: proxy,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}, nil
}

// Fetch retrieves and parses rawURL. Each failed attempt appends one entry to
// the error log and is reported through status; after the last attempt the
// returned error matches ErrFetchExhausted. A cancelled ctx prevents further
// attempts but does not interrupt a request already in flight.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, status models.StatusFunc) (*extract.Page, error) {
	body, err := f.FetchBytes(ctx, rawURL, status)
	if err != nil {
		return nil, err
	}
	page, err := extract.NewPage(rawURL, body)
	if err != nil {
		f.log.Append(fmt.Sprintf("parse failed: %s - %v", rawURL, err))
		return nil, err
	}
	return page, nil
}

// FetchBytes is Fetch without HTML parsing.
func (f *Fetcher) FetchBytes(ctx context.Context, rawURL string, status models.StatusFunc) ([]byte, error) {
	attempts := max(f.cfg.MaxRetries, 1)

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			f.metrics.IncRetries()
			if err := sleepContext(ctx, f.cfg.RetryPause); err != nil {
				return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
			}
		}
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
		}

		body, err := f.get(rawURL)
		if err == nil {
			return body, nil
		}

		lastErr = err
		category := errorTypeLabel(err)
		f.metrics.IncError(category)
		slog.Debug("fetch attempt failed",
			slog.String("url", rawURL),
			slog.Int("attempt", attempt),
			slog.String("category", category),
			slog.Any("error", err),
		)

		if attempt < attempts {
			msg := fmt.Sprintf("request failed (%d/%d): %s - %v", attempt, attempts, rawURL, err)
			f.log.Append(msg)
			status.Notify("retrying... " + msg)
			continue
		}
		msg := fmt.Sprintf("giving up after %d attempts: %s - %v", attempts, rawURL, err)
		f.log.Append(msg)
		status.Notify(msg)
	}

	return nil, &FetchError{URL: rawURL, Attempts: attempts, Err: lastErr}
}

// Probe fetches rawURL once and returns the body without logging failures.
func (f *Fetcher) Probe(ctx context.Context, rawURL string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return f.get(rawURL)
}

// get performs a single request on a clone of the base collector, so that
// concurrent callers never share callbacks. The call returns once the host's
// pause after the response has elapsed.
func (f *Fetcher) get(rawURL string) ([]byte, error) {
	if err := f.paced.limit(rawURL); err != nil {
		return nil, err
	}
	c := f.paced.collector.Clone()

	var (
		body       []byte
		statusCode int
		reqErr     error
	)

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("User-Agent", f.cfg.UserAgent)
		r.Headers.Set("Accept", acceptHeader)
		r.Headers.Set("Accept-Language", f.cfg.AcceptLanguage)
		r.Headers.Set("Upgrade-Insecure-Requests", "1")
		r.Headers.Set("Cache-Control", cacheControl)
		r.Ctx.Put("start", time.Now())
		f.metrics.IncRequest("started")
	})

	c.OnResponse(func(r *colly.Response) {
		statusCode = r.StatusCode
		body = r.Body
		if start, ok := r.Request.Ctx.GetAny("start").(time.Time); ok {
			f.metrics.ObserveDuration(time.Since(start))
		}
		if isSuccess(r.StatusCode) {
			f.metrics.IncRequest("succeeded")
		} else {
			f.metrics.IncRequest("failed")
		}
	})

	c.OnError(func(r *colly.Response, err error) {
		reqErr = err
		if r != nil {
			statusCode = r.StatusCode
		}
		f.metrics.IncRequest("failed")
	})

	if err := c.Visit(rawURL); err != nil && reqErr == nil {
		reqErr = err
	}

	if err := classifyError(reqErr, statusCode); err != nil {
		return nil, err
	}
	return body, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
