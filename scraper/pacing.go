package scraper

import (
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"sync"
	"time"

	"github.com/aluiziolira/go-scrape-products/config"
	"github.com/gocolly/colly/v2"
)

// pacedCollector is the base collector every fetch clones. Each host gets its
// own colly limit rule: requests to the host run one at a time, and after each
// response the host stays busy for MinInterval plus a random share of
// MaxInterval-MinInterval. Clones share the rules, so pacing holds across
// operations and workers.
type pacedCollector struct {
	collector   *colly.Collector
	delay       time.Duration
	randomDelay time.Duration

	mu    sync.Mutex
	hosts map[string]struct{}
}

func newPacedCollector(cfg *config.Config, transport http.RoundTripper) *pacedCollector {
	collector := colly.NewCollector(
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
		colly.IgnoreRobotsTxt(),
		// non-2xx responses reach OnResponse so the status can be classified
		colly.ParseHTTPErrorResponse(),
	)
	collector.SetRequestTimeout(cfg.Timeout)
	collector.WithTransport(transport)

	return &pacedCollector{
		collector:   collector,
		delay:       cfg.MinInterval,
		randomDelay: max(cfg.MaxInterval-cfg.MinInterval, 0),
		hosts:       make(map[string]struct{}),
	}
}

// limit registers the rule for rawURL's host the first time the host is seen.
func (p *pacedCollector) limit(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		// colly rejects the URL itself
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.hosts[u.Host]; ok {
		return nil
	}
	if err := p.collector.Limit(&colly.LimitRule{
		DomainRegexp: `(?i)^` + regexp.QuoteMeta(u.Host) + `$`,
		Parallelism:  1,
		Delay:        p.delay,
		RandomDelay:  p.randomDelay,
	}); err != nil {
		return fmt.Errorf("configure rate limit for %s: %w", u.Host, err)
	}
	p.hosts[u.Host] = struct{}{}
	return nil
}

// collectorKey identifies the settings a base collector is built from. A
// change to any of them starts a fresh collector with fresh host rules.
type collectorKey struct {
	proxy       string
	minInterval time.Duration
	maxInterval time.Duration
	timeout     time.Duration
	userAgent   string
}

func keyFor(cfg *config.Config) collectorKey {
	return collectorKey{
		proxy:       cfg.Proxy,
		minInterval: cfg.MinInterval,
		maxInterval: cfg.MaxInterval,
		timeout:     cfg.Timeout,
		userAgent:   cfg.UserAgent,
	}
}
