package profile

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultProbeCacheSize = 256

// Prober performs the single content probe used to fingerprint a platform.
type Prober interface {
	Probe(ctx context.Context, rawURL string) (string, error)
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context, rawURL string) (string, error)

// Probe calls f.
func (f ProberFunc) Probe(ctx context.Context, rawURL string) (string, error) {
	return f(ctx, rawURL)
}

// Resolver maps URLs to selector profiles.
type Resolver struct {
	prober Prober
	probes *lru.Cache[string, bool]
}

// NewResolver builds a resolver. prober may be nil, which disables the content
// probe heuristic.
func NewResolver(prober Prober, cacheSize int) *Resolver {
	if cacheSize <= 0 {
		cacheSize = defaultProbeCacheSize
	}
	cache, err := lru.New[string, bool](cacheSize)
	if err != nil {
		panic(err)
	}
	return &Resolver{prober: prober, probes: cache}
}

// Resolve returns the profile for rawURL and whether any rule matched. When
// nothing matches the caller keeps whatever profile it already uses.
func (r *Resolver) Resolve(ctx context.Context, rawURL string) (Profile, bool) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return Profile{}, false
	}
	host := strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")

	for _, e := range builtins {
		if host != "" && strings.Contains(host, e.key) {
			return e.profile, true
		}
	}

	switch {
	case strings.Contains(rawURL, "/products/") || strings.HasSuffix(host, "myshopify.com"):
		return mustBuiltin("shopify"), true
	case strings.Contains(rawURL, "/product/") || strings.Contains(rawURL, "/shop/"):
		if r.isWooCommerce(ctx, rawURL) {
			return mustBuiltin("woocommerce"), true
		}
	}
	if strings.Contains(rawURL, "/catalog/product/view/") {
		return mustBuiltin("magento"), true
	}
	if strings.Contains(rawURL, "id_product=") {
		return mustBuiltin("prestashop"), true
	}
	return Profile{}, false
}

// isWooCommerce probes the page once and remembers the outcome. Probe failures
// count as no match and are not remembered.
func (r *Resolver) isWooCommerce(ctx context.Context, rawURL string) bool {
	if cached, ok := r.probes.Get(rawURL); ok {
		return cached
	}
	if r.prober == nil {
		return false
	}
	body, err := r.prober.Probe(ctx, rawURL)
	if err != nil {
		slog.Debug("profile probe failed", slog.String("url", rawURL), slog.Any("error", err))
		return false
	}
	lower := strings.ToLower(body)
	matched := strings.Contains(lower, "woocommerce") || strings.Contains(lower, "wp-content")
	r.probes.Add(rawURL, matched)
	return matched
}

func mustBuiltin(key string) Profile {
	p, ok := Builtin(key)
	if !ok {
		panic("profile: missing builtin " + key)
	}
	return p
}
