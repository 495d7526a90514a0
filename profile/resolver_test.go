package profile

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingProber struct {
	calls atomic.Int32
	body  string
	err   error
}

func (p *countingProber) Probe(ctx context.Context, rawURL string) (string, error) {
	p.calls.Add(1)
	return p.body, p.err
}

func TestResolveStaticTable(t *testing.T) {
	r := NewResolver(nil, 0)
	tests := []struct {
		url  string
		want string
	}{
		{url: "https://www.bkhorsebag.com/index.php?id=12", want: "bkhorsebag.com"},
		{url: "https://bkhorsebag.com/products.html", want: "bkhorsebag.com"},
		{url: "https://demo.shopify.com/collections/all", want: "shopify"},
		{url: "https://store.woocommerce.com/anything", want: "woocommerce"},
		{url: "https://www.magento.example/page", want: "magento"},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			p, ok := r.Resolve(context.Background(), tt.url)
			require.True(t, ok)
			assert.Equal(t, tt.want, p.Name())
		})
	}

	p, ok := r.Resolve(context.Background(), "https://www.bkhorsebag.com/")
	require.True(t, ok)
	assert.Equal(t, StrategyFallback, p.Strategy())
}

func TestResolveHeuristics(t *testing.T) {
	tests := []struct {
		url   string
		body  string
		want  string
		calls int32
	}{
		{url: "https://bags.example/products/kelly-25", want: "shopify"},
		{url: "https://bags-example.myshopify.com/collections/new", want: "shopify"},
		{url: "https://bags.example/product/kelly-25/", body: `<link href="/wp-content/themes/shop.css">`, want: "woocommerce", calls: 1},
		{url: "https://bags.example/shop/kelly-25", body: `<body class="WooCommerce-page">`, want: "woocommerce", calls: 1},
		{url: "https://bags.example/catalog/product/view/id/7", body: "<html></html>", want: "magento", calls: 1},
		{url: "https://bags.example/index.php?id_product=7&controller=product", want: "prestashop"},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			prober := &countingProber{body: tt.body}
			r := NewResolver(prober, 8)
			p, ok := r.Resolve(context.Background(), tt.url)
			require.True(t, ok)
			assert.Equal(t, tt.want, p.Name())
			assert.Equal(t, tt.calls, prober.calls.Load())
		})
	}
}

func TestResolveNoMatch(t *testing.T) {
	prober := &countingProber{body: "<html>plain shop</html>"}
	r := NewResolver(prober, 8)

	_, ok := r.Resolve(context.Background(), "https://bags.example/shop/kelly")
	assert.False(t, ok)
	_, ok = r.Resolve(context.Background(), "https://bags.example/about")
	assert.False(t, ok)
	_, ok = r.Resolve(context.Background(), "://bad url")
	assert.False(t, ok)
}

func TestResolveProbeFailureIsNoMatch(t *testing.T) {
	prober := &countingProber{err: errors.New("connection refused")}
	r := NewResolver(prober, 8)

	_, ok := r.Resolve(context.Background(), "https://bags.example/product/kelly")
	assert.False(t, ok)
	_, ok = r.Resolve(context.Background(), "https://bags.example/product/kelly")
	assert.False(t, ok)
	assert.Equal(t, int32(2), prober.calls.Load(), "failed probes are retried on the next resolve")
}

func TestResolveIdempotent(t *testing.T) {
	prober := &countingProber{body: "woocommerce"}
	r := NewResolver(prober, 8)
	url := "https://bags.example/product/kelly"

	first, ok1 := r.Resolve(context.Background(), url)
	second, ok2 := r.Resolve(context.Background(), url)

	assert.Equal(t, ok1, ok2)
	assert.Equal(t, first.Name(), second.Name())
	assert.Equal(t, first.Selectors(FieldName), second.Selectors(FieldName))
	assert.Equal(t, int32(1), prober.calls.Load())
}

func TestProfileOverridesAndValidate(t *testing.T) {
	base := Default()
	over := base.WithOverrides(map[string]string{"name": "h2.title", "price": "  "})

	assert.Equal(t, []string{"h2.title"}, over.Selectors(FieldName))
	assert.Equal(t, base.Selectors(FieldPrice), over.Selectors(FieldPrice))
	assert.Equal(t, []string{".product_title"}, base.Selectors(FieldName), "base must stay unchanged")

	list := over.Selectors(FieldName)
	list[0] = "mutated"
	assert.Equal(t, []string{"h2.title"}, over.Selectors(FieldName))

	for _, key := range BuiltinKeys() {
		p, ok := Builtin(key)
		require.True(t, ok)
		assert.NoError(t, p.Validate(), key)
	}
	assert.NoError(t, Default().Validate())
	assert.Error(t, Default().WithOverrides(map[string]string{"sku": "span[["}).Validate())
}
