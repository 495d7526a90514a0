package links

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aluiziolira/go-scrape-products/extract"
)

func page(t *testing.T, rawURL, html string) *extract.Page {
	t.Helper()
	p, err := extract.NewPage(rawURL, []byte(html))
	require.NoError(t, err)
	return p
}

func TestDiscoverDeduplicatesAbsoluteAndRelative(t *testing.T) {
	html := `<html><body><ul class="products">
<li class="product"><a class="woocommerce-LoopProduct-link" href="https://shop.test/product/kelly">Kelly</a></li>
<li class="product"><a class="woocommerce-LoopProduct-link" href="/product/kelly">Kelly again</a></li>
</ul></body></html>`
	got := Discover(page(t, "https://shop.test/category/bags", html), []string{".products .product a.woocommerce-LoopProduct-link"})
	assert.Equal(t, []string{"https://shop.test/product/kelly"}, got)
}

func TestDiscoverFallbackOrder(t *testing.T) {
	tests := []struct {
		name      string
		html      string
		selectors []string
		want      []string
	}{
		{
			name:      "profile selector wins",
			html:      `<div class="grid"><a href="/p/1">1</a></div><div class="products"><a href="/product/x">x</a></div>`,
			selectors: []string{".grid a"},
			want:      []string{"https://shop.test/p/1"},
		},
		{
			name:      "generic grid filtered to product paths",
			html:      `<div class="products"><a href="/product/x">x</a><a href="/about">about</a></div><a href="/product/outside">o</a>`,
			selectors: []string{".grid a"},
			want:      []string{"https://shop.test/product/x"},
		},
		{
			name: "any anchor with product markers",
			html: `<a href="/item?product_id=3">3</a><a href="view.php?id=4">4</a><a href="/contact">c</a>
<a href="#top">top</a><a href="javascript:void(0)">js</a><a href="mailto:a@shop.test">m</a>`,
			want: []string{"https://shop.test/item?product_id=3", "https://shop.test/view.php?id=4"},
		},
		{
			name: "nothing found",
			html: `<a href="/contact">c</a>`,
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Discover(page(t, "https://shop.test/list", "<html><body>"+tt.html+"</body></html>"), tt.selectors)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDiscoverFallbackStrategies(t *testing.T) {
	const origin = "https://www.bkhorsebag.com"
	tests := []struct {
		name     string
		html     string
		probeMax int
		want     []string
	}{
		{
			name: "numeric id anchors",
			html: `<a href="index.php?id=12">a</a><a href="/index.php?id=12">dup</a><a href="/index.php?id=x">no</a>`,
			want: []string{origin + "/index.php?id=12"},
		},
		{
			name: "anchors wrapping images",
			html: `<a href="/goods/product-kelly.html"><span><img src="/k.jpg"></span></a><a href="/about.html"><img src="/a.jpg"></a>`,
			want: []string{origin + "/goods/product-kelly.html"},
		},
		{
			name: "raw href scan",
			html: `<script>var tpl = '<div href=/Product-99.html>';</script>`,
			want: []string{origin + "/Product-99.html"},
		},
		{
			name:     "synthesised probe urls",
			html:     `<p>empty</p>`,
			probeMax: 4,
			want:     []string{origin + "/index.php?id=1", origin + "/index.php?id=2", origin + "/index.php?id=3"},
		},
		{
			name: "no synthesis without probe range",
			html: `<p>empty</p>`,
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DiscoverFallback(page(t, origin+"/products.html", "<html><body>"+tt.html+"</body></html>"), tt.probeMax)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSynthesize(t *testing.T) {
	assert.Len(t, Synthesize("https://x.test", 30), 29)
	assert.Empty(t, Synthesize("https://x.test", 0))
}
