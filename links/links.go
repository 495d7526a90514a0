// Package links discovers product detail URLs on listing pages.
package links

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/aluiziolira/go-scrape-products/extract"
)

var (
	genericGridSelectors = []string{
		".products .product a",
		".product-list a",
		".product-grid a",
		".product a",
		".products a",
		"a.product-title",
		".item a",
		".product-item a",
	}

	numericIDHref = regexp.MustCompile(`id=\d+`)
	rawHref       = regexp.MustCompile(`href=['"]?([^'" >]+)`)
)

// set collects absolute URLs without duplicates.
type set struct {
	page *extract.Page
	urls map[string]struct{}
}

func newSet(page *extract.Page) *set {
	return &set{page: page, urls: make(map[string]struct{})}
}

func (s *set) add(href string) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return
	}
	lower := strings.ToLower(href)
	if strings.HasPrefix(lower, "javascript:") || strings.HasPrefix(lower, "mailto:") {
		return
	}
	s.urls[s.page.Absolute(href)] = struct{}{}
}

func (s *set) addMatching(sel *goquery.Selection, keep func(href string) bool) {
	sel.Each(func(_ int, a *goquery.Selection) {
		href, ok := a.Attr("href")
		if !ok {
			return
		}
		if keep == nil || keep(href) {
			s.add(href)
		}
	})
}

func (s *set) empty() bool { return len(s.urls) == 0 }

func (s *set) sorted() []string {
	out := make([]string, 0, len(s.urls))
	for u := range s.urls {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}

// Discover returns the product links on a conventional listing page. The
// profile selectors are tried first, then common grid selectors restricted to
// /product/ links, then every anchor that looks like a product link.
func Discover(page *extract.Page, selectors []string) []string {
	found := newSet(page)
	for _, sel := range selectors {
		found.addMatching(page.Doc.Find(sel), nil)
	}
	if found.empty() {
		for _, sel := range genericGridSelectors {
			found.addMatching(page.Doc.Find(sel), func(href string) bool {
				return strings.Contains(href, "/product/")
			})
		}
	}
	if found.empty() {
		found.addMatching(page.Doc.Find("a"), func(href string) bool {
			return strings.Contains(href, "/product/") ||
				strings.Contains(href, "product_id") ||
				strings.Contains(href, "id=")
		})
	}
	return found.sorted()
}

// DiscoverFallback finds product links on pages without conventional listing
// markup. When nothing is found and probeMax is positive it synthesises
// <origin>/index.php?id=N for N in [1, probeMax).
func DiscoverFallback(page *extract.Page, probeMax int) []string {
	productish := func(href string) bool {
		return strings.Contains(href, "id=") || strings.Contains(strings.ToLower(href), "product")
	}

	found := newSet(page)
	found.addMatching(page.Doc.Find("a[href]"), numericIDHref.MatchString)
	if found.empty() {
		page.Doc.Find("img").Each(func(_ int, img *goquery.Selection) {
			found.addMatching(img.Closest("a[href]"), productish)
		})
	}
	if found.empty() {
		for _, m := range rawHref.FindAllStringSubmatch(page.Body, -1) {
			if productish(m[1]) {
				found.add(m[1])
			}
		}
	}
	if found.empty() && probeMax > 0 {
		return Synthesize(page.Origin, probeMax)
	}
	return found.sorted()
}

// Synthesize builds probe URLs for ids 1 through probeMax-1.
func Synthesize(origin string, probeMax int) []string {
	out := make([]string, 0, max(probeMax-1, 0))
	for id := 1; id < probeMax; id++ {
		out = append(out, fmt.Sprintf("%s/index.php?id=%d", origin, id))
	}
	return out
}
