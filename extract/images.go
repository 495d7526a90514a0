package extract

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/aluiziolira/go-scrape-products/imagefilter"
)

var (
	imageAttrs = []string{"src", "data-src", "data-large-file", "data-full-src"}

	genericImageSelectors = []string{
		".product-image img",
		".main-image img",
		"#product-image",
		".woocommerce-product-gallery__image img",
		".product-gallery img",
		".images img",
		".gallery img",
		".wp-post-image",
		".attachment-shop_single",
	}

	thumbnailHints = []string{"thumb", "50x", "100x", "icon", "mini"}

	backgroundImage = regexp.MustCompile(`background-image:\s*url\(['"]?([^'")]+)['"]?\)`)
)

// imageSet accumulates accepted image URLs in discovery order.
type imageSet struct {
	page     *Page
	seen     map[string]struct{}
	urls     []string
	rejected int
}

func newImageSet(page *Page) *imageSet {
	return &imageSet{page: page, seen: make(map[string]struct{})}
}

// addElements considers every image attribute of every element in sel.
func (s *imageSet) addElements(sel *goquery.Selection, skip func(*goquery.Selection) bool) {
	sel.Each(func(_ int, img *goquery.Selection) {
		if skip != nil && skip(img) {
			return
		}
		for _, attr := range imageAttrs {
			raw, ok := img.Attr(attr)
			if !ok {
				continue
			}
			raw = strings.TrimSpace(raw)
			if raw == "" || strings.HasPrefix(raw, "data:") {
				continue
			}
			abs := s.page.Absolute(raw)
			if _, dup := s.seen[abs]; dup {
				continue
			}
			c := imagefilter.Evaluate(imagefilter.FromSelection(img, attr, abs))
			if c.Verdict.Decorative {
				s.rejected++
				slog.Debug("image rejected",
					slog.String("url", abs),
					slog.String("reason", c.Verdict.Reason),
				)
				continue
			}
			s.seen[abs] = struct{}{}
			s.urls = append(s.urls, abs)
		}
	})
}

func (s *imageSet) addSelectors(selectors []string) {
	for _, sel := range selectors {
		s.addElements(s.page.Doc.Find(sel), nil)
	}
}

// addURL adds a bare URL that has no markup attached, judged by the URL alone.
func (s *imageSet) addURL(raw string) {
	abs := s.page.Absolute(raw)
	if abs == "" {
		return
	}
	if _, dup := s.seen[abs]; dup {
		return
	}
	if imagefilter.IsDecorative(imagefilter.Candidate{URL: abs}) {
		s.rejected++
		return
	}
	s.seen[abs] = struct{}{}
	s.urls = append(s.urls, abs)
}

func (s *imageSet) empty() bool { return len(s.urls) == 0 }

// iconImage skips images served in icon formats and images classed as an
// icon, logo or avatar.
func iconImage(img *goquery.Selection) bool {
	src := strings.ToLower(img.AttrOr("src", ""))
	if strings.HasSuffix(src, ".ico") || strings.HasSuffix(src, ".svg") {
		return true
	}
	return img.HasClass("icon") || img.HasClass("logo") || img.HasClass("avatar")
}

// dropThumbnails removes URLs that look like thumbnails unless that would
// remove every image.
func dropThumbnails(urls []string) []string {
	kept := make([]string, 0, len(urls))
	for _, u := range urls {
		lower := strings.ToLower(u)
		thumb := false
		for _, hint := range thumbnailHints {
			if strings.Contains(lower, hint) {
				thumb = true
				break
			}
		}
		if !thumb {
			kept = append(kept, u)
		}
	}
	if len(kept) == 0 {
		return urls
	}
	return kept
}

// backgroundImages returns url(...) targets of inline background-image rules.
func backgroundImages(html string) []string {
	var out []string
	for _, m := range backgroundImage.FindAllStringSubmatch(html, -1) {
		out = append(out, strings.TrimSpace(m[1]))
	}
	return out
}
