package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/aluiziolira/go-scrape-products/models"
	"github.com/aluiziolira/go-scrape-products/parser"
	"github.com/aluiziolira/go-scrape-products/profile"
)

const (
	// PlaceholderName is the name given to records from sources without any
	// usable title markup.
	PlaceholderName = "BK Horse Product"
	// PlaceholderPrice marks a price that could not be found anywhere on the page.
	PlaceholderPrice = "价格待定"
)

var (
	currencyAmount = regexp.MustCompile(`[\$¥€£]([\d,\.]+)`)

	fallbackPriceSelectors       = []string{".price", `[class*="price"]`, `[itemprop="price"]`}
	fallbackDescriptionSelectors = []string{".description", ".product-description", ".content", ".details"}
	fallbackCategorySelectors    = []string{".breadcrumb a", ".navigation a"}
	fallbackSKUSelectors         = []string{".sku", `[itemprop="sku"]`, ".product-code"}
	fallbackImageSelectors       = []string{
		`img[src*="product"]`,
		".gallery img",
		".product img",
		"img.main-image",
		".product-image img",
		".woocommerce-product-gallery img",
		".product-gallery img",
		".images img",
		".woocommerce-product-gallery__image img",
		".wp-post-image",
		".attachment-shop_single",
		".slideshow img",
		".carousel img",
	}
)

// Fallback handles sources whose markup is too irregular for selector
// matching. It scans the whole document and fills placeholders so a record is
// always produced.
type Fallback struct{}

func (Fallback) Name() string { return "fallback" }

func (Fallback) Extract(page *Page, prof profile.Profile) *models.Product {
	id, hasID := parser.NumericID(page.URL)

	nameFromID := func(*Page) (string, bool) {
		if !hasID {
			return "", false
		}
		return PlaceholderName + " " + id, true
	}
	skuFromID := func(*Page) (string, bool) {
		if !hasID {
			return "", false
		}
		return "BK-" + id, true
	}

	p := &models.Product{
		Name: Eval(First(
			Text("title"),
			Text("h1"),
			nameFromID,
			Const(PlaceholderName),
		), page),
		Price: Eval(First(
			profileRule(prof, profile.FieldPrice, Text),
			Text(fallbackPriceSelectors...),
			currencyInDocument,
			Const(PlaceholderPrice),
		), page),
		Description: Eval(First(
			OuterHTML(fallbackDescriptionSelectors...),
			leadParagraphs,
		), page),
		Categories: Eval(JoinedText(fallbackCategorySelectors...), page),
		SKU: Eval(First(
			profileRule(prof, profile.FieldSKU, Text),
			Text(fallbackSKUSelectors...),
			skuFromID,
		), page),
	}

	images := newImageSet(page)
	images.addSelectors(prof.Selectors(profile.FieldImage))
	images.addSelectors(fallbackImageSelectors)
	if images.empty() {
		images.addElements(page.Doc.Find("img"), nil)
	}
	for _, bg := range backgroundImages(page.Body) {
		images.addURL(bg)
	}
	p.Images = images.urls

	return stamp(p, page)
}

// Accept never rejects: missing name or price are replaced by placeholders.
// A record carrying either placeholder is reported as partial.
func (Fallback) Accept(p *models.Product) (bool, error) {
	if strings.TrimSpace(p.Name) == "" {
		p.Name = PlaceholderName
	}
	if strings.TrimSpace(p.Price) == "" {
		p.Price = PlaceholderPrice
	}
	p.Partial = p.Name == PlaceholderName || p.Price == PlaceholderPrice
	return p.Partial, nil
}

// IsListing matches the category and catalogue URL shapes of the source.
func (Fallback) IsListing(rawURL string) bool {
	return strings.Contains(rawURL, "/index.php?catid=") || strings.Contains(rawURL, "/products.html")
}

func currencyInDocument(page *Page) (string, bool) {
	m := currencyAmount.FindStringSubmatch(page.HTML())
	if m == nil {
		return "", false
	}
	return "$" + m[1], true
}

func leadParagraphs(page *Page) (string, bool) {
	paras := page.Doc.Find("p")
	if paras.Length() == 0 {
		return "", false
	}
	var texts []string
	paras.Slice(0, min(3, paras.Length())).Each(func(_ int, s *goquery.Selection) {
		texts = append(texts, strings.TrimSpace(s.Text()))
	})
	return strings.Join(texts, " "), true
}
