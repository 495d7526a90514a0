package extract

import (
	"github.com/aluiziolira/go-scrape-products/models"
	"github.com/aluiziolira/go-scrape-products/parser"
	"github.com/aluiziolira/go-scrape-products/profile"
)

var (
	genericNameSelectors  = []string{"h1", ".product-title", ".product_name", ".product-name", "#product_title", "title"}
	genericPriceSelectors = []string{".price", ".product-price", ".price .amount", ".product_price", "#price", ".ht_price"}
)

// Standard is the selector-driven strategy used for sites with conventional
// product markup.
type Standard struct{}

func (Standard) Name() string { return "standard" }

func (Standard) Extract(page *Page, prof profile.Profile) *models.Product {
	p := &models.Product{
		Name:        Eval(First(profileRule(prof, profile.FieldName, Text), Text(genericNameSelectors...)), page),
		Price:       Eval(First(profileRule(prof, profile.FieldPrice, Text), Text(genericPriceSelectors...)), page),
		Description: Eval(First(profileRule(prof, profile.FieldDescription, OuterHTML)), page),
		Categories:  Eval(First(profileRule(prof, profile.FieldCategories, JoinedText)), page),
		Tags:        Eval(First(profileRule(prof, profile.FieldTags, JoinedText)), page),
		SKU:         Eval(First(profileRule(prof, profile.FieldSKU, Text)), page),
	}

	images := newImageSet(page)
	images.addSelectors(prof.Selectors(profile.FieldImage))
	if images.empty() {
		images.addSelectors(genericImageSelectors)
	}
	if images.empty() {
		images.addElements(page.Doc.Find("img"), iconImage)
	}
	p.Images = dropThumbnails(images.urls)

	return stamp(p, page)
}

func (Standard) Accept(p *models.Product) (bool, error) {
	return false, parser.ValidateProduct(p)
}

func (Standard) IsListing(string) bool { return true }
