package extract

import (
	"fmt"
	"time"

	"github.com/aluiziolira/go-scrape-products/models"
	"github.com/aluiziolira/go-scrape-products/profile"
)

// Strategy extracts product records from a page using a selector profile.
type Strategy interface {
	Name() string
	// Extract builds a record from page. Fields nothing matched stay empty.
	Extract(page *Page, prof profile.Profile) *models.Product
	// Accept validates p, possibly patching it. partial reports whether
	// placeholder values were filled in.
	Accept(p *models.Product) (partial bool, err error)
	// IsListing reports whether rawURL should be treated as a listing page.
	IsListing(rawURL string) bool
}

// For returns the strategy paired with kind.
func For(kind profile.StrategyKind) Strategy {
	if kind == profile.StrategyFallback {
		return Fallback{}
	}
	return Standard{}
}

// Run extracts with s and turns a panic inside the extraction into a ParseError,
// so one broken page never takes down a page-level operation.
func Run(s Strategy, page *Page, prof profile.Profile) (p *models.Product, err error) {
	defer func() {
		if r := recover(); r != nil {
			p = nil
			err = &ParseError{URL: page.URL, Err: fmt.Errorf("%s extraction: %v", s.Name(), r)}
		}
	}()
	p = s.Extract(page, prof)
	return p, nil
}

func stamp(p *models.Product, page *Page) *models.Product {
	p.URL = page.URL
	p.ScrapeTime = time.Now()
	if p.Images == nil {
		p.Images = []string{}
	}
	if len(p.Images) > 0 {
		p.Image = p.Images[0]
	}
	return p
}

func profileRule(prof profile.Profile, field profile.Field, build func(...string) Rule) Rule {
	sels := prof.Selectors(field)
	if len(sels) == 0 {
		return nil
	}
	return build(sels...)
}
