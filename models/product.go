// Package models defines data structures for the scraper.
package models

import "time"

// ScrapeTimeLayout is the layout used when a capture time is rendered as text.
const ScrapeTimeLayout = "2006-01-02 15:04:05"

// Product is the canonical record extracted from a product page.
type Product struct {
	Name        string    `csv:"name" json:"name"`
	Price       string    `csv:"price" json:"price"`
	Description string    `csv:"description" json:"description"`
	Image       string    `csv:"image" json:"image"`
	Images      []string  `csv:"-" json:"images"`
	Categories  string    `csv:"categories" json:"categories"`
	Tags        string    `csv:"tags" json:"tags"`
	SKU         string    `csv:"sku" json:"sku"`
	URL         string    `csv:"url" json:"url"`
	ScrapeTime  time.Time `csv:"scrape_time" json:"scrape_time"`
	LocalImages []string  `csv:"-" json:"local_images,omitempty"`
	Partial     bool      `csv:"-" json:"partial,omitempty"`
}

// PrimaryImages returns the image list, falling back to the single primary image.
func (p *Product) PrimaryImages() []string {
	if p == nil {
		return nil
	}
	if len(p.Images) > 0 {
		out := make([]string, len(p.Images))
		copy(out, p.Images)
		return out
	}
	if p.Image != "" {
		return []string{p.Image}
	}
	return nil
}

// StatusFunc receives human-readable progress messages.
type StatusFunc func(message string)

// ProgressFunc is fired before each per-link fetch of a page-level operation.
type ProgressFunc func(current, total int)

// Notify calls fn when it is set.
func (fn StatusFunc) Notify(message string) {
	if fn != nil {
		fn(message)
	}
}

// Report calls fn when it is set.
func (fn ProgressFunc) Report(current, total int) {
	if fn != nil {
		fn(current, total)
	}
}

// ScrapeResult holds the overall result of a multi-page scraping operation.
type ScrapeResult struct {
	RunID        string
	StartTime    time.Time
	EndTime      time.Time
	TotalCount   int
	PageCount    int
	ErrorCount   int
	FailedURLs   []string
	CountsByPage map[string]int
}
