// Package extract turns fetched product pages into models.Product records using
// ordered chains of selector rules.
package extract

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ParseError reports content that could not be turned into a record.
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.URL, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Page is a fetched document ready for extraction.
type Page struct {
	URL    string
	Scheme string
	Origin string
	Body   string
	Doc    *goquery.Document
}

// NewPage parses body as HTML fetched from rawURL.
func NewPage(rawURL string, body []byte) (*Page, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, &ParseError{URL: rawURL, Err: err}
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, &ParseError{URL: rawURL, Err: err}
	}
	scheme := u.Scheme
	if scheme == "" {
		scheme = "https"
	}
	return &Page{
		URL:    rawURL,
		Scheme: scheme,
		Origin: scheme + "://" + u.Host,
		Body:   string(body),
		Doc:    doc,
	}, nil
}

// HTML renders the parsed document, or the raw body if rendering fails.
func (p *Page) HTML() string {
	out, err := p.Doc.Html()
	if err != nil {
		return p.Body
	}
	return out
}

// Absolute resolves ref against the page origin the way product links and
// image sources are written on commerce sites.
func (p *Page) Absolute(ref string) string {
	return Absolute(p.Scheme, p.Origin, ref)
}

// Absolute resolves ref against origin. Absolute http(s) URLs are kept,
// scheme-relative ones get scheme, root-relative ones are appended to origin and
// anything else is treated as relative to the site root.
func Absolute(scheme, origin, ref string) string {
	ref = strings.TrimSpace(ref)
	switch {
	case ref == "":
		return ""
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		return ref
	case strings.HasPrefix(ref, "//"):
		return scheme + ":" + ref
	case strings.HasPrefix(ref, "/"):
		return origin + ref
	default:
		return origin + "/" + ref
	}
}
