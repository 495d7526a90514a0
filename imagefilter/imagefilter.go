// Package imagefilter classifies image references found on product pages as
// product content or decorative art (logos, icons, navigation images).
package imagefilter

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// SizeThreshold is the pixel size below which an explicitly sized image is decorative.
const SizeThreshold = 50

var (
	urlKeywords      = []string{"logo", "icon", "favicon", "header", "footer", "banner", "background", "btn", "button"}
	classKeywords    = []string{"logo", "icon", "header", "footer", "banner", "nav", "menu", "sidebar", "social"}
	idKeywords       = []string{"logo", "site-logo", "header-logo", "footer-logo", "brand-logo"}
	altKeywords      = []string{"logo", "icon"}
	ancestorKeywords = []string{"header", "footer", "logo", "nav", "menu"}
)

// Ancestor is the id/class pair of one enclosing element.
type Ancestor struct {
	ID    string
	Class string
}

// Verdict is the outcome of Evaluate.
type Verdict struct {
	Decorative bool
	Reason     string
}

// Candidate is one discovered image reference with the markup it came from.
type Candidate struct {
	URL       string
	Attr      string
	Class     string
	ID        string
	Alt       string
	Width     string
	Height    string
	Ancestors []Ancestor
	Verdict   Verdict
}

// FromSelection builds a candidate for the image element sel, using absURL as
// the already absolutised value of attribute attr.
func FromSelection(sel *goquery.Selection, attr, absURL string) Candidate {
	c := Candidate{
		URL:    absURL,
		Attr:   attr,
		Class:  sel.AttrOr("class", ""),
		ID:     sel.AttrOr("id", ""),
		Alt:    sel.AttrOr("alt", ""),
		Width:  sel.AttrOr("width", ""),
		Height: sel.AttrOr("height", ""),
	}
	sel.Parents().Each(func(_ int, parent *goquery.Selection) {
		id := parent.AttrOr("id", "")
		class := parent.AttrOr("class", "")
		if id == "" && class == "" {
			return
		}
		c.Ancestors = append(c.Ancestors, Ancestor{ID: id, Class: class})
	})
	return c
}

// Evaluate returns c with its verdict filled in.
func Evaluate(c Candidate) Candidate {
	c.Verdict = classify(c)
	return c
}

// IsDecorative reports whether any heuristic classifies c as decorative.
func IsDecorative(c Candidate) bool {
	return classify(c).Decorative
}

func classify(c Candidate) Verdict {
	if kw, ok := containsAny(c.URL, urlKeywords); ok {
		return Verdict{Decorative: true, Reason: "url contains " + kw}
	}
	if kw, ok := containsAny(c.Class, classKeywords); ok {
		return Verdict{Decorative: true, Reason: "class contains " + kw}
	}
	if kw, ok := containsAny(c.ID, idKeywords); ok {
		return Verdict{Decorative: true, Reason: "id contains " + kw}
	}
	if kw, ok := containsAny(c.Alt, altKeywords); ok {
		return Verdict{Decorative: true, Reason: "alt contains " + kw}
	}
	if px, ok := pixels(c.Width); ok && px < SizeThreshold {
		return Verdict{Decorative: true, Reason: "width " + strconv.Itoa(px) + "px"}
	}
	if px, ok := pixels(c.Height); ok && px < SizeThreshold {
		return Verdict{Decorative: true, Reason: "height " + strconv.Itoa(px) + "px"}
	}
	for _, a := range c.Ancestors {
		if kw, ok := containsAny(a.ID, ancestorKeywords); ok {
			return Verdict{Decorative: true, Reason: "ancestor id contains " + kw}
		}
		if kw, ok := containsAny(a.Class, ancestorKeywords); ok {
			return Verdict{Decorative: true, Reason: "ancestor class contains " + kw}
		}
	}
	return Verdict{}
}

func containsAny(value string, keywords []string) (string, bool) {
	if value == "" {
		return "", false
	}
	value = strings.ToLower(value)
	for _, kw := range keywords {
		if strings.Contains(value, kw) {
			return kw, true
		}
	}
	return "", false
}

// pixels parses "48" or "48px"; anything else is not a usable dimension.
func pixels(value string) (int, bool) {
	value = strings.TrimSuffix(strings.TrimSpace(strings.ToLower(value)), "px")
	if value == "" {
		return 0, false
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, false
	}
	return n, true
}
