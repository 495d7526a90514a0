package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Rule produces one candidate value for a field, or false when it has nothing.
type Rule func(page *Page) (string, bool)

// First evaluates rules in order and returns the first value produced.
func First(rules ...Rule) Rule {
	return func(page *Page) (string, bool) {
		for _, rule := range rules {
			if rule == nil {
				continue
			}
			if v, ok := rule(page); ok {
				return v, true
			}
		}
		return "", false
	}
}

// Eval runs rule and returns "" when it produced nothing.
func Eval(rule Rule, page *Page) string {
	v, _ := rule(page)
	return v
}

// Text yields the trimmed text of the first element of the first selector whose
// first match has non-empty text.
func Text(selectors ...string) Rule {
	return func(page *Page) (string, bool) {
		for _, sel := range selectors {
			if text := strings.TrimSpace(page.Doc.Find(sel).First().Text()); text != "" {
				return text, true
			}
		}
		return "", false
	}
}

// OuterHTML yields the serialized markup of the first matching element with
// non-empty text.
func OuterHTML(selectors ...string) Rule {
	return func(page *Page) (string, bool) {
		for _, sel := range selectors {
			node := page.Doc.Find(sel).First()
			if node.Length() == 0 || strings.TrimSpace(node.Text()) == "" {
				continue
			}
			html, err := goquery.OuterHtml(node)
			if err != nil {
				continue
			}
			return html, true
		}
		return "", false
	}
}

// JoinedText yields the comma-joined trimmed texts of every element matched by
// the selector group, in document order.
func JoinedText(selectors ...string) Rule {
	return func(page *Page) (string, bool) {
		if len(selectors) == 0 {
			return "", false
		}
		var parts []string
		page.Doc.Find(strings.Join(selectors, ", ")).Each(func(_ int, s *goquery.Selection) {
			if text := strings.TrimSpace(s.Text()); text != "" {
				parts = append(parts, text)
			}
		})
		if len(parts) == 0 {
			return "", false
		}
		return strings.Join(parts, ","), true
	}
}

// Const always yields v.
func Const(v string) Rule {
	return func(*Page) (string, bool) { return v, true }
}
