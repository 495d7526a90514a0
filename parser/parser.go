package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/aluiziolira/go-scrape-products/models"
)

var (
	priceDigits = regexp.MustCompile(`[\d.,]+`)
	queryID     = regexp.MustCompile(`id=(\d+)`)
)

// ValidationError reports a required product field that is empty after extraction.
type ValidationError struct {
	Field string
	URL   string
}

func (e *ValidationError) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("product missing %s", e.Field)
	}
	return fmt.Sprintf("product missing %s for %s", e.Field, e.URL)
}

// ValidateProduct ensures the extractor captured the required fields.
func ValidateProduct(p *models.Product) error {
	if p == nil {
		return fmt.Errorf("product is nil")
	}
	if strings.TrimSpace(p.Name) == "" {
		return &ValidationError{Field: "name", URL: p.URL}
	}
	if strings.TrimSpace(p.Price) == "" {
		return &ValidationError{Field: "price", URL: p.URL}
	}
	return nil
}

// NormalizePrice returns the first run of digits, dots and commas in the raw
// price text with the thousands separators removed. It returns "" when the text
// holds no digits.
func NormalizePrice(price string) string {
	match := priceDigits.FindString(price)
	match = strings.ReplaceAll(match, ",", "")
	if strings.Trim(match, ".") == "" {
		return ""
	}
	return match
}

// ParsePrice converts raw price text to a number using NormalizePrice.
func ParsePrice(price string) (float64, error) {
	normalized := NormalizePrice(price)
	if normalized == "" {
		return 0, fmt.Errorf("no numeric price in %q", price)
	}
	value, err := strconv.ParseFloat(normalized, 64)
	if err != nil {
		return 0, fmt.Errorf("parse price %q: %w", price, err)
	}
	return value, nil
}

// FormatDecimal renders v the way the import templates expect: shortest form,
// always with a fractional part ("229.5", "229.0").
func FormatDecimal(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// NumericID returns the value of the first id=<digits> parameter in rawURL.
func NumericID(rawURL string) (string, bool) {
	match := queryID.FindStringSubmatch(rawURL)
	if match == nil {
		return "", false
	}
	return match[1], true
}
