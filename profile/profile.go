// Package profile holds the selector profiles for known commerce platforms and
// resolves which one applies to a URL.
package profile

import (
	"fmt"
	"strings"

	"github.com/andybalholm/cascadia"
)

// Field is a logical product field a profile provides selectors for.
type Field string

const (
	FieldName         Field = "name"
	FieldPrice        Field = "price"
	FieldDescription  Field = "description"
	FieldImage        Field = "image"
	FieldCategories   Field = "categories"
	FieldTags         Field = "tags"
	FieldSKU          Field = "sku"
	FieldProductLinks Field = "product_links"
)

// Fields lists every field in a stable order.
var Fields = []Field{FieldName, FieldPrice, FieldDescription, FieldImage, FieldCategories, FieldTags, FieldSKU, FieldProductLinks}

// StrategyKind names the extraction strategy a profile is paired with.
type StrategyKind string

const (
	StrategyStandard StrategyKind = "standard"
	StrategyFallback StrategyKind = "fallback"
)

// Profile is an immutable named set of ordered selectors per field.
type Profile struct {
	name      string
	strategy  StrategyKind
	selectors map[Field][]string
}

// New builds a profile, copying the selector lists.
func New(name string, strategy StrategyKind, selectors map[Field][]string) Profile {
	if strategy == "" {
		strategy = StrategyStandard
	}
	copied := make(map[Field][]string, len(selectors))
	for field, list := range selectors {
		copied[field] = append([]string(nil), list...)
	}
	return Profile{name: name, strategy: strategy, selectors: copied}
}

// Name returns the profile name.
func (p Profile) Name() string { return p.name }

// Strategy returns the extraction strategy kind paired with the profile.
func (p Profile) Strategy() StrategyKind { return p.strategy }

// Selectors returns a copy of the ordered selector list for field.
func (p Profile) Selectors(field Field) []string {
	return append([]string(nil), p.selectors[field]...)
}

// WithOverrides returns a copy of p where every non-empty override replaces the
// selector list of its field. Keys match Field values.
func (p Profile) WithOverrides(overrides map[string]string) Profile {
	if len(overrides) == 0 {
		return p
	}
	out := New(p.name, p.strategy, p.selectors)
	for key, value := range overrides {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		out.selectors[Field(key)] = []string{value}
	}
	return out
}

// Validate checks that every selector compiles.
func (p Profile) Validate() error {
	for _, field := range Fields {
		for _, sel := range p.selectors[field] {
			if _, err := cascadia.Compile(sel); err != nil {
				return fmt.Errorf("profile %s: invalid %s selector %q: %w", p.name, field, sel, err)
			}
		}
	}
	return nil
}

// Default is the generic WooCommerce-flavoured profile used when nothing matches.
func Default() Profile {
	return New("default", StrategyStandard, map[Field][]string{
		FieldName:         {".product_title"},
		FieldPrice:        {".price .amount"},
		FieldDescription:  {".woocommerce-product-details__short-description"},
		FieldImage:        {".woocommerce-product-gallery__image img"},
		FieldCategories:   {".posted_in a"},
		FieldTags:         {".tagged_as a"},
		FieldSKU:          {".sku"},
		FieldProductLinks: {".products .product a.woocommerce-LoopProduct-link"},
	})
}

type entry struct {
	key     string
	profile Profile
}

// builtins is ordered; the first domain fragment contained in a host wins.
var builtins = []entry{
	{key: "bkhorsebag.com", profile: New("bkhorsebag.com", StrategyFallback, map[Field][]string{
		FieldName:         {"h1", ".product-title", "title"},
		FieldPrice:        {".price", ".product-price", `[itemprop="price"]`},
		FieldDescription:  {".product-description", ".product-info", ".description"},
		FieldImage:        {".product-image img", "img.main-image", ".gallery img"},
		FieldCategories:   {".breadcrumb a", ".categories a", ".product-categories a"},
		FieldTags:         {".tags a", ".product-tags a"},
		FieldSKU:          {".sku", ".product-sku", `[itemprop="sku"]`},
		FieldProductLinks: {`a[href*="product"]`, `a[href*="item"]`, ".product-list a"},
	})},
	{key: "shopify", profile: New("shopify", StrategyStandard, map[Field][]string{
		FieldName:         {".product-title", ".product__title", "h1.title", "h1"},
		FieldPrice:        {".product-price", ".price", ".product__price"},
		FieldDescription:  {".product-description", ".description", ".product__description"},
		FieldImage:        {".product-image img", ".product__image img", ".featured-image"},
		FieldCategories:   {".product-categories a", ".breadcrumb a"},
		FieldTags:         {".product-tags a", ".tags a"},
		FieldSKU:          {".sku", ".product-sku", "[data-product-sku]"},
		FieldProductLinks: {".product-item a", ".product-card a", ".grid-product__link"},
	})},
	{key: "woocommerce", profile: New("woocommerce", StrategyStandard, map[Field][]string{
		FieldName:         {".product_title", "h1.entry-title"},
		FieldPrice:        {".price", ".woocommerce-Price-amount"},
		FieldDescription:  {".woocommerce-product-details__short-description", ".summary p"},
		FieldImage:        {".woocommerce-product-gallery__image img", ".wp-post-image"},
		FieldCategories:   {".posted_in a"},
		FieldTags:         {".tagged_as a"},
		FieldSKU:          {".sku"},
		FieldProductLinks: {".products .product a.woocommerce-LoopProduct-link", ".products .product a:first-child"},
	})},
	{key: "magento", profile: New("magento", StrategyStandard, map[Field][]string{
		FieldName:         {".page-title", "h1"},
		FieldPrice:        {".price", ".product-info-price .price"},
		FieldDescription:  {".product-info-main .description", ".product.attribute.description"},
		FieldImage:        {".gallery-placeholder img", ".fotorama__img"},
		FieldCategories:   {".breadcrumbs a"},
		FieldTags:         {".product-tags a"},
		FieldSKU:          {".sku .value", `[itemprop="sku"]`},
		FieldProductLinks: {".product-item a.product-item-link", ".product-items a.product-item-photo"},
	})},
	{key: "prestashop", profile: New("prestashop", StrategyStandard, map[Field][]string{
		FieldName:         {".product-name", ".h1", `h1[itemprop="name"]`},
		FieldPrice:        {".product-price", `[itemprop="price"]`},
		FieldDescription:  {".product-description", `[itemprop="description"]`},
		FieldImage:        {".product-cover img", "#product-images-large img"},
		FieldCategories:   {".breadcrumb a"},
		FieldTags:         {".product-tags a"},
		FieldSKU:          {".product-reference span", `[itemprop="sku"]`},
		FieldProductLinks: {".product-miniature a.thumbnail", ".js-product-miniature a.product-thumbnail"},
	})},
}

// Builtin returns the built-in profile registered under key.
func Builtin(key string) (Profile, bool) {
	for _, e := range builtins {
		if e.key == key {
			return e.profile, true
		}
	}
	return Profile{}, false
}

// BuiltinKeys lists the built-in profile keys in lookup order.
func BuiltinKeys() []string {
	keys := make([]string, 0, len(builtins))
	for _, e := range builtins {
		keys = append(keys, e.key)
	}
	return keys
}
