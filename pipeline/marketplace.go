package pipeline

import (
	"strings"

	"github.com/aluiziolira/go-scrape-products/models"
	"github.com/aluiziolira/go-scrape-products/parser"
)

// MarketplaceColumns is the WooCommerce product import header in the order the
// Chinese admin locale exports it. 交叉销售 appears twice in that template.
var MarketplaceColumns = []string{
	"ID", "类型", "SKU", "GTIN, UPC, EAN, or ISBN", "名称", "已发布", "是推荐产品？",
	"在列表页可见", "简短描述", "描述", "促销开始日期", "促销截止日期", "税状态", "税类",
	"有货？", "库存", "库存不足", "允许缺货下单？", "单独出售？", "重量(公斤)", "长度(厘米)",
	"宽度 (厘米)", "高度 (厘米)", "允许客户评价？", "购物备注", "促销价格", "常规售价",
	"分类", "标签", "运费类", "图片", "下载限制", "下载的过期天数", "父级", "分组产品",
	"交叉销售", "交叉销售", "外部链接", "按钮文本", "位置", "品牌",
}

// nameSuffixes are stripped in order, each applied to the result of the previous one.
var nameSuffixes = []string{
	"- KELLY - 产品 - BKHORSE",
	"- KELLY",
	"- 产品 - BKHORSE",
	"- BKHORSE",
	" - KELLY - 产品 - BKHORSE",
}

// RegularPriceMarkup is added to the sale price to derive the regular price.
const RegularPriceMarkup = 100

const aboutUs = `ABOUT US | BKHORSE
一家專注Handmade手袋12年的店鋪.
我們是你購買包袋的不二之選！
A Shop Focused on handmade bag for 12 years.
BKHORSE is your best option to buy bags.
Top private ordering for you.`

const descriptionTemplate = `<h3>{{name}}</h3>
<h4>規格:</h4>
<p style="font-weight: 400;">{{spec}}</p>

<h4>介紹:</h4>
<p style="font-weight: 400;">Top craftsman made！</p>
<p style="font-weight: 400;">With the best quality！</p>
<p style="font-weight: 400;">With the highest grade service !</p>
<p style="font-weight: 400;">BKHORSE will be your dream store to buy handicraft bag!!!</p>
<p style="font-weight: 400;">-</p>
<p style="font-weight: 400;">20年工齡老工匠精心手工縫製！</p>
<p style="font-weight: 400;">頂尖的匠心品质舆服務！</p>
<p style="font-weight: 400;">您可以永远相信我们！</p>
<p style="font-weight: 400;">BKHORSE是您購買手縫包袋的最佳選擇！</p>`

// leatherKeywords are checked in order against the cleaned product name.
var leatherKeywords = []struct {
	keyword string
	leather string
}{
	{"Swift", "Swift"},
	{"Epsom", "Epsom"},
	{"Togo", "Togo"},
	{"Box", "Box"},
	{"Chevre", "Chevre"},
	{"Niloticus", "Shiny Niloticus"},
}

const defaultLeather = "Epsom"

// CleanName strips the boilerplate suffixes the source appends to titles.
func CleanName(name string) string {
	for _, suffix := range nameSuffixes {
		name = strings.TrimSuffix(name, suffix)
	}
	return strings.TrimSpace(name)
}

// Leather infers the leather type from a product name.
func Leather(name string) string {
	for _, k := range leatherKeywords {
		if strings.Contains(name, k.keyword) {
			return k.leather
		}
	}
	return defaultLeather
}

// MarketplaceRow maps p onto MarketplaceColumns.
func MarketplaceRow(p *models.Product) []string {
	row := make([]string, len(MarketplaceColumns))
	set := func(column, value string) {
		for i, c := range MarketplaceColumns {
			if c == column {
				row[i] = value
				return
			}
		}
	}

	set("类型", "simple")
	set("已发布", "1")
	set("是推荐产品？", "0")
	set("在列表页可见", "visible")
	set("有货？", "1")
	set("允许客户评价？", "1")

	name := CleanName(p.Name)
	set("名称", name)
	set("简短描述", aboutUs)
	set("描述", strings.NewReplacer(
		"{{name}}", name,
		"{{spec}}", strings.ReplaceAll(name, "Kelly", "凱莉包"),
	).Replace(descriptionTemplate))

	if sale := parser.NormalizePrice(p.Price); sale != "" {
		if v, err := parser.ParsePrice(sale); err == nil {
			set("促销价格", sale)
			set("常规售价", parser.FormatDecimal(v+RegularPriceMarkup))
		}
	}

	set("SKU", p.SKU)

	leather := Leather(name)
	size := "Kelly"
	if strings.Contains(name, "25") {
		size = "Kelly 25"
	}
	set("分类", "Bag, "+leather+", "+size)
	set("标签", leather)

	set("图片", strings.Join(marketplaceImages(p), ", "))
	return row
}

// marketplaceImages repeats the primary image in second position, which the
// import template expects.
func marketplaceImages(p *models.Product) []string {
	images := p.PrimaryImages()
	if len(images) == 0 {
		return nil
	}
	out := make([]string, 0, len(images)+1)
	out = append(out, images[0], images[0])
	return append(out, images[1:]...)
}

// MarketplaceWriter writes products in the marketplace import schema.
type MarketplaceWriter struct {
	*CSVWriter
}

// NewMarketplaceWriter initialises the writer and its header row.
func NewMarketplaceWriter(filename string) (*MarketplaceWriter, error) {
	cw, err := newCSVWriter(filename, MarketplaceColumns)
	if err != nil {
		return nil, err
	}
	return &MarketplaceWriter{CSVWriter: cw}, nil
}

// Write appends one import row per product.
func (mw *MarketplaceWriter) Write(products []*models.Product) error {
	rows := make([][]string, 0, len(products))
	for _, p := range products {
		rows = append(rows, MarketplaceRow(p))
	}
	return mw.writeRows(rows)
}
