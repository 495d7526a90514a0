package pipeline

import (
	"fmt"
	"html/template"
	"log/slog"
	"path/filepath"
	texttemplate "text/template"

	"github.com/aluiziolira/go-scrape-products/models"
)

const (
	// InstructionsFile explains how to import the batch files.
	InstructionsFile = "导入说明.txt"
	// PreviewFile lists every exported record with its images.
	PreviewFile = "采集结果预览.html"
)

// BatchFileName returns the name of the n-th (1-based) batch file.
func BatchFileName(n int) string {
	return fmt.Sprintf("products_batch_%d.csv", n)
}

// Chunk splits products into consecutive slices of at most size elements.
func Chunk(products []*models.Product, size int) [][]*models.Product {
	if size <= 0 {
		size = 1
	}
	chunks := make([][]*models.Product, 0, (len(products)+size-1)/size)
	for start := 0; start < len(products); start += size {
		end := min(start+size, len(products))
		chunks = append(chunks, products[start:end])
	}
	return chunks
}

// ExportBatches writes the store as marketplace import files of at most
// perFile products each, plus the import instructions and an HTML preview. It
// returns the paths of the batch files. Failures of the instructions or
// preview files are logged and do not fail the export.
func (e *Exporter) ExportBatches(dir string, perFile int) ([]string, error) {
	products := e.store.All()
	if len(products) == 0 {
		return nil, ErrNoProducts
	}
	if perFile <= 0 {
		return nil, e.fail("batch", dir, fmt.Errorf("products per file must be positive, got %d", perFile))
	}

	chunks := Chunk(products, perFile)
	paths := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		path := filepath.Join(dir, BatchFileName(i+1))
		w, err := NewMarketplaceWriter(path)
		if err != nil {
			return paths, e.fail("batch", path, err)
		}
		if err := writeAll(w, chunk); err != nil {
			return paths, e.fail("batch", path, err)
		}
		paths = append(paths, path)
	}

	if err := writeInstructions(filepath.Join(dir, InstructionsFile), len(chunks), perFile); err != nil {
		e.log.Append(fmt.Sprintf("write import instructions failed: %v", err))
	}
	if err := writePreview(filepath.Join(dir, PreviewFile), products); err != nil {
		e.log.Append(fmt.Sprintf("write preview failed: %v", err))
	}

	slog.Info("batch export complete",
		slog.String("dir", dir),
		slog.Int("files", len(paths)),
		slog.Int("products", len(products)),
	)
	return paths, nil
}

var instructionsTemplate = texttemplate.Must(texttemplate.New("instructions").Parse(`WordPress导入说明
================

由于WordPress通常有上传文件大小限制，数据已被拆分为多个小文件便于导入。

导入步骤：
1. 进入WordPress后台 > 产品 > 导入
2. 逐个上传这些CSV文件
3. 上传顺序不重要，每个文件包含不同的商品

共拆分为{{.Files}}个文件，每个文件包含不超过{{.PerFile}}个商品

图片导入说明：
- CSV中包含的是图片的URL链接，WordPress将直接从这些URL下载图片
- 确保WordPress服务器可以访问这些图片URL
- 数据格式已完全按照WordPress WooCommerce标准格式生成

注意事项：
- 如需增大导入文件大小限制，请修改服务器的php.ini配置
- 需要修改的配置项: upload_max_filesize, post_max_size
`))

var previewTemplate = template.Must(template.New("preview").Parse(`<!DOCTYPE html>
<html lang="zh-CN">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>采集商品预览</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 0; padding: 20px; }
        .product { border: 1px solid #ddd; margin: 20px 0; padding: 15px; border-radius: 5px; }
        .product h2 { margin-top: 0; color: #333; }
        .product-info { margin-bottom: 15px; }
        .product-price { font-weight: bold; color: #e63946; }
        .product-gallery { display: flex; flex-wrap: wrap; gap: 10px; }
        .product-gallery img { max-width: 150px; max-height: 150px; object-fit: cover; border: 1px solid #eee; }
    </style>
</head>
<body>
    <h1>采集商品预览</h1>
    <p>共采集到 {{len .}} 个商品</p>
{{- range .}}
    <div class="product">
        <h2>{{.Name}}</h2>
        <div class="product-info">
            <p><strong>价格:</strong> <span class="product-price">{{.Price}}</span></p>
            <p><strong>SKU:</strong> {{.SKU}}</p>
            <p><strong>分类:</strong> {{.Categories}}</p>
        </div>
        <div class="product-gallery">
{{- with .PrimaryImages}}
{{- range .}}
            <img src="{{.}}" alt="商品图片">
{{- end}}
{{- else}}
            <p>无图片</p>
{{- end}}
        </div>
    </div>
{{- end}}
</body>
</html>
`))

func writeInstructions(path string, files, perFile int) error {
	f, err := createAtomic(path)
	if err != nil {
		return err
	}
	data := struct{ Files, PerFile int }{files, perFile}
	if err := instructionsTemplate.Execute(f.tmp, data); err != nil {
		f.abort()
		return fmt.Errorf("render instructions: %w", err)
	}
	return f.commit()
}

func writePreview(path string, products []*models.Product) error {
	f, err := createAtomic(path)
	if err != nil {
		return err
	}
	if err := previewTemplate.Execute(f.tmp, products); err != nil {
		f.abort()
		return fmt.Errorf("render preview: %w", err)
	}
	return f.commit()
}
