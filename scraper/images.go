package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/aluiziolira/go-scrape-products/models"
	"github.com/aluiziolira/go-scrape-products/pipeline"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

const (
	defaultImageExt       = ".jpg"
	downloadedImagesCache = 4096
	imagesPerSecond       = 4
)

var unsafeFileChars = regexp.MustCompile(`[^\p{L}\p{N}_\-]`)

// imageDownloader saves product images to disk. A URL already saved is not
// downloaded again; its earlier path is reused.
type imageDownloader struct {
	limiter *rate.Limiter
	saved   *lru.Cache[string, string]
	log     *pipeline.ErrorLog
	metrics *Metrics

	// serialises writes so two products sharing a name do not race on a file
	mu sync.Mutex
}

func newImageDownloader(log *pipeline.ErrorLog, metrics *Metrics) *imageDownloader {
	saved, err := lru.New[string, string](downloadedImagesCache)
	if err != nil {
		panic(err)
	}
	return &imageDownloader{
		limiter: rate.NewLimiter(rate.Limit(imagesPerSecond), 1),
		saved:   saved,
		log:     log,
		metrics: metrics,
	}
}

// ImageFileName returns the file name used for the index-th image of a product.
func ImageFileName(productName, imageURL string, index int) string {
	ext := defaultImageExt
	if parsed, err := url.Parse(strings.TrimSpace(imageURL)); err == nil {
		if e := path.Ext(parsed.Path); e != "" {
			ext = e
		}
	}
	return fmt.Sprintf("%s_%d%s", unsafeFileChars.ReplaceAllString(productName, "_"), index, ext)
}

// Download saves every image of p into folder and returns the local paths of
// those that were written. Failures are recorded in the error log.
func (d *imageDownloader) Download(ctx context.Context, f *Fetcher, p *models.Product, folder string) []string {
	images := p.PrimaryImages()
	if len(images) == 0 {
		return nil
	}
	if err := os.MkdirAll(folder, 0o755); err != nil {
		d.log.Append(fmt.Sprintf("create image folder failed: %s - %v", folder, err))
		return nil
	}

	paths := make([]string, 0, len(images))
	for i, imageURL := range images {
		imageURL = strings.TrimSpace(imageURL)
		if imageURL == "" {
			continue
		}
		if local, ok := d.saved.Get(imageURL); ok {
			paths = append(paths, local)
			continue
		}
		if err := d.limiter.Wait(ctx); err != nil {
			return paths
		}

		body, err := f.FetchBytes(ctx, imageURL, nil)
		if err != nil {
			d.log.Append(fmt.Sprintf("image download failed: %s - %v", imageURL, err))
			continue
		}

		target := filepath.Join(folder, ImageFileName(p.Name, imageURL, i))
		d.mu.Lock()
		err = os.WriteFile(target, body, 0o644)
		d.mu.Unlock()
		if err != nil {
			d.log.Append(fmt.Sprintf("image download failed: %s - %v", imageURL, err))
			continue
		}

		d.saved.Add(imageURL, target)
		d.metrics.IncImages()
		paths = append(paths, target)
		slog.Debug("image saved", slog.String("url", imageURL), slog.String("path", target))
	}
	return paths
}
