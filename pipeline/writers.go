package pipeline

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/aluiziolira/go-scrape-products/models"
)

const utf8BOM = "\ufeff"

// CSVColumns is the header of the flat CSV export. The image list is left out.
var CSVColumns = []string{"name", "price", "description", "image", "categories", "tags", "sku", "url", "scrape_time"}

// atomicFile writes to a temporary file next to path and renames it into place
// on commit, so a failed export never leaves a half-written target.
type atomicFile struct {
	path      string
	tmp       *os.File
	committed bool
}

func createAtomic(path string) (*atomicFile, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("create temp file for %q: %w", path, err)
	}
	return &atomicFile{path: path, tmp: tmp}, nil
}

func (a *atomicFile) commit() error {
	if a.committed {
		return nil
	}
	if err := a.tmp.Close(); err != nil {
		os.Remove(a.tmp.Name())
		return fmt.Errorf("close %q: %w", a.tmp.Name(), err)
	}
	if err := os.Rename(a.tmp.Name(), a.path); err != nil {
		os.Remove(a.tmp.Name())
		return fmt.Errorf("rename into %q: %w", a.path, err)
	}
	a.committed = true
	return nil
}

func (a *atomicFile) abort() error {
	if a.committed {
		return nil
	}
	a.tmp.Close()
	if err := os.Remove(a.tmp.Name()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %q: %w", a.tmp.Name(), err)
	}
	return nil
}

func (a *atomicFile) validate(kind string) error {
	name := a.tmp.Name()
	if a.committed {
		name = a.path
	}
	info, err := os.Stat(name)
	if err != nil {
		return fmt.Errorf("stat %s file: %w", kind, err)
	}
	if info.Size() <= 0 {
		return fmt.Errorf("%s file is empty", kind)
	}
	return nil
}

// CSVWriter writes products to a UTF-8 CSV file with a byte-order mark.
type CSVWriter struct {
	file   *atomicFile
	buf    *bufio.Writer
	writer *csv.Writer
	mu     sync.Mutex
}

// NewCSVWriter initialises a CSV writer and writes the header row.
func NewCSVWriter(filename string) (*CSVWriter, error) {
	return newCSVWriter(filename, CSVColumns)
}

func newCSVWriter(filename string, header []string) (*CSVWriter, error) {
	f, err := createAtomic(filename)
	if err != nil {
		return nil, err
	}
	buf := bufio.NewWriter(f.tmp)
	if _, err := buf.WriteString(utf8BOM); err != nil {
		f.abort()
		return nil, fmt.Errorf("write csv bom: %w", err)
	}
	writer := csv.NewWriter(buf)
	if err := writer.Write(header); err != nil {
		f.abort()
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	return &CSVWriter{file: f, buf: buf, writer: writer}, nil
}

// Write appends products to the CSV output.
func (cw *CSVWriter) Write(products []*models.Product) error {
	rows := make([][]string, 0, len(products))
	for _, p := range products {
		rows = append(rows, []string{
			p.Name,
			p.Price,
			p.Description,
			p.Image,
			p.Categories,
			p.Tags,
			p.SKU,
			p.URL,
			formatScrapeTime(p),
		})
	}
	return cw.writeRows(rows)
}

func (cw *CSVWriter) writeRows(rows [][]string) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if err := cw.writer.WriteAll(rows); err != nil {
		return fmt.Errorf("write csv records: %w", err)
	}
	return nil
}

// Close flushes the rows and moves the file into place.
func (cw *CSVWriter) Close() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		cw.file.abort()
		return fmt.Errorf("flush csv writer: %w", err)
	}
	if err := cw.buf.Flush(); err != nil {
		cw.file.abort()
		return fmt.Errorf("flush csv buffer: %w", err)
	}
	return cw.file.commit()
}

// Abort discards the output.
func (cw *CSVWriter) Abort() error {
	return cw.file.abort()
}

// Validate ensures the file has content.
func (cw *CSVWriter) Validate() error {
	return cw.file.validate("csv")
}

// TXTWriter writes products as "key: value" blocks.
type TXTWriter struct {
	file *atomicFile
	buf  *bufio.Writer
	mu   sync.Mutex
}

// NewTXTWriter initialises the text writer.
func NewTXTWriter(filename string) (*TXTWriter, error) {
	f, err := createAtomic(filename)
	if err != nil {
		return nil, err
	}
	return &TXTWriter{file: f, buf: bufio.NewWriter(f.tmp)}, nil
}

// Write appends one block per product.
func (tw *TXTWriter) Write(products []*models.Product) error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	for _, p := range products {
		var b strings.Builder
		field := func(key, value string) {
			fmt.Fprintf(&b, "%s: %s\n", key, value)
		}
		field("name", p.Name)
		field("price", p.Price)
		field("description", p.Description)
		field("image", p.Image)
		b.WriteString("images:\n")
		for i, u := range p.Images {
			fmt.Fprintf(&b, "  %d. %s\n", i+1, u)
		}
		field("categories", p.Categories)
		field("tags", p.Tags)
		field("sku", p.SKU)
		field("url", p.URL)
		field("scrape_time", formatScrapeTime(p))
		b.WriteString("\n" + strings.Repeat("-", 50) + "\n\n")

		if _, err := tw.buf.WriteString(b.String()); err != nil {
			return fmt.Errorf("write txt record: %w", err)
		}
	}
	return nil
}

// Close flushes buffers and moves the file into place.
func (tw *TXTWriter) Close() error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if err := tw.buf.Flush(); err != nil {
		tw.file.abort()
		return fmt.Errorf("flush txt writer: %w", err)
	}
	return tw.file.commit()
}

// Abort discards the output.
func (tw *TXTWriter) Abort() error {
	return tw.file.abort()
}

// Validate ensures the text file has data.
func (tw *TXTWriter) Validate() error {
	return tw.file.validate("txt")
}

// JSONWriter writes every product as one indented JSON array.
type JSONWriter struct {
	file     *atomicFile
	products []*models.Product
	mu       sync.Mutex
}

// NewJSONWriter initialises the JSON writer.
func NewJSONWriter(filename string) (*JSONWriter, error) {
	f, err := createAtomic(filename)
	if err != nil {
		return nil, err
	}
	return &JSONWriter{file: f}, nil
}

// Write buffers products; the array is encoded on Close.
func (jw *JSONWriter) Write(products []*models.Product) error {
	jw.mu.Lock()
	defer jw.mu.Unlock()
	jw.products = append(jw.products, products...)
	return nil
}

// Close encodes the array and moves the file into place.
func (jw *JSONWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	products := jw.products
	if products == nil {
		products = []*models.Product{}
	}

	buf := bufio.NewWriter(jw.file.tmp)
	encoder := json.NewEncoder(buf)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(products); err != nil {
		jw.file.abort()
		return fmt.Errorf("encode json array: %w", err)
	}
	if err := buf.Flush(); err != nil {
		jw.file.abort()
		return fmt.Errorf("flush json writer: %w", err)
	}
	return jw.file.commit()
}

// Abort discards the output.
func (jw *JSONWriter) Abort() error {
	return jw.file.abort()
}

// Validate ensures the JSON file has data.
func (jw *JSONWriter) Validate() error {
	return jw.file.validate("json")
}

func formatScrapeTime(p *models.Product) string {
	if p.ScrapeTime.IsZero() {
		return ""
	}
	return p.ScrapeTime.Format(models.ScrapeTimeLayout)
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
