package pipeline

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/aluiziolira/go-scrape-products/models"
)

// Format names an export file format.
type Format string

const (
	FormatCSV         Format = "csv"
	FormatTXT         Format = "txt"
	FormatJSON        Format = "json"
	FormatMarketplace Format = "marketplace"
)

// Formats lists the single-file export formats.
var Formats = []Format{FormatCSV, FormatTXT, FormatJSON, FormatMarketplace}

// recentErrors is how many error-log entries an ExportError carries.
const recentErrors = 3

// ExportError reports a failed export together with the newest error-log
// entries, which callers show to the user.
type ExportError struct {
	Format string
	Path   string
	Err    error
	Recent []string
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export %s to %s: %v", e.Format, e.Path, e.Err)
}

func (e *ExportError) Unwrap() error {
	return e.Err
}

type aborter interface {
	Abort() error
}

// ParseFormat validates a format name.
func ParseFormat(name string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown export format %q", name)
}

// NewWriter opens the writer for format at path.
func NewWriter(format Format, path string) (OutputWriter, error) {
	var (
		w   OutputWriter
		err error
	)
	switch format {
	case FormatCSV:
		w, err = NewCSVWriter(path)
	case FormatTXT:
		w, err = NewTXTWriter(path)
	case FormatJSON:
		w, err = NewJSONWriter(path)
	case FormatMarketplace:
		w, err = NewMarketplaceWriter(path)
	default:
		return nil, fmt.Errorf("unknown export format %q", format)
	}
	if err != nil {
		return nil, err
	}
	return w, nil
}

// Exporter writes the contents of a store to files, recording failures in the
// error log.
type Exporter struct {
	store *Store
	log   *ErrorLog
}

// NewExporter returns an exporter over store and log.
func NewExporter(store *Store, log *ErrorLog) *Exporter {
	if log == nil {
		log = NewErrorLog()
	}
	return &Exporter{store: store, log: log}
}

// Export writes every stored product to path in format.
func (e *Exporter) Export(format Format, path string) error {
	products := e.store.All()
	if len(products) == 0 {
		return ErrNoProducts
	}

	w, err := NewWriter(format, path)
	if err != nil {
		return e.fail(string(format), path, err)
	}
	if err := writeAll(w, products); err != nil {
		return e.fail(string(format), path, err)
	}

	slog.Info("export complete",
		slog.String("format", string(format)),
		slog.String("path", path),
		slog.Int("products", len(products)),
	)
	return nil
}

// ExportAll writes every stored product once per target format.
func (e *Exporter) ExportAll(targets map[Format]string) error {
	products := e.store.All()
	if len(products) == 0 {
		return ErrNoProducts
	}

	names := make([]string, 0, len(targets))
	paths := make([]string, 0, len(targets))
	for _, f := range Formats {
		if path, ok := targets[f]; ok {
			names = append(names, string(f))
			paths = append(paths, path)
		}
	}
	format, path := strings.Join(names, ","), strings.Join(paths, ",")

	w, err := NewMultiWriter(targets)
	if err != nil {
		return e.fail(format, path, err)
	}
	if err := writeAll(w, products); err != nil {
		return e.fail(format, path, err)
	}

	slog.Info("export complete",
		slog.String("format", format),
		slog.String("path", path),
		slog.Int("products", len(products)),
	)
	return nil
}

// writeAll writes, closes and validates w, discarding the output on failure.
func writeAll(w OutputWriter, products []*models.Product) error {
	if err := w.Write(products); err != nil {
		if a, ok := w.(aborter); ok {
			a.Abort()
		}
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return w.Validate()
}

func (e *Exporter) fail(format, path string, err error) error {
	e.log.Append(fmt.Sprintf("export %s to %s failed: %v", format, path, err))
	return &ExportError{Format: format, Path: path, Err: err, Recent: e.log.Recent(recentErrors)}
}
