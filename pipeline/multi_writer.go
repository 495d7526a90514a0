package pipeline

import (
	"errors"
	"fmt"
	"sync"

	"github.com/aluiziolira/go-scrape-products/models"
)

// MultiWriter fans products out to several writers.
type MultiWriter struct {
	writers []OutputWriter
	names   []string
	mu      sync.Mutex
}

// NewMultiWriter opens one writer per format, each at its own path.
func NewMultiWriter(targets map[Format]string) (*MultiWriter, error) {
	mw := &MultiWriter{}
	for _, format := range Formats {
		path, ok := targets[format]
		if !ok {
			continue
		}
		w, err := NewWriter(format, path)
		if err != nil {
			mw.Abort()
			return nil, fmt.Errorf("failed to create %s writer: %w", format, err)
		}
		mw.writers = append(mw.writers, w)
		mw.names = append(mw.names, string(format))
	}
	if len(mw.writers) == 0 {
		return nil, fmt.Errorf("no output formats selected")
	}
	return mw, nil
}

// Write writes products to every writer.
func (mw *MultiWriter) Write(products []*models.Product) error {
	mw.mu.Lock()
	defer mw.mu.Unlock()

	for i, w := range mw.writers {
		if err := w.Write(products); err != nil {
			return fmt.Errorf("%s write failed: %w", mw.names[i], err)
		}
	}
	return nil
}

// Close closes every writer, collecting all failures.
func (mw *MultiWriter) Close() error {
	mw.mu.Lock()
	defer mw.mu.Unlock()

	var errs []error
	for i, w := range mw.writers {
		if err := w.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s close failed: %w", mw.names[i], err))
		}
	}
	return errors.Join(errs...)
}

// Abort discards every output that supports it.
func (mw *MultiWriter) Abort() error {
	var errs []error
	for _, w := range mw.writers {
		if a, ok := w.(aborter); ok {
			if err := a.Abort(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Validate validates every output file.
func (mw *MultiWriter) Validate() error {
	var errs []error
	for i, w := range mw.writers {
		if err := w.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("%s validation failed: %w", mw.names[i], err))
		}
	}
	return errors.Join(errs...)
}
