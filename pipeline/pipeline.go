// Package pipeline holds accumulated products and the error log, and exports
// products to files.
package pipeline

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/aluiziolira/go-scrape-products/models"
)

var (
	// ErrNoProducts is returned when an export is requested with nothing collected.
	ErrNoProducts = errors.New("pipeline: no products to export")
)

// OutputWriter defines the interface for data output.
type OutputWriter interface {
	Write(products []*models.Product) error
	Close() error
	Validate() error
}

// Store is the ordered, append-only product collection owned by the caller
// of a scrape. It is safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	products []*models.Product
	partial  int
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{}
}

// Add appends p. Nil products are ignored.
func (s *Store) Add(p *models.Product) {
	if p == nil {
		return
	}
	s.mu.Lock()
	s.products = append(s.products, p)
	if p.Partial {
		s.partial++
	}
	s.mu.Unlock()
}

// All returns the products in insertion order. The slice is a copy; the
// products themselves are shared and must not be modified.
func (s *Store) All() []*models.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Product, len(s.products))
	copy(out, s.products)
	return out
}

// Len returns the number of stored products.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.products)
}

// Clear drops every product.
func (s *Store) Clear() {
	s.mu.Lock()
	s.products = nil
	s.partial = 0
	s.mu.Unlock()
}

// Stats returns a snapshot of the store counters.
func (s *Store) Stats() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return map[string]int{
		"products":         len(s.products),
		"partial_products": s.partial,
	}
}

// ErrorLog is the append-only list of human-readable failures. Every entry is
// also logged at warn level.
type ErrorLog struct {
	mu      sync.RWMutex
	entries []string
}

// NewErrorLog returns an empty log.
func NewErrorLog() *ErrorLog {
	return &ErrorLog{}
}

// Append records one failure.
func (l *ErrorLog) Append(entry string) {
	l.mu.Lock()
	l.entries = append(l.entries, entry)
	l.mu.Unlock()
	slog.Warn("scrape error", slog.String("entry", entry))
}

// Entries returns a copy of every entry in order.
func (l *ErrorLog) Entries() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, len(l.entries))
	copy(out, l.entries)
	return out
}

// Recent returns up to n of the newest entries, oldest first.
func (l *ErrorLog) Recent(n int) []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if n <= 0 {
		return nil
	}
	start := max(len(l.entries)-n, 0)
	out := make([]string, len(l.entries)-start)
	copy(out, l.entries[start:])
	return out
}

// Len returns the number of entries.
func (l *ErrorLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Clear drops every entry.
func (l *ErrorLog) Clear() {
	l.mu.Lock()
	l.entries = nil
	l.mu.Unlock()
}
