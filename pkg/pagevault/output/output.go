// Package output provides formatters for displaying snapshot listings in
// various output formats (pretty, plain, json, yaml, paths).
//
// The package uses a registry pattern to allow registration of multiple
// formatter implementations that can be selected at runtime.
//
// Basic usage:
//
//	formatter, err := output.Get("pretty")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	var buf bytes.Buffer
//	if err := formatter.Format(&buf, result); err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Print(buf.String())
package output

import (
	"bytes"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/jamesainslie/pagevault/pkg/pagevault/types"
)

// Row is one snapshot entry prepared for display, extending the raw
// manifest fields with computed human-readable values.
type Row struct {
	// ID is the entry's unique identifier.
	ID string `json:"id" yaml:"id"`

	// URL is the captured or bookmarked address.
	URL string `json:"url" yaml:"url"`

	// Title is the display title.
	Title string `json:"title" yaml:"title"`

	// Mode is "offline" or "online".
	Mode types.Mode `json:"mode" yaml:"mode"`

	// SavedAt is the creation time.
	SavedAt time.Time `json:"saved_at" yaml:"saved_at"`

	// SavedHuman is a relative rendering of SavedAt (e.g. "2 days ago").
	SavedHuman string `json:"saved_human" yaml:"saved_human"`

	// ScrollY is the last reported scroll offset.
	ScrollY float64 `json:"scroll_y" yaml:"scroll_y"`

	// FilePath is the payload location for offline entries.
	FilePath string `json:"file_path,omitempty" yaml:"file_path,omitempty"`

	// Opened indicates the entry has been viewed since the last clear.
	Opened bool `json:"opened" yaml:"opened"`
}

// Result contains the complete listing data for formatting.
type Result struct {
	// Rows contains the entries to display, already in display order.
	Rows []Row `json:"rows" yaml:"rows"`

	// ManifestPath is the backing manifest location.
	ManifestPath string `json:"manifest_path" yaml:"manifest_path"`

	// Recent indicates the listing is ranked by last-opened time.
	Recent bool `json:"recent" yaml:"recent"`

	// Warnings contains any warning messages generated while listing.
	Warnings []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// NewRow converts a manifest entry for display.
func NewRow(e types.SnapshotEntry) Row {
	row := Row{
		ID:         e.ID,
		URL:        e.URL,
		Title:      e.DisplayTitle(),
		Mode:       e.Mode,
		SavedAt:    e.SavedTime(),
		SavedHuman: humanize.Time(e.SavedTime()),
		ScrollY:    e.ClampedScrollY(),
		Opened:     e.Opened(),
	}
	if e.FilePath != nil {
		row.FilePath = *e.FilePath
	}
	return row
}

// NewResult converts a slice of manifest entries for display.
func NewResult(entries []types.SnapshotEntry) *Result {
	rows := make([]Row, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, NewRow(e))
	}
	return &Result{Rows: rows}
}

// Offline returns the count of offline snapshot rows.
func (r *Result) Offline() int {
	n := 0
	for _, row := range r.Rows {
		if row.Mode == types.ModeOffline {
			n++
		}
	}
	return n
}

// Formatter is the interface that all output formatters must implement.
type Formatter interface {
	// Format writes the formatted output to the buffer.
	// It returns an error if formatting fails.
	Format(w *bytes.Buffer, r *Result) error
}

// FormatterFactory is a function that creates a new Formatter instance.
type FormatterFactory func() Formatter

// Registry manages formatter registration and lookup.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]FormatterFactory
}

// NewRegistry creates a new formatter registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]FormatterFactory),
	}
}

// Register adds a formatter factory to the registry.
// It will replace any existing formatter with the same name.
func (r *Registry) Register(name string, factory FormatterFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Get returns a new formatter instance by name.
// It returns an error if the formatter is not found.
func (r *Registry) Get(name string) (Formatter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown formatter: %s", name)
	}
	return factory(), nil
}

// Available returns a sorted list of all registered formatter names.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry is the global formatter registry.
var DefaultRegistry = NewRegistry()

// Register adds a formatter factory to the default registry.
func Register(name string, factory FormatterFactory) {
	DefaultRegistry.Register(name, factory)
}

// Get returns a new formatter instance from the default registry.
func Get(name string) (Formatter, error) {
	return DefaultRegistry.Get(name)
}

// Available returns all formatter names from the default registry.
func Available() []string {
	return DefaultRegistry.Available()
}
