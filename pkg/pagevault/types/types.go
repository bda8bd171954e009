// Package types provides core data types for pagevault snapshots.
// It defines the manifest entry shape shared by the store, payload cache,
// viewer, and CLI, along with helpers for ids and epoch-millisecond
// timestamps.
package types

import (
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Mode distinguishes captured snapshots from online bookmarks.
type Mode string

const (
	// ModeOffline marks an entry whose HTML payload was captured and
	// written to durable storage.
	ModeOffline Mode = "offline"

	// ModeOnline marks a bookmark entry: only the URL and scroll
	// position are remembered, no content is captured.
	ModeOnline Mode = "online"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeOffline || m == ModeOnline
}

// SnapshotEntry is one saved page in the manifest.
//
// ID and SavedAt are write-once at creation. ScrollY and LastOpenedAt are
// mutated in place by scroll persistence and open tracking. FilePath is
// non-nil only for offline entries and points at the serialized HTML
// payload on disk.
type SnapshotEntry struct {
	// ID is the opaque unique key joining manifest and payload storage.
	ID string `json:"id"`

	// URL is the original source address. It is user supplied and not
	// guaranteed to parse as an absolute URL; consumers must tolerate
	// non-parseable values.
	URL string `json:"url"`

	// Title is the captured page title, defaulting to URL when the page
	// provides none.
	Title string `json:"title"`

	// SavedAt is the creation time in epoch milliseconds, immutable.
	SavedAt int64 `json:"savedAt"`

	// ScrollY is the last reported vertical scroll offset. Stored values
	// from older manifests may be negative or fractional; readers clamp
	// rather than reject.
	ScrollY float64 `json:"scrollY"`

	// FilePath locates the serialized HTML payload for offline entries
	// and is nil for online bookmarks.
	FilePath *string `json:"filePath"`

	// Mode is offline (captured content exists) or online (bookmark).
	Mode Mode `json:"mode"`

	// LastOpenedAt is the last time the entry was opened for viewing, in
	// epoch milliseconds, or nil if never opened or cleared.
	LastOpenedAt *int64 `json:"lastOpenedAt"`
}

// Opened reports whether the entry has a recorded open time.
func (e *SnapshotEntry) Opened() bool {
	return e.LastOpenedAt != nil
}

// DisplayTitle returns the title, falling back to the URL.
func (e *SnapshotEntry) DisplayTitle() string {
	if e.Title != "" {
		return e.Title
	}
	return e.URL
}

// SavedTime returns SavedAt as a time.Time.
func (e *SnapshotEntry) SavedTime() time.Time {
	return time.UnixMilli(e.SavedAt)
}

// ClampedScrollY returns ScrollY coerced to a finite non-negative offset.
func (e *SnapshotEntry) ClampedScrollY() float64 {
	y := e.ScrollY
	if y != y || y < 0 { // NaN or negative
		return 0
	}
	return y
}

// NewOfflineEntry creates a manifest entry for a captured snapshot, with
// a fresh id and a payload path under snapshotsDir.
func NewOfflineEntry(url, title, snapshotsDir string) *SnapshotEntry {
	id := NewID()
	return &SnapshotEntry{
		ID:       id,
		URL:      url,
		Title:    title,
		SavedAt:  NowMillis(),
		Mode:     ModeOffline,
		FilePath: StringPtr(filepath.Join(snapshotsDir, id+".html")),
	}
}

// NewOnlineEntry creates a bookmark entry: URL and scroll position only.
func NewOnlineEntry(url string, scrollY float64) *SnapshotEntry {
	return &SnapshotEntry{
		ID:      NewID(),
		URL:     url,
		SavedAt: NowMillis(),
		ScrollY: scrollY,
		Mode:    ModeOnline,
	}
}

// NewID allocates a new unique snapshot id.
func NewID() string {
	return uuid.NewString()
}

// NowMillis returns the current time in epoch milliseconds.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}

// StringPtr returns a pointer to s. Convenience for FilePath values.
func StringPtr(s string) *string {
	return &s
}

// Int64Ptr returns a pointer to v. Convenience for LastOpenedAt values.
func Int64Ptr(v int64) *int64 {
	return &v
}
