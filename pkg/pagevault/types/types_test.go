package types

import (
	"encoding/json"
	"math"
	"testing"
)

func TestModeValid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		mode Mode
		want bool
	}{
		{ModeOffline, true},
		{ModeOnline, true},
		{Mode(""), false},
		{Mode("archived"), false},
	}

	for _, tt := range tests {
		if got := tt.mode.Valid(); got != tt.want {
			t.Errorf("Mode(%q).Valid() = %v, want %v", tt.mode, got, tt.want)
		}
	}
}

func TestDisplayTitle(t *testing.T) {
	t.Parallel()

	e := &SnapshotEntry{URL: "https://example.com/a", Title: "Example"}
	if got := e.DisplayTitle(); got != "Example" {
		t.Errorf("DisplayTitle() = %q, want %q", got, "Example")
	}

	e.Title = ""
	if got := e.DisplayTitle(); got != "https://example.com/a" {
		t.Errorf("DisplayTitle() = %q, want URL fallback", got)
	}
}

func TestClampedScrollY(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   float64
		want float64
	}{
		{"positive", 120.5, 120.5},
		{"zero", 0, 0},
		{"negative", -40, 0},
		{"nan", math.NaN(), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e := &SnapshotEntry{ScrollY: tt.in}
			if got := e.ClampedScrollY(); got != tt.want {
				t.Errorf("ClampedScrollY() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEntryJSONNullability(t *testing.T) {
	t.Parallel()

	e := SnapshotEntry{
		ID:   "abc",
		URL:  "https://example.com",
		Mode: ModeOnline,
	}
	data, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if v, ok := m["filePath"]; !ok || v != nil {
		t.Errorf("filePath = %v, want explicit null", v)
	}
	if v, ok := m["lastOpenedAt"]; !ok || v != nil {
		t.Errorf("lastOpenedAt = %v, want explicit null", v)
	}
}

func TestNewIDUnique(t *testing.T) {
	t.Parallel()

	seen := make(map[string]bool)
	for range 100 {
		id := NewID()
		if id == "" {
			t.Fatal("NewID() returned empty string")
		}
		if seen[id] {
			t.Fatalf("NewID() returned duplicate %q", id)
		}
		seen[id] = true
	}
}
