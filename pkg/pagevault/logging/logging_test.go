package logging_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jamesainslie/pagevault/pkg/pagevault/logging"
)

// TestInit exercises Init with various configurations.
// Note: cannot run in parallel with other tests that use global state.
func TestInit(t *testing.T) {
	validDir := t.TempDir()
	componentsDir := t.TempDir()
	invalidDir := t.TempDir()

	tests := []struct {
		name    string
		cfg     logging.Config
		wantErr bool
	}{
		{
			name: "valid config with defaults",
			cfg: logging.Config{
				Level: "info",
				Path:  filepath.Join(validDir, "test.log"),
			},
			wantErr: false,
		},
		{
			name: "valid config with component overrides",
			cfg: logging.Config{
				Level: "info",
				Path:  filepath.Join(componentsDir, "components.log"),
				Components: map[string]string{
					"store":   "debug",
					"capture": "warn",
				},
			},
			wantErr: false,
		},
		{
			name: "invalid log level",
			cfg: logging.Config{
				Level: "invalid",
				Path:  filepath.Join(invalidDir, "invalid.log"),
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := logging.Init(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("Init() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil {
				_ = logging.Close()
			}
		})
	}
}

func TestLoggerWritesToFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "write.log")

	if err := logging.Init(logging.Config{Level: "debug", Path: path}); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer func() { _ = logging.Close() }()

	logger := logging.Get("store")
	logger.Info("manifest loaded", "entries", 3)

	if err := logging.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), "manifest loaded") {
		t.Errorf("log file missing message, got: %s", data)
	}
	if !strings.Contains(string(data), "store") {
		t.Errorf("log file missing component prefix, got: %s", data)
	}
}

func TestComponentLevelOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "levels.log")

	cfg := logging.Config{
		Level: "error",
		Path:  path,
		Components: map[string]string{
			"inliner": "debug",
		},
	}
	if err := logging.Init(cfg); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer func() { _ = logging.Close() }()

	logging.Get("inliner").Debug("verbose detail")
	logging.Get("store").Debug("should be filtered")

	if err := logging.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), "verbose detail") {
		t.Error("expected overridden component to log at debug")
	}
	if strings.Contains(string(data), "should be filtered") {
		t.Error("expected default component to filter debug messages")
	}
}

func TestGetBeforeInitIsSilent(t *testing.T) {
	// Loggers obtained before Init must not panic or write anywhere.
	logger := logging.Get("early")
	logger.Info("goes nowhere")
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    logging.Level
		wantErr bool
	}{
		{"debug", logging.LevelDebug, false},
		{"info", logging.LevelInfo, false},
		{"WARN", logging.LevelWarn, false},
		{"warning", logging.LevelWarn, false},
		{"error", logging.LevelError, false},
		{"bogus", logging.LevelInfo, true},
	}

	for _, tt := range tests {
		got, err := logging.ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
