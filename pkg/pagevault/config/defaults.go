// Package config provides configuration management for pagevault.
package config

import "time"

// Default configuration values for pagevault.
const (
	// DefaultTheme is the appearance mode applied at capture time.
	DefaultTheme = "device"

	// DefaultCacheCapacity is the number of decoded HTML payloads the
	// in-memory cache keeps warm. Deliberately small: full documents can
	// be large, and only the handful of most-recently-viewed pages need
	// to avoid a disk read.
	DefaultCacheCapacity = 6

	// DefaultDebounceInterval is the quiet period coalescing bursts of
	// scroll and open-tracking updates into a single manifest write.
	DefaultDebounceInterval = 500 * time.Millisecond

	// DefaultScrollThrottle is the minimum interval between scroll
	// reports from a viewed page.
	DefaultScrollThrottle = 250 * time.Millisecond

	// DefaultScrollRetries bounds the animation-frame attempts made when
	// restoring a scroll offset after render.
	DefaultScrollRetries = 30

	// DefaultFetchTimeout bounds a single resource fetch during capture.
	DefaultFetchTimeout = 30 * time.Second

	// DefaultServeAddr is the listen address for the replay server.
	DefaultServeAddr = "127.0.0.1:8787"
)

// DefaultHydrationPatterns are the inline-script signatures treated as
// client-side hydration bootstraps and stripped from captured documents.
// Best-effort pattern match, tunable via configuration.
var DefaultHydrationPatterns = []string{
	"hydrate",
	"createRoot",
	"ReactDOM.render",
	"__NEXT_DATA__",
	"window.__NUXT__",
}
