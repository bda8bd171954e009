package resolver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/jamesainslie/pagevault/pkg/pagevault/bridge"
	"github.com/jamesainslie/pagevault/pkg/pagevault/logging"
)

var logger = logging.Get("resolver")

// maxResourceSize bounds a single fetched resource. Oversized assets are
// skipped rather than ballooning the snapshot.
const maxResourceSize = 32 << 20

// Resource is a fetched payload. Body holds the raw bytes; DataURI is set
// instead when the proxy path already delivered an encoded data URI.
type Resource struct {
	Body    []byte
	MIME    string
	DataURI string
}

// Kind selects the desired form of a fetched resource.
type Kind int

const (
	// KindText requests decoded text content (stylesheets, documents).
	KindText Kind = iota

	// KindBinary requests bytes for data-URI embedding (images, fonts).
	KindBinary
)

// Fetcher fetches a resource by absolute URL. Implementations must treat
// every failure as recoverable: capture is best-effort per resource.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string, kind Kind) (*Resource, error)
}

// HTTPFetcher fetches directly over the network with ambient cookies.
type HTTPFetcher struct {
	Client *http.Client
}

// NewHTTPFetcher creates a direct fetcher with a cookie jar and the given
// per-request timeout.
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	jar, _ := cookiejar.New(nil)
	return &HTTPFetcher{
		Client: &http.Client{
			Timeout: timeout,
			Jar:     jar,
		},
	}
}

// Fetch performs a GET and returns the body bytes with the server's MIME
// type. Non-2xx statuses are errors so the caller can fall back.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string, _ Kind) (*Resource, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("direct fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("direct fetch: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResourceSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	if len(body) > maxResourceSize {
		return nil, fmt.Errorf("resource exceeds %d bytes", maxResourceSize)
	}

	return &Resource{
		Body: body,
		MIME: resp.Header.Get("Content-Type"),
	}, nil
}

// BridgeFetcher delegates fetching to the host through the correlation
// bridge, carrying a synthesized Referer derived from Location.
type BridgeFetcher struct {
	Correlator *bridge.Correlator

	// Location is the current document location used to derive the
	// Referer header on proxied requests.
	Location string
}

// Fetch dispatches a RESOURCE_REQUEST and converts the response.
func (f *BridgeFetcher) Fetch(ctx context.Context, rawURL string, kind Kind) (*Resource, error) {
	responseType := bridge.ResponseTypeText
	if kind == KindBinary {
		responseType = bridge.ResponseTypeDataURL
	}

	var headers map[string]string
	if ref := SynthesizeReferer(f.Location); ref != "" {
		headers = map[string]string{"Referer": ref}
	}

	resp, err := f.Correlator.Request(ctx, rawURL, responseType, headers)
	if err != nil {
		return nil, fmt.Errorf("bridge fetch: %w", err)
	}
	if !resp.Success {
		msg := resp.Error
		if msg == "" {
			msg = "unspecified proxy failure"
		}
		return nil, fmt.Errorf("bridge fetch: %s", msg)
	}

	if kind == KindBinary {
		if resp.DataURL == "" {
			return nil, errors.New("bridge fetch: empty data-url response")
		}
		return &Resource{DataURI: resp.DataURL, MIME: resp.MIME}, nil
	}
	return &Resource{Body: []byte(resp.Body), MIME: resp.MIME}, nil
}

// FallbackFetcher tries the direct path first and falls back to the
// bridge on any failure. Both failing returns the fallback error.
type FallbackFetcher struct {
	Primary  Fetcher
	Fallback Fetcher
}

// Fetch attempts Primary, then Fallback.
func (f *FallbackFetcher) Fetch(ctx context.Context, rawURL string, kind Kind) (*Resource, error) {
	res, err := f.Primary.Fetch(ctx, rawURL, kind)
	if err == nil {
		return res, nil
	}
	if f.Fallback == nil {
		return nil, err
	}
	logger.Debug("direct fetch failed, using bridge", "url", rawURL, "error", err)
	return f.Fallback.Fetch(ctx, rawURL, kind)
}

// FetchText fetches a resource and returns its decoded text content.
func FetchText(ctx context.Context, f Fetcher, rawURL string) (string, error) {
	res, err := f.Fetch(ctx, rawURL, KindText)
	if err != nil {
		return "", err
	}
	return string(res.Body), nil
}

// FetchDataURI fetches a resource and returns it as a base64 data URI
// with a best-effort MIME type.
func FetchDataURI(ctx context.Context, f Fetcher, rawURL string) (string, error) {
	res, err := f.Fetch(ctx, rawURL, KindBinary)
	if err != nil {
		return "", err
	}
	if res.DataURI != "" {
		return res.DataURI, nil
	}
	return DataURI(res.MIME, res.Body), nil
}
