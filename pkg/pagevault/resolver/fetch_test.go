package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/pagevault/pkg/pagevault/bridge"
)

func TestHTTPFetcher(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/a.css":
			w.Header().Set("Content-Type", "text/css")
			_, _ = w.Write([]byte("body{color:red}"))
		case "/missing":
			http.NotFound(w, r)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	f := NewHTTPFetcher(5 * time.Second)

	t.Run("success", func(t *testing.T) {
		res, err := f.Fetch(context.Background(), srv.URL+"/a.css", KindText)
		require.NoError(t, err)
		assert.Equal(t, "body{color:red}", string(res.Body))
		assert.Equal(t, "text/css", res.MIME)
	})

	t.Run("non-2xx is an error", func(t *testing.T) {
		_, err := f.Fetch(context.Background(), srv.URL+"/missing", KindText)
		require.Error(t, err)
	})

	t.Run("network error is an error", func(t *testing.T) {
		_, err := f.Fetch(context.Background(), "http://127.0.0.1:1/nope", KindText)
		require.Error(t, err)
	})
}

// hostStub answers bridge requests the way the host side would.
func hostStub(t *testing.T, c **bridge.Correlator, respond func(bridge.ResourceRequestPayload) bridge.ResourceResponse) bridge.SendFunc {
	t.Helper()
	return func(env bridge.Envelope) error {
		var req bridge.ResourceRequestPayload
		if err := json.Unmarshal(env.Payload, &req); err != nil {
			return err
		}
		go (*c).Resolve(respond(req))
		return nil
	}
}

func TestBridgeFetcherText(t *testing.T) {
	t.Parallel()

	var c *bridge.Correlator
	c = bridge.NewCorrelator(hostStub(t, &c, func(req bridge.ResourceRequestPayload) bridge.ResourceResponse {
		return bridge.ResourceResponse{ID: req.ID, Success: true, Body: "h1{font-size:2em}", MIME: "text/css"}
	}))

	f := &BridgeFetcher{Correlator: c, Location: "https://example.com/page"}
	res, err := f.Fetch(context.Background(), "https://example.com/b.css", KindText)
	require.NoError(t, err)
	assert.Equal(t, "h1{font-size:2em}", string(res.Body))
}

func TestBridgeFetcherDataURL(t *testing.T) {
	t.Parallel()

	var c *bridge.Correlator
	c = bridge.NewCorrelator(hostStub(t, &c, func(req bridge.ResourceRequestPayload) bridge.ResourceResponse {
		if req.ResponseType != bridge.ResponseTypeDataURL {
			t.Errorf("responseType = %q, want data-url", req.ResponseType)
		}
		if req.Headers["Referer"] != "https://example.com/" {
			t.Errorf("Referer = %q, want synthesized origin", req.Headers["Referer"])
		}
		return bridge.ResourceResponse{ID: req.ID, Success: true, DataURL: "data:image/png;base64,AAAA"}
	}))

	f := &BridgeFetcher{Correlator: c, Location: "https://example.com/deep/page"}
	uri, err := FetchDataURI(context.Background(), f, "https://example.com/c.png")
	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,AAAA", uri)
}

func TestBridgeFetcherFailure(t *testing.T) {
	t.Parallel()

	var c *bridge.Correlator
	c = bridge.NewCorrelator(hostStub(t, &c, func(req bridge.ResourceRequestPayload) bridge.ResourceResponse {
		return bridge.ResourceResponse{ID: req.ID, Success: false, Error: "blocked"}
	}))

	f := &BridgeFetcher{Correlator: c}
	_, err := f.Fetch(context.Background(), "https://example.com/x", KindText)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "blocked")
}

type staticFetcher struct {
	res *Resource
	err error
}

func (s *staticFetcher) Fetch(context.Context, string, Kind) (*Resource, error) {
	return s.res, s.err
}

func TestFallbackFetcher(t *testing.T) {
	t.Parallel()

	t.Run("primary wins", func(t *testing.T) {
		t.Parallel()
		f := &FallbackFetcher{
			Primary:  &staticFetcher{res: &Resource{Body: []byte("primary")}},
			Fallback: &staticFetcher{res: &Resource{Body: []byte("fallback")}},
		}
		res, err := f.Fetch(context.Background(), "https://example.com", KindText)
		require.NoError(t, err)
		assert.Equal(t, "primary", string(res.Body))
	})

	t.Run("falls back on primary failure", func(t *testing.T) {
		t.Parallel()
		f := &FallbackFetcher{
			Primary:  &staticFetcher{err: errors.New("cors rejected")},
			Fallback: &staticFetcher{res: &Resource{Body: []byte("fallback")}},
		}
		res, err := f.Fetch(context.Background(), "https://example.com", KindText)
		require.NoError(t, err)
		assert.Equal(t, "fallback", string(res.Body))
	})

	t.Run("both failing returns error", func(t *testing.T) {
		t.Parallel()
		f := &FallbackFetcher{
			Primary:  &staticFetcher{err: errors.New("net down")},
			Fallback: &staticFetcher{err: errors.New("proxy down")},
		}
		_, err := f.Fetch(context.Background(), "https://example.com", KindText)
		require.Error(t, err)
	})
}

func TestFetchDataURIEncodesBody(t *testing.T) {
	t.Parallel()

	f := &staticFetcher{res: &Resource{Body: []byte{1, 2, 3, 4}, MIME: "image/gif"}}
	uri, err := FetchDataURI(context.Background(), f, "https://example.com/x.gif")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(uri, "data:image/gif;base64,"))
}
