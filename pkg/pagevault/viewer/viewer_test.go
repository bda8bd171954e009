package viewer

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/pagevault/pkg/pagevault/bridge"
	"github.com/jamesainslie/pagevault/pkg/pagevault/payload"
	"github.com/jamesainslie/pagevault/pkg/pagevault/store"
	"github.com/jamesainslie/pagevault/pkg/pagevault/types"
)

type fixture struct {
	server *httptest.Server
	store  *store.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()

	st, err := store.New(filepath.Join(dir, "manifest.json"), store.Options{DebounceInterval: 20 * time.Millisecond})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	payloadPath := filepath.Join(dir, "snapshots", "snap-1.html")
	snap := &types.SnapshotEntry{
		ID:       "snap-1",
		URL:      "https://example.com/articles/deep-dive",
		Title:    "Deep Dive",
		SavedAt:  types.NowMillis(),
		ScrollY:  300,
		Mode:     types.ModeOffline,
		FilePath: types.StringPtr(payloadPath),
	}
	html := "<!DOCTYPE html>\n<html><head><title>Deep Dive</title></head><body>content</body></html>"
	require.NoError(t, st.Create(context.Background(), snap, []byte(html)))

	require.NoError(t, st.Create(context.Background(), &types.SnapshotEntry{
		ID:      "bk-1",
		URL:     "https://example.com/later",
		SavedAt: types.NowMillis(),
		Mode:    types.ModeOnline,
	}, nil))

	srv := New(st, payload.NewCache(3), "127.0.0.1:0")
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &fixture{server: ts, store: st}
}

func TestIndexListsEntries(t *testing.T) {
	f := newFixture(t)

	resp, err := http.Get(f.server.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := readBody(t, resp)
	assert.Contains(t, body, "Deep Dive")
	assert.Contains(t, body, "/view/snap-1")
	assert.Contains(t, body, "bookmark")
}

func TestViewInjectsScriptAndMarksOpened(t *testing.T) {
	f := newFixture(t)

	resp, err := http.Get(f.server.URL + "/view/snap-1")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := readBody(t, resp)
	assert.Contains(t, body, "<script>")
	assert.Contains(t, body, "var targetY = 300;")
	assert.Contains(t, body, "https://example.com/articles/")
	assert.Contains(t, body, "/ws/snap-1")

	// The script must run before any page content.
	assert.Less(t, strings.Index(body, "<script>"), strings.Index(body, "<title>"))

	entry, err := f.store.Get(context.Background(), "snap-1")
	require.NoError(t, err)
	assert.True(t, entry.Opened())
}

func TestViewBookmarkRedirects(t *testing.T) {
	f := newFixture(t)

	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}
	resp, err := client.Get(f.server.URL + "/view/bk-1")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)
	assert.Equal(t, "https://example.com/later", resp.Header.Get("Location"))
}

func TestViewUnknownEntry(t *testing.T) {
	f := newFixture(t)

	resp, err := http.Get(f.server.URL + "/view/nope")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestNavigationPolicy(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name    string
		target  string
		allowed bool
	}{
		{"cross-origin rejected", "https://other.example/page", false},
		{"about blank allowed", "about:blank", true},
		{"same-origin allowed", "https://example.com/other", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Get(f.server.URL + "/nav/snap-1?target=" + strings.ReplaceAll(tt.target, ":", "%3A"))
			require.NoError(t, err)
			defer resp.Body.Close()

			var decoded struct {
				Allowed bool   `json:"allowed"`
				Banner  string `json:"banner"`
			}
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
			assert.Equal(t, tt.allowed, decoded.Allowed)
			if !tt.allowed {
				assert.NotEmpty(t, decoded.Banner)
			}
		})
	}
}

func TestSocketScrollUpdatesStore(t *testing.T) {
	f := newFixture(t)

	wsURL := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws/snap-1"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	env, err := bridge.NewEnvelope(bridge.TypeScroll, bridge.ScrollPayload{Y: 777, URL: "https://example.com/articles/deep-dive"})
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(env))

	require.Eventually(t, func() bool {
		entry, err := f.store.Get(context.Background(), "snap-1")
		return err == nil && entry.ScrollY == 777
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSocketProxyFetch(t *testing.T) {
	var gotReferer string
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotReferer = r.Header.Get("Referer")
		w.Header().Set("Content-Type", "text/css")
		_, _ = w.Write([]byte(".proxied{top:0}"))
	}))
	defer origin.Close()

	f := newFixture(t)
	wsURL := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws/snap-1"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	env, err := bridge.NewEnvelope(bridge.TypeResourceRequest, bridge.ResourceRequestPayload{
		ID:           "req-1",
		URL:          origin.URL + "/a.css",
		ResponseType: bridge.ResponseTypeText,
	})
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(env))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var reply bridge.Envelope
	require.NoError(t, conn.ReadJSON(&reply))
	require.Equal(t, bridge.TypeResourceRequest, reply.Type)

	var proxied bridge.ResourceResponse
	require.NoError(t, json.Unmarshal(reply.Payload, &proxied))
	assert.Equal(t, "req-1", proxied.ID)
	assert.True(t, proxied.Success)
	assert.Equal(t, ".proxied{top:0}", proxied.Body)
	assert.Equal(t, "https://example.com/", gotReferer)
}

func TestSocketUnknownEnvelopeIgnored(t *testing.T) {
	f := newFixture(t)

	wsURL := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws/snap-1"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"MYSTERY","payload":{}}`)))

	// The connection survives an unknown envelope.
	env, err := bridge.NewEnvelope(bridge.TypeScroll, bridge.ScrollPayload{Y: 5})
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(env))
	require.Eventually(t, func() bool {
		entry, err := f.store.Get(context.Background(), "snap-1")
		return err == nil && entry.ScrollY == 5
	}, 2*time.Second, 10*time.Millisecond)
}

func TestInjectScriptWithoutHead(t *testing.T) {
	out := injectScript("<html><body>x</body></html>", "var a = 1;")
	assert.True(t, strings.HasPrefix(out, "<script>var a = 1;</script>"))
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(data)
}
