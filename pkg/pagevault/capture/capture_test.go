package capture

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"

	"golang.org/x/net/html"

	"github.com/jamesainslie/pagevault/pkg/pagevault/bridge"
	"github.com/jamesainslie/pagevault/pkg/pagevault/resolver"
)

type stubFetcher struct {
	mu        sync.Mutex
	responses map[string]string
	counts    map[string]int
}

func newStubFetcher(responses map[string]string) *stubFetcher {
	return &stubFetcher{responses: responses, counts: make(map[string]int)}
}

func (f *stubFetcher) Fetch(_ context.Context, url string, _ resolver.Kind) (*resolver.Resource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[url]++
	body, ok := f.responses[url]
	if !ok {
		return nil, fmt.Errorf("no response for %s", url)
	}
	mime := "text/css"
	if strings.HasSuffix(url, ".png") {
		mime = "image/png"
	}
	return &resolver.Resource{Body: []byte(body), MIME: mime}, nil
}

func (f *stubFetcher) count(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[url]
}

func parseDoc(t *testing.T, src string) *html.Node {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		t.Fatalf("parsing test document: %v", err)
	}
	return doc
}

func TestBasicCaptureRoundTrip(t *testing.T) {
	t.Parallel()

	const pageURL = "https://example.com/page"
	f := newStubFetcher(map[string]string{
		pageURL: `<!DOCTYPE html><html><head><title>Demo</title>
			<link rel="stylesheet" href="/a.css"></head>
			<body><img src="/c.png"></body></html>`,
		"https://example.com/a.css": `body{background:url(/b.png)}`,
		"https://example.com/b.png": "PNG-B",
		"https://example.com/c.png": "PNG-C",
	})
	e := NewEngine(f, Options{})

	snap, err := e.Capture(context.Background(), Request{URL: pageURL})
	if err != nil {
		t.Fatalf("Capture() error = %v", err)
	}

	if strings.Contains(snap.HTML, `<link rel="stylesheet"`) {
		t.Error("captured HTML still contains a stylesheet link")
	}
	if !strings.Contains(snap.HTML, `url(&#34;data:`) && !strings.Contains(snap.HTML, `url("data:`) {
		t.Errorf("captured HTML missing inlined background: %s", snap.HTML)
	}
	if !strings.Contains(snap.HTML, `<img src="data:`) {
		t.Errorf("captured HTML missing inlined image: %s", snap.HTML)
	}
	if !strings.HasPrefix(snap.HTML, "<!DOCTYPE html>") {
		t.Error("captured HTML missing doctype prefix")
	}
	if snap.Title != "Demo" {
		t.Errorf("Title = %q, want Demo", snap.Title)
	}
}

func TestTitleDefaultsToURL(t *testing.T) {
	t.Parallel()

	const pageURL = "https://example.com/untitled"
	f := newStubFetcher(map[string]string{
		pageURL: `<html><head></head><body>hi</body></html>`,
	})
	e := NewEngine(f, Options{})

	snap, err := e.Capture(context.Background(), Request{URL: pageURL})
	if err != nil {
		t.Fatalf("Capture() error = %v", err)
	}
	if snap.Title != pageURL {
		t.Errorf("Title = %q, want URL fallback", snap.Title)
	}
}

func TestDuplicateLinksFetchedOnce(t *testing.T) {
	t.Parallel()

	const pageURL = "https://example.com/fanout"
	links := strings.Repeat(`<link rel="stylesheet" href="/shared.css">`, 10)
	f := newStubFetcher(map[string]string{
		pageURL:                        `<html><head>` + links + `</head><body></body></html>`,
		"https://example.com/shared.css": `.s{margin:0}`,
	})
	e := NewEngine(f, Options{})

	snap, err := e.Capture(context.Background(), Request{URL: pageURL})
	if err != nil {
		t.Fatalf("Capture() error = %v", err)
	}
	if got := f.count("https://example.com/shared.css"); got != 1 {
		t.Errorf("shared.css fetched %d times, want 1", got)
	}
	if got := strings.Count(snap.HTML, ".s{margin:0}"); got != 10 {
		t.Errorf("inlined content appears %d times, want 10", got)
	}
}

func TestFailedStylesheetLeftUntouched(t *testing.T) {
	t.Parallel()

	const pageURL = "https://example.com/broken"
	f := newStubFetcher(map[string]string{
		pageURL: `<html><head><link rel="stylesheet" href="/gone.css"></head><body></body></html>`,
	})
	e := NewEngine(f, Options{})

	snap, err := e.Capture(context.Background(), Request{URL: pageURL})
	if err != nil {
		t.Fatalf("Capture() error = %v", err)
	}
	if !strings.Contains(snap.HTML, `href="/gone.css"`) {
		t.Error("failed stylesheet link should remain in output")
	}
}

func TestFailedImageKeepsOriginalSrc(t *testing.T) {
	t.Parallel()

	const pageURL = "https://example.com/img"
	f := newStubFetcher(map[string]string{
		pageURL: `<html><body><img src="/gone.png"></body></html>`,
	})
	e := NewEngine(f, Options{})

	snap, err := e.Capture(context.Background(), Request{URL: pageURL})
	if err != nil {
		t.Fatalf("Capture() error = %v", err)
	}
	if !strings.Contains(snap.HTML, `src="/gone.png"`) {
		t.Error("failed image should keep its original src")
	}
}

func TestThemeToggleIdempotent(t *testing.T) {
	t.Parallel()

	render := func(doc *html.Node) string {
		var sb strings.Builder
		_ = html.Render(&sb, doc)
		return sb.String()
	}

	modes := []ThemeMode{ThemeDevice, ThemeLight, ThemeDark}
	for _, mode := range modes {
		for _, deviceDark := range []bool{false, true} {
			name := fmt.Sprintf("%s/deviceDark=%v", mode, deviceDark)
			t.Run(name, func(t *testing.T) {
				t.Parallel()

				once := parseDoc(t, `<html><head></head><body></body></html>`)
				applyTheme(once, mode, deviceDark)

				twice := parseDoc(t, `<html><head></head><body></body></html>`)
				applyTheme(twice, mode, deviceDark)
				applyTheme(twice, mode, deviceDark)

				if render(once) != render(twice) {
					t.Error("applying theme twice differs from applying once")
				}

				inverted := strings.Contains(render(once), themeStyleID)
				if inverted != needsInversion(mode, deviceDark) {
					t.Errorf("inversion presence = %v, want %v", inverted, needsInversion(mode, deviceDark))
				}
			})
		}
	}
}

func TestScriptStrippingPolicy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		script string
		keep   bool
	}{
		{"external src removed", `<script src="/app.js"></script>`, false},
		{"module removed", `<script type="module">import x from "./x.js"</script>`, false},
		{"hydration inline removed", `<script>ReactDOM.hydrate(App, root)</script>`, false},
		{"createRoot removed", `<script>const r = createRoot(el); r.render(x)</script>`, false},
		{"benign inline kept", `<script>console.log("hello")</script>`, true},
		{"json kept", `<script type="application/json">{"a":1}</script>`, true},
		{"json-ld kept", `<script type="application/ld+json">{"@context":"x"}</script>`, true},
		{"template kept", `<script type="text/x-template"><div></div></script>`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			doc := parseDoc(t, `<html><head></head><body>`+tt.script+`</body></html>`)
			stripScripts(doc, []string{"hydrate", "createRoot", "ReactDOM.render"})

			var sb strings.Builder
			_ = html.Render(&sb, doc)
			got := strings.Contains(sb.String(), "<script")
			if got != tt.keep {
				t.Errorf("script kept = %v, want %v (output: %s)", got, tt.keep, sb.String())
			}
		})
	}
}

func TestCaptureDoesNotMutateLiveScripts(t *testing.T) {
	t.Parallel()

	const pageURL = "https://example.com/live"
	f := newStubFetcher(map[string]string{
		pageURL: `<html><head></head><body><script src="/app.js"></script></body></html>`,
	})
	e := NewEngine(f, Options{HydrationPatterns: []string{"hydrate"}})

	doc := parseDoc(t, `<html><head></head><body><script src="/app.js"></script></body></html>`)
	snap, err := e.CaptureDocument(context.Background(), doc, Request{URL: pageURL})
	if err != nil {
		t.Fatalf("CaptureDocument() error = %v", err)
	}

	if strings.Contains(snap.HTML, "<script") {
		t.Error("serialized snapshot should not contain the external script")
	}

	// The live document keeps its script: stripping happens on the clone.
	var sb strings.Builder
	_ = html.Render(&sb, doc)
	if !strings.Contains(sb.String(), "<script") {
		t.Error("live document lost its script; clone-before-strip violated")
	}
}

func TestReportEmitsExactlyOneTerminalEnvelope(t *testing.T) {
	t.Parallel()

	t.Run("success", func(t *testing.T) {
		t.Parallel()
		const pageURL = "https://example.com/ok"
		f := newStubFetcher(map[string]string{
			pageURL: `<html><head><title>T</title></head><body></body></html>`,
		})
		e := NewEngine(f, Options{})

		var envs []bridge.Envelope
		e.Report(context.Background(), Request{URL: pageURL, ScrollY: 42}, func(env bridge.Envelope) error {
			envs = append(envs, env)
			return nil
		})

		if len(envs) != 1 {
			t.Fatalf("got %d envelopes, want exactly 1", len(envs))
		}
		if envs[0].Type != bridge.TypePageSnapshot {
			t.Fatalf("envelope type = %s, want PAGE_SNAPSHOT", envs[0].Type)
		}
		var p bridge.SnapshotPayload
		if err := json.Unmarshal(envs[0].Payload, &p); err != nil {
			t.Fatalf("unmarshaling payload: %v", err)
		}
		if p.Title != "T" || p.URL != pageURL || p.ScrollY != 42 {
			t.Errorf("payload = %+v, want title/url/scroll carried through", p)
		}
	})

	t.Run("failure", func(t *testing.T) {
		t.Parallel()
		f := newStubFetcher(nil)
		e := NewEngine(f, Options{})

		var envs []bridge.Envelope
		e.Report(context.Background(), Request{URL: "https://example.com/missing"}, func(env bridge.Envelope) error {
			envs = append(envs, env)
			return nil
		})

		if len(envs) != 1 {
			t.Fatalf("got %d envelopes, want exactly 1", len(envs))
		}
		if envs[0].Type != bridge.TypeError {
			t.Fatalf("envelope type = %s, want ERROR", envs[0].Type)
		}
		var p bridge.ErrorPayload
		if err := json.Unmarshal(envs[0].Payload, &p); err != nil {
			t.Fatalf("unmarshaling payload: %v", err)
		}
		if p.Message == "" {
			t.Error("error payload missing message")
		}
	})
}

func TestInlineStyleElementProcessed(t *testing.T) {
	t.Parallel()

	const pageURL = "https://example.com/styled"
	f := newStubFetcher(map[string]string{
		pageURL: `<html><head><style>div{background:url(/b.png)}</style></head><body></body></html>`,
		"https://example.com/b.png": "PNG",
	})
	e := NewEngine(f, Options{})

	snap, err := e.Capture(context.Background(), Request{URL: pageURL})
	if err != nil {
		t.Fatalf("Capture() error = %v", err)
	}
	if !strings.Contains(snap.HTML, "data:image/png") && !strings.Contains(snap.HTML, "data:") {
		t.Errorf("style element asset not inlined: %s", snap.HTML)
	}
}

func TestPreloadStyleLinkInlined(t *testing.T) {
	t.Parallel()

	const pageURL = "https://example.com/preload"
	f := newStubFetcher(map[string]string{
		pageURL: `<html><head><link rel="preload" as="style" href="/a.css"><link rel="icon" href="/fav.ico"></head><body></body></html>`,
		"https://example.com/a.css": `.p{top:0}`,
	})
	e := NewEngine(f, Options{})

	snap, err := e.Capture(context.Background(), Request{URL: pageURL})
	if err != nil {
		t.Fatalf("Capture() error = %v", err)
	}
	if !strings.Contains(snap.HTML, ".p{top:0}") {
		t.Error("preload-as-style link should be inlined")
	}
	if !strings.Contains(snap.HTML, `href="/fav.ico"`) {
		t.Error("non-stylesheet links must pass through untouched")
	}
}
