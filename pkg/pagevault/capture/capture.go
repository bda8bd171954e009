// Package capture turns a live web document into a self-contained,
// replayable HTML snapshot. Stylesheets (including nested imports and
// url() assets) and images are inlined as data so the result renders with
// no network access; executable scripts are stripped by policy before
// serialization.
package capture

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/sync/errgroup"

	"github.com/jamesainslie/pagevault/pkg/pagevault/bridge"
	"github.com/jamesainslie/pagevault/pkg/pagevault/inliner"
	"github.com/jamesainslie/pagevault/pkg/pagevault/logging"
	"github.com/jamesainslie/pagevault/pkg/pagevault/resolver"
)

var logger = logging.Get("capture")

// imageWorkers bounds concurrent image fetches within one capture.
const imageWorkers = 8

// Request describes one capture invocation.
type Request struct {
	// URL is the address of the document to capture.
	URL string

	// Theme is the appearance applied before serialization.
	Theme ThemeMode

	// DeviceDark is the device's actual color scheme, used to decide
	// whether Theme requires an inversion overlay.
	DeviceDark bool

	// ScrollY is the current scroll offset, carried into the result.
	ScrollY float64
}

// Snapshot is the terminal success of a capture.
type Snapshot struct {
	HTML    string
	Title   string
	URL     string
	ScrollY float64
}

// Engine orchestrates full-page snapshotting. Captures on one Engine are
// serialized: a second call blocks until the first completes, so the
// theme overlay and in-place inlining mutations never interleave.
type Engine struct {
	fetcher           resolver.Fetcher
	hydrationPatterns []string

	mu sync.Mutex
}

// Options configures an Engine.
type Options struct {
	// HydrationPatterns overrides the inline-script signatures stripped
	// from captures. Nil keeps the caller's configured defaults.
	HydrationPatterns []string
}

// NewEngine creates a capture engine fetching through f.
func NewEngine(f resolver.Fetcher, opts Options) *Engine {
	return &Engine{
		fetcher:           f,
		hydrationPatterns: opts.HydrationPatterns,
	}
}

// Capture fetches the document at req.URL and produces a snapshot.
func (e *Engine) Capture(ctx context.Context, req Request) (*Snapshot, error) {
	text, err := resolver.FetchText(ctx, e.fetcher, req.URL)
	if err != nil {
		return nil, fmt.Errorf("fetching document: %w", err)
	}

	doc, err := html.Parse(strings.NewReader(text))
	if err != nil {
		return nil, fmt.Errorf("parsing document: %w", err)
	}

	return e.CaptureDocument(ctx, doc, req)
}

// CaptureDocument runs the capture pipeline over an already-parsed
// document. The document is mutated in place by theme application and
// inlining; sanitization happens on a clone.
func (e *Engine) CaptureDocument(ctx context.Context, doc *html.Node, req Request) (*Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	applyTheme(doc, req.Theme, req.DeviceDark)

	cc := inliner.NewContext()
	in := inliner.New(e.fetcher, req.URL)

	e.inlineStylesheets(ctx, in, cc, doc, req.URL)
	e.inlineImages(ctx, in, cc, doc, req.URL)

	clone := cloneTree(doc)
	stripScripts(clone, e.hydrationPatterns)
	removeDoctypes(clone)

	var buf bytes.Buffer
	buf.WriteString("<!DOCTYPE html>\n")
	if err := html.Render(&buf, clone); err != nil {
		return nil, fmt.Errorf("serializing document: %w", err)
	}

	title := documentTitle(doc)
	if title == "" {
		title = req.URL
	}

	return &Snapshot{
		HTML:    buf.String(),
		Title:   title,
		URL:     req.URL,
		ScrollY: req.ScrollY,
	}, nil
}

// Report runs a capture and delivers exactly one terminal envelope to
// send: PAGE_SNAPSHOT on success, ERROR on any failure including panics.
// The host is never left waiting.
func (e *Engine) Report(ctx context.Context, req Request, send bridge.SendFunc) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("capture panicked", "url", req.URL, "panic", r)
			sendError(send, fmt.Sprintf("capture panicked: %v", r))
		}
	}()

	snap, err := e.Capture(ctx, req)
	if err != nil {
		sendError(send, err.Error())
		return
	}

	env, err := bridge.NewEnvelope(bridge.TypePageSnapshot, bridge.SnapshotPayload{
		HTML:    snap.HTML,
		Title:   snap.Title,
		URL:     snap.URL,
		ScrollY: snap.ScrollY,
	})
	if err != nil {
		sendError(send, err.Error())
		return
	}
	if err := send(env); err != nil {
		logger.Warn("delivering snapshot failed", "url", req.URL, "error", err)
	}
}

func sendError(send bridge.SendFunc, message string) {
	env, err := bridge.NewEnvelope(bridge.TypeError, bridge.ErrorPayload{Message: message})
	if err != nil {
		return
	}
	_ = send(env)
}

// inlineStylesheets replaces stylesheet <link> elements with <style>
// elements holding self-contained CSS, and inlines the url()/@import
// references of existing <style> elements. A failed root fetch leaves the
// original element untouched.
func (e *Engine) inlineStylesheets(ctx context.Context, in *inliner.Inliner, cc *inliner.Context, doc *html.Node, baseURL string) {
	for _, link := range elementsByAtom(doc, atom.Link) {
		if !isStylesheetLink(link) {
			continue
		}
		href := attr(link, "href")
		if href == "" || resolver.IsLiteral(href) {
			continue
		}

		css, err := in.Stylesheet(ctx, cc, href, baseURL)
		if err != nil {
			logger.Debug("leaving stylesheet link untouched", "href", href, "error", err)
			continue
		}

		style := newStyleElement(css)
		if media := attr(link, "media"); media != "" {
			setAttr(style, "media", media)
		}
		link.Parent.InsertBefore(style, link)
		link.Parent.RemoveChild(link)
	}

	for _, style := range elementsByAtom(doc, atom.Style) {
		if attr(style, "id") == themeStyleID {
			continue
		}
		text := textContent(style)
		if strings.TrimSpace(text) == "" {
			continue
		}
		setTextContent(style, in.CSSText(ctx, cc, text, baseURL))
	}
}

// isStylesheetLink matches rel=stylesheet and rel=preload as=style links;
// all other <link> elements pass through untouched.
func isStylesheetLink(link *html.Node) bool {
	rel := strings.ToLower(attr(link, "rel"))
	if strings.Contains(rel, "stylesheet") {
		return true
	}
	return strings.Contains(rel, "preload") && strings.EqualFold(attr(link, "as"), "style")
}

// inlineImages rewrites <img src> references to data URIs. Fetches run
// concurrently, deduplicated per resolved URL through the capture
// context; DOM mutation happens after all fetches settle. A failed image
// keeps its original src.
func (e *Engine) inlineImages(ctx context.Context, in *inliner.Inliner, cc *inliner.Context, doc *html.Node, baseURL string) {
	imgs := elementsByAtom(doc, atom.Img)

	type outcome struct {
		node *html.Node
		uri  string
	}
	results := make([]outcome, len(imgs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(imageWorkers)

	for i, img := range imgs {
		src := attr(img, "src")
		if src == "" || resolver.IsLiteral(src) {
			continue
		}
		abs, err := resolver.Resolve(src, baseURL)
		if err != nil {
			continue
		}
		g.Go(func() error {
			uri, err := in.Asset(gctx, cc, abs)
			if err != nil {
				logger.Debug("image fetch failed", "src", src, "error", err)
				return nil // best-effort per resource
			}
			results[i] = outcome{node: img, uri: uri}
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range results {
		if r.node != nil {
			setAttr(r.node, "src", r.uri)
		}
	}
}
