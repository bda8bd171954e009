// Package viewer serves saved snapshots for local replay. It renders the
// manifest as a browsable index, streams captured HTML with the scroll and
// navigation script injected, and carries the page-to-host message
// envelopes over a websocket per viewed entry.
package viewer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/jamesainslie/pagevault/pkg/pagevault/logging"
	"github.com/jamesainslie/pagevault/pkg/pagevault/pagescript"
	"github.com/jamesainslie/pagevault/pkg/pagevault/payload"
	"github.com/jamesainslie/pagevault/pkg/pagevault/store"
	"github.com/jamesainslie/pagevault/pkg/pagevault/types"
)

// Server replays stored snapshots over local HTTP.
type Server struct {
	store  *store.Store
	cache  *payload.Cache
	addr   string
	logger *logging.Logger

	httpServer *http.Server
}

// New creates a viewer serving the given store and payload cache on addr.
func New(st *store.Store, cache *payload.Cache, addr string) *Server {
	s := &Server{
		store:  st,
		cache:  cache,
		addr:   addr,
		logger: logging.Get("viewer"),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/", s.handleIndex)
	r.Get("/view/{id}", s.handleView)
	r.Get("/nav/{id}", s.handleNavCheck)
	r.Get("/ws/{id}", s.handleSocket)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the router, primarily for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe runs the server until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.ListenAndServe()
	}()
	s.logger.Info("viewer listening", "addr", s.addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpServer.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// handleIndex renders the saved-page listing, warming the payload cache
// with the most recent offline snapshots.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	entries, err := s.store.List(r.Context())
	if err != nil {
		http.Error(w, "failed to load manifest", http.StatusInternalServerError)
		return
	}
	go s.cache.WarmUp(context.Background(), entries)

	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n<html><head><title>pagevault</title></head><body><h1>Saved pages</h1><ul>")
	for _, e := range entries {
		title := html.EscapeString(e.DisplayTitle())
		if e.Mode == types.ModeOffline {
			sb.WriteString(fmt.Sprintf(`<li><a href="/view/%s">%s</a></li>`, e.ID, title))
		} else {
			sb.WriteString(fmt.Sprintf(`<li><a href="%s">%s</a> (bookmark)</li>`, html.EscapeString(e.URL), title))
		}
	}
	sb.WriteString("</ul></body></html>")

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(sb.String()))
}

// handleView streams a snapshot's HTML with the page script injected and
// marks the entry opened.
func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	entry, err := s.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		http.Error(w, "failed to load entry", http.StatusInternalServerError)
		return
	}

	if entry.Mode == types.ModeOnline {
		// Bookmarks have no stored content; send the viewer to the live page.
		http.Redirect(w, r, entry.URL, http.StatusTemporaryRedirect)
		return
	}

	doc, ok := s.cache.Preload(r.Context(), entry)
	if !ok {
		http.Error(w, "snapshot payload unavailable", http.StatusNotFound)
		return
	}

	script := pagescript.Build(pagescript.Options{
		ScrollY:   entry.ClampedScrollY(),
		BaseHref:  pagescript.BaseHref(entry.URL),
		SocketURL: s.socketURL(r, entry.ID),
	})
	rendered := injectScript(doc, script)

	if err := s.store.MarkOpened(r.Context(), id); err != nil {
		s.logger.Warn("failed to mark entry opened", "id", id, "error", err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(rendered))
}

// handleNavCheck applies the navigation policy for a viewed entry. The
// page script asks before following a link; rejected attempts surface as
// a banner.
func (s *Server) handleNavCheck(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	entry, err := s.store.Get(r.Context(), id)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	target := r.URL.Query().Get("target")
	allowed := pagescript.AllowNavigation(target, entry.URL, entry.Mode)

	w.Header().Set("Content-Type", "application/json")
	if allowed {
		_, _ = w.Write([]byte(`{"allowed":true}`))
		return
	}
	_, _ = fmt.Fprintf(w, `{"allowed":false,"banner":"This page was saved offline; open %s in a browser to follow links."}`,
		html.EscapeString(entry.URL))
}

// socketURL derives the websocket endpoint for an entry from the request
// host, so the injected script connects back to whichever address served
// the page.
func (s *Server) socketURL(r *http.Request, id string) string {
	scheme := "ws"
	if r.TLS != nil {
		scheme = "wss"
	}
	return fmt.Sprintf("%s://%s/ws/%s", scheme, r.Host, id)
}

// injectScript places the page script at the start of <head> so it runs
// before any page content. Documents without a head get the script
// prepended.
func injectScript(doc, script string) string {
	tag := "<script>" + script + "</script>"

	lower := strings.ToLower(doc)
	idx := strings.Index(lower, "<head")
	if idx >= 0 {
		if end := strings.IndexByte(doc[idx:], '>'); end >= 0 {
			insert := idx + end + 1
			var sb bytes.Buffer
			sb.WriteString(doc[:insert])
			sb.WriteString(tag)
			sb.WriteString(doc[insert:])
			return sb.String()
		}
	}
	return tag + doc
}
