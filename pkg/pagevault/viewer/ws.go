package viewer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/jamesainslie/pagevault/pkg/pagevault/bridge"
	"github.com/jamesainslie/pagevault/pkg/pagevault/config"
	"github.com/jamesainslie/pagevault/pkg/pagevault/resolver"
	"github.com/jamesainslie/pagevault/pkg/pagevault/store"
	"github.com/jamesainslie/pagevault/pkg/pagevault/types"
)

// maxProxyBody bounds host-side proxy fetches, matching the direct path.
const maxProxyBody = 32 << 20

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// The viewer binds to loopback; pages it serves are the only callers.
		return true
	},
}

// session is one websocket connection for a viewed entry.
type session struct {
	server *Server
	entry  *types.SnapshotEntry
	conn   *websocket.Conn

	writeMu    sync.Mutex
	correlator *bridge.Correlator
	httpClient *http.Client
}

// handleSocket upgrades the connection and runs the envelope loop for the
// viewed entry.
func (s *Server) handleSocket(w http.ResponseWriter, r *http.Request) {
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

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "id", id, "error", err)
		return
	}

	sess := &session{
		server:     s,
		entry:      entry,
		conn:       conn,
		httpClient: &http.Client{Timeout: config.DefaultFetchTimeout},
	}
	sess.correlator = bridge.NewCorrelator(sess.send)
	sess.run(r.Context())
}

// send writes one envelope to the page, serialized across goroutines.
func (sess *session) send(env bridge.Envelope) error {
	sess.writeMu.Lock()
	defer sess.writeMu.Unlock()
	return sess.conn.WriteJSON(env)
}

// run reads envelopes until the connection drops.
func (sess *session) run(ctx context.Context) {
	defer sess.conn.Close()
	defer sess.correlator.Close()

	logger := sess.server.logger
	for {
		var env bridge.Envelope
		if err := sess.conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("websocket closed", "id", sess.entry.ID, "error", err)
			}
			return
		}

		switch env.Type {
		case bridge.TypeScroll:
			sess.handleScroll(ctx, env.Payload)
		case bridge.TypeResourceRequest:
			sess.handleResource(ctx, env.Payload)
		case bridge.TypeError:
			var p bridge.ErrorPayload
			if err := json.Unmarshal(env.Payload, &p); err == nil {
				logger.Warn("page reported error", "id", sess.entry.ID, "message", p.Message)
			}
		default:
			// Unknown envelope types are dropped, never an error.
			logger.Debug("dropping unknown envelope", "type", env.Type)
		}
	}
}

func (sess *session) handleScroll(ctx context.Context, payload json.RawMessage) {
	var p bridge.ScrollPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return
	}
	if err := sess.server.store.UpdateScrollPosition(ctx, sess.entry.ID, p.Y); err != nil {
		sess.server.logger.Warn("scroll update failed", "id", sess.entry.ID, "error", err)
	}
}

// handleResource services the fallback fetch path. A payload carrying a
// url is a request from the page for a host-side proxy fetch; anything
// else is a response to a request this side issued, matched by id.
func (sess *session) handleResource(ctx context.Context, payload json.RawMessage) {
	var req bridge.ResourceRequestPayload
	if err := json.Unmarshal(payload, &req); err == nil && req.URL != "" {
		go sess.proxyFetch(ctx, req)
		return
	}

	var resp bridge.ResourceResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return
	}
	sess.correlator.Resolve(resp)
}

// proxyFetch performs the requested fetch outside the page's security
// context and replies with a response envelope carrying the same id.
func (sess *session) proxyFetch(ctx context.Context, req bridge.ResourceRequestPayload) {
	resp := bridge.ResourceResponse{ID: req.ID}

	body, mime, err := sess.doFetch(ctx, req)
	if err != nil {
		resp.Error = err.Error()
	} else {
		resp.Success = true
		if req.ResponseType == bridge.ResponseTypeDataURL {
			resp.DataURL = resolver.DataURI(mime, body)
			resp.MIME = mime
		} else {
			resp.Body = string(body)
		}
	}

	env, err := bridge.NewEnvelope(bridge.TypeResourceRequest, resp)
	if err != nil {
		return
	}
	if err := sess.send(env); err != nil {
		sess.server.logger.Debug("proxy response send failed", "id", req.ID, "error", err)
	}
}

func (sess *session) doFetch(ctx context.Context, req bridge.ResourceRequestPayload) ([]byte, string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return nil, "", err
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	if ref := resolver.SynthesizeReferer(sess.entry.URL); ref != "" && httpReq.Header.Get("Referer") == "" {
		httpReq.Header.Set("Referer", ref)
	}

	httpResp, err := sess.httpClient.Do(httpReq)
	if err != nil {
		return nil, "", err
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, "", errors.New("unexpected status " + httpResp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxProxyBody))
	if err != nil {
		return nil, "", err
	}
	return body, httpResp.Header.Get("Content-Type"), nil
}
