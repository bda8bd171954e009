package bridge

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/jamesainslie/pagevault/pkg/pagevault/logging"
)

var logger = logging.Get("bridge")

// ErrBridgeClosed is returned when a request is issued on a closed correlator.
var ErrBridgeClosed = errors.New("bridge closed")

// SendFunc delivers an envelope to the peer side of the boundary.
type SendFunc func(Envelope) error

// Correlator is the request/response correlation table for proxied
// resource fetches. Each request is tagged with a unique id, dispatched
// through the send function, and fulfilled when a matching response
// arrives. Responses for unknown or already-fulfilled ids are silently
// dropped.
type Correlator struct {
	mu      sync.Mutex
	pending map[string]chan ResourceResponse
	send    SendFunc
	closed  bool
}

// NewCorrelator creates a correlator that dispatches requests via send.
func NewCorrelator(send SendFunc) *Correlator {
	return &Correlator{
		pending: make(map[string]chan ResourceResponse),
		send:    send,
	}
}

// Request dispatches a RESOURCE_REQUEST envelope and waits for the
// matching response or context cancellation. On cancellation the pending
// slot is freed and a late response is dropped.
func (c *Correlator) Request(ctx context.Context, url, responseType string, headers map[string]string) (ResourceResponse, error) {
	id := uuid.NewString()
	ch := make(chan ResourceResponse, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ResourceResponse{}, ErrBridgeClosed
	}
	c.pending[id] = ch
	c.mu.Unlock()

	env, err := NewEnvelope(TypeResourceRequest, ResourceRequestPayload{
		ID:           id,
		URL:          url,
		ResponseType: responseType,
		Headers:      headers,
	})
	if err == nil {
		err = c.send(env)
	}
	if err != nil {
		c.drop(id)
		return ResourceResponse{}, err
	}

	select {
	case resp := <-ch:
		return resp, nil
	case <-ctx.Done():
		c.drop(id)
		return ResourceResponse{}, ctx.Err()
	}
}

// Resolve fulfils a pending request by correlation id. Unknown ids are
// dropped without error; a second response for the same id is ignored.
func (c *Correlator) Resolve(resp ResourceResponse) {
	c.mu.Lock()
	ch, ok := c.pending[resp.ID]
	if ok {
		delete(c.pending, resp.ID)
	}
	c.mu.Unlock()

	if !ok {
		logger.Debug("dropping unmatched resource response", "id", resp.ID)
		return
	}
	ch <- resp
}

// Pending returns the number of in-flight requests.
func (c *Correlator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Close rejects future requests and abandons all pending ones.
func (c *Correlator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	for id := range c.pending {
		delete(c.pending, id)
	}
}

func (c *Correlator) drop(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}
