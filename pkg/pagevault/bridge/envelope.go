// Package bridge defines the message boundary between the capture/replay
// page context and the host, and the correlation table used to proxy
// resource fetches across it.
//
// All traffic is JSON envelopes of the form {type, payload}. The host
// proxies RESOURCE_REQUEST fetches outside the page's network context and
// answers by correlation id; unmatched or malformed responses are dropped.
package bridge

import (
	"encoding/json"
	"fmt"
)

// Envelope message types.
const (
	// TypeScroll reports a throttled scroll position change.
	TypeScroll = "SCROLL"

	// TypePageSnapshot is the terminal success of a capture.
	TypePageSnapshot = "PAGE_SNAPSHOT"

	// TypeError is the terminal failure of a capture.
	TypeError = "ERROR"

	// TypeResourceRequest asks the host to proxy a resource fetch.
	TypeResourceRequest = "RESOURCE_REQUEST"
)

// Resource response types for TypeResourceRequest.
const (
	ResponseTypeText    = "text"
	ResponseTypeDataURL = "data-url"
)

// Envelope is the JSON-serializable wrapper for all boundary messages.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// NewEnvelope marshals payload into an envelope of the given type.
func NewEnvelope(typ string, payload any) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshaling %s payload: %w", typ, err)
	}
	return Envelope{Type: typ, Payload: data}, nil
}

// ScrollPayload reports the current scroll offset of a viewed page.
type ScrollPayload struct {
	Y   float64 `json:"y"`
	X   float64 `json:"x"`
	URL string  `json:"url"`
}

// SnapshotPayload carries the serialized result of a successful capture.
type SnapshotPayload struct {
	HTML    string  `json:"html"`
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	ScrollY float64 `json:"scrollY"`
}

// ErrorPayload carries the terminal failure of a capture.
type ErrorPayload struct {
	Message string `json:"message"`
}

// ResourceRequestPayload asks the host to fetch a resource on the page's
// behalf, tagged with a unique correlation id.
type ResourceRequestPayload struct {
	ID           string            `json:"id"`
	URL          string            `json:"url"`
	ResponseType string            `json:"responseType"`
	Headers      map[string]string `json:"headers,omitempty"`
}

// ResourceResponse answers a ResourceRequestPayload by correlation id.
// Body is set for text responses, DataURL for data-url responses.
type ResourceResponse struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
	Body    string `json:"body,omitempty"`
	DataURL string `json:"dataUrl,omitempty"`
	MIME    string `json:"mime,omitempty"`
	Error   string `json:"error,omitempty"`
}
