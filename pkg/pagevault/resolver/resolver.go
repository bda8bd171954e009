// Package resolver resolves and fetches the external resources referenced
// by a captured page. It builds absolute URLs from relative references,
// fetches bytes either directly or through the host bridge, and converts
// binary payloads to embeddable data URIs.
package resolver

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// ErrUnresolvable is returned when a reference cannot be made absolute
// against any of the supplied bases.
var ErrUnresolvable = errors.New("unresolvable reference")

// literalPrefixes are reference schemes passed through unresolved.
// They already carry their content or are non-fetchable by design.
var literalPrefixes = []string{"data:", "blob:", "javascript:", "about:"}

// IsLiteral reports whether ref should be passed through untouched:
// data/blob/javascript/about schemes and bare fragment references.
func IsLiteral(ref string) bool {
	if ref == "" || strings.HasPrefix(ref, "#") {
		return true
	}
	lower := strings.ToLower(strings.TrimSpace(ref))
	for _, p := range literalPrefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return false
}

// Resolve builds an absolute URL for ref, trying each base in order.
// A ref that is already absolute resolves against any base unchanged.
// All bases failing yields ErrUnresolvable.
func Resolve(ref string, bases ...string) (string, error) {
	refURL, refErr := url.Parse(strings.TrimSpace(ref))
	if refErr == nil && refURL.IsAbs() {
		return refURL.String(), nil
	}

	for _, base := range bases {
		if base == "" {
			continue
		}
		baseURL, err := url.Parse(base)
		if err != nil || !baseURL.IsAbs() {
			continue
		}
		if refErr != nil {
			continue
		}
		return baseURL.ResolveReference(refURL).String(), nil
	}

	return "", fmt.Errorf("%w: %q", ErrUnresolvable, ref)
}

// DataURI encodes body as a standards-compliant base64 data URI.
// When mime is empty the type is sniffed from the bytes.
func DataURI(mime string, body []byte) string {
	if mime == "" {
		mime = mimetype.Detect(body).String()
	}
	// Strip charset parameters; data URIs carry the bare type.
	if idx := strings.IndexByte(mime, ';'); idx >= 0 {
		mime = mime[:idx]
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(body)
}

// SynthesizeReferer derives the Referer header value sent on proxied
// fetches: the origin of the current location with a trailing slash.
func SynthesizeReferer(location string) string {
	u, err := url.Parse(location)
	if err != nil || !u.IsAbs() {
		return ""
	}
	return u.Scheme + "://" + u.Host + "/"
}
