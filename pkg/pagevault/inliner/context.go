// Package inliner rewrites CSS text into a self-contained form, replacing
// @import rules with their fetched content and url() references with data
// URIs. All fetches within one capture are deduplicated through a capture
// context: N references to the same resolved URL cost exactly one fetch.
package inliner

import (
	"context"
	"sync"
)

// result is an in-flight-or-resolved cache slot. done closes when the
// owner finishes; waiters then read val/err.
type result struct {
	done chan struct{}
	val  string
	err  error
}

func (r *result) complete(val string, err error) {
	r.val = val
	r.err = err
	close(r.done)
}

func (r *result) wait(ctx context.Context) (string, error) {
	select {
	case <-r.done:
		return r.val, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Context holds the caches scoped to a single capture operation: one for
// processed stylesheet text and one for asset data URIs, both keyed by
// resolved absolute URL. Contexts are never shared across captures, so
// sequential or concurrent captures cannot cross-contaminate.
type Context struct {
	mu     sync.Mutex
	css    map[string]*result
	assets map[string]*result
}

// NewContext creates an empty capture context.
func NewContext() *Context {
	return &Context{
		css:    make(map[string]*result),
		assets: make(map[string]*result),
	}
}

// beginCSS claims or joins the cache slot for a stylesheet URL.
// The second return is true when the caller owns the slot and must
// complete it.
func (c *Context) beginCSS(url string) (*result, bool) {
	return begin(&c.mu, c.css, url)
}

// beginAsset claims or joins the cache slot for an asset URL.
func (c *Context) beginAsset(url string) (*result, bool) {
	return begin(&c.mu, c.assets, url)
}

func begin(mu *sync.Mutex, cache map[string]*result, url string) (*result, bool) {
	mu.Lock()
	defer mu.Unlock()
	if r, ok := cache[url]; ok {
		return r, false
	}
	r := &result{done: make(chan struct{})}
	cache[url] = r
	return r, true
}
