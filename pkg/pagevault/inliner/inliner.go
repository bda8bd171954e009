package inliner

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jamesainslie/pagevault/pkg/pagevault/logging"
	"github.com/jamesainslie/pagevault/pkg/pagevault/resolver"
)

var logger = logging.Get("inliner")

// errCycle marks an @import chain that re-enters a stylesheet currently
// being processed on the same call path. The offending @import statement
// is left untouched, which terminates the recursion.
var errCycle = errors.New("cyclic import")

var (
	// importRe matches @import with a url(...) or quoted target and an
	// optional trailing media query, up to the terminating semicolon.
	importRe = regexp.MustCompile(`(?i)@import\s+(?:url\(\s*['"]?([^'")]+?)['"]?\s*\)|"([^"]+)"|'([^']+)')([^;]*);`)

	// urlRe matches url(...) references, quoted or bare.
	urlRe = regexp.MustCompile(`(?i)url\(\s*['"]?([^'")]+?)['"]?\s*\)`)
)

// Inliner resolves and inlines the external references of stylesheets.
type Inliner struct {
	fetcher resolver.Fetcher

	// docURL is the current document location, used as the fallback base
	// when a reference does not resolve against its stylesheet's URL.
	docURL string
}

// New creates an Inliner fetching through f for a document at docURL.
func New(f resolver.Fetcher, docURL string) *Inliner {
	return &Inliner{fetcher: f, docURL: docURL}
}

// Stylesheet fetches the stylesheet at href (resolved against base) and
// returns fully self-contained CSS text. A root-level fetch failure is
// returned as an error; the caller leaves the referencing element alone.
func (in *Inliner) Stylesheet(ctx context.Context, cc *Context, href, base string) (string, error) {
	abs, err := resolver.Resolve(href, base, in.docURL)
	if err != nil {
		return "", err
	}
	return in.stylesheet(ctx, cc, abs, map[string]bool{})
}

// CSSText inlines the imports and url() references of raw CSS text, as
// found in <style> elements, against the given base URL.
func (in *Inliner) CSSText(ctx context.Context, cc *Context, cssText, base string) string {
	return in.process(ctx, cc, cssText, base, map[string]bool{})
}

// stylesheet fetches and processes one stylesheet by absolute URL,
// deduplicated through the capture context. visiting tracks the current
// call path to cut import cycles.
func (in *Inliner) stylesheet(ctx context.Context, cc *Context, abs string, visiting map[string]bool) (string, error) {
	if visiting[abs] {
		return "", fmt.Errorf("%w: %s", errCycle, abs)
	}

	res, owner := cc.beginCSS(abs)
	if !owner {
		return res.wait(ctx)
	}

	visiting[abs] = true
	defer delete(visiting, abs)

	text, err := resolver.FetchText(ctx, in.fetcher, abs)
	if err != nil {
		logger.Debug("stylesheet fetch failed", "url", abs, "error", err)
		res.complete("", err)
		return "", err
	}

	out := in.process(ctx, cc, text, abs, visiting)
	res.complete(out, nil)
	return out, nil
}

// process expands @import rules and rewrites url() references. Failed
// imports keep their original statement text verbatim; the url() pass
// only runs over the segments outside import statements so those
// statements stay untouched.
func (in *Inliner) process(ctx context.Context, cc *Context, cssText, base string, visiting map[string]bool) string {
	var out strings.Builder
	last := 0

	for _, m := range importRe.FindAllStringSubmatchIndex(cssText, -1) {
		out.WriteString(in.inlineURLs(ctx, cc, cssText[last:m[0]], base))
		last = m[1]

		statement := cssText[m[0]:m[1]]
		target := firstGroup(cssText, m, 1, 2, 3)
		media := ""
		if m[8] >= 0 {
			media = strings.TrimSpace(cssText[m[8]:m[9]])
		}

		inlined, err := in.importTarget(ctx, cc, target, base, visiting)
		if err != nil {
			out.WriteString(statement)
			continue
		}
		if media != "" {
			out.WriteString("@media " + media + " {\n" + inlined + "\n}")
		} else {
			out.WriteString(inlined)
		}
	}

	out.WriteString(in.inlineURLs(ctx, cc, cssText[last:], base))
	return out.String()
}

// importTarget resolves and recursively inlines one @import target.
func (in *Inliner) importTarget(ctx context.Context, cc *Context, target, base string, visiting map[string]bool) (string, error) {
	if resolver.IsLiteral(target) {
		return "", fmt.Errorf("literal import target %q", target)
	}
	abs, err := resolver.Resolve(target, base, in.docURL)
	if err != nil {
		return "", err
	}
	return in.stylesheet(ctx, cc, abs, visiting)
}

// inlineURLs rewrites every url(...) reference in css: inlined to a data
// URI when the fetch succeeds, rewritten to the absolute URL otherwise.
// A dangling relative reference is never left behind, since the final
// document's base context changes.
func (in *Inliner) inlineURLs(ctx context.Context, cc *Context, css, base string) string {
	var out strings.Builder
	last := 0

	for _, m := range urlRe.FindAllStringSubmatchIndex(css, -1) {
		out.WriteString(css[last:m[0]])
		last = m[1]

		ref := css[m[2]:m[3]]
		if resolver.IsLiteral(ref) {
			out.WriteString(css[m[0]:m[1]])
			continue
		}

		abs, err := resolver.Resolve(ref, base, in.docURL)
		if err != nil {
			out.WriteString(css[m[0]:m[1]])
			continue
		}

		uri, err := in.Asset(ctx, cc, abs)
		if err != nil {
			out.WriteString(`url("` + abs + `")`)
			continue
		}
		out.WriteString(`url("` + uri + `")`)
	}

	out.WriteString(css[last:])
	return out.String()
}

// Asset fetches one asset by absolute URL as a data URI, deduplicated
// per capture. The capture engine uses it directly for <img> elements.
func (in *Inliner) Asset(ctx context.Context, cc *Context, abs string) (string, error) {
	res, owner := cc.beginAsset(abs)
	if !owner {
		return res.wait(ctx)
	}

	uri, err := resolver.FetchDataURI(ctx, in.fetcher, abs)
	if err != nil {
		logger.Debug("asset fetch failed", "url", abs, "error", err)
		res.complete("", err)
		return "", err
	}
	res.complete(uri, nil)
	return uri, nil
}

// firstGroup returns the first non-empty capture group among idxs.
func firstGroup(s string, m []int, idxs ...int) string {
	for _, i := range idxs {
		if m[2*i] >= 0 {
			return s[m[2*i]:m[2*i+1]]
		}
	}
	return ""
}
