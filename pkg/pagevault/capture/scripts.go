package capture

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// stripScripts removes executable scripts from a (cloned) document while
// preserving structured-data scripts. Policy:
//
//   - any script with an external src is removed
//   - any script with an explicit module type is removed
//   - classic or untyped inline scripts are removed only when their text
//     matches one of the hydration signatures, targeting SPA bootstrap
//     code that would re-render a blank shell offline
//   - JSON and JSON-LD scripts are always kept
//
// The signature match is a best-effort heuristic, not a sound analysis;
// false positives and negatives are accepted.
func stripScripts(doc *html.Node, hydrationPatterns []string) {
	for _, script := range elementsByAtom(doc, atom.Script) {
		if !shouldStripScript(script, hydrationPatterns) {
			continue
		}
		if script.Parent != nil {
			script.Parent.RemoveChild(script)
		}
	}
}

func shouldStripScript(script *html.Node, hydrationPatterns []string) bool {
	typ := strings.ToLower(strings.TrimSpace(attr(script, "type")))

	if isStructuredDataType(typ) {
		return false
	}
	if attr(script, "src") != "" {
		return true
	}
	if typ == "module" {
		return true
	}
	if !isClassicScriptType(typ) {
		// Non-executable payloads (templates, shaders) pass through.
		return false
	}

	text := textContent(script)
	for _, pattern := range hydrationPatterns {
		if strings.Contains(text, pattern) {
			return true
		}
	}
	return false
}

func isStructuredDataType(typ string) bool {
	switch typ {
	case "application/json", "application/ld+json", "importmap", "speculationrules":
		return true
	}
	return strings.HasSuffix(typ, "+json")
}

func isClassicScriptType(typ string) bool {
	switch typ {
	case "", "text/javascript", "application/javascript", "text/ecmascript", "application/ecmascript":
		return true
	}
	return false
}
