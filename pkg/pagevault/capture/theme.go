package capture

import (
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ThemeMode selects the appearance applied to the saved copy.
type ThemeMode string

const (
	// ThemeDevice keeps whatever the device renders; no override.
	ThemeDevice ThemeMode = "device"

	// ThemeLight forces a light appearance.
	ThemeLight ThemeMode = "light"

	// ThemeDark forces a dark appearance.
	ThemeDark ThemeMode = "dark"
)

// themeStyleID tags the injected inversion style element so repeated
// captures can find and remove it.
const themeStyleID = "pagevault-theme-invert"

// invertCSS flips the whole document and double-inverts media elements so
// photographs keep their natural colors. The hue rotation compensates for
// the channel shift inversion introduces.
const invertCSS = `html {
  filter: invert(1) hue-rotate(180deg);
}
img, picture, video, canvas, iframe, svg image {
  filter: invert(1) hue-rotate(180deg);
}`

// needsInversion reports whether the requested appearance disagrees with
// the device's actual color scheme.
func needsInversion(mode ThemeMode, deviceDark bool) bool {
	switch mode {
	case ThemeLight:
		return deviceDark
	case ThemeDark:
		return !deviceDark
	default:
		return false
	}
}

// removeThemeStyle drops any previously injected inversion style.
// Safe to call when none exists.
func removeThemeStyle(doc *html.Node) {
	for _, style := range elementsByAtom(doc, atom.Style) {
		if attr(style, "id") == themeStyleID && style.Parent != nil {
			style.Parent.RemoveChild(style)
		}
	}
}

// applyTheme removes any prior inversion style and injects a fresh one
// when the requested mode disagrees with the device scheme. Applying
// twice yields the same DOM as applying once.
func applyTheme(doc *html.Node, mode ThemeMode, deviceDark bool) {
	removeThemeStyle(doc)

	if !needsInversion(mode, deviceDark) {
		return
	}

	head := documentHead(doc)
	if head == nil {
		return
	}

	style := newStyleElement(invertCSS)
	setAttr(style, "id", themeStyleID)
	head.AppendChild(style)
}
