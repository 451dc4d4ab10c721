package render

import (
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/headline-goat/trendline/internal/state"
)

// Palettes are indexed by variation display order and wrap around.
var (
	lightPalette = []string{"2563eb", "dc2626", "16a34a", "d97706", "7c3aed", "0891b2", "db2777", "4b5563"}
	darkPalette  = []string{"60a5fa", "f87171", "4ade80", "fbbf24", "a78bfa", "22d3ee", "f472b6", "9ca3af"}
)

type themeColors struct {
	background string
	text       string
	grid       string
}

var themes = map[state.Theme]themeColors{
	state.ThemeLight: {background: "ffffff", text: "1f2937", grid: "e5e7eb"},
	state.ThemeDark:  {background: "111827", text: "e5e7eb", grid: "374151"},
}

func palette(theme state.Theme) []string {
	if theme == state.ThemeDark {
		return darkPalette
	}
	return lightPalette
}

// ColorFor returns the hex color (no leading #) for the variation at index.
func ColorFor(index int, theme state.Theme) string {
	p := palette(theme)
	if index < 0 {
		index = 0
	}
	return p[index%len(p)]
}

// CSSColor is ColorFor with a leading '#'.
func CSSColor(index int, theme state.Theme) string {
	return "#" + ColorFor(index, theme)
}

func drawingColor(hex string) drawing.Color {
	return drawing.ColorFromHex(hex)
}

func colorsFor(theme state.Theme) themeColors {
	if c, ok := themes[theme]; ok {
		return c
	}
	return themes[state.ThemeLight]
}
