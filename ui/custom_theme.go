package ui

import (
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/theme"
)

var (
	brandPrimary = color.NRGBA{R: 0x25, G: 0x63, B: 0xEB, A: 0xFF}
	userBubble   = color.NRGBA{R: 0x25, G: 0x63, B: 0xEB, A: 0x22}
	botBubble    = color.NRGBA{R: 0x6B, G: 0x72, B: 0x80, A: 0x1A}
)

// askforgeTheme is the default theme with the brand accent and slightly
// larger text for long answers.
type askforgeTheme struct {
	baseFontSize float32
	baseTheme    fyne.Theme
}

func newAskforgeTheme() fyne.Theme {
	return &askforgeTheme{
		baseFontSize: 14,
		baseTheme:    theme.DefaultTheme(),
	}
}

func (t *askforgeTheme) Color(name fyne.ThemeColorName, variant fyne.ThemeVariant) color.Color {
	switch name {
	case theme.ColorNamePrimary, theme.ColorNameHyperlink:
		return brandPrimary
	case theme.ColorNameDisabled:
		// read-only entries hold selectable message text
		return t.baseTheme.Color(theme.ColorNameForeground, variant)
	}
	return t.baseTheme.Color(name, variant)
}

func (t *askforgeTheme) Font(style fyne.TextStyle) fyne.Resource {
	return t.baseTheme.Font(style)
}

func (t *askforgeTheme) Icon(name fyne.ThemeIconName) fyne.Resource {
	return t.baseTheme.Icon(name)
}

func (t *askforgeTheme) Size(name fyne.ThemeSizeName) float32 {
	switch name {
	case theme.SizeNameText:
		return t.baseFontSize
	case theme.SizeNameHeadingText:
		return t.baseFontSize * 1.5
	case theme.SizeNameSubHeadingText:
		return t.baseFontSize * 1.2
	case theme.SizeNameCaptionText:
		return t.baseFontSize * 0.85
	default:
		return t.baseTheme.Size(name)
	}
}
