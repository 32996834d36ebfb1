package room

import "github.com/charmbracelet/lipgloss"

// CollapseMode decides what a boxed panel does when its zone is smaller
// than the configured minimums.
type CollapseMode int

const (
	// CollapseShow renders a "..." placeholder box when space allows.
	CollapseShow CollapseMode = iota
	// CollapseHide renders nothing.
	CollapseHide
)

// BoxConfig styles RenderZoneWithBox output.
type BoxConfig struct {
	Border       lipgloss.Border
	BorderStyle  lipgloss.Style
	MinWidth     int
	MinHeight    int
	CollapseMode CollapseMode
}

// DefaultBoxConfig returns a normal-border box with the stock minimums.
func DefaultBoxConfig() BoxConfig {
	return BoxConfig{
		Border:    lipgloss.NormalBorder(),
		MinWidth:  10,
		MinHeight: 3,
	}
}

// RenderZoneWithBox renders content inside a border sized to a zone's rect,
// suitable for SetZonePreRendered. Below the configured minimums the box
// collapses to a "..." placeholder (or nothing, per CollapseMode). The
// second return is false when there is nothing to draw.
func RenderZoneWithBox(ctx *RuntimeContext, zone ZoneID, content string, config BoxConfig) (string, bool) {
	rect, ok := ctx.Rect(zone)
	if !ok || rect.IsEmpty() {
		return "", false
	}

	body := content
	if rect.Width < config.MinWidth || rect.Height < config.MinHeight {
		if config.CollapseMode == CollapseHide {
			return "", false
		}
		if rect.Width < 5 || rect.Height < 3 {
			return "", false
		}
		body = "..."
	}

	// lipgloss width/height cover the content box; the border adds one
	// cell per side.
	style := config.BorderStyle.
		Border(config.Border).
		Width(rect.Width - 2).
		Height(rect.Height - 2).
		MaxWidth(rect.Width).
		MaxHeight(rect.Height)
	return style.Render(body), true
}
