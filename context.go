package room

import "strings"

// zoneUpdate is one queued content replacement.
type zoneUpdate struct {
	zone        ZoneID
	lines       []string
	preRendered bool
}

// RuntimeContext is the per-hook handle plugins use to interact with the
// runtime. Side effects are collected and applied after the hook returns,
// so a plugin never holds a live reference into the coordinator. Contexts
// are valid only for the duration of the hook call.
type RuntimeContext struct {
	rects  map[ZoneID]Rect
	shared *SharedState

	zoneUpdates     []zoneUpdate
	redrawRequested bool
	exitRequested   bool
	cursor          cursorUpdate
	reportedError   *RuntimeError
}

func newRuntimeContext(rects map[ZoneID]Rect, shared *SharedState) *RuntimeContext {
	return &RuntimeContext{rects: rects, shared: shared}
}

// SetZone queues plain-text content for a zone. Newlines split into logical
// lines; the renderer wraps and clips them to the zone rect.
func (c *RuntimeContext) SetZone(zone ZoneID, content string) {
	c.SetZoneLines(zone, strings.Split(content, "\n"))
}

// SetZoneLines queues plain-text logical lines for a zone.
func (c *RuntimeContext) SetZoneLines(zone ZoneID, lines []string) {
	c.zoneUpdates = append(c.zoneUpdates, zoneUpdate{zone: zone, lines: lines})
	c.redrawRequested = true
}

// SetZonePreRendered queues ANSI-bearing content the renderer blits
// verbatim, clamping each line to the rect width without re-wrapping.
func (c *RuntimeContext) SetZonePreRendered(zone ZoneID, content string) {
	c.zoneUpdates = append(c.zoneUpdates, zoneUpdate{
		zone:        zone,
		lines:       strings.Split(content, "\n"),
		preRendered: true,
	})
	c.redrawRequested = true
}

// RequestRender asks for a render pass even if no zone changed. Idempotent.
func (c *RuntimeContext) RequestRender() {
	c.redrawRequested = true
}

// RequestExit asks the runtime to terminate gracefully once the current
// event drains.
func (c *RuntimeContext) RequestExit() {
	c.exitRequested = true
}

// SetCursorHint positions the terminal cursor at an absolute zero-based
// screen coordinate after the next render.
func (c *RuntimeContext) SetCursorHint(row, col int) {
	c.cursor.position = &CursorPos{Row: row, Col: col}
}

// SetCursorInZone positions the cursor relative to a zone's rect, clamping
// the offsets inside it. A missing zone is a no-op.
func (c *RuntimeContext) SetCursorInZone(zone ZoneID, rowOffset, colOffset int) {
	rect, ok := c.rects[zone]
	if !ok || rect.IsEmpty() {
		return
	}
	row := clamp(rect.Y+rowOffset, rect.Y, rect.Bottom()-1)
	col := clamp(rect.X+colOffset, rect.X, rect.Right()-1)
	c.SetCursorHint(row, col)
}

// ShowCursor makes the cursor visible after the next render.
func (c *RuntimeContext) ShowCursor() {
	visible := true
	c.cursor.visible = &visible
}

// HideCursor hides the cursor after the next render.
func (c *RuntimeContext) HideCursor() {
	visible := false
	c.cursor.visible = &visible
}

// SetCursorGlyph overrides the caret glyph. Zero clears the override.
func (c *RuntimeContext) SetCursorGlyph(glyph rune) {
	c.cursor.glyph = &glyph
}

// SetCursorStyle applies a style to the cursor. Nil clears it.
func (c *RuntimeContext) SetCursorStyle(style *CursorStyle) {
	c.cursor.style = &style
}

// ReportError raises a RuntimeError. The runtime offers recovery before
// escalating to the fatal path.
func (c *RuntimeContext) ReportError(err RuntimeError) {
	c.reportedError = &err
}

// Rect returns the solved rectangle for a zone, if present in the current
// layout.
func (c *RuntimeContext) Rect(zone ZoneID) (Rect, bool) {
	rect, ok := c.rects[zone]
	return rect, ok
}

// Zones returns the ids present in the current solve, unordered.
func (c *RuntimeContext) Zones() []ZoneID {
	out := make([]ZoneID, 0, len(c.rects))
	for id := range c.rects {
		out = append(out, id)
	}
	return out
}

// Shared exposes the runtime's shared resource map.
func (c *RuntimeContext) Shared() *SharedState {
	return c.shared
}

// outcome converts the collected side effects for the coordinator to apply.
type contextOutcome struct {
	zoneUpdates     []zoneUpdate
	redrawRequested bool
	exitRequested   bool
	cursor          cursorUpdate
	err             *RuntimeError
}

func (c *RuntimeContext) outcome() contextOutcome {
	return contextOutcome{
		zoneUpdates:     c.zoneUpdates,
		redrawRequested: c.redrawRequested,
		exitRequested:   c.exitRequested,
		cursor:          c.cursor,
		err:             c.reportedError,
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
