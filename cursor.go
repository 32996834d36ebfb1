package room

// CursorStyle describes optional cursor presentation overrides.
type CursorStyle struct {
	FG         string
	BG         string
	Attributes []string
}

// Cursor is the shared cursor state: an absolute screen position,
// visibility, and optional glyph/style overrides. A zero Glyph means no
// override.
type Cursor struct {
	Row     int
	Col     int
	Visible bool
	Glyph   rune
	Style   *CursorStyle
}

func defaultCursor() Cursor {
	return Cursor{Visible: true}
}

// auditFields returns the wire shape required for cursor stages.
func (c Cursor) auditFields() Fields {
	inner := Fields{
		F("row", c.Row),
		F("col", c.Col),
		F("visible", c.Visible),
	}
	if c.Glyph != 0 {
		inner = append(inner, F("glyph", string(c.Glyph)))
	}
	if c.Style != nil {
		style := Fields{}
		if c.Style.FG != "" {
			style = append(style, F("fg", c.Style.FG))
		}
		if c.Style.BG != "" {
			style = append(style, F("bg", c.Style.BG))
		}
		if len(c.Style.Attributes) > 0 {
			style = append(style, F("attributes", c.Style.Attributes))
		}
		inner = append(inner, F("style", style))
	}
	return Fields{F("cursor", inner)}
}

// CursorEventKind distinguishes the cursor notifications a state change can
// produce.
type CursorEventKind int

const (
	CursorMoved CursorEventKind = iota
	CursorShown
	CursorHidden
)

// CursorEvent notifies observers of one cursor state change.
type CursorEvent struct {
	Kind   CursorEventKind
	Cursor Cursor
}

// cursorUpdate accumulates the cursor mutations one plugin hook requested.
type cursorUpdate struct {
	position *CursorPos
	visible  *bool
	glyph    *rune
	style    **CursorStyle
}

func (u *cursorUpdate) isEmpty() bool {
	return u.position == nil && u.visible == nil && u.glyph == nil && u.style == nil
}

// cursorManager owns the canonical cursor state and translates updates into
// events. Each state change produces exactly one event: a visibility
// transition wins over movement when an update carries both, since the
// shown/hidden record already includes the new position.
type cursorManager struct {
	current Cursor
}

func newCursorManager() cursorManager {
	return cursorManager{current: defaultCursor()}
}

func (m *cursorManager) apply(update *cursorUpdate) []CursorEvent {
	if update.isEmpty() {
		return nil
	}

	next := m.current
	if update.position != nil {
		next.Row = update.position.Row
		next.Col = update.position.Col
	}
	if update.visible != nil {
		next.Visible = *update.visible
	}
	if update.glyph != nil {
		next.Glyph = *update.glyph
	}
	if update.style != nil {
		next.Style = *update.style
	}

	var events []CursorEvent
	switch {
	case !m.current.Visible && next.Visible:
		events = append(events, CursorEvent{Kind: CursorShown, Cursor: next})
	case m.current.Visible && !next.Visible:
		events = append(events, CursorEvent{Kind: CursorHidden, Cursor: next})
	case next.Row != m.current.Row || next.Col != m.current.Col ||
		update.glyph != nil || update.style != nil:
		events = append(events, CursorEvent{Kind: CursorMoved, Cursor: next})
	}

	m.current = next
	return events
}
