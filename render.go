package room

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/x/ansi"
	"github.com/mattn/go-runewidth"
	"github.com/rivo/uniseg"
)

// OutputSink is the byte sink a driver hands the runtime: a writer with an
// explicit flush so one render pass lands in as few syscalls as possible.
// *bufio.Writer satisfies it directly.
type OutputSink interface {
	io.Writer
	Flush() error
}

// nopFlushSink adapts a plain writer (bytes.Buffer, os.Pipe, test capture)
// into an OutputSink.
type nopFlushSink struct {
	io.Writer
}

func (nopFlushSink) Flush() error { return nil }

// NewSink wraps w into an OutputSink. Writers that already flush are
// returned as-is.
func NewSink(w io.Writer) OutputSink {
	if sink, ok := w.(OutputSink); ok {
		return sink
	}
	return nopFlushSink{w}
}

// RendererSettings carries the per-pass cursor bookkeeping the coordinator
// feeds the renderer between plugin hooks and the flush.
type RendererSettings struct {
	// RestoreCursor is the zero-based (row, col) the terminal cursor is
	// parked at after the pass, if any.
	RestoreCursor *CursorPos
	// CursorVisible, when set, emits a show/hide sequence at the end of
	// the pass.
	CursorVisible *bool
}

// CursorPos is an absolute zero-based screen coordinate.
type CursorPos struct {
	Row int
	Col int
}

// Renderer converts dirty zones into a minimal ANSI byte stream. It is
// deterministic: identical (snapshot, settings) input produces identical
// bytes. The internal buffer is reused across passes.
type Renderer struct {
	settings RendererSettings
	buf      bytes.Buffer
}

// NewRenderer creates a renderer with default settings.
func NewRenderer() *Renderer {
	return &Renderer{}
}

// Settings exposes the mutable renderer settings.
func (r *Renderer) Settings() *RendererSettings {
	return &r.settings
}

// Render paints every dirty zone and re-emits the cursor hint, then flushes
// once. On a sink failure the pass is aborted and the error bubbles to the
// coordinator; the caller must not commit any clean marks.
func (r *Renderer) Render(sink OutputSink, dirty []DirtyZone) error {
	r.buf.Reset()

	for i := range dirty {
		renderZone(&r.buf, &dirty[i].State)
	}

	if pos := r.settings.RestoreCursor; pos != nil {
		appendCursorTo(&r.buf, pos.Row, pos.Col)
	}
	if vis := r.settings.CursorVisible; vis != nil {
		if *vis {
			r.buf.WriteString(seqShowCursor)
		} else {
			r.buf.WriteString(seqHideCursor)
		}
	}

	if r.buf.Len() > 0 {
		if _, err := sink.Write(r.buf.Bytes()); err != nil {
			return fmt.Errorf("render write: %w", err)
		}
	}
	if err := sink.Flush(); err != nil {
		return fmt.Errorf("render flush: %w", err)
	}
	return nil
}

// renderZone emits one zone: an absolute CSI move per visual row, the line
// clamped to the rect width, and space padding out to the full width so any
// prior content is erased. Rows never advance with a newline.
func renderZone(buf *bytes.Buffer, state *ZoneState) {
	rect := state.Rect
	if rect.IsEmpty() {
		return
	}

	var rows []string
	if state.PreRendered {
		rows = state.Content
	} else {
		rows = wrapToWidth(state.Content, rect.Width)
	}
	if len(rows) > rect.Height {
		rows = rows[:rect.Height]
	}

	for offset := 0; offset < rect.Height; offset++ {
		appendCursorTo(buf, rect.Y+offset, rect.X)
		if offset < len(rows) {
			if state.PreRendered {
				writeClampedANSI(buf, rows[offset], rect.Width)
			} else {
				writeClampedPlain(buf, rows[offset], rect.Width)
			}
		} else {
			writePad(buf, rect.Width)
		}
	}
}

// writeClampedPlain emits a plain-text line clamped to width display cells
// and padded with spaces to exactly width.
func writeClampedPlain(buf *bytes.Buffer, line string, width int) {
	clamped := runewidth.Truncate(line, width, "")
	buf.WriteString(clamped)
	writePad(buf, width-runewidth.StringWidth(clamped))
}

// writeClampedANSI emits a pre-rendered line clamped to width display cells.
// Width is measured with SGR/CSI sequences stripped and the cut never lands
// inside an escape sequence.
func writeClampedANSI(buf *bytes.Buffer, line string, width int) {
	shown := ansi.StringWidth(line)
	if shown > width {
		line = ansi.Truncate(line, width, "")
		shown = ansi.StringWidth(line)
	}
	buf.WriteString(line)
	writePad(buf, width-shown)
}

func writePad(buf *bytes.Buffer, n int) {
	for i := 0; i < n; i++ {
		buf.WriteByte(' ')
	}
}

// wrapToWidth flows logical lines into visual rows no wider than width
// display cells. Empty input lines survive as blank rows; a leading space
// created by a wrap point is dropped.
func wrapToWidth(lines []string, width int) []string {
	if width <= 0 {
		return nil
	}
	var out []string
	for _, raw := range lines {
		if raw == "" {
			out = append(out, "")
			continue
		}
		var current strings.Builder
		currentWidth := 0
		gr := uniseg.NewGraphemes(raw)
		for gr.Next() {
			cluster := gr.Str()
			w := runewidth.StringWidth(cluster)
			if currentWidth == 0 && cluster == " " {
				continue
			}
			if currentWidth+w > width {
				if current.Len() > 0 {
					out = append(out, current.String())
					current.Reset()
					currentWidth = 0
				}
				if w > width {
					// Cluster wider than the zone; nothing sane to emit.
					out = append(out, "")
					continue
				}
				if cluster == " " {
					continue
				}
			}
			current.WriteString(cluster)
			currentWidth += w
			if currentWidth == width {
				out = append(out, current.String())
				current.Reset()
				currentWidth = 0
			}
		}
		if current.Len() > 0 {
			out = append(out, current.String())
		}
	}
	return out
}
