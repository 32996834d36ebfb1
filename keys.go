package room

import (
	"bytes"
	"strconv"
	"unicode/utf8"
)

// keyDecoder incrementally turns raw terminal input bytes into events.
// Incomplete escape sequences are held until more bytes arrive; Flush
// resolves a trailing bare ESC once the driver's read window closes.
type keyDecoder struct {
	pending []byte
	inPaste bool
	paste   bytes.Buffer
}

var (
	pasteStart = []byte("\x1b[200~")
	pasteEnd   = []byte("\x1b[201~")
)

// Feed appends input bytes and returns every fully decoded event.
func (d *keyDecoder) Feed(data []byte) []Event {
	d.pending = append(d.pending, data...)
	var events []Event
	for {
		event, consumed := d.next()
		if consumed == 0 {
			break
		}
		d.pending = d.pending[consumed:]
		if event != nil {
			events = append(events, event)
		}
	}
	return events
}

// Flush resolves a trailing bare escape as a lone Esc key.
func (d *keyDecoder) Flush() []Event {
	if d.inPaste || len(d.pending) == 0 {
		return nil
	}
	if len(d.pending) == 1 && d.pending[0] == 0x1b {
		d.pending = d.pending[:0]
		return []Event{KeyEvent{Code: KeyEsc}}
	}
	return nil
}

// next decodes one event from the front of pending. A zero consumed count
// means "need more bytes". A nil event with nonzero count means the bytes
// were swallowed (paste accumulation, unknown sequences).
func (d *keyDecoder) next() (Event, int) {
	if len(d.pending) == 0 {
		return nil, 0
	}

	if d.inPaste {
		if idx := bytes.Index(d.pending, pasteEnd); idx >= 0 {
			d.paste.Write(d.pending[:idx])
			d.inPaste = false
			text := d.paste.String()
			d.paste.Reset()
			return PasteEvent{Text: text}, idx + len(pasteEnd)
		}
		// Hold the tail in case the terminator is split across reads.
		keep := len(pasteEnd) - 1
		if len(d.pending) > keep {
			d.paste.Write(d.pending[:len(d.pending)-keep])
			d.pending = d.pending[len(d.pending)-keep:]
		}
		return nil, 0
	}

	b := d.pending[0]
	if b == 0x1b {
		return d.nextEscape()
	}

	// Control bytes.
	switch b {
	case '\r', '\n':
		return KeyEvent{Code: KeyEnter}, 1
	case '\t':
		return KeyEvent{Code: KeyTab}, 1
	case 0x7f, 0x08:
		return KeyEvent{Code: KeyBackspace}, 1
	}
	if b < 0x20 {
		return KeyEvent{Code: KeyRune, Rune: rune('a' + b - 1), Mods: ModCtrl}, 1
	}

	r, size := utf8.DecodeRune(d.pending)
	if r == utf8.RuneError && size == 1 && !utf8.FullRune(d.pending) {
		return nil, 0
	}
	return KeyEvent{Code: KeyRune, Rune: r}, size
}

func (d *keyDecoder) nextEscape() (Event, int) {
	if len(d.pending) == 1 {
		return nil, 0
	}
	if bytes.HasPrefix(d.pending, pasteStart) {
		d.inPaste = true
		return nil, len(pasteStart)
	}

	switch d.pending[1] {
	case '[':
		return d.nextCSI()
	case 'O':
		if len(d.pending) < 3 {
			return nil, 0
		}
		switch d.pending[2] {
		case 'A':
			return KeyEvent{Code: KeyUp}, 3
		case 'B':
			return KeyEvent{Code: KeyDown}, 3
		case 'C':
			return KeyEvent{Code: KeyRight}, 3
		case 'D':
			return KeyEvent{Code: KeyLeft}, 3
		case 'H':
			return KeyEvent{Code: KeyHome}, 3
		case 'F':
			return KeyEvent{Code: KeyEnd}, 3
		}
		return nil, 3
	}

	// Alt-modified rune.
	r, size := utf8.DecodeRune(d.pending[1:])
	if r == utf8.RuneError && size == 1 && !utf8.FullRune(d.pending[1:]) {
		return nil, 0
	}
	if r == 0x1b {
		return KeyEvent{Code: KeyEsc}, 1
	}
	return KeyEvent{Code: KeyRune, Rune: r, Mods: ModAlt}, 1 + size
}

// nextCSI decodes ESC [ <params> <final>. Unknown sequences are consumed
// whole so they never smear into later input.
func (d *keyDecoder) nextCSI() (Event, int) {
	// Find the final byte (0x40–0x7e).
	end := -1
	for i := 2; i < len(d.pending); i++ {
		if d.pending[i] >= 0x40 && d.pending[i] <= 0x7e {
			end = i
			break
		}
	}
	if end < 0 {
		return nil, 0
	}
	final := d.pending[end]
	params := string(d.pending[2:end])
	consumed := end + 1

	if len(params) > 0 && params[0] == '<' {
		return decodeSGRMouse(params[1:], final), consumed
	}

	mods := csiMods(params)
	switch final {
	case 'A':
		return KeyEvent{Code: KeyUp, Mods: mods}, consumed
	case 'B':
		return KeyEvent{Code: KeyDown, Mods: mods}, consumed
	case 'C':
		return KeyEvent{Code: KeyRight, Mods: mods}, consumed
	case 'D':
		return KeyEvent{Code: KeyLeft, Mods: mods}, consumed
	case 'H':
		return KeyEvent{Code: KeyHome, Mods: mods}, consumed
	case 'F':
		return KeyEvent{Code: KeyEnd, Mods: mods}, consumed
	case 'Z':
		return KeyEvent{Code: KeyBackTab, Mods: mods | ModShift}, consumed
	case '~':
		return tildeKey(params, mods), consumed
	}
	return nil, consumed
}

// csiMods extracts the xterm modifier parameter (";n" where n-1 is a
// shift/alt/ctrl bitmask).
func csiMods(params string) KeyModifiers {
	idx := bytes.IndexByte([]byte(params), ';')
	if idx < 0 {
		return 0
	}
	n, err := strconv.Atoi(params[idx+1:])
	if err != nil || n < 2 {
		return 0
	}
	bits := n - 1
	var mods KeyModifiers
	if bits&1 != 0 {
		mods |= ModShift
	}
	if bits&2 != 0 {
		mods |= ModAlt
	}
	if bits&4 != 0 {
		mods |= ModCtrl
	}
	return mods
}

func tildeKey(params string, mods KeyModifiers) Event {
	if idx := bytes.IndexByte([]byte(params), ';'); idx >= 0 {
		params = params[:idx]
	}
	n, err := strconv.Atoi(params)
	if err != nil {
		return nil
	}
	switch n {
	case 1, 7:
		return KeyEvent{Code: KeyHome, Mods: mods}
	case 2:
		return KeyEvent{Code: KeyInsert, Mods: mods}
	case 3:
		return KeyEvent{Code: KeyDelete, Mods: mods}
	case 4, 8:
		return KeyEvent{Code: KeyEnd, Mods: mods}
	case 5:
		return KeyEvent{Code: KeyPgUp, Mods: mods}
	case 6:
		return KeyEvent{Code: KeyPgDn, Mods: mods}
	}
	return nil
}

// decodeSGRMouse parses "b;x;y" with final 'M' (press/motion) or 'm'
// (release). Coordinates are 1-based on the wire.
func decodeSGRMouse(params string, final byte) Event {
	parts := bytes.Split([]byte(params), []byte(";"))
	if len(parts) != 3 {
		return nil
	}
	b, err1 := strconv.Atoi(string(parts[0]))
	x, err2 := strconv.Atoi(string(parts[1]))
	y, err3 := strconv.Atoi(string(parts[2]))
	if err1 != nil || err2 != nil || err3 != nil {
		return nil
	}

	event := MouseEvent{X: x - 1, Y: y - 1}
	if b&4 != 0 {
		event.Mods |= ModShift
	}
	if b&8 != 0 {
		event.Mods |= ModAlt
	}
	if b&16 != 0 {
		event.Mods |= ModCtrl
	}

	switch {
	case b&64 != 0:
		if b&3 == 0 {
			event.Button = MouseWheelUp
		} else {
			event.Button = MouseWheelDown
		}
		event.Action = MousePress
	case b&32 != 0:
		event.Button = MouseNone
		event.Action = MouseMotion
	default:
		switch b & 3 {
		case 0:
			event.Button = MouseLeft
		case 1:
			event.Button = MouseMiddle
		case 2:
			event.Button = MouseRight
		default:
			event.Button = MouseNone
		}
		if final == 'm' {
			event.Action = MouseRelease
		} else {
			event.Action = MousePress
		}
	}
	return event
}
