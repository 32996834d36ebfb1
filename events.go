package room

import "time"

// LoopEventKind classifies the driver-sourced events that pass through the
// loop's LoopIn/LoopOut bookends.
type LoopEventKind int

const (
	KindTick LoopEventKind = iota
	KindKey
	KindMouse
	KindPaste
	KindFocusGained
	KindFocusLost
	KindResize
	KindRaw
)

var loopEventKindNames = [...]string{
	KindTick:        "tick",
	KindKey:         "key",
	KindMouse:       "mouse",
	KindPaste:       "paste",
	KindFocusGained: "focus_gained",
	KindFocusLost:   "focus_lost",
	KindResize:      "resize",
	KindRaw:         "raw",
}

func (k LoopEventKind) String() string {
	if k < 0 || int(k) >= len(loopEventKindNames) {
		return "unknown"
	}
	return loopEventKindNames[k]
}

// Event is a driver-sourced input event delivered to the runtime. Lifecycle
// and focus/cursor notifications travel through dedicated plugin hooks
// instead; this interface covers only what a driver can feed in.
type Event interface {
	Kind() LoopEventKind
}

// KeyModifiers is a bitmask of modifier keys held for a key or mouse event.
type KeyModifiers uint8

const (
	ModShift KeyModifiers = 1 << iota
	ModAlt
	ModCtrl
)

// Has reports whether all bits in m are set.
func (k KeyModifiers) Has(m KeyModifiers) bool {
	return k&m == m
}

// KeyCode identifies the non-printable keys a driver can decode. Printable
// input arrives as KeyRune with the rune populated.
type KeyCode int

const (
	KeyRune KeyCode = iota
	KeyEnter
	KeyBackspace
	KeyEsc
	KeyTab
	KeyBackTab
	KeyUp
	KeyDown
	KeyLeft
	KeyRight
	KeyHome
	KeyEnd
	KeyPgUp
	KeyPgDn
	KeyDelete
	KeyInsert
)

// KeyEvent is a decoded keystroke.
type KeyEvent struct {
	Code KeyCode
	Rune rune
	Mods KeyModifiers
}

func (KeyEvent) Kind() LoopEventKind { return KindKey }

// MouseButton identifies which button a mouse event refers to.
type MouseButton int

const (
	MouseLeft MouseButton = iota
	MouseMiddle
	MouseRight
	MouseWheelUp
	MouseWheelDown
	MouseNone
)

// MouseAction distinguishes presses, releases, and motion.
type MouseAction int

const (
	MousePress MouseAction = iota
	MouseRelease
	MouseMotion
)

// MouseEvent is a decoded mouse action at an absolute cell coordinate.
type MouseEvent struct {
	X      int
	Y      int
	Button MouseButton
	Action MouseAction
	Mods   KeyModifiers
}

func (MouseEvent) Kind() LoopEventKind { return KindMouse }

// PasteEvent carries bracketed-paste text.
type PasteEvent struct {
	Text string
}

func (PasteEvent) Kind() LoopEventKind { return KindPaste }

// ResizeEvent reports a new terminal size. Drivers must deliver one before
// the next input event whenever the terminal size changes.
type ResizeEvent struct {
	Size Size
}

func (ResizeEvent) Kind() LoopEventKind { return KindResize }

// TickEvent is a synthetic cadence event. At is a monotonic-clock reading;
// drivers must deliver non-decreasing timestamps.
type TickEvent struct {
	Elapsed time.Duration
	At      time.Time
}

func (TickEvent) Kind() LoopEventKind { return KindTick }

// FocusGainedEvent reports the terminal window gaining focus.
type FocusGainedEvent struct{}

func (FocusGainedEvent) Kind() LoopEventKind { return KindFocusGained }

// FocusLostEvent reports the terminal window losing focus.
type FocusLostEvent struct{}

func (FocusLostEvent) Kind() LoopEventKind { return KindFocusLost }

// RawEvent is a driver-defined passthrough of undecoded bytes.
type RawEvent struct {
	Bytes []byte
}

func (RawEvent) Kind() LoopEventKind { return KindRaw }
