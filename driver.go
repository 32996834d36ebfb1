//go:build !windows

package room

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/muesli/cancelreader"
	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// InteractiveDriver owns the terminal for a live session: raw mode and the
// alternate screen, the blocking input wait, resize signals, the tick
// timer, and teardown. It feeds decoded events into the runtime one at a
// time on its own goroutine, per the coordinator's single-threaded model.
type InteractiveDriver struct {
	runtime *Runtime
	in      *os.File
	out     *os.File
	sink    *bufio.Writer

	origTermios *unix.Termios
	inRawMode   bool
	reader      cancelreader.CancelReader
	sigChan     chan os.Signal

	mouseEnabled bool
}

// NewInteractiveDriver creates a driver over stdin/stdout.
func NewInteractiveDriver(rt *Runtime) (*InteractiveDriver, error) {
	return NewInteractiveDriverWithFiles(rt, os.Stdin, os.Stdout)
}

// NewInteractiveDriverWithFiles creates a driver over explicit terminal
// handles.
func NewInteractiveDriverWithFiles(rt *Runtime, in, out *os.File) (*InteractiveDriver, error) {
	if !term.IsTerminal(int(in.Fd())) {
		return nil, fmt.Errorf("interactive driver: input is not a terminal")
	}
	return &InteractiveDriver{
		runtime: rt,
		in:      in,
		out:     out,
		sink:    bufio.NewWriter(out),
		sigChan: make(chan os.Signal, 1),
	}, nil
}

// EnableMouse turns on SGR mouse reporting for the session.
func (d *InteractiveDriver) EnableMouse() {
	d.mouseEnabled = true
}

// Run prepares the terminal, bootstraps the runtime, and pumps events until
// the runtime requests exit or input fails. The terminal is restored on
// every exit path.
func (d *InteractiveDriver) Run() error {
	if err := d.enterRawMode(); err != nil {
		return err
	}
	defer d.exitRawMode()

	reader, err := cancelreader.NewReader(d.in)
	if err != nil {
		return fmt.Errorf("interactive driver: %w", err)
	}
	d.reader = reader
	defer reader.Close()

	signal.Notify(d.sigChan, syscall.SIGWINCH)
	defer signal.Stop(d.sigChan)

	if size, err := d.terminalSize(); err == nil {
		d.runtime.Resize(size)
	}

	if err := d.runtime.Bootstrap(d.sink); err != nil {
		return err
	}

	inputChan := make(chan []byte, 8)
	readErr := make(chan error, 1)
	go func() {
		buf := make([]byte, 4096)
		for {
			n, err := reader.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				inputChan <- chunk
			}
			if err != nil {
				readErr <- err
				return
			}
		}
	}()

	decoder := &keyDecoder{}
	tickInterval := d.runtime.Config().TickInterval
	if tickInterval <= 0 {
		tickInterval = 200 * time.Millisecond
	}
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	lastTick := time.Now()

	for !d.runtime.ShouldExit() {
		select {
		case chunk := <-inputChan:
			events := decoder.Feed(chunk)
			if len(events) == 0 {
				events = decoder.Flush()
			}
			for _, event := range events {
				if err := d.runtime.Step(event, d.sink); err != nil {
					d.finish()
					return err
				}
				if d.runtime.ShouldExit() {
					break
				}
			}
		case <-d.sigChan:
			size, err := d.terminalSize()
			if err != nil {
				continue
			}
			if err := d.runtime.Step(ResizeEvent{Size: size}, d.sink); err != nil {
				d.finish()
				return err
			}
		case now := <-ticker.C:
			elapsed := now.Sub(lastTick)
			lastTick = now
			if err := d.runtime.Step(TickEvent{Elapsed: elapsed, At: now}, d.sink); err != nil {
				d.finish()
				return err
			}
		case err := <-readErr:
			d.finish()
			if err == cancelreader.ErrCanceled {
				return nil
			}
			return fmt.Errorf("interactive driver read: %w", err)
		}
	}

	d.finish()
	return nil
}

// Stop cancels the blocking input read so Run can unwind.
func (d *InteractiveDriver) Stop() {
	if d.reader != nil {
		d.reader.Cancel()
	}
}

func (d *InteractiveDriver) finish() {
	d.runtime.Finalize(d.sink)
	d.sink.Flush()
}

func (d *InteractiveDriver) terminalSize() (Size, error) {
	ws, err := unix.IoctlGetWinsize(int(d.out.Fd()), unix.TIOCGWINSZ)
	if err == nil {
		return Size{Width: int(ws.Col), Height: int(ws.Row)}, nil
	}
	width, height, termErr := term.GetSize(int(d.out.Fd()))
	if termErr != nil {
		return Size{}, fmt.Errorf("terminal size: %w", err)
	}
	return Size{Width: width, Height: height}, nil
}

// enterRawMode puts the terminal into raw mode, switches to the alternate
// screen, and hides the cursor.
func (d *InteractiveDriver) enterRawMode() error {
	if d.inRawMode {
		return nil
	}
	fd := int(d.in.Fd())

	termios, err := unix.IoctlGetTermios(fd, ioctlGetTermios)
	if err != nil {
		return fmt.Errorf("get termios: %w", err)
	}
	d.origTermios = termios

	raw := *termios
	raw.Iflag &^= unix.BRKINT | unix.ICRNL | unix.INPCK | unix.ISTRIP | unix.IXON
	raw.Oflag &^= unix.OPOST
	raw.Cflag |= unix.CS8
	raw.Lflag &^= unix.ECHO | unix.ICANON | unix.ISIG | unix.IEXTEN
	raw.Cc[unix.VMIN] = 1
	raw.Cc[unix.VTIME] = 0

	if err := unix.IoctlSetTermios(fd, ioctlSetTermios, &raw); err != nil {
		return fmt.Errorf("set raw mode: %w", err)
	}
	d.inRawMode = true

	d.sink.WriteString(seqAltScreenOn)
	d.sink.WriteString(seqClearScreen)
	d.sink.WriteString(seqCursorHome)
	d.sink.WriteString(seqHideCursor)
	d.sink.WriteString(seqBracketPasteOn)
	if d.mouseEnabled {
		d.sink.WriteString("\x1b[?1006h\x1b[?1002h")
	}
	return d.sink.Flush()
}

// exitRawMode restores the terminal: cursor shown, alternate screen left,
// raw mode off. Runs on every terminal state transition.
func (d *InteractiveDriver) exitRawMode() error {
	if !d.inRawMode {
		return nil
	}

	if d.mouseEnabled {
		d.sink.WriteString("\x1b[?1002l\x1b[?1006l")
	}
	d.sink.WriteString(seqBracketPasteOf)
	d.sink.WriteString(seqResetStyle)
	d.sink.WriteString(seqShowCursor)
	d.sink.WriteString(seqAltScreenOff)
	d.sink.Flush()

	if d.origTermios != nil {
		if err := unix.IoctlSetTermios(int(d.in.Fd()), ioctlSetTermios, d.origTermios); err != nil {
			return fmt.Errorf("restore termios: %w", err)
		}
	}
	d.inRawMode = false
	return nil
}
