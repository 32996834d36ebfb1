// Command workshop is the interactive demo: the default CLI bundle (input
// line, status bar, hints) plus a lipgloss-boxed log panel, driven by the
// interactive terminal driver. Submitted lines accumulate in the log.
//
// An optional TOML config (-config room.toml) tunes tick cadence, focus,
// and the loop guard; -audit writes the audit trail to a file.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/lmittmann/tint"

	"room"
)

const logZone = "demo:log"

func main() {
	configPath := flag.String("config", "", "optional TOML runtime config")
	auditPath := flag.String("audit", "", "write audit trail to this file")
	flag.Parse()

	config := room.DefaultConfig()
	if *configPath != "" {
		loaded, err := room.LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "config:", err)
			os.Exit(1)
		}
		config = loaded
	}
	if config.DefaultFocusZone == "" {
		config.DefaultFocusZone = room.DefaultInputZone
	}

	if *auditPath != "" {
		file, err := os.Create(*auditPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "audit:", err)
			os.Exit(1)
		}
		defer file.Close()
		logger := slog.New(tint.NewHandler(file, &tint.Options{
			Level:      slog.LevelDebug,
			TimeFormat: time.TimeOnly,
			NoColor:    true,
		}))
		config.Audit = room.NewBootstrapAudit(room.NewSlogAudit(logger))
		config.Logger = logger
	}

	layout := room.LayoutFunc(func(size room.Size) (map[room.ZoneID]room.Rect, error) {
		rects := make(map[room.ZoneID]room.Rect)
		if size.Width < 4 || size.Height < 4 {
			return rects, nil
		}
		rects[room.DefaultStatusZone] = room.NewRect(0, 0, size.Width, 1)
		rects[logZone] = room.NewRect(0, 1, size.Width, size.Height-3)
		rects[room.DefaultInputZone] = room.NewRect(0, size.Height-2, size.Width, 1)
		rects[room.DefaultHintsZone] = room.NewRect(0, size.Height-1, size.Width, 1)
		return rects, nil
	})

	rt, err := room.NewRuntimeWithConfig(layout, room.NewSize(80, 24), config)
	if err != nil {
		fmt.Fprintln(os.Stderr, "runtime:", err)
		os.Exit(1)
	}
	if err := rt.RegisterBundle(room.DefaultCliBundle(room.DefaultCliBundleConfig())); err != nil {
		fmt.Fprintln(os.Stderr, "bundle:", err)
		os.Exit(1)
	}
	if err := rt.RegisterPlugin(newLogPanel()); err != nil {
		fmt.Fprintln(os.Stderr, "plugin:", err)
		os.Exit(1)
	}

	driver, err := room.NewInteractiveDriver(rt)
	if err != nil {
		fmt.Fprintln(os.Stderr, "driver:", err)
		os.Exit(1)
	}
	if err := driver.Run(); err != nil {
		fmt.Fprintln(os.Stderr, "session:", err)
		os.Exit(1)
	}
}

// logPanel collects submitted lines and renders them boxed.
type logPanel struct {
	lines     []string
	lastCount uint64
	title     lipgloss.Style
}

func newLogPanel() *logPanel {
	return &logPanel{
		title: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
	}
}

func (p *logPanel) Name() string { return "demo:log_panel" }

func (p *logPanel) Init(ctx *room.RuntimeContext) error {
	p.render(ctx)
	return nil
}

func (p *logPanel) OnEvent(ctx *room.RuntimeContext, event room.Event) (room.EventFlow, error) {
	switch ev := event.(type) {
	case room.KeyEvent:
		// Ctrl+C ends the session; everything else belongs to the input
		// plugin, which runs at higher priority.
		if ev.Code == room.KeyRune && ev.Rune == 'c' && ev.Mods.Has(room.ModCtrl) {
			ctx.RequestExit()
			return room.FlowConsumed, nil
		}
	case room.TickEvent:
		if state, err := room.Shared[room.InputState](ctx.Shared()); err == nil {
			if last, count := state.LastSubmission(); count != p.lastCount {
				p.lastCount = count
				p.lines = append(p.lines, last)
				p.render(ctx)
			}
		}
	}
	return room.FlowContinue, nil
}

func (p *logPanel) render(ctx *room.RuntimeContext) {
	body := p.title.Render("Submissions") + "\n"
	if len(p.lines) == 0 {
		body += "(nothing yet — type and press Enter)"
	} else {
		start := 0
		if rect, ok := ctx.Rect(logZone); ok && len(p.lines) > rect.Height-3 {
			start = len(p.lines) - (rect.Height - 3)
		}
		body += strings.Join(p.lines[start:], "\n")
	}
	if boxed, ok := room.RenderZoneWithBox(ctx, logZone, body, room.DefaultBoxConfig()); ok {
		ctx.SetZonePreRendered(logZone, boxed)
	}
}
