package room

import (
	"fmt"
	"strings"
	"sync"

	"github.com/mattn/go-runewidth"
)

// PluginBundle collects plugins with priorities so callers can register a
// whole behaviour set at once.
type PluginBundle struct {
	entries []bundleEntry
}

type bundleEntry struct {
	plugin   Plugin
	priority int
}

// NewPluginBundle creates an empty bundle.
func NewPluginBundle() *PluginBundle {
	return &PluginBundle{}
}

// WithPlugin appends a plugin at the given priority.
func (b *PluginBundle) WithPlugin(p Plugin, priority int) *PluginBundle {
	b.entries = append(b.entries, bundleEntry{plugin: p, priority: priority})
	return b
}

func (b *PluginBundle) registerInto(r *Runtime) error {
	for _, entry := range b.entries {
		if err := r.RegisterPluginWithPriority(entry.plugin, entry.priority); err != nil {
			return err
		}
	}
	return nil
}

// Default zones used by the CLI bundle.
const (
	DefaultStatusZone = "app:runtime.status"
	DefaultInputZone  = "app:runtime.input"
	DefaultHintsZone  = "app:runtime.hints"

	defaultBundleFocusOwner = "room:default_bundle"
	defaultHintsText        = "Enter to submit · Esc clears"
)

// CliBundleConfig configures DefaultCliBundle.
type CliBundleConfig struct {
	StatusZone     string
	InputZone      string
	HintsZone      string
	FocusOwner     string
	InputPriority  int
	StatusPriority int
}

// DefaultCliBundleConfig returns the stock zone ids and priorities.
func DefaultCliBundleConfig() CliBundleConfig {
	return CliBundleConfig{
		StatusZone:     DefaultStatusZone,
		InputZone:      DefaultInputZone,
		HintsZone:      DefaultHintsZone,
		FocusOwner:     defaultBundleFocusOwner,
		InputPriority:  -20,
		StatusPriority: 80,
	}
}

// DefaultCliBundle wires a line-editing input zone, a status bar, and a
// hints zone: the minimum useful CLI surface on top of the runtime.
func DefaultCliBundle(config CliBundleConfig) *PluginBundle {
	return NewPluginBundle().
		WithPlugin(newInputPlugin(config.InputZone, config.HintsZone, config.FocusOwner), config.InputPriority).
		WithPlugin(newStatusBarPlugin(config.StatusZone), config.StatusPriority)
}

// InputState is the shared record the input plugin publishes so other
// plugins (and the status bar) can observe submissions.
type InputState struct {
	mu              sync.RWMutex
	lastSubmission  string
	submissionCount uint64
}

// Submit records one submitted line.
func (s *InputState) Submit(text string) {
	s.mu.Lock()
	s.lastSubmission = text
	s.submissionCount++
	s.mu.Unlock()
}

// LastSubmission returns the most recent submitted line.
func (s *InputState) LastSubmission() (string, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSubmission, s.submissionCount
}

// EnsureInputState returns the session's input state, creating it on first
// use.
func EnsureInputState(ctx *RuntimeContext) (*InputState, error) {
	return SharedInit(ctx.Shared(), func() *InputState { return &InputState{} })
}

// inputPlugin is a minimal line editor: printable runes append, backspace
// deletes, enter submits into the shared InputState, escape clears. It owns
// focus for its zone and parks the cursor after the caret.
type inputPlugin struct {
	zone       ZoneID
	hintsZone  ZoneID
	focusOwner string
	buffer     []rune
	focus      *FocusController
}

func newInputPlugin(zone, hintsZone, focusOwner ZoneID) *inputPlugin {
	return &inputPlugin{zone: zone, hintsZone: hintsZone, focusOwner: focusOwner}
}

func (p *inputPlugin) Name() string { return "room:bundle.input" }

func (p *inputPlugin) controller(ctx *RuntimeContext) (*FocusController, error) {
	if p.focus == nil {
		reg, err := EnsureFocusRegistry(ctx)
		if err != nil {
			return nil, err
		}
		p.focus = NewFocusController(p.focusOwner, reg)
	}
	return p.focus, nil
}

func (p *inputPlugin) render(ctx *RuntimeContext) {
	line := "> " + string(p.buffer)
	ctx.SetZone(p.zone, line)
	if rect, ok := ctx.Rect(p.zone); ok {
		caret := runewidth.StringWidth(line)
		col := rect.X + caret
		if max := rect.Right() - 1; col > max {
			col = max
		}
		ctx.SetCursorHint(rect.Y, col)
	}
	if p.hintsZone != "" {
		ctx.SetZone(p.hintsZone, defaultHintsText)
	}
}

func (p *inputPlugin) Init(ctx *RuntimeContext) error {
	controller, err := p.controller(ctx)
	if err != nil {
		return fmt.Errorf("input plugin focus: %w", err)
	}
	controller.Focus(p.zone)
	if _, err := EnsureInputState(ctx); err != nil {
		return err
	}
	p.render(ctx)
	return nil
}

func (p *inputPlugin) submit(ctx *RuntimeContext) error {
	text := strings.TrimSpace(string(p.buffer))
	p.buffer = p.buffer[:0]
	if text == "" {
		p.render(ctx)
		return nil
	}
	state, err := EnsureInputState(ctx)
	if err != nil {
		return err
	}
	state.Submit(text)
	ctx.RequestRender()
	p.render(ctx)
	return nil
}

func (p *inputPlugin) OnEvent(ctx *RuntimeContext, event Event) (EventFlow, error) {
	switch ev := event.(type) {
	case KeyEvent:
		return p.handleKey(ctx, ev)
	case PasteEvent:
		if ev.Text != "" {
			p.buffer = append(p.buffer, []rune(ev.Text)...)
			p.render(ctx)
		}
		return FlowConsumed, nil
	case FocusGainedEvent:
		controller, err := p.controller(ctx)
		if err != nil {
			return FlowContinue, err
		}
		controller.Focus(p.zone)
		p.render(ctx)
		return FlowContinue, nil
	}
	return FlowContinue, nil
}

func (p *inputPlugin) handleKey(ctx *RuntimeContext, key KeyEvent) (EventFlow, error) {
	switch key.Code {
	case KeyBackspace:
		if len(p.buffer) > 0 {
			p.buffer = p.buffer[:len(p.buffer)-1]
		}
		p.render(ctx)
		return FlowConsumed, nil
	case KeyEnter:
		if err := p.submit(ctx); err != nil {
			return FlowConsumed, err
		}
		return FlowConsumed, nil
	case KeyEsc:
		p.buffer = p.buffer[:0]
		p.render(ctx)
		return FlowConsumed, nil
	case KeyRune:
		if key.Mods.Has(ModCtrl) || key.Mods.Has(ModAlt) {
			return FlowContinue, nil
		}
		p.buffer = append(p.buffer, key.Rune)
		p.render(ctx)
		return FlowConsumed, nil
	}
	return FlowContinue, nil
}

func (p *inputPlugin) BeforeRender(ctx *RuntimeContext) error {
	p.render(ctx)
	return nil
}

// statusBarPlugin summarizes focus and submission state into one line.
type statusBarPlugin struct {
	zone ZoneID
}

func newStatusBarPlugin(zone ZoneID) *statusBarPlugin {
	return &statusBarPlugin{zone: zone}
}

func (p *statusBarPlugin) Name() string { return "room:bundle.status" }

func (p *statusBarPlugin) statusLine(ctx *RuntimeContext) string {
	focusLabel := "none"
	if reg, err := Shared[FocusRegistry](ctx.Shared()); err == nil {
		if target := reg.Current(); target != nil {
			focusLabel = friendlyZoneName(target.Zone)
		}
	}
	var submissions uint64
	var last string
	if state, err := Shared[InputState](ctx.Shared()); err == nil {
		last, submissions = state.LastSubmission()
	}
	line := fmt.Sprintf("Status · focus:%s · submissions:%d", focusLabel, submissions)
	if last != "" {
		line += " · last:" + last
	}
	return line
}

func (p *statusBarPlugin) Init(ctx *RuntimeContext) error {
	ctx.SetZone(p.zone, p.statusLine(ctx))
	return nil
}

func (p *statusBarPlugin) BeforeRender(ctx *RuntimeContext) error {
	ctx.SetZone(p.zone, p.statusLine(ctx))
	return nil
}

// friendlyZoneName strips namespace prefixes like "app:runtime." for
// status display.
func friendlyZoneName(zone ZoneID) string {
	if idx := strings.LastIndexAny(zone, ":."); idx >= 0 && idx+1 < len(zone) {
		return zone[idx+1:]
	}
	return zone
}
