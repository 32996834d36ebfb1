package room

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingAudit captures every stage for sequence assertions.
type recordingAudit struct {
	events []AuditEvent
}

func (a *recordingAudit) Record(event AuditEvent) {
	a.events = append(a.events, event)
}

func (a *recordingAudit) stages() []AuditStage {
	out := make([]AuditStage, len(a.events))
	for i, event := range a.events {
		out[i] = event.Stage
	}
	return out
}

// filtered returns the recorded stages restricted to the given set, in
// order.
func (a *recordingAudit) filtered(want ...AuditStage) []AuditStage {
	set := make(map[AuditStage]bool, len(want))
	for _, stage := range want {
		set[stage] = true
	}
	var out []AuditStage
	for _, event := range a.events {
		if set[event.Stage] {
			out = append(out, event.Stage)
		}
	}
	return out
}

func (a *recordingAudit) count(stage AuditStage) int {
	n := 0
	for _, event := range a.events {
		if event.Stage == stage {
			n++
		}
	}
	return n
}

func (a *recordingAudit) find(stage AuditStage) (AuditEvent, bool) {
	for _, event := range a.events {
		if event.Stage == stage {
			return event, true
		}
	}
	return AuditEvent{}, false
}

// failingSink errors on the nth write.
type failingSink struct {
	failOn int
	writes int
}

func (s *failingSink) Write(p []byte) (int, error) {
	s.writes++
	if s.writes >= s.failOn {
		return 0, errors.New("broken pipe")
	}
	return len(p), nil
}

func (s *failingSink) Flush() error { return nil }

// promptPlugin writes to the prompt zone in init and appends typed runes.
type promptPlugin struct {
	text string
}

func (p *promptPlugin) Name() string { return "test:prompt" }

func (p *promptPlugin) Init(ctx *RuntimeContext) error {
	p.text = "hello"
	ctx.SetZone("prompt", p.text)
	return nil
}

func (p *promptPlugin) OnEvent(ctx *RuntimeContext, event Event) (EventFlow, error) {
	if key, ok := event.(KeyEvent); ok && key.Code == KeyRune {
		p.text += string(key.Rune)
		ctx.SetZone("prompt", p.text)
		return FlowConsumed, nil
	}
	return FlowContinue, nil
}

func promptLayout() Layout {
	return LayoutFunc(func(size Size) (map[ZoneID]Rect, error) {
		if size.IsEmpty() {
			return map[ZoneID]Rect{}, nil
		}
		return map[ZoneID]Rect{"prompt": NewRect(0, 0, size.Width, 1)}, nil
	})
}

func TestBootstrapRenderScenario(t *testing.T) {
	audit := &recordingAudit{}
	config := DefaultConfig()
	config.Audit = audit
	config.DefaultFocusZone = "prompt"

	rt, err := NewRuntimeWithConfig(promptLayout(), NewSize(10, 1), config)
	require.NoError(t, err)
	require.NoError(t, rt.RegisterPlugin(&promptPlugin{}))

	var out bytes.Buffer
	require.NoError(t, rt.Bootstrap(NewSink(&out)))

	require.Equal(t,
		[]AuditStage{StageOpen, StageBoot, StageSetup, StageUserReady},
		audit.filtered(StageOpen, StageBoot, StageSetup, StageUserReady))

	output := out.String()
	require.True(t, strings.HasPrefix(output, "\x1b[1;1H"), "output: %q", output)
	assert.Contains(t, output, "hello     ")

	change, ok := audit.find(StageFocusChanged)
	require.True(t, ok, "focus change not observed")
	to, _ := change.Fields.Get("to")
	assert.Equal(t, "prompt", to)
	_, hasFrom := change.Fields.Get("from")
	assert.False(t, hasFrom)
}

func TestKeyPassthroughScenario(t *testing.T) {
	audit := &recordingAudit{}
	config := DefaultConfig()
	config.Audit = audit

	rt, err := NewRuntimeWithConfig(promptLayout(), NewSize(10, 1), config)
	require.NoError(t, err)
	require.NoError(t, rt.RegisterPlugin(&promptPlugin{}))

	var out bytes.Buffer
	sink := NewSink(&out)
	require.NoError(t, rt.Bootstrap(sink))
	out.Reset()

	require.NoError(t, rt.Step(KeyEvent{Code: KeyRune, Rune: 'x'}, sink))

	loopIn, ok := audit.find(StageLoopIn)
	require.True(t, ok)
	event, _ := loopIn.Fields.Get("event")
	assert.Equal(t, "key", event)

	var loopOut AuditEvent
	for _, recorded := range audit.events {
		if recorded.Stage == StageLoopOut {
			loopOut = recorded
		}
	}
	event, _ = loopOut.Fields.Get("event")
	assert.Equal(t, "key", event)
	consumed, _ := loopOut.Fields.Get("consumed")
	assert.Equal(t, true, consumed)

	output := out.String()
	assert.Contains(t, output, "\x1b[1;1H")
	assert.Contains(t, output, "hellox    ")
}

func TestResizeScenario(t *testing.T) {
	rt, err := NewRuntime(promptLayout(), NewSize(10, 1))
	require.NoError(t, err)
	require.NoError(t, rt.RegisterPlugin(&promptPlugin{}))

	var out bytes.Buffer
	sink := NewSink(&out)
	require.NoError(t, rt.Bootstrap(sink))
	require.NoError(t, rt.Step(KeyEvent{Code: KeyRune, Rune: 'x'}, sink))
	out.Reset()

	require.NoError(t, rt.Step(ResizeEvent{Size: NewSize(20, 1)}, sink))
	assert.Contains(t, out.String(), "hellox              ")
}

func TestSimulatedRunScenario(t *testing.T) {
	audit := &recordingAudit{}
	config := DefaultConfig()
	config.Audit = audit
	config.SimulatedLoop = SimulatedTicks(3)
	config.LoopIterationLimit = 10

	rt, err := NewRuntimeWithConfig(promptLayout(), NewSize(10, 1), config)
	require.NoError(t, err)
	require.NoError(t, rt.RegisterPlugin(&promptPlugin{}))

	var out bytes.Buffer
	require.NoError(t, rt.Run(NewSink(&out)))

	assert.Equal(t, 1, audit.count(StageLoopSimulated))
	assert.Equal(t, 3, audit.count(StageLoopIn))
	assert.Equal(t, 3, audit.count(StageLoopOut))
	for _, recorded := range a(audit, StageLoopIn, StageLoopOut) {
		kind, _ := recorded.Fields.Get("event")
		assert.Equal(t, "tick", kind)
	}
	require.Equal(t,
		[]AuditStage{
			StageLoopSimulatedComplete, StageUserEnd, StageCleanup, StageEnd, StageClose,
		},
		audit.filtered(StageLoopSimulatedComplete, StageLoopSimulatedAborted,
			StageUserEnd, StageCleanup, StageEnd, StageClose))
}

// a returns the recorded events restricted to the given stages.
func a(audit *recordingAudit, stages ...AuditStage) []AuditEvent {
	set := make(map[AuditStage]bool)
	for _, stage := range stages {
		set[stage] = true
	}
	var out []AuditEvent
	for _, event := range audit.events {
		if set[event.Stage] {
			out = append(out, event)
		}
	}
	return out
}

// raisingPlugin raises an unrecoverable error on key events.
type raisingPlugin struct{}

func (raisingPlugin) Name() string { return "test:raiser" }

func (raisingPlugin) OnEvent(ctx *RuntimeContext, event Event) (EventFlow, error) {
	if _, ok := event.(KeyEvent); ok {
		ctx.ReportError(RuntimeError{
			Category:    CategoryPlugin,
			Source:      "test:raiser",
			Message:     "key handler exploded",
			Recoverable: false,
		})
	}
	return FlowContinue, nil
}

// rescuerPlugin flips errors back to recoverable.
type rescuerPlugin struct {
	rescued int
}

func (p *rescuerPlugin) Name() string { return "test:rescuer" }

func (p *rescuerPlugin) OnError(_ *RuntimeContext, err *RuntimeError) error {
	err.Recoverable = true
	p.rescued++
	return nil
}

func TestRecoverableErrorScenario(t *testing.T) {
	audit := &recordingAudit{}
	config := DefaultConfig()
	config.Audit = audit

	rt, err := NewRuntimeWithConfig(promptLayout(), NewSize(10, 1), config)
	require.NoError(t, err)
	rescuer := &rescuerPlugin{}
	require.NoError(t, rt.RegisterPluginWithPriority(rescuer, -10))
	require.NoError(t, rt.RegisterPluginWithPriority(raisingPlugin{}, 10))

	var out bytes.Buffer
	sink := NewSink(&out)
	require.NoError(t, rt.Bootstrap(sink))

	require.NoError(t, rt.Step(KeyEvent{Code: KeyRune, Rune: 'q'}, sink))
	require.Equal(t,
		[]AuditStage{StageLoopIn, StageError, StageRecoverOrFatal, StageLoopOut},
		audit.filtered(StageLoopIn, StageError, StageRecoverOrFatal, StageLoopOut,
			StageFatal))
	assert.Equal(t, 1, rescuer.rescued)
	assert.False(t, rt.ShouldExit())

	recovered, _ := a(audit, StageRecoverOrFatal)[0].Fields.Get("recovered")
	assert.Equal(t, true, recovered)

	// The next event proceeds normally.
	require.NoError(t, rt.Step(TickEvent{}, sink))
	assert.Equal(t, 2, audit.count(StageLoopIn))
	assert.False(t, rt.ShouldExit())
}

func TestFatalRenderScenario(t *testing.T) {
	audit := &recordingAudit{}
	config := DefaultConfig()
	config.Audit = audit

	rt, err := NewRuntimeWithConfig(promptLayout(), NewSize(10, 1), config)
	require.NoError(t, err)
	require.NoError(t, rt.RegisterPlugin(&promptPlugin{}))

	err = rt.Bootstrap(&failingSink{failOn: 1})
	require.Error(t, err)

	var runtimeErr *RuntimeError
	require.True(t, errors.As(err, &runtimeErr))
	assert.Equal(t, CategoryRender, runtimeErr.Category)

	require.Equal(t,
		[]AuditStage{
			StageOpen, StageBoot, StageSetup, StageError, StageRecoverOrFatal,
			StageFatal, StageFatalCleanup, StageFatalClose,
		},
		audit.filtered(StageOpen, StageBoot, StageSetup, StageUserReady,
			StageError, StageRecoverOrFatal, StageFatal,
			StageFatalCleanup, StageFatalClose))
	assert.Zero(t, audit.count(StageUserReady))

	recovered, _ := a(audit, StageRecoverOrFatal)[0].Fields.Get("recovered")
	assert.Equal(t, false, recovered)
}

func TestLoopGuardLimit(t *testing.T) {
	audit := &recordingAudit{}
	config := DefaultConfig()
	config.Audit = audit
	config.LoopIterationLimit = 1

	rt, err := NewRuntimeWithConfig(promptLayout(), NewSize(10, 1), config)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, rt.RunScripted(NewSink(&out), []Event{
		TickEvent{}, TickEvent{}, TickEvent{},
	}))

	assert.Equal(t, 1, audit.count(StageLoopIn))
	assert.Equal(t, 1, audit.count(StageLoopGuardTriggered))
	assert.Equal(t, 1, audit.count(StageLoopAborted))
	assert.Equal(t, 1, audit.count(StageClose))
}

func TestSimulatedGuardLimit(t *testing.T) {
	audit := &recordingAudit{}
	config := DefaultConfig()
	config.Audit = audit
	config.LoopIterationLimit = 1
	config.SimulatedLoop = SimulatedTicks(3)

	rt, err := NewRuntimeWithConfig(promptLayout(), NewSize(10, 1), config)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, rt.Run(NewSink(&out)))

	assert.Equal(t, 1, audit.count(StageLoopGuardTriggered))
	assert.Equal(t, 1, audit.count(StageLoopAborted))
	assert.Equal(t, 1, audit.count(StageLoopSimulatedAborted))
	assert.Zero(t, audit.count(StageLoopSimulatedComplete))
}

func TestSimulatedSilentZero(t *testing.T) {
	audit := &recordingAudit{}
	config := DefaultConfig()
	config.Audit = audit
	config.SimulatedLoop = SimulatedSilent(0)

	rt, err := NewRuntimeWithConfig(promptLayout(), NewSize(10, 1), config)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, rt.Run(NewSink(&out)))

	assert.Zero(t, audit.count(StageLoopIn))
	assert.Zero(t, audit.count(StageLoopOut))
	require.Equal(t,
		[]AuditStage{
			StageOpen, StageBoot, StageSetup, StageUserReady,
			StageUserEnd, StageCleanup, StageEnd, StageClose,
		},
		audit.filtered(StageOpen, StageBoot, StageSetup, StageUserReady,
			StageUserEnd, StageCleanup, StageEnd, StageClose))
}

func TestScriptedWithSimulatedConfigIsFatal(t *testing.T) {
	audit := &recordingAudit{}
	config := DefaultConfig()
	config.Audit = audit
	config.SimulatedLoop = SimulatedTicks(1)

	rt, err := NewRuntimeWithConfig(promptLayout(), NewSize(10, 1), config)
	require.NoError(t, err)

	var out bytes.Buffer
	err = rt.RunScripted(NewSink(&out), nil)
	require.Error(t, err)

	var runtimeErr *RuntimeError
	require.True(t, errors.As(err, &runtimeErr))
	assert.Equal(t, CategoryConfig, runtimeErr.Category)
	assert.Zero(t, audit.count(StageBoot))
	assert.Equal(t, 1, audit.count(StageFatalClose))
}

func TestUserReadyLatchesOnce(t *testing.T) {
	audit := &recordingAudit{}
	config := DefaultConfig()
	config.Audit = audit

	rt, err := NewRuntimeWithConfig(promptLayout(), NewSize(10, 1), config)
	require.NoError(t, err)
	require.NoError(t, rt.RegisterPlugin(&promptPlugin{}))

	var out bytes.Buffer
	sink := NewSink(&out)
	require.NoError(t, rt.Bootstrap(sink))
	require.NoError(t, rt.Step(KeyEvent{Code: KeyRune, Rune: 'a'}, sink))
	require.NoError(t, rt.Step(KeyEvent{Code: KeyRune, Rune: 'b'}, sink))

	assert.Equal(t, 1, audit.count(StageUserReady))
}

// identicalWriter writes the same content every event.
type identicalWriter struct{}

func (identicalWriter) Name() string { return "test:identical" }

func (identicalWriter) OnEvent(ctx *RuntimeContext, event Event) (EventFlow, error) {
	if _, ok := event.(TickEvent); ok {
		ctx.SetZone("prompt", "constant")
	}
	return FlowContinue, nil
}

func TestIdenticalSetZoneRendersOnce(t *testing.T) {
	rt, err := NewRuntime(promptLayout(), NewSize(10, 1))
	require.NoError(t, err)
	require.NoError(t, rt.RegisterPlugin(identicalWriter{}))

	var out bytes.Buffer
	sink := NewSink(&out)
	require.NoError(t, rt.Bootstrap(sink))

	require.NoError(t, rt.Step(TickEvent{}, sink))
	firstLen := out.Len()
	assert.Contains(t, out.String(), "constant")

	require.NoError(t, rt.Step(TickEvent{}, sink))
	assert.Equal(t, firstLen, out.Len(), "second identical write must emit no bytes")
}

func TestUntouchedZoneStaysClean(t *testing.T) {
	rt, err := NewRuntime(promptLayout(), NewSize(10, 1))
	require.NoError(t, err)

	var out bytes.Buffer
	sink := NewSink(&out)
	require.NoError(t, rt.Bootstrap(sink))

	for _, r := range "abc" {
		require.NoError(t, rt.Step(KeyEvent{Code: KeyRune, Rune: r}, sink))
	}
	assert.False(t, rt.registry.HasDirty())
}

func TestZeroSizeTerminal(t *testing.T) {
	rt, err := NewRuntime(promptLayout(), NewSize(0, 0))
	require.NoError(t, err)
	require.Zero(t, rt.registry.Len())

	var out bytes.Buffer
	require.NoError(t, rt.Bootstrap(NewSink(&out)))
	assert.Zero(t, out.Len())
}

func TestResizeToSameSizeIsQuiet(t *testing.T) {
	rt, err := NewRuntime(promptLayout(), NewSize(10, 1))
	require.NoError(t, err)
	require.NoError(t, rt.RegisterPlugin(&promptPlugin{}))

	var out bytes.Buffer
	sink := NewSink(&out)
	require.NoError(t, rt.Bootstrap(sink))
	out.Reset()

	require.NoError(t, rt.Step(ResizeEvent{Size: NewSize(10, 1)}, sink))
	assert.Zero(t, out.Len(), "same-size resize must not repaint stable zones")
}

// panicPlugin panics on key events.
type panicPlugin struct{}

func (panicPlugin) Name() string { return "test:panic" }

func (panicPlugin) OnEvent(*RuntimeContext, Event) (EventFlow, error) {
	panic("boom")
}

func TestPluginPanicIsFatal(t *testing.T) {
	audit := &recordingAudit{}
	config := DefaultConfig()
	config.Audit = audit

	rt, err := NewRuntimeWithConfig(promptLayout(), NewSize(10, 1), config)
	require.NoError(t, err)
	require.NoError(t, rt.RegisterPluginWithPriority(&rescuerPlugin{}, -10))
	require.NoError(t, rt.RegisterPlugin(panicPlugin{}))

	var out bytes.Buffer
	sink := NewSink(&out)
	require.NoError(t, rt.Bootstrap(sink))
	require.NoError(t, rt.Step(KeyEvent{Code: KeyRune, Rune: 'x'}, sink))

	// The rescuer never gets an offer: panics skip recovery.
	assert.Equal(t, 1, audit.count(StageFatal))
	assert.True(t, rt.ShouldExit())
}

// tickCounter observes ticks through the dedicated hook.
type tickCounter struct {
	ticks int
}

func (t *tickCounter) Name() string { return "test:tick_counter" }

func (t *tickCounter) OnTick(*RuntimeContext, TickEvent) error {
	t.ticks++
	return nil
}

// tickEater consumes every tick in the event chain.
type tickEater struct{}

func (tickEater) Name() string { return "test:tick_eater" }

func (tickEater) OnEvent(_ *RuntimeContext, event Event) (EventFlow, error) {
	if _, ok := event.(TickEvent); ok {
		return FlowConsumed, nil
	}
	return FlowContinue, nil
}

func TestTickObserverSeesConsumedTicks(t *testing.T) {
	rt, err := NewRuntime(promptLayout(), NewSize(10, 1))
	require.NoError(t, err)
	counter := &tickCounter{}
	require.NoError(t, rt.RegisterPluginWithPriority(tickEater{}, -10))
	require.NoError(t, rt.RegisterPlugin(counter))

	var out bytes.Buffer
	sink := NewSink(&out)
	require.NoError(t, rt.Bootstrap(sink))
	require.NoError(t, rt.Step(TickEvent{}, sink))
	require.NoError(t, rt.Step(TickEvent{}, sink))

	assert.Equal(t, 2, counter.ticks)
}

// orderPlugin records the dispatch order of its hooks.
type orderPlugin struct {
	name  string
	trace *[]string
}

func (p *orderPlugin) Name() string { return p.name }

func (p *orderPlugin) OnEvent(*RuntimeContext, Event) (EventFlow, error) {
	*p.trace = append(*p.trace, p.name)
	return FlowContinue, nil
}

func TestPluginDispatchOrder(t *testing.T) {
	rt, err := NewRuntime(promptLayout(), NewSize(10, 1))
	require.NoError(t, err)

	var trace []string
	require.NoError(t, rt.RegisterPluginWithPriority(&orderPlugin{"late", &trace}, 50))
	require.NoError(t, rt.RegisterPluginWithPriority(&orderPlugin{"early", &trace}, -50))
	require.NoError(t, rt.RegisterPluginWithPriority(&orderPlugin{"tie_a", &trace}, 0))
	require.NoError(t, rt.RegisterPluginWithPriority(&orderPlugin{"tie_b", &trace}, 0))

	var out bytes.Buffer
	sink := NewSink(&out)
	require.NoError(t, rt.Bootstrap(sink))
	require.NoError(t, rt.Step(TickEvent{}, sink))

	require.Equal(t, []string{"early", "tie_a", "tie_b", "late"}, trace)
}

func TestDuplicatePluginNameRejected(t *testing.T) {
	rt, err := NewRuntime(promptLayout(), NewSize(10, 1))
	require.NoError(t, err)
	require.NoError(t, rt.RegisterPlugin(&promptPlugin{}))
	err = rt.RegisterPlugin(&promptPlugin{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

// exitOnKey requests exit when a key arrives.
type exitOnKey struct{}

func (exitOnKey) Name() string { return "test:exit" }

func (exitOnKey) OnEvent(ctx *RuntimeContext, event Event) (EventFlow, error) {
	if _, ok := event.(KeyEvent); ok {
		ctx.RequestExit()
		return FlowConsumed, nil
	}
	return FlowContinue, nil
}

func TestRequestExitRunsGracefulTeardown(t *testing.T) {
	audit := &recordingAudit{}
	config := DefaultConfig()
	config.Audit = audit

	rt, err := NewRuntimeWithConfig(promptLayout(), NewSize(10, 1), config)
	require.NoError(t, err)
	require.NoError(t, rt.RegisterPlugin(exitOnKey{}))

	var out bytes.Buffer
	require.NoError(t, rt.RunScripted(NewSink(&out), []Event{
		KeyEvent{Code: KeyRune, Rune: 'q'},
		TickEvent{},
	}))

	// The exit event still completes its LoopOut, and the tick never runs.
	assert.Equal(t, 1, audit.count(StageLoopIn))
	assert.Equal(t, 1, audit.count(StageLoopOut))
	require.Equal(t,
		[]AuditStage{StageUserEnd, StageCleanup, StageEnd, StageClose},
		audit.filtered(StageUserEnd, StageCleanup, StageEnd, StageClose))
	assert.Equal(t, 1, audit.count(StageUserEnd))

	end, ok := audit.find(StageEnd)
	require.True(t, ok)
	_, hasUptime := end.Fields.Get("uptime_ms")
	assert.True(t, hasUptime)
}

func TestEveryEventHasMatchingLoopBookends(t *testing.T) {
	audit := &recordingAudit{}
	config := DefaultConfig()
	config.Audit = audit

	rt, err := NewRuntimeWithConfig(promptLayout(), NewSize(10, 1), config)
	require.NoError(t, err)
	require.NoError(t, rt.RegisterPlugin(&promptPlugin{}))

	var out bytes.Buffer
	events := []Event{
		KeyEvent{Code: KeyRune, Rune: 'a'},
		TickEvent{},
		PasteEvent{Text: "yo"},
		ResizeEvent{Size: NewSize(12, 1)},
	}
	require.NoError(t, rt.RunScripted(NewSink(&out), events))

	ins := a(audit, StageLoopIn)
	outs := a(audit, StageLoopOut)
	require.Len(t, ins, len(events))
	require.Len(t, outs, len(events))
	for i := range ins {
		inKind, _ := ins[i].Fields.Get("event")
		outKind, _ := outs[i].Fields.Get("event")
		assert.Equal(t, inKind, outKind, "bookend %d", i)
		assert.Equal(t, events[i].Kind().String(), inKind)
	}
}

func TestStepBeforeBootstrapFails(t *testing.T) {
	rt, err := NewRuntime(promptLayout(), NewSize(10, 1))
	require.NoError(t, err)
	var out bytes.Buffer
	require.Error(t, rt.Step(TickEvent{}, NewSink(&out)))
}

func TestRunWithoutSimulatedLoopIsConfigError(t *testing.T) {
	rt, err := NewRuntime(promptLayout(), NewSize(10, 1))
	require.NoError(t, err)
	var out bytes.Buffer
	err = rt.Run(NewSink(&out))
	require.Error(t, err)
	var runtimeErr *RuntimeError
	require.True(t, errors.As(err, &runtimeErr))
	assert.Equal(t, CategoryConfig, runtimeErr.Category)
}

func TestLayoutSolveFailureOnResizeIsFatalByDefault(t *testing.T) {
	audit := &recordingAudit{}
	config := DefaultConfig()
	config.Audit = audit

	calls := 0
	layout := LayoutFunc(func(size Size) (map[ZoneID]Rect, error) {
		calls++
		if calls > 1 {
			return nil, fmt.Errorf("solver exploded")
		}
		return map[ZoneID]Rect{"prompt": NewRect(0, 0, size.Width, 1)}, nil
	})

	rt, err := NewRuntimeWithConfig(layout, NewSize(10, 1), config)
	require.NoError(t, err)

	var out bytes.Buffer
	sink := NewSink(&out)
	require.NoError(t, rt.Bootstrap(sink))
	require.NoError(t, rt.Step(ResizeEvent{Size: NewSize(20, 2)}, sink))

	assert.Equal(t, 1, audit.count(StageFatal))
	assert.True(t, rt.ShouldExit())
	event, _ := audit.find(StageError)
	errField, _ := event.Fields.Get("error")
	category, _ := errField.(Fields).Get("category")
	assert.Equal(t, "layout", category)
}
