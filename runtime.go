package room

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const runtimeFocusOwner = "room:runtime"

// pendingError is a raised RuntimeError awaiting the recovery pass.
// forceFatal marks errors that never get a recovery offer (plugin panics,
// config contradictions).
type pendingError struct {
	err        RuntimeError
	forceFatal bool
}

// Runtime is the top-level coordinator: it owns the layout solver, the zone
// registry, the renderer, the plugin pipeline, the optional screen manager,
// and the shared focus/cursor/audit substrate, and drives them through the
// lifecycle state machine.
//
// The runtime is single-threaded and cooperative: every plugin hook,
// renderer call, and audit emission happens on the goroutine that calls
// Bootstrap/Step/Run. Only the shared resource map may be read from
// elsewhere.
type Runtime struct {
	layout   Layout
	rects    map[ZoneID]Rect
	registry *ZoneRegistry
	renderer *Renderer
	plugins  []*pluginEntry
	seq      int
	config   RuntimeConfig
	audit    AuditSink
	shared   *SharedState
	screens  *ScreenManager

	size             Size
	shouldExit       bool
	redrawRequested  bool
	bootstrapped     bool
	finalized        bool
	userReadyEmitted bool
	userEndEmitted   bool
	fatalActive      bool
	guardTripped     bool
	iteration        uint64
	start            time.Time
	lastMetricsEmit  time.Time

	cursors             cursorManager
	pendingCursorEvents []CursorEvent
	pendingFocus        []FocusChange
	pendingErrors       []pendingError
	lastFocus           *FocusTarget
	lastFatal           *RuntimeError
}

// NewRuntime creates a runtime with the default configuration.
func NewRuntime(layout Layout, size Size) (*Runtime, error) {
	return NewRuntimeWithConfig(layout, size, DefaultConfig())
}

// NewRuntimeWithConfig creates a runtime, solving the initial layout and
// priming the zone registry.
func NewRuntimeWithConfig(layout Layout, size Size, config RuntimeConfig) (*Runtime, error) {
	rects, err := layout.Solve(size)
	if err != nil {
		return nil, fmt.Errorf("initial solve: %w", err)
	}
	if err := validateSolve(size, rects); err != nil {
		return nil, fmt.Errorf("initial solve: %w", err)
	}

	audit := config.Audit
	if audit == nil {
		audit = NullAudit{}
	}

	r := &Runtime{
		layout:          layout,
		rects:           rects,
		registry:        NewZoneRegistry(),
		renderer:        NewRenderer(),
		config:          config,
		audit:           audit,
		shared:          NewSharedState(),
		size:            size,
		redrawRequested: true,
		cursors:         newCursorManager(),
	}
	r.registry.ApplyLayout(rects)
	r.auditRecord(StageRuntimeConstructed, nil)
	return r, nil
}

// Config returns the runtime configuration for inspection.
func (r *Runtime) Config() RuntimeConfig {
	return r.config
}

// SharedStateHandle returns the session's shared resource map. The map is
// the only runtime-owned object safe to read off the coordinator goroutine.
func (r *Runtime) SharedStateHandle() *SharedState {
	return r.shared
}

// Size returns the current terminal size.
func (r *Runtime) Size() Size {
	return r.size
}

// ShouldExit reports whether the runtime wants the driver loop to stop.
func (r *Runtime) ShouldExit() bool {
	return r.shouldExit
}

// SetScreenManager attaches a screen manager so callers can orchestrate
// multi-screen flows.
func (r *Runtime) SetScreenManager(manager *ScreenManager) {
	manager.shared = r.shared
	r.screens = manager
}

// ScreenManager returns the attached manager, if any.
func (r *Runtime) ScreenManager() (*ScreenManager, bool) {
	return r.screens, r.screens != nil
}

// RegisterPlugin registers a plugin at priority 0.
func (r *Runtime) RegisterPlugin(p Plugin) error {
	return r.RegisterPluginWithPriority(p, 0)
}

// RegisterPluginWithPriority registers a plugin. Lower priorities dispatch
// first; ties break on registration order. Duplicate names are rejected.
func (r *Runtime) RegisterPluginWithPriority(p Plugin, priority int) error {
	if err := validatePluginName(r.plugins, p.Name()); err != nil {
		return err
	}
	r.plugins = append(r.plugins, &pluginEntry{
		name:     p.Name(),
		priority: priority,
		seq:      r.seq,
		plugin:   p,
	})
	r.seq++
	sortPluginEntries(r.plugins)
	r.auditRecord(StagePluginRegistered, Fields{
		F("plugin", p.Name()),
		F("priority", priority),
	})
	return nil
}

// RegisterBundle registers every plugin in a bundle.
func (r *Runtime) RegisterBundle(bundle *PluginBundle) error {
	return bundle.registerInto(r)
}

// Bootstrap drives Open → Boot → Setup → first render → UserReady. Drivers
// call it exactly once before stepping events. A failed first render enters
// the fatal path and returns the fatal error after teardown.
func (r *Runtime) Bootstrap(sink OutputSink) error {
	if r.bootstrapped {
		return nil
	}
	if err := r.bootstrapPrepare(sink); err != nil {
		return err
	}
	r.renderIfNeeded(sink)
	if r.fatalActive {
		r.Finalize(sink)
		if r.lastFatal != nil {
			return r.lastFatal
		}
		return fmt.Errorf("bootstrap failed")
	}
	return nil
}

// Step processes one driver-supplied event: loop guard, resize handling,
// dispatch, navigation drain, and the render pass. All work induced by the
// event completes before Step returns.
func (r *Runtime) Step(event Event, sink OutputSink) error {
	if !r.bootstrapped {
		return fmt.Errorf("runtime not bootstrapped")
	}
	if r.finalized || r.fatalActive || r.shouldExit {
		return nil
	}
	if r.config.LoopIterationLimit > 0 && r.iteration >= r.config.LoopIterationLimit {
		r.guardTripped = true
		r.auditRecord(StageLoopGuardTriggered, nil)
		r.logStage("loop_guard_triggered")
		r.auditRecord(StageLoopAborted, nil)
		r.logStage("loop_aborted")
		r.shouldExit = true
		return nil
	}
	r.iteration++

	if resize, ok := event.(ResizeEvent); ok {
		r.handleResize(resize.Size)
	}
	r.dispatchEvent(event)
	r.drainNavigation()
	r.renderIfNeeded(sink)
	r.maybeEmitMetrics()
	return nil
}

// Run executes the configured simulated loop to completion. Interactive
// sessions are driver-owned; calling Run without a simulated loop is a
// config error and takes the fatal path before Boot.
func (r *Runtime) Run(sink OutputSink) error {
	if r.config.SimulatedLoop == nil {
		return r.configFatal(sink, "run requires a simulated loop; interactive sessions are driver-owned")
	}
	return r.runSimulated(sink, *r.config.SimulatedLoop)
}

// RunScripted consumes an ordered list of events to completion. Configuring
// both a scripted run and a simulated loop is contradictory and fatal
// before Boot.
func (r *Runtime) RunScripted(sink OutputSink, events []Event) error {
	if r.config.SimulatedLoop != nil {
		return r.configFatal(sink, "scripted and simulated loop modes are mutually exclusive")
	}
	if err := r.Bootstrap(sink); err != nil {
		return err
	}
	for _, event := range events {
		if r.shouldExit {
			break
		}
		if err := r.Step(event, sink); err != nil {
			return err
		}
		if r.shouldExit {
			break
		}
	}
	r.Finalize(sink)
	if r.lastFatal != nil {
		return r.lastFatal
	}
	return nil
}

func (r *Runtime) runSimulated(sink OutputSink, sim SimulatedLoop) error {
	if err := r.Bootstrap(sink); err != nil {
		return err
	}
	r.auditRecord(StageLoopSimulated, Fields{
		F("iterations", sim.MaxIterations),
		F("ticks", sim.DispatchTicks),
	})
	r.logStage("loop_simulated")

	lastTick := time.Now()
	for i := 0; i < sim.MaxIterations && !r.shouldExit; i++ {
		if r.config.LoopIterationLimit > 0 && r.iteration >= r.config.LoopIterationLimit {
			r.guardTripped = true
			r.auditRecord(StageLoopGuardTriggered, nil)
			r.logStage("loop_guard_triggered")
			r.auditRecord(StageLoopAborted, nil)
			r.logStage("loop_aborted")
			break
		}
		r.iteration++

		if sim.DispatchTicks {
			now := time.Now()
			elapsed := now.Sub(lastTick)
			lastTick = now
			r.dispatchEvent(TickEvent{Elapsed: elapsed, At: now})
			r.auditRecord(StageTickDispatched, nil)
		}
		r.drainNavigation()
		r.renderIfNeeded(sink)
	}

	if r.fatalActive || r.guardTripped {
		r.auditRecord(StageLoopSimulatedAborted, nil)
		r.logStage("loop_simulated_aborted")
	} else {
		r.auditRecord(StageLoopSimulatedComplete, nil)
		r.logStage("loop_simulated_complete")
	}
	r.Finalize(sink)
	if r.lastFatal != nil {
		return r.lastFatal
	}
	return nil
}

// Resize re-solves the layout for a new terminal size. Drivers call this
// (or deliver a ResizeEvent) whenever the terminal size changes.
func (r *Runtime) Resize(size Size) {
	r.handleResize(size)
}

// Finalize runs teardown: the graceful UserEnd → Cleanup → End → Close
// sequence, or FatalCleanup → FatalClose when the fatal path is active.
// Idempotent.
func (r *Runtime) Finalize(sink OutputSink) {
	if r.finalized {
		return
	}
	r.finalized = true
	uptime := time.Since(r.start).Milliseconds()

	if r.fatalActive {
		r.fatalTeardown(sink, uptime)
		return
	}

	if !r.userEndEmitted {
		r.userEndEmitted = true
		r.auditRecord(StageUserEnd, nil)
		r.logStage("user_end")
		r.notifyPlugins(func(p Plugin, ctx *RuntimeContext) (bool, error) {
			hook, ok := p.(UserEndHook)
			if !ok {
				return false, nil
			}
			return true, hook.OnUserEnd(ctx)
		})
	}

	r.auditRecord(StageCleanup, nil)
	r.logStage("cleanup")
	r.notifyPlugins(func(p Plugin, ctx *RuntimeContext) (bool, error) {
		hook, ok := p.(CleanupHook)
		if !ok {
			return false, nil
		}
		return true, hook.OnCleanup(ctx)
	})
	r.processPendingErrors()
	if r.fatalActive {
		// Cleanup-phase errors that stay unrecovered win over the
		// graceful tail.
		r.fatalTeardown(sink, uptime)
		return
	}

	r.auditRecord(StageEnd, Fields{F("uptime_ms", uptime)})
	r.logStage("end")
	r.auditRecord(StageClose, nil)
	r.logStage("close")
	r.notifyPlugins(func(p Plugin, ctx *RuntimeContext) (bool, error) {
		hook, ok := p.(CloseHook)
		if !ok {
			return false, nil
		}
		return true, hook.OnClose(ctx)
	})
	r.auditRecord(StageRuntimeStopped, Fields{F("uptime_ms", uptime)})
}

// fatalTeardown restores cursor visibility, releases focus, flushes any
// gated audit buffer, and closes out the fatal path. No plugin hooks run
// past this point. An exit request raised during FatalCleanup has no
// effect; the fatal path wins.
func (r *Runtime) fatalTeardown(sink OutputSink, uptime int64) {
	r.auditRecord(StageFatalCleanup, Fields{F("uptime_ms", uptime)})
	r.logStage("fatal_cleanup")

	if sink != nil {
		sink.Write([]byte(seqShowCursor))
		sink.Flush()
	}
	if reg, err := Shared[FocusRegistry](r.shared); err == nil {
		if current := reg.Current(); current != nil {
			reg.ClearFocus(current.Owner)
		}
	}
	if gated, ok := r.audit.(*BootstrapAudit); ok {
		gated.Release()
	}

	r.auditRecord(StageFatalClose, nil)
	r.logStage("fatal_close")
	r.auditRecord(StageRuntimeStopped, Fields{F("uptime_ms", uptime)})
}

// ActivateScreen swaps the active screen: lifecycle notifications, an
// atomic layout swap, panel registration against the screen's persistent
// state namespace, and a forced full redraw.
func (r *Runtime) ActivateScreen(id string) error {
	if r.screens == nil {
		return fmt.Errorf("screen manager not installed")
	}
	def, err := r.screens.definition(id)
	if err != nil {
		return err
	}

	if r.screens.active != nil {
		r.invokeStrategyLifecycle(r.screens.active.strategy, ScreenWillDisappear)
	}

	strategy := def.Factory()
	r.invokeStrategyLifecycle(strategy, ScreenWillAppear)

	if err := r.applyScreenLayout(strategy.Layout()); err != nil {
		return err
	}
	state, ok := r.screens.ScreenState(id)
	if !ok {
		return fmt.Errorf("screen %q has no state namespace", id)
	}
	if err := strategy.RegisterPanels(r, state); err != nil {
		return fmt.Errorf("screen %q register panels: %w", id, err)
	}

	previous := r.screens.active
	r.screens.active = &activeScreen{id: id, strategy: strategy}
	r.invokeStrategyLifecycle(strategy, ScreenDidAppear)
	if previous != nil {
		r.invokeStrategyLifecycle(previous.strategy, ScreenDidDisappear)
	}
	return nil
}

func (r *Runtime) invokeStrategyLifecycle(strategy ZoneStrategy, event ScreenLifecycle) {
	if err := strategy.OnLifecycle(event); err != nil {
		r.raise(RuntimeError{
			Category:    CategoryPlugin,
			Source:      "room:screen_manager",
			Message:     err.Error(),
			Recoverable: true,
		}, false)
	}
}

// applyScreenLayout swaps the runtime's layout, re-solves for the current
// size, and forces a full redraw.
func (r *Runtime) applyScreenLayout(layout Layout) error {
	rects, err := layout.Solve(r.size)
	if err != nil {
		return fmt.Errorf("screen layout solve: %w", err)
	}
	if err := validateSolve(r.size, rects); err != nil {
		return fmt.Errorf("screen layout solve: %w", err)
	}
	r.layout = layout
	r.rects = rects
	r.registry.ApplyLayout(rects)
	r.registry.MarkAllDirty()
	r.redrawRequested = true
	return nil
}

// dispatchEvent drives one event through the screen manager and the plugin
// chain, bracketed by LoopIn/LoopOut. Errors raised along the way drain
// through the recovery path before LoopOut is emitted.
func (r *Runtime) dispatchEvent(event Event) {
	kind := event.Kind()
	r.auditRecord(StageLoopIn, Fields{
		F("event", kind.String()),
		F("iteration", r.iteration),
	})

	consumed := false
	consumedBy := ""

	if r.screens != nil {
		ctx := newRuntimeContext(r.rects, r.shared)
		flow, err := r.screens.HandleEvent(ctx, event)
		r.applyOutcome(ctx.outcome())
		if err != nil {
			r.raise(RuntimeError{
				Category:    CategoryPlugin,
				Source:      "room:screen_manager",
				Message:     err.Error(),
				Recoverable: true,
			}, false)
		}
		if flow == FlowConsumed {
			consumed = true
			consumedBy = "screen_manager"
		}
	}

	if !consumed {
		for _, entry := range r.plugins {
			handler, ok := entry.plugin.(EventHandler)
			if !ok {
				continue
			}
			flow := FlowContinue
			r.invokeHook(entry, func(ctx *RuntimeContext) error {
				f, err := handler.OnEvent(ctx, event)
				flow = f
				return err
			})
			if flow == FlowConsumed {
				consumed = true
				consumedBy = entry.name
				break
			}
			if r.fatalActive {
				break
			}
		}
	}

	if tick, ok := event.(TickEvent); ok {
		r.notifyPlugins(func(p Plugin, ctx *RuntimeContext) (bool, error) {
			hook, ok := p.(TickObserver)
			if !ok {
				return false, nil
			}
			return true, hook.OnTick(ctx, tick)
		})
	}

	if r.config.Metrics != nil {
		r.config.Metrics.RecordEvent()
	}
	dispatched := Fields{
		F("event", kind.String()),
		F("consumed", consumed),
	}
	if consumedBy != "" {
		dispatched = append(dispatched, F("consumed_by", consumedBy))
	}
	r.auditRecord(StageEventDispatched, dispatched)

	r.flushNotifications()
	r.processPendingErrors()

	r.auditRecord(StageLoopOut, Fields{
		F("event", kind.String()),
		F("consumed", consumed),
		F("iteration", r.iteration),
	})
}

// renderIfNeeded runs the render pass when anything requested one. The
// UserReady stage latches on the first completed pass regardless of whether
// zones were dirty, so drivers gating input on it never stall.
func (r *Runtime) renderIfNeeded(sink OutputSink) {
	if r.fatalActive {
		return
	}
	if !r.redrawRequested {
		r.auditRecord(StageRenderSkipped, nil)
		return
	}
	r.redrawRequested = false

	r.notifyPlugins(func(p Plugin, ctx *RuntimeContext) (bool, error) {
		hook, ok := p.(BeforeRenderer)
		if !ok {
			return false, nil
		}
		return true, hook.BeforeRender(ctx)
	})

	dirty := r.registry.IterDirty()
	if len(dirty) > 0 {
		if err := r.renderer.Render(sink, dirty); err != nil {
			r.raise(RuntimeError{
				Category:    CategoryRender,
				Source:      "room:renderer",
				Message:     err.Error(),
				Recoverable: false,
			}, false)
			r.processPendingErrors()
			return
		}
		for _, zone := range dirty {
			r.registry.MarkClean(zone.ID, zone.State.ContentHash)
		}
		if r.config.Metrics != nil {
			r.config.Metrics.RecordRender(len(dirty))
		}
		r.auditRecord(StageRenderCommitted, Fields{F("dirty_zones", len(dirty))})
	}

	if !r.userReadyEmitted && !r.fatalActive {
		r.userReadyEmitted = true
		r.auditRecord(StageUserReady, nil)
		r.logStage("user_ready")
		r.notifyPlugins(func(p Plugin, ctx *RuntimeContext) (bool, error) {
			hook, ok := p.(UserReadyHook)
			if !ok {
				return false, nil
			}
			return true, hook.OnUserReady(ctx)
		})
	}

	r.notifyPluginsReadOnly(func(p Plugin, ctx *RuntimeContext) (bool, error) {
		hook, ok := p.(AfterRenderer)
		if !ok {
			return false, nil
		}
		return true, hook.AfterRender(ctx)
	})

	if r.registry.HasDirty() {
		r.redrawRequested = true
	}

	r.flushNotifications()
	r.processPendingErrors()
}

// handleResize re-solves for a new size. ApplyLayout only dirties zones
// whose rects changed, so same-size re-solves are no-ops; a real size
// change invalidates everything since the surrounding cells moved.
func (r *Runtime) handleResize(size Size) {
	changed := size != r.size
	r.size = size

	rects, err := r.layout.Solve(size)
	if err == nil {
		err = validateSolve(size, rects)
	}
	if err != nil {
		r.raise(RuntimeError{
			Category:    CategoryLayout,
			Source:      "room:layout",
			Message:     err.Error(),
			Recoverable: false,
		}, false)
		return
	}

	r.rects = rects
	r.registry.ApplyLayout(rects)
	if changed {
		r.registry.MarkAllDirty()
	}
	r.redrawRequested = true
	r.logEvent(slog.LevelInfo, "resized",
		slog.Int("width", size.Width), slog.Int("height", size.Height))
}

// drainNavigation honors the last screen activation queued during this
// event cycle.
func (r *Runtime) drainNavigation() {
	if r.screens == nil {
		return
	}
	id, ok := r.screens.navigator.drain()
	if !ok {
		return
	}
	if err := r.ActivateScreen(id); err != nil {
		r.raise(RuntimeError{
			Category:    CategoryLayout,
			Source:      "room:screen_manager",
			Message:     err.Error(),
			Recoverable: false,
		}, false)
		r.processPendingErrors()
	}
}

// applyOutcome commits the side effects one hook collected: zone writes,
// redraw/exit requests, cursor updates, raised errors, and the focus-change
// detection that keeps focus events synchronous with their cause.
func (r *Runtime) applyOutcome(outcome contextOutcome) {
	if len(outcome.zoneUpdates) > 0 {
		for _, update := range outcome.zoneUpdates {
			if err := r.registry.SetZone(update.zone, update.lines, update.preRendered); err != nil {
				r.raise(RuntimeError{
					Category:    CategoryState,
					Source:      "room:registry",
					Message:     err.Error(),
					Recoverable: true,
				}, false)
			}
		}
		if r.config.Metrics != nil {
			r.config.Metrics.RecordZoneUpdates(len(outcome.zoneUpdates))
		}
		r.redrawRequested = true
	}
	if outcome.redrawRequested {
		r.redrawRequested = true
	}

	if outcome.cursor.position != nil {
		pos := *outcome.cursor.position
		r.renderer.Settings().RestoreCursor = &pos
	}
	if outcome.cursor.visible != nil {
		visible := *outcome.cursor.visible
		r.renderer.Settings().CursorVisible = &visible
	}
	if events := r.cursors.apply(&outcome.cursor); len(events) > 0 {
		r.pendingCursorEvents = append(r.pendingCursorEvents, events...)
	}

	// Exit takes effect after the current event drains (its LoopOut still
	// fires); UserEnd is emitted by Finalize. The fatal path wins over a
	// late exit request.
	if outcome.exitRequested && !r.fatalActive {
		r.shouldExit = true
	}

	if outcome.err != nil {
		r.raise(*outcome.err, false)
	}

	r.detectFocusChange()
}

// applyOutcomeReadOnly applies an after-render outcome: zone writes and
// redraw requests are discarded, everything else behaves normally.
func (r *Runtime) applyOutcomeReadOnly(outcome contextOutcome) {
	outcome.zoneUpdates = nil
	outcome.redrawRequested = false
	r.applyOutcome(outcome)
}

// detectFocusChange diffs the shared focus registry against the last
// observed target and queues a FocusChanged notification on transitions.
func (r *Runtime) detectFocusChange() {
	reg, err := Shared[FocusRegistry](r.shared)
	if err != nil {
		return
	}
	current := reg.Current()
	if focusTargetsEqual(current, r.lastFocus) {
		return
	}
	r.pendingFocus = append(r.pendingFocus, FocusChange{From: r.lastFocus, To: current})
	r.lastFocus = current
}

func focusTargetsEqual(a, b *FocusTarget) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// flushNotifications emits queued cursor and focus events (audit stage
// plus observer hooks) inside the event that caused them.
func (r *Runtime) flushNotifications() {
	cursorEvents := r.pendingCursorEvents
	r.pendingCursorEvents = nil
	for _, event := range cursorEvents {
		switch event.Kind {
		case CursorMoved:
			r.auditRecord(StageCursorMoved, event.Cursor.auditFields())
		case CursorShown:
			r.auditRecord(StageCursorShown, event.Cursor.auditFields())
		case CursorHidden:
			r.auditRecord(StageCursorHidden, event.Cursor.auditFields())
		}
		notify := event
		r.notifyPlugins(func(p Plugin, ctx *RuntimeContext) (bool, error) {
			hook, ok := p.(CursorObserver)
			if !ok {
				return false, nil
			}
			return true, hook.OnCursorChange(ctx, notify)
		})
	}

	focusChanges := r.pendingFocus
	r.pendingFocus = nil
	for _, change := range focusChanges {
		r.auditRecord(StageFocusChanged, change.auditFields())
		notify := change
		r.notifyPlugins(func(p Plugin, ctx *RuntimeContext) (bool, error) {
			hook, ok := p.(FocusObserver)
			if !ok {
				return false, nil
			}
			return true, hook.OnFocusChange(ctx, notify)
		})
	}
}

// raise queues a RuntimeError for the recovery pass.
func (r *Runtime) raise(err RuntimeError, forceFatal bool) {
	r.pendingErrors = append(r.pendingErrors, pendingError{err: err, forceFatal: forceFatal})
}

// processPendingErrors drains raised errors through
// Error → RecoverOrFatal → resume-or-Fatal. Error hooks may flip
// Recoverable and patch fields; panics and config errors skip the offer.
func (r *Runtime) processPendingErrors() {
	for len(r.pendingErrors) > 0 && !r.fatalActive {
		pending := r.pendingErrors
		r.pendingErrors = nil

		for _, pe := range pending {
			err := pe.err
			r.auditRecord(StageError, err.auditFields())
			r.logEvent(slog.LevelError, "runtime_error",
				slog.String("category", string(err.Category)),
				slog.String("source", err.Source),
				slog.String("message", err.Message))

			if !pe.forceFatal {
				r.notifyPlugins(func(p Plugin, ctx *RuntimeContext) (bool, error) {
					hook, ok := p.(ErrorHook)
					if !ok {
						return false, nil
					}
					return true, hook.OnError(ctx, &err)
				})
			}

			recovered := err.Recoverable && !pe.forceFatal
			fields := append(Fields{F("recovered", recovered)}, err.auditFields()...)
			r.auditRecord(StageRecoverOrFatal, fields)
			recoveredCopy := recovered
			errCopy := err
			r.notifyPlugins(func(p Plugin, ctx *RuntimeContext) (bool, error) {
				hook, ok := p.(RecoverHook)
				if !ok {
					return false, nil
				}
				return true, hook.OnRecoverOrFatal(ctx, errCopy, recoveredCopy)
			})

			if recovered {
				r.logEvent(slog.LevelInfo, "runtime_error_recovered",
					slog.String("category", string(err.Category)))
				continue
			}

			r.auditRecord(StageFatal, err.auditFields())
			r.logStage("fatal")
			r.notifyPlugins(func(p Plugin, ctx *RuntimeContext) (bool, error) {
				hook, ok := p.(FatalHook)
				if !ok {
					return false, nil
				}
				return true, hook.OnFatal(ctx)
			})
			r.fatalActive = true
			r.shouldExit = true
			fatal := err
			r.lastFatal = &fatal
			// No further plugin hooks run once fatal cleanup begins.
			r.pendingErrors = nil
			return
		}
	}
}

// applyConfiguredFocus applies RuntimeConfig.DefaultFocusZone through the
// focus substrate so the resulting FocusChanged event flows like any other.
func (r *Runtime) applyConfiguredFocus() {
	zone := r.config.DefaultFocusZone
	if zone == "" {
		return
	}
	reg, err := SharedInit(r.shared, NewFocusRegistry)
	if err != nil {
		r.raise(RuntimeError{
			Category:    CategoryState,
			Source:      runtimeFocusOwner,
			Message:     fmt.Sprintf("focus registry: %v", err),
			Recoverable: false,
		}, false)
		return
	}
	controller := NewFocusController(runtimeFocusOwner, reg)
	controller.Focus(zone)
	r.detectFocusChange()
}

// configFatal takes the fatal path for an illegal configuration, before
// Boot ever runs.
func (r *Runtime) configFatal(sink OutputSink, message string) error {
	r.raise(RuntimeError{
		Category:    CategoryConfig,
		Source:      "room:runtime",
		Message:     message,
		Recoverable: false,
	}, true)
	r.processPendingErrors()
	r.Finalize(sink)
	if r.lastFatal != nil {
		return r.lastFatal
	}
	return fmt.Errorf("illegal configuration: %s", message)
}

// notifyPlugins invokes one hook on every plugin in priority order,
// applying each hook's collected side effects before the next plugin runs
// so lower-priority plugins observe earlier mutations.
func (r *Runtime) notifyPlugins(invoke func(p Plugin, ctx *RuntimeContext) (bool, error)) {
	for _, entry := range r.plugins {
		r.invokeHook(entry, func(ctx *RuntimeContext) error {
			_, err := invoke(entry.plugin, ctx)
			return err
		})
		if r.fatalActive {
			return
		}
	}
}

// notifyPluginsReadOnly is notifyPlugins with zone/redraw effects dropped.
func (r *Runtime) notifyPluginsReadOnly(invoke func(p Plugin, ctx *RuntimeContext) (bool, error)) {
	for _, entry := range r.plugins {
		r.invokeHookReadOnly(entry, func(ctx *RuntimeContext) error {
			_, err := invoke(entry.plugin, ctx)
			return err
		})
		if r.fatalActive {
			return
		}
	}
}

// invokeHook runs one hook with panic containment. A hook error surfaces on
// the error sink with recovery offered; a panic is fatal.
func (r *Runtime) invokeHook(entry *pluginEntry, hook func(ctx *RuntimeContext) error) {
	ctx := newRuntimeContext(r.rects, r.shared)
	err := r.callContained(entry, ctx, hook)
	r.applyOutcome(ctx.outcome())
	if err != nil {
		r.raise(RuntimeError{
			Category:    CategoryPlugin,
			Source:      entry.name,
			Message:     err.Error(),
			Recoverable: false,
		}, false)
	}
}

func (r *Runtime) invokeHookReadOnly(entry *pluginEntry, hook func(ctx *RuntimeContext) error) {
	ctx := newRuntimeContext(r.rects, r.shared)
	err := r.callContained(entry, ctx, hook)
	r.applyOutcomeReadOnly(ctx.outcome())
	if err != nil {
		r.raise(RuntimeError{
			Category:    CategoryPlugin,
			Source:      entry.name,
			Message:     err.Error(),
			Recoverable: false,
		}, false)
	}
}

// callContained converts a hook panic into a forced-fatal error.
func (r *Runtime) callContained(entry *pluginEntry, ctx *RuntimeContext, hook func(ctx *RuntimeContext) error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.raise(RuntimeError{
				Category:    CategoryPlugin,
				Source:      entry.name,
				Message:     fmt.Sprintf("panic: %v", rec),
				Recoverable: false,
				Data:        map[string]any{"panic": true},
			}, true)
			err = nil
		}
	}()
	return hook(ctx)
}

func (r *Runtime) maybeEmitMetrics() {
	if r.config.Metrics == nil || r.config.Logger == nil {
		return
	}
	if r.config.MetricsInterval <= 0 {
		return
	}
	now := time.Now()
	if now.Sub(r.lastMetricsEmit) < r.config.MetricsInterval {
		return
	}
	r.lastMetricsEmit = now
	snapshot := r.config.Metrics.Snapshot(now.Sub(r.start))
	r.logEvent(slog.LevelInfo, "metrics_snapshot", slog.Any("metrics", snapshot))
}

func (r *Runtime) auditRecord(stage AuditStage, fields Fields) {
	r.audit.Record(AuditEvent{Time: time.Now(), Stage: stage, Fields: fields})
}

func (r *Runtime) logStage(stage string) {
	r.logEvent(slog.LevelDebug, "lifecycle", slog.String("stage", stage))
}

func (r *Runtime) logEvent(level slog.Level, message string, attrs ...slog.Attr) {
	if r.config.Logger == nil {
		return
	}
	r.config.Logger.LogAttrs(context.Background(), level, message, attrs...)
}
