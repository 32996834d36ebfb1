package room

import "fmt"

// EventFlow controls propagation of an event across plugins.
type EventFlow int

const (
	// FlowContinue hands the event to the next plugin in priority order.
	FlowContinue EventFlow = iota
	// FlowConsumed stops propagation.
	FlowConsumed
)

// Plugin is the minimal contract a runtime extension satisfies. Everything
// else is a capability: the runtime discovers the optional interfaces below
// by type assertion, so a plugin implements only the hooks it cares about.
//
// Plugins must return promptly from every hook; the coordinator is
// single-threaded and does not preempt.
type Plugin interface {
	Name() string
}

// Initializer runs once during Boot, in priority order. It may populate
// zones, schedule bootstrap renders, and acquire shared resources.
type Initializer interface {
	Init(ctx *RuntimeContext) error
}

// EventHandler receives every driver-sourced event. Returning FlowConsumed
// stops the chain.
type EventHandler interface {
	OnEvent(ctx *RuntimeContext, event Event) (EventFlow, error)
}

// BootHook observes the Boot transition, before Init hooks run.
type BootHook interface {
	OnBoot(ctx *RuntimeContext) error
}

// SetupHook observes the Setup transition, after Init hooks and the default
// focus application.
type SetupHook interface {
	OnSetup(ctx *RuntimeContext) error
}

// UserReadyHook observes the first successful render.
type UserReadyHook interface {
	OnUserReady(ctx *RuntimeContext) error
}

// UserEndHook observes the UserEnd stage that opens every graceful teardown,
// whether it follows an exit request or the end of a scripted or simulated
// run.
type UserEndHook interface {
	OnUserEnd(ctx *RuntimeContext) error
}

// CleanupHook observes graceful teardown.
type CleanupHook interface {
	OnCleanup(ctx *RuntimeContext) error
}

// CloseHook observes the terminal Close stage.
type CloseHook interface {
	OnClose(ctx *RuntimeContext) error
}

// FocusObserver is notified of focus transitions, inside the event that
// caused them.
type FocusObserver interface {
	OnFocusChange(ctx *RuntimeContext, change FocusChange) error
}

// CursorObserver is notified of cursor state changes, inside the event that
// caused them.
type CursorObserver interface {
	OnCursorChange(ctx *RuntimeContext, event CursorEvent) error
}

// ErrorHook inspects a raised RuntimeError before the recovery decision.
// Hooks may flip Recoverable and patch fields.
type ErrorHook interface {
	OnError(ctx *RuntimeContext, err *RuntimeError) error
}

// RecoverHook observes the outcome of the recovery pass.
type RecoverHook interface {
	OnRecoverOrFatal(ctx *RuntimeContext, err RuntimeError, recovered bool) error
}

// FatalHook observes entry to the fatal path.
type FatalHook interface {
	OnFatal(ctx *RuntimeContext) error
}

// TickObserver receives every tick event, even when an EventHandler earlier
// in the chain consumed it.
type TickObserver interface {
	OnTick(ctx *RuntimeContext, tick TickEvent) error
}

// BeforeRenderer runs just before a render pass and may still mutate zones.
type BeforeRenderer interface {
	BeforeRender(ctx *RuntimeContext) error
}

// AfterRenderer runs after a render pass. It is read-only: zone writes and
// redraw requests from this hook are discarded.
type AfterRenderer interface {
	AfterRender(ctx *RuntimeContext) error
}

// pluginEntry pairs a registered plugin with its dispatch position.
type pluginEntry struct {
	name     string
	priority int
	seq      int
	plugin   Plugin
}

func sortPluginEntries(entries []*pluginEntry) {
	// Insertion sort keeps registration order as the tie-break without a
	// comparator allocation per registration.
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0; j-- {
			a, b := entries[j-1], entries[j]
			if a.priority > b.priority || (a.priority == b.priority && a.seq > b.seq) {
				entries[j-1], entries[j] = b, a
			} else {
				break
			}
		}
	}
}

func validatePluginName(entries []*pluginEntry, name string) error {
	for _, entry := range entries {
		if entry.name == name {
			return fmt.Errorf("plugin %q already registered", name)
		}
	}
	return nil
}
