package room

import (
	"fmt"
	"sync"
)

// ScreenLifecycle marks the transitions emitted around screen activation.
type ScreenLifecycle int

const (
	ScreenWillAppear ScreenLifecycle = iota
	ScreenDidAppear
	ScreenWillDisappear
	ScreenDidDisappear
)

// ZoneStrategy is the object a screen delegates layout provision, panel
// registration, and event mediation to.
type ZoneStrategy interface {
	// Layout supplies the screen's layout for the coordinator to solve.
	Layout() Layout
	// RegisterPanels wires the screen's plugins/zones after the layout is
	// swapped in. It runs once per activation.
	RegisterPanels(rt *Runtime, state *ScreenState) error
	// HandleEvent mediates events while the screen is active.
	HandleEvent(ctx *RuntimeContext, event Event) (EventFlow, error)
	// OnLifecycle observes appear/disappear transitions.
	OnLifecycle(event ScreenLifecycle) error
}

// ScreenFactory creates a fresh strategy instance per activation.
type ScreenFactory func() ZoneStrategy

// ScreenDefinition registers a screen with the manager. Registration order
// is preserved and used as the cycle order for default navigation.
type ScreenDefinition struct {
	ID       string
	Title    string
	Factory  ScreenFactory
	Metadata map[string]string
}

// LegacyStrategy hosts a caller-supplied layout with passthrough events, so
// callers can opt into the screen layer without multi-screen semantics.
type LegacyStrategy struct {
	layout Layout
}

// NewLegacyStrategy wraps a layout in a passthrough strategy.
func NewLegacyStrategy(layout Layout) *LegacyStrategy {
	return &LegacyStrategy{layout: layout}
}

func (s *LegacyStrategy) Layout() Layout { return s.layout }

func (s *LegacyStrategy) RegisterPanels(*Runtime, *ScreenState) error { return nil }

func (s *LegacyStrategy) HandleEvent(*RuntimeContext, Event) (EventFlow, error) {
	return FlowContinue, nil
}

func (s *LegacyStrategy) OnLifecycle(ScreenLifecycle) error { return nil }

// ScreenNavigator enqueues (not performs) activation requests. The
// coordinator drains the queue at the end of each event cycle; only the
// last request of a cycle is honored.
type ScreenNavigator struct {
	mu       sync.Mutex
	requests []string
}

// RequestActivation enqueues a screen switch.
func (n *ScreenNavigator) RequestActivation(screenID string) {
	n.mu.Lock()
	n.requests = append(n.requests, screenID)
	n.mu.Unlock()
}

// drain returns the winning request of this cycle, if any.
func (n *ScreenNavigator) drain() (string, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.requests) == 0 {
		return "", false
	}
	last := n.requests[len(n.requests)-1]
	n.requests = n.requests[:0]
	return last, true
}

// ScreenState is a per-screen namespace over the shared resource map plus
// the navigator. Namespaces persist across activations, so a screen sees
// the same state when re-entered.
type ScreenState struct {
	id    string
	state *SharedState
	nav   *ScreenNavigator
}

// ID returns the owning screen id.
func (s *ScreenState) ID() string { return s.id }

// State returns the screen's private resource map.
func (s *ScreenState) State() *SharedState { return s.state }

// Navigator returns the shared navigation queue.
func (s *ScreenState) Navigator() *ScreenNavigator { return s.nav }

// screenNamespaces holds every screen's private resource map. It lives in
// the runtime's shared map so namespaces follow the session lifecycle.
type screenNamespaces struct {
	mu     sync.Mutex
	states map[string]*SharedState
}

func (n *screenNamespaces) get(id string) *SharedState {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.states == nil {
		n.states = make(map[string]*SharedState)
	}
	state, ok := n.states[id]
	if !ok {
		state = NewSharedState()
		n.states[id] = state
	}
	return state
}

// ScreenRouting selects the order HandleEvent consults navigation hotkeys
// and the active strategy.
type ScreenRouting int

const (
	// HotkeysFirst consumes navigation hotkeys before delegating. Default.
	HotkeysFirst ScreenRouting = iota
	// StrategyFirst delegates first; hotkeys only see what the strategy
	// left unconsumed.
	StrategyFirst
)

type activeScreen struct {
	id       string
	strategy ZoneStrategy
}

// ScreenManager tracks registered screens, routes events through the active
// strategy, and owns per-screen state namespaces and navigation hotkeys.
type ScreenManager struct {
	order     []*ScreenDefinition
	byID      map[string]*ScreenDefinition
	active    *activeScreen
	routing   ScreenRouting
	navigator ScreenNavigator
	shared    *SharedState
}

// NewScreenManager creates an empty manager.
func NewScreenManager() *ScreenManager {
	return &ScreenManager{byID: make(map[string]*ScreenDefinition)}
}

// SetRouting configures hotkey/strategy ordering.
func (m *ScreenManager) SetRouting(routing ScreenRouting) {
	m.routing = routing
}

// RegisterScreen adds a screen definition. Duplicate ids are rejected.
func (m *ScreenManager) RegisterScreen(def ScreenDefinition) error {
	if def.ID == "" {
		return fmt.Errorf("screen id must not be empty")
	}
	if def.Factory == nil {
		return fmt.Errorf("screen %q has no strategy factory", def.ID)
	}
	if _, ok := m.byID[def.ID]; ok {
		return fmt.Errorf("screen %q already registered", def.ID)
	}
	stored := def
	m.order = append(m.order, &stored)
	m.byID[def.ID] = &stored
	return nil
}

// ActiveID returns the id of the active screen, if any.
func (m *ScreenManager) ActiveID() (string, bool) {
	if m.active == nil {
		return "", false
	}
	return m.active.id, true
}

// ActiveState returns the active screen's state namespace.
func (m *ScreenManager) ActiveState() (*ScreenState, bool) {
	if m.active == nil {
		return nil, false
	}
	return m.ScreenState(m.active.id)
}

// ScreenState returns a screen's state namespace for cross-screen data
// seeding. The namespace is created on first use and persists for the
// session.
func (m *ScreenManager) ScreenState(id string) (*ScreenState, bool) {
	if _, ok := m.byID[id]; !ok {
		return nil, false
	}
	if m.shared == nil {
		return nil, false
	}
	namespaces, err := SharedInit(m.shared, func() *screenNamespaces {
		return &screenNamespaces{}
	})
	if err != nil {
		return nil, false
	}
	return &ScreenState{id: id, state: namespaces.get(id), nav: &m.navigator}, true
}

// HandleEvent routes one event: navigation hotkeys and the active strategy,
// in the configured order. The coordinator drains queued navigation
// requests after the event cycle completes.
func (m *ScreenManager) HandleEvent(ctx *RuntimeContext, event Event) (EventFlow, error) {
	if m.routing == StrategyFirst {
		flow, err := m.delegate(ctx, event)
		if err != nil || flow == FlowConsumed {
			return flow, err
		}
		return m.handleHotkeys(event), nil
	}
	if flow := m.handleHotkeys(event); flow == FlowConsumed {
		return FlowConsumed, nil
	}
	return m.delegate(ctx, event)
}

func (m *ScreenManager) delegate(ctx *RuntimeContext, event Event) (EventFlow, error) {
	if m.active == nil {
		return FlowContinue, nil
	}
	return m.active.strategy.HandleEvent(ctx, event)
}

// handleHotkeys consumes Ctrl+Tab / Ctrl+Shift+Tab (and Ctrl+BackTab)
// navigation, cycling by registration order.
func (m *ScreenManager) handleHotkeys(event Event) EventFlow {
	key, ok := event.(KeyEvent)
	if !ok || len(m.order) < 2 || m.active == nil {
		return FlowContinue
	}
	if !key.Mods.Has(ModCtrl) {
		return FlowContinue
	}
	switch {
	case key.Code == KeyTab && !key.Mods.Has(ModShift):
		m.navigator.RequestActivation(m.neighbor(+1))
		return FlowConsumed
	case key.Code == KeyBackTab, key.Code == KeyTab && key.Mods.Has(ModShift):
		m.navigator.RequestActivation(m.neighbor(-1))
		return FlowConsumed
	}
	return FlowContinue
}

// neighbor returns the screen id delta steps away from the active screen in
// registration order.
func (m *ScreenManager) neighbor(delta int) string {
	index := 0
	for i, def := range m.order {
		if def.ID == m.active.id {
			index = i
			break
		}
	}
	index = (index + delta + len(m.order)) % len(m.order)
	return m.order[index].ID
}

func (m *ScreenManager) definition(id string) (*ScreenDefinition, error) {
	def, ok := m.byID[id]
	if !ok {
		return nil, fmt.Errorf("screen %q not found", id)
	}
	return def, nil
}
