package room

import "sync"

// FocusTarget is the zone (and optionally a component within it) that holds
// keyboard focus. At most one target is active at a time; targets are owned
// by the controller that set them so the active owner can be replaced
// deterministically.
type FocusTarget struct {
	Owner     string
	Zone      ZoneID
	Component string
}

// FocusChange describes a focus transition. Nil ends mean no target.
type FocusChange struct {
	From *FocusTarget
	To   *FocusTarget
}

func (c FocusChange) auditFields() Fields {
	fields := Fields{}
	if c.From != nil {
		fields = append(fields, F("from", c.From.Zone))
	}
	if c.To != nil {
		fields = append(fields, F("to", c.To.Zone))
	}
	return fields
}

// FocusRegistry is the shared focus substrate. It lives in the runtime's
// resource map so any plugin, strategy, or driver observes the same state;
// the coordinator watches it to emit FocusChanged events.
type FocusRegistry struct {
	mu      sync.RWMutex
	current *FocusTarget
}

// NewFocusRegistry creates an unfocused registry.
func NewFocusRegistry() *FocusRegistry {
	return &FocusRegistry{}
}

// SetFocus moves focus to a zone on behalf of an owner, replacing any
// previous target regardless of who owned it.
func (r *FocusRegistry) SetFocus(owner string, zone ZoneID) {
	r.SetFocusComponent(owner, zone, "")
}

// SetFocusComponent moves focus to a component within a zone.
func (r *FocusRegistry) SetFocusComponent(owner string, zone ZoneID, component string) {
	r.mu.Lock()
	r.current = &FocusTarget{Owner: owner, Zone: zone, Component: component}
	r.mu.Unlock()
}

// ClearFocus drops the current target only if it is held by owner.
func (r *FocusRegistry) ClearFocus(owner string) {
	r.mu.Lock()
	if r.current != nil && r.current.Owner == owner {
		r.current = nil
	}
	r.mu.Unlock()
}

// Current returns a copy of the active target, or nil.
func (r *FocusRegistry) Current() *FocusTarget {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.current == nil {
		return nil
	}
	target := *r.current
	return &target
}

// FocusController is the transient handle a plugin uses to own focus. Each
// controller is tagged with its owner so releases never clobber a target
// someone else set in the meantime.
type FocusController struct {
	owner    string
	registry *FocusRegistry
	lastZone ZoneID
}

// NewFocusController creates a controller for the given owner tag.
func NewFocusController(owner string, registry *FocusRegistry) *FocusController {
	return &FocusController{owner: owner, registry: registry}
}

// Focus moves focus to a zone.
func (c *FocusController) Focus(zone ZoneID) {
	c.registry.SetFocus(c.owner, zone)
	c.lastZone = zone
}

// FocusComponent moves focus to a component within a zone.
func (c *FocusController) FocusComponent(zone ZoneID, component string) {
	c.registry.SetFocusComponent(c.owner, zone, component)
	c.lastZone = zone
}

// Release drops focus if this controller's owner still holds it.
func (c *FocusController) Release() {
	c.registry.ClearFocus(c.owner)
}

// Current returns the active target, regardless of owner.
func (c *FocusController) Current() *FocusTarget {
	return c.registry.Current()
}

// LastZone returns the zone this controller focused most recently.
func (c *FocusController) LastZone() ZoneID {
	return c.lastZone
}

// EnsureFocusRegistry returns the session's focus registry, creating it in
// the shared resource map on first use.
func EnsureFocusRegistry(ctx *RuntimeContext) (*FocusRegistry, error) {
	return SharedInit(ctx.Shared(), NewFocusRegistry)
}
