package room

import (
	"encoding/binary"
	"sort"

	"github.com/cespare/xxhash/v2"
)

// ZoneID is the opaque stable identifier the layout assigns to a zone.
type ZoneID = string

// ZoneState holds everything the renderer needs to repaint one zone.
type ZoneState struct {
	Rect        Rect
	Content     []string
	PreRendered bool
	ContentHash uint64
	Dirty       bool

	committedHash uint64
	hasCommitted  bool
}

func newZoneState(rect Rect) *ZoneState {
	z := &ZoneState{Rect: rect, Dirty: true}
	z.ContentHash = hashZone(z.Content, z.Rect)
	return z
}

// hashZone computes a stable hash over content lines and the zone rect, so
// both content edits and rect moves invalidate the committed frame.
func hashZone(lines []string, rect Rect) uint64 {
	d := xxhash.New()
	var scratch [8]byte
	binary.LittleEndian.PutUint32(scratch[0:4], uint32(rect.X))
	binary.LittleEndian.PutUint32(scratch[4:8], uint32(rect.Y))
	d.Write(scratch[:])
	binary.LittleEndian.PutUint32(scratch[0:4], uint32(rect.Width))
	binary.LittleEndian.PutUint32(scratch[4:8], uint32(rect.Height))
	d.Write(scratch[:])
	for _, line := range lines {
		binary.LittleEndian.PutUint64(scratch[:], uint64(len(line)))
		d.Write(scratch[:])
		d.WriteString(line)
	}
	return d.Sum64()
}

// DirtyZone pairs a zone id with a snapshot of its state for one render pass.
type DirtyZone struct {
	ID    ZoneID
	State ZoneState
}

// ZoneRegistry maps layout zones to their last known states and tracks which
// ones need repainting. A zone's dirty flag is monotone within an event step:
// once set it stays set until a successful render commits its hash.
type ZoneRegistry struct {
	zones map[ZoneID]*ZoneState
}

// NewZoneRegistry creates an empty registry.
func NewZoneRegistry() *ZoneRegistry {
	return &ZoneRegistry{zones: make(map[ZoneID]*ZoneState)}
}

// ApplyLayout reconciles the registry against a fresh solve: new ids are
// added dirty, surviving ids pick up rect changes (dirty iff the rect
// actually changed), and ids absent from the solve are evicted along with
// their content.
func (r *ZoneRegistry) ApplyLayout(rects map[ZoneID]Rect) {
	for id, rect := range rects {
		state, ok := r.zones[id]
		if !ok {
			r.zones[id] = newZoneState(rect)
			continue
		}
		if state.Rect != rect {
			state.Rect = rect
			state.ContentHash = hashZone(state.Content, state.Rect)
			if !state.hasCommitted || state.ContentHash != state.committedHash {
				state.Dirty = true
			}
		}
	}
	for id := range r.zones {
		if _, ok := rects[id]; !ok {
			delete(r.zones, id)
		}
	}
}

// SetZone replaces a zone's content. The hash is recomputed and the zone
// goes dirty iff the new hash differs from the last committed hash, so
// repeated identical writes are free.
func (r *ZoneRegistry) SetZone(id ZoneID, lines []string, preRendered bool) error {
	state, ok := r.zones[id]
	if !ok {
		return &ZoneNotFoundError{Zone: id}
	}
	state.Content = append(state.Content[:0:0], lines...)
	state.PreRendered = preRendered
	state.ContentHash = hashZone(state.Content, state.Rect)
	// Dirty is monotone within an event step: writes can set it, only a
	// committed render clears it.
	if !state.hasCommitted || state.ContentHash != state.committedHash {
		state.Dirty = true
	}
	return nil
}

// MarkAllDirty invalidates every zone, forcing a full repaint on the next
// render pass. Used after real terminal resizes and screen activations.
func (r *ZoneRegistry) MarkAllDirty() {
	for _, state := range r.zones {
		state.Dirty = true
	}
}

// IterDirty returns a snapshot of the dirty zones in ascending zone-id
// order so renders are reproducible. Dirty flags are left untouched; call
// MarkClean per zone once its bytes are safely flushed.
func (r *ZoneRegistry) IterDirty() []DirtyZone {
	out := make([]DirtyZone, 0, len(r.zones))
	for id, state := range r.zones {
		if state.Dirty {
			out = append(out, DirtyZone{ID: id, State: *state})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// MarkClean commits a rendered hash. The dirty flag clears only if the
// zone's current hash still matches, so content written mid-pass survives.
func (r *ZoneRegistry) MarkClean(id ZoneID, hash uint64) {
	state, ok := r.zones[id]
	if !ok {
		return
	}
	state.committedHash = hash
	state.hasCommitted = true
	if state.ContentHash == hash {
		state.Dirty = false
	}
}

// HasDirty reports whether any zone needs repainting.
func (r *ZoneRegistry) HasDirty() bool {
	for _, state := range r.zones {
		if state.Dirty {
			return true
		}
	}
	return false
}

// Rect returns the solved rectangle for a zone.
func (r *ZoneRegistry) Rect(id ZoneID) (Rect, bool) {
	state, ok := r.zones[id]
	if !ok {
		return Rect{}, false
	}
	return state.Rect, true
}

// Len returns the number of live zones.
func (r *ZoneRegistry) Len() int {
	return len(r.zones)
}
