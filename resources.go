package room

import (
	"reflect"
	"sync"
)

// SharedState is a type-keyed resource map shared between the runtime, its
// plugins, and anything the caller wants to hang off the session. Each type
// can appear at most once; values are stored behind pointers so every reader
// observes the same instance.
//
// SharedState is the only runtime-owned object that may be read from outside
// the coordinator goroutine. It is guarded by a multi-reader /
// exclusive-writer lock; callers that need internal mutability wrap it
// themselves (e.g. store a *sync.RWMutex-carrying struct).
type SharedState struct {
	mu     sync.RWMutex
	values map[reflect.Type]any
}

// NewSharedState creates an empty resource map.
func NewSharedState() *SharedState {
	return &SharedState{values: make(map[reflect.Type]any)}
}

// Insert stores value under its dynamic type. It fails with
// ErrResourceExists if a value of that type is already present.
func (s *SharedState) Insert(value any) error {
	key := reflect.TypeOf(value)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.values[key]; ok {
		return ErrResourceExists
	}
	s.values[key] = value
	return nil
}

// Shared fetches the *T stored in the map, failing with ErrResourceMissing
// or ErrResourceType.
func Shared[T any](s *SharedState) (*T, error) {
	key := reflect.TypeOf((*T)(nil))
	s.mu.RLock()
	raw, ok := s.values[key]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrResourceMissing
	}
	value, ok := raw.(*T)
	if !ok {
		return nil, ErrResourceType
	}
	return value, nil
}

// SharedInit fetches the *T stored in the map, lazily constructing it with
// init when absent. Under contention init runs at most once; losers observe
// the winner's value.
func SharedInit[T any](s *SharedState, init func() *T) (*T, error) {
	if value, err := Shared[T](s); err == nil {
		return value, nil
	}
	key := reflect.TypeOf((*T)(nil))
	s.mu.Lock()
	defer s.mu.Unlock()
	if raw, ok := s.values[key]; ok {
		value, ok := raw.(*T)
		if !ok {
			return nil, ErrResourceType
		}
		return value, nil
	}
	value := init()
	s.values[key] = value
	return value, nil
}
