package volren

import "sync"

// State is an observable value container: the Coordinator's recording
// helpers update it, UI-facing subscribers react to changes. Subscribers
// are invoked synchronously on the updating goroutine, so callbacks must
// be quick and must not call back into the Coordinator.
type State[T any] struct {
	mu    sync.RWMutex
	value T
	subs  map[int]func(T)
	next  int
}

// NewState creates an observable container holding initial.
func NewState[T any](initial T) *State[T] {
	return &State[T]{value: initial, subs: make(map[int]func(T))}
}

// Get returns the current value.
func (s *State[T]) Get() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

// Subscribe registers fn, called with the current value immediately and
// with every subsequent update. The returned cancel func removes the
// subscription.
func (s *State[T]) Subscribe(fn func(T)) (cancel func()) {
	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = fn
	v := s.value
	s.mu.Unlock()
	fn(v)
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// set records a new value and notifies subscribers. Only the
// Coordinator's recording helpers call this.
func (s *State[T]) set(v T) {
	s.mu.Lock()
	s.value = v
	subs := make([]func(T), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()
	for _, fn := range subs {
		fn(v)
	}
}
