package state

import (
	"sync"
)

// Store holds one value per user. Access to a user's value is serialized: while
// With runs for a user, other calls for the same user wait; other users proceed.
type Store[T any] struct {
	mu      sync.Mutex
	entries map[int64]*slot[T]
	init    func() T
	idle    func(T) bool
}

type slot[T any] struct {
	mu    sync.Mutex
	value T
	refs  int
}

// NewMemoryStore constructs an in-memory Store. init builds a fresh value for users
// seen for the first time; idle reports values that can be dropped after use. A nil
// idle keeps every value until Clear.
func NewMemoryStore[T any](init func() T, idle func(T) bool) *Store[T] {
	if init == nil {
		init = func() T {
			var zero T
			return zero
		}
	}
	return &Store[T]{
		entries: make(map[int64]*slot[T]),
		init:    init,
		idle:    idle,
	}
}

// With runs fn with exclusive access to the user's value. Mutations made through the
// pointer are kept. The lock is held for the whole call, including any I/O fn does.
func (s *Store[T]) With(userID int64, fn func(v *T) error) error {
	sl := s.acquire(userID)
	sl.mu.Lock()
	err := fn(&sl.value)
	sl.mu.Unlock()
	s.release(userID, sl)
	return err
}

// Get returns a copy of the user's value and whether the user has one.
func (s *Store[T]) Get(userID int64) (T, bool) {
	s.mu.Lock()
	sl, ok := s.entries[userID]
	if !ok {
		s.mu.Unlock()
		var zero T
		return zero, false
	}
	sl.refs++
	s.mu.Unlock()

	sl.mu.Lock()
	v := sl.value
	sl.mu.Unlock()
	s.release(userID, sl)
	return v, true
}

// Clear removes the user's value. Callers currently inside With keep their copy.
func (s *Store[T]) Clear(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, userID)
}

// Len returns the number of users with a stored value.
func (s *Store[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// InProgress reports whether the user has a stored value that is not idle.
func (s *Store[T]) InProgress(userID int64) bool {
	v, ok := s.Get(userID)
	if !ok {
		return false
	}
	return s.idle == nil || !s.idle(v)
}

func (s *Store[T]) acquire(userID int64) *slot[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl, ok := s.entries[userID]
	if !ok {
		sl = &slot[T]{value: s.init()}
		s.entries[userID] = sl
	}
	sl.refs++
	return sl
}

// release drops the slot once its last reference is gone and the value is idle
// at that moment. With refs at zero nobody holds sl.mu, so the value is read
// under s.mu alone.
func (s *Store[T]) release(userID int64, sl *slot[T]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl.refs--
	if sl.refs == 0 && s.idle != nil && s.entries[userID] == sl && s.idle(sl.value) {
		delete(s.entries, userID)
	}
}
