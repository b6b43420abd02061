package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"aura-farm-transformer/internal/styles"
)

// State holds everything scoped to one client session: the caller's API
// key (never persisted), the current form selections, and the last
// transformation's result URLs for redisplay.
type State struct {
	ID     string
	APIKey string

	Style styles.Style
	Count int
	Size  string

	Images       []string
	LastActivity time.Time
}

type Store struct {
	mu       sync.Mutex
	sessions map[string]*State
}

func NewStore() *Store {
	return &Store{sessions: make(map[string]*State)}
}

// Get returns a copy of the session state, creating it when absent.
func (s *Store) Get(key string) State {
	return s.Update(key, nil)
}

// Update mutates the session under the store lock and returns a copy of
// the result. A nil fn just touches the session.
func (s *Store) Update(key string, fn func(*State)) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.getOrCreateLocked(key)
	if fn != nil {
		fn(st)
	}
	st.LastActivity = time.Now()

	out := *st
	out.Images = append([]string(nil), st.Images...)
	return out
}

// Reset drops the session back to defaults, keeping its identifier so
// the visitor tracker does not count it twice.
func (s *Store) Reset(key string) State {
	return s.Update(key, func(st *State) {
		id := st.ID
		*st = defaultState()
		st.ID = id
	})
}

func (s *Store) getOrCreateLocked(key string) *State {
	if st, ok := s.sessions[key]; ok {
		return st
	}
	st := defaultState()
	s.sessions[key] = &st
	return s.sessions[key]
}

func defaultState() State {
	return State{
		ID:    uuid.NewString(),
		Style: styles.Ghibli,
		Count: 1,
		Size:  "1024x1024",
	}
}
