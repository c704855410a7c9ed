package memory

import (
	"context"
	"sync"

	"live-quiz-service/internal/domain"
)

// StateStore is an in-memory implementation of app.StateStore.
type StateStore struct {
	mu    sync.RWMutex
	state domain.SessionState
}

func NewStateStore() *StateStore {
	return &StateStore{state: domain.InitialState()}
}

func (s *StateStore) Load(_ context.Context) (domain.SessionState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state, nil
}

func (s *StateStore) Save(_ context.Context, state domain.SessionState) (domain.SessionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state.Revision = s.state.Revision + 1
	s.state = state
	return state, nil
}
