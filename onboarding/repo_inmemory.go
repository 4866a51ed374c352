package onboarding

import (
	"context"
	"sync"

	"github.com/jrsteele09/go-certprep-session/internal/errors"
)

// InMemoryStore keeps onboarding state for the lifetime of the process
type InMemoryStore struct {
	mu        sync.RWMutex
	completed bool
	existed   map[string]struct{}
}

var _ Store = (*InMemoryStore)(nil)

// NewInMemoryStore creates a new in-memory onboarding store
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		existed: make(map[string]struct{}),
	}
}

func (s *InMemoryStore) IsCompleted(_ context.Context) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.completed, nil
}

func (s *InMemoryStore) SetCompleted(_ context.Context, completed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed = completed
	return nil
}

func (s *InMemoryStore) HasUserExisted(_ context.Context, userID string) (bool, error) {
	if userID == "" {
		return false, errors.ErrIDRequired
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.existed[userID]
	return ok, nil
}

func (s *InMemoryStore) MarkUserExisted(_ context.Context, userID string) error {
	if userID == "" {
		return errors.ErrIDRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.existed[userID] = struct{}{}
	return nil
}
