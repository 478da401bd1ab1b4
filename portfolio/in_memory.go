package portfolio

import (
	"context"
	"sync"
	"time"
)

// InMemoryStore is a process-local Provider for tests, examples and local
// development. Portfolios are kept per user in insertion order and copied on
// save and retrieval so callers cannot mutate stored state.
type InMemoryStore struct {
	mu     sync.RWMutex
	nextID int64
	byUser map[int64][]*Portfolio
	now    func() time.Time
}

// NewInMemoryStore returns an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byUser: make(map[int64][]*Portfolio),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Create stores a new portfolio document for userID and returns the stored
// view. The user profile snapshot is not retained.
func (s *InMemoryStore) Create(_ context.Context, userID int64, doc Document, _ map[string]any) (*Portfolio, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	p := FromDocument(s.nextID, userID, doc, s.now())
	s.byUser[userID] = append(s.byUser[userID], clone(p))

	return p, nil
}

// GetUserPortfolio returns the most recently created portfolio of userID.
func (s *InMemoryStore) GetUserPortfolio(ctx context.Context, userID int64) (*Portfolio, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.byUser[userID]
	if len(list) == 0 {
		return nil, ErrNotFound
	}

	return clone(list[len(list)-1]), nil
}

// ListUserPortfolios returns all portfolios of userID, newest first.
func (s *InMemoryStore) ListUserPortfolios(_ context.Context, userID int64) ([]*Portfolio, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.byUser[userID]
	out := make([]*Portfolio, 0, len(list))
	for i := len(list) - 1; i >= 0; i-- {
		out = append(out, clone(list[i]))
	}

	return out, nil
}
