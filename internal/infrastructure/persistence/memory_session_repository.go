package persistence

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/personal/ad-lifecycle/internal/domain/payment"
)

// MemorySessionRepository is an in-memory payment session store
type MemorySessionRepository struct {
	sessions map[string]*payment.Session
	mu       sync.RWMutex
}

// NewMemorySessionRepository creates a new in-memory session repository
func NewMemorySessionRepository() *MemorySessionRepository {
	return &MemorySessionRepository{
		sessions: make(map[string]*payment.Session),
	}
}

// Create stores a new session
func (r *MemorySessionRepository) Create(ctx context.Context, session *payment.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[session.ID()]; exists {
		return payment.ErrSessionExists
	}
	r.sessions[session.ID()] = session.Clone()
	return nil
}

// FindByID retrieves a session by gateway id
func (r *MemorySessionRepository) FindByID(ctx context.Context, id string) (*payment.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, exists := r.sessions[id]
	if !exists {
		return nil, payment.ErrUnknownSession
	}
	return session.Clone(), nil
}

// MarkTerminal moves a created session to state
func (r *MemorySessionRepository) MarkTerminal(ctx context.Context, id string, state payment.SessionState, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, exists := r.sessions[id]
	if !exists {
		return false, payment.ErrUnknownSession
	}
	if session.State() != payment.SessionCreated {
		return false, nil
	}

	updated, err := payment.ReconstructSession(
		session.ID(), session.AdID(), session.Amount(), session.Currency(),
		state, session.RedirectURL(), session.CreatedAt(), &at,
	)
	if err != nil {
		return false, err
	}
	r.sessions[id] = updated
	return true, nil
}

// FindStaleCreated lists sessions still created before olderThan, oldest first
func (r *MemorySessionRepository) FindStaleCreated(ctx context.Context, olderThan time.Time, limit int) ([]*payment.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*payment.Session
	for _, session := range r.sessions {
		if session.State() == payment.SessionCreated && session.CreatedAt().Before(olderThan) {
			result = append(result, session.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt().Before(result[j].CreatedAt())
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}
