package persistence

import (
	"context"

	"github.com/personal/ad-lifecycle/internal/domain/ad"
	"github.com/personal/ad-lifecycle/internal/domain/payment"
)

// MemorySubmissionWriter stores a new ad and its first payment session in the
// in-memory repositories, both or neither
type MemorySubmissionWriter struct {
	ads      *MemoryAdRepository
	sessions *MemorySessionRepository
}

// NewMemorySubmissionWriter creates a new MemorySubmissionWriter
func NewMemorySubmissionWriter(ads *MemoryAdRepository, sessions *MemorySessionRepository) *MemorySubmissionWriter {
	return &MemorySubmissionWriter{ads: ads, sessions: sessions}
}

// CreateSubmission stores both records or neither
func (w *MemorySubmissionWriter) CreateSubmission(ctx context.Context, adEntity *ad.Advertisement, session *payment.Session) error {
	w.ads.mu.Lock()
	defer w.ads.mu.Unlock()
	w.sessions.mu.Lock()
	defer w.sessions.mu.Unlock()

	adKey := adEntity.ID().String()
	if _, exists := w.ads.ads[adKey]; exists {
		return ad.ErrAdAlreadyExists
	}
	if _, exists := w.sessions.sessions[session.ID()]; exists {
		return payment.ErrSessionExists
	}

	w.ads.ads[adKey] = adEntity.Clone()
	w.sessions.sessions[session.ID()] = session.Clone()
	return nil
}
