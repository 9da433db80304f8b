package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/personal/ad-lifecycle/internal/domain/ad"
	"github.com/personal/ad-lifecycle/internal/domain/payment"
)

// PostgresSubmissionWriter inserts a new ad and its first payment session in
// one transaction
type PostgresSubmissionWriter struct {
	db *sql.DB
}

// NewPostgresSubmissionWriter creates a new PostgresSubmissionWriter
func NewPostgresSubmissionWriter(db *sql.DB) *PostgresSubmissionWriter {
	return &PostgresSubmissionWriter{db: db}
}

// CreateSubmission stores both rows or neither
func (w *PostgresSubmissionWriter) CreateSubmission(ctx context.Context, adEntity *ad.Advertisement, session *payment.Session) error {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin submission: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := insertAd(ctx, tx, adEntity); err != nil {
		return err
	}
	if err := insertSession(ctx, tx, session); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit submission: %w", err)
	}
	return nil
}
