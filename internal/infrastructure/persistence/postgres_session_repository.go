package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/personal/ad-lifecycle/internal/domain/lifecycle"
	"github.com/personal/ad-lifecycle/internal/domain/payment"
	"github.com/personal/ad-lifecycle/pkg/monitoring"
)

// PostgresSessionRepository implements payment.Repository using PostgreSQL
type PostgresSessionRepository struct {
	db *sql.DB
}

// NewPostgresSessionRepository creates a new PostgresSessionRepository
func NewPostgresSessionRepository(db *sql.DB) *PostgresSessionRepository {
	return &PostgresSessionRepository{db: db}
}

const sessionColumns = `session_id, ad_id, amount, currency, state, redirect_url, created_at, completed_at`

// sessionRow represents a payment_sessions row
type sessionRow struct {
	SessionID   string
	AdID        string
	Amount      decimal.Decimal
	Currency    string
	State       string
	RedirectURL string
	CreatedAt   time.Time
	CompletedAt *time.Time
}

func (r *sessionRow) toSession() (*payment.Session, error) {
	return payment.ReconstructSession(
		r.SessionID, r.AdID, r.Amount, r.Currency,
		payment.SessionState(r.State), r.RedirectURL, r.CreatedAt, r.CompletedAt,
	)
}

func scanSession(row rowScanner) (*payment.Session, error) {
	var r sessionRow
	if err := row.Scan(&r.SessionID, &r.AdID, &r.Amount, &r.Currency, &r.State, &r.RedirectURL, &r.CreatedAt, &r.CompletedAt); err != nil {
		return nil, err
	}
	return r.toSession()
}

// Create inserts a new session
func (r *PostgresSessionRepository) Create(ctx context.Context, session *payment.Session) error {
	return insertSession(ctx, r.db, session)
}

func insertSession(ctx context.Context, exec execer, session *payment.Session) error {
	start := time.Now()
	query := `INSERT INTO payment_sessions (` + sessionColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := exec.ExecContext(ctx, query,
		session.ID(),
		session.AdID(),
		session.Amount(),
		session.Currency(),
		string(session.State()),
		session.RedirectURL(),
		session.CreatedAt(),
		session.CompletedAt(),
	)
	monitoring.RecordDatabaseQuery("insert", "payment_sessions", time.Since(start), err)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return payment.ErrSessionExists
		}
		return fmt.Errorf("failed to insert payment session: %w", err)
	}
	return nil
}

// FindByID finds a session by gateway id
func (r *PostgresSessionRepository) FindByID(ctx context.Context, id string) (*payment.Session, error) {
	start := time.Now()
	query := `SELECT ` + sessionColumns + ` FROM payment_sessions WHERE session_id = $1`

	session, err := scanSession(r.db.QueryRowContext(ctx, query, id))
	monitoring.RecordDatabaseQuery("select", "payment_sessions", time.Since(start), ignoreNoRows(err))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, payment.ErrUnknownSession
		}
		return nil, fmt.Errorf("failed to find payment session: %w", err)
	}
	return session, nil
}

// MarkTerminal moves a created session to state. Only the first terminal
// write wins.
func (r *PostgresSessionRepository) MarkTerminal(ctx context.Context, id string, state payment.SessionState, at time.Time) (bool, error) {
	start := time.Now()
	query := `
		UPDATE payment_sessions
		SET state = $2, completed_at = $3
		WHERE session_id = $1 AND state = 'created'
	`
	result, err := r.db.ExecContext(ctx, query, id, string(state), at)
	monitoring.RecordDatabaseQuery("update", "payment_sessions", time.Since(start), err)
	if err != nil {
		// The one-completed-session index turned a second completion away
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return false, fmt.Errorf("%w: another session already completed for this ad", lifecycle.ErrConflictingTransition)
		}
		return false, fmt.Errorf("failed to mark payment session terminal: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		var exists bool
		if err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM payment_sessions WHERE session_id = $1)`, id).Scan(&exists); err != nil {
			return false, fmt.Errorf("failed to check session existence: %w", err)
		}
		if !exists {
			return false, payment.ErrUnknownSession
		}
		return false, nil
	}
	return true, nil
}

// FindStaleCreated lists sessions still created before olderThan, oldest first
func (r *PostgresSessionRepository) FindStaleCreated(ctx context.Context, olderThan time.Time, limit int) ([]*payment.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM payment_sessions
		WHERE state = 'created' AND created_at < $1
		ORDER BY created_at ASC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, olderThan, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to find stale sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*payment.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment session: %w", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate payment sessions: %w", err)
	}
	return sessions, nil
}
