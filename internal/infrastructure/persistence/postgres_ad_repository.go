package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/personal/ad-lifecycle/internal/domain/ad"
	"github.com/personal/ad-lifecycle/pkg/monitoring"
)

// PostgresAdRepository implements the ad.Repository interface using PostgreSQL
type PostgresAdRepository struct {
	db      *sql.DB
	factory *ad.Factory
}

// NewPostgresAdRepository creates a new PostgresAdRepository
func NewPostgresAdRepository(db *sql.DB) *PostgresAdRepository {
	return &PostgresAdRepository{db: db, factory: ad.NewFactory()}
}

const adColumns = `
	ad_id, owner_id, name, creative_type, description, target_url, media_ref,
	placement, format, region, price, start_date, end_date, duration_value, duration_unit,
	payment_state, payment_session, review_state, approval_state, current_session_id,
	rejection_reason, decided_by, decided_at, archived_at, archive_reason,
	last_served_at, created_at, version`

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanAd reads one row selected with adColumns
func scanAd(factory *ad.Factory, row rowScanner) (*ad.Advertisement, error) {
	var r ad.Record
	err := row.Scan(
		&r.ID, &r.OwnerID, &r.Name, &r.CreativeType, &r.Description, &r.TargetURL, &r.MediaRef,
		&r.Placement, &r.Format, &r.Region, &r.Price, &r.StartDate, &r.EndDate, &r.DurationValue, &r.DurationUnit,
		&r.PaymentState, &r.PaymentSession, &r.ReviewState, &r.ApprovalState, &r.CurrentSessionID,
		&r.RejectionReason, &r.DecidedBy, &r.DecidedAt, &r.ArchivedAt, &r.ArchiveReason,
		&r.LastServedAt, &r.CreatedAt, &r.Version,
	)
	if err != nil {
		return nil, err
	}

	adEntity, err := factory.ReconstructAdvertisement(r)
	if err != nil {
		return nil, fmt.Errorf("failed to reconstruct ad %s: %w", r.ID, err)
	}
	return adEntity, nil
}

func scanAds(factory *ad.Factory, rows *sql.Rows) ([]*ad.Advertisement, error) {
	defer rows.Close()

	ads := []*ad.Advertisement{}
	for rows.Next() {
		adEntity, err := scanAd(factory, rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ad row: %w", err)
		}
		ads = append(ads, adEntity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ad rows: %w", err)
	}
	return ads, nil
}

// execer is satisfied by *sql.DB and *sql.Tx
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Create inserts a new ad
func (r *PostgresAdRepository) Create(ctx context.Context, adEntity *ad.Advertisement) error {
	return insertAd(ctx, r.db, adEntity)
}

func insertAd(ctx context.Context, exec execer, adEntity *ad.Advertisement) error {
	start := time.Now()
	rec := adEntity.ToRecord()

	query := `
		INSERT INTO ads (` + adColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
		        $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28)
	`
	_, err := exec.ExecContext(ctx, query,
		rec.ID, rec.OwnerID, rec.Name, rec.CreativeType, rec.Description, rec.TargetURL, rec.MediaRef,
		rec.Placement, rec.Format, rec.Region, rec.Price, rec.StartDate, rec.EndDate, rec.DurationValue, rec.DurationUnit,
		rec.PaymentState, rec.PaymentSession, rec.ReviewState, rec.ApprovalState, rec.CurrentSessionID,
		rec.RejectionReason, rec.DecidedBy, rec.DecidedAt, rec.ArchivedAt, rec.ArchiveReason,
		rec.LastServedAt, rec.CreatedAt, rec.Version,
	)
	monitoring.RecordDatabaseQuery("insert", "ads", time.Since(start), err)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ad.ErrAdAlreadyExists
		}
		return fmt.Errorf("failed to insert ad: %w", err)
	}
	return nil
}

// FindByID finds an ad by its ID
func (r *PostgresAdRepository) FindByID(ctx context.Context, id ad.AdID) (*ad.Advertisement, error) {
	start := time.Now()
	query := `SELECT ` + adColumns + ` FROM ads WHERE ad_id = $1`

	adEntity, err := scanAd(r.factory, r.db.QueryRowContext(ctx, query, id.String()))
	monitoring.RecordDatabaseQuery("select", "ads", time.Since(start), ignoreNoRows(err))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ad.ErrAdNotFound
		}
		return nil, fmt.Errorf("failed to find ad by ID: %w", err)
	}
	return adEntity, nil
}

// Update writes the mutable columns when the stored version still matches
func (r *PostgresAdRepository) Update(ctx context.Context, adEntity *ad.Advertisement) error {
	start := time.Now()
	rec := adEntity.ToRecord()

	query := `
		UPDATE ads SET
			payment_state = $3,
			payment_session = $4,
			review_state = $5,
			approval_state = $6,
			current_session_id = $7,
			rejection_reason = $8,
			decided_by = $9,
			decided_at = $10,
			archived_at = $11,
			archive_reason = $12,
			version = version + 1
		WHERE ad_id = $1 AND version = $2
	`
	result, err := r.db.ExecContext(ctx, query,
		rec.ID, rec.Version,
		rec.PaymentState, rec.PaymentSession, rec.ReviewState, rec.ApprovalState, rec.CurrentSessionID,
		rec.RejectionReason, rec.DecidedBy, rec.DecidedAt, rec.ArchivedAt, rec.ArchiveReason,
	)
	monitoring.RecordDatabaseQuery("update", "ads", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to update ad: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		var exists bool
		if err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM ads WHERE ad_id = $1)`, rec.ID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check ad existence: %w", err)
		}
		if !exists {
			return ad.ErrAdNotFound
		}
		return ad.ErrOptimisticLockFailed
	}

	adEntity.IncrementVersion()
	return nil
}

// FindPendingApproval lists unarchived ads awaiting a decision, oldest first
func (r *PostgresAdRepository) FindPendingApproval(ctx context.Context, limit, offset int) ([]*ad.Advertisement, error) {
	query := `
		SELECT ` + adColumns + `
		FROM ads
		WHERE archived_at IS NULL AND approval_state = 'pending'
		ORDER BY created_at ASC, ad_id ASC
		LIMIT $1 OFFSET $2
	`
	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to find pending ads: %w", err)
	}
	return scanAds(r.factory, rows)
}

// FindArchivable lists unarchived ads whose end date is at or before now
func (r *PostgresAdRepository) FindArchivable(ctx context.Context, now time.Time, limit int) ([]*ad.Advertisement, error) {
	query := `
		SELECT ` + adColumns + `
		FROM ads
		WHERE archived_at IS NULL AND end_date <= $1
		ORDER BY end_date ASC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to find archivable ads: %w", err)
	}
	return scanAds(r.factory, rows)
}

// UpdateLastServed moves last_served_at forward for each ad in one transaction
func (r *PostgresAdRepository) UpdateLastServed(ctx context.Context, marks map[ad.AdID]time.Time) error {
	if len(marks) == 0 {
		return nil
	}
	start := time.Now()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// GREATEST ignores NULL, so a first mark always applies
	stmt, err := tx.PrepareContext(ctx, `
		UPDATE ads SET last_served_at = GREATEST(last_served_at, $2)
		WHERE ad_id = $1
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare serve mark statement: %w", err)
	}
	defer stmt.Close()

	for id, at := range marks {
		if _, err := stmt.ExecContext(ctx, id.String(), at); err != nil {
			return fmt.Errorf("failed to update last served for %s: %w", id, err)
		}
	}

	err = tx.Commit()
	monitoring.RecordDatabaseQuery("update_batch", "ads", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func ignoreNoRows(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	return err
}
