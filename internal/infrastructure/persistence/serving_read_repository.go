package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/lib/pq"

	"github.com/personal/ad-lifecycle/internal/domain/ad"
	"github.com/personal/ad-lifecycle/pkg/monitoring"
)

// ServingReadRepository serves the hot selection query from read replicas.
// Replica lag is tolerated: serving accepts one round trip of staleness.
type ServingReadRepository struct {
	db           *sql.DB
	readReplicas []*sql.DB
	servableStmt []*sql.Stmt // one per read connection, same order as readDBs
	next         uint64
	factory      *ad.Factory
}

// ConnectionPoolConfig holds database connection pool configuration
type ConnectionPoolConfig struct {
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetime    time.Duration
	ConnMaxIdleTime    time.Duration
	PreparedStatements bool
}

const servableQuery = `
	SELECT ` + adColumns + `
	FROM ads
	WHERE placement = $1
	  AND region = ANY($2)
	  AND archived_at IS NULL
	  AND payment_state = 'paid'
	  AND review_state = 'clean'
	  AND approval_state = 'approved'
	  AND start_date <= $3
	  AND end_date > $3
	ORDER BY last_served_at ASC NULLS FIRST, created_at ASC, ad_id ASC
`

// NewServingReadRepository creates a read repository over the primary and its replicas
func NewServingReadRepository(db *sql.DB, readReplicas []*sql.DB, config *ConnectionPoolConfig) (*ServingReadRepository, error) {
	repo := &ServingReadRepository{
		db:           db,
		readReplicas: readReplicas,
		factory:      ad.NewFactory(),
	}

	repo.configurePools(config)

	if config.PreparedStatements {
		if err := repo.prepareStatements(); err != nil {
			return nil, fmt.Errorf("failed to prepare statements: %w", err)
		}
	}

	return repo, nil
}

// configurePools applies pool limits; replicas get half the primary budget
func (r *ServingReadRepository) configurePools(config *ConnectionPoolConfig) {
	r.db.SetMaxOpenConns(config.MaxOpenConns)
	r.db.SetMaxIdleConns(config.MaxIdleConns)
	r.db.SetConnMaxLifetime(config.ConnMaxLifetime)
	r.db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	for _, replica := range r.readReplicas {
		replica.SetMaxOpenConns(config.MaxOpenConns / 2)
		replica.SetMaxIdleConns(config.MaxIdleConns / 2)
		replica.SetConnMaxLifetime(config.ConnMaxLifetime)
		replica.SetConnMaxIdleTime(config.ConnMaxIdleTime)
	}
}

func (r *ServingReadRepository) readDBs() []*sql.DB {
	if len(r.readReplicas) == 0 {
		return []*sql.DB{r.db}
	}
	return r.readReplicas
}

func (r *ServingReadRepository) prepareStatements() error {
	for i, db := range r.readDBs() {
		stmt, err := db.Prepare(servableQuery)
		if err != nil {
			return fmt.Errorf("failed to prepare servable statement on read db %d: %w", i, err)
		}
		r.servableStmt = append(r.servableStmt, stmt)
	}
	return nil
}

// pick returns the next read connection index, round-robin
func (r *ServingReadRepository) pick() int {
	n := uint64(len(r.readDBs()))
	return int(atomic.AddUint64(&r.next, 1) % n)
}

// ListServable returns servable ads for placement in one of regions at now
func (r *ServingReadRepository) ListServable(ctx context.Context, placement ad.Placement, regions []ad.Region, now time.Time) ([]*ad.Advertisement, error) {
	if len(regions) == 0 {
		return []*ad.Advertisement{}, nil
	}
	start := time.Now()

	regionNames := make([]string, len(regions))
	for i, region := range regions {
		regionNames[i] = string(region)
	}

	idx := r.pick()
	var (
		rows *sql.Rows
		err  error
	)
	if len(r.servableStmt) > 0 {
		rows, err = r.servableStmt[idx].QueryContext(ctx, string(placement), pq.Array(regionNames), now)
	} else {
		rows, err = r.readDBs()[idx].QueryContext(ctx, servableQuery, string(placement), pq.Array(regionNames), now)
	}
	monitoring.RecordDatabaseQuery("select_servable", "ads", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to query servable ads: %w", err)
	}

	return scanAds(r.factory, rows)
}

// DatabaseStats holds connection pool statistics for the readiness probe
type DatabaseStats struct {
	ServableAds      int64
	OpenConnections  int
	InUseConnections int
	IdleConnections  int
	ReplicaCount     int
}

// GetHealthStats pings every read connection and reports pool usage
func (r *ServingReadRepository) GetHealthStats(ctx context.Context) (*DatabaseStats, error) {
	stats := &DatabaseStats{ReplicaCount: len(r.readReplicas)}

	for i, db := range r.readDBs() {
		if err := db.PingContext(ctx); err != nil {
			return nil, fmt.Errorf("read db %d unreachable: %w", i, err)
		}
	}

	err := r.readDBs()[r.pick()].QueryRowContext(ctx, `
		SELECT COUNT(*) FROM ads
		WHERE archived_at IS NULL
		  AND payment_state = 'paid' AND review_state = 'clean' AND approval_state = 'approved'
	`).Scan(&stats.ServableAds)
	if err != nil {
		return nil, fmt.Errorf("failed to count servable ads: %w", err)
	}

	dbStats := r.db.Stats()
	stats.OpenConnections = dbStats.OpenConnections
	stats.InUseConnections = dbStats.InUse
	stats.IdleConnections = dbStats.Idle

	return stats, nil
}

// Close closes prepared statements and replica connections
func (r *ServingReadRepository) Close() error {
	var errs []string

	for i, stmt := range r.servableStmt {
		if err := stmt.Close(); err != nil {
			errs = append(errs, fmt.Sprintf("servable statement %d: %v", i, err))
		}
	}
	for i, replica := range r.readReplicas {
		if err := replica.Close(); err != nil {
			errs = append(errs, fmt.Sprintf("replica %d: %v", i, err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("failed to close read repository: %s", strings.Join(errs, ", "))
	}
	return nil
}
