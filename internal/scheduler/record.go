package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/clinicops/scheduling-service/internal/credentials"
	"github.com/clinicops/scheduling-service/internal/schedule"
)

// ErrNotFound is returned when no scheduler record exists for the id.
var ErrNotFound = errors.New("scheduler: record not found")

// Record is the locally persisted scheduler. ProxySchedulerID stays empty
// until upstream registration succeeds.
type Record struct {
	ID                  string                 `json:"id"`
	ProxySchedulerID    string                 `json:"proxy_scheduler_id,omitempty"`
	SourceCredentialsID string                 `json:"source_credentials_id"`
	SourceSchedulerID   string                 `json:"source_scheduler_id"`
	SourceType          credentials.SourceType `json:"source_type"`
	ActiveHours         []schedule.ActiveHour  `json:"active_hours"`
	MaxOverlap          int                    `json:"max_overlap"`
	CreatedAt           time.Time              `json:"created_at"`
	UpdatedAt           time.Time              `json:"updated_at"`
}

type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository persists scheduler records.
type Repository struct {
	db db
}

// NewRepository creates a scheduler record repository.
func NewRepository(db db) *Repository {
	return &Repository{db: db}
}

// Create inserts the local row before the proxy knows about the scheduler.
func (r *Repository) Create(ctx context.Context, rec *Record) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.MaxOverlap <= 0 {
		rec.MaxOverlap = 1
	}
	hours, err := json.Marshal(rec.ActiveHours)
	if err != nil {
		return fmt.Errorf("scheduler: marshal active hours: %w", err)
	}

	query := `
		INSERT INTO scheduler_records
			(id, source_credentials_id, source_scheduler_id, source_type, active_hours, max_overlap)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`
	if err := r.db.QueryRow(ctx, query,
		rec.ID,
		rec.SourceCredentialsID,
		rec.SourceSchedulerID,
		string(rec.SourceType),
		hours,
		rec.MaxOverlap,
	).Scan(&rec.CreatedAt); err != nil {
		return fmt.Errorf("scheduler: insert record: %w", err)
	}
	return nil
}

// SetProxySchedulerID records the upstream-assigned id once registration
// succeeds.
func (r *Repository) SetProxySchedulerID(ctx context.Context, id, proxyID string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE scheduler_records SET proxy_scheduler_id = $2, updated_at = NOW() WHERE id = $1`,
		id, proxyID)
	if err != nil {
		return fmt.Errorf("scheduler: set proxy id: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetByID loads a scheduler record.
func (r *Repository) GetByID(ctx context.Context, id string) (*Record, error) {
	query := `
		SELECT id, COALESCE(proxy_scheduler_id, ''), source_credentials_id, source_scheduler_id,
		       source_type, active_hours, max_overlap, created_at, updated_at
		FROM scheduler_records
		WHERE id = $1
	`
	var rec Record
	var sourceType string
	var hours []byte
	if err := r.db.QueryRow(ctx, query, id).Scan(
		&rec.ID,
		&rec.ProxySchedulerID,
		&rec.SourceCredentialsID,
		&rec.SourceSchedulerID,
		&sourceType,
		&hours,
		&rec.MaxOverlap,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scheduler: load record: %w", err)
	}
	rec.SourceType = credentials.SourceType(sourceType)
	if len(hours) > 0 {
		if err := json.Unmarshal(hours, &rec.ActiveHours); err != nil {
			return nil, fmt.Errorf("scheduler: unmarshal active hours: %w", err)
		}
	}
	return &rec, nil
}
