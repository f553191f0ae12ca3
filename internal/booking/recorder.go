package booking

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/clinicops/scheduling-service/pkg/logging"
)

type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRecorder stores confirmed appointments in the appointments table.
type PostgresRecorder struct {
	db     db
	logger *logging.Logger
}

// NewPostgresRecorder creates an appointment recorder.
func NewPostgresRecorder(db db, logger *logging.Logger) *PostgresRecorder {
	if logger == nil {
		logger = logging.Default()
	}
	return &PostgresRecorder{db: db, logger: logger}
}

// RecordConfirmed inserts the local record for an upstream-confirmed
// appointment.
func (r *PostgresRecorder) RecordConfirmed(ctx context.Context, req Request, upstreamID string) error {
	query := `
		INSERT INTO appointments
			(id, upstream_id, scheduler_id, customer_first_name, customer_last_name,
			 customer_phone, customer_email, start_utc, duration_min, remark)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	if _, err := r.db.Exec(ctx, query,
		uuid.NewString(),
		upstreamID,
		req.SchedulerID,
		req.Customer.FirstName,
		req.Customer.LastName,
		req.Customer.Phone,
		req.Customer.Email,
		req.StartUTC,
		req.DurationMin,
		req.Remark,
	); err != nil {
		return fmt.Errorf("booking: insert appointment: %w", err)
	}
	return nil
}
