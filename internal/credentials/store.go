// Package credentials owns persistence of calendar-source credentials.
// Tokens never leave this boundary except inside proxy/google calls.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/clinicops/scheduling-service/pkg/logging"
)

// SourceType identifies the kind of calendar source behind a credential.
type SourceType string

const (
	// SourceGoogle requires the OAuth code-exchange flow.
	SourceGoogle SourceType = "google"
	// SourceToken uses a pre-supplied long-lived token.
	SourceToken SourceType = "token"
)

// ErrNotFound is returned when no credential exists for the id.
var ErrNotFound = errors.New("credentials: not found")

// Credential is a stored calendar-source credential.
type Credential struct {
	ID           string
	SourceType   SourceType
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Store is the credential persistence boundary the orchestrators depend on.
type Store interface {
	Save(ctx context.Context, cred *Credential) (string, error)
	Load(ctx context.Context, id string) (*Credential, error)
	Delete(ctx context.Context, id string) error
}

type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore persists credentials in the source_credentials table.
type PostgresStore struct {
	db     db
	logger *logging.Logger
}

// NewPostgresStore creates a credential store.
func NewPostgresStore(db db, logger *logging.Logger) *PostgresStore {
	if logger == nil {
		logger = logging.Default()
	}
	return &PostgresStore{db: db, logger: logger}
}

// Save inserts the credential (or replaces tokens for an existing id) and
// returns its id.
func (s *PostgresStore) Save(ctx context.Context, cred *Credential) (string, error) {
	if cred.ID == "" {
		cred.ID = uuid.NewString()
	}
	query := `
		INSERT INTO source_credentials (id, source_type, access_token, refresh_token, expires_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (id) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			expires_at = EXCLUDED.expires_at,
			updated_at = NOW()
	`
	if _, err := s.db.Exec(ctx, query,
		cred.ID,
		string(cred.SourceType),
		cred.AccessToken,
		cred.RefreshToken,
		cred.ExpiresAt,
	); err != nil {
		return "", fmt.Errorf("credentials: save: %w", err)
	}

	s.logger.Info("saved source credentials", "credentials_id", cred.ID, "source_type", cred.SourceType)
	return cred.ID, nil
}

// Load fetches a credential by id.
func (s *PostgresStore) Load(ctx context.Context, id string) (*Credential, error) {
	query := `
		SELECT id, source_type, access_token, refresh_token, expires_at, created_at, updated_at
		FROM source_credentials
		WHERE id = $1
	`
	var cred Credential
	var sourceType string
	if err := s.db.QueryRow(ctx, query, id).Scan(
		&cred.ID,
		&sourceType,
		&cred.AccessToken,
		&cred.RefreshToken,
		&cred.ExpiresAt,
		&cred.CreatedAt,
		&cred.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("credentials: load: %w", err)
	}
	cred.SourceType = SourceType(sourceType)
	return &cred, nil
}

// Delete removes a credential.
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM source_credentials WHERE id = $1`, id); err != nil {
		return fmt.Errorf("credentials: delete: %w", err)
	}
	s.logger.Info("deleted source credentials", "credentials_id", id)
	return nil
}
