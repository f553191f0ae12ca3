// Package relations maintains the entity relation graph linking clinics,
// schedulers and practitioners.
package relations

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/clinicops/scheduling-service/pkg/logging"
)

// Kind names a relation edge type.
type Kind string

const (
	// KindClinicScheduler links a clinic to a scheduler it owns.
	KindClinicScheduler Kind = "clinic_scheduler"
	// KindSchedulerPractitioner links a scheduler to the practitioner it books for.
	KindSchedulerPractitioner Kind = "scheduler_practitioner"
)

// Graph is the relation collaborator consumed by the provisioning
// orchestrator. Link failures there are downgraded to warnings, so
// implementations must return errors rather than panic.
type Graph interface {
	Link(ctx context.Context, parentID, childID string, kind Kind) error
	Children(ctx context.Context, parentID string, kind Kind) ([]string, error)
}

type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresGraph stores relation edges in the entity_relations table. Rows
// are always written parent→child, so Children is the single canonical
// read shape regardless of which flow created the edge.
type PostgresGraph struct {
	db     db
	logger *logging.Logger
}

// NewPostgresGraph creates a relation graph store.
func NewPostgresGraph(db db, logger *logging.Logger) *PostgresGraph {
	if logger == nil {
		logger = logging.Default()
	}
	return &PostgresGraph{db: db, logger: logger}
}

// Link creates the edge; relinking an existing pair is a no-op.
func (g *PostgresGraph) Link(ctx context.Context, parentID, childID string, kind Kind) error {
	query := `
		INSERT INTO entity_relations (parent_id, child_id, kind)
		VALUES ($1, $2, $3)
		ON CONFLICT (parent_id, child_id, kind) DO NOTHING
	`
	if _, err := g.db.Exec(ctx, query, parentID, childID, string(kind)); err != nil {
		return fmt.Errorf("relations: link %s: %w", kind, err)
	}
	g.logger.Info("linked relation", "kind", kind, "parent_id", parentID, "child_id", childID)
	return nil
}

// Children returns the child ids linked under a parent for the given kind.
func (g *PostgresGraph) Children(ctx context.Context, parentID string, kind Kind) ([]string, error) {
	query := `
		SELECT child_id FROM entity_relations
		WHERE parent_id = $1 AND kind = $2
		ORDER BY created_at
	`
	rows, err := g.db.Query(ctx, query, parentID, string(kind))
	if err != nil {
		return nil, fmt.Errorf("relations: children %s: %w", kind, err)
	}
	defer rows.Close()

	var children []string
	for rows.Next() {
		var child string
		if err := rows.Scan(&child); err != nil {
			return nil, fmt.Errorf("relations: scan child: %w", err)
		}
		children = append(children, child)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("relations: iterate children: %w", err)
	}
	return children, nil
}
