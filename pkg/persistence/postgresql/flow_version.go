package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/stepflow/pkg/models"
	"github.com/dukex/stepflow/pkg/persistence"
)

// FlowVersionRepository keeps flow version documents in the flow_versions table.
type FlowVersionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewFlowVersionRepository(db *sql.DB, logger *slog.Logger) *FlowVersionRepository {
	return &FlowVersionRepository{db: db, logger: logger}
}

func (r *FlowVersionRepository) Save(ctx context.Context, fv *models.FlowVersion) error {
	if fv.CreatedAt.IsZero() {
		fv.CreatedAt = time.Now().UTC()
	}

	if fv.UpdatedAt.IsZero() {
		fv.UpdatedAt = fv.CreatedAt
	}

	doc, err := json.Marshal(fv)
	if err != nil {
		return fmt.Errorf("failed to marshal flow version %s: %w", fv.ID, err)
	}

	query := `
		INSERT INTO flow_versions (id, flow_id, schema_version, state, document, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			flow_id = EXCLUDED.flow_id
		  , schema_version = EXCLUDED.schema_version
		  , state = EXCLUDED.state
		  , document = EXCLUDED.document
		  , updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		fv.ID, fv.FlowID, fv.SchemaVersion, string(fv.State), string(doc), fv.CreatedAt, fv.UpdatedAt)
	if err != nil {
		return persistence.NewFlowVersionError("Save", fv.ID, err)
	}

	return nil
}

func (r *FlowVersionRepository) GetByID(ctx context.Context, id string) (json.RawMessage, error) {
	var doc []byte

	err := r.db.QueryRowContext(ctx, "SELECT document FROM flow_versions WHERE id = $1", id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.NewFlowVersionError("GetByID", id, persistence.ErrFlowVersionNotFound)
	}

	if err != nil {
		return nil, persistence.NewFlowVersionError("GetByID", id, err)
	}

	return doc, nil
}

func (r *FlowVersionRepository) ListByFlow(ctx context.Context, flowID string) ([]json.RawMessage, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT document FROM flow_versions WHERE flow_id = $1 ORDER BY created_at, id", flowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query flow versions: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	docs := make([]json.RawMessage, 0)

	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("failed to scan flow version: %w", err)
		}

		docs = append(docs, doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate flow versions: %w", err)
	}

	return docs, nil
}

func (r *FlowVersionRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM flow_versions WHERE id = $1", id)
	if err != nil {
		return persistence.NewFlowVersionError("Delete", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewFlowVersionError("Delete", id, err)
	}

	if affected == 0 {
		return persistence.NewFlowVersionError("Delete", id, persistence.ErrFlowVersionNotFound)
	}

	return nil
}
