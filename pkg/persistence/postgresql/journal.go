package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dukex/stepflow/pkg/execution"
	"github.com/dukex/stepflow/pkg/persistence"
)

// JournalRepository keeps run journals in the run_journals table.
type JournalRepository struct {
	db *sql.DB
}

func NewJournalRepository(db *sql.DB) *JournalRepository {
	return &JournalRepository{db: db}
}

func (r *JournalRepository) Save(ctx context.Context, runID string, journal *execution.Journal) error {
	doc, err := json.Marshal(journal)
	if err != nil {
		return fmt.Errorf("failed to marshal journal of run %s: %w", runID, err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO run_journals (run_id, document, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (run_id) DO UPDATE SET document = EXCLUDED.document, updated_at = NOW()
	`, runID, string(doc))
	if err != nil {
		return persistence.NewJournalError("Save", runID, err)
	}

	return nil
}

func (r *JournalRepository) Get(ctx context.Context, runID string) (*execution.Journal, error) {
	var doc []byte

	err := r.db.QueryRowContext(ctx, "SELECT document FROM run_journals WHERE run_id = $1", runID).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.NewJournalError("Get", runID, persistence.ErrJournalNotFound)
	}

	if err != nil {
		return nil, persistence.NewJournalError("Get", runID, err)
	}

	journal := execution.NewJournal()
	if err := json.Unmarshal(doc, journal); err != nil {
		return nil, fmt.Errorf("failed to unmarshal journal of run %s: %w", runID, err)
	}

	return journal, nil
}

func (r *JournalRepository) Delete(ctx context.Context, runID string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM run_journals WHERE run_id = $1", runID); err != nil {
		return persistence.NewJournalError("Delete", runID, err)
	}

	return nil
}
