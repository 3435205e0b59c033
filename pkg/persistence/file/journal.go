package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/dukex/stepflow/pkg/execution"
	"github.com/dukex/stepflow/pkg/persistence"
)

// JournalRepository keeps one JSON document per run.
type JournalRepository struct {
	root string
}

func NewJournalRepository(root string) *JournalRepository {
	return &JournalRepository{root: root}
}

func (r *JournalRepository) Save(_ context.Context, runID string, journal *execution.Journal) error {
	filePath, err := documentPath(r.root, journalsDir, runID)
	if err != nil {
		return persistence.NewJournalError("Save", runID, err)
	}

	data, err := json.Marshal(journal)
	if err != nil {
		return fmt.Errorf("failed to marshal journal of run %s: %w", runID, err)
	}

	if err := writeFile(filePath, data); err != nil {
		return persistence.NewJournalError("Save", runID, err)
	}

	return nil
}

func (r *JournalRepository) Get(_ context.Context, runID string) (*execution.Journal, error) {
	filePath, err := documentPath(r.root, journalsDir, runID)
	if err != nil {
		return nil, persistence.NewJournalError("Get", runID, persistence.ErrJournalNotFound)
	}

	body, err := os.ReadFile(filePath)
	if os.IsNotExist(err) {
		return nil, persistence.NewJournalError("Get", runID, persistence.ErrJournalNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to fetch journal of run %s: %w", runID, err)
	}

	journal := execution.NewJournal()
	if err := json.Unmarshal(body, journal); err != nil {
		return nil, fmt.Errorf("failed to unmarshal journal of run %s: %w", runID, err)
	}

	return journal, nil
}

func (r *JournalRepository) Delete(_ context.Context, runID string) error {
	filePath, err := documentPath(r.root, journalsDir, runID)
	if err != nil {
		return persistence.NewJournalError("Delete", runID, persistence.ErrJournalNotFound)
	}

	if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete journal of run %s: %w", runID, err)
	}

	return nil
}
