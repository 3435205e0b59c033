package persistence

import (
	"context"
	"encoding/json"

	"github.com/dukex/stepflow/pkg/execution"
	"github.com/dukex/stepflow/pkg/models"
)

// Persistence bundles the stores of one backend.
type Persistence interface {
	FlowVersionRepository() FlowVersionRepository
	JournalRepository() JournalRepository
	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// FlowVersionRepository stores flow version documents. Reads return the
// stored document as is; callers migrate it before typing.
type FlowVersionRepository interface {
	Save(ctx context.Context, fv *models.FlowVersion) error
	GetByID(ctx context.Context, id string) (json.RawMessage, error)
	// ListByFlow returns the versions of a flow, oldest first.
	ListByFlow(ctx context.Context, flowID string) ([]json.RawMessage, error)
	Delete(ctx context.Context, id string) error
}

// JournalRepository stores the journal of each run.
type JournalRepository interface {
	Save(ctx context.Context, runID string, journal *execution.Journal) error
	Get(ctx context.Context, runID string) (*execution.Journal, error)
	Delete(ctx context.Context, runID string) error
}

// documentHeader is the part of a stored document the stores index on.
type documentHeader struct {
	ID        string `json:"id"`
	FlowID    string `json:"flowId"`
	CreatedAt string `json:"created"`
}

// Header decodes the identifying fields of a stored flow version document.
func Header(doc json.RawMessage) (id, flowID, created string, err error) {
	var h documentHeader
	if err := json.Unmarshal(doc, &h); err != nil {
		return "", "", "", err
	}

	return h.ID, h.FlowID, h.CreatedAt, nil
}
