package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/dukex/stepflow/pkg/models"
	"github.com/dukex/stepflow/pkg/persistence"
)

// FlowVersionRepository keeps one JSON document per flow version.
type FlowVersionRepository struct {
	root string
}

func NewFlowVersionRepository(root string) *FlowVersionRepository {
	return &FlowVersionRepository{root: root}
}

func (r *FlowVersionRepository) Save(_ context.Context, fv *models.FlowVersion) error {
	filePath, err := documentPath(r.root, flowVersionsDir, fv.ID)
	if err != nil {
		return persistence.NewFlowVersionError("Save", fv.ID, err)
	}

	if fv.CreatedAt.IsZero() {
		fv.CreatedAt = time.Now().UTC()
	}

	if fv.UpdatedAt.IsZero() {
		fv.UpdatedAt = fv.CreatedAt
	}

	data, err := json.MarshalIndent(fv, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal flow version %s: %w", fv.ID, err)
	}

	if err := writeFile(filePath, data); err != nil {
		return persistence.NewFlowVersionError("Save", fv.ID, err)
	}

	return nil
}

func (r *FlowVersionRepository) GetByID(_ context.Context, id string) (json.RawMessage, error) {
	filePath, err := documentPath(r.root, flowVersionsDir, id)
	if err != nil {
		return nil, persistence.NewFlowVersionError("GetByID", id, persistence.ErrFlowVersionNotFound)
	}

	body, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewFlowVersionError("GetByID", id, persistence.ErrFlowVersionNotFound)
		}

		return nil, fmt.Errorf("failed to fetch flow version %s: %w", id, err)
	}

	return body, nil
}

func (r *FlowVersionRepository) ListByFlow(_ context.Context, flowID string) ([]json.RawMessage, error) {
	root := os.DirFS(filepath.Join(r.root, flowVersionsDir))

	files, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list flow version files: %w", err)
	}

	type entry struct {
		created string
		id      string
		doc     json.RawMessage
	}

	entries := make([]entry, 0, len(files))

	for _, name := range files {
		body, err := fs.ReadFile(root, name)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}

			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}

		id, fid, created, err := persistence.Header(body)
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", name, err)
		}

		if fid == flowID {
			entries = append(entries, entry{created: created, id: id, doc: body})
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].created != entries[j].created {
			return entries[i].created < entries[j].created
		}

		return entries[i].id < entries[j].id
	})

	docs := make([]json.RawMessage, 0, len(entries))
	for _, e := range entries {
		docs = append(docs, e.doc)
	}

	return docs, nil
}

func (r *FlowVersionRepository) Delete(_ context.Context, id string) error {
	filePath, err := documentPath(r.root, flowVersionsDir, id)
	if err != nil {
		return persistence.NewFlowVersionError("Delete", id, persistence.ErrFlowVersionNotFound)
	}

	err = os.Remove(filePath)
	if os.IsNotExist(err) {
		return persistence.NewFlowVersionError("Delete", id, persistence.ErrFlowVersionNotFound)
	}

	if err != nil {
		return fmt.Errorf("failed to delete flow version %s: %w", id, err)
	}

	return nil
}
