// Package file stores flow versions and run journals as JSON files.
package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dukex/stepflow/pkg/persistence"
)

const (
	flowVersionsDir = "flow_versions"
	journalsDir     = "journals"
)

var errInvalidID = errors.New("invalid id")

// Persistence implements persistence.Persistence on the file system.
type Persistence struct {
	root         string
	flowVersions *FlowVersionRepository
	journals     *JournalRepository
}

// NewPersistence creates a file store rooted at root, with or without the file:// prefix.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.TrimPrefix(root, "file://")

	return &Persistence{
		root:         cleanRoot,
		flowVersions: NewFlowVersionRepository(cleanRoot),
		journals:     NewJournalRepository(cleanRoot),
	}
}

func (fp *Persistence) FlowVersionRepository() persistence.FlowVersionRepository {
	return fp.flowVersions
}

func (fp *Persistence) JournalRepository() persistence.JournalRepository {
	return fp.journals
}

// HealthCheck verifies the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// documentPath returns the file of id under dir, rejecting ids that would escape it.
func documentPath(root, dir, id string) (string, error) {
	if id == "" || id != filepath.Base(id) || id == "." || id == ".." {
		return "", fmt.Errorf("%w: %q", errInvalidID, id)
	}

	return filepath.Join(root, dir, id+".json"), nil
}

// writeFile replaces path atomically.
func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())

		return err
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())

		return err
	}

	return os.Rename(tmp.Name(), path)
}
