package cmd

import (
	"log/slog"

	"github.com/dukex/stepflow/pkg/registry"
)

// NewRegistry creates a step registry with the default pieces registered.
func NewRegistry(logger *slog.Logger) (*registry.Registry, error) {
	reg, err := registry.NewRegistry(logger)
	if err != nil {
		return nil, err
	}

	if err := reg.RegisterDefaultPieces(); err != nil {
		return nil, err
	}

	return reg, nil
}
