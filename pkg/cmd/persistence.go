// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dukex/stepflow/pkg/persistence"
	"github.com/dukex/stepflow/pkg/persistence/file"
	"github.com/dukex/stepflow/pkg/persistence/postgresql"
	"github.com/dukex/stepflow/pkg/persistence/redis"
)

// CloseFunc releases a store created by a factory.
type CloseFunc func(ctx context.Context) error

func noopClose(context.Context) error { return nil }

// NewPersistence selects the flow version store by URL scheme. A URL without
// a scheme is treated as a file system path.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	switch provider := parseProvider(databaseURL); provider {
	case "file":
		return file.NewPersistence(databaseURL), nil
	case "postgres", "postgresql":
		return postgresql.NewPersistence(ctx, logger, databaseURL)
	default:
		return nil, fmt.Errorf("%w: %s", persistence.ErrUnsupportedScheme, provider)
	}
}

// NewJournalRepository selects the run journal store. An empty URL reuses
// fallback, the journal store of the flow version persistence.
func NewJournalRepository(journalURL string, ttl time.Duration, fallback persistence.JournalRepository) (persistence.JournalRepository, CloseFunc, error) {
	if journalURL == "" {
		return fallback, noopClose, nil
	}

	switch provider := parseProvider(journalURL); provider {
	case "file":
		return file.NewPersistence(journalURL).JournalRepository(), noopClose, nil
	case "redis", "rediss":
		store, err := redis.New(journalURL, redis.WithTTL(ttl))
		if err != nil {
			return nil, nil, err
		}

		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("%w: %s", persistence.ErrUnsupportedScheme, provider)
	}
}

func parseProvider(url string) string {
	scheme, _, found := strings.Cut(url, "://")
	if !found {
		return "file"
	}

	return scheme
}
