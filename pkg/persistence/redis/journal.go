// Package redis stores run journals in Redis.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dukex/stepflow/pkg/execution"
	"github.com/dukex/stepflow/pkg/persistence"
	backend "github.com/redis/go-redis/v9"
)

const defaultPrefix = "stepflow:journal:"

// JournalRepository implements persistence.JournalRepository on Redis strings.
type JournalRepository struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

type Option func(*JournalRepository)

// WithTTL expires journals ttl after their last save. Zero keeps them.
func WithTTL(ttl time.Duration) Option {
	return func(r *JournalRepository) {
		r.ttl = ttl
	}
}

func WithPrefix(prefix string) Option {
	return func(r *JournalRepository) {
		r.prefix = prefix
	}
}

// New connects to a redis:// URL.
func New(redisURL string, opts ...Option) (*JournalRepository, error) {
	options, err := backend.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	return NewFromClient(backend.NewClient(options), opts...), nil
}

func NewFromClient(client *backend.Client, opts ...Option) *JournalRepository {
	r := &JournalRepository{client: client, prefix: defaultPrefix}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

func (r *JournalRepository) key(runID string) string {
	return r.prefix + runID
}

func (r *JournalRepository) Save(ctx context.Context, runID string, journal *execution.Journal) error {
	data, err := json.Marshal(journal)
	if err != nil {
		return fmt.Errorf("failed to marshal journal of run %s: %w", runID, err)
	}

	if err := r.client.Set(ctx, r.key(runID), data, r.ttl).Err(); err != nil {
		return persistence.NewJournalError("Save", runID, err)
	}

	return nil
}

func (r *JournalRepository) Get(ctx context.Context, runID string) (*execution.Journal, error) {
	val, err := r.client.Get(ctx, r.key(runID)).Bytes()
	if errors.Is(err, backend.Nil) {
		return nil, persistence.NewJournalError("Get", runID, persistence.ErrJournalNotFound)
	}

	if err != nil {
		return nil, persistence.NewJournalError("Get", runID, err)
	}

	journal := execution.NewJournal()
	if err := json.Unmarshal(val, journal); err != nil {
		return nil, fmt.Errorf("failed to unmarshal journal of run %s: %w", runID, err)
	}

	return journal, nil
}

func (r *JournalRepository) Delete(ctx context.Context, runID string) error {
	if err := r.client.Del(ctx, r.key(runID)).Err(); err != nil {
		return persistence.NewJournalError("Delete", runID, err)
	}

	return nil
}

// HealthCheck pings the server.
func (r *JournalRepository) HealthCheck(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *JournalRepository) Close(_ context.Context) error {
	return r.client.Close()
}
