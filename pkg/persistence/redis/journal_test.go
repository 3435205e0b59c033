package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dukex/stepflow/pkg/execution"
	"github.com/dukex/stepflow/pkg/models"
	"github.com/dukex/stepflow/pkg/persistence"
	"github.com/dukex/stepflow/pkg/persistence/redis"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepository(t *testing.T, opts ...redis.Option) (*redis.JournalRepository, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	repo := redis.NewFromClient(backend.NewClient(&backend.Options{Addr: mr.Addr()}), opts...)

	t.Cleanup(func() {
		_ = repo.Close(context.Background())
	})

	return repo, mr
}

func TestJournalRepository_SaveGet(t *testing.T) {
	ctx := context.Background()
	repo, mr := newRepository(t)
	require.NoError(t, repo.HealthCheck(ctx))

	journal := execution.NewJournal()
	require.NoError(t, journal.UpsertStep(nil, "b", &execution.StepOutput{Type: models.StepTypeCode, Status: execution.StepStatusSucceeded}, false))
	require.NoError(t, journal.UpsertStep(nil, "a", &execution.StepOutput{Type: models.StepTypeCode, Status: execution.StepStatusFailed}, false))
	require.NoError(t, repo.Save(ctx, "run-1", journal))

	assert.True(t, mr.Exists("stepflow:journal:run-1"))

	loaded, err := repo.Get(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, loaded.Steps().Names())

	failed := execution.StepStatusFailed
	last, ok := loaded.FindLastStepWithStatus(&failed)
	require.True(t, ok)
	assert.Equal(t, "a", last)

	require.NoError(t, repo.Delete(ctx, "run-1"))

	_, err = repo.Get(ctx, "run-1")
	assert.True(t, persistence.IsJournalNotFound(err))
}

func TestJournalRepository_TTL(t *testing.T) {
	ctx := context.Background()
	repo, mr := newRepository(t, redis.WithTTL(time.Minute), redis.WithPrefix("test:"))

	require.NoError(t, repo.Save(ctx, "run-2", execution.NewJournal()))
	assert.Equal(t, time.Minute, mr.TTL("test:run-2"))

	mr.FastForward(2 * time.Minute)

	_, err := repo.Get(ctx, "run-2")
	assert.True(t, persistence.IsJournalNotFound(err))
}

func TestNew_InvalidURL(t *testing.T) {
	_, err := redis.New("http://localhost")
	assert.Error(t, err)
}
