package postgresql_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/dukex/stepflow/pkg/execution"
	"github.com/dukex/stepflow/pkg/models"
	"github.com/dukex/stepflow/pkg/persistence"
	"github.com/dukex/stepflow/pkg/persistence/postgresql"
	"github.com/dukex/stepflow/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

var postgresContainer *postgres.PostgresContainer

func dropDb(ctx context.Context, t *testing.T, databaseURL string) {
	t.Helper()

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	for _, table := range []string{"run_journals", "flow_versions", "schema_migrations"} {
		_, err = db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE")
		require.NoError(t, err)
	}

	require.NoError(t, db.Close())
}

func setupTestDB(t *testing.T) (*postgresql.Persistence, context.Context, string) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping PostgreSQL integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)

	if postgresContainer == nil || !postgresContainer.IsRunning() {
		var err error

		postgresContainer, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("stepflow_test"),
			postgres.WithUsername("stepflow"),
			postgres.WithPassword("stepflow"),
			postgres.BasicWaitStrategies(),
		)
		require.NoError(t, err)
	}

	databaseURL, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	dropDb(ctx, t, databaseURL)

	p, err := postgresql.NewPersistence(ctx, slog.New(slog.DiscardHandler), databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		dropDb(ctx, t, databaseURL)
		require.NoError(t, p.Close(ctx))
		cancel()
	})

	return p, ctx, databaseURL
}

func TestNewPersistence_Migrations(t *testing.T) {
	p, ctx, databaseURL := setupTestDB(t)
	require.NoError(t, p.HealthCheck(ctx))

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	defer db.Close()

	var version int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT MAX(version) FROM schema_migrations").Scan(&version))
	assert.Equal(t, 2, version)

	// a second start finds the schema current
	again, err := postgresql.NewPersistence(ctx, slog.New(slog.DiscardHandler), databaseURL)
	require.NoError(t, err)
	require.NoError(t, again.Close(ctx))
}

func TestFlowVersionRepository(t *testing.T) {
	p, ctx, _ := setupTestDB(t)
	repo := p.FlowVersionRepository()

	first := testutil.FlowVersion(testutil.PieceTrigger("trigger", testutil.Code("a")), func(fv *models.FlowVersion) {
		fv.FlowID = "flow-1"
	})
	second := testutil.FlowVersion(models.NewEmptyTrigger(), func(fv *models.FlowVersion) {
		fv.FlowID = "flow-1"
		fv.CreatedAt = first.CreatedAt.Add(time.Hour)
	})

	require.NoError(t, repo.Save(ctx, second))
	require.NoError(t, repo.Save(ctx, first))

	first.DisplayName = "Updated"
	require.NoError(t, repo.Save(ctx, first))

	raw, err := repo.GetByID(ctx, first.ID)
	require.NoError(t, err)

	var loaded models.FlowVersion
	require.NoError(t, json.Unmarshal(raw, &loaded))
	assert.Equal(t, "Updated", loaded.DisplayName)
	assert.Equal(t, "a", loaded.Trigger.Base().NextAction.Base().Name)

	docs, err := repo.ListByFlow(ctx, "flow-1")
	require.NoError(t, err)
	require.Len(t, docs, 2)

	id, _, _, err := persistence.Header(docs[0])
	require.NoError(t, err)
	assert.Equal(t, first.ID, id)

	require.NoError(t, repo.Delete(ctx, first.ID))
	assert.True(t, persistence.IsFlowVersionNotFound(repo.Delete(ctx, first.ID)))

	_, err = repo.GetByID(ctx, first.ID)
	assert.True(t, persistence.IsFlowVersionNotFound(err))
}

func TestJournalRepository_PreservesOrder(t *testing.T) {
	p, ctx, _ := setupTestDB(t)
	repo := p.JournalRepository()

	journal := execution.NewJournal()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, journal.UpsertStep(nil, name, &execution.StepOutput{
			Type:   models.StepTypeCode,
			Status: execution.StepStatusSucceeded,
		}, false))
	}

	require.NoError(t, repo.Save(ctx, "run-1", journal))

	loaded, err := repo.Get(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, loaded.Steps().Names())

	require.NoError(t, repo.Delete(ctx, "run-1"))

	_, err = repo.Get(ctx, "run-1")
	assert.True(t, persistence.IsJournalNotFound(err))
}
