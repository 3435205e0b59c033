package cmd

import (
	"context"
	"log/slog"
	"testing"

	"github.com/dukex/stepflow/pkg/persistence"
	"github.com/dukex/stepflow/pkg/persistence/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProvider(t *testing.T) {
	tests := map[string]string{
		"file://./data":                  "file",
		"./data":                         "file",
		"postgres://u:p@localhost/db":    "postgres",
		"postgresql://u:p@localhost/db":  "postgresql",
		"redis://localhost:6379/0":       "redis",
		"mongodb://localhost:27017/flow": "mongodb",
	}

	for url, want := range tests {
		assert.Equal(t, want, parseProvider(url), url)
	}
}

func TestNewPersistence(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)

	p, err := NewPersistence(context.Background(), logger, "file://"+t.TempDir())
	require.NoError(t, err)
	assert.IsType(t, &file.Persistence{}, p)

	_, err = NewPersistence(context.Background(), logger, "mongodb://localhost/flows")
	assert.ErrorIs(t, err, persistence.ErrUnsupportedScheme)
}

func TestNewJournalRepository(t *testing.T) {
	fallback := file.NewPersistence(t.TempDir()).JournalRepository()

	repo, closeFn, err := NewJournalRepository("", 0, fallback)
	require.NoError(t, err)
	assert.Same(t, fallback, repo)
	require.NoError(t, closeFn(context.Background()))

	repo, _, err = NewJournalRepository("file://"+t.TempDir(), 0, fallback)
	require.NoError(t, err)
	assert.NotSame(t, fallback, repo)

	_, _, err = NewJournalRepository("memcached://localhost", 0, fallback)
	assert.ErrorIs(t, err, persistence.ErrUnsupportedScheme)
}

func TestNewEventBus(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)

	bus, err := NewEventBus("gochannel", nil, "", logger)
	require.NoError(t, err)
	require.NoError(t, bus.Close())

	_, err = NewEventBus("nats", nil, "", logger)
	assert.Error(t, err)

	t.Setenv("KAFKA_BROKERS", "")
	_, err = NewEventBus("kafka", nil, "", logger)
	assert.Error(t, err)
}

func TestNewRegistry(t *testing.T) {
	reg, err := NewRegistry(slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	assert.Len(t, reg.Pieces(), 4)
}
