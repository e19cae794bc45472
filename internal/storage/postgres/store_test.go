package postgres_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/scrypster/osintgraph/internal/storage"
	"github.com/scrypster/osintgraph/internal/storage/postgres"
	"github.com/scrypster/osintgraph/internal/storage/storagetest"
)

// postgresTestDSN returns the DSN for the test database.
// If OSINTGRAPH_TEST_POSTGRES_DSN is not set, tests are skipped.
func postgresTestDSN(t *testing.T) string {
	t.Helper()

	dsn := os.Getenv("OSINTGRAPH_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("OSINTGRAPH_TEST_POSTGRES_DSN not set; skipping PostgreSQL integration tests")
	}
	return dsn
}

func TestStore_Suite(t *testing.T) {
	dsn := postgresTestDSN(t)

	storagetest.Run(t, func(t *testing.T) storage.SnapshotStore {
		store, err := postgres.NewStore(context.Background(), dsn)
		require.NoError(t, err, "NewStore should succeed")
		require.NoError(t, store.TruncateForTest(context.Background()))
		return store
	})
}
