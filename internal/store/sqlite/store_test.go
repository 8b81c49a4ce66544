package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/danmuck/expertmesh/internal/experts"
	"github.com/danmuck/expertmesh/internal/store"
	"github.com/danmuck/expertmesh/internal/store/storetest"
	"github.com/danmuck/expertmesh/internal/testutil/testlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTempStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "expertmesh.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpenRequiresPath(t *testing.T) {
	testlog.Start(t)
	_, err := Open("  ")
	require.Error(t, err)
}

func TestSQLiteStoreContract(t *testing.T) {
	testlog.Start(t)
	storetest.Run(t, func(t *testing.T) store.Store {
		return openTempStore(t)
	})
}

func TestReopenKeepsStateAndSkipsAppliedMigrations(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "expertmesh.db")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.PutProvider(ctx, experts.Provider{
		ID:          "python-code-expert",
		Spec:        experts.Spec{Name: "Python", ProviderAddress: "0xpy", Capabilities: []string{"python"}},
		Performance: experts.DefaultPerformance(),
		Status:      experts.StatusActive,
	}))
	require.NoError(t, s.PutCredit(ctx, "0xpy", 2.5))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	providers, err := s.ListProviders(ctx)
	require.NoError(t, err)
	require.Len(t, providers, 1)
	assert.Equal(t, "python-code-expert", providers[0].ID)

	credits, err := s.ListCredits(ctx)
	require.NoError(t, err)
	require.Len(t, credits, 1)
	assert.InDelta(t, 2.5, credits[0].Amount, 1e-9)

	var applied int
	require.NoError(t, s.sqlDB.QueryRow(`SELECT COUNT(1) FROM schema_migrations`).Scan(&applied))
	assert.Equal(t, 1, applied)
}

func TestExtractUp(t *testing.T) {
	testlog.Start(t)
	assert.Equal(t, "\nA;\n", extractUp("-- +migrate Up\nA;\n-- +migrate Down\nB;\n"))
	assert.Equal(t, "plain;", extractUp("plain;"))
}
