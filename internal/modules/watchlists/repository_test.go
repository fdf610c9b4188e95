package watchlists

import (
	"database/sql"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func setupRepo(t *testing.T) *Repository {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	// Single connection so every query sees the same in-memory database.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE watchlist_entries (
			user_id TEXT NOT NULL,
			list_index INTEGER NOT NULL,
			position INTEGER NOT NULL,
			symbol TEXT NOT NULL,
			PRIMARY KEY (user_id, list_index, position)
		);
	`)
	require.NoError(t, err)

	return NewRepository(db, zerolog.New(nil).Level(zerolog.Disabled))
}

func TestGet_EmptyListsAreNotNil(t *testing.T) {
	repo := setupRepo(t)

	lists, err := repo.Get("user-1")
	require.NoError(t, err)

	for i, list := range lists {
		assert.NotNil(t, list, "list %d", i)
		assert.Empty(t, list)
	}
}

func TestPut_RoundTripPreservesOrder(t *testing.T) {
	repo := setupRepo(t)

	want := [ListCount][]string{
		{"AAPL", "MSFT", "TSLA"},
		{"NVDA"},
		{},
	}
	require.NoError(t, repo.Put("user-1", want))

	got, err := repo.Get("user-1")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestPut_NormalizesSymbols(t *testing.T) {
	repo := setupRepo(t)

	require.NoError(t, repo.Put("user-1", [ListCount][]string{
		{" aapl ", "MSFT", "aapl", "", "msft", "TSLA"},
		{},
		{},
	}))

	got, err := repo.Get("user-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT", "TSLA"}, got[0], "uppercased, trimmed, de-duplicated, order kept")
}

func TestPut_ReplacesWholesale(t *testing.T) {
	repo := setupRepo(t)

	require.NoError(t, repo.Put("user-1", [ListCount][]string{
		{"AAPL", "MSFT"},
		{"TSLA"},
		{"NVDA"},
	}))
	require.NoError(t, repo.Put("user-1", [ListCount][]string{
		{"GOOG"},
		{},
		{},
	}))

	got, err := repo.Get("user-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"GOOG"}, got[0])
	assert.Empty(t, got[1])
	assert.Empty(t, got[2])
}

func TestPut_IsScopedToUser(t *testing.T) {
	repo := setupRepo(t)

	require.NoError(t, repo.Put("user-1", [ListCount][]string{{"AAPL"}, {}, {}}))
	require.NoError(t, repo.Put("user-2", [ListCount][]string{{"MSFT"}, {}, {}}))

	got, err := repo.Get("user-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL"}, got[0])
}

func TestSymbolCounts(t *testing.T) {
	repo := setupRepo(t)

	require.NoError(t, repo.Put("user-1", [ListCount][]string{
		{"AAPL", "MSFT"},
		{"AAPL"},
		{"AAPL", "TSLA"},
	}))
	require.NoError(t, repo.Put("user-2", [ListCount][]string{{"AAPL"}, {}, {}}))

	counts, err := repo.SymbolCounts("user-1")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"AAPL": 3, "MSFT": 1, "TSLA": 1}, counts)

	all, err := repo.AllSymbolCounts()
	require.NoError(t, err)
	assert.Equal(t, 4, all["AAPL"])
}

func TestDeleteByUser(t *testing.T) {
	repo := setupRepo(t)

	require.NoError(t, repo.Put("user-1", [ListCount][]string{{"AAPL"}, {}, {}}))
	require.NoError(t, repo.Put("user-2", [ListCount][]string{{"MSFT"}, {}, {}}))

	require.NoError(t, repo.DeleteByUser("user-1"))

	got, err := repo.Get("user-1")
	require.NoError(t, err)
	assert.Empty(t, got[0])

	other, err := repo.Get("user-2")
	require.NoError(t, err)
	assert.Equal(t, []string{"MSFT"}, other[0])
}
