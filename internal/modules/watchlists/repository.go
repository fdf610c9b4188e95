// Package watchlists provides the per-user watchlists: three positional
// lists of symbols, replaced wholesale on save.
package watchlists

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// ListCount is the fixed number of watchlists per user.
const ListCount = 3

// Repository handles watchlist database operations
type Repository struct {
	appDB *sql.DB // app.db - watchlist_entries table
	log   zerolog.Logger
}

// NewRepository creates a new watchlist repository
func NewRepository(appDB *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		appDB: appDB,
		log:   log.With().Str("repo", "watchlists").Logger(),
	}
}

// Get returns the user's three watchlists. Unset lists come back empty, not
// nil, so the response shape is stable.
func (r *Repository) Get(userID string) ([ListCount][]string, error) {
	var lists [ListCount][]string
	for i := range lists {
		lists[i] = []string{}
	}

	rows, err := r.appDB.Query(
		"SELECT list_index, symbol FROM watchlist_entries WHERE user_id = ? ORDER BY list_index, position",
		userID,
	)
	if err != nil {
		return lists, fmt.Errorf("failed to query watchlists: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var index int
		var symbol string
		if err := rows.Scan(&index, &symbol); err != nil {
			return lists, fmt.Errorf("failed to scan watchlist entry: %w", err)
		}
		if index >= 0 && index < ListCount {
			lists[index] = append(lists[index], symbol)
		}
	}

	if err := rows.Err(); err != nil {
		return lists, fmt.Errorf("error iterating watchlist entries: %w", err)
	}

	return lists, nil
}

// Put replaces all three watchlists in one transaction. Symbols are
// uppercased and de-duplicated within each list, preserving order.
func (r *Repository) Put(userID string, lists [ListCount][]string) error {
	tx, err := r.appDB.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec("DELETE FROM watchlist_entries WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("failed to clear watchlists: %w", err)
	}

	for index, list := range lists {
		seen := make(map[string]bool)
		position := 0
		for _, symbol := range list {
			symbol = strings.ToUpper(strings.TrimSpace(symbol))
			if symbol == "" || seen[symbol] {
				continue
			}
			seen[symbol] = true

			_, err := tx.Exec(
				"INSERT INTO watchlist_entries (user_id, list_index, position, symbol) VALUES (?, ?, ?, ?)",
				userID, index, position, symbol,
			)
			if err != nil {
				return fmt.Errorf("failed to insert watchlist entry: %w", err)
			}
			position++
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	r.log.Debug().Str("user_id", userID).Msg("Watchlists replaced")
	return nil
}

// SymbolCounts returns how often each symbol appears across the user's lists.
func (r *Repository) SymbolCounts(userID string) (map[string]int, error) {
	rows, err := r.appDB.Query(
		"SELECT symbol, COUNT(*) FROM watchlist_entries WHERE user_id = ? GROUP BY symbol",
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query watchlist counts: %w", err)
	}
	defer rows.Close()

	return collectCounts(rows)
}

// AllSymbolCounts returns symbol frequency across every user's watchlists.
// Used by the admin demanding-stocks report.
func (r *Repository) AllSymbolCounts() (map[string]int, error) {
	rows, err := r.appDB.Query("SELECT symbol, COUNT(*) FROM watchlist_entries GROUP BY symbol")
	if err != nil {
		return nil, fmt.Errorf("failed to query watchlist counts: %w", err)
	}
	defer rows.Close()

	return collectCounts(rows)
}

// DeleteByUser removes every watchlist entry of a user. Used when an admin
// deletes the account.
func (r *Repository) DeleteByUser(userID string) error {
	if _, err := r.appDB.Exec("DELETE FROM watchlist_entries WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("failed to delete watchlists: %w", err)
	}
	return nil
}

func collectCounts(rows *sql.Rows) (map[string]int, error) {
	counts := make(map[string]int)
	for rows.Next() {
		var symbol string
		var count int
		if err := rows.Scan(&symbol, &count); err != nil {
			return nil, fmt.Errorf("failed to scan symbol count: %w", err)
		}
		counts[symbol] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating symbol counts: %w", err)
	}

	return counts, nil
}
