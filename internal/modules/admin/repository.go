// Package admin provides the aggregate reporting behind the admin dashboard.
package admin

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Repository runs the cross-user aggregate queries the dashboard needs.
// This is the only read path that is not scoped to a single user, and it is
// reachable only through admin-gated routes.
type Repository struct {
	ledgerDB *sql.DB // ledger.db - holdings, realized_transactions, activity_log
	appDB    *sql.DB // app.db - users
	log      zerolog.Logger
}

// NewRepository creates a new admin repository
func NewRepository(ledgerDB, appDB *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		ledgerDB: ledgerDB,
		appDB:    appDB,
		log:      log.With().Str("repo", "admin").Logger(),
	}
}

// CountUsers returns the total number of registered users.
func (r *Repository) CountUsers() (int, error) {
	var count int
	if err := r.appDB.QueryRow("SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

// CountHoldings returns the total number of open holdings across all users.
func (r *Repository) CountHoldings() (int, error) {
	var count int
	if err := r.ledgerDB.QueryRow("SELECT COUNT(*) FROM holdings").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count holdings: %w", err)
	}
	return count, nil
}

// CountRealized returns the total number of realized transactions.
func (r *Repository) CountRealized() (int, error) {
	var count int
	if err := r.ledgerDB.QueryRow("SELECT COUNT(*) FROM realized_transactions").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count realized transactions: %w", err)
	}
	return count, nil
}

// MonthlySignups is the number of accounts created in one calendar month.
type MonthlySignups struct {
	Month string `json:"month"` // "2026-08"
	Count int    `json:"count"`
}

// UserGrowth buckets account creations by calendar month, oldest first.
func (r *Repository) UserGrowth() ([]MonthlySignups, error) {
	query := `
		SELECT strftime('%Y-%m', created_at, 'unixepoch') AS month, COUNT(*)
		FROM users
		GROUP BY month
		ORDER BY month
	`

	rows, err := r.appDB.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query user growth: %w", err)
	}
	defer rows.Close()

	var result []MonthlySignups
	for rows.Next() {
		var m MonthlySignups
		if err := rows.Scan(&m.Month, &m.Count); err != nil {
			return nil, fmt.Errorf("failed to scan signup bucket: %w", err)
		}
		result = append(result, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating signup buckets: %w", err)
	}

	return result, nil
}

// HoldingSymbolCounts returns how many open holdings exist per symbol,
// across all users.
func (r *Repository) HoldingSymbolCounts() (map[string]int, error) {
	rows, err := r.ledgerDB.Query("SELECT symbol, COUNT(*) FROM holdings GROUP BY symbol")
	if err != nil {
		return nil, fmt.Errorf("failed to query holding symbol counts: %w", err)
	}
	defer rows.Close()

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

// InvestedValueByUser sums each user's open holding cost over the whole
// ledger. Amounts are stored as decimal strings so the summing happens here
// rather than in SQL.
func (r *Repository) InvestedValueByUser() (map[string]decimal.Decimal, error) {
	rows, err := r.ledgerDB.Query("SELECT user_id, total_value FROM holdings")
	if err != nil {
		return nil, fmt.Errorf("failed to query invested values: %w", err)
	}
	defer rows.Close()

	totals := make(map[string]decimal.Decimal)
	for rows.Next() {
		var userID, value string
		if err := rows.Scan(&userID, &value); err != nil {
			return nil, fmt.Errorf("failed to scan invested value: %w", err)
		}

		d, err := decimal.NewFromString(value)
		if err != nil {
			return nil, fmt.Errorf("invalid total value %q: %w", value, err)
		}
		totals[userID] = totals[userID].Add(d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating invested values: %w", err)
	}

	return totals, nil
}

// RealizedGainByUser sums each user's realized gain/loss over the whole ledger.
func (r *Repository) RealizedGainByUser() (map[string]decimal.Decimal, error) {
	rows, err := r.ledgerDB.Query("SELECT user_id, gain_loss FROM realized_transactions")
	if err != nil {
		return nil, fmt.Errorf("failed to query realized gains: %w", err)
	}
	defer rows.Close()

	totals := make(map[string]decimal.Decimal)
	for rows.Next() {
		var userID, gain string
		if err := rows.Scan(&userID, &gain); err != nil {
			return nil, fmt.Errorf("failed to scan realized gain: %w", err)
		}

		d, err := decimal.NewFromString(gain)
		if err != nil {
			return nil, fmt.Errorf("invalid gain/loss %q: %w", gain, err)
		}
		totals[userID] = totals[userID].Add(d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating realized gains: %w", err)
	}

	return totals, nil
}

// RealizedReturnsBySymbol returns the percent return of every realized
// transaction, grouped by symbol. Transactions with a zero cost basis are
// skipped since a percent return is undefined for them.
func (r *Repository) RealizedReturnsBySymbol() (map[string][]float64, error) {
	rows, err := r.ledgerDB.Query("SELECT symbol, quantity, purchase_price, gain_loss FROM realized_transactions")
	if err != nil {
		return nil, fmt.Errorf("failed to query realized returns: %w", err)
	}
	defer rows.Close()

	returns := make(map[string][]float64)
	for rows.Next() {
		var symbol, quantityStr, priceStr, gainStr string
		if err := rows.Scan(&symbol, &quantityStr, &priceStr, &gainStr); err != nil {
			return nil, fmt.Errorf("failed to scan realized return: %w", err)
		}

		quantity, err := decimal.NewFromString(quantityStr)
		if err != nil {
			return nil, fmt.Errorf("invalid quantity %q: %w", quantityStr, err)
		}
		price, err := decimal.NewFromString(priceStr)
		if err != nil {
			return nil, fmt.Errorf("invalid purchase price %q: %w", priceStr, err)
		}
		gain, err := decimal.NewFromString(gainStr)
		if err != nil {
			return nil, fmt.Errorf("invalid gain/loss %q: %w", gainStr, err)
		}

		basis := price.Mul(quantity)
		if !basis.IsPositive() {
			continue
		}

		percent, _ := gain.Div(basis).Mul(decimal.NewFromInt(100)).Float64()
		returns[symbol] = append(returns[symbol], percent)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating realized returns: %w", err)
	}

	return returns, nil
}

// DeleteLedgerData removes all of a user's holdings, realized transactions
// and activity entries in one transaction.
func (r *Repository) DeleteLedgerData(userID string) error {
	tx, err := r.ledgerDB.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"holdings", "realized_transactions", "activity_log"} {
		if _, err := tx.Exec("DELETE FROM "+table+" WHERE user_id = ?", userID); err != nil {
			return fmt.Errorf("failed to delete %s rows: %w", table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	r.log.Info().Str("user_id", userID).Msg("Ledger data deleted")
	return nil
}
