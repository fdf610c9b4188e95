package ledger

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// realizedColumns is the list of columns for the realized_transactions table.
// Column order must match scanRealized().
const realizedColumns = `id, user_id, symbol, quantity, purchase_price, sell_price, gain_loss, portfolio_name, date_sold`

// RealizedRepository handles realized-transaction database operations.
// The table is append-only: there are deliberately no update or delete methods.
type RealizedRepository struct {
	ledgerDB *sql.DB // ledger.db - realized_transactions table
	log      zerolog.Logger
}

// NewRealizedRepository creates a new realized-transaction repository
func NewRealizedRepository(ledgerDB *sql.DB, log zerolog.Logger) *RealizedRepository {
	return &RealizedRepository{
		ledgerDB: ledgerDB,
		log:      log.With().Str("repo", "realized").Logger(),
	}
}

// AppendTx inserts a realized transaction inside the caller's transaction.
// Disposal and holding removal must commit together, so the ledger service
// owns the transaction and passes it down here.
func (r *RealizedRepository) AppendTx(tx *sql.Tx, rt RealizedTransaction) error {
	query := `
		INSERT INTO realized_transactions
		(id, user_id, symbol, quantity, purchase_price, sell_price, gain_loss,
		 portfolio_name, date_sold, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := tx.Exec(query,
		rt.ID,
		rt.UserID,
		rt.Symbol,
		rt.Quantity.String(),
		rt.PurchasePrice.String(),
		rt.SellPrice.String(),
		rt.GainLoss.String(),
		rt.PortfolioName,
		rt.DateSold.Unix(),
		time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to append realized transaction: %w", err)
	}

	r.log.Info().
		Str("symbol", rt.Symbol).
		Str("gain_loss", rt.GainLoss.String()).
		Msg("Realized transaction recorded")

	return nil
}

// ListByUser returns all realized transactions for a user, newest first.
func (r *RealizedRepository) ListByUser(userID string) ([]RealizedTransaction, error) {
	query := "SELECT " + realizedColumns + " FROM realized_transactions WHERE user_id = ? ORDER BY date_sold DESC, id"

	rows, err := r.ledgerDB.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query realized transactions: %w", err)
	}
	defer rows.Close()

	return collectRealized(rows)
}

// ListByUserAndPortfolio returns the user's realized transactions scoped to one
// portfolio name.
func (r *RealizedRepository) ListByUserAndPortfolio(userID, portfolioName string) ([]RealizedTransaction, error) {
	query := "SELECT " + realizedColumns + " FROM realized_transactions WHERE user_id = ? AND portfolio_name = ? ORDER BY date_sold DESC, id"

	rows, err := r.ledgerDB.Query(query, userID, portfolioName)
	if err != nil {
		return nil, fmt.Errorf("failed to query realized transactions by portfolio: %w", err)
	}
	defer rows.Close()

	return collectRealized(rows)
}

func collectRealized(rows *sql.Rows) ([]RealizedTransaction, error) {
	var result []RealizedTransaction
	for rows.Next() {
		rt, err := scanRealized(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan realized transaction: %w", err)
		}
		result = append(result, rt)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating realized transactions: %w", err)
	}

	return result, nil
}

func scanRealized(rows *sql.Rows) (RealizedTransaction, error) {
	var rt RealizedTransaction
	var quantity, purchasePrice, sellPrice, gainLoss string
	var dateSoldUnix int64

	err := rows.Scan(
		&rt.ID,
		&rt.UserID,
		&rt.Symbol,
		&quantity,
		&purchasePrice,
		&sellPrice,
		&gainLoss,
		&rt.PortfolioName,
		&dateSoldUnix,
	)
	if err != nil {
		return rt, err
	}

	if rt.Quantity, err = decimal.NewFromString(quantity); err != nil {
		return rt, fmt.Errorf("invalid quantity %q: %w", quantity, err)
	}
	if rt.PurchasePrice, err = decimal.NewFromString(purchasePrice); err != nil {
		return rt, fmt.Errorf("invalid purchase price %q: %w", purchasePrice, err)
	}
	if rt.SellPrice, err = decimal.NewFromString(sellPrice); err != nil {
		return rt, fmt.Errorf("invalid sell price %q: %w", sellPrice, err)
	}
	if rt.GainLoss, err = decimal.NewFromString(gainLoss); err != nil {
		return rt, fmt.Errorf("invalid gain/loss %q: %w", gainLoss, err)
	}
	rt.DateSold = time.Unix(dateSoldUnix, 0).UTC()

	return rt, nil
}
