package portfolio

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// holdingsColumns is the list of columns for the holdings table.
// Column order must match scanHolding().
const holdingsColumns = `id, user_id, symbol, quantity, purchase_price, total_value, portfolio_name, purchase_date`

// HoldingRepository handles holding database operations.
// Every query is scoped by user id; there is no cross-user read or write path.
type HoldingRepository struct {
	ledgerDB *sql.DB // ledger.db - holdings table
	log      zerolog.Logger
}

// NewHoldingRepository creates a new holding repository
func NewHoldingRepository(ledgerDB *sql.DB, log zerolog.Logger) *HoldingRepository {
	return &HoldingRepository{
		ledgerDB: ledgerDB,
		log:      log.With().Str("repo", "holding").Logger(),
	}
}

// Create inserts a new holding
func (r *HoldingRepository) Create(h Holding) error {
	query := `
		INSERT INTO holdings
		(id, user_id, symbol, quantity, purchase_price, total_value,
		 portfolio_name, purchase_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	tx, err := r.ledgerDB.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.Exec(query,
		h.ID,
		h.UserID,
		h.Symbol,
		h.Quantity.String(),
		h.PurchasePrice.String(),
		h.TotalValue.String(),
		h.PortfolioName,
		h.PurchaseDate.Unix(),
		time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to create holding: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	r.log.Info().
		Str("symbol", h.Symbol).
		Str("portfolio", h.PortfolioName).
		Msg("Holding created")

	return nil
}

// ListByUser returns all holdings for a user, oldest purchase first.
func (r *HoldingRepository) ListByUser(userID string) ([]Holding, error) {
	query := "SELECT " + holdingsColumns + " FROM holdings WHERE user_id = ? ORDER BY purchase_date, id"

	rows, err := r.ledgerDB.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query holdings: %w", err)
	}
	defer rows.Close()

	return collectHoldings(rows)
}

// ListByPortfolio returns the user's holdings sharing one portfolio name.
func (r *HoldingRepository) ListByPortfolio(userID, portfolioName string) ([]Holding, error) {
	query := "SELECT " + holdingsColumns + " FROM holdings WHERE user_id = ? AND portfolio_name = ? ORDER BY purchase_date, id"

	rows, err := r.ledgerDB.Query(query, userID, portfolioName)
	if err != nil {
		return nil, fmt.Errorf("failed to query holdings by portfolio: %w", err)
	}
	defer rows.Close()

	return collectHoldings(rows)
}

// GetByID returns one of the user's holdings by id, or nil if absent.
func (r *HoldingRepository) GetByID(userID, holdingID string) (*Holding, error) {
	query := "SELECT " + holdingsColumns + " FROM holdings WHERE user_id = ? AND id = ?"

	row := r.ledgerDB.QueryRow(query, userID, holdingID)
	h, err := scanHolding(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get holding: %w", err)
	}

	return &h, nil
}

// DeleteByIDTx removes a holding inside the caller's transaction and reports
// whether a row was removed. The ledger service owns the transaction so the
// removal commits together with the realized-transaction append.
func (r *HoldingRepository) DeleteByIDTx(tx *sql.Tx, userID, holdingID string) (bool, error) {
	result, err := tx.Exec("DELETE FROM holdings WHERE user_id = ? AND id = ?", userID, holdingID)
	if err != nil {
		return false, fmt.Errorf("failed to delete holding: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}

	return affected > 0, nil
}

// scanner abstracts *sql.Row and *sql.Rows for scanHolding.
type scanner interface {
	Scan(dest ...interface{}) error
}

func collectHoldings(rows *sql.Rows) ([]Holding, error) {
	var result []Holding
	for rows.Next() {
		h, err := scanHolding(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan holding: %w", err)
		}
		result = append(result, h)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating holdings: %w", err)
	}

	return result, nil
}

func scanHolding(row scanner) (Holding, error) {
	var h Holding
	var quantity, purchasePrice, totalValue string
	var purchaseDateUnix int64

	err := row.Scan(
		&h.ID,
		&h.UserID,
		&h.Symbol,
		&quantity,
		&purchasePrice,
		&totalValue,
		&h.PortfolioName,
		&purchaseDateUnix,
	)
	if err != nil {
		return h, err
	}

	if h.Quantity, err = decimal.NewFromString(quantity); err != nil {
		return h, fmt.Errorf("invalid quantity %q: %w", quantity, err)
	}
	if h.PurchasePrice, err = decimal.NewFromString(purchasePrice); err != nil {
		return h, fmt.Errorf("invalid purchase price %q: %w", purchasePrice, err)
	}
	if h.TotalValue, err = decimal.NewFromString(totalValue); err != nil {
		return h, fmt.Errorf("invalid total value %q: %w", totalValue, err)
	}
	h.PurchaseDate = time.Unix(purchaseDateUnix, 0).UTC()

	return h, nil
}
