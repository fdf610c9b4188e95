// Package portfolio provides the holding store and the ledger service that
// orchestrates buys, disposals and portfolio deletion.
package portfolio

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"stockfolio/internal/domain"
)

// Holding is one open lot of a stock position belonging to a user.
// Created by "add stock", never mutated in place, destroyed only by the
// delete operations (which convert it into a realized transaction first).
type Holding struct {
	ID            string          `json:"id"`
	UserID        string          `json:"-"`
	Symbol        string          `json:"symbol"`
	Quantity      decimal.Decimal `json:"quantity"`
	PurchasePrice decimal.Decimal `json:"purchasePrice"`
	TotalValue    decimal.Decimal `json:"totalValue"`
	PortfolioName string          `json:"portfolioName"`
	PurchaseDate  time.Time       `json:"purchaseDate"`
}

// CostBasis returns purchasePrice * quantity for this lot.
// Note this is computed, not the stored TotalValue, which is kept as given.
func (h Holding) CostBasis() decimal.Decimal {
	return h.PurchasePrice.Mul(h.Quantity)
}

// AddStockInput is the payload for adding a holding.
type AddStockInput struct {
	Symbol        string          `json:"symbol"`
	Quantity      decimal.Decimal `json:"quantity"`
	PurchasePrice decimal.Decimal `json:"purchasePrice"`
	TotalValue    decimal.Decimal `json:"totalValue"`
	PortfolioName string          `json:"portfolioName"`
	PurchaseDate  *time.Time      `json:"purchaseDate,omitempty"`
}

// Validate checks the input against the ledger rules.
func (in AddStockInput) Validate() error {
	if strings.TrimSpace(in.Symbol) == "" {
		return domain.Validationf("symbol must not be empty")
	}
	if !in.Quantity.IsPositive() {
		return domain.Validationf("quantity must be positive, got %s", in.Quantity)
	}
	if !in.PurchasePrice.IsPositive() {
		return domain.Validationf("purchasePrice must be positive, got %s", in.PurchasePrice)
	}
	if !in.TotalValue.IsPositive() {
		return domain.Validationf("totalValue must be positive, got %s", in.TotalValue)
	}
	if strings.TrimSpace(in.PortfolioName) == "" {
		return domain.Validationf("portfolioName must not be empty")
	}
	return nil
}

// toHolding builds a Holding from validated input. The symbol is normalized
// to uppercase; the purchase date defaults to now. TotalValue is stored as
// given, not recomputed.
func (in AddStockInput) toHolding(userID string, now time.Time) Holding {
	purchaseDate := now
	if in.PurchaseDate != nil {
		purchaseDate = *in.PurchaseDate
	}

	return Holding{
		ID:            uuid.NewString(),
		UserID:        userID,
		Symbol:        strings.ToUpper(strings.TrimSpace(in.Symbol)),
		Quantity:      in.Quantity,
		PurchasePrice: in.PurchasePrice,
		TotalValue:    in.TotalValue,
		PortfolioName: strings.TrimSpace(in.PortfolioName),
		PurchaseDate:  purchaseDate,
	}
}
