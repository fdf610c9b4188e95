// Package ledger provides the realized-transaction log: immutable records of
// closed holdings and their resulting gain or loss.
package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RealizedTransaction is the record of a closed (sold/removed) holding.
// Immutable once created; append-only; never deleted in normal operation.
type RealizedTransaction struct {
	ID            string          `json:"id"`
	UserID        string          `json:"-"`
	Symbol        string          `json:"symbol"`
	Quantity      decimal.Decimal `json:"quantity"`
	PurchasePrice decimal.Decimal `json:"purchasePrice"`
	SellPrice     decimal.Decimal `json:"sellPrice"`
	GainLoss      decimal.Decimal `json:"gainLoss"`
	PortfolioName string          `json:"portfolioName"`
	DateSold      time.Time       `json:"dateSold"`
}

// CostBasis returns purchasePrice * quantity for this lot.
func (t RealizedTransaction) CostBasis() decimal.Decimal {
	return t.PurchasePrice.Mul(t.Quantity)
}

// BuildDisposal converts a closed lot into a realized transaction.
// Pure function of its inputs: gainLoss = (sellPrice - purchasePrice) * quantity.
func BuildDisposal(userID, symbol string, quantity, purchasePrice, sellPrice decimal.Decimal, portfolioName string, now time.Time) RealizedTransaction {
	return RealizedTransaction{
		ID:            uuid.NewString(),
		UserID:        userID,
		Symbol:        symbol,
		Quantity:      quantity,
		PurchasePrice: purchasePrice,
		SellPrice:     sellPrice,
		GainLoss:      sellPrice.Sub(purchasePrice).Mul(quantity),
		PortfolioName: portfolioName,
		DateSold:      now,
	}
}
