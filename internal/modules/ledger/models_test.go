package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDisposal(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name          string
		quantity      string
		purchasePrice string
		sellPrice     string
		wantGainLoss  string
	}{
		{"gain", "10", "150", "180", "300"},
		{"loss", "10", "150", "120", "-300"},
		{"flat", "10", "150", "150", "0"},
		{"fractional quantity", "2.5", "100.40", "110.40", "25"},
		{"sub-cent prices", "3", "10.005", "10.015", "0.03"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			qty := decimal.RequireFromString(tt.quantity)
			buy := decimal.RequireFromString(tt.purchasePrice)
			sell := decimal.RequireFromString(tt.sellPrice)

			tx := BuildDisposal("user-1", "AAPL", qty, buy, sell, "Growth", now)

			assert.NotEmpty(t, tx.ID)
			assert.Equal(t, "user-1", tx.UserID)
			assert.Equal(t, "AAPL", tx.Symbol)
			assert.Equal(t, "Growth", tx.PortfolioName)
			assert.True(t, tx.DateSold.Equal(now))
			assert.True(t, tx.GainLoss.Equal(decimal.RequireFromString(tt.wantGainLoss)),
				"gainLoss = %s, want %s", tx.GainLoss, tt.wantGainLoss)
		})
	}
}

func TestBuildDisposal_GainEqualsProceedsMinusBasis(t *testing.T) {
	now := time.Now()

	// The identity (sell - buy) * qty == sell*qty - buy*qty must hold exactly
	// for decimal arithmetic, across a spread of magnitudes.
	quantities := []string{"1", "2.5", "100", "0.001", "99999"}
	prices := []string{"0.01", "1", "150.25", "10000.5"}

	for _, q := range quantities {
		for _, buy := range prices {
			for _, sell := range prices {
				qty := decimal.RequireFromString(q)
				b := decimal.RequireFromString(buy)
				s := decimal.RequireFromString(sell)

				tx := BuildDisposal("u", "SYM", qty, b, s, "P", now)

				proceeds := s.Mul(qty)
				require.True(t, tx.GainLoss.Equal(proceeds.Sub(tx.CostBasis())),
					"qty=%s buy=%s sell=%s: gainLoss %s != proceeds %s - basis %s",
					q, buy, sell, tx.GainLoss, proceeds, tx.CostBasis())
			}
		}
	}
}

func TestRealizedTransaction_CostBasis(t *testing.T) {
	tx := RealizedTransaction{
		Quantity:      decimal.RequireFromString("2.5"),
		PurchasePrice: decimal.RequireFromString("100.40"),
	}
	assert.True(t, tx.CostBasis().Equal(decimal.RequireFromString("251")))
}
