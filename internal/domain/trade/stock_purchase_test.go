package trade

import (
	"testing"

	"github.com/partshop/backend/internal/domain/partner"
	"github.com/partshop/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotOf(t *testing.T) {
	s := partner.NewSupplier("Bosch")
	s.Phone = "9876543210"
	s.TaxID = "27AAAAA0000A1Z5"

	snap := SnapshotOf(s)
	assert.Equal(t, "Bosch", snap.Name)
	assert.Equal(t, "27AAAAA0000A1Z5", snap.TaxID)
	assert.False(t, snap.IsEmpty())

	s.Name = "Renamed"
	assert.Equal(t, "Bosch", snap.Name)

	assert.True(t, SnapshotOf(nil).IsEmpty())
}

func TestStockPurchase(t *testing.T) {
	t.Run("recalculate totals keeps document discount", func(t *testing.T) {
		p := NewStockPurchase("sup-1")
		p.DiscountAmount = dec("10")
		p.RecalculateTotals([]*StockPurchaseItem{
			{Quantity: 10, UnitCost: dec("60"), TaxPercent: dec("18")},
			{Quantity: 2, UnitCost: dec("25")},
		})
		assert.Equal(t, "650", p.Subtotal.String())
		assert.Equal(t, "108", p.TaxAmount.String())
		assert.Equal(t, "748", p.Total.String())
	})

	t.Run("line total", func(t *testing.T) {
		item := &StockPurchaseItem{Quantity: 10, UnitCost: dec("60"), TaxPercent: dec("18")}
		assert.Equal(t, "708", item.ComputeLineTotal().String())
	})

	t.Run("validate", func(t *testing.T) {
		p := NewStockPurchase("")
		assert.Nil(t, p.SupplierID)
		require.NoError(t, p.Validate())

		p.Status = "lost"
		assert.True(t, shared.IsValidation(p.Validate()))
	})
}
