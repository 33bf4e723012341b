package grn

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestTotals(t *testing.T) {
	t.Run("counts rows and sums quantities", func(t *testing.T) {
		totals := Totals([]MovementItem{
			{Document: "D1", Year: "2025", Quantity: "10"},
			{Document: "D1", Year: "2025", Quantity: "5"},
			{Document: "D1", Year: "2025", Quantity: "7"},
		})
		assert.Equal(t, 3, totals.ItemCount)
		assert.True(t, totals.Quantity.Equal(decimal.NewFromInt(22)), totals.Quantity.String())
	})

	t.Run("decimal quantities do not drift", func(t *testing.T) {
		totals := Totals([]MovementItem{{Quantity: "0.1"}, {Quantity: "0.2"}})
		assert.Equal(t, "0.3", totals.Quantity.String())
	})

	t.Run("unparsable quantities count as zero", func(t *testing.T) {
		totals := Totals([]MovementItem{{Quantity: "abc"}, {Quantity: ""}, {Quantity: " 4.500 "}})
		assert.Equal(t, 3, totals.ItemCount)
		assert.Equal(t, "4.5", totals.Quantity.String())
	})

	t.Run("no rows", func(t *testing.T) {
		totals := Totals(nil)
		assert.Zero(t, totals.ItemCount)
		assert.True(t, totals.Quantity.IsZero())
	})
}

func TestTotalsByGroup(t *testing.T) {
	totals := TotalsByGroup([]MovementItem{
		{Document: "D1", Year: "2025", Quantity: "1"},
		{Document: "D2", Year: "2025", Quantity: "2"},
		{Document: "D1", Year: "2025", Quantity: "3"},
		{Document: "D1", Year: "2024", Quantity: "4"},
	})

	assert.Len(t, totals, 3)
	assert.Equal(t, 2, totals[GroupKey{"D1", "2025"}].ItemCount)
	assert.Equal(t, "4", totals[GroupKey{"D1", "2025"}].Quantity.String())
	assert.Equal(t, 1, totals[GroupKey{"D1", "2024"}].ItemCount)
}
