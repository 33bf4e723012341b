package grn

import (
	"strings"

	"github.com/shopspring/decimal"
)

// GroupTotals are the per-GRN aggregates printed on every label of the GRN.
type GroupTotals struct {
	ItemCount int
	Quantity  decimal.Decimal
}

// Totals counts rows and sums QuantityInBaseUnit. Unparsable quantities count as zero.
func Totals(rows []MovementItem) GroupTotals {
	sum := decimal.Zero
	for _, r := range rows {
		q, err := decimal.NewFromString(strings.TrimSpace(r.Quantity))
		if err != nil {
			continue
		}
		sum = sum.Add(q)
	}
	return GroupTotals{ItemCount: len(rows), Quantity: sum}
}

// TotalsByGroup computes Totals for each GRN present in rows.
func TotalsByGroup(rows []MovementItem) map[GroupKey]GroupTotals {
	byGroup := make(map[GroupKey][]MovementItem)
	for _, r := range rows {
		byGroup[r.Group()] = append(byGroup[r.Group()], r)
	}
	out := make(map[GroupKey]GroupTotals, len(byGroup))
	for g, rs := range byGroup {
		out[g] = Totals(rs)
	}
	return out
}
