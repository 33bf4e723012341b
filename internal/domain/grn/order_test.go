package grn

import (
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func row(doc, year, item string, posted time.Time) Row {
	return Row{
		Record:   EnrichedRecord{MaterialDocument: doc, MaterialDocumentItem: item},
		PostedAt: posted,
		Document: doc,
		Year:     year,
		Item:     item,
	}
}

func order(rows []Row) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Document + "/" + r.Year + "/" + r.Item
	}
	return out
}

func TestSortRecords(t *testing.T) {
	jan := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

	t.Run("newest posting date first, undated last", func(t *testing.T) {
		rows := []Row{
			row("1", "2025", "1", time.Time{}),
			row("2", "2025", "1", jan),
			row("3", "2025", "1", feb),
		}
		SortRecords(rows)
		assert.Equal(t, []string{"3/2025/1", "2/2025/1", "1/2025/1"}, order(rows))
	})

	t.Run("document descending numeric-aware", func(t *testing.T) {
		rows := []Row{
			row("9", "2025", "1", jan),
			row("10", "2025", "1", jan),
			row("100", "2025", "1", jan),
		}
		SortRecords(rows)
		assert.Equal(t, []string{"100/2025/1", "10/2025/1", "9/2025/1"}, order(rows))
	})

	t.Run("item ascending numeric-aware", func(t *testing.T) {
		rows := []Row{
			row("5", "2025", "10", jan),
			row("5", "2025", "2", jan),
			row("5", "2025", "1", jan),
		}
		SortRecords(rows)
		assert.Equal(t, []string{"5/2025/1", "5/2025/2", "5/2025/10"}, order(rows))
	})

	t.Run("year descending breaks ties", func(t *testing.T) {
		rows := []Row{
			row("5", "2024", "1", time.Time{}),
			row("5", "2025", "1", time.Time{}),
		}
		SortRecords(rows)
		assert.Equal(t, []string{"5/2025/1", "5/2024/1"}, order(rows))
	})

	t.Run("independent of input order", func(t *testing.T) {
		base := []Row{
			row("7", "2025", "2", jan),
			row("7", "2025", "1", jan),
			row("8", "2024", "1", time.Time{}),
			row("6", "2025", "3", feb),
			row("12", "2025", "1", jan),
		}
		want := slices.Clone(base)
		SortRecords(want)

		reversed := slices.Clone(base)
		slices.Reverse(reversed)
		SortRecords(reversed)

		assert.Equal(t, order(want), order(reversed))
		assert.Equal(t, []string{"6/2025/3", "12/2025/1", "7/2025/1", "7/2025/2", "8/2024/1"}, order(want))
	})
}

func TestSortByDocumentDesc(t *testing.T) {
	docs := []string{"5000000009", "5000000010", "4900000001"}
	SortByDocumentDesc(docs, func(s string) string { return s })
	assert.Equal(t, []string{"5000000010", "5000000009", "4900000001"}, docs)
}
