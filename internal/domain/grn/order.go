package grn

import (
	"slices"
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Row is a projected record together with the keys it is ordered by.
type Row struct {
	Record   EnrichedRecord
	PostedAt time.Time
	Document string
	Year     string
	Item     string
}

// SortRecords orders rows newest posting date first, then document descending and
// item ascending (both numeric-aware), then year descending. Rows without a posting
// date go last. The order does not depend on the input order.
func SortRecords(rows []Row) {
	// a Collator keeps internal buffers and must not be shared between goroutines
	c := collate.New(language.Und, collate.Numeric)

	slices.SortStableFunc(rows, func(a, b Row) int {
		if r := comparePosted(a.PostedAt, b.PostedAt); r != 0 {
			return r
		}
		if r := compareNumeric(c, b.Document, a.Document); r != 0 {
			return r
		}
		if r := compareNumeric(c, a.Item, b.Item); r != 0 {
			return r
		}
		if r := compareNumeric(c, b.Year, a.Year); r != 0 {
			return r
		}
		return strings.Compare(fingerprint(a.Record), fingerprint(b.Record))
	})
}

// Records extracts the projected records in row order.
func Records(rows []Row) []EnrichedRecord {
	out := make([]EnrichedRecord, len(rows))
	for i, r := range rows {
		out[i] = r.Record
	}
	return out
}

// SortByDocumentDesc orders rows by the document key returns, descending and numeric-aware.
func SortByDocumentDesc[T any](rows []T, key func(T) string) {
	c := collate.New(language.Und, collate.Numeric)
	slices.SortStableFunc(rows, func(a, b T) int {
		return compareNumeric(c, key(b), key(a))
	})
}

func comparePosted(a, b time.Time) int {
	switch {
	case a.IsZero() && b.IsZero():
		return 0
	case a.IsZero():
		return 1
	case b.IsZero():
		return -1
	}
	// newest first
	return b.Compare(a)
}

// compareNumeric collates digit runs by value and breaks collation ties byte-wise,
// so that distinct strings never compare equal.
func compareNumeric(c *collate.Collator, a, b string) int {
	if a == b {
		return 0
	}
	if r := c.CompareString(a, b); r != 0 {
		return r
	}
	return strings.Compare(a, b)
}

// fingerprint is the last-resort tie-break between rows with identical keys.
func fingerprint(r EnrichedRecord) string {
	return strings.Join([]string{
		r.Container,
		r.BatchQty,
		r.RMCode,
		r.BatchNo,
		r.SupplierBatch,
		r.GRN.PurchaseOrder,
		r.GRN.PurchaseOrderItem,
	}, "\x00")
}
