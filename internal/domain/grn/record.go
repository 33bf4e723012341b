// Package grn holds the goods-receipt enrichment model: reference normalization,
// lookup key planning, the join plan that flattens master data onto movement
// lines, per-GRN totals and the final ordering of printable records.
package grn

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Record is one upstream master-data record as decoded from an OData payload.
// A non-nil empty Record marks a key whose fetch was attempted and produced nothing.
type Record map[string]any

// EmptyRecord returns the placeholder cached for keys that could not be resolved.
func EmptyRecord() Record {
	return Record{}
}

// IsEmpty reports whether the record carries no fields.
func (r Record) IsEmpty() bool {
	return len(r) == 0
}

// String returns a field rendered as text. Missing and null fields give "".
func (r Record) String(field string) string {
	if r == nil {
		return ""
	}
	v, ok := r[field]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		return fmt.Sprint(t)
	}
}

// FirstString returns the first field whose value is non-blank.
func (r Record) FirstString(fields ...string) string {
	for _, f := range fields {
		if s := r.String(f); strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

// Namespace identifies one master-data cache.
type Namespace string

// Master-data namespaces.
const (
	NamespaceProduct           Namespace = "product"
	NamespaceSupplier          Namespace = "supplier"
	NamespaceHeader            Namespace = "header"
	NamespacePurchaseOrderItem Namespace = "purchase_order_item"
	NamespaceBusinessUser      Namespace = "business_user"
	NamespaceManufacturer      Namespace = "manufacturer"
)
