package grn

import "time"

// Join step names.
const (
	StepProductPlant      = "product_plant"
	StepProductMaterial   = "product_material"
	StepHeader            = "header"
	StepPurchaseOrderItem = "purchase_order_item"
	StepManufacturer      = "manufacturer"
	StepSupplier          = "supplier"
	StepBusinessUser      = "business_user"
)

// Lookup resolves a master record by namespace and key.
type Lookup interface {
	Record(ns Namespace, key string) (Record, bool)
}

// Snapshot is an in-memory Lookup holding the records fetched for one request.
// The joiner reads from it so that cache eviction during the request cannot drop a hop.
type Snapshot map[Namespace]map[string]Record

// NewSnapshot returns an empty snapshot.
func NewSnapshot() Snapshot {
	return make(Snapshot)
}

// Put stores rec under ns/key.
func (s Snapshot) Put(ns Namespace, key string, rec Record) {
	m, ok := s[ns]
	if !ok {
		m = make(map[string]Record)
		s[ns] = m
	}
	m[key] = rec
}

// Merge stores every record of recs under ns.
func (s Snapshot) Merge(ns Namespace, recs map[string]Record) {
	for k, r := range recs {
		s.Put(ns, k, r)
	}
}

func (s Snapshot) Record(ns Namespace, key string) (Record, bool) {
	r, ok := s[ns][key]
	return r, ok
}

// Resolved holds the records found for one line, by step name.
type Resolved map[string]Record

// Get returns the record of a step, or an empty record when the hop missed.
func (r Resolved) Get(step string) Record {
	if rec, ok := r[step]; ok && rec != nil {
		return rec
	}
	return EmptyRecord()
}

// JoinStep is one hop of the join. Key derives the lookup key from the line and
// the records resolved by earlier steps; ok=false skips the lookup.
type JoinStep struct {
	Name      string
	Namespace Namespace
	Key       func(item MovementItem, resolved Resolved) (key string, ok bool)
	Fallback  Record
}

// JoinPlan is the ordered list of hops. Steps may depend on earlier steps only.
type JoinPlan []JoinStep

// DefaultJoinPlan joins products, header, purchase-order line, manufacturer
// (through the purchase-order line), supplier and business user.
func DefaultJoinPlan() JoinPlan {
	return JoinPlan{
		{
			Name:      StepProductPlant,
			Namespace: NamespaceProduct,
			Key: func(it MovementItem, _ Resolved) (string, bool) {
				return MaterialPlantKey(it.Material, it.Plant), it.Material != "" && it.HasPlant()
			},
		},
		{
			Name:      StepProductMaterial,
			Namespace: NamespaceProduct,
			Key: func(it MovementItem, _ Resolved) (string, bool) {
				return MaterialKey(it.Material), it.Material != ""
			},
		},
		{
			Name:      StepHeader,
			Namespace: NamespaceHeader,
			Key: func(it MovementItem, _ Resolved) (string, bool) {
				return DocumentYearKey(it.Document, it.Year), it.Document != "" && it.Year != ""
			},
		},
		{
			Name:      StepPurchaseOrderItem,
			Namespace: NamespacePurchaseOrderItem,
			Key: func(it MovementItem, _ Resolved) (string, bool) {
				return PurchaseOrderItemKey(it.PurchaseOrder, it.PurchaseOrderItem),
					it.PurchaseOrder != "" && it.PurchaseOrderItem != ""
			},
		},
		{
			Name:      StepManufacturer,
			Namespace: NamespaceManufacturer,
			Key: func(_ MovementItem, r Resolved) (string, bool) {
				no := ManufacturerNumber(r.Get(StepPurchaseOrderItem))
				return no, no != ""
			},
		},
		{
			Name:      StepSupplier,
			Namespace: NamespaceSupplier,
			Key: func(it MovementItem, _ Resolved) (string, bool) {
				return it.Supplier, it.Supplier != ""
			},
		},
		{
			Name:      StepBusinessUser,
			Namespace: NamespaceBusinessUser,
			Key: func(it MovementItem, _ Resolved) (string, bool) {
				return it.Document, it.Document != ""
			},
		},
	}
}

// Joiner runs a JoinPlan against a Lookup. It performs no I/O.
type Joiner struct {
	plan   JoinPlan
	lookup Lookup
	totals map[GroupKey]GroupTotals
}

// NewJoiner creates a joiner over lookup with the per-GRN totals.
func NewJoiner(plan JoinPlan, lookup Lookup, totals map[GroupKey]GroupTotals) *Joiner {
	return &Joiner{plan: plan, lookup: lookup, totals: totals}
}

// Resolve runs every step for one line.
func (j *Joiner) Resolve(item MovementItem) Resolved {
	resolved := make(Resolved, len(j.plan))
	for _, step := range j.plan {
		rec := step.Fallback
		if key, ok := step.Key(item, resolved); ok {
			if found, hit := j.lookup.Record(step.Namespace, key); hit && found != nil {
				rec = found
			}
		}
		if rec == nil {
			rec = EmptyRecord()
		}
		resolved[step.Name] = rec
	}
	return resolved
}

// Join resolves and projects one line.
func (j *Joiner) Join(item MovementItem) Row {
	resolved := j.Resolve(item)
	return Row{
		Record:   Project(item, resolved, j.totals[item.Group()]),
		PostedAt: postingTime(resolved.Get(StepHeader)),
		Document: item.Document,
		Year:     item.Year,
		Item:     item.Item,
	}
}

// JoinAll joins every line in input order.
func (j *Joiner) JoinAll(items []MovementItem) []Row {
	rows := make([]Row, 0, len(items))
	for _, it := range items {
		rows = append(rows, j.Join(it))
	}
	return rows
}

// postingTime returns the zero time when the header has no usable PostingDate.
func postingTime(header Record) time.Time {
	t, _ := ParseDate(header.String("PostingDate"))
	return t
}
