package grn

// GroupKey identifies one GRN: a (document, year) pair.
type GroupKey struct {
	Document string
	Year     string
}

func (g GroupKey) String() string {
	return g.Document + "-" + g.Year
}

// Key is one lookup key. ID is the cache key; Parts are the identifiers the
// upstream path is built from.
type Key struct {
	ID    string
	Parts []string
}

// KeyPlan holds the duplicate-free lookup keys derived from a set of movement lines.
type KeyPlan struct {
	MaterialPlants     []Key
	Materials          []Key
	Suppliers          []Key
	DocumentYears      []Key
	PurchaseOrderItems []Key
	Documents          []Key
	Groups             []GroupKey
}

// MaterialPlantKey is the product cache key for a plant-qualified description.
func MaterialPlantKey(material, plant string) string {
	return "mp:" + material + "-" + plant
}

// MaterialKey is the product cache key for a material-only description.
func MaterialKey(material string) string {
	return "m:" + material
}

// DocumentYearKey is the header cache key.
func DocumentYearKey(document, year string) string {
	return document + "-" + year
}

// PurchaseOrderItemKey is the purchase-order line cache key.
func PurchaseOrderItemKey(po, item string) string {
	return po + "-" + item
}

type keySet struct {
	seen map[string]struct{}
	keys []Key
}

func (s *keySet) add(id string, parts ...string) {
	if s.seen == nil {
		s.seen = make(map[string]struct{})
	}
	if _, ok := s.seen[id]; ok {
		return
	}
	s.seen[id] = struct{}{}
	s.keys = append(s.keys, Key{ID: id, Parts: parts})
}

// PlanKeys walks items once and collects every key the join needs.
// Lists keep first-seen order. Lines missing part of a composite key contribute nothing to it.
func PlanKeys(items []MovementItem) KeyPlan {
	var mp, m, sup, dy, po, docs keySet
	groups := make([]GroupKey, 0)
	seenGroups := make(map[GroupKey]struct{})

	for _, it := range items {
		if it.Material != "" {
			if it.HasPlant() {
				mp.add(MaterialPlantKey(it.Material, it.Plant), it.Material, it.Plant)
			} else {
				m.add(MaterialKey(it.Material), it.Material)
			}
		}
		if it.Supplier != "" {
			sup.add(it.Supplier, it.Supplier)
		}
		if it.Document != "" && it.Year != "" {
			dy.add(DocumentYearKey(it.Document, it.Year), it.Document, it.Year)
		}
		if it.PurchaseOrder != "" && it.PurchaseOrderItem != "" {
			po.add(PurchaseOrderItemKey(it.PurchaseOrder, it.PurchaseOrderItem), it.PurchaseOrder, it.PurchaseOrderItem)
		}
		if it.Document != "" {
			docs.add(it.Document, it.Document)
			g := it.Group()
			if _, ok := seenGroups[g]; !ok {
				seenGroups[g] = struct{}{}
				groups = append(groups, g)
			}
		}
	}

	return KeyPlan{
		MaterialPlants:     mp.keys,
		Materials:          m.keys,
		Suppliers:          sup.keys,
		DocumentYears:      dy.keys,
		PurchaseOrderItems: po.keys,
		Documents:          docs.keys,
		Groups:             groups,
	}
}

// IDs returns the cache keys of ks.
func IDs(ks []Key) []string {
	ids := make([]string, len(ks))
	for i, k := range ks {
		ids[i] = k.ID
	}
	return ids
}
