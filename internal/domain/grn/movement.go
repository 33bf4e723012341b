package grn

import "strings"

// MovementItem is one goods-movement line (A_MaterialDocumentItem).
type MovementItem struct {
	Document string
	Year     string
	Item     string

	Material string
	Plant    string
	Supplier string

	PurchaseOrder     string
	PurchaseOrderItem string

	Quantity string
	BaseUnit string

	Batch           string
	BatchBySupplier string
	SupplierBatch   string
	ItemText        string

	ManufactureDate string
	ExpiryDate      string
	EntryDate       string

	Operator    string
	NetWeight   string
	GrossWeight string
	TareWeight  string

	CustomAA16     string
	CustomAA1      string
	CustomAA2      string
	CustomAA16Text string
}

// NewMovementItem reads a decoded item row.
func NewMovementItem(r Record) MovementItem {
	return MovementItem{
		Document:          r.String("MaterialDocument"),
		Year:              r.String("MaterialDocumentYear"),
		Item:              r.String("MaterialDocumentItem"),
		Material:          r.String("Material"),
		Plant:             r.String("Plant"),
		Supplier:          r.String("Supplier"),
		PurchaseOrder:     r.String("PurchaseOrder"),
		PurchaseOrderItem: r.String("PurchaseOrderItem"),
		Quantity:          r.String("QuantityInBaseUnit"),
		BaseUnit:          r.String("MaterialBaseUnit"),
		Batch:             r.FirstString("Batch", "icplBatch", "supplierBatch"),
		BatchBySupplier:   r.String("BatchBySupplier"),
		SupplierBatch:     r.String("YY1_supplier_batch1_MMI"),
		ItemText:          r.String("MaterialDocumentItemText"),
		ManufactureDate:   r.String("ManufactureDate"),
		ExpiryDate:        r.String("ShelfLifeExpirationDate"),
		EntryDate:         r.String("EntryDate"),
		Operator:          r.FirstString("Operator", "OperatorName", "operator"),
		NetWeight:         r.FirstString("QuantityInBaseUnit", "netWeightKgs", "nwt", "NW", "netWeight"),
		GrossWeight:       r.FirstString("gwt", "grossWeight", "GW"),
		TareWeight:        r.FirstString("twt", "tareWeight", "TW"),
		CustomAA16:        r.String("YY1_AA16_MMI"),
		CustomAA1:         r.String("YY1_AA1_MMI"),
		CustomAA2:         r.String("YY1_AA2_MMI"),
		CustomAA16Text:    r.String("YY1_AA16_MMIT"),
	}
}

// NewMovementItems reads every row.
func NewMovementItems(rows []Record) []MovementItem {
	items := make([]MovementItem, 0, len(rows))
	for _, r := range rows {
		items = append(items, NewMovementItem(r))
	}
	return items
}

// Group returns the GRN the line belongs to.
func (m MovementItem) Group() GroupKey {
	return GroupKey{Document: m.Document, Year: m.Year}
}

// HasPlant reports whether the line carries a non-blank plant.
func (m MovementItem) HasPlant() bool {
	return strings.TrimSpace(m.Plant) != ""
}

// ManufacturerNumber extracts the trimmed manufacturer number from a purchase-order line.
func ManufacturerNumber(poItem Record) string {
	return strings.TrimSpace(poItem.String("YY1_ManufacturerNO1_PDI"))
}
