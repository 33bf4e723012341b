package grn

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Quantity is a decimal that marshals as a bare JSON number.
type Quantity struct {
	decimal.Decimal
}

// NewQuantity wraps d.
func NewQuantity(d decimal.Decimal) Quantity {
	return Quantity{Decimal: d}
}

func (q Quantity) MarshalJSON() ([]byte, error) {
	return []byte(q.Decimal.String()), nil
}

func (q *Quantity) UnmarshalJSON(b []byte) error {
	return q.Decimal.UnmarshalJSON(b)
}

// PurchaseOrderRef is the purchase-order reference printed on a label.
type PurchaseOrderRef struct {
	PurchaseOrder     string `json:"purchaseOrder"`
	PurchaseOrderItem string `json:"purchaseOrderItem"`
}

// IssueInfo holds the issued-by dates.
type IssueInfo struct {
	PostingDate string `json:"postingDate"`
	EntryDate   string `json:"entryDate"`
}

// EnrichedRecord is one print-ready movement line. Its JSON shape is consumed
// verbatim by the label and invoice renderers.
type EnrichedRecord struct {
	MaterialDocument     string           `json:"materialDocument"`
	MaterialDocumentItem string           `json:"materialDocumentItem"`
	RMCode               string           `json:"RM_Code"`
	MaterialCode         string           `json:"materialCode"`
	RawMaterial          string           `json:"rawMaterial"`
	RawMaterialDesc      string           `json:"rawMaterialDesc"`
	MaterialName         string           `json:"materialName"`
	SupplierName         string           `json:"supplierName"`
	SupplierBatch        string           `json:"supplierBatch"`
	ICPLBatch            string           `json:"icplBatch"`
	ReceivedDate         string           `json:"receivedDate"`
	MfgDate              string           `json:"mfgDate"`
	ExpiryDate           string           `json:"expiryDate"`
	NetWeightKgs         string           `json:"netWeightKgs"`
	NWT                  string           `json:"nwt"`
	ProcurementType      string           `json:"procurementType"`
	GRNNo                string           `json:"grn_no"`
	GRNDate              string           `json:"grn_date"`
	GRNYear              string           `json:"grn_year"`
	BatchQty             string           `json:"Batch_QTY"`
	GRNQty               Quantity         `json:"grn_Qty"`
	GRN                  PurchaseOrderRef `json:"grn"`
	ARNo                 string           `json:"arNo"`
	IssueDate            string           `json:"issue_dt"`
	GWT                  string           `json:"gwt"`
	TWT                  string           `json:"twt"`
	ForProduct           string           `json:"forProduct"`
	ForBatchNo           string           `json:"forBatchNo"`
	BatchNo              string           `json:"batchNo"`
	OperatorName         string           `json:"operatorName"`
	Issued               IssueInfo        `json:"issued"`
	PersonFullName       string           `json:"PersonFullName"`
	MaterialBaseUnit     string           `json:"MaterialBaseUnit"`
	ManufacturerNo       string           `json:"manufaturer_no"`
	CustomAA16           string           `json:"YY1_AA16_MMI"`
	CustomAA1            string           `json:"YY1_AA1_MMI"`
	CustomAA2            string           `json:"YY1_AA2_MMI"`
	CustomAA16Text       string           `json:"YY1_AA16_MMIT"`
	LineItem             string           `json:"MaterialDocumentItem"`
	ManufacturerName     string           `json:"ManfNm"`
	ManufacturerAddress  string           `json:"ManfAddr"`
	ManufacturerState    string           `json:"ManfStat"`
	GRNItemCount         int              `json:"grn_item_count"`
	Container            string           `json:"container"`
	Dec                  string           `json:"dec"`
}

// Project flattens one line and its resolved master records into the label shape.
func Project(item MovementItem, resolved Resolved, totals GroupTotals) EnrichedRecord {
	header := resolved.Get(StepHeader)
	poItem := resolved.Get(StepPurchaseOrderItem)
	manufacturer := resolved.Get(StepManufacturer)
	supplier := resolved.Get(StepSupplier)
	user := resolved.Get(StepBusinessUser)

	desc := firstNonEmpty(
		resolved.Get(StepProductPlant).String("ProductDescription"),
		resolved.Get(StepProductMaterial).String("ProductDescription"),
		header.String("ProductDescription"),
	)
	posting := FormatDate(header.String("PostingDate"))
	batch := item.Batch

	return EnrichedRecord{
		MaterialDocument:     item.Document,
		MaterialDocumentItem: item.Item,
		RMCode:               item.Material,
		MaterialCode:         item.Material,
		RawMaterial:          desc,
		RawMaterialDesc:      desc,
		MaterialName:         desc,
		SupplierName:         firstNonEmpty(supplier.String("SupplierName"), item.Supplier),
		SupplierBatch:        firstNonEmpty(item.BatchBySupplier, item.SupplierBatch),
		ICPLBatch:            firstNonEmpty(item.ItemText, desc),
		ReceivedDate:         posting,
		MfgDate:              FormatDate(item.ManufactureDate),
		ExpiryDate:           FormatDate(item.ExpiryDate),
		NetWeightKgs:         item.NetWeight,
		NWT:                  item.NetWeight,
		GRNNo:                firstNonEmpty(header.String("MaterialDocument"), item.Document),
		GRNDate:              posting,
		GRNYear:              firstNonEmpty(header.String("MaterialDocumentYear"), item.Year),
		BatchQty:             item.Quantity,
		GRNQty:               NewQuantity(totals.Quantity),
		GRN: PurchaseOrderRef{
			PurchaseOrder:     item.PurchaseOrder,
			PurchaseOrderItem: item.PurchaseOrderItem,
		},
		ARNo:         item.Document,
		IssueDate:    posting,
		GWT:          item.GrossWeight,
		TWT:          item.TareWeight,
		ForBatchNo:   batch,
		BatchNo:      batch,
		OperatorName: item.Operator,
		Issued: IssueInfo{
			PostingDate: posting,
			EntryDate:   FormatDate(firstNonEmpty(header.String("EntryDate"), item.EntryDate)),
		},
		PersonFullName:      orBlank(user.String("PersonFullName")),
		MaterialBaseUnit:    item.BaseUnit,
		ManufacturerNo:      orBlank(ManufacturerNumber(poItem)),
		CustomAA16:          orBlank(item.CustomAA16),
		CustomAA1:           orBlank(item.CustomAA1),
		CustomAA2:           orBlank(item.CustomAA2),
		CustomAA16Text:      orBlank(item.CustomAA16Text),
		LineItem:            orBlank(item.Item),
		ManufacturerName:    manufacturer.String("ManfNm"),
		ManufacturerAddress: manufacturer.String("ManfAddr"),
		ManufacturerState:   manufacturer.String("ManfStat"),
		GRNItemCount:        totals.ItemCount,
		Container:           container(item.Item, totals.ItemCount),
		Dec:                 dec(item.CustomAA16Text),
	}
}

func container(item string, count int) string {
	switch {
	case item != "" && count > 0:
		return item + "/" + strconv.Itoa(count)
	case item != "":
		return item
	case count > 0:
		return strconv.Itoa(count)
	default:
		return ""
	}
}

func dec(text string) string {
	if t := strings.TrimSpace(text); t != "" {
		return "(" + t + ")"
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// orBlank renders empty values as a single space, which the label templates expect.
func orBlank(s string) string {
	if s == "" {
		return " "
	}
	return s
}
