// Package export renders enriched label records as spreadsheets.
package export

import (
	"fmt"
	"io"

	"github.com/erp/labeldesk/internal/domain/grn"
	"github.com/xuri/excelize/v2"
)

// SheetName is the worksheet holding the records.
const SheetName = "Labels"

// ContentType is the MIME type of an XLSX workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type column struct {
	header string
	value  func(r grn.EnrichedRecord) any
}

var columns = []column{
	{"GRN No", func(r grn.EnrichedRecord) any { return r.GRNNo }},
	{"GRN Year", func(r grn.EnrichedRecord) any { return r.GRNYear }},
	{"GRN Date", func(r grn.EnrichedRecord) any { return r.GRNDate }},
	{"Item", func(r grn.EnrichedRecord) any { return r.MaterialDocumentItem }},
	{"Material", func(r grn.EnrichedRecord) any { return r.MaterialCode }},
	{"Description", func(r grn.EnrichedRecord) any { return r.MaterialName }},
	{"Supplier", func(r grn.EnrichedRecord) any { return r.SupplierName }},
	{"Supplier Batch", func(r grn.EnrichedRecord) any { return r.SupplierBatch }},
	{"Batch", func(r grn.EnrichedRecord) any { return r.BatchNo }},
	{"Quantity", func(r grn.EnrichedRecord) any { return r.BatchQty }},
	{"Unit", func(r grn.EnrichedRecord) any { return r.MaterialBaseUnit }},
	{"GRN Quantity", func(r grn.EnrichedRecord) any { return r.GRNQty.InexactFloat64() }},
	{"GRN Items", func(r grn.EnrichedRecord) any { return r.GRNItemCount }},
	{"Container", func(r grn.EnrichedRecord) any { return r.Container }},
	{"Mfg Date", func(r grn.EnrichedRecord) any { return r.MfgDate }},
	{"Expiry Date", func(r grn.EnrichedRecord) any { return r.ExpiryDate }},
	{"Purchase Order", func(r grn.EnrichedRecord) any { return r.GRN.PurchaseOrder }},
	{"PO Item", func(r grn.EnrichedRecord) any { return r.GRN.PurchaseOrderItem }},
	{"Manufacturer No", func(r grn.EnrichedRecord) any { return r.ManufacturerNo }},
	{"Manufacturer", func(r grn.EnrichedRecord) any { return r.ManufacturerName }},
	{"Manufacturer Address", func(r grn.EnrichedRecord) any { return r.ManufacturerAddress }},
	{"Manufacturer State", func(r grn.EnrichedRecord) any { return r.ManufacturerState }},
	{"Posted By", func(r grn.EnrichedRecord) any { return r.PersonFullName }},
	{"Operator", func(r grn.EnrichedRecord) any { return r.OperatorName }},
}

// Headers returns the column titles in sheet order.
func Headers() []string {
	out := make([]string, len(columns))
	for i, c := range columns {
		out[i] = c.header
	}
	return out
}

// WriteXLSX writes one header row and one row per record, in the given order.
func WriteXLSX(w io.Writer, records []grn.EnrichedRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("export: rename sheet: %w", err)
	}

	header := make([]any, len(columns))
	for i, c := range columns {
		header[i] = c.header
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("export: header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("export: style: %w", err)
	}
	if err := f.SetRowStyle(SheetName, 1, 1, bold); err != nil {
		return fmt.Errorf("export: style: %w", err)
	}

	for i, rec := range records {
		row := make([]any, len(columns))
		for j, c := range columns {
			row[j] = c.value(rec)
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("export: row %d: %w", i+2, err)
		}
	}

	last, err := excelize.ColumnNumberToName(len(columns))
	if err != nil {
		return err
	}
	if err := f.SetColWidth(SheetName, "A", last, 18); err != nil {
		return fmt.Errorf("export: column width: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("export: write workbook: %w", err)
	}
	return nil
}
