package enrichment

import (
	"strings"

	"github.com/erp/labeldesk/internal/domain/grn"
	"github.com/erp/labeldesk/internal/infrastructure/erp"
)

// ERP service roots.
const (
	ProductService          = "/sap/opu/odata4/sap/api_product/srvd_a2x/sap/product/0002"
	BusinessPartnerService  = "/sap/opu/odata/sap/API_BUSINESS_PARTNER"
	MaterialDocumentService = "/sap/opu/odata/sap/API_MATERIAL_DOCUMENT_SRV"
	PurchaseOrderService    = "/sap/opu/odata/sap/API_PURCHASEORDER_PROCESS_SRV"
	BusinessUserService     = "/sap/opu/odata4/sap/zsb_bussinee_user/srvd/sap/zsd_bussiness_user/0001"
	ManufacturerService     = "/sap/opu/odata/sap/ZSB_MANUF_APP"
)

// productIDLength is the width of the zero-padded product number.
const productIDLength = 18

// Source describes how one master namespace is fetched. Entity renders the
// request path of a key relative to ServicePath; the same path is used inside
// $batch and, prefixed with ServicePath, for a single GET.
type Source struct {
	Name        string
	Namespace   grn.Namespace
	ServicePath string
	Entity      func(k grn.Key) string
	Extract     func(doc erp.Document) grn.Record
}

// Path is the absolute path of a single GET for k.
func (s Source) Path(k grn.Key) string {
	return s.ServicePath + "/" + s.Entity(k)
}

// ProductSource fetches English product descriptions. Keys carry the material
// as their first part.
func ProductSource() Source {
	return Source{
		Name:        "products",
		Namespace:   grn.NamespaceProduct,
		ServicePath: ProductService,
		Entity: func(k grn.Key) string {
			return "ProductDescription(Product=" + erp.KeyLiteral(PadProduct(part(k, 0))) + ",Language='EN')"
		},
		Extract: v4Entity,
	}
}

// SupplierSource fetches supplier names.
func SupplierSource() Source {
	return Source{
		Name:        "suppliers",
		Namespace:   grn.NamespaceSupplier,
		ServicePath: BusinessPartnerService,
		Entity: func(k grn.Key) string {
			return "A_Supplier(" + erp.KeyLiteral(part(k, 0)) + ")?$format=json&$select=SupplierName"
		},
		Extract: v2Entity,
	}
}

// HeaderSource fetches material document headers.
func HeaderSource() Source {
	return Source{
		Name:        "headers",
		Namespace:   grn.NamespaceHeader,
		ServicePath: MaterialDocumentService,
		Entity: func(k grn.Key) string {
			return "A_MaterialDocumentHeader(MaterialDocument=" + erp.KeyLiteral(part(k, 0)) +
				",MaterialDocumentYear=" + erp.KeyLiteral(part(k, 1)) + ")?$format=json"
		},
		Extract: v2Entity,
	}
}

// PurchaseOrderItemSource fetches purchase-order lines, which carry the manufacturer number.
func PurchaseOrderItemSource() Source {
	return Source{
		Name:        "purchaseOrderItems",
		Namespace:   grn.NamespacePurchaseOrderItem,
		ServicePath: PurchaseOrderService,
		Entity: func(k grn.Key) string {
			return "A_PurchaseOrderItem(PurchaseOrder=" + erp.KeyLiteral(part(k, 0)) +
				",PurchaseOrderItem=" + erp.KeyLiteral(part(k, 1)) + ")?$format=json"
		},
		Extract: v2Entity,
	}
}

// BusinessUserSource fetches the user who posted a document.
func BusinessUserSource() Source {
	return Source{
		Name:        "businessUsers",
		Namespace:   grn.NamespaceBusinessUser,
		ServicePath: BusinessUserService,
		Entity: func(k grn.Key) string {
			return "zi_bussinessuer?$filter=" + erp.EscapeQuery("MaterialDocument eq "+erp.QuoteLiteral(part(k, 0)))
		},
		Extract: func(doc erp.Document) grn.Record {
			values := doc.V4Values()
			if len(values) == 0 {
				return grn.EmptyRecord()
			}
			return grn.Record(values[0])
		},
	}
}

// PadProduct left-pads a material number with zeros to the ERP product width.
func PadProduct(material string) string {
	material = strings.TrimSpace(material)
	if len(material) >= productIDLength {
		return material
	}
	return strings.Repeat("0", productIDLength-len(material)) + material
}

func part(k grn.Key, i int) string {
	if i < len(k.Parts) {
		return k.Parts[i]
	}
	return ""
}

func v2Entity(doc erp.Document) grn.Record {
	if doc == nil {
		return grn.EmptyRecord()
	}
	return grn.Record(doc.V2Entity())
}

// v4Entity returns a flat v4 entity without its @odata annotations.
func v4Entity(doc erp.Document) grn.Record {
	if doc == nil {
		return grn.EmptyRecord()
	}
	if _, ok := doc["error"]; ok {
		return grn.EmptyRecord()
	}
	rec := make(grn.Record, len(doc))
	for k, v := range doc {
		if strings.HasPrefix(k, "@odata.") {
			continue
		}
		rec[k] = v
	}
	return rec
}
