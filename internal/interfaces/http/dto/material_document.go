package dto

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/erp/labeldesk/internal/domain/grn"
)

// Text is a JSON string that also accepts numbers and null. Dashboards send
// document numbers and years either way.
type Text string

// UnmarshalJSON implements json.Unmarshaler.
func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*t = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Text(s)
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("expected string or number, got %s", data)
		}
		*t = Text(n.String())
	}
	return nil
}

// MaterialDocumentItemRequest is one entry of MaterialDocumentItems.
// PascalCase and camelCase keys are both accepted.
type MaterialDocumentItemRequest struct {
	MaterialDocument     Text `json:"MaterialDocument" binding:"max=64"`
	MaterialDocumentYear Text `json:"MaterialDocumentYear" binding:"max=16"`
	MaterialDocumentItem Text `json:"MaterialDocumentItem" binding:"max=16"`

	CamelDocument Text `json:"materialDocument" binding:"max=64"`
	CamelYear     Text `json:"materialDocumentYear" binding:"max=16"`
	CamelItem     Text `json:"materialDocumentItem" binding:"max=16"`
}

// DetailsRequest is the body of the details and export endpoints.
type DetailsRequest struct {
	MaterialDocument      Text                          `json:"MaterialDocument" binding:"max=64"`
	MaterialDocumentYear  Text                          `json:"MaterialDocumentYear" binding:"max=16"`
	MaterialDocumentItems []MaterialDocumentItemRequest `json:"MaterialDocumentItems" binding:"max=5000,dive"`
	MaterialDocuments     []Text                        `json:"MaterialDocuments" binding:"max=5000,dive,max=64"`
	Debug                 bool                          `json:"_debug"`
}

// ToInput converts the request to the domain reference payload.
func (r DetailsRequest) ToInput() grn.ReferenceInput {
	in := grn.ReferenceInput{
		MaterialDocument:     string(r.MaterialDocument),
		MaterialDocumentYear: string(r.MaterialDocumentYear),
	}
	for _, it := range r.MaterialDocumentItems {
		in.MaterialDocumentItems = append(in.MaterialDocumentItems, grn.ItemInput{
			MaterialDocument:     string(it.MaterialDocument),
			MaterialDocumentYear: string(it.MaterialDocumentYear),
			MaterialDocumentItem: string(it.MaterialDocumentItem),
			CamelDocument:        string(it.CamelDocument),
			CamelYear:            string(it.CamelYear),
			CamelItem:            string(it.CamelItem),
		})
	}
	for _, d := range r.MaterialDocuments {
		in.MaterialDocuments = append(in.MaterialDocuments, string(d))
	}
	return in
}

// ListQuery holds the query parameters of the list endpoints.
type ListQuery struct {
	Top int `form:"top" binding:"omitempty,min=1,max=100000"`
}
