package grn

import (
	"strings"
)

// ItemReference identifies a material document, optionally narrowed to a year and line item.
type ItemReference struct {
	Document string `json:"materialDocument"`
	Year     string `json:"materialDocumentYear,omitempty"`
	Item     string `json:"materialDocumentItem,omitempty"`
}

// ItemInput is one entry of a MaterialDocumentItems list. Callers send either
// PascalCase or camelCase keys; PascalCase wins when both are set.
type ItemInput struct {
	MaterialDocument     string
	MaterialDocumentYear string
	MaterialDocumentItem string

	CamelDocument string
	CamelYear     string
	CamelItem     string
}

// ReferenceInput is the raw reference payload as received from a caller.
type ReferenceInput struct {
	MaterialDocument      string
	MaterialDocumentYear  string
	MaterialDocumentItems []ItemInput
	MaterialDocuments     []string
}

// Normalize turns one of the accepted reference shapes into canonical triples.
//
// Precedence: document+year, then the item list, then the document list.
// Entries without a document are dropped; identical triples are kept once in
// first-seen order. A payload matching no shape fails with ErrInvalidReferences.
func Normalize(in ReferenceInput) ([]ItemReference, error) {
	doc := clean(in.MaterialDocument)
	year := clean(in.MaterialDocumentYear)

	var refs []ItemReference
	switch {
	case doc != "" && year != "":
		refs = append(refs, reference(doc, year, ""))
	case len(in.MaterialDocumentItems) > 0:
		for _, it := range in.MaterialDocumentItems {
			refs = append(refs, reference(
				pick(it.MaterialDocument, it.CamelDocument),
				pick(it.MaterialDocumentYear, it.CamelYear),
				pick(it.MaterialDocumentItem, it.CamelItem),
			))
		}
	case len(in.MaterialDocuments) > 0:
		for _, d := range in.MaterialDocuments {
			refs = append(refs, reference(clean(d), "", ""))
		}
	default:
		return nil, ErrInvalidReferences
	}

	return dedupe(refs), nil
}

// reference splits a composite "doc-item" document when no explicit item is given.
func reference(doc, year, item string) ItemReference {
	if item == "" {
		if i := strings.LastIndex(doc, "-"); i >= 0 {
			doc, item = clean(doc[:i]), clean(doc[i+1:])
		}
	}
	return ItemReference{Document: doc, Year: year, Item: item}
}

func dedupe(refs []ItemReference) []ItemReference {
	seen := make(map[ItemReference]struct{}, len(refs))
	out := make([]ItemReference, 0, len(refs))
	for _, r := range refs {
		if r.Document == "" {
			continue
		}
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}

func pick(primary, alt string) string {
	if v := clean(primary); v != "" {
		return v
	}
	return clean(alt)
}

// clean trims s and maps the literal placeholders "null" and "undefined" to "".
func clean(s string) string {
	s = strings.TrimSpace(s)
	switch s {
	case "null", "undefined":
		return ""
	}
	return s
}
