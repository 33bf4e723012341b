package erp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/beevik/etree"
)

// Document is one decoded OData payload: the full JSON object, or the flat
// d: properties of an Atom entry.
type Document map[string]any

// KeyLiteral renders v as a quoted OData key literal safe for a URL path.
func KeyLiteral(v string) string {
	return "'" + url.PathEscape(strings.ReplaceAll(v, "'", "''")) + "'"
}

// QuoteLiteral renders v as a quoted OData string literal for use in $filter.
func QuoteLiteral(v string) string {
	return "'" + strings.ReplaceAll(v, "'", "''") + "'"
}

// EscapeQuery percent-encodes a query value, spaces as %20.
func EscapeQuery(v string) string {
	return strings.ReplaceAll(url.QueryEscape(v), "+", "%20")
}

// DecodeBody decodes a JSON or Atom XML body. Numbers are kept as json.Number.
func DecodeBody(body []byte) (Document, error) {
	trimmed := bytes.TrimSpace(body)
	switch {
	case len(trimmed) == 0:
		return nil, fmt.Errorf("%w: empty body", ErrMalformedResponse)
	case trimmed[0] == '{':
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.UseNumber()
		var doc Document
		if err := dec.Decode(&doc); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		return doc, nil
	case trimmed[0] == '<':
		return decodeAtom(trimmed)
	default:
		return nil, fmt.Errorf("%w: unexpected leading byte %q", ErrMalformedResponse, trimmed[0])
	}
}

// decodeAtom flattens the d: properties of an Atom entry.
func decodeAtom(body []byte) (Document, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(body); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	props := Document{}
	if root := doc.Root(); root != nil {
		collectProperties(root, props)
	}
	return props, nil
}

func collectProperties(el *etree.Element, props Document) {
	children := el.ChildElements()
	if el.Space == "d" && len(children) == 0 {
		if _, seen := props[el.Tag]; !seen {
			props[el.Tag] = strings.TrimSpace(el.Text())
		}
		return
	}
	for _, child := range children {
		collectProperties(child, props)
	}
}

// Object returns the JSON object stored under key, if any.
func (d Document) Object(key string) (Document, bool) {
	switch v := d[key].(type) {
	case map[string]any:
		return Document(v), true
	case Document:
		return v, true
	}
	return nil, false
}

// Objects returns the JSON objects stored in the array under key.
func (d Document) Objects(key string) []Document {
	arr, ok := d[key].([]any)
	if !ok {
		return nil
	}
	out := make([]Document, 0, len(arr))
	for _, v := range arr {
		if m, ok := v.(map[string]any); ok {
			out = append(out, Document(m))
		}
	}
	return out
}

// V2Entity unwraps {"d": {...}}. A flat document (e.g. decoded Atom) is returned as is.
func (d Document) V2Entity() Document {
	if inner, ok := d.Object("d"); ok {
		return inner
	}
	if _, ok := d["error"]; ok {
		return Document{}
	}
	return d
}

// V2Results unwraps {"d": {"results": [...]}}.
func (d Document) V2Results() []Document {
	inner, ok := d.Object("d")
	if !ok {
		return nil
	}
	return inner.Objects("results")
}

// V4Values unwraps {"value": [...]}.
func (d Document) V4Values() []Document {
	return d.Objects("value")
}
