package erp

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeBody(t *testing.T) {
	t.Run("json keeps numbers exact", func(t *testing.T) {
		doc, err := DecodeBody([]byte(` {"d":{"results":[{"QuantityInBaseUnit":12.345,"Material":"M1"}]}} `))
		require.NoError(t, err)

		rows := doc.V2Results()
		require.Len(t, rows, 1)
		assert.Equal(t, json.Number("12.345"), rows[0]["QuantityInBaseUnit"])
		assert.Equal(t, "M1", rows[0]["Material"])
	})

	t.Run("flat v4 entity", func(t *testing.T) {
		doc, err := DecodeBody([]byte(`{"Product":"000000000000000001","ProductDescription":"Salt"}`))
		require.NoError(t, err)
		assert.Equal(t, "Salt", doc.V2Entity()["ProductDescription"])
	})

	t.Run("error payload unwraps to empty", func(t *testing.T) {
		doc, err := DecodeBody([]byte(`{"error":{"code":"X","message":"nope"}}`))
		require.NoError(t, err)
		assert.Empty(t, doc.V2Entity())
	})

	t.Run("atom feed keeps first occurrence", func(t *testing.T) {
		doc, err := DecodeBody([]byte(`<m:properties xmlns:m="m" xmlns:d="d"><d:A>1</d:A><d:B> 2 </d:B><d:A>3</d:A></m:properties>`))
		require.NoError(t, err)
		assert.Equal(t, Document{"A": "1", "B": "2"}, doc)
	})

	t.Run("garbage is malformed", func(t *testing.T) {
		for _, body := range []string{"", "   ", "hello", "{not json"} {
			_, err := DecodeBody([]byte(body))
			assert.ErrorIs(t, err, ErrMalformedResponse, body)
		}
	})
}

func TestLiterals(t *testing.T) {
	assert.Equal(t, "'O''Brien'", QuoteLiteral("O'Brien"))
	assert.Equal(t, "'A%2FB'", KeyLiteral("A/B"))
	assert.Equal(t, "'1000'", KeyLiteral("1000"))
	assert.Equal(t, "MaterialDocument%20eq%20%27123%27", EscapeQuery("MaterialDocument eq '123'"))
}

func TestDocumentAccessors(t *testing.T) {
	doc := Document{
		"d":     map[string]any{"results": []any{map[string]any{"a": "1"}, "skip"}},
		"value": []any{map[string]any{"b": "2"}},
	}
	assert.Len(t, doc.V2Results(), 1)
	assert.Len(t, doc.V4Values(), 1)
	assert.Nil(t, Document{}.V2Results())
	assert.Nil(t, Document{"value": "x"}.V4Values())
}
