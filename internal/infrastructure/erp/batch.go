package erp

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

const crlf = "\r\n"

// BatchRequest is an OData $batch envelope of GET requests.
type BatchRequest struct {
	Boundary string
	Paths    []string
}

// NewBatchRequest builds an envelope for paths with a fresh random boundary.
func NewBatchRequest(paths []string) *BatchRequest {
	return &BatchRequest{
		Boundary: "batch_" + uuid.NewString(),
		Paths:    paths,
	}
}

// ContentType is the request Content-Type header value.
func (b *BatchRequest) ContentType() string {
	return "multipart/mixed; boundary=" + b.Boundary
}

// Body renders the multipart body.
func (b *BatchRequest) Body() []byte {
	var sb strings.Builder
	for _, p := range b.Paths {
		sb.WriteString("--" + b.Boundary + crlf)
		sb.WriteString("Content-Type: application/http" + crlf)
		sb.WriteString("Content-Transfer-Encoding: binary" + crlf)
		sb.WriteString(crlf)
		sb.WriteString("GET " + p + " HTTP/1.1" + crlf)
		sb.WriteString("Accept: application/json" + crlf)
		sb.WriteString(crlf)
	}
	sb.WriteString("--" + b.Boundary + "--" + crlf)
	return []byte(sb.String())
}

// DecodeBatchResponse splits a $batch response into exactly expected documents,
// aligned with the request order. The boundary is taken from contentType and
// falls back to fallbackBoundary.
//
// A part that is not a 2xx embedded response, or whose body cannot be decoded,
// yields an empty Document. Missing trailing parts are empty too; extra parts are
// ignored. ErrMalformedBatch is returned only when no part can be read at all.
func DecodeBatchResponse(contentType string, body []byte, fallbackBoundary string, expected int) ([]Document, error) {
	boundary := fallbackBoundary
	if mt, params, err := mime.ParseMediaType(contentType); err == nil && strings.HasPrefix(mt, "multipart/") {
		if b := params["boundary"]; b != "" {
			boundary = b
		}
	}
	if boundary == "" {
		return nil, fmt.Errorf("%w: no boundary", ErrMalformedBatch)
	}

	docs := make([]Document, expected)
	for i := range docs {
		docs[i] = Document{}
	}

	mr := multipart.NewReader(bytes.NewReader(body), boundary)
	read := 0
	for i := 0; ; i++ {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			if read == 0 {
				return nil, fmt.Errorf("%w: %v", ErrMalformedBatch, err)
			}
			break
		}
		read++
		if i < expected {
			docs[i] = decodePart(part)
		}
	}

	if read == 0 {
		return nil, fmt.Errorf("%w: no parts", ErrMalformedBatch)
	}
	return docs, nil
}

// decodePart reads one application/http part as an embedded HTTP response.
func decodePart(part io.Reader) Document {
	resp, err := http.ReadResponse(bufio.NewReader(part), nil)
	if err != nil {
		return Document{}
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return Document{}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Document{}
	}
	doc, err := DecodeBody(data)
	if err != nil {
		return Document{}
	}
	return doc
}
