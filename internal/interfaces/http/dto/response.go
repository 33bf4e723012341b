package dto

import (
	"net/http"
	"sort"
	"time"

	"github.com/erp/labeldesk/internal/domain/grn"
)

// Envelope status values
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// ServiceVersion is reported by the list endpoints.
const ServiceVersion = "v1.0.1"

// DetailsResponse is the envelope of the enrichment endpoint
type DetailsResponse struct {
	Status     string               `json:"status"`
	Message    string               `json:"message"`
	StatusCode int                  `json:"statusCode"`
	Length     int                  `json:"length"`
	Data       []grn.EnrichedRecord `json:"data"`
	Timings    map[string]int64     `json:"timings,omitempty"`
}

// ListResponse is the envelope of the header and item list endpoints
type ListResponse struct {
	Status         string       `json:"status"`
	Message        string       `json:"message"`
	StatusCode     int          `json:"statusCode"`
	ServiceVersion string       `json:"serviceVersion"`
	FetchedAt      time.Time    `json:"fetchedAt"`
	PayloadLength  int          `json:"payloadLength"`
	Fields         []string     `json:"fields"`
	Data           []grn.Record `json:"data"`
}

// ErrorResponse is returned by every endpoint on failure
type ErrorResponse struct {
	Status     string `json:"status"`
	Message    string `json:"message"`
	StatusCode int    `json:"statusCode"`
	Code       string `json:"code"`
	RequestID  string `json:"requestId,omitempty"`

	Details []ValidationDetail `json:"details,omitempty"`
}

// ValidationDetail describes one rejected request field
type ValidationDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Response is the generic envelope for small endpoints (ping, cache stats)
type Response struct {
	Status     string `json:"status"`
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message,omitempty"`
	Data       any    `json:"data,omitempty"`
}

// NewDetailsResponse wraps enriched records. Timings are included only when debug is set.
func NewDetailsResponse(records []grn.EnrichedRecord, timings map[string]int64, debug bool) DetailsResponse {
	if records == nil {
		records = []grn.EnrichedRecord{}
	}
	resp := DetailsResponse{
		Status:     StatusSuccess,
		Message:    "Material Document details fetched successfully",
		StatusCode: http.StatusOK,
		Length:     len(records),
		Data:       records,
	}
	if debug {
		resp.Timings = timings
	}
	return resp
}

// NewListResponse wraps list rows. Fields are the sorted keys of the first row.
func NewListResponse(message string, rows []grn.Record, fetchedAt time.Time) ListResponse {
	if rows == nil {
		rows = []grn.Record{}
	}
	fields := []string{}
	if len(rows) > 0 {
		for k := range rows[0] {
			fields = append(fields, k)
		}
		sort.Strings(fields)
	}
	return ListResponse{
		Status:         StatusSuccess,
		Message:        message,
		StatusCode:     http.StatusOK,
		ServiceVersion: ServiceVersion,
		FetchedAt:      fetchedAt.UTC(),
		PayloadLength:  len(rows),
		Fields:         fields,
		Data:           rows,
	}
}

// NewSuccessResponse creates a generic success response
func NewSuccessResponse(data any) Response {
	return Response{
		Status:     StatusSuccess,
		StatusCode: http.StatusOK,
		Data:       data,
	}
}

// NewErrorResponse creates an error response. Domain codes are normalized and
// the HTTP status is derived from the result.
func NewErrorResponse(code, message string) ErrorResponse {
	code = NormalizeErrorCode(code)
	return ErrorResponse{
		Status:     StatusError,
		Message:    message,
		StatusCode: GetHTTPStatus(code),
		Code:       code,
	}
}

// NewErrorResponseWithRequestID creates an error response carrying the request ID
func NewErrorResponseWithRequestID(code, message, requestID string) ErrorResponse {
	resp := NewErrorResponse(code, message)
	resp.RequestID = requestID
	return resp
}

// NewValidationErrorResponse creates a 400 response listing the rejected fields
func NewValidationErrorResponse(message, requestID string, details []ValidationDetail) ErrorResponse {
	resp := NewErrorResponseWithRequestID(ErrCodeValidation, message, requestID)
	resp.Details = details
	return resp
}
