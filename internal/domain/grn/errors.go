package grn

import "github.com/erp/labeldesk/internal/domain/shared"

// Error codes surfaced by the enrichment pipeline.
const (
	CodeInvalidInput        = "INVALID_INPUT"
	CodeNotFound            = "NOT_FOUND"
	CodeUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"
	CodeUpstreamBatchFailed = "UPSTREAM_BATCH_FAILED"
	CodeUpstreamItemFailed  = "UPSTREAM_ITEM_FAILED"
	CodeInternal            = "INTERNAL_ERROR"
)

var (
	// ErrInvalidReferences is returned when the payload matches none of the accepted shapes.
	ErrInvalidReferences = shared.NewDomainError(CodeInvalidInput,
		"provide MaterialDocument + MaterialDocumentYear OR MaterialDocumentItems OR MaterialDocuments")

	// ErrNoItemsFound is returned when the item query yields no rows.
	ErrNoItemsFound = shared.NewDomainError(CodeNotFound, "No material document items found")

	// ErrUpstreamUnavailable is returned when the primary item query fails after retries.
	ErrUpstreamUnavailable = shared.NewDomainError(CodeUpstreamUnavailable, "Upstream ERP is unavailable")

	// ErrUpstreamBatch marks a failed batch call. It is absorbed by the per-key fallback.
	ErrUpstreamBatch = shared.NewDomainError(CodeUpstreamBatchFailed, "Upstream batch request failed")

	// ErrUpstreamItem marks a per-key fetch that exhausted its retries. It is absorbed as an empty record.
	ErrUpstreamItem = shared.NewDomainError(CodeUpstreamItemFailed, "Upstream item request failed")

	// ErrFatalAggregation wraps unexpected failures while assembling the result.
	ErrFatalAggregation = shared.NewDomainError(CodeInternal, "Failed to fetch Material Document details")
)

// NewUpstreamUnavailableError wraps the transport or status failure of the item query.
func NewUpstreamUnavailableError(cause error) error {
	return ErrUpstreamUnavailable.WithCause(cause)
}

// NewFatalAggregationError wraps cause so its message reaches the caller.
func NewFatalAggregationError(cause error) error {
	return ErrFatalAggregation.WithCause(cause)
}
