// Package enrichment resolves goods-movement references into print-ready label
// records. It queries the movement lines, fetches every master source through
// the record cache, aggregates the GRN totals and runs the join.
package enrichment

import (
	"context"

	"github.com/erp/labeldesk/internal/infrastructure/erp"
)

// Gateway is the upstream ERP as seen by the pipeline.
type Gateway interface {
	// Get fetches one path relative to the ERP base URL.
	Get(ctx context.Context, path string) (erp.Document, error)
	// Batch sends paths, relative to servicePath, as one $batch call and
	// returns one document per path in order.
	Batch(ctx context.Context, servicePath string, paths []string) ([]erp.Document, error)
}

var _ Gateway = (*erp.Client)(nil)
