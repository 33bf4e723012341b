package enrichment

import (
	"context"
	"sync"
	"time"

	"github.com/erp/labeldesk/internal/domain/grn"
	"github.com/erp/labeldesk/internal/infrastructure/erp"
	"github.com/erp/labeldesk/internal/infrastructure/telemetry"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const aggregateSource = "aggregates"

// Aggregator computes the per-GRN totals from the complete line set of each
// GRN, which may be larger than the lines the caller asked for.
type Aggregator struct {
	gateway Gateway
	metrics *telemetry.EnrichmentMetrics
	logger  *zap.Logger
}

// NewAggregator creates an aggregator.
func NewAggregator(gateway Gateway, metrics *telemetry.EnrichmentMetrics, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{gateway: gateway, metrics: metrics, logger: logger}
}

// GroupItemsPath queries every line of one GRN.
func GroupItemsPath(g grn.GroupKey) string {
	filter := "(MaterialDocument eq " + erp.QuoteLiteral(g.Document) +
		" and MaterialDocumentYear eq " + erp.QuoteLiteral(g.Year) + ")"
	return MaterialDocumentService + "/A_MaterialDocumentItem?$format=json&$filter=" + erp.EscapeQuery(filter)
}

// Totals re-queries each group once, uncached. A group whose query fails, or
// which has no year to query by, is totalled from the fetched lines instead.
func (a *Aggregator) Totals(ctx context.Context, groups []grn.GroupKey, fetched []grn.MovementItem) map[grn.GroupKey]grn.GroupTotals {
	local := grn.TotalsByGroup(fetched)
	out := make(map[grn.GroupKey]grn.GroupTotals, len(groups))

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(MaxInFlightChunks)
	for _, group := range groups {
		g.Go(func() error {
			totals, ok := a.query(ctx, group)
			if !ok {
				totals = local[group]
			}
			mu.Lock()
			out[group] = totals
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (a *Aggregator) query(ctx context.Context, group grn.GroupKey) (grn.GroupTotals, bool) {
	if group.Document == "" || group.Year == "" {
		return grn.GroupTotals{}, false
	}
	start := time.Now()
	doc, err := a.gateway.Get(ctx, GroupItemsPath(group))
	a.metrics.RecordUpstream(ctx, aggregateSource, telemetry.ModeQuery, err, time.Since(start))
	if err != nil {
		a.logger.Warn("GRN total query failed, using fetched lines",
			zap.String("source", aggregateSource),
			zap.Strings("keys", []string{group.String()}),
			zap.Error(err),
		)
		return grn.GroupTotals{}, false
	}

	rows := doc.V2Results()
	if len(rows) == 0 {
		return grn.GroupTotals{}, false
	}
	records := make([]grn.Record, len(rows))
	for i, r := range rows {
		records[i] = grn.Record(r)
	}
	return grn.Totals(grn.NewMovementItems(records)), true
}
