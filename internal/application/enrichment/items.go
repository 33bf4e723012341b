package enrichment

import (
	"context"
	"strings"
	"time"

	"github.com/erp/labeldesk/internal/domain/grn"
	"github.com/erp/labeldesk/internal/infrastructure/erp"
	"github.com/erp/labeldesk/internal/infrastructure/telemetry"
	"golang.org/x/sync/errgroup"
)

const itemSource = "items"

// ItemFilter renders the $filter clause selecting the lines of one reference.
func ItemFilter(ref grn.ItemReference) string {
	doc := "MaterialDocument eq " + erp.QuoteLiteral(ref.Document)
	switch {
	case ref.Item != "":
		return "(" + doc + " and MaterialDocumentItem eq " + erp.QuoteLiteral(ref.Item) + ")"
	case ref.Year != "":
		return "(" + doc + " and MaterialDocumentYear eq " + erp.QuoteLiteral(ref.Year) + ")"
	default:
		return doc
	}
}

// ItemQueryPath queries the lines of up to BatchSize references at once.
func ItemQueryPath(refs []grn.ItemReference) string {
	filters := make([]string, len(refs))
	for i, r := range refs {
		filters[i] = ItemFilter(r)
	}
	return MaterialDocumentService + "/A_MaterialDocumentItem?$format=json&$filter=" +
		erp.EscapeQuery("("+strings.Join(filters, " or ")+")")
}

// queryItems fetches the lines of refs. Any chunk failing after retries fails
// the whole query. Lines come back in chunk order without duplicates.
func (s *Service) queryItems(ctx context.Context, refs []grn.ItemReference) ([]grn.Record, error) {
	var chunks [][]grn.ItemReference
	for start := 0; start < len(refs); start += BatchSize {
		chunks = append(chunks, refs[start:min(start+BatchSize, len(refs))])
	}

	results := make([][]grn.Record, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(MaxInFlightChunks)
	for i, chunk := range chunks {
		g.Go(func() error {
			doc, err := doWithRetry(gctx, s.retry, func(ctx context.Context) (erp.Document, error) {
				start := time.Now()
				doc, err := s.gateway.Get(ctx, ItemQueryPath(chunk))
				s.metrics.RecordUpstream(ctx, itemSource, telemetry.ModeQuery, err, time.Since(start))
				return doc, err
			})
			if err != nil {
				return err
			}
			rows := doc.V2Results()
			recs := make([]grn.Record, len(rows))
			for j, r := range rows {
				recs[j] = grn.Record(r)
			}
			results[i] = recs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var out []grn.Record
	for _, recs := range results {
		for _, r := range recs {
			id := r.String("MaterialDocument") + "\x00" + r.String("MaterialDocumentYear") + "\x00" + r.String("MaterialDocumentItem")
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, r)
		}
	}
	return out, nil
}
