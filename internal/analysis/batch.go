package analysis

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/BOSEON-SEO/CSAI/internal/inquiry"
)

// AnalyzeBatch analyses records concurrently with the configured number of
// workers. Items keep input order. A failing inquiry never cancels its
// siblings; only ctx does.
func (a *Analyzer) AnalyzeBatch(ctx context.Context, records []inquiry.Record) []BatchItem {
	items := make([]BatchItem, len(records))
	if len(records) == 0 {
		return items
	}

	var g errgroup.Group
	g.SetLimit(a.cfg.BatchWorkers)

	for i, rec := range records {
		i, rec := i, rec
		g.Go(func() error {
			res, err := a.run(ctx, rec)
			items[i] = BatchItem{InquiryID: rec.InquiryID, Result: res, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return items
}
