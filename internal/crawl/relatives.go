package crawl

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/sells-group/skiptrace/internal/columns"
	"github.com/sells-group/skiptrace/internal/model"
)

// CrawlRelativesPhoneNumbers extracts the phones of up to MaxRelatives
// relatives in parallel. For every crawled index i it emits relative{i}Name,
// associate{i}Name and relative{i}URL, followed by relative{i}Contact{n}
// for each phone found. Output order depends only on the inputs.
func (c *Crawler) CrawlRelativesPhoneNumbers(ctx context.Context, relativeURLs, relativeNames, associateNames []string) *model.RowUpdates {
	updates := model.NewRowUpdates()
	if len(relativeURLs) == 0 {
		return updates
	}

	urls := relativeURLs
	if len(urls) > c.cfg.MaxRelatives {
		urls = urls[:c.cfg.MaxRelatives]
	}

	phones := make([][]string, len(urls))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.RelativeConcurrency)

	for i, u := range urls {
		g.Go(func() error {
			if gCtx.Err() != nil {
				return nil
			}
			phones[i] = c.ExtractDetailsByURL(gCtx, u).PhoneNumbers
			c.sleep(gCtx, c.cfg.RelativeDelay)
			return nil
		})
	}
	_ = g.Wait()

	for i, u := range urls {
		updates.Set(columns.RelativeName(i), at(relativeNames, i))
		updates.Set(columns.AssociateName(i), at(associateNames, i))
		updates.Set(columns.RelativeURL(i), u)
		for n, p := range phones[i] {
			updates.Set(columns.RelativeContact(i, n+1), p)
		}
	}
	return updates
}

func at(values []string, i int) string {
	if i < len(values) {
		return values[i]
	}
	return ""
}
