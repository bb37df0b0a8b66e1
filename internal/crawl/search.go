package crawl

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/skiptrace/internal/model"
	"github.com/sells-group/skiptrace/internal/people"
)

// pageMatcher runs the appropriate matcher on one results page.
type pageMatcher func(html string) (people.Match, error)

// SearchByAddress walks the address results for (address, city, state) and
// matches cards against the owners. Any error returns an empty result.
func (c *Crawler) SearchByAddress(ctx context.Context, address, city, state string, owner model.OwnerDetails) model.SearchResult {
	urlFor := func(page int) string {
		return people.AddressSearchURL(c.cfg.BaseURL, address, city, state, page)
	}
	match := func(html string) (people.Match, error) {
		return people.MatchCandidate(html, owner, address)
	}
	return c.search(ctx, "address", urlFor, match)
}

// SearchByName walks the name results for (name, state, city) and matches
// embedded Person records against the mailing or property address. Any
// error returns an empty result.
func (c *Crawler) SearchByName(ctx context.Context, name, propertyAddress, mailingAddress, city, state string) model.SearchResult {
	urlFor := func(page int) string {
		return people.NameSearchURL(c.cfg.BaseURL, name, state, city, page)
	}
	match := func(html string) (people.Match, error) {
		return people.MatchCandidateByAddress(html, mailingAddress, propertyAddress)
	}
	return c.search(ctx, "name", urlFor, match)
}

func (c *Crawler) search(ctx context.Context, kind string, urlFor func(page int) string, match pageMatcher) model.SearchResult {
	var result model.SearchResult
	extracted := make(map[string]struct{})

	for page := 1; page <= c.cfg.MaxPages; page++ {
		if err := ctx.Err(); err != nil {
			logSearchAbort(kind, page, err)
			return model.SearchResult{}
		}

		pageURL := urlFor(page)
		html := c.fetcher.Fetch(ctx, pageURL)

		m, err := match(html)
		if err != nil {
			logSearchAbort(kind, page, err)
			return model.SearchResult{}
		}

		result.AddPhones(m.Phones)
		result.IsMatched = result.IsMatched || m.Matched

		if m.Matched && m.ProfileURL != "" {
			if _, done := extracted[m.ProfileURL]; !done {
				extracted[m.ProfileURL] = struct{}{}
				zap.L().Debug("crawl: profile matched",
					zap.String("search", kind),
					zap.String("url", pageURL),
					zap.String("profile", m.ProfileURL),
				)
				result.MergeProfile(c.ExtractDetailsByURL(ctx, m.ProfileURL))
			}
		}

		if !people.HasNextPage(html) {
			break
		}
	}

	if err := ctx.Err(); err != nil {
		logSearchAbort(kind, 0, err)
		return model.SearchResult{}
	}
	return result
}
