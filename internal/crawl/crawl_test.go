package crawl

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/skiptrace/internal/model"
)

const base = "https://people.test"

// fakeFetcher serves fixture pages by URL. Unknown URLs yield "".
type fakeFetcher struct {
	mu    sync.Mutex
	pages map[string]string
	calls []string
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, url)
	return f.pages[url]
}

func (f *fakeFetcher) Requests() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.calls))
}

func newTestCrawler(pages map[string]string) (*Crawler, *fakeFetcher) {
	f := &fakeFetcher{pages: pages}
	c := New(f, Config{BaseURL: base, MaxRelatives: 5, RelativeConcurrency: 3})
	c.sleep = func(context.Context, time.Duration) {}
	return c, f
}

const nextEnabled = `<ul class="pagination"><li>1</li><li><a href="#">Next</a></li><li>Last</li></ul>`
const nextDisabled = `<ul class="pagination"><li>1</li><li class="disabled"><a>Next</a></li><li>Last</li></ul>`

const janeProfile = `<html><body>
<div class="row"><h2 class="section-label">Phone Numbers</h2>
  <span class="phone">(818) 216-1919</span><span class="phone">(213) 555-0100</span></div>
<div class="row"><h2 class="section-label">Email Addresses</h2>
  <a href="/email/jane.smith_.example.com">e</a></div>
<div class="row"><h2 class="section-label">Possible Relatives</h2>
  <a href="/p/ann"><span class="relative">Ann Smith</span></a></div>
<div class="row"><h2 class="section-label">Possible Associates</h2>
  <a href="/p/cal"><span class="associate">Cal Jones</span></a></div>
</body></html>`

func TestSearchByAddress_WalksPagesAndExtractsProfile(t *testing.T) {
	page1 := `<div class="card"><span class="name-given">Robert Brown</span>
<span class="phone">(555) 000-0000</span></div>` + nextEnabled
	page2 := `<div class="card"><span class="name-given">Jane Smith</span>
<span class="phone">(818) 216-1919</span>
<a title="View full report" href="/name/jane-smith/abc">View</a></div>` + nextDisabled

	c, f := newTestCrawler(map[string]string{
		base + "/address/12-Oak-St/Springfield/IL/1": page1,
		base + "/address/12-Oak-St/Springfield/IL/2": page2,
		base + "/name/jane-smith/abc":                janeProfile,
	})

	owner := model.OwnerDetails{OwnerOneFirstName: "Jane", OwnerOneLastName: "Smith"}
	got := c.SearchByAddress(context.Background(), "12 Oak St", "Springfield", "IL", owner)

	assert.True(t, got.IsMatched)
	assert.Equal(t, []string{"(818) 216-1919", "(213) 555-0100"}, got.MatchedPhones)
	assert.Equal(t, []string{"/p/ann"}, got.RelativeURLs)
	assert.Equal(t, []string{"Ann Smith"}, got.RelativeNames)
	assert.Equal(t, []string{"/p/cal"}, got.AssociateURLs)
	assert.Equal(t, []string{"jane.smith@example.com"}, got.Emails)
	assert.Equal(t, []string{
		base + "/address/12-Oak-St/Springfield/IL/1",
		base + "/address/12-Oak-St/Springfield/IL/2",
		base + "/name/jane-smith/abc",
	}, f.calls)
}

func TestSearchByAddress_NoMatch(t *testing.T) {
	c, f := newTestCrawler(map[string]string{
		base + "/address/1-Pine-Rd/Reno/NV/1": `<div class="card"><span class="name-given">Robert Brown</span></div>`,
	})
	got := c.SearchByAddress(context.Background(), "1 Pine Rd", "Reno", "NV",
		model.OwnerDetails{OwnerOneFirstName: "Jane", OwnerOneLastName: "Smith"})

	assert.False(t, got.IsMatched)
	assert.Empty(t, got.MatchedPhones)
	assert.Len(t, f.calls, 1)
}

func TestSearchByName_MatchesLdJSON(t *testing.T) {
	results := `<script type="application/ld+json">{"@type":"Person","name":"Jane Smith",
"telephone":"(310) 555-1234",
"address":{"streetAddress":"99 Elm Ave","addressLocality":"Chicago","addressRegion":"IL","postalCode":"60601"},
"url":"https://people.test/p/jane"}</script>`

	c, f := newTestCrawler(map[string]string{
		base + "/people/Jane-Smith/IL/Chicago/1": results,
		base + "/p/jane":                         janeProfile,
	})

	got := c.SearchByName(context.Background(), "Jane Smith", "12 Oak St", "99 Elm Ave", "Chicago", "IL")
	require.True(t, got.IsMatched)
	assert.Equal(t, []string{"(310) 555-1234", "(818) 216-1919", "(213) 555-0100"}, got.MatchedPhones)
	assert.Equal(t, []string{base + "/people/Jane-Smith/IL/Chicago/1", base + "/p/jane"}, f.calls)
}

func TestSearch_StopsAtMaxPages(t *testing.T) {
	pages := map[string]string{}
	for i := 1; i <= 10; i++ {
		pages[fmt.Sprintf("%s/address/A/B/C/%d", base, i)] = nextEnabled
	}
	f := &fakeFetcher{pages: pages}
	c := New(f, Config{BaseURL: base, MaxPages: 3})

	c.SearchByAddress(context.Background(), "A", "B", "C", model.OwnerDetails{})
	assert.Len(t, f.calls, 3)
}

func TestSearch_SameProfileExtractedOnce(t *testing.T) {
	card := `<div class="card"><span class="name-given">Jane Smith</span>
<a title="View full report" href="/name/jane-smith/abc">View</a></div>`
	c, f := newTestCrawler(map[string]string{
		base + "/address/A/B/C/1":     card + nextEnabled,
		base + "/address/A/B/C/2":     card + nextDisabled,
		base + "/name/jane-smith/abc": janeProfile,
	})
	c.SearchByAddress(context.Background(), "A", "B", "C",
		model.OwnerDetails{OwnerOneFirstName: "Jane", OwnerOneLastName: "Smith"})
	assert.Len(t, f.calls, 3)
}

func TestSearch_CancelledReturnsEmpty(t *testing.T) {
	c, f := newTestCrawler(map[string]string{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got := c.SearchByName(ctx, "Jane Smith", "", "99 Elm Ave", "Chicago", "IL")
	assert.Equal(t, model.SearchResult{}, got)
	assert.Empty(t, f.calls)
}

func TestExtractDetailsByURL(t *testing.T) {
	c, f := newTestCrawler(map[string]string{base + "/name/jane-smith/abc": janeProfile})

	d := c.ExtractDetailsByURL(context.Background(), "/name/jane-smith/abc")
	assert.Equal(t, []string{"(818) 216-1919", "(213) 555-0100"}, d.PhoneNumbers)

	assert.Equal(t, model.ProfileDetails{}, c.ExtractDetailsByURL(context.Background(), ""))
	assert.Equal(t, model.ProfileDetails{}, c.ExtractDetailsByURL(context.Background(), "/missing"))
	assert.Len(t, f.calls, 2)
}

func relativePage(phones ...string) string {
	html := `<div class="row"><h2 class="section-label">Phone Numbers</h2>`
	for _, p := range phones {
		html += `<span class="phone">` + p + `</span>`
	}
	return html + `</div>`
}

func TestCrawlRelativesPhoneNumbers(t *testing.T) {
	pages := map[string]string{}
	var urls []string
	for i := 0; i < 7; i++ {
		u := fmt.Sprintf("/p/rel-%d", i)
		urls = append(urls, u)
		pages[base+u] = relativePage(fmt.Sprintf("(555) 000-000%d", i))
	}
	pages[base+"/p/rel-1"] = relativePage("(555) 111-0001", "(555) 111-0002")

	c, f := newTestCrawler(pages)
	got := c.CrawlRelativesPhoneNumbers(context.Background(), urls, []string{"Ann", "Bob"}, []string{"Cal"})

	v, ok := got.Get("relative4URL")
	assert.True(t, ok)
	assert.Equal(t, "/p/rel-4", v)
	_, ok = got.Get("relative5URL")
	assert.False(t, ok)
	assert.Len(t, f.calls, 5)

	assert.Equal(t, []string{
		"relative0Name", "associate0Name", "relative0URL", "relative0Contact1",
		"relative1Name", "associate1Name", "relative1URL", "relative1Contact1", "relative1Contact2",
	}, got.Keys()[:9])

	name, _ := got.Get("relative1Name")
	assert.Equal(t, "Bob", name)
	name, _ = got.Get("relative2Name")
	assert.Equal(t, "", name)
	assoc, _ := got.Get("associate0Name")
	assert.Equal(t, "Cal", assoc)
	contact, _ := got.Get("relative1Contact2")
	assert.Equal(t, "(555) 111-0002", contact)
}

func TestCrawlRelativesPhoneNumbers_Deterministic(t *testing.T) {
	pages := map[string]string{}
	urls := []string{"/a", "/b", "/c"}
	for _, u := range urls {
		pages[base+u] = relativePage("(555) 222-3333")
	}
	c, _ := newTestCrawler(pages)

	first := c.CrawlRelativesPhoneNumbers(context.Background(), urls, nil, nil).Keys()
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, c.CrawlRelativesPhoneNumbers(context.Background(), urls, nil, nil).Keys())
	}
}

func TestCrawlRelativesPhoneNumbers_Empty(t *testing.T) {
	c, f := newTestCrawler(nil)
	got := c.CrawlRelativesPhoneNumbers(context.Background(), nil, []string{"Ann"}, nil)
	assert.Equal(t, 0, got.Len())
	assert.Empty(t, f.calls)
}
