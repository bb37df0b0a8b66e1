package people

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// HasNextPage reports whether a results page links to a further page. The
// second-to-last pagination item is the "next" control; it carries the
// "disabled" class on the last page.
func HasNextPage(html string) bool {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return false
	}
	if doc.Find("ul.pagination").Length() == 0 {
		return false
	}
	items := doc.Find("ul.pagination li")
	if items.Length() < 2 {
		return false
	}
	return !items.Eq(-2).HasClass("disabled")
}
