package people

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/sells-group/skiptrace/internal/model"
)

// Section captions on a profile page.
const (
	SectionRelatives  = "Possible Relatives"
	SectionAssociates = "Possible Associates"
	SectionPhones     = "Phone Numbers"
	SectionEmails     = "Email Addresses"
)

// ParseProfile extracts phones, relatives, associates and emails from a
// profile page. Missing sections, and empty or unparseable HTML, yield
// empty fields.
func ParseProfile(html string) model.ProfileDetails {
	var details model.ProfileDetails
	if strings.TrimSpace(html) == "" {
		return details
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		zap.L().Warn("people: parse profile page", zap.Error(err))
		return details
	}

	relatives := findSection(doc, SectionRelatives)
	associates := findSection(doc, SectionAssociates)

	details.RelativeURLs, details.RelativeNames = linkedEntries(relatives, ".relative")
	details.AssociateURLs, details.AssociateNames = linkedEntries(associates, ".associate")
	details.PhoneNumbers = textsOf(findSection(doc, SectionPhones).Find(".phone"))

	for _, href := range hrefsOf(findSection(doc, SectionEmails).Find("a")) {
		if email := DecodeEmail(href); email != "" {
			details.Emails = append(details.Emails, email)
		}
	}
	return details
}

// findSection returns the last .row whose h2.section-label text equals
// caption exactly. The selection is empty when no row matches.
func findSection(doc *goquery.Document, caption string) *goquery.Selection {
	section := doc.Find(".row").FilterFunction(func(_ int, row *goquery.Selection) bool {
		label := row.Find("h2.section-label")
		return label.Length() > 0 && strings.TrimSpace(label.Text()) == caption
	})
	return section.Last()
}

// linkedEntries pairs every link in section with the name element inside
// it, or inside the nearest ancestor holding only that link. An entry with
// no name element gets "".
func linkedEntries(section *goquery.Selection, nameSel string) (urls, names []string) {
	section.Find("a").Each(func(_ int, a *goquery.Selection) {
		href, ok := a.Attr("href")
		href = strings.TrimSpace(href)
		if !ok || href == "" {
			return
		}
		urls = append(urls, href)
		names = append(names, entryName(section, a, nameSel))
	})
	return urls, names
}

func entryName(section, link *goquery.Selection, nameSel string) string {
	if n := link.Find(nameSel).First(); n.Length() > 0 {
		return strings.TrimSpace(n.Text())
	}
	for p := link.Parent(); p.Length() > 0 && !p.IsSelection(section); p = p.Parent() {
		if p.Find("a").Length() > 1 {
			break
		}
		if n := p.Find(nameSel).First(); n.Length() > 0 {
			return strings.TrimSpace(n.Text())
		}
	}
	return ""
}

func hrefsOf(sel *goquery.Selection) []string {
	var out []string
	sel.Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok && strings.TrimSpace(href) != "" {
			out = append(out, strings.TrimSpace(href))
		}
	})
	return out
}
