package people

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"github.com/sells-group/skiptrace/internal/model"
)

// Match is the outcome of scanning one results page for the target owner.
type Match struct {
	Matched    bool
	ProfileURL string
	Phones     []string
}

// MatchCandidate scans the result cards on an address-search page and
// returns the first card that belongs to one of the owners. Rules are tried
// per card in priority order and the first hit ends the scan:
//
//  1. the card name equals an owner's full name;
//  2. the card name contains both the first and last name of an owner;
//  3. an owner has only a last name, the card name contains it, and the
//     card's current address contains targetAddress.
//
// Comparisons are case-sensitive substring checks.
func MatchCandidate(html string, owner model.OwnerDetails, targetAddress string) (Match, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Match{}, eris.Wrap(err, "people: parse results page")
	}

	cards := doc.Find(".card")
	for i := range cards.Length() {
		card := cards.Eq(i)
		nameGiven := card.Find(".name-given")
		if nameGiven.Length() == 0 {
			continue
		}
		cardName := strings.TrimSpace(nameGiven.Text())
		cardAddress := strings.TrimSpace(card.Find(".address-current").Text())

		if cardMatches(cardName, cardAddress, owner, targetAddress) {
			href, _ := card.Find(`[title*="View full"]`).Attr("href")
			return Match{
				Matched:    true,
				ProfileURL: strings.TrimSpace(href),
				Phones:     textsOf(card.Find(".phone")),
			}, nil
		}
	}
	return Match{}, nil
}

func cardMatches(cardName, cardAddress string, o model.OwnerDetails, targetAddress string) bool {
	one, two := o.OwnerOneFullName(), o.OwnerTwoFullName()
	if (one != "" && cardName == one) || (two != "" && cardName == two) {
		return true
	}
	if containsBoth(cardName, o.OwnerOneFirstName, o.OwnerOneLastName) ||
		containsBoth(cardName, o.OwnerTwoFirstName, o.OwnerTwoLastName) {
		return true
	}
	if strings.TrimSpace(targetAddress) == "" || !strings.Contains(cardAddress, targetAddress) {
		return false
	}
	return surnameOnly(cardName, o.OwnerOneFirstName, o.OwnerOneLastName) ||
		surnameOnly(cardName, o.OwnerTwoFirstName, o.OwnerTwoLastName)
}

func containsBoth(cardName, first, last string) bool {
	first, last = strings.TrimSpace(first), strings.TrimSpace(last)
	return first != "" && last != "" &&
		strings.Contains(cardName, first) && strings.Contains(cardName, last)
}

func surnameOnly(cardName, first, last string) bool {
	last = strings.TrimSpace(last)
	return strings.TrimSpace(first) == "" && last != "" && strings.Contains(cardName, last)
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]`)

// MatchCandidateByAddress looks for an embedded Person record whose listed
// addresses contain the mailing or property address. Lower-cased forms are
// compared first, then forms with every non-alphanumeric character removed.
// The first qualifying record wins.
func MatchCandidateByAddress(html, mailingAddress, propertyAddress string) (Match, error) {
	records, err := ParsePersonRecords(html)
	if err != nil {
		return Match{}, err
	}

	var targets []string
	for _, a := range []string{mailingAddress, propertyAddress} {
		if t := strings.ToLower(strings.TrimSpace(a)); t != "" {
			targets = append(targets, t)
		}
	}
	if len(targets) == 0 {
		return Match{}, nil
	}

	for _, rec := range records {
		if !addressMatches(rec.Addresses, targets) {
			continue
		}
		return Match{
			Matched:    true,
			ProfileURL: rec.URL,
			Phones:     rec.Telephones,
		}, nil
	}
	return Match{}, nil
}

func addressMatches(addrs []model.PostalAddress, targets []string) bool {
	for _, addr := range addrs {
		full := strings.ToLower(addr.Full())
		fullStripped := nonAlnum.ReplaceAllString(full, "")
		for _, t := range targets {
			if strings.Contains(full, t) {
				return true
			}
			if ts := nonAlnum.ReplaceAllString(t, ""); ts != "" && strings.Contains(fullStripped, ts) {
				return true
			}
		}
	}
	return false
}

func textsOf(sel *goquery.Selection) []string {
	var out []string
	sel.Each(func(_ int, s *goquery.Selection) {
		if t := strings.TrimSpace(s.Text()); t != "" {
			out = append(out, t)
		}
	})
	return out
}
