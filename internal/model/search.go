package model

// ProfileDetails is what a single person profile page yields.
type ProfileDetails struct {
	PhoneNumbers   []string `json:"phone_numbers"`
	RelativeURLs   []string `json:"relative_urls"`
	RelativeNames  []string `json:"relative_names"`
	AssociateURLs  []string `json:"associate_urls"`
	AssociateNames []string `json:"associate_names"`
	Emails         []string `json:"emails"`
}

// SearchResult accumulates everything found across the pages of one search.
//
// Phones, emails and URLs are deduplicated by exact string equality.
// RelativeNames[i] always describes RelativeURLs[i] and AssociateNames[i]
// always describes AssociateURLs[i]; a missing name is stored as "".
type SearchResult struct {
	MatchedPhones  []string `json:"matched_phones"`
	IsMatched      bool     `json:"is_matched"`
	RelativeURLs   []string `json:"relative_urls"`
	AssociateURLs  []string `json:"associate_urls"`
	RelativeNames  []string `json:"relative_names"`
	AssociateNames []string `json:"associate_names"`
	Emails         []string `json:"emails"`
}

// AddPhones appends phones not already present.
func (r *SearchResult) AddPhones(phones []string) {
	r.MatchedPhones = appendUnique(r.MatchedPhones, phones...)
}

// MergeProfile folds a profile's details into the result.
func (r *SearchResult) MergeProfile(d ProfileDetails) {
	r.AddPhones(d.PhoneNumbers)
	r.Emails = appendUnique(r.Emails, d.Emails...)
	r.RelativeURLs, r.RelativeNames = appendAligned(r.RelativeURLs, r.RelativeNames, d.RelativeURLs, d.RelativeNames)
	r.AssociateURLs, r.AssociateNames = appendAligned(r.AssociateURLs, r.AssociateNames, d.AssociateURLs, d.AssociateNames)
}

func appendUnique(dst []string, values ...string) []string {
	seen := make(map[string]struct{}, len(dst)+len(values))
	for _, v := range dst {
		seen[v] = struct{}{}
	}
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		dst = append(dst, v)
	}
	return dst
}

// appendAligned adds URLs not already present together with the name at the
// same index, padding with "" when the name list is shorter.
func appendAligned(urls, names, newURLs, newNames []string) ([]string, []string) {
	for len(names) < len(urls) {
		names = append(names, "")
	}
	seen := make(map[string]struct{}, len(urls))
	for _, u := range urls {
		seen[u] = struct{}{}
	}
	for i, u := range newURLs {
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		name := ""
		if i < len(newNames) {
			name = newNames[i]
		}
		urls = append(urls, u)
		names = append(names, name)
	}
	return urls, names
}
