package model

import "strings"

// PostalAddress is one address listed on an embedded Person record.
type PostalAddress struct {
	Street     string `json:"streetAddress"`
	City       string `json:"addressLocality"`
	State      string `json:"addressRegion"`
	PostalCode string `json:"postalCode"`
}

// Full renders the address as "street, city, state zip".
func (a PostalAddress) Full() string {
	return strings.TrimSpace(a.Street + ", " + a.City + ", " + a.State + " " + a.PostalCode)
}

// PersonRecord is a schema.org Person embedded in a search results page.
type PersonRecord struct {
	Name       string          `json:"name"`
	Telephones []string        `json:"telephone"`
	Addresses  []PostalAddress `json:"address"`
	URL        string          `json:"url"`
}
