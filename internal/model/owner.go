package model

import "strings"

// OwnerDetails names the up to two owners recorded on a property row.
type OwnerDetails struct {
	OwnerOneFirstName string `json:"owner_one_first_name"`
	OwnerOneLastName  string `json:"owner_one_last_name"`
	OwnerTwoFirstName string `json:"owner_two_first_name"`
	OwnerTwoLastName  string `json:"owner_two_last_name"`
}

// OwnerOneFullName returns "first last" for the first owner, trimmed.
func (o OwnerDetails) OwnerOneFullName() string {
	return joinName(o.OwnerOneFirstName, o.OwnerOneLastName)
}

// OwnerTwoFullName returns "first last" for the second owner, trimmed.
func (o OwnerDetails) OwnerTwoFullName() string {
	return joinName(o.OwnerTwoFirstName, o.OwnerTwoLastName)
}

func joinName(first, last string) string {
	return strings.TrimSpace(strings.TrimSpace(first) + " " + strings.TrimSpace(last))
}

// RowFields is the subset of a spreadsheet row the enrichment engine reads.
type RowFields struct {
	Index          int          `json:"index"`
	Address        string       `json:"address"`
	City           string       `json:"city"`
	State          string       `json:"state"`
	Zip            string       `json:"zip"`
	MailingAddress string       `json:"mailing_address"`
	MailingCity    string       `json:"mailing_city"`
	MailingState   string       `json:"mailing_state"`
	Owner          OwnerDetails `json:"owner"`
}

// HasMailingAddress reports whether the row carries a mailing address.
func (r RowFields) HasMailingAddress() bool {
	return strings.TrimSpace(r.MailingAddress) != ""
}
