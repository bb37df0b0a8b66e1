// Package columns names the logical spreadsheet fields written by the
// enrichment engine and maps them onto column positions.
package columns

import "strconv"

// Input fields read from every row.
const (
	Address           = "address"
	City              = "city"
	State             = "state"
	Zip               = "zip"
	OwnerOneFirstName = "ownerOneFirstName"
	OwnerOneLastName  = "ownerOneLastName"
	OwnerTwoFirstName = "ownerTwoFirstName"
	OwnerTwoLastName  = "ownerTwoLastName"
	MailingAddress    = "mailingAddress"
	MailingCity       = "mailingCity"
	MailingState      = "mailingState"
)

// OwnerMobile returns "ownerMobile{n}". n is 1-based.
func OwnerMobile(n int) string { return "ownerMobile" + strconv.Itoa(n) }

// OwnerMobileType returns "ownerMobile{n}Type". n is 1-based.
func OwnerMobileType(n int) string { return "ownerMobile" + strconv.Itoa(n) + "Type" }

// Email returns "email{n}". n is 1-based.
func Email(n int) string { return "email" + strconv.Itoa(n) }

// RelativeName returns "relative{i}Name". i is 0-based.
func RelativeName(i int) string { return "relative" + strconv.Itoa(i) + "Name" }

// RelativeURL returns "relative{i}URL". i is 0-based.
func RelativeURL(i int) string { return "relative" + strconv.Itoa(i) + "URL" }

// AssociateName returns "associate{i}Name". i is 0-based.
func AssociateName(i int) string { return "associate" + strconv.Itoa(i) + "Name" }

// RelativeContact returns "relative{i}Contact{n}"; i is 0-based, n is 1-based.
func RelativeContact(i, n int) string {
	return "relative" + strconv.Itoa(i) + "Contact" + strconv.Itoa(n)
}
