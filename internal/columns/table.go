package columns

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/skiptrace/internal/model"
)

const (
	// MaxOwnerMobiles is the number of ownerMobile{n} column pairs in the sheet.
	MaxOwnerMobiles = 7
	// MaxRelativeGroups is the number of relative{i} column groups.
	MaxRelativeGroups = 5
	// MaxRelativeContacts is the number of contact columns per relative.
	MaxRelativeContacts = 5
	// MaxEmails is the number of email{n} columns.
	MaxEmails = 3
)

// Table maps logical field names to zero-based column indices.
type Table struct {
	index map[string]int
}

// DefaultTable returns the column layout of the standard property export.
func DefaultTable() *Table {
	idx := map[string]int{
		Address:           0,
		"unitNumber":      1,
		City:              2,
		State:             3,
		Zip:               4,
		"county":          5,
		"apn":             6,
		"ownerOccupied":   7,
		OwnerOneFirstName: 8,
		OwnerOneLastName:  9,
		OwnerTwoFirstName: 10,
		OwnerTwoLastName:  11,
		"mailingCareOf":   12,
		MailingAddress:    13,
		"mailingUnit":     14,
		MailingCity:       15,
		MailingState:      16,
		"mailingZip":      17,
		"emailAll":        98,
	}
	for n := 1; n <= MaxOwnerMobiles; n++ {
		idx[OwnerMobile(n)] = 41 + (n-1)*2
		idx[OwnerMobileType(n)] = 42 + (n-1)*2
	}
	for i := 0; i < MaxRelativeGroups; i++ {
		base := 68 + i*(MaxRelativeContacts+1)
		idx[RelativeName(i)] = base
		for n := 1; n <= MaxRelativeContacts; n++ {
			idx[RelativeContact(i, n)] = base + n
		}
	}
	for n := 1; n <= MaxEmails; n++ {
		idx[Email(n)] = 98 + n
	}
	return &Table{index: idx}
}

// LoadTable reads a YAML mapping of field → column index and layers it over
// the default layout. An empty path returns the defaults.
//
//	columns:
//	  ownerMobile1: 41
//	  email1: 99
func LoadTable(path string) (*Table, error) {
	t := DefaultTable()
	if path == "" {
		return t, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "columns: read mapping %s", path)
	}

	var wrapper struct {
		Columns map[string]int `yaml:"columns"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "columns: parse mapping")
	}

	for field, col := range wrapper.Columns {
		if col < 0 {
			return nil, eris.Errorf("columns: negative index %d for %s", col, field)
		}
		t.index[field] = col
	}
	return t, nil
}

// IndexOf returns the column index for a field.
func (t *Table) IndexOf(field string) (int, bool) {
	i, ok := t.index[field]
	return i, ok
}

// Fields extracts the enrichment inputs from a data row. The mailing city and
// state are only kept when a mailing address is present.
func (t *Table) Fields(index int, row []string) model.RowFields {
	f := model.RowFields{
		Index:          index,
		Address:        t.cell(row, Address),
		City:           t.cell(row, City),
		State:          t.cell(row, State),
		Zip:            t.cell(row, Zip),
		MailingAddress: t.cell(row, MailingAddress),
		Owner: model.OwnerDetails{
			OwnerOneFirstName: t.cell(row, OwnerOneFirstName),
			OwnerOneLastName:  t.cell(row, OwnerOneLastName),
			OwnerTwoFirstName: t.cell(row, OwnerTwoFirstName),
			OwnerTwoLastName:  t.cell(row, OwnerTwoLastName),
		},
	}
	if f.HasMailingAddress() {
		f.MailingCity = t.cell(row, MailingCity)
		f.MailingState = t.cell(row, MailingState)
	}
	return f
}

// Apply writes updates into row, growing it as needed, and returns the
// result. Fields without a mapped column are ignored.
func (t *Table) Apply(row []string, updates *model.RowUpdates) []string {
	for _, field := range updates.Keys() {
		col, ok := t.index[field]
		if !ok {
			continue
		}
		for len(row) <= col {
			row = append(row, "")
		}
		v, _ := updates.Get(field)
		row[col] = v
	}
	return row
}

func (t *Table) cell(row []string, field string) string {
	col, ok := t.index[field]
	if !ok || col >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[col])
}
