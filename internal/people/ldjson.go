package people

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/skiptrace/internal/model"
)

type ldNode struct {
	Type      json.RawMessage `json:"@type"`
	ID        string          `json:"@id"`
	URL       string          `json:"url"`
	Name      string          `json:"name"`
	Telephone json.RawMessage `json:"telephone"`
	Address   json.RawMessage `json:"address"`
}

// ParsePersonRecords returns every schema.org Person embedded in the page's
// application/ld+json scripts, in document order. Blocks that are not valid
// JSON are skipped.
func ParsePersonRecords(html string) ([]model.PersonRecord, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, eris.Wrap(err, "people: parse ld+json page")
	}

	var records []model.PersonRecord
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		nodes, err := decodeNodes([]byte(s.Text()))
		if err != nil {
			zap.L().Debug("people: skipping malformed ld+json block", zap.Error(err))
			return
		}
		for _, n := range nodes {
			if !isPerson(n.Type) {
				continue
			}
			rec := model.PersonRecord{
				Name:       strings.TrimSpace(n.Name),
				Telephones: compact(stringList(n.Telephone)),
				Addresses:  addressList(n.Address),
				URL:        n.URL,
			}
			if rec.URL == "" {
				rec.URL = n.ID
			}
			records = append(records, rec)
		}
	})
	return records, nil
}

func decodeNodes(data []byte) ([]ldNode, error) {
	data = []byte(strings.TrimSpace(string(data)))
	if len(data) > 0 && data[0] == '[' {
		var nodes []ldNode
		if err := json.Unmarshal(data, &nodes); err != nil {
			return nil, err
		}
		return nodes, nil
	}
	var n ldNode
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, err
	}
	return []ldNode{n}, nil
}

func isPerson(raw json.RawMessage) bool {
	for _, t := range stringList(raw) {
		if t == "Person" {
			return true
		}
	}
	return false
}

// stringList accepts either a JSON string or an array of strings.
func stringList(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var one string
	if err := json.Unmarshal(raw, &one); err == nil {
		return []string{one}
	}
	var many []string
	if err := json.Unmarshal(raw, &many); err == nil {
		return many
	}
	return nil
}

// addressList accepts either a single PostalAddress object or an array.
func addressList(raw json.RawMessage) []model.PostalAddress {
	if len(raw) == 0 {
		return nil
	}
	var many []model.PostalAddress
	if err := json.Unmarshal(raw, &many); err == nil {
		return many
	}
	var one model.PostalAddress
	if err := json.Unmarshal(raw, &one); err == nil {
		return []model.PostalAddress{one}
	}
	return nil
}

func compact(values []string) []string {
	out := values[:0]
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
