package bizfile

import (
	"bytes"
	"encoding/json"
	"io"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// firstRow returns the first search row in document order. BizFile sends
// rows either as an object keyed by entity ID or as an array.
func firstRow(raw json.RawMessage) (*searchRow, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	delim, ok := tok.(json.Delim)
	if !ok || (delim != '{' && delim != '[') {
		return nil, nil
	}
	if !dec.More() {
		return nil, nil
	}
	if delim == '{' {
		// Skip the key.
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
	}

	var row searchRow
	if err := dec.Decode(&row); err != nil && err != io.EOF {
		return nil, err
	}
	return &row, nil
}

// rawID renders a JSON number or string ID as a plain string.
func rawID(raw json.RawMessage) string {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return ""
	}
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return strings.TrimSpace(str)
	}
	return s
}

// SplitAgentName takes the first and last space-separated tokens of an
// agent name, each title-cased. A Caser is stateful, so each call builds
// its own.
func SplitAgentName(full string) (first, last string) {
	parts := strings.Fields(full)
	if len(parts) == 0 {
		return "", ""
	}
	caser := cases.Title(language.English)
	return caser.String(parts[0]), caser.String(parts[len(parts)-1])
}

var (
	unitRe    = regexp.MustCompile(`#\d+`)
	nonLetter = regexp.MustCompile(`[^a-zA-Z]`)
)

// ParseAddressBlock normalizes a two-line BizFile address:
//
//	123 MAIN ST #4
//	LOS ANGELES, CA 90001
//
// The street loses unit markers; the state keeps letters only. Every part
// is lower-cased.
func ParseAddressBlock(block string) Address {
	lines := strings.Split(block, "\n")

	var addr Address
	addr.Street = strings.ToLower(strings.TrimSpace(unitRe.ReplaceAllString(strings.TrimSpace(lines[0]), "")))
	if len(lines) < 2 {
		return addr
	}
	cityState := strings.Split(lines[1], ",")
	addr.City = strings.ToLower(strings.TrimSpace(cityState[0]))
	if len(cityState) > 1 {
		addr.State = strings.ToLower(nonLetter.ReplaceAllString(strings.TrimSpace(cityState[1]), ""))
	}
	return addr
}
