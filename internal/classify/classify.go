// Package classify answers the two fuzzy questions the enrichment engine
// delegates to a chat model: a phone number's line type and the person name
// hidden in a free-text owner string.
package classify

import (
	"context"
	"strings"

	"github.com/sells-group/skiptrace/internal/model"
)

// Classifier is the text classifier used during enrichment.
type Classifier interface {
	ClassifyPhoneType(ctx context.Context, number string) (model.PhoneType, error)
	SplitPersonName(ctx context.Context, text string) (first, last string, err error)
}

const (
	phoneSystemPrompt = `You are an assistant that knows whether a US phone number is wireless (mobile) or landline. Only answer "W" or "L".`
	nameSystemPrompt  = `You are a naming knowledgeable assistant, skilled in finding first and last name from given string.`
)

func phonePrompt(number string) string {
	return `Is the phone number "` + number + `" a wireless/mobile or landline number in the United States? Reply only with "W" for wireless or "L" for landline.`
}

func namePrompt(text string) string {
	return "From the following string, extract the first name and last name. " +
		"Respond only with two lines in the form \"FirstName: <first>\" and \"LastName: <last>\", " +
		"no titles and no special characters.\n\"" + text + "\""
}

// ParsePhoneType maps a model answer to a phone type. Anything other than
// a bare W or L is Unknown.
func ParsePhoneType(answer string) model.PhoneType {
	switch strings.ToUpper(strings.TrimSpace(answer)) {
	case "W":
		return model.PhoneTypeWireless
	case "L":
		return model.PhoneTypeLandline
	default:
		return model.PhoneTypeUnknown
	}
}

// ParseNameLines reads "FirstName: X" / "LastName: Y" lines. Keys are
// matched case-insensitively, with or without the space.
func ParseNameLines(answer string) (first, last string) {
	for _, line := range strings.Split(answer, "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok || strings.Contains(value, ":") {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "firstname", "first name":
			first = value
		case "lastname", "last name":
			last = value
		}
	}
	return first, last
}
