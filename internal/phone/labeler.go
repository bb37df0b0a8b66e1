// Package phone labels scraped phone numbers with their line type.
package phone

import (
	"context"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/sells-group/skiptrace/internal/model"
)

var validFormat = regexp.MustCompile(`^\(\d{3}\)\s?\d{3}-\d{4}$`)

// IsValid reports whether number is in "(###) ###-####" form.
func IsValid(number string) bool {
	return validFormat.MatchString(number)
}

// TypeClassifier answers whether a US number is wireless or landline.
type TypeClassifier interface {
	ClassifyPhoneType(ctx context.Context, number string) (model.PhoneType, error)
}

// Labeler classifies phone numbers, remembering answers for its lifetime.
// Create one per job. It is safe for concurrent use.
type Labeler struct {
	classifier TypeClassifier

	mu       sync.Mutex
	cache    map[string]model.PhoneType
	inflight singleflight.Group
}

// NewLabeler creates a Labeler.
func NewLabeler(classifier TypeClassifier) *Labeler {
	return &Labeler{
		classifier: classifier,
		cache:      make(map[string]model.PhoneType),
	}
}

// LabelPhoneNumbers returns one LabeledPhone per distinct trimmed number in
// first-occurrence order. Malformed numbers are Unknown and never reach the
// classifier; classifier errors also yield Unknown.
func (l *Labeler) LabelPhoneNumbers(ctx context.Context, raw []string) []model.LabeledPhone {
	seen := make(map[string]struct{}, len(raw))
	out := make([]model.LabeledPhone, 0, len(raw))
	for _, r := range raw {
		number := strings.TrimSpace(r)
		if _, ok := seen[number]; ok {
			continue
		}
		seen[number] = struct{}{}
		out = append(out, model.LabeledPhone{Number: number, Type: l.typeOf(ctx, number)})
	}
	return out
}

func (l *Labeler) typeOf(ctx context.Context, number string) model.PhoneType {
	if !IsValid(number) {
		return model.PhoneTypeUnknown
	}

	l.mu.Lock()
	t, ok := l.cache[number]
	l.mu.Unlock()
	if ok {
		return t
	}

	// Concurrent rows asking about the same number share one call.
	v, err, _ := l.inflight.Do(number, func() (any, error) {
		t, err := l.classifier.ClassifyPhoneType(ctx, number)
		if err != nil {
			return model.PhoneTypeUnknown, err
		}
		switch t {
		case model.PhoneTypeWireless, model.PhoneTypeLandline:
		default:
			t = model.PhoneTypeUnknown
		}
		l.mu.Lock()
		l.cache[number] = t
		l.mu.Unlock()
		return t, nil
	})
	if err != nil {
		zap.L().Warn("phone: classify failed", zap.String("number", number), zap.Error(err))
		return model.PhoneTypeUnknown
	}
	return v.(model.PhoneType)
}
