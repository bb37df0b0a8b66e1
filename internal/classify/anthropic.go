package classify

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/skiptrace/internal/model"
	"github.com/sells-group/skiptrace/pkg/anthropic"
)

// AnthropicClassifier asks a Claude model.
type AnthropicClassifier struct {
	client anthropic.Client
	model  string
}

// NewAnthropic creates a classifier backed by the Anthropic Messages API.
func NewAnthropic(client anthropic.Client, model string) *AnthropicClassifier {
	return &AnthropicClassifier{client: client, model: model}
}

// ClassifyPhoneType implements Classifier.
func (c *AnthropicClassifier) ClassifyPhoneType(ctx context.Context, number string) (model.PhoneType, error) {
	text, err := c.ask(ctx, "phone_type", phoneSystemPrompt, phonePrompt(number), 4)
	if err != nil {
		return model.PhoneTypeUnknown, err
	}
	return ParsePhoneType(text), nil
}

// SplitPersonName implements Classifier.
func (c *AnthropicClassifier) SplitPersonName(ctx context.Context, input string) (string, string, error) {
	text, err := c.ask(ctx, "name_split", nameSystemPrompt, namePrompt(input), 64)
	if err != nil {
		return "", "", err
	}
	first, last := ParseNameLines(text)
	return first, last, nil
}

func (c *AnthropicClassifier) ask(ctx context.Context, task, system, prompt string, maxTokens int64) (string, error) {
	temp := 0.0
	resp, err := c.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       c.model,
		MaxTokens:   maxTokens,
		System:      []anthropic.SystemBlock{{Text: system}},
		Messages:    []anthropic.Message{{Role: "user", Content: prompt}},
		Temperature: &temp,
	})
	if err != nil {
		return "", eris.Wrapf(err, "classify: %s", task)
	}
	resp.Usage.LogCost(c.model, task)
	return resp.Text(), nil
}
