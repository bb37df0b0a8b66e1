package classify

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/skiptrace/internal/model"
	"github.com/sells-group/skiptrace/pkg/openai"
)

// OpenAIClassifier asks an OpenAI chat model.
type OpenAIClassifier struct {
	client openai.Client
	model  string
}

// NewOpenAI creates a classifier backed by OpenAI chat completions.
func NewOpenAI(client openai.Client, model string) *OpenAIClassifier {
	return &OpenAIClassifier{client: client, model: model}
}

// ClassifyPhoneType implements Classifier.
func (c *OpenAIClassifier) ClassifyPhoneType(ctx context.Context, number string) (model.PhoneType, error) {
	text, err := c.ask(ctx, "phone_type", phoneSystemPrompt, phonePrompt(number), 4)
	if err != nil {
		return model.PhoneTypeUnknown, err
	}
	return ParsePhoneType(text), nil
}

// SplitPersonName implements Classifier.
func (c *OpenAIClassifier) SplitPersonName(ctx context.Context, input string) (string, string, error) {
	text, err := c.ask(ctx, "name_split", nameSystemPrompt, namePrompt(input), 64)
	if err != nil {
		return "", "", err
	}
	first, last := ParseNameLines(text)
	return first, last, nil
}

func (c *OpenAIClassifier) ask(ctx context.Context, task, system, prompt string, maxTokens int64) (string, error) {
	temp := 0.0
	resp, err := c.client.Complete(ctx, openai.CompletionRequest{
		Model:       c.model,
		System:      system,
		User:        prompt,
		MaxTokens:   maxTokens,
		Temperature: &temp,
	})
	if err != nil {
		return "", eris.Wrapf(err, "classify: %s", task)
	}
	zap.L().Debug("classify: completion",
		zap.String("model", c.model),
		zap.String("task", task),
		zap.Int64("prompt_tokens", resp.PromptTokens),
		zap.Int64("completion_tokens", resp.CompletionTokens),
	)
	return resp.Content, nil
}
