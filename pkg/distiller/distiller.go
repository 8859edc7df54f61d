package distiller

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/fradelfo/distill/pkg/domain"
)

type Completer interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

type Config struct {
	Model string
	// TokenCeiling is the estimated-token limit; longer conversations are
	// rejected outright, never truncated.
	TokenCeiling int
	// Timeout bounds the model call. Distillation is a single blocking
	// request, not a job.
	Timeout time.Duration
}

var DefaultConfig = Config{
	Model:        openai.GPT4oMini,
	TokenCeiling: 24000,
	Timeout:      45 * time.Second,
}

// Distiller turns a raw conversation into a reusable prompt template.
type Distiller struct {
	api Completer
	cfg Config
}

func New(api Completer, cfg Config) *Distiller {
	if cfg.Model == "" {
		cfg.Model = DefaultConfig.Model
	}
	if cfg.TokenCeiling <= 0 {
		cfg.TokenCeiling = DefaultConfig.TokenCeiling
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig.Timeout
	}
	return &Distiller{api: api, cfg: cfg}
}

// EstimateTokens is the chars/4 heuristic. It only gates the ceiling
// check, so being a rough overcount on CJK text is acceptable: those
// conversations are rejected later by the API's own limit, not corrupted.
func EstimateTokens(conv *domain.Conversation) int {
	total := 0
	for _, m := range conv.Messages {
		total += len(m.Content) / 4
	}
	return total
}

// Distill produces a validated prompt from conv. The conversation is
// only read; privacy handling (persist or scrub) is the caller's job.
func (d *Distiller) Distill(ctx context.Context, conv *domain.Conversation) (domain.Prompt, error) {
	if conv == nil || conv.Empty() {
		return domain.Prompt{}, domain.ErrNoConversation
	}
	if EstimateTokens(conv) > d.cfg.TokenCeiling {
		return domain.Prompt{}, domain.ErrConversationTooLong
	}

	ctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	resp, err := d.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: d.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt()},
			{Role: openai.ChatMessageRoleUser, Content: transcript(conv)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return domain.Prompt{}, fmt.Errorf("distilling conversation: %w", err)
	}
	if len(resp.Choices) == 0 {
		return domain.Prompt{}, fmt.Errorf("distilling conversation: empty completion")
	}

	prompt := parseOutput(resp.Choices[0].Message.Content)
	repairPrompt(&prompt, conv)
	prompt.SourceSite = conv.Site

	slog.InfoContext(ctx, "conversation distilled",
		"title_len", len(prompt.Title),
		"variables", len(prompt.Variables),
		"tags", len(prompt.Tags))

	return prompt, nil
}

// transcript renders the conversation for the model. Code fences pass
// through verbatim.
func transcript(conv *domain.Conversation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Site: %s\n\n", conv.Site)
	for _, m := range conv.Messages {
		fmt.Fprintf(&b, "[%s]\n%s\n\n", m.Role, m.Content)
	}
	return b.String()
}

func systemPrompt() string {
	schema := jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"title": {Type: jsonschema.String, Description: "At most 60 characters"},
			"body":  {Type: jsonschema.String, Description: "The reusable prompt with {{variable}} placeholders"},
			"variables": {Type: jsonschema.Array, Items: &jsonschema.Definition{
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"name":        {Type: jsonschema.String},
					"description": {Type: jsonschema.String},
					"required":    {Type: jsonschema.Boolean},
				},
				Required: []string{"name"},
			}},
			"tags": {Type: jsonschema.Array, Items: &jsonschema.Definition{Type: jsonschema.String}},
		},
		Required: []string{"title", "body", "variables", "tags"},
	}
	schemaJSON, _ := json.Marshal(schema)

	return "You turn an AI chat conversation into one reusable prompt template.\n" +
		"Replace the user's concrete inputs with descriptive {{snake_case}} placeholders, " +
		"never positional ones. Declare every placeholder in variables and nothing else. " +
		"Keep code blocks from the conversation verbatim, fences included. " +
		"Conversations in any language are fine; answer in the conversation's language. " +
		"Respond with a single JSON object matching this schema:\n" + string(schemaJSON)
}
