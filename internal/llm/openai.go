package llm

import (
	"strings"

	json "github.com/goccy/go-json"
	"github.com/sashabaranov/go-openai"

	"github.com/edura/edura-core/internal/config"
)

const defaultOpenAIEndpoint = "https://api.openai.com/v1"

// OpenAI talks to the OpenAI chat completions API directly, forwarding the
// message list verbatim.
type OpenAI struct {
	apiKey   string
	model    string
	endpoint string
}

// NewOpenAI creates the direct-completion provider. It ignores cfg.Endpoint,
// which belongs to Azure; only cfg.BaseURL redirects it.
func NewOpenAI(cfg config.LLMConfig) *OpenAI {
	endpoint := strings.TrimSuffix(cfg.BaseURL, "/")
	if endpoint == "" {
		endpoint = defaultOpenAIEndpoint
	}
	return &OpenAI{apiKey: cfg.APIKey, model: cfg.Model, endpoint: endpoint}
}

func (p *OpenAI) Name() string { return config.ProviderOpenAI }

func (p *OpenAI) BuildRequest(msgs []Message) (*Request, error) {
	if p.apiKey == "" {
		return nil, &ConfigError{Provider: p.Name(), Message: "OpenAI API Key missing."}
	}
	req, err := jsonRequest(p.endpoint+"/chat/completions", openai.ChatCompletionRequest{
		Model:    p.model,
		Messages: toOpenAI(msgs),
		Stream:   true,
	})
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	return req, nil
}

func (p *OpenAI) ParseLine(line []byte) (string, bool) {
	payload, ok := dataPayload(line)
	if !ok {
		return "", false
	}
	var chunk openai.ChatCompletionStreamResponse
	if err := json.Unmarshal(payload, &chunk); err != nil {
		return "", false
	}
	if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
		return "", false
	}
	return chunk.Choices[0].Delta.Content, true
}
