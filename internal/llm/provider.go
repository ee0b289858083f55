package llm

import (
	"fmt"
	"net/http"

	json "github.com/goccy/go-json"

	"github.com/edura/edura-core/internal/config"
)

// Request is everything needed for one upstream call.
type Request struct {
	URL    string
	Body   []byte
	Header http.Header
}

// Provider builds one upstream protocol's request and decodes its stream
// lines. Implementations are stateless and safe to share across requests.
type Provider interface {
	// Name identifies the provider in logs and metrics.
	Name() string
	// BuildRequest returns a *ConfigError when credentials or endpoints are
	// missing; no network call may happen in that case.
	BuildRequest(msgs []Message) (*Request, error)
	// ParseLine extracts the text delta carried by one raw upstream line.
	// Non-data lines, the terminator, and malformed JSON report ok=false.
	ParseLine(line []byte) (delta string, ok bool)
}

// Select resolves the configured provider kind into a concrete Provider.
func Select(cfg config.LLMConfig) (Provider, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		return NewOpenAI(cfg), nil
	case config.ProviderOpenAITemplate:
		return NewTemplate(NewOpenAI(cfg)), nil
	case config.ProviderAzure:
		return NewAzure(cfg, false), nil
	case config.ProviderAzureSearch:
		return NewAzure(cfg, true), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
}

func jsonRequest(url string, body any) (*Request, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	header := make(http.Header)
	header.Set("Content-Type", "application/json")
	header.Set("Accept", "text/event-stream")
	return &Request{URL: url, Body: raw, Header: header}, nil
}
