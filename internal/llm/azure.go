package llm

import (
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"github.com/tidwall/gjson"

	"github.com/edura/edura-core/internal/config"
)

const defaultRoleInformation = "You represent an AI Agent."

// Azure talks to an Azure OpenAI deployment. When search is enabled it uses
// the extensions path and attaches a document-search data source.
type Azure struct {
	apiKey      string
	endpoint    string
	deployment  string
	apiVersion  string
	temperature float32
	search      config.SearchConfig
	// requireSearch fails requests fast when the search fields are incomplete.
	requireSearch bool
}

// NewAzure creates the Azure provider. With requireSearch the retrieval
// fields are mandatory; otherwise retrieval is used only when all are set.
func NewAzure(cfg config.LLMConfig, requireSearch bool) *Azure {
	return &Azure{
		apiKey:        cfg.APIKey,
		endpoint:      strings.TrimSuffix(cfg.Endpoint, "/"),
		deployment:    cfg.Deployment,
		apiVersion:    cfg.APIVersion,
		temperature:   cfg.Temperature,
		search:        cfg.Search,
		requireSearch: requireSearch,
	}
}

func (p *Azure) Name() string {
	if p.requireSearch {
		return config.ProviderAzureSearch
	}
	return config.ProviderAzure
}

// Retrieval reports whether requests carry the search data source.
func (p *Azure) Retrieval() bool {
	return p.requireSearch || p.search.Complete()
}

type azureRequest struct {
	Messages    []openai.ChatCompletionMessage `json:"messages"`
	Stream      bool                           `json:"stream"`
	Temperature float32                        `json:"temperature"`
	DataSources []dataSource                   `json:"dataSources,omitempty"`
}

type dataSource struct {
	Type       string               `json:"type"`
	Parameters dataSourceParameters `json:"parameters"`
}

type dataSourceParameters struct {
	Endpoint              string        `json:"endpoint"`
	Key                   string        `json:"key"`
	IndexName             string        `json:"indexName"`
	SemanticConfiguration string        `json:"semanticConfiguration"`
	QueryType             string        `json:"queryType"`
	FieldsMapping         fieldsMapping `json:"fieldsMapping"`
	InScope               bool          `json:"inScope"`
	RoleInformation       string        `json:"roleInformation"`
}

type fieldsMapping struct {
	ContentFieldsSeparator string   `json:"contentFieldsSeparator"`
	ContentFields          []string `json:"contentFields"`
	FilepathField          *string  `json:"filepathField"`
	TitleField             string   `json:"titleField"`
	URLField               *string  `json:"urlField"`
}

func (p *Azure) BuildRequest(msgs []Message) (*Request, error) {
	if p.apiKey == "" || p.endpoint == "" || p.deployment == "" {
		return nil, &ConfigError{Provider: p.Name(), Message: "Azure OpenAI configuration missing."}
	}
	if p.requireSearch && !p.search.Complete() {
		return nil, &ConfigError{Provider: p.Name(), Message: "Azure Cognitive Search configuration missing."}
	}

	path := "chat/completions"
	body := azureRequest{
		Messages:    toOpenAI(msgs),
		Stream:      true,
		Temperature: p.temperature,
	}
	if p.Retrieval() {
		path = "extensions/chat/completions"
		body.DataSources = []dataSource{p.dataSource(msgs)}
	}

	url := fmt.Sprintf("%s/openai/deployments/%s/%s?api-version=%s", p.endpoint, p.deployment, path, p.apiVersion)
	req, err := jsonRequest(url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("api-key", p.apiKey)
	return req, nil
}

func (p *Azure) dataSource(msgs []Message) dataSource {
	role := defaultRoleInformation
	if len(msgs) > 0 && msgs[0].Role == RoleSystem {
		role = msgs[0].Content
	}
	return dataSource{
		Type: "AzureCognitiveSearch",
		Parameters: dataSourceParameters{
			Endpoint:  p.search.Endpoint,
			Key:       p.search.Key,
			IndexName: p.search.Index,
			QueryType: "simple",
			FieldsMapping: fieldsMapping{
				ContentFieldsSeparator: "\n",
				ContentFields:          []string{"content"},
				TitleField:             "title",
			},
			InScope:         true,
			RoleInformation: role,
		},
	}
}

// ParseLine understands both the plain chunk shape and the extensions shape,
// where the delta sits under choices.0.messages.0.
func (p *Azure) ParseLine(line []byte) (string, bool) {
	payload, ok := dataPayload(line)
	if !ok || !gjson.ValidBytes(payload) {
		return "", false
	}
	choice := gjson.GetBytes(payload, "choices.0")
	if delta := choice.Get("delta.content"); delta.Exists() {
		return delta.String(), delta.String() != ""
	}
	if delta := choice.Get("messages.0.delta"); delta.Exists() {
		// tool frames carry retrieved citations, not answer text
		if delta.Get("role").String() == openai.ChatMessageRoleTool {
			return "", false
		}
		content := delta.Get("content").String()
		return content, content != ""
	}
	return "", false
}
