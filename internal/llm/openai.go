package llm

const (
	ProviderOpenAI       = "openai"
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	DefaultOpenAIModel   = "gpt-4o-mini"
)

// OpenAIClient is the production adapter: standard OpenAI-compatible
// chat/completions wire format and Bearer auth. Other vendors with the
// same wire shape under a different base URL can embed *Client the same
// way.
type OpenAIClient struct {
	*Client
}

// NewOpenAIClient builds an OpenAIClient with the package defaults.
func NewOpenAIClient(opts ...ClientOption) *OpenAIClient {
	presets := []ClientOption{
		WithProvider(ProviderOpenAI),
		WithModel(DefaultOpenAIModel),
		WithBaseURL(DefaultOpenAIBaseURL),
	}
	base := NewClient(append(presets, opts...)...)
	oai := &OpenAIClient{Client: base}
	base.hooks = oai
	return oai
}

func (c *OpenAIClient) SetAPIKey(apiKey, customURL, customModel string) {
	c.APIKey = apiKey
	if customURL != "" {
		c.BaseURL = customURL
	}
	if customModel != "" {
		c.Model = customModel
	}
}
