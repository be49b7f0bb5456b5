package llm

// preset fills in connection defaults for a hosted or local server that
// speaks the OpenAI wire format.
type preset struct {
	baseURL    string
	pathPrefix string
	model      string
}

var presets = map[string]preset{
	// LM Studio's local server.
	"lmstudio": {baseURL: "http://localhost:1234", pathPrefix: "/v1"},
	// text-embedding-3-small is 1536-dim; set embedding_dim to match.
	"openai": {baseURL: "https://api.openai.com", pathPrefix: "/v1", model: "text-embedding-3-small"},
	// Gemini's compatibility endpoint carries its own version segment.
	// gemini-embedding-001 vectors are 3072-dim.
	"gemini": {baseURL: "https://generativelanguage.googleapis.com/v1beta/openai"},
	"custom": {pathPrefix: "/v1"},
}

// newPreset builds an OpenAI-compatible provider, keeping any field the
// caller already set.
func newPreset(p preset, cfg Config) Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = p.baseURL
	}
	if cfg.Model == "" {
		cfg.Model = p.model
	}
	return &openAICompatProvider{base: newOpenAICompatClientPrefix(cfg, p.pathPrefix)}
}
