package llm

// newOpenRouterClient builds an OpenAI-compatible client pointed at the
// OpenRouter gateway. OpenRouter attributes traffic through two extra
// headers on every request.
func newOpenRouterClient(cfg ClientConfig) *OpenAIClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://openrouter.ai/api/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "openai/gpt-4o-mini"
	}
	c := newOpenAIClient(cfg)
	c.headers = map[string]string{
		"HTTP-Referer": "https://incrementum.app",
		"X-Title":      "Incrementum",
	}
	return c
}
