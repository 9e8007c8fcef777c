// Package llm talks to structured-generation services. Providers return the
// raw JSON-bearing text; validation and repair happen in the extract package.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"newslens/internal/config"
	"newslens/internal/schema"
)

// Mode selects how the provider is asked to produce structured output.
type Mode int

const (
	// ModeTool forces a single function call whose arguments follow the schema.
	ModeTool Mode = iota
	// ModeJSON asks for a bare JSON object response.
	ModeJSON
)

func (m Mode) String() string {
	if m == ModeTool {
		return "tool"
	}
	return "json"
}

var (
	// ErrEmptyPrompt is returned when Generate is called without a prompt.
	ErrEmptyPrompt = errors.New("llm: prompt cannot be empty")

	// ErrNoChoices is returned when the service answered without any candidate.
	ErrNoChoices = errors.New("llm: no choices in response")
)

// Request is a single structured-generation call.
type Request struct {
	Model               string
	System              string
	Prompt              string
	Schema              *schema.ExtractionSchema
	FunctionName        string
	FunctionDescription string
	Mode                Mode
	MaxTokens           int32
	Temperature         float32
}

// Response carries the raw text produced by the service. For tool calls the
// text is the function arguments.
type Response struct {
	Text             string
	Model            string
	FinishReason     string
	ViaTool          bool
	PromptTokens     int
	CompletionTokens int
}

// Provider generates structured output.
type Provider interface {
	Name() string
	Generate(ctx context.Context, req Request) (*Response, error)
}

// ToolCapable is implemented by providers that can be told not to use tool
// calls.
type ToolCapable interface {
	SupportsTools() bool
}

// ProviderError is a failure reported by the remote service.
type ProviderError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s API error %d: %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s API error: %s", e.Provider, e.Message)
}

// NewProvider builds the provider selected by configuration.
func NewProvider(ctx context.Context, cfg config.LLM) (Provider, error) {
	timeout := config.Duration(cfg.Timeout, 60*time.Second)
	switch cfg.Provider {
	case "gemini", "":
		return NewGeminiProvider(ctx, cfg.Gemini.APIKey, cfg.Model)
	case "openai":
		return NewOpenAIProvider(OpenAIOptions{
			APIKey:       cfg.OpenAI.APIKey,
			BaseURL:      cfg.OpenAI.BaseURL,
			Model:        cfg.Model,
			Timeout:      timeout,
			DisableTools: cfg.OpenAI.DisableTools,
		})
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}
