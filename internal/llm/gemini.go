package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"google.golang.org/genai"
)

const (
	// DefaultGeminiModel is used when no model is configured.
	DefaultGeminiModel = "gemini-flash-lite-latest"
)

// GeminiProvider generates structured output through the Gemini API.
type GeminiProvider struct {
	apiKey    string
	modelName string
	gClient   *genai.Client
}

// NewGeminiProvider creates a Gemini-backed provider.
// The API key is taken from the argument, then GEMINI_API_KEY, then
// GOOGLE_GEMINI_API_KEY.
func NewGeminiProvider(ctx context.Context, apiKey, modelName string) (*GeminiProvider, error) {
	if apiKey == "" {
		if apiKey = os.Getenv("GEMINI_API_KEY"); apiKey == "" {
			apiKey = os.Getenv("GOOGLE_GEMINI_API_KEY")
		}
	}
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required. Set GEMINI_API_KEY environment variable or llm.gemini.api_key in config file")
	}
	if modelName == "" {
		modelName = DefaultGeminiModel
	}

	gClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiProvider{
		apiKey:    apiKey,
		modelName: modelName,
		gClient:   gClient,
	}, nil
}

// Name implements Provider.
func (g *GeminiProvider) Name() string { return "gemini" }

// SupportsTools implements ToolCapable.
func (g *GeminiProvider) SupportsTools() bool { return true }

// Generate implements Provider.
func (g *GeminiProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	if req.Prompt == "" {
		return nil, ErrEmptyPrompt
	}

	modelName := g.modelName
	if req.Model != "" {
		modelName = req.Model
	}

	contents := []*genai.Content{{
		Parts: []*genai.Part{{Text: req.Prompt}},
		Role:  "user",
	}}

	resp, err := g.gClient.Models.GenerateContent(ctx, modelName, contents, buildGeminiConfig(req))
	if err != nil {
		return nil, wrapGeminiError(err)
	}

	out := &Response{Model: modelName}
	if resp.UsageMetadata != nil {
		out.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		out.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	if len(resp.Candidates) == 0 {
		return nil, ErrNoChoices
	}
	out.FinishReason = string(resp.Candidates[0].FinishReason)

	if calls := resp.FunctionCalls(); len(calls) > 0 {
		args, err := json.Marshal(calls[0].Args)
		if err != nil {
			return nil, fmt.Errorf("failed to encode function call arguments: %w", err)
		}
		out.Text = string(args)
		out.ViaTool = true
		return out, nil
	}

	out.Text = resp.Text()
	return out, nil
}

// buildGeminiConfig maps a Request onto the SDK's generation config.
func buildGeminiConfig(req Request) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(req.Temperature),
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = req.MaxTokens
	}
	if req.System != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.System}}}
	}
	if req.Schema == nil {
		config.ResponseMIMEType = "application/json"
		return config
	}

	switch req.Mode {
	case ModeTool:
		config.Tools = []*genai.Tool{{
			FunctionDeclarations: []*genai.FunctionDeclaration{{
				Name:        req.FunctionName,
				Description: req.FunctionDescription,
				Parameters:  req.Schema.GenaiSchema(),
			}},
		}}
		config.ToolConfig = &genai.ToolConfig{
			FunctionCallingConfig: &genai.FunctionCallingConfig{
				Mode:                 genai.FunctionCallingConfigModeAny,
				AllowedFunctionNames: []string{req.FunctionName},
			},
		}
	default:
		config.ResponseMIMEType = "application/json"
		config.ResponseSchema = req.Schema.GenaiSchema()
	}
	return config
}

func wrapGeminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &ProviderError{Provider: "gemini", StatusCode: apiErr.Code, Message: apiErr.Message}
	}
	return fmt.Errorf("failed to generate content: %w", err)
}
