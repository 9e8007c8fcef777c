// Package extract turns an unreliable structured-generation service into a
// total function: every call yields a tagged Result, never a Go error.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"newslens/internal/llm"
	"newslens/internal/logger"
	"newslens/internal/schema"
)

// Token budget bounds for tool-call generation.
const (
	MinToolTokens = 1000
	MaxToolTokens = 4000
)

// Request describes one extraction.
type Request struct {
	Kind        schema.Kind
	Content     string
	Model       string // empty uses the provider default
	MaxTokens   int32
	Temperature float32
}

// Client runs constrained generation followed by validation and repair.
// It keeps no state between calls.
type Client struct {
	provider llm.Provider
	registry *schema.Registry
	log      *slog.Logger
}

// NewClient creates an extraction client.
func NewClient(provider llm.Provider, registry *schema.Registry) *Client {
	return &Client{
		provider: provider,
		registry: registry,
		log:      logger.With("component", "extract"),
	}
}

// TokenBudget returns the max-token value sent in tool mode. Requests below
// MinToolTokens are raised to three tokens per schema byte, bounded to
// [MinToolTokens, MaxToolTokens].
func TokenBudget(requested int32, schemaSize int) int32 {
	if requested >= MinToolTokens {
		return requested
	}
	budget := schemaSize * 3
	if budget < MinToolTokens {
		budget = MinToolTokens
	}
	if budget > MaxToolTokens {
		budget = MaxToolTokens
	}
	return int32(budget)
}

// IsSchemaError reports whether a provider error is the service rejecting
// the requested structure rather than a transport failure.
func IsSchemaError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "schema") ||
		strings.Contains(msg, "validation") ||
		strings.Contains(msg, "function")
}

// Extract issues a single request and classifies the outcome.
func (c *Client) Extract(ctx context.Context, req Request) Result {
	entry, err := c.registry.Get(req.Kind)
	if err != nil {
		return Result{Tag: TagSchemaError, Cause: err.Error()}
	}

	if strings.TrimSpace(req.Content) == "" {
		return Result{Tag: TagDefault, Record: entry.DefaultRecord("content is empty"), Cause: "content is empty"}
	}

	mode := llm.ModeTool
	if tc, ok := c.provider.(llm.ToolCapable); ok && !tc.SupportsTools() {
		mode = llm.ModeJSON
	}

	maxTokens := req.MaxTokens
	if mode == llm.ModeTool {
		maxTokens = TokenBudget(req.MaxTokens, entry.Schema.Size())
	}

	llmReq := llm.Request{
		Model:               req.Model,
		System:              entry.System,
		Prompt:              entry.Template.Render(req.Content),
		Schema:              entry.Schema,
		FunctionName:        schema.FunctionName,
		FunctionDescription: schema.FunctionDescription,
		Mode:                mode,
		MaxTokens:           maxTokens,
		Temperature:         req.Temperature,
	}

	c.log.Debug("Sending extraction request",
		"kind", req.Kind,
		"provider", c.provider.Name(),
		"mode", mode.String(),
		"max_tokens", maxTokens,
		"content_len", len(req.Content))

	resp, err := c.provider.Generate(ctx, llmReq)
	if err != nil {
		if ctx.Err() == nil && IsSchemaError(err) {
			c.log.Warn("Provider rejected extraction schema", "kind", req.Kind, "error", err.Error())
			return Result{Tag: TagSchemaError, Cause: fmt.Sprintf("schema validation error: %v", err)}
		}
		c.log.Warn("Extraction request failed", "kind", req.Kind, "error", err.Error())
		return Result{Tag: TagTransportError, Cause: err.Error()}
	}

	if isTruncated(resp.FinishReason) {
		c.log.Warn("Extraction output hit the token limit", "kind", req.Kind, "max_tokens", maxTokens)
	}

	result := c.interpret(entry, resp.Text)
	result.Model = resp.Model
	result.ViaTool = resp.ViaTool
	return result
}

// interpret runs the parse / repair / default pipeline on raw text.
func (c *Client) interpret(entry schema.Entry, text string) Result {
	if strings.TrimSpace(text) == "" {
		c.log.Warn("Empty extraction output, using default record", "kind", entry.Kind)
		return Result{Tag: TagDefault, Record: entry.DefaultRecord("empty response from LLM"), Cause: "empty response from LLM"}
	}

	var record map[string]any
	decodeErr := json.Unmarshal([]byte(text), &record)
	if decodeErr == nil && record != nil {
		return c.checked(entry, Result{Tag: TagOK, Record: record, Raw: text})
	}
	if decodeErr == nil {
		decodeErr = fmt.Errorf("expected a JSON object")
	}

	repaired, prefix, err := Repair(text)
	if err == nil {
		c.log.Info("Repaired truncated extraction output", "kind", entry.Kind, "kept", len(prefix), "received", len(text))
		return c.checked(entry, Result{Tag: TagRepaired, Record: repaired, Raw: text})
	}

	cause := fmt.Sprintf("failed to decode JSON response: %v", decodeErr)
	c.log.Warn("Unusable extraction output, using default record", "kind", entry.Kind, "error", cause)
	return Result{Tag: TagDefault, Record: entry.DefaultRecord(cause), Raw: text, Cause: cause}
}

// checked attaches local schema violations. They are reported, not enforced.
func (c *Client) checked(entry schema.Entry, r Result) Result {
	r.Violations = entry.Schema.Validate(r.Record)
	if len(r.Violations) > 0 {
		c.log.Warn("Extraction output does not fully match schema",
			"kind", entry.Kind,
			"tag", r.Tag,
			"violations", len(r.Violations),
			"first", r.Violations[0])
	}
	return r
}

func isTruncated(finishReason string) bool {
	switch strings.ToLower(finishReason) {
	case "length", "max_tokens":
		return true
	}
	return false
}
