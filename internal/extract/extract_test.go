package extract

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"newslens/internal/llm"
	"newslens/internal/schema"
)

type scriptedProvider struct {
	text    string
	err     error
	noTools bool
	calls   []llm.Request
}

func (p *scriptedProvider) Name() string        { return "scripted" }
func (p *scriptedProvider) SupportsTools() bool { return !p.noTools }

func (p *scriptedProvider) Generate(ctx context.Context, req llm.Request) (*llm.Response, error) {
	p.calls = append(p.calls, req)
	if p.err != nil {
		return nil, p.err
	}
	return &llm.Response{Text: p.text, Model: "scripted-model", ViaTool: req.Mode == llm.ModeTool}, nil
}

const validTriage = `{"category":"Health","sentiment":"Factual","key_claim":"Trial starts","requires_deep_analysis":"No",` +
	`"keywords":["vaccine","trial","phase3"],"main_entities":[{"text":"WHO","type":"ORGANIZATION"}],` +
	`"narrative_focus":{"primary_focus":"Facts/Events","emphasized_aspects":[]},` +
	`"source_style":{"depth":"Standard","formality":"Formal","technical_level":"General audience","use_of_sources":"Limited sources"}}`

func newTestClient(p llm.Provider) *Client {
	return NewClient(p, schema.NewRegistry())
}

func triageRequest(content string) Request {
	return Request{Kind: schema.KindTriage, Content: content, Temperature: 0.3}
}

func TestRepair(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{
			name:  "trailing garbage after object",
			input: `{"a": 1, "b": {"c": "x"}} and then some text`,
			want:  `{"a": 1, "b": {"c": "x"}}`,
		},
		{
			name:  "second object truncated",
			input: `{"a": "first"}{"a": "sec`,
			want:  `{"a": "first"}`,
		},
		{
			name:  "braces inside strings are ignored",
			input: `{"text": "a } tricky { value", "q": "say \"}\""} trailing`,
			want:  `{"text": "a } tricky { value", "q": "say \"}\""}`,
		},
		{
			name:    "does not start with brace",
			input:   `Sure! Here is the JSON: {"a": 1}`,
			wantErr: ErrNotObject,
		},
		{
			name:    "never balanced",
			input:   `{"a": {"b": 1}`,
			wantErr: ErrUnrepairable,
		},
		{
			name:    "balanced but invalid",
			input:   `{"a": 1,}`,
			wantErr: ErrUnrepairable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record, prefix, err := Repair(tt.input)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				if record != nil {
					t.Errorf("expected no record, got %v", record)
				}
				return
			}
			if err != nil {
				t.Fatalf("Repair failed: %v", err)
			}
			if prefix != tt.want {
				t.Errorf("prefix mismatch:\n got: %s\nwant: %s", prefix, tt.want)
			}
			var want map[string]any
			_ = json.Unmarshal([]byte(tt.want), &want)
			if len(record) != len(want) {
				t.Errorf("record mismatch: got %v want %v", record, want)
			}
		})
	}
}

func TestTokenBudget(t *testing.T) {
	tests := []struct {
		requested int32
		size      int
		want      int32
	}{
		{requested: 0, size: 100, want: 1000},
		{requested: 500, size: 600, want: 1800},
		{requested: 999, size: 5000, want: 4000},
		{requested: 1000, size: 5000, want: 1000},
		{requested: 2500, size: 10, want: 2500},
	}
	for _, tt := range tests {
		if got := TokenBudget(tt.requested, tt.size); got != tt.want {
			t.Errorf("TokenBudget(%d, %d) = %d, want %d", tt.requested, tt.size, got, tt.want)
		}
	}
}

func TestIsSchemaError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{errors.New("Invalid Schema for function"), true},
		{errors.New("request VALIDATION failed"), true},
		{errors.New("unknown function format_article_analysis"), true},
		{errors.New("connection reset by peer"), false},
		{&llm.ProviderError{Provider: "openai", StatusCode: 429, Message: "rate limited"}, false},
		{nil, false},
	}
	for _, tt := range tests {
		if got := IsSchemaError(tt.err); got != tt.want {
			t.Errorf("IsSchemaError(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestExtract_OK(t *testing.T) {
	p := &scriptedProvider{text: validTriage}
	res := newTestClient(p).Extract(context.Background(), triageRequest("A vaccine trial begins."))

	if res.Tag != TagOK {
		t.Fatalf("expected ok, got %s (%s)", res.Tag, res.Cause)
	}
	if res.Record["category"] != "Health" {
		t.Errorf("unexpected category %v", res.Record["category"])
	}
	if len(res.Violations) != 0 {
		t.Errorf("expected no violations, got %v", res.Violations)
	}
	if !res.ViaTool {
		t.Error("expected tool mode")
	}

	if len(p.calls) != 1 {
		t.Fatalf("expected exactly one provider call, got %d", len(p.calls))
	}
	call := p.calls[0]
	if call.Mode != llm.ModeTool || call.FunctionName != schema.FunctionName {
		t.Errorf("expected forced tool call, got mode=%s fn=%s", call.Mode, call.FunctionName)
	}
	if call.MaxTokens < MinToolTokens || call.MaxTokens > MaxToolTokens {
		t.Errorf("expected clamped token budget, got %d", call.MaxTokens)
	}
	if !strings.Contains(call.Prompt, "A vaccine trial begins.") {
		t.Error("prompt does not contain content")
	}
}

func TestExtract_JSONModeWhenToolsDisabled(t *testing.T) {
	p := &scriptedProvider{text: validTriage, noTools: true}
	req := triageRequest("content")
	req.MaxTokens = 300
	newTestClient(p).Extract(context.Background(), req)

	if p.calls[0].Mode != llm.ModeJSON {
		t.Errorf("expected JSON mode, got %s", p.calls[0].Mode)
	}
	if p.calls[0].MaxTokens != 300 {
		t.Errorf("json mode should keep caller budget, got %d", p.calls[0].MaxTokens)
	}
}

func TestExtract_Repaired(t *testing.T) {
	p := &scriptedProvider{text: validTriage + `{"category": "Heal`}
	res := newTestClient(p).Extract(context.Background(), triageRequest("content"))

	if res.Tag != TagRepaired {
		t.Fatalf("expected repaired, got %s (%s)", res.Tag, res.Cause)
	}
	if res.Record["sentiment"] != "Factual" {
		t.Errorf("unexpected record %v", res.Record)
	}

	var payload map[string]any
	if err := json.Unmarshal(res.Payload(), &payload); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if payload["repaired"] != true {
		t.Error("expected repaired marker in payload")
	}
}

func TestExtract_DefaultSafety(t *testing.T) {
	entry, _ := schema.NewRegistry().Get(schema.KindTriage)

	for _, text := range []string{"", "   \n\t", "not json at all", `["array"]`, "null", `{"a": {"b"`} {
		t.Run(text, func(t *testing.T) {
			p := &scriptedProvider{text: text}
			res := newTestClient(p).Extract(context.Background(), triageRequest("content"))

			if res.Tag != TagDefault {
				t.Fatalf("expected default, got %s", res.Tag)
			}
			if res.Cause == "" {
				t.Error("expected a cause")
			}
			for _, key := range entry.Schema.Required {
				if _, ok := res.Record[key]; !ok {
					t.Errorf("default record missing %q", key)
				}
			}
			if res.Record["category"] != "Uncategorized" || res.Record["sentiment"] != "Neutral" {
				t.Errorf("unexpected default values %v", res.Record)
			}

			var payload map[string]any
			if err := json.Unmarshal(res.Payload(), &payload); err != nil {
				t.Fatalf("payload: %v", err)
			}
			if payload["error"] == nil || payload["error"] == "" {
				t.Error("expected error field in stored payload")
			}
		})
	}
}

func TestExtract_EmptyContentSkipsProvider(t *testing.T) {
	p := &scriptedProvider{text: validTriage}
	res := newTestClient(p).Extract(context.Background(), triageRequest("  "))

	if res.Tag != TagDefault {
		t.Errorf("expected default, got %s", res.Tag)
	}
	if len(p.calls) != 0 {
		t.Errorf("provider should not be called for empty content")
	}
}

func TestExtract_ProviderErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Tag
	}{
		{"schema rejection", &llm.ProviderError{Provider: "openai", StatusCode: 400, Message: "Invalid schema for function"}, TagSchemaError},
		{"transport failure", errors.New("dial tcp: connection refused"), TagTransportError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &scriptedProvider{err: tt.err}
			res := newTestClient(p).Extract(context.Background(), triageRequest("content"))

			if res.Tag != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, res.Tag)
			}
			if res.Usable() {
				t.Error("provider failures should not be usable")
			}
			if !res.Failed() {
				t.Error("expected Failed() to be true")
			}
			if len(p.calls) != 1 {
				t.Errorf("expected no retries, got %d calls", len(p.calls))
			}
		})
	}
}

func TestExtract_UnknownKind(t *testing.T) {
	res := newTestClient(&scriptedProvider{}).Extract(context.Background(), Request{Kind: "bogus", Content: "x"})
	if res.Tag != TagSchemaError {
		t.Errorf("expected schema error for unknown kind, got %s", res.Tag)
	}
}
