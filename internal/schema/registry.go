package schema

import (
	"errors"
	"fmt"
)

// Kind identifies a prompt/schema pair.
type Kind string

const (
	KindTriage      Kind = "triage"
	KindDeep        Kind = "deep_analysis"
	KindComparative Kind = "comparative"
)

// FunctionName is the tool name the provider is forced to call.
const FunctionName = "format_article_analysis"

// FunctionDescription accompanies FunctionName in tool declarations.
const FunctionDescription = "Format the analysis of an article according to the specified schema"

// SystemInstruction is sent with every extraction request.
const SystemInstruction = "You are an AI assistant performing detailed content analysis. Respond with a valid JSON object based on the user's instructions."

// ErrUnknownKind is returned by Registry.Get for unregistered kinds.
var ErrUnknownKind = errors.New("unknown prompt kind")

// Entry bundles everything needed to run one kind of extraction.
type Entry struct {
	Kind     Kind
	System   string
	Template Template
	Schema   *ExtractionSchema
	Defaults map[string]any // top-level values for the degraded record
}

// DefaultRecord builds the safe fallback record for this entry, annotated
// with cause under the "error" key.
func (e Entry) DefaultRecord(cause string) map[string]any {
	overrides := make(map[string]any, len(e.Defaults)+1)
	for k, v := range e.Defaults {
		overrides[k] = cloneValue(v)
	}
	overrides["error"] = cause
	return e.Schema.DefaultRecord(overrides)
}

// Registry is the immutable set of extraction entries. It is built once and
// injected into the extraction client.
type Registry struct {
	entries map[Kind]Entry
}

// NewRegistry returns the built-in triage, deep and comparative entries.
func NewRegistry() *Registry {
	return &Registry{entries: map[Kind]Entry{
		KindTriage: {
			Kind:     KindTriage,
			System:   SystemInstruction,
			Template: MustTemplate(triagePrompt),
			Schema:   TriageSchema(),
			Defaults: map[string]any{
				"category":               "Uncategorized",
				"sentiment":              "Neutral",
				"key_claim":              "No key claim detected",
				"requires_deep_analysis": "No",
				"keywords":               []any{},
				"main_entities":          []any{},
			},
		},
		KindDeep: {
			Kind:     KindDeep,
			System:   SystemInstruction,
			Template: MustTemplate(deepPrompt),
			Schema:   DeepSchema(),
			Defaults: map[string]any{
				"political_leaning_detected": "Unclear",
				"analysis_confidence":        "Low",
			},
		},
		KindComparative: {
			Kind:     KindComparative,
			System:   SystemInstruction,
			Template: MustTemplate(comparativePrompt),
			Schema:   ComparativeSchema(),
		},
	}}
}

// Get returns the entry for kind.
func (r *Registry) Get(kind Kind) (Entry, error) {
	e, ok := r.entries[kind]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	return e, nil
}

// Kinds lists the registered kinds in a fixed order.
func (r *Registry) Kinds() []Kind {
	var kinds []Kind
	for _, k := range []Kind{KindTriage, KindDeep, KindComparative} {
		if _, ok := r.entries[k]; ok {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case []any:
		return append([]any{}, t...)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = cloneValue(val)
		}
		return out
	default:
		return v
	}
}
