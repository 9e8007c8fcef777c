package extract

import (
	"encoding/json"
)

// Tag classifies the outcome of an extraction.
type Tag string

const (
	// TagOK means the service output parsed as-is.
	TagOK Tag = "ok"
	// TagRepaired means the output was truncated to a balanced object.
	TagRepaired Tag = "repaired"
	// TagDefault means the output was unusable and the safe default was used.
	TagDefault Tag = "default"
	// TagSchemaError means the service rejected the requested structure.
	TagSchemaError Tag = "schema_error"
	// TagTransportError means the request did not complete.
	TagTransportError Tag = "transport_error"
)

// Result is the tagged outcome of Extract. Record is always non-nil for
// TagOK, TagRepaired and TagDefault.
type Result struct {
	Tag        Tag
	Record     map[string]any
	Raw        string   // text returned by the service, if any
	Cause      string   // why the result degraded
	Violations []string // local schema violations for OK/Repaired records
	Model      string
	ViaTool    bool
}

// Usable reports whether Record can be persisted as an extraction.
func (r Result) Usable() bool {
	switch r.Tag {
	case TagOK, TagRepaired, TagDefault:
		return r.Record != nil
	default:
		return false
	}
}

// Failed reports whether the provider could not produce any record.
func (r Result) Failed() bool {
	return r.Tag == TagSchemaError || r.Tag == TagTransportError
}

// Payload renders the result for storage. Degraded results carry an "error"
// key so readers can detect them from the stored document alone.
func (r Result) Payload() json.RawMessage {
	out := make(map[string]any, len(r.Record)+2)
	for k, v := range r.Record {
		out[k] = v
	}
	switch r.Tag {
	case TagRepaired:
		out["repaired"] = true
	case TagDefault, TagSchemaError, TagTransportError:
		out["error"] = r.Cause
		if r.Tag != TagDefault {
			out["error_type"] = string(r.Tag)
		}
		if r.Raw != "" {
			out["raw_response"] = r.Raw
		}
	}

	b, err := json.Marshal(out)
	if err != nil {
		b, _ = json.Marshal(map[string]string{"error": err.Error()})
	}
	return b
}
