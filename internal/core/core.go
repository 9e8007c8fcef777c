package core

import (
	"encoding/json"
	"strings"
	"time"
)

// Triage states stored on an article after the first-pass classification.
const (
	TriagePending  = ""         // never triaged
	TriageOK       = "ok"       // extraction parsed cleanly
	TriageRepaired = "repaired" // extraction recovered by truncation repair
	TriageDefault  = "default"  // generation degraded to the safe default record
	TriageFailed   = "failed"   // provider or store failure, article left unanalyzed
)

// Source types
const (
	SourceRSS    = "rss"
	SourceManual = "manual"
)

// ComparisonType is the record type stored for multi-article analyses.
const ComparisonType = "comparative"

// Article is a single news item together with its extraction record and
// same-story links.
type Article struct {
	ID              string     `json:"id"`                         // Opaque identifier (UUID)
	URL             string     `json:"url"`                        // Natural key, one stored article per URL
	SourceName      string     `json:"source_name"`                // Outlet name, e.g. "La Nación"
	SourceType      string     `json:"source_type"`                // rss or manual
	Title           string     `json:"title"`                      // Headline
	Summary         string     `json:"summary,omitempty"`          // Feed-provided summary, HTML stripped
	Content         string     `json:"content,omitempty"`          // Full body text when extracted
	PublicationDate *time.Time `json:"publication_date,omitempty"` // Publisher-supplied time, if any
	FetchedAt       time.Time  `json:"fetched_at"`                 // Last time this URL was ingested
	FirstSeenAt     time.Time  `json:"first_seen_at"`              // Set once, on first insert

	// Triage extraction record. Category is empty until the article is triaged.
	Category             string          `json:"category,omitempty"`
	Sentiment            string          `json:"sentiment,omitempty"`
	KeyClaim             string          `json:"key_claim,omitempty"`
	RequiresDeepAnalysis bool            `json:"requires_deep_analysis"`
	Keywords             []string        `json:"keywords,omitempty"`
	Entities             []string        `json:"entities,omitempty"`
	NarrativeFocus       string          `json:"narrative_focus,omitempty"`
	SourceStyle          string          `json:"source_style,omitempty"`
	RawTriage            json.RawMessage `json:"raw_triage,omitempty"`
	TriageStatus         string          `json:"triage_status,omitempty"`
	TriagedAt            *time.Time      `json:"triaged_at,omitempty"`

	RelatedIDs []string `json:"related_ids,omitempty"` // Same-story links, unordered

	DeepAnalysis          json.RawMessage `json:"deep_analysis,omitempty"`
	DeepAnalyzedAt        *time.Time      `json:"deep_analyzed_at,omitempty"`
	ComparativeAnalysisID string          `json:"comparative_analysis_id,omitempty"`
}

// IsTriaged reports whether the article carries an extraction record.
func (a *Article) IsTriaged() bool {
	return a.Category != ""
}

// HasSignal reports whether there is anything to correlate on.
func (a *Article) HasSignal() bool {
	return len(a.Keywords) > 0 || len(a.Entities) > 0 || strings.TrimSpace(a.Title) != ""
}

// TriageText is the text sent for first-pass classification.
func (a *Article) TriageText() string {
	if strings.TrimSpace(a.Summary) != "" {
		return a.Summary
	}
	return a.Title
}

// AnalysisText is the richest text available for deep analysis.
func (a *Article) AnalysisText() string {
	for _, s := range []string{a.Content, a.Summary, a.Title} {
		if strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

// TriageFields is the subset of an extraction record persisted by triage.
type TriageFields struct {
	Category             string          `json:"category"`
	Sentiment            string          `json:"sentiment"`
	KeyClaim             string          `json:"key_claim"`
	RequiresDeepAnalysis bool            `json:"requires_deep_analysis"`
	Keywords             []string        `json:"keywords"`
	Entities             []string        `json:"entities"`
	NarrativeFocus       string          `json:"narrative_focus"`
	SourceStyle          string          `json:"source_style"`
	Raw                  json.RawMessage `json:"raw"`
	Status               string          `json:"status"`
}

// Apply copies the fields onto an article.
func (f TriageFields) Apply(a *Article, at time.Time) {
	a.Category = f.Category
	a.Sentiment = f.Sentiment
	a.KeyClaim = f.KeyClaim
	a.RequiresDeepAnalysis = f.RequiresDeepAnalysis
	a.Keywords = append([]string(nil), f.Keywords...)
	a.Entities = append([]string(nil), f.Entities...)
	a.NarrativeFocus = f.NarrativeFocus
	a.SourceStyle = f.SourceStyle
	a.RawTriage = f.Raw
	a.TriageStatus = f.Status
	a.TriagedAt = &at
}

// ComparativeAnalysis is a stored multi-article comparison.
type ComparativeAnalysis struct {
	ID         string          `json:"id"`
	ArticleIDs []string        `json:"article_ids"`
	Payload    json.RawMessage `json:"analysis_results"`
	CreatedAt  time.Time       `json:"created_at"`
	Type       string          `json:"type"`
}

// UpsertResult reports the outcome of a bulk save.
type UpsertResult struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	Failed   int `json:"failed"`
}

// Count pairs a label with a frequency, used by dashboard aggregations.
type Count struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}
