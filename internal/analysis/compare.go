package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"newslens/internal/core"
	"newslens/internal/extract"
	"newslens/internal/schema"

	"github.com/google/uuid"
)

// ReasonGenerationFailed is the CompareError reason when the model produced
// no usable comparative analysis.
const ReasonGenerationFailed = "Comparative analysis failed"

// CompareError describes why a comparative analysis was not produced.
type CompareError struct {
	Reason     string
	ArticleIDs []string
	Err        error
}

func (e *CompareError) Error() string {
	if e.Err != nil && e.Err != ErrTooFewArticles {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *CompareError) Unwrap() error {
	return e.Err
}

// CompareResult is a stored comparative analysis.
type CompareResult struct {
	Analysis     *core.ComparativeAnalysis `json:"comparative_analysis"`
	ArticleCount int                       `json:"article_count"`
	AnalysisID   string                    `json:"analysis_id"`
}

// articleSummary is the per-article view rendered into the comparative prompt.
type articleSummary struct {
	SourceName      string   `json:"source_name"`
	Title           string   `json:"title"`
	PublicationDate string   `json:"publication_date,omitempty"`
	Content         string   `json:"content"`
	Category        string   `json:"llm_category,omitempty"`
	Sentiment       string   `json:"llm_sentiment,omitempty"`
	KeyClaim        string   `json:"llm_key_claim,omitempty"`
	Keywords        []string `json:"llm_keywords,omitempty"`
	Entities        []string `json:"llm_entities,omitempty"`
	URL             string   `json:"url"`
}

// Compare analyzes how several articles cover the same story. On success the
// analysis is stored and every article references it; on failure nothing is
// stored.
func (o *Orchestrator) Compare(ctx context.Context, ids []string) (*CompareResult, error) {
	if len(ids) < 2 {
		return nil, &CompareError{Reason: "Insufficient articles for comparison", ArticleIDs: ids, Err: ErrTooFewArticles}
	}

	valid := ValidIDs(ids)
	if len(valid) < 2 {
		return nil, &CompareError{Reason: "Not enough valid article IDs", ArticleIDs: ids, Err: ErrTooFewArticles}
	}

	articles, err := o.store.GetArticles(ctx, valid)
	if err != nil {
		return nil, &CompareError{Reason: "Failed to retrieve articles", ArticleIDs: valid, Err: err}
	}
	if len(articles) < 2 {
		return nil, &CompareError{Reason: "Could not retrieve enough articles", ArticleIDs: valid, Err: ErrTooFewArticles}
	}

	content, err := ComparePrompt(articles)
	if err != nil {
		return nil, &CompareError{Reason: "Failed to render articles", ArticleIDs: valid, Err: err}
	}

	o.log.Info("Starting comparative analysis", "articles", len(articles))
	res := o.extractor.Extract(ctx, extract.Request{
		Kind:        schema.KindComparative,
		Content:     content,
		Model:       o.opts.TriageModel,
		MaxTokens:   CompareMaxTokens,
		Temperature: CompareTemperature,
	})
	if res.Tag != extract.TagOK && res.Tag != extract.TagRepaired {
		o.log.Warn("Comparative analysis failed", "tag", res.Tag, "cause", res.Cause)
		return nil, &CompareError{
			Reason:     ReasonGenerationFailed,
			ArticleIDs: valid,
			Err:        fmt.Errorf("%s: %s", res.Tag, res.Cause),
		}
	}

	articleIDs := make([]string, len(articles))
	for i, a := range articles {
		articleIDs[i] = a.ID
	}
	analysis := &core.ComparativeAnalysis{
		ArticleIDs: articleIDs,
		Payload:    res.Payload(),
		CreatedAt:  o.now().UTC(),
		Type:       core.ComparisonType,
	}
	if err := o.store.CreateComparison(ctx, analysis); err != nil {
		return nil, &CompareError{Reason: "Failed to store comparative analysis", ArticleIDs: valid, Err: err}
	}
	if err := o.store.SetComparisonRef(ctx, articleIDs, analysis.ID); err != nil {
		return nil, fmt.Errorf("failed to reference comparative analysis %s: %w", analysis.ID, err)
	}

	o.track("comparative_analysis_completed", map[string]any{
		"analysis_id":   analysis.ID,
		"article_count": len(articles),
		"tag":           string(res.Tag),
	})
	return &CompareResult{Analysis: analysis, ArticleCount: len(articles), AnalysisID: analysis.ID}, nil
}

// ValidIDs trims ids, drops blanks, malformed UUIDs and duplicates, and
// keeps the input order.
func ValidIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	var out []string
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		if _, err := uuid.Parse(id); err != nil {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// ComparePrompt renders articles as the indented JSON list sent for
// comparison. Content is cut to CompareContentLimit characters.
func ComparePrompt(articles []core.Article) (string, error) {
	summaries := make([]articleSummary, len(articles))
	for i := range articles {
		a := &articles[i]
		s := articleSummary{
			SourceName: a.SourceName,
			Title:      a.Title,
			Content:    truncate(a.AnalysisText(), CompareContentLimit),
			Category:   a.Category,
			Sentiment:  a.Sentiment,
			KeyClaim:   a.KeyClaim,
			Keywords:   a.Keywords,
			Entities:   a.Entities,
			URL:        a.URL,
		}
		if a.PublicationDate != nil {
			s.PublicationDate = a.PublicationDate.UTC().Format(time.RFC3339)
		}
		summaries[i] = s
	}

	b, err := json.MarshalIndent(summaries, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
