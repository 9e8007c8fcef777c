package analysis

import (
	"context"
	"fmt"
	"strings"

	"newslens/internal/core"
	"newslens/internal/extract"
	"newslens/internal/schema"
)

// Outcome is the result of triaging one article.
type Outcome struct {
	ArticleID string      `json:"article_id"`
	Tag       extract.Tag `json:"tag"`
	Linked    int         `json:"linked"`
	Err       string      `json:"error,omitempty"`
}

// TriageReport folds the outcomes of a triage batch.
type TriageReport struct {
	Analyzed int       `json:"analyzed"`
	Failed   int       `json:"failed"`
	Linked   int       `json:"linked"`
	Outcomes []Outcome `json:"outcomes"`
}

func (r *TriageReport) add(o Outcome) {
	r.Outcomes = append(r.Outcomes, o)
	if o.Err != "" {
		r.Failed++
		return
	}
	r.Analyzed++
	r.Linked += o.Linked
}

// Triage classifies up to limit unanalyzed articles. Each article is
// persisted and correlated before the next one starts; a failure marks that
// article failed and the batch continues.
func (o *Orchestrator) Triage(ctx context.Context, limit int) (TriageReport, error) {
	report := TriageReport{Outcomes: []Outcome{}}

	articles, err := o.store.Unanalyzed(ctx, limit)
	if err != nil {
		return report, fmt.Errorf("failed to select unanalyzed articles: %w", err)
	}
	if len(articles) == 0 {
		o.log.Info("No articles to triage")
		return report, nil
	}

	o.log.Info("Starting triage batch", "articles", len(articles))
	start := o.now()
	for i := range articles {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.add(o.triageOne(ctx, &articles[i]))
	}

	o.log.Info("Triage batch completed",
		"analyzed", report.Analyzed,
		"failed", report.Failed,
		"linked", report.Linked,
		"duration", o.now().Sub(start).String())
	o.track("triage_batch_completed", map[string]any{
		"analyzed": report.Analyzed,
		"failed":   report.Failed,
		"linked":   report.Linked,
	})
	return report, nil
}

func (o *Orchestrator) triageOne(ctx context.Context, a *core.Article) Outcome {
	out := Outcome{ArticleID: a.ID}

	res := o.extractor.Extract(ctx, extract.Request{
		Kind:        schema.KindTriage,
		Content:     a.TriageText(),
		Model:       o.opts.TriageModel,
		MaxTokens:   o.opts.TriageMaxTokens,
		Temperature: o.opts.TriageTemperature,
	})
	out.Tag = res.Tag

	if !res.Usable() {
		out.Err = res.Cause
		o.markFailed(ctx, a.ID, res.Cause)
		return out
	}

	fields := TriageFieldsFrom(res)
	at := o.now()
	if err := o.store.UpdateTriage(ctx, a.ID, fields, at); err != nil {
		out.Err = err.Error()
		o.log.Error("Failed to store triage result", "error", err, "article_id", a.ID)
		o.markFailed(ctx, a.ID, err.Error())
		return out
	}
	fields.Apply(a, at)

	related := o.correlator.FindRelated(ctx, a)
	out.Linked = len(related)
	o.log.Debug("Article triaged", "article_id", a.ID, "tag", res.Tag, "category", fields.Category, "related", len(related))
	return out
}

func (o *Orchestrator) markFailed(ctx context.Context, id, cause string) {
	o.log.Warn("Triage failed", "article_id", id, "cause", cause)
	if err := o.store.MarkTriageFailed(ctx, id, cause); err != nil {
		o.log.Error("Failed to mark triage failure", "error", err, "article_id", id)
	}
}

// TriageFieldsFrom maps a usable triage record to the persisted fields.
// Status follows the result tag.
func TriageFieldsFrom(res extract.Result) core.TriageFields {
	rec := res.Record
	f := core.TriageFields{
		Category:             stringField(rec, "category"),
		Sentiment:            stringField(rec, "sentiment"),
		KeyClaim:             stringField(rec, "key_claim"),
		RequiresDeepAnalysis: yes(rec["requires_deep_analysis"]),
		Keywords:             stringList(rec["keywords"]),
		Entities:             entityTexts(rec["main_entities"]),
		NarrativeFocus:       narrativeFocus(rec["narrative_focus"]),
		SourceStyle:          sourceStyle(rec["source_style"]),
		Raw:                  res.Payload(),
	}
	if f.Category == "" {
		f.Category = "Uncategorized"
	}

	switch res.Tag {
	case extract.TagRepaired:
		f.Status = core.TriageRepaired
	case extract.TagDefault:
		f.Status = core.TriageDefault
	default:
		f.Status = core.TriageOK
	}
	return f
}

func stringField(rec map[string]any, key string) string {
	s, _ := rec[key].(string)
	return strings.TrimSpace(s)
}

func yes(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return strings.EqualFold(strings.TrimSpace(t), "yes")
	}
	return false
}

func stringList(v any) []string {
	items, _ := v.([]any)
	out := make([]string, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		s, ok := item.(string)
		s = strings.TrimSpace(s)
		if !ok || s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// entityTexts accepts entity objects carrying "text" as well as bare strings.
func entityTexts(v any) []string {
	items, _ := v.([]any)
	texts := make([]any, 0, len(items))
	for _, item := range items {
		switch e := item.(type) {
		case string:
			texts = append(texts, e)
		case map[string]any:
			texts = append(texts, e["text"])
		}
	}
	return stringList(texts)
}

func narrativeFocus(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case map[string]any:
		s, _ := t["primary_focus"].(string)
		return s
	}
	return ""
}

func sourceStyle(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case map[string]any:
		var parts []string
		for _, key := range []string{"depth", "formality", "technical_level", "use_of_sources"} {
			if s, _ := t[key].(string); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	}
	return ""
}
