package analysis

import (
	"context"
	"fmt"

	"newslens/internal/core"
	"newslens/internal/extract"
	"newslens/internal/schema"
)

// DeepAnalyze runs bias and framing analysis on one article and stores the
// payload, degraded or not.
func (o *Orchestrator) DeepAnalyze(ctx context.Context, id string) (*core.Article, error) {
	a, err := o.store.GetArticle(ctx, id)
	if err != nil {
		return nil, err
	}

	content := a.AnalysisText()
	if content == "" {
		return nil, fmt.Errorf("article %s: %w", id, ErrInsufficientContent)
	}

	res := o.extractor.Extract(ctx, extract.Request{
		Kind:        schema.KindDeep,
		Content:     content,
		Model:       o.opts.DeepModel,
		MaxTokens:   DeepMaxTokens,
		Temperature: DeepTemperature,
	})
	if res.Tag != extract.TagOK {
		o.log.Warn("Deep analysis degraded", "article_id", id, "tag", res.Tag, "cause", res.Cause)
	}

	payload := res.Payload()
	at := o.now()
	if err := o.store.SaveDeepAnalysis(ctx, id, payload, at); err != nil {
		return nil, fmt.Errorf("failed to store deep analysis: %w", err)
	}
	a.DeepAnalysis = payload
	a.DeepAnalyzedAt = &at

	o.track("deep_analysis_completed", map[string]any{
		"article_id": id,
		"tag":        string(res.Tag),
		"model":      res.Model,
	})
	return a, nil
}
