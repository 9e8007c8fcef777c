// Package analysis sequences extraction, persistence and correlation into
// the triage, deep analysis and comparative analysis workflows.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"newslens/internal/config"
	"newslens/internal/core"
	"newslens/internal/extract"
	"newslens/internal/logger"
	"newslens/internal/persistence"
)

var (
	// ErrInsufficientContent is returned when an article has no text to analyze.
	ErrInsufficientContent = errors.New("insufficient content for analysis")
	// ErrTooFewArticles is the cause of every comparative precondition failure.
	ErrTooFewArticles = errors.New("insufficient articles for comparison")
)

// Generation parameters per workflow.
const (
	DefaultTriageTemperature = 0.3
	DeepTemperature          = 0.2
	DeepMaxTokens            = 1000
	CompareTemperature       = 0.2
	CompareMaxTokens         = 2500
	CompareContentLimit      = 2000
	DefaultBackfillLimit     = 100
	DefaultBackfillDays      = 30
)

// Extractor produces a tagged extraction result. *extract.Client satisfies it.
type Extractor interface {
	Extract(ctx context.Context, req extract.Request) extract.Result
}

// Correlator links an article to the stories it shares. *correlate.Engine
// satisfies it.
type Correlator interface {
	FindRelated(ctx context.Context, a *core.Article) []string
}

// Tracker receives workflow events for product analytics.
type Tracker interface {
	Track(event string, properties map[string]any)
}

// Store is the persistence surface the orchestrator needs.
type Store interface {
	persistence.ArticleStore
	persistence.AnalysisStore
	persistence.RelationStore
}

// Options selects models and generation settings.
type Options struct {
	TriageModel       string
	DeepModel         string
	TriageTemperature float32
	TriageMaxTokens   int32
}

// OptionsFromConfig maps the LLM section of the configuration.
func OptionsFromConfig(cfg config.LLM) Options {
	opts := Options{
		TriageModel:       cfg.Model,
		DeepModel:         cfg.DeepModel,
		TriageTemperature: cfg.Temperature,
		TriageMaxTokens:   cfg.MaxTokens,
	}
	if opts.TriageTemperature == 0 {
		opts.TriageTemperature = DefaultTriageTemperature
	}
	if opts.DeepModel == "" {
		opts.DeepModel = opts.TriageModel
	}
	return opts
}

// Orchestrator runs the analysis workflows. Articles in a batch are
// processed one at a time.
type Orchestrator struct {
	store      Store
	extractor  Extractor
	correlator Correlator
	tracker    Tracker
	opts       Options
	now        func() time.Time
	log        *slog.Logger
}

// New creates an orchestrator. tracker may be nil.
func New(store Store, extractor Extractor, correlator Correlator, tracker Tracker, opts Options) *Orchestrator {
	if opts.TriageTemperature == 0 {
		opts.TriageTemperature = DefaultTriageTemperature
	}
	return &Orchestrator{
		store:      store,
		extractor:  extractor,
		correlator: correlator,
		tracker:    tracker,
		opts:       opts,
		now:        time.Now,
		log:        logger.With("component", "analysis"),
	}
}

func (o *Orchestrator) track(event string, props map[string]any) {
	if o.tracker != nil {
		o.tracker.Track(event, props)
	}
}

// BackfillReport summarizes a correlation backfill.
type BackfillReport struct {
	Processed int `json:"processed"`
	Linked    int `json:"linked"`
}

// Backfill re-runs correlation for triaged articles fetched in the last
// daysBack days that have no related articles yet.
func (o *Orchestrator) Backfill(ctx context.Context, limit, daysBack int) (BackfillReport, error) {
	if limit <= 0 {
		limit = DefaultBackfillLimit
	}
	if daysBack <= 0 {
		daysBack = DefaultBackfillDays
	}

	var report BackfillReport
	since := o.now().AddDate(0, 0, -daysBack)
	articles, err := o.store.Unlinked(ctx, since, limit)
	if err != nil {
		return report, fmt.Errorf("failed to select articles for backfill: %w", err)
	}

	o.log.Info("Starting related-article backfill", "articles", len(articles), "days_back", daysBack)
	for i := range articles {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		related := o.correlator.FindRelated(ctx, &articles[i])
		report.Processed++
		if len(related) > 0 {
			report.Linked++
		}
	}
	o.log.Info("Backfill completed", "processed", report.Processed, "linked", report.Linked)
	return report, nil
}

// Related returns the stored related articles of id.
func (o *Orchestrator) Related(ctx context.Context, id string) ([]core.Article, error) {
	a, err := o.store.GetArticle(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(a.RelatedIDs) == 0 {
		return []core.Article{}, nil
	}
	return o.store.GetArticles(ctx, a.RelatedIDs)
}

// ComparisonFor returns the comparative analysis that covers id.
func (o *Orchestrator) ComparisonFor(ctx context.Context, id string) (*core.ComparativeAnalysis, error) {
	a, err := o.store.GetArticle(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.ComparativeAnalysisID == "" {
		return nil, fmt.Errorf("article %s has no comparative analysis: %w", id, persistence.ErrNotFound)
	}
	return o.store.GetComparison(ctx, a.ComparativeAnalysisID)
}
