// Package persistence provides the document store for articles, their
// same-story relation and comparative analyses.
package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"newslens/internal/core"
)

// ErrNotFound is returned when a lookup by id matches nothing.
var ErrNotFound = errors.New("not found")

// ArticleStore handles article persistence and candidate lookup
type ArticleStore interface {
	// GetArticle retrieves an article by ID
	GetArticle(ctx context.Context, id string) (*core.Article, error)

	// GetArticles retrieves the articles with the given IDs, skipping unknown ones
	GetArticles(ctx context.Context, ids []string) ([]core.Article, error)

	// ListArticles retrieves articles ordered by publication date, newest first
	ListArticles(ctx context.Context, opts ListOptions) ([]core.Article, error)

	// FindArticles retrieves up to limit articles matching the filter, in scan order
	FindArticles(ctx context.Context, filter Filter, limit int) ([]core.Article, error)

	// UpsertArticles saves articles keyed by URL
	UpsertArticles(ctx context.Context, articles []core.Article) (core.UpsertResult, error)

	// Unanalyzed retrieves articles that have no category yet
	Unanalyzed(ctx context.Context, limit int) ([]core.Article, error)

	// Unlinked retrieves triaged articles fetched since the given time that
	// have keywords but no related articles
	Unlinked(ctx context.Context, since time.Time, limit int) ([]core.Article, error)
}

// AnalysisStore handles the writes made by the analysis pipeline
type AnalysisStore interface {
	// UpdateTriage stores the triage extraction on an article
	UpdateTriage(ctx context.Context, id string, fields core.TriageFields, at time.Time) error

	// MarkTriageFailed records a failed triage attempt, leaving the article unanalyzed
	MarkTriageFailed(ctx context.Context, id string, cause string) error

	// SaveDeepAnalysis stores a deep-analysis payload
	SaveDeepAnalysis(ctx context.Context, id string, payload json.RawMessage, at time.Time) error

	// CreateComparison inserts a comparative analysis record
	CreateComparison(ctx context.Context, c *core.ComparativeAnalysis) error

	// SetComparisonRef points each article at a comparative analysis
	SetComparisonRef(ctx context.Context, articleIDs []string, comparisonID string) error

	// GetComparison retrieves a comparative analysis by ID
	GetComparison(ctx context.Context, id string) (*core.ComparativeAnalysis, error)
}

// RelationStore maintains the same-story relation
type RelationStore interface {
	// SetRelated replaces an article's related list
	SetRelated(ctx context.Context, id string, related []string) error

	// AddRelated adds relatedID to an article's related list if absent
	AddRelated(ctx context.Context, id string, relatedID string) error

	// Relations returns every non-empty related list keyed by article ID
	Relations(ctx context.Context) (map[string][]string, error)
}

// StatsStore provides dashboard aggregations
type StatsStore interface {
	// CountBy groups articles by a dimension. limit 0 returns all groups.
	CountBy(ctx context.Context, dim Dimension, limit int) ([]core.Count, error)

	// CountArticles returns the total number of stored articles
	CountArticles(ctx context.Context) (int, error)
}

// Store aggregates every repository the application uses
type Store interface {
	ArticleStore
	AnalysisStore
	RelationStore
	StatsStore

	// Ping verifies the store is reachable
	Ping(ctx context.Context) error

	// Close releases the underlying connection
	Close() error
}

// ListOptions provides filtering and pagination for ListArticles
type ListOptions struct {
	Limit    int    // Maximum number of results (0 for default of 100)
	Offset   int    // Number of results to skip
	Category string // Exact category match
	Source   string // Exact source name match
}

// Dimension is a grouping key for CountBy.
type Dimension string

const (
	DimCategory     Dimension = "category"
	DimSource       Dimension = "source"
	DimSentiment    Dimension = "sentiment"
	DimTriageStatus Dimension = "triage_status"
	DimDeepFlag     Dimension = "requires_deep_analysis"
	DimDay          Dimension = "day"
	DimKeyClaim     Dimension = "key_claim"
)

// Dimensions lists every supported grouping key.
var Dimensions = []Dimension{DimCategory, DimSource, DimSentiment, DimTriageStatus, DimDeepFlag, DimDay, DimKeyClaim}

const defaultListLimit = 100

func (o ListOptions) limit() int {
	if o.Limit <= 0 {
		return defaultListLimit
	}
	return o.Limit
}
