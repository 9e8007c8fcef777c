// Package correlate links articles that cover the same news story using
// keyword, entity, category, date, source and title heuristics.
package correlate

import (
	"context"
	"log/slog"
	"time"

	"newslens/internal/config"
	"newslens/internal/core"
	"newslens/internal/logger"
	"newslens/internal/persistence"
)

// Store is the subset of the document store used for correlation.
type Store interface {
	FindArticles(ctx context.Context, filter persistence.Filter, limit int) ([]core.Article, error)
	SetRelated(ctx context.Context, id string, related []string) error
	AddRelated(ctx context.Context, id string, relatedID string) error
}

// Options tunes the engine.
type Options struct {
	Threshold      int           // minimum score to accept a candidate
	MaxRelated     int           // accepted candidates per run, first by scan order
	DateWindow     time.Duration // half-width of the publication date clause
	CandidateLimit int           // rows fetched by the primary query, 0 for no limit
}

// DefaultOptions returns the standard tuning.
func DefaultOptions() Options {
	return Options{
		Threshold:      DefaultThreshold,
		MaxRelated:     10,
		DateWindow:     72 * time.Hour,
		CandidateLimit: 1000,
	}
}

// OptionsFromConfig applies configured values over the defaults.
func OptionsFromConfig(cfg config.Correlation) Options {
	opts := DefaultOptions()
	if cfg.Threshold > 0 {
		opts.Threshold = cfg.Threshold
	}
	if cfg.MaxRelated > 0 {
		opts.MaxRelated = cfg.MaxRelated
	}
	opts.DateWindow = config.Duration(cfg.DateWindow, opts.DateWindow)
	return opts
}

// Engine finds related articles and maintains the relation. It holds no
// state between calls.
type Engine struct {
	store Store
	opts  Options
	log   *slog.Logger
}

// NewEngine creates a correlation engine.
func NewEngine(store Store, opts Options) *Engine {
	return &Engine{
		store: store,
		opts:  opts,
		log:   logger.With("component", "correlate"),
	}
}

// FindRelated computes the articles covering the same story as a, adds a's
// id to each of them and replaces a's own related list. Failures degrade to
// fewer or no links and are logged, never returned.
func (e *Engine) FindRelated(ctx context.Context, a *core.Article) []string {
	if !a.HasSignal() {
		e.log.Warn("Article has insufficient metadata to find related articles", "article_id", a.ID)
		return nil
	}

	related, ok := e.match(ctx, a)
	if !ok {
		return nil
	}
	e.link(ctx, a.ID, related)
	return related
}

// match walks the strategy ladder until one query succeeds. ok is false when
// every query failed.
func (e *Engine) match(ctx context.Context, a *core.Article) (related []string, ok bool) {
	if n := len(BuildPredicate(a, e.opts.DateWindow).AnyOf); n > MaxClauses {
		e.log.Info("Complex candidate query detected, simplifying", "article_id", a.ID, "clauses", n)
	}

	for _, s := range Strategies(a, e.opts) {
		candidates, err := e.store.FindArticles(ctx, s.Filter, s.Limit)
		if err != nil {
			e.log.Error("Candidate query failed", "error", err, "article_id", a.ID, "strategy", s.Name)
			continue
		}

		if s.Scored {
			related = e.accept(a, candidates)
		} else {
			for _, c := range candidates {
				if c.ID != a.ID {
					related = append(related, c.ID)
				}
			}
		}

		if len(related) > 0 {
			e.log.Info("Found related articles", "article_id", a.ID, "strategy", s.Name, "count", len(related))
		}
		return related, true
	}

	e.log.Warn("All candidate queries failed, no related articles", "article_id", a.ID)
	return nil, false
}

// accept scores candidates in scan order and keeps those at or above the
// threshold, stopping at MaxRelated.
func (e *Engine) accept(a *core.Article, candidates []core.Article) []string {
	seen := make(map[string]bool)
	if a.SourceName != "" {
		seen[a.SourceName] = true
	}

	var related []string
	for i := range candidates {
		if len(related) >= e.opts.MaxRelated {
			break
		}
		c := &candidates[i]
		if c.ID == a.ID {
			continue
		}
		score := Score(a, c, seen)
		if score.Total() < e.opts.Threshold {
			continue
		}
		related = append(related, c.ID)
		if c.SourceName != "" {
			seen[c.SourceName] = true
		}
		e.log.Debug("Accepted related article", "article_id", a.ID, "related_id", c.ID, "score", score.Total())
	}
	return related
}

// link writes the relation: each target gains id, id's list is replaced.
func (e *Engine) link(ctx context.Context, id string, related []string) {
	linked := 0
	for _, target := range related {
		if err := e.store.AddRelated(ctx, target, id); err != nil {
			e.log.Error("Failed to add back-link", "error", err, "article_id", id, "target_id", target)
			continue
		}
		linked++
	}
	if err := e.store.SetRelated(ctx, id, related); err != nil {
		e.log.Error("Failed to store related articles", "error", err, "article_id", id)
	}
	if linked > 0 {
		e.log.Info("Updated related articles", "article_id", id, "targets", linked)
	}
}
