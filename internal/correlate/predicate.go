package correlate

import (
	"strings"
	"time"
	"unicode/utf8"

	"newslens/internal/core"
	"newslens/internal/persistence"
)

// Clause and limit constants for candidate queries.
const (
	MinSharedKeywords = 2
	MinSharedEntities = 2
	MaxClauses        = 3
	KeyClaimTermCount = 3
	MinimalLimit      = 5
)

var claimStopwords = stopwords("the", "a", "an", "and", "in", "on", "at", "to", "for", "with", "by", "of", "is", "are",
	"that", "this", "it", "as")

var titleStopwords = stopwords("the", "a", "an", "and", "in", "on", "at", "to", "for", "with", "by", "of", "is", "are")

func stopwords(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

// BuildPredicate returns the full candidate filter for an article: one clause
// per available signal, OR'ed, never matching the article itself.
func BuildPredicate(a *core.Article, window time.Duration) persistence.Filter {
	f := persistence.Filter{ExcludeID: a.ID}

	if len(a.Keywords) > 0 {
		f.AnyOf = append(f.AnyOf, persistence.Clause{
			Kind: persistence.ClauseKeywordOverlap, Terms: a.Keywords, MinShared: MinSharedKeywords,
		})
	}
	if len(a.Entities) > 0 {
		f.AnyOf = append(f.AnyOf, persistence.Clause{
			Kind: persistence.ClauseEntityOverlap, Terms: a.Entities, MinShared: MinSharedEntities,
		})
	}
	if a.Category != "" {
		f.AnyOf = append(f.AnyOf, persistence.Clause{Kind: persistence.ClauseSameCategory, Category: a.Category})
	}
	if a.PublicationDate != nil {
		f.AnyOf = append(f.AnyOf, persistence.Clause{
			Kind: persistence.ClauseDateWindow,
			From: a.PublicationDate.Add(-window),
			To:   a.PublicationDate.Add(window),
		})
	}
	if terms := KeyClaimTerms(a.KeyClaim); len(terms) > 0 {
		f.AnyOf = append(f.AnyOf, persistence.Clause{Kind: persistence.ClauseKeyClaimTerms, Terms: terms})
	}
	return f
}

// Simplify reduces a filter with more than MaxClauses clauses to its keyword
// and category clauses, at most MaxClauses of them. When none survive the
// result matches on category alone, or excludes only the article itself
// when there is no category.
func Simplify(f persistence.Filter, category string) persistence.Filter {
	if len(f.AnyOf) <= MaxClauses {
		return f
	}

	out := persistence.Filter{ExcludeID: f.ExcludeID}
	for _, c := range f.AnyOf {
		if c.Kind == persistence.ClauseKeywordOverlap || c.Kind == persistence.ClauseSameCategory {
			out.AnyOf = append(out.AnyOf, c)
		}
		if len(out.AnyOf) == MaxClauses {
			break
		}
	}
	if len(out.AnyOf) > 0 {
		return out
	}
	return CategoryOnly(f.ExcludeID, category)
}

// CategoryOnly matches articles in the same category. With no category it
// matches everything but the excluded id.
func CategoryOnly(excludeID, category string) persistence.Filter {
	f := persistence.Filter{ExcludeID: excludeID}
	if category != "" {
		f.AnyOf = []persistence.Clause{{Kind: persistence.ClauseSameCategory, Category: category}}
	}
	return f
}

// KeyClaimTerms returns up to three significant lowercase words of a key
// claim. Claims of five characters or fewer yield nothing.
func KeyClaimTerms(claim string) []string {
	if utf8.RuneCountInString(claim) <= 5 {
		return nil
	}
	var terms []string
	for _, w := range strings.Fields(strings.ToLower(claim)) {
		if claimStopwords[w] || utf8.RuneCountInString(w) <= 3 {
			continue
		}
		terms = append(terms, w)
		if len(terms) == KeyClaimTermCount {
			break
		}
	}
	return terms
}

// Strategy is one rung of the candidate-query fallback ladder.
type Strategy struct {
	Name   string
	Filter persistence.Filter
	Limit  int
	Scored bool // unscored strategies accept every candidate
}

// Strategies returns the ladder for an article: the simplified full
// predicate, then a small category-only query when a category exists.
func Strategies(a *core.Article, opts Options) []Strategy {
	ladder := []Strategy{{
		Name:   "primary",
		Filter: Simplify(BuildPredicate(a, opts.DateWindow), a.Category),
		Limit:  opts.CandidateLimit,
		Scored: true,
	}}
	if a.Category != "" {
		ladder = append(ladder, Strategy{
			Name:   "minimal",
			Filter: CategoryOnly(a.ID, a.Category),
			Limit:  MinimalLimit,
		})
	}
	return ladder
}
