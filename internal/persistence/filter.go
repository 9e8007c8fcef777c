package persistence

import (
	"fmt"
	"strings"
	"time"

	"newslens/internal/core"

	"github.com/lib/pq"
)

// ClauseKind names one candidate-matching condition.
type ClauseKind string

const (
	ClauseKeywordOverlap ClauseKind = "keyword_overlap"
	ClauseEntityOverlap  ClauseKind = "entity_overlap"
	ClauseSameCategory   ClauseKind = "same_category"
	ClauseDateWindow     ClauseKind = "date_window"
	ClauseKeyClaimTerms  ClauseKind = "key_claim_terms"
)

// Clause is a single condition of a candidate filter. Which fields are used
// depends on Kind.
type Clause struct {
	Kind      ClauseKind
	Terms     []string  // keywords, entity names or key-claim terms
	MinShared int       // overlap clauses only
	Category  string    // ClauseSameCategory
	From, To  time.Time // ClauseDateWindow, inclusive
}

// Filter selects candidate articles: any clause may match (OR), and the
// excluded id never does. A filter with no clauses matches everything but
// the excluded id.
type Filter struct {
	AnyOf     []Clause
	ExcludeID string
}

// Kinds lists the clause kinds in order.
func (f Filter) Kinds() []ClauseKind {
	kinds := make([]ClauseKind, len(f.AnyOf))
	for i, c := range f.AnyOf {
		kinds[i] = c.Kind
	}
	return kinds
}

// Match evaluates the filter against an article in memory.
func (f Filter) Match(a *core.Article) bool {
	if f.ExcludeID != "" && a.ID == f.ExcludeID {
		return false
	}
	if len(f.AnyOf) == 0 {
		return true
	}
	for _, c := range f.AnyOf {
		if c.Match(a) {
			return true
		}
	}
	return false
}

// Match evaluates a single clause against an article.
func (c Clause) Match(a *core.Article) bool {
	switch c.Kind {
	case ClauseKeywordOverlap:
		return SharedCount(a.Keywords, c.Terms) >= c.MinShared
	case ClauseEntityOverlap:
		return SharedCount(a.Entities, c.Terms) >= c.MinShared
	case ClauseSameCategory:
		return c.Category != "" && a.Category == c.Category
	case ClauseDateWindow:
		if a.PublicationDate == nil {
			return false
		}
		return !a.PublicationDate.Before(c.From) && !a.PublicationDate.After(c.To)
	case ClauseKeyClaimTerms:
		claim := strings.ToLower(a.KeyClaim)
		for _, term := range c.Terms {
			if term != "" && strings.Contains(claim, strings.ToLower(term)) {
				return true
			}
		}
		return false
	}
	return false
}

// SharedCount returns the size of the set intersection of a and b.
func SharedCount(a, b []string) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(b))
	for _, s := range b {
		set[s] = struct{}{}
	}
	n := 0
	for _, s := range a {
		if _, ok := set[s]; ok {
			n++
			delete(set, s)
		}
	}
	return n
}

// whereSQL renders the filter as a WHERE expression with positional
// parameters starting after the args already collected.
func (f Filter) whereSQL(args []any) (string, []any) {
	var conds []string
	if f.ExcludeID != "" {
		args = append(args, f.ExcludeID)
		conds = append(conds, fmt.Sprintf("id <> $%d", len(args)))
	}

	var ors []string
	for _, c := range f.AnyOf {
		var expr string
		expr, args = c.sql(args)
		if expr != "" {
			ors = append(ors, expr)
		}
	}
	if len(ors) > 0 {
		conds = append(conds, "("+strings.Join(ors, " OR ")+")")
	}

	if len(conds) == 0 {
		return "TRUE", args
	}
	return strings.Join(conds, " AND "), args
}

func (c Clause) sql(args []any) (string, []any) {
	switch c.Kind {
	case ClauseKeywordOverlap, ClauseEntityOverlap:
		column := "keywords"
		if c.Kind == ClauseEntityOverlap {
			column = "entities"
		}
		args = append(args, pq.Array(c.Terms), c.MinShared)
		return fmt.Sprintf("cardinality(ARRAY(SELECT unnest(%s) INTERSECT SELECT unnest($%d::text[]))) >= $%d",
			column, len(args)-1, len(args)), args
	case ClauseSameCategory:
		args = append(args, c.Category)
		return fmt.Sprintf("category = $%d", len(args)), args
	case ClauseDateWindow:
		args = append(args, c.From, c.To)
		return fmt.Sprintf("publication_date BETWEEN $%d AND $%d", len(args)-1, len(args)), args
	case ClauseKeyClaimTerms:
		var likes []string
		for _, term := range c.Terms {
			if term == "" {
				continue
			}
			args = append(args, "%"+likeEscaper.Replace(term)+"%")
			likes = append(likes, fmt.Sprintf("key_claim ILIKE $%d", len(args)))
		}
		if len(likes) == 0 {
			return "", args
		}
		return "(" + strings.Join(likes, " OR ") + ")", args
	}
	return "", args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
