// Package stats builds the dashboard aggregates: article counts per
// dimension and the same-story groups formed by the relation graph.
package stats

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"newslens/internal/cache"
	"newslens/internal/core"
	"newslens/internal/logger"
	"newslens/internal/persistence"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// Limits applied to dashboard lists.
const (
	TopLimit = 10
	DayLimit = 30
)

// Store is the persistence surface needed for the dashboard.
type Store interface {
	persistence.StatsStore
	Relations(ctx context.Context) (map[string][]string, error)
}

// Dashboard is a snapshot of the collection.
type Dashboard struct {
	TotalArticles int          `json:"total_articles"`
	ByCategory    []core.Count `json:"by_category"`
	BySource      []core.Count `json:"by_source"`
	BySentiment   []core.Count `json:"by_sentiment"`
	ByTriage      []core.Count `json:"by_triage_status"`
	DeepFlags     []core.Count `json:"requires_deep_analysis"`
	PerDay        []core.Count `json:"per_day"`
	TopKeyClaims  []core.Count `json:"top_key_claims"`
	StoryGroups   int          `json:"story_groups"`
	LargestGroup  int          `json:"largest_story_group"`
	GeneratedAt   time.Time    `json:"generated_at"`
}

// Service computes dashboards, caching them for ttl.
type Service struct {
	store Store
	cache cache.Cache
	ttl   time.Duration
	log   *slog.Logger
}

// NewService creates a stats service. c may be nil.
func NewService(store Store, c cache.Cache, ttl time.Duration) *Service {
	if c == nil {
		c = cache.Noop{}
	}
	return &Service{
		store: store,
		cache: c,
		ttl:   ttl,
		log:   logger.With("component", "stats"),
	}
}

// Dashboard returns the cached snapshot or computes a fresh one.
func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	key := cache.StatsKey("dashboard")
	if s.ttl > 0 {
		var cached Dashboard
		hit, err := cache.GetJSON(ctx, s.cache, key, &cached)
		if err != nil {
			s.log.Warn("Stats cache lookup failed", "error", err.Error())
		}
		if hit {
			return &cached, nil
		}
	}

	d, err := s.compute(ctx)
	if err != nil {
		return nil, err
	}

	if s.ttl > 0 {
		if err := s.cache.Set(ctx, key, d, s.ttl); err != nil {
			s.log.Warn("Failed to cache stats", "error", err.Error())
		}
	}
	return d, nil
}

func (s *Service) compute(ctx context.Context) (*Dashboard, error) {
	d := &Dashboard{GeneratedAt: time.Now().UTC()}

	total, err := s.store.CountArticles(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count articles: %w", err)
	}
	d.TotalArticles = total

	lists := []struct {
		dim   persistence.Dimension
		limit int
		dst   *[]core.Count
	}{
		{persistence.DimCategory, 0, &d.ByCategory},
		{persistence.DimSource, 0, &d.BySource},
		{persistence.DimSentiment, 0, &d.BySentiment},
		{persistence.DimTriageStatus, 0, &d.ByTriage},
		{persistence.DimDeepFlag, 0, &d.DeepFlags},
		{persistence.DimDay, 0, &d.PerDay},
		{persistence.DimKeyClaim, TopLimit, &d.TopKeyClaims},
	}
	for _, l := range lists {
		counts, err := s.store.CountBy(ctx, l.dim, l.limit)
		if err != nil {
			return nil, fmt.Errorf("failed to count by %s: %w", l.dim, err)
		}
		*l.dst = counts
	}
	if n := len(d.PerDay); n > DayLimit {
		d.PerDay = d.PerDay[n-DayLimit:]
	}

	relations, err := s.store.Relations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load relations: %w", err)
	}
	groups := StoryGroups(relations)
	d.StoryGroups = len(groups)
	if len(groups) > 0 {
		d.LargestGroup = len(groups[0])
	}
	return d, nil
}

// StoryGroups returns the connected components of the relation graph with
// at least two articles, largest first. Links are treated as undirected.
func StoryGroups(relations map[string][]string) [][]string {
	g := simple.NewUndirectedGraph()
	nodes := make(map[string]int64)
	ids := make(map[int64]string)
	node := func(id string) int64 {
		if n, ok := nodes[id]; ok {
			return n
		}
		n := g.NewNode()
		g.AddNode(n)
		nodes[id] = n.ID()
		ids[n.ID()] = id
		return n.ID()
	}

	for from, related := range relations {
		f := node(from)
		for _, to := range related {
			t := node(to)
			if f == t || g.HasEdgeBetween(f, t) {
				continue
			}
			g.SetEdge(g.NewEdge(g.Node(f), g.Node(t)))
		}
	}

	var groups [][]string
	for _, component := range topo.ConnectedComponents(g) {
		if len(component) < 2 {
			continue
		}
		group := make([]string, len(component))
		for i, n := range component {
			group[i] = ids[n.ID()]
		}
		sort.Strings(group)
		groups = append(groups, group)
	}
	sort.Slice(groups, func(i, j int) bool {
		if len(groups[i]) != len(groups[j]) {
			return len(groups[i]) > len(groups[j])
		}
		return groups[i][0] < groups[j][0]
	})
	return groups
}
