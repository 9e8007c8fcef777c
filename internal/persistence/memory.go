package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"newslens/internal/core"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store. Scan order is insertion order, which
// matches the first_seen_at ordering of PostgresStore.
type MemoryStore struct {
	mu          sync.RWMutex
	order       []string
	articles    map[string]*core.Article
	byURL       map[string]string
	comparisons map[string]*core.ComparativeAnalysis
	now         func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		articles:    make(map[string]*core.Article),
		byURL:       make(map[string]string),
		comparisons: make(map[string]*core.ComparativeAnalysis),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (m *MemoryStore) Ping(ctx context.Context) error { return nil }
func (m *MemoryStore) Close() error                   { return nil }

func (m *MemoryStore) GetArticle(ctx context.Context, id string) (*core.Article, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.articles[id]
	if !ok {
		return nil, fmt.Errorf("article %s: %w", id, ErrNotFound)
	}
	return cloneArticle(a), nil
}

func (m *MemoryStore) GetArticles(ctx context.Context, ids []string) ([]core.Article, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []core.Article
	for _, id := range ids {
		if a, ok := m.articles[id]; ok {
			out = append(out, *cloneArticle(a))
		}
	}
	return out, nil
}

func (m *MemoryStore) ListArticles(ctx context.Context, opts ListOptions) ([]core.Article, error) {
	matched := m.scan(func(a *core.Article) bool {
		return (opts.Category == "" || a.Category == opts.Category) &&
			(opts.Source == "" || a.SourceName == opts.Source)
	})
	sort.SliceStable(matched, func(i, j int) bool {
		pi, pj := matched[i].PublicationDate, matched[j].PublicationDate
		switch {
		case pi != nil && pj == nil:
			return true
		case pi == nil && pj != nil:
			return false
		case pi != nil && pj != nil && !pi.Equal(*pj):
			return pi.After(*pj)
		}
		return matched[i].FetchedAt.After(matched[j].FetchedAt)
	})
	return page(matched, opts.Offset, opts.limit()), nil
}

func (m *MemoryStore) FindArticles(ctx context.Context, filter Filter, limit int) ([]core.Article, error) {
	return page(m.scan(filter.Match), 0, limit), nil
}

func (m *MemoryStore) Unanalyzed(ctx context.Context, limit int) ([]core.Article, error) {
	matched := m.scan(func(a *core.Article) bool { return !a.IsTriaged() })
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].TriageStatus != core.TriageFailed && matched[j].TriageStatus == core.TriageFailed
	})
	return page(matched, 0, limit), nil
}

func (m *MemoryStore) Unlinked(ctx context.Context, since time.Time, limit int) ([]core.Article, error) {
	matched := m.scan(func(a *core.Article) bool {
		return a.IsTriaged() && len(a.Keywords) > 0 && len(a.RelatedIDs) == 0 && !a.FetchedAt.Before(since)
	})
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].FetchedAt.After(matched[j].FetchedAt) })
	return page(matched, 0, limit), nil
}

func (m *MemoryStore) UpsertArticles(ctx context.Context, articles []core.Article) (core.UpsertResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var res core.UpsertResult
	seen := make(map[string]bool, len(articles))
	now := m.now()

	for i := range articles {
		in := &articles[i]
		if strings.TrimSpace(in.URL) == "" {
			res.Failed++
			continue
		}
		if seen[in.URL] {
			continue
		}
		seen[in.URL] = true

		if id, ok := m.byURL[in.URL]; ok {
			mergeIngested(m.articles[id], in, now)
			res.Updated++
			continue
		}

		a := cloneArticle(in)
		if a.ID == "" {
			a.ID = uuid.NewString()
		}
		if a.FetchedAt.IsZero() {
			a.FetchedAt = now
		}
		a.FirstSeenAt = now
		m.articles[a.ID] = a
		m.byURL[a.URL] = a.ID
		m.order = append(m.order, a.ID)
		res.Inserted++
	}
	return res, nil
}

// mergeIngested applies a re-ingested copy of an article. Analysis fields are
// left untouched.
func mergeIngested(dst, src *core.Article, now time.Time) {
	dst.Title = src.Title
	dst.SourceName = src.SourceName
	if src.SourceType != "" {
		dst.SourceType = src.SourceType
	}
	if src.Summary != "" {
		dst.Summary = src.Summary
	}
	if src.Content != "" {
		dst.Content = src.Content
	}
	if src.PublicationDate != nil {
		t := *src.PublicationDate
		dst.PublicationDate = &t
	}
	dst.FetchedAt = src.FetchedAt
	if dst.FetchedAt.IsZero() {
		dst.FetchedAt = now
	}
}

func (m *MemoryStore) UpdateTriage(ctx context.Context, id string, fields core.TriageFields, at time.Time) error {
	return m.update(id, func(a *core.Article) { fields.Apply(a, at) })
}

func (m *MemoryStore) MarkTriageFailed(ctx context.Context, id string, cause string) error {
	raw, _ := json.Marshal(map[string]string{"error": cause})
	now := m.now()
	return m.update(id, func(a *core.Article) {
		a.TriageStatus = core.TriageFailed
		a.RawTriage = raw
		a.TriagedAt = &now
	})
}

func (m *MemoryStore) SaveDeepAnalysis(ctx context.Context, id string, payload json.RawMessage, at time.Time) error {
	return m.update(id, func(a *core.Article) {
		a.DeepAnalysis = append(json.RawMessage(nil), payload...)
		a.DeepAnalyzedAt = &at
	})
}

func (m *MemoryStore) SetRelated(ctx context.Context, id string, related []string) error {
	return m.update(id, func(a *core.Article) { a.RelatedIDs = append([]string(nil), related...) })
}

func (m *MemoryStore) AddRelated(ctx context.Context, id string, relatedID string) error {
	return m.update(id, func(a *core.Article) {
		for _, existing := range a.RelatedIDs {
			if existing == relatedID {
				return
			}
		}
		a.RelatedIDs = append(a.RelatedIDs, relatedID)
	})
}

func (m *MemoryStore) Relations(ctx context.Context) (map[string][]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string][]string)
	for id, a := range m.articles {
		if len(a.RelatedIDs) > 0 {
			out[id] = append([]string(nil), a.RelatedIDs...)
		}
	}
	return out, nil
}

func (m *MemoryStore) CreateComparison(ctx context.Context, c *core.ComparativeAnalysis) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = m.now()
	}
	cp := *c
	cp.ArticleIDs = append([]string(nil), c.ArticleIDs...)
	cp.Payload = append(json.RawMessage(nil), c.Payload...)
	m.comparisons[c.ID] = &cp
	return nil
}

func (m *MemoryStore) SetComparisonRef(ctx context.Context, articleIDs []string, comparisonID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range articleIDs {
		if a, ok := m.articles[id]; ok {
			a.ComparativeAnalysisID = comparisonID
		}
	}
	return nil
}

func (m *MemoryStore) GetComparison(ctx context.Context, id string) (*core.ComparativeAnalysis, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.comparisons[id]
	if !ok {
		return nil, fmt.Errorf("comparison %s: %w", id, ErrNotFound)
	}
	cp := *c
	cp.ArticleIDs = append([]string(nil), c.ArticleIDs...)
	return &cp, nil
}

// Comparisons returns the number of stored comparative analyses.
func (m *MemoryStore) Comparisons() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.comparisons)
}

func (m *MemoryStore) CountArticles(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.articles), nil
}

func (m *MemoryStore) CountBy(ctx context.Context, dim Dimension, limit int) ([]core.Count, error) {
	label, err := memoryLabel(dim)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	for _, a := range m.scan(func(*core.Article) bool { return true }) {
		if l, ok := label(&a); ok {
			counts[l]++
		}
	}

	out := make([]core.Count, 0, len(counts))
	for l, n := range counts {
		out = append(out, core.Count{Label: l, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if dim == DimDay {
			return out[i].Label < out[j].Label
		}
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Label < out[j].Label
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func memoryLabel(dim Dimension) (func(*core.Article) (string, bool), error) {
	switch dim {
	case DimCategory:
		return func(a *core.Article) (string, bool) { return a.Category, a.Category != "" }, nil
	case DimSource:
		return func(a *core.Article) (string, bool) { return a.SourceName, true }, nil
	case DimSentiment:
		return func(a *core.Article) (string, bool) { return a.Sentiment, a.Sentiment != "" }, nil
	case DimTriageStatus:
		return func(a *core.Article) (string, bool) {
			if a.TriageStatus == core.TriagePending {
				return "pending", true
			}
			return a.TriageStatus, true
		}, nil
	case DimDeepFlag:
		return func(a *core.Article) (string, bool) {
			if a.RequiresDeepAnalysis {
				return "yes", a.IsTriaged()
			}
			return "no", a.IsTriaged()
		}, nil
	case DimDay:
		return func(a *core.Article) (string, bool) {
			t := a.FetchedAt
			if a.PublicationDate != nil {
				t = *a.PublicationDate
			}
			return t.UTC().Format("2006-01-02"), true
		}, nil
	case DimKeyClaim:
		return func(a *core.Article) (string, bool) { return a.KeyClaim, a.KeyClaim != "" }, nil
	}
	return nil, fmt.Errorf("unsupported dimension %q", dim)
}

// scan returns copies of the matching articles in insertion order.
func (m *MemoryStore) scan(match func(*core.Article) bool) []core.Article {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []core.Article
	for _, id := range m.order {
		a := m.articles[id]
		if match(a) {
			out = append(out, *cloneArticle(a))
		}
	}
	return out
}

func (m *MemoryStore) update(id string, fn func(*core.Article)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.articles[id]
	if !ok {
		return fmt.Errorf("article %s: %w", id, ErrNotFound)
	}
	fn(a)
	return nil
}

func page(articles []core.Article, offset, limit int) []core.Article {
	if offset >= len(articles) {
		return nil
	}
	articles = articles[offset:]
	if limit > 0 && len(articles) > limit {
		articles = articles[:limit]
	}
	return articles
}

func cloneArticle(a *core.Article) *core.Article {
	cp := *a
	cp.Keywords = append([]string(nil), a.Keywords...)
	cp.Entities = append([]string(nil), a.Entities...)
	cp.RelatedIDs = append([]string(nil), a.RelatedIDs...)
	cp.RawTriage = append(json.RawMessage(nil), a.RawTriage...)
	cp.DeepAnalysis = append(json.RawMessage(nil), a.DeepAnalysis...)
	if a.PublicationDate != nil {
		t := *a.PublicationDate
		cp.PublicationDate = &t
	}
	return &cp
}
