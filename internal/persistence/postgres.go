package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"newslens/internal/config"
	"newslens/internal/core"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// PostgresStore implements Store for PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a PostgreSQL connection pool and verifies it
func NewPostgresStore(cfg config.Database) (*PostgresStore, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(orDefault(cfg.MaxOpenConns, 25))
	db.SetMaxIdleConns(orDefault(cfg.MaxIdleConns, 5))
	db.SetConnMaxLifetime(config.Duration(cfg.ConnMaxLifetime, 5*time.Minute))

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// DB exposes the underlying pool for migrations
func (p *PostgresStore) DB() *sql.DB { return p.db }

func (p *PostgresStore) Close() error {
	return p.db.Close()
}

func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

const articleColumns = `
	id, url, source_name, source_type, title, summary, content,
	publication_date, fetched_at, first_seen_at,
	category, sentiment, key_claim, requires_deep_analysis, keywords, entities,
	narrative_focus, source_style, raw_triage, triage_status, triaged_at,
	related_ids, deep_analysis, deep_analyzed_at, comparative_analysis_id`

func (p *PostgresStore) GetArticle(ctx context.Context, id string) (*core.Article, error) {
	query := `SELECT ` + articleColumns + ` FROM articles WHERE id = $1`
	article, err := scanArticle(p.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("article %s: %w", id, ErrNotFound)
	}
	return article, err
}

func (p *PostgresStore) GetArticles(ctx context.Context, ids []string) ([]core.Article, error) {
	query := `
		SELECT ` + articleColumns + `
		FROM articles
		WHERE id = ANY($1)
		ORDER BY array_position($1::text[], id)
	`
	return p.queryArticles(ctx, query, pq.Array(ids))
}

func (p *PostgresStore) ListArticles(ctx context.Context, opts ListOptions) ([]core.Article, error) {
	query := `
		SELECT ` + articleColumns + `
		FROM articles
		WHERE ($1 = '' OR category = $1) AND ($2 = '' OR source_name = $2)
		ORDER BY publication_date DESC NULLS LAST, fetched_at DESC
		LIMIT $3 OFFSET $4
	`
	return p.queryArticles(ctx, query, opts.Category, opts.Source, opts.limit(), opts.Offset)
}

func (p *PostgresStore) FindArticles(ctx context.Context, filter Filter, limit int) ([]core.Article, error) {
	where, args := filter.whereSQL(nil)
	query := `SELECT ` + articleColumns + ` FROM articles WHERE ` + where + ` ORDER BY first_seen_at, id`
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	articles, err := p.queryArticles(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("candidate query failed: %w", err)
	}
	return articles, nil
}

func (p *PostgresStore) Unanalyzed(ctx context.Context, limit int) ([]core.Article, error) {
	query := `
		SELECT ` + articleColumns + `
		FROM articles
		WHERE category IS NULL
		ORDER BY (triage_status = 'failed'), first_seen_at, id
		LIMIT $1
	`
	return p.queryArticles(ctx, query, limit)
}

func (p *PostgresStore) Unlinked(ctx context.Context, since time.Time, limit int) ([]core.Article, error) {
	query := `
		SELECT ` + articleColumns + `
		FROM articles
		WHERE category IS NOT NULL
		  AND fetched_at >= $1
		  AND cardinality(keywords) > 0
		  AND cardinality(related_ids) = 0
		ORDER BY fetched_at DESC
		LIMIT $2
	`
	return p.queryArticles(ctx, query, since, limit)
}

func (p *PostgresStore) UpsertArticles(ctx context.Context, articles []core.Article) (core.UpsertResult, error) {
	var res core.UpsertResult
	seen := make(map[string]bool, len(articles))

	query := `
		INSERT INTO articles (
			id, url, source_name, source_type, title, summary, content,
			publication_date, fetched_at, first_seen_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		ON CONFLICT (url) DO UPDATE SET
			source_name = EXCLUDED.source_name,
			source_type = COALESCE(NULLIF(EXCLUDED.source_type, ''), articles.source_type),
			title = EXCLUDED.title,
			summary = COALESCE(NULLIF(EXCLUDED.summary, ''), articles.summary),
			content = COALESCE(NULLIF(EXCLUDED.content, ''), articles.content),
			publication_date = COALESCE(EXCLUDED.publication_date, articles.publication_date),
			fetched_at = EXCLUDED.fetched_at
		RETURNING (xmax = 0) AS inserted
	`

	for i := range articles {
		a := &articles[i]
		if a.URL == "" {
			res.Failed++
			continue
		}
		if seen[a.URL] {
			continue
		}
		seen[a.URL] = true

		id := a.ID
		if id == "" {
			id = uuid.NewString()
		}
		fetched := a.FetchedAt
		if fetched.IsZero() {
			fetched = time.Now().UTC()
		}

		var inserted bool
		err := p.db.QueryRowContext(ctx, query,
			id, a.URL, a.SourceName, a.SourceType, a.Title, a.Summary, a.Content,
			a.PublicationDate, fetched,
		).Scan(&inserted)
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			res.Failed++
			continue
		}
		if inserted {
			res.Inserted++
		} else {
			res.Updated++
		}
	}
	return res, nil
}

func (p *PostgresStore) UpdateTriage(ctx context.Context, id string, f core.TriageFields, at time.Time) error {
	raw := f.Raw
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	query := `
		UPDATE articles SET
			category = $2, sentiment = $3, key_claim = $4, requires_deep_analysis = $5,
			keywords = $6, entities = $7, narrative_focus = $8, source_style = $9,
			raw_triage = $10, triage_status = $11, triaged_at = $12
		WHERE id = $1
	`
	return p.execOne(ctx, id, query, id,
		f.Category, f.Sentiment, f.KeyClaim, f.RequiresDeepAnalysis,
		pq.Array(nonNil(f.Keywords)), pq.Array(nonNil(f.Entities)), f.NarrativeFocus, f.SourceStyle,
		[]byte(raw), f.Status, at,
	)
}

func (p *PostgresStore) MarkTriageFailed(ctx context.Context, id string, cause string) error {
	raw, _ := json.Marshal(map[string]string{"error": cause})
	query := `UPDATE articles SET triage_status = $2, raw_triage = $3, triaged_at = NOW() WHERE id = $1`
	return p.execOne(ctx, id, query, id, core.TriageFailed, raw)
}

func (p *PostgresStore) SaveDeepAnalysis(ctx context.Context, id string, payload json.RawMessage, at time.Time) error {
	query := `UPDATE articles SET deep_analysis = $2, deep_analyzed_at = $3 WHERE id = $1`
	return p.execOne(ctx, id, query, id, []byte(payload), at)
}

func (p *PostgresStore) SetRelated(ctx context.Context, id string, related []string) error {
	query := `UPDATE articles SET related_ids = $2 WHERE id = $1`
	return p.execOne(ctx, id, query, id, pq.Array(nonNil(related)))
}

func (p *PostgresStore) AddRelated(ctx context.Context, id string, relatedID string) error {
	query := `
		UPDATE articles
		SET related_ids = CASE
			WHEN $2 = ANY(related_ids) THEN related_ids
			ELSE array_append(related_ids, $2)
		END
		WHERE id = $1
	`
	return p.execOne(ctx, id, query, id, relatedID)
}

func (p *PostgresStore) Relations(ctx context.Context) (map[string][]string, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id, related_ids FROM articles WHERE cardinality(related_ids) > 0`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]string)
	for rows.Next() {
		var id string
		var related pq.StringArray
		if err := rows.Scan(&id, &related); err != nil {
			return nil, err
		}
		out[id] = []string(related)
	}
	return out, rows.Err()
}

func (p *PostgresStore) CreateComparison(ctx context.Context, c *core.ComparativeAnalysis) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	if c.Type == "" {
		c.Type = core.ComparisonType
	}
	query := `
		INSERT INTO comparative_analyses (id, article_ids, analysis_results, created_at, type)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := p.db.ExecContext(ctx, query, c.ID, pq.Array(c.ArticleIDs), []byte(c.Payload), c.CreatedAt, c.Type)
	if err != nil {
		return fmt.Errorf("failed to insert comparative analysis: %w", err)
	}
	return nil
}

func (p *PostgresStore) SetComparisonRef(ctx context.Context, articleIDs []string, comparisonID string) error {
	query := `UPDATE articles SET comparative_analysis_id = $2 WHERE id = ANY($1)`
	_, err := p.db.ExecContext(ctx, query, pq.Array(articleIDs), comparisonID)
	return err
}

func (p *PostgresStore) GetComparison(ctx context.Context, id string) (*core.ComparativeAnalysis, error) {
	query := `SELECT id, article_ids, analysis_results, created_at, type FROM comparative_analyses WHERE id = $1`
	var c core.ComparativeAnalysis
	var ids pq.StringArray
	var payload []byte
	err := p.db.QueryRowContext(ctx, query, id).Scan(&c.ID, &ids, &payload, &c.CreatedAt, &c.Type)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("comparison %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	c.ArticleIDs = []string(ids)
	c.Payload = payload
	return &c, nil
}

func (p *PostgresStore) CountArticles(ctx context.Context) (int, error) {
	var n int
	err := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM articles`).Scan(&n)
	return n, err
}

var dimensionSQL = map[Dimension]struct{ expr, where string }{
	DimCategory:     {"category", "category IS NOT NULL"},
	DimSource:       {"source_name", "TRUE"},
	DimSentiment:    {"sentiment", "sentiment <> ''"},
	DimTriageStatus: {"COALESCE(NULLIF(triage_status, ''), 'pending')", "TRUE"},
	DimDeepFlag:     {"CASE WHEN requires_deep_analysis THEN 'yes' ELSE 'no' END", "category IS NOT NULL"},
	DimDay:          {"to_char(COALESCE(publication_date, fetched_at) AT TIME ZONE 'UTC', 'YYYY-MM-DD')", "TRUE"},
	DimKeyClaim:     {"key_claim", "key_claim <> ''"},
}

func (p *PostgresStore) CountBy(ctx context.Context, dim Dimension, limit int) ([]core.Count, error) {
	d, ok := dimensionSQL[dim]
	if !ok {
		return nil, fmt.Errorf("unsupported dimension %q", dim)
	}
	order := "count DESC, label"
	if dim == DimDay {
		order = "label"
	}
	query := fmt.Sprintf(`SELECT %s AS label, COUNT(*) AS count FROM articles WHERE %s GROUP BY 1 ORDER BY %s`,
		d.expr, d.where, order)
	var args []any
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to count by %s: %w", dim, err)
	}
	defer rows.Close()

	var counts []core.Count
	for rows.Next() {
		var c core.Count
		if err := rows.Scan(&c.Label, &c.Count); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

func (p *PostgresStore) execOne(ctx context.Context, id, query string, args ...any) error {
	result, err := p.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update article %s: %w", id, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("article %s: %w", id, ErrNotFound)
	}
	return nil
}

func (p *PostgresStore) queryArticles(ctx context.Context, query string, args ...any) ([]core.Article, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var articles []core.Article
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		articles = append(articles, *article)
	}
	return articles, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArticle(row rowScanner) (*core.Article, error) {
	var a core.Article
	var (
		category, comparisonID    sql.NullString
		publication, triaged, dpa sql.NullTime
		keywords, entities, rel   pq.StringArray
		rawTriage, deep           []byte
	)

	err := row.Scan(
		&a.ID, &a.URL, &a.SourceName, &a.SourceType, &a.Title, &a.Summary, &a.Content,
		&publication, &a.FetchedAt, &a.FirstSeenAt,
		&category, &a.Sentiment, &a.KeyClaim, &a.RequiresDeepAnalysis, &keywords, &entities,
		&a.NarrativeFocus, &a.SourceStyle, &rawTriage, &a.TriageStatus, &triaged,
		&rel, &deep, &dpa, &comparisonID,
	)
	if err != nil {
		return nil, err
	}

	a.Category = category.String
	a.ComparativeAnalysisID = comparisonID.String
	a.PublicationDate = timePtr(publication)
	a.TriagedAt = timePtr(triaged)
	a.DeepAnalyzedAt = timePtr(dpa)
	a.Keywords = []string(keywords)
	a.Entities = []string(entities)
	a.RelatedIDs = []string(rel)
	if len(rawTriage) > 0 {
		a.RawTriage = rawTriage
	}
	if len(deep) > 0 {
		a.DeepAnalysis = deep
	}
	return &a, nil
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func orDefault(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}
