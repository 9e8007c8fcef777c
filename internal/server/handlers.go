package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"newslens/internal/analysis"
	"newslens/internal/core"
	"newslens/internal/persistence"

	"github.com/go-chi/chi/v5"
)

// Triage limit bounds for the HTTP endpoint.
const (
	DefaultTriageLimit = 50
	MaxTriageLimit     = 200
)

// HealthResponse is the /health payload.
type HealthResponse struct {
	Status string            `json:"status"`
	Uptime string            `json:"uptime"`
	Checks map[string]string `json:"checks"`
}

// CompareRequest is the body of POST /api/compare.
type CompareRequest struct {
	ArticleIDs []string `json:"article_ids"`
}

// ArticleList is the body of GET /api/articles.
type ArticleList struct {
	Articles []core.Article `json:"articles"`
	Count    int            `json:"count"`
	Limit    int            `json:"limit"`
	Offset   int            `json:"offset"`
}

var serverStartTime = time.Now()

// handleHealth handles the /health endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	status, code := "ok", http.StatusOK

	if err := s.deps.Store.Ping(r.Context()); err != nil {
		s.log.Error("Health check: store ping failed", "error", err)
		checks["database"] = "error"
		status, code = "unhealthy", http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
	}

	cacheHealth := s.deps.Cache.Health(r.Context())
	if st, _ := cacheHealth["status"].(string); st != "" {
		checks["cache"] = st
	}

	s.respondJSON(w, code, HealthResponse{
		Status: status,
		Uptime: time.Since(serverStartTime).Round(time.Second).String(),
		Checks: checks,
	})
}

// handleListArticles handles GET /api/articles
func (s *Server) handleListArticles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := persistence.ListOptions{
		Category: q.Get("category"),
		Source:   q.Get("source"),
	}
	var err error
	if opts.Limit, err = intParam(r, "limit", 100, 1, 1000); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if opts.Offset, err = intParam(r, "offset", 0, 0, 1<<31-1); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	articles, err := s.deps.Store.ListArticles(r.Context(), opts)
	if err != nil {
		s.log.Error("Failed to list articles", "error", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to list articles")
		return
	}
	if articles == nil {
		articles = []core.Article{}
	}
	s.respondJSON(w, http.StatusOK, ArticleList{Articles: articles, Count: len(articles), Limit: opts.Limit, Offset: opts.Offset})
}

// handleGetArticle handles GET /api/articles/{id}
func (s *Server) handleGetArticle(w http.ResponseWriter, r *http.Request) {
	a, err := s.deps.Store.GetArticle(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondLookupError(w, err, "Failed to get article")
		return
	}
	s.respondJSON(w, http.StatusOK, a)
}

// handleRelated handles GET /api/articles/{id}/related
func (s *Server) handleRelated(w http.ResponseWriter, r *http.Request) {
	related, err := s.deps.Analyzer.Related(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondLookupError(w, err, "Failed to get related articles")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"articles": related, "count": len(related)})
}

// handleComparison handles GET /api/articles/{id}/comparison
func (s *Server) handleComparison(w http.ResponseWriter, r *http.Request) {
	c, err := s.deps.Analyzer.ComparisonFor(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondLookupError(w, err, "Failed to get comparative analysis")
		return
	}
	s.respondJSON(w, http.StatusOK, c)
}

// handleDeepAnalyze handles POST /api/articles/{id}/deep
func (s *Server) handleDeepAnalyze(w http.ResponseWriter, r *http.Request) {
	a, err := s.deps.Analyzer.DeepAnalyze(r.Context(), chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, analysis.ErrInsufficientContent):
		s.respondError(w, http.StatusUnprocessableEntity, "Article has no content to analyze")
		return
	case err != nil:
		s.respondLookupError(w, err, "Deep analysis failed")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"article_id":    a.ID,
		"deep_analysis": a.DeepAnalysis,
		"analyzed_at":   a.DeepAnalyzedAt,
	})
}

// handleFetch handles POST /api/fetch
func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	report, err := s.deps.Fetcher.Ingest(r.Context(), s.deps.Store, s.deps.FeedURLs)
	if err != nil {
		s.log.Error("Fetch failed", "error", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to fetch and save articles")
		return
	}

	message := "Articles fetched and processed."
	if report.Fetched == 0 {
		message = "No new articles fetched."
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"message":        message,
		"fetched_count":  report.Fetched,
		"inserted_count": report.Saved.Inserted,
		"updated_count":  report.Saved.Updated,
		"failed_count":   report.Saved.Failed,
		"feeds":          report.Feeds,
	})
}

// handleTriage handles POST /api/triage. The batch runs in the background.
func (s *Server) handleTriage(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", DefaultTriageLimit, 1, MaxTriageLimit)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.runBackground("triage", func(ctx context.Context) {
		report, err := s.deps.Analyzer.Triage(ctx, limit)
		if err != nil {
			s.log.Error("Background triage failed", "error", err)
			return
		}
		s.log.Info("Background triage finished", "analyzed", report.Analyzed, "failed", report.Failed, "linked", report.Linked)
	})

	s.respondJSON(w, http.StatusAccepted, map[string]any{
		"message": "Triage started in the background; related articles are linked as each article is analyzed.",
		"limit":   limit,
	})
}

// handleCompare handles POST /api/compare
func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	var req CompareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	res, err := s.deps.Analyzer.Compare(r.Context(), req.ArticleIDs)
	if err != nil {
		var ce *analysis.CompareError
		switch {
		case errors.Is(err, analysis.ErrTooFewArticles):
			s.respondError(w, http.StatusBadRequest, err.Error())
		case errors.As(err, &ce) && ce.Reason == analysis.ReasonGenerationFailed:
			s.log.Warn("Comparative analysis failed", "error", err)
			s.respondError(w, http.StatusBadGateway, err.Error())
		default:
			s.log.Error("Comparative analysis failed", "error", err)
			s.respondError(w, http.StatusInternalServerError, "Comparative analysis failed")
		}
		return
	}
	s.respondJSON(w, http.StatusOK, res)
}

// handleBackfill handles POST /api/backfill
func (s *Server) handleBackfill(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", analysis.DefaultBackfillLimit, 1, 1000)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	days, err := intParam(r, "days_back", analysis.DefaultBackfillDays, 1, 365)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := s.deps.Analyzer.Backfill(r.Context(), limit, days)
	if err != nil {
		s.log.Error("Backfill failed", "error", err)
		s.respondError(w, http.StatusInternalServerError, "Backfill failed")
		return
	}
	s.respondJSON(w, http.StatusOK, report)
}

// handleStats handles GET /api/stats
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	d, err := s.deps.Stats.Dashboard(r.Context())
	if err != nil {
		s.log.Error("Failed to build dashboard", "error", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to build dashboard")
		return
	}
	s.respondJSON(w, http.StatusOK, d)
}

func (s *Server) respondLookupError(w http.ResponseWriter, err error, message string) {
	if errors.Is(err, persistence.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, err.Error())
		return
	}
	s.log.Error(message, "error", err)
	s.respondError(w, http.StatusInternalServerError, message)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error("Failed to encode JSON response", "error", err)
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]any{
		"error": map[string]any{
			"status":  status,
			"message": message,
		},
	})
}

// intParam reads an integer query parameter bounded to [min, max].
func intParam(r *http.Request, name string, fallback, min, max int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < min || v > max {
		return 0, &paramError{name: name, min: min, max: max}
	}
	return v, nil
}

type paramError struct {
	name     string
	min, max int
}

func (e *paramError) Error() string {
	return "query parameter " + e.name + " must be an integer between " +
		strconv.Itoa(e.min) + " and " + strconv.Itoa(e.max)
}
