package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"newslens/internal/core"
	"newslens/internal/correlate"
	"newslens/internal/extract"
	"newslens/internal/llm"
	"newslens/internal/persistence"
	"newslens/internal/schema"
)

// scriptedExtractor returns a fixed result per kind, or a result keyed by
// content when byContent has an entry.
type scriptedExtractor struct {
	byKind    map[schema.Kind]extract.Result
	byContent map[string]extract.Result
	requests  []extract.Request
}

func (s *scriptedExtractor) Extract(ctx context.Context, req extract.Request) extract.Result {
	s.requests = append(s.requests, req)
	if r, ok := s.byContent[req.Content]; ok {
		return r
	}
	if r, ok := s.byKind[req.Kind]; ok {
		return r
	}
	return extract.Result{Tag: extract.TagTransportError, Cause: "no script"}
}

type recordingTracker struct {
	events []string
}

func (r *recordingTracker) Track(event string, properties map[string]any) {
	r.events = append(r.events, event)
}

type fixedProvider struct {
	text  string
	calls []llm.Request
}

func (p *fixedProvider) Name() string { return "fixed" }

func (p *fixedProvider) Generate(ctx context.Context, req llm.Request) (*llm.Response, error) {
	p.calls = append(p.calls, req)
	return &llm.Response{Text: p.text, Model: "fixed-model"}, nil
}

func triageRecord(category string, keywords ...string) map[string]any {
	kw := make([]any, len(keywords))
	for i, k := range keywords {
		kw[i] = k
	}
	return map[string]any{
		"category":               category,
		"sentiment":              "Factual",
		"key_claim":              "Vaccine trial enters phase three",
		"requires_deep_analysis": "Yes",
		"keywords":               kw,
		"main_entities": []any{
			map[string]any{"text": "WHO", "type": "ORGANIZATION"},
			map[string]any{"text": "ANMAT", "type": "ORGANIZATION"},
		},
		"narrative_focus": map[string]any{"primary_focus": "Facts/Events", "emphasized_aspects": []any{}},
		"source_style": map[string]any{
			"depth": "Standard", "formality": "Formal",
			"technical_level": "General audience", "use_of_sources": "Limited sources",
		},
	}
}

func newTestOrchestrator(t *testing.T, ex Extractor) (*Orchestrator, *persistence.MemoryStore, *recordingTracker) {
	t.Helper()
	store := persistence.NewMemoryStore()
	tracker := &recordingTracker{}
	engine := correlate.NewEngine(store, correlate.DefaultOptions())
	o := New(store, ex, engine, tracker, Options{TriageModel: "triage-model", DeepModel: "deep-model"})
	return o, store, tracker
}

func seed(t *testing.T, store *persistence.MemoryStore, articles ...core.Article) []core.Article {
	t.Helper()
	ctx := context.Background()
	if _, err := store.UpsertArticles(ctx, articles); err != nil {
		t.Fatalf("UpsertArticles failed: %v", err)
	}
	list, err := store.ListArticles(ctx, persistence.ListOptions{Limit: 1000})
	if err != nil {
		t.Fatalf("ListArticles failed: %v", err)
	}
	out := make([]core.Article, 0, len(articles))
	for _, in := range articles {
		for _, a := range list {
			if a.URL == in.URL {
				out = append(out, a)
			}
		}
	}
	return out
}

func mustGet(t *testing.T, store *persistence.MemoryStore, id string) *core.Article {
	t.Helper()
	a, err := store.GetArticle(context.Background(), id)
	if err != nil {
		t.Fatalf("GetArticle(%s) failed: %v", id, err)
	}
	return a
}

func TestTriage_PersistsAndLinks(t *testing.T) {
	ex := &scriptedExtractor{byKind: map[schema.Kind]extract.Result{
		schema.KindTriage: {Tag: extract.TagOK, Record: triageRecord("Health", "vaccine", "trial", "phase3")},
	}}
	o, store, tracker := newTestOrchestrator(t, ex)
	seeded := seed(t, store,
		core.Article{URL: "https://a.example/1", SourceName: "Clarín", Title: "Vacuna en fase tres", Summary: "Resumen A"},
		core.Article{URL: "https://b.example/1", SourceName: "Infobae", Title: "Ensayo de vacuna avanza"},
	)

	report, err := o.Triage(context.Background(), 10)
	if err != nil {
		t.Fatalf("Triage failed: %v", err)
	}
	if report.Analyzed != 2 || report.Failed != 0 {
		t.Fatalf("expected 2 analyzed, got %+v", report)
	}
	if report.Linked != 1 {
		t.Errorf("expected 1 link from the second article, got %d", report.Linked)
	}

	if ex.requests[0].Content != "Resumen A" {
		t.Errorf("expected summary as triage content, got %q", ex.requests[0].Content)
	}
	if ex.requests[1].Content != "Ensayo de vacuna avanza" {
		t.Errorf("expected title fallback, got %q", ex.requests[1].Content)
	}
	if ex.requests[0].Temperature != DefaultTriageTemperature || ex.requests[0].Model != "triage-model" {
		t.Errorf("unexpected triage request: %+v", ex.requests[0])
	}

	a := mustGet(t, store, seeded[0].ID)
	b := mustGet(t, store, seeded[1].ID)
	if a.Category != "Health" || a.TriageStatus != core.TriageOK || !a.RequiresDeepAnalysis {
		t.Errorf("triage fields not stored: %+v", a)
	}
	if len(a.RelatedIDs) != 1 || a.RelatedIDs[0] != b.ID {
		t.Errorf("expected back-link on first article, got %v", a.RelatedIDs)
	}
	if len(b.RelatedIDs) != 1 || b.RelatedIDs[0] != a.ID {
		t.Errorf("expected link on second article, got %v", b.RelatedIDs)
	}
	if len(tracker.events) != 1 || tracker.events[0] != "triage_batch_completed" {
		t.Errorf("expected one batch event, got %v", tracker.events)
	}

	again, err := o.Triage(context.Background(), 10)
	if err != nil {
		t.Fatalf("second Triage failed: %v", err)
	}
	if again.Analyzed != 0 || len(again.Outcomes) != 0 {
		t.Errorf("expected nothing left to triage, got %+v", again)
	}
}

func TestTriage_FailureMarksArticleAndContinues(t *testing.T) {
	ex := &scriptedExtractor{
		byKind: map[schema.Kind]extract.Result{
			schema.KindTriage: {Tag: extract.TagOK, Record: triageRecord("Politics", "senado", "reforma")},
		},
		byContent: map[string]extract.Result{
			"broken": {Tag: extract.TagTransportError, Cause: "connection reset"},
		},
	}
	o, store, _ := newTestOrchestrator(t, ex)
	seeded := seed(t, store,
		core.Article{URL: "https://a.example/2", Title: "broken"},
		core.Article{URL: "https://b.example/2", Title: "Reforma en el Senado"},
	)

	report, err := o.Triage(context.Background(), 10)
	if err != nil {
		t.Fatalf("Triage failed: %v", err)
	}
	if report.Analyzed != 1 || report.Failed != 1 {
		t.Fatalf("expected 1 analyzed and 1 failed, got %+v", report)
	}
	if report.Outcomes[0].Tag != extract.TagTransportError || report.Outcomes[0].Err == "" {
		t.Errorf("unexpected failed outcome: %+v", report.Outcomes[0])
	}

	failed := mustGet(t, store, seeded[0].ID)
	if failed.TriageStatus != core.TriageFailed || failed.IsTriaged() {
		t.Errorf("expected failed and still unanalyzed, got status=%q category=%q", failed.TriageStatus, failed.Category)
	}

	pending, _ := store.Unanalyzed(context.Background(), 10)
	if len(pending) != 1 || pending[0].ID != failed.ID {
		t.Errorf("failed article should be retried, got %d pending", len(pending))
	}
}

func TestTriage_DefaultRecordThroughExtractionClient(t *testing.T) {
	provider := &fixedProvider{text: "I cannot help with that."}
	client := extract.NewClient(provider, schema.NewRegistry())
	o, store, _ := newTestOrchestrator(t, client)
	seeded := seed(t, store, core.Article{URL: "https://a.example/3", Title: "Titular"})

	report, err := o.Triage(context.Background(), 5)
	if err != nil {
		t.Fatalf("Triage failed: %v", err)
	}
	if report.Analyzed != 1 || report.Outcomes[0].Tag != extract.TagDefault {
		t.Fatalf("expected one default outcome, got %+v", report)
	}
	if len(provider.calls) != 1 || provider.calls[0].Temperature != DefaultTriageTemperature {
		t.Errorf("expected a single call at temperature %v, got %+v", DefaultTriageTemperature, provider.calls)
	}

	a := mustGet(t, store, seeded[0].ID)
	if a.Category != "Uncategorized" || a.Sentiment != "Neutral" || a.TriageStatus != core.TriageDefault {
		t.Errorf("expected default record stored, got category=%q sentiment=%q status=%q",
			a.Category, a.Sentiment, a.TriageStatus)
	}
	var raw map[string]any
	if err := json.Unmarshal(a.RawTriage, &raw); err != nil {
		t.Fatalf("raw triage is not JSON: %v", err)
	}
	if _, ok := raw["error"]; !ok {
		t.Error("default record should carry an error key")
	}
}

func TestTriageFieldsFrom(t *testing.T) {
	rec := triageRecord("Health", "vaccine", " vaccine ", "trial", "")
	rec["main_entities"] = []any{"Pfizer", map[string]any{"text": "WHO"}, map[string]any{"type": "EVENT"}}

	f := TriageFieldsFrom(extract.Result{Tag: extract.TagRepaired, Record: rec})
	if f.Status != core.TriageRepaired {
		t.Errorf("expected repaired status, got %q", f.Status)
	}
	if strings.Join(f.Keywords, ",") != "vaccine,trial" {
		t.Errorf("expected trimmed unique keywords, got %v", f.Keywords)
	}
	if strings.Join(f.Entities, ",") != "Pfizer,WHO" {
		t.Errorf("unexpected entities: %v", f.Entities)
	}
	if !f.RequiresDeepAnalysis {
		t.Error("expected Yes to map to true")
	}
	if f.NarrativeFocus != "Facts/Events" {
		t.Errorf("unexpected narrative focus %q", f.NarrativeFocus)
	}
	if f.SourceStyle != "Standard, Formal, General audience, Limited sources" {
		t.Errorf("unexpected source style %q", f.SourceStyle)
	}

	empty := TriageFieldsFrom(extract.Result{Tag: extract.TagOK, Record: map[string]any{}})
	if empty.Category != "Uncategorized" {
		t.Errorf("expected fallback category, got %q", empty.Category)
	}
}

func TestDeepAnalyze(t *testing.T) {
	ex := &scriptedExtractor{byKind: map[schema.Kind]extract.Result{
		schema.KindDeep: {Tag: extract.TagOK, Record: map[string]any{"political_leaning_detected": "Center"}},
	}}
	o, store, tracker := newTestOrchestrator(t, ex)
	seeded := seed(t, store,
		core.Article{URL: "https://a.example/4", Title: "T", Summary: "S", Content: "Cuerpo completo"},
		core.Article{URL: "https://a.example/5", Title: "   "},
	)

	a, err := o.DeepAnalyze(context.Background(), seeded[0].ID)
	if err != nil {
		t.Fatalf("DeepAnalyze failed: %v", err)
	}
	req := ex.requests[0]
	if req.Content != "Cuerpo completo" || req.MaxTokens != DeepMaxTokens || req.Temperature != DeepTemperature || req.Model != "deep-model" {
		t.Errorf("unexpected deep request: %+v", req)
	}
	if a.DeepAnalyzedAt == nil || !strings.Contains(string(a.DeepAnalysis), "Center") {
		t.Errorf("expected payload on returned article, got %s", a.DeepAnalysis)
	}
	if stored := mustGet(t, store, a.ID); !strings.Contains(string(stored.DeepAnalysis), "Center") {
		t.Errorf("expected payload stored, got %s", stored.DeepAnalysis)
	}
	if len(tracker.events) != 1 || tracker.events[0] != "deep_analysis_completed" {
		t.Errorf("unexpected events %v", tracker.events)
	}

	if _, err := o.DeepAnalyze(context.Background(), seeded[1].ID); !errors.Is(err, ErrInsufficientContent) {
		t.Errorf("expected ErrInsufficientContent, got %v", err)
	}
	if _, err := o.DeepAnalyze(context.Background(), "missing"); !errors.Is(err, persistence.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if len(ex.requests) != 1 {
		t.Errorf("expected no extraction for failed preconditions, got %d requests", len(ex.requests))
	}
}

func TestDeepAnalyze_DegradedPayloadIsStored(t *testing.T) {
	ex := &scriptedExtractor{byKind: map[schema.Kind]extract.Result{
		schema.KindDeep: {Tag: extract.TagTransportError, Cause: "timeout"},
	}}
	o, store, _ := newTestOrchestrator(t, ex)
	seeded := seed(t, store, core.Article{URL: "https://a.example/6", Title: "Titular"})

	if _, err := o.DeepAnalyze(context.Background(), seeded[0].ID); err != nil {
		t.Fatalf("DeepAnalyze failed: %v", err)
	}
	var payload map[string]any
	if err := json.Unmarshal(mustGet(t, store, seeded[0].ID).DeepAnalysis, &payload); err != nil {
		t.Fatalf("stored payload is not JSON: %v", err)
	}
	if payload["error"] != "timeout" || payload["error_type"] != string(extract.TagTransportError) {
		t.Errorf("expected error annotation, got %v", payload)
	}
}

func comparativeOK() extract.Result {
	return extract.Result{Tag: extract.TagOK, Record: map[string]any{
		"story_core_facts": map[string]any{"core_event": "Senate vote"},
	}}
}

func TestCompare_Preconditions(t *testing.T) {
	ex := &scriptedExtractor{byKind: map[schema.Kind]extract.Result{schema.KindComparative: comparativeOK()}}
	o, store, _ := newTestOrchestrator(t, ex)
	seeded := seed(t, store,
		core.Article{URL: "https://a.example/7", Title: "A"},
		core.Article{URL: "https://b.example/7", Title: "B"},
	)
	missing := "00000000-0000-4000-8000-000000000000"

	tests := []struct {
		name   string
		ids    []string
		reason string
	}{
		{"single id", []string{seeded[0].ID}, "Insufficient articles for comparison"},
		{"no ids", nil, "Insufficient articles for comparison"},
		{"duplicates and blanks", []string{seeded[0].ID, " " + seeded[0].ID, ""}, "Not enough valid article IDs"},
		{"malformed id", []string{seeded[0].ID, "not-a-uuid"}, "Not enough valid article IDs"},
		{"unknown article", []string{seeded[0].ID, missing}, "Could not retrieve enough articles"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := o.Compare(context.Background(), tt.ids)
			if res != nil {
				t.Fatalf("expected no result, got %+v", res)
			}
			var ce *CompareError
			if !errors.As(err, &ce) {
				t.Fatalf("expected *CompareError, got %v", err)
			}
			if ce.Reason != tt.reason || !errors.Is(err, ErrTooFewArticles) {
				t.Errorf("expected %q, got %q (%v)", tt.reason, ce.Reason, ce.Err)
			}
		})
	}

	if n := store.Comparisons(); n != 0 {
		t.Errorf("expected nothing persisted, got %d comparisons", n)
	}
	if len(ex.requests) != 0 {
		t.Errorf("expected no extraction, got %d requests", len(ex.requests))
	}
	for _, a := range seeded {
		if mustGet(t, store, a.ID).ComparativeAnalysisID != "" {
			t.Errorf("article %s should not reference a comparison", a.ID)
		}
	}
}

func TestCompare_Success(t *testing.T) {
	ex := &scriptedExtractor{byKind: map[schema.Kind]extract.Result{schema.KindComparative: comparativeOK()}}
	o, store, tracker := newTestOrchestrator(t, ex)
	pub := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	long := strings.Repeat("ñ", CompareContentLimit+50)
	seeded := seed(t, store,
		core.Article{URL: "https://a.example/8", SourceName: "Clarín", Title: "A", Content: long, PublicationDate: &pub},
		core.Article{URL: "https://b.example/8", SourceName: "Infobae", Title: "B", Summary: "Resumen"},
	)
	ids := []string{seeded[0].ID, seeded[1].ID}

	res, err := o.Compare(context.Background(), ids)
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}
	if res.ArticleCount != 2 || res.AnalysisID == "" || res.Analysis.Type != core.ComparisonType {
		t.Errorf("unexpected result: %+v", res)
	}

	req := ex.requests[0]
	if req.MaxTokens != CompareMaxTokens || req.Temperature != CompareTemperature || req.Model != "triage-model" {
		t.Errorf("unexpected comparative request: %+v", req)
	}
	var rendered []map[string]any
	if err := json.Unmarshal([]byte(req.Content), &rendered); err != nil {
		t.Fatalf("prompt content is not a JSON list: %v", err)
	}
	if len(rendered) != 2 {
		t.Fatalf("expected 2 rendered articles, got %d", len(rendered))
	}
	if got := []rune(rendered[0]["content"].(string)); len(got) != CompareContentLimit {
		t.Errorf("expected content cut to %d characters, got %d", CompareContentLimit, len(got))
	}
	if rendered[0]["publication_date"] != "2024-03-01T12:00:00Z" || rendered[1]["content"] != "Resumen" {
		t.Errorf("unexpected rendering: %v", rendered)
	}
	if !strings.Contains(req.Content, "\n  {") {
		t.Error("expected indented JSON")
	}

	if n := store.Comparisons(); n != 1 {
		t.Fatalf("expected 1 stored comparison, got %d", n)
	}
	for _, id := range ids {
		if got := mustGet(t, store, id).ComparativeAnalysisID; got != res.AnalysisID {
			t.Errorf("article %s references %q, want %q", id, got, res.AnalysisID)
		}
	}
	stored, err := o.ComparisonFor(context.Background(), ids[1])
	if err != nil {
		t.Fatalf("ComparisonFor failed: %v", err)
	}
	if len(stored.ArticleIDs) != 2 {
		t.Errorf("expected 2 article ids on the record, got %v", stored.ArticleIDs)
	}
	if tracker.events[len(tracker.events)-1] != "comparative_analysis_completed" {
		t.Errorf("unexpected events %v", tracker.events)
	}
}

func TestCompare_FailedGenerationPersistsNothing(t *testing.T) {
	for _, tag := range []extract.Tag{extract.TagDefault, extract.TagSchemaError, extract.TagTransportError} {
		t.Run(string(tag), func(t *testing.T) {
			ex := &scriptedExtractor{byKind: map[schema.Kind]extract.Result{
				schema.KindComparative: {Tag: tag, Cause: "bad output", Record: map[string]any{}},
			}}
			o, store, _ := newTestOrchestrator(t, ex)
			seeded := seed(t, store,
				core.Article{URL: "https://a.example/9", Title: "A"},
				core.Article{URL: "https://b.example/9", Title: "B"},
			)

			_, err := o.Compare(context.Background(), []string{seeded[0].ID, seeded[1].ID})
			var ce *CompareError
			if !errors.As(err, &ce) || ce.Reason != "Comparative analysis failed" {
				t.Fatalf("expected generation failure, got %v", err)
			}
			if store.Comparisons() != 0 {
				t.Error("expected nothing persisted")
			}
			if _, err := o.ComparisonFor(context.Background(), seeded[0].ID); !errors.Is(err, persistence.ErrNotFound) {
				t.Errorf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestBackfillAndRelated(t *testing.T) {
	o, store, _ := newTestOrchestrator(t, &scriptedExtractor{})
	ctx := context.Background()
	old := time.Now().AddDate(0, 0, -60)
	seeded := seed(t, store,
		core.Article{URL: "https://a.example/10", SourceName: "Clarín", Title: "Paro general"},
		core.Article{URL: "https://b.example/10", SourceName: "Infobae", Title: "La CGT convoca"},
		core.Article{URL: "https://c.example/10", SourceName: "Perfil", Title: "Viejo", FetchedAt: old},
	)
	for _, a := range seeded {
		fields := core.TriageFields{Category: "Politics", Keywords: []string{"cgt", "paro", "gobierno"}, Status: core.TriageOK}
		if err := store.UpdateTriage(ctx, a.ID, fields, time.Now()); err != nil {
			t.Fatalf("UpdateTriage failed: %v", err)
		}
	}

	report, err := o.Backfill(ctx, 0, 0)
	if err != nil {
		t.Fatalf("Backfill failed: %v", err)
	}
	if report.Processed != 2 {
		t.Errorf("expected the two recent articles processed, got %+v", report)
	}
	if report.Linked < 1 {
		t.Errorf("expected at least one linked article, got %+v", report)
	}

	related, err := o.Related(ctx, seeded[0].ID)
	if err != nil {
		t.Fatalf("Related failed: %v", err)
	}
	if len(related) == 0 {
		t.Fatal("expected related articles after backfill")
	}
	for _, r := range related {
		if r.ID == seeded[0].ID {
			t.Error("an article must not be related to itself")
		}
	}

	if _, err := o.Related(ctx, "missing"); !errors.Is(err, persistence.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestValidIDs(t *testing.T) {
	a := "6f1c1b9e-2a47-4f4e-9d53-0c1d2e3f4a5b"
	b := "0b7d4c1a-9e8f-4a2b-8c3d-1e2f3a4b5c6d"
	got := ValidIDs([]string{" " + a, "", b, a, "nope"})
	if strings.Join(got, ",") != a+","+b {
		t.Errorf("unexpected ids %v", got)
	}
}
