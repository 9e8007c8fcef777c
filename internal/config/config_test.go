package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	Reset()
	defer Reset()
	t.Setenv("LLM_PROVIDER", "")

	path := filepath.Join(t.TempDir(), "cfg.yaml")
	if err := os.WriteFile(path, []byte("app:\n  debug: false\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.LLM.Provider != "gemini" {
		t.Errorf("expected default provider gemini, got %q", cfg.LLM.Provider)
	}
	if cfg.LLM.DeepModel != cfg.LLM.Model {
		t.Errorf("expected deep model to fall back to %q, got %q", cfg.LLM.Model, cfg.LLM.DeepModel)
	}
	if cfg.Correlation.Threshold != 5 {
		t.Errorf("expected threshold 5, got %d", cfg.Correlation.Threshold)
	}
	if cfg.Correlation.MaxRelated != 10 {
		t.Errorf("expected max related 10, got %d", cfg.Correlation.MaxRelated)
	}
	if len(cfg.Feeds.URLs) != len(DefaultFeedURLs) {
		t.Errorf("expected %d default feeds, got %d", len(DefaultFeedURLs), len(cfg.Feeds.URLs))
	}
	if cfg.App.ConfigFile != path {
		t.Errorf("expected config file %q, got %q", path, cfg.App.ConfigFile)
	}
}

func TestLoad_FileOverridesAndEnvKeys(t *testing.T) {
	Reset()
	defer Reset()

	t.Setenv("DATABASE_URL", "postgres://localhost/newslens_test")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	path := filepath.Join(t.TempDir(), "cfg.yaml")
	body := `
llm:
  provider: OpenAI
  model: gpt-4o-mini
  deep_model: gpt-4o
correlation:
  threshold: 6
logging:
  format: text
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.LLM.Provider != "openai" {
		t.Errorf("expected provider to be normalized to openai, got %q", cfg.LLM.Provider)
	}
	if cfg.LLM.DeepModel != "gpt-4o" {
		t.Errorf("expected deep model gpt-4o, got %q", cfg.LLM.DeepModel)
	}
	if cfg.LLM.OpenAI.APIKey != "sk-test" {
		t.Errorf("expected OPENAI_API_KEY to bind, got %q", cfg.LLM.OpenAI.APIKey)
	}
	if cfg.Database.URL != "postgres://localhost/newslens_test" {
		t.Errorf("expected DATABASE_URL to bind, got %q", cfg.Database.URL)
	}
	if cfg.Correlation.Threshold != 6 {
		t.Errorf("expected threshold 6, got %d", cfg.Correlation.Threshold)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("expected text logging, got %q", cfg.Logging.Format)
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name:    "unknown provider",
			body:    "llm:\n  provider: cohere\n",
			wantErr: "Unknown LLM provider",
		},
		{
			name:    "bad duration",
			body:    "feeds:\n  timeout: soon\n",
			wantErr: "invalid duration for feeds.timeout",
		},
		{
			name:    "posthog without key",
			body:    "posthog:\n  enabled: true\n",
			wantErr: "PostHog is enabled",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			Reset()
			defer Reset()
			t.Setenv("POSTHOG_API_KEY", "")

			path := filepath.Join(t.TempDir(), "cfg.yaml")
			if err := os.WriteFile(path, []byte(tt.body), 0o644); err != nil {
				t.Fatalf("write config: %v", err)
			}

			_, err := Load(path)
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDuration(t *testing.T) {
	if got := Duration("", time.Second); got != time.Second {
		t.Errorf("expected fallback for empty value, got %v", got)
	}
	if got := Duration("bogus", time.Second); got != time.Second {
		t.Errorf("expected fallback for invalid value, got %v", got)
	}
	if got := Duration("90s", time.Second); got != 90*time.Second {
		t.Errorf("expected 90s, got %v", got)
	}
}
