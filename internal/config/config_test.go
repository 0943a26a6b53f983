package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.ActiveModel != "openai" {
		t.Errorf("active model = %q, want openai", cfg.ActiveModel)
	}
	if cfg.Pipeline.MaxIterations != 3 || !cfg.Pipeline.OptimizeEachCycle {
		t.Errorf("pipeline = %+v", cfg.Pipeline)
	}
	if cfg.SEO.Threshold != 80 || cfg.Quality.Threshold != 70 {
		t.Errorf("thresholds = %v/%v, want 80/70", cfg.SEO.Threshold, cfg.Quality.Threshold)
	}
	if cfg.SEO.MinWordCount != 800 || cfg.SEO.KeywordDensity != 0.02 {
		t.Errorf("seo = %+v", cfg.SEO)
	}
	if cfg.WordPress.Status != "draft" {
		t.Errorf("wordpress status = %q, want draft", cfg.WordPress.Status)
	}
	if cfg.Store.Path != "data/perepys.db" {
		t.Errorf("store path = %q", cfg.Store.Path)
	}
	if cfg.Batch.Delay != 5*time.Second {
		t.Errorf("batch delay = %v, want 5s", cfg.Batch.Delay)
	}
	if cfg.Images.Enabled || cfg.Images.Upload {
		t.Errorf("images default on: %+v", cfg.Images)
	}
	if cfg.Scraper.Timeout != 30*time.Second {
		t.Errorf("scraper timeout = %v, want 30s", cfg.Scraper.Timeout)
	}
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
active_model: anthropic
models:
  anthropic:
    api_key: sk-test
    model: claude-3-opus-20240229
    timeout: 45s
scraper:
  timeout: 10s
  remove_selectors: [".ads"]
pipeline:
  max_iterations: 5
  optimize_each_cycle: false
  language: uk
guard:
  forbidden_terms: ["Acme Blog"]
wordpress:
  api_url: https://cms.example.com/wp-json/wp/v2
  username: editor
  app_password: secret
images:
  enabled: true
  upload: true
store:
  path: /tmp/perepys-test.db
batch:
  delay: 250ms
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.ActiveModel != "anthropic" {
		t.Errorf("active model = %q", cfg.ActiveModel)
	}
	mc := cfg.ActiveModelConfig()
	if mc.APIKey != "sk-test" || mc.Model != "claude-3-opus-20240229" || mc.Timeout != 45*time.Second {
		t.Errorf("model config = %+v", mc)
	}
	if cfg.Scraper.Timeout != 10*time.Second {
		t.Errorf("scraper timeout = %v", cfg.Scraper.Timeout)
	}
	if len(cfg.Scraper.RemoveSelectors) != 1 || cfg.Scraper.RemoveSelectors[0] != ".ads" {
		t.Errorf("remove selectors = %v", cfg.Scraper.RemoveSelectors)
	}
	if cfg.Pipeline.MaxIterations != 5 || cfg.Pipeline.OptimizeEachCycle || cfg.Pipeline.Language != "uk" {
		t.Errorf("pipeline = %+v", cfg.Pipeline)
	}
	if len(cfg.Guard.ForbiddenTerms) != 1 || cfg.Guard.ForbiddenTerms[0] != "Acme Blog" {
		t.Errorf("guard terms = %v", cfg.Guard.ForbiddenTerms)
	}
	if cfg.WordPress.APIURL != "https://cms.example.com/wp-json/wp/v2" || cfg.WordPress.Username != "editor" {
		t.Errorf("wordpress = %+v", cfg.WordPress)
	}
	if !cfg.Images.Enabled || !cfg.Images.Upload {
		t.Errorf("images = %+v", cfg.Images)
	}
	if cfg.Store.Path != "/tmp/perepys-test.db" {
		t.Errorf("store path = %q", cfg.Store.Path)
	}
	if cfg.Batch.Delay != 250*time.Millisecond {
		t.Errorf("batch delay = %v", cfg.Batch.Delay)
	}

	// Sections the file does not mention keep their defaults.
	if cfg.SEO.Threshold != 80 {
		t.Errorf("seo threshold = %v, want the default", cfg.SEO.Threshold)
	}
}

func TestLoad_ExplicitFileMustExist(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for a missing explicit config file")
	}
}

func TestLoad_MalformedFile(t *testing.T) {
	path := writeConfig(t, "active_model: [unclosed")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for malformed YAML")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PEREPYS_PIPELINE_MAX_ITERATIONS", "7")
	t.Setenv("PEREPYS_MODELS_OPENAI_API_KEY", "sk-env")
	t.Setenv("PEREPYS_ACTIVE_MODEL", "openai")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Pipeline.MaxIterations != 7 {
		t.Errorf("max iterations = %d, want the environment value", cfg.Pipeline.MaxIterations)
	}
	if got := cfg.ActiveModelConfig().APIKey; got != "sk-env" {
		t.Errorf("api key = %q, want the environment value", got)
	}
}

func TestLoad_EnvBeatsFile(t *testing.T) {
	path := writeConfig(t, "pipeline:\n  max_iterations: 5\n")
	t.Setenv("PEREPYS_PIPELINE_MAX_ITERATIONS", "9")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Pipeline.MaxIterations != 9 {
		t.Errorf("max iterations = %d, want 9 (env over file)", cfg.Pipeline.MaxIterations)
	}
}
