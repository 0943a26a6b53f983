// Package config loads the application configuration: one YAML file, with
// every key overridable through PEREPYS_* environment variables (dots
// become underscores, so pipeline.max_iterations is
// PEREPYS_PIPELINE_MAX_ITERATIONS). Component packages apply their own
// fallbacks on top, so a sparse file is fine and no file at all still
// yields a usable configuration.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/valpere/perepys/internal/guard"
	"github.com/valpere/perepys/internal/images"
	"github.com/valpere/perepys/internal/model"
	"github.com/valpere/perepys/internal/pipeline"
	"github.com/valpere/perepys/internal/publisher"
	"github.com/valpere/perepys/internal/scraper"
	"github.com/valpere/perepys/internal/seo"
	"github.com/valpere/perepys/internal/translate"
)

const envPrefix = "PEREPYS"

// Config is the full configuration tree. Sections map one-to-one onto the
// packages that consume them.
type Config struct {
	ActiveModel string                  `mapstructure:"active_model"`
	Models      map[string]model.Config `mapstructure:"models"`
	Scraper     scraper.Config          `mapstructure:"scraper"`
	SEO         seo.Config              `mapstructure:"seo"`
	Quality     seo.QualityConfig       `mapstructure:"quality"`
	Pipeline    pipeline.Config         `mapstructure:"pipeline"`
	Guard       guard.Config            `mapstructure:"guard"`
	WordPress   publisher.Config        `mapstructure:"wordpress"`
	Images      images.Config           `mapstructure:"images"`
	Store       StoreConfig             `mapstructure:"store"`
	Localize    translate.Config        `mapstructure:"localize"`
	Prompts     PromptsConfig           `mapstructure:"prompts"`
	Batch       BatchConfig             `mapstructure:"batch"`
}

// StoreConfig locates the audit database. An empty path disables
// persistence and both caches.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// PromptsConfig locates the optional prompt-template overrides; empty
// means the embedded defaults.
type PromptsConfig struct {
	Path string `mapstructure:"path"`
}

// BatchConfig paces CSV batch runs.
type BatchConfig struct {
	Delay time.Duration `mapstructure:"delay"`
}

// ActiveModelConfig returns the settings for the selected backend. A
// missing section is not an error: backends fill their own defaults and
// fail on first use when credentials are required.
func (c *Config) ActiveModelConfig() model.Config {
	return c.Models[c.ActiveModel]
}

// Load reads the configuration. With an explicit path the file must
// exist; otherwise config/config.yaml and ./config.yaml are tried and a
// missing file falls back to defaults plus environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

// setDefaults registers the full key tree. Registration doubles as the
// environment binding: AutomaticEnv only overrides keys viper knows.
func setDefaults(v *viper.Viper) {
	v.SetDefault("active_model", "openai")

	for _, backend := range model.Backends() {
		prefix := "models." + backend + "."
		v.SetDefault(prefix+"api_key", "")
		v.SetDefault(prefix+"base_url", "")
		v.SetDefault(prefix+"model", "")
		v.SetDefault(prefix+"temperature", 0.0)
		v.SetDefault(prefix+"max_tokens", 0)
		v.SetDefault(prefix+"timeout", time.Duration(0))
	}
	v.SetDefault("models.azure_openai.endpoint", "")
	v.SetDefault("models.azure_openai.deployment", "")
	v.SetDefault("models.azure_openai.api_version", "")
	v.SetDefault("models.baidu.secret_key", "")

	v.SetDefault("scraper.backend", "general")
	v.SetDefault("scraper.timeout", "30s")
	v.SetDefault("scraper.user_agent", "")

	v.SetDefault("seo.min_word_count", 800)
	v.SetDefault("seo.keyword_density", 0.02)
	v.SetDefault("seo.meta_description_length", 160)
	v.SetDefault("seo.title_max_length", 60)
	v.SetDefault("seo.min_internal_links", 2)
	v.SetDefault("seo.min_images", 1)
	v.SetDefault("seo.min_h2", 2)
	v.SetDefault("seo.min_h3", 3)
	v.SetDefault("seo.threshold", 80)

	v.SetDefault("quality.min_readability", 60)
	v.SetDefault("quality.min_originality", 70)
	v.SetDefault("quality.max_avg_sentence_length", 25)
	v.SetDefault("quality.min_paragraph_count", 5)
	v.SetDefault("quality.threshold", 70)

	v.SetDefault("pipeline.max_iterations", 3)
	v.SetDefault("pipeline.optimize_each_cycle", true)
	v.SetDefault("pipeline.language", "")

	v.SetDefault("guard.forbidden_terms", []string{})
	v.SetDefault("guard.detect_brand_names", true)
	v.SetDefault("guard.replacement", guard.DefaultReplacement)
	v.SetDefault("guard.min_brand_occurrences", 3)

	v.SetDefault("wordpress.api_url", "")
	v.SetDefault("wordpress.username", "")
	v.SetDefault("wordpress.app_password", "")
	v.SetDefault("wordpress.status", "draft")
	v.SetDefault("wordpress.timeout", "30s")

	v.SetDefault("images.enabled", false)
	v.SetDefault("images.dir", "data/images")
	v.SetDefault("images.upload", false)
	v.SetDefault("images.max_images", 5)
	v.SetDefault("images.workers", 5)
	v.SetDefault("images.timeout", "30s")

	v.SetDefault("store.path", "data/perepys.db")

	v.SetDefault("localize.project_id", "")
	v.SetDefault("localize.credentials_file", "")
	v.SetDefault("localize.chunk_chars", 4000)

	v.SetDefault("prompts.path", "")

	v.SetDefault("batch.delay", "5s")
}
