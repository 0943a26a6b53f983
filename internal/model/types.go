package model

import (
	"context"
	"time"
)

// Config holds the connection settings for one backend. Fields that do not
// apply to the selected backend are ignored: Endpoint, Deployment and
// APIVersion are Azure-only, SecretKey is Baidu-only.
type Config struct {
	APIKey      string        `mapstructure:"api_key" json:"api_key"`
	SecretKey   string        `mapstructure:"secret_key" json:"secret_key"`
	BaseURL     string        `mapstructure:"base_url" json:"base_url"`
	Endpoint    string        `mapstructure:"endpoint" json:"endpoint"`
	Deployment  string        `mapstructure:"deployment" json:"deployment"`
	APIVersion  string        `mapstructure:"api_version" json:"api_version"`
	Model       string        `mapstructure:"model" json:"model"`
	Temperature float64       `mapstructure:"temperature" json:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens" json:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout" json:"timeout"`
}

// RewriteRequest carries one article into a rewrite call.
type RewriteRequest struct {
	Title       string   `json:"title"`
	Body        string   `json:"body"`
	Description string   `json:"description"`
	Keywords    []string `json:"keywords"`
}

// Result is the outcome of a single backend call.
type Result struct {
	ModelName string        `json:"model_name"`
	Text      string        `json:"text"`
	Latency   time.Duration `json:"latency"`
	Error     string        `json:"error,omitempty"`
}

// Engine is the capability shared by all backends. Calls are stateless,
// single-shot and unretried; failures surface as *Error.
type Engine interface {
	Name() string
	Rewrite(ctx context.Context, req RewriteRequest) (*Result, error)
	OptimizeTitle(ctx context.Context, title string, suggestions []string) (*Result, error)
	OptimizeDescription(ctx context.Context, description string, suggestions []string) (*Result, error)
}

// SEOGenerator drafts a missing title or description from article content.
// Every built-in backend implements it.
type SEOGenerator interface {
	GenerateSEOTitle(ctx context.Context, title, content string) (*Result, error)
	GenerateSEODescription(ctx context.Context, description, content string) (*Result, error)
}
