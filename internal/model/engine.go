// Package model implements the rewrite engine: six LLM vendor backends
// behind one Engine interface, selected by the active_model key. Backends
// are single-shot HTTP clients; retries and iteration policy live in the
// pipeline.
package model

import (
	"fmt"
	"strings"

	"github.com/valpere/perepys/internal/prompt"
)

// Backends lists the recognized active_model values.
func Backends() []string {
	return []string{"openai", "azure_openai", "anthropic", "baidu", "ollama", "siliconflow"}
}

// ForConfig builds the backend selected by name. A nil prompts library
// falls back to the embedded defaults.
func ForConfig(name string, cfg Config, prompts *prompt.Library) (Engine, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "openai":
		return NewOpenAIService(cfg, prompts), nil
	case "azure_openai", "azure":
		return NewAzureOpenAIService(cfg, prompts), nil
	case "anthropic":
		return NewAnthropicService(cfg, prompts), nil
	case "baidu":
		return NewBaiduService(cfg, prompts), nil
	case "ollama":
		return NewOllamaService(cfg, prompts), nil
	case "siliconflow":
		return NewSiliconFlowService(cfg, prompts), nil
	default:
		return nil, fmt.Errorf("unknown model backend %q (valid: %s)", name, strings.Join(Backends(), ", "))
	}
}
