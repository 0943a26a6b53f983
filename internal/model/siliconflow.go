package model

import "github.com/valpere/perepys/internal/prompt"

// NewSiliconFlowService returns a chat-completions backend with SiliconFlow
// defaults: Qwen/QwQ-32B, temperature 0, 8192 max tokens.
func NewSiliconFlowService(cfg Config, prompts *prompt.Library) *OpenAIService {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.siliconflow.cn/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "Qwen/QwQ-32B"
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 8192
	}
	return newChatService("siliconflow", cfg, prompts)
}
