package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/valpere/perepys/internal/postprocess"
	"github.com/valpere/perepys/internal/prompt"
)

const defaultTimeout = 120 * time.Second

// OpenAIService speaks the chat-completions protocol. It also backs any
// OpenAI-compatible vendor; see NewSiliconFlowService.
type OpenAIService struct {
	name        string
	apiKey      string
	baseURL     string
	model       string
	temperature float64
	maxTokens   int
	client      *http.Client
	prompts     *prompt.Library
}

func NewOpenAIService(cfg Config, prompts *prompt.Library) *OpenAIService {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4"
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.7
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 2000
	}
	return newChatService("openai", cfg, prompts)
}

func newChatService(name string, cfg Config, prompts *prompt.Library) *OpenAIService {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	if prompts == nil {
		prompts = prompt.Defaults()
	}
	return &OpenAIService{
		name:        name,
		apiKey:      cfg.APIKey,
		baseURL:     strings.TrimSuffix(cfg.BaseURL, "/"),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		client:      &http.Client{Timeout: timeout},
		prompts:     prompts,
	}
}

func (s *OpenAIService) Name() string {
	return s.name
}

func (s *OpenAIService) Rewrite(ctx context.Context, req RewriteRequest) (*Result, error) {
	return s.generate(ctx, s.prompts.RewriteSystem, rewriteUserPrompt(s.prompts, req))
}

func (s *OpenAIService) OptimizeTitle(ctx context.Context, title string, suggestions []string) (*Result, error) {
	return s.generate(ctx, "", optimizeTitlePrompt(s.prompts, title, suggestions))
}

func (s *OpenAIService) OptimizeDescription(ctx context.Context, description string, suggestions []string) (*Result, error) {
	return s.generate(ctx, "", optimizeDescriptionPrompt(s.prompts, description, suggestions))
}

func (s *OpenAIService) GenerateSEOTitle(ctx context.Context, title, content string) (*Result, error) {
	return s.generate(ctx, "", seoTitlePrompt(s.prompts, title, content))
}

func (s *OpenAIService) GenerateSEODescription(ctx context.Context, description, content string) (*Result, error) {
	return s.generate(ctx, "", seoDescriptionPrompt(s.prompts, description, content))
}

func (s *OpenAIService) generate(ctx context.Context, system, user string) (*Result, error) {
	result := &Result{ModelName: s.name}
	start := time.Now()
	defer func() { result.Latency = time.Since(start) }()

	if s.apiKey == "" {
		modelErr := missingKeyError(s.name, "API key")
		result.Error = modelErr.Error()
		return result, modelErr
	}

	messages := make([]map[string]string, 0, 2)
	if system != "" {
		messages = append(messages, map[string]string{"role": "system", "content": system})
	}
	messages = append(messages, map[string]string{"role": "user", "content": user})

	chatReq := map[string]interface{}{
		"model":       s.model,
		"messages":    messages,
		"temperature": s.temperature,
		"max_tokens":  s.maxTokens,
	}

	jsonData, err := json.Marshal(chatReq)
	if err != nil {
		result.Error = fmt.Sprintf("failed to marshal request: %v", err)
		return result, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", fmt.Sprintf("%s/chat/completions", s.baseURL), bytes.NewBuffer(jsonData))
	if err != nil {
		result.Error = fmt.Sprintf("failed to create request: %v", err)
		return result, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", fmt.Sprintf("Bearer %s", s.apiKey))

	resp, err := s.client.Do(httpReq)
	if err != nil {
		modelErr := transportError(s.name, err)
		result.Error = modelErr.Error()
		return result, modelErr
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		modelErr := statusError(s.name, resp.StatusCode, string(body))
		result.Error = modelErr.Error()
		return result, modelErr
	}

	var chatResp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		modelErr := decodeError(s.name, err)
		result.Error = modelErr.Error()
		return result, modelErr
	}
	if len(chatResp.Choices) == 0 {
		modelErr := emptyResponseError(s.name)
		result.Error = modelErr.Error()
		return result, modelErr
	}

	text := postprocess.Clean(chatResp.Choices[0].Message.Content)
	if text == "" {
		modelErr := emptyResponseError(s.name)
		result.Error = modelErr.Error()
		return result, modelErr
	}

	result.Text = text
	return result, nil
}
