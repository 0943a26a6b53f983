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

const anthropicVersion = "2023-06-01"

// AnthropicService speaks the messages API.
type AnthropicService struct {
	apiKey      string
	baseURL     string
	model       string
	temperature float64
	maxTokens   int
	client      *http.Client
	prompts     *prompt.Library
}

func NewAnthropicService(cfg Config, prompts *prompt.Library) *AnthropicService {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.anthropic.com"
	}
	if cfg.Model == "" {
		cfg.Model = "claude-3-opus-20240229"
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.7
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 2000
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	if prompts == nil {
		prompts = prompt.Defaults()
	}
	return &AnthropicService{
		apiKey:      cfg.APIKey,
		baseURL:     strings.TrimSuffix(cfg.BaseURL, "/"),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		client:      &http.Client{Timeout: timeout},
		prompts:     prompts,
	}
}

func (s *AnthropicService) Name() string {
	return "anthropic"
}

func (s *AnthropicService) Rewrite(ctx context.Context, req RewriteRequest) (*Result, error) {
	return s.generate(ctx, s.prompts.RewriteSystem, rewriteUserPrompt(s.prompts, req))
}

func (s *AnthropicService) OptimizeTitle(ctx context.Context, title string, suggestions []string) (*Result, error) {
	return s.generate(ctx, "", optimizeTitlePrompt(s.prompts, title, suggestions))
}

func (s *AnthropicService) OptimizeDescription(ctx context.Context, description string, suggestions []string) (*Result, error) {
	return s.generate(ctx, "", optimizeDescriptionPrompt(s.prompts, description, suggestions))
}

func (s *AnthropicService) GenerateSEOTitle(ctx context.Context, title, content string) (*Result, error) {
	return s.generate(ctx, "", seoTitlePrompt(s.prompts, title, content))
}

func (s *AnthropicService) GenerateSEODescription(ctx context.Context, description, content string) (*Result, error) {
	return s.generate(ctx, "", seoDescriptionPrompt(s.prompts, description, content))
}

func (s *AnthropicService) generate(ctx context.Context, system, user string) (*Result, error) {
	result := &Result{ModelName: s.Name()}
	start := time.Now()
	defer func() { result.Latency = time.Since(start) }()

	if s.apiKey == "" {
		modelErr := missingKeyError(s.Name(), "API key")
		result.Error = modelErr.Error()
		return result, modelErr
	}

	msgReq := map[string]interface{}{
		"model":       s.model,
		"max_tokens":  s.maxTokens,
		"temperature": s.temperature,
		"messages": []map[string]string{
			{"role": "user", "content": user},
		},
	}
	if system != "" {
		msgReq["system"] = system
	}

	jsonData, err := json.Marshal(msgReq)
	if err != nil {
		result.Error = fmt.Sprintf("failed to marshal request: %v", err)
		return result, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", fmt.Sprintf("%s/v1/messages", s.baseURL), bytes.NewBuffer(jsonData))
	if err != nil {
		result.Error = fmt.Sprintf("failed to create request: %v", err)
		return result, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", s.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	resp, err := s.client.Do(httpReq)
	if err != nil {
		modelErr := transportError(s.Name(), err)
		result.Error = modelErr.Error()
		return result, modelErr
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		modelErr := statusError(s.Name(), resp.StatusCode, string(body))
		result.Error = modelErr.Error()
		return result, modelErr
	}

	var msgResp struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&msgResp); err != nil {
		modelErr := decodeError(s.Name(), err)
		result.Error = modelErr.Error()
		return result, modelErr
	}
	if len(msgResp.Content) == 0 {
		modelErr := emptyResponseError(s.Name())
		result.Error = modelErr.Error()
		return result, modelErr
	}

	text := postprocess.Clean(msgResp.Content[0].Text)
	if text == "" {
		modelErr := emptyResponseError(s.Name())
		result.Error = modelErr.Error()
		return result, modelErr
	}

	result.Text = text
	return result, nil
}
