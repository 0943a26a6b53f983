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

// AzureOpenAIService speaks the chat-completions protocol against an Azure
// deployment. The deployment name replaces the model field in the payload.
type AzureOpenAIService struct {
	apiKey      string
	endpoint    string
	deployment  string
	apiVersion  string
	temperature float64
	maxTokens   int
	client      *http.Client
	prompts     *prompt.Library
}

func NewAzureOpenAIService(cfg Config, prompts *prompt.Library) *AzureOpenAIService {
	if cfg.APIVersion == "" {
		cfg.APIVersion = "2023-05-15"
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
	return &AzureOpenAIService{
		apiKey:      cfg.APIKey,
		endpoint:    strings.TrimSuffix(cfg.Endpoint, "/"),
		deployment:  cfg.Deployment,
		apiVersion:  cfg.APIVersion,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		client:      &http.Client{Timeout: timeout},
		prompts:     prompts,
	}
}

func (s *AzureOpenAIService) Name() string {
	return "azure_openai"
}

func (s *AzureOpenAIService) Rewrite(ctx context.Context, req RewriteRequest) (*Result, error) {
	return s.generate(ctx, s.prompts.RewriteSystem, rewriteUserPrompt(s.prompts, req))
}

func (s *AzureOpenAIService) OptimizeTitle(ctx context.Context, title string, suggestions []string) (*Result, error) {
	return s.generate(ctx, "", optimizeTitlePrompt(s.prompts, title, suggestions))
}

func (s *AzureOpenAIService) OptimizeDescription(ctx context.Context, description string, suggestions []string) (*Result, error) {
	return s.generate(ctx, "", optimizeDescriptionPrompt(s.prompts, description, suggestions))
}

func (s *AzureOpenAIService) GenerateSEOTitle(ctx context.Context, title, content string) (*Result, error) {
	return s.generate(ctx, "", seoTitlePrompt(s.prompts, title, content))
}

func (s *AzureOpenAIService) GenerateSEODescription(ctx context.Context, description, content string) (*Result, error) {
	return s.generate(ctx, "", seoDescriptionPrompt(s.prompts, description, content))
}

func (s *AzureOpenAIService) generate(ctx context.Context, system, user string) (*Result, error) {
	result := &Result{ModelName: s.Name()}
	start := time.Now()
	defer func() { result.Latency = time.Since(start) }()

	if s.apiKey == "" {
		modelErr := missingKeyError(s.Name(), "API key")
		result.Error = modelErr.Error()
		return result, modelErr
	}
	if s.endpoint == "" || s.deployment == "" {
		modelErr := missingKeyError(s.Name(), "endpoint and deployment")
		result.Error = modelErr.Error()
		return result, modelErr
	}

	messages := make([]map[string]string, 0, 2)
	if system != "" {
		messages = append(messages, map[string]string{"role": "system", "content": system})
	}
	messages = append(messages, map[string]string{"role": "user", "content": user})

	chatReq := map[string]interface{}{
		"messages":    messages,
		"temperature": s.temperature,
		"max_tokens":  s.maxTokens,
	}

	jsonData, err := json.Marshal(chatReq)
	if err != nil {
		result.Error = fmt.Sprintf("failed to marshal request: %v", err)
		return result, err
	}

	url := fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
		s.endpoint, s.deployment, s.apiVersion)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		result.Error = fmt.Sprintf("failed to create request: %v", err)
		return result, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("api-key", s.apiKey)

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

	var chatResp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		modelErr := decodeError(s.Name(), err)
		result.Error = modelErr.Error()
		return result, modelErr
	}
	if len(chatResp.Choices) == 0 {
		modelErr := emptyResponseError(s.Name())
		result.Error = modelErr.Error()
		return result, modelErr
	}

	text := postprocess.Clean(chatResp.Choices[0].Message.Content)
	if text == "" {
		modelErr := emptyResponseError(s.Name())
		result.Error = modelErr.Error()
		return result, modelErr
	}

	result.Text = text
	return result, nil
}
