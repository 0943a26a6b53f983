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

// OllamaService generates through a local Ollama instance. No credentials.
type OllamaService struct {
	baseURL     string
	model       string
	temperature float64
	maxTokens   int
	client      *http.Client
	prompts     *prompt.Library
}

type ollamaRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	System  string        `json:"system,omitempty"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
}

type ollamaResponse struct {
	Response string `json:"response"`
}

func NewOllamaService(cfg Config, prompts *prompt.Library) *OllamaService {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = "llama2"
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.7
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 2000
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		// Local generation of full articles runs long on CPU hosts.
		timeout = 360 * time.Second
	}
	if prompts == nil {
		prompts = prompt.Defaults()
	}
	return &OllamaService{
		baseURL:     strings.TrimSuffix(cfg.BaseURL, "/"),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		client:      &http.Client{Timeout: timeout},
		prompts:     prompts,
	}
}

func (s *OllamaService) Name() string {
	return "ollama"
}

func (s *OllamaService) Rewrite(ctx context.Context, req RewriteRequest) (*Result, error) {
	return s.generate(ctx, s.prompts.RewriteSystem, rewriteUserPrompt(s.prompts, req))
}

func (s *OllamaService) OptimizeTitle(ctx context.Context, title string, suggestions []string) (*Result, error) {
	return s.generate(ctx, "", optimizeTitlePrompt(s.prompts, title, suggestions))
}

func (s *OllamaService) OptimizeDescription(ctx context.Context, description string, suggestions []string) (*Result, error) {
	return s.generate(ctx, "", optimizeDescriptionPrompt(s.prompts, description, suggestions))
}

func (s *OllamaService) GenerateSEOTitle(ctx context.Context, title, content string) (*Result, error) {
	return s.generate(ctx, "", seoTitlePrompt(s.prompts, title, content))
}

func (s *OllamaService) GenerateSEODescription(ctx context.Context, description, content string) (*Result, error) {
	return s.generate(ctx, "", seoDescriptionPrompt(s.prompts, description, content))
}

func (s *OllamaService) generate(ctx context.Context, system, user string) (*Result, error) {
	result := &Result{ModelName: s.Name()}
	start := time.Now()
	defer func() { result.Latency = time.Since(start) }()

	reqBody := ollamaRequest{
		Model:  s.model,
		Prompt: user,
		System: system,
		Stream: false,
		Options: ollamaOptions{
			Temperature: s.temperature,
			NumPredict:  s.maxTokens,
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		result.Error = fmt.Sprintf("failed to marshal request: %v", err)
		return result, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", fmt.Sprintf("%s/api/generate", s.baseURL), bytes.NewBuffer(jsonData))
	if err != nil {
		result.Error = fmt.Sprintf("failed to create request: %v", err)
		return result, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

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

	var ollamaResp ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&ollamaResp); err != nil {
		modelErr := decodeError(s.Name(), err)
		result.Error = modelErr.Error()
		return result, modelErr
	}

	text := postprocess.Clean(ollamaResp.Response)
	if text == "" {
		modelErr := emptyResponseError(s.Name())
		result.Error = modelErr.Error()
		return result, modelErr
	}

	result.Text = text
	return result, nil
}
