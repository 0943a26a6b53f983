package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/valpere/perepys/internal/postprocess"
	"github.com/valpere/perepys/internal/prompt"
)

// BaiduService talks to the ERNIE chat API. Calls authenticate with an OAuth
// access token derived from api_key + secret_key; the token is cached until
// shortly before expiry and dropped when the API reports it invalid.
type BaiduService struct {
	apiKey      string
	secretKey   string
	baseURL     string
	model       string
	temperature float64
	maxTokens   int
	client      *http.Client
	prompts     *prompt.Library

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

func NewBaiduService(cfg Config, prompts *prompt.Library) *BaiduService {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://aip.baidubce.com"
	}
	if cfg.Model == "" {
		// Route segment of the chat endpoint; "completions" is ERNIE-Bot.
		cfg.Model = "completions"
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
	return &BaiduService{
		apiKey:      cfg.APIKey,
		secretKey:   cfg.SecretKey,
		baseURL:     strings.TrimSuffix(cfg.BaseURL, "/"),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		client:      &http.Client{Timeout: timeout},
		prompts:     prompts,
	}
}

func (s *BaiduService) Name() string {
	return "baidu"
}

func (s *BaiduService) Rewrite(ctx context.Context, req RewriteRequest) (*Result, error) {
	return s.generate(ctx, s.prompts.RewriteSystem, rewriteUserPrompt(s.prompts, req))
}

func (s *BaiduService) OptimizeTitle(ctx context.Context, title string, suggestions []string) (*Result, error) {
	return s.generate(ctx, "", optimizeTitlePrompt(s.prompts, title, suggestions))
}

func (s *BaiduService) OptimizeDescription(ctx context.Context, description string, suggestions []string) (*Result, error) {
	return s.generate(ctx, "", optimizeDescriptionPrompt(s.prompts, description, suggestions))
}

func (s *BaiduService) GenerateSEOTitle(ctx context.Context, title, content string) (*Result, error) {
	return s.generate(ctx, "", seoTitlePrompt(s.prompts, title, content))
}

func (s *BaiduService) GenerateSEODescription(ctx context.Context, description, content string) (*Result, error) {
	return s.generate(ctx, "", seoDescriptionPrompt(s.prompts, description, content))
}

// token returns a cached access token or fetches a fresh one.
func (s *BaiduService) token(ctx context.Context) (string, *Error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.accessToken != "" && time.Now().Before(s.tokenExpiry) {
		return s.accessToken, nil
	}

	params := url.Values{}
	params.Set("grant_type", "client_credentials")
	params.Set("client_id", s.apiKey)
	params.Set("client_secret", s.secretKey)

	httpReq, err := http.NewRequestWithContext(ctx, "POST",
		fmt.Sprintf("%s/oauth/2.0/token?%s", s.baseURL, params.Encode()), nil)
	if err != nil {
		return "", &Error{Backend: s.Name(), Kind: KindMalformedResponse, Message: err.Error()}
	}

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return "", transportError(s.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", statusError(s.Name(), resp.StatusCode, string(body))
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
		ErrorDesc   string `json:"error_description"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", decodeError(s.Name(), err)
	}
	if tokenResp.AccessToken == "" {
		msg := tokenResp.ErrorDesc
		if msg == "" {
			msg = "no access token in response"
		}
		return "", &Error{Backend: s.Name(), Kind: KindAuthFailure, Message: msg}
	}

	s.accessToken = tokenResp.AccessToken
	ttl := time.Duration(tokenResp.ExpiresIn) * time.Second
	if ttl <= time.Minute {
		ttl = 24 * time.Hour
	}
	s.tokenExpiry = time.Now().Add(ttl - time.Minute)
	return s.accessToken, nil
}

func (s *BaiduService) dropToken() {
	s.mu.Lock()
	s.accessToken = ""
	s.mu.Unlock()
}

func (s *BaiduService) generate(ctx context.Context, system, user string) (*Result, error) {
	result := &Result{ModelName: s.Name()}
	start := time.Now()
	defer func() { result.Latency = time.Since(start) }()

	if s.apiKey == "" || s.secretKey == "" {
		modelErr := missingKeyError(s.Name(), "API key and secret key")
		result.Error = modelErr.Error()
		return result, modelErr
	}

	token, modelErr := s.token(ctx)
	if modelErr != nil {
		result.Error = modelErr.Error()
		return result, modelErr
	}

	messages := make([]map[string]string, 0, 2)
	if system != "" {
		messages = append(messages, map[string]string{"role": "system", "content": system})
	}
	messages = append(messages, map[string]string{"role": "user", "content": user})

	chatReq := map[string]interface{}{
		"messages":          messages,
		"temperature":       s.temperature,
		"max_output_tokens": s.maxTokens,
	}

	jsonData, err := json.Marshal(chatReq)
	if err != nil {
		result.Error = fmt.Sprintf("failed to marshal request: %v", err)
		return result, err
	}

	chatURL := fmt.Sprintf("%s/rpc/2.0/ai_custom/v1/wenxinworkshop/chat/%s?access_token=%s",
		s.baseURL, s.model, url.QueryEscape(token))
	httpReq, err := http.NewRequestWithContext(ctx, "POST", chatURL, bytes.NewBuffer(jsonData))
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

	var chatResp struct {
		Result    string `json:"result"`
		ErrorCode int    `json:"error_code"`
		ErrorMsg  string `json:"error_msg"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		modelErr := decodeError(s.Name(), err)
		result.Error = modelErr.Error()
		return result, modelErr
	}

	// The API reports failures inside a 200 body.
	if chatResp.ErrorCode != 0 {
		kind := KindMalformedResponse
		switch chatResp.ErrorCode {
		case 110, 111:
			kind = KindAuthFailure
			s.dropToken()
		case 4, 17, 18, 19:
			kind = KindRateLimited
		}
		modelErr := &Error{
			Backend: s.Name(),
			Kind:    kind,
			Message: fmt.Sprintf("error %d: %s", chatResp.ErrorCode, chatResp.ErrorMsg),
		}
		result.Error = modelErr.Error()
		return result, modelErr
	}

	text := postprocess.Clean(chatResp.Result)
	if text == "" {
		modelErr := emptyResponseError(s.Name())
		result.Error = modelErr.Error()
		return result, modelErr
	}

	result.Text = text
	return result, nil
}
