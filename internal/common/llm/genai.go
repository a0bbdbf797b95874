package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"proco-workers/internal/common/config"
	commonhttp "proco-workers/internal/common/http"
)

// genaiClient calls the in-house gateway at POST {base}/api/ai/generate.
type genaiClient struct {
	http    *commonhttp.Client
	url     string
	apiKey  string
	model   string
	timeout time.Duration
}

type generateRequest struct {
	Model       string                 `json:"model,omitempty"`
	Messages    []generateMessage      `json:"messages"`
	Temperature float64                `json:"temperature"`
	MaxTokens   int                    `json:"max_tokens,omitempty"`
	Schema      map[string]interface{} `json:"response_schema,omitempty"`
}

type generateMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type generateResponse struct {
	Text string `json:"text"`
}

func newGenAIClient(cfg config.GenAIConfig) (Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("genai base_url is required for the http provider")
	}
	timeout := time.Duration(cfg.Timeout) * time.Millisecond
	return &genaiClient{
		http:    commonhttp.NewClient(0, cfg.MaxRetries),
		url:     strings.TrimRight(cfg.BaseURL, "/") + "/api/ai/generate",
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		timeout: timeout,
	}, nil
}

func (c *genaiClient) Complete(ctx context.Context, req Request) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	body := generateRequest{
		Model:       c.model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Messages:    make([]generateMessage, len(req.Messages)),
	}
	for i, m := range req.Messages {
		body.Messages[i] = generateMessage{Role: string(m.Role), Content: m.Content}
	}
	if req.Schema != nil {
		body.Schema = req.Schema.Schema
	}

	var headers map[string]string
	if c.apiKey != "" {
		headers = map[string]string{"Authorization": "Bearer " + c.apiKey}
	}

	var resp generateResponse
	if err := c.http.PostJSON(ctx, c.url, headers, body, &resp); err != nil {
		if commonhttp.IsTimeout(err) {
			return "", fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return "", classify(ctx, err)
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", ErrEmpty
	}
	return text, nil
}
