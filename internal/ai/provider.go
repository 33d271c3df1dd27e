package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Provider sends one prompt to a hosted model and returns its text reply.
type Provider interface {
	Generate(ctx context.Context, prompt string, maxTokens int) (string, error)
}

type Config struct {
	Provider string
	Model    string
	APIKey   string
}

// New returns the provider for the configured vendor.
func New(cfg Config) (Provider, error) {
	client := &http.Client{Timeout: 60 * time.Second}
	switch cfg.Provider {
	case "anthropic":
		return &anthropicProvider{cfg: cfg, client: client}, nil
	case "openai":
		return &openaiProvider{cfg: cfg, client: client}, nil
	case "gemini":
		return &geminiProvider{cfg: cfg, client: client}, nil
	default:
		return nil, fmt.Errorf("unknown ai provider %q", cfg.Provider)
	}
}

func postJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, body any) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("content-type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, fmt.Errorf("ai request returned %s: %s", res.Status, truncate(string(data), 300))
	}
	return data, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

type anthropicProvider struct {
	cfg    Config
	client *http.Client

	baseURL string // test override
}

func (p *anthropicProvider) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	base := p.baseURL
	if base == "" {
		base = "https://api.anthropic.com"
	}
	body := map[string]any{
		"model":      p.cfg.Model,
		"max_tokens": maxTokens,
		"messages":   []map[string]string{{"role": "user", "content": prompt}},
	}
	headers := map[string]string{
		"x-api-key":         p.cfg.APIKey,
		"anthropic-version": "2023-06-01",
	}
	data, err := postJSON(ctx, p.client, base+"/v1/messages", headers, body)
	if err != nil {
		return "", err
	}
	var out struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("parse anthropic response: %w", err)
	}
	if len(out.Content) == 0 {
		return "", fmt.Errorf("anthropic response had no content")
	}
	return out.Content[0].Text, nil
}

type openaiProvider struct {
	cfg    Config
	client *http.Client

	baseURL string
}

func (p *openaiProvider) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	base := p.baseURL
	if base == "" {
		base = "https://api.openai.com"
	}
	body := map[string]any{
		"model":      p.cfg.Model,
		"max_tokens": maxTokens,
		"messages":   []map[string]string{{"role": "user", "content": prompt}},
	}
	headers := map[string]string{"Authorization": "Bearer " + p.cfg.APIKey}
	data, err := postJSON(ctx, p.client, base+"/v1/chat/completions", headers, body)
	if err != nil {
		return "", err
	}
	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("parse openai response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("openai response had no choices")
	}
	return out.Choices[0].Message.Content, nil
}

type geminiProvider struct {
	cfg    Config
	client *http.Client

	baseURL string
}

func (p *geminiProvider) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	base := p.baseURL
	if base == "" {
		base = "https://generativelanguage.googleapis.com"
	}
	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		base, url.PathEscape(p.cfg.Model), url.QueryEscape(p.cfg.APIKey))
	body := map[string]any{
		"contents":         []map[string]any{{"parts": []map[string]string{{"text": prompt}}}},
		"generationConfig": map[string]int{"maxOutputTokens": maxTokens},
	}
	data, err := postJSON(ctx, p.client, endpoint, nil, body)
	if err != nil {
		return "", err
	}
	var out struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("parse gemini response: %w", err)
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini response had no candidates")
	}
	return out.Candidates[0].Content.Parts[0].Text, nil
}
