package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"BioMedNews/internal/config"
	"BioMedNews/internal/ports"
)

// Client talks to OpenAI-compatible chat and embedding endpoints.
type Client struct {
	endpoint     string
	model        string
	embedModel   string
	apiKey       string
	systemPrompt string
	embedDim     int
	httpClient   *http.Client
}

var (
	_ ports.ChatClient = (*Client)(nil)
	_ ports.Embedder   = (*Client)(nil)
)

// NewClient builds a client from configuration. embedDim, when positive, is
// forwarded to the embeddings endpoint so vectors match the storage schema.
func NewClient(cfg config.LLMConfig, embedDim int) *Client {
	return &Client{
		endpoint:     strings.TrimSuffix(cfg.Endpoint, "/"),
		model:        cfg.Model,
		embedModel:   cfg.EmbedModel,
		apiKey:       cfg.APIKey,
		systemPrompt: cfg.SystemPrompt,
		embedDim:     embedDim,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// Chat posts a system+user exchange and returns the assistant content.
// jsonMode requests a JSON object response from models that support it.
func (c *Client) Chat(ctx context.Context, system, user string, jsonMode bool) (string, error) {
	if c == nil {
		return "", fmt.Errorf("llm client is nil")
	}
	if c.endpoint == "" || c.model == "" {
		return "", fmt.Errorf("llm client misconfigured")
	}

	if system == "" {
		system = c.systemPrompt
	}

	payload := map[string]any{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "system", "content": system},
			{"role": "user", "content": user},
		},
	}
	if jsonMode {
		payload["response_format"] = map[string]string{"type": "json_object"}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal chat payload: %w", err)
	}

	var parsed chatResponse
	if err := c.post(ctx, c.endpoint+"/chat/completions", body, &parsed); err != nil {
		return "", err
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("chat response has no choices")
	}

	return parsed.Choices[0].Message.Content, nil
}

// Embed returns a dense embedding for the text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if c == nil {
		return nil, fmt.Errorf("llm client is nil")
	}
	if c.endpoint == "" || c.embedModel == "" {
		return nil, fmt.Errorf("llm client misconfigured")
	}

	payload := map[string]any{
		"model": c.embedModel,
		"input": text,
	}
	if c.embedDim > 0 {
		payload["dimensions"] = c.embedDim
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal embed payload: %w", err)
	}

	var parsed embedResponse
	if err := c.post(ctx, c.endpoint+"/embeddings", body, &parsed); err != nil {
		return nil, err
	}
	if len(parsed.Data) == 0 {
		return nil, fmt.Errorf("embed response has no data")
	}

	return parsed.Data[0].Embedding, nil
}

func (c *Client) post(ctx context.Context, url string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("llm request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("llm error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode llm response: %w", err)
	}

	return nil
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}
