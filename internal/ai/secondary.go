package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"clipper/internal/domain"
)

const secondaryService = "analysis_secondary"

// SecondaryClient is the OpenAI-compatible chat-completions fallback.
// It authenticates with a single static token and is tried at most once
// per item, after the primary pool is exhausted.
type SecondaryClient struct {
	baseURL string
	model   string
	token   string
	client  *http.Client
}

type SecondaryOptions struct {
	BaseURL    string
	Model      string
	Token      string
	HTTPClient *http.Client
}

func NewSecondaryClient(opts SecondaryOptions) *SecondaryClient {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://router.huggingface.co/v1"
	}
	model := opts.Model
	if model == "" {
		model = "deepseek-ai/DeepSeek-V3.2-Exp"
	}
	client := opts.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	return &SecondaryClient{baseURL: baseURL, model: model, token: opts.Token, client: client}
}

// Configured reports whether a fallback token was supplied at startup.
func (c *SecondaryClient) Configured() bool {
	return c.token != ""
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *SecondaryClient) Complete(ctx context.Context, prompt string) (string, error) {
	payload := chatRequest{
		Model:    c.model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", &domain.ProviderError{Kind: domain.KindTransient, Service: secondaryService, Msg: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", &domain.ProviderError{Kind: domain.KindTransient, Service: secondaryService, Msg: err.Error()}
	}
	if resp.StatusCode != http.StatusOK {
		return "", &domain.ProviderError{
			Kind:    domain.ClassifyStatus(resp.StatusCode),
			Status:  resp.StatusCode,
			Service: secondaryService,
			Msg:     fmt.Sprintf("status %d: %s", resp.StatusCode, snippet(raw)),
		}
	}

	var decoded chatResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", &domain.ProviderError{Kind: domain.KindItemTerminal, Service: secondaryService, Msg: "decode response: " + err.Error()}
	}
	if len(decoded.Choices) == 0 {
		return "", &domain.ProviderError{Kind: domain.KindItemTerminal, Service: secondaryService, Msg: "empty choices"}
	}
	text := strings.TrimSpace(decoded.Choices[0].Message.Content)
	if text == "" {
		return "", &domain.ProviderError{Kind: domain.KindItemTerminal, Service: secondaryService, Msg: "empty message content"}
	}
	return text, nil
}
