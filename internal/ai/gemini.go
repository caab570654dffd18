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

const geminiService = "analysis"

// GeminiClient calls the generateContent endpoint with a caller-supplied
// API key. Key selection and rotation live in Chain, not here.
type GeminiClient struct {
	baseURL string
	model   string
	client  *http.Client
}

type GeminiOptions struct {
	BaseURL    string
	Model      string
	HTTPClient *http.Client
}

func NewGeminiClient(opts GeminiOptions) *GeminiClient {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	model := opts.Model
	if model == "" {
		model = "gemini-2.5-pro"
	}
	client := opts.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	return &GeminiClient{baseURL: baseURL, model: model, client: client}
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// CompleteWithKey runs a single generateContent call. Failures carry a
// domain.ProviderError so the chain can decide between rotating and
// disabling the key that produced them.
func (c *GeminiClient) CompleteWithKey(ctx context.Context, key, prompt string) (string, error) {
	payload := geminiRequest{Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}}}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, key)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", &domain.ProviderError{Kind: domain.KindTransient, Service: geminiService, Msg: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", &domain.ProviderError{Kind: domain.KindTransient, Service: geminiService, Msg: err.Error()}
	}
	if resp.StatusCode != http.StatusOK {
		return "", &domain.ProviderError{
			Kind:    classifyGeminiStatus(resp.StatusCode),
			Status:  resp.StatusCode,
			Service: geminiService,
			Msg:     fmt.Sprintf("status %d: %s", resp.StatusCode, snippet(raw)),
		}
	}

	var decoded geminiResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", &domain.ProviderError{Kind: domain.KindItemTerminal, Service: geminiService, Msg: "decode response: " + err.Error()}
	}
	if decoded.Error != nil {
		return "", &domain.ProviderError{Kind: domain.KindItemTerminal, Service: geminiService, Msg: decoded.Error.Message}
	}
	text := candidateText(decoded)
	if text == "" {
		return "", &domain.ProviderError{Kind: domain.KindItemTerminal, Service: geminiService, Msg: "empty candidates"}
	}
	return text, nil
}

// classifyGeminiStatus differs from the generic classifier: a 400 from
// this endpoint means the key itself is malformed or revoked, so it
// counts as credential-fatal, while 503 means capacity and only
// warrants rotation.
func classifyGeminiStatus(status int) domain.ErrorKind {
	switch status {
	case http.StatusBadRequest,
		http.StatusUnauthorized,
		http.StatusPaymentRequired,
		http.StatusForbidden,
		http.StatusTooManyRequests:
		return domain.KindCredentialFatal
	}
	if status >= 500 {
		return domain.KindTransient
	}
	return domain.KindItemTerminal
}

func candidateText(resp geminiResponse) string {
	var sb strings.Builder
	for _, cand := range resp.Candidates {
		for _, part := range cand.Content.Parts {
			sb.WriteString(part.Text)
		}
		if sb.Len() > 0 {
			break
		}
	}
	return strings.TrimSpace(sb.String())
}

func snippet(raw []byte) string {
	text := strings.TrimSpace(string(raw))
	if len(text) > 200 {
		text = text[:200]
	}
	return text
}
