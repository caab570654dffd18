package transcript

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"clipper/internal/domain"
	"clipper/internal/provision"
)

const (
	serviceName = "transcript"

	// maxAttempts bounds the acquire-fetch-rotate loop. Each credential-fatal
	// response burns one attempt and one credential.
	maxAttempts = 3

	retryBackoff = 2 * time.Second
)

// CredentialSource is the pool contract the client rotates over.
type CredentialSource interface {
	Acquire() (domain.Credential, bool)
	ReleaseSuccess(ctx context.Context, cred domain.Credential)
	ReleaseFailure(ctx context.Context, cred domain.Credential, kind domain.ErrorKind, reason string)
	Add(cred domain.Credential) bool
}

// Provisioner supplies a brand-new credential when the pool empties.
type Provisioner interface {
	EnsureCredential(ctx context.Context, pool provision.CredentialSink) (domain.Credential, bool)
}

// Client fetches transcripts with automatic credential rotation and, when the
// pool is exhausted, credential provisioning.
type Client struct {
	baseURL     string
	client      *http.Client
	pool        CredentialSource
	provisioner Provisioner
	logger      zerolog.Logger
}

type Options struct {
	BaseURL     string
	HTTPClient  *http.Client
	Pool        CredentialSource
	Provisioner Provisioner
	Logger      zerolog.Logger
}

func NewClient(opts Options) *Client {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		client:      client,
		pool:        opts.Pool,
		provisioner: opts.Provisioner,
		logger:      opts.Logger,
	}
}

// wireEntry tolerates the field names used by the different transcript
// providers behind the API.
type wireEntry struct {
	Start    json.Number `json:"start"`
	Offset   json.Number `json:"offset"`
	Duration json.Number `json:"duration"`
	Dur      json.Number `json:"dur"`
	Text     string      `json:"text"`
	Content  string      `json:"content"`
}

type wireResponse struct {
	Transcript []wireEntry `json:"transcript"`
	Error      string      `json:"error"`
}

// Fetch retrieves the ordered transcript for one video. A provider-reported
// 404 or an empty transcript returns a KindNotFound ProviderError; callers
// treat both as the permanent no-transcript outcome.
func (c *Client) Fetch(ctx context.Context, videoID string) ([]domain.TranscriptEntry, error) {
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		cred, ok := c.pool.Acquire()
		if !ok && c.provisioner != nil {
			cred, ok = c.provisioner.EnsureCredential(ctx, c.pool)
		}
		if !ok {
			return nil, &domain.ProviderError{
				Kind: domain.KindItemTerminal, Service: serviceName,
				Msg: "credential pool exhausted and provisioning failed",
			}
		}

		entries, err := c.fetchOnce(ctx, videoID, cred)
		if err == nil {
			c.pool.ReleaseSuccess(ctx, cred)
			return entries, nil
		}

		switch domain.KindOf(err) {
		case domain.KindCredentialFatal:
			c.pool.ReleaseFailure(ctx, cred, domain.KindCredentialFatal, err.Error())
			c.logger.Warn().Err(err).Int("attempt", attempt).Msg("transcript: credential disabled, rotating")
		case domain.KindTransient:
			c.pool.ReleaseFailure(ctx, cred, domain.KindTransient, err.Error())
			c.logger.Warn().Err(err).Int("attempt", attempt).Msg("transcript: transient failure, retrying")
		case domain.KindNotFound:
			// A 404 still consumed a successful API call.
			c.pool.ReleaseSuccess(ctx, cred)
			return nil, err
		default:
			return nil, err
		}

		if attempt < maxAttempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryBackoff):
			}
		}
	}
	return nil, &domain.ProviderError{
		Kind: domain.KindItemTerminal, Service: serviceName,
		Msg: fmt.Sprintf("failed after %d attempts", maxAttempts),
	}
}

func (c *Client) fetchOnce(ctx context.Context, videoID string, cred domain.Credential) ([]domain.TranscriptEntry, error) {
	params := url.Values{}
	params.Set("video_url", videoID)
	params.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v2/youtube/transcript?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+cred.Secret)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &domain.ProviderError{Kind: domain.KindTransient, Service: serviceName, Msg: err.Error()}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, &domain.ProviderError{
			Kind:    domain.ClassifyStatus(resp.StatusCode),
			Status:  resp.StatusCode,
			Service: serviceName,
			Msg:     http.StatusText(resp.StatusCode),
		}
	}

	var out wireResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &domain.ProviderError{Kind: domain.KindItemTerminal, Service: serviceName, Msg: "malformed transcript response"}
	}
	if out.Error != "" {
		return nil, &domain.ProviderError{Kind: domain.KindItemTerminal, Service: serviceName, Msg: out.Error}
	}

	entries := make([]domain.TranscriptEntry, 0, len(out.Transcript))
	for _, e := range out.Transcript {
		entries = append(entries, domain.TranscriptEntry{
			Start:    numberOf(e.Start, e.Offset),
			Duration: numberOf(e.Duration, e.Dur),
			Text:     firstNonEmpty(e.Text, e.Content),
		})
	}
	// An empty-but-successful response means the video has no transcript.
	if len(entries) == 0 {
		return nil, &domain.ProviderError{Kind: domain.KindNotFound, Service: serviceName, Msg: "empty transcript"}
	}
	return entries, nil
}

func numberOf(values ...json.Number) float64 {
	for _, v := range values {
		if v == "" {
			continue
		}
		if f, err := v.Float64(); err == nil {
			return f
		}
	}
	return 0
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
