package storage

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"

	"clipper/internal/domain"
)

const (
	uploadAttempts = 3
	uploadBackoff  = 2 * time.Second
)

// HTTPStore uploads clips with authenticated PUT requests against an
// S3-compatible gateway and serves them from a public base URL.
type HTTPStore struct {
	endpoint string
	baseURL  string
	token    string
	client   *http.Client
	logger   zerolog.Logger
}

type HTTPStoreOptions struct {
	Endpoint   string
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

func NewHTTPStore(opts HTTPStoreOptions) (*HTTPStore, error) {
	if opts.Endpoint == "" {
		return nil, fmt.Errorf("storage endpoint is required")
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Minute}
	}
	return &HTTPStore{
		endpoint: opts.Endpoint,
		baseURL:  opts.BaseURL,
		token:    opts.Token,
		client:   client,
		logger:   opts.Logger,
	}, nil
}

func (s *HTTPStore) Put(ctx context.Context, key, localPath string) (string, error) {
	key = SanitizeKey(key)
	if key == "" {
		return "", fmt.Errorf("empty object key")
	}

	var lastErr error
	for attempt := 1; attempt <= uploadAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(uploadBackoff):
			}
		}
		if err := s.putOnce(ctx, key, localPath); err != nil {
			lastErr = err
			if domain.KindOf(err) != domain.KindTransient {
				return "", err
			}
			s.logger.Warn().Int("attempt", attempt).Str("key", key).Err(err).Msg("upload failed, retrying")
			continue
		}
		return s.baseURL + "/" + key, nil
	}
	return "", fmt.Errorf("upload %s: %w", key, lastErr)
}

func (s *HTTPStore) putOnce(ctx context.Context, key, localPath string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open clip: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("stat clip: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.endpoint+"/"+key, file)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.ContentLength = info.Size()
	req.Header.Set("Content-Type", "video/mp4")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return &domain.ProviderError{Kind: domain.KindTransient, Service: "storage", Msg: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return &domain.ProviderError{
			Kind:    domain.ClassifyStatus(resp.StatusCode),
			Status:  resp.StatusCode,
			Service: "storage",
			Msg:     fmt.Sprintf("status %d uploading %s", resp.StatusCode, key),
		}
	}
	return nil
}
