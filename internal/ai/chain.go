package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"clipper/internal/domain"
)

const (
	defaultAttemptBudget = 10
	defaultRetryBackoff  = 2 * time.Second
)

// CredentialSource is the slice of the key pool the chain needs.
type CredentialSource interface {
	Acquire() (domain.Credential, bool)
	ReleaseSuccess(ctx context.Context, cred domain.Credential)
	ReleaseFailure(ctx context.Context, cred domain.Credential, kind domain.ErrorKind, reason string)
}

// PrimaryCompleter runs one completion against the primary provider
// with an explicit API key.
type PrimaryCompleter interface {
	CompleteWithKey(ctx context.Context, key, prompt string) (string, error)
}

// FallbackCompleter runs one completion against the secondary provider.
type FallbackCompleter interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Configured() bool
}

// Chain drives completions through the primary key pool and falls back
// to the secondary provider once, when the pool burns down or the
// attempt budget runs out.
type Chain struct {
	pool      CredentialSource
	primary   PrimaryCompleter
	secondary FallbackCompleter
	budget    int
	backoff   time.Duration
	logger    zerolog.Logger
}

type ChainOptions struct {
	Pool      CredentialSource
	Primary   PrimaryCompleter
	Secondary FallbackCompleter
	Budget    int
	Backoff   time.Duration
	Logger    zerolog.Logger
}

func NewChain(opts ChainOptions) *Chain {
	budget := opts.Budget
	if budget <= 0 {
		budget = defaultAttemptBudget
	}
	backoff := opts.Backoff
	if backoff <= 0 {
		backoff = defaultRetryBackoff
	}
	return &Chain{
		pool:      opts.Pool,
		primary:   opts.Primary,
		secondary: opts.Secondary,
		budget:    budget,
		backoff:   backoff,
		logger:    opts.Logger,
	}
}

// Complete returns the first successful completion. Primary attempts
// rotate on capacity errors and disable keys on credential-fatal ones;
// the secondary provider is consulted exactly once after that.
func (c *Chain) Complete(ctx context.Context, prompt string) (string, error) {
	var lastErr error

	for attempt := 1; attempt <= c.budget; attempt++ {
		cred, ok := c.pool.Acquire()
		if !ok {
			c.logger.Warn().Msg("analysis key pool empty")
			break
		}

		text, err := c.primary.CompleteWithKey(ctx, cred.Secret, prompt)
		if err == nil {
			c.pool.ReleaseSuccess(ctx, cred)
			return text, nil
		}
		lastErr = err

		kind := domain.KindOf(err)
		switch kind {
		case domain.KindTransient:
			c.logger.Warn().Int("attempt", attempt).Err(err).Msg("primary analysis capacity error, rotating key")
			c.pool.ReleaseFailure(ctx, cred, kind, err.Error())
			if !sleepCtx(ctx, c.backoff) {
				return "", ctx.Err()
			}
		case domain.KindCredentialFatal:
			c.logger.Warn().Int("attempt", attempt).Err(err).Msg("primary analysis key rejected, disabling")
			c.pool.ReleaseFailure(ctx, cred, kind, err.Error())
		default:
			c.pool.ReleaseSuccess(ctx, cred)
			return "", err
		}
	}

	if c.secondary == nil || !c.secondary.Configured() {
		if lastErr != nil {
			return "", fmt.Errorf("%w: %s", domain.ErrProviderFailure, lastErr.Error())
		}
		return "", fmt.Errorf("%w: no analysis credentials available", domain.ErrProviderFailure)
	}

	c.logger.Info().Msg("switching to secondary analysis provider")
	text, err := c.secondary.Complete(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("%w: secondary provider: %s", domain.ErrProviderFailure, err.Error())
	}
	return text, nil
}

type availabilityVerdict struct {
	Available bool   `json:"available"`
	Reason    string `json:"reason"`
}

// CheckAvailability asks the model whether a video is still watchable.
// The check fails open: any provider or parse failure counts as
// available, so a flaky model never blocks the pipeline.
func (c *Chain) CheckAvailability(ctx context.Context, videoID string) bool {
	prompt := fmt.Sprintf(
		"Check if the YouTube video with ID %q at https://www.youtube.com/watch?v=%s is currently available to watch. "+
			"Respond with only a JSON object: {\"available\": true/false, \"reason\": \"short explanation\"}",
		videoID, videoID,
	)

	text, err := c.Complete(ctx, prompt)
	if err != nil {
		c.logger.Warn().Str("video_id", videoID).Err(err).Msg("availability check failed, assuming available")
		return true
	}

	var verdict availabilityVerdict
	if err := json.Unmarshal([]byte(extractJSONFragment(text)), &verdict); err != nil {
		c.logger.Warn().Str("video_id", videoID).Err(err).Msg("availability verdict unparseable, assuming available")
		return true
	}
	if !verdict.Available {
		c.logger.Info().Str("video_id", videoID).Str("reason", verdict.Reason).Msg("video reported unavailable")
	}
	return verdict.Available
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
