package provision

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"clipper/internal/domain"
)

// CredentialInserter is the store slice the workflow needs to persist a fresh
// credential. Nothing is written until the final step succeeds.
type CredentialInserter interface {
	Insert(ctx context.Context, cred domain.Credential) (domain.Credential, error)
}

// CredentialSink receives the provisioned credential, typically a keypool.
type CredentialSink interface {
	Acquire() (domain.Credential, bool)
	Add(cred domain.Credential) bool
}

// Options configures the provisioning workflow against the account service of
// the transcript provider.
type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	Primary    MailboxClient
	Secondary  MailboxClient
	Store      CredentialInserter
	Logger     zerolog.Logger
	// StepDelay is the pause between account-service calls; the service
	// rejects bursts from freshly registered accounts.
	StepDelay time.Duration
}

// Provisioner automates the account-creation and email-verification flow that
// yields a brand-new transcript API credential. It is the fallback of last
// resort when the credential pool empties, and it is slow: tens of seconds,
// dominated by mailbox polling.
type Provisioner struct {
	baseURL   string
	client    *http.Client
	primary   MailboxClient
	secondary MailboxClient
	store     CredentialInserter
	logger    zerolog.Logger
	stepDelay time.Duration

	// mu makes provisioning single-flight: only one worker registers a new
	// account at a time, the rest wait and re-check the pool.
	mu sync.Mutex
}

func New(opts Options) *Provisioner {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	delay := opts.StepDelay
	if delay == 0 {
		delay = 2 * time.Second
	}
	return &Provisioner{
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		client:    client,
		primary:   opts.Primary,
		secondary: opts.Secondary,
		store:     opts.Store,
		logger:    opts.Logger,
		stepDelay: delay,
	}
}

// EnsureCredential returns a usable credential from the pool, provisioning a
// new one when the pool is exhausted. ok is false when provisioning failed
// too; that is pool exhaustion for the caller, not an error.
func (p *Provisioner) EnsureCredential(ctx context.Context, pool CredentialSink) (domain.Credential, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	// Another worker may have provisioned while this one waited on the lock.
	if cred, ok := pool.Acquire(); ok {
		return cred, true
	}
	cred, err := p.provision(ctx)
	if err != nil {
		p.logger.Error().Err(err).Msg("provision: workflow failed")
		return domain.Credential{}, false
	}
	pool.Add(cred)
	return cred, true
}

// provision runs the ordered, non-skippable workflow. Any step's exhaustion
// aborts the whole run; no credential row is written unless the final fetch
// succeeded.
func (p *Provisioner) provision(ctx context.Context) (domain.Credential, error) {
	p.logger.Info().Msg("provision: registering new transcript account")

	mailbox, client, err := p.obtainMailbox(ctx)
	if err != nil {
		return domain.Credential{}, fmt.Errorf("obtain mailbox: %w", err)
	}
	password := randomPassword()

	if err := p.register(ctx, mailbox.Email, password); err != nil {
		return domain.Credential{}, fmt.Errorf("register account: %w", err)
	}
	p.pause(ctx)

	token, err := p.login(ctx, mailbox.Email, password)
	if err != nil {
		return domain.Credential{}, fmt.Errorf("login: %w", err)
	}
	p.pause(ctx)

	if err := p.sendVerification(ctx, token); err != nil {
		return domain.Credential{}, fmt.Errorf("send verification: %w", err)
	}

	code, err := client.WaitForCode(ctx, mailbox)
	if err != nil {
		return domain.Credential{}, fmt.Errorf("retrieve code: %w", err)
	}

	if err := p.verifyEmail(ctx, token, code); err != nil {
		return domain.Credential{}, fmt.Errorf("verify email: %w", err)
	}
	p.pause(ctx)

	secret, err := p.fetchAPIKey(ctx, token)
	if err != nil {
		return domain.Credential{}, fmt.Errorf("fetch api key: %w", err)
	}

	cred, err := p.store.Insert(ctx, domain.Credential{
		Service:  domain.ServiceTranscript,
		Secret:   secret,
		Email:    mailbox.Email,
		Password: password,
		Status:   domain.CredentialActive,
	})
	if err != nil {
		return domain.Credential{}, fmt.Errorf("persist credential: %w", err)
	}
	p.logger.Info().Int64("key_id", cred.ID).Str("email", mailbox.Email).Msg("provision: credential ready")
	return cred, nil
}

// obtainMailbox tries the primary provider, falling back to the secondary
// whose addresses need no creation call.
func (p *Provisioner) obtainMailbox(ctx context.Context) (Mailbox, MailboxClient, error) {
	if p.primary != nil {
		mb, err := p.primary.Create(ctx)
		if err == nil {
			return mb, p.primary, nil
		}
		p.logger.Warn().Err(err).Msg("provision: primary mailbox provider failed, trying fallback")
	}
	if p.secondary == nil {
		return Mailbox{}, nil, errors.New("no mailbox provider available")
	}
	mb, err := p.secondary.Create(ctx)
	if err != nil {
		return Mailbox{}, nil, err
	}
	return mb, p.secondary, nil
}

func (p *Provisioner) register(ctx context.Context, email, password string) error {
	payload := map[string]any{
		"email":        email,
		"password":     password,
		"name":         "",
		"agreeToTerms": true,
	}
	body, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/auth/register", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/plain, */*")

	var out struct {
		ID    json.Number `json:"id"`
		Email string      `json:"email"`
	}
	if err := p.doJSON(req, &out); err != nil {
		return err
	}
	if out.Email == "" {
		return errors.New("registration response missing email")
	}
	return nil
}

func (p *Provisioner) login(ctx context.Context, email, password string) (string, error) {
	form := url.Values{}
	form.Set("username", email)
	form.Set("password", password)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/auth/login", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json, text/plain, */*")

	var out struct {
		AccessToken string `json:"access_token"`
	}
	if err := p.doJSON(req, &out); err != nil {
		return "", err
	}
	if out.AccessToken == "" {
		return "", errors.New("login response missing access_token")
	}
	return out.AccessToken, nil
}

func (p *Provisioner) sendVerification(ctx context.Context, token string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/auth/send-verification-otp", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Authorization", "Bearer "+token)

	var out struct {
		Message string `json:"message"`
		SentAt  string `json:"sent_at"`
	}
	if err := p.doJSON(req, &out); err != nil {
		return err
	}
	if out.SentAt == "" {
		return errors.New("send-verification response missing sent_at")
	}
	return nil
}

func (p *Provisioner) verifyEmail(ctx context.Context, token, code string) error {
	body, _ := json.Marshal(map[string]string{"otp": code})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/auth/verify-email", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	// A bare 200 with no body means verified.
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("verification failed with status %d", resp.StatusCode)
	}
	return nil
}

func (p *Provisioner) fetchAPIKey(ctx context.Context, token string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/auth/api-keys", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Authorization", "Bearer "+token)

	var out []struct {
		Key string `json:"key"`
	}
	if err := p.doJSON(req, &out); err != nil {
		return "", err
	}
	if len(out) == 0 || strings.TrimSpace(out[0].Key) == "" {
		return "", errors.New("account has no api key")
	}
	return strings.TrimSpace(out[0].Key), nil
}

func (p *Provisioner) doJSON(req *http.Request, out any) error {
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (p *Provisioner) pause(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(p.stepDelay):
	}
}

const passwordAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

func randomPassword() string {
	n := 12 + rand.Intn(5)
	b := make([]byte, n)
	for i := range b {
		b[i] = passwordAlphabet[rand.Intn(len(passwordAlphabet))]
	}
	return string(b)
}
