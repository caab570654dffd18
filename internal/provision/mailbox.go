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
	"time"

	"github.com/rs/zerolog"
)

// Mailbox is one disposable address awaiting a verification email.
type Mailbox struct {
	Email string
	// ID set by the primary provider; Tag by the secondary one.
	ID  int64
	Tag string
}

// MailboxClient obtains a disposable mailbox and waits for the verification
// code sent to it.
type MailboxClient interface {
	Create(ctx context.Context) (Mailbox, error)
	WaitForCode(ctx context.Context, mb Mailbox) (string, error)
}

// TempMailClient talks to the primary disposable-mailbox provider. Mailboxes
// are created through the API and messages fetched individually by id.
type TempMailClient struct {
	baseURL     string
	token       string
	domains     []string
	client      *http.Client
	settleDelay time.Duration
	logger      zerolog.Logger
}

type TempMailOptions struct {
	BaseURL     string
	Token       string
	Domains     []string
	HTTPClient  *http.Client
	SettleDelay time.Duration
	Logger      zerolog.Logger
}

func NewTempMailClient(opts TempMailOptions) *TempMailClient {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	settle := opts.SettleDelay
	if settle == 0 {
		settle = 30 * time.Second
	}
	return &TempMailClient{
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		token:       opts.Token,
		domains:     opts.Domains,
		client:      client,
		settleDelay: settle,
		logger:      opts.Logger,
	}
}

type tempMailEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

func (c *TempMailClient) Create(ctx context.Context) (Mailbox, error) {
	if c.token == "" {
		return Mailbox{}, errors.New("tempmail: api token not configured")
	}
	if len(c.domains) == 0 {
		return Mailbox{}, errors.New("tempmail: no domains configured")
	}
	user := randomLowerString(10 + rand.Intn(6))
	domain := c.domains[rand.Intn(len(c.domains))]
	payload := map[string]string{"user": user, "domain": domain}
	body, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/email/create", bytes.NewReader(body))
	if err != nil {
		return Mailbox{}, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	var data struct {
		Email string `json:"email"`
		ID    int64  `json:"id"`
	}
	if err := c.do(req, &data); err != nil {
		return Mailbox{}, fmt.Errorf("tempmail: create mailbox: %w", err)
	}
	if data.Email == "" || data.ID == 0 {
		return Mailbox{}, errors.New("tempmail: create response missing email or id")
	}
	c.logger.Info().Str("email", data.Email).Msg("tempmail: mailbox created")
	return Mailbox{Email: data.Email, ID: data.ID}, nil
}

// WaitForCode waits a fixed settle delay for the message to arrive, then
// fetches the newest inbox message and extracts the verification code from
// its HTML body.
func (c *TempMailClient) WaitForCode(ctx context.Context, mb Mailbox) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(c.settleDelay):
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/email/%d", c.baseURL, mb.ID), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	var inbox struct {
		Items []struct {
			ID int64 `json:"id"`
		} `json:"items"`
	}
	if err := c.do(req, &inbox); err != nil {
		return "", fmt.Errorf("tempmail: fetch inbox: %w", err)
	}
	if len(inbox.Items) == 0 {
		return "", errors.New("tempmail: no messages in inbox")
	}

	msgReq, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/message/%d", c.baseURL, inbox.Items[0].ID), nil)
	if err != nil {
		return "", err
	}
	msgReq.Header.Set("Authorization", "Bearer "+c.token)

	var message struct {
		Body string `json:"body"`
	}
	if err := c.do(msgReq, &message); err != nil {
		return "", fmt.Errorf("tempmail: fetch message: %w", err)
	}
	code, ok := extractCode(message.Body)
	if !ok {
		return "", errors.New("tempmail: no verification code in message body")
	}
	return code, nil
}

func (c *TempMailClient) do(req *http.Request, out any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	var envelope tempMailEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return err
	}
	if !envelope.Success || len(envelope.Data) == 0 {
		return errors.New("unsuccessful response")
	}
	return json.Unmarshal(envelope.Data, out)
}

// TagInboxClient is the fallback disposable-mailbox provider. Addresses are
// derived locally from a random tag, so no creation call is needed; the
// namespaced inbox is polled by tag until the message arrives.
type TagInboxClient struct {
	baseURL      string
	apiKey       string
	namespace    string
	domain       string
	client       *http.Client
	pollInterval time.Duration
	maxWait      time.Duration
	logger       zerolog.Logger
}

type TagInboxOptions struct {
	BaseURL      string
	APIKey       string
	Namespace    string
	Domain       string
	HTTPClient   *http.Client
	PollInterval time.Duration
	MaxWait      time.Duration
	Logger       zerolog.Logger
}

func NewTagInboxClient(opts TagInboxOptions) *TagInboxClient {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	interval := opts.PollInterval
	if interval == 0 {
		interval = 10 * time.Second
	}
	maxWait := opts.MaxWait
	if maxWait == 0 {
		maxWait = 60 * time.Second
	}
	domain := opts.Domain
	if domain == "" {
		domain = "inbox.testmail.app"
	}
	return &TagInboxClient{
		baseURL:      strings.TrimRight(opts.BaseURL, "/"),
		apiKey:       opts.APIKey,
		namespace:    opts.Namespace,
		domain:       domain,
		client:       client,
		pollInterval: interval,
		maxWait:      maxWait,
		logger:       opts.Logger,
	}
}

func (c *TagInboxClient) Create(ctx context.Context) (Mailbox, error) {
	if c.apiKey == "" || c.namespace == "" {
		return Mailbox{}, errors.New("taginbox: api key and namespace required")
	}
	tag := randomLowerString(8 + rand.Intn(5))
	email := fmt.Sprintf("%s.%s@%s", tag, c.namespace, c.domain)
	c.logger.Info().Str("email", email).Msg("taginbox: derived mailbox")
	return Mailbox{Email: email, Tag: tag}, nil
}

type tagInboxResponse struct {
	Result string `json:"result"`
	Emails []struct {
		HTML string `json:"html"`
		Text string `json:"text"`
	} `json:"emails"`
}

// WaitForCode polls the namespaced inbox at a fixed interval up to the
// configured deadline.
func (c *TagInboxClient) WaitForCode(ctx context.Context, mb Mailbox) (string, error) {
	deadline := time.Now().Add(c.maxWait)
	attempt := 0
	for {
		attempt++
		code, ok, err := c.poll(ctx, mb.Tag)
		if err != nil {
			c.logger.Warn().Err(err).Int("attempt", attempt).Msg("taginbox: poll failed")
		}
		if ok {
			return code, nil
		}
		if time.Now().Add(c.pollInterval).After(deadline) {
			return "", fmt.Errorf("taginbox: no email for tag %s after %s", mb.Tag, c.maxWait)
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}
}

func (c *TagInboxClient) poll(ctx context.Context, tag string) (string, bool, error) {
	params := url.Values{}
	params.Set("apikey", c.apiKey)
	params.Set("namespace", c.namespace)
	params.Set("tag", tag)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return "", false, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return "", false, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return "", false, fmt.Errorf("status %d", resp.StatusCode)
	}
	var out tagInboxResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", false, err
	}
	if out.Result != "success" || len(out.Emails) == 0 {
		return "", false, nil
	}
	if code, ok := extractCode(out.Emails[0].HTML); ok {
		return code, true, nil
	}
	if code, ok := extractCode(out.Emails[0].Text); ok {
		return code, true, nil
	}
	return "", false, errors.New("message present but no code found")
}

const lowerAlnum = "abcdefghijklmnopqrstuvwxyz0123456789"

func randomLowerString(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = lowerAlnum[rand.Intn(len(lowerAlnum))]
	}
	return string(b)
}
