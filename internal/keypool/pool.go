package keypool

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/rs/zerolog"

	"clipper/internal/domain"
)

// CredentialWriter is the slice of the credential store the pool needs for
// write-through updates. Disables are persisted before the in-memory working
// set is mutated.
type CredentialWriter interface {
	Disable(ctx context.Context, id int64, reason string) error
	MarkUsed(ctx context.Context, id int64) error
}

// Pool rotates over the active credentials of one service. All entry points
// are serialized: rotation and disablement are read-modify-write sequences
// over shared state, and concurrent workers share one pool per service.
type Pool struct {
	service string
	store   CredentialWriter
	logger  zerolog.Logger

	mu       sync.Mutex
	creds    []domain.Credential
	cursor   int
	disabled map[string]struct{}
}

// New builds a pool over the given working set, dropping inactive entries.
// The rotation cursor starts at a randomized offset so parallel runs do not
// all herd onto the first credential.
func New(service string, creds []domain.Credential, store CredentialWriter, logger zerolog.Logger) *Pool {
	p := &Pool{
		service:  service,
		store:    store,
		logger:   logger.With().Str("service", service).Logger(),
		disabled: make(map[string]struct{}),
	}
	for _, c := range creds {
		if c.Active() {
			p.creds = append(p.creds, c)
		}
	}
	if len(p.creds) > 0 {
		p.cursor = rand.Intn(len(p.creds))
	}
	p.logger.Info().Int("credentials", len(p.creds)).Int("start_index", p.cursor).Msg("keypool: initialized")
	return p
}

// Acquire returns the credential at the rotation cursor. ok is false when the
// working set is empty; callers must treat that as pool exhaustion, not as a
// hard failure, and decide whether to provision or fail the item.
func (p *Pool) Acquire() (domain.Credential, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.creds) == 0 {
		return domain.Credential{}, false
	}
	if p.cursor >= len(p.creds) {
		p.cursor = 0
	}
	return p.creds[p.cursor], true
}

// ReleaseSuccess records a successful use: usage counter and last-used are
// written through to the store.
func (p *Pool) ReleaseSuccess(ctx context.Context, cred domain.Credential) {
	if p.store != nil && cred.ID != 0 {
		if err := p.store.MarkUsed(ctx, cred.ID); err != nil {
			p.logger.Error().Err(err).Int64("key_id", cred.ID).Msg("keypool: mark used failed")
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.creds {
		if sameCredential(p.creds[i], cred) {
			p.creds[i].UsageCount++
			return
		}
	}
}

// ReleaseFailure reacts to a provider-reported failure. Credential-fatal
// kinds remove the credential permanently, persisting the disabled status
// first; transient kinds only advance the rotation cursor.
func (p *Pool) ReleaseFailure(ctx context.Context, cred domain.Credential, kind domain.ErrorKind, reason string) {
	if kind != domain.KindCredentialFatal {
		p.rotate()
		return
	}
	// Write through before forgetting the credential, so a restart cannot
	// resurrect it.
	if p.store != nil && cred.ID != 0 {
		if err := p.store.Disable(ctx, cred.ID, reason); err != nil {
			p.logger.Error().Err(err).Int64("key_id", cred.ID).Msg("keypool: persist disable failed")
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.disabled[credKey(cred)] = struct{}{}
	for i := range p.creds {
		if sameCredential(p.creds[i], cred) {
			p.creds = append(p.creds[:i], p.creds[i+1:]...)
			break
		}
	}
	if p.cursor >= len(p.creds) {
		p.cursor = 0
	}
	p.logger.Warn().Int64("key_id", cred.ID).Str("reason", reason).
		Int("remaining", len(p.creds)).Msg("keypool: credential disabled")
}

// Add repopulates the working set, typically after the provisioning workflow
// persisted a fresh credential. A credential that was disabled during this
// process lifetime is never re-admitted.
func (p *Pool) Add(cred domain.Credential) bool {
	if !cred.Active() {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, gone := p.disabled[credKey(cred)]; gone {
		return false
	}
	for i := range p.creds {
		if sameCredential(p.creds[i], cred) {
			return false
		}
	}
	p.creds = append(p.creds, cred)
	return true
}

// Len reports the active working-set size.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.creds)
}

// Service returns the service tag this pool serves.
func (p *Pool) Service() string {
	return p.service
}

func (p *Pool) rotate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.creds) == 0 {
		return
	}
	p.cursor = (p.cursor + 1) % len(p.creds)
}

// credKey identifies a credential across store-backed (ID) and env-sourced
// (secret only) records.
func credKey(c domain.Credential) string {
	if c.ID != 0 {
		return fmt.Sprintf("id:%d", c.ID)
	}
	return "secret:" + c.Secret
}

func sameCredential(a, b domain.Credential) bool {
	return credKey(a) == credKey(b)
}
