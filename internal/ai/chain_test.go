package ai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"clipper/internal/domain"
)

type fakePool struct {
	creds     []domain.Credential
	successes int
	rotations int
	disables  int
}

func (p *fakePool) Acquire() (domain.Credential, bool) {
	if len(p.creds) == 0 {
		return domain.Credential{}, false
	}
	return p.creds[0], true
}

func (p *fakePool) ReleaseSuccess(ctx context.Context, cred domain.Credential) {
	p.successes++
}

func (p *fakePool) ReleaseFailure(ctx context.Context, cred domain.Credential, kind domain.ErrorKind, reason string) {
	if kind == domain.KindCredentialFatal {
		p.disables++
		for i := range p.creds {
			if p.creds[i].Secret == cred.Secret {
				p.creds = append(p.creds[:i], p.creds[i+1:]...)
				break
			}
		}
		return
	}
	p.rotations++
}

type scriptedPrimary struct {
	responses map[string][]any
	calls     int
}

func (s *scriptedPrimary) CompleteWithKey(ctx context.Context, key, prompt string) (string, error) {
	s.calls++
	queue := s.responses[key]
	if len(queue) == 0 {
		return "", &domain.ProviderError{Kind: domain.KindItemTerminal, Service: "analysis", Msg: "unexpected call"}
	}
	next := queue[0]
	s.responses[key] = queue[1:]
	switch v := next.(type) {
	case string:
		return v, nil
	case error:
		return "", v
	}
	return "", errors.New("bad script entry")
}

type fakeSecondary struct {
	text       string
	err        error
	calls      int
	configured bool
}

func (s *fakeSecondary) Complete(ctx context.Context, prompt string) (string, error) {
	s.calls++
	return s.text, s.err
}

func (s *fakeSecondary) Configured() bool { return s.configured }

func transientErr() error {
	return &domain.ProviderError{Kind: domain.KindTransient, Status: 503, Service: "analysis", Msg: "overloaded"}
}

func fatalErr() error {
	return &domain.ProviderError{Kind: domain.KindCredentialFatal, Status: 429, Service: "analysis", Msg: "quota"}
}

func newTestChain(pool *fakePool, primary *scriptedPrimary, secondary *fakeSecondary) *Chain {
	return NewChain(ChainOptions{
		Pool:      pool,
		Primary:   primary,
		Secondary: secondary,
		Budget:    4,
		Backoff:   time.Millisecond,
		Logger:    zerolog.Nop(),
	})
}

func TestCompleteRetriesCapacityErrorsOnSameKey(t *testing.T) {
	pool := &fakePool{creds: []domain.Credential{{Secret: "k1", Status: domain.CredentialActive}}}
	primary := &scriptedPrimary{responses: map[string][]any{
		"k1": {transientErr(), transientErr(), "the answer"},
	}}
	secondary := &fakeSecondary{configured: true}

	got, err := newTestChain(pool, primary, secondary).Complete(context.Background(), "p")
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if got != "the answer" {
		t.Fatalf("Complete = %q", got)
	}
	if pool.rotations != 2 || pool.disables != 0 {
		t.Fatalf("rotations=%d disables=%d, want 2 rotations and no disables", pool.rotations, pool.disables)
	}
	if secondary.calls != 0 {
		t.Fatalf("secondary consulted %d times on a recoverable primary", secondary.calls)
	}
}

func TestCompleteDisablesRejectedKeysAndMovesOn(t *testing.T) {
	pool := &fakePool{creds: []domain.Credential{
		{Secret: "dead", Status: domain.CredentialActive},
		{Secret: "live", Status: domain.CredentialActive},
	}}
	primary := &scriptedPrimary{responses: map[string][]any{
		"dead": {fatalErr()},
		"live": {"ok"},
	}}
	secondary := &fakeSecondary{configured: true}

	got, err := newTestChain(pool, primary, secondary).Complete(context.Background(), "p")
	if err != nil || got != "ok" {
		t.Fatalf("Complete = (%q, %v)", got, err)
	}
	if pool.disables != 1 {
		t.Fatalf("disables = %d, want 1", pool.disables)
	}
	if pool.successes != 1 {
		t.Fatalf("successes = %d, want 1", pool.successes)
	}
}

func TestCompleteFallsBackToSecondaryExactlyOnce(t *testing.T) {
	pool := &fakePool{creds: []domain.Credential{{Secret: "k1", Status: domain.CredentialActive}}}
	primary := &scriptedPrimary{responses: map[string][]any{
		"k1": {fatalErr()},
	}}
	secondary := &fakeSecondary{text: "from fallback", configured: true}

	got, err := newTestChain(pool, primary, secondary).Complete(context.Background(), "p")
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if got != "from fallback" {
		t.Fatalf("Complete = %q", got)
	}
	if secondary.calls != 1 {
		t.Fatalf("secondary called %d times, want exactly 1", secondary.calls)
	}
}

func TestCompleteErrorsWhenSecondaryUnconfigured(t *testing.T) {
	pool := &fakePool{}
	primary := &scriptedPrimary{responses: map[string][]any{}}
	secondary := &fakeSecondary{configured: false}

	_, err := newTestChain(pool, primary, secondary).Complete(context.Background(), "p")
	if !errors.Is(err, domain.ErrProviderFailure) {
		t.Fatalf("err = %v, want ErrProviderFailure", err)
	}
	if secondary.calls != 0 {
		t.Fatalf("unconfigured secondary was called")
	}
}

func TestCompleteBudgetExhaustionFallsBack(t *testing.T) {
	pool := &fakePool{creds: []domain.Credential{{Secret: "k1", Status: domain.CredentialActive}}}
	primary := &scriptedPrimary{responses: map[string][]any{
		"k1": {transientErr(), transientErr(), transientErr(), transientErr(), transientErr()},
	}}
	secondary := &fakeSecondary{text: "rescued", configured: true}

	got, err := newTestChain(pool, primary, secondary).Complete(context.Background(), "p")
	if err != nil || got != "rescued" {
		t.Fatalf("Complete = (%q, %v)", got, err)
	}
	if primary.calls != 4 {
		t.Fatalf("primary attempts = %d, want the budget of 4", primary.calls)
	}
}

func TestCheckAvailabilityParsesVerdict(t *testing.T) {
	pool := &fakePool{creds: []domain.Credential{{Secret: "k1", Status: domain.CredentialActive}}}
	primary := &scriptedPrimary{responses: map[string][]any{
		"k1": {"```json\n{\"available\": false, \"reason\": \"removed by uploader\"}\n```"},
	}}
	chain := newTestChain(pool, primary, &fakeSecondary{configured: true})

	if chain.CheckAvailability(context.Background(), "vid123") {
		t.Fatalf("CheckAvailability = true for an unavailable verdict")
	}
}

func TestCheckAvailabilityFailsOpen(t *testing.T) {
	cases := map[string][]any{
		"provider error": {fatalErr()},
		"garbage output": {"the model rambles with no JSON at all"},
	}
	for name, script := range cases {
		pool := &fakePool{creds: []domain.Credential{{Secret: "k1", Status: domain.CredentialActive}}}
		primary := &scriptedPrimary{responses: map[string][]any{"k1": script}}
		chain := newTestChain(pool, primary, &fakeSecondary{configured: false})

		if !chain.CheckAvailability(context.Background(), "vid123") {
			t.Fatalf("%s: CheckAvailability = false, want fail-open true", name)
		}
	}
}
