package keypool

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"clipper/internal/domain"
)

type fakeWriter struct {
	disabled map[int64]string
	used     map[int64]int
}

func newFakeWriter() *fakeWriter {
	return &fakeWriter{disabled: map[int64]string{}, used: map[int64]int{}}
}

func (f *fakeWriter) Disable(ctx context.Context, id int64, reason string) error {
	f.disabled[id] = reason
	return nil
}

func (f *fakeWriter) MarkUsed(ctx context.Context, id int64) error {
	f.used[id]++
	return nil
}

func testCreds(n int) []domain.Credential {
	creds := make([]domain.Credential, 0, n)
	for i := 1; i <= n; i++ {
		creds = append(creds, domain.Credential{
			ID:      int64(i),
			Service: domain.ServiceTranscript,
			Secret:  string(rune('a' + i - 1)),
			Status:  domain.CredentialActive,
		})
	}
	return creds
}

func TestAcquireIsStableWithoutFailures(t *testing.T) {
	pool := New(domain.ServiceTranscript, testCreds(3), newFakeWriter(), zerolog.Nop())

	first, ok := pool.Acquire()
	if !ok {
		t.Fatalf("Acquire failed on non-empty pool")
	}
	for i := 0; i < 5; i++ {
		cred, ok := pool.Acquire()
		if !ok {
			t.Fatalf("Acquire %d failed", i)
		}
		if cred.ID != first.ID {
			t.Fatalf("Acquire moved cursor without failure: got key %d, want %d", cred.ID, first.ID)
		}
	}
}

func TestTransientFailureRotatesExactlyOnce(t *testing.T) {
	ctx := context.Background()
	writer := newFakeWriter()
	pool := New(domain.ServiceTranscript, testCreds(3), writer, zerolog.Nop())

	first, _ := pool.Acquire()
	pool.ReleaseFailure(ctx, first, domain.KindTransient, "status 503")

	second, _ := pool.Acquire()
	if second.ID == first.ID {
		t.Fatalf("cursor did not advance after transient failure")
	}
	if pool.Len() != 3 {
		t.Fatalf("Len = %d after transient failure, want 3", pool.Len())
	}
	if len(writer.disabled) != 0 {
		t.Fatalf("transient failure persisted a disable: %v", writer.disabled)
	}

	// A second failure advances exactly one more slot of three.
	pool.ReleaseFailure(ctx, second, domain.KindTransient, "status 503")
	third, _ := pool.Acquire()
	if third.ID == second.ID {
		t.Fatalf("cursor did not advance after second transient failure")
	}
}

func TestCredentialFatalDisablesAndPersists(t *testing.T) {
	ctx := context.Background()
	writer := newFakeWriter()
	pool := New(domain.ServiceTranscript, testCreds(2), writer, zerolog.Nop())

	cred, _ := pool.Acquire()
	pool.ReleaseFailure(ctx, cred, domain.KindCredentialFatal, "status 401")

	if pool.Len() != 1 {
		t.Fatalf("Len = %d after disable, want 1", pool.Len())
	}
	if reason, ok := writer.disabled[cred.ID]; !ok || reason != "status 401" {
		t.Fatalf("disable not persisted, got %v", writer.disabled)
	}
	next, ok := pool.Acquire()
	if !ok {
		t.Fatalf("pool empty after disabling one of two keys")
	}
	if next.ID == cred.ID {
		t.Fatalf("disabled credential %d handed out again", cred.ID)
	}
}

func TestDisabledCredentialNeverReadmitted(t *testing.T) {
	ctx := context.Background()
	pool := New(domain.ServiceTranscript, testCreds(1), newFakeWriter(), zerolog.Nop())

	cred, _ := pool.Acquire()
	pool.ReleaseFailure(ctx, cred, domain.KindCredentialFatal, "status 403")

	if pool.Add(cred) {
		t.Fatalf("Add re-admitted a disabled credential")
	}
	if _, ok := pool.Acquire(); ok {
		t.Fatalf("Acquire returned a credential from an emptied pool")
	}

	fresh := domain.Credential{ID: 99, Service: domain.ServiceTranscript, Secret: "z", Status: domain.CredentialActive}
	if !pool.Add(fresh) {
		t.Fatalf("Add rejected a fresh credential")
	}
	got, ok := pool.Acquire()
	if !ok || got.ID != fresh.ID {
		t.Fatalf("Acquire = (%v, %v), want fresh credential %d", got.ID, ok, fresh.ID)
	}
}

func TestAddRejectsDuplicatesAndInactive(t *testing.T) {
	pool := New(domain.ServiceAnalysis, testCreds(1), newFakeWriter(), zerolog.Nop())

	if pool.Add(testCreds(1)[0]) {
		t.Fatalf("Add accepted a duplicate credential")
	}
	if pool.Add(domain.Credential{ID: 5, Secret: "x", Status: domain.CredentialDisabled}) {
		t.Fatalf("Add accepted an inactive credential")
	}
	if pool.Len() != 1 {
		t.Fatalf("Len = %d, want 1", pool.Len())
	}
}

func TestReleaseSuccessWritesThroughForStoredCredentials(t *testing.T) {
	ctx := context.Background()
	writer := newFakeWriter()
	pool := New(domain.ServiceTranscript, testCreds(1), writer, zerolog.Nop())

	cred, _ := pool.Acquire()
	pool.ReleaseSuccess(ctx, cred)
	pool.ReleaseSuccess(ctx, cred)

	if writer.used[cred.ID] != 2 {
		t.Fatalf("MarkUsed called %d times, want 2", writer.used[cred.ID])
	}

	// Env-sourced credentials have no row to update.
	envCred := domain.Credential{Secret: "env-key", Service: domain.ServiceAnalysis, Status: domain.CredentialActive}
	pool.Add(envCred)
	pool.ReleaseSuccess(ctx, envCred)
	if len(writer.used) != 1 {
		t.Fatalf("MarkUsed touched unexpected rows: %v", writer.used)
	}
}

func TestNewDropsInactiveCredentials(t *testing.T) {
	creds := testCreds(3)
	creds[1].Status = domain.CredentialDisabled
	pool := New(domain.ServiceTranscript, creds, newFakeWriter(), zerolog.Nop())
	if pool.Len() != 2 {
		t.Fatalf("Len = %d, want 2 active credentials", pool.Len())
	}
}
