package provision

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"clipper/internal/domain"
)

type fakeMailbox struct {
	mailbox   Mailbox
	createErr error
	code      string
	codeErr   error
	created   int
	waited    int
}

func (f *fakeMailbox) Create(ctx context.Context) (Mailbox, error) {
	f.created++
	if f.createErr != nil {
		return Mailbox{}, f.createErr
	}
	return f.mailbox, nil
}

func (f *fakeMailbox) WaitForCode(ctx context.Context, mb Mailbox) (string, error) {
	f.waited++
	if f.codeErr != nil {
		return "", f.codeErr
	}
	return f.code, nil
}

type fakeInserter struct {
	inserted []domain.Credential
	err      error
}

func (f *fakeInserter) Insert(ctx context.Context, cred domain.Credential) (domain.Credential, error) {
	if f.err != nil {
		return domain.Credential{}, f.err
	}
	cred.ID = int64(len(f.inserted) + 1)
	f.inserted = append(f.inserted, cred)
	return cred, nil
}

type sinkPool struct {
	creds []domain.Credential
}

func (s *sinkPool) Acquire() (domain.Credential, bool) {
	if len(s.creds) == 0 {
		return domain.Credential{}, false
	}
	return s.creds[0], true
}

func (s *sinkPool) Add(cred domain.Credential) bool {
	s.creds = append(s.creds, cred)
	return true
}

// accountService fakes the transcript provider's auth endpoints.
func accountService(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/register", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Email == "" || body.Password == "" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"id": 42, "email": body.Email})
	})
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil || r.PostFormValue("username") == "" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "tok-1"})
	})
	mux.HandleFunc("/auth/send-verification-otp", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-1" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "sent", "sent_at": "now"})
	})
	mux.HandleFunc("/auth/verify-email", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			OTP string `json:"otp"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.OTP != "482913" {
			http.Error(w, "wrong code", http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/auth/api-keys", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]map[string]string{{"key": "fresh-api-key"}})
	})
	return httptest.NewServer(mux)
}

func newTestProvisioner(baseURL string, primary, secondary MailboxClient, store CredentialInserter) *Provisioner {
	return New(Options{
		BaseURL:   baseURL,
		Primary:   primary,
		Secondary: secondary,
		Store:     store,
		Logger:    zerolog.Nop(),
		StepDelay: time.Millisecond,
	})
}

func TestEnsureCredentialProvisionsEndToEnd(t *testing.T) {
	server := accountService(t)
	defer server.Close()

	mailbox := &fakeMailbox{
		mailbox: Mailbox{Email: "new@tempmail.test", ID: 11},
		code:    "482913",
	}
	inserter := &fakeInserter{}
	prov := newTestProvisioner(server.URL, mailbox, nil, inserter)

	pool := &sinkPool{}
	cred, ok := prov.EnsureCredential(context.Background(), pool)
	if !ok {
		t.Fatalf("EnsureCredential failed")
	}
	if cred.Secret != "fresh-api-key" {
		t.Fatalf("Secret = %q", cred.Secret)
	}
	if cred.Service != domain.ServiceTranscript || cred.Email != "new@tempmail.test" {
		t.Fatalf("credential = %+v", cred)
	}
	if len(inserter.inserted) != 1 {
		t.Fatalf("inserted %d rows, want 1", len(inserter.inserted))
	}
	if len(pool.creds) != 1 {
		t.Fatalf("pool did not receive the credential")
	}
}

func TestEnsureCredentialReChecksPoolFirst(t *testing.T) {
	mailbox := &fakeMailbox{codeErr: errors.New("should not be reached")}
	prov := newTestProvisioner("http://unused.test", mailbox, nil, &fakeInserter{})

	existing := domain.Credential{ID: 3, Secret: "already-there", Status: domain.CredentialActive}
	pool := &sinkPool{creds: []domain.Credential{existing}}

	cred, ok := prov.EnsureCredential(context.Background(), pool)
	if !ok || cred.ID != existing.ID {
		t.Fatalf("EnsureCredential = (%+v, %v), want the pooled credential", cred, ok)
	}
	if mailbox.created != 0 {
		t.Fatalf("provisioning ran despite a non-empty pool")
	}
}

func TestEnsureCredentialFallsBackToSecondaryMailbox(t *testing.T) {
	server := accountService(t)
	defer server.Close()

	primary := &fakeMailbox{createErr: errors.New("provider down")}
	secondary := &fakeMailbox{
		mailbox: Mailbox{Email: "tag.ns@inbox.test", Tag: "tag"},
		code:    "482913",
	}
	prov := newTestProvisioner(server.URL, primary, secondary, &fakeInserter{})

	_, ok := prov.EnsureCredential(context.Background(), &sinkPool{})
	if !ok {
		t.Fatalf("EnsureCredential failed with a working secondary mailbox")
	}
	if primary.created != 1 || secondary.created != 1 {
		t.Fatalf("mailbox attempts: primary=%d secondary=%d", primary.created, secondary.created)
	}
	if secondary.waited != 1 {
		t.Fatalf("code polled on wrong provider")
	}
}

func TestEnsureCredentialWritesNothingOnMidflowFailure(t *testing.T) {
	server := accountService(t)
	defer server.Close()

	mailbox := &fakeMailbox{
		mailbox: Mailbox{Email: "new@tempmail.test"},
		codeErr: errors.New("mailbox never received the email"),
	}
	inserter := &fakeInserter{}
	prov := newTestProvisioner(server.URL, mailbox, nil, inserter)

	_, ok := prov.EnsureCredential(context.Background(), &sinkPool{})
	if ok {
		t.Fatalf("EnsureCredential succeeded despite missing verification code")
	}
	if len(inserter.inserted) != 0 {
		t.Fatalf("a partial workflow persisted %d credentials", len(inserter.inserted))
	}
}

func TestEnsureCredentialRejectsWrongCode(t *testing.T) {
	server := accountService(t)
	defer server.Close()

	mailbox := &fakeMailbox{
		mailbox: Mailbox{Email: "new@tempmail.test"},
		code:    "000000",
	}
	inserter := &fakeInserter{}
	prov := newTestProvisioner(server.URL, mailbox, nil, inserter)

	if _, ok := prov.EnsureCredential(context.Background(), &sinkPool{}); ok {
		t.Fatalf("EnsureCredential succeeded with a rejected code")
	}
	if len(inserter.inserted) != 0 {
		t.Fatalf("credential persisted after failed verification")
	}
}
