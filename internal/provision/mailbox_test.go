package provision

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestTempMailCreateAndWaitForCode(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/email/create", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tm-token" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		var body struct {
			User   string `json:"user"`
			Domain string `json:"domain"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.User == "" || body.Domain != "tempmail.test" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data":    map[string]any{"email": body.User + "@" + body.Domain, "id": 55},
		})
	})
	mux.HandleFunc("/email/55", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data":    map[string]any{"items": []map[string]any{{"id": 901}}},
		})
	})
	mux.HandleFunc("/message/901", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data":    map[string]any{"body": `<div style="font-size: 32px">482913</div>`},
		})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := NewTempMailClient(TempMailOptions{
		BaseURL:     server.URL,
		Token:       "tm-token",
		Domains:     []string{"tempmail.test"},
		SettleDelay: time.Millisecond,
		Logger:      zerolog.Nop(),
	})

	mb, err := client.Create(context.Background())
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if mb.ID != 55 || !strings.HasSuffix(mb.Email, "@tempmail.test") {
		t.Fatalf("mailbox = %+v", mb)
	}

	code, err := client.WaitForCode(context.Background(), mb)
	if err != nil {
		t.Fatalf("WaitForCode returned error: %v", err)
	}
	if code != "482913" {
		t.Fatalf("code = %q", code)
	}
}

func TestTempMailCreateRequiresToken(t *testing.T) {
	client := NewTempMailClient(TempMailOptions{
		BaseURL: "http://unused.test",
		Domains: []string{"tempmail.test"},
		Logger:  zerolog.Nop(),
	})
	if _, err := client.Create(context.Background()); err == nil {
		t.Fatalf("Create succeeded without an API token")
	}
}

func TestTagInboxDerivesAddressLocally(t *testing.T) {
	client := NewTagInboxClient(TagInboxOptions{
		BaseURL:   "http://unused.test",
		APIKey:    "key",
		Namespace: "ns1",
		Logger:    zerolog.Nop(),
	})

	mb, err := client.Create(context.Background())
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if mb.Tag == "" {
		t.Fatalf("mailbox missing tag: %+v", mb)
	}
	if want := mb.Tag + ".ns1@inbox.testmail.app"; mb.Email != want {
		t.Fatalf("Email = %q, want %q", mb.Email, want)
	}
}

func TestTagInboxWaitForCodePollsUntilDelivery(t *testing.T) {
	var polls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("apikey") != "key" || q.Get("namespace") != "ns1" || q.Get("tag") != "tag7" {
			http.Error(w, "bad query", http.StatusBadRequest)
			return
		}
		polls++
		if polls < 3 {
			_ = json.NewEncoder(w).Encode(map[string]any{"result": "success", "emails": []any{}})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"result": "success",
			"emails": []map[string]string{{"html": "", "text": "your code is 123456"}},
		})
	}))
	defer server.Close()

	client := NewTagInboxClient(TagInboxOptions{
		BaseURL:      server.URL,
		APIKey:       "key",
		Namespace:    "ns1",
		PollInterval: time.Millisecond,
		MaxWait:      time.Second,
		Logger:       zerolog.Nop(),
	})

	code, err := client.WaitForCode(context.Background(), Mailbox{Tag: "tag7"})
	if err != nil {
		t.Fatalf("WaitForCode returned error: %v", err)
	}
	if code != "123456" {
		t.Fatalf("code = %q", code)
	}
	if polls < 3 {
		t.Fatalf("polled %d times, want at least 3", polls)
	}
}

func TestTagInboxWaitForCodeTimesOut(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"result": "success", "emails": []any{}})
	}))
	defer server.Close()

	client := NewTagInboxClient(TagInboxOptions{
		BaseURL:      server.URL,
		APIKey:       "key",
		Namespace:    "ns1",
		PollInterval: 5 * time.Millisecond,
		MaxWait:      20 * time.Millisecond,
		Logger:       zerolog.Nop(),
	})

	if _, err := client.WaitForCode(context.Background(), Mailbox{Tag: "tag7"}); err == nil {
		t.Fatalf("WaitForCode succeeded with an empty inbox")
	}
}
