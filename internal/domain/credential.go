package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// Credential statuses as persisted in the credential store.
const (
	CredentialActive   = "active"
	CredentialDisabled = "disabled"
	CredentialExpired  = "expired"
)

// Service tags for the external APIs a credential belongs to.
const (
	ServiceTranscript = "transcript_api"
	ServiceAnalysis   = "analysis_api"
)

// Credential is one API key for exactly one external service. Owner email and
// password are populated only by the provisioning workflow.
type Credential struct {
	ID             int64
	Service        string
	Secret         string
	Email          string
	Password       string
	Status         string
	UsageCount     int
	DisabledReason string
	LastUsed       time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Active reports whether the credential may be handed out by a pool.
func (c Credential) Active() bool {
	return c.Status == CredentialActive && strings.TrimSpace(c.Secret) != ""
}

type credentialJSON struct {
	Key    string `json:"key"`
	Status string `json:"status"`
}

// ParseCredentialList normalizes a JSON list of credentials in which entries
// may be bare key strings or {"key":..., "status":...} objects. Every source
// is converted to the canonical Credential record here, at ingestion; nothing
// downstream branches on the raw shape. Inactive entries are dropped.
func ParseCredentialList(raw string, service string) ([]Credential, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var entries []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, err
	}
	creds := make([]Credential, 0, len(entries))
	for _, entry := range entries {
		var key string
		if err := json.Unmarshal(entry, &key); err == nil {
			if strings.TrimSpace(key) == "" {
				continue
			}
			creds = append(creds, Credential{Service: service, Secret: strings.TrimSpace(key), Status: CredentialActive})
			continue
		}
		var obj credentialJSON
		if err := json.Unmarshal(entry, &obj); err != nil {
			continue
		}
		if strings.TrimSpace(obj.Key) == "" {
			continue
		}
		status := obj.Status
		if status == "" {
			status = CredentialActive
		}
		if status != CredentialActive {
			continue
		}
		creds = append(creds, Credential{Service: service, Secret: strings.TrimSpace(obj.Key), Status: status})
	}
	return creds, nil
}
