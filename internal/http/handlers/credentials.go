package handlers

import (
	"net/http"
	"time"

	"clipper/internal/domain"
)

type credentialResponse struct {
	ID             int64  `json:"id"`
	Service        string `json:"service"`
	Secret         string `json:"secret"`
	Email          string `json:"email,omitempty"`
	Status         string `json:"status"`
	UsageCount     int    `json:"usage_count"`
	DisabledReason string `json:"disabled_reason,omitempty"`
	LastUsed       string `json:"last_used,omitempty"`
}

// maskSecret keeps just enough of the key to identify it in logs and
// dashboards.
func maskSecret(secret string) string {
	if len(secret) <= 8 {
		return "****"
	}
	return secret[:4] + "..." + secret[len(secret)-4:]
}

func toCredentialResponse(c domain.Credential) credentialResponse {
	resp := credentialResponse{
		ID:             c.ID,
		Service:        c.Service,
		Secret:         maskSecret(c.Secret),
		Email:          c.Email,
		Status:         c.Status,
		UsageCount:     c.UsageCount,
		DisabledReason: c.DisabledReason,
	}
	if !c.LastUsed.IsZero() {
		resp.LastUsed = c.LastUsed.UTC().Format(time.RFC3339)
	}
	return resp
}

func (a *App) ListCredentials(w http.ResponseWriter, r *http.Request) {
	creds, err := a.Credentials.List(r.Context())
	if err != nil {
		a.Logger.Error().Err(err).Msg("list credentials")
		a.error(w, http.StatusInternalServerError, "internal", "failed to list credentials")
		return
	}
	items := make([]credentialResponse, 0, len(creds))
	for _, c := range creds {
		items = append(items, toCredentialResponse(c))
	}
	a.json(w, http.StatusOK, map[string]any{"credentials": items})
}
