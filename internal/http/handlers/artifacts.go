package handlers

import (
	"net/http"
	"time"

	"clipper/internal/domain"
)

type artifactResponse struct {
	ID          int64   `json:"id"`
	VideoID     string  `json:"video_id"`
	Filename    string  `json:"filename"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Duration    float64 `json:"duration"`
	StorageKey  string  `json:"storage_key"`
	PublicURL   string  `json:"public_url"`
	CreatedAt   string  `json:"created_at"`
}

func toArtifactResponse(a domain.Artifact) artifactResponse {
	return artifactResponse{
		ID:          a.ID,
		VideoID:     a.VideoID,
		Filename:    a.Filename,
		Title:       a.Title,
		Description: a.Description,
		Duration:    a.Duration,
		StorageKey:  a.StorageKey,
		PublicURL:   a.PublicURL,
		CreatedAt:   a.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func (a *App) ListArtifacts(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	artifacts, err := a.Artifacts.List(r.Context(), limit, offset)
	if err != nil {
		a.Logger.Error().Err(err).Msg("list artifacts")
		a.error(w, http.StatusInternalServerError, "internal", "failed to list artifacts")
		return
	}
	items := make([]artifactResponse, 0, len(artifacts))
	for _, art := range artifacts {
		items = append(items, toArtifactResponse(art))
	}
	a.json(w, http.StatusOK, map[string]any{"artifacts": items})
}
