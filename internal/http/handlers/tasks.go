package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"clipper/internal/domain"
	"clipper/internal/store"
)

type taskResponse struct {
	ID               string  `json:"id"`
	VideoID          string  `json:"video_id"`
	SourceURL        string  `json:"source_url"`
	Title            string  `json:"title"`
	Channel          string  `json:"channel"`
	Duration         float64 `json:"duration"`
	TranscriptStatus string  `json:"transcript_status"`
	DownloadStatus   string  `json:"download_status"`
	AnalysisStatus   string  `json:"analysis_status"`
	ConversionStatus string  `json:"conversion_status"`
	LastError        string  `json:"last_error,omitempty"`
	FileSize         int64   `json:"file_size,omitempty"`
	ArtifactCount    int     `json:"artifact_count"`
	CreatedAt        string  `json:"created_at"`
	UpdatedAt        string  `json:"updated_at"`
}

func toTaskResponse(t domain.Task) taskResponse {
	return taskResponse{
		ID:               t.ID,
		VideoID:          t.VideoID,
		SourceURL:        t.SourceURL,
		Title:            t.Title,
		Channel:          t.Channel,
		Duration:         t.Duration,
		TranscriptStatus: string(t.TranscriptStatus),
		DownloadStatus:   string(t.DownloadStatus),
		AnalysisStatus:   string(t.AnalysisStatus),
		ConversionStatus: string(t.ConversionStatus),
		LastError:        t.LastError,
		FileSize:         t.FileSize,
		ArtifactCount:    t.ArtifactCount,
		CreatedAt:        t.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:        t.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

type enqueueRequest struct {
	VideoID   string  `json:"video_id"`
	SourceURL string  `json:"source_url"`
	Title     string  `json:"title"`
	Channel   string  `json:"channel"`
	Duration  float64 `json:"duration"`
}

func (a *App) EnqueueTask(w http.ResponseWriter, r *http.Request) {
	var req enqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	if req.VideoID == "" || req.SourceURL == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "video_id and source_url are required")
		return
	}

	id, err := a.Tasks.Enqueue(r.Context(), domain.Task{
		VideoID:   req.VideoID,
		SourceURL: req.SourceURL,
		Title:     req.Title,
		Channel:   req.Channel,
		Duration:  req.Duration,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			a.error(w, http.StatusConflict, "conflict", "video is already queued")
			return
		}
		a.Logger.Error().Err(err).Str("video_id", req.VideoID).Msg("enqueue task")
		a.error(w, http.StatusInternalServerError, "internal", "failed to enqueue task")
		return
	}
	a.json(w, http.StatusCreated, map[string]string{"id": id})
}

func (a *App) ListTasks(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	tasks, err := a.Tasks.List(r.Context(), limit, offset)
	if err != nil {
		a.Logger.Error().Err(err).Msg("list tasks")
		a.error(w, http.StatusInternalServerError, "internal", "failed to list tasks")
		return
	}
	items := make([]taskResponse, 0, len(tasks))
	for _, t := range tasks {
		items = append(items, toTaskResponse(t))
	}
	a.json(w, http.StatusOK, map[string]any{"tasks": items})
}

func (a *App) GetTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	task, err := a.Tasks.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "task not found")
			return
		}
		a.Logger.Error().Err(err).Str("task_id", id).Msg("get task")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load task")
		return
	}
	a.json(w, http.StatusOK, toTaskResponse(task))
}

func (a *App) TaskStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.Tasks.Stats(r.Context())
	if err != nil {
		a.Logger.Error().Err(err).Msg("task stats")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load stats")
		return
	}
	a.json(w, http.StatusOK, stats)
}

func pagination(r *http.Request) (int, int) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
