package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"clipper/internal/store"
)

type App struct {
	Tasks       *store.TaskStore
	Artifacts   *store.ArtifactStore
	Credentials *store.CredentialStore
	Logger      zerolog.Logger
}

func NewApp(tasks *store.TaskStore, artifacts *store.ArtifactStore, credentials *store.CredentialStore, logger zerolog.Logger) *App {
	return &App{Tasks: tasks, Artifacts: artifacts, Credentials: credentials, Logger: logger}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, kind, msg string) {
	a.json(w, code, map[string]string{"error": kind, "message": msg})
}
