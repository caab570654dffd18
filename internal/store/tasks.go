package store

import (
	"context"
	"errors"
	"fmt"

	"clipper/internal/domain"
	"clipper/internal/infra"
	"clipper/internal/sqlinline"
)

// ErrNoTask is returned by ClaimQueued when no pending task remains.
var ErrNoTask = errors.New("no task available")

// ErrDuplicate is returned by Enqueue when the video is already queued.
var ErrDuplicate = errors.New("task already queued")

// TaskStats aggregates batch progress for reporting.
type TaskStats struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
	Pending   int `json:"pending"`
}

// TaskStore persists task rows. Every phase transition is an atomic
// single-row write so a crash always leaves the last completed phase durable.
type TaskStore struct {
	sql infra.SQLExecutor
}

func NewTaskStore(sql infra.SQLExecutor) *TaskStore {
	return &TaskStore{sql: sql}
}

// Enqueue inserts a new pending task. A video that is already queued is
// left untouched and the existing duplicate reported via ErrDuplicate.
func (s *TaskStore) Enqueue(ctx context.Context, t domain.Task) (string, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QInsertTask,
		t.VideoID, t.SourceURL, t.Title, t.Channel, t.Duration)
	var id string
	if err := row.Scan(&id); err != nil {
		if infra.IsNoRows(err) {
			return "", ErrDuplicate
		}
		return "", err
	}
	return id, nil
}

// ClaimQueued atomically claims the oldest pending task, marking its
// transcript phase as fetching. Returns ErrNoTask when the queue is drained.
func (s *TaskStore) ClaimQueued(ctx context.Context) (domain.Task, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QClaimQueuedTask)
	var t domain.Task
	err := row.Scan(&t.ID, &t.VideoID, &t.SourceURL, &t.Title, &t.Channel, &t.Duration,
		&t.TranscriptStatus, &t.DownloadStatus, &t.AnalysisStatus, &t.ConversionStatus,
		&t.LastError, &t.LocalPath, &t.FileSize, &t.ArtifactCount)
	if err != nil {
		if infra.IsNoRows(err) {
			return domain.Task{}, ErrNoTask
		}
		return domain.Task{}, err
	}
	return t, nil
}

func (s *TaskStore) Get(ctx context.Context, id string) (domain.Task, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QSelectTask, id)
	var t domain.Task
	err := row.Scan(&t.ID, &t.VideoID, &t.SourceURL, &t.Title, &t.Channel, &t.Duration,
		&t.TranscriptStatus, &t.DownloadStatus, &t.AnalysisStatus, &t.ConversionStatus,
		&t.LastError, &t.LocalPath, &t.FileSize, &t.ArtifactCount, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if infra.IsNoRows(err) {
			return domain.Task{}, domain.ErrNotFound
		}
		return domain.Task{}, err
	}
	return t, nil
}

func (s *TaskStore) List(ctx context.Context, limit, offset int) ([]domain.Task, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.sql.Query(ctx, sqlinline.QListTasks, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var tasks []domain.Task
	for rows.Next() {
		var t domain.Task
		if err := rows.Scan(&t.ID, &t.VideoID, &t.SourceURL, &t.Title, &t.Channel, &t.Duration,
			&t.TranscriptStatus, &t.DownloadStatus, &t.AnalysisStatus, &t.ConversionStatus,
			&t.LastError, &t.LocalPath, &t.FileSize, &t.ArtifactCount, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// SetPhase records a phase transition for a single task.
func (s *TaskStore) SetPhase(ctx context.Context, id string, phase domain.Phase, status domain.PhaseStatus) error {
	var query string
	switch phase {
	case domain.PhaseTranscript:
		query = sqlinline.QSetTranscriptStatus
	case domain.PhaseDownload:
		query = sqlinline.QSetDownloadStatus
	case domain.PhaseAnalysis:
		query = sqlinline.QSetAnalysisStatus
	case domain.PhaseConversion:
		query = sqlinline.QSetConversionStatus
	default:
		return fmt.Errorf("unknown phase %q", phase)
	}
	_, err := s.sql.Exec(ctx, query, id, string(status))
	return err
}

func (s *TaskStore) SetError(ctx context.Context, id, msg string) error {
	_, err := s.sql.Exec(ctx, sqlinline.QSetTaskError, id, msg)
	return err
}

// SkipAll marks every phase skipped with the given reason. Used when the
// transcript provider reports the source as permanently unusable.
func (s *TaskStore) SkipAll(ctx context.Context, id, reason string) error {
	_, err := s.sql.Exec(ctx, sqlinline.QSkipAllPhases, id, reason)
	return err
}

func (s *TaskStore) SetDownloadResult(ctx context.Context, id, localPath string, fileSize int64) error {
	_, err := s.sql.Exec(ctx, sqlinline.QSetDownloadResult, id, localPath, fileSize)
	return err
}

func (s *TaskStore) SetArtifactCount(ctx context.Context, id string, count int) error {
	_, err := s.sql.Exec(ctx, sqlinline.QSetArtifactCount, id, count)
	return err
}

func (s *TaskStore) Stats(ctx context.Context) (TaskStats, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QTaskStats)
	var st TaskStats
	if err := row.Scan(&st.Total, &st.Succeeded, &st.Skipped, &st.Failed, &st.Pending); err != nil {
		return TaskStats{}, err
	}
	return st, nil
}

// RecordNoTranscript adds the video to the permanent no-transcript list.
func (s *TaskStore) RecordNoTranscript(ctx context.Context, videoID, reason string) error {
	_, err := s.sql.Exec(ctx, sqlinline.QInsertNoTranscript, videoID, reason)
	return err
}
