package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"clipper/internal/domain"
	"clipper/internal/segment"
	"clipper/internal/storage"
	"clipper/internal/store"
)

// TaskStore is the slice of the task store the processor drives.
type TaskStore interface {
	ClaimQueued(ctx context.Context) (domain.Task, error)
	SetPhase(ctx context.Context, id string, phase domain.Phase, status domain.PhaseStatus) error
	SetError(ctx context.Context, id, msg string) error
	SkipAll(ctx context.Context, id, reason string) error
	SetDownloadResult(ctx context.Context, id, localPath string, fileSize int64) error
	SetArtifactCount(ctx context.Context, id string, count int) error
	RecordNoTranscript(ctx context.Context, videoID, reason string) error
}

// ArtifactStore records finished clips.
type ArtifactStore interface {
	Insert(ctx context.Context, a domain.Artifact) (domain.Artifact, error)
}

// TranscriptFetcher returns the ordered transcript for a video.
type TranscriptFetcher interface {
	Fetch(ctx context.Context, videoID string) ([]domain.TranscriptEntry, error)
}

// Analyzer runs model completions and the availability probe.
type Analyzer interface {
	Complete(ctx context.Context, prompt string) (string, error)
	CheckAvailability(ctx context.Context, videoID string) bool
}

// VideoDownloader fetches the source video to local disk.
type VideoDownloader interface {
	Download(ctx context.Context, sourceURL, destDir, videoID string) (string, int64, error)
}

// ClipCutter renders one clip from a local source file.
type ClipCutter interface {
	Cut(ctx context.Context, srcPath, destPath string, start, end float64) error
}

type outcome int

const (
	outcomeSucceeded outcome = iota
	outcomeSkipped
	outcomeFailed
)

// RunStats summarizes one worker run.
type RunStats struct {
	Processed int
	Succeeded int
	Skipped   int
	Failed    int
}

// Processor drains the task queue, walking each task through the
// transcript, download, analysis, and conversion phases. Every phase
// transition is persisted before the next phase starts, so a restart
// resumes from durable state instead of redoing finished work.
type Processor struct {
	tasks       TaskStore
	artifacts   ArtifactStore
	transcripts TranscriptFetcher
	analysis    Analyzer
	downloader  VideoDownloader
	cutter      ClipCutter
	objects     storage.ObjectStore
	workDir     string
	workerCount int
	taskLimit   int
	logger      zerolog.Logger
}

type Options struct {
	Tasks       TaskStore
	Artifacts   ArtifactStore
	Transcripts TranscriptFetcher
	Analysis    Analyzer
	Downloader  VideoDownloader
	Cutter      ClipCutter
	Objects     storage.ObjectStore
	WorkDir     string
	WorkerCount int
	TaskLimit   int
	Logger      zerolog.Logger
}

func NewProcessor(opts Options) *Processor {
	workDir := opts.WorkDir
	if workDir == "" {
		workDir = os.TempDir()
	}
	workers := opts.WorkerCount
	if workers <= 0 {
		workers = 1
	}
	return &Processor{
		tasks:       opts.Tasks,
		artifacts:   opts.Artifacts,
		transcripts: opts.Transcripts,
		analysis:    opts.Analysis,
		downloader:  opts.Downloader,
		cutter:      opts.Cutter,
		objects:     opts.Objects,
		workDir:     workDir,
		workerCount: workers,
		taskLimit:   opts.TaskLimit,
		logger:      opts.Logger,
	}
}

// Run drains the queue until it is empty, the task limit is hit, or the
// context is cancelled. A single failing task never stops the run.
func (p *Processor) Run(ctx context.Context) RunStats {
	var (
		mu      sync.Mutex
		stats   RunStats
		claimed atomic.Int64
		wg      sync.WaitGroup
	)

	started := time.Now()
	for i := 0; i < p.workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				if ctx.Err() != nil {
					return
				}
				if p.taskLimit > 0 && claimed.Add(1) > int64(p.taskLimit) {
					return
				}

				task, err := p.tasks.ClaimQueued(ctx)
				if err != nil {
					if !errors.Is(err, store.ErrNoTask) && ctx.Err() == nil {
						p.logger.Error().Err(err).Msg("claim task")
					}
					return
				}

				result := p.processTask(ctx, task)

				mu.Lock()
				stats.Processed++
				switch result {
				case outcomeSucceeded:
					stats.Succeeded++
				case outcomeSkipped:
					stats.Skipped++
				case outcomeFailed:
					stats.Failed++
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	p.logger.Info().
		Int("processed", stats.Processed).
		Int("succeeded", stats.Succeeded).
		Int("skipped", stats.Skipped).
		Int("failed", stats.Failed).
		Dur("elapsed", time.Since(started)).
		Msg("run finished")
	return stats
}

// processTask walks one task through all four phases. Panics in phase
// code are confined to the task that raised them.
func (p *Processor) processTask(ctx context.Context, task domain.Task) (result outcome) {
	logger := p.logger.With().Str("task_id", task.ID).Str("video_id", task.VideoID).Logger()

	taskDir := filepath.Join(p.workDir, task.VideoID)
	defer os.RemoveAll(taskDir)

	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("task panicked")
			p.recordFailure(task.ID, fmt.Sprintf("panic: %v", r))
			result = outcomeFailed
		}
	}()

	// Phase 1: transcript. The claim already marked it fetching.
	entries, err := p.transcripts.Fetch(ctx, task.VideoID)
	if err != nil {
		if domain.KindOf(err) == domain.KindNotFound {
			logger.Info().Msg("no transcript, skipping task permanently")
			p.must(p.tasks.SkipAll(ctx, task.ID, "no transcript available"))
			p.must(p.tasks.RecordNoTranscript(ctx, task.VideoID, err.Error()))
			return outcomeSkipped
		}
		logger.Error().Err(err).Msg("transcript fetch failed")
		p.failPhase(ctx, task.ID, domain.PhaseTranscript, err)
		return outcomeFailed
	}
	p.must(p.tasks.SetPhase(ctx, task.ID, domain.PhaseTranscript, domain.StatusCompleted))

	// Phase 2: download.
	p.must(p.tasks.SetPhase(ctx, task.ID, domain.PhaseDownload, domain.StatusDownloading))
	localPath, fileSize, err := p.downloader.Download(ctx, task.SourceURL, taskDir, task.VideoID)
	if err != nil {
		logger.Error().Err(err).Msg("download failed")
		p.failPhase(ctx, task.ID, domain.PhaseDownload, err)
		return outcomeFailed
	}
	p.must(p.tasks.SetDownloadResult(ctx, task.ID, localPath, fileSize))
	p.must(p.tasks.SetPhase(ctx, task.ID, domain.PhaseDownload, domain.StatusCompleted))

	// The source can disappear between queueing and processing. Re-check
	// before spending analysis credits.
	if !p.analysis.CheckAvailability(ctx, task.VideoID) {
		logger.Info().Msg("video no longer available, skipping remaining phases")
		p.must(p.tasks.SetPhase(ctx, task.ID, domain.PhaseAnalysis, domain.StatusSkipped))
		p.must(p.tasks.SetPhase(ctx, task.ID, domain.PhaseConversion, domain.StatusSkipped))
		os.Remove(localPath)
		return outcomeSkipped
	}

	// Phase 3: analysis.
	p.must(p.tasks.SetPhase(ctx, task.ID, domain.PhaseAnalysis, domain.StatusInProgress))
	completion, err := p.analysis.Complete(ctx, segment.BuildPrompt(entries))
	if err != nil {
		logger.Error().Err(err).Msg("analysis failed")
		p.failPhase(ctx, task.ID, domain.PhaseAnalysis, err)
		return outcomeFailed
	}
	segments := segment.ParseSegments(completion)
	if len(segments) == 0 {
		logger.Warn().Msg("analysis produced no valid segments")
		p.failPhase(ctx, task.ID, domain.PhaseAnalysis, domain.ErrNoSegments)
		return outcomeFailed
	}
	p.must(p.tasks.SetPhase(ctx, task.ID, domain.PhaseAnalysis, domain.StatusCompleted))
	logger.Info().Int("segments", len(segments)).Msg("analysis completed")

	// Phase 4: conversion. One bad segment does not sink the rest.
	p.must(p.tasks.SetPhase(ctx, task.ID, domain.PhaseConversion, domain.StatusInProgress))
	produced := 0
	for i, seg := range segments {
		if err := p.produceClip(ctx, task, localPath, taskDir, i+1, seg); err != nil {
			logger.Warn().Err(err).Int("segment", i+1).Msg("clip production failed")
			continue
		}
		produced++
	}
	p.must(p.tasks.SetArtifactCount(ctx, task.ID, produced))

	if produced == 0 {
		p.failPhase(ctx, task.ID, domain.PhaseConversion, fmt.Errorf("no clips produced from %d segments", len(segments)))
		return outcomeFailed
	}
	p.must(p.tasks.SetPhase(ctx, task.ID, domain.PhaseConversion, domain.StatusCompleted))
	logger.Info().Int("clips", produced).Msg("task completed")
	return outcomeSucceeded
}

func (p *Processor) produceClip(ctx context.Context, task domain.Task, srcPath, taskDir string, index int, seg domain.Segment) error {
	title := segment.SanitizeTitle(seg.Title)
	filename := fmt.Sprintf("%s_%02d_%s.mp4", task.VideoID, index, strings.ReplaceAll(title, " ", "_"))
	clipPath := filepath.Join(taskDir, filename)

	if err := p.cutter.Cut(ctx, srcPath, clipPath, seg.Start, seg.End); err != nil {
		return err
	}
	defer os.Remove(clipPath)

	key := "clips/" + filename
	publicURL, err := p.objects.Put(ctx, key, clipPath)
	if err != nil {
		return err
	}

	_, err = p.artifacts.Insert(ctx, domain.Artifact{
		VideoID:     task.VideoID,
		Filename:    filename,
		Title:       title,
		Description: seg.Description,
		Duration:    seg.Duration(),
		StorageKey:  storage.SanitizeKey(key),
		PublicURL:   publicURL,
	})
	return err
}

// failPhase marks one phase failed and records the error on the task.
func (p *Processor) failPhase(ctx context.Context, taskID string, phase domain.Phase, cause error) {
	p.must(p.tasks.SetPhase(ctx, taskID, phase, domain.StatusFailed))
	p.must(p.tasks.SetError(ctx, taskID, cause.Error()))
}

// recordFailure runs outside the task context so a cancelled run can
// still persist the reason.
func (p *Processor) recordFailure(taskID, msg string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := p.tasks.SetError(ctx, taskID, msg); err != nil {
		p.logger.Error().Err(err).Str("task_id", taskID).Msg("record task failure")
	}
}

func (p *Processor) must(err error) {
	if err != nil {
		p.logger.Error().Err(err).Msg("persist task state")
	}
}
