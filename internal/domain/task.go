package domain

import "time"

// PhaseStatus tracks one processing phase of a task. Statuses only ever move
// forward or into a terminal failed/skipped state; a run never transitions a
// phase backward.
type PhaseStatus string

const (
	StatusPending     PhaseStatus = "pending"
	StatusFetching    PhaseStatus = "fetching"
	StatusDownloading PhaseStatus = "downloading"
	StatusInProgress  PhaseStatus = "in_progress"
	StatusCompleted   PhaseStatus = "completed"
	StatusFailed      PhaseStatus = "failed"
	StatusSkipped     PhaseStatus = "skipped"
)

// Terminal reports whether the status ends the phase for this run.
func (s PhaseStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusSkipped
}

// Phase names the four tracked processing stages, attempted strictly in the
// order transcript, download, analysis, conversion.
type Phase string

const (
	PhaseTranscript Phase = "transcript"
	PhaseDownload   Phase = "download"
	PhaseAnalysis   Phase = "analysis"
	PhaseConversion Phase = "conversion"
)

// Task is one queued source video to mine for clips. Rows are append-only;
// only the pipeline mutates phase statuses, through atomic single-row writes.
type Task struct {
	ID               string
	VideoID          string
	SourceURL        string
	Title            string
	Channel          string
	Duration         float64
	TranscriptStatus PhaseStatus
	DownloadStatus   PhaseStatus
	AnalysisStatus   PhaseStatus
	ConversionStatus PhaseStatus
	LastError        string
	LocalPath        string
	FileSize         int64
	ArtifactCount    int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
