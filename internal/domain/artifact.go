package domain

import "time"

// Artifact is one produced clip: cut, uploaded, and recorded. Immutable once
// created.
type Artifact struct {
	ID          int64
	VideoID     string
	Filename    string
	Title       string
	Description string
	Duration    float64
	StorageKey  string
	PublicURL   string
	CreatedAt   time.Time
}
