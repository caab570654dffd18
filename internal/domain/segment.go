package domain

// MinSegmentSeconds is the shortest clip worth producing. Proposed segments
// below this are rejected by validation.
const MinSegmentSeconds = 120

// Segment is one AI-proposed sub-clip of a source video. Segments exist only
// between the analysis and cutting steps; they are never persisted on their
// own.
type Segment struct {
	Start       float64 `json:"start"`
	End         float64 `json:"end"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
}

// Duration returns the segment length in seconds.
func (s Segment) Duration() float64 {
	return s.End - s.Start
}

// Valid reports whether the segment has all required fields and meets the
// minimum duration.
func (s Segment) Valid() bool {
	if s.Title == "" || s.Description == "" {
		return false
	}
	return s.End > s.Start && s.Duration() >= MinSegmentSeconds
}

// TranscriptEntry is one ordered line of a fetched transcript.
type TranscriptEntry struct {
	Start    float64
	Duration float64
	Text     string
}
