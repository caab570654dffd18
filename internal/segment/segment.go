package segment

import (
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"clipper/internal/domain"
)

const maxTitleLength = 50

// BuildPrompt renders the transcript into the analysis request. The
// model is asked for highlight segments long enough to stand alone as
// vertical clips.
func BuildPrompt(entries []domain.TranscriptEntry) string {
	var sb strings.Builder
	sb.WriteString("You are a video editor looking for self-contained highlights in a transcript.\n")
	sb.WriteString(fmt.Sprintf("Find segments that are at least %d seconds long and work as standalone short clips.\n", domain.MinSegmentSeconds))
	sb.WriteString("Respond with only a JSON array of objects, each with keys: start (seconds), end (seconds), title, description.\n\n")
	sb.WriteString("Transcript:\n")
	for _, entry := range entries {
		sb.WriteString(fmt.Sprintf("[%.1f] %s\n", entry.Start, strings.TrimSpace(entry.Text)))
	}
	return sb.String()
}

// ParseSegments decodes model output into validated segments. Malformed
// payloads yield nil rather than an error; the caller treats an empty
// result as an analysis miss either way.
func ParseSegments(text string) []domain.Segment {
	fragment := extractArray(text)
	if fragment == "" {
		return nil
	}

	var decoded []domain.Segment
	if err := json.Unmarshal([]byte(fragment), &decoded); err != nil {
		return nil
	}

	valid := make([]domain.Segment, 0, len(decoded))
	for _, seg := range decoded {
		if seg.Valid() {
			valid = append(valid, seg)
		}
	}
	if len(valid) == 0 {
		return nil
	}
	return valid
}

var titleCaser = cases.Title(language.English)

// SanitizeTitle turns a model-provided title into a filesystem- and
// URL-safe slug fragment, capped at 50 characters.
func SanitizeTitle(title string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '<', '>', ':', '"', '/', '\\', '|', '?', '*':
			return -1
		}
		if r < 0x20 {
			return -1
		}
		return r
	}, title)

	cleaned = strings.Join(strings.Fields(cleaned), " ")
	cleaned = titleCaser.String(cleaned)
	if cleaned == "" {
		cleaned = "Untitled Segment"
	}
	if len(cleaned) > maxTitleLength {
		cleaned = strings.TrimSpace(cleaned[:maxTitleLength])
	}
	return cleaned
}

func extractArray(text string) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ""
	}
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```JSON")
		trimmed = strings.TrimPrefix(trimmed, "```")
		if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
			trimmed = trimmed[:idx]
		}
		trimmed = strings.TrimSpace(trimmed)
	}
	start := strings.Index(trimmed, "[")
	end := strings.LastIndex(trimmed, "]")
	if start < 0 || end < start {
		return ""
	}
	return trimmed[start : end+1]
}
