package media

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// Cutter renders vertical clips from a local source file with ffmpeg.
// Output is 9:16 at 1080x1920, center-cropped from the source frame.
type Cutter struct {
	binary string
	logger zerolog.Logger
}

type CutterOptions struct {
	Binary string
	Logger zerolog.Logger
}

func NewCutter(opts CutterOptions) *Cutter {
	binary := opts.Binary
	if binary == "" {
		binary = "ffmpeg"
	}
	return &Cutter{binary: binary, logger: opts.Logger}
}

// Cut extracts [start, end] from srcPath into destPath.
func (c *Cutter) Cut(ctx context.Context, srcPath, destPath string, start, end float64) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("create clip dir: %w", err)
	}

	args := []string{
		"-y",
		"-ss", formatSeconds(start),
		"-to", formatSeconds(end),
		"-i", srcPath,
		"-vf", "crop=ih*9/16:ih,scale=1080:1920",
		"-c:v", "libx264",
		"-preset", "fast",
		"-crf", "23",
		"-c:a", "aac",
		"-b:a", "128k",
		"-movflags", "+faststart",
		destPath,
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.binary, args...)
	cmd.Stderr = &stderr

	c.logger.Info().
		Str("clip", filepath.Base(destPath)).
		Float64("start", start).
		Float64("end", end).
		Msg("cutting clip")
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg: %w: %s", err, lastLine(stderr.String()))
	}
	return nil
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func lastLine(out string) string {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) == 0 {
		return ""
	}
	return strings.TrimSpace(lines[len(lines)-1])
}
