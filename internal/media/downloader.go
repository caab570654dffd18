package media

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/rs/zerolog"
)

// Downloader fetches source videos with yt-dlp.
type Downloader struct {
	binary      string
	cookiesFile string
	logger      zerolog.Logger
}

type DownloaderOptions struct {
	Binary      string
	CookiesFile string
	Logger      zerolog.Logger
}

func NewDownloader(opts DownloaderOptions) *Downloader {
	binary := opts.Binary
	if binary == "" {
		binary = "yt-dlp"
	}
	return &Downloader{binary: binary, cookiesFile: opts.CookiesFile, logger: opts.Logger}
}

// Download fetches the video into destDir and returns the resulting
// file path and size. The output name is pinned to the video ID so a
// later glob can find it regardless of container extension.
func (d *Downloader) Download(ctx context.Context, sourceURL, destDir, videoID string) (string, int64, error) {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", 0, fmt.Errorf("create download dir: %w", err)
	}

	outTemplate := filepath.Join(destDir, videoID+".%(ext)s")
	args := []string{
		"-f", "bestvideo[ext=mp4]+bestaudio[ext=m4a]/mp4/best",
		"--no-playlist",
		"--no-progress",
		"-o", outTemplate,
	}
	if d.cookiesFile != "" {
		args = append(args, "--cookies", d.cookiesFile)
	}
	args = append(args, sourceURL)

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, d.binary, args...)
	cmd.Stderr = &stderr

	d.logger.Info().Str("video_id", videoID).Msg("downloading source video")
	if err := cmd.Run(); err != nil {
		return "", 0, fmt.Errorf("yt-dlp: %w: %s", err, lastLine(stderr.String()))
	}

	matches, err := filepath.Glob(filepath.Join(destDir, videoID+".*"))
	if err != nil || len(matches) == 0 {
		return "", 0, fmt.Errorf("download produced no file for %s", videoID)
	}
	path := matches[0]
	info, err := os.Stat(path)
	if err != nil {
		return "", 0, fmt.Errorf("stat downloaded file: %w", err)
	}
	return path, info.Size(), nil
}
