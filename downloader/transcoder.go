package downloader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// Bitrates for the mp3 encoder, selected by the account's quality tier.
const (
	BitrateStandard = "160k"
	BitratePremium  = "320k"
)

// Transcoder converts a raw downloaded stream into the requested output
// format and embeds the descriptor's metadata. Implementations must only
// produce outputPath on success.
type Transcoder interface {
	Transcode(ctx context.Context, inputPath, outputPath string, desc TrackDescriptor) error
}

// FFmpegTranscoder shells out to an external ffmpeg binary. The contract
// with the process is exit code 0 plus a non-empty output file. For mp3
// output it writes the descriptor's tags and embeds cover art when the
// descriptor carries an artwork URL.
type FFmpegTranscoder struct {
	binary     string
	mp3Bitrate string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewFFmpegTranscoder creates a transcoder using the given ffmpeg binary
// ("ffmpeg" resolves via PATH) and mp3 bitrate.
func NewFFmpegTranscoder(binary, mp3Bitrate string, logger *zap.Logger) *FFmpegTranscoder {
	if binary == "" {
		binary = "ffmpeg"
	}
	if mp3Bitrate == "" {
		mp3Bitrate = BitrateStandard
	}
	return &FFmpegTranscoder{
		binary:     binary,
		mp3Bitrate: mp3Bitrate,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

// Transcode implements the Transcoder interface
func (t *FFmpegTranscoder) Transcode(ctx context.Context, inputPath, outputPath string, desc TrackDescriptor) error {
	args := []string{"-y", "-hide_banner", "-loglevel", "error", "-i", inputPath}

	coverPath := ""
	if desc.Format == FormatMP3 && desc.Tags.ArtworkURL != "" {
		fetched, err := t.fetchArtwork(ctx, desc.Tags.ArtworkURL, outputPath)
		if err != nil {
			// Cover art is cosmetic; a failed fetch never fails the job.
			t.logger.Warn("cover art fetch failed",
				zap.String("url", desc.Tags.ArtworkURL),
				zap.Error(err),
			)
		} else {
			coverPath = fetched
			defer os.Remove(coverPath)
			args = append(args, "-i", coverPath, "-map", "0:a", "-map", "1:0", "-c:v", "copy", "-id3v2_version", "3")
		}
	}

	switch desc.Format {
	case FormatMP3:
		args = append(args, "-codec:a", "libmp3lame", "-b:a", t.mp3Bitrate)
		args = append(args, tagArgs(desc.Tags)...)
	case FormatWAV:
		args = append(args, "-codec:a", "pcm_s16le")
	default:
		return NewPipelineError(ErrorInvalidInput, fmt.Sprintf("unsupported output format: %v", desc.Format))
	}
	args = append(args, "-f", desc.Format.String(), outputPath)

	// CommandContext kills the process on cancellation, which keeps the
	// run's grace period bounded.
	cmd := exec.CommandContext(ctx, t.binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	t.logger.Debug("invoking transcoder",
		zap.String("binary", t.binary),
		zap.String("input", inputPath),
		zap.String("output", outputPath),
		zap.String("format", desc.Format.String()),
	)

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return NewPipelineErrorWithCause(ErrorCancelled, "transcode aborted", ctx.Err())
		}
		msg := stderr.String()
		if msg == "" {
			msg = err.Error()
		}
		return NewPipelineErrorWithCause(ErrorTranscodeFailed, "transcoder process failed", err).
			WithContext("stderr", msg)
	}

	info, err := os.Stat(outputPath)
	if err != nil {
		return NewPipelineErrorWithCause(ErrorTranscodeFailed, "transcoder produced no output", err)
	}
	if info.Size() == 0 {
		return NewPipelineError(ErrorTruncated, "transcoder produced an empty file")
	}

	return nil
}

// tagArgs renders the descriptor's tags as ffmpeg -metadata pairs.
func tagArgs(tags TrackTags) []string {
	var args []string
	add := func(key, value string) {
		if value != "" {
			args = append(args, "-metadata", key+"="+value)
		}
	}
	add("artist", tags.Artist)
	add("title", tags.Title)
	add("album", tags.Album)
	add("date", tags.Year)
	if tags.TrackNumber > 0 {
		add("track", strconv.Itoa(tags.TrackNumber))
	}
	if tags.DiscNumber > 0 {
		add("disc", strconv.Itoa(tags.DiscNumber))
	}
	return args
}

// fetchArtwork downloads the cover image to a hidden temp file next to
// outputPath so the embedding pass can reference it locally.
func (t *FFmpegTranscoder) fetchArtwork(ctx context.Context, artworkURL, outputPath string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, artworkURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("artwork request returned %s", resp.Status)
	}

	coverPath := outputPath + ".cover.jpg"
	file, err := os.Create(coverPath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	if _, err := io.Copy(file, resp.Body); err != nil {
		os.Remove(coverPath)
		return "", err
	}
	return coverPath, nil
}
