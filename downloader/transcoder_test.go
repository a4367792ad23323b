package downloader

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

// writeStubTranscoder writes a shell script that mimics the ffmpeg
// contract: it copies the -i input to the last argument.
func writeStubTranscoder(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("stub transcoder scripts require a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "ffmpeg-stub")
	script := "#!/bin/sh\n" + body
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("failed to write stub: %v", err)
	}
	return path
}

const copyStub = `in=""
prev=""
last=""
for a in "$@"; do
  if [ "$prev" = "-i" ] && [ -z "$in" ]; then in="$a"; fi
  prev="$a"
  last="$a"
done
cp "$in" "$last"
`

// recordingStub copies input to output and appends every argument, one
// per line, to the file named by the STUB_ARGS environment variable.
const recordingStub = `printf '%s\n' "$@" > "$STUB_ARGS"
` + copyStub

func writeInput(t *testing.T, dir string) (string, string) {
	t.Helper()
	input := filepath.Join(dir, "input.raw")
	output := filepath.Join(dir, "output.mp3")
	if err := os.WriteFile(input, []byte("raw audio"), 0o644); err != nil {
		t.Fatalf("failed to write input: %v", err)
	}
	return input, output
}

func mp3Descriptor() TrackDescriptor {
	return TrackDescriptor{
		ID:          "track-1",
		DisplayName: "Artist - Song",
		Format:      FormatMP3,
	}
}

// recordedArgs runs the transcoder through a stub that captures its
// argument list and returns the arguments one per line.
func recordedArgs(t *testing.T, transcoderFor func(binary string) *FFmpegTranscoder, desc TrackDescriptor) []string {
	t.Helper()
	dir := t.TempDir()
	input, output := writeInput(t, dir)
	argsFile := filepath.Join(dir, "args")
	t.Setenv("STUB_ARGS", argsFile)

	transcoder := transcoderFor(writeStubTranscoder(t, recordingStub))
	if err := transcoder.Transcode(context.Background(), input, output, desc); err != nil {
		t.Fatalf("Transcode returned error: %v", err)
	}

	data, err := os.ReadFile(argsFile)
	if err != nil {
		t.Fatalf("stub did not record arguments: %v", err)
	}
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func argsContainPair(args []string, key, value string) bool {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == key && args[i+1] == value {
			return true
		}
	}
	return false
}

func TestFFmpegTranscoderSuccess(t *testing.T) {
	dir := t.TempDir()
	input, output := writeInput(t, dir)

	transcoder := NewFFmpegTranscoder(writeStubTranscoder(t, copyStub), "", zap.NewNop())
	if err := transcoder.Transcode(context.Background(), input, output, mp3Descriptor()); err != nil {
		t.Fatalf("Transcode returned error: %v", err)
	}

	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("output missing: %v", err)
	}
	if string(data) != "raw audio" {
		t.Errorf("unexpected output content: %q", data)
	}
}

func TestFFmpegTranscoderWritesTags(t *testing.T) {
	desc := mp3Descriptor()
	desc.Tags = TrackTags{
		Artist:      "Artist A",
		Title:       "Song One",
		Album:       "Album X",
		Year:        "2020",
		DiscNumber:  1,
		TrackNumber: 7,
	}

	args := recordedArgs(t, func(binary string) *FFmpegTranscoder {
		return NewFFmpegTranscoder(binary, BitratePremium, zap.NewNop())
	}, desc)

	for _, want := range []string{
		"artist=Artist A",
		"title=Song One",
		"album=Album X",
		"date=2020",
		"track=7",
		"disc=1",
	} {
		if !argsContainPair(args, "-metadata", want) {
			t.Errorf("invocation missing tag %q in args: %v", want, args)
		}
	}
}

func TestFFmpegTranscoderBitrateTier(t *testing.T) {
	tests := []struct {
		name    string
		bitrate string
		want    string
	}{
		{name: "premium tier", bitrate: BitratePremium, want: "320k"},
		{name: "standard tier", bitrate: BitrateStandard, want: "160k"},
		{name: "default is standard", bitrate: "", want: "160k"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := recordedArgs(t, func(binary string) *FFmpegTranscoder {
				return NewFFmpegTranscoder(binary, tt.bitrate, zap.NewNop())
			}, mp3Descriptor())
			if !argsContainPair(args, "-b:a", tt.want) {
				t.Errorf("expected bitrate %s in args: %v", tt.want, args)
			}
		})
	}
}

func TestFFmpegTranscoderEmbedsArtwork(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("jpeg bytes"))
	}))
	defer server.Close()

	desc := mp3Descriptor()
	desc.Tags.ArtworkURL = server.URL + "/cover.jpg"

	args := recordedArgs(t, func(binary string) *FFmpegTranscoder {
		return NewFFmpegTranscoder(binary, "", zap.NewNop())
	}, desc)

	coverArg := ""
	for i := 0; i < len(args)-1; i++ {
		if args[i] == "-i" && strings.HasSuffix(args[i+1], ".cover.jpg") {
			coverArg = args[i+1]
		}
	}
	if coverArg == "" {
		t.Fatalf("no cover input in args: %v", args)
	}
	if !argsContainPair(args, "-map", "1:0") {
		t.Errorf("cover stream not mapped in args: %v", args)
	}
	if _, err := os.Stat(coverArg); !os.IsNotExist(err) {
		t.Error("cover temp file must be removed after the transcode")
	}
}

func TestFFmpegTranscoderArtworkFailureIsNotFatal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	dir := t.TempDir()
	input, output := writeInput(t, dir)

	desc := mp3Descriptor()
	desc.Tags.ArtworkURL = server.URL + "/cover.jpg"

	transcoder := NewFFmpegTranscoder(writeStubTranscoder(t, copyStub), "", zap.NewNop())
	if err := transcoder.Transcode(context.Background(), input, output, desc); err != nil {
		t.Fatalf("artwork fetch failure must not fail the transcode: %v", err)
	}
	if _, err := os.Stat(output); err != nil {
		t.Errorf("output missing: %v", err)
	}
}

func TestFFmpegTranscoderProcessFailure(t *testing.T) {
	dir := t.TempDir()
	input, output := writeInput(t, dir)

	transcoder := NewFFmpegTranscoder(writeStubTranscoder(t, "echo boom >&2\nexit 1\n"), "", zap.NewNop())
	err := transcoder.Transcode(context.Background(), input, output, mp3Descriptor())
	if !IsPipelineError(err, ErrorTranscodeFailed) {
		t.Fatalf("expected transcode_failed, got: %v", err)
	}
	if _, statErr := os.Stat(output); !os.IsNotExist(statErr) {
		t.Error("failed transcode must not leave an output file")
	}
}

func TestFFmpegTranscoderEmptyOutput(t *testing.T) {
	dir := t.TempDir()
	input, output := writeInput(t, dir)

	stub := `last=""
for a in "$@"; do last="$a"; done
: > "$last"
`
	transcoder := NewFFmpegTranscoder(writeStubTranscoder(t, stub), "", zap.NewNop())
	err := transcoder.Transcode(context.Background(), input, output, mp3Descriptor())
	if !IsPipelineError(err, ErrorTruncated) {
		t.Fatalf("expected truncated, got: %v", err)
	}
}

func TestFFmpegTranscoderCancellation(t *testing.T) {
	dir := t.TempDir()
	input, output := writeInput(t, dir)

	transcoder := NewFFmpegTranscoder(writeStubTranscoder(t, "sleep 30\n"), "", zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := transcoder.Transcode(ctx, input, output, mp3Descriptor())
	if !IsPipelineError(err, ErrorCancelled) {
		t.Fatalf("expected cancelled, got: %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("cancellation took %v, expected the process to be killed promptly", elapsed)
	}
}

func TestFFmpegTranscoderUnknownFormat(t *testing.T) {
	transcoder := NewFFmpegTranscoder("ffmpeg", "", zap.NewNop())
	desc := TrackDescriptor{Format: Format(99)}
	err := transcoder.Transcode(context.Background(), "in", "out", desc)
	if !IsPipelineError(err, ErrorInvalidInput) {
		t.Fatalf("expected invalid_input, got: %v", err)
	}
}
