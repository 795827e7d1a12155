package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

// MaxChunkDuration keeps every upload safely below the API's one hour limit.
const MaxChunkDuration = 55 * time.Minute

var ErrFFmpeg = errors.New("ffmpeg failed")

// audioExtensions are uploaded as they are. Anything else has its audio
// track re-encoded to WAV first.
var audioExtensions = []string{"wav", "mp3", "m4a", "aac"}

type Chunk struct {
	Path     string
	Start    time.Duration
	Duration time.Duration
}

// Prepared holds the chunks for one request. Cleanup removes every
// intermediate file; the input file is never touched.
type Prepared struct {
	Chunks []Chunk

	dir string
}

func (p *Prepared) workDir(base string) (string, error) {
	if p.dir != "" {
		return p.dir, nil
	}
	dir, err := os.MkdirTemp(base, "mocoscribe-*")
	if err != nil {
		return "", fmt.Errorf("create work dir: %w", err)
	}
	p.dir = dir
	return dir, nil
}

func (p *Prepared) Cleanup() error {
	if p == nil || p.dir == "" {
		return nil
	}
	err := os.RemoveAll(p.dir)
	p.dir = ""
	return err
}

// Preparer runs ffmpeg/ffprobe to turn a media file into upload-ready
// chunks. The zero value does nothing and returns the input as one chunk.
type Preparer struct {
	FFmpeg       string
	FFprobe      string
	ExtractAudio bool
	MaxChunk     time.Duration
	// TempDir is the parent of the per-request work dir; empty means
	// os.TempDir.
	TempDir string
	Logger  *zap.Logger
}

func NeedsExtraction(path string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	return !lo.Contains(audioExtensions, ext)
}

func (p *Preparer) Prepare(ctx context.Context, inputPath string) (*Prepared, error) {
	prepared := &Prepared{Chunks: []Chunk{{Path: inputPath}}}
	if !p.ExtractAudio && p.MaxChunk <= 0 {
		return prepared, nil
	}

	source := inputPath
	if p.ExtractAudio && NeedsExtraction(inputPath) {
		dir, err := prepared.workDir(p.TempDir)
		if err != nil {
			return nil, err
		}
		out := filepath.Join(dir, stem(inputPath)+".wav")
		if err := p.Extract(ctx, inputPath, out); err != nil {
			_ = prepared.Cleanup()
			return nil, err
		}
		source = out
		prepared.Chunks = []Chunk{{Path: source}}
	}

	if p.MaxChunk <= 0 {
		return prepared, nil
	}

	total, err := p.Duration(ctx, source)
	if err != nil {
		if missingBinary(err) {
			p.log().Warn("ffprobe not found; sending the file whole", zap.String("file", source))
			return prepared, nil
		}
		_ = prepared.Cleanup()
		return nil, err
	}
	prepared.Chunks[0].Duration = total
	if total <= p.MaxChunk {
		return prepared, nil
	}

	dir, err := prepared.workDir(p.TempDir)
	if err != nil {
		return nil, err
	}
	chunks, err := p.Split(ctx, source, total, dir)
	if err != nil {
		_ = prepared.Cleanup()
		return nil, err
	}
	prepared.Chunks = chunks
	return prepared, nil
}

// Extract writes the audio track of inputPath to outputPath as 16-bit
// 44.1kHz stereo WAV.
func (p *Preparer) Extract(ctx context.Context, inputPath, outputPath string) error {
	started := time.Now()
	err := p.run(ctx, p.ffmpeg(),
		"-nostdin", "-hide_banner", "-loglevel", "error", "-y",
		"-i", inputPath,
		"-vn",
		"-acodec", "pcm_s16le",
		"-ar", "44100",
		"-ac", "2",
		outputPath,
	)
	if err != nil {
		return err
	}
	p.log().Info("audio extracted", zap.String("input", inputPath), zap.String("output", outputPath), zap.Duration("elapsed", time.Since(started)))
	return nil
}

// Duration asks ffprobe for the container duration.
func (p *Preparer) Duration(ctx context.Context, path string) (time.Duration, error) {
	out, err := p.output(ctx, p.ffprobe(),
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return 0, err
	}

	seconds, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil || math.IsNaN(seconds) || seconds < 0 {
		return 0, fmt.Errorf("%w: unreadable duration %q for %s", ErrFFmpeg, strings.TrimSpace(string(out)), path)
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

// Split cuts path into consecutive parts of at most MaxChunk, named
// "<stem>_part<N><ext>" inside dir.
func (p *Preparer) Split(ctx context.Context, path string, total time.Duration, dir string) ([]Chunk, error) {
	base := stem(path)
	ext := filepath.Ext(path)

	chunks := PlanChunks(total, p.MaxChunk)
	for i := range chunks {
		chunks[i].Path = filepath.Join(dir, fmt.Sprintf("%s_part%d%s", base, i+1, ext))
		err := p.run(ctx, p.ffmpeg(),
			"-nostdin", "-hide_banner", "-loglevel", "error", "-y",
			"-ss", formatSeconds(chunks[i].Start),
			"-t", formatSeconds(chunks[i].Duration),
			"-i", path,
			"-vn",
			"-c:a", "copy",
			chunks[i].Path,
		)
		if err != nil {
			return nil, err
		}
	}

	p.log().Info("audio split", zap.String("file", path), zap.Duration("duration", total), zap.Int("parts", len(chunks)))
	return chunks, nil
}

// PlanChunks divides total into consecutive windows of at most limit.
func PlanChunks(total, limit time.Duration) []Chunk {
	if limit <= 0 || total <= limit {
		return []Chunk{{Duration: total}}
	}

	var chunks []Chunk
	for start := time.Duration(0); start < total; start += limit {
		chunks = append(chunks, Chunk{Start: start, Duration: min(limit, total-start)})
	}
	return chunks
}

func (p *Preparer) run(ctx context.Context, name string, args ...string) error {
	_, err := p.output(ctx, name, args...)
	return err
}

func (p *Preparer) output(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	p.log().Debug("running", zap.String("command", name), zap.Strings("args", args))
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			return nil, fmt.Errorf("%w: %s: %w", ErrFFmpeg, filepath.Base(name), err)
		}
		return nil, fmt.Errorf("%w: %s: %w: %s", ErrFFmpeg, filepath.Base(name), err, detail)
	}
	return stdout.Bytes(), nil
}

func missingBinary(err error) bool {
	return errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist)
}

func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func (p *Preparer) ffmpeg() string {
	if p.FFmpeg == "" {
		return "ffmpeg"
	}
	return p.FFmpeg
}

func (p *Preparer) ffprobe() string {
	if p.FFprobe == "" {
		return "ffprobe"
	}
	return p.FFprobe
}

func (p *Preparer) log() *zap.Logger {
	if p.Logger == nil {
		return zap.NewNop()
	}
	return p.Logger
}
