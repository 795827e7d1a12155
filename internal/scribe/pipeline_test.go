package scribe

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/fmueller/mocoscribe/internal/audio"
	"github.com/fmueller/mocoscribe/internal/moco"
	"github.com/stretchr/testify/require"
)

type preparerFunc func(ctx context.Context, filePath string) (*audio.Prepared, error)

func (f preparerFunc) Prepare(ctx context.Context, filePath string) (*audio.Prepared, error) {
	return f(ctx, filePath)
}

func splitInto(paths ...string) preparerFunc {
	return func(context.Context, string) (*audio.Prepared, error) {
		prepared := &audio.Prepared{}
		for _, p := range paths {
			prepared.Chunks = append(prepared.Chunks, audio.Chunk{Path: p})
		}
		return prepared, nil
	}
}

func TestHandleMergesTextParts(t *testing.T) {
	t.Parallel()

	dir, input := mediaDir(t)
	texts := map[string]string{
		"/work/audio_part1.mp3": "first half",
		"/work/audio_part2.mp3": "second half",
	}

	var uploaded []string
	h := newTestHandler(t, func(_ context.Context, filePath string, _ moco.Options) (*moco.Result, error) {
		uploaded = append(uploaded, filePath)
		return &moco.Result{TranscriptionID: filepath.Base(filePath), Status: moco.StatusCompleted, Text: texts[filePath]}, nil
	})
	h.Preparer = splitInto("/work/audio_part1.mp3", "/work/audio_part2.mp3")

	var progress [][2]int
	h.OnPart = func(part, total int) { progress = append(progress, [2]int{part, total}) }

	out := h.Handle(context.Background(), Request{FilePath: input})
	require.True(t, out.Success, out.Error)
	require.Equal(t, []string{"/work/audio_part1.mp3", "/work/audio_part2.mp3"}, uploaded)
	require.Equal(t, [][2]int{{1, 2}, {2, 2}}, progress)
	require.Len(t, out.Parts, 2)
	require.Equal(t, "audio_part2.mp3", out.Parts[1].TranscriptionID)

	require.Equal(t, filepath.Join(dir, "audio_20240102_030405.txt"), out.OutputPath)
	written, err := os.ReadFile(out.OutputPath)
	require.NoError(t, err)
	require.Equal(t, "first half\nsecond half", string(written))
	require.Equal(t, string(written), out.Result.Text)
}

func TestHandleMergesSpeakerSegments(t *testing.T) {
	t.Parallel()

	_, input := mediaDir(t)
	h := newTestHandler(t, func(_ context.Context, filePath string, _ moco.Options) (*moco.Result, error) {
		if filePath == "p1" {
			return &moco.Result{Text: `[{"speaker":"A","text":"hello"}]`}, nil
		}
		return &moco.Result{Text: `[{"speaker":"B","text":"bye"}]`}, nil
	})
	h.Preparer = splitInto("p1", "p2")

	out := h.Handle(context.Background(), Request{FilePath: input, Options: moco.Options{SpeakerDiarization: true}})
	require.True(t, out.Success, out.Error)

	written, err := os.ReadFile(out.OutputPath)
	require.NoError(t, err)
	require.Equal(t, "A: hello\nB: bye", string(written))
}

func TestHandleMergesTimestampedParts(t *testing.T) {
	t.Parallel()

	_, input := mediaDir(t)
	h := newTestHandler(t, func(_ context.Context, filePath string, _ moco.Options) (*moco.Result, error) {
		if filePath == "p1" {
			return &moco.Result{Text: `[{"start":0,"end":3300,"text":"a"}]`}, nil
		}
		return &moco.Result{Text: `[{"start":10,"end":20,"text":"b"}]`}, nil
	})
	h.Preparer = splitInto("p1", "p2")

	out := h.Handle(context.Background(), Request{FilePath: input, Options: moco.Options{Timestamp: true}})
	require.True(t, out.Success, out.Error)

	written, err := os.ReadFile(out.OutputPath)
	require.NoError(t, err)
	require.JSONEq(t, `[{"start":0,"end":3300,"text":"a"},{"start":3310,"end":3320,"text":"b"}]`, string(written))
}

func TestHandleSinglePartIsWrittenVerbatim(t *testing.T) {
	t.Parallel()

	_, input := mediaDir(t)
	raw := `[{"start":0,"end":1,"text":"x"}]` + "\n"
	h := newTestHandler(t, func(context.Context, string, moco.Options) (*moco.Result, error) {
		return &moco.Result{TranscriptionID: "job-1", Text: raw}, nil
	})
	h.Preparer = splitInto("/tmp/extracted.wav")

	out := h.Handle(context.Background(), Request{FilePath: input, Options: moco.Options{Timestamp: true}})
	require.True(t, out.Success, out.Error)
	require.Empty(t, out.Parts)
	require.Equal(t, "job-1", out.Result.TranscriptionID)

	written, err := os.ReadFile(out.OutputPath)
	require.NoError(t, err)
	require.Equal(t, raw, string(written))
}

func TestHandlePartFailureWritesNothing(t *testing.T) {
	t.Parallel()

	dir, input := mediaDir(t)
	h := newTestHandler(t, func(_ context.Context, filePath string, _ moco.Options) (*moco.Result, error) {
		if filePath == "p2" {
			return nil, errors.New("server error (status 502)")
		}
		return &moco.Result{Text: "ok"}, nil
	})
	h.Preparer = splitInto("p1", "p2", "p3")

	out := h.Handle(context.Background(), Request{FilePath: input})
	require.False(t, out.Success)
	require.ErrorIs(t, out.Err(), ErrTranscription)
	require.Contains(t, out.Error, "part 2/3")
	require.Equal(t, []string{"audio.mp3"}, dirEntries(t, dir))
}

func TestHandlePreparationFailure(t *testing.T) {
	t.Parallel()

	dir, input := mediaDir(t)
	called := false
	h := newTestHandler(t, func(context.Context, string, moco.Options) (*moco.Result, error) {
		called = true
		return &moco.Result{Text: "x"}, nil
	})
	h.Preparer = preparerFunc(func(context.Context, string) (*audio.Prepared, error) {
		return nil, audio.ErrFFmpeg
	})

	out := h.Handle(context.Background(), Request{FilePath: input})
	require.False(t, out.Success)
	require.ErrorIs(t, out.Err(), ErrPrepare)
	require.ErrorIs(t, out.Err(), audio.ErrFFmpeg)
	require.False(t, called)
	require.Equal(t, []string{"audio.mp3"}, dirEntries(t, dir))
}

// Runs serially: it executes a freshly written script.
func TestHandleRemovesIntermediateFiles(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell stubs need a POSIX shell")
	}

	dir, _ := mediaDir(t)
	work := t.TempDir()

	var chunkDir string
	h := newTestHandler(t, func(_ context.Context, filePath string, _ moco.Options) (*moco.Result, error) {
		require.FileExists(t, filePath)
		chunkDir = filepath.Dir(filePath)
		return &moco.Result{Text: "x"}, nil
	})
	h.Preparer = &audio.Preparer{ExtractAudio: true, FFmpeg: writeFFmpegStub(t), TempDir: work}

	video := filepath.Join(dir, "clip.mov")
	require.NoError(t, os.WriteFile(video, []byte("moov"), 0o644))

	out := h.Handle(context.Background(), Request{FilePath: video})
	require.True(t, out.Success, out.Error)
	require.Equal(t, filepath.Join(dir, "clip_20240102_030405.txt"), out.OutputPath)
	require.NoDirExists(t, chunkDir)
	require.ElementsMatch(t, []string{"audio.mp3", "clip.mov", "clip_20240102_030405.txt"}, dirEntries(t, dir))
}

// writeFFmpegStub returns an ffmpeg stand-in that creates its output file.
func writeFFmpegStub(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "ffmpeg")
	script := "#!/bin/sh\nfor last; do :; done\n: > \"$last\"\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}
