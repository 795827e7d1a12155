package scribe

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/fmueller/mocoscribe/internal/config"
	"github.com/fmueller/mocoscribe/internal/gpt"
	"github.com/stretchr/testify/require"
)

type refinerFunc func(ctx context.Context, prompt, text string) (string, error)

func (f refinerFunc) Process(ctx context.Context, prompt, text string) (string, error) {
	return f(ctx, prompt, text)
}

func newRefineHandler(t *testing.T, refine refinerFunc) *Handler {
	t.Helper()

	h := newTestHandler(t, nil)
	require.NoError(t, os.WriteFile(h.ConfigPath, []byte(`{"apiKey":"secret","openaiApiKey":"sk-1"}`), 0o600))
	h.PromptPath = filepath.Join(t.TempDir(), "default_prompt.txt")
	h.NewRefiner = func(cfg *config.Config) (Refiner, error) {
		require.Equal(t, "sk-1", cfg.OpenAIAPIKey)
		return refine, nil
	}
	return h
}

func TestRefineWritesGPTOutput(t *testing.T) {
	t.Parallel()

	dir, input := mediaDir(t)
	var gotPrompt, gotText string
	h := newRefineHandler(t, func(_ context.Context, prompt, text string) (string, error) {
		gotPrompt, gotText = prompt, text
		return "Good morning.", nil
	})

	out := h.Refine(context.Background(), RefineRequest{FilePath: input, Text: "おはようございます。"})
	require.True(t, out.Success, out.Error)
	require.Equal(t, gpt.DefaultPrompt, gotPrompt)
	require.Equal(t, "おはようございます。", gotText)
	require.Equal(t, filepath.Join(dir, "audio_gpt_20240102_030405.txt"), out.OutputPath)

	written, err := os.ReadFile(out.OutputPath)
	require.NoError(t, err)
	require.Equal(t, "Good morning.", string(written))
	require.FileExists(t, h.PromptPath)
}

func TestRefinePromptOverride(t *testing.T) {
	t.Parallel()

	_, input := mediaDir(t)
	var gotPrompt string
	h := newRefineHandler(t, func(_ context.Context, prompt, _ string) (string, error) {
		gotPrompt = prompt
		return "summary", nil
	})

	out := h.Refine(context.Background(), RefineRequest{FilePath: input, Text: "long text", Prompt: "Summarize."})
	require.True(t, out.Success, out.Error)
	require.Equal(t, "Summarize.", gotPrompt)
	require.NoFileExists(t, h.PromptPath)

	out = h.Refine(context.Background(), RefineRequest{FilePath: input, Text: "long text", Prompt: "Bullet points.", SavePrompt: true})
	require.True(t, out.Success, out.Error)

	saved, err := gpt.LoadPrompt(h.PromptPath)
	require.NoError(t, err)
	require.Equal(t, "Bullet points.", saved)
}

func TestRefineFailureWritesNothing(t *testing.T) {
	t.Parallel()

	dir, input := mediaDir(t)
	h := newRefineHandler(t, func(context.Context, string, string) (string, error) {
		return "", errors.New("rate limited")
	})

	out := h.Refine(context.Background(), RefineRequest{FilePath: input, Text: "text"})
	require.False(t, out.Success)
	require.ErrorIs(t, out.Err(), ErrRefine)
	require.Contains(t, out.Error, "rate limited")
	require.Equal(t, []string{"audio.mp3"}, dirEntries(t, dir))
}

func TestRefineWithoutOpenAIKey(t *testing.T) {
	t.Parallel()

	_, input := mediaDir(t)
	h := newRefineHandler(t, nil)
	h.NewRefiner = func(cfg *config.Config) (Refiner, error) {
		return nil, gpt.ErrNoAPIKey
	}

	out := h.Refine(context.Background(), RefineRequest{FilePath: input, Text: "text"})
	require.False(t, out.Success)
	require.ErrorIs(t, out.Err(), ErrRefine)
	require.ErrorIs(t, out.Err(), gpt.ErrNoAPIKey)
}

func TestRefineRejectsEmptyText(t *testing.T) {
	t.Parallel()

	_, input := mediaDir(t)
	h := newRefineHandler(t, func(context.Context, string, string) (string, error) {
		t.Fatal("refiner must not be called")
		return "", nil
	})

	out := h.Refine(context.Background(), RefineRequest{FilePath: input, Text: " \n"})
	require.False(t, out.Success)
	require.ErrorIs(t, out.Err(), ErrRefine)
}

func TestRefineConfigFailure(t *testing.T) {
	t.Parallel()

	_, input := mediaDir(t)
	h := newRefineHandler(t, nil)
	h.ConfigPath = filepath.Join(t.TempDir(), "missing.json")

	out := h.Refine(context.Background(), RefineRequest{FilePath: input, Text: "text"})
	require.False(t, out.Success)
	require.ErrorIs(t, out.Err(), ErrConfig)
}
