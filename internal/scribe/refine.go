package scribe

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fmueller/mocoscribe/internal/gpt"
	"go.uber.org/zap"
)

var ErrRefine = errors.New("post-processing failed")

// Refiner rewrites a transcript according to prompt.
type Refiner interface {
	Process(ctx context.Context, prompt, text string) (string, error)
}

// RefineRequest names the file the result is saved next to, usually the
// original media file or its transcript.
type RefineRequest struct {
	FilePath string `json:"filePath" binding:"required"`
	Text     string `json:"text"`

	// Prompt overrides the prompt file for this request. With SavePrompt
	// it also replaces the file's content.
	Prompt     string `json:"prompt,omitempty"`
	SavePrompt bool   `json:"savePrompt,omitempty"`
}

type RefineOutcome struct {
	Success    bool   `json:"success"`
	Text       string `json:"text,omitempty"`
	OutputPath string `json:"outputPath,omitempty"`
	Error      string `json:"error,omitempty"`

	err error
}

func (o RefineOutcome) Err() error {
	return o.err
}

func refineFailure(err error) RefineOutcome {
	return RefineOutcome{Success: false, Error: err.Error(), err: err}
}

// Refine runs the transcript text through the post-processor and writes
// the reply to "<stem>_gpt_<YYYYMMDD_HHmmss>.txt" next to FilePath.
func (h *Handler) Refine(ctx context.Context, req RefineRequest) RefineOutcome {
	log := h.log().With(zap.String("file", req.FilePath))

	if strings.TrimSpace(req.Text) == "" {
		return refineFailure(fmt.Errorf("%w: transcript text is empty", ErrRefine))
	}

	cfg, err := h.loadConfig()
	if err != nil {
		log.Warn("config unavailable", zap.Error(err))
		return refineFailure(err)
	}

	prompt, err := h.prompt(req)
	if err != nil {
		return refineFailure(fmt.Errorf("%w: %w", ErrRefine, err))
	}

	if h.NewRefiner == nil {
		return refineFailure(fmt.Errorf("%w: no post-processor configured", ErrRefine))
	}
	refiner, err := h.NewRefiner(cfg)
	if err != nil {
		return refineFailure(fmt.Errorf("%w: %w", ErrRefine, err))
	}

	started := time.Now()
	log.Info("post-processing transcript...")
	text, err := refiner.Process(ctx, prompt, req.Text)
	if err != nil {
		log.Warn("post-processing failed", zap.Duration("elapsed", time.Since(started)), zap.Error(err))
		return refineFailure(fmt.Errorf("%w: %w", ErrRefine, err))
	}

	outputPath := gpt.OutputPath(req.FilePath, TimestampLayout, h.now())
	if err := writeFileAtomic(outputPath, []byte(text)); err != nil {
		log.Warn("failed to save post-processed text", zap.String("output", outputPath), zap.Error(err))
		return refineFailure(fmt.Errorf("%w: %w", ErrWrite, err))
	}
	log.Info("post-processed text saved", zap.String("output", outputPath), zap.Duration("elapsed", time.Since(started)))

	return RefineOutcome{Success: true, Text: text, OutputPath: outputPath}
}

func (h *Handler) prompt(req RefineRequest) (string, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return gpt.LoadPrompt(h.PromptPath)
	}
	if req.SavePrompt {
		if err := gpt.SavePrompt(h.PromptPath, req.Prompt); err != nil {
			return "", err
		}
	}
	return req.Prompt, nil
}
