package scribe

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fmueller/mocoscribe/internal/audio"
	"github.com/fmueller/mocoscribe/internal/config"
	"github.com/fmueller/mocoscribe/internal/merge"
	"github.com/fmueller/mocoscribe/internal/moco"
	"go.uber.org/zap"
)

// TimestampLayout is YYYYMMDD_HHmmss.
const TimestampLayout = "20060102_150405"

var (
	// ErrConfig aliases config.ErrConfig.
	ErrConfig        = config.ErrConfig
	ErrPrepare       = errors.New("prepare media")
	ErrTranscription = errors.New("transcription failed")
	ErrWrite         = errors.New("write transcript")
)

type Transcriber interface {
	Transcribe(ctx context.Context, filePath string, opts moco.Options) (*moco.Result, error)
}

// Preparer converts and splits a media file before upload.
type Preparer interface {
	Prepare(ctx context.Context, filePath string) (*audio.Prepared, error)
}

type Request struct {
	FilePath string       `json:"filePath" binding:"required"`
	Options  moco.Options `json:"options"`
}

// Outcome is either {success:true, result, outputPath} or
// {success:false, error}.
type Outcome struct {
	Success    bool         `json:"success"`
	Result     *moco.Result `json:"result,omitempty"`
	OutputPath string       `json:"outputPath,omitempty"`
	Error      string       `json:"error,omitempty"`

	// Parts holds the per-chunk results when the media was split.
	Parts []*moco.Result `json:"parts,omitempty"`

	err error
}

// Err returns the underlying failure, or nil for a successful outcome.
func (o Outcome) Err() error {
	return o.err
}

func failure(err error) Outcome {
	return Outcome{Success: false, Error: err.Error(), err: err}
}

// Handler turns one Request into one Outcome. It holds no per-request
// state, so overlapping calls are independent.
type Handler struct {
	ConfigPath     string
	LoadConfig     func(path string) (*config.Config, error)
	NewTranscriber func(cfg *config.Config) Transcriber

	// Preparer is optional. Without it the file is uploaded as is.
	Preparer Preparer
	// OnPart is told which chunk is about to be uploaded.
	OnPart   func(part, total int)

	NewRefiner func(cfg *config.Config) (Refiner, error)
	PromptPath string

	Now    func() time.Time
	Logger *zap.Logger
}

func (h *Handler) Handle(ctx context.Context, req Request) Outcome {
	log := h.log().With(zap.String("file", req.FilePath))

	cfg, err := h.loadConfig()
	if err != nil {
		log.Warn("config unavailable", zap.Error(err))
		return failure(err)
	}

	if h.NewTranscriber == nil {
		return failure(fmt.Errorf("%w: no transcriber configured", ErrTranscription))
	}

	parts := []audio.Chunk{{Path: req.FilePath}}
	if h.Preparer != nil {
		prepared, err := h.Preparer.Prepare(ctx, req.FilePath)
		if err != nil {
			log.Warn("media preparation failed", zap.Error(err))
			return failure(fmt.Errorf("%w: %w", ErrPrepare, err))
		}
		defer func() {
			if err := prepared.Cleanup(); err != nil {
				log.Warn("failed to remove intermediate files", zap.Error(err))
			}
		}()
		parts = prepared.Chunks
	}
	if len(parts) == 0 {
		return failure(fmt.Errorf("%w: nothing to upload", ErrPrepare))
	}

	started := time.Now()
	log.Info("transcribing...", zap.Int("parts", len(parts)))
	results, err := h.transcribeParts(ctx, h.NewTranscriber(cfg), parts, req.Options)
	if err != nil {
		log.Warn("transcription failed", zap.Duration("elapsed", time.Since(started)), zap.Error(err))
		return failure(err)
	}
	log.Info("transcription finished", zap.Duration("elapsed", time.Since(started)))

	result := results[0]
	outcome := Outcome{Success: true}
	if len(results) > 1 {
		text, err := mergeTranscripts(results, req.Options)
		if err != nil {
			return failure(fmt.Errorf("%w: %w", ErrTranscription, err))
		}
		result = &moco.Result{Status: moco.StatusCompleted, Text: text}
		outcome.Parts = results
	}

	outputPath := OutputPath(req.FilePath, h.now())
	if err := writeFileAtomic(outputPath, []byte(result.Text)); err != nil {
		log.Warn("failed to save transcript", zap.String("output", outputPath), zap.Error(err))
		return failure(fmt.Errorf("%w: %w", ErrWrite, err))
	}
	log.Info("transcript saved", zap.String("output", outputPath))

	outcome.Result = result
	outcome.OutputPath = outputPath
	return outcome
}

// transcribeParts runs the parts one after another and stops at the first
// failure.
func (h *Handler) transcribeParts(ctx context.Context, transcriber Transcriber, parts []audio.Chunk, opts moco.Options) ([]*moco.Result, error) {
	results := make([]*moco.Result, 0, len(parts))
	for i, part := range parts {
		if h.OnPart != nil {
			h.OnPart(i+1, len(parts))
		}

		result, err := transcriber.Transcribe(ctx, part.Path, opts)
		if err == nil && result == nil {
			err = errors.New("empty result")
		}
		if err != nil {
			if len(parts) > 1 {
				return nil, fmt.Errorf("%w: part %d/%d: %w", ErrTranscription, i+1, len(parts), err)
			}
			return nil, fmt.Errorf("%w: %w", ErrTranscription, err)
		}
		results = append(results, result)
	}
	return results, nil
}

// mergeTranscripts joins chunk transcripts. Timestamped transcripts are
// JSON arrays whose times are shifted onto one timeline; everything else
// is joined line by line.
func mergeTranscripts(results []*moco.Result, opts moco.Options) (string, error) {
	texts := make([]string, 0, len(results))
	for _, r := range results {
		texts = append(texts, r.Text)
	}
	if opts.Timestamp {
		return merge.JSON(texts)
	}
	return merge.Text(texts, opts.SpeakerDiarization), nil
}

func (h *Handler) loadConfig() (*config.Config, error) {
	loadConfig := h.LoadConfig
	if loadConfig == nil {
		loadConfig = config.Load
	}

	cfg, err := loadConfig(h.ConfigPath)
	if err != nil {
		if !errors.Is(err, ErrConfig) {
			err = fmt.Errorf("%w: %w", ErrConfig, err)
		}
		return nil, err
	}
	return cfg, nil
}

// OutputPath places "<stem>_<YYYYMMDD_HHmmss>.txt" next to inputPath.
func OutputPath(inputPath string, at time.Time) string {
	base := filepath.Base(inputPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(filepath.Dir(inputPath), fmt.Sprintf("%s_%s.txt", stem, at.Format(TimestampLayout)))
}

func (h *Handler) now() time.Time {
	if h.Now == nil {
		return time.Now()
	}
	return h.Now()
}

func (h *Handler) log() *zap.Logger {
	if h.Logger == nil {
		return zap.NewNop()
	}
	return h.Logger
}
