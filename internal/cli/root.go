package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fmueller/mocoscribe/internal/audio"
	"github.com/fmueller/mocoscribe/internal/config"
	"github.com/fmueller/mocoscribe/internal/gpt"
	"github.com/fmueller/mocoscribe/internal/logging"
	"github.com/fmueller/mocoscribe/internal/moco"
	"github.com/fmueller/mocoscribe/internal/picker"
	"github.com/fmueller/mocoscribe/internal/scribe"
	"github.com/fmueller/mocoscribe/internal/version"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/spf13/cobra"
)

type appState struct {
	configPath         string
	verbose            bool
	jsonLogs           bool
	noProgress         bool
	language           string
	speakerDiarization bool
	timestamp          bool
	punctuation        bool
	pollInterval       time.Duration
	extractAudio       bool
	maxChunk           time.Duration
	refine             bool
	promptPath         string

	logger *zap.Logger
	now    func() time.Time

	chooseFn         func(ctx context.Context) (string, error)
	newTranscriberFn func(cfg *config.Config, onStatus func(moco.Status)) scribe.Transcriber
	newRefinerFn     func(cfg *config.Config) (scribe.Refiner, error)
}

func NewRootCmd() *cobra.Command {
	app := &appState{
		configPath:   config.DefaultPath,
		language:     moco.DefaultLanguage,
		pollInterval: moco.DefaultPollInterval,
		maxChunk:     audio.MaxChunkDuration,
		promptPath:   gpt.DefaultPromptPath,
		now:          time.Now,
	}
	app.chooseFn = picker.ChooseFile
	app.newTranscriberFn = app.newMocoTranscriber
	app.newRefinerFn = app.newGPTRefiner

	cmd := &cobra.Command{
		Use:           "mocoscribe",
		Short:         "Pick a media file and transcribe it with MocoVoice",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version.Resolve(),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := logging.New(logging.Options{Verbose: app.verbose, JSON: app.jsonLogs, Name: loggerName(cmd)})
			if err != nil {
				return fmt.Errorf("initialize logger: %w", err)
			}
			app.language = sanitizeLanguage(app.language)
			app.logger = logger
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.runDefault(cmd.Context(), cmd.OutOrStdout())
		},
	}

	cmd.SetVersionTemplate("{{.Name}} v{{.Version}}\n")

	bindGlobalFlags(cmd, app)
	bindTranscriptionFlags(cmd, app)

	cmd.AddCommand(newTranscribeCmd(app))
	cmd.AddCommand(newSelectCmd(app))
	cmd.AddCommand(newServeCmd(app))
	cmd.AddCommand(newRefineCmd(app))
	cmd.AddCommand(newPromptCmd(app))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func bindGlobalFlags(cmd *cobra.Command, app *appState) {
	flags := cmd.PersistentFlags()
	flags.StringVar(&app.configPath, "config", app.configPath, "Path to the JSON config holding apiKey")
	flags.BoolVar(&app.verbose, "verbose", app.verbose, "Enable verbose logs")
	flags.BoolVar(&app.jsonLogs, "json", app.jsonLogs, "Enable JSON logging")
	flags.StringVar(&app.promptPath, "prompt-file", app.promptPath, "Path to the post-processing prompt")
}

func bindTranscriptionFlags(cmd *cobra.Command, app *appState) {
	flags := cmd.PersistentFlags()
	flags.BoolVar(&app.noProgress, "no-progress", app.noProgress, "Disable progress indicators")
	flags.StringVar(&app.language, "language", app.language, "Language code sent to the transcription API")
	flags.BoolVar(&app.speakerDiarization, "speaker-diarization", app.speakerDiarization, "Label speakers in the transcript")
	flags.BoolVar(&app.timestamp, "timestamp", app.timestamp, "Use the timestamped transcription model")
	flags.BoolVar(&app.punctuation, "punctuation", app.punctuation, "Insert punctuation automatically")
	flags.DurationVar(&app.pollInterval, "poll-interval", app.pollInterval, "How often to poll the job status")
	flags.BoolVar(&app.extractAudio, "extract-audio", app.extractAudio, "Extract the audio track with ffmpeg before uploading non-audio files")
	flags.DurationVar(&app.maxChunk, "max-chunk", app.maxChunk, "Split longer recordings into parts of this length (0 disables)")
	flags.BoolVar(&app.refine, "refine", app.refine, "Post-process the transcript with the OpenAI prompt")
}

func (a *appState) runDefault(ctx context.Context, w io.Writer) error {
	chooseFn := a.chooseFn
	if chooseFn == nil {
		chooseFn = picker.ChooseFile
	}

	path, err := chooseFn(ctx)
	if err != nil {
		return fmt.Errorf("select file: %w", err)
	}
	if path == "" {
		a.log().Info("no file selected")
		return nil
	}

	return a.runTranscription(ctx, w, path)
}

func (a *appState) options() moco.Options {
	return moco.Options{
		Language:           a.language,
		SpeakerDiarization: a.speakerDiarization,
		Timestamp:          a.timestamp,
		Punctuation:        a.punctuation,
	}
}

// newHandler builds a request handler whose transcriber reports job
// status to onStatus.
func (a *appState) newHandler(onStatus func(moco.Status)) *scribe.Handler {
	newTranscriberFn := a.newTranscriberFn
	if newTranscriberFn == nil {
		newTranscriberFn = a.newMocoTranscriber
	}
	newRefinerFn := a.newRefinerFn
	if newRefinerFn == nil {
		newRefinerFn = a.newGPTRefiner
	}

	return &scribe.Handler{
		ConfigPath: a.configPath,
		LoadConfig: config.Load,
		NewTranscriber: func(cfg *config.Config) scribe.Transcriber {
			return newTranscriberFn(cfg, onStatus)
		},
		Preparer: &audio.Preparer{
			ExtractAudio: a.extractAudio,
			MaxChunk:     a.maxChunk,
			Logger:       a.log().Named("audio"),
		},
		NewRefiner: newRefinerFn,
		PromptPath: a.promptPath,
		Now:        a.nowFn(),
		Logger:     a.log(),
	}
}

func (a *appState) newMocoTranscriber(cfg *config.Config, onStatus func(moco.Status)) scribe.Transcriber {
	return moco.NewClient(moco.ClientOptions{
		APIKey:       cfg.APIKey,
		BaseURL:      cfg.BaseURL,
		PollInterval: a.pollInterval,
		Logger:       a.log().Named("moco"),
		OnStatus:     onStatus,
	})
}

func (a *appState) newGPTRefiner(cfg *config.Config) (scribe.Refiner, error) {
	processor, err := gpt.New(gpt.Options{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.OpenAIModel,
		Logger:  a.log().Named("gpt"),
	})
	if err != nil {
		return nil, err
	}
	return processor, nil
}

// loggerName names logs after the running subcommand. The root stays
// unnamed.
func loggerName(cmd *cobra.Command) string {
	if cmd == nil || !cmd.HasParent() {
		return ""
	}
	return cmd.Name()
}

func sanitizeLanguage(input string) string {
	trimmed := strings.TrimSpace(strings.ToLower(input))
	if trimmed == "" {
		return moco.DefaultLanguage
	}
	return trimmed
}

func (a *appState) nowFn() func() time.Time {
	if a.now == nil {
		return time.Now
	}
	return a.now
}

func (a *appState) log() *zap.Logger {
	if a.logger == nil {
		return zap.NewNop()
	}
	return a.logger
}

func (a *appState) progressEnabled() bool {
	if a.noProgress {
		return false
	}
	return term.IsTerminal(int(os.Stderr.Fd()))
}
