package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fmueller/mocoscribe/internal/media"
	"github.com/fmueller/mocoscribe/internal/moco"
	"github.com/fmueller/mocoscribe/internal/scribe"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newTranscribeCmd(app *appState) *cobra.Command {
	return &cobra.Command{
		Use:           "transcribe <media-file>",
		Short:         "Transcribe a media file and save the text next to it",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.runTranscription(cmd.Context(), cmd.OutOrStdout(), args[0])
		},
	}
}

// runTranscription prints the saved transcript path on success.
func (a *appState) runTranscription(ctx context.Context, w io.Writer, filePath string) error {
	filePath = filepath.Clean(filePath)
	if abs, err := filepath.Abs(filePath); err == nil {
		filePath = abs
	}

	if _, err := os.Stat(filePath); err != nil {
		return fmt.Errorf("media file not found: %w", err)
	}
	if !media.IsSupported(filePath) {
		a.log().Warn("unrecognized media extension; sending anyway", zap.String("file", filePath), zap.Strings("supported", media.Extensions))
	}

	spinner := startSpinner(a.progressEnabled(), "uploading")
	prefix := ""
	handler := a.newHandler(func(status moco.Status) {
		spinner.describe(prefix + status.Label())
	})
	handler.OnPart = func(part, total int) {
		if total > 1 {
			prefix = fmt.Sprintf("part %d/%d: ", part, total)
			spinner.describe(prefix + "uploading")
		}
	}

	outcome := handler.Handle(ctx, scribe.Request{FilePath: filePath, Options: a.options()})
	spinner.stop()
	if !outcome.Success {
		return outcome.Err()
	}

	blank := isBlankTranscript(outcome.Result.Text)
	if blank {
		a.log().Warn(noSpeechHint(), zap.String("output", outcome.OutputPath))
	}

	fmt.Fprintln(w, outcome.OutputPath)

	if !a.refine {
		return nil
	}
	if blank {
		a.log().Warn("skipping post-processing of an empty transcript")
		return nil
	}
	return a.runRefine(ctx, w, handler, scribe.RefineRequest{FilePath: filePath, Text: outcome.Result.Text})
}

func (a *appState) runRefine(ctx context.Context, w io.Writer, handler *scribe.Handler, req scribe.RefineRequest) error {
	spinner := startSpinner(a.progressEnabled(), "post-processing")
	outcome := handler.Refine(ctx, req)
	spinner.stop()
	if !outcome.Success {
		return outcome.Err()
	}

	fmt.Fprintln(w, outcome.OutputPath)
	return nil
}
