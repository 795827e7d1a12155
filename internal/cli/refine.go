package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fmueller/mocoscribe/internal/gpt"
	"github.com/fmueller/mocoscribe/internal/scribe"
	"github.com/spf13/cobra"
)

func newRefineCmd(app *appState) *cobra.Command {
	var prompt string
	var savePrompt bool

	cmd := &cobra.Command{
		Use:           "refine <transcript-file>",
		Short:         "Post-process a saved transcript with the OpenAI prompt",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := filepath.Abs(filepath.Clean(args[0]))
			if err != nil {
				return fmt.Errorf("resolve transcript path: %w", err)
			}

			raw, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read transcript: %w", err)
			}

			handler := app.newHandler(nil)
			return app.runRefine(cmd.Context(), cmd.OutOrStdout(), handler, scribe.RefineRequest{
				FilePath:   path,
				Text:       string(raw),
				Prompt:     prompt,
				SavePrompt: savePrompt,
			})
		},
	}

	cmd.Flags().StringVar(&prompt, "prompt", "", "Prompt to use instead of the prompt file")
	cmd.Flags().BoolVar(&savePrompt, "save-prompt", false, "Store --prompt in the prompt file")
	return cmd
}

func newPromptCmd(app *appState) *cobra.Command {
	return &cobra.Command{
		Use:           "prompt [new-prompt]",
		Short:         "Show the post-processing prompt, or replace it",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				next := strings.TrimSpace(args[0])
				if next == "" {
					return gpt.ErrEmptyPrompt
				}
				return gpt.SavePrompt(app.promptPath, next)
			}

			prompt, err := gpt.LoadPrompt(app.promptPath)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), prompt)
			return nil
		},
	}
}
