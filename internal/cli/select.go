package cli

import (
	"fmt"

	"github.com/fmueller/mocoscribe/internal/picker"
	"github.com/spf13/cobra"
)

func newSelectCmd(app *appState) *cobra.Command {
	return &cobra.Command{
		Use:           "select",
		Short:         "Open the file picker and print the chosen path",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			chooseFn := app.chooseFn
			if chooseFn == nil {
				chooseFn = picker.ChooseFile
			}

			path, err := chooseFn(cmd.Context())
			if err != nil {
				return fmt.Errorf("select file: %w", err)
			}
			if path != "" {
				fmt.Fprintln(cmd.OutOrStdout(), path)
			}
			return nil
		},
	}
}
