package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/fmueller/mocoscribe/internal/moco"
	"github.com/fmueller/mocoscribe/internal/picker"
	"github.com/fmueller/mocoscribe/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd(app *appState) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:           "serve",
		Short:         "Serve the select-file and transcribe endpoints for a UI",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return app.newServer(addr).Run(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", server.DefaultAddr, "Listen address; keep it on loopback")
	return cmd
}

func (a *appState) newServer(addr string) *server.Server {
	logger := a.log()
	handler := a.newHandler(func(status moco.Status) {
		logger.Info("transcription status", zap.String("status", string(status)), zap.String("label", status.Label()))
	})
	handler.Logger = logger

	chooseFn := a.chooseFn
	if chooseFn == nil {
		chooseFn = picker.ChooseFile
	}

	return server.New(addr, &server.App{
		Handler:    handler,
		ChooseFile: chooseFn,
		Logger:     logger,
	})
}
