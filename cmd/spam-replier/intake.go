package main

import (
	"os/signal"
	"syscall"

	"github.com/mikey/llm-spam-replier/internal/adapters/intake"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newIntakeCmd(root *rootOptions) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "intake",
		Short: "Accept forwarded spam over SMTP and file it for replying",
		RunE: func(cmd *cobra.Command, args []string) error {
			overrides := map[string]interface{}{}
			if listen != "" {
				overrides["intake.listen_address"] = listen
			}

			container, err := root.container(overrides)
			if err != nil {
				return err
			}

			return container.Invoke(func(logger *zap.Logger, server *intake.Server) error {
				defer logger.Sync()

				ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
				defer stop()

				if err := server.Start(); err != nil {
					return err
				}

				<-ctx.Done()
				logger.Info("Shutting down...")
				if err := server.Stop(); err != nil {
					logger.Error("Failed to stop intake server", zap.Error(err))
				}
				logger.Info("Shutdown complete")
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "Address to listen on (overrides intake.listen_address)")

	return cmd
}
