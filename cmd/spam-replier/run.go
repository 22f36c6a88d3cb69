package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/mikey/llm-spam-replier/internal/adapters/ledger"
	"github.com/mikey/llm-spam-replier/internal/adapters/responder"
	"github.com/mikey/llm-spam-replier/internal/config"
	"github.com/mikey/llm-spam-replier/internal/core"
	"github.com/mikey/llm-spam-replier/internal/ports"
	"github.com/spf13/cobra"
	"go.uber.org/dig"
	"go.uber.org/zap"
)

func newRunCmd(root *rootOptions) *cobra.Command {
	var (
		dryRun bool
		once   bool
		poll   bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Reply to every thread awaiting an answer",
		RunE: func(cmd *cobra.Command, args []string) error {
			if once && poll {
				return fmt.Errorf("--once and --poll are mutually exclusive")
			}

			overrides := map[string]interface{}{}
			if cmd.Flags().Changed("dry-run") {
				overrides["reply.dry_run"] = dryRun
			}
			if once {
				overrides["responder.mode"] = "once"
			}
			if poll {
				overrides["responder.mode"] = "poll"
			}

			container, err := root.container(overrides)
			if err != nil {
				return err
			}

			return container.Invoke(func(in runParams) error {
				return runResponder(cmd, in)
			})
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Generate replies without sending them")
	cmd.Flags().BoolVar(&once, "once", false, "Process the folder once and exit")
	cmd.Flags().BoolVar(&poll, "poll", false, "Keep processing the folder every poll interval")

	return cmd
}

type runParams struct {
	dig.In

	Config    *config.Config
	Logger    *zap.Logger
	Responder *responder.Responder
	Mailbox   ports.Mailbox
	LLMClient core.LLMClient
	Ledger    ledger.Ledger
}

func runResponder(cmd *cobra.Command, in runParams) error {
	logger := in.Logger
	defer logger.Sync()
	defer closeResources(logger, in.LLMClient, in.Ledger)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if ensurer, ok := in.Mailbox.(interface{ EnsureMailbox(context.Context) error }); ok {
		if err := ensurer.EnsureMailbox(ctx); err != nil {
			return err
		}
	}

	mode := in.Config.GetString("responder.mode")
	switch mode {
	case "once":
		report, err := in.Responder.RunOnce(ctx)
		if err != nil {
			return err
		}
		printReport(cmd, report)
		return nil
	case "poll":
		if err := in.Responder.Start(); err != nil {
			return err
		}
		<-ctx.Done()
		logger.Info("Shutting down...")
		if err := in.Responder.Stop(); err != nil {
			logger.Error("Failed to stop responder", zap.Error(err))
		}
		logger.Info("Shutdown complete")
		return nil
	default:
		return fmt.Errorf("unsupported responder mode: %s", mode)
	}
}

func printReport(cmd *cobra.Command, report *ports.RunReport) {
	verb := "replied"
	if report.DryRun {
		verb = "drafted"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d threads: %d %s, %d skipped, %d failed\n",
		report.Threads, report.Replied, verb, report.Skipped, report.Failed)
	for _, id := range report.Malformed {
		fmt.Fprintf(cmd.OutOrStdout(), "malformed: %s\n", id)
	}
	for _, id := range report.Conflicts {
		fmt.Fprintf(cmd.OutOrStdout(), "conflicting duplicate: %s\n", id)
	}
}

func closeResources(logger *zap.Logger, llmClient core.LLMClient, l ledger.Ledger) {
	if closer, ok := llmClient.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error("Failed to close LLM client", zap.Error(err))
		}
	}
	if l != nil {
		l.Stop()
	}
}
