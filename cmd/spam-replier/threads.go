package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/mikey/llm-spam-replier/internal/adapters/parser"
	"github.com/mikey/llm-spam-replier/internal/config"
	"github.com/mikey/llm-spam-replier/internal/core"
	"github.com/mikey/llm-spam-replier/internal/ports"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newThreadsCmd(root *rootOptions) *cobra.Command {
	var showMessages bool

	cmd := &cobra.Command{
		Use:   "threads",
		Short: "Reconstruct and list the threads in the folder",
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := root.container(nil)
			if err != nil {
				return err
			}

			return container.Invoke(func(
				cfg *config.Config,
				logger *zap.Logger,
				mailbox ports.Mailbox,
				messageParser *parser.Parser,
			) error {
				defer logger.Sync()

				raws, err := mailbox.FetchAll(cmd.Context())
				if err != nil {
					return err
				}
				messages, parseErrs := messageParser.ParseAll(raws)
				rec := core.NewThreadReconstructor(logger.Named("core")).Reconstruct(messages)
				self := core.NewSelfAddresses(cfg.GetStringSlice("reply.self_addresses"))

				printThreads(cmd, rec, parseErrs, self, showMessages)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&showMessages, "messages", false, "List the messages of each thread")

	return cmd
}

func printThreads(cmd *cobra.Command, rec *core.Reconstruction, parseErrs []*core.MessageError, self core.SelfAddresses, showMessages bool) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "THREAD\tMESSAGES\tAWAITING\tLAST ACTIVITY\tSUBJECT")
	for _, t := range rec.Threads {
		fmt.Fprintf(w, "%s\t%d\t%t\t%s\t%s\n",
			t.ID, t.Len(), t.AwaitingReply(self), t.LastActivity().Format(time.RFC3339), t.Subject())
		if showMessages {
			for _, m := range t.Messages {
				who := "them"
				if m.IsFromMe(self) {
					who = "me"
				}
				fmt.Fprintf(w, "  %s\t%s\t%s\t%s\t\n", m.ID, who, m.Date.Format(time.RFC3339), m.Sender)
			}
		}
	}
	w.Flush()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\n%d threads, %d messages\n", len(rec.Threads), rec.MessageCount())
	for _, e := range parseErrs {
		fmt.Fprintf(out, "unparseable: %v\n", e)
	}
	for _, e := range rec.Skipped {
		fmt.Fprintf(out, "skipped: %v\n", e)
	}
	for _, e := range rec.Conflicts {
		fmt.Fprintf(out, "conflict: %v\n", e)
	}
	for _, id := range rec.Redelivered {
		fmt.Fprintf(out, "redelivered: %s\n", id)
	}
	for _, id := range rec.MissingParents {
		fmt.Fprintf(out, "missing parent: %s\n", id)
	}
}
