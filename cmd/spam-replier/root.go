package main

import (
	"fmt"
	"os"

	"github.com/mikey/llm-spam-replier/internal/config"
	"github.com/mikey/llm-spam-replier/internal/di"
	"github.com/spf13/cobra"
	"go.uber.org/dig"
)

type rootOptions struct {
	configFile string
	verbose    bool
	jsonLog    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:          "spam-replier",
		Short:        "spam-replier answers spam with LLM-written replies",
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "Path to config file")
	cmd.PersistentFlags().BoolVar(&opts.verbose, "verbose", false, "Enable verbose logging")
	cmd.PersistentFlags().BoolVar(&opts.jsonLog, "json-log", false, "Output logs in JSON format")

	cmd.AddCommand(newRunCmd(opts))
	cmd.AddCommand(newThreadsCmd(opts))
	cmd.AddCommand(newIntakeCmd(opts))

	cmd.SetErr(os.Stderr)
	cmd.SetOut(os.Stdout)

	return cmd
}

// container loads the configuration, applies flag overrides and builds the
// dependency container
func (o *rootOptions) container(overrides map[string]interface{}) (*dig.Container, error) {
	cfg, err := config.Load(o.configFile)
	if err != nil {
		return nil, err
	}

	if o.verbose {
		cfg.Set("logging.level", "debug")
	}
	if o.jsonLog {
		cfg.Set("logging.format", "json")
	}
	for key, value := range overrides {
		cfg.Set(key, value)
	}

	container, err := di.BuildContainer(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build dependency container: %w", err)
	}
	return container, nil
}
