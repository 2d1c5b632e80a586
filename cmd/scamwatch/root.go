package main

import (
	"github.com/spf13/cobra"

	"github.com/scamwatch-ai/scamwatch/internal/config"
)

type commandContext struct {
	configFlag *string
}

func (c *commandContext) loadConfig() (*config.Config, error) {
	path := ""
	if c.configFlag != nil {
		path = *c.configFlag
	}
	if path == "" {
		path = "scamwatch.yaml"
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newRootCommand() *cobra.Command {
	var configFlag string

	ctx := &commandContext{configFlag: &configFlag}

	rootCmd := &cobra.Command{
		Use:           "scamwatch",
		Short:         "LLM-backed scam pattern detection",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")

	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newAnalyzeCommand(ctx))
	rootCmd.AddCommand(newPatternsCommand(ctx))
	rootCmd.AddCommand(newMockCommand())
	rootCmd.AddCommand(newEventsReceiverCommand())

	return rootCmd
}
