package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/scamwatch-ai/scamwatch/internal/mockprovider"
)

func newMockCommand() *cobra.Command {
	var addrFlag string

	cmd := &cobra.Command{
		Use:   "mock",
		Short: "Run a mock OpenAI-compatible model for local testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			shutdown, baseURL, err := mockprovider.Start(addrFlag)
			if err != nil {
				return fmt.Errorf("start mock model: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "mock model listening, base_url=%s\n", baseURL)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			<-ctx.Done()

			return shutdown(context.Background())
		},
	}

	cmd.Flags().StringVar(&addrFlag, "addr", "127.0.0.1:1234", "Listen address")

	return cmd
}
