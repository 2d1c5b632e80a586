package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/scamwatch-ai/scamwatch/internal/eventlog"
	"github.com/scamwatch-ai/scamwatch/internal/server"
	"github.com/scamwatch-ai/scamwatch/internal/store"
	"github.com/scamwatch-ai/scamwatch/internal/telemetry"
)

func newServeCommand(cctx *commandContext) *cobra.Command {
	var addrFlag string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the scamwatch management API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cctx.loadConfig()
			if err != nil {
				return err
			}
			if addrFlag != "" {
				cfg.Server.Addr = addrFlag
			}

			ctx := cmd.Context()
			deps := server.Deps{}

			if cfg.Store.Path != "" {
				st, err := store.Open(ctx, cfg.Store.Path)
				if err != nil {
					return fmt.Errorf("open pattern store: %w", err)
				}
				defer st.Close()
				deps.Store = st
			}

			sinks, err := buildEventSinks(cfg.Events.FilePath, cfg.Events.WebhookURL, cfg.Events.WebhookTimeoutSeconds)
			if err != nil {
				return err
			}
			if len(sinks) > 0 {
				emitter := eventlog.NewEmitter(eventlog.EmitterConfig{}, sinks)
				defer emitter.Close(context.Background())
				deps.Events = emitter
			}

			tel, err := telemetry.NewProvider(ctx, telemetry.Config{
				Enabled:  cfg.Telemetry.Enabled,
				Endpoint: cfg.Telemetry.Endpoint,
				Protocol: cfg.Telemetry.Protocol,
				Service:  cfg.Telemetry.Service,
				Version:  server.Version,
			})
			if err != nil {
				return fmt.Errorf("init telemetry: %w", err)
			}
			defer tel.Shutdown(context.Background())
			deps.Telemetry = tel

			srv, err := server.New(cfg, deps)
			if err != nil {
				return err
			}
			return srv.Start(cfg.Server.Addr)
		},
	}

	cmd.Flags().StringVar(&addrFlag, "addr", "", "Listen address (overrides config)")

	return cmd
}

func buildEventSinks(filePath, webhookURL string, webhookTimeoutSeconds int) ([]eventlog.Sink, error) {
	var sinks []eventlog.Sink
	if filePath != "" {
		fs, err := eventlog.NewFileSink(filePath)
		if err != nil {
			return nil, fmt.Errorf("open event log file: %w", err)
		}
		sinks = append(sinks, fs)
	}
	if webhookURL != "" {
		ws, err := eventlog.NewWebhookSink(webhookURL, nil, time.Duration(webhookTimeoutSeconds)*time.Second)
		if err != nil {
			return nil, fmt.Errorf("configure event webhook: %w", err)
		}
		sinks = append(sinks, ws)
	}
	return sinks, nil
}
