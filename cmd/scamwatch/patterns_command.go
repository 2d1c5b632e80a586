package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/scamwatch-ai/scamwatch/internal/pattern"
	"github.com/scamwatch-ai/scamwatch/internal/store"
)

func newPatternsCommand(cctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "patterns",
		Short: "Inspect the scam pattern set",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(newPatternsListCommand(cctx))
	cmd.AddCommand(newPatternsExportCommand(cctx))

	return cmd
}

// loadPatterns reads the configured store when present and otherwise falls
// back to the built-in set, same as the server at boot.
func loadPatterns(cmd *cobra.Command, cctx *commandContext) ([]pattern.ScamPattern, error) {
	cfg, err := cctx.loadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.Store.Path == "" {
		return pattern.Common(), nil
	}

	st, err := store.Open(cmd.Context(), cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("open pattern store: %w", err)
	}
	defer st.Close()

	stored, err := st.Load(cmd.Context())
	if err != nil {
		return nil, err
	}
	if len(stored) == 0 {
		return pattern.Common(), nil
	}
	return stored, nil
}

func newPatternsListCommand(cctx *commandContext) *cobra.Command {
	var jsonFlag bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List configured scam patterns",
		RunE: func(cmd *cobra.Command, args []string) error {
			patterns, err := loadPatterns(cmd, cctx)
			if err != nil {
				return err
			}

			if jsonFlag || !terminalOutput(cmd) {
				return writeJSON(cmd, patterns)
			}

			rows := make([][]string, 0, len(patterns))
			for _, p := range patterns {
				rows = append(rows, []string{
					p.Name,
					string(p.Severity),
					fmt.Sprintf("%d", len(p.Indicators)),
					p.Description,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Name", "Severity", "Indicators", "Description"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonFlag, "json", false, "Emit JSON instead of a table")

	return cmd
}

func newPatternsExportCommand(cctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the pattern set as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			patterns, err := loadPatterns(cmd, cctx)
			if err != nil {
				return err
			}
			return writeJSON(cmd, patterns)
		},
	}
	return cmd
}
