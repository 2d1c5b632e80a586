package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/scamwatch-ai/scamwatch/internal/analysis"
	"github.com/scamwatch-ai/scamwatch/internal/detect"
	"github.com/scamwatch-ai/scamwatch/internal/pattern"
	"github.com/scamwatch-ai/scamwatch/internal/provider"
)

func newAnalyzeCommand(cctx *commandContext) *cobra.Command {
	var (
		titleFlag  string
		authorFlag string
		modelFlag  string
		jsonFlag   bool
	)

	cmd := &cobra.Command{
		Use:   "analyze <content>",
		Short: "Analyze a message for scam patterns",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content := strings.TrimSpace(args[0])
			if content == "" {
				return errors.New("content must not be empty")
			}

			cfg, err := cctx.loadConfig()
			if err != nil {
				return err
			}

			prov := provider.NewOpenAI(provider.OpenAIOptions{
				BaseURL: cfg.Provider.BaseURL,
				APIKey:  cfg.Provider.APIKey(),
				Model:   cfg.Provider.Model,
				Timeout: time.Duration(cfg.Provider.TimeoutSeconds) * time.Second,
			})
			det := detect.New(prov, pattern.NewRegistry(pattern.Common()...), detect.Options{
				Model:       cfg.Provider.Model,
				MaxTokens:   cfg.Provider.MaxTokens,
				Temperature: cfg.Provider.Temperature,
			})

			var callOpts []detect.CallOption
			if modelFlag != "" {
				callOpts = append(callOpts, detect.WithModel(modelFlag))
			}

			post := analysis.Post{Content: content, Title: titleFlag, Author: authorFlag}
			result, err := det.Analyze(cmd.Context(), post, callOpts...)
			if err != nil {
				return err
			}

			if jsonFlag || !terminalOutput(cmd) {
				return writeJSON(cmd, result)
			}
			renderVerdict(cmd, result)
			return nil
		},
	}

	cmd.Flags().StringVar(&titleFlag, "title", "", "Post title")
	cmd.Flags().StringVar(&authorFlag, "author", "", "Post author")
	cmd.Flags().StringVar(&modelFlag, "model", "", "Model override for this call")
	cmd.Flags().BoolVar(&jsonFlag, "json", false, "Emit JSON instead of a table")

	return cmd
}

func renderVerdict(cmd *cobra.Command, result *analysis.DetectionResult) {
	out := cmd.OutOrStdout()

	verdict := "no scam detected"
	if result.IsScam() {
		verdict = "SCAM"
	}
	fmt.Fprintf(out, "Verdict:  %s\n", verdict)
	fmt.Fprintf(out, "Risk:     %s\n", result.RiskLevel)
	if result.Summary != "" {
		fmt.Fprintf(out, "Summary:  %s\n", result.Summary)
	}

	if len(result.MatchedPatterns) == 0 {
		return
	}

	rows := make([][]string, 0, len(result.MatchedPatterns))
	for _, m := range result.MatchedPatterns {
		rows = append(rows, []string{
			m.PatternName,
			fmt.Sprintf("%.2f", m.Confidence),
			strings.Join(m.Evidence, "; "),
			m.Explanation,
		})
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, renderTable(
		[]string{"Pattern", "Confidence", "Evidence", "Explanation"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft},
	))
}
