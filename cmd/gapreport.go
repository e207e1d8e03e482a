package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/nameplate-cli/internal/fetcher"
	"github.com/sells-group/nameplate-cli/internal/gap"
	"github.com/sells-group/nameplate-cli/internal/store"
)

var (
	gapRuleset string
	gapInput   string
	gapOutput  string
	gapNoStore bool
)

var gapReportCmd = &cobra.Command{
	Use:   "gap-report",
	Short: "Report rule-library coverage gaps against an asset export",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := loadDecodeEnv(gapRuleset)
		if err != nil {
			return err
		}
		assets, err := fetcher.ReadRecords(gapInput)
		if err != nil {
			return err
		}

		report := gap.Analyze(env.Set, assets)
		if err := report.WriteCSV(gapOutput); err != nil {
			return err
		}
		summaryPath := gap.SummaryPath(gapOutput)
		if err := report.WriteSummary(summaryPath); err != nil {
			return err
		}

		if !gapNoStore {
			if err := recordGapRun(ctx, env.Dir, report); err != nil {
				zap.L().Warn("failed to record run history", zap.Error(err))
			}
		}

		fmt.Fprintln(cmd.OutOrStdout(), gapOutput)
		fmt.Fprintln(cmd.OutOrStdout(), summaryPath)
		return nil
	},
}

func init() {
	gapReportCmd.Flags().StringVar(&gapRuleset, "ruleset", "", "ruleset directory (default CURRENT)")
	gapReportCmd.Flags().StringVar(&gapInput, "input", "", "asset export file (.csv or .xlsx)")
	gapReportCmd.Flags().StringVar(&gapOutput, "output", "gaps.csv", "gap report output CSV")
	gapReportCmd.Flags().BoolVar(&gapNoStore, "no-store", false, "skip recording the run in the history store")
	gapReportCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(gapReportCmd)
}

func recordGapRun(ctx context.Context, rulesetDir string, report *gap.Report) error {
	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Migrate(ctx); err != nil {
		return err
	}
	tallies := make(map[string]int, len(report.Summary.TotalsByReason))
	for reason, n := range report.Summary.TotalsByReason {
		tallies[string(reason)] = n
	}
	run := &store.Run{
		Kind:       store.RunKindGap,
		RulesetDir: rulesetDir,
		InputPath:  gapInput,
		Rows:       report.Summary.Assets,
		Tallies:    tallies,
	}
	if err := st.RecordRun(ctx, run); err != nil {
		return err
	}
	zap.L().Info("recorded run", zap.String("run_id", run.ID))
	return nil
}
