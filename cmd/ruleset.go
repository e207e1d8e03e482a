package main

import (
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/nameplate-cli/internal/rules"
	"github.com/sells-group/nameplate-cli/internal/ruleset"
)

var rulesetCmd = &cobra.Command{
	Use:   "ruleset",
	Short: "Manage versioned ruleset directories",
}

var rulesetListCmd = &cobra.Command{
	Use:   "list",
	Short: "List ruleset versions, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr := ruleset.NewManager(cfg.Rules.BaseDir)
		versions, err := mgr.ListVersions()
		if err != nil {
			return err
		}
		current := mgr.ReadCurrent()

		out := cmd.OutOrStdout()
		for _, v := range versions {
			marker := " "
			if v == current {
				marker = "*"
			}
			line := fmt.Sprintf("%s %s", marker, filepath.Base(v))
			if m, err := ruleset.ReadManifest(v); err == nil && m != nil {
				line += fmt.Sprintf("  (%d serial, %d attribute rules, created %s)",
					m.SerialRules, m.AttributeRules, m.CreatedAt.Format("2006-01-02"))
			}
			fmt.Fprintln(out, line)
		}
		return nil
	},
}

var rulesetCurrentCmd = &cobra.Command{
	Use:   "current",
	Short: "Print the CURRENT ruleset directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		current := ruleset.NewManager(cfg.Rules.BaseDir).ReadCurrent()
		if current == "" {
			fmt.Fprintln(cmd.OutOrStdout(), "(none)")
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), current)
		return nil
	},
}

var promoteNotes string

var rulesetPromoteCmd = &cobra.Command{
	Use:   "promote <dir>",
	Short: "Point CURRENT at a ruleset directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr := ruleset.NewManager(cfg.Rules.BaseDir)
		dir := args[0]

		set, err := rules.LoadDir(dir)
		if err != nil {
			return err
		}
		if m, _ := ruleset.ReadManifest(dir); m == nil {
			brands := make(map[string]struct{})
			for _, r := range set.SerialRules {
				brands[r.Brand] = struct{}{}
			}
			for _, r := range set.AttributeRules {
				brands[r.Brand] = struct{}{}
			}
			names := make([]string, 0, len(brands))
			for b := range brands {
				names = append(names, b)
			}
			sort.Strings(names)

			manifest := &ruleset.Manifest{
				CreatedAt:      time.Now().UTC(),
				Notes:          promoteNotes,
				SerialRules:    len(set.SerialRules),
				AttributeRules: len(set.AttributeRules),
				Brands:         names,
			}
			if err := ruleset.WriteManifest(dir, manifest); err != nil {
				return err
			}
		}

		if err := mgr.UpdateCurrent(dir); err != nil {
			return err
		}
		zap.L().Info("promoted ruleset", zap.String("dir", dir))
		fmt.Fprintln(cmd.OutOrStdout(), filepath.Base(dir))
		return nil
	},
}

var cleanupDryRun bool

var rulesetCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove old ruleset versions beyond the retention window",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr := ruleset.NewManager(cfg.Rules.BaseDir)
		removed, err := mgr.Cleanup(cfg.Rules.Retention, cleanupDryRun)
		if err != nil {
			return err
		}
		for _, dir := range removed {
			fmt.Fprintln(cmd.OutOrStdout(), dir)
		}
		return nil
	},
}

func init() {
	rulesetPromoteCmd.Flags().StringVar(&promoteNotes, "notes", "", "manifest notes for the promoted version")
	rulesetCleanupCmd.Flags().BoolVar(&cleanupDryRun, "dry-run", false, "report what would be removed without deleting")
	rulesetCmd.AddCommand(rulesetListCmd, rulesetCurrentCmd, rulesetPromoteCmd, rulesetCleanupCmd)
	rootCmd.AddCommand(rulesetCmd)
}
