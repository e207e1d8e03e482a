package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/nameplate-cli/internal/rules"
)

var (
	validateRuleset string
	validateJSON    bool
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the rule tables in a ruleset",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := loadDecodeEnv(validateRuleset)
		if err != nil {
			return err
		}

		serialAccepted, _ := rules.ValidateSerialRules(env.Set.SerialRules)
		attrAccepted, _ := rules.ValidateAttributeRules(env.Set.AttributeRules)

		if validateJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{
				"ruleset_dir":              env.Dir,
				"serial_rules_accepted":    len(serialAccepted),
				"attribute_rules_accepted": len(attrAccepted),
				"issues":                   env.Issues,
			})
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "ruleset: %s\n", env.Dir)
		fmt.Fprintf(out, "serial rules accepted: %d\n", len(serialAccepted))
		fmt.Fprintf(out, "attribute rules accepted: %d\n", len(attrAccepted))
		fmt.Fprintf(out, "rejected: %d\n", len(env.Issues))
		for _, issue := range env.Issues {
			fmt.Fprintf(out, "  %s\t%s\t%s\t%s\n", issue.RuleTable, issue.Brand, issue.Name, issue.Kind)
		}
		return nil
	},
}

func init() {
	validateCmd.Flags().StringVar(&validateRuleset, "ruleset", "", "ruleset directory (default CURRENT)")
	validateCmd.Flags().BoolVar(&validateJSON, "json", false, "emit JSON instead of text")
	rootCmd.AddCommand(validateCmd)
}
