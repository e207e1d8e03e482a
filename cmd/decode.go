package main

import (
	"encoding/json"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/nameplate-cli/internal/decoder"
	"github.com/sells-group/nameplate-cli/internal/normalize"
)

var (
	decodeRuleset string
	decodeModel   string
	decodeType    string
	decodeAudit   bool
)

// decodeOutput is the single-unit decode result printed as JSON.
type decodeOutput struct {
	Brand         string                     `json:"brand"`
	RulesetDir    string                     `json:"ruleset_dir"`
	EquipmentType string                     `json:"equipment_type,omitempty"`
	Serial        decoder.SerialResult       `json:"serial"`
	Attributes    []decoder.DecodedAttribute `json:"attributes,omitempty"`
	Audit         *decoder.AttributeAudit    `json:"attribute_audit,omitempty"`
}

var decodeCmd = &cobra.Command{
	Use:   "decode <make> <serial>",
	Short: "Decode one unit's manufacture date and attributes",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := loadDecodeEnv(decodeRuleset)
		if err != nil {
			return err
		}

		brand := normalize.Brand(args[0], env.Set.Aliases)
		equipType := decoder.CanonicalEquipmentType(decodeType, env.Vocab)

		out := decodeOutput{
			Brand:         brand,
			RulesetDir:    env.Dir,
			EquipmentType: equipType,
			Serial:        env.Serial.Decode(brand, args[1], env.bounds()),
		}
		if decodeModel != "" {
			if decodeAudit {
				audit := env.Attrs.DecodeAudit(brand, decodeModel, equipType)
				out.Attributes = audit.Selected
				out.Audit = &audit
			} else {
				out.Attributes = env.Attrs.Decode(brand, decodeModel, equipType)
			}
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			return eris.Wrap(err, "decode: encode output")
		}
		return nil
	},
}

func init() {
	decodeCmd.Flags().StringVar(&decodeRuleset, "ruleset", "", "ruleset directory (default CURRENT)")
	decodeCmd.Flags().StringVar(&decodeModel, "model", "", "model number for attribute decoding")
	decodeCmd.Flags().StringVar(&decodeType, "type", "", "equipment type context (e.g. \"Split System\")")
	decodeCmd.Flags().BoolVar(&decodeAudit, "audit", false, "include every attribute candidate, not just winners")
	rootCmd.AddCommand(decodeCmd)
}
