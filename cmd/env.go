package main

import (
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/nameplate-cli/internal/decoder"
	"github.com/sells-group/nameplate-cli/internal/rules"
	"github.com/sells-group/nameplate-cli/internal/ruleset"
)

// decodeEnv bundles everything a decoding command needs: the resolved ruleset,
// both engines built from its validated rules, and the equipment vocabulary.
type decodeEnv struct {
	Dir    string
	Set    *rules.Set
	Serial *decoder.SerialDecoder
	Attrs  *decoder.AttributeDecoder
	Vocab  map[string]string
	Issues []rules.RuleIssue
}

// loadDecodeEnv resolves the ruleset (explicit flag wins over CURRENT) and
// builds the engines. Rejected rules are logged, not fatal: a bad rule must
// never take down decoding for every other brand.
func loadDecodeEnv(explicitDir string) (*decodeEnv, error) {
	mgr := ruleset.NewManager(cfg.Rules.BaseDir)
	dir := mgr.Resolve(explicitDir)
	if dir == "" {
		return nil, eris.New("no ruleset available: pass --ruleset or promote one with 'ruleset promote'")
	}

	set, err := rules.LoadDir(dir)
	if err != nil {
		return nil, err
	}

	serialAccepted, serialIssues := rules.ValidateSerialRules(set.SerialRules)
	attrAccepted, attrIssues := rules.ValidateAttributeRules(set.AttributeRules)
	issues := append(serialIssues, attrIssues...)
	if len(issues) > 0 {
		zap.L().Warn("rejected rules excluded from decoding",
			zap.String("ruleset", dir),
			zap.Int("rejected", len(issues)),
		)
	}

	vocab, err := decoder.LoadEquipmentTypes(filepath.Join(dir, rules.EquipmentTypeFile))
	if err != nil {
		return nil, err
	}

	return &decodeEnv{
		Dir:    dir,
		Set:    set,
		Serial: decoder.NewSerialDecoder(serialAccepted),
		Attrs:  decoder.NewAttributeDecoder(attrAccepted),
		Vocab:  vocab,
		Issues: issues,
	}, nil
}

// bounds returns the year plausibility window from config.
func (e *decodeEnv) bounds() decoder.Bounds {
	return decoder.Bounds{MinYear: cfg.Decode.MinYear}
}
