package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/nameplate-cli/internal/fetcher"
	"github.com/sells-group/nameplate-cli/internal/rules"
)

// writeTestRuleset creates a ruleset version with one valid and one broken
// serial rule under base.
func writeTestRuleset(t *testing.T, base, name string) string {
	t.Helper()
	dir := filepath.Join(base, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))

	header := []string{"rule_kind", "brand", "style_name", "serial_pattern", "date_fields", "example_serials"}
	records := []map[string]string{
		{
			"rule_kind":       "decode",
			"brand":           "TRANE",
			"style_name":      "digits year-month",
			"serial_pattern":  `^\d{9}$`,
			"date_fields":     `{"year":{"positions":{"start":1,"end":2}},"month":{"positions":{"start":3,"end":4}}}`,
			"example_serials": `["061234567"]`,
		},
		{
			"rule_kind":      "decode",
			"brand":          "TRANE",
			"style_name":     "broken",
			"serial_pattern": `^(\d{4}`,
		},
	}
	require.NoError(t, fetcher.WriteCSV(filepath.Join(dir, rules.SerialRuleFile), header, records))
	return dir
}

func TestLoadDecodeEnv_ExplicitDir(t *testing.T) {
	cfg = testConfig()
	base := t.TempDir()
	cfg.Rules.BaseDir = base
	dir := writeTestRuleset(t, base, "rules_a")

	env, err := loadDecodeEnv(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, env.Dir)
	// The broken rule is rejected, the good one decodes.
	require.Len(t, env.Issues, 1)
	assert.Equal(t, "bad_pattern", env.Issues[0].Kind)

	result := env.Serial.Decode("TRANE", "061234567", env.bounds())
	assert.True(t, result.Matched)
	require.NotNil(t, result.Year)
	assert.Equal(t, 2006, *result.Year)
}

func TestLoadDecodeEnv_ResolvesCurrent(t *testing.T) {
	cfg = testConfig()
	base := t.TempDir()
	cfg.Rules.BaseDir = base
	writeTestRuleset(t, base, "rules_b")
	require.NoError(t, os.WriteFile(filepath.Join(base, "CURRENT.txt"), []byte("rules_b\n"), 0o644))

	env, err := loadDecodeEnv("")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "rules_b"), env.Dir)
}

func TestLoadDecodeEnv_NoRuleset(t *testing.T) {
	cfg = testConfig()
	cfg.Rules.BaseDir = t.TempDir()

	_, err := loadDecodeEnv("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no ruleset available")
}
