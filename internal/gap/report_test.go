package gap

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/nameplate-cli/internal/rules"
)

func decodeSerialRule(brand string) rules.SerialRule {
	return rules.SerialRule{
		Kind:          rules.KindDecode,
		Brand:         brand,
		StyleName:     "style A",
		SerialPattern: `^\d{4}[A-Z]\d{5}$`,
		Year: rules.Extraction{
			Positions: &rules.Span{Start: 1, End: 2},
		},
		ExampleSerials: []string{"0193A12345"},
	}
}

func guidanceSerialRule(brand string) rules.SerialRule {
	return rules.SerialRule{
		Kind:           rules.KindGuidance,
		Brand:          brand,
		StyleName:      "ask vendor",
		GuidanceAction: "contact_manufacturer",
		GuidanceText:   "Serial format requires a vendor chart.",
	}
}

func decodeAttrRule(brand string) rules.AttributeRule {
	return rules.AttributeRule{
		Kind:          rules.KindDecode,
		Brand:         brand,
		AttributeName: "cooling_capacity_tons",
		Extraction: rules.Extraction{
			Positions: &rules.Span{Start: 4, End: 6},
		},
	}
}

func asset(makeName, serial, model string) map[string]string {
	return map[string]string{
		"AssetID":      "A-1",
		"Make":         makeName,
		"SerialNumber": serial,
		"ModelNumber":  model,
	}
}

func TestAnalyze_MissingBrandRules(t *testing.T) {
	set := &rules.Set{}
	report := Analyze(set, []map[string]string{asset("Obscure HVAC Co", "123", "X")})

	require.Len(t, report.Rows, 1)
	assert.Equal(t, ReasonMissingBrandRules, report.Rows[0].Reason)
	assert.Equal(t, "OBSCURE HVAC CO", report.Rows[0].DetectedBrand)
	assert.False(t, report.Rows[0].HasSerialRules)
}

func TestAnalyze_NoSerialDecodeRules(t *testing.T) {
	set := &rules.Set{
		SerialRules:    []rules.SerialRule{guidanceSerialRule("TRANE")},
		AttributeRules: []rules.AttributeRule{decodeAttrRule("TRANE")},
	}
	report := Analyze(set, []map[string]string{asset("Trane", "123", "X")})

	require.Len(t, report.Rows, 1)
	assert.Equal(t, ReasonNoSerialDecodeRules, report.Rows[0].Reason)
	assert.True(t, report.Rows[0].HasSerialRules)
	assert.False(t, report.Rows[0].HasSerialDecodeRules)
}

func TestAnalyze_SerialRequiresChartOnly(t *testing.T) {
	r := decodeSerialRule("TRANE")
	r.Year = rules.Extraction{RequiresChart: true}
	set := &rules.Set{
		SerialRules:    []rules.SerialRule{r},
		AttributeRules: []rules.AttributeRule{decodeAttrRule("TRANE")},
	}
	report := Analyze(set, []map[string]string{asset("Trane", "123", "X")})

	require.Len(t, report.Rows, 1)
	assert.Equal(t, ReasonSerialRequiresChartOnly, report.Rows[0].Reason)
}

func TestAnalyze_NoAttributeRules(t *testing.T) {
	set := &rules.Set{SerialRules: []rules.SerialRule{decodeSerialRule("TRANE")}}
	report := Analyze(set, []map[string]string{asset("Trane", "123", "X")})

	require.Len(t, report.Rows, 1)
	assert.Equal(t, ReasonNoAttributeRules, report.Rows[0].Reason)
}

func TestAnalyze_AttributeGuidanceOnly(t *testing.T) {
	guidance := rules.AttributeRule{
		Kind:           rules.KindGuidance,
		Brand:          "TRANE",
		GuidanceAction: "lookup_chart",
		GuidanceText:   "Capacity comes from a nomenclature chart.",
	}
	set := &rules.Set{
		SerialRules:    []rules.SerialRule{decodeSerialRule("TRANE")},
		AttributeRules: []rules.AttributeRule{guidance},
	}
	report := Analyze(set, []map[string]string{asset("Trane", "123", "X")})

	require.Len(t, report.Rows, 1)
	assert.Equal(t, ReasonAttributeGuidanceOnly, report.Rows[0].Reason)
}

func TestAnalyze_FullyCoveredIsOther(t *testing.T) {
	set := &rules.Set{
		SerialRules:    []rules.SerialRule{decodeSerialRule("TRANE")},
		AttributeRules: []rules.AttributeRule{decodeAttrRule("TRANE")},
	}
	report := Analyze(set, []map[string]string{asset("Trane", "123", "X")})

	require.Len(t, report.Rows, 1)
	assert.Equal(t, ReasonOther, report.Rows[0].Reason)
	assert.True(t, report.Rows[0].HasSerialDecodeRules)
	assert.True(t, report.Rows[0].HasAttributeDecodeRules)
}

func TestAnalyze_BrandAliasAndFamily(t *testing.T) {
	set := &rules.Set{
		SerialRules:    []rules.SerialRule{decodeSerialRule("YORK/JCI")},
		AttributeRules: []rules.AttributeRule{decodeAttrRule("YORK/JCI")},
		Aliases:        map[string]string{"JCI CONTROLS DIV": "JOHNSON CONTROLS"},
	}
	report := Analyze(set, []map[string]string{asset("JCI Controls Div", "123", "X")})

	require.Len(t, report.Rows, 1)
	assert.Equal(t, "YORK/JCI", report.Rows[0].DetectedBrand)
	assert.Equal(t, ReasonOther, report.Rows[0].Reason)
}

func TestAnalyze_Summary(t *testing.T) {
	set := &rules.Set{
		Dir:         "/data/rulesets/rules_x",
		SerialRules: []rules.SerialRule{decodeSerialRule("TRANE")},
	}
	assets := []map[string]string{
		asset("Trane", "1", "a"),
		asset("Trane", "2", "b"),
		asset("Nobody", "3", "c"),
	}
	report := Analyze(set, assets)

	assert.Equal(t, 3, report.Summary.Assets)
	assert.Equal(t, "/data/rulesets/rules_x", report.Summary.RulesetDir)
	assert.Equal(t, 2, report.Summary.TotalsByReason[ReasonNoAttributeRules])
	assert.Equal(t, 1, report.Summary.TotalsByReason[ReasonMissingBrandRules])
	assert.Equal(t, 2, report.Summary.ByBrand["TRANE"][ReasonNoAttributeRules])
}

func TestAnalyze_ReportsValidatorIssues(t *testing.T) {
	bad := decodeSerialRule("TRANE")
	bad.SerialPattern = `^(\d{4}` // unbalanced
	set := &rules.Set{SerialRules: []rules.SerialRule{bad}}

	report := Analyze(set, nil)
	require.Len(t, report.Summary.SerialRuleIssues, 1)
	assert.Equal(t, "bad_pattern", report.Summary.SerialRuleIssues[0].Kind)
}

func TestReport_WriteOutputs(t *testing.T) {
	set := &rules.Set{SerialRules: []rules.SerialRule{decodeSerialRule("TRANE")}}
	report := Analyze(set, []map[string]string{asset("Trane", "0193A12345", "XE1000")})

	dir := t.TempDir()
	csvPath := filepath.Join(dir, "out", "gaps.csv")
	require.NoError(t, report.WriteCSV(csvPath))
	require.NoError(t, report.WriteSummary(SummaryPath(csvPath)))

	data, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "no_attribute_rules")

	raw, err := os.ReadFile(filepath.Join(dir, "out", "gaps.summary.json"))
	require.NoError(t, err)
	var summary map[string]any
	require.NoError(t, json.Unmarshal(raw, &summary))
	assert.Contains(t, summary, "totals_by_reason")
	assert.Contains(t, summary, "by_brand")
}

func TestSummaryPath(t *testing.T) {
	assert.Equal(t, "/tmp/gaps.summary.json", SummaryPath("/tmp/gaps.csv"))
	assert.Equal(t, "gaps.summary.json", SummaryPath("gaps.csv"))
}
