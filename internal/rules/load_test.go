package rules

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var serialHeader = []string{
	"rule_kind", "brand", "priority", "style_name", "serial_pattern",
	"applicable_equipment_types", "date_fields", "example_serials",
	"decade_ambiguity", "guidance_action", "guidance_text",
	"evidence", "source", "retrieved_on",
}

var attributeHeader = []string{
	"rule_kind", "brand", "style_name", "model_pattern", "attribute_name",
	"applicable_equipment_types", "value_extraction", "units", "examples",
	"guidance_action", "guidance_text", "evidence", "source", "retrieved_on",
}

func writeRuleCSV(t *testing.T, dir, name string, header []string, rows ...map[string]string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := csv.NewWriter(f)
	require.NoError(t, w.Write(header))
	for _, rec := range rows {
		row := make([]string, len(header))
		for i, key := range header {
			row[i] = rec[key]
		}
		require.NoError(t, w.Write(row))
	}
	w.Flush()
	require.NoError(t, w.Error())
	return path
}

func TestLoadSerialRules_ParsesSubDocuments(t *testing.T) {
	path := writeRuleCSV(t, t.TempDir(), SerialRuleFile, serialHeader, map[string]string{
		"rule_kind":      "decode",
		"brand":          "Trane",
		"priority":       "-500",
		"style_name":     "Manual: Legacy Letter Code",
		"serial_pattern": `^[A-Z]\d{7}$`,
		"applicable_equipment_types": `["Chiller"]`,
		"date_fields":    `{"year":{"positions":{"start":1,"end":1},"mapping":{"W":"1983"}},"month":{"positions":{"start":2,"end":3}}}`,
		"example_serials": `["W0221593"]`,
		"decade_ambiguity": `{"is_ambiguous":false,"notes":""}`,
		"source":          "https://example.com/trane",
		"retrieved_on":    "2026-01-25",
	})

	loaded, err := LoadSerialRules(path, nil)
	require.NoError(t, err)
	require.Len(t, loaded, 1)

	r := loaded[0]
	assert.Equal(t, KindDecode, r.Kind)
	assert.Equal(t, "TRANE", r.Brand)
	require.NotNil(t, r.Priority)
	assert.Equal(t, -500, *r.Priority)
	assert.Equal(t, []string{"Chiller"}, r.EquipmentTypes)
	require.NotNil(t, r.Year.Positions)
	assert.Equal(t, Span{Start: 1, End: 1}, *r.Year.Positions)
	assert.Equal(t, "1983", r.Year.Mapping["W"])
	require.NotNil(t, r.Month.Positions)
	assert.Equal(t, []string{"W0221593"}, r.ExampleSerials)
	assert.True(t, r.Curated())
}

func TestLoadSerialRules_MalformedSubDocumentsBecomeEmpty(t *testing.T) {
	path := writeRuleCSV(t, t.TempDir(), SerialRuleFile, serialHeader, map[string]string{
		"rule_kind":                  "decode",
		"brand":                      "York",
		"style_name":                 "Broken JSON",
		"serial_pattern":             `^\d{8}$`,
		"applicable_equipment_types": `not json`,
		"date_fields":                `{"year": nope}`,
		"example_serials":            `{`,
		"decade_ambiguity":           `[]`,
	})

	loaded, err := LoadSerialRules(path, nil)
	require.NoError(t, err)
	require.Len(t, loaded, 1)

	r := loaded[0]
	assert.Equal(t, "YORK/JCI", r.Brand)
	assert.Empty(t, r.EquipmentTypes)
	assert.True(t, r.Year.IsZero())
	assert.Empty(t, r.ExampleSerials)
	assert.False(t, r.Ambiguity.IsAmbiguous)
}

func TestLoadSerialRules_LegacyColumnNames(t *testing.T) {
	header := []string{"rule_type", "brand", "style_name", "serial_regex", "equipment_types", "date_fields", "example_serials", "decade_ambiguity", "evidence_excerpt", "source_url"}
	path := writeRuleCSV(t, t.TempDir(), "legacy.csv", header, map[string]string{
		"rule_type":       "guidance",
		"brand":           "Mitsubishi",
		"style_name":      "Chart lookup",
		"evidence_excerpt": "per vendor chart",
		"source_url":      "https://example.com",
	})

	loaded, err := LoadSerialRules(path, nil)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, KindGuidance, loaded[0].Kind)
	assert.Equal(t, "per vendor chart", loaded[0].Provenance.Evidence)
	assert.Equal(t, "https://example.com", loaded[0].Provenance.Source)
}

func TestLoadSerialRules_PriorityAutoAndBlank(t *testing.T) {
	path := writeRuleCSV(t, t.TempDir(), SerialRuleFile, serialHeader,
		map[string]string{"brand": "A", "style_name": "auto", "priority": "AUTO", "serial_pattern": `^\d+$`},
		map[string]string{"brand": "A", "style_name": "blank", "serial_pattern": `^\d+$`},
		map[string]string{"brand": "A", "style_name": "bad", "priority": "ten", "serial_pattern": `^\d+$`},
	)

	loaded, err := LoadSerialRules(path, nil)
	require.NoError(t, err)
	require.Len(t, loaded, 3)
	for _, r := range loaded {
		assert.Nil(t, r.Priority, r.StyleName)
	}
}

func TestLoadAttributeRules_ExtractionVariants(t *testing.T) {
	path := writeRuleCSV(t, t.TempDir(), AttributeRuleFile, attributeHeader,
		map[string]string{
			"rule_kind":        "decode",
			"brand":            "Goodman",
			"model_pattern":    `^GRH(\d{3})`,
			"attribute_name":   "NominalCapacityTons",
			"value_extraction": `{"pattern":{"regex":"^GRH(\\d{3})","group":1},"mapping":{"024":"2.0"},"data_type":"number"}`,
			"units":            "tons",
		},
		map[string]string{
			"rule_kind":        "decode",
			"brand":            "Goodman",
			"attribute_name":   "NominalCapacityTons",
			"value_extraction": `{"positions":{"start":4,"end":6},"transform":{"expression":"tons = code / 12"},"data_type":"number"}`,
			"units":            "tons",
		},
	)

	loaded, err := LoadAttributeRules(path, nil)
	require.NoError(t, err)
	require.Len(t, loaded, 2)

	withPattern := loaded[0]
	assert.Equal(t, "GOODMAN/AMANA/DAIKIN", withPattern.Brand)
	assert.Equal(t, MethodPattern, withPattern.Extraction.Method())
	require.NotNil(t, withPattern.Extraction.Pattern)
	assert.Equal(t, 1, withPattern.Extraction.Pattern.Group)
	assert.Equal(t, "2.0", withPattern.Extraction.Mapping["024"])
	assert.Equal(t, "number", withPattern.Extraction.DataType)

	withTransform := loaded[1]
	assert.Equal(t, MethodSpan, withTransform.Extraction.Method())
	require.NotNil(t, withTransform.Extraction.Transform)
	assert.Equal(t, TransformDivide, withTransform.Extraction.Transform.Kind)
	assert.Equal(t, 12.0, withTransform.Extraction.Transform.Divisor)
}

func TestLoadBrandAliases_MissingFileIsEmpty(t *testing.T) {
	aliases, err := LoadBrandAliases(filepath.Join(t.TempDir(), BrandAliasFile))
	require.NoError(t, err)
	assert.Empty(t, aliases)
}

func TestLoadBrandAliases_NormalizesBothSides(t *testing.T) {
	dir := t.TempDir()
	path := writeRuleCSV(t, dir, BrandAliasFile,
		[]string{"raw_make_normalized", "canonical_brand"},
		map[string]string{"raw_make_normalized": " jci ", "canonical_brand": "york"},
	)

	aliases, err := LoadBrandAliases(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"JCI": "YORK"}, aliases)
}

func TestLoadDir_RequiresAtLeastOneRuleTable(t *testing.T) {
	_, err := LoadDir(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no rule tables")
}

func TestLoadDir_AppliesAliasesToBrands(t *testing.T) {
	dir := t.TempDir()
	writeRuleCSV(t, dir, BrandAliasFile,
		[]string{"raw_make", "suggested_brand"},
		map[string]string{"raw_make": "ACME MAKERS", "suggested_brand": "ACME"},
	)
	writeRuleCSV(t, dir, SerialRuleFile, serialHeader, map[string]string{
		"rule_kind":      "decode",
		"brand":          "Acme Makers",
		"style_name":     "s",
		"serial_pattern": `^\d+$`,
	})

	set, err := LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, set.SerialRules, 1)
	assert.Equal(t, "ACME", set.SerialRules[0].Brand)
	assert.Empty(t, set.AttributeRules)
}
