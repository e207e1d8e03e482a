package rules

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/nameplate-cli/internal/fetcher"
	"github.com/sells-group/nameplate-cli/internal/normalize"
)

// Loading is total: every row becomes a rule object. Malformed embedded
// sub-documents collapse to empty values here; the validator decides whether
// the resulting rule is usable.

// field returns the first non-empty value among column aliases, trimmed.
func field(rec map[string]string, names ...string) string {
	for _, n := range names {
		if v := strings.TrimSpace(rec[n]); v != "" {
			return v
		}
	}
	return ""
}

func parseStringList(raw string) []string {
	if raw == "" {
		return nil
	}
	var vals []any
	if err := json.Unmarshal([]byte(raw), &vals); err != nil {
		return nil
	}
	var out []string
	for _, v := range vals {
		if s := strings.TrimSpace(fmt.Sprint(v)); s != "" && v != nil {
			out = append(out, s)
		}
	}
	return out
}

func parsePriority(raw string) *int {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "AUTO") {
		return nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil
	}
	return &n
}

func asInt(v any) (int, bool) {
	switch t := v.(type) {
	case float64:
		return int(t), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		return n, err == nil
	default:
		return 0, false
	}
}

func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// parseExtraction converts one extraction sub-document (already unmarshaled
// into a generic map) into a typed Extraction. Unrecognized or malformed
// pieces are dropped rather than failing the row.
func parseExtraction(m map[string]any) Extraction {
	var e Extraction
	if m == nil {
		return e
	}

	if rc, ok := m["requires_chart"].(bool); ok {
		e.RequiresChart = rc
	}

	if pos, ok := m["positions"].(map[string]any); ok {
		start, okS := asInt(pos["start"])
		end, okE := asInt(pos["end"])
		if okS && okE {
			e.Positions = &Span{Start: start, End: end}
		}
	}
	if list, ok := m["positions_list"].([]any); ok {
		for _, v := range list {
			if n, ok := asInt(v); ok {
				e.PositionList = append(e.PositionList, n)
			}
		}
	}
	if pat, ok := m["pattern"].(map[string]any); ok {
		if regex, ok := pat["regex"].(string); ok && regex != "" {
			ref := &PatternRef{Regex: regex}
			if g, ok := asInt(pat["group"]); ok {
				ref.Group = g
				ref.HasGroup = true
			}
			e.Pattern = ref
		}
	}
	if mapping, ok := m["mapping"].(map[string]any); ok && len(mapping) > 0 {
		e.Mapping = make(map[string]string, len(mapping))
		for k, v := range mapping {
			e.Mapping[k] = strings.TrimSpace(fmt.Sprint(v))
		}
	}
	if tr, ok := m["transform"].(map[string]any); ok {
		e.Transform = parseTransform(tr)
	}
	if dt, ok := m["data_type"].(string); ok {
		e.DataType = strings.ToLower(strings.TrimSpace(dt))
	}
	if nf, ok := m["numeric_final"].(bool); ok {
		e.NumericFinal = nf
	}
	return e
}

func parseTransform(m map[string]any) *Transform {
	switch kind, _ := m["type"].(string); TransformKind(kind) {
	case TransformReverse:
		return &Transform{Kind: TransformReverse}
	case TransformYearAddBase:
		t := &Transform{Kind: TransformYearAddBase}
		if base, ok := asInt(m["base"]); ok {
			t.Base = base
		}
		if min, ok := asInt(m["min_year"]); ok {
			t.MinYear = min
		}
		if max, ok := asInt(m["max_year"]); ok {
			t.MaxYear = max
		}
		return t
	case TransformDivide:
		if d, ok := asFloat(m["divisor"]); ok && d != 0 {
			return &Transform{Kind: TransformDivide, Divisor: d}
		}
		return nil
	}
	// Legacy expression form, e.g. "tons = code / 12".
	if expr, ok := m["expression"].(string); ok {
		if idx := strings.LastIndex(expr, "/"); idx >= 0 {
			if d, err := strconv.ParseFloat(strings.TrimSpace(expr[idx+1:]), 64); err == nil && d != 0 {
				return &Transform{Kind: TransformDivide, Divisor: d}
			}
		}
	}
	return nil
}

func parseSubDoc(raw string) map[string]any {
	if raw == "" {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil
	}
	return m
}

func parseDateField(fields map[string]any, key string) Extraction {
	if fields == nil {
		return Extraction{}
	}
	sub, _ := fields[key].(map[string]any)
	return parseExtraction(sub)
}

func parseAmbiguity(raw string) Ambiguity {
	m := parseSubDoc(raw)
	if m == nil {
		return Ambiguity{}
	}
	a := Ambiguity{}
	if b, ok := m["is_ambiguous"].(bool); ok {
		a.IsAmbiguous = b
	}
	if s, ok := m["notes"].(string); ok {
		a.Notes = s
	}
	return a
}

func parseKind(raw string) RuleKind {
	if strings.EqualFold(strings.TrimSpace(raw), string(KindGuidance)) {
		return KindGuidance
	}
	return KindDecode
}

// LoadSerialRules reads a serial rule table. Brands are canonicalized through
// the supplied alias table at load time.
func LoadSerialRules(path string, aliases map[string]string) ([]SerialRule, error) {
	records, err := fetcher.ReadRecords(path)
	if err != nil {
		return nil, eris.Wrap(err, "rules: load serial rules")
	}

	out := make([]SerialRule, 0, len(records))
	for _, rec := range records {
		dateFields := parseSubDoc(field(rec, "date_fields"))
		out = append(out, SerialRule{
			Kind:           parseKind(field(rec, "rule_kind", "rule_type")),
			Brand:          normalize.Brand(field(rec, "brand"), aliases),
			Priority:       parsePriority(field(rec, "priority")),
			StyleName:      field(rec, "style_name"),
			SerialPattern:  field(rec, "serial_pattern", "serial_regex"),
			EquipmentTypes: parseStringList(field(rec, "applicable_equipment_types", "equipment_types")),
			Year:           parseDateField(dateFields, "year"),
			Month:          parseDateField(dateFields, "month"),
			Week:           parseDateField(dateFields, "week"),
			ExampleSerials: parseStringList(field(rec, "example_serials")),
			Ambiguity:      parseAmbiguity(field(rec, "decade_ambiguity")),
			GuidanceAction: field(rec, "guidance_action"),
			GuidanceText:   field(rec, "guidance_text"),
			Provenance: Provenance{
				Evidence:    field(rec, "evidence", "evidence_excerpt"),
				Source:      field(rec, "source", "source_url"),
				RetrievedOn: field(rec, "retrieved_on"),
			},
		})
	}
	return out, nil
}

// LoadAttributeRules reads an attribute rule table.
func LoadAttributeRules(path string, aliases map[string]string) ([]AttributeRule, error) {
	records, err := fetcher.ReadRecords(path)
	if err != nil {
		return nil, eris.Wrap(err, "rules: load attribute rules")
	}

	out := make([]AttributeRule, 0, len(records))
	for _, rec := range records {
		out = append(out, AttributeRule{
			Kind:           parseKind(field(rec, "rule_kind", "rule_type")),
			Brand:          normalize.Brand(field(rec, "brand"), aliases),
			Priority:       parsePriority(field(rec, "priority")),
			StyleName:      field(rec, "style_name"),
			ModelPattern:   field(rec, "model_pattern", "model_regex"),
			AttributeName:  field(rec, "attribute_name"),
			EquipmentTypes: parseStringList(field(rec, "applicable_equipment_types", "equipment_types")),
			Extraction:     parseExtraction(parseSubDoc(field(rec, "value_extraction"))),
			Units:          field(rec, "units"),
			Examples:       parseStringList(field(rec, "examples")),
			GuidanceAction: field(rec, "guidance_action"),
			GuidanceText:   field(rec, "guidance_text"),
			Provenance: Provenance{
				Evidence:    field(rec, "evidence", "evidence_excerpt"),
				Source:      field(rec, "source", "source_url"),
				RetrievedOn: field(rec, "retrieved_on"),
			},
		})
	}
	return out, nil
}

// LoadBrandAliases reads the brand alias table into a map of normalized raw
// make to canonical brand. A missing file is an empty map, not an error.
func LoadBrandAliases(path string) (map[string]string, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	records, err := fetcher.ReadRecords(path)
	if err != nil {
		return nil, eris.Wrap(err, "rules: load brand aliases")
	}

	out := make(map[string]string, len(records))
	for _, rec := range records {
		raw := normalize.Text(field(rec, "raw_make_normalized", "raw_make"))
		canonical := normalize.Text(field(rec, "canonical_brand", "suggested_brand"))
		if raw != "" && canonical != "" {
			out[raw] = canonical
		}
	}
	return out, nil
}

// Set is one ruleset directory fully loaded into memory.
type Set struct {
	Dir            string
	SerialRules    []SerialRule
	AttributeRules []AttributeRule
	Aliases        map[string]string
}

// LoadDir loads both rule tables and the brand alias table from a ruleset
// directory. Either rule table may be absent; at least one must exist.
func LoadDir(dir string) (*Set, error) {
	aliases, err := LoadBrandAliases(filepath.Join(dir, BrandAliasFile))
	if err != nil {
		return nil, err
	}

	set := &Set{Dir: dir, Aliases: aliases}

	serialPath := filepath.Join(dir, SerialRuleFile)
	attrPath := filepath.Join(dir, AttributeRuleFile)
	haveSerial, haveAttr := fileExists(serialPath), fileExists(attrPath)
	if !haveSerial && !haveAttr {
		return nil, eris.Errorf("rules: %s contains no rule tables", dir)
	}

	if haveSerial {
		if set.SerialRules, err = LoadSerialRules(serialPath, aliases); err != nil {
			return nil, err
		}
	}
	if haveAttr {
		if set.AttributeRules, err = LoadAttributeRules(attrPath, aliases); err != nil {
			return nil, err
		}
	}
	return set, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
