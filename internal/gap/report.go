// Package gap reports where the rule library cannot serve an asset inventory.
// The output drives research prioritization: each asset row gets a single
// dominant reason, and the summary rolls reasons up per brand.
package gap

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/nameplate-cli/internal/fetcher"
	"github.com/sells-group/nameplate-cli/internal/normalize"
	"github.com/sells-group/nameplate-cli/internal/rules"
)

// Reason classifies why an asset cannot be fully decoded. Ordered checks in
// Analyze assign the first matching reason.
type Reason string

const (
	ReasonMissingBrandRules       Reason = "missing_brand_rules"
	ReasonNoSerialDecodeRules     Reason = "no_serial_decode_rules"
	ReasonSerialRequiresChartOnly Reason = "serial_requires_chart_only"
	ReasonNoAttributeRules        Reason = "no_attribute_rules"
	ReasonAttributeGuidanceOnly   Reason = "attribute_guidance_only"
	ReasonOther                   Reason = "other"
)

// Row is one asset's coverage verdict.
type Row struct {
	AssetID                 string
	MakeRaw                 string
	DetectedBrand           string
	SerialNumber            string
	ModelNumber             string
	Reason                  Reason
	HasSerialRules          bool
	HasSerialDecodeRules    bool
	HasAttributeRules       bool
	HasAttributeDecodeRules bool
}

// Summary aggregates coverage across the whole input.
type Summary struct {
	RulesetDir       string                    `json:"ruleset_dir"`
	Assets           int                       `json:"assets"`
	TotalsByReason   map[Reason]int            `json:"totals_by_reason"`
	ByBrand          map[string]map[Reason]int `json:"by_brand"`
	SerialRuleIssues []rules.RuleIssue         `json:"serial_rule_issues"`
}

// Report holds per-asset rows and the aggregate summary.
type Report struct {
	Rows    []Row
	Summary Summary
}

// brandIndex buckets validated rules per normalized brand.
type brandIndex struct {
	serial map[string][]rules.SerialRule
	attr   map[string][]rules.AttributeRule
}

func indexRules(set *rules.Set) (brandIndex, []rules.RuleIssue) {
	serialAccepted, serialIssues := rules.ValidateSerialRules(set.SerialRules)
	attrAccepted, _ := rules.ValidateAttributeRules(set.AttributeRules)

	idx := brandIndex{
		serial: make(map[string][]rules.SerialRule),
		attr:   make(map[string][]rules.AttributeRule),
	}
	for _, r := range serialAccepted {
		idx.serial[r.Brand] = append(idx.serial[r.Brand], r)
	}
	for _, r := range attrAccepted {
		idx.attr[r.Brand] = append(idx.attr[r.Brand], r)
	}
	return idx, serialIssues
}

// usableYearRule reports whether any decode rule can extract a year without
// a vendor chart.
func usableYearRule(serialRules []rules.SerialRule) bool {
	for _, r := range serialRules {
		if r.Kind != rules.KindDecode || r.Year.RequiresChart {
			continue
		}
		if r.Year.Method() != rules.MethodNone || len(r.Year.Mapping) > 0 {
			return true
		}
	}
	return false
}

func assetField(rec map[string]string, names ...string) string {
	for _, n := range names {
		if v := strings.TrimSpace(rec[n]); v != "" {
			return v
		}
	}
	return ""
}

// Analyze classifies every asset record against the rule set. It never
// aborts mid-input: an unclassifiable row just lands in ReasonOther.
func Analyze(set *rules.Set, assets []map[string]string) *Report {
	idx, serialIssues := indexRules(set)

	report := &Report{
		Summary: Summary{
			RulesetDir:       set.Dir,
			Assets:           len(assets),
			TotalsByReason:   make(map[Reason]int),
			ByBrand:          make(map[string]map[Reason]int),
			SerialRuleIssues: serialIssues,
		},
	}

	for _, a := range assets {
		makeRaw := assetField(a, "Make", "manufacturerId", "Manufacturer")
		brand := normalize.Brand(makeRaw, set.Aliases)
		serial := assetField(a, "SerialNumber", "serialNumber", "Serial")
		model := assetField(a, "ModelNumber", "modelNumber", "Model")

		sRules := idx.serial[brand]
		aRules := idx.attr[brand]

		hasSerialDecode := false
		hasSerialGuidance := false
		for _, r := range sRules {
			switch r.Kind {
			case rules.KindDecode:
				if r.SerialPattern != "" {
					hasSerialDecode = true
				}
			case rules.KindGuidance:
				hasSerialGuidance = true
			}
		}
		hasAttrDecode := false
		hasAttrGuidance := false
		for _, r := range aRules {
			switch r.Kind {
			case rules.KindDecode:
				hasAttrDecode = true
			case rules.KindGuidance:
				hasAttrGuidance = true
			}
		}

		reason := ReasonOther
		switch {
		case len(sRules) == 0 && len(aRules) == 0:
			reason = ReasonMissingBrandRules
		case !hasSerialDecode && hasSerialGuidance:
			reason = ReasonNoSerialDecodeRules
		case hasSerialDecode && !usableYearRule(sRules):
			reason = ReasonSerialRequiresChartOnly
		case len(aRules) == 0:
			reason = ReasonNoAttributeRules
		case !hasAttrDecode && hasAttrGuidance:
			reason = ReasonAttributeGuidanceOnly
		}

		report.Summary.TotalsByReason[reason]++
		if report.Summary.ByBrand[brand] == nil {
			report.Summary.ByBrand[brand] = make(map[Reason]int)
		}
		report.Summary.ByBrand[brand][reason]++

		report.Rows = append(report.Rows, Row{
			AssetID:                 assetField(a, "AssetID", "equipmentId"),
			MakeRaw:                 makeRaw,
			DetectedBrand:           brand,
			SerialNumber:            serial,
			ModelNumber:             model,
			Reason:                  reason,
			HasSerialRules:          len(sRules) > 0,
			HasSerialDecodeRules:    hasSerialDecode,
			HasAttributeRules:       len(aRules) > 0,
			HasAttributeDecodeRules: hasAttrDecode,
		})
	}
	return report
}

var csvHeader = []string{
	"AssetID", "MakeRaw", "DetectedBrand", "SerialNumber", "ModelNumber",
	"Reason", "HasSerialRules", "HasSerialDecodeRules",
	"HasAttributeRules", "HasAttributeDecodeRules",
}

func boolCell(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// WriteCSV writes the per-asset rows to path.
func (r *Report) WriteCSV(path string) error {
	records := make([]map[string]string, 0, len(r.Rows))
	for _, row := range r.Rows {
		records = append(records, map[string]string{
			"AssetID":                 row.AssetID,
			"MakeRaw":                 row.MakeRaw,
			"DetectedBrand":           row.DetectedBrand,
			"SerialNumber":            row.SerialNumber,
			"ModelNumber":             row.ModelNumber,
			"Reason":                  string(row.Reason),
			"HasSerialRules":          boolCell(row.HasSerialRules),
			"HasSerialDecodeRules":    boolCell(row.HasSerialDecodeRules),
			"HasAttributeRules":       boolCell(row.HasAttributeRules),
			"HasAttributeDecodeRules": boolCell(row.HasAttributeDecodeRules),
		})
	}
	if err := fetcher.WriteCSV(path, csvHeader, records); err != nil {
		return eris.Wrap(err, "gap: write report csv")
	}
	return nil
}

// SummaryPath derives the sidecar path for a given report CSV path.
func SummaryPath(csvPath string) string {
	ext := filepath.Ext(csvPath)
	return strings.TrimSuffix(csvPath, ext) + ".summary.json"
}

// WriteSummary writes the aggregate summary sidecar next to the CSV.
func (r *Report) WriteSummary(path string) error {
	// Marshal brands in sorted order for stable diffs.
	byBrand := make(map[string]map[Reason]int, len(r.Summary.ByBrand))
	brands := make([]string, 0, len(r.Summary.ByBrand))
	for b := range r.Summary.ByBrand {
		brands = append(brands, b)
	}
	sort.Strings(brands)
	for _, b := range brands {
		byBrand[b] = r.Summary.ByBrand[b]
	}
	summary := r.Summary
	summary.ByBrand = byBrand

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return eris.Wrap(err, "gap: marshal summary")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "gap: mkdir for %s", path)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return eris.Wrapf(err, "gap: write summary %s", path)
	}
	return nil
}
