// Package rules defines the decoding rule model, loads rule tables from
// versioned ruleset directories, and validates rules before they reach the
// decoding engines.
package rules

import "strings"

// Canonical rule table file names within a ruleset directory.
const (
	SerialRuleFile    = "SerialDecodeRule.csv"
	AttributeRuleFile = "AttributeDecodeRule.csv"
	BrandAliasFile    = "BrandNormalizeRule.csv"
	EquipmentTypeFile = "EquipmentTypes.csv"
)

// RuleKind distinguishes deterministic decode rules from human-consult guidance.
type RuleKind string

const (
	KindDecode   RuleKind = "decode"
	KindGuidance RuleKind = "guidance"
)

// Confidence describes how much extraction machinery backed a decoded value.
type Confidence string

const (
	ConfidenceHigh   Confidence = "High"
	ConfidenceMedium Confidence = "Medium"
	ConfidenceLow    Confidence = "Low"
	ConfidenceNone   Confidence = "None"
)

// Rank orders confidence tiers for comparison. Higher is better.
func (c Confidence) Rank() int {
	switch c {
	case ConfidenceHigh:
		return 3
	case ConfidenceMedium:
		return 2
	case ConfidenceLow:
		return 1
	default:
		return 0
	}
}

// Span is a fixed character window, 1-based inclusive on both ends.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// PatternRef extracts a value via regex. Group 0 (or absent) means the whole match.
type PatternRef struct {
	Regex    string
	Group    int
	HasGroup bool
}

// TransformKind enumerates the supported value transforms.
type TransformKind string

const (
	// TransformReverse reverses the extracted code before numeric parsing.
	TransformReverse TransformKind = "reverse_string"
	// TransformYearAddBase adds a base year to the parsed numeric code,
	// optionally bounded by MinYear/MaxYear.
	TransformYearAddBase TransformKind = "year_add_base"
	// TransformDivide divides the parsed numeric code by a constant.
	TransformDivide TransformKind = "divide_by"
)

// Transform is a declared numeric or string transform on an extracted code.
type Transform struct {
	Kind    TransformKind
	Base    int     // year_add_base
	MinYear int     // 0 = unbounded
	MaxYear int     // 0 = unbounded
	Divisor float64 // divide_by
}

// Method identifies how an Extraction obtains its raw code.
type Method int

const (
	MethodNone Method = iota
	MethodSpan
	MethodPositionList
	MethodPattern
)

// Extraction describes how to obtain a value from an identifier: a position
// span, a list of individual positions, or a pattern capture, optionally
// followed by a code mapping table and/or a transform.
type Extraction struct {
	Positions     *Span
	PositionList  []int
	Pattern       *PatternRef
	Mapping       map[string]string
	Transform     *Transform
	DataType      string // "" | "string" | "number" (attribute rules only)
	NumericFinal  bool   // the bare extracted code is already the final numeric value
	RequiresChart bool   // no deterministic extraction; a vendor chart is needed
}

// IsZero reports whether no extraction config was declared at all.
func (e Extraction) IsZero() bool {
	return e.Positions == nil && len(e.PositionList) == 0 && e.Pattern == nil &&
		len(e.Mapping) == 0 && e.Transform == nil && !e.RequiresChart
}

// Method returns the declared extraction method. Span beats position list
// beats pattern when a row declares more than one.
func (e Extraction) Method() Method {
	switch {
	case e.RequiresChart:
		return MethodNone
	case e.Positions != nil:
		return MethodSpan
	case len(e.PositionList) > 0:
		return MethodPositionList
	case e.Pattern != nil:
		return MethodPattern
	default:
		return MethodNone
	}
}

// Ambiguity documents decade reuse of short year codes for a brand era.
type Ambiguity struct {
	IsAmbiguous bool   `json:"is_ambiguous"`
	Notes       string `json:"notes"`
}

// Provenance carries where a rule came from.
type Provenance struct {
	Evidence    string
	Source      string
	RetrievedOn string
}

// SerialRule decodes (or gives guidance about) manufacture dates from serials.
type SerialRule struct {
	Kind           RuleKind
	Brand          string
	Priority       *int // explicit override; nil = compute from specificity
	StyleName      string
	SerialPattern  string
	EquipmentTypes []string
	Year           Extraction
	Month          Extraction
	Week           Extraction
	ExampleSerials []string
	Ambiguity      Ambiguity
	GuidanceAction string
	GuidanceText   string
	Provenance     Provenance
}

// AttributeRule decodes a physical attribute from a model number.
type AttributeRule struct {
	Kind           RuleKind
	Brand          string
	Priority       *int
	StyleName      string
	ModelPattern   string
	AttributeName  string
	EquipmentTypes []string
	Extraction     Extraction
	Units          string
	Examples       []string
	GuidanceAction string
	GuidanceText   string
	Provenance     Provenance
}

// curatedMarkers flag rules that were hand-verified rather than mined.
var curatedMarkers = []string{"MANUAL", "RESEARCHED", "OVERRIDE", "CURATED"}

func isCurated(style, source string) bool {
	s := strings.ToUpper(style + " " + source)
	for _, m := range curatedMarkers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

// Curated reports whether the rule came from a manually curated override.
func (r SerialRule) Curated() bool { return isCurated(r.StyleName, r.Provenance.Source) }

// Curated reports whether the rule came from a manually curated override.
func (r AttributeRule) Curated() bool { return isCurated(r.StyleName, r.Provenance.Source) }

// RuleIssue records why the validator rejected a rule.
type RuleIssue struct {
	RuleTable string `json:"rule_table"`
	Brand     string `json:"brand"`
	Name      string `json:"name"` // style name (serial) or attribute name (attribute)
	Kind      string `json:"kind"`
}
